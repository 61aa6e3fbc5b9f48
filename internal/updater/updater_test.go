// Zaparoo Workshop
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Zaparoo Workshop.
//
// Zaparoo Workshop is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Zaparoo Workshop is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Zaparoo Workshop.  If not, see <http://www.gnu.org/licenses/>.

package updater

import (
	"context"
	"errors"
	"testing"

	"github.com/creativeprojects/go-selfupdate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsDevVersion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		version string
		dev     bool
	}{
		{"", true},
		{"dev", true},
		{"v1.2.0-dev", true},
		{"1.2.0", false},
		{"v1.2.0", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.dev, isDevVersion(tt.version), tt.version)
	}
}

func TestCheck(t *testing.T) {
	t.Parallel()

	t.Run("dev build skips detection", func(t *testing.T) {
		t.Parallel()
		called := false
		c := &Checker{detect: func(context.Context) (*selfupdate.Release, bool, error) {
			called = true
			return nil, false, nil
		}}

		_, err := c.Check(context.Background(), "dev")
		require.ErrorIs(t, err, ErrDevBuild)
		assert.False(t, called)
	})

	t.Run("detection failure is wrapped", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("rate limited")
		c := &Checker{detect: func(context.Context) (*selfupdate.Release, bool, error) {
			return nil, false, boom
		}}

		_, err := c.Check(context.Background(), "1.0.0")
		require.ErrorIs(t, err, boom)
		assert.False(t, c.CheckAndLog(context.Background(), "1.0.0").Available)
	})

	t.Run("no release published", func(t *testing.T) {
		t.Parallel()
		c := &Checker{detect: func(context.Context) (*selfupdate.Release, bool, error) {
			return nil, false, nil
		}}

		res, err := c.Check(context.Background(), "1.0.0")
		require.NoError(t, err)
		assert.False(t, res.Available)
	})

	t.Run("deadline applied", func(t *testing.T) {
		t.Parallel()
		c := &Checker{detect: func(ctx context.Context) (*selfupdate.Release, bool, error) {
			_, ok := ctx.Deadline()
			assert.True(t, ok)
			return nil, false, nil
		}}

		_, err := c.Check(context.Background(), "1.0.0")
		require.NoError(t, err)
	})
}
