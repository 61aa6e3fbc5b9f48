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

package steamworks_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ZaparooProject/zaparoo-workshop/pkg/steamworks"
	"github.com/ZaparooProject/zaparoo-workshop/pkg/testing/mocks"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuntime_InitAndShutdown(t *testing.T) {
	t.Parallel()

	fake := mocks.NewFakeSteamworks(76561197960287930)
	rt := steamworks.NewRuntime(fake, clockwork.NewFakeClock(), nil)
	assert.Equal(t, steamworks.StateUninitialized, rt.State())

	require.True(t, rt.Init(context.Background(), 480))
	assert.True(t, rt.Ready())
	assert.Equal(t, steamworks.AppID(480), rt.AppID())
	assert.Equal(t, uint64(76561197960287930), rt.SteamID())
	assert.Equal(t, steamworks.AppID(480), fake.AppID)
	assert.True(t, rt.Pump().Running())

	// same AppID while ready is accepted, another is not
	assert.True(t, rt.Init(context.Background(), 480))
	assert.False(t, rt.Init(context.Background(), 4000))

	rt.Shutdown()
	assert.Equal(t, steamworks.StateUninitialized, rt.State())
	assert.False(t, rt.Pump().Running())
	assert.Equal(t, 1, fake.ShutdownCalls)
	assert.Equal(t, 1, fake.FrameCount(), "shutdown drains with one frame")

	rt.Shutdown()
	assert.Equal(t, 1, fake.ShutdownCalls)
}

func TestRuntime_InitFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		setup       func(f *mocks.FakeSteamworks)
		clientCheck steamworks.ClientCheck
		name        string
	}{
		{
			name:  "library reports client not running",
			setup: func(f *mocks.FakeSteamworks) { f.NotRunning = true },
		},
		{
			name:        "process check fails",
			setup:       func(*mocks.FakeSteamworks) {},
			clientCheck: func(context.Context) bool { return false },
		},
		{
			name:  "init error",
			setup: func(f *mocks.FakeSteamworks) { f.InitErr = errors.New("no app") },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fake := mocks.NewFakeSteamworks(1)
			tt.setup(fake)
			rt := steamworks.NewRuntime(fake, clockwork.NewFakeClock(), tt.clientCheck)

			assert.False(t, rt.Init(context.Background(), 480))
			assert.Equal(t, steamworks.StateUninitialized, rt.State())
			assert.False(t, rt.Pump().Running())
		})
	}
}
