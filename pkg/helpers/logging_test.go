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

package helpers

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedactingWriter(t *testing.T) {
	t.Parallel()

	t.Run("masks registered secrets", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		w := NewRedactingWriter(&buf)
		w.Register("eyJhbGciOiJFZERTQSJ9.secret")

		n, err := w.Write([]byte(`{"token":"eyJhbGciOiJFZERTQSJ9.secret"}`))
		require.NoError(t, err)
		assert.Equal(t, len(`{"token":"eyJhbGciOiJFZERTQSJ9.secret"}`), n)
		assert.JSONEq(t, `{"token":"[REDACTED]"}`, buf.String())
	})

	t.Run("ignores short values", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		w := NewRedactingWriter(&buf)
		w.Register("1")

		_, err := w.Write([]byte("appid=1"))
		require.NoError(t, err)
		assert.Equal(t, "appid=1", buf.String())
	})

	t.Run("longest secret wins", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		w := NewRedactingWriter(&buf)
		w.Register("abcdefgh")
		w.Register("abcdefgh-ijkl")

		_, err := w.Write([]byte("x abcdefgh-ijkl y"))
		require.NoError(t, err)
		assert.Equal(t, "x [REDACTED] y", buf.String())
	})

	t.Run("replaces home directory", func(t *testing.T) {
		t.Parallel()
		home, err := os.UserHomeDir()
		if err != nil || home == "" {
			t.Skip("no home directory")
		}
		var buf bytes.Buffer
		w := NewRedactingWriter(&buf)

		_, err = w.Write([]byte(filepath.Join(home, "mods", "a")))
		require.NoError(t, err)
		assert.Equal(t, filepath.Join("~", "mods", "a"), buf.String())
	})
}

func TestInitLogging_CreatesLogDir(t *testing.T) {
	// not parallel: replaces the global logger
	dir := filepath.Join(t.TempDir(), "logs", "nested")

	var buf bytes.Buffer
	require.NoError(t, InitLogging(dir, false, &buf))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestPortableDir(t *testing.T) {
	t.Parallel()
	exeDir := t.TempDir()

	_, ok := PortableDir(exeDir)
	assert.False(t, ok)

	require.NoError(t, os.Mkdir(filepath.Join(exeDir, "user"), 0o750))
	dir, ok := PortableDir(exeDir)
	assert.True(t, ok)
	assert.Equal(t, filepath.Join(exeDir, "user"), dir)

	_, ok = PortableDir("")
	assert.False(t, ok)
}

func TestDirs_Layout(t *testing.T) {
	t.Parallel()
	d := Dirs{Config: "/c", Data: "/d", Cache: "/k", Logs: "/d/logs"}

	assert.Equal(t, filepath.Join("/d", "sessions"), d.Sessions())
	assert.Equal(t, filepath.Join("/k", "tags"), d.TagCache())
	assert.Equal(t, filepath.Join("/d", "workshop"), d.Downloads())
	assert.Equal(t, filepath.Join("/k", "previews.db"), d.PreviewCache())
}
