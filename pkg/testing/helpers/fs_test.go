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
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateDirectoryStructure(t *testing.T) {
	t.Parallel()
	h := NewMemoryFS()

	err := h.CreateDirectoryStructure(map[string]any{
		"/data": map[string]any{
			"workshop": map[string]any{
				"480": map[string]any{
					"Map_1700000000": map[string]any{
						"Map_1700000000.zip": "zip",
					},
				},
			},
			"empty": map[string]any{},
		},
	})
	require.NoError(t, err)

	data, err := afero.ReadFile(h.Fs, "/data/workshop/480/Map_1700000000/Map_1700000000.zip")
	require.NoError(t, err)
	assert.Equal(t, "zip", string(data))
	isDir, err := afero.IsDir(h.Fs, "/data/empty")
	require.NoError(t, err)
	assert.True(t, isDir)

	require.Error(t, h.CreateDirectoryStructure(map[string]any{"/bad": 1}))
}

func TestCreateAppIDMarker(t *testing.T) {
	t.Parallel()
	h := NewMemoryFS()

	require.NoError(t, h.CreateAppIDMarker("/app", 480))
	data, err := afero.ReadFile(h.Fs, "/app/steam_appid.txt")
	require.NoError(t, err)
	assert.Equal(t, "480\n", string(data))
}
