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

package sessions

import (
	"testing"
	"time"

	"github.com/ZaparooProject/zaparoo-workshop/pkg/config"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sessionsDir = "/data/sessions"

func newTestStore(t *testing.T, fs afero.Fs) (*Store, *config.Instance) {
	t.Helper()
	cfg, err := config.NewConfigWithFs(fs, "/config", config.BaseDefaults)
	require.NoError(t, err)
	return NewStore(fs, sessionsDir, cfg), cfg
}

func TestStore_SaveGetList(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	store, cfg := newTestStore(t, fs)

	older := New(480, "Spacewar", testNow)
	newer := New(1162750, "Songs of Syx", testNow.Add(time.Hour))
	require.NoError(t, store.Save(older))
	require.NoError(t, store.Save(newer))
	require.NoError(t, cfg.SetActiveSession(older.ID))

	got, err := store.Get(older.ID)
	require.NoError(t, err)
	assert.Equal(t, older.Name, got.Name)
	assert.True(t, got.Active)

	require.NoError(t, afero.WriteFile(fs, sessionsDir+"/broken.toml", []byte("not = [toml"), 0o600))
	require.NoError(t, afero.WriteFile(fs, sessionsDir+"/notes.txt", []byte("x"), 0o600))

	list, err := store.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)
	assert.Equal(t, older.ID, list[1].ID)
	assert.False(t, list[0].Active)
	assert.True(t, list[1].Active)

	found, ok := store.FindByAppID(1162750)
	require.True(t, ok)
	assert.Equal(t, newer.ID, found.ID)
	_, ok = store.FindByAppID(1)
	assert.False(t, ok)
}

func TestStore_GetMissing(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t, afero.NewMemMapFs())
	_, err := store.Get("3f1c2a8e-9d4b-4e55-8a27-0c1d2e3f4a5b")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = store.Get("../escape")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = store.Active()
	require.ErrorIs(t, err, ErrNotFound)

	list, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestStore_DeleteActivePromotesMostRecent(t *testing.T) {
	t.Parallel()

	store, cfg := newTestStore(t, afero.NewMemMapFs())

	a := New(1, "A", testNow)
	b := New(2, "B", testNow.Add(2*time.Hour))
	c := New(3, "C", testNow.Add(time.Hour))
	for _, s := range []*Session{a, b, c} {
		require.NoError(t, store.Save(s))
	}
	require.NoError(t, store.SetActive(b.ID))

	require.NoError(t, store.Delete(b.ID))
	assert.Equal(t, c.ID, cfg.ActiveSession())

	require.NoError(t, store.Delete(a.ID))
	assert.Equal(t, c.ID, cfg.ActiveSession())

	require.NoError(t, store.Delete(c.ID))
	assert.Empty(t, cfg.ActiveSession())
}

func TestStore_DeleteRejectsPathIDs(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	store, _ := newTestStore(t, fs)
	require.NoError(t, afero.WriteFile(fs, "/data/outside.toml", []byte("x"), 0o600))

	for _, id := range []string{"", "../outside", `..\outside`, "a/b"} {
		require.ErrorIs(t, store.Delete(id), ErrNotFound, id)
	}

	exists, err := afero.Exists(fs, "/data/outside.toml")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestMarker(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	_, ok := ReadMarker(fs, "/app")
	assert.False(t, ok)

	require.NoError(t, WriteMarker(fs, 1162750, "/app", "/app/", "/work", ""))
	id, ok := ReadMarker(fs, "/app")
	require.True(t, ok)
	assert.Equal(t, uint32(1162750), id)
	id, ok = ReadMarker(fs, "/work")
	require.True(t, ok)
	assert.Equal(t, uint32(1162750), id)

	require.NoError(t, afero.WriteFile(fs, "/bad/"+config.AppIDFile, []byte(" 480x\n"), 0o600))
	_, ok = ReadMarker(fs, "/bad")
	assert.False(t, ok)

	require.NoError(t, afero.WriteFile(fs, "/ws/"+config.AppIDFile, []byte(" 480\r\n"), 0o600))
	id, ok = ReadMarker(fs, "/ws")
	require.True(t, ok)
	assert.Equal(t, uint32(480), id)
}
