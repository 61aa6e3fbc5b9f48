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
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ZaparooProject/zaparoo-workshop/pkg/community"
	"github.com/ZaparooProject/zaparoo-workshop/pkg/config"
	"github.com/ZaparooProject/zaparoo-workshop/pkg/helpers/command"
	"github.com/ZaparooProject/zaparoo-workshop/pkg/testing/mocks"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var errOffline = errors.New("dial tcp: network is unreachable")

type stubTags struct {
	tags   map[string][]string
	err    error
	forced []bool
}

func (s *stubTags) Tags(_ context.Context, _ uint32, force bool) (map[string][]string, error) {
	s.forced = append(s.forced, force)
	if s.err != nil {
		return nil, s.err
	}
	return s.tags, nil
}

type stubValidator struct {
	results map[uint32]community.Result
	calls   atomic.Int32
}

func (s *stubValidator) Validate(_ context.Context, appID uint32) community.Result {
	s.calls.Add(1)
	if res, ok := s.results[appID]; ok {
		return res
	}
	return community.Result{AppID: appID, ErrorKey: community.ErrKeyInvalidAppID}
}

type managerEnv struct {
	fs        afero.Fs
	cfg       *config.Instance
	store     *Store
	tags      *stubTags
	validator *stubValidator
	cmd       *mocks.MockCommandExecutor
	clock     *clockwork.FakeClock
	mgr       *Manager
}

func newManagerEnv(t *testing.T) *managerEnv {
	t.Helper()
	fs := afero.NewMemMapFs()
	store, cfg := newTestStore(t, fs)
	clock := clockwork.NewFakeClockAt(testNow)
	cmd := &mocks.MockCommandExecutor{}
	rl := NewRelauncher(cmd, clock, "/app/workshop", "/app", nil)
	rl.environ = func() []string { return []string{"HOME=/home/u", "SteamAppId=480"} }

	e := &managerEnv{
		fs:        fs,
		cfg:       cfg,
		store:     store,
		tags:      &stubTags{tags: map[string][]string{"Type": {"Mod"}}},
		validator: &stubValidator{results: map[uint32]community.Result{}},
		cmd:       cmd,
		clock:     clock,
	}
	e.mgr = NewManager(store, e.tags, e.validator, rl, fs, clock, Options{ExeDir: "/app", WorkDir: "/work"})
	return e
}

func TestCreate_TagFetchFailureStillCreates(t *testing.T) {
	t.Parallel()

	e := newManagerEnv(t)
	e.tags.err = errOffline

	s, err := e.mgr.Create(context.Background(), 1162750, "Songs of Syx")
	require.NoError(t, err)
	assert.Empty(t, s.TagsByCategory)
	assert.True(t, s.TagsLastUpdated.IsZero())

	stored, err := e.store.Get(s.ID)
	require.NoError(t, err)
	assert.Equal(t, uint32(1162750), stored.AppID)
	assert.Empty(t, stored.TagsByCategory)

	e.tags.err = nil
	require.NoError(t, e.mgr.RefreshTags(context.Background(), stored))

	refreshed, err := e.store.Get(s.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"Type": {"Mod"}}, refreshed.TagsByCategory)
	assert.True(t, testNow.Equal(refreshed.TagsLastUpdated))
	assert.Equal(t, []bool{false, true}, e.tags.forced)
}

func TestCreate_DefaultName(t *testing.T) {
	t.Parallel()

	e := newManagerEnv(t)
	s, err := e.mgr.Create(context.Background(), 480, "")
	require.NoError(t, err)
	assert.Equal(t, "Game 480", s.Name)
	assert.Equal(t, map[string][]string{"Type": {"Mod"}}, s.TagsByCategory)
}

func TestRefreshTags_Failure(t *testing.T) {
	t.Parallel()

	e := newManagerEnv(t)
	s, err := e.mgr.Create(context.Background(), 480, "Spacewar")
	require.NoError(t, err)

	e.tags.err = errOffline
	require.ErrorIs(t, e.mgr.RefreshTags(context.Background(), s), errOffline)
}

func TestRefreshTags_RepublishesActive(t *testing.T) {
	t.Parallel()

	e := newManagerEnv(t)
	s, err := e.mgr.Create(context.Background(), 480, "Spacewar")
	require.NoError(t, err)
	require.NoError(t, e.store.SetActive(s.ID))

	sc, err := e.mgr.Bootstrap(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Context{SessionID: s.ID, AppID: 480, GameName: "Spacewar"}, sc)
	before := e.mgr.Active()
	require.NotNil(t, before)

	e.tags.tags = map[string][]string{"Type": {"Map"}}
	require.NoError(t, e.mgr.RefreshTags(context.Background(), s))

	after := e.mgr.Active()
	assert.NotSame(t, before, after)
	assert.Equal(t, []string{"Map"}, after.TagsByCategory["Type"])
	assert.Equal(t, []string{"Mod"}, before.TagsByCategory["Type"])
	assert.True(t, after.Active)
}

func TestSwitch_WritesMarkersAndRelaunches(t *testing.T) {
	t.Parallel()

	e := newManagerEnv(t)
	s, err := e.mgr.Create(context.Background(), 1162750, "Songs of Syx")
	require.NoError(t, err)

	e.cmd.On("StartWithOptions",
		mock.Anything,
		mock.MatchedBy(func(opts command.StartOptions) bool {
			return opts.Detach && opts.Dir == "/app" &&
				slices.Contains(opts.Env, "SteamAppId=1162750") &&
				slices.Contains(opts.Env, "SteamGameId=1162750") &&
				!slices.Contains(opts.Env, "SteamAppId=480") &&
				slices.Contains(opts.Env, "HOME=/home/u")
		}),
		"/app/workshop",
		[]string(nil),
	).Return(nil)

	var shutdowns atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- e.mgr.Switch(context.Background(), s, func() { shutdowns.Add(1) })
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, e.clock.BlockUntilContext(ctx, 1))
	assert.Equal(t, int32(1), shutdowns.Load())
	e.cmd.AssertNotCalled(t, "StartWithOptions", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	e.clock.Advance(RelaunchDelay)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-ctx.Done():
		t.Fatal("switch did not return")
	}
	e.cmd.AssertExpectations(t)

	assert.Equal(t, s.ID, e.cfg.ActiveSession())
	for _, dir := range []string{"/app", "/work"} {
		id, ok := ReadMarker(e.fs, dir)
		require.True(t, ok, dir)
		assert.Equal(t, uint32(1162750), id)
	}
}

func TestRelaunch_NoExecutable(t *testing.T) {
	t.Parallel()

	rl := NewRelauncher(&mocks.MockCommandExecutor{}, clockwork.NewFakeClock(), "", "/app", nil)
	called := false
	err := rl.Relaunch(context.Background(), func() { called = true }, 480)
	require.ErrorIs(t, err, ErrNoExecutable)
	assert.False(t, called)
}

func TestRelaunchEnv(t *testing.T) {
	t.Parallel()

	env := RelaunchEnv([]string{"A=1", "SteamGameId=1", "SteamAppIdX=keep"}, 42)
	assert.Equal(t, []string{"A=1", "SteamAppIdX=keep", "SteamAppId=42", "SteamGameId=42"}, env)
}

func TestEnsureFromMarker(t *testing.T) {
	t.Parallel()

	t.Run("creates and activates a session", func(t *testing.T) {
		t.Parallel()
		e := newManagerEnv(t)
		require.NoError(t, WriteMarker(e.fs, 1162750, "/app"))
		e.validator.results[1162750] = community.Result{AppID: 1162750, Valid: true, GameName: "Songs of Syx"}

		s, err := e.mgr.EnsureFromMarker(context.Background())
		require.NoError(t, err)
		require.NotNil(t, s)
		assert.Equal(t, "Songs of Syx", s.Name)
		assert.Equal(t, s.ID, e.cfg.ActiveSession())

		again, err := e.mgr.EnsureFromMarker(context.Background())
		require.NoError(t, err)
		assert.Equal(t, s.ID, again.ID)
		assert.Equal(t, int32(1), e.validator.calls.Load())
	})

	t.Run("invalid appid is ignored", func(t *testing.T) {
		t.Parallel()
		e := newManagerEnv(t)
		require.NoError(t, WriteMarker(e.fs, 99, "/app"))

		s, err := e.mgr.EnsureFromMarker(context.Background())
		require.NoError(t, err)
		assert.Nil(t, s)
		list, err := e.store.List()
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("no marker", func(t *testing.T) {
		t.Parallel()
		e := newManagerEnv(t)
		s, err := e.mgr.EnsureFromMarker(context.Background())
		require.NoError(t, err)
		assert.Nil(t, s)
		assert.Equal(t, int32(0), e.validator.calls.Load())
	})
}

func TestBootstrap(t *testing.T) {
	t.Parallel()

	t.Run("no sessions", func(t *testing.T) {
		t.Parallel()
		e := newManagerEnv(t)
		_, err := e.mgr.Bootstrap(context.Background())
		require.ErrorIs(t, err, ErrNoSessions)
		assert.Nil(t, e.mgr.Active())
	})

	t.Run("falls back to most recently used", func(t *testing.T) {
		t.Parallel()
		e := newManagerEnv(t)
		old := New(1, "Old", testNow.Add(-2*time.Hour))
		recent := New(2, "Recent", testNow.Add(-time.Hour))
		require.NoError(t, e.store.Save(old))
		require.NoError(t, e.store.Save(recent))
		require.NoError(t, e.cfg.SetActiveSession("3f1c2a8e-9d4b-4e55-8a27-0c1d2e3f4a5b"))

		sc, err := e.mgr.Bootstrap(context.Background())
		require.NoError(t, err)
		assert.Equal(t, recent.ID, sc.SessionID)
		assert.Equal(t, uint32(2), sc.AppID)
		assert.Equal(t, recent.ID, e.cfg.ActiveSession())

		touched, err := e.store.Get(recent.ID)
		require.NoError(t, err)
		assert.True(t, testNow.Equal(touched.LastUsedAt))
	})
}

func TestUpdate_PersistsAndRepublishes(t *testing.T) {
	t.Parallel()

	e := newManagerEnv(t)
	s, err := e.mgr.Create(context.Background(), 480, "Spacewar")
	require.NoError(t, err)
	require.NoError(t, e.store.SetActive(s.ID))
	_, err = e.mgr.Bootstrap(context.Background())
	require.NoError(t, err)

	s.AddCustomTag("Balance")
	require.NoError(t, e.mgr.Update(s))
	assert.Equal(t, []string{"Balance"}, e.mgr.Active().CustomTags)

	stored, err := e.store.Get(s.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Balance"}, stored.CustomTags)
}

func TestWatch_ReportsExternalWrites(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	changed := make(chan string, 16)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, dir, func(id string) {
			select {
			case changed <- id:
			default:
			}
		})
	}()

	id := "3f1c2a8e-9d4b-4e55-8a27-0c1d2e3f4a5b"
	require.Eventually(t, func() bool {
		_ = os.WriteFile(filepath.Join(dir, ".tmp-ignored"), []byte("x"), 0o600)
		_ = os.WriteFile(filepath.Join(dir, id+".toml"), []byte("x"), 0o600)
		select {
		case got := <-changed:
			return got == id
		default:
			return false
		}
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
