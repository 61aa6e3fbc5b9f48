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

package cli

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ZaparooProject/zaparoo-workshop/pkg/community"
	"github.com/ZaparooProject/zaparoo-workshop/pkg/config"
	"github.com/ZaparooProject/zaparoo-workshop/pkg/previews"
	"github.com/ZaparooProject/zaparoo-workshop/pkg/sessions"
	"github.com/ZaparooProject/zaparoo-workshop/pkg/shared/httpclient"
	"github.com/ZaparooProject/zaparoo-workshop/pkg/steamworks"
	testhelpers "github.com/ZaparooProject/zaparoo-workshop/pkg/testing/helpers"
	"github.com/ZaparooProject/zaparoo-workshop/pkg/testing/mocks"
	"github.com/ZaparooProject/zaparoo-workshop/pkg/versions"
	"github.com/ZaparooProject/zaparoo-workshop/pkg/webauth"
	"github.com/ZaparooProject/zaparoo-workshop/pkg/workshop"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAppID   = uint32(1162750)
	testSteamID = uint64(76561197960287930)
)

var errOffline = errors.New("offline")

type stubTags struct{}

func (stubTags) Tags(context.Context, uint32, bool) (map[string][]string, error) {
	return map[string][]string{"Type": {"Map", "Mod"}}, nil
}

type stubValidator struct{}

func (stubValidator) Validate(_ context.Context, appID uint32) community.Result {
	if appID == testAppID {
		return community.Result{AppID: appID, GameName: "Test Game", Valid: true}
	}
	return community.Result{
		AppID:    appID,
		ErrorKey: community.ErrKeyNoWorkshop,
		Message:  "no workshop",
	}
}

type pageFetcher struct {
	page string
}

func (p pageFetcher) Fetch(context.Context, string) (string, error) {
	return p.page, nil
}

type testEnv struct {
	app   *App
	out   *bytes.Buffer
	fsh   *testhelpers.FSHelper
	fs    afero.Fs
	cfg   *config.Instance
	store *sessions.Store
}

func newTestEnv(t *testing.T, c Components) *testEnv {
	t.Helper()
	fsh := testhelpers.NewMemoryFS()
	fs := fsh.Fs
	cfg, err := config.NewConfigWithFs(fs, "/config", config.BaseDefaults)
	require.NoError(t, err)
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	cmd := testhelpers.NewMockCommandExecutor()

	store := sessions.NewStore(fs, "/data/sessions", cfg)
	c.Sessions = sessions.NewManager(
		store,
		stubTags{},
		stubValidator{},
		sessions.NewRelauncher(cmd, clock, "/app/workshop", "/app", nil),
		fs,
		clock,
		sessions.Options{ExeDir: "/app", WorkDir: "/app"},
	)
	c.Auth = webauth.New(cfg, func(context.Context) (webauth.Connection, error) {
		return nil, errOffline
	}, clock)
	if c.Changelogs == nil {
		c.Changelogs = versions.NewChangelogReader(pageFetcher{})
	}
	if c.Downloader == nil {
		c.Downloader = versions.NewDownloader(pageFetcher{},
			httpclient.NewClientWithTimeout(time.Second), fs, cmd, "/data/workshop")
	}
	c.FS = fs

	out := &bytes.Buffer{}
	return &testEnv{app: NewApp(out, c), out: out, fsh: fsh, fs: fs, cfg: cfg, store: store}
}

func (e *testEnv) run(t *testing.T, args ...string) error {
	t.Helper()
	f := SetupFlags(flag.NewFlagSet("workshop", flag.ContinueOnError))
	exit, err := f.Pre(args, io.Discard)
	require.NoError(t, err)
	require.False(t, exit)
	return e.app.Run(context.Background(), f)
}

func (e *testEnv) addSession(t *testing.T) *sessions.Session {
	t.Helper()
	s := sessions.New(testAppID, "Test Game", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	s.TagsByCategory = map[string][]string{"Type": {"Map", "Mod"}}
	s.CustomTags = []string{"Speedrun"}
	require.NoError(t, e.store.Save(s))
	require.NoError(t, e.store.SetActive(s.ID))
	return s
}

func TestParsePair(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		parent steamworks.PublishedFileID
		child  steamworks.PublishedFileID
		ok     bool
	}{
		{name: "valid", input: "100:200", parent: 100, child: 200, ok: true},
		{name: "spaces", input: " 100 : 200 ", parent: 100, child: 200, ok: true},
		{name: "missing separator", input: "100"},
		{name: "zero", input: "0:200"},
		{name: "self", input: "5:5"},
		{name: "not a number", input: "a:b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p, c, err := ParsePair(tt.input)
			if !tt.ok {
				require.ErrorIs(t, err, ErrBadFlagValue)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.parent, p)
			assert.Equal(t, tt.child, c)
		})
	}
}

func TestParseVersionRef(t *testing.T) {
	t.Parallel()

	id, ts, err := ParseVersionRef("123:1700000000")
	require.NoError(t, err)
	assert.Equal(t, uint64(123), id)
	assert.Equal(t, int64(1700000000), ts)

	for _, bad := range []string{"123", "x:1", "123:-1", "0:5"} {
		_, _, err := ParseVersionRef(bad)
		require.ErrorIs(t, err, ErrBadFlagValue, bad)
	}
}

func TestPre_Version(t *testing.T) {
	t.Parallel()
	f := SetupFlags(flag.NewFlagSet("workshop", flag.ContinueOnError))
	out := &bytes.Buffer{}

	exit, err := f.Pre([]string{"-version"}, out)
	require.NoError(t, err)
	assert.True(t, exit)
	assert.Contains(t, out.String(), "Zaparoo Workshop v"+config.AppVersion)
}

func TestStatus_NoSessions(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, Components{})

	require.NoError(t, e.run(t))
	assert.Contains(t, e.out.String(), "No sessions")
	assert.Contains(t, e.out.String(), "Web login: signed out")
}

func TestStatus_BootstrapsFromMarker(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, Components{})
	require.NoError(t, e.fsh.CreateAppIDMarker("/app", testAppID))

	require.NoError(t, e.run(t))
	assert.Contains(t, e.out.String(), "Session: Test Game (AppId 1162750)")

	active, err := e.store.Active()
	require.NoError(t, err)
	assert.Equal(t, testAppID, active.AppID)
}

func TestAddSession(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, Components{})

	require.NoError(t, e.run(t, "-add-session", "1162750"))
	assert.Contains(t, e.out.String(), "for Test Game")

	list, err := e.store.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, testAppID, list[0].AppID)
	assert.Equal(t, []string{"Map", "Mod"}, list[0].TagsByCategory["Type"])

	err = e.run(t, "-add-session", "42")
	require.ErrorIs(t, err, ErrInvalidApp)
	assert.Contains(t, err.Error(), community.ErrKeyNoWorkshop)
}

func TestListAndDeleteSessions(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, Components{})
	s := e.addSession(t)

	require.NoError(t, e.run(t, "-sessions"))
	assert.Contains(t, e.out.String(), "* "+s.ID)

	require.NoError(t, e.run(t, "-delete-session", s.ID))
	_, err := e.store.Get(s.ID)
	require.ErrorIs(t, err, sessions.ErrNotFound)

	require.ErrorIs(t, e.run(t, "-delete-session", s.ID), sessions.ErrNotFound)
}

func TestLogout(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, Components{})
	require.NoError(t, e.cfg.SaveCredentials(config.Auth{RefreshToken: "refresh-token-value", AccountName: "gabe"}))

	require.NoError(t, e.run(t, "-logout"))
	assert.True(t, e.cfg.Credentials().Empty())
}

func TestNativeCommands_Unavailable(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, Components{})
	e.addSession(t)

	require.ErrorIs(t, e.run(t, "-list"), ErrNativeUnavailable)
	require.ErrorIs(t, e.run(t, "-deps", "10"), ErrNativeUnavailable)
	require.ErrorIs(t, e.run(t, "-add-dep", "10:10"), ErrBadFlagValue)
}

func TestListItems(t *testing.T) {
	t.Parallel()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("png"))
	}))
	t.Cleanup(srv.Close)

	fake := mocks.NewFakeSteamworks(testSteamID)
	fake.AddItem(&mocks.FakeItem{
		PreviewURL: srv.URL + "/1.png",
		Details: steamworks.UGCDetails{
			ID:            900,
			Title:         "Castle Map",
			Tags:          "Map,Speedrun,Legacy",
			Visibility:    steamworks.VisibilityPublic,
			ConsumerAppID: steamworks.AppID(testAppID),
			Updated:       time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		},
	})
	rt := steamworks.NewRuntime(fake, clockwork.NewRealClock(), nil)
	svc := workshop.NewService(rt, workshop.Options{MetadataTimeout: 5 * time.Second})

	cache, err := previews.Open(filepath.Join(t.TempDir(), "previews.db"),
		httpclient.NewClientWithTimeout(5*time.Second), clockwork.NewRealClock())
	require.NoError(t, err)

	e := newTestEnv(t, Components{Workshop: svc, Previews: cache})
	t.Cleanup(e.app.Close)
	e.addSession(t)

	require.NoError(t, e.run(t, "-list"))
	out := e.out.String()
	assert.Contains(t, out, "900  Castle Map")
	assert.Contains(t, out, "public")
	assert.Contains(t, out, "tags: Map, Speedrun")
	assert.Contains(t, out, "unknown tags: Legacy")
	assert.Equal(t, steamworks.AppID(testAppID), rt.AppID())

	require.NoError(t, e.run(t, "-list"))
	assert.Equal(t, int32(1), hits.Load(), "previews are served from the cache")
}

const changelogPage = `<script>
changeLogs[0] = {"timestamp":1700000000,"change_description":"First","manifest_id":"111","language":0,"saved_snapshot":false,"snapshot_gamebranch_min":"","snapshot_gamebranch_max":"","accountid":42};
changeLogs[1] = {"timestamp":1700500000,"change_description":"Second","manifest_id":"","language":0,"saved_snapshot":false,"snapshot_gamebranch_min":"","snapshot_gamebranch_max":"","accountid":42};
</script>`

func TestChangelog(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, Components{
		Changelogs: versions.NewChangelogReader(pageFetcher{page: changelogPage}),
	})
	e.addSession(t)

	dir := e.app.Downloader.VersionFolder(testAppID, "item_77", 1700000000)
	require.NoError(t, e.fsh.CreateDirectoryStructure(map[string]any{
		dir: map[string]any{"item_77_1700000000.zip": "zip"},
	}))

	require.NoError(t, e.run(t, "-changelog", "77"))
	out := e.out.String()
	assert.Contains(t, out, "1700500000")
	assert.Contains(t, out, "[unavailable]")
	assert.Contains(t, out, "[downloaded]")
	assert.Less(t, bytes.Index(e.out.Bytes(), []byte("Second")), bytes.Index(e.out.Bytes(), []byte("First")))
}

func TestDownload_Errors(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, Components{
		Changelogs: versions.NewChangelogReader(pageFetcher{page: changelogPage}),
	})
	e.addSession(t)

	require.ErrorIs(t, e.run(t, "-download", "77:1"), ErrVersionNotFound)
	require.ErrorIs(t, e.run(t, "-download", "77:1700500000"), ErrNotDownloadable)
	require.ErrorIs(t, e.run(t, "-download", "77"), ErrBadFlagValue)
}

func TestUpload_Validation(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, Components{})
	e.addSession(t)

	err := e.run(t, "-upload", t.TempDir())
	require.ErrorIs(t, err, workshop.ErrInvalidRequest, "title is required")

	err = e.run(t, "-upload", t.TempDir(), "-title", "x", "-visibility", "everyone")
	require.ErrorIs(t, err, workshop.ErrInvalidRequest)

	err = e.run(t, "-upload", t.TempDir(), "-title", "x")
	require.ErrorIs(t, err, ErrNativeUnavailable, "a valid request needs steam")
}

func TestCustomTags(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, Components{})
	s := e.addSession(t)

	require.NoError(t, e.run(t, "-custom-tag", " Co-op "))
	require.ErrorIs(t, e.run(t, "-custom-tag", "co-op"), ErrTagUnchanged)
	got, err := e.store.Get(s.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Speedrun", "Co-op"}, got.CustomTags)

	require.NoError(t, e.run(t, "-remove-custom-tag", "SPEEDRUN"))
	require.ErrorIs(t, e.run(t, "-remove-custom-tag", "Speedrun"), ErrTagUnchanged)
	got, err = e.store.Get(s.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Co-op"}, got.CustomTags)
}

func newFakeService(t *testing.T, items ...*mocks.FakeItem) (*workshop.Service, *mocks.FakeSteamworks) {
	t.Helper()
	fake := mocks.NewFakeSteamworks(testSteamID)
	for _, item := range items {
		fake.AddItem(item)
	}
	rt := steamworks.NewRuntime(fake, clockwork.NewRealClock(), nil)
	return workshop.NewService(rt, workshop.Options{MetadataTimeout: 5 * time.Second}), fake
}

func TestAdoptOrphans(t *testing.T) {
	t.Parallel()
	svc, _ := newFakeService(t, &mocks.FakeItem{
		Details: steamworks.UGCDetails{
			ID:            900,
			Title:         "Castle Map",
			Tags:          "Map,Legacy,Hard Mode",
			ConsumerAppID: steamworks.AppID(testAppID),
		},
	})
	e := newTestEnv(t, Components{Workshop: svc})
	t.Cleanup(e.app.Close)
	s := e.addSession(t)

	require.NoError(t, e.run(t, "-adopt-orphans", "900"))
	assert.Contains(t, e.out.String(), "Kept 2 unknown tags")
	got, err := e.store.Get(s.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Speedrun", "Legacy", "Hard Mode"}, got.CustomTags)

	require.NoError(t, e.run(t, "-adopt-orphans", "900"))
	assert.Contains(t, e.out.String(), "Kept 0 unknown tags")

	require.ErrorIs(t, e.run(t, "-adopt-orphans", "1"), ErrItemNotFound)
}

func TestTagCache_ShownAndClearedWithLastSession(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, Components{})
	e.app.Tags = community.NewTagCatalog(community.NewClient(nil), e.fs,
		clockwork.NewRealClock(), "/data/tags", 0)
	s := e.addSession(t)

	cache := "/data/tags/1162750.toml"
	require.NoError(t, afero.WriteFile(e.fs, cache,
		[]byte("updated_at = 2026-02-01T00:00:00Z\n\n[tags]\nType = ['Map']\n"), 0o600))
	_, ok := e.app.Tags.CachedAt(testAppID)
	require.True(t, ok)

	require.NoError(t, e.run(t, "-refresh-tags"))
	assert.Contains(t, e.out.String(), "Cached at ")

	other := sessions.New(testAppID, "Test Game", time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, e.store.Save(other))

	require.NoError(t, e.run(t, "-delete-session", s.ID))
	exists, err := afero.Exists(e.fs, cache)
	require.NoError(t, err)
	assert.True(t, exists, "another session still uses the game")

	require.NoError(t, e.run(t, "-delete-session", other.ID))
	exists, err = afero.Exists(e.fs, cache)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestUpload_SkipsUnchangedContent(t *testing.T) {
	t.Parallel()
	svc, fake := newFakeService(t, &mocks.FakeItem{
		Details: steamworks.UGCDetails{
			ID:            900,
			Title:         "Castle Map",
			ConsumerAppID: steamworks.AppID(testAppID),
		},
	})
	e := newTestEnv(t, Components{Workshop: svc})
	t.Cleanup(e.app.Close)

	content := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(content, "map.dat"), []byte("v1"), 0o600))

	s := sessions.New(testAppID, "Test Game", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, s.RememberContentFolder(900, content))
	require.NoError(t, e.store.Save(s))
	require.NoError(t, e.store.SetActive(s.ID))

	require.NoError(t, e.run(t, "-upload", content, "-item", "900", "-title", "Castle Map v2"))
	assert.Contains(t, e.out.String(), "Content unchanged")
	item, ok := fake.Item(900)
	require.True(t, ok)
	assert.Equal(t, "Castle Map v2", item.Details.Title)
	assert.Empty(t, item.Details.FileName, "unchanged content is not resubmitted")

	require.NoError(t, os.WriteFile(filepath.Join(content, "extra.dat"), []byte("v2"), 0o600))
	require.NoError(t, e.run(t, "-upload", content, "-item", "900"))
	item, ok = fake.Item(900)
	require.True(t, ok)
	assert.Equal(t, content, item.Details.FileName)

	got, err := e.store.Get(s.ID)
	require.NoError(t, err)
	fi, ok := got.ContentFolder(900)
	require.True(t, ok)
	assert.Equal(t, int64(4), fi.Size)
}
