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

package community

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ZaparooProject/zaparoo-workshop/pkg/shared/httpclient"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const workshopPage = `<html><head><title>Steam Workshop :: Songs of Syx</title></head>
<body>
<div class="apphub_AppName ellipsis">Songs of Syx</div>
<div class="browseTitle">Browse by tag</div>
<div class="panel">
  <div class="title">Type</div>
  <div class="filterOption"><input type="checkbox" class="inputTagsFilter" value="Mod"><label>Mod</label></div>
  <div class="filterOption"><input type="checkbox" class="inputTagsFilter" value="Trade+Goods"></div>
  <div class="filterOption"><input type="checkbox" class="inputTagsFilter" value="Mod"></div>
  <div class="title">
    Version
  </div>
  <div class="filterOption"><input type="checkbox" class="inputTagsFilter" value="V69"></div>
  <div class="filterOption"><span>no input</span></div>
</div>
</body></html>`

type pageServer struct {
	srv   *httptest.Server
	hits  atomic.Int32
	body  atomic.Value
	code  atomic.Int32
	paths chan string
}

func newPageServer(t *testing.T, body string, code int) *pageServer {
	t.Helper()
	ps := &pageServer{paths: make(chan string, 16)}
	ps.body.Store(body)
	ps.code.Store(int32(code))
	ps.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ps.hits.Add(1)
		select {
		case ps.paths <- r.URL.Path:
		default:
		}
		w.WriteHeader(int(ps.code.Load()))
		_, _ = w.Write([]byte(ps.body.Load().(string)))
	}))
	t.Cleanup(ps.srv.Close)
	return ps
}

func (ps *pageServer) client() *Client {
	return NewClient(httpclient.NewClientWithTimeout(5 * time.Second)).WithBaseURL(ps.srv.URL)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		body     string
		wantKey  string
		wantName string
		code     int
		valid    bool
	}{
		{name: "valid", body: workshopPage, code: 200, valid: true, wantName: "Songs of Syx"},
		{name: "not found", body: "missing", code: 404, wantKey: ErrKeyInvalidAppID},
		{name: "server error", body: "oops", code: 500, wantKey: ErrKeyInvalidAppID},
		{name: "no workshop", body: "<html><title>Welcome</title></html>", code: 200, wantKey: ErrKeyNoWorkshop},
		{
			name:     "french markers",
			body:     `<title>Atelier Steam :: Jeu &amp; Co</title><a>Parcourir par tag</a>`,
			code:     200,
			valid:    true,
			wantName: "Jeu & Co",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ps := newPageServer(t, tt.body, tt.code)

			res := NewValidator(ps.client()).Validate(context.Background(), 1162750)
			assert.Equal(t, tt.valid, res.Valid)
			assert.Equal(t, tt.wantKey, res.ErrorKey)
			assert.Equal(t, tt.wantName, res.GameName)
			assert.Equal(t, uint32(1162750), res.AppID)
			assert.Equal(t, "/app/1162750/workshop/", <-ps.paths)
		})
	}
}

func TestValidate_NetworkError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c := NewClient(httpclient.NewClientWithTimeout(2 * time.Second)).WithBaseURL(base)
	res := NewValidator(c).Validate(context.Background(), 10)
	assert.False(t, res.Valid)
	assert.Equal(t, ErrKeyNetwork, res.ErrorKey)
	assert.NotEmpty(t, res.Message)
}

func TestExtractGameName_Priority(t *testing.T) {
	t.Parallel()

	page := `<title>Steam Workshop :: Title Name</title>
<div class="apphub_AppName">Heading Name</div>
<title>Atelier Steam :: Nom</title>`
	assert.Equal(t, "Heading Name", ExtractGameName(page))

	assert.Equal(t, "Title Name", ExtractGameName(`<TITLE>Steam Workshop ::  Title Name </TITLE>`))
	assert.Equal(t, "Nom", ExtractGameName(`<title>Atelier Steam :: Nom</title>`))
	assert.Empty(t, ExtractGameName(`<title>Other</title>`))
}

func TestParseTagPanel(t *testing.T) {
	t.Parallel()

	tags, err := ParseTagPanel(workshopPage)
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{
		"Type":    {"Mod", "Trade Goods"},
		"Version": {"V69"},
	}, tags)

	_, err = ParseTagPanel("<html><body>nothing</body></html>")
	require.ErrorIs(t, err, ErrNoTagPanel)
}

func TestTagCatalog_CachesWithinExpiry(t *testing.T) {
	t.Parallel()

	ps := newPageServer(t, workshopPage, 200)
	fs := afero.NewMemMapFs()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	cat := NewTagCatalog(ps.client(), fs, clock, "/cache/tags", 0)

	first, err := cat.Tags(context.Background(), 480, false)
	require.NoError(t, err)
	second, err := cat.Tags(context.Background(), 480, false)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), ps.hits.Load())

	at, ok := cat.CachedAt(480)
	require.True(t, ok)
	assert.True(t, at.Equal(clock.Now()))

	exists, err := afero.Exists(fs, "/cache/tags/480.toml")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestTagCatalog_ExpiryAndForce(t *testing.T) {
	t.Parallel()

	ps := newPageServer(t, workshopPage, 200)
	clock := clockwork.NewFakeClock()
	cat := NewTagCatalog(ps.client(), afero.NewMemMapFs(), clock, "/tags", 24*time.Hour)
	ctx := context.Background()

	_, err := cat.Tags(ctx, 480, false)
	require.NoError(t, err)

	clock.Advance(23 * time.Hour)
	_, err = cat.Tags(ctx, 480, false)
	require.NoError(t, err)
	assert.Equal(t, int32(1), ps.hits.Load())

	_, err = cat.Tags(ctx, 480, true)
	require.NoError(t, err)
	assert.Equal(t, int32(2), ps.hits.Load())

	clock.Advance(25 * time.Hour)
	_, err = cat.Tags(ctx, 480, false)
	require.NoError(t, err)
	assert.Equal(t, int32(3), ps.hits.Load())
}

func TestTagCatalog_FailureKeepsOldCache(t *testing.T) {
	t.Parallel()

	ps := newPageServer(t, workshopPage, 200)
	clock := clockwork.NewFakeClock()
	cat := NewTagCatalog(ps.client(), afero.NewMemMapFs(), clock, "/tags", 0)
	ctx := context.Background()

	_, err := cat.Tags(ctx, 480, false)
	require.NoError(t, err)
	before, _ := cat.CachedAt(480)

	ps.code.Store(503)
	clock.Advance(time.Hour)
	_, err = cat.Tags(ctx, 480, true)
	require.Error(t, err)

	after, ok := cat.CachedAt(480)
	require.True(t, ok)
	assert.True(t, before.Equal(after))
}

func TestTagCatalog_ClearCache(t *testing.T) {
	t.Parallel()

	ps := newPageServer(t, workshopPage, 200)
	cat := NewTagCatalog(ps.client(), afero.NewMemMapFs(), clockwork.NewFakeClock(), "/tags", 0)

	require.NoError(t, cat.ClearCache(480))
	_, err := cat.Tags(context.Background(), 480, false)
	require.NoError(t, err)
	require.NoError(t, cat.ClearCache(480))

	_, ok := cat.CachedAt(480)
	assert.False(t, ok)
}
