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

package previews

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ZaparooProject/zaparoo-workshop/pkg/shared/httpclient"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func openTestCache(t *testing.T) (*Cache, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(testNow)
	c, err := Open(filepath.Join(t.TempDir(), "previews.db"),
		httpclient.NewClientWithTimeout(5*time.Second), clock)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, clock
}

func TestPutGet(t *testing.T) {
	t.Parallel()
	c, clock := openTestCache(t)

	_, err := c.Get("https://img/1.png")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, c.Put("https://img/1.png", []byte{0x89, 'P', 'N', 'G'}))
	data, err := c.Get("https://img/1.png")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, data)

	clock.Advance(DefaultMaxAge)
	_, err = c.Get("https://img/1.png")
	require.ErrorIs(t, err, ErrNotFound, "entries expire after MaxAge")
}

func TestPut_TooLarge(t *testing.T) {
	t.Parallel()
	c, _ := openTestCache(t)

	err := c.Put("big", make([]byte, MaxImageSize+1))
	require.ErrorIs(t, err, ErrTooLarge)
}

func TestImage_FetchesOnce(t *testing.T) {
	t.Parallel()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if strings.HasSuffix(r.URL.Path, "missing.png") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("image-bytes"))
	}))
	t.Cleanup(srv.Close)
	c, _ := openTestCache(t)

	for range 3 {
		data, err := c.Image(context.Background(), srv.URL+"/preview.png")
		require.NoError(t, err)
		assert.Equal(t, "image-bytes", string(data))
	}
	assert.Equal(t, int32(1), hits.Load())

	_, err := c.Image(context.Background(), srv.URL+"/missing.png")
	var statusErr *httpclient.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.Code)
	_, err = c.Get(srv.URL + "/missing.png")
	require.ErrorIs(t, err, ErrNotFound, "failed fetches are not cached")
}

func TestPrune(t *testing.T) {
	t.Parallel()
	c, clock := openTestCache(t)

	require.NoError(t, c.Put("old-1", []byte("a")))
	require.NoError(t, c.Put("old-2", []byte("b")))
	clock.Advance(DefaultMaxAge - time.Hour)
	require.NoError(t, c.Put("fresh", []byte("c")))
	require.NoError(t, c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(BucketImages)).Put([]byte("corrupt"), []byte{1, 2})
	}))
	clock.Advance(2 * time.Hour)

	removed, err := c.Prune()
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	data, err := c.Get("fresh")
	require.NoError(t, err)
	assert.Equal(t, "c", string(data))
}

func TestOpen_Reopen(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "previews.db")
	clock := clockwork.NewFakeClockAt(testNow)

	c, err := Open(path, nil, clock)
	require.NoError(t, err)
	require.NoError(t, c.Put("k", []byte("v")))
	require.NoError(t, c.Close())

	c, err = Open(path, nil, clock)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	data, err := c.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(data))
}
