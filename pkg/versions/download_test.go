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

package versions

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/ZaparooProject/zaparoo-workshop/pkg/shared/httpclient"
	"github.com/ZaparooProject/zaparoo-workshop/pkg/testing/mocks"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func newTestDownloader(t *testing.T, f Fetcher, fs afero.Fs, base string) (*Downloader, *mocks.MockCommandExecutor) {
	t.Helper()
	cmd := &mocks.MockCommandExecutor{}
	d := NewDownloader(f, httpclient.NewClientWithTimeout(5*time.Second), fs, cmd, base)
	return d, cmd
}

func TestResolveURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		body   string
		err    error
		want   string
		wantOK bool
	}{
		{name: "available", body: `{"success":1,"url":"https://cdn/x.zip","filename":"x.zip"}`, want: "https://cdn/x.zip", wantOK: true},
		{name: "not available", body: `{"success":0}`},
		{name: "success without url", body: `{"success":1}`},
		{name: "not json", body: `<html>`},
		{name: "fetch error", err: assert.AnError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := &stubFetcher{pages: map[string]string{}, err: tt.err}
			if tt.body != "" {
				f.pages["any"] = tt.body
			}
			d, _ := newTestDownloader(t, f, afero.NewMemMapFs(), "/data/workshop")

			got, ok := d.ResolveURL(context.Background(), 99, 1700000000, "555")
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveURL_Query(t *testing.T) {
	t.Parallel()

	f := &stubFetcher{pages: map[string]string{"any": `{"success":0}`}}
	d, _ := newTestDownloader(t, f, afero.NewMemMapFs(), "/data/workshop")
	d.ResolveURL(context.Background(), 99, 1700000000, "555")

	require.Len(t, f.urls, 1)
	assert.Equal(t,
		"https://steamcommunity.com/sharedfiles/downloadfile/?id=99&manifestid=555&revision=1700000000",
		f.urls[0])
}

func TestDownload_UnavailableWritesNothing(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	f := &stubFetcher{pages: map[string]string{"any": `{"success":0}`}}
	d, _ := newTestDownloader(t, f, fs, "/data/workshop")

	entry := ChangelogEntry{Timestamp: 1700000000, ManifestID: "555"}
	path, ok := d.Download(context.Background(), 480, 99, "My Mod", entry, nil)
	assert.False(t, ok)
	assert.Empty(t, path)

	exists, err := afero.DirExists(fs, "/data/workshop/480")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestDownload_WritesArchive(t *testing.T) {
	t.Parallel()

	payload := strings.Repeat("z", 20000)
	cdn := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
		_, _ = w.Write([]byte(payload))
	}))
	defer cdn.Close()

	base := t.TempDir()
	f := &stubFetcher{pages: map[string]string{"any": `{"success":1,"url":"` + cdn.URL + `/file"}`}}
	d, _ := newTestDownloader(t, f, afero.NewOsFs(), base)

	var fractions []float64
	entry := ChangelogEntry{Timestamp: 1700000000, ManifestID: "555"}
	path, ok := d.Download(context.Background(), 480, 99, "My Mod", entry, func(p float64) {
		fractions = append(fractions, p)
	})
	require.True(t, ok)
	assert.Equal(t, filepath.Join(base, "480", "My_Mod_1700000000", "My_Mod_1700000000.zip"), path)

	data, err := os.ReadFile(path) //nolint:gosec // test path
	require.NoError(t, err)
	assert.Len(t, data, len(payload))

	require.NotEmpty(t, fractions)
	assert.InDelta(t, 1.0, fractions[len(fractions)-1], 0.0001)
	for i := 1; i < len(fractions); i++ {
		assert.GreaterOrEqual(t, fractions[i], fractions[i-1])
	}

	assert.True(t, d.IsDownloaded(480, "My Mod", 1700000000))
	entries := []ChangelogEntry{{Timestamp: 1700000000}, {Timestamp: 1600000000}}
	d.MarkDownloaded(480, "My Mod", entries)
	assert.True(t, entries[0].Downloaded)
	assert.False(t, entries[1].Downloaded)
}

func TestDownload_MemoryFs(t *testing.T) {
	t.Parallel()

	cdn := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("archive"))
	}))
	defer cdn.Close()

	fs := afero.NewMemMapFs()
	f := &stubFetcher{pages: map[string]string{"any": `{"success":1,"url":"` + cdn.URL + `"}`}}
	d, _ := newTestDownloader(t, f, fs, "/missing-root/workshop")

	path, ok := d.Download(context.Background(), 480, 1, "Mod", ChangelogEntry{Timestamp: 1, ManifestID: "1"}, nil)
	require.True(t, ok)
	assert.Equal(t, filepath.Join("/missing-root/workshop", "480", "Mod_1", "Mod_1.zip"), path)

	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	assert.Equal(t, "archive", string(data))
	assert.True(t, d.IsDownloaded(480, "Mod", 1))

	_, err = os.Stat("/missing-root")
	assert.True(t, os.IsNotExist(err), "nothing is written to the real disk")
}

func TestDownload_CDNFailure(t *testing.T) {
	t.Parallel()

	cdn := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer cdn.Close()

	base := t.TempDir()
	f := &stubFetcher{pages: map[string]string{"any": `{"success":1,"url":"` + cdn.URL + `"}`}}
	d, _ := newTestDownloader(t, f, afero.NewOsFs(), base)

	_, ok := d.Download(context.Background(), 480, 99, "mod", ChangelogEntry{Timestamp: 5, ManifestID: "1"}, nil)
	assert.False(t, ok)
	assert.False(t, d.IsDownloaded(480, "mod", 5))
}

func TestIsDownloaded_RequiresZip(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	d, _ := newTestDownloader(t, &stubFetcher{}, fs, "/dl")
	folder := d.VersionFolder(480, "mod", 10)

	require.NoError(t, fs.MkdirAll(folder, 0o750))
	assert.False(t, d.IsDownloaded(480, "mod", 10))

	require.NoError(t, afero.WriteFile(fs, filepath.Join(folder, "notes.txt"), []byte("x"), 0o600))
	assert.False(t, d.IsDownloaded(480, "mod", 10))

	require.NoError(t, afero.WriteFile(fs, filepath.Join(folder, "mod_10.zip"), []byte("x"), 0o600))
	assert.True(t, d.IsDownloaded(480, "mod", 10))
}

func TestOpenFolder(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	d, cmd := newTestDownloader(t, &stubFetcher{}, fs, "/dl")

	err := d.OpenFolder(context.Background(), 480, "mod", 10)
	require.ErrorIs(t, err, ErrFolderMissing)
	cmd.AssertNotCalled(t, "Start", mock.Anything, mock.Anything, mock.Anything)

	folder := d.VersionFolder(480, "mod", 10)
	require.NoError(t, fs.MkdirAll(folder, 0o750))
	cmd.On("Start", mock.Anything, mock.Anything, []string{folder}).Return(nil)

	require.NoError(t, d.OpenFolder(context.Background(), 480, "mod", 10))
	cmd.AssertExpectations(t)
}

func TestSanitizeName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "My_Cool_Mod", SanitizeName("My Cool Mod"))
	assert.Equal(t, "a_b_c_d_e_f_g_h_i_", SanitizeName(`a"b<c>d|e:f*g?h\i/`))
	assert.Equal(t, "tab_here", SanitizeName("tab\there"))
	assert.Equal(t, strings.Repeat("é", MaxNameLength), SanitizeName(strings.Repeat("é", 80)))
}

func TestSanitizeName_Property(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		in := rapid.String().Draw(t, "name")
		out := SanitizeName(in)

		if n := utf8.RuneCountInString(out); n > MaxNameLength {
			t.Fatalf("sanitized name has %d runes", n)
		}
		if strings.ContainsAny(out, invalidNameChars+" ") {
			t.Fatalf("sanitized name %q contains an invalid character", out)
		}
		for _, r := range out {
			if r < 0x20 {
				t.Fatalf("sanitized name %q contains a control character", out)
			}
		}
		if utf8.RuneCountInString(in) <= MaxNameLength &&
			utf8.RuneCountInString(out) != utf8.RuneCountInString(in) {
			t.Fatalf("short name changed length: %q -> %q", in, out)
		}
	})
}
