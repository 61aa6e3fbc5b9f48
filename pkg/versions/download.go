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
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ZaparooProject/zaparoo-workshop/pkg/helpers"
	"github.com/ZaparooProject/zaparoo-workshop/pkg/helpers/command"
	"github.com/ZaparooProject/zaparoo-workshop/pkg/shared/httpclient"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

const (
	downloadURL = "https://steamcommunity.com/sharedfiles/downloadfile/"

	// MaxNameLength caps sanitized item names in download paths.
	MaxNameLength = 50
)

var ErrFolderMissing = errors.New("version folder does not exist")

type downloadResponse struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
	Success  int    `json:"success"`
}

// Downloader fetches archived item revisions into the downloads
// directory, laid out as <base>/<appid>/<name>_<ts>/<name>_<ts>.zip.
type Downloader struct {
	src    Fetcher
	client *httpclient.Client
	fs     afero.Fs
	cmd    command.Executor
	base   string
	// ResolveBase overrides the download-link endpoint.
	ResolveBase string
}

// NewDownloader creates a downloader rooted at base. Content is streamed
// from signed CDN links with client, which needs no credentials.
func NewDownloader(
	src Fetcher,
	client *httpclient.Client,
	fs afero.Fs,
	cmd command.Executor,
	base string,
) *Downloader {
	return &Downloader{
		src:         src,
		client:      client,
		fs:          fs,
		cmd:         cmd,
		base:        base,
		ResolveBase: downloadURL,
	}
}

// ResolveURL asks the community site for a signed link to one revision.
// An unavailable revision is reported as false, never as an error.
func (d *Downloader) ResolveURL(
	ctx context.Context,
	itemID uint64,
	revision int64,
	manifestID string,
) (string, bool) {
	q := url.Values{}
	q.Set("id", strconv.FormatUint(itemID, 10))
	q.Set("revision", strconv.FormatInt(revision, 10))
	q.Set("manifestid", manifestID)
	reqURL := d.ResolveBase + "?" + q.Encode()
	log.Debug().Str("url", reqURL).Msg("resolving download url")

	body, err := d.src.Fetch(ctx, reqURL)
	if err != nil {
		log.Error().Err(err).Uint64("item", itemID).Msg("failed to get download url")
		return "", false
	}

	var resp downloadResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		log.Error().Err(err).Uint64("item", itemID).Msg("invalid download url response")
		return "", false
	}
	if resp.Success != 1 || resp.URL == "" {
		log.Warn().
			Uint64("item", itemID).
			Int64("revision", revision).
			Int("success", resp.Success).
			Msg("download url not available")
		return "", false
	}

	log.Info().Uint64("item", itemID).Int64("revision", revision).Msg("got download url")
	return resp.URL, true
}

// VersionFolder is the directory holding one downloaded revision.
func (d *Downloader) VersionFolder(appID uint32, modName string, ts int64) string {
	return filepath.Join(d.base, strconv.FormatUint(uint64(appID), 10), versionName(modName, ts))
}

func versionName(modName string, ts int64) string {
	return SanitizeName(modName) + "_" + strconv.FormatInt(ts, 10)
}

// Download stores the revision described by entry and returns the archive
// path. progress receives fractions in [0, 1] and a final 1.
func (d *Downloader) Download(
	ctx context.Context,
	appID uint32,
	itemID uint64,
	modName string,
	entry ChangelogEntry,
	progress func(float64),
) (string, bool) {
	link, ok := d.ResolveURL(ctx, itemID, entry.Timestamp, entry.ManifestID)
	if !ok {
		return "", false
	}

	folder := d.VersionFolder(appID, modName, entry.Timestamp)
	if err := d.fs.MkdirAll(folder, 0o750); err != nil {
		log.Error().Err(err).Str("path", folder).Msg("failed to create version folder")
		return "", false
	}
	path := filepath.Join(folder, versionName(modName, entry.Timestamp)+".zip")
	log.Info().Str("path", path).Msg("downloading version")

	var written int64
	err := d.client.DownloadFile(ctx, httpclient.DownloadFileArgs{
		Fs:         d.fs,
		URL:        link,
		OutputPath: path,
		TempPath:   path + ".part",
		Progress: func(n, total int64) {
			written = n
			if total > 0 && progress != nil {
				progress(float64(n) / float64(total))
			}
		},
	})
	if err != nil {
		log.Error().Err(err).Uint64("item", itemID).Msg("failed to download version")
		return "", false
	}

	if progress != nil {
		progress(1)
	}
	log.Info().Str("path", path).Int64("bytes", written).Msg("download complete")
	return path, true
}

// IsDownloaded reports whether the revision folder holds an archive.
func (d *Downloader) IsDownloaded(appID uint32, modName string, ts int64) bool {
	matches, err := afero.Glob(d.fs, filepath.Join(d.VersionFolder(appID, modName, ts), "*.zip"))
	return err == nil && len(matches) > 0
}

// MarkDownloaded sets the Downloaded flag on every entry already present
// on disk.
func (d *Downloader) MarkDownloaded(appID uint32, modName string, entries []ChangelogEntry) {
	for i := range entries {
		entries[i].Downloaded = d.IsDownloaded(appID, modName, entries[i].Timestamp)
	}
}

// OpenFolder shows a downloaded revision in the file manager.
func (d *Downloader) OpenFolder(ctx context.Context, appID uint32, modName string, ts int64) error {
	folder := d.VersionFolder(appID, modName, ts)
	info, err := d.fs.Stat(folder)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrFolderMissing, folder)
	}
	return helpers.OpenFolder(ctx, d.cmd, folder) //nolint:wrapcheck // already wrapped
}

const invalidNameChars = `"<>|:*?\/`

// SanitizeName makes s safe as a path component on every platform.
// Reserved and control characters and spaces become underscores, and the
// result is cut to MaxNameLength runes.
func SanitizeName(s string) string {
	var sb strings.Builder
	n := 0
	for _, r := range s {
		if n == MaxNameLength {
			break
		}
		switch {
		case r < 0x20, r == ' ', strings.ContainsRune(invalidNameChars, r):
			sb.WriteRune('_')
		default:
			sb.WriteRune(r)
		}
		n++
	}
	return sb.String()
}
