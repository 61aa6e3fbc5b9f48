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

// Package sessions manages workshop sessions: one profile per game AppId,
// persisted as one record per session, with exactly one active at a time.
package sessions

import (
	"fmt"
	"io/fs"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charlievieth/fastwalk"
	"github.com/google/uuid"
)

// FileInfo remembers a local file or folder used for an item, for change
// detection on the next upload.
type FileInfo struct {
	LastModified time.Time `toml:"last_modified"`
	Path         string    `toml:"path"`
	Size         int64     `toml:"size"`
}

// Changed reports whether the file on disk no longer matches the
// remembered size and modification time.
func (fi FileInfo) Changed() (bool, error) {
	cur, err := statPath(fi.Path)
	if err != nil {
		return false, err
	}
	return cur.Size != fi.Size || !cur.LastModified.Equal(fi.LastModified), nil
}

// Session is a workshop profile bound to one game.
type Session struct {
	CreatedAt       time.Time           `toml:"created_at"`
	LastUsedAt      time.Time           `toml:"last_used_at"`
	TagsLastUpdated time.Time           `toml:"tags_last_updated"`
	TagsByCategory  map[string][]string `toml:"tags_by_category"`
	ContentFolders  map[string]FileInfo `toml:"content_folders"`
	PreviewImages   map[string]FileInfo `toml:"preview_images"`
	ID              string              `toml:"id" validate:"required,uuid"`
	Name            string              `toml:"name" validate:"required"`
	GameName        string              `toml:"game_name"`
	GameIconURL     string              `toml:"game_icon_url"`
	CustomTags      []string            `toml:"custom_tags"`
	AppID           uint32              `toml:"app_id" validate:"required"`
	Active          bool                `toml:"-"`
}

// New creates a session for appID named after the game.
func New(appID uint32, gameName string, now time.Time) *Session {
	return &Session{
		ID:             uuid.New().String(),
		Name:           gameName,
		AppID:          appID,
		GameName:       gameName,
		TagsByCategory: make(map[string][]string),
		ContentFolders: make(map[string]FileInfo),
		PreviewImages:  make(map[string]FileInfo),
		CreatedAt:      now,
		LastUsedAt:     now,
	}
}

func (s *Session) normalize() {
	if s.TagsByCategory == nil {
		s.TagsByCategory = make(map[string][]string)
	}
	if s.ContentFolders == nil {
		s.ContentFolders = make(map[string]FileInfo)
	}
	if s.PreviewImages == nil {
		s.PreviewImages = make(map[string]FileInfo)
	}
}

// DisplayName is the game name when known, otherwise the session name.
func (s *Session) DisplayName() string {
	if s.GameName != "" {
		return s.GameName
	}
	return s.Name
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	c := *s
	c.TagsByCategory = make(map[string][]string, len(s.TagsByCategory))
	for k, v := range s.TagsByCategory {
		c.TagsByCategory[k] = slices.Clone(v)
	}
	c.ContentFolders = maps.Clone(s.ContentFolders)
	c.PreviewImages = maps.Clone(s.PreviewImages)
	c.CustomTags = slices.Clone(s.CustomTags)
	c.normalize()
	return &c
}

func itemKey(itemID uint64) string {
	return strconv.FormatUint(itemID, 10)
}

// RememberContentFolder records path as the content folder of itemID.
// The stored size is the total of all files under it.
func (s *Session) RememberContentFolder(itemID uint64, path string) error {
	info, err := statPath(path)
	if err != nil {
		return err
	}
	s.normalize()
	s.ContentFolders[itemKey(itemID)] = info
	return nil
}

// RememberPreview records path as the preview image of itemID.
func (s *Session) RememberPreview(itemID uint64, path string) error {
	info, err := statPath(path)
	if err != nil {
		return err
	}
	s.normalize()
	s.PreviewImages[itemKey(itemID)] = info
	return nil
}

func (s *Session) ContentFolder(itemID uint64) (FileInfo, bool) {
	fi, ok := s.ContentFolders[itemKey(itemID)]
	return fi, ok
}

func (s *Session) Preview(itemID uint64) (FileInfo, bool) {
	fi, ok := s.PreviewImages[itemKey(itemID)]
	return fi, ok
}

// Forget drops the remembered files of itemID.
func (s *Session) Forget(itemID uint64) {
	delete(s.ContentFolders, itemKey(itemID))
	delete(s.PreviewImages, itemKey(itemID))
}

func (s *Session) customTagIndex(tag string) int {
	return slices.IndexFunc(s.CustomTags, func(t string) bool {
		return strings.EqualFold(t, tag)
	})
}

// AddCustomTag adds tag unless an equal tag, ignoring case, exists.
func (s *Session) AddCustomTag(tag string) bool {
	tag = strings.TrimSpace(tag)
	if tag == "" || s.customTagIndex(tag) >= 0 {
		return false
	}
	s.CustomTags = append(s.CustomTags, tag)
	return true
}

// RemoveCustomTag removes tag, ignoring case.
func (s *Session) RemoveCustomTag(tag string) bool {
	i := s.customTagIndex(strings.TrimSpace(tag))
	if i < 0 {
		return false
	}
	s.CustomTags = slices.Delete(s.CustomTags, i, i+1)
	return true
}

// AdoptOrphans turns item tags unknown to the session into custom tags and
// returns how many were added.
func (s *Session) AdoptOrphans(orphans []string) int {
	n := 0
	for _, tag := range orphans {
		if s.AddCustomTag(tag) {
			n++
		}
	}
	return n
}

func statPath(path string) (FileInfo, error) {
	st, err := os.Stat(path)
	if err != nil {
		return FileInfo{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	fi := FileInfo{Path: path, Size: st.Size(), LastModified: st.ModTime().UTC()}
	if st.IsDir() {
		size, err := FolderSize(path)
		if err != nil {
			return FileInfo{}, err
		}
		fi.Size = size
	}
	return fi, nil
}

// FolderSize sums the sizes of regular files under root.
func FolderSize(root string) (int64, error) {
	var total atomic.Int64
	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err //nolint:wrapcheck // wrapped by caller
		}
		total.Add(info.Size())
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to walk %s: %w", root, err)
	}
	return total.Load(), nil
}
