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

package workshop

import (
	"fmt"
	"strings"
	"time"

	"github.com/ZaparooProject/zaparoo-workshop/pkg/steamworks"
	"github.com/ZaparooProject/zaparoo-workshop/pkg/versions"
)

// Item is a published Workshop item as listed for the current user. Items
// are rebuilt on every list and never persisted.
type Item struct {
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Title         string
	Description   string
	PreviewURL    string
	ContentFolder string
	Tags          []string
	Versions      []versions.ChangelogEntry
	ID            steamworks.PublishedFileID
	OwnerID       uint64
	Visibility    steamworks.Visibility
	IsOwner       bool
}

// URL is the item's public Workshop page.
func (i Item) URL() string {
	return ItemURL(i.ID)
}

// ItemURL returns the Workshop page of an item id.
func ItemURL(id steamworks.PublishedFileID) string {
	return fmt.Sprintf("https://steamcommunity.com/sharedfiles/filedetails/?id=%d", id)
}

func newItem(d steamworks.UGCDetails, previewURL string, steamID uint64) Item {
	return Item{
		ID:          d.ID,
		Title:       d.Title,
		Description: d.Description,
		PreviewURL:  previewURL,
		Visibility:  MapVisibility(d.Visibility),
		Tags:        SplitTags(d.Tags),
		CreatedAt:   d.Created,
		UpdatedAt:   d.Updated,
		OwnerID:     d.OwnerID,
		IsOwner:     steamID != 0 && d.OwnerID == steamID,
	}
}

// SplitTags splits the native comma-delimited tag field.
func SplitTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// MapVisibility normalizes a native visibility; unknown values map to
// private.
func MapVisibility(v steamworks.Visibility) steamworks.Visibility {
	switch v {
	case steamworks.VisibilityPublic, steamworks.VisibilityFriendsOnly,
		steamworks.VisibilityPrivate, steamworks.VisibilityUnlisted:
		return v
	default:
		return steamworks.VisibilityPrivate
	}
}

// ParseVisibility parses a visibility name as accepted on the command line.
func ParseVisibility(s string) (steamworks.Visibility, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "public":
		return steamworks.VisibilityPublic, nil
	case "friends", "friendsonly", "friends-only":
		return steamworks.VisibilityFriendsOnly, nil
	case "private":
		return steamworks.VisibilityPrivate, nil
	case "unlisted":
		return steamworks.VisibilityUnlisted, nil
	default:
		return steamworks.VisibilityPrivate, fmt.Errorf("%w: unknown visibility %q", ErrInvalidRequest, s)
	}
}

// UploadProgress reports the phase and byte counts of an item upload.
type UploadProgress struct {
	Status    string
	Processed uint64
	Total     uint64
}

// Percent returns Processed as a percentage of Total, or 0 when Total is 0.
func (p UploadProgress) Percent() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Processed) / float64(p.Total) * 100
}

// DependencyInfo is a required item of a parent item.
type DependencyInfo struct {
	Title      string
	PreviewURL string
	ID         steamworks.PublishedFileID
	Valid      bool
	// Removing is set by callers while a removal is in flight.
	Removing bool
}

// URL is the dependency's Workshop page.
func (d DependencyInfo) URL() string {
	return ItemURL(d.ID)
}
