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
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const changelogURL = "https://steamcommunity.com/sharedfiles/filedetails/changelog/%d"

var changelogRecord = regexp.MustCompile(`(?s)changeLogs\[\d+\]\s*=\s*(\{"timestamp".*?"accountid":\d+\});`)

// ChangelogEntry is one published revision of a workshop item.
type ChangelogEntry struct {
	Description   string `json:"change_description"`
	ManifestID    string `json:"manifest_id"`
	BranchMin     string `json:"snapshot_gamebranch_min"`
	BranchMax     string `json:"snapshot_gamebranch_max"`
	Timestamp     int64  `json:"timestamp"`
	AccountID     int64  `json:"accountid"`
	Language      int    `json:"language"`
	SavedSnapshot bool   `json:"saved_snapshot"`
	Downloaded    bool   `json:"-"`
}

// Downloadable reports whether the revision has content that can be
// fetched.
func (e ChangelogEntry) Downloadable() bool {
	return e.ManifestID != ""
}

func (e ChangelogEntry) HasBranches() bool {
	return e.BranchMin != "" || e.BranchMax != ""
}

func (e ChangelogEntry) Time() time.Time {
	return time.Unix(e.Timestamp, 0)
}

// ChangelogReader reads an item's public change history.
type ChangelogReader struct {
	src Fetcher
}

func NewChangelogReader(src Fetcher) *ChangelogReader {
	return &ChangelogReader{src: src}
}

// Changelogs returns the item's revisions, newest first. Any failure
// yields an empty list.
func (r *ChangelogReader) Changelogs(ctx context.Context, itemID uint64) []ChangelogEntry {
	url := fmt.Sprintf(changelogURL, itemID)
	page, err := r.src.Fetch(ctx, url)
	if err != nil {
		log.Error().Err(err).Uint64("item", itemID).Msg("failed to fetch changelog")
		return []ChangelogEntry{}
	}

	entries := ParseChangelog(page)
	log.Debug().Uint64("item", itemID).Int("entries", len(entries)).Msg("read changelog")
	return entries
}

// ParseChangelog extracts entries from a changelog page. Structured
// records embedded in scripts are preferred; pages without them fall back
// to the rendered history blocks, which carry no manifest. A page whose
// records are all malformed yields no entries.
func ParseChangelog(page string) []ChangelogEntry {
	entries := make([]ChangelogEntry, 0)
	matches := changelogRecord.FindAllStringSubmatch(page, -1)
	for _, m := range matches {
		raw := strings.ReplaceAll(m[1], `\/`, "/")
		var entry ChangelogEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			log.Warn().Err(err).Msg("skipping malformed changelog record")
			continue
		}
		entries = append(entries, entry)
	}

	if len(matches) == 0 {
		entries = parseChangelogHTML(page)
	}

	slices.SortStableFunc(entries, func(a, b ChangelogEntry) int {
		return cmp.Compare(b.Timestamp, a.Timestamp)
	})
	return entries
}

func parseChangelogHTML(page string) []ChangelogEntry {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		log.Warn().Err(err).Msg("failed to parse changelog page")
		return []ChangelogEntry{}
	}

	entries := make([]ChangelogEntry, 0)
	for n := range doc.Descendants() {
		if n.DataAtom != atom.Div || !hasClass(n, "changeLogCtn") {
			continue
		}
		p := firstParagraphWithID(n)
		if p == nil {
			continue
		}
		ts, err := strconv.ParseInt(attr(p, "id"), 10, 64)
		if err != nil {
			continue
		}
		entries = append(entries, ChangelogEntry{
			Timestamp:   ts,
			Description: strings.TrimSpace(innerHTML(p)),
		})
	}
	return entries
}

func firstParagraphWithID(root *html.Node) *html.Node {
	for n := range root.Descendants() {
		if n.DataAtom == atom.P && attr(n, "id") != "" {
			return n
		}
	}
	return nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	return slices.Contains(strings.Fields(attr(n, "class")), class)
}

func innerHTML(n *html.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&sb, c); err != nil {
			return sb.String()
		}
	}
	return sb.String()
}
