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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/ZaparooProject/zaparoo-workshop/pkg/config"
	"github.com/ZaparooProject/zaparoo-workshop/pkg/helpers/fsutil"
	"github.com/jonboulle/clockwork"
	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var ErrNoTagPanel = errors.New("workshop page has no tag panel")

type tagCacheEntry struct {
	UpdatedAt time.Time           `toml:"updated_at"`
	Tags      map[string][]string `toml:"tags"`
}

// TagCatalog fetches a workshop's tag taxonomy and caches it per AppId.
type TagCatalog struct {
	client *Client
	fs     afero.Fs
	clock  clockwork.Clock
	dir    string
	expiry time.Duration
}

// NewTagCatalog caches taxonomies under dir for expiry. A zero expiry uses
// the default of config.DefaultTagCacheDays.
func NewTagCatalog(
	client *Client,
	fs afero.Fs,
	clock clockwork.Clock,
	dir string,
	expiry time.Duration,
) *TagCatalog {
	if expiry <= 0 {
		expiry = config.DefaultTagCacheDays * 24 * time.Hour
	}
	return &TagCatalog{client: client, fs: fs, clock: clock, dir: dir, expiry: expiry}
}

func (c *TagCatalog) cachePath(appID uint32) string {
	return filepath.Join(c.dir, strconv.FormatUint(uint64(appID), 10)+".toml")
}

// Tags returns the category to tags map of appID. A fresh cached copy is
// used unless forceRefresh is set. Every successful scrape rewrites the
// cache.
func (c *TagCatalog) Tags(ctx context.Context, appID uint32, forceRefresh bool) (map[string][]string, error) {
	if !forceRefresh {
		if entry, ok := c.readCache(appID); ok && c.clock.Since(entry.UpdatedAt) < c.expiry {
			log.Debug().
				Uint32("appid", appID).
				Time("updated", entry.UpdatedAt).
				Msg("using cached tags")
			return entry.Tags, nil
		}
	}

	log.Info().Uint32("appid", appID).Msg("fetching workshop tags")
	page, err := c.client.workshopPage(ctx, appID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tags for %d: %w", appID, err)
	}

	tags, err := ParseTagPanel(page)
	if err != nil {
		return nil, fmt.Errorf("failed to parse tags for %d: %w", appID, err)
	}
	log.Info().Uint32("appid", appID).Int("categories", len(tags)).Msg("found workshop tags")

	c.writeCache(appID, tags)
	return tags, nil
}

func (c *TagCatalog) readCache(appID uint32) (tagCacheEntry, bool) {
	data, err := afero.ReadFile(c.fs, c.cachePath(appID))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Uint32("appid", appID).Msg("failed to read tag cache")
		}
		return tagCacheEntry{}, false
	}

	var entry tagCacheEntry
	if err := toml.Unmarshal(data, &entry); err != nil {
		log.Warn().Err(err).Uint32("appid", appID).Msg("invalid tag cache")
		return tagCacheEntry{}, false
	}
	if entry.Tags == nil {
		entry.Tags = make(map[string][]string)
	}
	return entry, true
}

func (c *TagCatalog) writeCache(appID uint32, tags map[string][]string) {
	data, err := toml.Marshal(tagCacheEntry{UpdatedAt: c.clock.Now().UTC(), Tags: tags})
	if err != nil {
		log.Warn().Err(err).Uint32("appid", appID).Msg("failed to encode tag cache")
		return
	}
	if err := fsutil.WriteFileAtomic(c.fs, c.cachePath(appID), data, 0o600); err != nil {
		log.Warn().Err(err).Uint32("appid", appID).Msg("failed to write tag cache")
		return
	}
	log.Debug().Uint32("appid", appID).Msg("tags cached")
}

// ClearCache removes the cached taxonomy of appID.
func (c *TagCatalog) ClearCache(appID uint32) error {
	err := c.fs.Remove(c.cachePath(appID))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to clear tag cache: %w", err)
	}
	return nil
}

// CachedAt reports when the cached taxonomy of appID was fetched.
func (c *TagCatalog) CachedAt(appID uint32) (time.Time, bool) {
	entry, ok := c.readCache(appID)
	if !ok {
		return time.Time{}, false
	}
	return entry.UpdatedAt, true
}

// ParseTagPanel reads the filter panel of a workshop page. Children are
// walked in document order: a title element opens a category and the
// filter options after it belong to that category.
func ParseTagPanel(page string) (map[string][]string, error) {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}

	var panel *html.Node
	for n := range doc.Descendants() {
		if n.DataAtom == atom.Div && hasClass(n, "panel") {
			panel = n
			break
		}
	}
	if panel == nil {
		return nil, ErrNoTagPanel
	}

	tags := make(map[string][]string)
	category := ""
	for el := range panel.ChildNodes() {
		if el.Type != html.ElementNode {
			continue
		}
		switch {
		case hasClass(el, "title"):
			category = strings.TrimSpace(textContent(el))
			if _, ok := tags[category]; category != "" && !ok {
				tags[category] = []string{}
			}
		case hasClass(el, "filterOption") && category != "":
			input := findTagInput(el)
			if input == nil {
				continue
			}
			value := strings.ReplaceAll(attr(input, "value"), "+", " ")
			if value != "" && !slices.Contains(tags[category], value) {
				tags[category] = append(tags[category], value)
			}
		}
	}
	return tags, nil
}

func findTagInput(root *html.Node) *html.Node {
	for n := range root.Descendants() {
		if n.DataAtom == atom.Input && hasClass(n, "inputTagsFilter") {
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

func textContent(n *html.Node) string {
	var sb strings.Builder
	for d := range n.Descendants() {
		if d.Type == html.TextNode {
			sb.WriteString(d.Data)
		}
	}
	return sb.String()
}
