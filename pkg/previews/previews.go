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

// Package previews keeps downloaded Workshop preview images in a bbolt
// database so item lists can be shown again without refetching them.
package previews

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/ZaparooProject/zaparoo-workshop/pkg/shared/httpclient"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	bolt "go.etcd.io/bbolt"
)

const (
	BucketImages = "images"
	// MaxImageSize matches the largest preview Steam accepts.
	MaxImageSize  = 1 << 20
	DefaultMaxAge = 30 * 24 * time.Hour
	openTimeout   = time.Second
)

var (
	ErrNotFound  = errors.New("preview not cached")
	ErrTooLarge  = errors.New("preview image too large")
	ErrBadRecord = errors.New("corrupt preview record")
)

// Cache is safe for concurrent use; bbolt serializes writers.
type Cache struct {
	db     *bolt.DB
	client *httpclient.Client
	clock  clockwork.Clock
	MaxAge time.Duration
}

func Open(path string, client *httpclient.Client, clock clockwork.Clock) (*Cache, error) {
	db, err := bolt.Open(filepath.Clean(path), 0o600, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open preview cache: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(BucketImages))
		return err //nolint:wrapcheck // wrapped below
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create preview bucket: %w", err)
	}

	if client == nil {
		client = httpclient.NewRetryingClient(
			httpclient.DefaultTimeoutSeconds*time.Second, httpclient.DefaultRetries)
	}

	return &Cache{db: db, client: client, clock: clock, MaxAge: DefaultMaxAge}, nil
}

func (c *Cache) Close() error {
	if err := c.db.Close(); err != nil {
		return fmt.Errorf("failed to close preview cache: %w", err)
	}
	return nil
}

// record layout: big-endian unix nanoseconds of the fetch, then the image.
func encodeRecord(fetched time.Time, data []byte) []byte {
	buf := make([]byte, 8+len(data))
	binary.BigEndian.PutUint64(buf, uint64(fetched.UnixNano())) //nolint:gosec // post-1970 timestamps
	copy(buf[8:], data)
	return buf
}

func decodeRecord(v []byte) (time.Time, []byte, error) {
	if len(v) < 8 {
		return time.Time{}, nil, ErrBadRecord
	}
	ns := int64(binary.BigEndian.Uint64(v[:8])) //nolint:gosec // written by encodeRecord
	return time.Unix(0, ns), bytes.Clone(v[8:]), nil
}

// Get returns a cached image that is younger than MaxAge.
func (c *Cache) Get(url string) ([]byte, error) {
	var (
		fetched time.Time
		data    []byte
	)
	err := c.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(BucketImages)).Get([]byte(url))
		if v == nil {
			return ErrNotFound
		}
		var err error
		fetched, data, err = decodeRecord(v)
		return err
	})
	if err != nil {
		return nil, err //nolint:wrapcheck // sentinel errors
	}
	if c.MaxAge > 0 && c.clock.Since(fetched) >= c.MaxAge {
		return nil, ErrNotFound
	}
	return data, nil
}

func (c *Cache) Put(url string, data []byte) error {
	if len(data) > MaxImageSize {
		return ErrTooLarge
	}
	err := c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(BucketImages)).Put([]byte(url), encodeRecord(c.clock.Now(), data))
	})
	if err != nil {
		return fmt.Errorf("failed to store preview: %w", err)
	}
	return nil
}

// Image returns the preview at url, fetching and caching it on a miss.
func (c *Cache) Image(ctx context.Context, url string) ([]byte, error) {
	if data, err := c.Get(url); err == nil {
		return data, nil
	} else if !errors.Is(err, ErrNotFound) {
		log.Warn().Err(err).Str("url", url).Msg("dropping unreadable preview record")
	}

	resp, err := c.client.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("error closing preview response body")
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, &httpclient.StatusError{URL: url, Code: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxImageSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read preview: %w", err)
	}
	if err := c.Put(url, data); err != nil {
		return nil, err
	}
	return data, nil
}

// Prune removes expired and corrupt entries and reports how many went.
func (c *Cache) Prune() (int, error) {
	removed := 0
	err := c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(BucketImages))
		var stale [][]byte
		err := b.ForEach(func(k, v []byte) error {
			fetched, _, err := decodeRecord(v)
			if err != nil || (c.MaxAge > 0 && c.clock.Since(fetched) >= c.MaxAge) {
				stale = append(stale, bytes.Clone(k))
			}
			return nil
		})
		if err != nil {
			return err //nolint:wrapcheck // wrapped below
		}
		// deleting under ForEach skips keys
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err //nolint:wrapcheck // wrapped below
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("failed to prune preview cache: %w", err)
	}
	return removed, nil
}
