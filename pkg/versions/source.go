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
	"errors"
)

var ErrNoChannel = errors.New("no web channel available")

// Fetcher returns the body of a GET request.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// AuthFetcher is a Fetcher backed by stored web credentials.
type AuthFetcher interface {
	Fetcher
	IsAuthenticated() bool
}

// availability is implemented by channels that can go offline.
type availability interface {
	Available() bool
}

// Source picks the web channel for community pages: the authenticated
// channel when it holds credentials, the native client otherwise.
type Source struct {
	Auth   AuthFetcher
	Native Fetcher
}

func (s Source) Fetch(ctx context.Context, url string) (string, error) {
	if s.Auth != nil && s.Auth.IsAuthenticated() {
		return s.Auth.Fetch(ctx, url) //nolint:wrapcheck // channel errors already carry the url
	}
	if s.Native != nil {
		if a, ok := s.Native.(availability); ok && !a.Available() {
			return "", ErrNoChannel
		}
		return s.Native.Fetch(ctx, url) //nolint:wrapcheck // channel errors already carry the url
	}
	return "", ErrNoChannel
}
