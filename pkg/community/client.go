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

// Package community reads public steamcommunity.com workshop pages: AppId
// validation and the tag taxonomy of a game's workshop.
package community

import (
	"context"
	"fmt"
	"time"

	"github.com/ZaparooProject/zaparoo-workshop/pkg/shared/httpclient"
	"golang.org/x/time/rate"
)

const (
	// BaseURL is the community site root.
	BaseURL = "https://steamcommunity.com"

	// RequestsPerMinute limits page fetches shared by all readers.
	RequestsPerMinute = 30
	// BurstSize allows a short run of requests, such as validating an AppId
	// and then fetching its tags.
	BurstSize = 3
)

// Client fetches workshop pages with a shared rate limit.
type Client struct {
	http    *httpclient.Client
	limiter *rate.Limiter
	baseURL string
}

// NewClient creates a client using hc. A nil hc gets a retrying client
// with the default web timeout.
func NewClient(hc *httpclient.Client) *Client {
	if hc == nil {
		hc = httpclient.NewRetryingClient(httpclient.DefaultTimeoutSeconds*time.Second, httpclient.DefaultRetries)
	}
	return &Client{
		http:    hc,
		limiter: rate.NewLimiter(rate.Limit(float64(RequestsPerMinute)/60.0), BurstSize),
		baseURL: BaseURL,
	}
}

// WithBaseURL points the client at another host. Used by tests.
func (c *Client) WithBaseURL(base string) *Client {
	c.baseURL = base
	return c
}

// WorkshopURL returns the public workshop page for appID.
func (c *Client) WorkshopURL(appID uint32) string {
	return fmt.Sprintf("%s/app/%d/workshop/", c.baseURL, appID)
}

func (c *Client) workshopPage(ctx context.Context, appID uint32) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}
	return c.http.GetString(ctx, c.WorkshopURL(appID)) //nolint:wrapcheck // already wrapped
}
