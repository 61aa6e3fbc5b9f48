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

package steamworks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ZaparooProject/zaparoo-workshop/pkg/config"
	"github.com/ZaparooProject/zaparoo-workshop/pkg/helpers/syncutil"
	"github.com/rs/zerolog/log"
)

// HTTPTimeout bounds one native HTTP request.
const HTTPTimeout = 30 * time.Second

var ErrHTTPFailed = errors.New("native http request failed")

// HTTPClient fetches pages through the Steam client's HTTP interface. The
// client attaches its own session to steamcommunity.com, which is enough
// for public pages without separate web credentials.
type HTTPClient struct {
	rt        *Runtime
	container CookieContainer
	mu        syncutil.Mutex
}

// NewHTTPClient creates a client that issues requests through rt.
func NewHTTPClient(rt *Runtime) *HTTPClient {
	return &HTTPClient{rt: rt}
}

// Available reports whether requests can be made.
func (c *HTTPClient) Available() bool {
	return c.rt.Ready()
}

func (c *HTTPClient) cookies(api API) CookieContainer {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.container == InvalidCookieContainer {
		c.container = api.CreateCookieContainer(true)
	}
	return c.container
}

// Fetch GETs url and returns the body. Success requires a completed
// request with status 200 and a non-empty body.
func (c *HTTPClient) Fetch(ctx context.Context, url string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	if !c.rt.Ready() {
		return "", ErrNotReady
	}
	pump := c.rt.Pump()

	req := InvalidHTTPRequest
	fut, err := pump.Issue(func(api API) APICall {
		req = api.CreateHTTPRequest(HTTPMethodGET, url)
		if req == InvalidHTTPRequest {
			return InvalidAPICall
		}
		if cookies := c.cookies(api); cookies != InvalidCookieContainer {
			api.SetHTTPRequestCookieContainer(req, cookies)
		}
		api.SetHTTPRequestHeader(req, "User-Agent", config.UserAgent)
		call, ok := api.SendHTTPRequest(req)
		if !ok {
			return InvalidAPICall
		}
		return call
	})
	defer func() {
		if req == InvalidHTTPRequest {
			return
		}
		if execErr := pump.Exec(func(api API) { api.ReleaseHTTPRequest(req) }); execErr != nil {
			log.Debug().Err(execErr).Msg("could not release native http request")
		}
	}()
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrHTTPFailed, url, err)
	}

	res, err := Await[HTTPCompleted](fut, HTTPTimeout)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrHTTPFailed, url, err)
	}
	if !res.Successful || res.Status != 200 || res.BodySize == 0 {
		return "", fmt.Errorf(
			"%w: %s: status %d, body %d bytes", ErrHTTPFailed, url, res.Status, res.BodySize,
		)
	}

	var body []byte
	var ok bool
	err = pump.Exec(func(api API) {
		body, ok = api.HTTPResponseBody(req, res.BodySize)
	})
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrHTTPFailed, url, err)
	}
	if !ok {
		return "", fmt.Errorf("%w: %s: body unavailable", ErrHTTPFailed, url)
	}
	return string(body), nil
}
