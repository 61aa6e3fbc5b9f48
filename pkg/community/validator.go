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
	"net"
	"net/url"
	"regexp"
	"strings"

	"github.com/ZaparooProject/zaparoo-workshop/pkg/shared/httpclient"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"
)

// Validation error keys, matching the localized message keys.
const (
	ErrKeyInvalidAppID = "InvalidAppId"
	ErrKeyNoWorkshop   = "NoWorkshop"
	ErrKeyNetwork      = "NetworkError"
	ErrKeyUnknown      = "UnknownError"
)

var workshopMarkers = []string{
	"workshopBrowseItems",
	"browseTitle",
	"Parcourir par tag",
	"Browse by tag",
}

var (
	appHubName = regexp.MustCompile(`(?i)<div\s+class="apphub_AppName[^"]*">([^<]+)</div>`)
	titleEN    = regexp.MustCompile(`(?is)<title>Steam Workshop\s*::\s*(.+?)</title>`)
	titleFR    = regexp.MustCompile(`(?is)<title>Atelier Steam\s*::\s*(.+?)</title>`)
)

// Result is the outcome of validating an AppId.
type Result struct {
	GameName string
	ErrorKey string
	Message  string
	AppID    uint32
	Valid    bool
}

// Validator checks that an AppId has a public workshop.
type Validator struct {
	client *Client
}

func NewValidator(client *Client) *Validator {
	return &Validator{client: client}
}

// Validate fetches the workshop page of appID and classifies it. It keeps
// no state, so callers may retry freely.
func (v *Validator) Validate(ctx context.Context, appID uint32) Result {
	log.Debug().Uint32("appid", appID).Msg("validating appid")

	page, err := v.client.workshopPage(ctx, appID)
	if err != nil {
		return classifyError(appID, err)
	}

	if !hasWorkshopMarker(page) {
		log.Warn().Uint32("appid", appID).Msg("appid has no workshop")
		return Result{AppID: appID, ErrorKey: ErrKeyNoWorkshop}
	}

	name := ExtractGameName(page)
	log.Info().Uint32("appid", appID).Str("game", name).Msg("appid validated")
	return Result{AppID: appID, GameName: name, Valid: true}
}

func classifyError(appID uint32, err error) Result {
	var statusErr *httpclient.StatusError
	var urlErr *url.Error
	var netErr net.Error
	switch {
	case errors.As(err, &statusErr):
		log.Warn().Uint32("appid", appID).Int("status", statusErr.Code).Msg("appid validation failed")
		return Result{AppID: appID, ErrorKey: ErrKeyInvalidAppID}
	case errors.As(err, &urlErr), errors.As(err, &netErr),
		errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		log.Error().Err(err).Uint32("appid", appID).Msg("network error validating appid")
		return Result{AppID: appID, ErrorKey: ErrKeyNetwork, Message: err.Error()}
	default:
		log.Error().Err(err).Uint32("appid", appID).Msg("error validating appid")
		return Result{AppID: appID, ErrorKey: ErrKeyUnknown, Message: err.Error()}
	}
}

func hasWorkshopMarker(page string) bool {
	for _, m := range workshopMarkers {
		if strings.Contains(page, m) {
			return true
		}
	}
	return false
}

// ExtractGameName finds the game name on a workshop page. The app hub
// heading wins over the English title, which wins over the French one.
func ExtractGameName(page string) string {
	for _, re := range []*regexp.Regexp{appHubName, titleEN, titleFR} {
		if m := re.FindStringSubmatch(page); m != nil {
			return html.UnescapeString(strings.TrimSpace(m[1]))
		}
	}
	log.Warn().Msg("could not extract game name from workshop page")
	return ""
}
