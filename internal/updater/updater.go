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

// Package updater checks GitHub releases for a newer build of the app.
package updater

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/creativeprojects/go-selfupdate"
	"github.com/rs/zerolog/log"
)

const (
	Repository   = "ZaparooProject/zaparoo-workshop"
	checkTimeout = 10 * time.Second
)

var ErrDevBuild = errors.New("development builds are not checked for updates")

type Result struct {
	Version   string
	URL       string
	Notes     string
	Available bool
}

type detectFunc func(ctx context.Context) (*selfupdate.Release, bool, error)

type Checker struct {
	detect detectFunc
}

func NewChecker() (*Checker, error) {
	source, err := selfupdate.NewGitHubSource(selfupdate.GitHubConfig{})
	if err != nil {
		return nil, fmt.Errorf("failed to create release source: %w", err)
	}
	up, err := selfupdate.NewUpdater(selfupdate.Config{
		Source:    source,
		Validator: &selfupdate.ChecksumValidator{UniqueFilename: "checksums.txt"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create updater: %w", err)
	}
	return &Checker{
		detect: func(ctx context.Context) (*selfupdate.Release, bool, error) {
			//nolint:wrapcheck // wrapped by Check
			return up.DetectLatest(ctx, selfupdate.ParseSlug(Repository))
		},
	}, nil
}

func isDevVersion(v string) bool {
	v = strings.TrimPrefix(strings.TrimSpace(v), "v")
	return v == "" || v == "dev" || strings.HasSuffix(v, "-dev")
}

// Check compares current against the latest published release.
func (c *Checker) Check(ctx context.Context, current string) (Result, error) {
	if isDevVersion(current) {
		return Result{}, ErrDevBuild
	}

	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	rel, found, err := c.detect(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to detect latest release: %w", err)
	}
	if !found || rel == nil {
		log.Debug().Msg("no published release found")
		return Result{}, nil
	}

	return Result{
		Version:   rel.Version(),
		URL:       rel.URL,
		Notes:     rel.ReleaseNotes,
		Available: !rel.LessOrEqual(current),
	}, nil
}

// CheckAndLog runs Check and logs the outcome. Failures only warn.
func (c *Checker) CheckAndLog(ctx context.Context, current string) Result {
	res, err := c.Check(ctx, current)
	switch {
	case errors.Is(err, ErrDevBuild):
		log.Debug().Msg(err.Error())
	case err != nil:
		log.Warn().Err(err).Msg("update check failed")
	case res.Available:
		log.Info().Str("version", res.Version).Str("url", res.URL).Msg("update available")
	default:
		log.Debug().Str("version", current).Msg("up to date")
	}
	return res
}
