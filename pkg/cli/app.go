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

// Package cli wires the workshop components together and runs the
// command line actions against them.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ZaparooProject/zaparoo-workshop/internal/telemetry"
	"github.com/ZaparooProject/zaparoo-workshop/internal/updater"
	"github.com/ZaparooProject/zaparoo-workshop/pkg/community"
	"github.com/ZaparooProject/zaparoo-workshop/pkg/config"
	"github.com/ZaparooProject/zaparoo-workshop/pkg/helpers"
	"github.com/ZaparooProject/zaparoo-workshop/pkg/helpers/command"
	"github.com/ZaparooProject/zaparoo-workshop/pkg/previews"
	"github.com/ZaparooProject/zaparoo-workshop/pkg/sessions"
	"github.com/ZaparooProject/zaparoo-workshop/pkg/shared/httpclient"
	"github.com/ZaparooProject/zaparoo-workshop/pkg/steam"
	"github.com/ZaparooProject/zaparoo-workshop/pkg/steamworks"
	"github.com/ZaparooProject/zaparoo-workshop/pkg/versions"
	"github.com/ZaparooProject/zaparoo-workshop/pkg/webauth"
	"github.com/ZaparooProject/zaparoo-workshop/pkg/workshop"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

var ErrNativeUnavailable = errors.New("steam is not available")

// UpdateChecker reports newer releases.
type UpdateChecker interface {
	CheckAndLog(ctx context.Context, current string) updater.Result
}

// Components are the services an App runs commands against. Tags,
// Workshop, Previews and Updates may be nil when unavailable.
type Components struct {
	Sessions        *sessions.Manager
	Tags            *community.TagCatalog
	Auth            *webauth.Channel
	Workshop        *workshop.Service
	Changelogs      *versions.ChangelogReader
	Downloader      *versions.Downloader
	Previews        *previews.Cache
	Updates         UpdateChecker
	FS              afero.Fs
	CheckForUpdates bool
}

type App struct {
	out io.Writer
	Components
	session *sessions.Context
}

func NewApp(out io.Writer, c Components) *App {
	return &App{out: out, Components: c}
}

func (a *App) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(a.out, format, args...)
}

// Close shuts down the native runtime and releases caches.
func (a *App) Close() {
	a.shutdownNative()
	if a.Previews != nil {
		if err := a.Previews.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing preview cache")
		}
	}
}

func (a *App) shutdownNative() {
	if a.Workshop != nil {
		a.Workshop.Shutdown()
	}
}

// sessionContext resolves the process session once.
func (a *App) sessionContext(ctx context.Context) (sessions.Context, error) {
	if a.session != nil {
		return *a.session, nil
	}
	sctx, err := a.Sessions.Bootstrap(ctx)
	if err != nil {
		return sessions.Context{}, err //nolint:wrapcheck // sentinel errors from sessions
	}
	a.session = &sctx
	telemetry.SetAppID(sctx.AppID)
	return sctx, nil
}

// native initializes the Steamworks runtime for the session's game.
func (a *App) native(ctx context.Context) error {
	if a.Workshop == nil {
		return ErrNativeUnavailable
	}
	if a.Workshop.Ready() {
		return nil
	}
	sctx, err := a.sessionContext(ctx)
	if err != nil {
		return err
	}
	if !a.Workshop.Initialize(ctx, steamworks.AppID(sctx.AppID)) {
		return ErrNativeUnavailable
	}
	return nil
}

// Setup builds the real component graph from the user's directories and
// settings. Logging is initialized first so every later step can log.
func Setup(out io.Writer, logWriters []io.Writer) (*App, error) {
	dirs := helpers.ResolveDirs()

	if err := helpers.InitLogging(dirs.Logs, false, logWriters...); err != nil {
		return nil, fmt.Errorf("error initializing logging: %w", err)
	}

	cfg, err := config.NewConfig(dirs.Config, config.BaseDefaults)
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}
	cfg.SetDebugLogging(cfg.DebugLogging())

	if err := telemetry.Init(cfg.ErrorReporting(), config.AppVersion); err != nil {
		log.Warn().Err(err).Msg("failed to initialize error reporting")
	}

	fs := afero.NewOsFs()
	clock := clockwork.NewRealClock()
	cmd := &command.RealExecutor{}

	client := community.NewClient(nil)
	tags := community.NewTagCatalog(client, fs, clock, dirs.TagCache(), cfg.TagCacheExpiry())
	validator := community.NewValidator(client)

	exe, err := os.Executable()
	if err != nil {
		log.Warn().Err(err).Msg("failed to resolve executable path")
	}
	wd, err := os.Getwd()
	if err != nil {
		log.Warn().Err(err).Msg("failed to resolve working directory")
	}
	exeDir := helpers.ExeDir()

	store := sessions.NewStore(fs, dirs.Sessions(), cfg)
	manager := sessions.NewManager(
		store,
		tags,
		validator,
		sessions.NewRelauncher(cmd, clock, exe, wd, nil),
		fs,
		clock,
		sessions.Options{
			ExeDir:   exeDir,
			WorkDir:  wd,
			SteamDir: steam.FindSteamDir(""),
		},
	)

	auth := webauth.New(cfg, webauth.DialAPI, clock)
	src := versions.Source{Auth: auth}

	var svc *workshop.Service
	lib, err := steamworks.OpenLibrary(cfg.SteamworksLibrary(), exeDir)
	if err != nil {
		log.Warn().Err(err).Msg("steamworks library unavailable, native features disabled")
	} else {
		rt := steamworks.NewRuntime(lib, clock, steam.IsClientRunning)
		svc = workshop.NewService(rt, workshop.Options{})
		src.Native = steamworks.NewHTTPClient(rt)
	}

	downloads := httpclient.NewRetryingClient(
		httpclient.DefaultTimeoutSeconds*time.Second, httpclient.DefaultRetries)

	var cache *previews.Cache
	if err := fs.MkdirAll(dirs.Cache, 0o750); err != nil {
		log.Warn().Err(err).Msg("failed to create cache dir")
	} else if cache, err = previews.Open(dirs.PreviewCache(), nil, clock); err != nil {
		log.Warn().Err(err).Msg("preview cache unavailable")
		cache = nil
	} else if n, err := cache.Prune(); err != nil {
		log.Warn().Err(err).Msg("failed to prune preview cache")
	} else if n > 0 {
		log.Debug().Int("removed", n).Msg("pruned preview cache")
	}

	var updates UpdateChecker
	if checker, err := updater.NewChecker(); err != nil {
		log.Warn().Err(err).Msg("update checks unavailable")
	} else {
		updates = checker
	}

	return NewApp(out, Components{
		Sessions:        manager,
		Tags:            tags,
		Auth:            auth,
		Workshop:        svc,
		Changelogs:      versions.NewChangelogReader(src),
		Downloader:      versions.NewDownloader(src, downloads, fs, cmd, dirs.Downloads()),
		Previews:        cache,
		Updates:         updates,
		FS:              fs,
		CheckForUpdates: cfg.CheckUpdates(),
	}), nil
}
