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

// Package config holds the process-wide application settings record and
// the persisted web session credentials.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ZaparooProject/zaparoo-workshop/pkg/helpers/fsutil"
	"github.com/ZaparooProject/zaparoo-workshop/pkg/helpers/syncutil"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

const (
	SchemaVersion = 1
	CfgEnv        = "ZAPAROO_WORKSHOP_CFG"
)

var ErrSchemaMismatch = errors.New("schema version mismatch")

type Values struct {
	Language       string   `toml:"language"`
	ActiveSession  string   `toml:"active_session,omitempty"`
	Auth           Auth     `toml:"auth,omitempty"`
	Workshop       Workshop `toml:"workshop"`
	ConfigSchema   int      `toml:"config_schema"`
	DebugLogging   bool     `toml:"debug_logging"`
	ErrorReporting bool     `toml:"error_reporting"`
	CheckUpdates   bool     `toml:"check_updates"`
}

type Workshop struct {
	// SteamworksLibrary overrides the path of the Steamworks shared library.
	SteamworksLibrary string `toml:"steamworks_library,omitempty"`
	TagCacheDays      int    `toml:"tag_cache_days"`
}

var BaseDefaults = Values{
	ConfigSchema: SchemaVersion,
	Language:     DefaultLanguage,
	CheckUpdates: true,
	Workshop: Workshop{
		TagCacheDays: DefaultTagCacheDays,
	},
}

type Instance struct {
	fs       afero.Fs
	cfgPath  string
	vals     Values
	defaults Values
	mu       syncutil.RWMutex
}

//nolint:gocritic // config struct copied for immutability
func NewConfig(configDir string, defaults Values) (*Instance, error) {
	return NewConfigWithFs(afero.NewOsFs(), configDir, defaults)
}

//nolint:gocritic // config struct copied for immutability
func NewConfigWithFs(fs afero.Fs, configDir string, defaults Values) (*Instance, error) {
	cfgPath := os.Getenv(CfgEnv)
	if cfgPath == "" {
		cfgPath = filepath.Join(configDir, CfgFile)
	} else {
		log.Debug().Msgf("env config path: %s", cfgPath)
	}

	cfg := Instance{
		fs:       fs,
		cfgPath:  cfgPath,
		vals:     defaults,
		defaults: defaults,
	}

	if !fsutil.Exists(fs, cfgPath) {
		log.Info().Msg("saving new default config to disk")
		if err := cfg.Save(); err != nil {
			return nil, err
		}
	}

	if err := cfg.Load(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Instance) Path() string {
	return c.cfgPath
}

func (c *Instance) Load() error {
	c.mu.Lock()

	data, err := afero.ReadFile(c.fs, c.cfgPath)
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// Start with defaults, then unmarshal file values on top.
	newVals := c.defaults
	if err := toml.Unmarshal(data, &newVals); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if newVals.ConfigSchema != SchemaVersion {
		c.mu.Unlock()
		log.Error().Msgf(
			"schema version mismatch: got %d, expecting %d",
			newVals.ConfigSchema,
			SchemaVersion,
		)
		return ErrSchemaMismatch
	}

	lang, migrated := MigrateLanguage(newVals.Language)
	newVals.Language = lang
	if newVals.Workshop.TagCacheDays <= 0 {
		newVals.Workshop.TagCacheDays = DefaultTagCacheDays
	}

	c.vals = newVals
	c.mu.Unlock()

	if migrated {
		log.Info().Str("language", lang).Msg("migrated legacy language code")
		return c.Save()
	}
	return nil
}

func (c *Instance) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saveLocked()
}

func (c *Instance) saveLocked() error {
	if c.cfgPath == "" {
		return errors.New("config path not set")
	}

	c.vals.ConfigSchema = SchemaVersion

	data, err := toml.Marshal(&c.vals)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := fsutil.WriteFileAtomic(c.fs, c.cfgPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func (c *Instance) Language() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Language
}

// SetLanguage stores a normalized locale code. Legacy two-letter codes are
// expanded the same way they are on load.
func (c *Instance) SetLanguage(code string) error {
	normalized, err := NormalizeLanguage(code)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Language = normalized
	return nil
}

func (c *Instance) DebugLogging() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.DebugLogging
}

func (c *Instance) SetDebugLogging(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.DebugLogging = enabled
	if enabled {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

func (c *Instance) ActiveSession() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.ActiveSession
}

// SetActiveSession updates and persists the active session pointer.
func (c *Instance) SetActiveSession(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.ActiveSession = id
	return c.saveLocked()
}

func (c *Instance) ErrorReporting() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.ErrorReporting
}

func (c *Instance) SetErrorReporting(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.ErrorReporting = enabled
}

func (c *Instance) CheckUpdates() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.CheckUpdates
}

// TagCacheExpiry is how long a scraped tag taxonomy stays fresh.
func (c *Instance) TagCacheExpiry() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.vals.Workshop.TagCacheDays) * 24 * time.Hour
}

func (c *Instance) SteamworksLibrary() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Workshop.SteamworksLibrary
}
