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

// Package steam reads the local Steam client installation: its install
// directory, library folders, app manifests and whether the client is
// running.
package steam

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/andygrunwald/vdf"
	"github.com/rs/zerolog/log"
)

// AppInfo contains metadata for a Steam app from its manifest.
type AppInfo struct {
	Name       string
	InstallDir string
	AppID      uint32
}

// FindSteamDir returns the first existing Steam install directory, trying
// override first. Returns "" when Steam is not installed.
func FindSteamDir(override string) string {
	if override != "" {
		if _, err := os.Stat(override); err == nil {
			return override
		}
		log.Warn().Msgf("configured Steam directory not found: %s", override)
	}

	for _, path := range candidateDirs() {
		if _, err := os.Stat(path); err == nil {
			log.Debug().Msgf("found Steam installation: %s", path)
			return path
		}
	}
	return ""
}

// FindSteamAppsDir finds the steamapps directory from a Steam root directory.
func FindSteamAppsDir(steamDir string) string {
	for _, candidate := range []string{"steamapps", "SteamApps"} {
		path := filepath.Join(steamDir, candidate)
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			return path
		}
	}
	return filepath.Join(steamDir, "steamapps")
}

func parseVDFFile(path string) (map[string]any, error) {
	//nolint:gosec // Safe: reads Steam client files
	f, err := os.Open(path)
	if err != nil {
		return nil, err //nolint:wrapcheck // callers log the path
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msgf("error closing %s", path)
		}
	}()

	m, err := vdf.NewParser(f).Parse()
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return normalizeVDFKeys(m), nil
}

// normalizeVDFKeys lowercases all keys; VDF is case-insensitive.
func normalizeVDFKeys(m map[string]any) map[string]any {
	result := make(map[string]any, len(m))
	for k, v := range m {
		if nested, ok := v.(map[string]any); ok {
			v = normalizeVDFKeys(nested)
		}
		result[strings.ToLower(k)] = v
	}
	return result
}

// ReadAppManifest reads appmanifest_<id>.acf from a steamapps directory.
func ReadAppManifest(steamAppsDir string, appID uint32) (AppInfo, bool) {
	path := filepath.Join(steamAppsDir, fmt.Sprintf("appmanifest_%d.acf", appID))
	m, err := parseVDFFile(path)
	if err != nil {
		log.Debug().Err(err).Uint32("appID", appID).Msg("no app manifest")
		return AppInfo{}, false
	}

	appState, ok := m["appstate"].(map[string]any)
	if !ok {
		return AppInfo{}, false
	}
	name, ok := appState["name"].(string)
	if !ok || name == "" {
		return AppInfo{}, false
	}
	installDir, _ := appState["installdir"].(string)

	return AppInfo{AppID: appID, Name: name, InstallDir: installDir}, true
}

// LibraryDirs lists the steamapps directory of every Steam library,
// starting with the main one.
func LibraryDirs(steamDir string) []string {
	main := FindSteamAppsDir(steamDir)
	dirs := []string{main}

	m, err := parseVDFFile(filepath.Join(main, "libraryfolders.vdf"))
	if err != nil {
		log.Debug().Err(err).Msg("no libraryfolders.vdf")
		return dirs
	}
	lfs, ok := m["libraryfolders"].(map[string]any)
	if !ok {
		return dirs
	}

	// numeric keys keep the order Steam shows them in
	keys := make([]int, 0, len(lfs))
	for k := range lfs {
		if n, err := strconv.Atoi(k); err == nil {
			keys = append(keys, n)
		}
	}
	slices.Sort(keys)

	for _, k := range keys {
		lib, ok := lfs[strconv.Itoa(k)].(map[string]any)
		if !ok {
			continue
		}
		path, ok := lib["path"].(string)
		if !ok || path == "" {
			continue
		}
		dir := filepath.Join(path, "steamapps")
		if filepath.Clean(dir) == filepath.Clean(main) {
			continue
		}
		dirs = append(dirs, dir)
	}
	return dirs
}

// LookupAppName finds an installed app's name in any Steam library.
func LookupAppName(steamDir string, appID uint32) (string, bool) {
	if steamDir == "" {
		return "", false
	}
	for _, dir := range LibraryDirs(steamDir) {
		if info, ok := ReadAppManifest(dir, appID); ok {
			return info.Name, true
		}
	}
	return "", false
}
