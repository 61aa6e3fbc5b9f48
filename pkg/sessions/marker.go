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

package sessions

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ZaparooProject/zaparoo-workshop/pkg/config"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

// ReadMarker reads the steam_appid.txt marker in dir.
func ReadMarker(fs afero.Fs, dir string) (uint32, bool) {
	data, err := afero.ReadFile(fs, filepath.Join(dir, config.AppIDFile))
	if err != nil {
		return 0, false
	}
	id, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint32(id), true
}

// WriteMarker writes appID to steam_appid.txt in each distinct dir. The
// Steam client reads the marker from the working directory, which is not
// always the executable directory.
func WriteMarker(fs afero.Fs, appID uint32, dirs ...string) error {
	content := []byte(strconv.FormatUint(uint64(appID), 10))
	written := make([]string, 0, len(dirs))
	for _, dir := range dirs {
		if dir == "" || containsPath(written, dir) {
			continue
		}
		path := filepath.Join(dir, config.AppIDFile)
		if err := afero.WriteFile(fs, path, content, 0o644); err != nil { //nolint:gosec // read by the Steam client
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		log.Info().Uint32("appid", appID).Str("path", path).Msg("updated appid marker")
		written = append(written, dir)
	}
	return nil
}

func containsPath(paths []string, p string) bool {
	p = filepath.Clean(p)
	for _, q := range paths {
		if strings.EqualFold(filepath.Clean(q), p) {
			return true
		}
	}
	return false
}
