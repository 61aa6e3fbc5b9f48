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

package steam

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v4/process"
)

var clientProcessNames = map[string]struct{}{
	"steam":              {},
	"steam.exe":          {},
	"steam_osx":          {},
	"steam.sh":           {},
	"steamwebhelper":     {},
	"steamwebhelper.exe": {},
}

// IsClientProcess reports whether a process name belongs to the Steam
// client.
func IsClientProcess(name string) bool {
	_, ok := clientProcessNames[strings.ToLower(filepath.Base(name))]
	return ok
}

// IsClientRunning scans the process table for the Steam client. It is used
// before native init so a missing client gives a clear message instead of
// a generic init failure.
func IsClientRunning(ctx context.Context) bool {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("failed to list processes")
		return false
	}
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		if IsClientProcess(name) {
			return true
		}
	}
	return false
}
