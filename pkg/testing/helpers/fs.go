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

package helpers

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/ZaparooProject/zaparoo-workshop/pkg/config"
	"github.com/spf13/afero"
)

// FSHelper provides utilities for filesystem mocking in tests
type FSHelper struct {
	Fs afero.Fs
}

// NewMemoryFS creates a new in-memory filesystem for testing
func NewMemoryFS() *FSHelper {
	return &FSHelper{
		Fs: afero.NewMemMapFs(),
	}
}

// CreateAppIDMarker writes a steam_appid.txt marker into dir.
func (h *FSHelper) CreateAppIDMarker(dir string, appID uint32) error {
	path := filepath.Join(dir, config.AppIDFile)
	if err := h.Fs.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create marker directory: %w", err)
	}
	data := []byte(strconv.FormatUint(uint64(appID), 10) + "\n")
	if err := afero.WriteFile(h.Fs, path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write marker: %w", err)
	}
	return nil
}

// CreateDirectoryStructure creates files and directories from a nested
// map: string values are file contents, map values are directories.
func (h *FSHelper) CreateDirectoryStructure(structure map[string]any) error {
	return h.createStructureRecursive("", structure)
}

func (h *FSHelper) createStructureRecursive(basePath string, structure map[string]any) error {
	for name, content := range structure {
		fullPath := filepath.Join(basePath, name)

		switch v := content.(type) {
		case string:
			if err := h.Fs.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
				return fmt.Errorf("failed to create directory for file %s: %w", fullPath, err)
			}
			if err := afero.WriteFile(h.Fs, fullPath, []byte(v), 0o644); err != nil {
				return fmt.Errorf("failed to create file %s: %w", fullPath, err)
			}
		case map[string]any:
			if err := h.Fs.MkdirAll(fullPath, 0o755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", fullPath, err)
			}
			if err := h.createStructureRecursive(fullPath, v); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unsupported content type for %s: %T", fullPath, content)
		}
	}
	return nil
}
