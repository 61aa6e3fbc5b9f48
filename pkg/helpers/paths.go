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
	"os"
	"path/filepath"

	"github.com/ZaparooProject/zaparoo-workshop/pkg/config"
	"github.com/adrg/xdg"
)

// Dirs is the resolved set of directories the app reads and writes.
type Dirs struct {
	Config string
	Data   string
	Cache  string
	Logs   string
}

func (d Dirs) Sessions() string {
	return filepath.Join(d.Data, config.SessionsDir)
}

func (d Dirs) TagCache() string {
	return filepath.Join(d.Cache, config.TagsDir)
}

func (d Dirs) Downloads() string {
	return filepath.Join(d.Data, config.DownloadsDir)
}

func (d Dirs) PreviewCache() string {
	return filepath.Join(d.Cache, config.PreviewsFile)
}

// ResolveDirs returns the app directories. A "user" directory next to the
// executable switches everything into portable mode under it.
func ResolveDirs() Dirs {
	if dir, ok := PortableDir(ExeDir()); ok {
		return Dirs{
			Config: dir,
			Data:   dir,
			Cache:  filepath.Join(dir, "cache"),
			Logs:   filepath.Join(dir, config.LogsDir),
		}
	}

	data := filepath.Join(xdg.DataHome, config.AppName)
	return Dirs{
		Config: filepath.Join(xdg.ConfigHome, config.AppName),
		Data:   data,
		Cache:  filepath.Join(xdg.CacheHome, config.AppName),
		Logs:   filepath.Join(data, config.LogsDir),
	}
}

// PortableDir reports the portable user directory under exeDir, if any.
func PortableDir(exeDir string) (string, bool) {
	if exeDir == "" {
		return "", false
	}
	dir := filepath.Join(exeDir, config.UserDir)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", false
	}
	return dir, true
}

func ExeDir() string {
	exe, err := os.Executable()
	if err != nil {
		return ""
	}
	return filepath.Dir(exe)
}
