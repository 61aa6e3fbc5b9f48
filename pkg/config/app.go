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

package config

import "time"

// AppVersion is set at build time with -ldflags.
var AppVersion = "dev"

const (
	AppName      = "zaparoo-workshop"
	CfgFile      = "workshop.toml"
	LogFile      = "workshop.log"
	SessionsDir  = "sessions"
	TagsDir      = "tags"
	DownloadsDir = "workshop"
	LogsDir      = "logs"
	PreviewsFile = "previews.db"
	UserDir      = "user"

	// AppIDFile is the marker the Steamworks runtime reads its AppId from.
	AppIDFile = "steam_appid.txt"

	UserAgent = "ZaparooWorkshop/1.0"

	DefaultLanguage     = "en-US"
	DefaultTagCacheDays = 7

	WebRequestTimeout = 30 * time.Second
)
