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

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

var legacyLanguages = map[string]string{
	"en": "en-US",
	"fr": "fr-FR",
}

// MigrateLanguage converts a legacy two-letter language code into a full
// locale code. It returns the code to store and whether it changed.
func MigrateLanguage(code string) (string, bool) {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return DefaultLanguage, code != DefaultLanguage
	}
	if full, ok := legacyLanguages[strings.ToLower(trimmed)]; ok {
		return full, true
	}
	if len(trimmed) != 2 {
		return code, false
	}

	normalized, err := NormalizeLanguage(trimmed)
	if err != nil {
		return code, false
	}
	return normalized, normalized != code
}

// NormalizeLanguage parses a BCP 47 code and returns it as language-REGION,
// guessing the region for bare language codes.
func NormalizeLanguage(code string) (string, error) {
	if full, ok := legacyLanguages[strings.ToLower(code)]; ok {
		return full, nil
	}

	tag, err := language.Parse(code)
	if err != nil {
		return "", fmt.Errorf("invalid language code %q: %w", code, err)
	}

	base, _ := tag.Base()
	region, _ := tag.Region()
	if region.String() == "ZZ" {
		return base.String(), nil
	}
	return base.String() + "-" + region.String(), nil
}
