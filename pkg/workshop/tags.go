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

package workshop

import "strings"

// TagSet partitions an item's tags against a session's taxonomy and
// custom tags. Every input tag lands in exactly one slice.
type TagSet struct {
	Selected []string
	Custom   []string
	Orphaned []string
}

// ReconcileTags classifies itemTags. A tag is selected when it names a
// taxonomy tag, bare or as "<Category>: <tag>", custom when it is one of
// customTags, and orphaned otherwise. Matching ignores case.
func ReconcileTags(itemTags []string, taxonomy map[string][]string, customTags []string) TagSet {
	predefined := make(map[string]struct{})
	for category, tags := range taxonomy {
		for _, tag := range tags {
			predefined[strings.ToLower(tag)] = struct{}{}
			predefined[strings.ToLower(category+": "+tag)] = struct{}{}
		}
	}
	custom := make(map[string]struct{}, len(customTags))
	for _, tag := range customTags {
		custom[strings.ToLower(tag)] = struct{}{}
	}

	set := TagSet{Selected: []string{}, Custom: []string{}, Orphaned: []string{}}
	seen := make(map[string]struct{}, len(itemTags))
	for _, raw := range itemTags {
		tag := strings.TrimSpace(raw)
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}

		key := strings.ToLower(tag)
		if _, ok := predefined[key]; ok {
			set.Selected = append(set.Selected, tag)
		} else if _, ok := custom[key]; ok {
			set.Custom = append(set.Custom, tag)
		} else {
			set.Orphaned = append(set.Orphaned, tag)
		}
	}
	return set
}

// All returns the tags to send back on update: selected then custom.
func (t TagSet) All() []string {
	out := make([]string, 0, len(t.Selected)+len(t.Custom))
	out = append(out, t.Selected...)
	return append(out, t.Custom...)
}
