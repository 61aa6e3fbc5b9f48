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

package workshop_test

import (
	"strings"
	"testing"

	"github.com/ZaparooProject/zaparoo-workshop/pkg/steamworks"
	"github.com/ZaparooProject/zaparoo-workshop/pkg/workshop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

var taxonomy = map[string][]string{
	"Type":  {"Maps", "Weapons"},
	"Genre": {"Horror"},
}

func TestReconcileTags(t *testing.T) {
	t.Parallel()

	set := workshop.ReconcileTags(
		[]string{"Maps", "Genre: Horror", "weapons", "QoL", "Legacy", "Maps", " "},
		taxonomy,
		[]string{"qol"},
	)

	assert.Equal(t, []string{"Maps", "Genre: Horror", "weapons"}, set.Selected)
	assert.Equal(t, []string{"QoL"}, set.Custom)
	assert.Equal(t, []string{"Legacy"}, set.Orphaned)
	assert.Equal(t, []string{"Maps", "Genre: Horror", "weapons", "QoL"}, set.All())
}

func TestReconcileTags_Empty(t *testing.T) {
	t.Parallel()

	set := workshop.ReconcileTags(nil, nil, nil)
	assert.Empty(t, set.Selected)
	assert.Empty(t, set.Custom)
	assert.Empty(t, set.Orphaned)
}

func TestReconcileTags_PartitionProperty(t *testing.T) {
	t.Parallel()

	tagGen := rapid.SampledFrom([]string{
		"Maps", "maps", "Weapons", "Type: Maps", "Genre: Horror", "Horror",
		"QoL", "Legacy", "Audio", "Type: Audio", "UI",
	})

	rapid.Check(t, func(t *rapid.T) {
		items := rapid.SliceOf(tagGen).Draw(t, "items")
		custom := rapid.SliceOf(tagGen).Draw(t, "custom")

		set := workshop.ReconcileTags(items, taxonomy, custom)

		where := make(map[string]int)
		for _, group := range [][]string{set.Selected, set.Custom, set.Orphaned} {
			for _, tag := range group {
				where[tag]++
			}
		}
		for _, tag := range items {
			if where[tag] != 1 {
				t.Fatalf("tag %q appears in %d groups", tag, where[tag])
			}
		}
		if len(where) > len(items) {
			t.Fatalf("output has tags not in input")
		}
		for _, tag := range set.Custom {
			found := false
			for _, c := range custom {
				if strings.EqualFold(c, tag) {
					found = true
				}
			}
			if !found {
				t.Fatalf("custom tag %q not in custom list", tag)
			}
		}
	})
}

func TestSplitTags(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{}, workshop.SplitTags(""))
	assert.Equal(t, []string{}, workshop.SplitTags("  "))
	assert.Equal(t, []string{"a", "b c"}, workshop.SplitTags(" a ,, b c,"))
}

func TestVisibility(t *testing.T) {
	t.Parallel()

	assert.Equal(t, steamworks.VisibilityUnlisted, workshop.MapVisibility(steamworks.VisibilityUnlisted))
	assert.Equal(t, steamworks.VisibilityPrivate, workshop.MapVisibility(steamworks.Visibility(-1)))
	assert.Equal(t, steamworks.VisibilityPrivate, workshop.MapVisibility(steamworks.Visibility(4)))

	v, err := workshop.ParseVisibility("Friends")
	require.NoError(t, err)
	assert.Equal(t, steamworks.VisibilityFriendsOnly, v)

	_, err = workshop.ParseVisibility("secret")
	require.ErrorIs(t, err, workshop.ErrInvalidRequest)
}

func TestUploadProgress_Percent(t *testing.T) {
	t.Parallel()

	assert.Zero(t, workshop.UploadProgress{Processed: 10}.Percent())
	assert.InDelta(t, 25.0, workshop.UploadProgress{Processed: 1, Total: 4}.Percent(), 0.001)
}
