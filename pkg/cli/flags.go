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

package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ZaparooProject/zaparoo-workshop/pkg/config"
	"github.com/ZaparooProject/zaparoo-workshop/pkg/steamworks"
)

var ErrBadFlagValue = errors.New("invalid flag value")

type Flags struct {
	set *flag.FlagSet

	Version       *bool
	Sessions      *bool
	AddSession    *uint
	Switch        *string
	DeleteSession *string
	RefreshTags   *bool
	Watch         *bool
	Login         *bool
	Logout        *bool
	List          *bool
	Delete        *uint64
	Changelog     *uint64
	Download      *string
	Deps          *uint64
	AddDep        *string
	RemoveDep     *string
	Upload        *string
	CustomTag     *string
	RemoveTag     *string
	AdoptOrphans  *uint64

	Title      *string
	Desc       *string
	Visibility *string
	Tags       *string
	Preview    *string
	Note       *string
	Item       *uint64
}

// SetupFlags defines the workshop flags on fs.
func SetupFlags(fs *flag.FlagSet) *Flags {
	return &Flags{
		set: fs,
		Version: fs.Bool(
			"version",
			false,
			"print version and exit",
		),
		Sessions: fs.Bool(
			"sessions",
			false,
			"list game sessions",
		),
		AddSession: fs.Uint(
			"add-session",
			0,
			"create a session for a Steam AppId",
		),
		Switch: fs.String(
			"switch",
			"",
			"make a session active and restart bound to its game",
		),
		DeleteSession: fs.String(
			"delete-session",
			"",
			"delete a session",
		),
		RefreshTags: fs.Bool(
			"refresh-tags",
			false,
			"refetch the active session's workshop tags",
		),
		Watch: fs.Bool(
			"watch",
			false,
			"print session changes made by other processes",
		),
		Login: fs.Bool(
			"login",
			false,
			"sign in to Steam web services with a QR code",
		),
		Logout: fs.Bool(
			"logout",
			false,
			"forget stored Steam web credentials",
		),
		List: fs.Bool(
			"list",
			false,
			"list your workshop items for the active game",
		),
		Delete: fs.Uint64(
			"delete",
			0,
			"delete a workshop item",
		),
		Changelog: fs.Uint64(
			"changelog",
			0,
			"show the version history of an item",
		),
		Download: fs.String(
			"download",
			"",
			"download a past version as <item>:<timestamp>",
		),
		Deps: fs.Uint64(
			"deps",
			0,
			"list the required items of an item",
		),
		AddDep: fs.String(
			"add-dep",
			"",
			"add a required item as <parent>:<child>",
		),
		RemoveDep: fs.String(
			"remove-dep",
			"",
			"remove a required item as <parent>:<child>",
		),
		Upload: fs.String(
			"upload",
			"",
			"publish a content folder as a new item or, with -item, a new version",
		),
		CustomTag: fs.String(
			"custom-tag",
			"",
			"add a custom tag to the active session",
		),
		RemoveTag: fs.String(
			"remove-custom-tag",
			"",
			"remove a custom tag from the active session",
		),
		AdoptOrphans: fs.Uint64(
			"adopt-orphans",
			0,
			"keep an item's unknown tags as custom tags",
		),
		Title:      fs.String("title", "", "item title for -upload"),
		Desc:       fs.String("desc", "", "item description for -upload"),
		Visibility: fs.String("visibility", "", "public, friends, private or unlisted"),
		Tags:       fs.String("tags", "", "comma separated tags for -upload"),
		Preview:    fs.String("preview", "", "preview image for -upload"),
		Note:       fs.String("note", "", "change note for -upload"),
		Item:       fs.Uint64("item", 0, "existing item to update with -upload"),
	}
}

func (f *Flags) isFlagPassed(name string) bool {
	found := false
	f.set.Visit(func(fl *flag.Flag) {
		if fl.Name == name {
			found = true
		}
	})
	return found
}

// Pre parses args and handles flags that need no environment. It reports
// true when the process should exit.
func (f *Flags) Pre(args []string, out io.Writer) (bool, error) {
	if err := f.set.Parse(args); err != nil {
		return true, err //nolint:wrapcheck // flag package already formats it
	}
	if *f.Version {
		_, _ = fmt.Fprintf(out, "Zaparoo Workshop v%s\n", config.AppVersion)
		return true, nil
	}
	return false, nil
}

// ParsePair splits "<parent>:<child>" into two item ids.
func ParsePair(s string) (parent, child steamworks.PublishedFileID, err error) {
	a, b, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, fmt.Errorf("%w: expected <parent>:<child>, got %q", ErrBadFlagValue, s)
	}
	p, err := strconv.ParseUint(strings.TrimSpace(a), 10, 64)
	if err != nil || p == 0 {
		return 0, 0, fmt.Errorf("%w: bad parent id %q", ErrBadFlagValue, a)
	}
	c, err := strconv.ParseUint(strings.TrimSpace(b), 10, 64)
	if err != nil || c == 0 {
		return 0, 0, fmt.Errorf("%w: bad child id %q", ErrBadFlagValue, b)
	}
	if p == c {
		return 0, 0, fmt.Errorf("%w: an item cannot depend on itself", ErrBadFlagValue)
	}
	return steamworks.PublishedFileID(p), steamworks.PublishedFileID(c), nil
}

// ParseVersionRef splits "<item>:<timestamp>".
func ParseVersionRef(s string) (uint64, int64, error) {
	a, b, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, fmt.Errorf("%w: expected <item>:<timestamp>, got %q", ErrBadFlagValue, s)
	}
	id, err := strconv.ParseUint(strings.TrimSpace(a), 10, 64)
	if err != nil || id == 0 {
		return 0, 0, fmt.Errorf("%w: bad item id %q", ErrBadFlagValue, a)
	}
	ts, err := strconv.ParseInt(strings.TrimSpace(b), 10, 64)
	if err != nil || ts <= 0 {
		return 0, 0, fmt.Errorf("%w: bad timestamp %q", ErrBadFlagValue, b)
	}
	return id, ts, nil
}
