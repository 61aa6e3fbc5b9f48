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
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/ZaparooProject/zaparoo-workshop/pkg/config"
	"github.com/ZaparooProject/zaparoo-workshop/pkg/sessions"
	"github.com/ZaparooProject/zaparoo-workshop/pkg/steamworks"
	"github.com/ZaparooProject/zaparoo-workshop/pkg/versions"
	"github.com/ZaparooProject/zaparoo-workshop/pkg/webauth"
	"github.com/ZaparooProject/zaparoo-workshop/pkg/workshop"
	"github.com/rs/zerolog/log"
)

var (
	ErrInvalidApp      = errors.New("app cannot be used for a session")
	ErrCommandFailed   = errors.New("steam rejected the request")
	ErrVersionNotFound = errors.New("version not found")
	ErrNotDownloadable = errors.New("version has no downloadable manifest")
	ErrItemNotFound    = errors.New("item not found")
	ErrTagUnchanged    = errors.New("custom tags unchanged")
)

// Run performs the action selected by f. Without an action it prints the
// current status.
func (a *App) Run(ctx context.Context, f *Flags) error {
	switch {
	case *f.Sessions:
		return a.listSessions()
	case f.isFlagPassed("add-session"):
		return a.addSession(ctx, uint32(*f.AddSession)) //nolint:gosec // AppIds are 32-bit
	case f.isFlagPassed("switch"):
		return a.switchSession(ctx, *f.Switch)
	case f.isFlagPassed("delete-session"):
		return a.deleteSession(*f.DeleteSession)
	case *f.RefreshTags:
		return a.refreshTags(ctx)
	case *f.Watch:
		return a.watchSessions(ctx)
	case f.isFlagPassed("custom-tag"):
		return a.changeCustomTag(ctx, *f.CustomTag, true)
	case f.isFlagPassed("remove-custom-tag"):
		return a.changeCustomTag(ctx, *f.RemoveTag, false)
	case f.isFlagPassed("adopt-orphans"):
		return a.adoptOrphans(ctx, steamworks.PublishedFileID(*f.AdoptOrphans))
	case *f.Login:
		return a.login(ctx)
	case *f.Logout:
		return a.logout()
	case *f.List:
		return a.listItems(ctx)
	case f.isFlagPassed("delete"):
		return a.deleteItem(ctx, steamworks.PublishedFileID(*f.Delete))
	case f.isFlagPassed("changelog"):
		return a.showChangelog(ctx, *f.Changelog)
	case f.isFlagPassed("download"):
		id, ts, err := ParseVersionRef(*f.Download)
		if err != nil {
			return err
		}
		return a.downloadVersion(ctx, id, ts)
	case f.isFlagPassed("deps"):
		return a.listDependencies(ctx, steamworks.PublishedFileID(*f.Deps))
	case f.isFlagPassed("add-dep"):
		return a.changeDependency(ctx, *f.AddDep, true)
	case f.isFlagPassed("remove-dep"):
		return a.changeDependency(ctx, *f.RemoveDep, false)
	case f.isFlagPassed("upload"):
		return a.upload(ctx, f)
	default:
		return a.status(ctx)
	}
}

func (a *App) status(ctx context.Context) error {
	a.printf("Zaparoo Workshop v%s\n", config.AppVersion)

	sctx, err := a.sessionContext(ctx)
	switch {
	case errors.Is(err, sessions.ErrNoSessions):
		a.printf("No sessions. Create one with -add-session <appid>.\n")
	case err != nil:
		return err
	default:
		a.printf("Session: %s (AppId %d)\n", sctx.GameName, sctx.AppID)
	}

	switch a.Auth.State() {
	case webauth.StateAuthenticated:
		a.printf("Web login: %s\n", a.Auth.AccountName())
	case webauth.StateRefreshOnly:
		a.printf("Web login: %s (needs refresh)\n", a.Auth.AccountName())
	default:
		a.printf("Web login: signed out\n")
	}

	if a.CheckForUpdates && a.Updates != nil {
		if res := a.Updates.CheckAndLog(ctx, config.AppVersion); res.Available {
			a.printf("Update available: v%s %s\n", res.Version, res.URL)
		}
	}
	return nil
}

func (a *App) listSessions() error {
	list, err := a.Sessions.List()
	if err != nil {
		return err //nolint:wrapcheck // store errors carry the path
	}
	if len(list) == 0 {
		a.printf("No sessions.\n")
		return nil
	}
	for _, s := range list {
		marker := " "
		if s.Active {
			marker = "*"
		}
		a.printf("%s %s  %-30s AppId %-8d last used %s\n",
			marker, s.ID, s.DisplayName(), s.AppID, s.LastUsedAt.Local().Format(time.DateTime))
	}
	return nil
}

func (a *App) addSession(ctx context.Context, appID uint32) error {
	res := a.Sessions.Validate(ctx, appID)
	if !res.Valid {
		return fmt.Errorf("%w: %s: %s", ErrInvalidApp, res.ErrorKey, res.Message)
	}
	s, err := a.Sessions.Create(ctx, appID, res.GameName)
	if err != nil {
		return err //nolint:wrapcheck // store errors carry the path
	}
	a.printf("Created session %s for %s\n", s.ID, s.DisplayName())
	if len(s.TagsByCategory) == 0 {
		a.printf("Tags could not be fetched; run -refresh-tags later.\n")
	}
	return nil
}

func (a *App) switchSession(ctx context.Context, id string) error {
	s, err := a.Sessions.Get(id)
	if err != nil {
		return err //nolint:wrapcheck // sentinel errors from sessions
	}
	a.printf("Switching to %s...\n", s.DisplayName())
	return a.Sessions.Switch(ctx, s, a.shutdownNative) //nolint:wrapcheck // relaunch errors are descriptive
}

func (a *App) deleteSession(id string) error {
	s, err := a.Sessions.Get(id)
	if err != nil {
		return err //nolint:wrapcheck // sentinel errors from sessions
	}
	if err := a.Sessions.Delete(id); err != nil {
		return err //nolint:wrapcheck // sentinel errors from sessions
	}
	a.printf("Deleted session %s\n", id)

	if _, ok := a.Sessions.Store().FindByAppID(s.AppID); !ok && a.Tags != nil {
		if err := a.Tags.ClearCache(s.AppID); err != nil {
			log.Warn().Err(err).Msg("failed to clear tag cache")
		}
	}
	return nil
}

func (a *App) activeSession(ctx context.Context) (*sessions.Session, error) {
	if _, err := a.sessionContext(ctx); err != nil {
		return nil, err
	}
	snap := a.Sessions.Active()
	if snap == nil {
		return nil, sessions.ErrNoSessions
	}
	return snap.Clone(), nil
}

func (a *App) refreshTags(ctx context.Context) error {
	s, err := a.activeSession(ctx)
	if err != nil {
		return err
	}
	if err := a.Sessions.RefreshTags(ctx, s); err != nil {
		return err //nolint:wrapcheck // already wrapped
	}
	active := a.Sessions.Active()
	for category, tags := range active.TagsByCategory {
		a.printf("%s: %s\n", category, strings.Join(tags, ", "))
	}
	if a.Tags != nil {
		if at, ok := a.Tags.CachedAt(active.AppID); ok {
			a.printf("Cached at %s\n", at.Local().Format(time.DateTime))
		}
	}
	return nil
}

func (a *App) changeCustomTag(ctx context.Context, tag string, add bool) error {
	s, err := a.activeSession(ctx)
	if err != nil {
		return err
	}
	tag = strings.TrimSpace(tag)

	var changed bool
	if add {
		changed = s.AddCustomTag(tag)
	} else {
		changed = s.RemoveCustomTag(tag)
	}
	if !changed {
		return fmt.Errorf("%w: %q", ErrTagUnchanged, tag)
	}
	if err := a.Sessions.Update(s); err != nil {
		return err //nolint:wrapcheck // store errors carry the path
	}
	if add {
		a.printf("Added custom tag %s\n", tag)
	} else {
		a.printf("Removed custom tag %s\n", tag)
	}
	return nil
}

// adoptOrphans keeps the tags of an item that the session's taxonomy does
// not know as custom tags, so later uploads preserve them.
func (a *App) adoptOrphans(ctx context.Context, id steamworks.PublishedFileID) error {
	if err := a.native(ctx); err != nil {
		return err
	}
	s, err := a.activeSession(ctx)
	if err != nil {
		return err
	}

	items := a.Workshop.ListItems()
	idx := slices.IndexFunc(items, func(it workshop.Item) bool {
		return it.ID == id
	})
	if idx < 0 {
		return fmt.Errorf("%w: %d", ErrItemNotFound, id)
	}
	item := items[idx]

	tags := workshop.ReconcileTags(item.Tags, s.TagsByCategory, s.CustomTags)
	n := s.AdoptOrphans(tags.Orphaned)
	if n > 0 {
		if err := a.Sessions.Update(s); err != nil {
			return err //nolint:wrapcheck // store errors carry the path
		}
	}
	a.printf("Kept %d unknown tags of %d as custom tags\n", n, id)
	return nil
}

func (a *App) watchSessions(ctx context.Context) error {
	a.printf("Watching %s, press Ctrl+C to stop\n", a.Sessions.Store().Dir())
	return a.Sessions.Watch(ctx, func(id string) { //nolint:wrapcheck // watcher errors are descriptive
		a.printf("session changed: %s\n", id)
	})
}

func (a *App) login(ctx context.Context) error {
	err := a.Auth.LoginQR(ctx, func(url string) {
		a.printf("Approve the sign in with the Steam mobile app: %s\n", url)
	})
	if err != nil {
		return err //nolint:wrapcheck // auth errors are descriptive
	}
	a.printf("Signed in as %s\n", a.Auth.AccountName())
	return nil
}

func (a *App) logout() error {
	if err := a.Auth.Logout(); err != nil {
		return err //nolint:wrapcheck // config errors carry the path
	}
	a.printf("Signed out\n")
	return nil
}

// ensureWeb refreshes an expired web session before community requests.
func (a *App) ensureWeb(ctx context.Context) {
	if a.Auth.State() == webauth.StateRefreshOnly && !a.Auth.TryRefresh(ctx) {
		log.Warn().Msg("web session refresh failed, using the Steam client")
	}
}

func (a *App) listItems(ctx context.Context) error {
	if err := a.native(ctx); err != nil {
		return err
	}
	s, err := a.activeSession(ctx)
	if err != nil {
		return err
	}

	items := a.Workshop.ListItems()
	if len(items) == 0 {
		a.printf("No items published for %s.\n", s.DisplayName())
		return nil
	}

	for _, item := range items {
		tags := workshop.ReconcileTags(item.Tags, s.TagsByCategory, s.CustomTags)
		a.printf("%d  %-40s %-12s updated %s\n",
			item.ID, item.Title, item.Visibility,
			item.UpdatedAt.Local().Format(time.DateOnly))
		if len(tags.Selected)+len(tags.Custom) > 0 {
			a.printf("    tags: %s\n", strings.Join(tags.All(), ", "))
		}
		if len(tags.Orphaned) > 0 {
			a.printf("    unknown tags: %s\n", strings.Join(tags.Orphaned, ", "))
		}
		a.cachePreview(ctx, item.PreviewURL)
	}
	return nil
}

// cachePreview stores an item preview for later lists. Failures only warn.
func (a *App) cachePreview(ctx context.Context, url string) {
	if a.Previews == nil || url == "" {
		return
	}
	if _, err := a.Previews.Image(ctx, url); err != nil {
		log.Warn().Err(err).Msg("failed to cache preview image")
	}
}

func (a *App) deleteItem(ctx context.Context, id steamworks.PublishedFileID) error {
	if err := a.native(ctx); err != nil {
		return err
	}
	if !a.Workshop.DeleteItem(id) {
		return fmt.Errorf("%w: delete %d", ErrCommandFailed, id)
	}
	if snap := a.Sessions.Active(); snap != nil {
		s := snap.Clone()
		s.Forget(uint64(id))
		if err := a.Sessions.Update(s); err != nil {
			log.Warn().Err(err).Msg("failed to forget deleted item files")
		}
	}
	a.printf("Deleted item %d\n", id)
	return nil
}

// itemName is the title used to name download folders. The native
// details query is used when available.
func (a *App) itemName(ctx context.Context, id uint64) string {
	if a.native(ctx) == nil {
		if info, ok := a.Workshop.ItemDetails(steamworks.PublishedFileID(id)); ok && info.Title != "" {
			return info.Title
		}
	}
	return fmt.Sprintf("item_%d", id)
}

func (a *App) changelog(ctx context.Context, id uint64) (sessions.Context, string, []versions.ChangelogEntry, error) {
	sctx, err := a.sessionContext(ctx)
	if err != nil {
		return sessions.Context{}, "", nil, err
	}
	a.ensureWeb(ctx)
	name := a.itemName(ctx, id)
	entries := a.Changelogs.Changelogs(ctx, id)
	a.Downloader.MarkDownloaded(sctx.AppID, name, entries)
	return sctx, name, entries, nil
}

func (a *App) showChangelog(ctx context.Context, id uint64) error {
	_, name, entries, err := a.changelog(ctx, id)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		a.printf("No versions found for %s.\n", name)
		return nil
	}
	for _, e := range entries {
		state := ""
		switch {
		case e.Downloaded:
			state = " [downloaded]"
		case !e.Downloadable():
			state = " [unavailable]"
		}
		a.printf("%d  %s%s\n", e.Timestamp, e.Time().Local().Format(time.DateTime), state)
		if d := strings.TrimSpace(e.Description); d != "" {
			a.printf("    %s\n", d)
		}
	}
	return nil
}

func (a *App) downloadVersion(ctx context.Context, id uint64, ts int64) error {
	sctx, name, entries, err := a.changelog(ctx, id)
	if err != nil {
		return err
	}

	var entry *versions.ChangelogEntry
	for i := range entries {
		if entries[i].Timestamp == ts {
			entry = &entries[i]
			break
		}
	}
	switch {
	case entry == nil:
		return fmt.Errorf("%w: %d:%d", ErrVersionNotFound, id, ts)
	case !entry.Downloadable():
		return fmt.Errorf("%w: %d:%d", ErrNotDownloadable, id, ts)
	}

	last := -10
	path, ok := a.Downloader.Download(ctx, sctx.AppID, id, name, *entry, func(p float64) {
		if pct := int(p * 100); pct/10 != last/10 {
			last = pct
			a.printf("\r%3d%%", pct)
		}
	})
	a.printf("\n")
	if !ok {
		return fmt.Errorf("%w: download %d:%d", ErrCommandFailed, id, ts)
	}
	a.printf("Saved %s\n", path)
	return nil
}

func (a *App) listDependencies(ctx context.Context, id steamworks.PublishedFileID) error {
	if err := a.native(ctx); err != nil {
		return err
	}
	deps := a.Workshop.Dependencies(id)
	if len(deps) == 0 {
		a.printf("Item %d has no required items.\n", id)
		return nil
	}
	for _, d := range deps {
		title := d.Title
		if !d.Valid {
			title = "(unavailable)"
		}
		a.printf("%d  %s  %s\n", d.ID, title, d.URL())
	}
	return nil
}

func (a *App) changeDependency(ctx context.Context, pair string, add bool) error {
	parent, child, err := ParsePair(pair)
	if err != nil {
		return err
	}
	if err := a.native(ctx); err != nil {
		return err
	}

	var ok bool
	if add {
		ok = a.Workshop.AddDependency(parent, child)
	} else {
		ok = a.Workshop.RemoveDependency(parent, child)
	}
	if !ok {
		return fmt.Errorf("%w: dependency %d -> %d", ErrCommandFailed, parent, child)
	}
	if add {
		a.printf("Item %d now requires %d\n", parent, child)
	} else {
		a.printf("Item %d no longer requires %d\n", parent, child)
	}
	return nil
}

func (a *App) upload(ctx context.Context, f *Flags) error {
	var tags []string
	if f.isFlagPassed("tags") {
		tags = workshop.SplitTags(*f.Tags)
	}
	progress := func(p workshop.UploadProgress) {
		a.printf("\r%-20s %3.0f%%", p.Status, p.Percent())
	}

	if f.isFlagPassed("item") {
		req := workshop.UpdateRequest{
			Title:         *f.Title,
			Description:   *f.Desc,
			ContentFolder: *f.Upload,
			PreviewPath:   *f.Preview,
			ChangeNote:    *f.Note,
			Tags:          tags,
		}
		if *f.Visibility != "" {
			v, err := workshop.ParseVisibility(*f.Visibility)
			if err != nil {
				return err //nolint:wrapcheck // already wrapped
			}
			req.Visibility = &v
		}
		if err := req.Validate(); err != nil {
			return err //nolint:wrapcheck // already wrapped
		}
		if err := a.native(ctx); err != nil {
			return err
		}
		id := steamworks.PublishedFileID(*f.Item)
		a.skipUnchanged(uint64(id), &req)
		ok := a.Workshop.UpdateItem(id, req, progress)
		a.printf("\n")
		if !ok {
			return fmt.Errorf("%w: update %d", ErrCommandFailed, id)
		}
		a.rememberFiles(uint64(id), req.ContentFolder, req.PreviewPath)
		a.printf("Updated %s\n", workshop.ItemURL(id))
		return nil
	}

	req := workshop.CreateRequest{
		Title:         *f.Title,
		Description:   *f.Desc,
		ContentFolder: *f.Upload,
		PreviewPath:   *f.Preview,
		ChangeNote:    *f.Note,
		Tags:          tags,
		Visibility:    steamworks.VisibilityPrivate,
	}
	if *f.Visibility != "" {
		v, err := workshop.ParseVisibility(*f.Visibility)
		if err != nil {
			return err //nolint:wrapcheck // already wrapped
		}
		req.Visibility = v
	}
	if err := req.Validate(); err != nil {
		return err //nolint:wrapcheck // already wrapped
	}
	if err := a.native(ctx); err != nil {
		return err
	}
	id, ok := a.Workshop.CreateItem(req, progress)
	a.printf("\n")
	if !ok {
		return fmt.Errorf("%w: create item", ErrCommandFailed)
	}
	a.rememberFiles(uint64(id), req.ContentFolder, req.PreviewPath)
	a.printf("Published %s\n", workshop.ItemURL(id))
	return nil
}

// skipUnchanged drops the content folder and preview from req when they
// are the same files, unmodified, that the item was last published from.
func (a *App) skipUnchanged(id uint64, req *workshop.UpdateRequest) {
	s := a.Sessions.Active()
	if s == nil {
		return
	}
	if fi, ok := s.ContentFolder(id); ok && unchanged(fi, req.ContentFolder) {
		a.printf("Content unchanged since the last upload, skipping it\n")
		req.ContentFolder = ""
	}
	if fi, ok := s.Preview(id); ok && unchanged(fi, req.PreviewPath) {
		req.PreviewPath = ""
	}
}

func unchanged(fi sessions.FileInfo, path string) bool {
	if path == "" || filepath.Clean(path) != filepath.Clean(fi.Path) {
		return false
	}
	changed, err := fi.Changed()
	if err != nil {
		log.Debug().Err(err).Str("path", path).Msg("could not compare with remembered file")
		return false
	}
	return !changed
}

// rememberFiles records the files an item was last published from on the
// active session so later updates can default to them.
func (a *App) rememberFiles(id uint64, folder, preview string) {
	snap := a.Sessions.Active()
	if snap == nil {
		return
	}
	s := snap.Clone()
	if folder != "" {
		if err := s.RememberContentFolder(id, folder); err != nil {
			log.Warn().Err(err).Msg("failed to remember content folder")
		}
	}
	if preview != "" {
		if err := s.RememberPreview(id, preview); err != nil {
			log.Warn().Err(err).Msg("failed to remember preview image")
		}
	}
	if err := a.Sessions.Update(s); err != nil {
		log.Warn().Err(err).Msg("failed to save session")
	}
}
