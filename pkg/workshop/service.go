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

// Package workshop publishes and manages the current user's Workshop items
// through the native Steamworks runtime.
package workshop

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ZaparooProject/zaparoo-workshop/pkg/steamworks"
	"github.com/rs/zerolog/log"
)

const (
	// MetadataTimeout bounds queries and small mutations.
	MetadataTimeout = 30 * time.Second
	// ContentTimeout bounds an item submission, which uploads content.
	ContentTimeout = 300 * time.Second
	// ProgressInterval is how often upload progress is sampled.
	ProgressInterval = 100 * time.Millisecond

	initialChangeNote = "Initial version"
)

// Options overrides the service timeouts. Zero fields use the defaults.
type Options struct {
	MetadataTimeout  time.Duration
	ContentTimeout   time.Duration
	ProgressInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.MetadataTimeout <= 0 {
		o.MetadataTimeout = MetadataTimeout
	}
	if o.ContentTimeout <= 0 {
		o.ContentTimeout = ContentTimeout
	}
	if o.ProgressInterval <= 0 {
		o.ProgressInterval = ProgressInterval
	}
	return o
}

// resultError is a native call that completed with a non-OK result.
type resultError struct {
	op     string
	result steamworks.EResult
}

func (e *resultError) Error() string {
	return fmt.Sprintf("%s: %s", e.op, e.result.Describe())
}

// Service is the native publishing service. Steam-side failures are logged
// with their result code and surface as false or empty returns.
type Service struct {
	rt   *steamworks.Runtime
	opts Options
}

// NewService creates a service over rt.
func NewService(rt *steamworks.Runtime, opts Options) *Service {
	return &Service{rt: rt, opts: opts.withDefaults()}
}

// Initialize binds the native runtime to appID.
func (s *Service) Initialize(ctx context.Context, appID steamworks.AppID) bool {
	return s.rt.Init(ctx, appID)
}

// Shutdown drains and shuts down the native runtime.
func (s *Service) Shutdown() {
	s.rt.Shutdown()
}

// Ready reports whether the native runtime is initialized.
func (s *Service) Ready() bool {
	return s.rt.Ready()
}

func (s *Service) ready(op string) bool {
	if s.rt.Ready() {
		return true
	}
	log.Warn().Str("op", op).Msg("steam is not initialized")
	return false
}

func logFailure(op string, err error) {
	var re *resultError
	switch {
	case errors.As(err, &re):
		log.Error().
			Str("op", op).
			Str("errorKey", re.result.ErrorKey()).
			Bool("recoverable", re.result.IsRecoverable()).
			Msg(re.result.Describe())
	case errors.Is(err, steamworks.ErrTimeout):
		log.Warn().Err(err).Str("op", op).Msg("native call timed out")
	default:
		log.Error().Err(err).Str("op", op).Msg("native call failed")
	}
}

// query creates, configures and sends a UGC query and waits for it. On
// success the caller owns the handle and must release it.
func (s *Service) query(
	op string,
	build func(api steamworks.API) steamworks.QueryHandle,
) (steamworks.QueryCompleted, bool) {
	pump := s.rt.Pump()
	h := steamworks.InvalidQueryHandle

	fut, err := pump.Issue(func(api steamworks.API) steamworks.APICall {
		h = build(api)
		if h == steamworks.InvalidQueryHandle {
			return steamworks.InvalidAPICall
		}
		return api.SendQuery(h)
	})
	if err != nil {
		s.releaseQuery(h)
		logFailure(op, err)
		return steamworks.QueryCompleted{}, false
	}

	res, err := steamworks.Await[steamworks.QueryCompleted](fut, s.opts.MetadataTimeout)
	if err != nil {
		s.releaseQuery(h)
		logFailure(op, err)
		return steamworks.QueryCompleted{}, false
	}
	if !res.Result.OK() {
		s.releaseQuery(h)
		logFailure(op, &resultError{op: op, result: res.Result})
		return steamworks.QueryCompleted{}, false
	}
	res.Handle = h
	return res, true
}

func (s *Service) releaseQuery(h steamworks.QueryHandle) {
	if h == steamworks.InvalidQueryHandle {
		return
	}
	if err := s.rt.Pump().Exec(func(api steamworks.API) { api.ReleaseQuery(h) }); err != nil {
		log.Debug().Err(err).Msg("could not release query")
	}
}

// ListItems returns the first page of the user's published items for the
// bound AppID, newest first.
func (s *Service) ListItems() []Item {
	const op = "list items"
	if !s.ready(op) {
		return nil
	}

	steamID := s.rt.SteamID()
	appID := s.rt.AppID()
	res, ok := s.query(op, func(api steamworks.API) steamworks.QueryHandle {
		h := api.CreateQueryUserPublished(steamworks.AccountID(steamID), appID, 1)
		if h == steamworks.InvalidQueryHandle {
			return h
		}
		api.SetReturnLongDescription(h, true)
		api.SetReturnMetadata(h, true)
		return h
	})
	if !ok {
		return nil
	}
	defer s.releaseQuery(res.Handle)

	items := make([]Item, 0, res.NumResults)
	err := s.rt.Pump().Exec(func(api steamworks.API) {
		for i := range res.NumResults {
			d, ok := api.QueryResult(res.Handle, i)
			if !ok {
				continue
			}
			items = append(items, newItem(d, api.QueryPreviewURL(res.Handle, i), steamID))
		}
	})
	if err != nil {
		logFailure(op, err)
		return nil
	}

	log.Debug().Int("count", len(items)).Msg("listed published items")
	return items
}

func notify(progress func(UploadProgress), p UploadProgress) {
	if progress != nil {
		progress(p)
	}
}

// CreateItem creates an item and uploads its first version. The id is
// returned only when both the creation and the submission succeed.
func (s *Service) CreateItem(
	req CreateRequest,
	progress func(UploadProgress),
) (steamworks.PublishedFileID, bool) {
	const op = "create item"
	if err := req.Validate(); err != nil {
		log.Debug().Err(err).Msg("create request rejected")
		return 0, false
	}
	if !s.ready(op) {
		return 0, false
	}

	notify(progress, UploadProgress{Status: "Creating item", Processed: 0, Total: 100})

	appID := s.rt.AppID()
	pump := s.rt.Pump()
	fut, err := pump.Issue(func(api steamworks.API) steamworks.APICall {
		return api.CreateItem(appID)
	})
	if err != nil {
		logFailure(op, err)
		return 0, false
	}
	created, err := steamworks.Await[steamworks.CreateItemResult](fut, s.opts.MetadataTimeout)
	if err != nil {
		logFailure(op, err)
		return 0, false
	}
	if !created.Result.OK() {
		logFailure(op, &resultError{op: op, result: created.Result})
		return 0, false
	}
	if created.NeedsLegalAgreement {
		log.Warn().Msg("the Steam Workshop legal agreement has not been accepted")
	}
	id := created.ID

	notify(progress, UploadProgress{Status: "Configuring item", Processed: 10, Total: 100})

	handle := steamworks.InvalidUpdateHandle
	err = pump.Exec(func(api steamworks.API) {
		handle = api.StartItemUpdate(appID, id)
		if handle == steamworks.InvalidUpdateHandle {
			return
		}
		api.SetItemTitle(handle, req.Title)
		api.SetItemDescription(handle, req.Description)
		api.SetItemContent(handle, req.ContentFolder)
		api.SetItemVisibility(handle, req.Visibility)
		if req.PreviewPath != "" {
			api.SetItemPreview(handle, req.PreviewPath)
		}
		if len(req.Tags) > 0 {
			api.SetItemTags(handle, req.Tags)
		}
	})
	if err == nil && handle == steamworks.InvalidUpdateHandle {
		err = steamworks.ErrInvalidCall
	}
	if err != nil {
		logFailure(op, err)
		log.Warn().Uint64("id", uint64(id)).Msg("item was created without content")
		return 0, false
	}

	notify(progress, UploadProgress{Status: "Uploading", Processed: 20, Total: 100})

	note := req.ChangeNote
	if note == "" {
		note = initialChangeNote
	}
	if !s.submit(op, handle, note, progress) {
		log.Warn().Uint64("id", uint64(id)).Msg("item was created but its content was not submitted")
		return 0, false
	}

	notify(progress, UploadProgress{Status: "Done", Processed: 100, Total: 100})
	log.Info().Uint64("id", uint64(id)).Str("title", req.Title).Msg("created workshop item")
	return id, true
}

// UpdateItem submits a new version of an existing item.
func (s *Service) UpdateItem(
	id steamworks.PublishedFileID,
	req UpdateRequest,
	progress func(UploadProgress),
) bool {
	const op = "update item"
	if err := req.Validate(); err != nil {
		log.Debug().Err(err).Msg("update request rejected")
		return false
	}
	if !s.ready(op) {
		return false
	}

	notify(progress, UploadProgress{Status: "Preparing update", Processed: 0, Total: 100})

	appID := s.rt.AppID()
	handle := steamworks.InvalidUpdateHandle
	err := s.rt.Pump().Exec(func(api steamworks.API) {
		handle = api.StartItemUpdate(appID, id)
		if handle == steamworks.InvalidUpdateHandle {
			return
		}
		if req.Title != "" {
			api.SetItemTitle(handle, req.Title)
		}
		if req.Description != "" {
			api.SetItemDescription(handle, req.Description)
		}
		if req.ContentFolder != "" {
			api.SetItemContent(handle, req.ContentFolder)
		}
		if req.PreviewPath != "" {
			api.SetItemPreview(handle, req.PreviewPath)
		}
		if req.Visibility != nil {
			api.SetItemVisibility(handle, *req.Visibility)
		}
		if req.Tags != nil {
			api.SetItemTags(handle, req.Tags)
		}
	})
	if err == nil && handle == steamworks.InvalidUpdateHandle {
		err = steamworks.ErrInvalidCall
	}
	if err != nil {
		logFailure(op, err)
		return false
	}

	notify(progress, UploadProgress{Status: "Uploading", Processed: 10, Total: 100})

	if !s.submit(op, handle, req.ChangeNote, progress) {
		return false
	}

	notify(progress, UploadProgress{Status: "Done", Processed: 100, Total: 100})
	log.Info().Uint64("id", uint64(id)).Msg("updated workshop item")
	return true
}

// submit sends the update and samples its progress until it completes.
func (s *Service) submit(
	op string,
	handle steamworks.UpdateHandle,
	note string,
	progress func(UploadProgress),
) bool {
	pump := s.rt.Pump()
	fut, err := pump.Issue(func(api steamworks.API) steamworks.APICall {
		return api.SubmitItemUpdate(handle, note)
	})
	if err != nil {
		logFailure(op, err)
		return false
	}

	sample := func() {
		var (
			status           steamworks.ItemUpdateStatus
			processed, total uint64
		)
		if err := pump.Exec(func(api steamworks.API) {
			status, processed, total = api.ItemUpdateProgress(handle)
		}); err != nil {
			return
		}
		if total > 0 {
			notify(progress, UploadProgress{Status: status.String(), Processed: processed, Total: total})
		}
	}

	res, err := steamworks.AwaitPolling[steamworks.SubmitItemUpdateResult](
		fut, s.opts.ContentTimeout, s.opts.ProgressInterval, sample,
	)
	if err != nil {
		logFailure(op, err)
		return false
	}
	if res.NeedsLegalAgreement {
		log.Warn().Msg("the Steam Workshop legal agreement has not been accepted")
	}
	if !res.Result.OK() {
		logFailure(op, &resultError{op: op, result: res.Result})
		return false
	}
	return true
}

// DeleteItem permanently deletes an item.
func (s *Service) DeleteItem(id steamworks.PublishedFileID) bool {
	const op = "delete item"
	if !s.ready(op) {
		return false
	}

	fut, err := s.rt.Pump().Issue(func(api steamworks.API) steamworks.APICall {
		return api.DeleteItem(id)
	})
	if err != nil {
		logFailure(op, err)
		return false
	}
	res, err := steamworks.Await[steamworks.DeleteItemResult](fut, s.opts.MetadataTimeout)
	if err != nil {
		logFailure(op, err)
		return false
	}
	if !res.Result.OK() {
		logFailure(op, &resultError{op: op, result: res.Result})
		return false
	}

	log.Info().Uint64("id", uint64(id)).Msg("deleted workshop item")
	return true
}
