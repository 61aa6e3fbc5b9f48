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

package steamworks

import (
	"errors"
	"time"
)

type (
	// AppID identifies a Steam game.
	AppID uint32
	// PublishedFileID identifies a Workshop item.
	PublishedFileID uint64
	// APICall is the handle of an in-flight async call. Zero is invalid.
	APICall uint64
	// QueryHandle is a UGC query handle.
	QueryHandle uint64
	// UpdateHandle is an item update handle.
	UpdateHandle uint64
	// HTTPRequest is a native HTTP request handle. Zero is invalid.
	HTTPRequest uint32
	// CookieContainer is a native cookie container handle. Zero is invalid.
	CookieContainer uint32
)

const (
	InvalidAPICall         APICall         = 0
	InvalidQueryHandle     QueryHandle     = ^QueryHandle(0)
	InvalidUpdateHandle    UpdateHandle    = ^UpdateHandle(0)
	InvalidHTTPRequest     HTTPRequest     = 0
	InvalidCookieContainer CookieContainer = 0
)

var (
	ErrLibraryNotFound = errors.New("steamworks library not found")
	ErrMissingSymbol   = errors.New("steamworks symbol not found")
	ErrInitFailed      = errors.New("steamworks init failed")
	ErrNotReady        = errors.New("steamworks runtime not ready")
	ErrInvalidCall     = errors.New("native call returned an invalid handle")
	ErrTimeout         = errors.New("timed out waiting for native call result")
	ErrIOFailure       = errors.New("native call result reported an IO failure")
	ErrPumpStopped     = errors.New("callback pump stopped")
	ErrUnexpected      = errors.New("unexpected native call result type")
)

// Visibility of a published item.
type Visibility int32

const (
	VisibilityPublic      Visibility = 0
	VisibilityFriendsOnly Visibility = 1
	VisibilityPrivate     Visibility = 2
	VisibilityUnlisted    Visibility = 3
)

func (v Visibility) String() string {
	switch v {
	case VisibilityPublic:
		return "public"
	case VisibilityFriendsOnly:
		return "friends"
	case VisibilityPrivate:
		return "private"
	case VisibilityUnlisted:
		return "unlisted"
	default:
		return "unknown"
	}
}

// ItemUpdateStatus is the phase reported while an item update is submitted.
type ItemUpdateStatus int32

const (
	UpdateStatusInvalid              ItemUpdateStatus = 0
	UpdateStatusPreparingConfig      ItemUpdateStatus = 1
	UpdateStatusPreparingContent     ItemUpdateStatus = 2
	UpdateStatusUploadingContent     ItemUpdateStatus = 3
	UpdateStatusUploadingPreviewFile ItemUpdateStatus = 4
	UpdateStatusCommittingChanges    ItemUpdateStatus = 5
)

func (s ItemUpdateStatus) String() string {
	switch s {
	case UpdateStatusPreparingConfig:
		return "Preparing config"
	case UpdateStatusPreparingContent:
		return "Preparing content"
	case UpdateStatusUploadingContent:
		return "Uploading content"
	case UpdateStatusUploadingPreviewFile:
		return "Uploading preview"
	case UpdateStatusCommittingChanges:
		return "Committing changes"
	default:
		return "Invalid"
	}
}

// HTTPMethod values of the native HTTP interface.
type HTTPMethod int32

const (
	HTTPMethodGET  HTTPMethod = 1
	HTTPMethodHEAD HTTPMethod = 2
	HTTPMethodPOST HTTPMethod = 3
)

// UGCDetails is one row of a UGC query result.
type UGCDetails struct {
	Created        time.Time
	Updated        time.Time
	Title          string
	Description    string
	Tags           string
	FileName       string
	URL            string
	ID             PublishedFileID
	OwnerID        uint64
	TotalFilesSize uint64
	Result         EResult
	Visibility     Visibility
	CreatorAppID   AppID
	ConsumerAppID  AppID
	FileSize       int32
	PreviewSize    int32
	VotesUp        uint32
	VotesDown      uint32
	NumChildren    uint32
	Score          float32
	Banned         bool
	TagsTruncated  bool
}

// Completion is a finished async call as reported by a pump frame.
type Completion struct {
	Result     any
	Call       APICall
	CallbackID int32
	IOFailure  bool
}

// Async call result payloads.
type (
	QueryCompleted struct {
		Handle        QueryHandle
		Result        EResult
		NumResults    uint32
		TotalMatching uint32
		Cached        bool
	}

	CreateItemResult struct {
		ID                  PublishedFileID
		Result              EResult
		NeedsLegalAgreement bool
	}

	SubmitItemUpdateResult struct {
		ID                  PublishedFileID
		Result              EResult
		NeedsLegalAgreement bool
	}

	DeleteItemResult struct {
		ID     PublishedFileID
		Result EResult
	}

	DependencyResult struct {
		Parent PublishedFileID
		Child  PublishedFileID
		Result EResult
	}

	HTTPCompleted struct {
		Context    uint64
		Request    HTTPRequest
		Status     int32
		BodySize   uint32
		Successful bool
	}
)

// Callback ids of the results decoded from pump frames.
const (
	callbackAPICallCompleted    = 703
	callbackHTTPRequestComplete = 2101
	callbackUGCQueryCompleted   = 3401
	callbackCreateItem          = 3403
	callbackSubmitItemUpdate    = 3404
	callbackAddDependency       = 3412
	callbackRemoveDependency    = 3413
	callbackDeleteItem          = 3417
)
