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

// API is the native Steamworks boundary. Library implements it over the
// shared library; tests supply fakes. Implementations are not safe for
// concurrent use: the Pump serializes every call.
type API interface {
	Init(appID AppID) error
	Shutdown()
	IsSteamRunning() bool
	// RunFrame dispatches pending callbacks and returns the async call
	// results that completed during the frame.
	RunFrame() []Completion
	SteamID() uint64

	CreateQueryUserPublished(account uint32, appID AppID, page uint32) QueryHandle
	CreateQueryDetails(ids []PublishedFileID) QueryHandle
	SetReturnLongDescription(h QueryHandle, v bool) bool
	SetReturnMetadata(h QueryHandle, v bool) bool
	SetReturnChildren(h QueryHandle, v bool) bool
	SendQuery(h QueryHandle) APICall
	QueryResult(h QueryHandle, index uint32) (UGCDetails, bool)
	QueryPreviewURL(h QueryHandle, index uint32) string
	QueryChildren(h QueryHandle, index, count uint32) []PublishedFileID
	ReleaseQuery(h QueryHandle) bool

	CreateItem(appID AppID) APICall
	StartItemUpdate(appID AppID, id PublishedFileID) UpdateHandle
	SetItemTitle(h UpdateHandle, title string) bool
	SetItemDescription(h UpdateHandle, desc string) bool
	SetItemContent(h UpdateHandle, folder string) bool
	SetItemPreview(h UpdateHandle, path string) bool
	SetItemVisibility(h UpdateHandle, v Visibility) bool
	SetItemTags(h UpdateHandle, tags []string) bool
	SubmitItemUpdate(h UpdateHandle, changeNote string) APICall
	ItemUpdateProgress(h UpdateHandle) (status ItemUpdateStatus, processed, total uint64)
	DeleteItem(id PublishedFileID) APICall
	AddDependency(parent, child PublishedFileID) APICall
	RemoveDependency(parent, child PublishedFileID) APICall

	CreateCookieContainer(allowResponsesToModify bool) CookieContainer
	CreateHTTPRequest(method HTTPMethod, url string) HTTPRequest
	SetHTTPRequestCookieContainer(req HTTPRequest, c CookieContainer) bool
	SetHTTPRequestHeader(req HTTPRequest, name, value string) bool
	SendHTTPRequest(req HTTPRequest) (APICall, bool)
	HTTPResponseBody(req HTTPRequest, size uint32) ([]byte, bool)
	ReleaseHTTPRequest(req HTTPRequest) bool
}

// AccountID returns the account part of a 64-bit Steam id.
func AccountID(steamID uint64) uint32 {
	return uint32(steamID & 0xFFFFFFFF)
}
