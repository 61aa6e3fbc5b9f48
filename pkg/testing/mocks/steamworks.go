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

package mocks

import (
	"slices"
	"strings"
	"sync"

	"github.com/ZaparooProject/zaparoo-workshop/pkg/steamworks"
)

// FakeItem is a published item held by FakeSteamworks.
type FakeItem struct {
	PreviewURL string
	Children   []steamworks.PublishedFileID
	Details    steamworks.UGCDetails
}

// FakeHTTPResponse is served for a URL by FakeSteamworks.
type FakeHTTPResponse struct {
	Body   string
	Status int32
	Failed bool
}

type fakeUpdate struct {
	title, desc, content, preview *string
	visibility                    *steamworks.Visibility
	tags                          []string
	tagsSet                       bool
	id                            steamworks.PublishedFileID
}

type fakeQuery struct {
	ids []steamworks.PublishedFileID
}

// FakeSteamworks is an in-memory steamworks.API. Async calls complete on
// the next RunFrame unless their method name is listed in Hang, and
// complete with the EResult in Fail when one is set.
type FakeSteamworks struct {
	InitErr       error
	Items         map[steamworks.PublishedFileID]*FakeItem
	HTTPResponses map[string]FakeHTTPResponse
	Hang          map[string]bool
	Fail          map[string]steamworks.EResult
	queries       map[steamworks.QueryHandle]*fakeQuery
	updates       map[steamworks.UpdateHandle]*fakeUpdate
	requests      map[steamworks.HTTPRequest]string
	queued        []steamworks.Completion

	// DetailBatches records the id count of every details query.
	DetailBatches []int
	// TagWrites records every SetItemTags call.
	TagWrites [][]string
	// Requested records URLs passed to CreateHTTPRequest.
	Requested []string

	SteamIDValue  uint64
	AppID         steamworks.AppID
	nextID        steamworks.PublishedFileID
	nextHandle    uint64
	Frames        int
	Released      int
	ShutdownCalls int
	mu            sync.Mutex
	NotRunning    bool
	Initialized   bool
	// UpdateStatus is reported by ItemUpdateProgress while a submit hangs.
	UpdateStatus    steamworks.ItemUpdateStatus
	UpdateProcessed uint64
	UpdateTotal     uint64
}

var _ steamworks.API = (*FakeSteamworks)(nil)

// NewFakeSteamworks returns a running fake client logged in as steamID.
func NewFakeSteamworks(steamID uint64) *FakeSteamworks {
	return &FakeSteamworks{
		SteamIDValue:  steamID,
		Items:         make(map[steamworks.PublishedFileID]*FakeItem),
		HTTPResponses: make(map[string]FakeHTTPResponse),
		Hang:          make(map[string]bool),
		Fail:          make(map[string]steamworks.EResult),
		queries:       make(map[steamworks.QueryHandle]*fakeQuery),
		updates:       make(map[steamworks.UpdateHandle]*fakeUpdate),
		requests:      make(map[steamworks.HTTPRequest]string),
		nextID:        1000,
		nextHandle:    1,
	}
}

// AddItem stores an item owned by the fake's user.
func (f *FakeSteamworks) AddItem(item *FakeItem) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if item.Details.OwnerID == 0 {
		item.Details.OwnerID = f.SteamIDValue
	}
	item.Details.Result = steamworks.ResultOK
	f.Items[item.Details.ID] = item
}

// Item returns a copy of a stored item.
func (f *FakeSteamworks) Item(id steamworks.PublishedFileID) (FakeItem, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.Items[id]
	if !ok {
		return FakeItem{}, false
	}
	return *item, true
}

func (f *FakeSteamworks) handle() uint64 {
	h := f.nextHandle
	f.nextHandle++
	return h
}

func (f *FakeSteamworks) result(method string) steamworks.EResult {
	if r, ok := f.Fail[method]; ok {
		return r
	}
	return steamworks.ResultOK
}

// schedule queues a completion for the next frame and returns its handle.
func (f *FakeSteamworks) schedule(method string, callbackID int32, res func() any) steamworks.APICall {
	call := steamworks.APICall(f.handle())
	if f.Hang[method] {
		return call
	}
	f.queued = append(f.queued, steamworks.Completion{
		Call:       call,
		CallbackID: callbackID,
		Result:     res(),
	})
	return call
}

// Complete queues an arbitrary completion for the next frame.
func (f *FakeSteamworks) Complete(c steamworks.Completion) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queued = append(f.queued, c)
}

func (f *FakeSteamworks) Init(appID steamworks.AppID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.InitErr != nil {
		return f.InitErr
	}
	f.AppID = appID
	f.Initialized = true
	return nil
}

func (f *FakeSteamworks) Shutdown() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Initialized = false
	f.ShutdownCalls++
}

func (f *FakeSteamworks) IsSteamRunning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.NotRunning
}

func (f *FakeSteamworks) RunFrame() []steamworks.Completion {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Frames++
	out := f.queued
	f.queued = nil
	return out
}

// FrameCount returns how many frames have run.
func (f *FakeSteamworks) FrameCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Frames
}

func (f *FakeSteamworks) SteamID() uint64 {
	return f.SteamIDValue
}

func (f *FakeSteamworks) CreateQueryUserPublished(
	account uint32,
	appID steamworks.AppID,
	_ uint32,
) steamworks.QueryHandle {
	f.mu.Lock()
	defer f.mu.Unlock()

	var ids []steamworks.PublishedFileID
	for id, item := range f.Items {
		if steamworks.AccountID(item.Details.OwnerID) != account {
			continue
		}
		if item.Details.ConsumerAppID != 0 && item.Details.ConsumerAppID != appID {
			continue
		}
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b steamworks.PublishedFileID) int {
		return f.Items[b].Details.Created.Compare(f.Items[a].Details.Created)
	})

	h := steamworks.QueryHandle(f.handle())
	f.queries[h] = &fakeQuery{ids: ids}
	return h
}

func (f *FakeSteamworks) CreateQueryDetails(ids []steamworks.PublishedFileID) steamworks.QueryHandle {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.DetailBatches = append(f.DetailBatches, len(ids))
	h := steamworks.QueryHandle(f.handle())
	f.queries[h] = &fakeQuery{ids: slices.Clone(ids)}
	return h
}

func (*FakeSteamworks) SetReturnLongDescription(steamworks.QueryHandle, bool) bool { return true }
func (*FakeSteamworks) SetReturnMetadata(steamworks.QueryHandle, bool) bool        { return true }
func (*FakeSteamworks) SetReturnChildren(steamworks.QueryHandle, bool) bool        { return true }

func (f *FakeSteamworks) SendQuery(h steamworks.QueryHandle) steamworks.APICall {
	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.queries[h]
	if !ok {
		return steamworks.InvalidAPICall
	}
	return f.schedule("SendQuery", 3401, func() any {
		n := uint32(len(q.ids)) //nolint:gosec // test data
		return steamworks.QueryCompleted{
			Handle:        h,
			Result:        f.result("SendQuery"),
			NumResults:    n,
			TotalMatching: n,
		}
	})
}

func (f *FakeSteamworks) QueryResult(h steamworks.QueryHandle, index uint32) (steamworks.UGCDetails, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.queries[h]
	if !ok || int(index) >= len(q.ids) {
		return steamworks.UGCDetails{}, false
	}
	id := q.ids[index]
	item, ok := f.Items[id]
	if !ok {
		return steamworks.UGCDetails{ID: id, Result: steamworks.ResultFileNotFound}, true
	}
	d := item.Details
	d.NumChildren = uint32(len(item.Children)) //nolint:gosec // test data
	return d, true
}

func (f *FakeSteamworks) QueryPreviewURL(h steamworks.QueryHandle, index uint32) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.queries[h]
	if !ok || int(index) >= len(q.ids) {
		return ""
	}
	if item, ok := f.Items[q.ids[index]]; ok {
		return item.PreviewURL
	}
	return ""
}

func (f *FakeSteamworks) QueryChildren(
	h steamworks.QueryHandle,
	index, count uint32,
) []steamworks.PublishedFileID {
	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.queries[h]
	if !ok || int(index) >= len(q.ids) {
		return nil
	}
	item, ok := f.Items[q.ids[index]]
	if !ok {
		return nil
	}
	children := item.Children
	if int(count) < len(children) {
		children = children[:count]
	}
	return slices.Clone(children)
}

func (f *FakeSteamworks) ReleaseQuery(h steamworks.QueryHandle) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.queries[h]
	delete(f.queries, h)
	return ok
}

// OpenQueries returns the number of unreleased query handles.
func (f *FakeSteamworks) OpenQueries() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

func (f *FakeSteamworks) CreateItem(appID steamworks.AppID) steamworks.APICall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.schedule("CreateItem", 3403, func() any {
		res := f.result("CreateItem")
		if !res.OK() {
			return steamworks.CreateItemResult{Result: res}
		}
		f.nextID++
		id := f.nextID
		f.Items[id] = &FakeItem{Details: steamworks.UGCDetails{
			ID:            id,
			Result:        steamworks.ResultOK,
			OwnerID:       f.SteamIDValue,
			CreatorAppID:  appID,
			ConsumerAppID: appID,
			Visibility:    steamworks.VisibilityPrivate,
		}}
		return steamworks.CreateItemResult{Result: res, ID: id}
	})
}

func (f *FakeSteamworks) StartItemUpdate(_ steamworks.AppID, id steamworks.PublishedFileID) steamworks.UpdateHandle {
	f.mu.Lock()
	defer f.mu.Unlock()
	h := steamworks.UpdateHandle(f.handle())
	f.updates[h] = &fakeUpdate{id: id}
	return h
}

func (f *FakeSteamworks) withUpdate(h steamworks.UpdateHandle, fn func(u *fakeUpdate)) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.updates[h]
	if !ok {
		return false
	}
	fn(u)
	return true
}

func (f *FakeSteamworks) SetItemTitle(h steamworks.UpdateHandle, title string) bool {
	return f.withUpdate(h, func(u *fakeUpdate) { u.title = &title })
}

func (f *FakeSteamworks) SetItemDescription(h steamworks.UpdateHandle, desc string) bool {
	return f.withUpdate(h, func(u *fakeUpdate) { u.desc = &desc })
}

func (f *FakeSteamworks) SetItemContent(h steamworks.UpdateHandle, folder string) bool {
	return f.withUpdate(h, func(u *fakeUpdate) { u.content = &folder })
}

func (f *FakeSteamworks) SetItemPreview(h steamworks.UpdateHandle, path string) bool {
	return f.withUpdate(h, func(u *fakeUpdate) { u.preview = &path })
}

func (f *FakeSteamworks) SetItemVisibility(h steamworks.UpdateHandle, v steamworks.Visibility) bool {
	return f.withUpdate(h, func(u *fakeUpdate) { u.visibility = &v })
}

func (f *FakeSteamworks) SetItemTags(h steamworks.UpdateHandle, tags []string) bool {
	return f.withUpdate(h, func(u *fakeUpdate) {
		u.tags = slices.Clone(tags)
		u.tagsSet = true
		f.TagWrites = append(f.TagWrites, slices.Clone(tags))
	})
}

func (f *FakeSteamworks) SubmitItemUpdate(h steamworks.UpdateHandle, _ string) steamworks.APICall {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.updates[h]
	if !ok {
		return steamworks.InvalidAPICall
	}
	return f.schedule("SubmitItemUpdate", 3404, func() any {
		res := f.result("SubmitItemUpdate")
		item, ok := f.Items[u.id]
		if !ok {
			return steamworks.SubmitItemUpdateResult{Result: steamworks.ResultFileNotFound, ID: u.id}
		}
		if res.OK() {
			applyUpdate(item, u)
		}
		delete(f.updates, h)
		return steamworks.SubmitItemUpdateResult{Result: res, ID: u.id}
	})
}

func applyUpdate(item *FakeItem, u *fakeUpdate) {
	if u.title != nil {
		item.Details.Title = *u.title
	}
	if u.desc != nil {
		item.Details.Description = *u.desc
	}
	if u.content != nil {
		item.Details.FileName = *u.content
	}
	if u.preview != nil {
		item.PreviewURL = "file://" + *u.preview
	}
	if u.visibility != nil {
		item.Details.Visibility = *u.visibility
	}
	if u.tagsSet {
		item.Details.Tags = strings.Join(u.tags, ",")
	}
}

func (f *FakeSteamworks) ItemUpdateProgress(
	steamworks.UpdateHandle,
) (status steamworks.ItemUpdateStatus, processed, total uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.UpdateStatus, f.UpdateProcessed, f.UpdateTotal
}

func (f *FakeSteamworks) DeleteItem(id steamworks.PublishedFileID) steamworks.APICall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.schedule("DeleteItem", 3417, func() any {
		res := f.result("DeleteItem")
		if res.OK() {
			delete(f.Items, id)
		}
		return steamworks.DeleteItemResult{Result: res, ID: id}
	})
}

func (f *FakeSteamworks) AddDependency(parent, child steamworks.PublishedFileID) steamworks.APICall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.schedule("AddDependency", 3412, func() any {
		res := f.result("AddDependency")
		if item, ok := f.Items[parent]; ok && res.OK() && !slices.Contains(item.Children, child) {
			item.Children = append(item.Children, child)
		}
		return steamworks.DependencyResult{Result: res, Parent: parent, Child: child}
	})
}

func (f *FakeSteamworks) RemoveDependency(parent, child steamworks.PublishedFileID) steamworks.APICall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.schedule("RemoveDependency", 3413, func() any {
		res := f.result("RemoveDependency")
		if item, ok := f.Items[parent]; ok && res.OK() {
			item.Children = slices.DeleteFunc(item.Children, func(id steamworks.PublishedFileID) bool {
				return id == child
			})
		}
		return steamworks.DependencyResult{Result: res, Parent: parent, Child: child}
	})
}

func (f *FakeSteamworks) CreateCookieContainer(bool) steamworks.CookieContainer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return steamworks.CookieContainer(f.handle())
}

func (f *FakeSteamworks) CreateHTTPRequest(_ steamworks.HTTPMethod, url string) steamworks.HTTPRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	req := steamworks.HTTPRequest(f.handle())
	f.requests[req] = url
	f.Requested = append(f.Requested, url)
	return req
}

func (*FakeSteamworks) SetHTTPRequestCookieContainer(steamworks.HTTPRequest, steamworks.CookieContainer) bool {
	return true
}

func (*FakeSteamworks) SetHTTPRequestHeader(steamworks.HTTPRequest, string, string) bool {
	return true
}

func (f *FakeSteamworks) SendHTTPRequest(req steamworks.HTTPRequest) (steamworks.APICall, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	url, ok := f.requests[req]
	if !ok {
		return steamworks.InvalidAPICall, false
	}
	call := f.schedule("SendHTTPRequest", 2101, func() any {
		resp, ok := f.HTTPResponses[url]
		if !ok {
			return steamworks.HTTPCompleted{Request: req, Successful: true, Status: 404}
		}
		return steamworks.HTTPCompleted{
			Request:    req,
			Successful: !resp.Failed,
			Status:     resp.Status,
			BodySize:   uint32(len(resp.Body)), //nolint:gosec // test data
		}
	})
	return call, true
}

func (f *FakeSteamworks) HTTPResponseBody(req steamworks.HTTPRequest, size uint32) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	url, ok := f.requests[req]
	if !ok {
		return nil, false
	}
	body := []byte(f.HTTPResponses[url].Body)
	if int(size) < len(body) {
		body = body[:size]
	}
	return body, true
}

func (f *FakeSteamworks) ReleaseHTTPRequest(req steamworks.HTTPRequest) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.requests[req]
	delete(f.requests, req)
	if ok {
		f.Released++
	}
	return ok
}

// OpenRequests returns the number of unreleased HTTP requests.
func (f *FakeSteamworks) OpenRequests() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}
