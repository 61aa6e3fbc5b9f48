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
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"unsafe"

	"github.com/ebitengine/purego"
	"github.com/rs/zerolog/log"
)

// Flat API enum values used by the library.
const (
	userUGCListPublished         = 0
	ugcMatchingItems             = 0
	userUGCSortCreationOrderDesc = 0
	workshopFileTypeCommunity    = 0
	steamErrMsgSize              = 1024
	previewURLSize               = 1024
)

// Versioned interface accessors, newest first.
var (
	ugcAccessors  = []string{"SteamAPI_SteamUGC_v021", "SteamAPI_SteamUGC_v020", "SteamAPI_SteamUGC_v018", "SteamAPI_SteamUGC_v017"}
	userAccessors = []string{"SteamAPI_SteamUser_v023", "SteamAPI_SteamUser_v022", "SteamAPI_SteamUser_v021"}
	httpAccessors = []string{"SteamAPI_SteamHTTP_v003"}
)

type flatAPI struct {
	initFlat         func(errMsg unsafe.Pointer) int32
	init             func() bool
	shutdown         func()
	isSteamRunning   func() bool
	getPipe          func() int32
	dispatchInit     func()
	runFrame         func(pipe int32)
	nextCallback     func(pipe int32, msg unsafe.Pointer) bool
	freeLastCallback func(pipe int32)
	callResult       func(pipe int32, call uint64, buf unsafe.Pointer, size, expected int32, failed unsafe.Pointer) bool

	getSteamID func(self uintptr) uint64

	createQueryUser       func(self uintptr, account uint32, list, matching, sort int32, creator, consumer, page uint32) uint64
	createQueryDetails    func(self uintptr, ids unsafe.Pointer, n uint32) uint64
	setReturnLongDesc     func(self uintptr, h uint64, v bool) bool
	setReturnMetadata     func(self uintptr, h uint64, v bool) bool
	setReturnChildren     func(self uintptr, h uint64, v bool) bool
	sendQuery             func(self uintptr, h uint64) uint64
	queryResult           func(self uintptr, h uint64, idx uint32, out unsafe.Pointer) bool
	queryPreviewURL       func(self uintptr, h uint64, idx uint32, out unsafe.Pointer, size uint32) bool
	queryChildren         func(self uintptr, h uint64, idx uint32, out unsafe.Pointer, maxEntries uint32) bool
	releaseQuery          func(self uintptr, h uint64) bool
	createItem            func(self uintptr, app uint32, fileType int32) uint64
	startItemUpdate       func(self uintptr, app uint32, id uint64) uint64
	setItemTitle          func(self uintptr, h uint64, s string) bool
	setItemDescription    func(self uintptr, h uint64, s string) bool
	setItemContent        func(self uintptr, h uint64, s string) bool
	setItemPreview        func(self uintptr, h uint64, s string) bool
	setItemVisibility     func(self uintptr, h uint64, v int32) bool
	setItemTags           func(self uintptr, h uint64, tags unsafe.Pointer, allowAdmin bool) bool
	submitItemUpdate      func(self uintptr, h uint64, note string) uint64
	itemUpdateProgress    func(self uintptr, h uint64, processed, total unsafe.Pointer) int32
	deleteItem            func(self uintptr, id uint64) uint64
	addDependency         func(self uintptr, parent, child uint64) uint64
	removeDependency      func(self uintptr, parent, child uint64) uint64
	createCookieContainer func(self uintptr, allow bool) uint32
	createHTTPRequest     func(self uintptr, method int32, url string) uint32
	setRequestCookies     func(self uintptr, req, container uint32) bool
	setRequestHeader      func(self uintptr, req uint32, name, value string) bool
	sendHTTPRequest       func(self uintptr, req uint32, call unsafe.Pointer) bool
	responseBody          func(self uintptr, req uint32, buf unsafe.Pointer, size uint32) bool
	releaseHTTPRequest    func(self uintptr, req uint32) bool
}

type binding struct {
	fptr     any
	name     string
	optional bool
}

// Library implements API over the Steamworks shared library, loaded at
// runtime without cgo. Async results are collected with manual dispatch.
type Library struct {
	f      flatAPI
	path   string
	ls     layouts
	handle uintptr
	ugc    uintptr
	user   uintptr
	http   uintptr
	pipe   int32
}

var _ API = (*Library)(nil)

// LibraryCandidates lists the paths tried by OpenLibrary when no explicit
// path is configured.
func LibraryCandidates(exeDir string) []string {
	name := libraryName()
	var out []string
	if exeDir != "" {
		out = append(out, filepath.Join(exeDir, name))
	}
	return append(out, name)
}

// OpenLibrary loads the Steamworks library from path, or from the
// default candidates when path is empty, and binds the flat API.
func OpenLibrary(path, exeDir string) (*Library, error) {
	candidates := []string{path}
	if path == "" {
		candidates = LibraryCandidates(exeDir)
	}

	var lastErr error
	for _, candidate := range candidates {
		handle, err := openLibrary(candidate)
		if err != nil {
			lastErr = err
			log.Debug().Err(err).Str("path", candidate).Msg("steamworks library not loaded")
			continue
		}
		l := &Library{path: candidate, handle: handle, ls: nativeLayouts}
		if err := l.bind(); err != nil {
			return nil, err
		}
		log.Info().Str("path", candidate).Msg("loaded steamworks library")
		return l, nil
	}
	return nil, fmt.Errorf("%w: %w", ErrLibraryNotFound, lastErr)
}

// Path returns the file the library was loaded from.
func (l *Library) Path() string {
	return l.path
}

func (l *Library) bindings() []binding {
	f := &l.f
	return []binding{
		{name: "SteamAPI_InitFlat", fptr: &f.initFlat, optional: true},
		{name: "SteamAPI_Init", fptr: &f.init, optional: true},
		{name: "SteamAPI_Shutdown", fptr: &f.shutdown},
		{name: "SteamAPI_IsSteamRunning", fptr: &f.isSteamRunning},
		{name: "SteamAPI_GetHSteamPipe", fptr: &f.getPipe},
		{name: "SteamAPI_ManualDispatch_Init", fptr: &f.dispatchInit},
		{name: "SteamAPI_ManualDispatch_RunFrame", fptr: &f.runFrame},
		{name: "SteamAPI_ManualDispatch_GetNextCallback", fptr: &f.nextCallback},
		{name: "SteamAPI_ManualDispatch_FreeLastCallback", fptr: &f.freeLastCallback},
		{name: "SteamAPI_ManualDispatch_GetAPICallResult", fptr: &f.callResult},
		{name: "SteamAPI_ISteamUser_GetSteamID", fptr: &f.getSteamID},
		{name: "SteamAPI_ISteamUGC_CreateQueryUserUGCRequest", fptr: &f.createQueryUser},
		{name: "SteamAPI_ISteamUGC_CreateQueryUGCDetailsRequest", fptr: &f.createQueryDetails},
		{name: "SteamAPI_ISteamUGC_SetReturnLongDescription", fptr: &f.setReturnLongDesc},
		{name: "SteamAPI_ISteamUGC_SetReturnMetadata", fptr: &f.setReturnMetadata},
		{name: "SteamAPI_ISteamUGC_SetReturnChildren", fptr: &f.setReturnChildren},
		{name: "SteamAPI_ISteamUGC_SendQueryUGCRequest", fptr: &f.sendQuery},
		{name: "SteamAPI_ISteamUGC_GetQueryUGCResult", fptr: &f.queryResult},
		{name: "SteamAPI_ISteamUGC_GetQueryUGCPreviewURL", fptr: &f.queryPreviewURL},
		{name: "SteamAPI_ISteamUGC_GetQueryUGCChildren", fptr: &f.queryChildren},
		{name: "SteamAPI_ISteamUGC_ReleaseQueryUGCRequest", fptr: &f.releaseQuery},
		{name: "SteamAPI_ISteamUGC_CreateItem", fptr: &f.createItem},
		{name: "SteamAPI_ISteamUGC_StartItemUpdate", fptr: &f.startItemUpdate},
		{name: "SteamAPI_ISteamUGC_SetItemTitle", fptr: &f.setItemTitle},
		{name: "SteamAPI_ISteamUGC_SetItemDescription", fptr: &f.setItemDescription},
		{name: "SteamAPI_ISteamUGC_SetItemContent", fptr: &f.setItemContent},
		{name: "SteamAPI_ISteamUGC_SetItemPreview", fptr: &f.setItemPreview},
		{name: "SteamAPI_ISteamUGC_SetItemVisibility", fptr: &f.setItemVisibility},
		{name: "SteamAPI_ISteamUGC_SetItemTags", fptr: &f.setItemTags},
		{name: "SteamAPI_ISteamUGC_SubmitItemUpdate", fptr: &f.submitItemUpdate},
		{name: "SteamAPI_ISteamUGC_GetItemUpdateProgress", fptr: &f.itemUpdateProgress},
		{name: "SteamAPI_ISteamUGC_DeleteItem", fptr: &f.deleteItem},
		{name: "SteamAPI_ISteamUGC_AddDependency", fptr: &f.addDependency},
		{name: "SteamAPI_ISteamUGC_RemoveDependency", fptr: &f.removeDependency},
		{name: "SteamAPI_ISteamHTTP_CreateCookieContainer", fptr: &f.createCookieContainer},
		{name: "SteamAPI_ISteamHTTP_CreateHTTPRequest", fptr: &f.createHTTPRequest},
		{name: "SteamAPI_ISteamHTTP_SetHTTPRequestCookieContainer", fptr: &f.setRequestCookies},
		{name: "SteamAPI_ISteamHTTP_SetHTTPRequestHeaderValue", fptr: &f.setRequestHeader},
		{name: "SteamAPI_ISteamHTTP_SendHTTPRequest", fptr: &f.sendHTTPRequest},
		{name: "SteamAPI_ISteamHTTP_GetHTTPResponseBodyData", fptr: &f.responseBody},
		{name: "SteamAPI_ISteamHTTP_ReleaseHTTPRequest", fptr: &f.releaseHTTPRequest},
	}
}

func (l *Library) bind() error {
	for _, b := range l.bindings() {
		sym, err := lookupSymbol(l.handle, b.name)
		if err != nil || sym == 0 {
			if b.optional {
				continue
			}
			return fmt.Errorf("%w: %s", ErrMissingSymbol, b.name)
		}
		purego.RegisterFunc(b.fptr, sym)
	}
	if l.f.initFlat == nil && l.f.init == nil {
		return fmt.Errorf("%w: SteamAPI_InitFlat", ErrMissingSymbol)
	}
	return nil
}

func (l *Library) accessor(names []string) (uintptr, error) {
	for _, name := range names {
		sym, err := lookupSymbol(l.handle, name)
		if err != nil || sym == 0 {
			continue
		}
		var get func() uintptr
		purego.RegisterFunc(&get, sym)
		if ptr := get(); ptr != 0 {
			return ptr, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrMissingSymbol, names[0])
}

// Init initializes the SDK for appID. The SDK reads the AppID from the
// environment, so SteamAppId is set before the call.
func (l *Library) Init(appID AppID) error {
	id := strconv.FormatUint(uint64(appID), 10)
	if err := os.Setenv("SteamAppId", id); err != nil {
		return fmt.Errorf("failed to set SteamAppId: %w", err)
	}

	if l.f.initFlat != nil {
		msg := make([]byte, steamErrMsgSize)
		if res := l.f.initFlat(unsafe.Pointer(&msg[0])); res != 0 {
			return fmt.Errorf("%w: code %d: %s", ErrInitFailed, res, cString(msg))
		}
	} else if !l.f.init() {
		return ErrInitFailed
	}

	l.f.dispatchInit()
	l.pipe = l.f.getPipe()

	var err error
	if l.ugc, err = l.accessor(ugcAccessors); err != nil {
		l.f.shutdown()
		return err
	}
	if l.user, err = l.accessor(userAccessors); err != nil {
		l.f.shutdown()
		return err
	}
	if l.http, err = l.accessor(httpAccessors); err != nil {
		l.f.shutdown()
		return err
	}
	return nil
}

func (l *Library) Shutdown() {
	l.f.shutdown()
	l.ugc, l.user, l.http, l.pipe = 0, 0, 0, 0
}

func (l *Library) IsSteamRunning() bool {
	return l.f.isSteamRunning()
}

func (l *Library) SteamID() uint64 {
	if l.user == 0 {
		return 0
	}
	return l.f.getSteamID(l.user)
}

func (l *Library) RunFrame() []Completion {
	l.f.runFrame(l.pipe)

	var out []Completion
	msg := make([]byte, l.ls.callbackMsg.size)
	for l.f.nextCallback(l.pipe, unsafe.Pointer(&msg[0])) {
		d := decoder{buf: msg, l: l.ls.callbackMsg}
		if d.i32(1) == callbackAPICallCompleted {
			param := d.ptr(2)
			size := d.i32(3)
			if param != 0 && size > 0 {
				//nolint:govet // param points at SDK-owned memory valid until FreeLastCallback
				raw := bytes.Clone(unsafe.Slice((*byte)(unsafe.Pointer(param)), size))
				out = append(out, l.collect(raw))
			}
		}
		l.f.freeLastCallback(l.pipe)
	}
	return out
}

func (l *Library) collect(raw []byte) Completion {
	call, expected, size := l.ls.decodeAPICallCompleted(raw)
	c := Completion{Call: call, CallbackID: expected}

	buf := make([]byte, max(size, 1))
	var failed bool
	ok := l.f.callResult(
		l.pipe, uint64(call), unsafe.Pointer(&buf[0]),
		int32(size), expected, unsafe.Pointer(&failed), //nolint:gosec // size comes from the SDK
	)
	if !ok || failed {
		c.IOFailure = true
		return c
	}

	res, err := l.ls.decodeCallResult(expected, buf)
	if err != nil {
		log.Debug().Err(err).Msg("ignoring call result")
		c.IOFailure = true
		return c
	}
	c.Result = res
	return c
}

func (l *Library) CreateQueryUserPublished(account uint32, appID AppID, page uint32) QueryHandle {
	return QueryHandle(l.f.createQueryUser(
		l.ugc, account, userUGCListPublished, ugcMatchingItems, userUGCSortCreationOrderDesc,
		uint32(appID), uint32(appID), page,
	))
}

func (l *Library) CreateQueryDetails(ids []PublishedFileID) QueryHandle {
	if len(ids) == 0 {
		return InvalidQueryHandle
	}
	raw := make([]uint64, len(ids))
	for i, id := range ids {
		raw[i] = uint64(id)
	}
	//nolint:gosec // batch sizes are small
	return QueryHandle(l.f.createQueryDetails(l.ugc, unsafe.Pointer(&raw[0]), uint32(len(raw))))
}

func (l *Library) SetReturnLongDescription(h QueryHandle, v bool) bool {
	return l.f.setReturnLongDesc(l.ugc, uint64(h), v)
}

func (l *Library) SetReturnMetadata(h QueryHandle, v bool) bool {
	return l.f.setReturnMetadata(l.ugc, uint64(h), v)
}

func (l *Library) SetReturnChildren(h QueryHandle, v bool) bool {
	return l.f.setReturnChildren(l.ugc, uint64(h), v)
}

func (l *Library) SendQuery(h QueryHandle) APICall {
	return APICall(l.f.sendQuery(l.ugc, uint64(h)))
}

func (l *Library) QueryResult(h QueryHandle, index uint32) (UGCDetails, bool) {
	// slack for SDK versions that append fields
	buf := make([]byte, l.ls.ugcDetails.size+64)
	if !l.f.queryResult(l.ugc, uint64(h), index, unsafe.Pointer(&buf[0])) {
		return UGCDetails{}, false
	}
	return l.ls.decodeUGCDetails(buf), true
}

func (l *Library) QueryPreviewURL(h QueryHandle, index uint32) string {
	buf := make([]byte, previewURLSize)
	if !l.f.queryPreviewURL(l.ugc, uint64(h), index, unsafe.Pointer(&buf[0]), previewURLSize) {
		return ""
	}
	return cString(buf)
}

func (l *Library) QueryChildren(h QueryHandle, index, count uint32) []PublishedFileID {
	if count == 0 {
		return nil
	}
	raw := make([]uint64, count)
	if !l.f.queryChildren(l.ugc, uint64(h), index, unsafe.Pointer(&raw[0]), count) {
		return nil
	}
	ids := make([]PublishedFileID, 0, count)
	for _, id := range raw {
		if id != 0 {
			ids = append(ids, PublishedFileID(id))
		}
	}
	return ids
}

func (l *Library) ReleaseQuery(h QueryHandle) bool {
	return l.f.releaseQuery(l.ugc, uint64(h))
}

func (l *Library) CreateItem(appID AppID) APICall {
	return APICall(l.f.createItem(l.ugc, uint32(appID), workshopFileTypeCommunity))
}

func (l *Library) StartItemUpdate(appID AppID, id PublishedFileID) UpdateHandle {
	return UpdateHandle(l.f.startItemUpdate(l.ugc, uint32(appID), uint64(id)))
}

func (l *Library) SetItemTitle(h UpdateHandle, title string) bool {
	return l.f.setItemTitle(l.ugc, uint64(h), title)
}

func (l *Library) SetItemDescription(h UpdateHandle, desc string) bool {
	return l.f.setItemDescription(l.ugc, uint64(h), desc)
}

func (l *Library) SetItemContent(h UpdateHandle, folder string) bool {
	return l.f.setItemContent(l.ugc, uint64(h), folder)
}

func (l *Library) SetItemPreview(h UpdateHandle, path string) bool {
	return l.f.setItemPreview(l.ugc, uint64(h), path)
}

func (l *Library) SetItemVisibility(h UpdateHandle, v Visibility) bool {
	return l.f.setItemVisibility(l.ugc, uint64(h), int32(v))
}

// paramStringArray mirrors SteamParamStringArray_t.
type paramStringArray struct {
	strings uintptr
	count   int32
}

func (l *Library) SetItemTags(h UpdateHandle, tags []string) bool {
	var pinner runtime.Pinner
	defer pinner.Unpin()

	ptrs := make([]uintptr, len(tags))
	for i, tag := range tags {
		b := append([]byte(tag), 0)
		pinner.Pin(&b[0])
		ptrs[i] = uintptr(unsafe.Pointer(&b[0]))
	}

	//nolint:gosec // tag counts are small
	arr := paramStringArray{count: int32(len(ptrs))}
	if len(ptrs) > 0 {
		pinner.Pin(&ptrs[0])
		arr.strings = uintptr(unsafe.Pointer(&ptrs[0]))
	}
	return l.f.setItemTags(l.ugc, uint64(h), unsafe.Pointer(&arr), false)
}

func (l *Library) SubmitItemUpdate(h UpdateHandle, changeNote string) APICall {
	return APICall(l.f.submitItemUpdate(l.ugc, uint64(h), changeNote))
}

func (l *Library) ItemUpdateProgress(h UpdateHandle) (status ItemUpdateStatus, processed, total uint64) {
	status = ItemUpdateStatus(l.f.itemUpdateProgress(
		l.ugc, uint64(h), unsafe.Pointer(&processed), unsafe.Pointer(&total),
	))
	return status, processed, total
}

func (l *Library) DeleteItem(id PublishedFileID) APICall {
	return APICall(l.f.deleteItem(l.ugc, uint64(id)))
}

func (l *Library) AddDependency(parent, child PublishedFileID) APICall {
	return APICall(l.f.addDependency(l.ugc, uint64(parent), uint64(child)))
}

func (l *Library) RemoveDependency(parent, child PublishedFileID) APICall {
	return APICall(l.f.removeDependency(l.ugc, uint64(parent), uint64(child)))
}

func (l *Library) CreateCookieContainer(allowResponsesToModify bool) CookieContainer {
	return CookieContainer(l.f.createCookieContainer(l.http, allowResponsesToModify))
}

func (l *Library) CreateHTTPRequest(method HTTPMethod, url string) HTTPRequest {
	return HTTPRequest(l.f.createHTTPRequest(l.http, int32(method), url))
}

func (l *Library) SetHTTPRequestCookieContainer(req HTTPRequest, c CookieContainer) bool {
	return l.f.setRequestCookies(l.http, uint32(req), uint32(c))
}

func (l *Library) SetHTTPRequestHeader(req HTTPRequest, name, value string) bool {
	return l.f.setRequestHeader(l.http, uint32(req), name, value)
}

func (l *Library) SendHTTPRequest(req HTTPRequest) (APICall, bool) {
	var call uint64
	ok := l.f.sendHTTPRequest(l.http, uint32(req), unsafe.Pointer(&call))
	return APICall(call), ok
}

func (l *Library) HTTPResponseBody(req HTTPRequest, size uint32) ([]byte, bool) {
	if size == 0 {
		return nil, false
	}
	buf := make([]byte, size)
	if !l.f.responseBody(l.http, uint32(req), unsafe.Pointer(&buf[0]), size) {
		return nil, false
	}
	return buf, true
}

func (l *Library) ReleaseHTTPRequest(req HTTPRequest) bool {
	return l.f.releaseHTTPRequest(l.http, uint32(req))
}
