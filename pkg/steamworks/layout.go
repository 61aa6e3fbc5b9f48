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
	"encoding/binary"
	"fmt"
	"math"
	"time"
	"unsafe"
)

// Steam callback structs are declared under #pragma pack: 8 on Windows and
// 4 everywhere else. Fields align to min(natural alignment, pack).

type fieldKind struct {
	size  int
	align int
}

var (
	kBool = fieldKind{size: 1, align: 1}
	kI32  = fieldKind{size: 4, align: 4}
	kU32  = kI32
	kF32  = kI32
	kU64  = fieldKind{size: 8, align: 8}
	kPtr  = fieldKind{size: int(unsafe.Sizeof(uintptr(0))), align: int(unsafe.Sizeof(uintptr(0)))}
)

func kChars(n int) fieldKind {
	return fieldKind{size: n, align: 1}
}

type structLayout struct {
	offsets []int
	size    int
}

func newLayout(pack int, fields ...fieldKind) structLayout {
	l := structLayout{offsets: make([]int, len(fields))}
	off, maxAlign := 0, 1
	for i, f := range fields {
		a := min(f.align, pack)
		maxAlign = max(maxAlign, a)
		off = alignUp(off, a)
		l.offsets[i] = off
		off += f.size
	}
	l.size = alignUp(off, maxAlign)
	return l
}

func alignUp(n, a int) int {
	return (n + a - 1) / a * a
}

type layouts struct {
	callbackMsg     structLayout
	apiCallComplete structLayout
	queryCompleted  structLayout
	createItem      structLayout
	submitItem      structLayout
	deleteItem      structLayout
	dependency      structLayout
	httpCompleted   structLayout
	ugcDetails      structLayout
}

func newLayouts(pack int) layouts {
	return layouts{
		// CallbackMsg_t
		callbackMsg: newLayout(pack, kI32, kI32, kPtr, kI32),
		// SteamAPICallCompleted_t
		apiCallComplete: newLayout(pack, kU64, kI32, kU32),
		// SteamUGCQueryCompleted_t
		queryCompleted: newLayout(pack, kU64, kI32, kU32, kU32, kBool, kChars(256)),
		// CreateItemResult_t
		createItem: newLayout(pack, kI32, kU64, kBool),
		// SubmitItemUpdateResult_t
		submitItem: newLayout(pack, kI32, kBool, kU64),
		// DeleteItemResult_t
		deleteItem: newLayout(pack, kI32, kU64),
		// AddUGCDependencyResult_t and RemoveUGCDependencyResult_t
		dependency: newLayout(pack, kI32, kU64, kU64),
		// HTTPRequestCompleted_t
		httpCompleted: newLayout(pack, kU32, kU64, kBool, kI32, kU32),
		// SteamUGCDetails_t
		ugcDetails: newLayout(pack,
			kU64, kI32, kI32, kU32, kU32, // id, result, file type, creator, consumer
			kChars(129), kChars(8000), // title, description
			kU64, kU32, kU32, kU32, // owner, created, updated, added to list
			kI32, kBool, kBool, kBool, // visibility, banned, accepted, truncated
			kChars(1025),            // tags
			kU64, kU64, kChars(260), // file, preview file, file name
			kI32, kI32, kChars(256), // file size, preview size, url
			kU32, kU32, kF32, kU32, // votes up, votes down, score, children
			kU64, // total files size
		),
	}
}

var nativeLayouts = newLayouts(callbackPack)

type decoder struct {
	buf []byte
	l   structLayout
}

func (d decoder) u32(i int) uint32 {
	off := d.l.offsets[i]
	if off+4 > len(d.buf) {
		return 0
	}
	return binary.LittleEndian.Uint32(d.buf[off:])
}

func (d decoder) i32(i int) int32 {
	return int32(d.u32(i)) //nolint:gosec // bit reinterpretation
}

func (d decoder) u64(i int) uint64 {
	off := d.l.offsets[i]
	if off+8 > len(d.buf) {
		return 0
	}
	return binary.LittleEndian.Uint64(d.buf[off:])
}

func (d decoder) f32(i int) float32 {
	return math.Float32frombits(d.u32(i))
}

func (d decoder) boolean(i int) bool {
	off := d.l.offsets[i]
	return off < len(d.buf) && d.buf[off] != 0
}

func (d decoder) str(i, n int) string {
	off := d.l.offsets[i]
	if off >= len(d.buf) {
		return ""
	}
	end := min(off+n, len(d.buf))
	return cString(d.buf[off:end])
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

func unixTime(secs uint32) time.Time {
	if secs == 0 {
		return time.Time{}
	}
	return time.Unix(int64(secs), 0)
}

func (ls layouts) decodeAPICallCompleted(buf []byte) (APICall, int32, uint32) {
	d := decoder{buf: buf, l: ls.apiCallComplete}
	return APICall(d.u64(0)), d.i32(1), d.u32(2)
}

// decodeCallResult turns a raw call result buffer into its payload struct.
func (ls layouts) decodeCallResult(callbackID int32, buf []byte) (any, error) {
	switch callbackID {
	case callbackUGCQueryCompleted:
		d := decoder{buf: buf, l: ls.queryCompleted}
		return QueryCompleted{
			Handle:        QueryHandle(d.u64(0)),
			Result:        EResult(d.i32(1)),
			NumResults:    d.u32(2),
			TotalMatching: d.u32(3),
			Cached:        d.boolean(4),
		}, nil
	case callbackCreateItem:
		d := decoder{buf: buf, l: ls.createItem}
		return CreateItemResult{
			Result:              EResult(d.i32(0)),
			ID:                  PublishedFileID(d.u64(1)),
			NeedsLegalAgreement: d.boolean(2),
		}, nil
	case callbackSubmitItemUpdate:
		d := decoder{buf: buf, l: ls.submitItem}
		return SubmitItemUpdateResult{
			Result:              EResult(d.i32(0)),
			NeedsLegalAgreement: d.boolean(1),
			ID:                  PublishedFileID(d.u64(2)),
		}, nil
	case callbackDeleteItem:
		d := decoder{buf: buf, l: ls.deleteItem}
		return DeleteItemResult{
			Result: EResult(d.i32(0)),
			ID:     PublishedFileID(d.u64(1)),
		}, nil
	case callbackAddDependency, callbackRemoveDependency:
		d := decoder{buf: buf, l: ls.dependency}
		return DependencyResult{
			Result: EResult(d.i32(0)),
			Parent: PublishedFileID(d.u64(1)),
			Child:  PublishedFileID(d.u64(2)),
		}, nil
	case callbackHTTPRequestComplete:
		d := decoder{buf: buf, l: ls.httpCompleted}
		return HTTPCompleted{
			Request:    HTTPRequest(d.u32(0)),
			Context:    d.u64(1),
			Successful: d.boolean(2),
			Status:     d.i32(3),
			BodySize:   d.u32(4),
		}, nil
	default:
		return nil, fmt.Errorf("%w: callback %d", ErrUnexpected, callbackID)
	}
}

func (ls layouts) decodeUGCDetails(buf []byte) UGCDetails {
	d := decoder{buf: buf, l: ls.ugcDetails}
	return UGCDetails{
		ID:             PublishedFileID(d.u64(0)),
		Result:         EResult(d.i32(1)),
		CreatorAppID:   AppID(d.u32(3)),
		ConsumerAppID:  AppID(d.u32(4)),
		Title:          d.str(5, 129),
		Description:    d.str(6, 8000),
		OwnerID:        d.u64(7),
		Created:        unixTime(d.u32(8)),
		Updated:        unixTime(d.u32(9)),
		Visibility:     Visibility(d.i32(11)),
		Banned:         d.boolean(12),
		TagsTruncated:  d.boolean(14),
		Tags:           d.str(15, 1025),
		FileName:       d.str(18, 260),
		FileSize:       d.i32(19),
		PreviewSize:    d.i32(20),
		URL:            d.str(21, 256),
		VotesUp:        d.u32(22),
		VotesDown:      d.u32(23),
		Score:          d.f32(24),
		NumChildren:    d.u32(25),
		TotalFilesSize: d.u64(26),
	}
}

func (d decoder) ptr(i int) uintptr {
	if kPtr.size == 8 {
		return uintptr(d.u64(i))
	}
	return uintptr(d.u32(i))
}
