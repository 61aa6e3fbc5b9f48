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
	"context"
	"sync/atomic"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// State of the native runtime.
type State int32

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateShuttingDown
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateShuttingDown:
		return "shutting down"
	default:
		return "unknown"
	}
}

// ClientCheck reports whether the Steam client process is running.
type ClientCheck func(ctx context.Context) bool

// Runtime owns the native library lifecycle for one AppID per process.
// The SDK cannot rebind to another AppID, so a shut down runtime is not
// initialized again by callers that switch sessions; they relaunch.
type Runtime struct {
	api         API
	pump        *Pump
	clientCheck ClientCheck
	state       atomic.Int32
	appID       atomic.Uint32
	steamID     atomic.Uint64
}

// NewRuntime creates an uninitialized runtime. clientCheck may be nil, in
// which case only the library's own running check is used.
func NewRuntime(api API, clock clockwork.Clock, clientCheck ClientCheck) *Runtime {
	return &Runtime{
		api:         api,
		pump:        NewPump(api, clock),
		clientCheck: clientCheck,
	}
}

// Init binds the runtime to appID and starts the pump. It returns false,
// never an error, when the client is not running or the library refuses to
// initialize. There are no retries.
func (r *Runtime) Init(ctx context.Context, appID AppID) bool {
	if !r.state.CompareAndSwap(int32(StateUninitialized), int32(StateInitializing)) {
		current := r.State()
		log.Warn().Stringer("state", current).Msg("steamworks init called in wrong state")
		return current == StateReady && r.AppID() == appID
	}

	if r.clientCheck != nil && !r.clientCheck(ctx) {
		log.Warn().Msg("Steam client is not running")
		r.state.Store(int32(StateUninitialized))
		return false
	}
	if !r.api.IsSteamRunning() {
		log.Warn().Msg("Steam client is not running")
		r.state.Store(int32(StateUninitialized))
		return false
	}

	if err := r.api.Init(appID); err != nil {
		log.Error().Err(err).Uint32("appID", uint32(appID)).Msg("steamworks init failed")
		r.state.Store(int32(StateUninitialized))
		return false
	}

	r.appID.Store(uint32(appID))
	r.steamID.Store(r.api.SteamID())
	r.pump.Start(context.WithoutCancel(ctx))
	r.state.Store(int32(StateReady))

	log.Info().
		Uint32("appID", uint32(appID)).
		Uint32("account", AccountID(r.SteamID())).
		Msg("steamworks initialized")
	return true
}

// Shutdown drains queued callbacks with a final frame, stops the pump and
// shuts the library down. Calling it when not ready does nothing.
func (r *Runtime) Shutdown() {
	if !r.state.CompareAndSwap(int32(StateReady), int32(StateShuttingDown)) {
		return
	}

	r.pump.Drain()
	r.pump.Stop()
	r.api.Shutdown()

	r.state.Store(int32(StateUninitialized))
	log.Info().Msg("steamworks shut down")
}

// State returns the current lifecycle state.
func (r *Runtime) State() State {
	return State(r.state.Load())
}

// Ready reports whether native calls may be issued.
func (r *Runtime) Ready() bool {
	return r.State() == StateReady
}

// AppID returns the AppID the runtime was initialized with.
func (r *Runtime) AppID() AppID {
	return AppID(r.appID.Load())
}

// SteamID returns the logged-in user's 64-bit Steam id.
func (r *Runtime) SteamID() uint64 {
	return r.steamID.Load()
}

// Pump returns the runtime's callback pump.
func (r *Runtime) Pump() *Pump {
	return r.pump
}
