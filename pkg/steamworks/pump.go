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
	"fmt"
	"sync"
	"time"

	"github.com/ZaparooProject/zaparoo-workshop/pkg/helpers/syncutil"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// FrameInterval is how often the pump runs a native callback frame.
const FrameInterval = 100 * time.Millisecond

// Pump is the process-wide native callback scheduler. One goroutine runs
// a frame every FrameInterval and resolves the Future registered for each
// completed call. Every native call goes through the pump's mutex, so the
// API never sees concurrent use.
type Pump struct {
	api      API
	clock    clockwork.Clock
	pending  map[APICall]*Future
	stopped  chan struct{}
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	interval time.Duration
	mu       syncutil.Mutex
	running  bool
}

// NewPump returns a stopped pump over api.
func NewPump(api API, clock clockwork.Clock) *Pump {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Pump{
		api:      api,
		clock:    clock,
		interval: FrameInterval,
		pending:  make(map[APICall]*Future),
	}
}

// Start launches the frame loop. It is a no-op if the pump is running.
func (p *Pump) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.stopped = make(chan struct{})
	p.running = true

	p.wg.Add(1)
	go p.loop(loopCtx)
}

func (p *Pump) loop(ctx context.Context) {
	defer p.wg.Done()

	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			p.mu.Lock()
			p.frameLocked()
			p.mu.Unlock()
		}
	}
}

// Stop ends the frame loop and waits for it to exit. Futures still
// waiting fail with ErrPumpStopped.
func (p *Pump) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	cancel := p.cancel
	p.mu.Unlock()

	cancel()
	p.wg.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.pending) > 0 {
		log.Debug().Int("pending", len(p.pending)).Msg("pump stopped with calls in flight")
	}
	clear(p.pending)
	close(p.stopped)
	p.running = false
}

// Running reports whether the frame loop is active.
func (p *Pump) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Drain runs one extra frame so results already queued natively are
// dispatched before shutdown.
func (p *Pump) Drain() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	p.frameLocked()
}

func (p *Pump) frameLocked() {
	for _, c := range p.api.RunFrame() {
		f, ok := p.pending[c.Call]
		if !ok {
			log.Debug().
				Uint64("call", uint64(c.Call)).
				Int32("callback", c.CallbackID).
				Msg("dropping completion with no waiting future")
			continue
		}
		delete(p.pending, c.Call)
		f.ch <- c
	}
}

// Exec runs fn with exclusive access to the native API.
func (p *Pump) Exec(fn func(API)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return ErrPumpStopped
	}
	fn(p.api)
	return nil
}

// Issue starts an async native call and registers a Future for its result
// in the same critical section, so no frame can complete it unobserved.
func (p *Pump) Issue(fn func(API) APICall) (*Future, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return nil, ErrPumpStopped
	}

	call := fn(p.api)
	if call == InvalidAPICall {
		return nil, ErrInvalidCall
	}

	f := &Future{
		pump:    p,
		call:    call,
		ch:      make(chan Completion, 1),
		stopped: p.stopped,
	}
	p.pending[call] = f
	return f, nil
}

func (p *Pump) forget(call APICall) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.pending, call)
}

// Pending returns the number of futures still waiting.
func (p *Pump) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// Future is the pending result of one native async call.
type Future struct {
	pump    *Pump
	ch      chan Completion
	stopped chan struct{}
	call    APICall
}

// Call returns the native call handle.
func (f *Future) Call() APICall {
	return f.call
}

// Wait blocks until the call completes, the pump stops or timeout passes.
// On timeout the future is deregistered and a later completion is dropped.
func (f *Future) Wait(timeout time.Duration) (Completion, error) {
	return f.wait(timeout, nil, nil)
}

// WaitPolling is Wait with tick called every interval while waiting. Upload
// progress is sampled this way during item submission.
func (f *Future) WaitPolling(timeout, interval time.Duration, tick func()) (Completion, error) {
	ticker := f.pump.clock.NewTicker(interval)
	defer ticker.Stop()
	return f.wait(timeout, ticker.Chan(), tick)
}

func (f *Future) wait(timeout time.Duration, ticks <-chan time.Time, tick func()) (Completion, error) {
	timer := f.pump.clock.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case c := <-f.ch:
			return c, nil
		case <-f.stopped:
			return Completion{}, ErrPumpStopped
		case <-ticks:
			tick()
		case <-timer.Chan():
			f.pump.forget(f.call)
			// a frame may have resolved it between the timer and forget
			select {
			case c := <-f.ch:
				return c, nil
			default:
			}
			return Completion{}, fmt.Errorf("%w after %s", ErrTimeout, timeout)
		}
	}
}

// Await waits for f and returns its decoded payload as T.
func Await[T any](f *Future, timeout time.Duration) (T, error) {
	return decode[T](f.Wait(timeout))
}

// AwaitPolling is Await with a periodic tick, see Future.WaitPolling.
func AwaitPolling[T any](f *Future, timeout, interval time.Duration, tick func()) (T, error) {
	return decode[T](f.WaitPolling(timeout, interval, tick))
}

func decode[T any](c Completion, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	if c.IOFailure {
		return zero, fmt.Errorf("%w: call %d", ErrIOFailure, c.Call)
	}
	v, ok := c.Result.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %T", ErrUnexpected, c.Result)
	}
	return v, nil
}
