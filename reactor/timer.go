/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package reactor

import (
	"time"
)

const (
	wheelTick     = 100 * time.Millisecond
	wheelSlots    = 1024
	wheelCapacity = 65536
)

// timeoutEntry is what the wheel stores per scheduled timeout.
type timeoutEntry struct {
	handle    TimeoutHandle
	slot      int
	round     int
	connToken Token
	userToken Token
	alive     bool
}

// wheel is a hashed timer wheel: fires Timeout records onto fireCh every
// tick, driven by a single background goroutine the reactor starts once
// and drains from its own select loop.
type wheel struct {
	slots   [wheelSlots][]*timeoutEntry
	current int
	entries map[TimeoutHandle]*timeoutEntry
	nextID  uint64
	fireCh  chan TimeoutRecord
	stopCh  chan struct{}
}

// TimeoutRecord is what the wheel delivers on firing: the connection and
// user-chosen token that identify which handler's OnTimeout to invoke.
type TimeoutRecord struct {
	Connection Token
	Event      Token
}

func newWheel() *wheel {
	return &wheel{
		entries: make(map[TimeoutHandle]*timeoutEntry, 64),
		fireCh:  make(chan TimeoutRecord, 256),
		stopCh:  make(chan struct{}),
	}
}

func (w *wheel) run() {
	ticker := time.NewTicker(wheelTick)
	defer ticker.Stop()
	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.tick()
		}
	}
}

func (w *wheel) stop() {
	close(w.stopCh)
}

func (w *wheel) tick() {
	slot := w.current
	bucket := w.slots[slot]
	remaining := bucket[:0]
	for _, e := range bucket {
		if !e.alive {
			continue
		}
		if e.round > 0 {
			e.round--
			remaining = append(remaining, e)
			continue
		}
		delete(w.entries, e.handle)
		select {
		case w.fireCh <- TimeoutRecord{Connection: e.connToken, Event: e.userToken}:
		default:
		}
	}
	w.slots[slot] = remaining
	w.current = (w.current + 1) % wheelSlots
}

// schedule arms a new timeout delay from now, returning a handle that can
// later be passed to cancel. Returns the zero handle and false if the
// wheel is at capacity.
func (w *wheel) schedule(connToken, userToken Token, delay time.Duration) (TimeoutHandle, bool) {
	if len(w.entries) >= wheelCapacity {
		return 0, false
	}
	ticks := int(delay / wheelTick)
	if ticks < 1 {
		ticks = 1
	}
	slot := (w.current + ticks) % wheelSlots
	round := ticks / wheelSlots

	w.nextID++
	handle := TimeoutHandle(w.nextID)
	e := &timeoutEntry{handle: handle, slot: slot, round: round, connToken: connToken, userToken: userToken, alive: true}
	w.slots[slot] = append(w.slots[slot], e)
	w.entries[handle] = e
	return handle, true
}

// cancel removes a scheduled timeout before it fires. A no-op if the
// handle has already fired or never existed.
func (w *wheel) cancel(handle TimeoutHandle) {
	if e, ok := w.entries[handle]; ok {
		e.alive = false
		delete(w.entries, handle)
	}
}
