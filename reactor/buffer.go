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
	liberr "github.com/sabouaram/reactor/errors"
)

// buffer is a contiguous byte buffer with a read cursor and a write
// position, giving FIFO semantics without a ring. Growth is governed by a
// grow flag and a fixed chunk size: when the buffer is full, unread bytes
// are compacted to the front first; if that alone doesn't free enough
// room and growth is enabled, capacity is extended by another chunk.
type buffer struct {
	buf    []byte
	off    int
	wpos   int
	grow   bool
	growBy int
}

func newBuffer(capacity int, grow bool) *buffer {
	return &buffer{
		buf:    make([]byte, capacity),
		grow:   grow,
		growBy: capacity,
	}
}

// unread returns the slice of bytes not yet consumed.
func (b *buffer) unread() []byte {
	return b.buf[b.off:b.wpos]
}

func (b *buffer) unreadLen() int {
	return b.wpos - b.off
}

// advance marks n bytes as consumed.
func (b *buffer) advance(n int) {
	b.off += n
	if b.off == b.wpos {
		b.off, b.wpos = 0, 0
	}
}

// compact moves the unread suffix to the front of the buffer, preserving
// its bytes exactly, and resets the read cursor to zero.
func (b *buffer) compact() {
	if b.off == 0 {
		return
	}
	n := copy(b.buf, b.buf[b.off:b.wpos])
	b.off = 0
	b.wpos = n
}

func (b *buffer) free() int {
	return len(b.buf) - b.wpos
}

// ensureWritable compacts, then grows if needed and allowed, so that at
// least n more bytes can be appended. Returns a Capacity error otherwise.
func (b *buffer) ensureWritable(n int) liberr.Error {
	if b.free() >= n {
		return nil
	}
	b.compact()
	for b.free() < n {
		if !b.grow {
			return ErrCapacity.Error()
		}
		grown := make([]byte, len(b.buf)+b.growBy)
		copy(grown, b.buf[:b.wpos])
		b.buf = grown
	}
	return nil
}

// write appends p, growing or compacting per policy first.
func (b *buffer) write(p []byte) liberr.Error {
	if len(p) == 0 {
		return nil
	}
	if err := b.ensureWritable(len(p)); err != nil {
		return err
	}
	b.wpos += copy(b.buf[b.wpos:], p)
	return nil
}

// commitWrite advances the write position after bytes were copied directly
// into the tail returned by writableTail.
func (b *buffer) commitWrite(n int) {
	b.wpos += n
}

// writableTail returns the free region at the end of the buffer, for a
// caller that wants to read directly into it.
func (b *buffer) writableTail() []byte {
	return b.buf[b.wpos:]
}

// reset discards all buffered content, used by client Reset() when a
// connection is rewound onto a fresh socket.
func (b *buffer) reset() {
	b.off, b.wpos = 0, 0
}
