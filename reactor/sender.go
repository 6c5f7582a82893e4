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

	liberr "github.com/sabouaram/reactor/errors"
	"github.com/sabouaram/reactor/message"
	"github.com/sabouaram/reactor/protocol"
)

// Sender is a cheap-to-copy, cross-goroutine handle to one connection (or,
// via Broadcast, to every connection). It never touches connection state
// directly: every operation enqueues exactly one Command on the reactor's
// bounded channel and the reactor goroutine applies it. A Sender is a weak
// reference - it never keeps its connection alive, and a stale Sender's
// commands are silently dropped once connectionID no longer matches the
// slab occupant.
type Sender struct {
	targetToken  Token
	connectionID uint32
	channel      chan Command
}

func newSender(token Token, connectionID uint32, channel chan Command) Sender {
	return Sender{targetToken: token, connectionID: connectionID, channel: channel}
}

func (s Sender) enqueue(sig Signal, target Token, blocking bool) liberr.Error {
	cmd := Command{targetToken: target, connectionID: s.connectionID, signal: sig}
	if blocking {
		s.channel <- cmd
		return nil
	}
	select {
	case s.channel <- cmd:
		return nil
	default:
		return ErrQueue.Error()
	}
}

// Send enqueues m for this connection alone, blocking if the queue is full.
func (s Sender) Send(m message.Message) liberr.Error {
	return s.enqueue(messageSignal(m), s.targetToken, true)
}

// TrySend is the non-blocking variant of Send.
func (s Sender) TrySend(m message.Message) liberr.Error {
	return s.enqueue(messageSignal(m), s.targetToken, false)
}

// Broadcast enqueues m for every live connection.
func (s Sender) Broadcast(m message.Message) liberr.Error {
	return s.enqueue(messageSignal(m), ALL, true)
}

// TryBroadcast is the non-blocking variant of Broadcast.
func (s Sender) TryBroadcast(m message.Message) liberr.Error {
	return s.enqueue(messageSignal(m), ALL, false)
}

// Close requests a close of this connection with the given code and an
// empty reason.
func (s Sender) Close(code protocol.CloseCode) liberr.Error {
	return s.enqueue(closeSignal(code, ""), s.targetToken, true)
}

// CloseWithReason requests a close of this connection with a reason string.
func (s Sender) CloseWithReason(code protocol.CloseCode, reason string) liberr.Error {
	return s.enqueue(closeSignal(code, reason), s.targetToken, true)
}

// TryClose is the non-blocking variant of Close.
func (s Sender) TryClose(code protocol.CloseCode) liberr.Error {
	return s.enqueue(closeSignal(code, ""), s.targetToken, false)
}

// Connect asks the reactor to initiate a new outbound connection to url.
func (s Sender) Connect(url string) liberr.Error {
	return s.enqueue(connectSignal(url), s.targetToken, true)
}

// Shutdown requests a graceful shutdown of the whole reactor.
func (s Sender) Shutdown() liberr.Error {
	return s.enqueue(shutdownSignal(), ALL, true)
}

// Timeout schedules userToken to fire on this connection after delay.
func (s Sender) Timeout(delay time.Duration, userToken Token) liberr.Error {
	return s.enqueue(timeoutSignal(delay, userToken), s.targetToken, true)
}

// Cancel removes a previously scheduled timeout before it fires.
func (s Sender) Cancel(handle TimeoutHandle) liberr.Error {
	return s.enqueue(cancelSignal(handle), s.targetToken, true)
}

// Token reports the connection this Sender addresses.
func (s Sender) Token() Token {
	return s.targetToken
}
