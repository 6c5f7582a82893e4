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
	"errors"
	"net"
	"strings"
	"syscall"

	liberr "github.com/sabouaram/reactor/errors"
)

// The closed failure taxonomy a Connection or Reactor can raise. Each kind
// carries its own close-code mapping in Connection.Error.
const (
	ErrInternal liberr.CodeError = iota + liberr.MinPkgReactor
	ErrCapacity
	ErrProtocol
	ErrEncoding
	ErrIO
	ErrHTTP
	ErrQueue
	ErrTimer
	ErrCustom
)

const (
	// ErrNotNegotiating is returned by ClearNegotiating on the plain-TCP
	// Stream, which never enters a negotiating state in the first place.
	ErrNotNegotiating liberr.CodeError = iota + liberr.MinPkgStream
)

var isCodeError = false

func IsCodeError() bool {
	return isCodeError
}

func init() {
	isCodeError = liberr.ExistInMapMessage(ErrInternal)
	liberr.RegisterIdFctMessage(ErrInternal, getMessage)
	liberr.RegisterIdFctMessage(ErrNotNegotiating, getMessage)
}

func getMessage(code liberr.CodeError) (message string) {
	switch code {
	case ErrInternal:
		return "internal reactor error"
	case ErrCapacity:
		return "capacity exceeded"
	case ErrProtocol:
		return "protocol error"
	case ErrEncoding:
		return "payload is not valid utf-8"
	case ErrIO:
		return "i/o error"
	case ErrHTTP:
		return "malformed http-style handshake"
	case ErrQueue:
		return "command queue is full"
	case ErrTimer:
		return "timer scheduling error"
	case ErrCustom:
		return "custom error"
	case ErrNotNegotiating:
		return "stream is not negotiating"
	}
	return ""
}

// IsConnReset reports whether err is the Go analogue of the original
// core's errno-104 suppression: the peer tore the connection down from
// underneath us. The default Handler.OnError swallows this silently.
func IsConnReset(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	if errors.Is(err, net.ErrClosed) {
		return true
	}
	return strings.Contains(err.Error(), "use of closed network connection")
}

// isConnRefused reports whether err is the Go analogue of ECONNREFUSED,
// the trigger for a client connection's Reset.
func isConnRefused(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED)
}
