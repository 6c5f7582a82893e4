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

	"github.com/sabouaram/reactor/message"
	"github.com/sabouaram/reactor/protocol"
)

// SignalKind tags the payload carried by a Command.
type SignalKind uint8

const (
	SigMessage SignalKind = iota
	SigClose
	SigConnect
	SigShutdown
	SigTimeout
	SigCancel
	SigApplySettings
)

func (k SignalKind) String() string {
	switch k {
	case SigMessage:
		return "Message"
	case SigClose:
		return "Close"
	case SigConnect:
		return "Connect"
	case SigShutdown:
		return "Shutdown"
	case SigTimeout:
		return "Timeout"
	case SigCancel:
		return "Cancel"
	case SigApplySettings:
		return "ApplySettings"
	default:
		return "Unknown"
	}
}

// TimeoutHandle identifies a scheduled timeout for later cancellation.
type TimeoutHandle uint64

// Signal is the payload of a Command: exactly one of its fields is
// meaningful, selected by Kind.
type Signal struct {
	Kind SignalKind

	Message     message.Message
	CloseCode   protocol.CloseCode
	Reason      string
	URL         string
	Delay       time.Duration
	UserToken   Token
	Handle      TimeoutHandle
	NewSettings Settings
}

func messageSignal(m message.Message) Signal {
	return Signal{Kind: SigMessage, Message: m}
}

func closeSignal(code protocol.CloseCode, reason string) Signal {
	return Signal{Kind: SigClose, CloseCode: code, Reason: reason}
}

func connectSignal(url string) Signal {
	return Signal{Kind: SigConnect, URL: url}
}

func shutdownSignal() Signal {
	return Signal{Kind: SigShutdown}
}

func timeoutSignal(delay time.Duration, userToken Token) Signal {
	return Signal{Kind: SigTimeout, Delay: delay, UserToken: userToken}
}

func cancelSignal(handle TimeoutHandle) Signal {
	return Signal{Kind: SigCancel, Handle: handle}
}

// applySettingsSignal carries a config-reload payload from the settings
// watcher goroutine onto the reactor's own queue, so the reactor goroutine
// is the only thing that ever writes Reactor.settings.
func applySettingsSignal(next Settings) Signal {
	return Signal{Kind: SigApplySettings, NewSettings: next}
}

// Command is the envelope carried on the reactor's internal queue.
type Command struct {
	targetToken  Token
	connectionID uint32
	signal       Signal
}
