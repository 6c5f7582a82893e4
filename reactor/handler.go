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
	"github.com/sabouaram/reactor/message"
	"github.com/sabouaram/reactor/protocol"
)

// Handler is the capability set the reactor drives for one connection. All
// methods run synchronously on the reactor goroutine and must not block.
type Handler interface {
	OnOpen() error
	OnMessage(m message.Message) error
	OnClose(code protocol.CloseCode, reason string)
	OnError(err error)
	OnShutdown()
	OnTimeout(userToken Token) error
	OnNewTimeout(userToken Token, handle TimeoutHandle) error
}

// HandlerFunc adapts a plain function of one message argument into a
// Handler whose only overridden method is OnMessage; every other method
// falls back to HandlerFuncs' defaults.
type HandlerFunc func(m message.Message) error

// HandlerFuncs is a capability set of defaulted function fields: set only
// the fields you need, leave the rest nil for the do-nothing default.
type HandlerFuncs struct {
	Open       func() error
	Message    func(m message.Message) error
	Close      func(code protocol.CloseCode, reason string)
	Error      func(err error)
	Shutdown   func()
	Timeout    func(userToken Token) error
	NewTimeout func(userToken Token, handle TimeoutHandle) error
}

func (f HandlerFunc) OnOpen() error                      { return nil }
func (f HandlerFunc) OnMessage(m message.Message) error  { return f(m) }
func (f HandlerFunc) OnClose(protocol.CloseCode, string) {}
func (f HandlerFunc) OnError(err error) {
	if !IsConnReset(err) {
		Default().Warning("handler.OnError", logFieldsErr(err))
	}
}
func (f HandlerFunc) OnShutdown()                             {}
func (f HandlerFunc) OnTimeout(Token) error                   { return nil }
func (f HandlerFunc) OnNewTimeout(Token, TimeoutHandle) error { return nil }

func (h HandlerFuncs) OnOpen() error {
	if h.Open != nil {
		return h.Open()
	}
	return nil
}

func (h HandlerFuncs) OnMessage(m message.Message) error {
	if h.Message != nil {
		return h.Message(m)
	}
	return nil
}

func (h HandlerFuncs) OnClose(code protocol.CloseCode, reason string) {
	if h.Close != nil {
		h.Close(code, reason)
	}
}

func (h HandlerFuncs) OnError(err error) {
	if h.Error != nil {
		h.Error(err)
		return
	}
	if !IsConnReset(err) {
		Default().Warning("handler.OnError", logFieldsErr(err))
	}
}

func (h HandlerFuncs) OnShutdown() {
	if h.Shutdown != nil {
		h.Shutdown()
	}
}

func (h HandlerFuncs) OnTimeout(userToken Token) error {
	if h.Timeout != nil {
		return h.Timeout(userToken)
	}
	return nil
}

func (h HandlerFuncs) OnNewTimeout(userToken Token, handle TimeoutHandle) error {
	if h.NewTimeout != nil {
		return h.NewTimeout(userToken, handle)
	}
	return nil
}

// Factory produces one Handler per connection and is notified of the
// connection's whole lifecycle. It is exclusively owned by the reactor.
type Factory interface {
	ConnectionMade(out Sender) Handler
	ClientConnected(out Sender) Handler
	ServerConnected(out Sender) Handler
	OnShutdown()
	ConnectionLost(h Handler)
}

// FactoryFuncs adapts a required ConnectionMade function into a Factory,
// defaulting ClientConnected/ServerConnected to it and OnShutdown/
// ConnectionLost to no-ops.
type FactoryFuncs struct {
	Made     func(out Sender) Handler
	Client   func(out Sender) Handler
	Server   func(out Sender) Handler
	Shutdown func()
	Lost     func(h Handler)
}

func (f FactoryFuncs) ConnectionMade(out Sender) Handler {
	return f.Made(out)
}

func (f FactoryFuncs) ClientConnected(out Sender) Handler {
	if f.Client != nil {
		return f.Client(out)
	}
	return f.ConnectionMade(out)
}

func (f FactoryFuncs) ServerConnected(out Sender) Handler {
	if f.Server != nil {
		return f.Server(out)
	}
	return f.ConnectionMade(out)
}

func (f FactoryFuncs) OnShutdown() {
	if f.Shutdown != nil {
		f.Shutdown()
	}
}

func (f FactoryFuncs) ConnectionLost(h Handler) {
	if f.Lost != nil {
		f.Lost(h)
	}
}

// simpleFactory wraps a single ConnectionMade-shaped function for callers
// who want neither client/server nor shutdown/lost distinctions.
type simpleFactory struct {
	make func(out Sender) Handler
}

func (f simpleFactory) ConnectionMade(out Sender) Handler  { return f.make(out) }
func (f simpleFactory) ClientConnected(out Sender) Handler { return f.make(out) }
func (f simpleFactory) ServerConnected(out Sender) Handler { return f.make(out) }
func (f simpleFactory) OnShutdown()                        {}
func (f simpleFactory) ConnectionLost(Handler)             {}

// NewFactory adapts a bare "one Handler per connection" function into a
// Factory, for the common case where client/server origin and shutdown/lost
// notifications don't matter.
func NewFactory(make func(out Sender) Handler) Factory {
	return simpleFactory{make: make}
}
