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
	"io"
	"net"

	liberr "github.com/sabouaram/reactor/errors"
	"github.com/sabouaram/reactor/message"
	"github.com/sabouaram/reactor/protocol"
)

// Events is the readiness mask the reactor consults after driving a
// connection, to decide whether to keep its registration and reader
// goroutine alive.
type Events struct {
	Read  bool
	Write bool
}

// Connection is one live TCP peer. It is exclusively owned and mutated by
// the reactor goroutine; nothing here is safe for concurrent use.
type Connection struct {
	token        Token
	connectionID uint32

	stream Stream
	state  State

	endpoint  Endpoint
	addresses []string

	wantRead  bool
	wantWrite bool

	inBuffer  *buffer
	outBuffer *buffer

	// bytesRead is a running total of bytes pulled off the socket by
	// bufferIn, independent of inBuffer's own read/write cursors. The
	// reactor samples its delta around Read to drive the bytes-in counter,
	// mirroring how pump samples outBuffer's length around Write.
	bytesRead uint64

	handler   Handler
	settings  Settings
	closeCode protocol.CloseCode

	// notify wakes the reactor for this connection's token; reused by
	// Reset to wire up the replacement stream.
	notify func()
}

// NewConnection constructs a Connection in state Connecting. notify is
// invoked (by the stream's reader goroutine, and again by Reset after
// redialing) whenever new data or a read error is ready to be drained.
func NewConnection(token Token, stream Stream, handler Handler, settings Settings, connectionID uint32, notify func()) *Connection {
	return &Connection{
		token:        token,
		connectionID: connectionID,
		stream:       stream,
		state:        Connecting,
		handler:      handler,
		settings:     settings,
		inBuffer:     newBuffer(settings.InBufferCapacity, settings.InBufferGrow),
		outBuffer:    newBuffer(settings.OutBufferCapacity, settings.OutBufferGrow),
		notify:       notify,
	}
}

func (c *Connection) Token() Token         { return c.token }
func (c *Connection) ConnectionID() uint32 { return c.connectionID }
func (c *Connection) State() State         { return c.state }
func (c *Connection) Endpoint() Endpoint   { return c.endpoint }
func (c *Connection) RemoteAddr() net.Addr { return c.stream.RemoteAddr() }
func (c *Connection) LocalAddr() net.Addr  { return c.stream.LocalAddr() }

// Close releases the underlying socket and reader goroutine.
func (c *Connection) Close() error {
	return c.stream.Close()
}

// Open transitions Connecting -> Open and invokes the handler's OnOpen.
func (c *Connection) Open() liberr.Error {
	if c.state != Connecting {
		return ErrInternal.Error()
	}
	c.state = Open
	c.CheckEvents()
	if err := c.handler.OnOpen(); err != nil {
		return ErrCustom.Error(err)
	}
	return nil
}

// AsServer finalizes this connection's role as server-accepted.
func (c *Connection) AsServer() liberr.Error {
	if c.state != Open {
		return ErrInternal.Error()
	}
	c.endpoint = Endpoint{Role: EndpointServer}
	return nil
}

// AsClient finalizes this connection's role as locally originated, keeping
// the remaining candidate addresses for a possible Reset.
func (c *Connection) AsClient(url string, addrs []string) liberr.Error {
	if c.state != Open {
		return ErrInternal.Error()
	}
	c.endpoint = Endpoint{Role: EndpointClient, URL: url}
	c.addresses = addrs
	return nil
}

// bufferIn ensures room in inBuffer, then attempts one nonblocking read
// directly into its free tail.
func (c *Connection) bufferIn() (n int, wouldBlock bool, eof bool, err liberr.Error) {
	if c.inBuffer.free() == 0 {
		if cerr := c.inBuffer.ensureWritable(readChunkSize); cerr != nil {
			return 0, false, false, cerr
		}
	}
	tail := c.inBuffer.writableTail()
	nn, wb, rerr := c.stream.TryReadBuf(tail)
	if wb {
		return 0, true, false, nil
	}
	isEOF := rerr == io.EOF
	if rerr != nil && !isEOF {
		return 0, false, false, ErrIO.Error(rerr)
	}
	c.inBuffer.commitWrite(nn)
	c.bytesRead += uint64(nn)
	return nn, false, isEOF, nil
}

// BytesRead reports the running total of bytes pulled off the socket.
func (c *Connection) BytesRead() uint64 { return c.bytesRead }

// Read drives one readiness pulse on the read side. Every nonzero transfer
// is decoded as a single UTF-8 text message, regardless of framing; there is
// no length-prefix or delimiter handling here on purpose.
func (c *Connection) Read() liberr.Error {
	if c.stream.IsNegotiating() {
		return c.stream.ClearNegotiating()
	}
	if c.state == Connecting {
		return ErrInternal.Error()
	}
	for {
		n, wouldBlock, eof, err := c.bufferIn()
		if err != nil {
			return err
		}
		if wouldBlock {
			return nil
		}
		if n > 0 {
			data := append([]byte(nil), c.inBuffer.unread()...)
			c.inBuffer.advance(len(data))
			msg, merr := message.NewFromBytes(data)
			if merr != nil {
				return ErrEncoding.Error(merr)
			}
			if herr := c.handler.OnMessage(msg); herr != nil {
				return ErrCustom.Error(herr)
			}
		}
		if eof {
			c.wantRead = false
			if c.outBuffer.unreadLen() == 0 {
				c.Disconnect()
			}
			return nil
		}
		if n == 0 {
			return nil
		}
	}
}

// Write drives one readiness pulse on the write side.
func (c *Connection) Write() liberr.Error {
	c.wantWrite = false
	data := c.outBuffer.unread()
	n, wb, err := c.stream.TryWriteBuf(data)
	if wb {
		c.wantWrite = true
		return nil
	}
	if err != nil {
		return ErrIO.Error(err)
	}
	c.outBuffer.advance(n)
	if n == 0 && c.state == FinishedClose && c.endpoint.Role == EndpointServer {
		c.wantRead = false
		c.wantWrite = false
		return nil
	}
	c.CheckEvents()
	return nil
}

// CheckEvents re-establishes the readiness mask invariant after any
// mutation: always want read unless still connecting, and want write iff
// the out buffer has unread bytes.
func (c *Connection) CheckEvents() {
	if c.state != Connecting {
		c.wantRead = true
	}
	c.wantWrite = c.outBuffer.unreadLen() > 0
}

// Events reports the current readiness mask.
func (c *Connection) Events() Events {
	return Events{Read: c.wantRead, Write: c.wantWrite}
}

// SendMessage appends m's payload to outBuffer and arms write interest. A
// no-op once the close handshake has begun.
func (c *Connection) SendMessage(m message.Message) liberr.Error {
	if c.state.IsClosing() {
		return nil
	}
	if err := c.outBuffer.write(m.Data()); err != nil {
		return err
	}
	c.CheckEvents()
	return nil
}

// SendClose drives the close state machine. Emitting an actual framed close
// on the wire is not implemented here - only local state advances and the
// handler is notified; no bytes go out for it.
func (c *Connection) SendClose(code protocol.CloseCode, reason string) liberr.Error {
	switch c.state {
	case Connecting:
		return ErrInternal.Error()
	case Open:
		c.state = AwaitingClose
	case RespondingClose:
		c.state = FinishedClose
	case AwaitingClose, FinishedClose:
		return nil
	}
	c.closeCode = code
	c.handler.OnClose(code, reason)
	c.CheckEvents()
	return nil
}

// receiveRemoteClose would drive Any -> RespondingClose on an incoming
// close frame. No framing layer parses incoming frames yet, so this path
// is presently unreachable; it exists so a future framing layer only needs
// to call it, not touch the state machine.
func (c *Connection) receiveRemoteClose(code protocol.CloseCode, reason string) {
	if c.state == FinishedClose {
		return
	}
	c.closeCode = code
	c.state = RespondingClose
	c.handler.OnClose(code, reason)
	c.CheckEvents()
}

// CloseCode reports the close code this connection last closed (or is
// closing) with, for metrics and diagnostics. Zero value is Normal.
func (c *Connection) CloseCode() protocol.CloseCode {
	return c.closeCode
}

// Shutdown invokes the handler's OnShutdown, then best-effort closes with
// Away. Any error is routed through Error rather than returned.
func (c *Connection) Shutdown() {
	c.handler.OnShutdown()
	if err := c.SendClose(protocol.AwayClose, "Shutting down."); err != nil {
		c.Error(err)
	}
}

func classifyKind(e liberr.Error) liberr.CodeError {
	for _, k := range []liberr.CodeError{
		ErrInternal, ErrCapacity, ErrProtocol, ErrEncoding,
		ErrQueue, ErrTimer, ErrHTTP, ErrCustom,
	} {
		if e.IsCode(k) {
			return k
		}
	}
	return ErrIO
}

func (c *Connection) shouldPanic(kind liberr.CodeError) bool {
	switch kind {
	case ErrInternal:
		return c.settings.PanicOnInternal
	case ErrCapacity:
		return c.settings.PanicOnCapacity
	case ErrProtocol:
		return c.settings.PanicOnProtocol
	case ErrEncoding:
		return c.settings.PanicOnEncoding
	case ErrQueue:
		return c.settings.PanicOnQueue
	case ErrIO:
		return c.settings.PanicOnIo
	case ErrTimer:
		return c.settings.PanicOnTimeout
	default:
		return false
	}
}

// Error classifies e, possibly panics per Settings, notifies the handler,
// and either starts a matching close or disconnects outright. While still
// Connecting, a server writes a literal HTTP error response into outBuffer
// instead ("Bad Request" for a Protocol-kind error, "Internal Server
// Error" otherwise) and arms write-only interest; a client in the same
// state just clears interest, since there is no peer to hand a response
// to.
func (c *Connection) Error(e liberr.Error) {
	if e == nil {
		return
	}
	kind := classifyKind(e)
	if c.shouldPanic(kind) {
		panic(e)
	}
	if c.state == Connecting {
		c.handler.OnError(e)
		if c.endpoint.Role == EndpointServer {
			status := "Internal Server Error"
			if kind == ErrProtocol {
				status = "Bad Request"
			}
			c.outBuffer.reset()
			if werr := c.outBuffer.write([]byte(status + "\r\n\r\n" + e.Error())); werr != nil {
				c.handler.OnError(werr)
				c.wantRead, c.wantWrite = false, false
			} else {
				c.wantRead, c.wantWrite = false, true
			}
		} else {
			c.wantRead, c.wantWrite = false, false
		}
		return
	}
	c.handler.OnError(e)
	switch kind {
	case ErrInternal:
		_ = c.SendClose(protocol.ErrorClose, "")
	case ErrCapacity:
		_ = c.SendClose(protocol.SizeClose, "")
	case ErrProtocol:
		_ = c.SendClose(protocol.ProtocolClose, "")
	case ErrEncoding:
		_ = c.SendClose(protocol.InvalidClose, "")
	default:
		c.Disconnect()
	}
}

// Disconnect tears the connection down locally: fires OnClose(Abnormal, "")
// unless the state is already terminal or still handshaking, then clears
// all readiness.
func (c *Connection) Disconnect() {
	if c.state != FinishedClose && c.state != Connecting {
		c.closeCode = protocol.AbnormalClose
		c.handler.OnClose(protocol.AbnormalClose, "")
	}
	c.state = FinishedClose
	c.wantRead, c.wantWrite = false, false
}

// Reset rewinds a client connection onto the next candidate address after
// a connection-refused error. Server connections and exhausted address
// lists both fail with an internal error.
func (c *Connection) Reset() liberr.Error {
	if c.endpoint.Role != EndpointClient {
		return ErrInternal.Error()
	}
	if len(c.addresses) == 0 {
		return ErrInternal.Error()
	}
	addr := c.addresses[len(c.addresses)-1]
	c.addresses = c.addresses[:len(c.addresses)-1]

	conn, derr := net.Dial("tcp", addr)
	if derr != nil {
		return ErrIO.Error(derr)
	}
	_ = c.stream.Close()
	c.stream = newTCPStream(conn, c.settings.TCPNoDelay, c.notify)
	c.inBuffer.reset()
	c.outBuffer.reset()
	c.state = Open
	c.wantRead, c.wantWrite = true, false
	return nil
}

// TimeoutTriggered fires the handler's OnTimeout for a scheduled timeout.
func (c *Connection) TimeoutTriggered(userToken Token) {
	if err := c.handler.OnTimeout(userToken); err != nil {
		c.Error(ErrCustom.Error(err))
	}
}

// NewTimeoutRegistered notifies the handler that a new timeout (possibly
// scheduled by another connection's Sender, via Broadcast) now has a
// handle it can later Cancel.
func (c *Connection) NewTimeoutRegistered(userToken Token, handle TimeoutHandle) {
	if err := c.handler.OnNewTimeout(userToken, handle); err != nil {
		c.Error(ErrCustom.Error(err))
	}
}

// Consume surrenders the handler to the reactor on removal, for handoff to
// factory.ConnectionLost.
func (c *Connection) Consume() Handler {
	h := c.handler
	c.handler = nil
	return h
}
