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
	"sync"

	liberr "github.com/sabouaram/reactor/errors"
)

const readChunkSize = 16 * 1024

// Stream is a tagged byte stream: the reactor never talks to a net.Conn
// directly, only through this seam, so the event loop's read/write driving
// logic stays agnostic to the transport underneath.
//
// TryReadBuf and TryWriteBuf never block. A would-block result reports
// (0, true, nil): nothing transferred, would block, no error; try again later.
type Stream interface {
	TryReadBuf(dst []byte) (n int, wouldBlock bool, err error)
	TryWriteBuf(src []byte) (n int, wouldBlock bool, err error)

	LocalAddr() net.Addr
	RemoteAddr() net.Addr

	// IsNegotiating reports whether the stream is mid-handshake (TLS, proxy
	// protocol, ...) and not yet ready to carry application bytes. Plain TCP
	// is never negotiating.
	IsNegotiating() bool
	// ClearNegotiating forces the stream out of a negotiating state. On a
	// plain TCP stream there is none to clear, so this always fails.
	ClearNegotiating() liberr.Error

	Close() error
}

type readMsg struct {
	data []byte
	err  error
}

// tcpStream adapts a blocking net.Conn to the nonblocking Stream contract.
// A single background goroutine performs the actual blocking Read calls and
// delivers each chunk over an unbuffered channel; since that send only
// unblocks once the reactor goroutine has drained the previous chunk via
// TryReadBuf, the socket is naturally throttled to the reactor's own pace.
type tcpStream struct {
	conn net.Conn

	read chan readMsg
	once sync.Once
	done chan struct{}

	leftover    []byte
	leftoverErr error

	notify func()
}

// newTCPStream wraps conn and starts its reader goroutine. noDelay mirrors
// Settings.TCPNoDelay. notify is called from the reader goroutine once per
// chunk (or terminal error) after it has been handed off, so the reactor
// knows to wake the owning connection; it must not block.
func newTCPStream(conn net.Conn, noDelay bool, notify func()) *tcpStream {
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(noDelay)
	}
	s := &tcpStream{
		conn:   conn,
		read:   make(chan readMsg),
		done:   make(chan struct{}),
		notify: notify,
	}
	go s.readLoop()
	return s
}

func (s *tcpStream) readLoop() {
	buf := make([]byte, readChunkSize)
	for {
		n, err := s.conn.Read(buf)
		var data []byte
		if n > 0 {
			data = make([]byte, n)
			copy(data, buf[:n])
		}
		select {
		case s.read <- readMsg{data: data, err: err}:
		case <-s.done:
			return
		}
		if s.notify != nil {
			s.notify()
		}
		if err != nil {
			return
		}
	}
}

func (s *tcpStream) TryReadBuf(dst []byte) (n int, wouldBlock bool, err error) {
	if len(s.leftover) == 0 && s.leftoverErr == nil {
		select {
		case msg, ok := <-s.read:
			if !ok {
				return 0, false, io.EOF
			}
			s.leftover = msg.data
			s.leftoverErr = msg.err
		default:
			return 0, true, nil
		}
	}
	n = copy(dst, s.leftover)
	s.leftover = s.leftover[n:]
	if len(s.leftover) == 0 {
		err = s.leftoverErr
		s.leftoverErr = nil
	}
	return n, false, err
}

// TryWriteBuf writes synchronously against the underlying blocking
// net.Conn. A plain TCP socket write rarely blocks for long once a
// connection is established, so this Go translation never reports
// would-block on write; it either transfers the bytes or fails outright.
func (s *tcpStream) TryWriteBuf(src []byte) (n int, wouldBlock bool, err error) {
	n, err = s.conn.Write(src)
	return n, false, err
}

func (s *tcpStream) LocalAddr() net.Addr  { return s.conn.LocalAddr() }
func (s *tcpStream) RemoteAddr() net.Addr { return s.conn.RemoteAddr() }

func (s *tcpStream) IsNegotiating() bool { return false }

func (s *tcpStream) ClearNegotiating() liberr.Error {
	return ErrNotNegotiating.Error()
}

func (s *tcpStream) Close() error {
	s.once.Do(func() { close(s.done) })
	return s.conn.Close()
}
