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

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	liberr "github.com/sabouaram/reactor/errors"
	"github.com/sabouaram/reactor/message"
	"github.com/sabouaram/reactor/protocol"
)

// fakeAddr is a minimal net.Addr for test streams that never dial out.
type fakeAddr string

func (a fakeAddr) Network() string { return "fake" }
func (a fakeAddr) String() string  { return string(a) }

// fakeStream is a Stream test double driven entirely by the test: reads are
// served from a queue of canned chunks/errors, writes are captured, and
// negotiation/close are tracked via simple flags.
type fakeStream struct {
	pending []readMsg
	written [][]byte
	closed  bool

	negotiating bool
	clearErr    liberr.Error

	writeErr        error
	writeWouldBlock bool
}

func newFakeStream() *fakeStream {
	return &fakeStream{}
}

func (f *fakeStream) queueRead(data []byte, err error) {
	f.pending = append(f.pending, readMsg{data: data, err: err})
}

func (f *fakeStream) TryReadBuf(dst []byte) (n int, wouldBlock bool, err error) {
	if len(f.pending) == 0 {
		return 0, true, nil
	}
	msg := f.pending[0]
	f.pending = f.pending[1:]
	n = copy(dst, msg.data)
	return n, false, msg.err
}

func (f *fakeStream) TryWriteBuf(src []byte) (n int, wouldBlock bool, err error) {
	if f.writeWouldBlock {
		return 0, true, nil
	}
	if f.writeErr != nil {
		return 0, false, f.writeErr
	}
	cp := append([]byte(nil), src...)
	f.written = append(f.written, cp)
	return len(src), false, nil
}

func (f *fakeStream) LocalAddr() net.Addr  { return fakeAddr("local") }
func (f *fakeStream) RemoteAddr() net.Addr { return fakeAddr("remote") }

func (f *fakeStream) IsNegotiating() bool { return f.negotiating }

func (f *fakeStream) ClearNegotiating() liberr.Error {
	if f.clearErr != nil {
		return f.clearErr
	}
	f.negotiating = false
	return nil
}

func (f *fakeStream) Close() error {
	f.closed = true
	return nil
}

// recordingHandler captures every callback it receives, for assertions.
type recordingHandler struct {
	messages     []message.Message
	closedCode   protocol.CloseCode
	closedReason string
	closeCalls   int
	errs         []error
	shutdowns    int
	timeouts     []Token
	newTimeouts  []TimeoutHandle

	openErr    error
	messageErr error
	timeoutErr error
}

func (h *recordingHandler) OnOpen() error { return h.openErr }
func (h *recordingHandler) OnMessage(m message.Message) error {
	h.messages = append(h.messages, m)
	return h.messageErr
}
func (h *recordingHandler) OnClose(code protocol.CloseCode, reason string) {
	h.closeCalls++
	h.closedCode = code
	h.closedReason = reason
}
func (h *recordingHandler) OnError(err error) { h.errs = append(h.errs, err) }
func (h *recordingHandler) OnShutdown()       { h.shutdowns++ }
func (h *recordingHandler) OnTimeout(userToken Token) error {
	h.timeouts = append(h.timeouts, userToken)
	return h.timeoutErr
}
func (h *recordingHandler) OnNewTimeout(userToken Token, handle TimeoutHandle) error {
	h.newTimeouts = append(h.newTimeouts, handle)
	return nil
}

func newOpenConnection(stream *fakeStream, handler Handler, settings Settings) *Connection {
	c := NewConnection(Token(0), stream, handler, settings, 1, func() {})
	_ = c.Open()
	return c
}

var _ = Describe("Connection", func() {
	var settings Settings

	BeforeEach(func() {
		settings = DefaultSettings()
	})

	Describe("Open", func() {
		It("transitions Connecting to Open and invokes OnOpen", func() {
			stream := newFakeStream()
			h := &recordingHandler{}
			c := NewConnection(Token(0), stream, h, settings, 1, func() {})
			Expect(c.State()).To(Equal(Connecting))
			Expect(c.Open()).To(BeNil())
			Expect(c.State()).To(Equal(Open))
		})

		It("refuses to open twice", func() {
			stream := newFakeStream()
			c := newOpenConnection(stream, &recordingHandler{}, settings)
			err := c.Open()
			Expect(err).ToNot(BeNil())
			Expect(err.IsCode(ErrInternal)).To(BeTrue())
		})
	})

	Describe("AsServer / AsClient", func() {
		It("records a server role", func() {
			stream := newFakeStream()
			c := newOpenConnection(stream, &recordingHandler{}, settings)
			Expect(c.AsServer()).To(BeNil())
			Expect(c.Endpoint().Role).To(Equal(EndpointServer))
		})

		It("records a client role with its candidate address pool", func() {
			stream := newFakeStream()
			c := newOpenConnection(stream, &recordingHandler{}, settings)
			Expect(c.AsClient("host:1", []string{"10.0.0.1:1", "10.0.0.2:1"})).To(BeNil())
			Expect(c.Endpoint().Role).To(Equal(EndpointClient))
			Expect(c.addresses).To(Equal([]string{"10.0.0.1:1", "10.0.0.2:1"}))
		})
	})

	Describe("Read", func() {
		It("decodes one whole transfer as a single text message", func() {
			stream := newFakeStream()
			stream.queueRead([]byte("hello"), nil)
			h := &recordingHandler{}
			c := newOpenConnection(stream, h, settings)
			Expect(c.Read()).To(BeNil())
			Expect(h.messages).To(HaveLen(1))
			Expect(h.messages[0].Data()).To(Equal([]byte("hello")))
		})

		It("returns nil without decoding anything on would-block", func() {
			stream := newFakeStream()
			h := &recordingHandler{}
			c := newOpenConnection(stream, h, settings)
			Expect(c.Read()).To(BeNil())
			Expect(h.messages).To(BeEmpty())
		})

		It("accumulates BytesRead by the number of bytes actually pulled off the socket", func() {
			stream := newFakeStream()
			stream.queueRead([]byte("hello"), nil)
			c := newOpenConnection(stream, &recordingHandler{}, settings)
			Expect(c.BytesRead()).To(Equal(uint64(0)))
			Expect(c.Read()).To(BeNil())
			Expect(c.BytesRead()).To(Equal(uint64(len("hello"))))
		})

		It("rejects non-utf8 bytes with an Encoding error", func() {
			stream := newFakeStream()
			stream.queueRead([]byte{0xff, 0xfe, 0xfd}, nil)
			c := newOpenConnection(stream, &recordingHandler{}, settings)
			err := c.Read()
			Expect(err).ToNot(BeNil())
			Expect(err.IsCode(ErrEncoding)).To(BeTrue())
		})

		It("disconnects on EOF once the out buffer has nothing left to flush", func() {
			stream := newFakeStream()
			stream.queueRead(nil, io.EOF)
			h := &recordingHandler{}
			c := newOpenConnection(stream, h, settings)
			Expect(c.Read()).To(BeNil())
			Expect(c.State()).To(Equal(FinishedClose))
			Expect(h.closeCalls).To(Equal(1))
			Expect(h.closedCode).To(Equal(protocol.AbnormalClose))
		})

		It("refuses to read before Open", func() {
			stream := newFakeStream()
			c := NewConnection(Token(0), stream, &recordingHandler{}, settings, 1, func() {})
			err := c.Read()
			Expect(err).ToNot(BeNil())
			Expect(err.IsCode(ErrInternal)).To(BeTrue())
		})

		It("clears negotiation instead of reading while mid-handshake", func() {
			stream := newFakeStream()
			stream.negotiating = true
			c := newOpenConnection(stream, &recordingHandler{}, settings)
			Expect(c.Read()).To(BeNil())
			Expect(stream.negotiating).To(BeFalse())
		})
	})

	Describe("SendMessage / Write", func() {
		It("flushes a queued message to the stream on the next Write pulse", func() {
			stream := newFakeStream()
			c := newOpenConnection(stream, &recordingHandler{}, settings)
			Expect(c.SendMessage(message.NewText("ping"))).To(BeNil())
			Expect(c.Events().Write).To(BeTrue())
			Expect(c.Write()).To(BeNil())
			Expect(stream.written).To(ContainElement([]byte("ping")))
			Expect(c.Events().Write).To(BeFalse())
		})

		It("is a no-op once the close handshake has begun", func() {
			stream := newFakeStream()
			c := newOpenConnection(stream, &recordingHandler{}, settings)
			Expect(c.SendClose(protocol.NormalClose, "bye")).To(BeNil())
			Expect(c.SendMessage(message.NewText("too late"))).To(BeNil())
			Expect(stream.written).To(BeEmpty())
		})
	})

	Describe("SendClose state machine", func() {
		It("moves Open to AwaitingClose and notifies the handler", func() {
			stream := newFakeStream()
			h := &recordingHandler{}
			c := newOpenConnection(stream, h, settings)
			Expect(c.SendClose(protocol.NormalClose, "done")).To(BeNil())
			Expect(c.State()).To(Equal(AwaitingClose))
			Expect(h.closeCalls).To(Equal(1))
			Expect(h.closedReason).To(Equal("done"))
		})

		It("refuses to close while still Connecting", func() {
			stream := newFakeStream()
			c := NewConnection(Token(0), stream, &recordingHandler{}, settings, 1, func() {})
			err := c.SendClose(protocol.NormalClose, "")
			Expect(err).ToNot(BeNil())
			Expect(err.IsCode(ErrInternal)).To(BeTrue())
		})

		It("is idempotent once AwaitingClose has been reached", func() {
			stream := newFakeStream()
			h := &recordingHandler{}
			c := newOpenConnection(stream, h, settings)
			Expect(c.SendClose(protocol.NormalClose, "")).To(BeNil())
			Expect(c.SendClose(protocol.NormalClose, "")).To(BeNil())
			Expect(h.closeCalls).To(Equal(1))
		})

		It("moves RespondingClose to FinishedClose", func() {
			stream := newFakeStream()
			h := &recordingHandler{}
			c := newOpenConnection(stream, h, settings)
			c.receiveRemoteClose(protocol.NormalClose, "peer done")
			Expect(c.State()).To(Equal(RespondingClose))
			Expect(c.SendClose(protocol.NormalClose, "")).To(BeNil())
			Expect(c.State()).To(Equal(FinishedClose))
			Expect(h.closeCalls).To(Equal(2))
		})
	})

	Describe("Error classification", func() {
		It("maps a Capacity error onto a Size close", func() {
			stream := newFakeStream()
			h := &recordingHandler{}
			c := newOpenConnection(stream, h, settings)
			c.Error(ErrCapacity.Error())
			Expect(h.closedCode).To(Equal(protocol.SizeClose))
		})

		It("maps an unrecognized io error onto Disconnect", func() {
			stream := newFakeStream()
			h := &recordingHandler{}
			c := newOpenConnection(stream, h, settings)
			c.Error(ErrIO.Error())
			Expect(c.State()).To(Equal(FinishedClose))
			Expect(h.closedCode).To(Equal(protocol.AbnormalClose))
		})

		It("panics when the matching Panic setting is enabled", func() {
			stream := newFakeStream()
			settings.PanicOnInternal = true
			c := newOpenConnection(stream, &recordingHandler{}, settings)
			Expect(func() { c.Error(ErrInternal.Error()) }).To(Panic())
		})

		It("is a no-op for a nil error", func() {
			stream := newFakeStream()
			h := &recordingHandler{}
			c := newOpenConnection(stream, h, settings)
			c.Error(nil)
			Expect(h.closeCalls).To(Equal(0))
		})

		It("writes a Bad Request handshake response for a Protocol error while still Connecting", func() {
			stream := newFakeStream()
			h := &recordingHandler{}
			c := NewConnection(Token(0), stream, h, settings, 1, func() {})
			c.endpoint = Endpoint{Role: EndpointServer}
			Expect(c.State()).To(Equal(Connecting))
			c.Error(ErrProtocol.Error())
			Expect(string(c.outBuffer.unread())).To(HavePrefix("Bad Request\r\n\r\n"))
			Expect(c.Events().Read).To(BeFalse())
			Expect(c.Events().Write).To(BeTrue())
		})

		It("writes an Internal Server Error handshake response for any other error while still Connecting", func() {
			stream := newFakeStream()
			h := &recordingHandler{}
			c := NewConnection(Token(0), stream, h, settings, 1, func() {})
			c.endpoint = Endpoint{Role: EndpointServer}
			c.Error(ErrIO.Error())
			Expect(string(c.outBuffer.unread())).To(HavePrefix("Internal Server Error\r\n\r\n"))
			Expect(c.Events().Write).To(BeTrue())
		})

		It("clears interest without writing a response for a client still Connecting", func() {
			stream := newFakeStream()
			h := &recordingHandler{}
			c := NewConnection(Token(0), stream, h, settings, 1, func() {})
			c.endpoint = Endpoint{Role: EndpointClient, URL: "host:1"}
			c.Error(ErrIO.Error())
			Expect(c.outBuffer.unreadLen()).To(Equal(0))
			Expect(c.Events().Read).To(BeFalse())
			Expect(c.Events().Write).To(BeFalse())
		})
	})

	Describe("Disconnect", func() {
		It("clears readiness and fires OnClose(Abnormal) exactly once", func() {
			stream := newFakeStream()
			h := &recordingHandler{}
			c := newOpenConnection(stream, h, settings)
			c.Disconnect()
			Expect(c.Events().Read).To(BeFalse())
			Expect(c.Events().Write).To(BeFalse())
			c.Disconnect()
			Expect(h.closeCalls).To(Equal(1))
		})
	})

	Describe("Reset", func() {
		It("refuses to reset a server connection", func() {
			stream := newFakeStream()
			c := newOpenConnection(stream, &recordingHandler{}, settings)
			Expect(c.AsServer()).To(BeNil())
			err := c.Reset()
			Expect(err).ToNot(BeNil())
			Expect(err.IsCode(ErrInternal)).To(BeTrue())
		})

		It("refuses to reset a client with an exhausted address pool", func() {
			stream := newFakeStream()
			c := newOpenConnection(stream, &recordingHandler{}, settings)
			Expect(c.AsClient("host:1", nil)).To(BeNil())
			err := c.Reset()
			Expect(err).ToNot(BeNil())
			Expect(err.IsCode(ErrInternal)).To(BeTrue())
		})
	})

	Describe("TimeoutTriggered / NewTimeoutRegistered", func() {
		It("invokes the handler and surfaces its returned error", func() {
			stream := newFakeStream()
			boom := liberr.New(1, "boom")
			h := &recordingHandler{timeoutErr: boom}
			c := newOpenConnection(stream, h, settings)
			c.TimeoutTriggered(Token(3))
			Expect(h.timeouts).To(Equal([]Token{Token(3)}))
			Expect(h.errs).To(HaveLen(1))
		})

		It("notifies the handler of a newly registered handle", func() {
			stream := newFakeStream()
			h := &recordingHandler{}
			c := newOpenConnection(stream, h, settings)
			c.NewTimeoutRegistered(Token(1), TimeoutHandle(7))
			Expect(h.newTimeouts).To(Equal([]TimeoutHandle{7}))
		})
	})

	Describe("Consume", func() {
		It("hands back the handler and clears it from the connection", func() {
			stream := newFakeStream()
			h := &recordingHandler{}
			c := newOpenConnection(stream, h, settings)
			got := c.Consume()
			Expect(got).To(Equal(h))
			Expect(c.handler).To(BeNil())
		})
	})
})
