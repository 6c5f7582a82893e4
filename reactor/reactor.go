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
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	liberr "github.com/sabouaram/reactor/errors"
	"github.com/sabouaram/reactor/logger"
	logfld "github.com/sabouaram/reactor/logger/fields"
)

type tokenEvent struct {
	token Token
}

// Reactor is the single-owner-goroutine engine: one call to run() owns the
// listener (if any), the connection slab, the timer, and the factory until
// it goes idle or is told to shut down.
type Reactor struct {
	settings Settings
	logger   logger.Logger

	listener net.Listener
	isClient bool

	conns []*Connection
	free  []int
	sem   chan struct{}

	factory Factory

	queue  chan Command
	events chan tokenEvent

	acceptCh    chan net.Conn
	acceptErrCh chan error

	timer *wheel

	nextConnectionID uint32
	active           bool
	seenConnection   bool
	shutdownCh       chan struct{}

	// wg tracks every goroutine the reactor itself spawns that is not the
	// single owner goroutine (the accept loop, the interrupt handler), so
	// Handle.Run can wait for them to actually exit instead of returning
	// the instant the owner loop does.
	wg errgroup.Group

	metrics *metrics
}

func newReactor(settings Settings, factory Factory) *Reactor {
	r := &Reactor{
		settings:    settings,
		logger:      Default(),
		factory:     factory,
		sem:         make(chan struct{}, settings.MaxConnections),
		queue:       make(chan Command, settings.queueCapacity()),
		events:      make(chan tokenEvent, settings.queueCapacity()+64),
		acceptCh:    make(chan net.Conn, settings.MaxConnections),
		acceptErrCh: make(chan error, 1),
		timer:       newWheel(),
		active:      true,
		shutdownCh:  make(chan struct{}),
	}
	if settings.MetricsEnabled {
		r.metrics = newMetrics(settings.MetricsNamespace, prometheus.DefaultRegisterer)
	}
	go r.timer.run()
	return r
}

func (r *Reactor) wake(token Token) func() {
	return func() {
		select {
		case r.events <- tokenEvent{token: token}:
		case <-r.shutdownCh:
		}
	}
}

func (r *Reactor) lookup(token Token) *Connection {
	if token.reserved() || int(token) < 0 || int(token) >= len(r.conns) {
		return nil
	}
	return r.conns[token]
}

func (r *Reactor) allocSlot() (Token, bool) {
	select {
	case r.sem <- struct{}{}:
	default:
		return 0, false
	}
	if n := len(r.free); n > 0 {
		idx := r.free[n-1]
		r.free = r.free[:n-1]
		return Token(idx), true
	}
	r.conns = append(r.conns, nil)
	return Token(len(r.conns) - 1), true
}

func (r *Reactor) freeSlot(token Token) {
	r.conns[token] = nil
	r.free = append(r.free, int(token))
	<-r.sem
}

// pump flushes any pending outbound bytes synchronously, the Go stand-in
// for write-readiness: a blocking net.Conn has no epoll-style "ready to
// write" notification, so a connection that just armed write interest is
// drained immediately rather than waiting for an event that never comes.
func (r *Reactor) pump(c *Connection) {
	if !c.Events().Write {
		return
	}
	before := c.outBuffer.unreadLen()
	if err := c.Write(); err != nil {
		c.Error(err)
		return
	}
	r.metrics.bytesWritten(before - c.outBuffer.unreadLen())
}

// Listen binds addr, serves until the slab is empty and quiescent (or a
// Shutdown is processed), and returns.
func Listen(addr string, factory Factory) liberr.Error {
	return listenWithSettings(addr, factory, DefaultSettings())
}

func listenWithSettings(addr string, factory Factory, settings Settings) liberr.Error {
	lc := net.ListenConfig{Control: reusePortControl}
	ln, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return ErrIO.Error(err)
	}
	r := newReactor(settings, factory)
	r.listener = ln
	r.startAccepting()
	r.installSignalHandler()
	r.run()
	return nil
}

func (r *Reactor) startAccepting() {
	r.wg.Go(func() error {
		for {
			conn, err := r.listener.Accept()
			if err != nil {
				select {
				case r.acceptErrCh <- err:
				case <-r.shutdownCh:
				}
				return nil
			}
			select {
			case r.acceptCh <- conn:
			case <-r.shutdownCh:
				_ = conn.Close()
				return nil
			}
			select {
			case r.events <- tokenEvent{token: ALL}:
			case <-r.shutdownCh:
				return nil
			}
		}
	})
}

func (r *Reactor) installSignalHandler() {
	if !r.settings.ShutdownOnInterrupt {
		return
	}
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	r.wg.Go(func() error {
		select {
		case <-sigCh:
			select {
			case r.queue <- Command{targetToken: ALL, signal: shutdownSignal()}:
			case <-r.shutdownCh:
			}
		case <-r.shutdownCh:
		}
		return nil
	})
}

// Connect builds a reactor with no listener, initiates one outbound
// connection to addr, and runs until every client connection has closed.
func Connect(addr string, factory Factory) liberr.Error {
	return connectWithSettings(addr, factory, DefaultSettings())
}

func connectWithSettings(addr string, factory Factory, settings Settings) liberr.Error {
	r := newReactor(settings, factory)
	r.isClient = true
	r.initiateConnect(addr)
	if !r.seenConnection {
		close(r.shutdownCh)
		r.timer.stop()
		return ErrIO.Error()
	}
	r.run()
	return nil
}

// run is the single owner loop: one pulse services at most one event from
// each source. A pulse that lands on the queue case processes exactly the
// one command it received and moves on, even though a caller may have
// enqueued a whole batch in between pulses. The accept case is the one
// exception: drainAccepts empties the whole listener backlog from a single
// wakeup, since a burst of simultaneous connects would otherwise starve
// behind one new connection per pulse.
func (r *Reactor) run() {
	defer close(r.shutdownCh)
	for r.active {
		select {
		case conn, ok := <-r.acceptCh:
			if ok {
				r.drainAccepts(conn)
			}
		case <-r.acceptErrCh:
			r.logger.Error("listener accept failed", logfld.New())
			r.active = false
		case ev := <-r.events:
			r.dispatchToken(ev.token)
		case rec := <-r.timer.fireCh:
			r.handleTimeout(rec)
		case cmd := <-r.queue:
			r.handleQueueCmd(cmd)
		}
		r.checkCount()
	}
	r.shutdown()
}

func (r *Reactor) drainAccepts(first net.Conn) {
	r.acceptOne(first)
	for {
		select {
		case conn := <-r.acceptCh:
			r.acceptOne(conn)
		default:
			return
		}
	}
}

func (r *Reactor) acceptOne(conn net.Conn) {
	token, ok := r.allocSlot()
	if !ok {
		_ = conn.Close()
		r.logger.Warning("connection refused", logfld.New().Add("reason", "capacity exceeded"))
		return
	}
	r.seenConnection = true
	connID := r.nextConnectionID
	r.nextConnectionID++
	notify := r.wake(token)
	stream := newTCPStream(conn, r.settings.TCPNoDelay, notify)
	sender := newSender(token, connID, r.queue)
	handler := r.factory.ServerConnected(sender)
	c := NewConnection(token, stream, handler, r.settings, connID, notify)
	r.conns[token] = c
	if err := c.Open(); err != nil {
		c.Error(err)
	}
	if err := c.AsServer(); err != nil {
		c.Error(err)
	}
	r.metrics.connOpened()
	r.pump(c)
	r.checkActive(token)
}

// initiateConnect resolves addr and dials the candidate addresses one at a
// time. A synchronous ECONNREFUSED here takes the place of the read/write
// error a non-blocking connect would have surfaced later, so the same
// address-pool retry Connection.Reset performs for a connection that drops
// after being established also runs up front for one that never connects.
func (r *Reactor) initiateConnect(addr string) {
	addrs, err := resolveAddresses(addr)
	if err != nil || len(addrs) == 0 {
		r.logger.Warning("connect: could not resolve address", logFieldsErr2(addr, err))
		return
	}

	var conn net.Conn
	var derr error
	for len(addrs) > 0 {
		target := addrs[len(addrs)-1]
		addrs = addrs[:len(addrs)-1]
		conn, derr = net.Dial("tcp", target)
		if derr == nil {
			break
		}
		r.logger.Warning("connect: dial failed, trying next address", logFieldsErr(derr))
		conn = nil
	}
	if conn == nil {
		r.logger.Warning("connect: exhausted possible addresses", logFieldsErr2(addr, derr))
		return
	}
	remaining := addrs

	token, ok := r.allocSlot()
	if !ok {
		_ = conn.Close()
		r.logger.Warning("connect refused", logfld.New().Add("reason", "capacity exceeded"))
		return
	}
	r.seenConnection = true
	connID := r.nextConnectionID
	r.nextConnectionID++
	notify := r.wake(token)
	stream := newTCPStream(conn, r.settings.TCPNoDelay, notify)
	sender := newSender(token, connID, r.queue)
	handler := r.factory.ClientConnected(sender)
	c := NewConnection(token, stream, handler, r.settings, connID, notify)
	r.conns[token] = c
	if err := c.Open(); err != nil {
		c.Error(err)
	}
	if err := c.AsClient(addr, remaining); err != nil {
		c.Error(err)
	}
	r.metrics.connOpened()
	r.pump(c)
	r.checkActive(token)
}

func resolveAddresses(addr string) ([]string, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}
	ips, err := net.LookupHost(host)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(ips))
	for _, ip := range ips {
		out = append(out, net.JoinHostPort(ip, port))
	}
	return out, nil
}

func (r *Reactor) dispatchToken(token Token) {
	switch token {
	case SYSTEM:
		panic("reactor: SYSTEM token dispatched")
	case ALL:
		r.drainAcceptsNonBlocking()
		return
	case TIMER, QUEUE:
		return
	}
	c := r.lookup(token)
	if c == nil {
		return
	}
	ev := c.Events()
	if ev.Read {
		before := c.BytesRead()
		err := c.Read()
		r.metrics.bytesRead(int(c.BytesRead() - before))
		if err != nil {
			r.handleIOError(c, err)
		}
	}
	ev = c.Events()
	if ev.Write {
		r.pump(c)
	}
	r.checkActive(token)
}

func (r *Reactor) drainAcceptsNonBlocking() {
	for {
		select {
		case conn := <-r.acceptCh:
			r.acceptOne(conn)
		default:
			return
		}
	}
}

// handleIOError routes a read/write failure to Reset for a client that can
// still retry, or to the connection's own classification pipeline.
func (r *Reactor) handleIOError(c *Connection, err liberr.Error) {
	if c.Endpoint().Role == EndpointClient && isConnRefused(err) {
		if rerr := c.Reset(); rerr != nil {
			c.Error(rerr)
		}
		return
	}
	c.Error(err)
}

func (r *Reactor) handleTimeout(rec TimeoutRecord) {
	if rec.Connection == ALL {
		for i, c := range r.conns {
			if c == nil {
				continue
			}
			c.TimeoutTriggered(rec.Event)
			r.pump(c)
			r.checkActive(Token(i))
		}
		return
	}
	c := r.lookup(rec.Connection)
	if c == nil {
		return
	}
	c.TimeoutTriggered(rec.Event)
	r.pump(c)
	r.checkActive(rec.Connection)
}

func (r *Reactor) handleQueueCmd(cmd Command) {
	r.metrics.commandProcessed(cmd.signal.Kind)
	if cmd.signal.Kind == SigApplySettings {
		r.applyLiveSettings(cmd.signal.NewSettings)
		return
	}
	if cmd.targetToken == ALL {
		r.handleAll(cmd.signal)
		return
	}
	c := r.lookup(cmd.targetToken)
	if c == nil || c.ConnectionID() != cmd.connectionID {
		r.logger.Debug("dropping stale command", logfld.New().Add("token", int(cmd.targetToken)))
		return
	}
	r.applySignal(c, cmd.signal)
	r.pump(c)
	r.checkActive(cmd.targetToken)
}

func (r *Reactor) applySignal(c *Connection, sig Signal) {
	switch sig.Kind {
	case SigMessage:
		if err := c.SendMessage(sig.Message); err != nil {
			c.Error(err)
		}
	case SigClose:
		if err := c.SendClose(sig.CloseCode, sig.Reason); err != nil {
			c.Error(err)
		}
	case SigConnect:
		r.initiateConnect(sig.URL)
	case SigShutdown:
		r.active = false
	case SigTimeout:
		handle, ok := r.timer.schedule(c.Token(), sig.UserToken, sig.Delay)
		if !ok {
			c.Error(ErrTimer.Error())
			return
		}
		c.NewTimeoutRegistered(sig.UserToken, handle)
	case SigCancel:
		r.timer.cancel(sig.Handle)
	}
}

// applyLiveSettings updates the toggles a running reactor can actually
// absorb and warns about the ones it cannot. Only the reactor goroutine
// calls this, reached via the SigApplySettings command queued by
// WatchSettingsFile's fsnotify callback; no other goroutine touches
// r.settings.
func (r *Reactor) applyLiveSettings(next Settings) {
	cur := r.settings
	if next.MaxConnections != cur.MaxConnections ||
		next.QueueSize != cur.QueueSize ||
		next.InBufferCapacity != cur.InBufferCapacity ||
		next.OutBufferCapacity != cur.OutBufferCapacity ||
		next.FragmentsCapacity != cur.FragmentsCapacity ||
		next.FragmentSize != cur.FragmentSize {
		r.logger.Warning("settings reload: capacity fields are fixed once the reactor is running and were left unchanged",
			logfld.New().Add("namespace", next.MetricsNamespace))
	}
	next.MaxConnections = cur.MaxConnections
	next.QueueSize = cur.QueueSize
	next.InBufferCapacity = cur.InBufferCapacity
	next.OutBufferCapacity = cur.OutBufferCapacity
	next.FragmentsCapacity = cur.FragmentsCapacity
	next.FragmentSize = cur.FragmentSize
	next.InBufferGrow = cur.InBufferGrow
	next.OutBufferGrow = cur.OutBufferGrow
	next.FragmentsGrow = cur.FragmentsGrow
	next.MetricsEnabled = cur.MetricsEnabled
	next.MetricsNamespace = cur.MetricsNamespace
	r.settings = next
}

func (r *Reactor) handleAll(sig Signal) {
	switch sig.Kind {
	case SigMessage, SigClose:
		type failure struct {
			c   *Connection
			err liberr.Error
		}
		var fails []failure
		for _, c := range r.conns {
			if c == nil {
				continue
			}
			var err liberr.Error
			if sig.Kind == SigMessage {
				err = c.SendMessage(sig.Message)
			} else {
				err = c.SendClose(sig.CloseCode, sig.Reason)
			}
			if err != nil {
				fails = append(fails, failure{c, err})
			}
		}
		for _, f := range fails {
			f.c.Error(f.err)
		}
		for i, c := range r.conns {
			if c == nil {
				continue
			}
			r.pump(c)
			r.checkActive(Token(i))
		}
	case SigConnect:
		r.initiateConnect(sig.URL)
	case SigShutdown:
		r.active = false
	case SigTimeout:
		handle, ok := r.timer.schedule(ALL, sig.UserToken, sig.Delay)
		if !ok {
			r.logger.Warning("timer capacity exceeded", logfld.New())
			return
		}
		for _, c := range r.conns {
			if c == nil {
				continue
			}
			c.NewTimeoutRegistered(sig.UserToken, handle)
		}
	case SigCancel:
		r.timer.cancel(sig.Handle)
	}
}

func (r *Reactor) checkActive(token Token) {
	c := r.lookup(token)
	if c == nil {
		return
	}
	ev := c.Events()
	if !ev.Read && !ev.Write {
		r.removeConnection(token, c)
	}
}

func (r *Reactor) removeConnection(token Token, c *Connection) {
	code := c.CloseCode()
	_ = c.Close()
	handler := c.Consume()
	r.factory.ConnectionLost(handler)
	r.metrics.connClosed(code.Uint16())
	r.freeSlot(token)
}

// checkCount shuts the reactor down once it is acting purely as a client
// (no listener) and the slab has emptied - there is nothing left to wait
// for.
func (r *Reactor) checkCount() {
	if r.isClient && r.seenConnection && len(r.conns)-len(r.free) == 0 {
		r.active = false
	}
}

func (r *Reactor) shutdown() {
	for i, c := range r.conns {
		if c == nil {
			continue
		}
		c.Shutdown()
		r.pump(c)
		r.checkActive(Token(i))
	}
	r.factory.OnShutdown()
	if r.listener != nil {
		_ = r.listener.Close()
	}
	r.active = false
}

func logFieldsErr2(addr string, err error) logfld.Fields {
	f := logfld.New().Add("address", addr)
	if err != nil {
		f = f.Add("error", err.Error())
	}
	return f
}
