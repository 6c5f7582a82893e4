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

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	liberr "github.com/sabouaram/reactor/errors"
	"github.com/sabouaram/reactor/logger"
)

// Builder collects Settings before a Reactor is built. The zero value holds
// zero Settings, which Build rejects (MaxConnections is 0); start from
// NewBuilder for DefaultSettings, or call WithSettings, WithSettingsFile or
// WithViper before Build.
type Builder struct {
	settings Settings
	hasViper bool
	viper    *viper.Viper
	err      liberr.Error
}

// NewBuilder starts a Builder pre-loaded with DefaultSettings.
func NewBuilder() Builder {
	return Builder{settings: DefaultSettings()}
}

// WithSettings replaces the builder's Settings wholesale.
func (b Builder) WithSettings(s Settings) Builder {
	b.settings = s
	b.hasViper = false
	return b
}

// WithSettingsFile loads Settings from a config file at path, using viper's
// usual extension-sniffing (yaml, json, toml, ...) to pick the decoder.
func (b Builder) WithSettingsFile(path string) Builder {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		b.err = ErrInternal.Error(err)
		return b
	}
	return b.WithViper(v)
}

// WithViper loads Settings out of an already-configured *viper.Viper,
// letting a caller share one config source across several components.
func (b Builder) WithViper(v *viper.Viper) Builder {
	s, err := settingsFromViper(v)
	if err != nil {
		b.err = ErrInternal.Error(err)
		return b
	}
	b.settings = s
	b.hasViper = true
	b.viper = v
	return b
}

// Build validates the accumulated Settings and returns a Handle bound to
// factory. Nothing is listened on or dialed yet; call Bind/Listen/Connect
// on the returned Handle to actually start the reactor.
func (b Builder) Build(factory Factory) (*Handle, liberr.Error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.settings.MaxConnections <= 0 {
		return nil, ErrInternal.Error()
	}
	h := &Handle{
		settings: b.settings,
		factory:  factory,
		logger:   Default(),
	}
	if b.hasViper {
		h.watchViper = b.viper
	}
	return h, nil
}

// Handle is what Builder.Build hands back: a Reactor not yet bound to a
// listener or a remote address. Bind/Listen/Connect/Run drive it through
// the same paths as the package-level Listen/Connect functions, just with
// the Builder's Settings instead of the defaults.
type Handle struct {
	settings Settings
	factory  Factory
	logger   logger.Logger

	reactor        *Reactor
	pendingConnect string

	watchViper *viper.Viper
}

// Bind opens a listening socket on addr without running the event loop yet.
// Call Run afterward to start serving. Useful when a caller needs
// LocalAddr (e.g. to discover an OS-assigned port from ":0") before
// blocking in Run.
func (h *Handle) Bind(addr string) liberr.Error {
	lc := net.ListenConfig{Control: reusePortControl}
	ln, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return ErrIO.Error(err)
	}
	r := newReactor(h.settings, h.factory)
	r.listener = ln
	h.reactor = r
	return nil
}

// Listen binds addr and runs until the reactor goes idle or is shut down.
// Equivalent to Bind followed by Run.
func (h *Handle) Listen(addr string) liberr.Error {
	if err := h.Bind(addr); err != nil {
		return err
	}
	return h.Run()
}

// Connect builds a client-mode reactor targeting addr but does not yet run
// the event loop; call Run to actually dial and pump.
func (h *Handle) Connect(addr string) liberr.Error {
	r := newReactor(h.settings, h.factory)
	r.isClient = true
	h.reactor = r
	h.pendingConnect = addr
	return nil
}

// Run starts accepting/dialing (as configured by Bind/Listen/Connect) and
// blocks until the reactor goes idle or is shut down.
func (h *Handle) Run() liberr.Error {
	if h.reactor == nil {
		return ErrInternal.Error()
	}
	r := h.reactor
	if r.listener != nil {
		r.startAccepting()
		r.installSignalHandler()
	}
	if h.pendingConnect != "" {
		r.initiateConnect(h.pendingConnect)
		if !r.seenConnection {
			close(r.shutdownCh)
			r.timer.stop()
			_ = r.wg.Wait()
			return ErrIO.Error()
		}
	}
	if h.watchViper != nil {
		h.WatchSettingsFile()
	}
	r.run()
	_ = r.wg.Wait()
	return nil
}

// Broadcaster returns a Sender whose target is every connection currently
// (or ever) open on this reactor, equivalent to what a Factory-built
// Handler's own Sender reaches via Sender.Broadcast, but obtainable before
// any connection exists.
func (h *Handle) Broadcaster() Sender {
	if h.reactor == nil {
		return Sender{}
	}
	return newSender(ALL, 0, h.reactor.queue)
}

// LocalAddr reports the bound listener address, or nil for a client-mode
// Handle or one that has not called Bind/Listen yet.
func (h *Handle) LocalAddr() net.Addr {
	if h.reactor == nil || h.reactor.listener == nil {
		return nil
	}
	return h.reactor.listener.Addr()
}

// WatchSettingsFile arranges for the config source passed to WithViper or
// WithSettingsFile to be re-read on every write and handed to the running
// reactor. The reactor adopts the reloaded Panic* toggles,
// ShutdownOnInterrupt and TCPNoDelay; every other field keeps its
// construction value (the connection slab, its buffers and the command
// queue are all sized once in newReactor), and one warning is logged when a
// connection, queue, buffer or fragment capacity differs. A no-op if the
// Handle was not built from
// WithSettingsFile/WithViper. Run calls this automatically once a watched
// source is present; call it yourself only if you need the watch armed
// before Run (e.g. while still in Bind).
func (h *Handle) WatchSettingsFile() {
	v := h.watchViper
	if v == nil {
		return
	}
	v.WatchConfig()
	v.OnConfigChange(func(_ fsnotify.Event) {
		next, err := settingsFromViper(v)
		if err != nil {
			h.logger.Warning("settings reload failed", logFieldsErr(err))
			return
		}
		if h.reactor == nil {
			return
		}
		sender := newSender(ALL, 0, h.reactor.queue)
		if serr := sender.enqueue(applySettingsSignal(next), ALL, false); serr != nil {
			h.logger.Warning("settings reload dropped: command queue full", logFieldsErr(serr))
		}
	})
}
