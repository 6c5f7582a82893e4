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
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// metrics is the optional Prometheus collector set for one Reactor. A nil
// *metrics is valid and every method on it is a no-op, so call sites never
// need to branch on Settings.MetricsEnabled themselves.
type metrics struct {
	connectionsOpen prometheus.Gauge
	commands        *prometheus.CounterVec
	bytesIn         prometheus.Counter
	bytesOut        prometheus.Counter
	closeCodes      *prometheus.CounterVec
}

func newMetrics(namespace string, registerer prometheus.Registerer) *metrics {
	m := &metrics{
		connectionsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_open",
			Help:      "Number of currently open connections.",
		}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_processed_total",
			Help:      "Commands dequeued and applied, by signal kind.",
		}, []string{"signal"}),
		bytesIn: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_in_total",
			Help:      "Bytes read from peer sockets.",
		}),
		bytesOut: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_out_total",
			Help:      "Bytes written to peer sockets.",
		}),
		closeCodes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "close_codes_total",
			Help:      "Connections closed, by numeric close code.",
		}, []string{"code"}),
	}
	registerer.MustRegister(m.connectionsOpen, m.commands, m.bytesIn, m.bytesOut, m.closeCodes)
	return m
}

func (m *metrics) connOpened() {
	if m == nil {
		return
	}
	m.connectionsOpen.Inc()
}

func (m *metrics) connClosed(code uint16) {
	if m == nil {
		return
	}
	m.connectionsOpen.Dec()
	m.closeCodes.WithLabelValues(strconv.Itoa(int(code))).Inc()
}

func (m *metrics) commandProcessed(kind SignalKind) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(kind.String()).Inc()
}

func (m *metrics) bytesRead(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.bytesIn.Add(float64(n))
}

func (m *metrics) bytesWritten(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.bytesOut.Add(float64(n))
}
