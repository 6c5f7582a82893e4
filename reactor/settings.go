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
	"github.com/spf13/viper"
)

// Settings configures one Reactor. A zero value is not ready to use;
// construct one with DefaultSettings and override only what you need.
type Settings struct {
	MaxConnections int
	QueueSize      int

	FragmentsCapacity int
	FragmentsGrow     bool
	FragmentSize      int

	InBufferCapacity int
	InBufferGrow     bool

	OutBufferCapacity int
	OutBufferGrow     bool

	PanicOnInternal       bool
	PanicOnCapacity       bool
	PanicOnProtocol       bool
	PanicOnEncoding       bool
	PanicOnQueue          bool
	PanicOnIo             bool
	PanicOnTimeout        bool
	PanicOnNewConnection  bool
	PanicOnShutdown       bool

	ShutdownOnInterrupt bool
	TCPNoDelay          bool

	MetricsEnabled   bool
	MetricsNamespace string
}

// DefaultSettings returns the out-of-the-box tuning used when a caller does
// not need anything unusual: a modest connection ceiling, growable buffers,
// and panics disabled except for internal errors.
func DefaultSettings() Settings {
	return Settings{
		MaxConnections: 100,
		QueueSize:      5,

		FragmentsCapacity: 10,
		FragmentsGrow:     true,
		FragmentSize:      65535,

		InBufferCapacity: 2048,
		InBufferGrow:     true,

		OutBufferCapacity: 2048,
		OutBufferGrow:     true,

		PanicOnInternal: true,

		ShutdownOnInterrupt: true,
		TCPNoDelay:          false,

		MetricsEnabled:   false,
		MetricsNamespace: "reactor",
	}
}

// queueCapacity is the bound of the reactor's internal command channel.
func (s Settings) queueCapacity() int {
	return s.MaxConnections * s.QueueSize
}

// settingsFromViper decodes a Settings struct out of an already-loaded
// *viper.Viper instance, matching the ambient config package's habit of
// decoding component structs by mapstructure tag rather than hand-rolled
// field-by-field lookups.
func settingsFromViper(v *viper.Viper) (Settings, error) {
	s := DefaultSettings()
	if v == nil {
		return s, nil
	}
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, err
	}
	return s, nil
}
