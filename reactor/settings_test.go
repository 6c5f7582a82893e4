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

package reactor_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/viper"

	"github.com/sabouaram/reactor"
)

var _ = Describe("DefaultSettings", func() {
	It("is immediately usable by Build", func() {
		s := reactor.DefaultSettings()
		Expect(s.MaxConnections).To(BeNumerically(">", 0))
		Expect(s.QueueSize).To(BeNumerically(">", 0))
		Expect(s.InBufferCapacity).To(BeNumerically(">", 0))
		Expect(s.OutBufferCapacity).To(BeNumerically(">", 0))
	})

	It("enables panic only for internal errors", func() {
		s := reactor.DefaultSettings()
		Expect(s.PanicOnInternal).To(BeTrue())
		Expect(s.PanicOnCapacity).To(BeFalse())
		Expect(s.PanicOnProtocol).To(BeFalse())
	})
})

var _ = Describe("Builder settings sources", func() {
	It("loads Settings from a config file via WithSettingsFile", func() {
		dir := GinkgoT().TempDir()
		path := filepath.Join(dir, "reactor.yaml")
		content := "maxconnections: 42\nqueuesize: 3\n"
		Expect(os.WriteFile(path, []byte(content), 0o600)).To(Succeed())

		h, err := reactor.NewBuilder().WithSettingsFile(path).Build(reactor.NewFactory(func(out reactor.Sender) reactor.Handler {
			return reactor.HandlerFuncs{}
		}))
		Expect(err).To(BeNil())
		Expect(h).ToNot(BeNil())
	})

	It("rejects a nonexistent config file at WithSettingsFile time", func() {
		h, err := reactor.NewBuilder().WithSettingsFile("/does/not/exist.yaml").Build(reactor.NewFactory(func(out reactor.Sender) reactor.Handler {
			return reactor.HandlerFuncs{}
		}))
		Expect(err).ToNot(BeNil())
		Expect(h).To(BeNil())
	})

	It("loads Settings from a pre-populated viper instance via WithViper", func() {
		v := viper.New()
		v.Set("maxconnections", 7)
		h, err := reactor.NewBuilder().WithViper(v).Build(reactor.NewFactory(func(out reactor.Sender) reactor.Handler {
			return reactor.HandlerFuncs{}
		}))
		Expect(err).To(BeNil())
		Expect(h).ToNot(BeNil())
	})

	It("rejects a Settings with no connection capacity at Build time", func() {
		s := reactor.DefaultSettings()
		s.MaxConnections = 0
		h, err := reactor.NewBuilder().WithSettings(s).Build(reactor.NewFactory(func(out reactor.Sender) reactor.Handler {
			return reactor.HandlerFuncs{}
		}))
		Expect(err).ToNot(BeNil())
		Expect(h).To(BeNil())
	})
})
