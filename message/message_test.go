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

package message_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sabouaram/reactor/message"
	"github.com/sabouaram/reactor/protocol"
)

var _ = Describe("Message", func() {
	Describe("NewText / NewBinary round-trips", func() {
		It("preserves text data through Data()", func() {
			m := message.NewText("hello")
			Expect(m.Data()).To(Equal([]byte("hello")))
			Expect(m.OpCode()).To(Equal(protocol.Text))
		})

		It("preserves binary data through Data()", func() {
			b := []byte{0x01, 0x02, 0xFF}
			m := message.NewBinary(b)
			Expect(m.Data()).To(Equal(b))
			Expect(m.OpCode()).To(Equal(protocol.Binary))
		})

		It("round-trips text through Text()", func() {
			m := message.NewText("round trip")
			s, err := m.Text()
			Expect(err).To(BeNil())
			Expect(s).To(Equal("round trip"))
		})
	})

	Describe("NewFromBytes", func() {
		It("accepts valid utf-8 as a text message", func() {
			m, err := message.NewFromBytes([]byte("valid"))
			Expect(err).To(BeNil())
			Expect(m.IsText()).To(BeTrue())
		})

		It("rejects invalid utf-8 with an Encoding-flavored error", func() {
			_, err := message.NewFromBytes([]byte{0xff, 0xfe, 0xfd})
			Expect(err).ToNot(BeNil())
			Expect(err.IsCode(message.ErrInvalidUTF8)).To(BeTrue())
		})
	})

	Describe("Text() on a binary message", func() {
		It("decodes valid utf-8 bytes", func() {
			m := message.NewBinary([]byte("ok"))
			s, err := m.Text()
			Expect(err).To(BeNil())
			Expect(s).To(Equal("ok"))
		})

		It("returns an error for non-utf-8 bytes", func() {
			m := message.NewBinary([]byte{0xff, 0xfe})
			_, err := m.Text()
			Expect(err).ToNot(BeNil())
		})
	})
})
