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

// Package message holds the application-level payload carried between a
// connection and its handler: a tagged union of UTF-8 text and opaque
// bytes, paired with the opcode it was (or will be) framed under.
package message

import (
	"fmt"
	"unicode/utf8"

	"github.com/sabouaram/reactor/errors"
	"github.com/sabouaram/reactor/protocol"
)

// Kind distinguishes the two payload shapes a Message can carry.
type Kind uint8

const (
	KindText Kind = iota
	KindBinary
)

// Message is an immutable {Text|Binary} payload.
type Message struct {
	kind protocol.OpCode
	text string
	data []byte
}

// NewText builds a text message.
func NewText(s string) Message {
	return Message{kind: protocol.Text, text: s}
}

// NewBinary builds a binary message from a byte slice, copying it so the
// caller's buffer can be reused immediately.
func NewBinary(b []byte) Message {
	cp := make([]byte, len(b))
	copy(cp, b)
	return Message{kind: protocol.Binary, data: cp}
}

// NewFromBytes builds a Message the way the connection's read path does:
// every received block is treated as text regardless of origin, per the
// decoding policy this module reproduces verbatim (see DESIGN.md).
func NewFromBytes(b []byte) (Message, errors.Error) {
	if !utf8.Valid(b) {
		return Message{}, ErrInvalidUTF8.Error()
	}
	return NewText(string(b)), nil
}

// OpCode reports the wire opcode this message would be framed under.
func (m Message) OpCode() protocol.OpCode {
	return m.kind
}

// IsText reports whether the message carries a text payload.
func (m Message) IsText() bool {
	return m.kind == protocol.Text
}

// Text returns the message as a string. If the message is binary, the
// bytes are validated as UTF-8 and an Encoding error is returned if they
// are not.
func (m Message) Text() (string, errors.Error) {
	if m.kind == protocol.Text {
		return m.text, nil
	}
	if !utf8.Valid(m.data) {
		return "", ErrInvalidUTF8.Error()
	}
	return string(m.data), nil
}

// Data returns the message payload as bytes, regardless of kind.
func (m Message) Data() []byte {
	if m.kind == protocol.Text {
		return []byte(m.text)
	}
	out := make([]byte, len(m.data))
	copy(out, m.data)
	return out
}

// String implements fmt.Stringer.
func (m Message) String() string {
	if m.kind == protocol.Text {
		return m.text
	}
	return fmt.Sprintf("<binary data: %d bytes>", len(m.data))
}
