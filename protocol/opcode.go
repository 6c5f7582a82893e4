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

// Package protocol holds the wire-level enumerations shared by every
// connection: frame opcodes and close codes as specified by RFC 6455,
// kept here even though the engine does not currently frame anything.
package protocol

// OpCode identifies the kind of a data or control frame.
type OpCode uint8

const (
	// Continue marks a continuation frame of a fragmented message.
	Continue OpCode = iota
	// Text marks a text data frame.
	Text
	// Binary marks a binary data frame.
	Binary
)

const (
	// Close marks a close control frame.
	Close OpCode = 8 + iota
	// Ping marks a ping control frame.
	Ping
	// Pong marks a pong control frame.
	Pong
)

// Bad marks a byte that does not correspond to any known opcode.
const Bad OpCode = 0xFF

// IsControl reports whether the opcode is a control frame.
func (o OpCode) IsControl() bool {
	switch o {
	case Text, Binary, Continue:
		return false
	default:
		return true
	}
}

// String implements fmt.Stringer.
func (o OpCode) String() string {
	switch o {
	case Continue:
		return "CONTINUE"
	case Text:
		return "TEXT"
	case Binary:
		return "BINARY"
	case Close:
		return "CLOSE"
	case Ping:
		return "PING"
	case Pong:
		return "PONG"
	default:
		return "BAD"
	}
}

// Uint8 converts the opcode to its wire byte.
func (o OpCode) Uint8() uint8 {
	switch o {
	case Continue, Text, Binary, Close, Ping, Pong:
		return uint8(o)
	default:
		// matches the original's debug-assert-then-fallback-to-Close behavior
		return uint8(Close)
	}
}

// OpCodeFromUint8 decodes a wire byte into an OpCode, returning Bad for
// anything outside the known set.
func OpCodeFromUint8(b uint8) OpCode {
	switch b {
	case 0:
		return Continue
	case 1:
		return Text
	case 2:
		return Binary
	case 8:
		return Close
	case 9:
		return Ping
	case 10:
		return Pong
	default:
		return Bad
	}
}
