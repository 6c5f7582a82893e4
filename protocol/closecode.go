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

package protocol

// CloseCode is a status code exchanged (or, today, only recorded locally)
// when a connection closes. Numbering follows RFC 6455 so a future framing
// layer can emit these without renumbering anything above it.
type CloseCode struct {
	named Uint16Named
	other uint16
}

// Uint16Named enumerates the reserved close codes; Other is the escape
// hatch for any numeric value outside this set.
type Uint16Named uint8

const (
	Normal Uint16Named = iota
	Away
	Protocol
	Unsupported
	Status
	Abnormal
	Invalid
	Policy
	Size
	Extension
	Error
	Restart
	Again
	Tls
	Empty
	Other
)

var namedToWire = map[Uint16Named]uint16{
	Normal:      1000,
	Away:        1001,
	Protocol:    1002,
	Unsupported: 1003,
	Status:      1005,
	Abnormal:    1006,
	Invalid:     1007,
	Policy:      1008,
	Size:        1009,
	Extension:   1010,
	Error:       1011,
	Restart:     1012,
	Again:       1013,
	Tls:         1015,
	Empty:       0,
}

var wireToNamed = func() map[uint16]Uint16Named {
	m := make(map[uint16]Uint16Named, len(namedToWire))
	for k, v := range namedToWire {
		m[v] = k
	}
	return m
}()

// NewCloseCode builds the named CloseCode constant for a known variant.
// Passing Other builds an escape-hatch code; use CloseCodeOther instead.
func NewCloseCode(named Uint16Named) CloseCode {
	return CloseCode{named: named}
}

// CloseCodeOther builds a CloseCode carrying an arbitrary numeric code not
// covered by the named set.
func CloseCodeOther(code uint16) CloseCode {
	if n, ok := wireToNamed[code]; ok {
		return CloseCode{named: n}
	}
	return CloseCode{named: Other, other: code}
}

// CloseCodeFromUint16 decodes a wire close code.
func CloseCodeFromUint16(code uint16) CloseCode {
	return CloseCodeOther(code)
}

// Uint16 encodes the CloseCode back to its wire representation.
func (c CloseCode) Uint16() uint16 {
	if c.named == Other {
		return c.other
	}
	if v, ok := namedToWire[c.named]; ok {
		return v
	}
	return c.other
}

// Named reports the named variant and true, or Other and false when this code
// is the escape hatch (in which case Uint16 carries the arbitrary numeric code).
func (c CloseCode) Named() (Uint16Named, bool) {
	return c.named, c.named != Other
}

var (
	NormalClose      = NewCloseCode(Normal)
	AwayClose        = NewCloseCode(Away)
	ProtocolClose    = NewCloseCode(Protocol)
	UnsupportedClose = NewCloseCode(Unsupported)
	StatusClose      = NewCloseCode(Status)
	AbnormalClose    = NewCloseCode(Abnormal)
	InvalidClose     = NewCloseCode(Invalid)
	PolicyClose      = NewCloseCode(Policy)
	SizeClose        = NewCloseCode(Size)
	ExtensionClose   = NewCloseCode(Extension)
	ErrorClose       = NewCloseCode(Error)
	RestartClose     = NewCloseCode(Restart)
	AgainClose       = NewCloseCode(Again)
	TlsClose         = NewCloseCode(Tls)
	EmptyClose       = NewCloseCode(Empty)
)
