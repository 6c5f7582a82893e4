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

// Package fields holds the structured key/value attributes attached to a
// single log entry, independent of the message string itself.
package fields

import "github.com/sirupsen/logrus"

// Fields is an immutable-by-convention set of structured attributes. Methods
// that "add" return a new Fields sharing the receiver's entries plus the
// addition, so a base field set can be reused safely across goroutines.
type Fields map[string]interface{}

// New returns an empty field set.
func New() Fields {
	return make(Fields)
}

// Add returns a copy of f with key/val set.
func (f Fields) Add(key string, val interface{}) Fields {
	n := f.Clone()
	n[key] = val
	return n
}

// Merge returns a copy of f with every entry of other applied on top.
func (f Fields) Merge(other Fields) Fields {
	n := f.Clone()
	for k, v := range other {
		n[k] = v
	}
	return n
}

// Clone returns a shallow copy of f.
func (f Fields) Clone() Fields {
	n := make(Fields, len(f))
	for k, v := range f {
		n[k] = v
	}
	return n
}

// Logrus converts the field set to a logrus.Fields value for a log call.
func (f Fields) Logrus() logrus.Fields {
	return logrus.Fields(f.Clone())
}
