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

import "math"

// Token identifies a registered source in the reactor: a live connection's
// slab index, or one of the four reserved values below.
type Token int

const (
	// ALL addresses the listener on accept readiness, and every live
	// connection when used as a Command's broadcast target.
	ALL Token = math.MaxInt - 5
	// TIMER addresses the reactor's timer-fired channel.
	TIMER Token = math.MaxInt - 4
	// QUEUE addresses the reactor's command channel.
	QUEUE Token = math.MaxInt - 3
	// SYSTEM is an unused reserved slot; seeing it dispatched is a bug.
	SYSTEM Token = math.MaxInt - 6
)

// reserved reports whether t is one of the four sentinel tokens rather than
// a live connection's slab index.
func (t Token) reserved() bool {
	return t == ALL || t == TIMER || t == QUEUE || t == SYSTEM
}
