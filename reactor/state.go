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

// State is a Connection's position in its lifecycle. It only ever moves
// forward: Connecting -> Open -> (AwaitingClose | RespondingClose) ->
// FinishedClose.
type State uint8

const (
	Connecting State = iota
	Open
	AwaitingClose
	RespondingClose
	FinishedClose
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "Connecting"
	case Open:
		return "Open"
	case AwaitingClose:
		return "AwaitingClose"
	case RespondingClose:
		return "RespondingClose"
	case FinishedClose:
		return "FinishedClose"
	default:
		return "Unknown"
	}
}

// IsClosing reports whether the connection has begun (or finished) its
// close handshake and should no longer accept new outbound messages.
func (s State) IsClosing() bool {
	switch s {
	case AwaitingClose, RespondingClose, FinishedClose:
		return true
	default:
		return false
	}
}

// EndpointRole distinguishes a connection that originated locally (Client)
// from one that was accepted (Server); it determines retry eligibility.
type EndpointRole uint8

const (
	EndpointUnset EndpointRole = iota
	EndpointServer
	EndpointClient
)

// Endpoint pairs a connection's role with the client-only retry state.
type Endpoint struct {
	Role EndpointRole
	URL  string
}
