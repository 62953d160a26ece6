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

// EventKind tags a readiness notification posted by a connection's
// background watcher. precedence() gives the fixed per-connection
// dispatch order spec.md §4.1 step 4 requires.
type EventKind uint8

const (
	EventError EventKind = iota
	EventHup
	EventInvalid
	EventRead
	EventWrite
	EventAccept
	EventSignal
	EventTimeout
)

func (k EventKind) precedence() int {
	return int(k)
}

func (k EventKind) String() string {
	switch k {
	case EventError:
		return "error"
	case EventHup:
		return "hup"
	case EventInvalid:
		return "invalid"
	case EventRead:
		return "read"
	case EventWrite:
		return "write"
	case EventAccept:
		return "accept"
	case EventSignal:
		return "signal"
	case EventTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// event is one posted readiness notification, queued until the loop
// goroutine's next iteration picks it up.
type event struct {
	conn Connection
	kind EventKind
	err  error
}
