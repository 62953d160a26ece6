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

// Package reactor implements a single-threaded cooperative I/O multiplexer:
// a heterogeneous set of Connections, each declaring interest in read,
// write, accept, signal or timeout events, driven through serialized
// process_* callbacks on one loop goroutine.
//
// Go exposes no portable raw poll(2)/epoll/kqueue primitive, so readiness
// detection here is goroutine-per-connection feeding a single ready
// channel; the invariant the rest of this module actually depends on —
// that no two process_* callbacks ever run concurrently — is preserved by
// having exactly one goroutine (the loop goroutine) drain that channel and
// invoke callbacks.
package reactor

import "time"

// Priority orders connections within one reactor step; higher values are
// serviced first. Default is PriorityNormal.
type Priority int

const (
	PriorityMin     Priority = 0
	PriorityLow     Priority = 25
	PriorityNormal  Priority = 50
	PriorityHigh    Priority = 75
	PriorityMax     Priority = 100
)

const (
	// DefaultEventLimit bounds how many read/write items a connection may
	// process in a single reactor step before yielding to lower-priority
	// connections.
	DefaultEventLimit = 5
	// DefaultStepBudget bounds the wall-clock time a connection may spend
	// processing a single reactor step.
	DefaultStepBudget = 500 * time.Millisecond
)

// Connection is the minimal contract every reactor participant satisfies.
// Everything else (readability, writability, accept-ability, signal
// interest, timeouts, lifecycle notification) is an optional interface the
// reactor type-asserts for, in the same spirit as io.ReaderFrom/WriterTo:
// a connection only implements the capabilities it actually has.
type Connection interface {
	Name() string
	Priority() Priority
	Enabled() bool
	// Done reports whether this connection has requested removal; the
	// reactor removes it once any pending output has drained.
	Done() bool
}

// OutputDrainer is implemented by connections that buffer outbound bytes;
// the reactor only removes a Done connection once OutputEmpty is true.
type OutputDrainer interface {
	OutputEmpty() bool
}

// Reader is implemented by connections with read interest.
type Reader interface {
	WantRead() bool
	ProcessRead() error
}

// Writer is implemented by connections with write interest.
type Writer interface {
	WantWrite() bool
	ProcessWrite() error
}

// Acceptor is implemented by listening connections.
type Acceptor interface {
	WantListen() bool
	ProcessAccept() error
}

// SignalWaiter is implemented by connections waiting on an OS signal.
type SignalWaiter interface {
	WantSignal() bool
	ProcessSignal() error
}

// Timeouter is implemented by connections with a timer. NextDeadline
// returns the next absolute time ProcessTimeout should fire, and whether a
// timeout is currently armed at all.
type Timeouter interface {
	NextDeadline() (time.Time, bool)
	ProcessTimeout() error
}

// ErrorHandler receives process_error notifications.
type ErrorHandler interface {
	ProcessError(err error)
}

// HupHandler receives process_hup notifications (peer closed its side).
type HupHandler interface {
	ProcessHup()
}

// InvalidHandler receives process_invalid notifications (malformed data
// that is not itself a transport error).
type InvalidHandler interface {
	ProcessInvalid()
}

// Lifecycle is implemented by connections that care about being
// attached/detached from a reactor.
type Lifecycle interface {
	ConnectionAdded(r *Reactor)
	ConnectionRemoved(r *Reactor)
}
