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

// Package conn provides the concrete reactor.Connection kinds: listening
// sockets, accepted stream clients, line- and message-framed adapters,
// pipes, datagram endpoints, timers, signals and file watches.
package conn

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sabouaram/reactorbus/reactor"
)

// Base is embedded by every concrete connection kind in this package. It
// carries the bookkeeping fields reactor.Connection and reactor.Timeouter
// need (name, priority, enabled/done flags, an optional repeating or
// one-shot deadline) so each concrete type only has to implement the
// capability methods specific to its own I/O shape.
type Base struct {
	name     string
	priority reactor.Priority

	enabled int32
	done    int32

	mu       sync.Mutex
	deadline time.Time
	armed    bool
	repeat   time.Duration
}

// NewBase constructs a Base with the given name and priority, enabled by
// default.
func NewBase(name string, priority reactor.Priority) Base {
	return Base{name: name, priority: priority, enabled: 1}
}

func (b *Base) Name() string { return b.name }

func (b *Base) Priority() reactor.Priority { return b.priority }

func (b *Base) Enabled() bool { return atomic.LoadInt32(&b.enabled) != 0 }

// SetEnabled toggles whether the reactor should solicit events from this
// connection; a disabled connection is otherwise left attached.
func (b *Base) SetEnabled(v bool) {
	if v {
		atomic.StoreInt32(&b.enabled, 1)
	} else {
		atomic.StoreInt32(&b.enabled, 0)
	}
}

func (b *Base) Done() bool { return atomic.LoadInt32(&b.done) != 0 }

// MarkDone requests removal once any buffered output has drained.
func (b *Base) MarkDone() { atomic.StoreInt32(&b.done, 1) }

// SetTimeout arms a one-shot deadline, delay from now. A negative delay
// disarms the timeout (mirrors spec.md §4.1's timeout_delay=-1 convention).
func (b *Base) SetTimeout(delay time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if delay < 0 {
		b.armed = false
		b.repeat = 0
		return
	}
	b.deadline = time.Now().Add(delay)
	b.armed = true
	b.repeat = 0
}

// SetRepeatingTimeout arms a timeout that automatically rearms itself
// `every` after each firing.
func (b *Base) SetRepeatingTimeout(every time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if every <= 0 {
		b.armed = false
		b.repeat = 0
		return
	}
	b.deadline = time.Now().Add(every)
	b.armed = true
	b.repeat = every
}

// NextDeadline implements reactor.Timeouter.
func (b *Base) NextDeadline() (time.Time, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.deadline, b.armed
}

// RearmTimeout is called by the embedding type's ProcessTimeout once it has
// handled a firing; for repeating timers this schedules the next one.
func (b *Base) RearmTimeout() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.repeat > 0 {
		b.deadline = time.Now().Add(b.repeat)
		return
	}
	b.armed = false
}
