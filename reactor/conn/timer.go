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

package conn

import (
	"time"

	"github.com/sabouaram/reactorbus/reactor"
)

// Timer is a connection with no I/O at all: it only ever fires
// ProcessTimeout, either once (NewTimer) or repeatedly (NewTicker).
type Timer struct {
	Base
	onFire func()
}

// NewTimer arms a one-shot timer firing after delay.
func NewTimer(name string, priority reactor.Priority, delay time.Duration, onFire func()) *Timer {
	t := &Timer{Base: NewBase(name, priority), onFire: onFire}
	t.SetTimeout(delay)
	return t
}

// NewTicker arms a repeating timer firing every interval.
func NewTicker(name string, priority reactor.Priority, interval time.Duration, onFire func()) *Timer {
	t := &Timer{Base: NewBase(name, priority), onFire: onFire}
	t.SetRepeatingTimeout(interval)
	return t
}

func (t *Timer) ProcessTimeout() error {
	if t.onFire != nil {
		t.onFire()
	}
	t.RearmTimeout()
	if _, armed := t.NextDeadline(); !armed {
		t.MarkDone()
	}
	return nil
}
