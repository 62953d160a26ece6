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

package dispatcher

import (
	"sync"

	"github.com/sabouaram/reactorbus/message"
)

// Dispatcher holds an ordered set of Matches and routes each decoded
// Message to the first (or every, for callback-matches) Handler whose
// rule claims the command.
type Dispatcher struct {
	mu       sync.Mutex
	matches  []*Match
	catchAll *Match
}

// New builds an empty Dispatcher.
func New() *Dispatcher {
	return &Dispatcher{}
}

// Add appends one Match. A second Always match is rejected.
func (d *Dispatcher) Add(m Match) error {
	if err := m.compile(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if m.Kind == Always {
		if d.catchAll != nil {
			return ErrorDuplicateAlways.Error(nil)
		}
		mm := m
		d.catchAll = &mm
		return nil
	}

	mm := m
	d.matches = append(d.matches, &mm)
	return nil
}

// AddMany adds every Match in order, stopping at the first error (e.g. a
// second Always match, or an invalid regex).
func (d *Dispatcher) AddMany(matches []Match) error {
	for _, m := range matches {
		if err := d.Add(m); err != nil {
			return err
		}
	}
	return nil
}

// RemoveByTag drops every registered Match (including the catch-all, if
// tagged) whose Tag equals tag.
func (d *Dispatcher) RemoveByTag(tag string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	kept := d.matches[:0:0]
	for _, m := range d.matches {
		if m.Tag != tag {
			kept = append(kept, m)
		}
	}
	d.matches = kept

	if d.catchAll != nil && d.catchAll.Tag == tag {
		d.catchAll = nil
	}
}

// Dispatch routes m through the registered matches in order. It invokes
// the first OneToOne/Regex match that claims the command and stops;
// OneToOneCallback matches also run but let iteration continue, so
// multiple handlers may observe the same command. If nothing claims the
// message, the catch-all (if any) runs. Dispatch returns true iff any
// handler ran.
func (d *Dispatcher) Dispatch(m message.Message) bool {
	d.mu.Lock()
	matches := make([]*Match, len(d.matches))
	copy(matches, d.matches)
	catchAll := d.catchAll
	d.mu.Unlock()

	ran := false

	for _, mt := range matches {
		if !mt.matches(m.Command) {
			continue
		}
		if mt.Handler != nil {
			mt.Handler(m)
		}
		ran = true
		if mt.stopsDispatch() {
			return true
		}
	}

	if !ran && catchAll != nil {
		if catchAll.Handler != nil {
			catchAll.Handler(m)
		}
		return true
	}

	return ran
}
