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

import (
	"sort"
	"sync"
	"time"

	"github.com/sabouaram/reactorbus/logger"
)

// Reactor owns a heterogeneous set of Connections and drives them through
// serialized process_* callbacks from a single loop goroutine.
type Reactor struct {
	log logger.Logger

	mu     sync.Mutex
	conns  map[Connection]struct{}
	remove map[Connection]struct{}

	ready chan event

	quit chan struct{}
	done chan struct{}

	running bool

	// StepObserver, when set, is handed the wall-clock duration of each
	// dispatch batch, for a caller to record against DefaultStepBudget
	// (spec.md §4.1 "per-step time budget").
	StepObserver func(time.Duration)
}

var (
	instanceOnce sync.Once
	instance     *Reactor
)

// Instance returns the process-wide reactor singleton, constructing it on
// first use (spec.md §4.1 "instance()").
func Instance() *Reactor {
	instanceOnce.Do(func() {
		instance = New(logger.Std())
	})
	return instance
}

// New builds a standalone Reactor. Most callers should use Instance(); New
// exists for tests that need an isolated reactor.
func New(log logger.Logger) *Reactor {
	if log == nil {
		log = logger.Std()
	}
	return &Reactor{
		log:    log,
		conns:  make(map[Connection]struct{}),
		remove: make(map[Connection]struct{}),
		ready:  make(chan event, 256),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Notify posts a readiness event for c. Connections call this from their
// own background watcher goroutine; it never blocks the caller for long
// (the channel is generously buffered, and a full channel means the loop
// is falling behind, which is itself worth surfacing rather than masking
// with an unbounded buffer).
func (r *Reactor) Notify(c Connection, kind EventKind, err error) {
	select {
	case r.ready <- event{conn: c, kind: kind, err: err}:
	default:
		r.log.Warn("reactor ready channel full, dropping event", logger.Fields{
			"connection": c.Name(),
			"kind":       kind.String(),
		})
	}
}

// Add attaches c to the reactor and invokes ConnectionAdded if c
// implements Lifecycle. Fails if c is already attached.
func (r *Reactor) Add(c Connection) error {
	r.mu.Lock()
	if _, ok := r.conns[c]; ok {
		r.mu.Unlock()
		return ErrorAlreadyAttached.Error(nil)
	}
	r.conns[c] = struct{}{}
	r.mu.Unlock()

	if lc, ok := c.(Lifecycle); ok {
		lc.ConnectionAdded(r)
	}
	return nil
}

// Remove detaches c. It is safe to call from within a process_* callback;
// the connection finishes its current callback and is then excluded from
// future iterations.
func (r *Reactor) Remove(c Connection) error {
	r.mu.Lock()
	if _, ok := r.conns[c]; !ok {
		r.mu.Unlock()
		return ErrorNotAttached.Error(nil)
	}
	r.remove[c] = struct{}{}
	r.mu.Unlock()
	return nil
}

func (r *Reactor) finalizeRemoval(c Connection) {
	r.mu.Lock()
	delete(r.conns, c)
	delete(r.remove, c)
	r.mu.Unlock()

	if lc, ok := c.(Lifecycle); ok {
		lc.ConnectionRemoved(r)
	}
}

// List returns a snapshot of currently attached connections.
func (r *Reactor) List() []Connection {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Connection, 0, len(r.conns))
	for c := range r.conns {
		out = append(out, c)
	}
	return out
}

// Run loops until no connections remain or Stop is called.
func (r *Reactor) Run() {
	r.mu.Lock()
	r.running = true
	r.mu.Unlock()
	defer close(r.done)

	for {
		select {
		case <-r.quit:
			r.drainAll()
			return
		default:
		}

		if len(r.List()) == 0 {
			return
		}

		r.Poll(r.nextTimeout())
	}
}

// Stop requests that Run return after removing every connection, mirroring
// the SIGINT/SIGTERM shutdown path (spec.md §4.1 "Cancellation & shutdown").
func (r *Reactor) Stop() {
	select {
	case <-r.quit:
	default:
		close(r.quit)
	}
}

// Wait blocks until a running Run() has returned.
func (r *Reactor) Wait() {
	<-r.done
}

func (r *Reactor) drainAll() {
	for _, c := range r.List() {
		r.finalizeRemoval(c)
	}
}

func (r *Reactor) nextTimeout() time.Duration {
	var (
		soonest time.Time
		found   bool
	)

	for _, c := range r.List() {
		if !c.Enabled() {
			continue
		}
		t, ok := c.(Timeouter)
		if !ok {
			continue
		}
		d, armed := t.NextDeadline()
		if !armed {
			continue
		}
		if !found || d.Before(soonest) {
			soonest = d
			found = true
		}
	}

	if !found {
		return time.Second
	}

	d := time.Until(soonest)
	if d < 0 {
		return 0
	}
	return d
}

// Poll performs one reactor iteration: collect whatever readiness events
// are already queued (waiting up to timeout for the first one), dispatch
// them in priority order, fire elapsed timeouts, and sweep connections
// marked done with nothing left to write.
func (r *Reactor) Poll(timeout time.Duration) {
	batch := r.collect(timeout)
	r.dispatch(batch)
	r.fireTimeouts()
	r.sweep()
}

func (r *Reactor) collect(timeout time.Duration) []event {
	var batch []event

	select {
	case ev := <-r.ready:
		batch = append(batch, ev)
	case <-time.After(timeout):
		return batch
	case <-r.quit:
		return batch
	}

	for {
		select {
		case ev := <-r.ready:
			batch = append(batch, ev)
		default:
			return batch
		}
	}
}

// dispatch groups the batch by connection, then delivers each connection's
// events in the fixed precedence order, highest-priority connection first.
func (r *Reactor) dispatch(batch []event) {
	if len(batch) == 0 {
		return
	}

	if r.StepObserver != nil {
		start := time.Now()
		defer func() { r.StepObserver(time.Since(start)) }()
	}

	byConn := make(map[Connection][]event, len(batch))
	order := make([]Connection, 0, len(batch))
	for _, ev := range batch {
		if _, ok := byConn[ev.conn]; !ok {
			order = append(order, ev.conn)
		}
		byConn[ev.conn] = append(byConn[ev.conn], ev)
	}

	sort.SliceStable(order, func(i, j int) bool {
		return order[i].Priority() > order[j].Priority()
	})

	for _, c := range order {
		if r.isRemoving(c) {
			continue
		}
		evs := byConn[c]
		sort.SliceStable(evs, func(i, j int) bool {
			return evs[i].kind.precedence() < evs[j].kind.precedence()
		})

		limit := DefaultEventLimit
		deadline := time.Now().Add(DefaultStepBudget)
		for i, ev := range evs {
			if i >= limit || time.Now().After(deadline) {
				break
			}
			r.deliver(c, ev)
		}
	}
}

func (r *Reactor) deliver(c Connection, ev event) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("reactor connection callback panicked", logger.Fields{
				"connection": c.Name(),
				"kind":       ev.kind.String(),
				"panic":      rec,
			})
			_ = r.Remove(c)
			r.runProcessError(c, nil)
		}
	}()

	var err error
	switch ev.kind {
	case EventError:
		r.runProcessError(c, ev.err)
		return
	case EventHup:
		if h, ok := c.(HupHandler); ok {
			h.ProcessHup()
		}
		return
	case EventInvalid:
		if iv, ok := c.(InvalidHandler); ok {
			iv.ProcessInvalid()
		}
		return
	case EventRead:
		if rd, ok := c.(Reader); ok {
			err = rd.ProcessRead()
		}
	case EventWrite:
		if w, ok := c.(Writer); ok {
			err = w.ProcessWrite()
		}
	case EventAccept:
		if a, ok := c.(Acceptor); ok {
			err = a.ProcessAccept()
		}
	case EventSignal:
		if s, ok := c.(SignalWaiter); ok {
			err = s.ProcessSignal()
		}
	case EventTimeout:
		if t, ok := c.(Timeouter); ok {
			err = t.ProcessTimeout()
		}
	}

	if err != nil {
		r.log.Error("reactor connection event failed", logger.Fields{
			"connection": c.Name(),
			"kind":       ev.kind.String(),
			"error":      err.Error(),
		})
		_ = r.Remove(c)
		r.runProcessError(c, err)
	}
}

func (r *Reactor) runProcessError(c Connection, err error) {
	if eh, ok := c.(ErrorHandler); ok {
		eh.ProcessError(err)
	}
}

func (r *Reactor) isRemoving(c Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.remove[c]
	return ok
}

func (r *Reactor) fireTimeouts() {
	now := time.Now()
	for _, c := range r.List() {
		if !c.Enabled() || r.isRemoving(c) {
			continue
		}
		t, ok := c.(Timeouter)
		if !ok {
			continue
		}
		d, armed := t.NextDeadline()
		if !armed || d.After(now) {
			continue
		}
		if err := t.ProcessTimeout(); err != nil {
			r.log.Error("reactor timeout callback failed", logger.Fields{
				"connection": c.Name(),
				"error":      err.Error(),
			})
			_ = r.Remove(c)
			r.runProcessError(c, err)
		}
	}
}

func (r *Reactor) sweep() {
	r.mu.Lock()
	toFinalize := make([]Connection, 0)
	for c := range r.remove {
		if od, ok := c.(OutputDrainer); ok && !od.OutputEmpty() {
			continue
		}
		toFinalize = append(toFinalize, c)
	}
	for c := range r.conns {
		if _, marked := r.remove[c]; marked {
			continue
		}
		if !c.Done() {
			continue
		}
		if od, ok := c.(OutputDrainer); ok && !od.OutputEmpty() {
			continue
		}
		toFinalize = append(toFinalize, c)
	}
	r.mu.Unlock()

	for _, c := range toFinalize {
		r.finalizeRemoval(c)
	}
}
