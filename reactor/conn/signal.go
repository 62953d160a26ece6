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
	"os"
	"os/signal"
	"syscall"

	"github.com/sabouaram/reactorbus/reactor"
)

// Signal is a connection wired to os/signal.Notify for SIGINT/SIGTERM/
// SIGQUIT, the graceful-shutdown trigger spec.md §4.1 describes as
// "Cancellation & shutdown". ProcessSignal runs OnSignal (typically
// reactor.Stop) from the loop goroutine, preserving the same
// single-threaded-callback invariant every other event kind gets.
type Signal struct {
	Base

	ch       chan os.Signal
	received chan os.Signal
	OnSignal func(sig os.Signal)
}

// NewSignal builds a Signal connection for SIGINT, SIGTERM and SIGQUIT.
func NewSignal(name string, priority reactor.Priority, onSignal func(sig os.Signal)) *Signal {
	return &Signal{
		Base:     NewBase(name, priority),
		ch:       make(chan os.Signal, 4),
		received: make(chan os.Signal, 4),
		OnSignal: onSignal,
	}
}

func (s *Signal) ConnectionAdded(r *reactor.Reactor) {
	signal.Notify(s.ch, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go s.waitLoop(r)
}

func (s *Signal) ConnectionRemoved(r *reactor.Reactor) {
	signal.Stop(s.ch)
}

func (s *Signal) waitLoop(r *reactor.Reactor) {
	for sig := range s.ch {
		select {
		case s.received <- sig:
			r.Notify(s, reactor.EventSignal, nil)
		default:
		}
	}
}

func (s *Signal) WantSignal() bool { return s.Enabled() && !s.Done() }

func (s *Signal) ProcessSignal() error {
	for {
		select {
		case sig := <-s.received:
			if s.OnSignal != nil {
				s.OnSignal(sig)
			}
		default:
			return nil
		}
	}
}
