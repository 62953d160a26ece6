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
	"github.com/fsnotify/fsnotify"

	"github.com/sabouaram/reactorbus/logger"
	"github.com/sabouaram/reactorbus/reactor"
)

// FileWatch wraps an fsnotify.Watcher as a signal-like reactor connection:
// its background goroutine is fsnotify's own event loop, and each
// filesystem event is relayed as an EventSignal notification (file events
// share the "out of band, not stream data" shape signals have).
type FileWatch struct {
	Base

	w        *fsnotify.Watcher
	received chan fsnotify.Event
	OnEvent  func(ev fsnotify.Event)
	log      logger.Logger
}

// NewFileWatch creates a watcher and adds every path given.
func NewFileWatch(name string, priority reactor.Priority, onEvent func(ev fsnotify.Event), log logger.Logger, paths ...string) (*FileWatch, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	for _, p := range paths {
		if err := w.Add(p); err != nil {
			_ = w.Close()
			return nil, err
		}
	}
	if log == nil {
		log = logger.Std()
	}
	return &FileWatch{
		Base:     NewBase(name, priority),
		w:        w,
		received: make(chan fsnotify.Event, 32),
		OnEvent:  onEvent,
		log:      log,
	}, nil
}

func (f *FileWatch) ConnectionAdded(r *reactor.Reactor) {
	go f.watchLoop(r)
}

func (f *FileWatch) ConnectionRemoved(r *reactor.Reactor) {
	_ = f.w.Close()
}

func (f *FileWatch) watchLoop(r *reactor.Reactor) {
	for {
		select {
		case ev, ok := <-f.w.Events:
			if !ok {
				return
			}
			select {
			case f.received <- ev:
				r.Notify(f, reactor.EventSignal, nil)
			default:
			}
		case err, ok := <-f.w.Errors:
			if !ok {
				return
			}
			r.Notify(f, reactor.EventError, err)
		}
	}
}

func (f *FileWatch) WantSignal() bool { return f.Enabled() && !f.Done() }

func (f *FileWatch) ProcessSignal() error {
	for {
		select {
		case ev := <-f.received:
			if f.OnEvent != nil {
				f.OnEvent(ev)
			}
		default:
			return nil
		}
	}
}

func (f *FileWatch) ProcessError(err error) {
	f.log.Warn("file watch error", logger.Fields{"connection": f.Name(), "error": err.Error()})
}

// Add watches an additional path at runtime (e.g. a config directory
// discovered after startup).
func (f *FileWatch) Add(path string) error { return f.w.Add(path) }
