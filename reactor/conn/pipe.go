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
	"io"

	"github.com/sabouaram/reactorbus/reactor"
)

// Pipe wraps one unidirectional or bidirectional io.Reader/io.Writer pair
// (os.Pipe, a child process's Stdout, a named FIFO) with the same
// background-reader/background-writer shape StreamClient uses for network
// sockets. Either Reader or Writer may be nil for a one-way pipe.
type Pipe struct {
	Base

	reader io.ReadCloser
	writer io.WriteCloser

	chunks chan readChunk
	readBuf []byte

	wqueue chan []byte

	onData func(b []byte)
	onHup  func()
}

// NewPipe wraps r and/or w. At least one of the two must be non-nil.
func NewPipe(name string, priority reactor.Priority, r io.ReadCloser, w io.WriteCloser) *Pipe {
	return &Pipe{
		Base:    NewBase(name, priority),
		reader:  r,
		writer:  w,
		chunks:  make(chan readChunk, 16),
		readBuf: make([]byte, 4096),
		wqueue:  make(chan []byte, 64),
	}
}

func (p *Pipe) OnData(fn func(b []byte)) { p.onData = fn }
func (p *Pipe) OnHup(fn func())          { p.onHup = fn }

func (p *Pipe) ConnectionAdded(r *reactor.Reactor) {
	if p.reader != nil {
		go p.readLoop(r)
	}
	if p.writer != nil {
		go p.writeLoop(r)
	}
}

func (p *Pipe) ConnectionRemoved(r *reactor.Reactor) {
	if p.reader != nil {
		_ = p.reader.Close()
	}
	if p.writer != nil {
		close(p.wqueue)
		_ = p.writer.Close()
	}
}

func (p *Pipe) readLoop(r *reactor.Reactor) {
	for {
		n, err := p.reader.Read(p.readBuf)
		if n > 0 {
			buf := make([]byte, n)
			copy(buf, p.readBuf[:n])
			p.chunks <- readChunk{data: buf}
			r.Notify(p, reactor.EventRead, nil)
		}
		if err != nil {
			if err == io.EOF {
				r.Notify(p, reactor.EventHup, nil)
			} else {
				r.Notify(p, reactor.EventError, err)
			}
			return
		}
	}
}

func (p *Pipe) writeLoop(r *reactor.Reactor) {
	for b := range p.wqueue {
		if _, err := p.writer.Write(b); err != nil {
			r.Notify(p, reactor.EventError, err)
			return
		}
		r.Notify(p, reactor.EventWrite, nil)
	}
}

func (p *Pipe) WantRead() bool { return p.reader != nil && p.Enabled() && !p.Done() }

func (p *Pipe) ProcessRead() error {
	for {
		select {
		case ch := <-p.chunks:
			if ch.err != nil {
				return ch.err
			}
			if p.onData != nil {
				p.onData(ch.data)
			}
		default:
			return nil
		}
	}
}

func (p *Pipe) ProcessHup() {
	p.MarkDone()
	if p.onHup != nil {
		p.onHup()
	}
}

// Write queues b for delivery on the writer half. Writing to a read-only
// Pipe is a no-op.
func (p *Pipe) Write(b []byte) {
	if p.writer == nil {
		return
	}
	select {
	case p.wqueue <- b:
	default:
	}
}
