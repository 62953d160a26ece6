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
	"bytes"
	"io"
	"net"
	"sync"

	"github.com/sabouaram/reactorbus/netproto"
	"github.com/sabouaram/reactorbus/reactor"
)

// readChunk is one buffered read delivered by the background reader
// goroutine to the loop goroutine via ProcessRead.
type readChunk struct {
	data []byte
	err  error
}

// StreamClient wraps one accepted or dialed stream socket (tcp/unix). A
// background goroutine performs the actual blocking net.Conn.Read and
// buffers results; ProcessRead (called only from the reactor's loop
// goroutine) drains that buffer. Writes are buffered internally and
// flushed by a second background goroutine so ProcessWrite never blocks
// the loop goroutine on a slow peer either.
type StreamClient struct {
	Base

	nc net.Conn

	chunks chan readChunk

	wmu     sync.Mutex
	wbuf    bytes.Buffer
	wake    chan struct{}
	closeWr chan struct{}

	readBuf  []byte
	incoming bytes.Buffer

	onData  func(b []byte)
	onHup   func()
	onError func(err error)
}

// DialStream connects to address over proto and wraps the result.
func DialStream(name string, priority reactor.Priority, proto netproto.NetworkProtocol, address string) (*StreamClient, error) {
	nc, err := net.Dial(proto.String(), address)
	if err != nil {
		e := ErrorDialFailed.Error(nil)
		e.Add(err)
		return nil, e
	}
	return NewStreamClient(name, priority, nc), nil
}

// NewStreamClient wraps an already-connected socket, typically one handed
// to a StreamServer's NewConnFunc after Accept.
func NewStreamClient(name string, priority reactor.Priority, nc net.Conn) *StreamClient {
	return &StreamClient{
		Base:    NewBase(name, priority),
		nc:      nc,
		chunks:  make(chan readChunk, 16),
		wake:    make(chan struct{}, 1),
		closeWr: make(chan struct{}),
		readBuf: make([]byte, 4096),
	}
}

// OnData registers the callback invoked with each chunk read, in
// ProcessRead, from the loop goroutine.
func (c *StreamClient) OnData(fn func(b []byte)) { c.onData = fn }

// OnHup registers the peer-closed callback.
func (c *StreamClient) OnHup(fn func()) { c.onHup = fn }

// OnError registers the transport-error callback.
func (c *StreamClient) OnError(fn func(err error)) { c.onError = fn }

func (c *StreamClient) ConnectionAdded(r *reactor.Reactor) {
	go c.readLoop(r)
	go c.writeLoop(r)
}

func (c *StreamClient) ConnectionRemoved(r *reactor.Reactor) {
	close(c.closeWr)
	_ = c.nc.Close()
}

func (c *StreamClient) readLoop(r *reactor.Reactor) {
	for {
		n, err := c.nc.Read(c.readBuf)
		if n > 0 {
			buf := make([]byte, n)
			copy(buf, c.readBuf[:n])
			c.chunks <- readChunk{data: buf}
			r.Notify(c, reactor.EventRead, nil)
		}
		if err != nil {
			if err == io.EOF {
				r.Notify(c, reactor.EventHup, nil)
			} else {
				c.chunks <- readChunk{err: err}
				r.Notify(c, reactor.EventError, err)
			}
			return
		}
	}
}

func (c *StreamClient) writeLoop(r *reactor.Reactor) {
	for {
		select {
		case <-c.wake:
		case <-c.closeWr:
			return
		}

		for {
			c.wmu.Lock()
			if c.wbuf.Len() == 0 {
				c.wmu.Unlock()
				break
			}
			chunk := make([]byte, c.wbuf.Len())
			copy(chunk, c.wbuf.Bytes())
			c.wmu.Unlock()

			if _, err := c.nc.Write(chunk); err != nil {
				r.Notify(c, reactor.EventError, err)
				return
			}

			c.wmu.Lock()
			c.wbuf.Next(len(chunk))
			c.wmu.Unlock()
			r.Notify(c, reactor.EventWrite, nil)
		}
	}
}

func (c *StreamClient) WantRead() bool { return c.Enabled() && !c.Done() }

// ProcessRead drains buffered chunks and forwards each to onData; an EOF
// chunk has already been reported as EventHup and needs no draining here.
func (c *StreamClient) ProcessRead() error {
	for {
		select {
		case ch := <-c.chunks:
			if ch.err != nil {
				return ch.err
			}
			if c.onData != nil {
				c.onData(ch.data)
			}
		default:
			return nil
		}
	}
}

func (c *StreamClient) ProcessHup() {
	c.MarkDone()
	if c.onHup != nil {
		c.onHup()
	}
}

func (c *StreamClient) ProcessError(err error) {
	c.MarkDone()
	if c.onError != nil {
		c.onError(err)
	}
}

// WantWrite always reports false: writes are flushed eagerly by writeLoop,
// and the reactor's removal sweep consults OutputEmpty, not WantWrite.
func (c *StreamClient) WantWrite() bool { return false }

func (c *StreamClient) ProcessWrite() error { return nil }

// OutputEmpty implements reactor.OutputDrainer so a Done connection is not
// removed while bytes are still queued for delivery.
func (c *StreamClient) OutputEmpty() bool {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return c.wbuf.Len() == 0
}

// Write queues b for asynchronous delivery to the peer.
func (c *StreamClient) Write(b []byte) {
	c.wmu.Lock()
	c.wbuf.Write(b)
	c.wmu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// RemoteAddr returns the peer's network address.
func (c *StreamClient) RemoteAddr() net.Addr { return c.nc.RemoteAddr() }
