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
	"net"

	"github.com/sabouaram/reactorbus/netproto"
	"github.com/sabouaram/reactorbus/reactor"
)

// DefaultBacklog is the listen backlog used when a StreamServer's owner
// does not override it.
const DefaultBacklog = 25

// NewConnFunc builds the client-side wrapper for an accepted connection;
// the caller supplies this so StreamServer stays agnostic of framing.
type NewConnFunc func(nc net.Conn) reactor.Connection

// StreamServer listens on a stream-oriented network (tcp/tcp4/tcp6/unix)
// and hands each accepted connection to a caller-supplied NewConnFunc,
// which the owner then attaches to the reactor itself (ConnectionAdded
// hooks, not StreamServer, decide where the accepted client lives).
type StreamServer struct {
	Base

	ln      net.Listener
	onAccept NewConnFunc

	accepted chan net.Conn
	errs     chan error
	closed   chan struct{}
}

// ListenStream opens a listener for proto at address (e.g. "tcp" +
// "0.0.0.0:7000", or "unix" + "/run/bus.sock") and wraps it as a
// reactor connection with accept interest.
func ListenStream(name string, priority reactor.Priority, proto netproto.NetworkProtocol, address string, onAccept NewConnFunc) (*StreamServer, error) {
	ln, err := net.Listen(proto.String(), address)
	if err != nil {
		e := ErrorListenFailed.Error(nil)
		e.Add(err)
		return nil, e
	}

	s := &StreamServer{
		Base:     NewBase(name, priority),
		ln:       ln,
		onAccept: onAccept,
		accepted: make(chan net.Conn, DefaultBacklog),
		errs:     make(chan error, 1),
		closed:   make(chan struct{}),
	}
	return s, nil
}

// ConnectionAdded starts the background accept-loop goroutine, per this
// package's goroutine-per-connection readiness design.
func (s *StreamServer) ConnectionAdded(r *reactor.Reactor) {
	go s.acceptLoop(r)
}

// ConnectionRemoved closes the listener, unblocking the accept-loop.
func (s *StreamServer) ConnectionRemoved(r *reactor.Reactor) {
	close(s.closed)
	_ = s.ln.Close()
}

func (s *StreamServer) acceptLoop(r *reactor.Reactor) {
	for {
		nc, err := s.ln.Accept()
		if err != nil {
			select {
			case <-s.closed:
				return
			default:
			}
			select {
			case s.errs <- err:
			default:
			}
			r.Notify(s, reactor.EventError, err)
			return
		}

		select {
		case s.accepted <- nc:
			r.Notify(s, reactor.EventAccept, nil)
		case <-s.closed:
			_ = nc.Close()
			return
		}
	}
}

func (s *StreamServer) WantListen() bool { return s.Enabled() && !s.Done() }

// ProcessAccept drains whatever connections the background goroutine has
// queued and hands each to onAccept; the caller is responsible for
// attaching the returned reactor.Connection.
func (s *StreamServer) ProcessAccept() error {
	for {
		select {
		case nc := <-s.accepted:
			if s.onAccept != nil {
				s.onAccept(nc)
			} else {
				_ = nc.Close()
			}
		case err := <-s.errs:
			return err
		default:
			return nil
		}
	}
}

func (s *StreamServer) ProcessError(err error) {
	s.MarkDone()
}

// Addr returns the listener's local address.
func (s *StreamServer) Addr() net.Addr { return s.ln.Addr() }
