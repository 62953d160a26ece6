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

// MaxDatagramSize bounds one inbound/outbound datagram (spec.md §6
// "message_too_large" boundary for udp/unixgram transports).
const MaxDatagramSize = 1024

// datagramChunk is one received datagram plus its sender, handed from the
// background reader goroutine to ProcessRead.
type datagramChunk struct {
	data []byte
	from net.Addr
	err  error
}

// Datagram wraps a connectionless socket (udp, udp4, udp6, unixgram). Its
// background goroutine drains pending datagrams (ReadFrom), each bounded
// at MaxDatagramSize; Send is synchronous and best-effort (WriteTo),
// matching the lossy nature of the underlying transport.
type Datagram struct {
	Base

	pc net.PacketConn

	chunks  chan datagramChunk
	readBuf []byte

	onDatagram func(b []byte, from net.Addr)
}

// ListenDatagram opens a connectionless socket for proto at address.
func ListenDatagram(name string, priority reactor.Priority, proto netproto.NetworkProtocol, address string) (*Datagram, error) {
	pc, err := net.ListenPacket(proto.String(), address)
	if err != nil {
		e := ErrorListenFailed.Error(nil)
		e.Add(err)
		return nil, e
	}
	return &Datagram{
		Base:    NewBase(name, priority),
		pc:      pc,
		chunks:  make(chan datagramChunk, 64),
		readBuf: make([]byte, MaxDatagramSize),
	}, nil
}

// OnDatagram registers the callback invoked once per received datagram.
func (d *Datagram) OnDatagram(fn func(b []byte, from net.Addr)) { d.onDatagram = fn }

func (d *Datagram) ConnectionAdded(r *reactor.Reactor) {
	go d.readLoop(r)
}

func (d *Datagram) ConnectionRemoved(r *reactor.Reactor) {
	_ = d.pc.Close()
}

func (d *Datagram) readLoop(r *reactor.Reactor) {
	for {
		n, from, err := d.pc.ReadFrom(d.readBuf)
		if n > 0 {
			buf := make([]byte, n)
			copy(buf, d.readBuf[:n])
			d.chunks <- datagramChunk{data: buf, from: from}
			r.Notify(d, reactor.EventRead, nil)
		}
		if err != nil {
			d.chunks <- datagramChunk{err: err}
			r.Notify(d, reactor.EventError, err)
			return
		}
	}
}

func (d *Datagram) WantRead() bool { return d.Enabled() && !d.Done() }

// ProcessRead drains every datagram queued by the background reader, one
// callback invocation per datagram. The reactor's per-step event limit
// bounds how many ProcessRead calls run in one step, not how many
// datagrams one call drains.
func (d *Datagram) ProcessRead() error {
	for {
		select {
		case ch := <-d.chunks:
			if ch.err != nil {
				return ch.err
			}
			if d.onDatagram != nil {
				d.onDatagram(ch.data, ch.from)
			}
		default:
			return nil
		}
	}
}

// Send writes b to addr synchronously. It returns ErrorMessageTooLarge if
// b exceeds MaxDatagramSize rather than attempting a write the transport
// would fragment or reject.
func (d *Datagram) Send(addr net.Addr, b []byte) error {
	if len(b) > MaxDatagramSize {
		return ErrorMessageTooLarge.Error(nil)
	}
	_, err := d.pc.WriteTo(b, addr)
	return err
}
