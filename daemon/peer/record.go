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

// Package peer maintains the cluster's peer table: directionality between
// daemons, the CONNECT/ACCEPT/REFUSE handshake, GOSSIP scheduling, and
// cluster-wide quorum status, per spec.md §4.6.
package peer

import (
	"sync"
	"time"

	"github.com/sabouaram/reactorbus/address"
	"github.com/sabouaram/reactorbus/message"
)

// State is a peer connection's place in the handshake lifecycle.
type State int

const (
	StateDown State = iota
	StateConnecting
	StateConnected
	StateRefused
	StateShuttingDown
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateRefused:
		return "refused"
	case StateShuttingDown:
		return "shutting-down"
	default:
		return "down"
	}
}

// Sender is the minimal outbound capability a peer connection offers.
type Sender interface {
	Send(m message.Message) error
}

// Record is one entry in the peer table: an endpoint plus everything the
// manager tracks about the handshake and failure history with it.
type Record struct {
	mu sync.Mutex

	addr  address.Endpoint
	state State

	serverName string
	services   map[string]struct{}

	failureCount   int
	firstFailureAt time.Time
	backoffUntil   time.Time
	flagged        bool

	loadValue int
	sender    Sender

	gossipReceived bool
	suspected      bool
}

func newRecord(addr address.Endpoint) *Record {
	return &Record{addr: addr, state: StateDown, services: map[string]struct{}{}}
}

// Endpoint satisfies router.Peer.
func (r *Record) Endpoint() address.Endpoint {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.addr
}

// Load satisfies router.Peer; used to break ties when more than one peer
// hosts the same service (spec.md §4.5 step 6).
func (r *Record) Load() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadValue
}

// SetLoad updates the load value last reported by this peer.
func (r *Record) SetLoad(load int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loadValue = load
}

// Send satisfies router.Peer; fails if the handshake has not completed.
func (r *Record) Send(m message.Message) error {
	r.mu.Lock()
	s := r.sender
	connected := r.state == StateConnected
	r.mu.Unlock()

	if !connected || s == nil {
		return ErrorNotConnected.Error(nil)
	}
	return s.Send(m)
}

// Conn returns the underlying Sender this peer is connected through, if
// any. The shutdown cascade (daemon/control) type-asserts the result for
// MarkDone/OutputEmpty to fold a peer connection into the same cascade as
// local services.
func (r *Record) Conn() Sender {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sender
}

// State reports the current handshake state.
func (r *Record) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Hosts reports whether this peer has claimed (directly, or via a
// heard-of relay) to know service.
func (r *Record) Hosts(service string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.services[service]
	return ok
}

// SetServices replaces the set of services this peer claims to know.
func (r *Record) SetServices(services []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.services = make(map[string]struct{}, len(services))
	for _, s := range services {
		r.services[s] = struct{}{}
	}
}

// BackedOff reports whether the peer is still within its back-off window
// after a REFUSE (spec.md §4.6).
func (r *Record) BackedOff(now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return now.Before(r.backoffUntil)
}

// GossipReceived reports whether this peer has already RECEIVED-acked a
// gossip announcement since its last failure, so the gossip connection
// stops resending until the peer drops again (spec.md §4.6 Glossary
// "Gossip").
func (r *Record) GossipReceived() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gossipReceived
}

// MarkGossipReceived records that this peer RECEIVED-acked a gossip
// announcement.
func (r *Record) MarkGossipReceived() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gossipReceived = true
}

// Suspected reports whether Prober's SWIM layer currently
// suspects or has declared this peer dead, ahead of (and independent of)
// this package's own TCP-timeout-driven failure detection.
func (r *Record) Suspected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.suspected
}

// SetSuspected records Prober's current liveness verdict for this
// peer.
func (r *Record) SetSuspected(v bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.suspected = v
}
