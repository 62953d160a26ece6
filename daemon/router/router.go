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

// Package router forwards messages to local services, peer daemons, or
// broadcast sets, with broadcast de-duplication and a per-service cache
// for not-yet-registered destinations, per spec.md §4.5.
package router

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sabouaram/reactorbus/address"
	"github.com/sabouaram/reactorbus/daemon/registrar"
	"github.com/sabouaram/reactorbus/logger"
	"github.com/sabouaram/reactorbus/message"
)

// MaxBroadcastHops bounds re-broadcast to remote peers (spec.md §4.5 step 3).
const MaxBroadcastHops = 5

// Peer is the outbound capability the router needs from a peer connection:
// enough to forward a message and to break ties on remote service
// selection.
type Peer interface {
	Endpoint() address.Endpoint
	Send(m message.Message) error
	Load() int
}

// PeerTable is the peer manager's view the router consults for broadcast
// fan-out and remote service resolution; it never mutates peer state.
type PeerTable interface {
	LivePeers() []Peer
	PeerForService(service string) (Peer, bool)
}

type cacheEntry struct {
	msg      message.Message
	deadline time.Time
}

// Router is the daemon-local message router.
type Router struct {
	mu sync.Mutex

	registrar *registrar.Registrar
	peers     PeerTable

	serverName   string
	selfEndpoint address.Endpoint

	seen  map[string]time.Time
	cache map[string][]cacheEntry

	// Unavailable is called when a specific local service is missing and
	// the sender asked for a failure report (spec.md §7 "user-visible
	// failures").
	Unavailable func(to Peer, service, command string)

	// Metrics, when set, is notified of routing outcomes for the
	// Prometheus counters in package metrics. Left nil in tests.
	Metrics Recorder

	log logger.Logger
}

// Recorder is the routing-outcome sink the metrics package implements.
// Kept as a small interface here, rather than importing metrics directly,
// so router has no dependency on prometheus/client_golang.
type Recorder interface {
	RouteDelivered()
	RouteCached()
	RouteDropped()
	RouteBroadcast()
}

// New builds a Router for a daemon named serverName, reachable at self,
// routing to services tracked by reg and peers tracked by peers.
func New(serverName string, self address.Endpoint, reg *registrar.Registrar, peers PeerTable, log logger.Logger) *Router {
	if log == nil {
		log = logger.Std()
	}
	return &Router{
		registrar:    reg,
		peers:        peers,
		serverName:   serverName,
		selfEndpoint: self,
		seen:         map[string]time.Time{},
		cache:        map[string][]cacheEntry{},
		log:          log,
	}
}

// Route applies spec.md §4.5's forwarding algorithm to m, arriving from
// peer "from" (nil if m originated on a local connection). It returns
// true if the message was delivered, cached, or broadcast to at least one
// destination.
func (r *Router) Route(m message.Message, from Peer) bool {
	if msgid, ok := m.Parameters.Get("broadcast_msgid"); ok && msgid != "" {
		if !r.recordBroadcast(msgid, m) {
			r.record(false, false)
			return false
		}
	}

	switch m.Service {
	case message.DestAll, message.DestOthers, message.DestLocal:
		delivered := r.broadcast(m, from)
		r.record(delivered, true)
		return delivered
	}

	if m.Service == "" {
		return false
	}

	if reg, ok := r.registrar.Lookup(m.Service); ok {
		if !reg.Supports(m.Command) {
			r.log.Warn("forwarding to service outside its advertised vocabulary", logger.Fields{
				"service": m.Service,
				"command": m.Command,
			})
		}
		delivered := reg.Conn.Send(m) == nil
		r.record(delivered, false)
		return delivered
	}

	if ttl, ok := parseCacheTTL(m); ok {
		r.cacheFor(m.Service, m, ttl)
		if r.Metrics != nil {
			r.Metrics.RouteCached()
		}
		return true
	}

	if report, _ := m.Parameters.Get("transmission_report"); report == "failure" && from != nil && r.Unavailable != nil {
		r.Unavailable(from, m.Service, m.Command)
	}

	if p, ok := r.peers.PeerForService(m.Service); ok {
		delivered := p.Send(m) == nil
		r.record(delivered, false)
		return delivered
	}

	r.record(false, false)
	return false
}

// record notifies Metrics (if set) of a routing outcome; broadcast fan-out
// records itself separately via RouteBroadcast.
func (r *Router) record(delivered, broadcast bool) {
	if r.Metrics == nil {
		return
	}
	switch {
	case broadcast:
		r.Metrics.RouteBroadcast()
	case delivered:
		r.Metrics.RouteDelivered()
	default:
		r.Metrics.RouteDropped()
	}
}

// recordBroadcast applies the de-duplication rule: drop if msgid was
// already seen, or if the message's own timeout has already elapsed;
// otherwise record it and allow routing to proceed.
func (r *Router) recordBroadcast(msgid string, m message.Message) bool {
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, seen := r.seen[msgid]; seen {
		return false
	}

	deadline := now
	if ts, ok := m.Parameters.Get("broadcast_timeout"); ok {
		if secs, err := strconv.ParseInt(ts, 10, 64); err == nil {
			deadline = time.Unix(secs, 0)
		}
	}
	if deadline.Before(now) {
		return false
	}

	r.seen[msgid] = deadline
	return true
}

// broadcast delivers m to every local service whose vocabulary includes
// the command and, for "*"/"?", to peers not yet on the informed-neighbor
// path, bumping broadcast_hops and refusing to re-broadcast past
// MaxBroadcastHops.
func (r *Router) broadcast(m message.Message, from Peer) bool {
	delivered := false

	for _, reg := range r.registrar.All() {
		if reg.Supports(m.Command) {
			_ = reg.Conn.Send(m)
			delivered = true
		}
	}

	if m.Service == message.DestLocal {
		return delivered
	}

	hops := broadcastHops(m)
	if hops >= MaxBroadcastHops {
		return delivered
	}

	informed := informedNeighbors(m)
	next := bumpHops(m, hops, r.selfEndpoint, informed)

	for _, p := range r.peers.LivePeers() {
		if m.Service == message.DestOthers && from != nil && p.Endpoint().Equal(from.Endpoint()) {
			continue
		}
		if endpointInList(p.Endpoint(), informed) {
			continue
		}
		if p.Send(next) == nil {
			delivered = true
		}
	}

	return delivered
}

func broadcastHops(m message.Message) int {
	if s, ok := m.Parameters.Get("broadcast_hops"); ok {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return 0
}

func informedNeighbors(m message.Message) []address.Endpoint {
	s, ok := m.Parameters.Get("broadcast_informed_neighbors")
	if !ok || s == "" {
		return nil
	}
	var out []address.Endpoint
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if ep, err := address.Parse(part); err == nil {
			out = append(out, ep)
		}
	}
	return out
}

func endpointInList(ep address.Endpoint, list []address.Endpoint) bool {
	for _, o := range list {
		if ep.Equal(o) {
			return true
		}
	}
	return false
}

// bumpHops returns a copy of m with broadcast_hops incremented and self
// appended to the informed-neighbor list, ready to forward to a peer.
func bumpHops(m message.Message, hops int, self address.Endpoint, informed []address.Endpoint) message.Message {
	next := m
	next.Parameters = m.Parameters.Clone()
	_ = next.Parameters.Set("broadcast_hops", strconv.Itoa(hops+1))

	names := make([]string, 0, len(informed)+1)
	for _, ep := range informed {
		names = append(names, ep.String())
	}
	if !self.IsZero() {
		names = append(names, self.String())
	}
	_ = next.Parameters.Set("broadcast_informed_neighbors", strings.Join(names, ","))
	return next
}

func parseCacheTTL(m message.Message) (time.Duration, bool) {
	s, ok := m.Parameters.Get("cache")
	if !ok || s == "" || s == "no" {
		return 0, false
	}
	secs, err := strconv.Atoi(s)
	if err != nil || secs <= 0 {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}

func (r *Router) cacheFor(service string, m message.Message, ttl time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[service] = append(r.cache[service], cacheEntry{msg: m, deadline: time.Now().Add(ttl)})
}

// FlushCache replays every message cached for service (dropping expired
// entries) in FIFO order, then clears the cache entry. Intended to be
// wired as registrar.Registrar.FlushCache.
func (r *Router) FlushCache(service string) {
	r.mu.Lock()
	entries := r.cache[service]
	delete(r.cache, service)
	r.mu.Unlock()

	reg, ok := r.registrar.Lookup(service)
	if !ok {
		return
	}

	now := time.Now()
	for _, e := range entries {
		if e.deadline.Before(now) {
			continue
		}
		_ = reg.Conn.Send(e.msg)
	}
}

// Sweep drops every cache entry whose deadline has passed, across every
// service. Intended to be called periodically from a timer connection.
func (r *Router) Sweep() {
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	for svc, entries := range r.cache {
		kept := entries[:0]
		for _, e := range entries {
			if e.deadline.After(now) {
				kept = append(kept, e)
			}
		}
		if len(kept) == 0 {
			delete(r.cache, svc)
		} else {
			r.cache[svc] = kept
		}
	}

	for id, deadline := range r.seen {
		if deadline.Before(now) {
			delete(r.seen, id)
		}
	}
}
