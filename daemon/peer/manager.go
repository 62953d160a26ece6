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

package peer

import (
	"strings"
	"sync"
	"time"

	"github.com/sabouaram/reactorbus/address"
	"github.com/sabouaram/reactorbus/daemon/router"
	"github.com/sabouaram/reactorbus/logger"
	"github.com/sabouaram/reactorbus/message"
)

// Back-off windows applied after a REFUSE, keyed by its conflict reason
// (spec.md §4.6).
const (
	BackoffBusy     = 24 * time.Hour
	BackoffShutdown = 5 * time.Minute
	BackoffDefault  = time.Minute
)

// GossipInitialDelay is the first step of GossipDelay's doubling schedule
// for GOSSIP to a numerically-larger unconnected peer. The daemon's gossip
// sweep does not use that schedule; it sends GOSSIP on every
// daemon.GossipInterval tick.
const GossipInitialDelay = 5 * time.Second

// FailureFlagCount and FailureFlagWindow gate the operator-visible
// failure flag: raised after at least this many consecutive failures
// spanning at least this long.
const (
	FailureFlagCount  = 20
	FailureFlagWindow = time.Hour
)

// Manager owns the cluster peer table: neighbor membership, the
// CONNECT/ACCEPT/REFUSE handshake, and quorum-based cluster status.
type Manager struct {
	mu sync.Mutex

	self       address.Endpoint
	serverName string

	peers map[string]*Record

	log logger.Logger

	lastUp       bool
	lastComplete bool

	// OnClusterChange fires whenever cluster up/complete status
	// transitions, so the caller can broadcast CLUSTER_UP/CLUSTER_DOWN/
	// CLUSTER_COMPLETE/CLUSTER_INCOMPLETE and persist the status file.
	OnClusterChange func(up, complete bool)

	// OnFailureFlag fires once a peer crosses the consecutive-failure
	// threshold (spec.md §4.6 "operator-visible flag").
	OnFailureFlag func(ep address.Endpoint)

	// OnProbeSuspect fires when Prober's SWIM layer reports a connected
	// peer suspect or dead ahead of this package's own TCP-timeout
	// detection, so the caller can retry the handshake sooner instead of
	// waiting for the next gossip tick.
	OnProbeSuspect func(ep address.Endpoint)
}

// ProbeAlive records that Prober's SWIM layer currently considers ep
// alive, clearing any earlier suspicion.
func (m *Manager) ProbeAlive(ep address.Endpoint) {
	m.Get(ep).SetSuspected(false)
}

// ProbeFailed records that Prober's SWIM layer suspects or has declared ep
// dead. This never overrides the authoritative CONNECT/ACCEPT state
// machine directly; it only flags the peer and, via OnProbeSuspect, lets
// the caller react faster than the next gossip tick would.
func (m *Manager) ProbeFailed(ep address.Endpoint) {
	m.Get(ep).SetSuspected(true)
	if m.OnProbeSuspect != nil {
		m.OnProbeSuspect(ep)
	}
}

// New builds a Manager for a daemon at self named serverName.
func New(self address.Endpoint, serverName string, log logger.Logger) *Manager {
	if log == nil {
		log = logger.Std()
	}
	return &Manager{
		self:       self,
		serverName: serverName,
		peers:      map[string]*Record{},
		log:        log,
	}
}

// AddNeighbors merges eps into the peer table; already-known endpoints are
// left untouched.
func (m *Manager) AddNeighbors(eps []address.Endpoint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ep := range eps {
		if ep.Equal(m.self) {
			continue
		}
		key := ep.String()
		if _, ok := m.peers[key]; !ok {
			m.peers[key] = newRecord(ep)
		}
	}
}

// RemoveNeighbor evicts ep from the table and returns the FORGET message
// the caller should broadcast so the cluster eventually forgets it too.
func (m *Manager) RemoveNeighbor(ep address.Endpoint) message.Message {
	m.mu.Lock()
	delete(m.peers, ep.String())
	m.mu.Unlock()

	forget := message.New("", "*", "FORGET")
	_ = forget.Parameters.Set("ip", ep.String())
	return forget
}

// Outbound reports whether this daemon is responsible for the permanent
// outbound connection to ep: the directionality rule is that the
// numerically smaller endpoint is dialed by the larger one (spec.md
// §4.6). Equal endpoints are never dialed.
func (m *Manager) Outbound(ep address.Endpoint) bool {
	if ep.Equal(m.self) {
		return false
	}
	return ep.Less(m.self)
}

// Get returns the peer record for ep, creating one if absent.
func (m *Manager) Get(ep address.Endpoint) *Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := ep.String()
	r, ok := m.peers[key]
	if !ok {
		r = newRecord(ep)
		m.peers[key] = r
	}
	return r
}

// Records returns a snapshot of every known peer.
func (m *Manager) Records() []*Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Record, 0, len(m.peers))
	for _, r := range m.peers {
		out = append(out, r)
	}
	return out
}

// LivePeers implements router.PeerTable: every peer whose handshake has
// completed.
func (m *Manager) LivePeers() []router.Peer {
	out := make([]router.Peer, 0)
	for _, r := range m.Records() {
		if r.State() == StateConnected {
			out = append(out, r)
		}
	}
	return out
}

// UnconnectedLarger returns every known peer with a numerically larger
// address than self that is not currently connected: the set this daemon
// must gossip to, since the convention is that the larger address dials
// the smaller one and a larger peer may not yet know we exist (spec.md
// §4.6 Glossary "Gossip").
func (m *Manager) UnconnectedLarger() []*Record {
	out := make([]*Record, 0)
	for _, r := range m.Records() {
		ep := r.Endpoint()
		if m.Outbound(ep) || ep.Equal(m.self) {
			continue
		}
		if r.State() == StateConnected {
			continue
		}
		out = append(out, r)
	}
	return out
}

// LastStatus returns the most recently computed cluster up/complete
// values without recomputing them, for a direct CLUSTER_STATUS reply
// (spec.md §4.6 "additionally in direct reply to a CLUSTERSTATUS
// request").
func (m *Manager) LastStatus() (up, complete bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastUp, m.lastComplete
}

// PeerForService implements router.PeerTable: among connected peers
// claiming to host service, pick the one with the lowest reported load,
// tie-breaking on the lowest endpoint (spec.md §4.5 step 6).
func (m *Manager) PeerForService(service string) (router.Peer, bool) {
	var best *Record
	for _, r := range m.Records() {
		if r.State() != StateConnected || !r.Hosts(service) {
			continue
		}
		if best == nil {
			best = r
			continue
		}
		if r.Load() < best.Load() || (r.Load() == best.Load() && r.Endpoint().Less(best.Endpoint())) {
			best = r
		}
	}
	if best == nil {
		return nil, false
	}
	return best, true
}

// BuildConnect constructs this daemon's CONNECT handshake message, naming
// every locally registered service and every peer's endpoint string as
// the heard_of/neighbors lists.
func (m *Manager) BuildConnect(services, heardOf []string) message.Message {
	c := message.New("", "", "CONNECT")
	_ = c.Parameters.Set("version", "1")
	_ = c.Parameters.Set("my_address", m.self.String())
	_ = c.Parameters.Set("server_name", m.serverName)
	_ = c.Parameters.Set("services", strings.Join(services, ","))
	_ = c.Parameters.Set("heard_of", strings.Join(heardOf, ","))
	_ = c.Parameters.Set("neighbors", m.neighborList())
	return c
}

func (m *Manager) neighborList() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.peers))
	for key := range m.peers {
		names = append(names, key)
	}
	return strings.Join(names, ",")
}

// HandleConnect is the acceptor side of the handshake (spec.md §4.6). It
// records the peer as connected and returns ACCEPT, or returns REFUSE if
// the connection must be rejected (a name conflict, or this daemon
// shutting down). It keeps no count of pending connections and never
// refuses with conflict=busy.
func (m *Manager) HandleConnect(from address.Endpoint, sender Sender, msg message.Message, shuttingDown bool, services []string) message.Message {
	if shuttingDown {
		refuse := message.New("", "", "REFUSE")
		_ = refuse.Parameters.Set("conflict", "shutdown")
		return refuse
	}

	remoteName, _ := msg.Parameters.Get("server_name")
	if remoteName == m.serverName {
		refuse := message.New("", "", "REFUSE")
		_ = refuse.Parameters.Set("conflict", "name")
		return refuse
	}

	r := m.Get(from)
	r.mu.Lock()
	r.state = StateConnected
	r.sender = sender
	r.serverName = remoteName
	r.mu.Unlock()

	if remoteServices, ok := msg.Parameters.Get("services"); ok {
		r.SetServices(splitNonEmpty(remoteServices))
	}

	accept := message.New("", "", "ACCEPT")
	_ = accept.Parameters.Set("server_name", m.serverName)
	_ = accept.Parameters.Set("my_address", m.self.String())
	_ = accept.Parameters.Set("services", strings.Join(services, ","))
	return accept
}

// HandleAccept is the initiator side: mark ep connected and record its
// advertised services.
func (m *Manager) HandleAccept(ep address.Endpoint, sender Sender, msg message.Message) {
	r := m.Get(ep)
	r.mu.Lock()
	r.state = StateConnected
	r.sender = sender
	r.failureCount = 0
	r.flagged = false
	r.mu.Unlock()

	if services, ok := msg.Parameters.Get("services"); ok {
		r.SetServices(splitNonEmpty(services))
	}
}

// HandleRefuse parks ep for the back-off window its conflict reason
// implies.
func (m *Manager) HandleRefuse(ep address.Endpoint, msg message.Message, now time.Time) {
	reason, _ := msg.Parameters.Get("conflict")

	delay := BackoffDefault
	switch reason {
	case "busy":
		delay = BackoffBusy
	case "shutdown":
		delay = BackoffShutdown
	}

	r := m.Get(ep)
	r.mu.Lock()
	r.state = StateRefused
	r.backoffUntil = now.Add(delay)
	r.mu.Unlock()
}

// RecordFailure increments ep's consecutive-failure count and raises
// OnFailureFlag once the threshold is crossed.
func (m *Manager) RecordFailure(ep address.Endpoint, now time.Time) {
	r := m.Get(ep)

	r.mu.Lock()
	if r.failureCount == 0 {
		r.firstFailureAt = now
	}
	r.failureCount++
	r.state = StateDown
	r.gossipReceived = false
	shouldFlag := !r.flagged && r.failureCount >= FailureFlagCount && now.Sub(r.firstFailureAt) >= FailureFlagWindow
	if shouldFlag {
		r.flagged = true
	}
	r.mu.Unlock()

	if shouldFlag && m.OnFailureFlag != nil {
		m.OnFailureFlag(ep)
	}
}

// RecordSuccess clears ep's failure history after a successful connect.
func (m *Manager) RecordSuccess(ep address.Endpoint) {
	r := m.Get(ep)
	r.mu.Lock()
	r.failureCount = 0
	r.flagged = false
	r.mu.Unlock()
}

// EvaluateClusterStatus recomputes CLUSTER_UP/CLUSTER_COMPLETE from the
// current peer table (spec.md §4.6's quorum formula, N including self,
// L = live remote connections + 1) and calls OnClusterChange exactly when
// either value transitions.
func (m *Manager) EvaluateClusterStatus() (up, complete bool) {
	records := m.Records()
	total := len(records) + 1

	live := 0
	for _, r := range records {
		if r.State() == StateConnected {
			live++
		}
	}
	liveWithSelf := live + 1

	up = liveWithSelf >= total/2+1
	complete = liveWithSelf == total

	m.mu.Lock()
	changed := up != m.lastUp || complete != m.lastComplete
	m.lastUp = up
	m.lastComplete = complete
	m.mu.Unlock()

	if changed && m.OnClusterChange != nil {
		m.OnClusterChange(up, complete)
	}
	return up, complete
}

func splitNonEmpty(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// GossipDelay computes the exponential back-off for the nth GOSSIP
// attempt (n starting at 1) to an unconnected, numerically-larger peer.
func GossipDelay(attempt int) time.Duration {
	d := GossipInitialDelay
	for i := 1; i < attempt; i++ {
		d *= 2
	}
	return d
}

// ClusterStatusText renders up/complete as the two lines spec.md §6's
// persisted cluster status file expects.
func ClusterStatusText(up, complete bool) string {
	first := "CLUSTER_DOWN"
	if up {
		first = "CLUSTER_UP"
	}
	second := "CLUSTER_INCOMPLETE"
	if complete {
		second = "CLUSTER_COMPLETE"
	}
	return first + "\n" + second + "\n"
}
