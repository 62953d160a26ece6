package router

import (
	"strconv"
	"testing"
	"time"

	"github.com/sabouaram/reactorbus/address"
	"github.com/sabouaram/reactorbus/daemon/registrar"
	"github.com/sabouaram/reactorbus/message"
)

type fakeSender struct {
	sent []message.Message
}

func (f *fakeSender) Send(m message.Message) error {
	f.sent = append(f.sent, m)
	return nil
}

type fakePeer struct {
	ep   address.Endpoint
	sent []message.Message
}

func (p *fakePeer) Endpoint() address.Endpoint  { return p.ep }
func (p *fakePeer) Load() int                   { return 0 }
func (p *fakePeer) Send(m message.Message) error { p.sent = append(p.sent, m); return nil }

type fakePeerTable struct {
	live    []Peer
	forSvc  map[string]Peer
}

func (t *fakePeerTable) LivePeers() []Peer { return t.live }
func (t *fakePeerTable) PeerForService(service string) (Peer, bool) {
	p, ok := t.forSvc[service]
	return p, ok
}

func mustEndpoint(t *testing.T, s string) address.Endpoint {
	t.Helper()
	ep, err := address.Parse(s)
	if err != nil {
		t.Fatalf("parse endpoint %q: %v", s, err)
	}
	return ep
}

func TestRouteDeliversToRegisteredLocalService(t *testing.T) {
	self := mustEndpoint(t, "127.0.0.1:9000")
	reg := registrar.New("d1", self.String(), nil)
	sender := &fakeSender{}
	_ = reg.Register(sender, func() message.Message {
		m := message.New("", "", "REGISTER")
		_ = m.Parameters.Set("service", "A")
		_ = m.Parameters.Set("version", "1")
		return m
	}())

	r := New("d1", self, reg, &fakePeerTable{}, nil)

	m := message.New("", "A", "EVENT")
	if !r.Route(m, nil) {
		t.Fatalf("expected route to succeed")
	}
	if len(sender.sent) != 3 { // HELP, READY, EVENT
		t.Fatalf("expected 3 messages delivered to service, got %d", len(sender.sent))
	}
	if sender.sent[2].Command != "EVENT" {
		t.Fatalf("expected EVENT forwarded, got %q", sender.sent[2].Command)
	}
}

func TestRouteCachesForAbsentServiceThenFlushesOnRegister(t *testing.T) {
	self := mustEndpoint(t, "127.0.0.1:9000")
	reg := registrar.New("d1", self.String(), nil)
	r := New("d1", self, reg, &fakePeerTable{}, nil)
	reg.FlushCache = r.FlushCache

	m := message.New("", "A", "EVENT")
	_ = m.Parameters.Set("cache", "10")
	_ = m.Parameters.Set("param1", "hello")

	if !r.Route(m, nil) {
		t.Fatalf("expected message to be cached, not dropped")
	}

	sender := &fakeSender{}
	regMsg := message.New("", "", "REGISTER")
	_ = regMsg.Parameters.Set("service", "A")
	_ = regMsg.Parameters.Set("version", "1")
	_ = reg.Register(sender, regMsg)

	found := false
	for _, got := range sender.sent {
		if got.Command == "EVENT" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected cached EVENT to be replayed on registration")
	}
}

func TestRouteDropsAfterCacheDeadlinePassed(t *testing.T) {
	self := mustEndpoint(t, "127.0.0.1:9000")
	reg := registrar.New("d1", self.String(), nil)
	r := New("d1", self, reg, &fakePeerTable{}, nil)

	m := message.New("", "A", "EVENT")
	_ = m.Parameters.Set("cache", "10")
	r.Route(m, nil)

	r.mu.Lock()
	for svc, entries := range r.cache {
		for i := range entries {
			entries[i].deadline = time.Now().Add(-time.Second)
		}
		r.cache[svc] = entries
	}
	r.mu.Unlock()

	sender := &fakeSender{}
	regMsg := message.New("", "", "REGISTER")
	_ = regMsg.Parameters.Set("service", "A")
	_ = regMsg.Parameters.Set("version", "1")
	_ = reg.Register(sender, regMsg)
	r.FlushCache("A")

	for _, got := range sender.sent {
		if got.Command == "EVENT" {
			t.Fatalf("expected expired cache entry to be dropped, not replayed")
		}
	}
}

func TestRouteDedupesBroadcastByMsgID(t *testing.T) {
	self := mustEndpoint(t, "127.0.0.1:9000")
	reg := registrar.New("d1", self.String(), nil)
	sender := &fakeSender{}
	regMsg := message.New("", "", "REGISTER")
	_ = regMsg.Parameters.Set("service", "A")
	_ = regMsg.Parameters.Set("version", "1")
	_ = reg.Register(sender, regMsg)
	r := New("d1", self, reg, &fakePeerTable{}, nil)

	m := message.New("", ".", "EVENT")
	_ = m.Parameters.Set("broadcast_msgid", "d1-1")
	_ = m.Parameters.Set("broadcast_timeout", strconv.FormatInt(time.Now().Add(time.Minute).Unix(), 10))

	if !r.Route(m, nil) {
		t.Fatalf("expected first delivery to succeed")
	}
	if r.Route(m, nil) {
		t.Fatalf("expected duplicate broadcast_msgid to be dropped")
	}
}

func TestBroadcastStopsAtHopLimit(t *testing.T) {
	self := mustEndpoint(t, "127.0.0.1:9000")
	reg := registrar.New("d1", self.String(), nil)
	peer := &fakePeer{ep: mustEndpoint(t, "127.0.0.1:9001")}
	r := New("d1", self, reg, &fakePeerTable{live: []Peer{peer}}, nil)

	m := message.New("", "*", "EVENT")
	_ = m.Parameters.Set("broadcast_hops", strconv.Itoa(MaxBroadcastHops))
	r.Route(m, nil)

	if len(peer.sent) != 0 {
		t.Fatalf("expected no re-broadcast past the hop limit, got %d sends", len(peer.sent))
	}
}

func TestBroadcastForwardsToPeersBelowHopLimit(t *testing.T) {
	self := mustEndpoint(t, "127.0.0.1:9000")
	reg := registrar.New("d1", self.String(), nil)
	peer := &fakePeer{ep: mustEndpoint(t, "127.0.0.1:9001")}
	r := New("d1", self, reg, &fakePeerTable{live: []Peer{peer}}, nil)

	m := message.New("", "*", "EVENT")
	r.Route(m, nil)

	if len(peer.sent) != 1 {
		t.Fatalf("expected broadcast forwarded to live peer, got %d sends", len(peer.sent))
	}
	if hops, _ := peer.sent[0].Parameters.Get("broadcast_hops"); hops != "1" {
		t.Fatalf("expected broadcast_hops incremented to 1, got %q", hops)
	}
}
