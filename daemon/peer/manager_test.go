package peer

import (
	"testing"
	"time"

	"github.com/sabouaram/reactorbus/address"
	"github.com/sabouaram/reactorbus/message"
)

type fakeSender struct {
	sent []message.Message
}

func (f *fakeSender) Send(m message.Message) error {
	f.sent = append(f.sent, m)
	return nil
}

func ep(t *testing.T, s string) address.Endpoint {
	t.Helper()
	e, err := address.Parse(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return e
}

func TestOutboundDirectionality(t *testing.T) {
	self := ep(t, "10.0.0.5:9000")
	m := New(self, "self-daemon", nil)

	lower := ep(t, "10.0.0.1:9000")
	higher := ep(t, "10.0.0.9:9000")

	if !m.Outbound(lower) {
		t.Fatalf("expected lower endpoint to be outbound")
	}
	if m.Outbound(higher) {
		t.Fatalf("expected higher endpoint to be inbound (gossip target)")
	}
	if m.Outbound(self) {
		t.Fatalf("expected self endpoint to never be outbound")
	}
}

func TestHandleConnectAcceptsAndRecordsServices(t *testing.T) {
	self := ep(t, "10.0.0.5:9000")
	m := New(self, "self-daemon", nil)
	remote := ep(t, "10.0.0.1:9000")

	connect := message.New("", "", "CONNECT")
	_ = connect.Parameters.Set("server_name", "peer-daemon")
	_ = connect.Parameters.Set("services", "A,B")

	reply := m.HandleConnect(remote, &fakeSender{}, connect, false, []string{"X"})
	if reply.Command != "ACCEPT" {
		t.Fatalf("expected ACCEPT, got %q", reply.Command)
	}

	r := m.Get(remote)
	if r.State() != StateConnected {
		t.Fatalf("expected peer to be connected")
	}
	if !r.Hosts("A") || !r.Hosts("B") {
		t.Fatalf("expected peer to host A and B")
	}
}

func TestHandleConnectRefusesNameConflict(t *testing.T) {
	self := ep(t, "10.0.0.5:9000")
	m := New(self, "self-daemon", nil)
	remote := ep(t, "10.0.0.1:9000")

	connect := message.New("", "", "CONNECT")
	_ = connect.Parameters.Set("server_name", "self-daemon")

	reply := m.HandleConnect(remote, &fakeSender{}, connect, false, nil)
	if reply.Command != "REFUSE" {
		t.Fatalf("expected REFUSE, got %q", reply.Command)
	}
	if reason, _ := reply.Parameters.Get("conflict"); reason != "name" {
		t.Fatalf("expected conflict=name, got %q", reason)
	}
}

func TestHandleConnectRefusesWhileShuttingDown(t *testing.T) {
	self := ep(t, "10.0.0.5:9000")
	m := New(self, "self-daemon", nil)
	remote := ep(t, "10.0.0.1:9000")

	connect := message.New("", "", "CONNECT")
	reply := m.HandleConnect(remote, &fakeSender{}, connect, true, nil)
	if reply.Command != "REFUSE" {
		t.Fatalf("expected REFUSE, got %q", reply.Command)
	}
	if reason, _ := reply.Parameters.Get("conflict"); reason != "shutdown" {
		t.Fatalf("expected conflict=shutdown, got %q", reason)
	}
}

func TestHandleRefuseBacksOffByReason(t *testing.T) {
	self := ep(t, "10.0.0.5:9000")
	m := New(self, "self-daemon", nil)
	remote := ep(t, "10.0.0.1:9000")
	now := time.Now()

	busy := message.New("", "", "REFUSE")
	_ = busy.Parameters.Set("conflict", "busy")
	m.HandleRefuse(remote, busy, now)

	r := m.Get(remote)
	if !r.BackedOff(now.Add(time.Hour)) {
		t.Fatalf("expected busy back-off to still be in effect an hour later")
	}
	if r.BackedOff(now.Add(BackoffBusy + time.Minute)) {
		t.Fatalf("expected busy back-off to have expired after its window")
	}
}

func TestPeerForServicePicksLowestLoad(t *testing.T) {
	self := ep(t, "10.0.0.5:9000")
	m := New(self, "self-daemon", nil)

	a := ep(t, "10.0.0.1:9000")
	b := ep(t, "10.0.0.2:9000")

	connectA := message.New("", "", "CONNECT")
	_ = connectA.Parameters.Set("services", "A")
	m.HandleConnect(a, &fakeSender{}, connectA, false, nil)

	connectB := message.New("", "", "CONNECT")
	_ = connectB.Parameters.Set("services", "A")
	m.HandleConnect(b, &fakeSender{}, connectB, false, nil)

	m.Get(a).SetLoad(5)
	m.Get(b).SetLoad(1)

	p, ok := m.PeerForService("A")
	if !ok {
		t.Fatalf("expected a peer hosting A")
	}
	if !p.Endpoint().Equal(b) {
		t.Fatalf("expected the lower-load peer to be selected")
	}
}

func TestEvaluateClusterStatusQuorum(t *testing.T) {
	self := ep(t, "10.0.0.5:9000")
	m := New(self, "self-daemon", nil)

	var gotUp, gotComplete bool
	var transitions int
	m.OnClusterChange = func(up, complete bool) {
		transitions++
		gotUp, gotComplete = up, complete
	}

	d2 := ep(t, "10.0.0.1:9000")
	d3 := ep(t, "10.0.0.2:9000")
	m.AddNeighbors([]address.Endpoint{d2, d3})

	up, complete := m.EvaluateClusterStatus()
	if up || complete {
		t.Fatalf("expected no quorum with zero live peers out of 3")
	}
	if transitions != 0 {
		t.Fatalf("expected no transition callback for the initial down/incomplete state matching defaults")
	}

	m.HandleConnect(d2, &fakeSender{}, message.New("", "", "CONNECT"), false, nil)
	up, complete = m.EvaluateClusterStatus()
	if !up {
		t.Fatalf("expected quorum with 2 live out of 3 (floor(3/2)+1=2)")
	}
	if complete {
		t.Fatalf("expected incomplete with 2 of 3 connected")
	}
	if !gotUp || gotComplete {
		t.Fatalf("expected OnClusterChange to report up=true, complete=false")
	}

	m.HandleConnect(d3, &fakeSender{}, message.New("", "", "CONNECT"), false, nil)
	up, complete = m.EvaluateClusterStatus()
	if !up || !complete {
		t.Fatalf("expected full cluster to be up and complete")
	}
	if transitions != 2 {
		t.Fatalf("expected exactly 2 transitions, got %d", transitions)
	}
}

func TestProbeFailedFlagsPeerAndFiresCallbackWithoutTouchingState(t *testing.T) {
	self := ep(t, "10.0.0.5:9000")
	m := New(self, "self-daemon", nil)
	remote := ep(t, "10.0.0.1:9000")

	m.HandleConnect(remote, &fakeSender{}, message.New("", "", "CONNECT"), false, nil)
	rec := m.Get(remote)
	if rec.State() != StateConnected {
		t.Fatalf("expected StateConnected before any probe signal")
	}

	var suspected address.Endpoint
	var calls int
	m.OnProbeSuspect = func(ep address.Endpoint) {
		calls++
		suspected = ep
	}

	m.ProbeFailed(remote)
	if !rec.Suspected() {
		t.Fatalf("expected ProbeFailed to set Suspected")
	}
	if calls != 1 || suspected != remote {
		t.Fatalf("expected OnProbeSuspect to fire once for %v, got %d calls for %v", remote, calls, suspected)
	}
	if rec.State() != StateConnected {
		t.Fatalf("ProbeFailed must not touch the handshake-owned State")
	}

	m.ProbeAlive(remote)
	if rec.Suspected() {
		t.Fatalf("expected ProbeAlive to clear Suspected")
	}
}
