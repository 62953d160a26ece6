package control

import (
	"testing"

	"github.com/sabouaram/reactorbus/message"
)

type fakePeer struct {
	sent []message.Message
	done bool
}

func (p *fakePeer) Send(m message.Message) error { p.sent = append(p.sent, m); return nil }
func (p *fakePeer) MarkDone()                    { p.done = true }

type fakeService struct {
	name     string
	commands map[string]struct{}
	sent     []message.Message
	done     bool
	empty    bool
}

func (s *fakeService) Name() string { return s.name }
func (s *fakeService) Supports(command string) bool {
	_, ok := s.commands[command]
	return ok
}
func (s *fakeService) Send(m message.Message) error { s.sent = append(s.sent, m); return nil }
func (s *fakeService) MarkDone()                    { s.done = true }
func (s *fakeService) OutputEmpty() bool            { return s.empty }

type fakeListener struct {
	done bool
}

func (l *fakeListener) MarkDone() { l.done = true }

func TestBeginRejectsDoubleShutdown(t *testing.T) {
	c := New(nil)
	if err := c.Begin(false); err != nil {
		t.Fatalf("unexpected error on first Begin: %v", err)
	}
	if err := c.Begin(false); err == nil {
		t.Fatalf("expected second Begin to fail")
	}
	if !c.ShuttingDown() {
		t.Fatalf("expected ShuttingDown to report true")
	}
}

func TestBeginCancelsRegisteredGossipTimers(t *testing.T) {
	c := New(nil)
	var cancelled int
	c.OnGossipCancel(func() { cancelled++ })
	c.OnGossipCancel(func() { cancelled++ })

	if err := c.Begin(false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cancelled != 2 {
		t.Fatalf("expected both gossip cancel hooks to run, got %d", cancelled)
	}
}

func TestSignalPeersSendsDisconnectWhenNotClusterWide(t *testing.T) {
	c := New(nil)
	_ = c.Begin(false)

	p := &fakePeer{}
	c.SignalPeers([]Peer{p})

	if !p.done {
		t.Fatalf("expected peer to be marked done")
	}
	if len(p.sent) != 1 || p.sent[0].Command != "DISCONNECT" {
		t.Fatalf("expected a single DISCONNECT, got %+v", p.sent)
	}
}

func TestSignalPeersSendsShutdownWhenClusterWide(t *testing.T) {
	c := New(nil)
	_ = c.Begin(true)

	p := &fakePeer{}
	c.SignalPeers([]Peer{p})

	if len(p.sent) != 1 || p.sent[0].Command != "SHUTDOWN" {
		t.Fatalf("expected a single SHUTDOWN, got %+v", p.sent)
	}
}

func TestSignalServicesSendsDisconnectingOnlyWhenSupported(t *testing.T) {
	c := New(nil)
	_ = c.Begin(false)

	supporting := &fakeService{name: "A", commands: map[string]struct{}{"DISCONNECTING": {}}}
	plain := &fakeService{name: "B"}

	c.SignalServices([]Service{supporting, plain})

	if len(supporting.sent) != 1 || supporting.sent[0].Command != "DISCONNECTING" {
		t.Fatalf("expected DISCONNECTING sent to supporting service, got %+v", supporting.sent)
	}
	if len(plain.sent) != 0 {
		t.Fatalf("expected no message sent to a service without DISCONNECTING support")
	}
	if !supporting.done || !plain.done {
		t.Fatalf("expected both services marked done")
	}
}

func TestWithdrawListenersMarksAllDone(t *testing.T) {
	c := New(nil)
	a := &fakeListener{}
	b := &fakeListener{}
	c.WithdrawListeners([]Listener{a, b})

	if !a.done || !b.done {
		t.Fatalf("expected every listener marked done")
	}
}

func TestShutdownRunsFullCascade(t *testing.T) {
	c := New(nil)
	p := &fakePeer{}
	s := &fakeService{name: "A"}
	l := &fakeListener{}

	if err := c.Shutdown(false, []Peer{p}, []Service{s}, []Listener{l}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p.done || !s.done || !l.done {
		t.Fatalf("expected the full cascade to mark every connection done")
	}
	if !c.ShuttingDown() {
		t.Fatalf("expected ShuttingDown to report true after cascade")
	}
}

func TestRegisterReplyIsQuitting(t *testing.T) {
	c := New(nil)
	if got := c.RegisterReply(); got.Command != "QUITTING" {
		t.Fatalf("expected QUITTING, got %q", got.Command)
	}
}

func TestReloadExitCodeIsOne(t *testing.T) {
	if ReloadExitCode() != ExitRestart {
		t.Fatalf("expected RELOAD_CONFIG to map to ExitRestart")
	}
}

func TestBeginErrorReportsAlreadyShuttingDown(t *testing.T) {
	c := New(nil)
	_ = c.Begin(false)
	err := c.Begin(false)
	if err == nil || err.Error() == "" {
		t.Fatalf("expected a non-empty error describing the conflict")
	}
}
