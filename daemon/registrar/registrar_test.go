package registrar

import (
	"testing"

	"github.com/sabouaram/reactorbus/message"
)

type fakeSender struct {
	sent []message.Message
}

func (f *fakeSender) Send(m message.Message) error {
	f.sent = append(f.sent, m)
	return nil
}

func registerMsg(service, version string) message.Message {
	m := message.New("", "", "REGISTER")
	_ = m.Parameters.Set("service", service)
	if version != "" {
		_ = m.Parameters.Set("version", version)
	}
	return m
}

func TestRegisterRepliesHelpThenReady(t *testing.T) {
	r := New("d1", "127.0.0.1:9000", nil)
	s := &fakeSender{}

	if err := r.Register(s, registerMsg("A", "1")); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if len(s.sent) != 2 {
		t.Fatalf("expected 2 replies, got %d", len(s.sent))
	}
	if s.sent[0].Command != "HELP" {
		t.Fatalf("expected HELP first, got %q", s.sent[0].Command)
	}
	if s.sent[1].Command != "READY" {
		t.Fatalf("expected READY second, got %q", s.sent[1].Command)
	}
	if addr, _ := s.sent[1].Parameters.Get("my_address"); addr != "127.0.0.1:9000" {
		t.Fatalf("expected READY to carry my_address, got %q", addr)
	}
}

func TestRegisterRejectsDuplicateService(t *testing.T) {
	r := New("d1", "127.0.0.1:9000", nil)
	_ = r.Register(&fakeSender{}, registerMsg("A", "1"))

	if err := r.Register(&fakeSender{}, registerMsg("A", "1")); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
}

func TestRegisterRejectsOldVersion(t *testing.T) {
	r := New("d1", "127.0.0.1:9000", nil)
	if err := r.Register(&fakeSender{}, registerMsg("A", "0")); err == nil {
		t.Fatalf("expected version 0 to be rejected")
	}
}

func TestHandleCommandsStoresVocabulary(t *testing.T) {
	r := New("d1", "127.0.0.1:9000", nil)
	s := &fakeSender{}
	_ = r.Register(s, registerMsg("A", "1"))

	cmds := message.New("", "", "COMMANDS")
	_ = cmds.Parameters.Set("list", "PING, PONG")
	r.HandleCommands("A", cmds)

	reg, ok := r.Lookup("A")
	if !ok {
		t.Fatalf("expected registration to exist")
	}
	if !reg.Supports("PING") || !reg.Supports("PONG") {
		t.Fatalf("expected vocabulary to include PING and PONG")
	}
	if reg.Supports("UNKNOWN_CMD") {
		t.Fatalf("expected vocabulary to exclude unlisted commands")
	}
}

func TestUnregisterNotifiesStatusDown(t *testing.T) {
	r := New("d1", "127.0.0.1:9000", nil)
	s := &fakeSender{}
	_ = r.Register(s, registerMsg("A", "1"))

	var gotUp, gotDown bool
	r.OnStatus = func(reg *Registration, up bool) {
		if up {
			gotUp = true
		} else {
			gotDown = true
		}
	}

	r.Unregister("A")
	if gotUp {
		t.Fatalf("did not expect OnStatus(up) to re-fire on unregister")
	}
	if !gotDown {
		t.Fatalf("expected OnStatus(down) to fire on unregister")
	}
	if _, ok := r.Lookup("A"); ok {
		t.Fatalf("expected registration to be evicted")
	}
}

func TestFlushCacheCalledOnRegister(t *testing.T) {
	r := New("d1", "127.0.0.1:9000", nil)
	var flushed string
	r.FlushCache = func(service string) { flushed = service }

	_ = r.Register(&fakeSender{}, registerMsg("A", "1"))
	if flushed != "A" {
		t.Fatalf("expected FlushCache to run for service A, got %q", flushed)
	}
}
