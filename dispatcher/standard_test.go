package dispatcher

import (
	"testing"

	"github.com/sabouaram/reactorbus/message"
)

func TestStandardAliveReplies(t *testing.T) {
	d := New()
	var reply message.Message

	err := RegisterStandard(d, StandardHooks{
		Reply: func(m message.Message) { reply = m },
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	m := message.New("", "", "ALIVE")
	_ = m.Parameters.Set("serial", "42")

	if !d.Dispatch(m) {
		t.Fatalf("expected ALIVE to be handled")
	}
	if reply.Command != "ABSOLUTELY" {
		t.Fatalf("expected ABSOLUTELY reply, got %q", reply.Command)
	}
	if v, _ := reply.Parameters.Get("serial"); v != "42" {
		t.Fatalf("expected serial echoed, got %q", v)
	}
	if _, ok := reply.Parameters.Get("reply_timestamp"); !ok {
		t.Fatalf("expected reply_timestamp to be set")
	}
}

func TestStandardHelpListsCommands(t *testing.T) {
	d := New()
	var reply message.Message

	err := RegisterStandard(d, StandardHooks{
		Reply:    func(m message.Message) { reply = m },
		Commands: func() []string { return []string{"PING", "PONG"} },
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	d.Dispatch(message.New("", "", "HELP"))
	if v, _ := reply.Parameters.Get("list"); v != "PING,PONG" {
		t.Fatalf("expected command list, got %q", v)
	}
}

func TestStandardStopHooks(t *testing.T) {
	d := New()
	var graceful *bool

	err := RegisterStandard(d, StandardHooks{
		Stop: func(g bool) { graceful = &g },
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	d.Dispatch(message.New("", "", "STOP"))
	if graceful == nil || *graceful {
		t.Fatalf("expected STOP to call Stop(false)")
	}

	d.Dispatch(message.New("", "", "QUITTING"))
	if graceful == nil || !*graceful {
		t.Fatalf("expected QUITTING to call Stop(true)")
	}
}

func TestRemoveStandardByTag(t *testing.T) {
	d := New()
	_ = RegisterStandard(d, StandardHooks{})
	d.RemoveByTag("standard")

	if d.Dispatch(message.New("", "", "ALIVE")) {
		t.Fatalf("expected standard commands removed")
	}
}
