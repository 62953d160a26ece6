package dispatcher

import (
	"testing"

	"github.com/sabouaram/reactorbus/message"
)

func msg(command string) message.Message {
	return message.New("", "", command)
}

func TestOneToOneStopsDispatch(t *testing.T) {
	d := New()
	var secondCalled bool

	_ = d.Add(Match{Kind: OneToOne, Expression: "PING", Handler: func(message.Message) bool { return true }})
	_ = d.Add(Match{Kind: OneToOne, Expression: "PING", Handler: func(message.Message) bool {
		secondCalled = true
		return true
	}})

	if !d.Dispatch(msg("PING")) {
		t.Fatalf("expected dispatch to report a handler ran")
	}
	if secondCalled {
		t.Fatalf("expected OneToOne match to stop dispatch, but second handler ran")
	}
}

func TestOneToOneCallbackContinues(t *testing.T) {
	d := New()
	var calls int

	_ = d.Add(Match{Kind: OneToOneCallback, Expression: "PING", Handler: func(message.Message) bool {
		calls++
		return true
	}})
	_ = d.Add(Match{Kind: OneToOne, Expression: "PING", Handler: func(message.Message) bool {
		calls++
		return true
	}})

	d.Dispatch(msg("PING"))
	if calls != 2 {
		t.Fatalf("expected both handlers to run, got %d calls", calls)
	}
}

func TestRegexMatch(t *testing.T) {
	d := New()
	var matched string

	if err := d.Add(Match{Kind: Regex, Expression: "^STATUS_.*", Handler: func(m message.Message) bool {
		matched = m.Command
		return true
	}}); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	d.Dispatch(msg("STATUS_UP"))
	if matched != "STATUS_UP" {
		t.Fatalf("expected regex match to fire, got %q", matched)
	}
}

func TestCatchAllOnlyRunsWhenUnclaimed(t *testing.T) {
	d := New()
	var caught bool

	_ = d.Add(Match{Kind: OneToOne, Expression: "PING", Handler: func(message.Message) bool { return true }})
	_ = d.Add(Match{Kind: Always, Handler: func(message.Message) bool {
		caught = true
		return true
	}})

	d.Dispatch(msg("PING"))
	if caught {
		t.Fatalf("catch-all should not run when PING is claimed")
	}

	d.Dispatch(msg("SOMETHING_ELSE"))
	if !caught {
		t.Fatalf("expected catch-all to run for an unclaimed command")
	}
}

func TestDuplicateAlwaysRejected(t *testing.T) {
	d := New()
	_ = d.Add(Match{Kind: Always, Handler: func(message.Message) bool { return true }})
	if err := d.Add(Match{Kind: Always, Handler: func(message.Message) bool { return true }}); err == nil {
		t.Fatalf("expected error registering a second catch-all")
	}
}

func TestRemoveByTag(t *testing.T) {
	d := New()
	_ = d.Add(Match{Kind: OneToOne, Expression: "X", Tag: "group", Handler: func(message.Message) bool { return true }})
	d.RemoveByTag("group")

	if d.Dispatch(msg("X")) {
		t.Fatalf("expected no handler to run after RemoveByTag")
	}
}

func TestDispatchReturnsFalseWhenNothingMatches(t *testing.T) {
	d := New()
	if d.Dispatch(msg("ANYTHING")) {
		t.Fatalf("expected false with no matches and no catch-all")
	}
}
