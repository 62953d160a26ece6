package conn

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/sabouaram/reactorbus/reactor"
)

func TestTimerFiresOnce(t *testing.T) {
	r := reactor.New(nil)
	var fired int32

	tm := NewTimer("once", reactor.PriorityNormal, 10*time.Millisecond, func() {
		atomic.AddInt32(&fired, 1)
	})
	if err := r.Add(tm); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		r.Poll(10 * time.Millisecond)
		if atomic.LoadInt32(&fired) == 1 {
			break
		}
	}

	if atomic.LoadInt32(&fired) != 1 {
		t.Fatalf("expected timer to fire exactly once, got %d", fired)
	}

	r.Poll(20 * time.Millisecond)
	if atomic.LoadInt32(&fired) != 1 {
		t.Fatalf("expected one-shot timer not to refire, got %d", fired)
	}
}

func TestTickerRepeats(t *testing.T) {
	r := reactor.New(nil)
	var fired int32

	tk := NewTicker("tick", reactor.PriorityNormal, 10*time.Millisecond, func() {
		atomic.AddInt32(&fired, 1)
	})
	if err := r.Add(tk); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		r.Poll(10 * time.Millisecond)
		if atomic.LoadInt32(&fired) >= 3 {
			break
		}
	}

	if atomic.LoadInt32(&fired) < 3 {
		t.Fatalf("expected ticker to fire repeatedly, got %d", fired)
	}
}
