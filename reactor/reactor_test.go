package reactor

import (
	"sync"
	"testing"
	"time"
)

type fakeConn struct {
	name     string
	priority Priority
	enabled  bool
	done     bool

	deadline time.Time
	armed    bool

	mu   sync.Mutex
	hits []string
}

func (f *fakeConn) Name() string      { return f.name }
func (f *fakeConn) Priority() Priority { return f.priority }
func (f *fakeConn) Enabled() bool     { return f.enabled }
func (f *fakeConn) Done() bool        { return f.done }

func (f *fakeConn) record(s string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hits = append(f.hits, s)
}

func (f *fakeConn) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.hits))
	copy(out, f.hits)
	return out
}

type readerConn struct {
	fakeConn
	readErr error
}

func (r *readerConn) WantRead() bool { return true }
func (r *readerConn) ProcessRead() error {
	r.record("read")
	return r.readErr
}

func TestAddRemove(t *testing.T) {
	r := New(nil)
	c := &fakeConn{name: "c1", priority: PriorityNormal, enabled: true}

	if err := r.Add(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.Add(c); err == nil {
		t.Fatalf("expected error re-attaching same connection")
	}
	if err := r.Remove(c); err != nil {
		t.Fatalf("unexpected error removing: %v", err)
	}
	if err := r.Remove(c); err != nil {
		t.Fatalf("expected a repeated Remove to be harmless, got %v", err)
	}
}

func TestDispatchServesEveryPriority(t *testing.T) {
	r := New(nil)

	low := &readerConn{fakeConn: fakeConn{name: "low", priority: PriorityLow, enabled: true}}
	high := &readerConn{fakeConn: fakeConn{name: "high", priority: PriorityHigh, enabled: true}}

	_ = r.Add(low)
	_ = r.Add(high)

	r.Notify(low, EventRead, nil)
	r.Notify(high, EventRead, nil)

	r.Poll(10 * time.Millisecond)

	hiHits := high.recorded()
	loHits := low.recorded()
	if len(hiHits) == 0 || len(loHits) == 0 {
		t.Fatalf("expected both connections to have processed a read event, got high=%v low=%v", hiHits, loHits)
	}
}

func TestPollDeliversQueuedEvent(t *testing.T) {
	r := New(nil)
	c := &readerConn{fakeConn: fakeConn{name: "c", priority: PriorityNormal, enabled: true}}
	_ = r.Add(c)

	r.Notify(c, EventRead, nil)
	r.Poll(50 * time.Millisecond)

	if got := c.recorded(); len(got) != 1 || got[0] != "read" {
		t.Fatalf("expected one read event processed, got %v", got)
	}
}

func TestPollTimesOutWithoutEvents(t *testing.T) {
	r := New(nil)
	start := time.Now()
	r.Poll(20 * time.Millisecond)
	if time.Since(start) < 15*time.Millisecond {
		t.Fatalf("expected Poll to wait roughly the timeout with no events")
	}
}

func TestRemovalWaitsForOutputDrain(t *testing.T) {
	r := New(nil)
	c := &drainingConn{fakeConn: fakeConn{name: "d", priority: PriorityNormal, enabled: true, done: true}, empty: false}
	_ = r.Add(c)

	r.Poll(5 * time.Millisecond)
	if len(r.List()) != 1 {
		t.Fatalf("expected connection to remain attached while output is pending")
	}

	c.empty = true
	r.Poll(5 * time.Millisecond)
	if len(r.List()) != 0 {
		t.Fatalf("expected connection removed once output drained")
	}
}

type drainingConn struct {
	fakeConn
	empty bool
}

func (d *drainingConn) OutputEmpty() bool { return d.empty }

func TestErroringReadRemovesConnection(t *testing.T) {
	r := New(nil)
	c := &readerConn{fakeConn: fakeConn{name: "bad", priority: PriorityNormal, enabled: true}, readErr: errBoom}
	_ = r.Add(c)

	r.Notify(c, EventRead, nil)
	r.Poll(20 * time.Millisecond)
	r.Poll(5 * time.Millisecond)

	if len(r.List()) != 0 {
		t.Fatalf("expected connection removed after returning an error")
	}
}

var errBoom = &testError{"boom"}

type testError struct{ s string }

func (e *testError) Error() string { return e.s }
