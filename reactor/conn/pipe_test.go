package conn

import (
	"os"
	"testing"
	"time"

	"github.com/sabouaram/reactorbus/reactor"
)

func TestPipeRelaysData(t *testing.T) {
	pr, pw, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe failed: %v", err)
	}
	defer pw.Close()

	r := reactor.New(nil)
	p := NewPipe("pipe", reactor.PriorityNormal, pr, nil)

	received := make(chan string, 1)
	p.OnData(func(b []byte) {
		received <- string(b)
	})

	if err := r.Add(p); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	go func() {
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			r.Poll(10 * time.Millisecond)
		}
	}()

	if _, err := pw.Write([]byte("hello")); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	select {
	case got := <-received:
		if got != "hello" {
			t.Fatalf("expected hello, got %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for pipe data")
	}
}
