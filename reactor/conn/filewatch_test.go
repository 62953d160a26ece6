package conn

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/sabouaram/reactorbus/reactor"
)

func TestFileWatchReportsWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "watched.txt")
	if err := os.WriteFile(path, []byte("initial"), 0o644); err != nil {
		t.Fatalf("setup write failed: %v", err)
	}

	r := reactor.New(nil)
	events := make(chan fsnotify.Event, 8)

	fw, err := NewFileWatch("watch", reactor.PriorityNormal, func(ev fsnotify.Event) {
		events <- ev
	}, nil, dir)
	if err != nil {
		t.Fatalf("new file watch failed: %v", err)
	}
	if err := r.Add(fw); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	go func() {
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			r.Poll(10 * time.Millisecond)
		}
	}()

	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(path, []byte("updated"), 0o644); err != nil {
		t.Fatalf("update write failed: %v", err)
	}

	select {
	case ev := <-events:
		if ev.Name != path {
			t.Fatalf("expected event for %s, got %s", path, ev.Name)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for file watch event")
	}
}
