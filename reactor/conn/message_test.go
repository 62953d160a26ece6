package conn

import (
	"net"
	"testing"
	"time"

	"github.com/sabouaram/reactorbus/message"
	"github.com/sabouaram/reactorbus/reactor"
)

func TestMessageFramedRoundTrip(t *testing.T) {
	r := reactor.New(nil)

	serverSide, clientSide := net.Pipe()
	sc := NewStreamClient("server-side", reactor.PriorityNormal, serverSide)

	received := make(chan message.Message, 1)
	mf := NewMessageFramed(sc, func(m message.Message) {
		received <- m
	}, nil)
	_ = mf

	if err := r.Add(sc); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	go func() {
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			r.Poll(10 * time.Millisecond)
		}
	}()

	m := message.New("", "echo", "PING")
	b, err := message.EncodeText(m)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	b = append(b, '\n')

	go func() {
		_, _ = clientSide.Write(b)
	}()

	select {
	case got := <-received:
		if got.Command != "PING" || got.Service != "echo" {
			t.Fatalf("unexpected message: %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for decoded message")
	}
}

func TestMessageFramedDelegatesToClient(t *testing.T) {
	serverSide, clientSide := net.Pipe()
	defer clientSide.Close()
	sc := NewStreamClient("server-side", reactor.PriorityNormal, serverSide)
	mf := NewMessageFramed(sc, nil, nil)

	if mf.Name() != sc.Name() {
		t.Fatalf("expected Name to delegate to the underlying StreamClient")
	}
	if !mf.OutputEmpty() {
		t.Fatalf("expected a freshly created client to have an empty output buffer")
	}

	mf.MarkDone()
	if !sc.Done() {
		t.Fatalf("expected MarkDone to delegate to the underlying StreamClient")
	}
}
