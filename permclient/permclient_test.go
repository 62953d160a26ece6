package permclient

import (
	"net"
	"testing"
	"time"

	"github.com/sabouaram/reactorbus/message"
	"github.com/sabouaram/reactorbus/netproto"
	"github.com/sabouaram/reactorbus/reactor"
	"github.com/sabouaram/reactorbus/reactor/conn"
)

func startEchoServer(t *testing.T, r *reactor.Reactor) string {
	t.Helper()

	srv, err := conn.ListenStream("echo-server", reactor.PriorityNormal, netproto.NetworkTCP, "127.0.0.1:0", func(nc net.Conn) reactor.Connection {
		sc := conn.NewStreamClient("echo-accepted", reactor.PriorityNormal, nc)
		_ = conn.NewMessageFramed(sc, func(m message.Message) {
			r := m.ReplyTo()
			r.Command = "ECHO"
			r.Parameters = m.Parameters.Clone()
			b, _ := message.EncodeText(r)
			b = append(b, '\n')
			sc.Write(b)
		}, nil)
		_ = r.Add(sc)
		return sc
	})
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	if err := r.Add(srv); err != nil {
		t.Fatalf("add server failed: %v", err)
	}
	return srv.Addr().String()
}

func TestPermanentClientConnectsAndSends(t *testing.T) {
	r := reactor.New(nil)
	addr := startEchoServer(t, r)

	go func() {
		deadline := time.Now().Add(3 * time.Second)
		for time.Now().Before(deadline) {
			r.Poll(10 * time.Millisecond)
		}
	}()

	received := make(chan message.Message, 1)
	c := New("client", reactor.PriorityNormal, r, netproto.NetworkTCP, addr, nil)
	c.OnMessage = func(m message.Message) { received <- m }
	c.Start()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && !c.IsConnected() {
		time.Sleep(10 * time.Millisecond)
	}
	if !c.IsConnected() {
		t.Fatalf("expected permanent client to connect")
	}

	if err := c.Send(message.New("", "", "PING"), SendOptions{}); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	select {
	case m := <-received:
		if m.Command != "ECHO" {
			t.Fatalf("expected ECHO reply, got %q", m.Command)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for echo reply")
	}
}

func TestPermanentClientCachesWhileDisconnected(t *testing.T) {
	r := reactor.New(nil)
	c := New("client", reactor.PriorityNormal, r, netproto.NetworkTCP, "127.0.0.1:1", nil)
	c.Pause = -1

	if err := c.Send(message.New("", "", "PING"), SendOptions{Cache: true}); err != nil {
		t.Fatalf("expected caching to succeed while disconnected: %v", err)
	}
	if err := c.Send(message.New("", "", "PING"), SendOptions{}); err == nil {
		t.Fatalf("expected error sending without cache while disconnected")
	}
}
