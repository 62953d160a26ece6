package conn

import (
	"net"
	"testing"
	"time"

	"github.com/sabouaram/reactorbus/netproto"
	"github.com/sabouaram/reactorbus/reactor"
)

func TestStreamServerAcceptsAndEchoes(t *testing.T) {
	r := reactor.New(nil)

	var accepted *StreamClient
	done := make(chan struct{})

	srv, err := ListenStream("listener", reactor.PriorityNormal, netproto.NetworkTCP, "127.0.0.1:0", func(nc net.Conn) reactor.Connection {
		accepted = NewStreamClient("accepted", reactor.PriorityNormal, nc)
		accepted.OnData(func(b []byte) {
			accepted.Write(b)
		})
		_ = r.Add(accepted)
		close(done)
		return accepted
	})
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	if err := r.Add(srv); err != nil {
		t.Fatalf("add server failed: %v", err)
	}

	go func() {
		for i := 0; i < 200; i++ {
			r.Poll(10 * time.Millisecond)
		}
	}()

	client, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer client.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("server never accepted connection")
	}

	if _, err := client.Write([]byte("ping")); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 4)
	if _, err := client.Read(buf); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(buf) != "ping" {
		t.Fatalf("expected echo of ping, got %q", buf)
	}
}

func TestDatagramSendTooLarge(t *testing.T) {
	r := reactor.New(nil)
	d, err := ListenDatagram("udp-test", reactor.PriorityNormal, netproto.NetworkUDP, "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	if err := r.Add(d); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	big := make([]byte, MaxDatagramSize+1)
	addr, _ := net.ResolveUDPAddr("udp", "127.0.0.1:1")
	if err := d.Send(addr, big); err == nil {
		t.Fatalf("expected error sending oversized datagram")
	}
}
