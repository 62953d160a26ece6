package sockcfg

import (
	"testing"

	"github.com/sabouaram/reactorbus/netproto"
)

func TestClientValidateTCP(t *testing.T) {
	c := Client{Network: netproto.NetworkTCP, Address: "localhost:8080"}
	if err := c.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestClientValidateInvalidProtocol(t *testing.T) {
	c := Client{Address: "localhost:8080"}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for zero-value protocol")
	}
}

func TestClientValidateBadTCPAddress(t *testing.T) {
	c := Client{Network: netproto.NetworkTCP, Address: "not-an-address::::"}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for malformed tcp address")
	}
}

func TestClientValidateUnixPathAlwaysOK(t *testing.T) {
	c := Client{Network: netproto.NetworkUnix, Address: "/tmp/test.sock"}
	if err := c.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestClientTLSRequiresCertAndKey(t *testing.T) {
	c := Client{Network: netproto.NetworkTCP, Address: "localhost:8080", TLS: TLS{Enable: true}}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for TLS enabled without certificate/key")
	}
}

func TestServerDefaultsUnixPerm(t *testing.T) {
	s := &Server{Network: netproto.NetworkUnix, Address: "/tmp/bus.sock"}
	if err := s.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.PermFile.Uint64() != 0600 {
		t.Fatalf("expected default 0600 perm, got %v", s.PermFile)
	}
}

func TestServerValidateUDP(t *testing.T) {
	s := &Server{Network: netproto.NetworkUDP, Address: "127.0.0.1:9000"}
	if err := s.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
