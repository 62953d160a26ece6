package address

import "testing"

func TestParseIPv4(t *testing.T) {
	e, err := Parse("127.0.0.1:8080")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Family() != FamilyIPv4 {
		t.Fatalf("expected ipv4, got %s", e.Family())
	}
	if e.Port() != 8080 {
		t.Fatalf("expected port 8080, got %d", e.Port())
	}
	if e.NetworkType() != NetworkLoopback {
		t.Fatalf("expected loopback, got %s", e.NetworkType())
	}
	if e.String() != "127.0.0.1:8080" {
		t.Fatalf("unexpected string form: %s", e.String())
	}
}

func TestParseIPv6(t *testing.T) {
	e, err := Parse("[::1]:9090")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Family() != FamilyIPv6 {
		t.Fatalf("expected ipv6, got %s", e.Family())
	}
	if e.NetworkType() != NetworkLoopback {
		t.Fatalf("expected loopback, got %s", e.NetworkType())
	}
}

func TestParseUnix(t *testing.T) {
	e, err := Parse("/var/run/bus.sock")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !e.IsUnix() {
		t.Fatalf("expected unix endpoint")
	}
	if e.String() != "/var/run/bus.sock" {
		t.Fatalf("unexpected string form: %s", e.String())
	}
}

func TestParseAbstractUnix(t *testing.T) {
	e, err := Parse("@bus0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !e.Abstract() {
		t.Fatalf("expected abstract socket")
	}
	if e.String() != "@bus0" {
		t.Fatalf("unexpected string form: %s", e.String())
	}
}

func TestCompareOrdering(t *testing.T) {
	v4, _ := Parse("10.0.0.1:1000")
	v6, _ := Parse("[fe80::1]:1000")
	ux, _ := NewUnix("/tmp/bus.sock", false, false)

	if !v4.Less(v6) {
		t.Fatalf("expected ipv4 < ipv6")
	}
	if !v6.Less(ux) {
		t.Fatalf("expected ipv6 < unix")
	}

	lower, _ := Parse("10.0.0.1:1000")
	higher, _ := Parse("10.0.0.2:1000")
	if !lower.Less(higher) {
		t.Fatalf("expected lexicographic ordering on address bytes")
	}
}

func TestCompareSameAddressDifferentPort(t *testing.T) {
	a, _ := Parse("10.0.0.1:1000")
	b, _ := Parse("10.0.0.1:2000")
	if !a.Less(b) {
		t.Fatalf("expected lower port to sort first")
	}
	if a.Compare(a) != 0 {
		t.Fatalf("expected equal endpoints to compare as 0")
	}
}

func TestMulticastAndBroadcast(t *testing.T) {
	m, err := Parse("239.0.0.1:1900")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.NetworkType() != NetworkMulticast {
		t.Fatalf("expected multicast, got %s", m.NetworkType())
	}

	b, err := Parse("255.255.255.255:9")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.NetworkType() != NetworkBroadcast {
		t.Fatalf("expected broadcast, got %s", b.NetworkType())
	}
}

func TestPrivateAndPublic(t *testing.T) {
	p, _ := Parse("192.168.1.5:22")
	if p.NetworkType() != NetworkPrivate {
		t.Fatalf("expected private, got %s", p.NetworkType())
	}

	pub, _ := Parse("8.8.8.8:53")
	if pub.NetworkType() != NetworkPublic {
		t.Fatalf("expected public, got %s", pub.NetworkType())
	}
}

func TestTextRoundTrip(t *testing.T) {
	e, _ := Parse("10.1.2.3:4000")
	b, err := e.MarshalText()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var got Endpoint
	if err := got.UnmarshalText(b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(e) {
		t.Fatalf("round trip mismatch: %s != %s", got, e)
	}
}

func TestInvalidPort(t *testing.T) {
	if _, err := New([]byte{127, 0, 0, 1}, 70000); err == nil {
		t.Fatalf("expected error for out-of-range port")
	}
}

func TestEmptyUnixPath(t *testing.T) {
	if _, err := NewUnix("", false, false); err == nil {
		t.Fatalf("expected error for empty unix path")
	}
}
