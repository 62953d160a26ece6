package netproto

import "testing"

func TestParseAndString(t *testing.T) {
	cases := map[string]NetworkProtocol{
		"tcp":      NetworkTCP,
		"TCP4":     NetworkTCP4,
		"tcp6":     NetworkTCP6,
		"udp":      NetworkUDP,
		"udp4":     NetworkUDP4,
		"udp6":     NetworkUDP6,
		"unix":     NetworkUnix,
		"unixgram": NetworkUnixGram,
	}

	for in, want := range cases {
		got := Parse(in)
		if got != want {
			t.Fatalf("Parse(%q) = %v, want %v", in, got, want)
		}
		if got.String() != want.String() {
			t.Fatalf("String mismatch for %q", in)
		}
	}
}

func TestInvalidProtocol(t *testing.T) {
	if Parse("sctp").IsValid() {
		t.Fatalf("expected sctp to be invalid")
	}
	var zero NetworkProtocol
	if zero.IsValid() {
		t.Fatalf("expected zero value to be invalid")
	}
}

func TestStreamVsDatagram(t *testing.T) {
	if !NetworkTCP.IsStream() || NetworkTCP.IsDatagram() {
		t.Fatalf("tcp should be stream, not datagram")
	}
	if !NetworkUDP.IsDatagram() || NetworkUDP.IsStream() {
		t.Fatalf("udp should be datagram, not stream")
	}
	if !NetworkUnix.IsStream() {
		t.Fatalf("unix should be stream")
	}
	if !NetworkUnixGram.IsDatagram() {
		t.Fatalf("unixgram should be datagram")
	}
}

func TestTextRoundTrip(t *testing.T) {
	for _, p := range []NetworkProtocol{NetworkTCP, NetworkTCP4, NetworkTCP6, NetworkUDP, NetworkUDP4, NetworkUDP6, NetworkUnix, NetworkUnixGram} {
		b, err := p.MarshalText()
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var got NetworkProtocol
		if err := got.UnmarshalText(b); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got != p {
			t.Fatalf("round trip mismatch: %v != %v", got, p)
		}
	}
}
