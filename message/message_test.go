package message

import "testing"

func buildSample(t *testing.T) Message {
	t.Helper()
	m := New("serverA", "serviceB", "PING")
	if err := m.Parameters.Set("serial", "42"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.Parameters.Set("note", "hello world & friends"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m.SentFromServer = "origin"
	m.SentFromService = "originsvc"
	return m
}

func TestTextRoundTrip(t *testing.T) {
	m := buildSample(t)
	b, err := EncodeText(m)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	got, err := DecodeText(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if got.Command != m.Command || got.Server != m.Server || got.Service != m.Service {
		t.Fatalf("routing fields mismatch: %+v != %+v", got, m)
	}
	if !got.Parameters.Equal(m.Parameters) {
		t.Fatalf("parameters mismatch: %+v != %+v", got.Parameters, m.Parameters)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	m := buildSample(t)
	b, err := EncodeJSON(m)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	got, err := DecodeJSON(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if got.Command != m.Command || got.Server != m.Server || got.Service != m.Service {
		t.Fatalf("routing fields mismatch: %+v != %+v", got, m)
	}
	if !got.Parameters.Equal(m.Parameters) {
		t.Fatalf("parameters mismatch: %+v != %+v", got.Parameters, m.Parameters)
	}
}

func TestAutoDetect(t *testing.T) {
	m := buildSample(t)

	tb, _ := EncodeText(m)
	if IsJSON(tb) {
		t.Fatalf("text line misdetected as JSON")
	}

	jb, _ := EncodeJSON(m)
	if !IsJSON(jb) {
		t.Fatalf("json line not detected")
	}

	got, err := Decode(jb)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Command != m.Command {
		t.Fatalf("command mismatch after auto-detect decode")
	}
}

func TestEmptyCommandRejected(t *testing.T) {
	m := New("", "", "")
	if _, err := EncodeText(m); err == nil {
		t.Fatalf("expected error encoding empty command")
	}
	if _, err := EncodeJSON(m); err == nil {
		t.Fatalf("expected error encoding empty command")
	}
}

func TestDuplicateParamOnDecode(t *testing.T) {
	_, err := DecodeText([]byte("PING a=1;a=2"))
	if err == nil {
		t.Fatalf("expected duplicate parameter error")
	}
}

func TestReplyTo(t *testing.T) {
	m := buildSample(t)
	r := m.ReplyTo()
	if r.Server != m.SentFromServer || r.Service != m.SentFromService {
		t.Fatalf("reply destination mismatch: %+v", r)
	}
	if r.SentFromServer != "" || r.SentFromService != "" {
		t.Fatalf("reply origin should start cleared: %+v", r)
	}
}

func TestDestinationPrefixes(t *testing.T) {
	local := New("", "", "HELP")
	if !local.IsLocal() {
		t.Fatalf("expected empty destination to be local")
	}

	dotLocal := New(".", ".", "HELP")
	if !dotLocal.IsLocal() {
		t.Fatalf("expected '.' destination to be local")
	}

	broadcast := New("*", "", "PING")
	if !broadcast.IsBroadcast() {
		t.Fatalf("expected '*' server to be broadcast")
	}

	others := New("?", "", "PING")
	if !others.IsBroadcast() {
		t.Fatalf("expected '?' server to be broadcast")
	}
}

func TestInvalidParamName(t *testing.T) {
	var p Params
	if err := p.Set("9bad", "x"); err == nil {
		t.Fatalf("expected error for invalid parameter name")
	}
}

func TestValueWithReservedCharactersRoundTrips(t *testing.T) {
	m := New("", "", "NOTE")
	if err := m.Parameters.Set("text", "a;b=c&d e%f"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	b, err := EncodeText(m)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeText(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	v, ok := got.Parameters.Get("text")
	if !ok || v != "a;b=c&d e%f" {
		t.Fatalf("value mismatch after round trip: %q", v)
	}
}
