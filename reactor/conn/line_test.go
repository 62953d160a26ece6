package conn

import (
	"reflect"
	"testing"
)

func TestLineFramerSplitsCompleteLines(t *testing.T) {
	var got []string
	f := NewLineFramer(func(line []byte) {
		got = append(got, string(line))
	}, nil)

	f.Feed([]byte("hello\nwor"))
	f.Feed([]byte("ld\r\n"))

	want := []string{"hello", "world"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestLineFramerOverflow(t *testing.T) {
	overflowed := false
	f := NewLineFramer(func([]byte) {}, func() { overflowed = true })
	f.maxLine = 4

	f.Feed([]byte("this line has no terminator yet"))
	if !overflowed {
		t.Fatalf("expected overflow callback once maxLine exceeded")
	}
}

func TestLineFramerPartialLineSurvives(t *testing.T) {
	var got []string
	f := NewLineFramer(func(line []byte) {
		got = append(got, string(line))
	}, nil)

	f.Feed([]byte("partial"))
	if len(got) != 0 {
		t.Fatalf("expected no lines yet, got %v", got)
	}
	f.Feed([]byte(" line\n"))
	if len(got) != 1 || got[0] != "partial line" {
		t.Fatalf("got %v", got)
	}
}
