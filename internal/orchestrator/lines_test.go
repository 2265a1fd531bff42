package orchestrator

import (
	"reflect"
	"strings"
	"testing"
)

func TestLineSplitter(t *testing.T) {
	tests := []struct {
		name  string
		reads []string
		want  [][]string
		flush []string
	}{
		{"single line", []string{"hello\n"}, [][]string{{"hello"}}, nil},
		{"two lines one read", []string{"a\nb\n"}, [][]string{{"a", "b"}}, nil},
		{"split across reads", []string{"hel", "lo\nwor", "ld\n"}, [][]string{nil, {"hello"}, {"world"}}, nil},
		{"crlf", []string{"build\r\n", "done\r\r\n"}, [][]string{{"build"}, {"done"}}, nil},
		{"unterminated tail", []string{"a\npartial"}, [][]string{{"a"}}, []string{"partial"}},
		{"empty lines kept", []string{"\n\n"}, [][]string{{"", ""}}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s lineSplitter
			for i, read := range tt.reads {
				got := s.Feed([]byte(read))
				if !reflect.DeepEqual(got, tt.want[i]) {
					t.Fatalf("Feed(%q) = %#v, want %#v", read, got, tt.want[i])
				}
			}
			if got := s.Flush(); !reflect.DeepEqual(got, tt.flush) {
				t.Fatalf("Flush() = %#v, want %#v", got, tt.flush)
			}
		})
	}
}

func TestLineSplitterFlushesOverlongLine(t *testing.T) {
	var s lineSplitter
	long := strings.Repeat("x", maxLineLength)

	got := s.Feed([]byte(long))
	if len(got) != 1 || len(got[0]) != maxLineLength {
		t.Fatalf("expected one overlong line, got %d lines", len(got))
	}
	if rest := s.Flush(); rest != nil {
		t.Fatalf("expected empty buffer after overlong flush, got %q", rest)
	}
}
