package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestLoggerCollapsesRepeats(t *testing.T) {
	l := newLogger(8)
	l.log("bus", "unmapped read $0C000000")
	l.log("bus", "unmapped read $0C000000")
	l.log("bus", "unmapped read $0C000000")
	l.log("vdp", "invalid opcode $7F")

	entries := l.copy()
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Repeated != 2 {
		t.Fatalf("repeat count %d, want 2", entries[0].Repeated)
	}
	if got := entries[0].String(); got != "bus: unmapped read $0C000000 (repeat x3)\n" {
		t.Fatalf("unexpected entry text %q", got)
	}
}

func TestLoggerMaxEntries(t *testing.T) {
	l := newLogger(4)
	for _, d := range []string{"a", "b", "c", "d", "e", "f"} {
		l.log("t", d)
	}
	entries := l.copy()
	if len(entries) != 4 {
		t.Fatalf("got %d entries, want 4", len(entries))
	}
	if entries[0].Detail != "c" || entries[3].Detail != "f" {
		t.Fatalf("wrong entries retained: %v", entries)
	}
}

func TestLoggerTailAndEcho(t *testing.T) {
	l := newLogger(8)
	echo := &bytes.Buffer{}
	l.setEcho(echo)
	l.log("machine", "one")
	l.log("machine", "two")
	l.log("machine", "two")

	if got := strings.Count(echo.String(), "\n"); got != 2 {
		t.Fatalf("echoed %d lines, want 2 (repeats are not re-echoed)", got)
	}

	out := &bytes.Buffer{}
	l.tail(out, 1)
	if out.String() != "machine: two (repeat x2)\n" {
		t.Fatalf("unexpected tail %q", out.String())
	}

	out.Reset()
	l.tail(out, 10)
	if strings.Count(out.String(), "\n") != 2 {
		t.Fatalf("tail beyond length should return all entries, got %q", out.String())
	}
}

func TestLoggerStripsNewlines(t *testing.T) {
	l := newLogger(2)
	l.log("uart\n", "line\nbreak")
	e := l.copy()[0]
	if e.Tag != "uart" || e.Detail != "linebreak" {
		t.Fatalf("newlines not stripped: %+v", e)
	}
}
