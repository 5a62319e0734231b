package ui

import (
	"strings"
	"testing"
	"time"

	"github.com/kmataru/lantern/internal/event"
	"github.com/kmataru/lantern/internal/store"
)

func TestFormatEntry_FullRecord(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 26, 53, 0, time.Local)
	e := store.Entry{
		Seq: 42,
		Record: event.Record{
			Time:     ts,
			Severity: event.Error,
			Source:   "scanner",
			ThreadID: "worker-3",
			Message:  "read failed",
		},
	}

	got := formatEntry(e)
	want := "2026-03-14 09:26:53 ERROR [scanner] (worker-3) read failed"
	if got != want {
		t.Fatalf("formatEntry = %q, want %q", got, want)
	}
}

func TestFormatEntry_MinimalRecord(t *testing.T) {
	e := store.Entry{Record: event.Record{Severity: event.Info, Message: "hello"}}

	got := formatEntry(e)
	if got != "INFO hello" {
		t.Fatalf("formatEntry = %q, want %q", got, "INFO hello")
	}
}

func TestFormatEntry_FieldsSortedAndIndented(t *testing.T) {
	e := store.Entry{
		Record: event.Record{
			Severity: event.Warn,
			Message:  "slow query",
			Fields:   map[string]string{"table": "users", "elapsed": "1.2s"},
		},
	}

	got := formatEntry(e)
	lines := strings.Split(got, "\n")
	if len(lines) != 3 {
		t.Fatalf("formatEntry produced %d lines, want 3:\n%s", len(lines), got)
	}
	if lines[1] != "    - elapsed: 1.2s" {
		t.Fatalf("first field line = %q, want elapsed first", lines[1])
	}
	if lines[2] != "    - table: users" {
		t.Fatalf("second field line = %q, want table second", lines[2])
	}
}

func TestFormatEntry_TracebackIndented(t *testing.T) {
	e := store.Entry{
		Record: event.Record{
			Severity:  event.Critical,
			Message:   "unhandled fault",
			Traceback: "frame one\nframe two\n",
		},
	}

	got := formatEntry(e)
	lines := strings.Split(got, "\n")
	if len(lines) != 3 {
		t.Fatalf("formatEntry produced %d lines, want 3:\n%s", len(lines), got)
	}
	if lines[1] != "    frame one" || lines[2] != "    frame two" {
		t.Fatalf("traceback lines = %q, %q", lines[1], lines[2])
	}
}

func TestHumanizeCount(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, "0"},
		{999, "999"},
		{9999, "9999"},
		{10000, "10.0k"},
		{20000, "20.0k"},
		{1500000, "1.5M"},
	}
	for _, tt := range tests {
		if got := humanizeCount(tt.n); got != tt.want {
			t.Fatalf("humanizeCount(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("truncate = %q, want unchanged", got)
	}
	if got := truncate("a long value here", 7); got != "a long…" {
		t.Fatalf("truncate = %q, want %q", got, "a long…")
	}
	if got := truncate("anything", 0); got != "anything" {
		t.Fatalf("truncate with no limit = %q, want unchanged", got)
	}
}
