package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kmataru/lantern/internal/event"
)

func TestSeedLines(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "test.log")

	var content strings.Builder
	var all []string
	for i := 1; i <= 10; i++ {
		line := fmt.Sprintf("Line %d", i)
		content.WriteString(line + "\n")
		all = append(all, line)
	}
	if err := os.WriteFile(logPath, []byte(content.String()), 0644); err != nil {
		t.Fatalf("failed to create test log file: %v", err)
	}

	tests := []struct {
		name     string
		maxLines int
		expected []string
	}{
		{"zero is disabled", 0, nil},
		{"negative is disabled", -1, nil},
		{"partial (5)", 5, all[5:]},
		{"exactly all (10)", 10, all},
		{"more than exists (20)", 20, all},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SeedLines(logPath, tt.maxLines)
			if err != nil {
				t.Fatalf("SeedLines() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("SeedLines() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestSeedLinesMissingFile(t *testing.T) {
	got, err := SeedLines(filepath.Join(t.TempDir(), "absent.log"), 10)
	if err != nil || got != nil {
		t.Fatalf("SeedLines on missing file = %v, %v; want nil, nil", got, err)
	}
}

type collector struct {
	mu   sync.Mutex
	recs []event.Record
}

func (c *collector) sink(rec event.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recs = append(c.recs, rec)
}

func (c *collector) messages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.recs))
	for i, r := range c.recs {
		out[i] = r.Message
	}
	return out
}

func TestStream(t *testing.T) {
	input := strings.Join([]string{
		`{"level":"info","msg":"one"}`,
		`not json`,
		`{"level":"error","msg":"three"}`,
	}, "\n")

	c := &collector{}
	p := &Parser{DefaultSource: "stdin"}
	if err := Stream(context.Background(), strings.NewReader(input), p, c.sink); err != nil {
		t.Fatalf("Stream err = %v", err)
	}

	got := c.messages()
	want := []string{"one", "not json", "three"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("messages = %v, want %v", got, want)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.recs[2].Severity != event.Error {
		t.Fatalf("third record severity = %v, want Error", c.recs[2].Severity)
	}
}

func TestTailFileSeedsAndFollows(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "app.log")
	if err := os.WriteFile(logPath, []byte("{\"msg\":\"old\"}\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	c := &collector{}
	p := &Parser{DefaultSource: "app.log"}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- TailFile(ctx, logPath, 10, p, c.sink) }()

	// Wait for the seed to arrive, then append.
	waitFor(t, func() bool { return len(c.messages()) == 1 }, "seed line never delivered")

	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	if _, err := f.WriteString("{\"msg\":\"new\"}\n"); err != nil {
		t.Fatalf("append: %v", err)
	}
	f.Close()

	waitFor(t, func() bool { return len(c.messages()) == 2 }, "appended line never delivered")

	cancel()
	if err := <-errCh; err != nil {
		t.Fatalf("TailFile err = %v", err)
	}

	got := c.messages()
	if got[0] != "old" || got[1] != "new" {
		t.Fatalf("messages = %v, want [old new]", got)
	}
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}
