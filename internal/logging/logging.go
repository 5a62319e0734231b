// Package logging configures lantern's own diagnostics. Besides the
// usual stderr handler it provides a slog.Handler that feeds the
// pipeline, so the tool's internal events show up in the same viewer
// as everything else.
package logging

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/kmataru/lantern/internal/event"
)

// Init creates and sets the package-level default slog logger, writing
// human-readable text to stderr so it never mixes with exported data on
// stdout.
func Init(level slog.Level) {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

// ParseLevel converts a string ("debug", "info", "warn", "error") to
// slog.Level. Unknown strings default to LevelInfo.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug", "trace":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "critical":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Severity maps a slog level onto the pipeline's severity scale.
func Severity(level slog.Level) event.Severity {
	switch {
	case level < slog.LevelDebug:
		return event.Trace
	case level < slog.LevelInfo:
		return event.Debug
	case level < slog.LevelWarn:
		return event.Info
	case level < slog.LevelError:
		return event.Warn
	case level == slog.LevelError:
		return event.Error
	default:
		return event.Critical
	}
}

// PipelineHandler is a slog.Handler that converts records into pipeline
// events. It is safe for concurrent use: it only ever calls the sink,
// which is the ingestion queue's non-blocking Enqueue.
type PipelineHandler struct {
	sink   func(event.Record)
	source string
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

// NewPipelineHandler creates a handler emitting records labeled with
// source, filtered below level.
func NewPipelineHandler(sink func(event.Record), source string, level slog.Level) *PipelineHandler {
	return &PipelineHandler{sink: sink, source: source, level: level}
}

// Enabled implements slog.Handler.
func (h *PipelineHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

// Handle implements slog.Handler.
func (h *PipelineHandler) Handle(_ context.Context, r slog.Record) error {
	var fields map[string]string
	add := func(key string, value slog.Value) {
		if key == "" {
			return
		}
		if fields == nil {
			fields = make(map[string]string)
		}
		fields[key] = value.String()
	}
	// Handler attrs carry their group prefix already (see WithAttrs).
	for _, a := range h.attrs {
		add(a.Key, a.Value)
	}
	prefix := strings.Join(h.groups, ".")
	r.Attrs(func(a slog.Attr) bool {
		key := a.Key
		if prefix != "" && key != "" {
			key = prefix + "." + key
		}
		add(key, a.Value)
		return true
	})

	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	h.sink(event.Record{
		Time:     ts,
		Severity: Severity(r.Level),
		Source:   h.source,
		Message:  r.Message,
		Fields:   fields,
	})
	return nil
}

// WithAttrs implements slog.Handler. Keys are qualified with the
// handler's open groups at attach time, matching slog's scoping rules.
func (h *PipelineHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	dup := *h
	prefix := strings.Join(h.groups, ".")
	qualified := make([]slog.Attr, 0, len(attrs))
	for _, a := range attrs {
		if prefix != "" && a.Key != "" {
			a.Key = prefix + "." + a.Key
		}
		qualified = append(qualified, a)
	}
	dup.attrs = append(append([]slog.Attr(nil), h.attrs...), qualified...)
	return &dup
}

// WithGroup implements slog.Handler.
func (h *PipelineHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	dup := *h
	dup.groups = append(append([]string(nil), h.groups...), name)
	return &dup
}
