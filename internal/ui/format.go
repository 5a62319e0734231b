package ui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kmataru/lantern/internal/store"
)

// formatEntry renders one store entry as a display line. Multi-line
// tracebacks stay attached to their entry so the viewport scrolls them
// as a unit.
func formatEntry(e store.Entry) string {
	rec := e.Record
	ts := ""
	if !rec.Time.IsZero() {
		ts = rec.Time.In(time.Local).Format("2006-01-02 15:04:05")
	}
	parts := []string{}
	if ts != "" {
		parts = append(parts, ts)
	}
	parts = append(parts, rec.Severity.String())
	if source := strings.TrimSpace(rec.Source); source != "" {
		parts = append(parts, fmt.Sprintf("[%s]", source))
	}
	if thread := strings.TrimSpace(rec.ThreadID); thread != "" {
		parts = append(parts, fmt.Sprintf("(%s)", thread))
	}
	header := strings.Join(parts, " ")
	if message := strings.TrimSpace(rec.Message); message != "" {
		header += " " + message
	}
	if len(rec.Fields) == 0 && rec.Traceback == "" {
		return header
	}

	var builder strings.Builder
	builder.WriteString(header)
	for _, key := range sortedKeys(rec.Fields) {
		value := strings.TrimSpace(rec.Fields[key])
		if value == "" {
			continue
		}
		builder.WriteString("\n    - ")
		builder.WriteString(key)
		builder.WriteString(": ")
		builder.WriteString(value)
	}
	if tb := strings.TrimRight(rec.Traceback, "\n"); tb != "" {
		for _, line := range strings.Split(tb, "\n") {
			builder.WriteString("\n    ")
			builder.WriteString(line)
		}
	}
	return builder.String()
}

func sortedKeys(fields map[string]string) []string {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func humanizeCount(n int) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case n >= 10_000:
		return fmt.Sprintf("%.1fk", float64(n)/1_000)
	default:
		return fmt.Sprintf("%d", n)
	}
}

func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	if limit <= 0 {
		return value
	}
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	if limit <= 1 {
		return string(runes[:limit])
	}
	return string(runes[:limit-1]) + "…"
}
