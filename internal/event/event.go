// Package event defines the immutable structured record that flows
// through the lantern pipeline.
package event

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidSeverity is returned when a record is constructed with a
// severity outside the defined range.
var ErrInvalidSeverity = errors.New("invalid severity")

// Severity is the ordered level of a record. Higher values are more severe.
type Severity int

const (
	Trace Severity = iota
	Debug
	Info
	Warn
	Error
	Critical
)

// String returns the upper-case label for the severity.
func (s Severity) String() string {
	switch s {
	case Trace:
		return "TRACE"
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Warn:
		return "WARN"
	case Error:
		return "ERROR"
	case Critical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// Valid reports whether s is one of the defined severities.
func (s Severity) Valid() bool {
	return s >= Trace && s <= Critical
}

// ParseSeverity converts a label such as "warn" or "WARNING" to a Severity.
func ParseSeverity(text string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "trace":
		return Trace, nil
	case "debug":
		return Debug, nil
	case "info", "information":
		return Info, nil
	case "warn", "warning":
		return Warn, nil
	case "error", "err":
		return Error, nil
	case "critical", "crit", "fatal":
		return Critical, nil
	default:
		return Info, fmt.Errorf("%w: %q", ErrInvalidSeverity, text)
	}
}

// Record is a single structured log event. Records are immutable once
// constructed and are shared by reference between the store and views,
// never copied per view.
type Record struct {
	Time      time.Time
	Severity  Severity
	Source    string
	ThreadID  string
	Message   string
	Fields    map[string]string
	Traceback string
}

// New constructs a Record. The only validation is the severity range;
// everything else is taken as given. Construction has no side effects.
func New(ts time.Time, sev Severity, source, threadID, message string, fields map[string]string, traceback string) (Record, error) {
	if !sev.Valid() {
		return Record{}, fmt.Errorf("%w: %d", ErrInvalidSeverity, int(sev))
	}
	return Record{
		Time:      ts,
		Severity:  sev,
		Source:    source,
		ThreadID:  threadID,
		Message:   message,
		Fields:    fields,
		Traceback: traceback,
	}, nil
}
