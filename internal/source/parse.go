// Package source turns external log streams into event records and
// feeds them to the ingestion queue. It is the producer side of the
// pipeline: everything here may run on arbitrary goroutines and only
// ever calls Enqueue.
package source

import (
	"strings"
	"time"

	"github.com/valyala/fastjson"

	"github.com/kmataru/lantern/internal/event"
)

// reserved keys consumed into dedicated record fields; everything else
// lands in Fields.
var reservedKeys = map[string]struct{}{
	"time": {}, "timestamp": {}, "ts": {},
	"level": {}, "severity": {},
	"source": {}, "logger": {}, "component": {},
	"thread": {}, "thread_id": {}, "goroutine": {},
	"message": {}, "msg": {},
	"traceback": {}, "stack": {}, "stacktrace": {},
}

// Parser converts NDJSON log lines into records. Lines that are not
// JSON objects become plain Info records so nothing is silently lost.
type Parser struct {
	pool          fastjson.ParserPool
	DefaultSource string
}

// Parse converts one line. It never fails: malformed input degrades to
// a raw-message record.
func (p *Parser) Parse(line []byte) event.Record {
	parser := p.pool.Get()
	defer p.pool.Put(parser)

	v, err := parser.ParseBytes(line)
	if err != nil || v.Type() != fastjson.TypeObject {
		return event.Record{
			Time:     time.Now(),
			Severity: event.Info,
			Source:   p.DefaultSource,
			Message:  strings.TrimRight(string(line), "\r\n"),
		}
	}

	rec := event.Record{
		Time:      parseTime(v),
		Severity:  parseLevel(v),
		Source:    firstString(v, "source", "logger", "component"),
		ThreadID:  firstString(v, "thread", "thread_id", "goroutine"),
		Message:   firstString(v, "message", "msg"),
		Traceback: firstString(v, "traceback", "stack", "stacktrace"),
	}
	if rec.Source == "" {
		rec.Source = p.DefaultSource
	}

	obj, _ := v.Object()
	if obj != nil {
		obj.Visit(func(key []byte, value *fastjson.Value) {
			k := string(key)
			if _, ok := reservedKeys[k]; ok {
				return
			}
			if rec.Fields == nil {
				rec.Fields = make(map[string]string)
			}
			rec.Fields[k] = scalarString(value)
		})
	}
	return rec
}

func parseTime(v *fastjson.Value) time.Time {
	for _, key := range []string{"time", "timestamp", "ts"} {
		field := v.Get(key)
		if field == nil {
			continue
		}
		switch field.Type() {
		case fastjson.TypeString:
			raw := string(field.GetStringBytes())
			for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
				if ts, err := time.Parse(layout, raw); err == nil {
					return ts
				}
			}
		case fastjson.TypeNumber:
			n := field.GetInt64()
			switch {
			case n > 1e17: // nanoseconds
				return time.Unix(0, n)
			case n > 1e14: // microseconds
				return time.UnixMicro(n)
			case n > 1e11: // milliseconds
				return time.UnixMilli(n)
			case n > 0: // seconds
				return time.Unix(n, 0)
			}
		}
	}
	return time.Now()
}

func parseLevel(v *fastjson.Value) event.Severity {
	for _, key := range []string{"level", "severity"} {
		if raw := string(v.GetStringBytes(key)); raw != "" {
			if sev, err := event.ParseSeverity(raw); err == nil {
				return sev
			}
		}
	}
	return event.Info
}

func firstString(v *fastjson.Value, keys ...string) string {
	for _, key := range keys {
		if raw := v.GetStringBytes(key); len(raw) > 0 {
			return string(raw)
		}
	}
	return ""
}

func scalarString(v *fastjson.Value) string {
	switch v.Type() {
	case fastjson.TypeString:
		return string(v.GetStringBytes())
	default:
		return v.String()
	}
}
