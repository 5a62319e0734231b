package view

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/kmataru/lantern/internal/event"
)

// ErrInvalidFilter is returned when a filter cannot be compiled, for
// example a malformed regular expression. It surfaces at SetFilter
// time, never during evaluation.
var ErrInvalidFilter = errors.New("invalid filter")

// Filter describes which records a view admits. The zero value matches
// everything: severity threshold at Trace, no text query, open time
// range, and an empty source list meaning "all sources".
type Filter struct {
	MinSeverity   event.Severity
	Query         string
	Regexp        bool // interpret Query as a regular expression instead of a substring
	CaseSensitive bool
	Since         time.Time // inclusive lower bound; zero means open
	Until         time.Time // inclusive upper bound; zero means open
	Sources       []string
}

// predicate is a compiled, immutable form of a Filter.
type predicate struct {
	minSeverity   event.Severity
	substring     string
	caseSensitive bool
	re            *regexp.Regexp
	since, until  time.Time
	sources       map[string]struct{}
}

// compile validates the filter and prepares it for evaluation.
func (f Filter) compile() (*predicate, error) {
	if !f.MinSeverity.Valid() {
		return nil, fmt.Errorf("%w: severity %d", ErrInvalidFilter, int(f.MinSeverity))
	}

	p := &predicate{
		minSeverity:   f.MinSeverity,
		caseSensitive: f.CaseSensitive,
		since:         f.Since,
		until:         f.Until,
	}

	if query := f.Query; query != "" {
		if f.Regexp {
			pattern := query
			if !f.CaseSensitive {
				pattern = "(?i)" + pattern
			}
			re, err := regexp.Compile(pattern)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
			}
			p.re = re
		} else {
			if f.CaseSensitive {
				p.substring = query
			} else {
				p.substring = strings.ToLower(query)
			}
		}
	}

	if len(f.Sources) > 0 {
		p.sources = make(map[string]struct{}, len(f.Sources))
		for _, src := range f.Sources {
			p.sources[src] = struct{}{}
		}
	}
	return p, nil
}

// match reports whether the record satisfies every clause of the filter.
func (p *predicate) match(rec event.Record) bool {
	if rec.Severity < p.minSeverity {
		return false
	}
	if p.sources != nil {
		if _, ok := p.sources[rec.Source]; !ok {
			return false
		}
	}
	if !p.since.IsZero() && rec.Time.Before(p.since) {
		return false
	}
	if !p.until.IsZero() && rec.Time.After(p.until) {
		return false
	}
	if p.re != nil {
		return p.re.MatchString(rec.Message)
	}
	if p.substring != "" {
		msg := rec.Message
		if !p.caseSensitive {
			msg = strings.ToLower(msg)
		}
		return strings.Contains(msg, p.substring)
	}
	return true
}
