package view

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/kmataru/lantern/internal/event"
	"github.com/kmataru/lantern/internal/store"
)

func rec(sev event.Severity, msg string) event.Record {
	return event.Record{Time: time.Now(), Severity: sev, Source: "test", Message: msg}
}

// appendAll pushes records through the store into the view the way the
// consumer loop does: append, then on-append, then on-evict.
func appendAll(t *testing.T, s *store.Store, v *View, recs ...event.Record) {
	t.Helper()
	for _, r := range recs {
		seq, evicted := s.Append(r)
		v.OnAppend(store.Entry{Seq: seq, Record: r})
		if evicted != nil {
			v.OnEvict(*evicted)
		}
	}
}

func newStore(t *testing.T, capacity int) *store.Store {
	t.Helper()
	s, err := store.New(capacity)
	if err != nil {
		t.Fatalf("store.New err = %v", err)
	}
	return s
}

func TestSeverityThreshold(t *testing.T) {
	// predicate severity >= warning over [info, warning, error].
	s := newStore(t, 10)
	v, err := New("errors", s, Filter{MinSeverity: event.Warn})
	if err != nil {
		t.Fatalf("New err = %v", err)
	}

	appendAll(t, s, v,
		rec(event.Info, "fine"),
		rec(event.Warn, "hmm"),
		rec(event.Error, "bad"),
	)

	if got := v.MatchCount(); got != 2 {
		t.Fatalf("MatchCount = %d, want 2", got)
	}
	entries := v.Entries()
	if entries[0].Record.Message != "hmm" || entries[1].Record.Message != "bad" {
		t.Fatalf("membership = %v, want [hmm bad] in arrival order", entries)
	}
}

func TestRegexCaseSensitive(t *testing.T) {
	s := newStore(t, 10)
	v, err := New("err-prefix", s, Filter{Query: "^ERR", Regexp: true, CaseSensitive: true})
	if err != nil {
		t.Fatalf("New err = %v", err)
	}
	appendAll(t, s, v,
		rec(event.Error, "ERR: disk full"),
		rec(event.Error, "err: disk full"),
	)
	if got := v.MatchCount(); got != 1 {
		t.Fatalf("MatchCount = %d, want 1", got)
	}
	if v.Entries()[0].Record.Message != "ERR: disk full" {
		t.Fatalf("matched %q", v.Entries()[0].Record.Message)
	}
}

func TestSubstringCaseInsensitiveByDefault(t *testing.T) {
	s := newStore(t, 10)
	v, _ := New("q", s, Filter{Query: "Disk"})
	appendAll(t, s, v,
		rec(event.Info, "disk almost full"),
		rec(event.Info, "memory fine"),
	)
	if got := v.MatchCount(); got != 1 {
		t.Fatalf("MatchCount = %d, want 1", got)
	}
}

func TestInvalidRegexSurfacesAtSetFilter(t *testing.T) {
	s := newStore(t, 10)
	v, _ := New("all", s, Filter{})
	appendAll(t, s, v, rec(event.Info, "a"))

	err := v.SetFilter(Filter{Query: "(unclosed", Regexp: true})
	if !errors.Is(err, ErrInvalidFilter) {
		t.Fatalf("SetFilter err = %v, want ErrInvalidFilter", err)
	}
	// Previous filter must remain active.
	appendAll(t, s, v, rec(event.Info, "b"))
	if got := v.MatchCount(); got != 2 {
		t.Fatalf("MatchCount = %d, want 2 after failed filter change", got)
	}
}

func TestInvalidSeverityInFilter(t *testing.T) {
	s := newStore(t, 10)
	if _, err := New("bad", s, Filter{MinSeverity: event.Severity(99)}); !errors.Is(err, ErrInvalidFilter) {
		t.Fatalf("New err = %v, want ErrInvalidFilter", err)
	}
}

func TestTimeRangeInclusive(t *testing.T) {
	s := newStore(t, 10)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	v, _ := New("window", s, Filter{Since: base, Until: base.Add(2 * time.Second)})

	times := []time.Time{base.Add(-time.Second), base, base.Add(time.Second), base.Add(2 * time.Second), base.Add(3 * time.Second)}
	for _, ts := range times {
		r := event.Record{Time: ts, Severity: event.Info, Message: "m"}
		appendAll(t, s, v, r)
	}
	if got := v.MatchCount(); got != 3 {
		t.Fatalf("MatchCount = %d, want 3 (both bounds inclusive)", got)
	}
}

func TestSourceAllowList(t *testing.T) {
	s := newStore(t, 10)
	v, _ := New("sources", s, Filter{Sources: []string{"scanner", "cache"}})
	for _, src := range []string{"scanner", "output", "cache", "github"} {
		r := event.Record{Time: time.Now(), Severity: event.Info, Source: src, Message: "m"}
		appendAll(t, s, v, r)
	}
	if got := v.MatchCount(); got != 2 {
		t.Fatalf("MatchCount = %d, want 2", got)
	}
}

func TestEmptyFilterMatchesEverything(t *testing.T) {
	s := newStore(t, 10)
	v, _ := New("all", s, Filter{})
	for i := 0; i < 6; i++ {
		appendAll(t, s, v, rec(event.Severity(i), "m"))
	}
	if got := v.MatchCount(); got != 6 {
		t.Fatalf("MatchCount = %d, want 6", got)
	}
}

func TestMatchCountAfterEvictions(t *testing.T) {
	// N matching appends and M matching evictions leave N-M members.
	s := newStore(t, 4)
	v, _ := New("all", s, Filter{})
	const total = 10
	for i := 0; i < total; i++ {
		appendAll(t, s, v, rec(event.Info, fmt.Sprintf("r%d", i)))
	}
	if got := v.MatchCount(); got != 4 {
		t.Fatalf("MatchCount = %d, want 4", got)
	}
	seqs := v.Seqs()
	for i, seq := range seqs {
		if want := uint64(total - 4 + i); seq != want {
			t.Fatalf("Seqs[%d] = %d, want %d", i, seq, want)
		}
	}
}

func TestIncrementalAgreesWithFullReevaluation(t *testing.T) {
	s := newStore(t, 16)
	incremental, _ := New("inc", s, Filter{MinSeverity: event.Warn, Query: "disk"})

	sevs := []event.Severity{event.Trace, event.Warn, event.Error, event.Info, event.Critical, event.Warn}
	msgs := []string{"disk spin", "disk full", "cpu hot", "disk ok", "disk gone", "net down"}
	for i := range sevs {
		appendAll(t, s, incremental, rec(sevs[i], msgs[i]))
	}

	// A second view built after the fact evaluates the same filter over
	// the same store state via the full pass.
	replayed, _ := New("full", s, Filter{MinSeverity: event.Warn, Query: "disk"})

	a, b := incremental.Seqs(), replayed.Seqs()
	if len(a) != len(b) {
		t.Fatalf("incremental %v vs full %v", a, b)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("incremental %v vs full %v", a, b)
		}
	}
}

func TestSetFilterIdempotent(t *testing.T) {
	s := newStore(t, 10)
	v, _ := New("idem", s, Filter{})
	appendAll(t, s, v, rec(event.Warn, "a"), rec(event.Error, "b"), rec(event.Info, "c"))

	f := Filter{MinSeverity: event.Warn}
	if err := v.SetFilter(f); err != nil {
		t.Fatalf("SetFilter err = %v", err)
	}
	first := v.Seqs()
	if err := v.SetFilter(f); err != nil {
		t.Fatalf("SetFilter err = %v", err)
	}
	second := v.Seqs()
	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("memberships %v / %v, want 2 each", first, second)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("memberships differ: %v vs %v", first, second)
		}
	}
}

func TestOnClearEmptiesMembership(t *testing.T) {
	s := newStore(t, 10)
	v, _ := New("c", s, Filter{})
	appendAll(t, s, v, rec(event.Info, "a"), rec(event.Info, "b"))
	s.Clear()
	v.OnClear()
	if got := v.MatchCount(); got != 0 {
		t.Fatalf("MatchCount = %d, want 0", got)
	}
	appendAll(t, s, v, rec(event.Info, "c"))
	if got := v.MatchCount(); got != 1 {
		t.Fatalf("MatchCount = %d, want 1 after clear", got)
	}
}

type recordingSub struct {
	resets   [][]store.Entry
	appended [][]store.Entry
	evicted  [][]uint64
}

func (r *recordingSub) OnReset(entries []store.Entry)    { r.resets = append(r.resets, entries) }
func (r *recordingSub) OnAppended(entries []store.Entry) { r.appended = append(r.appended, entries) }
func (r *recordingSub) OnEvicted(seqs []uint64)          { r.evicted = append(r.evicted, seqs) }

func TestFlushCoalescesPerBatch(t *testing.T) {
	s := newStore(t, 3)
	v, _ := New("sub", s, Filter{})
	sub := &recordingSub{}
	handle := v.Subscribe(sub)
	v.Flush() // drains the construction-time reset

	appendAll(t, s, v, rec(event.Info, "a"), rec(event.Info, "b"), rec(event.Info, "c"), rec(event.Info, "d"))
	v.Flush()

	// "a" was appended and evicted inside the same cycle, so it cancels
	// out: one coalesced batch of the three surviving entries.
	if len(sub.appended) != 1 || len(sub.appended[0]) != 3 {
		t.Fatalf("appended notifications = %v, want one batch of 3", sub.appended)
	}
	if sub.appended[0][0].Record.Message != "b" {
		t.Fatalf("first surviving entry = %q, want b", sub.appended[0][0].Record.Message)
	}
	if len(sub.evicted) != 0 {
		t.Fatalf("evicted notifications = %v, want none for a same-cycle entry", sub.evicted)
	}

	// Nothing pending: flush is a no-op.
	v.Flush()
	if len(sub.appended) != 1 || len(sub.evicted) != 0 {
		t.Fatalf("flush with nothing pending delivered notifications")
	}

	// An eviction of an entry from an earlier, already-flushed cycle is
	// delivered normally.
	appendAll(t, s, v, rec(event.Info, "e"))
	v.Flush()
	if len(sub.evicted) != 1 || len(sub.evicted[0]) != 1 || sub.evicted[0][0] != 1 {
		t.Fatalf("evicted notifications = %v, want one batch [1]", sub.evicted)
	}

	v.Unsubscribe(handle)
	appendAll(t, s, v, rec(event.Info, "f"))
	v.Flush()
	if len(sub.appended) != 2 {
		t.Fatalf("unsubscribed subscriber still notified")
	}
}

func TestSetFilterNotifiesReset(t *testing.T) {
	s := newStore(t, 10)
	v, _ := New("sub", s, Filter{})
	sub := &recordingSub{}
	v.Subscribe(sub)
	appendAll(t, s, v, rec(event.Warn, "a"), rec(event.Info, "b"))

	if err := v.SetFilter(Filter{MinSeverity: event.Warn}); err != nil {
		t.Fatalf("SetFilter err = %v", err)
	}
	v.Flush()

	if len(sub.resets) != 1 || len(sub.resets[0]) != 1 {
		t.Fatalf("resets = %v, want one reset with one entry", sub.resets)
	}
	if len(sub.appended) != 0 {
		t.Fatalf("reset flush should supersede per-record notifications, got %v", sub.appended)
	}
}

func TestDegradedViewStopsUpdating(t *testing.T) {
	s := newStore(t, 10)
	v, _ := New("fragile", s, Filter{})
	// Force a predicate fault.
	v.pred = nil

	appendAll(t, s, v, rec(event.Info, "a"))
	if !v.Degraded() {
		t.Fatal("view should be degraded after a predicate fault")
	}
	// The record is retained by the store even though the view dropped it.
	if s.Len() != 1 {
		t.Fatalf("store Len = %d, want 1", s.Len())
	}
	appendAll(t, s, v, rec(event.Info, "b"))
	if got := v.MatchCount(); got != 0 {
		t.Fatalf("degraded view accumulated %d members", got)
	}

	// SetFilter resets the degraded state.
	if err := v.SetFilter(Filter{}); err != nil {
		t.Fatalf("SetFilter err = %v", err)
	}
	if v.Degraded() {
		t.Fatal("SetFilter should clear degraded state")
	}
	if got := v.MatchCount(); got != 2 {
		t.Fatalf("MatchCount after recovery = %d, want 2", got)
	}
}

func TestEvictionCompaction(t *testing.T) {
	s := newStore(t, 8)
	v, _ := New("compact", s, Filter{})
	for i := 0; i < 1000; i++ {
		appendAll(t, s, v, rec(event.Info, "m"))
	}
	if got := v.MatchCount(); got != 8 {
		t.Fatalf("MatchCount = %d, want 8", got)
	}
	if len(v.seqs) > 200 {
		t.Fatalf("membership slice grew to %d entries for 8 members", len(v.seqs))
	}
}
