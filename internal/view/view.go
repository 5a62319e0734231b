// Package view maintains predicate-defined projections over the ring
// buffer store. A view's membership is updated incrementally as the
// consumer loop appends and evicts records, and recomputed in full when
// the filter changes.
package view

import (
	"log/slog"

	"github.com/kmataru/lantern/internal/store"
)

// Subscriber receives batch-coalesced change notifications. All
// callbacks run on the consumer goroutine; implementations must not
// block and must marshal to their own context if they need one.
type Subscriber interface {
	// OnReset replaces the subscriber's world with the full matching set.
	OnReset(entries []store.Entry)
	// OnAppended delivers newly matching entries in store order.
	OnAppended(entries []store.Entry)
	// OnEvicted delivers the identities of former members that left the store.
	OnEvicted(seqs []uint64)
}

// Subscription identifies one subscriber registration.
type Subscription int

// View is a derived membership index over a store. All methods are
// consumer-goroutine only; concurrent producers never touch a view.
type View struct {
	name  string
	store *store.Store

	filter Filter
	pred   *predicate

	seqs []uint64 // ordered membership, live portion is seqs[head:]
	head int
	set  map[uint64]struct{}

	pendingAdd   []store.Entry
	pendingEvict []uint64
	resetPending bool

	degraded bool

	subs    map[Subscription]Subscriber
	nextSub Subscription
}

// New creates a view over st with the given filter. A zero Filter
// admits every record.
func New(name string, st *store.Store, f Filter) (*View, error) {
	v := &View{
		name:  name,
		store: st,
		set:   make(map[uint64]struct{}),
		subs:  make(map[Subscription]Subscriber),
	}
	if err := v.SetFilter(f); err != nil {
		return nil, err
	}
	return v, nil
}

// Name returns the view's identifier.
func (v *View) Name() string { return v.name }

// Filter returns the active filter.
func (v *View) Filter() Filter { return v.filter }

// Degraded reports whether the view stopped receiving incremental
// updates after a predicate fault. SetFilter clears the state.
func (v *View) Degraded() bool { return v.degraded }

// SetFilter replaces the active filter, re-evaluates the current store
// snapshot and queues a membership reset notification. A compile error
// leaves the previous filter in place.
func (v *View) SetFilter(f Filter) error {
	pred, err := f.compile()
	if err != nil {
		return err
	}
	v.filter = f
	v.pred = pred
	v.degraded = false

	v.seqs = v.seqs[:0]
	v.head = 0
	clear(v.set)

	for _, entry := range v.store.Snapshot() {
		if v.matchSafe(entry) {
			v.seqs = append(v.seqs, entry.Seq)
			v.set[entry.Seq] = struct{}{}
		}
	}

	v.pendingAdd = nil
	v.pendingEvict = nil
	v.resetPending = true
	return nil
}

// OnAppend evaluates the filter against one newly stored entry and, on
// a match, appends it to the membership. Amortized O(1) plus the text
// match cost.
func (v *View) OnAppend(entry store.Entry) {
	if v.degraded {
		return
	}
	if !v.matchSafe(entry) {
		return
	}
	v.seqs = append(v.seqs, entry.Seq)
	v.set[entry.Seq] = struct{}{}
	v.pendingAdd = append(v.pendingAdd, entry)
}

// OnEvict drops the entry from the membership if present. Eviction is
// always oldest-first, so a member being evicted is necessarily the
// view's head; this keeps removal O(1) rather than O(membership).
func (v *View) OnEvict(entry store.Entry) {
	if _, ok := v.set[entry.Seq]; !ok {
		return
	}
	delete(v.set, entry.Seq)
	v.head++
	v.compact()
	// An entry appended and evicted within the same notification cycle
	// cancels out instead of reaching subscribers twice. The evicted
	// member is the oldest, so if it is still pending it is the front.
	if len(v.pendingAdd) > 0 && v.pendingAdd[0].Seq == entry.Seq {
		v.pendingAdd = v.pendingAdd[1:]
		return
	}
	v.pendingEvict = append(v.pendingEvict, entry.Seq)
}

// OnClear empties the membership and queues a reset.
func (v *View) OnClear() {
	v.seqs = v.seqs[:0]
	v.head = 0
	clear(v.set)
	v.pendingAdd = nil
	v.pendingEvict = nil
	v.resetPending = true
}

// MatchCount returns the current membership size.
func (v *View) MatchCount() int {
	return len(v.seqs) - v.head
}

// Seqs returns a copy of the membership identities in store order.
func (v *View) Seqs() []uint64 {
	out := make([]uint64, v.MatchCount())
	copy(out, v.seqs[v.head:])
	return out
}

// Entries materializes the matching entries from the store, in order.
func (v *View) Entries() []store.Entry {
	out := make([]store.Entry, 0, v.MatchCount())
	for _, entry := range v.store.Snapshot() {
		if _, ok := v.set[entry.Seq]; ok {
			out = append(out, entry)
		}
	}
	return out
}

// Subscribe registers a subscriber and returns its handle. The
// subscriber first hears about the view on the next notification flush.
func (v *View) Subscribe(sub Subscriber) Subscription {
	handle := v.nextSub
	v.nextSub++
	v.subs[handle] = sub
	return handle
}

// Unsubscribe stops delivery to the handle's subscriber.
func (v *View) Unsubscribe(handle Subscription) {
	delete(v.subs, handle)
}

// Flush delivers pending changes to all subscribers as one coalesced
// notification cycle. Called by the consumer loop once per drained
// batch, never per record.
func (v *View) Flush() {
	if v.resetPending {
		entries := v.Entries()
		for _, sub := range v.subs {
			sub.OnReset(entries)
		}
		v.resetPending = false
		v.pendingAdd = nil
		v.pendingEvict = nil
		return
	}
	if len(v.pendingEvict) > 0 {
		for _, sub := range v.subs {
			sub.OnEvicted(v.pendingEvict)
		}
		v.pendingEvict = nil
	}
	if len(v.pendingAdd) > 0 {
		for _, sub := range v.subs {
			sub.OnAppended(v.pendingAdd)
		}
		v.pendingAdd = nil
	}
}

// matchSafe guards predicate evaluation. A faulting predicate degrades
// this view alone; the record stays in the store and other views keep
// running.
func (v *View) matchSafe(entry store.Entry) (matched bool) {
	defer func() {
		if r := recover(); r != nil {
			v.degraded = true
			matched = false
			slog.Warn("view predicate fault, view degraded", "view", v.name, "seq", entry.Seq, "panic", r)
		}
	}()
	return v.pred.match(entry.Record)
}

// compact reclaims the dead prefix once it dominates the slice.
func (v *View) compact() {
	if v.head < 64 || v.head*2 < len(v.seqs) {
		return
	}
	v.seqs = append(v.seqs[:0], v.seqs[v.head:]...)
	v.head = 0
}
