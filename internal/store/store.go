// Package store implements the bounded, FIFO-evicting ring buffer that
// holds recent event records.
package store

import (
	"errors"
	"fmt"
	"sync"

	"github.com/kmataru/lantern/internal/event"
)

// DefaultCapacity is used when no capacity is configured.
const DefaultCapacity = 20000

// ErrInvalidCapacity is returned for non-positive capacities.
var ErrInvalidCapacity = errors.New("invalid capacity")

// Entry pairs a record with its insertion sequence number. The sequence
// is assigned once at append time and is the record's stable identity
// across eviction.
type Entry struct {
	Seq    uint64
	Record event.Record
}

// Store is a fixed-capacity ordered container of entries. Appends come
// from a single consumer goroutine; snapshots may be taken from any
// goroutine and always see a consistent copy.
type Store struct {
	mu    sync.RWMutex
	buf   []Entry
	head  int // index of the oldest entry
	count int
	next  uint64 // next sequence number to assign
}

// New creates a store with the given capacity.
func New(capacity int) (*Store, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
	}
	return &Store{buf: make([]Entry, capacity)}, nil
}

// Append assigns the next sequence number to rec and inserts it at the
// tail. When the store is full the oldest entry is evicted and returned
// so views can drop it from their membership. Never blocks.
func (s *Store) Append(rec event.Record) (uint64, *Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seq := s.next
	s.next++

	entry := Entry{Seq: seq, Record: rec}
	if s.count < len(s.buf) {
		s.buf[(s.head+s.count)%len(s.buf)] = entry
		s.count++
		return seq, nil
	}

	evicted := s.buf[s.head]
	s.buf[s.head] = entry
	s.head = (s.head + 1) % len(s.buf)
	return seq, &evicted
}

// Snapshot returns a copy of all entries in insertion order.
func (s *Store) Snapshot() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyRange(s.first(), s.next)
}

// SnapshotRange returns a copy of the entries with sequence numbers in
// the half-open interval [from, to), clamped to what the store still
// holds. O(range length).
func (s *Store) SnapshotRange(from, to uint64) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if from < s.first() {
		from = s.first()
	}
	if to > s.next {
		to = s.next
	}
	return s.copyRange(from, to)
}

func (s *Store) copyRange(from, to uint64) []Entry {
	if to <= from {
		return nil
	}
	out := make([]Entry, 0, to-from)
	base := s.first()
	for seq := from; seq < to; seq++ {
		out = append(out, s.buf[(s.head+int(seq-base))%len(s.buf)])
	}
	return out
}

// Resize changes the capacity. Shrinking below the current length
// evicts the oldest entries; they are returned oldest-first so the
// caller can emit one eviction notification per entry.
func (s *Store) Resize(capacity int) ([]Entry, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var evicted []Entry
	for s.count > capacity {
		evicted = append(evicted, s.buf[s.head])
		s.head = (s.head + 1) % len(s.buf)
		s.count--
	}

	repacked := make([]Entry, capacity)
	for i := 0; i < s.count; i++ {
		repacked[i] = s.buf[(s.head+i)%len(s.buf)]
	}
	s.buf = repacked
	s.head = 0
	return evicted, nil
}

// Clear empties the store. The sequence counter is not reset so
// identities stay unique across a clear.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.head = 0
	s.count = 0
}

// Len returns the number of stored entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

// Cap returns the current capacity.
func (s *Store) Cap() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.buf)
}

// FirstSeq returns the sequence number of the oldest stored entry.
// When the store is empty it equals NextSeq.
func (s *Store) FirstSeq() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.first()
}

// NextSeq returns the sequence number the next append will receive.
func (s *Store) NextSeq() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.next
}

func (s *Store) first() uint64 {
	return s.next - uint64(s.count)
}
