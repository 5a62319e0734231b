// Package ingest decouples concurrent log producers from the
// single-writer store. Producers enqueue records from any goroutine;
// one consumer loop drains them in batches, feeds the store and views,
// and delivers coalesced notifications.
package ingest

import (
	"sync/atomic"
	"time"

	"github.com/kmataru/lantern/internal/event"
)

// DefaultQueueCapacity bounds the ingestion queue when no capacity is
// configured.
const DefaultQueueCapacity = 4096

// OverflowPolicy selects what happens when a producer hits a full queue.
type OverflowPolicy int

const (
	// DropOldest evicts the oldest queued record to make room. Producers
	// never block and the newest data wins.
	DropOldest OverflowPolicy = iota
	// DropNewest discards the incoming record instead.
	DropNewest
)

// Queue is a bounded multi-producer/single-consumer buffer. Overflow is
// absorbed, counted, and never surfaced to producers as an error.
type Queue struct {
	ch      chan event.Record
	policy  OverflowPolicy
	dropped atomic.Uint64
}

// NewQueue creates a queue with the given capacity and overflow policy.
// Non-positive capacities fall back to DefaultQueueCapacity.
func NewQueue(capacity int, policy OverflowPolicy) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Queue{
		ch:     make(chan event.Record, capacity),
		policy: policy,
	}
}

// Enqueue hands a record to the consumer. It never blocks: on overflow
// the configured policy decides which record is dropped and the drop
// counter is bumped.
func (q *Queue) Enqueue(rec event.Record) {
	select {
	case q.ch <- rec:
		return
	default:
	}

	if q.policy == DropNewest {
		q.dropped.Add(1)
		return
	}

	// Drop the oldest queued record and retry once. When producers race
	// for the freed slot the loser drops its own record rather than wait.
	select {
	case <-q.ch:
		q.dropped.Add(1)
	default:
	}
	select {
	case q.ch <- rec:
	default:
		q.dropped.Add(1)
	}
}

// DrainBatch blocks up to maxWait for at least one record, then returns
// up to max records in arrival order without further waiting. A nil
// result means the wait elapsed empty.
func (q *Queue) DrainBatch(max int, maxWait time.Duration) []event.Record {
	if max <= 0 {
		return nil
	}

	var batch []event.Record
	select {
	case rec := <-q.ch:
		batch = append(batch, rec)
	default:
		if maxWait <= 0 {
			return nil
		}
		timer := time.NewTimer(maxWait)
		defer timer.Stop()
		select {
		case rec := <-q.ch:
			batch = append(batch, rec)
		case <-timer.C:
			return nil
		}
	}

	for len(batch) < max {
		select {
		case rec := <-q.ch:
			batch = append(batch, rec)
		default:
			return batch
		}
	}
	return batch
}

// Len returns the number of queued records.
func (q *Queue) Len() int { return len(q.ch) }

// Dropped returns the monotonic count of records lost to overflow.
func (q *Queue) Dropped() uint64 { return q.dropped.Load() }
