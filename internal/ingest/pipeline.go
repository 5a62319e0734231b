package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kmataru/lantern/internal/event"
	"github.com/kmataru/lantern/internal/store"
	"github.com/kmataru/lantern/internal/view"
)

const (
	// DefaultBatchSize bounds how many records one drain cycle may apply.
	DefaultBatchSize = 256
	// DefaultMaxWait bounds how long the consumer waits for the first
	// record of a batch, and therefore the notification rate.
	DefaultMaxWait = 100 * time.Millisecond
)

// Options tune the consumer loop.
type Options struct {
	BatchSize int
	MaxWait   time.Duration
}

// Pipeline owns the store and all views. Its Run loop is the only
// writer to store state and view membership, so subscriber callbacks
// need no locking as long as they run inside the notifications.
type Pipeline struct {
	queue     *Queue
	store     *store.Store
	views     map[string]*view.View
	batchSize int
	maxWait   time.Duration

	control chan func()
	done    chan struct{}
}

// NewPipeline wires a queue and store together. Views are attached with
// AddView before Run, or any time after via the control channel.
func NewPipeline(q *Queue, st *store.Store, opts Options) *Pipeline {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	maxWait := opts.MaxWait
	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}
	return &Pipeline{
		queue:     q,
		store:     st,
		views:     make(map[string]*view.View),
		batchSize: batchSize,
		maxWait:   maxWait,
		control:   make(chan func(), 16),
		done:      make(chan struct{}),
	}
}

// Store returns the pipeline's store, the sole feed for bulk export.
func (p *Pipeline) Store() *store.Store { return p.store }

// Enqueue forwards to the queue so producers only need the pipeline.
func (p *Pipeline) Enqueue(rec event.Record) { p.queue.Enqueue(rec) }

// Dropped reports records lost to queue overflow.
func (p *Pipeline) Dropped() uint64 { return p.queue.Dropped() }

// AddView registers a view. Safe before Run; once the loop is running
// use the control path via Do.
func (p *Pipeline) AddView(v *view.View) { p.views[v.Name()] = v }

// View returns a registered view by name.
func (p *Pipeline) View(name string) (*view.View, bool) {
	v, ok := p.views[name]
	return v, ok
}

// Run drains the queue until ctx is cancelled. Each cycle: drain one
// batch, append every record, feed view membership, then flush one
// coalesced notification per view. On cancellation the in-flight batch
// is finished and pending notifications are flushed before returning.
func (p *Pipeline) Run(ctx context.Context) {
	defer close(p.done)
	for {
		select {
		case <-ctx.Done():
			p.applyBatch(p.queue.DrainBatch(p.batchSize, 0))
			p.flushViews()
			return
		case op := <-p.control:
			op()
			p.flushViews()
			continue
		default:
		}

		if batch := p.queue.DrainBatch(p.batchSize, p.maxWait); len(batch) > 0 {
			p.applyBatch(batch)
			p.flushViews()
		}
	}
}

// Done is closed when Run has exited.
func (p *Pipeline) Done() <-chan struct{} { return p.done }

func (p *Pipeline) applyBatch(batch []event.Record) {
	for _, rec := range batch {
		seq, evicted := p.store.Append(rec)
		entry := store.Entry{Seq: seq, Record: rec}
		for _, v := range p.views {
			if evicted != nil {
				v.OnEvict(*evicted)
			}
			v.OnAppend(entry)
		}
	}
}

func (p *Pipeline) flushViews() {
	for _, v := range p.views {
		v.Flush()
	}
}

// Do executes fn on the consumer goroutine and waits for it, so filter
// changes and store mutations never race with the batch loop. Falls
// back to running fn inline when the loop has already stopped.
func (p *Pipeline) Do(fn func()) {
	var once sync.Once
	run := func() { once.Do(fn) }
	doneOp := make(chan struct{})
	wrapped := func() {
		defer close(doneOp)
		run()
	}
	select {
	case p.control <- wrapped:
		select {
		case <-doneOp:
		case <-p.done:
			// Loop exited without servicing the op.
			run()
		}
	case <-p.done:
		run()
	}
}

// SetFilter replaces a view's filter on the consumer goroutine.
func (p *Pipeline) SetFilter(viewName string, f view.Filter) error {
	var err error
	p.Do(func() {
		v, ok := p.views[viewName]
		if !ok {
			err = fmt.Errorf("unknown view %q", viewName)
			return
		}
		err = v.SetFilter(f)
	})
	return err
}

// Resize changes the store capacity, feeding each evicted entry to
// every view oldest-first.
func (p *Pipeline) Resize(capacity int) error {
	var err error
	p.Do(func() {
		var evicted []store.Entry
		evicted, err = p.store.Resize(capacity)
		if err != nil {
			return
		}
		for _, entry := range evicted {
			for _, v := range p.views {
				v.OnEvict(entry)
			}
		}
	})
	return err
}

// Clear empties the store and resets every view with a single
// notification instead of per-entry evictions.
func (p *Pipeline) Clear() {
	p.Do(func() {
		p.store.Clear()
		for _, v := range p.views {
			v.OnClear()
		}
	})
}

// LogStats emits ambient diagnostics about the pipeline.
func (p *Pipeline) LogStats() {
	slog.Debug("pipeline stats",
		"stored", p.store.Len(),
		"capacity", p.store.Cap(),
		"queued", p.queue.Len(),
		"dropped", p.Dropped(),
	)
}
