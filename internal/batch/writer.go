// Package batch implements the Batch Writer (spec.md §4.3, C3): a
// single-consumer queue that drains pending inserts, groups them by
// model, and hands each group to its Log Segment. Grounded on the
// teacher's fsStore.flushLoop (pkg/appendlog/fs_store.go): a dedicated
// goroutine ranging over a channel, with size- and timer-driven flush
// triggers, rather than a locking protocol shared across producers
// (spec.md §9: "Batching via a dedicated consumer, not locks").
package batch

import (
	"context"
	"sync"
	"time"

	"github.com/TheRemyyy/nyro-db/internal/codec"
)

// Item is one pending insert, already validated and projected by the
// engine facade; the batch writer only needs enough to hand it to the
// right segment.
type Item struct {
	Model     string
	Timestamp uint64
	Operation codec.Operation
	Data      map[string]any
}

// SegmentAppender is the append operation the writer needs. It mirrors
// appendlog.Segment.Append without that method's IndexEntry result, so a
// Segment is wrapped in an adapter (see internal/engine) to satisfy it.
// Kept as an interface so the writer and its tests do not depend on the
// appendlog package's concrete type.
type SegmentAppender interface {
	Append(ts uint64, op codec.Operation, data map[string]any) error
}

// SegmentFor resolves (creating on demand) the segment for a model name.
type SegmentFor func(model string) (SegmentAppender, error)

// OnCommitted is invoked once per successfully appended item, in the
// order the batch iterates that model's entries (spec.md §4.4: change
// events from one batch for one model are published in iteration
// order).
type OnCommitted func(item Item)

// Logger is the minimal logging surface the writer needs.
type Logger interface {
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// Config configures a Writer.
type Config struct {
	BatchSize      int
	BatchTimeout   time.Duration
	SegmentFor     SegmentFor
	OnCommitted    OnCommitted
	Logger         Logger
}

// Writer drains a producer queue bounded at 4096 items and flushes
// grouped batches to their Log Segments (spec.md §4.3).
//
// When BatchSize == 1, Writer is not used at all: the engine facade
// takes the synchronous append path directly (spec.md §4.3 "Degenerate
// case"). Writer is only constructed for BatchSize > 1.
type Writer struct {
	cfg   Config
	items chan Item

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopCh   chan struct{}
}

// New creates and starts a Writer's consumer loop.
func New(cfg Config) *Writer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 50 * time.Millisecond
	}
	w := &Writer{
		cfg:    cfg,
		items:  make(chan Item, 4096),
		stopCh: make(chan struct{}),
	}
	w.wg.Add(1)
	go w.run()
	return w
}

// Enqueue submits an item for asynchronous persistence. It returns once
// the item is accepted onto the internal channel; when that channel is
// full it waits until the consumer makes room or shutdown begins.
func (w *Writer) Enqueue(item Item) {
	select {
	case w.items <- item:
	case <-w.stopCh:
		// Best-effort: dropped because the writer is shutting down.
	}
}

// run is the single consumer loop: size- or timeout-triggered flush,
// with a best-effort drain on shutdown (spec.md §4.3 Termination).
func (w *Writer) run() {
	defer w.wg.Done()

	pending := make([]Item, 0, w.cfg.BatchSize)
	timer := time.NewTimer(w.cfg.BatchTimeout)
	defer timer.Stop()

	flush := func() {
		if len(pending) == 0 {
			return
		}
		w.processBatch(pending)
		pending = pending[:0]
	}

	for {
		select {
		case item, ok := <-w.items:
			if !ok {
				flush()
				return
			}
			pending = append(pending, item)
			if len(pending) >= w.cfg.BatchSize {
				flush()
				resetTimer(timer, w.cfg.BatchTimeout)
			}
		case <-timer.C:
			flush()
			resetTimer(timer, w.cfg.BatchTimeout)
		case <-w.stopCh:
			// Drain whatever already landed on the channel without
			// blocking further, then flush once and exit.
		drain:
			for {
				select {
				case item, ok := <-w.items:
					if !ok {
						break drain
					}
					pending = append(pending, item)
				default:
					break drain
				}
			}
			flush()
			return
		}
	}
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}

// processBatch partitions items by model and appends each group to its
// segment, logging and continuing past individual failures (spec.md
// §4.3 Processing / §7 propagation policy).
func (w *Writer) processBatch(items []Item) {
	byModel := make(map[string][]Item)
	order := make([]string, 0, 4)
	for _, it := range items {
		if _, seen := byModel[it.Model]; !seen {
			order = append(order, it.Model)
		}
		byModel[it.Model] = append(byModel[it.Model], it)
	}

	for _, model := range order {
		group := byModel[model]
		segment, err := w.cfg.SegmentFor(model)
		if err != nil {
			if w.cfg.Logger != nil {
				w.cfg.Logger.Warnf("batch: dropping %d item(s) for unknown model %q: %v", len(group), model, err)
			}
			continue
		}
		for _, it := range group {
			if err := segment.Append(it.Timestamp, it.Operation, it.Data); err != nil {
				if w.cfg.Logger != nil {
					w.cfg.Logger.Errorf("batch: append failed for model %q id=%v: %v", model, it.Data["id"], err)
				}
				continue
			}
			if w.cfg.OnCommitted != nil {
				w.cfg.OnCommitted(it)
			}
		}
	}
}

// Shutdown signals the consumer loop to perform a best-effort drain and
// waits up to the context deadline for it to exit (spec.md §4.3
// Termination, §4.7 shutdown's graceful_shutdown_timeout).
func (w *Writer) Shutdown(ctx context.Context) error {
	w.stopOnce.Do(func() { close(w.stopCh) })
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
