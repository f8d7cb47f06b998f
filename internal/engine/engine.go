package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/TheRemyyy/nyro-db/internal/appendlog"
	"github.com/TheRemyyy/nyro-db/internal/batch"
	"github.com/TheRemyyy/nyro-db/internal/broadcast"
	"github.com/TheRemyyy/nyro-db/internal/codec"
	"github.com/TheRemyyy/nyro-db/internal/metrics"
	"github.com/TheRemyyy/nyro-db/internal/schema"
)

// Logger is the minimal logging surface the engine and its
// collaborators need.
type Logger interface {
	Info(args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// Config configures an Engine.
type Config struct {
	DataDir                 string
	BufferSize              int
	EnableMmap              bool
	SyncIntervalMs          int
	BatchSize               int
	BatchTimeout            time.Duration
	GracefulShutdownTimeout time.Duration
	Logger                  Logger
}

// Engine is the facade described by spec.md §4.7 (C7): it owns the
// segments map, the schema registry, the batch writer, the broadcaster,
// and the metrics sink, coordinating insert/get/query/shutdown across
// them. No back-pointers: collaborators are handed references they
// need at construction time (spec.md §9: "No cyclic ownership").
type Engine struct {
	cfg      Config
	registry *schema.Registry
	metrics  *metrics.Sink
	bcast    *broadcast.Broadcaster
	log      Logger

	segMu    sync.Mutex
	segments map[string]*appendlog.Segment

	writer *batch.Writer // nil when BatchSize <= 1 (synchronous path)

	shuttingDown chan struct{}
	shutdownOnce sync.Once
}

// segmentAdapter satisfies batch.SegmentAppender by discarding the
// appendlog.IndexEntry the batch writer doesn't need.
type segmentAdapter struct{ seg *appendlog.Segment }

func (a segmentAdapter) Append(ts uint64, op codec.Operation, data map[string]any) error {
	_, err := a.seg.Append(ts, op, data)
	return err
}

// New constructs an Engine. Log Segments are created lazily on first
// reference (spec.md §3 Lifecycles), so New does not touch disk beyond
// what the Registry requires.
func New(cfg Config, registry *schema.Registry, metricsSink *metrics.Sink, bcast *broadcast.Broadcaster) *Engine {
	e := &Engine{
		cfg:          cfg,
		registry:     registry,
		metrics:      metricsSink,
		bcast:        bcast,
		log:          cfg.Logger,
		segments:     make(map[string]*appendlog.Segment),
		shuttingDown: make(chan struct{}),
	}
	if cfg.BatchSize > 1 {
		e.writer = batch.New(batch.Config{
			BatchSize:    cfg.BatchSize,
			BatchTimeout: cfg.BatchTimeout,
			SegmentFor:   e.segmentAppenderFor,
			OnCommitted:  e.onBatchCommitted,
			Logger:       cfg.Logger,
		})
	}
	return e
}

func (e *Engine) segmentAppenderFor(model string) (batch.SegmentAppender, error) {
	seg, err := e.segmentFor(model)
	if err != nil {
		return nil, err
	}
	return segmentAdapter{seg: seg}, nil
}

// segmentFor returns the Log Segment for model, opening it on first
// reference.
func (e *Engine) segmentFor(model string) (*appendlog.Segment, error) {
	e.segMu.Lock()
	defer e.segMu.Unlock()
	if seg, ok := e.segments[model]; ok {
		return seg, nil
	}
	seg, err := appendlog.Open(appendlog.Config{
		DataDir:        e.cfg.DataDir,
		Model:          model,
		BufferSize:     e.cfg.BufferSize,
		EnableMmap:     e.cfg.EnableMmap,
		SyncIntervalMs: e.cfg.SyncIntervalMs,
		Logger:         e.log,
	})
	if err != nil {
		return nil, newError(KindStorageIO, fmt.Sprintf("open segment for model %q", model), err)
	}
	e.segments[model] = seg
	return seg, nil
}

// onBatchCommitted runs after the batch writer has appended a batched
// item to its segment's write buffer. The insert counter and its latency sample were already
// recorded synchronously in Insert at enqueue time (the batch path acks
// the client before durability, per spec.md §9); this only publishes
// the change event, in the order the batch iterated the model's items.
func (e *Engine) onBatchCommitted(item batch.Item) {
	e.publish(item.Model, item.Data)
}

func (e *Engine) publish(model string, data map[string]any) {
	payload, err := json.Marshal(data)
	if err != nil {
		e.log.Warnf("engine: failed to marshal change event for model %q: %v", model, err)
		return
	}
	e.bcast.PublishInsert(model, payload)
}

// ModelNames returns all registered model names, sorted.
func (e *Engine) ModelNames() []string { return e.registry.ModelNames() }

// Insert validates, projects, and persists obj under model, returning
// the assigned id (spec.md §4.7 insert).
func (e *Engine) Insert(model string, obj map[string]any) (uint64, error) {
	start := time.Now()

	if err := e.registry.Validate(model, obj); err != nil {
		return 0, classifyValidationError(err)
	}
	projected, err := e.registry.Project(model, obj)
	if err != nil {
		return 0, classifyValidationError(err)
	}
	id, err := schema.GetID(projected)
	if err != nil {
		return 0, newError(KindSchemaViolation, err.Error(), err)
	}

	ts := uint64(time.Now().UnixMilli())

	if e.writer != nil {
		// Ensure the segment exists before enqueueing so the batch
		// writer never sees an "unknown model" for a model the registry
		// actually knows (spec.md §4.3: "shouldn't occur").
		if _, err := e.segmentFor(model); err != nil {
			return 0, err
		}
		e.writer.Enqueue(batch.Item{Model: model, Timestamp: ts, Operation: codec.OpInsert, Data: projected})
		e.metrics.RecordInsert(float64(time.Since(start).Microseconds()) / 1000.0)
		return id, nil
	}

	// Degenerate synchronous path (spec.md §4.3: batch_size == 1).
	seg, err := e.segmentFor(model)
	if err != nil {
		return 0, err
	}
	if _, err := seg.Append(ts, codec.OpInsert, projected); err != nil {
		return 0, newError(KindStorageIO, "append failed", err)
	}
	e.metrics.RecordInsert(float64(time.Since(start).Microseconds()) / 1000.0)
	e.publish(model, projected)
	return id, nil
}

// Get performs a point read (spec.md §4.7 get).
func (e *Engine) Get(model string, id uint64) (map[string]any, error) {
	start := time.Now()
	if _, err := e.registry.Get(model); err != nil {
		return nil, newError(KindModelUnknown, err.Error(), err)
	}
	seg, err := e.segmentFor(model)
	if err != nil {
		return nil, err
	}
	res, ok, err := seg.Get(id)
	if err != nil {
		return nil, newError(KindStorageIO, "read failed", err)
	}
	if !ok {
		return nil, newError(KindNotFound, "Not found", nil)
	}
	e.metrics.RecordGet(float64(time.Since(start).Microseconds()) / 1000.0)
	return res.Data, nil
}

// QueryAll returns every record currently indexed for model (spec.md
// §4.7 query_all).
func (e *Engine) QueryAll(model string) ([]map[string]any, error) {
	if _, err := e.registry.Get(model); err != nil {
		return nil, newError(KindModelUnknown, err.Error(), err)
	}
	seg, err := e.segmentFor(model)
	if err != nil {
		return nil, err
	}
	results, err := seg.ScanAll()
	if err != nil {
		return nil, newError(KindStorageIO, "scan failed", err)
	}
	e.metrics.RecordQuery()
	out := make([]map[string]any, len(results))
	for i, r := range results {
		out[i] = r.Data
	}
	return out, nil
}

// QueryField performs an equality lookup (spec.md §4.7 query_field).
func (e *Engine) QueryField(model, field, value string) ([]map[string]any, error) {
	if _, err := e.registry.Get(model); err != nil {
		return nil, newError(KindModelUnknown, err.Error(), err)
	}
	seg, err := e.segmentFor(model)
	if err != nil {
		return nil, err
	}
	results, err := seg.QueryField(field, value)
	if err != nil {
		return nil, newError(KindStorageIO, "query failed", err)
	}
	e.metrics.RecordQuery()
	out := make([]map[string]any, len(results))
	for i, r := range results {
		out[i] = r.Data
	}
	return out, nil
}

// SnapshotMetrics returns the current metrics report (spec.md §4.7
// snapshot_metrics).
func (e *Engine) SnapshotMetrics() metrics.Report {
	return e.metrics.Snapshot()
}

// Shutdown sets the shutdown flag, gives the batch writer up to
// GracefulShutdownTimeout to drain, then flushes every segment (spec.md
// §4.7 shutdown).
func (e *Engine) Shutdown() error {
	var shutdownErr error
	e.shutdownOnce.Do(func() {
		close(e.shuttingDown)

		if e.writer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), e.cfg.GracefulShutdownTimeout)
			defer cancel()
			if err := e.writer.Shutdown(ctx); err != nil {
				e.log.Warnf("engine: batch writer drain did not finish cleanly: %v", err)
			}
		}

		e.segMu.Lock()
		defer e.segMu.Unlock()
		flushed := 0
		for model, seg := range e.segments {
			if err := seg.Close(); err != nil {
				e.log.Errorf("engine: flush failed for model %q: %v", model, err)
				shutdownErr = err
				continue
			}
			flushed++
		}
		e.log.Infof("engine: flushed %d segment(s) on shutdown", flushed)
	})
	return shutdownErr
}

func classifyValidationError(err error) error {
	if _, ok := err.(*schema.ErrModelUnknown); ok {
		return newError(KindModelUnknown, err.Error(), err)
	}
	return newError(KindSchemaViolation, err.Error(), err)
}

// AsEngineError extracts *Error from err, if it is one.
func AsEngineError(err error) (*Error, bool) {
	e, ok := err.(*Error)
	return e, ok
}
