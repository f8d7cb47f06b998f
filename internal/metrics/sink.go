// Package metrics implements the Metrics Sink (spec.md §4.6, C6):
// monotonic counters plus bounded latency reservoirs, snapshotted on
// demand. Grounded on the teacher's atomic-counter style
// (pkg/appendlog/fs_store.go's Stats()) but adds the approximate
// reservoir-eviction and percentile computation spec.md names, which
// has no counterpart in the teacher (a gauge-only Prometheus exporter
// cannot express "drop oldest half on overflow" or p99-from-a-window;
// see DESIGN.md).
package metrics

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Sink accumulates counters and latency samples.
type Sink struct {
	startedAt time.Time

	totalInserts atomic.Uint64
	totalGets    atomic.Uint64
	totalQueries atomic.Uint64

	maxSamples int

	insertMu  sync.Mutex
	insertLat []float64 // milliseconds

	getMu  sync.Mutex
	getLat []float64
}

// New creates a Sink whose reservoirs cap at maxSamples entries.
func New(maxSamples int) *Sink {
	if maxSamples <= 0 {
		maxSamples = 1000
	}
	return &Sink{
		startedAt:  time.Now(),
		maxSamples: maxSamples,
	}
}

// RecordInsert records one insert's latency. Best-effort: a contended
// write may be skipped rather than blocking (spec.md §4.6).
func (s *Sink) RecordInsert(latencyMs float64) {
	s.totalInserts.Add(1)
	if s.insertMu.TryLock() {
		s.insertLat = appendSample(s.insertLat, latencyMs, s.maxSamples)
		s.insertMu.Unlock()
	}
}

// RecordGet records one get's latency.
func (s *Sink) RecordGet(latencyMs float64) {
	s.totalGets.Add(1)
	if s.getMu.TryLock() {
		s.getLat = appendSample(s.getLat, latencyMs, s.maxSamples)
		s.getMu.Unlock()
	}
}

// RecordQuery increments the query counter (queries have no latency
// reservoir per spec.md §4.6, which only names insert/get reservoirs).
func (s *Sink) RecordQuery() {
	s.totalQueries.Add(1)
}

// appendSample appends v to samples, and when the cap is exceeded drops
// the oldest half in one step (spec.md §4.6: "approximate reservoir
// eviction").
func appendSample(samples []float64, v float64, cap int) []float64 {
	samples = append(samples, v)
	if len(samples) > cap {
		half := len(samples) / 2
		kept := make([]float64, len(samples)-half)
		copy(kept, samples[half:])
		samples = kept
	}
	return samples
}

// Report is a point-in-time snapshot.
type Report struct {
	UptimeSeconds    float64 `json:"uptime_seconds"`
	TotalInserts     uint64  `json:"total_inserts"`
	TotalGets        uint64  `json:"total_gets"`
	TotalQueries     uint64  `json:"total_queries"`
	InsertsPerSecond float64 `json:"inserts_per_second"`
	GetsPerSecond    float64 `json:"gets_per_second"`
	QueriesPerSecond float64 `json:"queries_per_second"`
	InsertLatencyMs  LatencyStats `json:"insert_latency_ms"`
	GetLatencyMs     LatencyStats `json:"get_latency_ms"`
}

// LatencyStats summarizes a reservoir.
type LatencyStats struct {
	Samples int     `json:"samples"`
	MeanMs  float64 `json:"mean_ms"`
	P99Ms   float64 `json:"p99_ms"`
}

// Snapshot computes a Report from the current counters and reservoirs.
func (s *Sink) Snapshot() Report {
	uptime := time.Since(s.startedAt).Seconds()
	if uptime <= 0 {
		uptime = 1
	}

	inserts := s.totalInserts.Load()
	gets := s.totalGets.Load()
	queries := s.totalQueries.Load()

	s.insertMu.Lock()
	insertStats := summarize(s.insertLat)
	s.insertMu.Unlock()

	s.getMu.Lock()
	getStats := summarize(s.getLat)
	s.getMu.Unlock()

	return Report{
		UptimeSeconds:    uptime,
		TotalInserts:     inserts,
		TotalGets:        gets,
		TotalQueries:     queries,
		InsertsPerSecond: float64(inserts) / uptime,
		GetsPerSecond:    float64(gets) / uptime,
		QueriesPerSecond: float64(queries) / uptime,
		InsertLatencyMs:  insertStats,
		GetLatencyMs:     getStats,
	}
}

func summarize(samples []float64) LatencyStats {
	if len(samples) == 0 {
		return LatencyStats{}
	}
	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	mean := sum / float64(len(sorted))

	idx := int(float64(len(sorted))*0.99) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}

	return LatencyStats{Samples: len(sorted), MeanMs: mean, P99Ms: sorted[idx]}
}
