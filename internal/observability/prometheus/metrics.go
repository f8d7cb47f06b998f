// Package prometheus wires Prometheus client_golang counters and
// histograms around the HTTP surface, grounded on the teacher's
// pkg/observability/prometheus/metrics.go (promauto-registered
// CounterVec/HistogramVec under a service-scoped registerer). This is
// additive instrumentation: the spec-mandated JSON report lives at
// GET /metrics (internal/metrics.Sink); these are exposed separately so
// neither surface has to emulate the other's shape.
package prometheus

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPMetrics holds the Prometheus collectors for the HTTP surface.
type HTTPMetrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewHTTPMetrics creates a fresh registry scoped to this nyrodb
// instance (the teacher's DefaultRegisterer pattern, made per-instance
// rather than a package-level singleton so multiple engines in one
// process, as in tests, do not collide on metric registration).
func NewHTTPMetrics() *HTTPMetrics {
	reg := prometheus.NewRegistry()
	registerer := prometheus.WrapRegistererWith(prometheus.Labels{"service": "nyrodb"}, reg)

	return &HTTPMetrics{
		registry: reg,
		requestsTotal: promauto.With(registerer).NewCounterVec(
			prometheus.CounterOpts{
				Name: "nyrodb_http_requests_total",
				Help: "Total number of HTTP requests handled.",
			},
			[]string{"method", "route", "status"},
		),
		requestDuration: promauto.With(registerer).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nyrodb_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

// Observe records one completed HTTP request.
func (m *HTTPMetrics) Observe(method, route string, status int, duration time.Duration) {
	m.requestsTotal.WithLabelValues(method, route, http.StatusText(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Handler returns the Prometheus scrape endpoint handler.
func (m *HTTPMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
