package httpapi

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/TheRemyyy/nyro-db/internal/gate"
	"github.com/TheRemyyy/nyro-db/internal/logging"
	"github.com/TheRemyyy/nyro-db/internal/observability/prometheus"
)

// middleware wraps a handler with cross-cutting behavior. Grounded on the
// teacher's pkg/web middleware chain shape (func(http.Handler) http.Handler),
// composed outside-in the same way pkg/web/server.go builds its chain.
type middleware func(http.Handler) http.Handler

func chain(h http.Handler, mws ...middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// requestIDMiddleware assigns each request a UUID (teacher's
// pkg/core/request_id.go pattern), surfaced via RequestID(ctx) and echoed
// back as a response header for client-side correlation.
func requestIDMiddleware() middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := uuid.NewString()
			w.Header().Set("X-Request-Id", id)
			r = r.WithContext(withRequestID(r.Context(), id))
			next.ServeHTTP(w, r)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// requestLoggingMiddleware logs method, path, status, and duration when
// logging.log_requests is enabled (SPEC_FULL.md §4).
func requestLoggingMiddleware(log logging.Logger) middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			log.Infof("%s %s -> %d (%s) request_id=%s", r.Method, r.URL.Path, rec.status,
				time.Since(start), RequestID(r.Context()))
		})
	}
}

// authMiddleware enforces the x-api-key header when enabled is true
// (spec.md §6: "missing/incorrect yields 401").
func authMiddleware(enabled bool, apiKey string) middleware {
	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("x-api-key") != apiKey {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// gateMiddleware bounds concurrent request-level operations through the
// Concurrency Gate (spec.md §4.5, C5).
func gateMiddleware(g *gate.Gate) middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := g.Acquire(r.Context()); err != nil {
				writeError(w, http.StatusServiceUnavailable, "server busy, try again")
				return
			}
			defer g.Release()
			next.ServeHTTP(w, r)
		})
	}
}

// prometheusMiddleware records request count/duration for the additive
// Prometheus surface (SPEC_FULL.md §3).
func prometheusMiddleware(m *prometheus.HTTPMetrics, route string) middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			m.Observe(r.Method, route, rec.status, time.Since(start))
		})
	}
}
