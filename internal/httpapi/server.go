// Package httpapi is the thin HTTP ingress spec.md §1 places outside the
// core: it decodes requests, calls the Engine Facade, and maps its typed
// errors to status codes (spec.md §7). Routing uses the standard
// library's pattern-matching http.ServeMux (Go 1.22+), the same
// dependency-free choice the teacher's own hand-rolled routers
// (pkg/web/router.go) make for a comparable exact-match API surface —
// see DESIGN.md.
package httpapi

import (
	"net/http"

	"github.com/TheRemyyy/nyro-db/internal/broadcast"
	"github.com/TheRemyyy/nyro-db/internal/config"
	"github.com/TheRemyyy/nyro-db/internal/engine"
	"github.com/TheRemyyy/nyro-db/internal/gate"
	"github.com/TheRemyyy/nyro-db/internal/logging"
	"github.com/TheRemyyy/nyro-db/internal/observability/prometheus"
	"github.com/TheRemyyy/nyro-db/internal/schema"
)

// Server holds every collaborator the HTTP surface needs to decode a
// request, invoke a core operation, and respond.
type Server struct {
	engine   *engine.Engine
	registry *schema.Registry
	bcast    *broadcast.Broadcaster
	cfg      config.Config
	gate     *gate.Gate
	log      logging.Logger
	prom     *prometheus.HTTPMetrics
}

// New constructs a Server. cfg is the already-validated effective
// configuration; registry must be the same Registry instance the engine
// was constructed with.
func New(e *engine.Engine, registry *schema.Registry, bcast *broadcast.Broadcaster, cfg config.Config, g *gate.Gate, log logging.Logger, prom *prometheus.HTTPMetrics) *Server {
	return &Server{
		engine:   e,
		registry: registry,
		bcast:    bcast,
		cfg:      cfg,
		gate:     g,
		log:      log,
		prom:     prom,
	}
}

// Handler builds the full routed, middleware-wrapped http.Handler
// (spec.md §6 route table, plus the SPEC_FULL.md §4 supplements).
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	s.route(mux, "POST /insert/{model}", s.handleInsert)
	s.route(mux, "GET /get/{model}/{id}", s.handleGet)
	s.route(mux, "GET /query/{model}", s.handleQueryAll)
	s.route(mux, "GET /query/{model}/{field}/{value}", s.handleQueryField)
	s.route(mux, "GET /metrics", s.handleMetrics)
	s.route(mux, "POST /benchmark/{model}/{n}", s.handleBenchmark)
	s.route(mux, "GET /config", s.handleConfig)
	s.route(mux, "GET /models", s.handleModels)

	// The realtime upgrade skips the concurrency gate (it holds a
	// permit for the connection's lifetime otherwise, starving short
	// requests) but still gets auth, request-id, and logging.
	mux.Handle("GET /ws", chain(serveWebSocket(s.bcast, s.log), s.baseMiddleware("/ws")...))

	mux.Handle("GET /healthz", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	if s.prom != nil {
		mux.Handle("GET /metrics/prometheus", s.prom.Handler())
	}

	return mux
}

// route registers pattern with the full middleware chain, including the
// Concurrency Gate (spec.md §4.5).
func (s *Server) route(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mws := append(s.baseMiddleware(pattern), gateMiddleware(s.gate))
	mux.Handle(pattern, chain(h, mws...))
}

func (s *Server) baseMiddleware(route string) []middleware {
	mws := []middleware{requestIDMiddleware()}
	if s.prom != nil {
		mws = append(mws, prometheusMiddleware(s.prom, route))
	}
	if s.cfg.Logging.LogRequests {
		mws = append(mws, requestLoggingMiddleware(s.log))
	}
	mws = append(mws, authMiddleware(s.cfg.Security.EnableAuth, s.cfg.Security.APIKey))
	return mws
}
