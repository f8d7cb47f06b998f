// Command nyrodb runs the append-only document store's HTTP and
// realtime surfaces. Startup sequence, signal handling, and
// --generate-config are grounded on the teacher's cmd/gateway/main.go
// (os/signal.Notify on SIGINT/SIGTERM, context-bounded graceful
// shutdown) and on spec.md §4.8's lifecycle: load config, validate,
// construct the Metrics Sink, spawn the Batch Writer, construct the
// Engine Facade, optionally spawn a periodic metrics logger, register
// the termination signal handler, bind and serve.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/TheRemyyy/nyro-db/internal/broadcast"
	"github.com/TheRemyyy/nyro-db/internal/config"
	"github.com/TheRemyyy/nyro-db/internal/engine"
	"github.com/TheRemyyy/nyro-db/internal/gate"
	"github.com/TheRemyyy/nyro-db/internal/httpapi"
	"github.com/TheRemyyy/nyro-db/internal/logging"
	"github.com/TheRemyyy/nyro-db/internal/metrics"
	"github.com/TheRemyyy/nyro-db/internal/observability/prometheus"
	"github.com/TheRemyyy/nyro-db/internal/schema"
)

func main() {
	generateConfig := flag.Bool("generate-config", false, "write a default nyrodb.toml and exit")
	flag.Parse()

	if *generateConfig {
		if err := config.SaveTOML("./nyrodb.toml", config.Default()); err != nil {
			fmt.Fprintf(os.Stderr, "nyrodb: failed to write default config: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("wrote ./nyrodb.toml")
		os.Exit(0)
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "nyrodb: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, source, err := config.Discover()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := config.Validate(&cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}
	log := logging.New(level, cfg.Logging.EnableColors)
	if source != "" {
		log.Infof("loaded config from %s", source)
	} else {
		log.Infof("no config file found in discovery paths, using built-in defaults")
	}

	sink := metrics.New(cfg.Metrics.MaxSamples)

	registry, err := schema.NewRegistry(cfg.ToSchemaModels())
	if err != nil {
		return fmt.Errorf("build schema registry: %w", err)
	}

	bcast := broadcast.New(broadcast.DefaultCapacity)

	e := engine.New(engine.Config{
		DataDir:                 cfg.Storage.DataDir,
		BufferSize:              cfg.Storage.BufferSize,
		EnableMmap:              cfg.Storage.EnableMmap,
		SyncIntervalMs:          cfg.Storage.SyncIntervalMs,
		BatchSize:               cfg.Performance.BatchSize,
		BatchTimeout:            time.Duration(cfg.Performance.BatchTimeoutMs) * time.Millisecond,
		GracefulShutdownTimeout: time.Duration(cfg.Server.GracefulShutdownTimeout) * time.Second,
		Logger:                  log,
	}, registry, sink, bcast)

	stopMetricsLogger := startMetricsLogger(cfg, sink, log)
	defer stopMetricsLogger()

	g := gate.New(cfg.Performance.MaxConcurrentOps)

	var prom *prometheus.HTTPMetrics
	if cfg.Metrics.Enable {
		prom = prometheus.NewHTTPMetrics()
	}

	server := httpapi.New(e, registry, bcast, cfg, g, log, prom)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: server.Handler(),
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		log.Infof("listening on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case sig := <-sigCh:
		log.Infof("received %s, shutting down", sig)
	}

	shutdownTimeout := time.Duration(cfg.Server.GracefulShutdownTimeout) * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Warnf("http server shutdown did not complete cleanly: %v", err)
	}
	if err := e.Shutdown(); err != nil {
		log.Errorf("engine shutdown reported an error: %v", err)
	}
	log.Infof("shutdown complete")
	return nil
}

// startMetricsLogger spawns the optional periodic metrics logger spec.md
// §4.8 lifecycle names ("optionally spawn periodic metrics logger"),
// grounded on the Rust original's utils/metrics.rs periodic reporter
// (SPEC_FULL.md §4). Returns a stop function; it is a no-op when
// disabled.
func startMetricsLogger(cfg config.Config, sink *metrics.Sink, log logging.Logger) func() {
	if !cfg.Metrics.Enable || cfg.Metrics.ReportInterval <= 0 {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Duration(cfg.Metrics.ReportInterval) * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r := sink.Snapshot()
				log.Infof("metrics: inserts=%d gets=%d queries=%d insert_p99_ms=%.2f get_p99_ms=%.2f",
					r.TotalInserts, r.TotalGets, r.TotalQueries, r.InsertLatencyMs.P99Ms, r.GetLatencyMs.P99Ms)
			case <-done:
				return
			}
		}
	}()
	return func() { close(done) }
}
