// Package server provides the gateway's HTTP front: routing, CORS, request
// dispatch, and lifecycle management.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"

	"mercator-hq/helios/pkg/config"
	"mercator-hq/helios/pkg/processing/costs"
	"mercator-hq/helios/pkg/providers"
	"mercator-hq/helios/pkg/proxy"
	"mercator-hq/helios/pkg/telemetry"
	"mercator-hq/helios/pkg/telemetry/tracing"
)

// Server is the gateway HTTP server.
type Server struct {
	cfg        *config.Config
	registry   *providers.Registry
	engine     *proxy.Engine
	collector  *telemetry.Collector
	calculator *costs.Calculator
	resource   telemetry.Resource
	tracer     trace.Tracer

	metricsHandler http.Handler

	httpServer   *http.Server
	shutdownOnce sync.Once
	mu           sync.Mutex
	running      bool
}

// New wires the server from its collaborators. promRegistry may be nil to
// disable the /metrics endpoint.
func New(cfg *config.Config, registry *providers.Registry, engine *proxy.Engine,
	collector *telemetry.Collector, calculator *costs.Calculator,
	promRegistry *prometheus.Registry) *Server {

	s := &Server{
		cfg:        cfg,
		registry:   registry,
		engine:     engine,
		collector:  collector,
		calculator: calculator,
		tracer:     tracing.Tracer(),
		resource: telemetry.Resource{
			ServiceName:    cfg.Telemetry.ServiceName,
			ServiceVersion: cfg.Telemetry.ServiceVersion,
			Environment:    cfg.Telemetry.Environment,
		},
	}
	if promRegistry != nil {
		s.metricsHandler = promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{})
	}
	return s
}

// Handler returns the full middleware-wrapped handler, primarily for tests.
func (s *Server) Handler() http.Handler { return s.setupRoutes() }

// Start runs the HTTP server and blocks until the context is cancelled, a
// shutdown signal arrives, or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.running = true
	s.httpServer = &http.Server{
		Addr:              s.cfg.Server.ListenAddress(),
		Handler:           s.setupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		slog.Info("gateway listening",
			"address", s.cfg.Server.ListenAddress(),
			"providers", s.registry.Names())
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		slog.Info("context cancelled, shutting down")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	}
}

// Shutdown drains the HTTP server, then the telemetry collector, within the
// configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.Server.ShutdownTimeout)
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				slog.Error("error during server shutdown", "error", err)
				shutdownErr = fmt.Errorf("server shutdown: %w", err)
			}
		}

		if err := s.collector.Close(shutdownCtx); err != nil {
			slog.Error("telemetry collector did not drain", "error", err)
			if shutdownErr == nil {
				shutdownErr = fmt.Errorf("collector shutdown: %w", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
