// Package http serves the Slack Events API webhook next to health and
// Prometheus endpoints.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"jamcraft/internal/core"
	"jamcraft/internal/flood"
)

const shutdownTimeout = 10 * time.Second

// Server hosts the webhook and observability endpoints. Webhook requests
// are acknowledged immediately and processed asynchronously, as the
// Events API retries any delivery not answered within three seconds.
type Server struct {
	config   *core.Config
	pipeline *core.Pipeline
	gate     *flood.Gate
	metrics  *Metrics
	logger   *zap.Logger
	server   *http.Server
	ready    func() bool
}

// NewServer wires the router. ready gates the readiness probe; a nil
// ready means always ready.
func NewServer(
	config *core.Config,
	pipeline *core.Pipeline,
	gate *flood.Gate,
	logger *zap.Logger,
	ready func() bool,
) *Server {
	s := &Server{
		config:   config,
		pipeline: pipeline,
		gate:     gate,
		metrics:  newMetrics(),
		logger:   logger,
		ready:    ready,
	}

	router := chi.NewRouter()
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)

	router.Post("/slack/events", s.handleSlackEvents)
	router.Get("/healthz", s.handleHealthz)
	router.Get("/readyz", s.handleReadyz)
	router.Handle("/metrics", promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{}))

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port),
		Handler:      router,
		ReadTimeout:  config.Server.ReadTimeout,
		WriteTimeout: config.Server.WriteTimeout,
	}

	return s
}

// Metrics exposes the recorder so background tasks can publish gauges.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP server listening",
			zap.String("addr", s.server.Addr))
		if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleReadyz(w http.ResponseWriter, _ *http.Request) {
	if s.ready != nil && !s.ready() {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("starting"))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready"))
}
