package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/supplywatch/service/config"
	"github.com/brojonat/supplywatch/service/metrics"
	"github.com/brojonat/supplywatch/service/webhook"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Evaluator processes the transactions of a validated webhook payload.
type Evaluator interface {
	WalletCount() int
	Evaluate(ctx context.Context, txns []json.RawMessage) webhook.Summary
}

// Server represents the HTTP server for the webhook service.
type Server struct {
	addr      string
	cfg       *config.Config
	evaluator Evaluator
	metrics   *metrics.Metrics
	logger    *slog.Logger
	server    *http.Server
}

// New creates a new HTTP server with the given dependencies.
// The metrics is optional - if nil, the metrics endpoint won't be available.
func New(addr string, cfg *config.Config, evaluator Evaluator, m *metrics.Metrics, logger *slog.Logger) *Server {
	return &Server{
		addr:      addr,
		cfg:       cfg,
		evaluator: evaluator,
		metrics:   m,
		logger:    logger,
	}
}

// Handler builds the request router.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	auth := authPolicy{secret: s.cfg.AuthSecret, required: s.cfg.RequireAuth}

	// Webhook routes accept every method so the handler can answer 405 itself.
	for _, path := range []string{"/webhook", "/api/webhook"} {
		h := handleWebhook(s.evaluator, auth, s.logger)
		mux.Handle(path, metrics.HTTPMetricsMiddleware(s.metrics, path)(h))
	}

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	return mux
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	if s.metrics != nil {
		s.logger.Info("Prometheus metrics endpoint enabled")
	}

	writeTimeout := s.cfg.ServerWriteTimeout
	if writeTimeout == 0 {
		writeTimeout = 60 * time.Second
	}

	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP server",
		"addr", s.addr,
		"watched_wallets", s.evaluator.WalletCount(),
		"require_auth", s.cfg.RequireAuth,
	)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
