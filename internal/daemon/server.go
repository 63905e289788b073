package daemon

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"go.uber.org/zap"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kamal-haider/ai-consensus-cli/internal/config"
	"github.com/kamal-haider/ai-consensus-cli/internal/llm/configbuilder"
	"github.com/kamal-haider/ai-consensus-cli/internal/llm/retry"
	"github.com/kamal-haider/ai-consensus-cli/internal/observability"
	"github.com/kamal-haider/ai-consensus-cli/internal/rpc/consensusrpc"
)

// Server hosts the daemon endpoints: consensus RPC, health, metrics.
type Server struct {
	cfg     *config.Config
	logger  *zap.Logger
	runner  consensusrpc.Runner
	metrics *observability.Metrics
}

// NewServer constructs a daemon instance from validated configuration.
func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	metrics := observability.NewMetrics()

	registry, err := configbuilder.Build(cfg, configbuilder.Options{
		OnRetry: func(a retry.Attempt) {
			metrics.RecordRetry(a.Provider)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("build registry: %w", err)
	}

	runCfg, err := cfg.BuildRunConfig()
	if err != nil {
		return nil, err
	}

	runner := &consensusrpc.ConsensusRunner{
		Registry: registry,
		Config:   runCfg,
		Logger:   logger,
		Metrics:  metrics,
	}

	return &Server{cfg: cfg, logger: logger, runner: runner, metrics: metrics}, nil
}

// Run starts the HTTP server and blocks until context cancellation or
// fatal error.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/metrics", s.metricsHandler)

	transport := strings.ToLower(strings.TrimSpace(s.cfg.Server.Transport))
	switch transport {
	case "ndjson":
		mux.Handle("/consensus/run", consensusrpc.NewHandler(s.runner, s.metrics))
	default:
		path, handler := consensusrpc.NewConnectHandler(s.runner, s.metrics)
		mux.Handle(path, handler)
		// keep the NDJSON path available for curl and older clients
		mux.Handle("/consensus/run", consensusrpc.NewHandler(s.runner, s.metrics))
	}

	handler := http.Handler(mux)
	if transport != "ndjson" {
		handler = h2c.NewHandler(handler, &http2.Server{})
	}

	server := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting aicx daemon",
			zap.String("addr", s.cfg.Server.Addr),
			zap.String("transport", transport))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down aicx daemon")
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) metricsHandler(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.Server.MetricsEnabled {
		http.NotFound(w, r)
		return
	}
	promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}).ServeHTTP(w, r)
}
