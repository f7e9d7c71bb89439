package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/appdeck/appdeck/internal/shell/api"
	"github.com/appdeck/appdeck/internal/shell/controlplane"
	"github.com/appdeck/appdeck/internal/shell/orchestrate"
	"github.com/appdeck/appdeck/internal/shell/poller"
	"github.com/appdeck/appdeck/internal/shell/store"
	"github.com/appdeck/appdeck/internal/shell/workers"
)

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess         = 0
	ExitConfigError     = 1
	ExitDatabaseError   = 2
	ExitHTTPServerError = 3
)

// =============================================================================
// Server
// =============================================================================

// Server wires the orchestration core behind the HTTP surface.
type Server struct {
	config       *Config
	httpServer   *http.Server
	store        store.Store
	controlPlane *controlplane.Client
	orchestrator *orchestrate.Orchestrator
	health       *workers.HealthChecker
	logger       *slog.Logger
}

// NewServer creates a new server with the given config.
func NewServer(cfg *Config, logger *slog.Logger) (*Server, error) {
	s, err := store.NewSQLiteStore(cfg.Database.DSN)
	if err != nil {
		return nil, &ServerError{
			Op:       "NewServer",
			Err:      err,
			ExitCode: ExitDatabaseError,
		}
	}

	cp := controlplane.NewClient(controlplane.Config{
		BaseURL: cfg.ControlPlane.URL,
		APIKey:  cfg.ControlPlane.APIKey,
		Timeout: cfg.ControlPlane.Timeout,
	}, logger)

	notifier := orchestrate.NewLogNotifier(logger)
	orchestrator := orchestrate.New(cp, s, notifier, orchestrate.Config{
		Poll: poller.Config{
			Interval:       cfg.Polling.Interval,
			MaxDuration:    cfg.Polling.MaxDuration,
			RequestTimeout: cfg.Polling.RequestTimeout,
		},
	}, logger)
	preflight := orchestrate.NewPreflightValidator(cp, notifier, logger)

	health := workers.NewHealthChecker(s, cp, workers.HealthCheckerConfig{
		Interval:    cfg.Health.Interval,
		HostTimeout: cfg.Health.HostTimeout,
	}, logger)

	handler := api.NewHandler(s, orchestrator, preflight, health, logger)

	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      handler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return &Server{
		config:       cfg,
		httpServer:   httpServer,
		store:        s,
		controlPlane: cp,
		orchestrator: orchestrator,
		health:       health,
		logger:       logger,
	}, nil
}

// Start starts the server and blocks until shutdown.
func (s *Server) Start(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Establish the control-plane connection up front. Failure is not fatal:
	// deploys are rejected until the connection comes up, and the health
	// checker keeps retrying the ping.
	if err := s.controlPlane.Ping(ctx); err != nil {
		s.logger.Warn("control plane not reachable at startup", "error", err)
	}

	s.health.Start()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "address", s.config.Server.Address())
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case sig := <-sigCh:
		s.logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		return &ServerError{
			Op:       "Start",
			Err:      err,
			ExitCode: ExitHTTPServerError,
		}
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown(context.Background())
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("initiating graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.Server.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	// Stop the workers before closing the store they write to.
	s.health.Stop()
	s.orchestrator.Close()

	if err := s.store.Close(); err != nil {
		s.logger.Error("database close error", "error", err)
	}

	s.logger.Info("shutdown complete")
	return nil
}

// =============================================================================
// Server Error
// =============================================================================

// ServerError represents an error during server operation.
type ServerError struct {
	Op       string
	Err      error
	ExitCode int
}

func (e *ServerError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *ServerError) Unwrap() error {
	return e.Err
}
