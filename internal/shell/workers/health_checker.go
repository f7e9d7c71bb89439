// Package workers contains background workers for appdeck.
package workers

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/appdeck/appdeck/internal/core/host"
	"github.com/appdeck/appdeck/internal/shell/controlplane"
	"github.com/appdeck/appdeck/internal/shell/store"
)

// ControlPlane is the slice of the control-plane API the health checker
// consumes. *controlplane.Client satisfies it.
type ControlPlane interface {
	Ping(ctx context.Context) error
	GetServerStatus(ctx context.Context, serverID string) (controlplane.ServerStatus, error)
}

// =============================================================================
// Configuration
// =============================================================================

// HealthCheckerConfig configures the health checker worker.
type HealthCheckerConfig struct {
	// Interval is the time between health check cycles. Default: 30 seconds.
	Interval time.Duration

	// HostTimeout is the timeout for checking a single host. Default: 10
	// seconds.
	HostTimeout time.Duration
}

// DefaultHealthCheckerConfig returns the default configuration.
func DefaultHealthCheckerConfig() HealthCheckerConfig {
	return HealthCheckerConfig{
		Interval:    30 * time.Second,
		HostTimeout: 10 * time.Second,
	}
}

// =============================================================================
// Health Checker
// =============================================================================

// HealthChecker periodically pings the control plane and syncs each
// registered host's connectivity status and reported runtime into the host
// registry. It is the only writer of host status: hosts register as
// disconnected and become deployable once a cycle observes them connected.
// The ping also keeps the client's connection state current between deploys.
type HealthChecker struct {
	store  store.Store
	api    ControlPlane
	config HealthCheckerConfig
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewHealthChecker creates a new health checker worker.
func NewHealthChecker(s store.Store, api ControlPlane, config HealthCheckerConfig, logger *slog.Logger) *HealthChecker {
	if config.Interval == 0 {
		config.Interval = 30 * time.Second
	}
	if config.HostTimeout == 0 {
		config.HostTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &HealthChecker{
		store:  s,
		api:    api,
		config: config,
		logger: logger.With("component", "health_checker"),
	}
}

// Start begins the health checker background goroutine. One cycle runs
// immediately, then one per interval.
func (h *HealthChecker) Start() {
	h.ctx, h.cancel = context.WithCancel(context.Background())

	h.wg.Add(1)
	go h.run()

	h.logger.Info("health checker started", "interval", h.config.Interval)
}

// Stop gracefully stops the health checker. It waits for an in-progress
// cycle to complete.
func (h *HealthChecker) Stop() {
	if h.cancel != nil {
		h.cancel()
	}
	h.wg.Wait()
	h.logger.Info("health checker stopped")
}

func (h *HealthChecker) run() {
	defer h.wg.Done()

	h.runCycle()

	ticker := time.NewTicker(h.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return
		case <-ticker.C:
			h.runCycle()
		}
	}
}

// runCycle executes one health check cycle: a control-plane ping followed by
// a per-host status sync. A failed ping skips the sync; host statuses are
// left as last observed rather than guessed at.
func (h *HealthChecker) runCycle() {
	ctx, cancel := context.WithTimeout(h.ctx, h.config.Interval)
	defer cancel()

	if err := h.api.Ping(ctx); err != nil {
		h.logger.Warn("control plane unreachable, skipping host sync", "error", err)
		return
	}

	hosts, err := h.store.ListHosts(ctx)
	if err != nil {
		h.logger.Error("failed to list hosts", "error", err)
		return
	}
	if len(hosts) == 0 {
		return
	}

	for i := range hosts {
		h.checkHost(ctx, &hosts[i])
	}

	h.logger.Debug("completed health check cycle", "host_count", len(hosts))
}

// checkHost syncs one host's status from the control plane's view.
func (h *HealthChecker) checkHost(ctx context.Context, target *host.Host) {
	hostCtx, cancel := context.WithTimeout(ctx, h.config.HostTimeout)
	defer cancel()

	logger := h.logger.With("host_id", target.ID, "host_name", target.Name)

	st, err := h.api.GetServerStatus(hostCtx, target.ID)

	now := time.Now().UTC()
	target.UpdatedAt = now

	if err != nil {
		if target.Status != host.StatusDisconnected {
			logger.Warn("host went disconnected", "error", err)
		}
		target.Status = host.StatusDisconnected
		target.ErrorMessage = err.Error()
	} else {
		status := host.Status(st.Status)
		if !status.IsValid() {
			status = host.StatusError
		}
		if target.Status != host.StatusConnected && status == host.StatusConnected {
			logger.Info("host came online", "runtime", st.Runtime)
		}
		target.Status = status
		target.Runtime = st.Runtime
		target.ErrorMessage = st.ErrorMessage
		target.LastSeenAt = &now
	}

	if updateErr := h.store.UpdateHost(ctx, target); updateErr != nil {
		logger.Error("failed to update host", "error", updateErr)
	}
}

// CheckNow runs an immediate health check cycle. Useful after a host is
// registered, so it becomes deployable without waiting a full interval.
func (h *HealthChecker) CheckNow(ctx context.Context) {
	if err := h.api.Ping(ctx); err != nil {
		h.logger.Warn("control plane unreachable", "error", err)
		return
	}

	hosts, err := h.store.ListHosts(ctx)
	if err != nil {
		h.logger.Error("failed to list hosts", "error", err)
		return
	}
	for i := range hosts {
		h.checkHost(ctx, &hosts[i])
	}
}
