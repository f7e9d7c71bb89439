// Package poller tracks the asynchronous progress of one installation by
// polling the control plane on a fixed interval until a terminal phase.
package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/appdeck/appdeck/internal/core/app"
	"github.com/appdeck/appdeck/internal/shell/controlplane"
)

// StatusAPI is the single control-plane call the poller needs.
type StatusAPI interface {
	GetInstallationStatus(ctx context.Context, installationID string) (controlplane.InstallationStatus, error)
}

// =============================================================================
// Configuration
// =============================================================================

// Config configures a StatusPoller.
type Config struct {
	// Interval is the time between polls. Default: 2 seconds.
	Interval time.Duration

	// MaxDuration is the hard ceiling after which the poller stops itself
	// even without a terminal phase. A safety valve against orphaned
	// pollers, not a success or failure signal. Default: 5 minutes.
	MaxDuration time.Duration

	// RequestTimeout bounds a single status request. Default: 10 seconds.
	RequestTimeout time.Duration
}

// DefaultConfig returns the default poller configuration.
func DefaultConfig() Config {
	return Config{
		Interval:       2 * time.Second,
		MaxDuration:    5 * time.Minute,
		RequestTimeout: 10 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	if c.Interval == 0 {
		c.Interval = 2 * time.Second
	}
	if c.MaxDuration == 0 {
		c.MaxDuration = 5 * time.Minute
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 10 * time.Second
	}
	return c
}

// =============================================================================
// Callbacks
// =============================================================================

// Callbacks are invoked from the poller goroutine. OnUpdate fires on every
// successful poll; OnStatusChange only when the phase differs from the
// previously observed one. Exactly one of OnComplete or OnError fires when a
// terminal phase is reached (neither for phase "stopped"). OnExpire fires if
// the ceiling is hit first; callers must treat that as an unresolved outcome.
type Callbacks struct {
	OnUpdate       func(status controlplane.InstallationStatus)
	OnStatusChange func(phase app.InstallPhase)
	OnComplete     func(status controlplane.InstallationStatus)
	OnError        func(message string)
	OnExpire       func()
}

// =============================================================================
// StatusPoller
// =============================================================================

// StatusPoller polls one installation's status until it reaches a terminal
// phase, Stop is called, or the ceiling expires. Each poller owns a single
// goroutine; polls are strictly sequential and a new poll is skipped while
// the previous one has not resolved.
type StatusPoller struct {
	api       StatusAPI
	config    Config
	callbacks Callbacks
	logger    *slog.Logger

	mu             sync.Mutex
	installationID string
	lastPhase      app.InstallPhase
	lastErr        string
	inFlight       bool
	finished       bool
	cancel         context.CancelFunc

	wg sync.WaitGroup
}

// New creates a status poller. Callbacks may be partially nil.
func New(api StatusAPI, config Config, callbacks Callbacks, logger *slog.Logger) *StatusPoller {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatusPoller{
		api:       api,
		config:    config.withDefaults(),
		callbacks: callbacks,
		logger:    logger.With("component", "status_poller"),
	}
}

// Start begins polling the given installation: one immediate poll, then one
// per interval. Calling Start on a running poller restarts it with the new
// installation id.
func (p *StatusPoller) Start(installationID string) {
	p.Stop()

	p.mu.Lock()
	p.installationID = installationID
	p.lastPhase = ""
	p.lastErr = ""
	p.inFlight = false
	p.finished = false
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.mu.Unlock()

	p.wg.Add(1)
	go p.run(ctx)

	p.logger.Debug("poller started",
		"installation_id", installationID,
		"interval", p.config.Interval,
	)
}

// Stop clears the interval and the active installation id unconditionally.
// Idempotent. An in-flight poll is cancelled; its result is discarded.
func (p *StatusPoller) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.installationID = ""
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Wait blocks until the polling goroutine has exited. Used by shutdown paths
// and tests; not required for Stop to take effect.
func (p *StatusPoller) Wait() {
	p.wg.Wait()
}

// LastError returns the most recent transient poll error, if any.
func (p *StatusPoller) LastError() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// Active reports whether an installation id is currently registered.
func (p *StatusPoller) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.installationID != ""
}

// =============================================================================
// Polling Loop
// =============================================================================

func (p *StatusPoller) run(ctx context.Context) {
	defer p.wg.Done()

	// Immediate first poll
	p.poll(ctx)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	ceiling := time.NewTimer(p.config.MaxDuration)
	defer ceiling.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ceiling.C:
			p.expire()
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

// poll issues one status request and dispatches callbacks. Transient errors
// are recorded but never stop the loop.
func (p *StatusPoller) poll(ctx context.Context) {
	p.mu.Lock()
	id := p.installationID
	if id == "" || p.finished || p.inFlight {
		// No registered installation (late timer after Stop), already at a
		// terminal phase, or the previous poll is still pending.
		p.mu.Unlock()
		return
	}
	p.inFlight = true
	p.mu.Unlock()

	reqCtx, cancel := context.WithTimeout(ctx, p.config.RequestTimeout)
	status, err := p.api.GetInstallationStatus(reqCtx, id)
	cancel()

	p.mu.Lock()
	p.inFlight = false
	if p.finished || p.installationID != id {
		// Stop or a restart landed while the request was in flight; the
		// response is discarded.
		p.mu.Unlock()
		return
	}
	if err != nil {
		p.lastErr = err.Error()
		p.mu.Unlock()
		p.logger.Warn("status poll failed, will retry",
			"installation_id", id,
			"error", err,
		)
		return
	}
	p.lastErr = ""

	changed := status.Status != p.lastPhase
	p.lastPhase = status.Status

	terminal := status.Status.IsTerminal()
	if terminal {
		p.finished = true
		p.installationID = ""
		cancelLoop := p.cancel
		p.cancel = nil
		p.mu.Unlock()
		if cancelLoop != nil {
			cancelLoop()
		}
		p.dispatch(status, changed)
		p.dispatchTerminal(status)
		return
	}
	p.mu.Unlock()

	p.dispatch(status, changed)
}

func (p *StatusPoller) dispatch(status controlplane.InstallationStatus, changed bool) {
	if p.callbacks.OnUpdate != nil {
		p.callbacks.OnUpdate(status)
	}
	if changed && p.callbacks.OnStatusChange != nil {
		p.callbacks.OnStatusChange(status.Status)
	}
}

func (p *StatusPoller) dispatchTerminal(status controlplane.InstallationStatus) {
	switch status.Status {
	case app.PhaseRunning:
		p.logger.Debug("installation complete", "installation_id", status.ID)
		if p.callbacks.OnComplete != nil {
			p.callbacks.OnComplete(status)
		}
	case app.PhaseError:
		msg := status.ErrorMessage
		if msg == "" {
			msg = "installation failed"
		}
		p.logger.Debug("installation failed",
			"installation_id", status.ID,
			"error", msg,
		)
		if p.callbacks.OnError != nil {
			p.callbacks.OnError(msg)
		}
	case app.PhaseStopped:
		p.logger.Debug("installation stopped", "installation_id", status.ID)
	}
}

// expire enforces the polling ceiling: stop without declaring an outcome.
func (p *StatusPoller) expire() {
	p.mu.Lock()
	if p.finished {
		p.mu.Unlock()
		return
	}
	p.finished = true
	id := p.installationID
	p.installationID = ""
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.logger.Warn("polling ceiling reached without terminal phase",
		"installation_id", id,
		"ceiling", p.config.MaxDuration,
	)
	if p.callbacks.OnExpire != nil {
		p.callbacks.OnExpire()
	}
}
