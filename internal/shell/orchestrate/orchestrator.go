// Package orchestrate coordinates deployments: it fans a single install
// intent out to the selected hosts, tracks each host's progress through its
// status poller, and aggregates the per-host outcomes into one result.
package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/appdeck/appdeck/internal/core/app"
	"github.com/appdeck/appdeck/internal/core/host"
	"github.com/appdeck/appdeck/internal/shell/controlplane"
	"github.com/appdeck/appdeck/internal/shell/poller"
	"github.com/appdeck/appdeck/internal/shell/store"
)

// =============================================================================
// Errors
// =============================================================================

var (
	ErrNotConnected         = errors.New("control plane connection is not established")
	ErrDeployInProgress     = errors.New("a deployment is already in progress")
	ErrNoAttempt            = errors.New("no deployment attempt to act on")
	ErrCleanupNotApplicable = errors.New("cleanup applies only to single-host attempts with an installation id")
)

// =============================================================================
// Control Plane Interface
// =============================================================================

// ControlPlane is the slice of the control-plane API the orchestrator
// consumes. *controlplane.Client satisfies it.
type ControlPlane interface {
	Connected() bool
	AddApp(ctx context.Context, req controlplane.AddAppRequest) (controlplane.AddAppResult, error)
	GetInstallationStatus(ctx context.Context, installationID string) (controlplane.InstallationStatus, error)
	ValidateDeploymentConfig(ctx context.Context, appID string, config app.ConfigPayload) (controlplane.ValidationResult, error)
	RunPreflightChecks(ctx context.Context, serverID, appID string, config app.ConfigPayload) (controlplane.PreflightResult, error)
	CleanupFailedDeployment(ctx context.Context, serverID, installationID string) (controlplane.CleanupResult, error)
}

// =============================================================================
// Steps
// =============================================================================

// Step is the orchestrator's visible state. One machine serves single- and
// multi-host attempts alike; the per-host progress view covers both.
type Step string

const (
	StepSelect    Step = "select"
	StepDeploying Step = "deploying"
	StepSuccess   Step = "success"
	StepError     Step = "error"
)

// =============================================================================
// Result
// =============================================================================

// DeploymentResult identifies the attempt's canonical installation: the first
// host whose deploy call succeeded with an installation id.
type DeploymentResult struct {
	InstallationID string `json:"installation_id"`
	HostID         string `json:"host_id"`
	AppID          string `json:"app_id"`
}

// =============================================================================
// Orchestrator
// =============================================================================

// Config configures the orchestrator.
type Config struct {
	// Poll configures the per-installation status pollers.
	Poll poller.Config
}

// Orchestrator is the fan-out coordinator. It validates preconditions,
// deploys to each selected host sequentially in selection order, and owns
// the host-record table every poller reports into.
type Orchestrator struct {
	api      ControlPlane
	hosts    store.Store
	notifier Notifier
	logger   *slog.Logger
	config   Config

	records *RecordTable

	mu        sync.Mutex
	step      Step
	intent    *app.Intent
	attemptID string
	deploying bool
	errMsg    string
	result    *DeploymentResult
	pollers   map[string]*poller.StatusPoller
}

// New creates an orchestrator.
func New(api ControlPlane, hosts store.Store, notifier Notifier, config Config, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = NewLogNotifier(logger)
	}
	return &Orchestrator{
		api:      api,
		hosts:    hosts,
		notifier: notifier,
		logger:   logger.With("component", "orchestrator"),
		config:   config,
		records:  NewRecordTable(),
		step:     StepSelect,
		pollers:  make(map[string]*poller.StatusPoller),
	}
}

// =============================================================================
// Deploy
// =============================================================================

// Deploy runs one deployment attempt for the intent. Precondition violations
// are returned synchronously with no side effects and no host records
// created. After the fan-out the outcome is reflected in Step, Result and
// Error; Deploy itself returns nil once an attempt ran, even if every host
// failed.
func (o *Orchestrator) Deploy(ctx context.Context, intent app.Intent) error {
	o.mu.Lock()
	if o.deploying {
		o.mu.Unlock()
		return ErrDeployInProgress
	}
	o.deploying = true
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		o.deploying = false
		o.mu.Unlock()
	}()

	targets, err := o.checkPreconditions(ctx, intent)
	if err != nil {
		return err
	}

	o.beginAttempt(intent, targets)
	outcome := o.fanOut(ctx, intent, targets)
	o.finishAttempt(intent, targets, outcome)
	return nil
}

// checkPreconditions validates the intent against the current environment.
// On any violation the attempt is rejected before any side effect.
func (o *Orchestrator) checkPreconditions(ctx context.Context, intent app.Intent) ([]*host.Host, error) {
	if intent.AppID == "" {
		return nil, app.ErrNoApplication
	}
	if len(intent.HostIDs) == 0 {
		return nil, app.ErrNoHosts
	}
	if !o.api.Connected() {
		o.notifier.Error("cannot deploy: control plane connection is not established")
		return nil, ErrNotConnected
	}

	targets := make([]*host.Host, 0, len(intent.HostIDs))
	for _, id := range intent.HostIDs {
		h, err := o.hosts.GetHost(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, fmt.Errorf("%w: %s", host.ErrUnknownHost, id)
			}
			return nil, fmt.Errorf("resolve host %s: %w", id, err)
		}
		targets = append(targets, h)
	}

	if err := host.ValidateReady(targets); err != nil {
		o.notifier.Error(err.Error())
		return nil, err
	}

	return targets, nil
}

// beginAttempt resets the attempt state: fresh pending/0 records for every
// target and a direct transition to the aggregate progress view.
func (o *Orchestrator) beginAttempt(intent app.Intent, targets []*host.Host) {
	o.stopAllPollers()

	o.records.Reset(targets)

	o.mu.Lock()
	o.step = StepDeploying
	o.intent = &intent
	o.attemptID = uuid.New().String()
	o.errMsg = ""
	o.result = nil
	o.mu.Unlock()

	o.logger.Info("deployment attempt started",
		"attempt_id", o.attemptID,
		"app_id", intent.AppID,
		"app_name", intent.AppName,
		"host_count", len(targets),
	)
}

// fanOut deploys to each host sequentially in selection order. One host
// fully resolves before the next starts; this bounds control-plane load at
// the cost of latency linear in host count.
func (o *Orchestrator) fanOut(ctx context.Context, intent app.Intent, targets []*host.Host) app.Outcome {
	payload := intent.Config.Payload()

	deployer := &hostDeployer{
		api:          o.api,
		records:      o.records,
		pollConfig:   o.config.Poll,
		logger:       o.logger,
		attachPoller: o.attachPoller,
		onHostError: func(hostID, message string) {
			o.logger.Warn("host installation failed",
				"host_id", hostID,
				"error", message,
			)
		},
	}

	var outcome app.Outcome
	for _, h := range targets {
		res := deployer.deploy(ctx, h, intent.AppID, payload)
		if res.Success {
			outcome.OverallSuccess = true
			if outcome.FirstInstallationID == "" && res.InstallationID != "" {
				outcome.FirstInstallationID = res.InstallationID
				outcome.FirstHostID = h.ID
			}
		} else {
			outcome.Failures = append(outcome.Failures, app.HostFailure{
				HostID:   h.ID,
				HostName: h.Name,
				Message:  res.Error,
			})
		}
	}
	return outcome
}

// finishAttempt aggregates the fan-out outcome into the visible state.
func (o *Orchestrator) finishAttempt(intent app.Intent, targets []*host.Host, outcome app.Outcome) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if outcome.OverallSuccess {
		o.step = StepSuccess
		if outcome.FirstInstallationID != "" {
			o.result = &DeploymentResult{
				InstallationID: outcome.FirstInstallationID,
				HostID:         outcome.FirstHostID,
				AppID:          intent.AppID,
			}
		}
		o.notifier.Success(fmt.Sprintf("deploying %s to %d host(s)", intent.AppName, len(targets)))
		o.logger.Info("deployment attempt accepted",
			"attempt_id", o.attemptID,
			"succeeded", len(targets)-len(outcome.Failures),
			"failed", len(outcome.Failures),
		)
		return
	}

	o.step = StepError
	o.errMsg = outcome.HeadlineError(len(targets))
	o.notifier.Error(o.errMsg)
	o.logger.Warn("deployment attempt failed on all hosts",
		"attempt_id", o.attemptID,
		"host_count", len(targets),
	)
}

// =============================================================================
// Retry
// =============================================================================

// Retry clears the prior error and result, resets every host record to
// pending/0, and re-runs the same orchestration path with the same intent.
// Hosts that already succeeded are re-deployed; the remote install operation
// is safe to repeat.
func (o *Orchestrator) Retry(ctx context.Context) error {
	o.mu.Lock()
	if o.intent == nil {
		o.mu.Unlock()
		return ErrNoAttempt
	}
	intent := *o.intent
	o.errMsg = ""
	o.result = nil
	o.mu.Unlock()

	o.logger.Info("retrying deployment", "app_id", intent.AppID)
	return o.Deploy(ctx, intent)
}

// =============================================================================
// Cleanup
// =============================================================================

// Cleanup issues a best-effort cleanup request for the attempt's
// installation. Applicable only when exactly one host was targeted and that
// host produced an installation id. Cleanup failures are reported via
// notification and logged, never surfaced as a blocking error.
func (o *Orchestrator) Cleanup(ctx context.Context) error {
	o.mu.Lock()
	intent := o.intent
	result := o.result
	o.mu.Unlock()

	if intent == nil || result == nil || result.InstallationID == "" || len(intent.HostIDs) != 1 {
		return ErrCleanupNotApplicable
	}

	res, err := o.api.CleanupFailedDeployment(ctx, result.HostID, result.InstallationID)
	if err != nil {
		o.logger.Warn("cleanup request failed",
			"installation_id", result.InstallationID,
			"error", err,
		)
		o.notifier.Warning("cleanup could not be completed, the installation may need manual removal")
		return nil
	}

	msg := res.Message
	if msg == "" {
		msg = "failed deployment cleaned up"
	}
	o.notifier.Success(msg)
	o.logger.Info("cleanup completed", "installation_id", result.InstallationID)
	return nil
}

// =============================================================================
// Shutdown
// =============================================================================

// Close stops all live pollers. Must be called when the orchestration
// surface is torn down, otherwise pollers leak.
func (o *Orchestrator) Close() {
	o.stopAllPollers()
}

func (o *Orchestrator) stopAllPollers() {
	o.mu.Lock()
	pollers := o.pollers
	o.pollers = make(map[string]*poller.StatusPoller)
	o.mu.Unlock()

	for _, p := range pollers {
		p.Stop()
	}
}

func (o *Orchestrator) attachPoller(hostID string, p *poller.StatusPoller) {
	o.mu.Lock()
	if prev, ok := o.pollers[hostID]; ok {
		prev.Stop()
	}
	o.pollers[hostID] = p
	o.mu.Unlock()
}

// =============================================================================
// Visible State
// =============================================================================

// Step returns the current visible step.
func (o *Orchestrator) Step() Step {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.step
}

// Deploying reports whether a fan-out is currently in progress.
func (o *Orchestrator) Deploying() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.deploying
}

// Error returns the attempt's headline error, if any.
func (o *Orchestrator) Error() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.errMsg
}

// Result returns the attempt's canonical deployment result, or nil.
func (o *Orchestrator) Result() *DeploymentResult {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.result == nil {
		return nil
	}
	r := *o.result
	return &r
}

// HostStatuses returns the live per-host record list in selection order.
func (o *Orchestrator) HostStatuses() []HostRecord {
	return o.records.Snapshot()
}

// Intent returns the current attempt's intent, or nil before any attempt.
func (o *Orchestrator) Intent() *app.Intent {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.intent == nil {
		return nil
	}
	in := *o.intent
	return &in
}
