package orchestrate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/appdeck/appdeck/internal/core/app"
)

// =============================================================================
// Preflight Validator
// =============================================================================

// PreflightValidator runs best-effort environment and configuration checks
// against the control plane before a deployment is committed. An explicit
// failure blocks deployment; the validation service being unreachable does
// not - the attempt proceeds without it.
type PreflightValidator struct {
	api      ControlPlane
	notifier Notifier
	logger   *slog.Logger
}

// NewPreflightValidator creates a preflight validator.
func NewPreflightValidator(api ControlPlane, notifier Notifier, logger *slog.Logger) *PreflightValidator {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = NewLogNotifier(logger)
	}
	return &PreflightValidator{
		api:      api,
		notifier: notifier,
		logger:   logger.With("component", "preflight"),
	}
}

// ValidateConfig submits the built configuration for the application.
// Returns false only when the service explicitly reports the configuration
// invalid; warnings are surfaced but non-blocking.
func (v *PreflightValidator) ValidateConfig(ctx context.Context, appID string, config app.DeployConfig) bool {
	result, err := v.api.ValidateDeploymentConfig(ctx, appID, config.Payload())
	if err != nil {
		// Service unavailable is not a validation failure.
		v.logger.Warn("config validation unavailable, proceeding", "app_id", appID, "error", err)
		return true
	}

	for _, w := range result.Warnings {
		v.notifier.Warning(w)
	}

	if !result.Valid {
		msg := strings.Join(result.Errors, "; ")
		if msg == "" {
			msg = "configuration is invalid"
		}
		v.notifier.Error(fmt.Sprintf("configuration validation failed: %s", msg))
		return false
	}
	return true
}

// RunPreflight runs environment checks against the first selected host only.
// Any failing check blocks deployment for the whole attempt; the failing
// check messages are aggregated into one notification.
func (v *PreflightValidator) RunPreflight(ctx context.Context, hostID, appID string, config app.DeployConfig) bool {
	result, err := v.api.RunPreflightChecks(ctx, hostID, appID, config.Payload())
	if err != nil {
		v.logger.Warn("preflight unavailable, proceeding", "host_id", hostID, "error", err)
		return true
	}

	failing := result.FailingChecks()
	if result.Passed && len(failing) == 0 {
		return true
	}
	if len(failing) == 0 {
		// Reported not passed without naming a check.
		v.notifier.Error("preflight checks failed")
		return false
	}

	msgs := make([]string, 0, len(failing))
	for _, c := range failing {
		if c.Message != "" {
			msgs = append(msgs, fmt.Sprintf("%s: %s", c.Name, c.Message))
		} else {
			msgs = append(msgs, c.Name)
		}
	}
	v.notifier.Error(fmt.Sprintf("preflight checks failed: %s", strings.Join(msgs, "; ")))
	return false
}
