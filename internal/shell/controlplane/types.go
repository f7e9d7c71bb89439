package controlplane

import (
	"encoding/json"

	"github.com/appdeck/appdeck/internal/core/app"
)

// =============================================================================
// Wire Envelope
// =============================================================================

// envelope is the outer response shape shared by all control-plane calls.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// failureText returns the most specific failure message the envelope carries.
func (e envelope) failureText() string {
	if e.Error != "" {
		return e.Error
	}
	return e.Message
}

// =============================================================================
// Requests
// =============================================================================

// AddAppRequest is the payload for the add_app call.
type AddAppRequest struct {
	ServerID string            `json:"server_id"`
	AppID    string            `json:"app_id"`
	Config   app.ConfigPayload `json:"config"`
}

// =============================================================================
// Results
// =============================================================================

// AddAppResult collapses the two-level success envelope of add_app into one
// discriminated result: either the install was accepted (with an optional
// installation id to poll), or it was rejected with a message. Transport
// failures are reported as errors, not as results.
type AddAppResult struct {
	Accepted       bool
	InstallationID string
	Message        string // rejection message when not accepted
}

// InstallationStatus is one host-reported status snapshot for an
// installation.
type InstallationStatus struct {
	ID            string           `json:"id"`
	Status        app.InstallPhase `json:"status"`
	Progress      int              `json:"progress,omitempty"`
	AppID         string           `json:"app_id"`
	ServerID      string           `json:"server_id"`
	ContainerName string           `json:"container_name,omitempty"`
	ErrorMessage  string           `json:"error_message,omitempty"`
	StepDurations map[string]int64 `json:"step_durations,omitempty"`
}

// ServerStatus is the control plane's current view of one registered host:
// agent connectivity plus the container runtime it reported.
type ServerStatus struct {
	ServerID     string `json:"server_id"`
	Status       string `json:"status"`
	Runtime      string `json:"runtime,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// ValidationResult is returned by validate_deployment_config.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// PreflightCheck is a single named preflight check outcome.
type PreflightCheck struct {
	Name    string `json:"name"`
	Passed  bool   `json:"passed"`
	Message string `json:"message"`
}

// PreflightResult is returned by run_preflight_checks.
type PreflightResult struct {
	Passed bool             `json:"passed"`
	Checks []PreflightCheck `json:"checks"`
}

// FailingChecks returns the checks that did not pass, in reported order.
func (r PreflightResult) FailingChecks() []PreflightCheck {
	var failing []PreflightCheck
	for _, c := range r.Checks {
		if !c.Passed {
			failing = append(failing, c)
		}
	}
	return failing
}

// CleanupResult is returned by cleanup_failed_deployment.
type CleanupResult struct {
	Message string `json:"message"`
}
