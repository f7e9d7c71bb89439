// Package controlplane provides a client for the control-plane tool-call API
// that performs the actual install work on remote hosts. All calls share one
// request/response channel: a tool name plus a JSON argument object, answered
// with a success envelope.
package controlplane

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/appdeck/appdeck/internal/core/app"
)

// =============================================================================
// Errors
// =============================================================================

// ErrUnavailable wraps transport-level failures: the control plane could not
// be reached or answered outside the envelope contract. Callers that are
// best-effort (preflight, validation) treat this as "proceed anyway".
var ErrUnavailable = fmt.Errorf("control plane unavailable")

// =============================================================================
// Client
// =============================================================================

// Client calls the control-plane tool API over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
	connected  atomic.Bool
}

// Config holds control-plane client configuration.
type Config struct {
	BaseURL string // e.g. "http://localhost:9800"
	APIKey  string // optional API key for authentication
	Timeout time.Duration
}

// NewClient creates a new control-plane client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger.With("component", "controlplane"),
	}
}

// Connected reports whether the last call to the control plane succeeded at
// the transport level. Established by Ping or any successful call.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

// Ping verifies the control plane is reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.connected.Store(false)
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.connected.Store(false)
		return fmt.Errorf("%w: unexpected status %d", ErrUnavailable, resp.StatusCode)
	}

	c.connected.Store(true)
	return nil
}

// =============================================================================
// Tool Calls
// =============================================================================

// AddApp issues the install request for one host. The response carries a
// two-level success envelope; both levels are collapsed into AddAppResult.
func (c *Client) AddApp(ctx context.Context, req AddAppRequest) (AddAppResult, error) {
	env, err := c.call(ctx, "add_app", req)
	if err != nil {
		return AddAppResult{}, err
	}
	if !env.Success {
		return AddAppResult{Accepted: false, Message: env.failureText()}, nil
	}

	// Inner envelope: tool-level success plus the installation data.
	var inner struct {
		Success bool `json:"success"`
		Data    struct {
			InstallationID string `json:"installation_id"`
		} `json:"data"`
		Message string `json:"message,omitempty"`
		Error   string `json:"error,omitempty"`
	}
	if err := json.Unmarshal(env.Data, &inner); err != nil {
		return AddAppResult{}, fmt.Errorf("%w: decode add_app data: %v", ErrUnavailable, err)
	}
	if !inner.Success {
		msg := inner.Error
		if msg == "" {
			msg = inner.Message
		}
		return AddAppResult{Accepted: false, Message: msg}, nil
	}

	return AddAppResult{
		Accepted:       true,
		InstallationID: inner.Data.InstallationID,
	}, nil
}

// GetInstallationStatus fetches the current status of one installation.
func (c *Client) GetInstallationStatus(ctx context.Context, installationID string) (InstallationStatus, error) {
	env, err := c.call(ctx, "get_installation_status", map[string]string{
		"installation_id": installationID,
	})
	if err != nil {
		return InstallationStatus{}, err
	}
	if !env.Success {
		return InstallationStatus{}, fmt.Errorf("get_installation_status failed: %s", env.failureText())
	}

	var st InstallationStatus
	if err := json.Unmarshal(env.Data, &st); err != nil {
		return InstallationStatus{}, fmt.Errorf("%w: decode status: %v", ErrUnavailable, err)
	}
	return st, nil
}

// GetServerStatus fetches the control plane's view of one host: agent
// connectivity and the container runtime it reported.
func (c *Client) GetServerStatus(ctx context.Context, serverID string) (ServerStatus, error) {
	env, err := c.call(ctx, "get_server_status", map[string]string{
		"server_id": serverID,
	})
	if err != nil {
		return ServerStatus{}, err
	}
	if !env.Success {
		return ServerStatus{}, fmt.Errorf("get_server_status failed: %s", env.failureText())
	}

	var st ServerStatus
	if err := json.Unmarshal(env.Data, &st); err != nil {
		return ServerStatus{}, fmt.Errorf("%w: decode server status: %v", ErrUnavailable, err)
	}
	return st, nil
}

// ValidateDeploymentConfig submits a built configuration for validation.
func (c *Client) ValidateDeploymentConfig(ctx context.Context, appID string, config app.ConfigPayload) (ValidationResult, error) {
	env, err := c.call(ctx, "validate_deployment_config", map[string]any{
		"app_id": appID,
		"config": config,
	})
	if err != nil {
		return ValidationResult{}, err
	}
	if !env.Success {
		return ValidationResult{}, fmt.Errorf("%w: %s", ErrUnavailable, env.failureText())
	}

	var result ValidationResult
	if err := json.Unmarshal(env.Data, &result); err != nil {
		return ValidationResult{}, fmt.Errorf("%w: decode validation result: %v", ErrUnavailable, err)
	}
	return result, nil
}

// RunPreflightChecks runs environment checks against one host.
func (c *Client) RunPreflightChecks(ctx context.Context, serverID, appID string, config app.ConfigPayload) (PreflightResult, error) {
	env, err := c.call(ctx, "run_preflight_checks", map[string]any{
		"server_id": serverID,
		"app_id":    appID,
		"config":    config,
	})
	if err != nil {
		return PreflightResult{}, err
	}
	if !env.Success {
		return PreflightResult{}, fmt.Errorf("%w: %s", ErrUnavailable, env.failureText())
	}

	var result PreflightResult
	if err := json.Unmarshal(env.Data, &result); err != nil {
		return PreflightResult{}, fmt.Errorf("%w: decode preflight result: %v", ErrUnavailable, err)
	}
	return result, nil
}

// CleanupFailedDeployment asks the control plane to remove the remains of a
// failed installation. Best-effort on the caller's side.
func (c *Client) CleanupFailedDeployment(ctx context.Context, serverID, installationID string) (CleanupResult, error) {
	env, err := c.call(ctx, "cleanup_failed_deployment", map[string]string{
		"server_id":       serverID,
		"installation_id": installationID,
	})
	if err != nil {
		return CleanupResult{}, err
	}
	if !env.Success {
		return CleanupResult{}, fmt.Errorf("cleanup_failed_deployment failed: %s", env.failureText())
	}

	var result CleanupResult
	if err := json.Unmarshal(env.Data, &result); err != nil {
		return CleanupResult{}, fmt.Errorf("%w: decode cleanup result: %v", ErrUnavailable, err)
	}
	return result, nil
}

// =============================================================================
// Transport
// =============================================================================

// call posts one tool invocation and decodes the outer envelope. Transport
// and protocol failures are wrapped in ErrUnavailable; an envelope with
// success=false is returned as-is for the caller to interpret.
func (c *Client) call(ctx context.Context, tool string, args any) (envelope, error) {
	body, err := json.Marshal(args)
	if err != nil {
		return envelope{}, fmt.Errorf("marshal %s args: %w", tool, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/tools/"+tool, bytes.NewReader(body))
	if err != nil {
		return envelope{}, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.connected.Store(false)
		return envelope{}, fmt.Errorf("%w: %s: %v", ErrUnavailable, tool, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.connected.Store(false)
		raw, _ := io.ReadAll(resp.Body)
		return envelope{}, fmt.Errorf("%w: %s: unexpected status %d: %s", ErrUnavailable, tool, resp.StatusCode, string(raw))
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		c.connected.Store(false)
		return envelope{}, fmt.Errorf("%w: %s: decode envelope: %v", ErrUnavailable, tool, err)
	}

	c.connected.Store(true)
	return env, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
}
