package orchestrate

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appdeck/appdeck/internal/core/app"
	"github.com/appdeck/appdeck/internal/shell/controlplane"
)

// unavailableControlPlane fails every validation and preflight call.
type unavailableControlPlane struct {
	*mockControlPlane
}

func (u *unavailableControlPlane) ValidateDeploymentConfig(context.Context, string, app.ConfigPayload) (controlplane.ValidationResult, error) {
	return controlplane.ValidationResult{}, fmt.Errorf("%w: validate_deployment_config: connection refused", controlplane.ErrUnavailable)
}

func (u *unavailableControlPlane) RunPreflightChecks(context.Context, string, string, app.ConfigPayload) (controlplane.PreflightResult, error) {
	return controlplane.PreflightResult{}, fmt.Errorf("%w: run_preflight_checks: connection refused", controlplane.ErrUnavailable)
}

func TestPreflightValidator_ValidConfigPasses(t *testing.T) {
	api := newMockControlPlane()
	notifier := &mockNotifier{}
	v := NewPreflightValidator(api, notifier, nil)

	ok := v.ValidateConfig(context.Background(), "plex", app.DeployConfig{})

	assert.True(t, ok)
	assert.Empty(t, notifier.errors)
}

func TestPreflightValidator_InvalidConfigBlocks(t *testing.T) {
	api := newMockControlPlane()
	api.validation = controlplane.ValidationResult{
		Valid:  false,
		Errors: []string{"port 80 already mapped", "volume path is not absolute"},
	}
	notifier := &mockNotifier{}
	v := NewPreflightValidator(api, notifier, nil)

	ok := v.ValidateConfig(context.Background(), "plex", app.DeployConfig{})

	assert.False(t, ok)
	require.Len(t, notifier.errors, 1)
	assert.Contains(t, notifier.errors[0], "port 80 already mapped; volume path is not absolute")
}

func TestPreflightValidator_WarningsDoNotBlock(t *testing.T) {
	api := newMockControlPlane()
	api.validation = controlplane.ValidationResult{
		Valid:    true,
		Warnings: []string{"no volume configured"},
	}
	notifier := &mockNotifier{}
	v := NewPreflightValidator(api, notifier, nil)

	ok := v.ValidateConfig(context.Background(), "plex", app.DeployConfig{})

	assert.True(t, ok)
	assert.Equal(t, []string{"no volume configured"}, notifier.warnings)
	assert.Empty(t, notifier.errors)
}

func TestPreflightValidator_ValidationUnavailableProceeds(t *testing.T) {
	v := NewPreflightValidator(&unavailableControlPlane{newMockControlPlane()}, &mockNotifier{}, nil)

	assert.True(t, v.ValidateConfig(context.Background(), "plex", app.DeployConfig{}))
	assert.True(t, v.RunPreflight(context.Background(), "host_attic", "plex", app.DeployConfig{}))
}

func TestPreflightValidator_FailingChecksBlock(t *testing.T) {
	api := newMockControlPlane()
	api.preflight = controlplane.PreflightResult{
		Passed: false,
		Checks: []controlplane.PreflightCheck{
			{Name: "disk_space", Passed: false, Message: "less than 1GB free"},
			{Name: "runtime", Passed: true},
			{Name: "network", Passed: false},
		},
	}
	notifier := &mockNotifier{}
	v := NewPreflightValidator(api, notifier, nil)

	ok := v.RunPreflight(context.Background(), "host_attic", "plex", app.DeployConfig{})

	assert.False(t, ok)
	require.Len(t, notifier.errors, 1)
	assert.Contains(t, notifier.errors[0], "disk_space: less than 1GB free")
	assert.Contains(t, notifier.errors[0], "network")
}

func TestPreflightValidator_PassingChecksProceed(t *testing.T) {
	api := newMockControlPlane()
	api.preflight = controlplane.PreflightResult{
		Passed: true,
		Checks: []controlplane.PreflightCheck{
			{Name: "disk_space", Passed: true},
		},
	}
	notifier := &mockNotifier{}
	v := NewPreflightValidator(api, notifier, nil)

	assert.True(t, v.RunPreflight(context.Background(), "host_attic", "plex", app.DeployConfig{}))
	assert.Empty(t, notifier.errors)
}
