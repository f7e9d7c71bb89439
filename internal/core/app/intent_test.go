package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Intent Tests
// =============================================================================

func TestNewIntent_RequiresApplication(t *testing.T) {
	_, err := NewIntent("", "Plex", []string{"host-1"}, DeployConfig{})
	assert.ErrorIs(t, err, ErrNoApplication)
}

func TestNewIntent_RequiresHosts(t *testing.T) {
	_, err := NewIntent("plex", "Plex", nil, DeployConfig{})
	assert.ErrorIs(t, err, ErrNoHosts)

	_, err = NewIntent("plex", "Plex", []string{"", ""}, DeployConfig{})
	assert.ErrorIs(t, err, ErrNoHosts)
}

func TestNewIntent_DeduplicatesPreservingOrder(t *testing.T) {
	intent, err := NewIntent("plex", "Plex", []string{"b", "a", "b", "c", "a"}, DeployConfig{})
	require.NoError(t, err)

	assert.Equal(t, []string{"b", "a", "c"}, intent.HostIDs)
}

func TestNewIntent_CarriesConfig(t *testing.T) {
	cfg := DeployConfig{Env: map[string]string{"TZ": "UTC"}}
	intent, err := NewIntent("plex", "Plex", []string{"a"}, cfg)
	require.NoError(t, err)

	assert.Equal(t, "plex", intent.AppID)
	assert.Equal(t, "Plex", intent.AppName)
	assert.Equal(t, cfg, intent.Config)
}

// =============================================================================
// Outcome Tests
// =============================================================================

func TestOutcome_HeadlineError_SuccessIsEmpty(t *testing.T) {
	o := Outcome{OverallSuccess: true, Failures: []HostFailure{{HostID: "b", Message: "disk full"}}}
	assert.Empty(t, o.HeadlineError(2))
}

func TestOutcome_HeadlineError_SingleHostVerbatim(t *testing.T) {
	o := Outcome{Failures: []HostFailure{{HostID: "a", HostName: "nas", Message: "disk full"}}}
	assert.Equal(t, "disk full", o.HeadlineError(1))
}

func TestOutcome_HeadlineError_MultiHostAggregate(t *testing.T) {
	o := Outcome{Failures: []HostFailure{
		{HostID: "a", Message: "disk full"},
		{HostID: "b", Message: "timeout"},
	}}

	headline := o.HeadlineError(2)
	assert.NotEqual(t, "disk full", headline)
	assert.NotEqual(t, "timeout", headline)
	assert.Contains(t, headline, "2 hosts")
}
