package app

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Config Payload Tests
// =============================================================================

func TestDeployConfig_Payload_OmitsEmptySections(t *testing.T) {
	cfg := DeployConfig{
		Ports:   map[string]string{"8080": "80"},
		Volumes: map[string]string{},
		Env:     nil,
	}

	p := cfg.Payload()

	assert.Equal(t, map[string]string{"8080": "80"}, p.Ports)
	assert.Nil(t, p.Volumes)
	assert.Nil(t, p.Env)
}

func TestDeployConfig_Payload_AllEmpty(t *testing.T) {
	p := DeployConfig{}.Payload()

	assert.Nil(t, p.Ports)
	assert.Nil(t, p.Volumes)
	assert.Nil(t, p.Env)
}

func TestDeployConfig_Payload_WireFormHasNoNoiseKeys(t *testing.T) {
	cfg := DeployConfig{
		Env: map[string]string{"TZ": "UTC"},
	}

	raw, err := json.Marshal(cfg.Payload())
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.Contains(t, decoded, "env")
	assert.NotContains(t, decoded, "ports")
	assert.NotContains(t, decoded, "volumes")
}

func TestDeployConfig_Payload_AllSectionsPresent(t *testing.T) {
	cfg := DeployConfig{
		Ports:   map[string]string{"8080": "80"},
		Volumes: map[string]string{"/config": "/mnt/data/plex"},
		Env:     map[string]string{"TZ": "UTC"},
	}

	p := cfg.Payload()

	assert.Equal(t, cfg.Ports, p.Ports)
	assert.Equal(t, cfg.Volumes, p.Volumes)
	assert.Equal(t, cfg.Env, p.Env)
}

func TestDeployConfig_IsEmpty(t *testing.T) {
	assert.True(t, DeployConfig{}.IsEmpty())
	assert.False(t, DeployConfig{Env: map[string]string{"A": "1"}}.IsEmpty())
}
