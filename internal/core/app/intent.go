package app

import "errors"

// =============================================================================
// Intent Errors
// =============================================================================

var (
	ErrNoApplication = errors.New("no application selected")
	ErrNoHosts       = errors.New("no target hosts selected")
)

// =============================================================================
// Deployment Intent
// =============================================================================

// Intent captures one "install app X on hosts H1..Hn" decision. It is
// immutable for the lifetime of a deployment attempt; a retry reuses the same
// intent for a fresh attempt.
type Intent struct {
	AppID   string
	AppName string
	HostIDs []string
	Config  DeployConfig
}

// NewIntent validates the selection and returns an Intent with duplicate host
// ids removed, preserving selection order.
func NewIntent(appID, appName string, hostIDs []string, config DeployConfig) (Intent, error) {
	if appID == "" {
		return Intent{}, ErrNoApplication
	}
	if len(hostIDs) == 0 {
		return Intent{}, ErrNoHosts
	}

	seen := make(map[string]bool, len(hostIDs))
	unique := make([]string, 0, len(hostIDs))
	for _, id := range hostIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		unique = append(unique, id)
	}
	if len(unique) == 0 {
		return Intent{}, ErrNoHosts
	}

	return Intent{
		AppID:   appID,
		AppName: appName,
		HostIDs: unique,
		Config:  config,
	}, nil
}
