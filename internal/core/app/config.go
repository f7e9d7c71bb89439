package app

// =============================================================================
// Deployment Configuration
// =============================================================================

// DeployConfig holds the operator-supplied configuration for an installation.
// All three sections are optional. The orchestration core never mutates it;
// callers set values before committing to a deployment.
type DeployConfig struct {
	// Ports maps container port -> host port.
	Ports map[string]string `json:"ports,omitempty"`
	// Volumes maps container path -> host path.
	Volumes map[string]string `json:"volumes,omitempty"`
	// Env maps environment variable name -> value.
	Env map[string]string `json:"env,omitempty"`
}

// ConfigPayload is the wire form of a DeployConfig. Empty sections are
// represented as absent so the payload carries no noise keys.
type ConfigPayload struct {
	Ports   map[string]string `json:"ports,omitempty"`
	Volumes map[string]string `json:"volumes,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// Payload builds the wire payload, omitting any section whose mapping is
// empty. Pure and total.
func (c DeployConfig) Payload() ConfigPayload {
	var p ConfigPayload
	if len(c.Ports) > 0 {
		p.Ports = c.Ports
	}
	if len(c.Volumes) > 0 {
		p.Volumes = c.Volumes
	}
	if len(c.Env) > 0 {
		p.Env = c.Env
	}
	return p
}

// IsEmpty returns true when no section carries any mapping.
func (c DeployConfig) IsEmpty() bool {
	return len(c.Ports) == 0 && len(c.Volumes) == 0 && len(c.Env) == 0
}
