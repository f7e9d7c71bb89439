// Package host contains the host domain types and readiness validation.
// Pure logic only - the registry that persists hosts lives in the shell.
package host

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Host Errors
// =============================================================================

var (
	ErrNameRequired       = errors.New("host name is required")
	ErrAddressRequired    = errors.New("host address is required")
	ErrUnknownHost        = errors.New("unknown host")
	ErrHostNotReady       = errors.New("host is not ready")
	ErrRuntimeUnsupported = errors.New("container runtime is not supported")
)

// =============================================================================
// Host Status
// =============================================================================

// Status represents the control-plane connectivity status of a host.
type Status string

const (
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
	StatusError        Status = "error"
)

// IsValid checks if the status is one of the known statuses.
func (s Status) IsValid() bool {
	switch s {
	case StatusConnected, StatusDisconnected, StatusError:
		return true
	default:
		return false
	}
}

// =============================================================================
// Container Runtimes
// =============================================================================

// SupportedRuntimes are the container runtimes deployments can target.
var SupportedRuntimes = []string{"docker", "podman"}

// RuntimeSupported checks whether a host-reported runtime can run
// deployments.
func RuntimeSupported(runtime string) bool {
	for _, r := range SupportedRuntimes {
		if r == runtime {
			return true
		}
	}
	return false
}

// =============================================================================
// Host
// =============================================================================

// Host represents a remote machine capable of running containers.
type Host struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Address      string     `json:"address"`
	Status       Status     `json:"status"`
	Runtime      string     `json:"runtime,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	LastSeenAt   *time.Time `json:"last_seen_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// GenerateHostID generates a new host ID with "host_" prefix.
func GenerateHostID() string {
	return "host_" + uuid.New().String()[:8]
}

// New creates a new host record with validated fields. Hosts start
// disconnected until the control plane reports them.
func New(name, address string) (*Host, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrNameRequired
	}
	if strings.TrimSpace(address) == "" {
		return nil, ErrAddressRequired
	}

	now := time.Now().UTC()
	return &Host{
		ID:        GenerateHostID(),
		Name:      name,
		Address:   address,
		Status:    StatusDisconnected,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Ready reports whether the host can accept a deployment: it must be
// connected and run a supported container runtime.
func (h *Host) Ready() bool {
	return h.Status == StatusConnected && RuntimeSupported(h.Runtime)
}

// =============================================================================
// Readiness Validation
// =============================================================================

// ValidateReady checks every host in selection order and returns a single
// aggregate error naming all offending hosts, or nil when all are ready.
func ValidateReady(hosts []*Host) error {
	var notReady []string
	for _, h := range hosts {
		if !h.Ready() {
			notReady = append(notReady, h.Name)
		}
	}
	if len(notReady) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrHostNotReady, strings.Join(notReady, ", "))
}
