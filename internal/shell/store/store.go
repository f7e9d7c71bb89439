package store

import (
	"context"

	"github.com/appdeck/appdeck/internal/core/host"
)

// =============================================================================
// Store Interface
// =============================================================================

// Store defines the persistence interface for the host registry. Only host
// identity and connectivity are persisted; in-flight deployment state is
// ephemeral and rebuilt from the control plane.
type Store interface {
	CreateHost(ctx context.Context, h *host.Host) error
	GetHost(ctx context.Context, id string) (*host.Host, error)
	UpdateHost(ctx context.Context, h *host.Host) error
	DeleteHost(ctx context.Context, id string) error
	ListHosts(ctx context.Context) ([]host.Host, error)

	Close() error
}
