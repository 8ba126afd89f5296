package ports

import (
	"context"

	"github.com/trustvibe/escrow-service/internal/domain"
)

// PlatformConfigStore serves the fee/hold-policy/feature-flag document.
// Snapshot is read once at the start of each operation; the returned value is
// a copy the operation can rely on for its whole duration.
type PlatformConfigStore interface {
	Snapshot(ctx context.Context) (domain.PlatformConfig, error)
	Put(ctx context.Context, cfg domain.PlatformConfig) error
}
