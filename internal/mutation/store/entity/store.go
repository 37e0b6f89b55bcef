// Package entity persists the opaque entity snapshots the kernel governs.
// The kernel addresses rows only by (org, type, id, version); business schema
// stays an external concern behind the jsonb field bag.
package entity

import (
	"context"

	"fiat/internal/lifecycle"
	"fiat/internal/mutation/models"
	domain "fiat/pkg/domain"
)

// Store reads and writes entity snapshots. Writes use compare-and-swap on the
// version counter: Update affects zero rows when the expected version lost,
// surfacing sentinel.ErrVersionConflict instead of blocking.
type Store interface {
	Get(ctx context.Context, ref domain.EntityRef) (*models.EntityState, error)
	Insert(ctx context.Context, state models.EntityState) error
	Update(ctx context.Context, ref domain.EntityRef, expectedVersion int64, fields map[string]any, state lifecycle.State) error
}
