package audit

import (
	"context"

	domain "fiat/pkg/domain"
)

// Store is the append-only persistence contract for the ledger. There is
// deliberately no update or delete operation.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	ListByEntity(ctx context.Context, entityType domain.EntityType, entityID domain.EntityID) ([]Entry, error)
}
