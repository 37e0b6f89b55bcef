package outbox

import "context"

// Store persists and drains outbox rows. Enqueue is called inside the commit
// transaction; ListUndelivered and MarkDelivered serve the dispatcher.
type Store interface {
	Enqueue(ctx context.Context, rows []Row) error
	ListUndelivered(ctx context.Context, limit int) ([]Row, error)
	MarkDelivered(ctx context.Context, rows []Row) error
}
