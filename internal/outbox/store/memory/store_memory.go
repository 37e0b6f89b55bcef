package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"fiat/internal/outbox"
)

// InMemoryStore keeps outbox rows in insertion order. Used by tests and the
// no-database development mode.
type InMemoryStore struct {
	mu   sync.RWMutex
	rows []outbox.Row
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Enqueue(_ context.Context, rows []outbox.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, rows...)
	return nil
}

func (s *InMemoryStore) ListUndelivered(_ context.Context, limit int) ([]outbox.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pending []outbox.Row
	for _, row := range s.rows {
		if row.DeliveredAt == nil {
			pending = append(pending, row)
			if len(pending) == limit {
				break
			}
		}
	}
	return pending, nil
}

func (s *InMemoryStore) MarkDelivered(_ context.Context, rows []outbox.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make(map[uuid.UUID]bool, len(rows))
	for _, row := range rows {
		ids[row.ID] = true
	}
	now := time.Now()
	for i := range s.rows {
		if ids[s.rows[i].ID] && s.rows[i].DeliveredAt == nil {
			s.rows[i].DeliveredAt = &now
		}
	}
	return nil
}

// All returns every row in insertion order. Test helper.
func (s *InMemoryStore) All() []outbox.Row {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]outbox.Row{}, s.rows...)
}

// Snapshot captures the store state for the in-memory transaction runner.
func (s *InMemoryStore) Snapshot() []outbox.Row {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]outbox.Row{}, s.rows...)
}

// Restore rolls the store back to a previously captured snapshot.
func (s *InMemoryStore) Restore(snapshot []outbox.Row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = snapshot
}
