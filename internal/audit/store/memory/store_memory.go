package memory

import (
	"context"
	"sync"

	"fiat/internal/audit"
	domain "fiat/pkg/domain"
)

// InMemoryStore keeps ledger entries in append order. Entries are copied on
// read so callers can never mutate the ledger.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries []audit.Entry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, entry audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *InMemoryStore) ListByEntity(_ context.Context, entityType domain.EntityType, entityID domain.EntityID) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []audit.Entry
	for _, entry := range s.entries {
		if entry.EntityType == entityType && entry.EntityID == entityID {
			out = append(out, entry)
		}
	}
	return out, nil
}

// All returns every entry in append order. Test helper.
func (s *InMemoryStore) All() []audit.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Entry{}, s.entries...)
}

// Snapshot captures the ledger state for the in-memory transaction runner.
func (s *InMemoryStore) Snapshot() []audit.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Entry{}, s.entries...)
}

// Restore rolls the ledger back to a previously captured snapshot.
func (s *InMemoryStore) Restore(snapshot []audit.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = snapshot
}
