package idempotency

import (
	"context"
	"fmt"
	"sync"

	"fiat/internal/mutation/models"
	"fiat/pkg/platform/sentinel"
)

// InMemoryStore keeps receipts in a map. Used by tests and the no-database
// development mode.
type InMemoryStore struct {
	mu       sync.RWMutex
	receipts map[Key]models.OK
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{receipts: make(map[Key]models.OK)}
}

func (s *InMemoryStore) Get(_ context.Context, key Key) (*models.OK, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	receipt, ok := s.receipts[key]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &receipt, nil
}

func (s *InMemoryStore) Put(_ context.Context, key Key, receipt models.OK) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.receipts[key]; exists {
		return fmt.Errorf("idempotency key %q: %w", key.Key, sentinel.ErrConflict)
	}
	s.receipts[key] = receipt
	return nil
}

// Snapshot captures the store state for the in-memory transaction runner.
func (s *InMemoryStore) Snapshot() map[Key]models.OK {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := make(map[Key]models.OK, len(s.receipts))
	for k, v := range s.receipts {
		snapshot[k] = v
	}
	return snapshot
}

// Restore rolls the store back to a previously captured snapshot.
func (s *InMemoryStore) Restore(snapshot map[Key]models.OK) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.receipts = snapshot
}
