package entity

import (
	"context"
	"sync"

	"fiat/internal/lifecycle"
	"fiat/internal/mutation/models"
	domain "fiat/pkg/domain"
	"fiat/pkg/platform/sentinel"
)

type memoryKey struct {
	org        domain.OrgID
	entityType domain.EntityType
	id         domain.EntityID
}

// InMemoryStore keeps entity snapshots in a map with the same CAS semantics
// as the postgres store. Used by tests and the no-database development mode.
type InMemoryStore struct {
	mu       sync.RWMutex
	entities map[memoryKey]models.EntityState
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entities: make(map[memoryKey]models.EntityState)}
}

func keyOf(ref domain.EntityRef) memoryKey {
	return memoryKey{org: ref.OrgID, entityType: ref.Type, id: ref.ID}
}

func (s *InMemoryStore) Get(_ context.Context, ref domain.EntityRef) (*models.EntityState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.entities[keyOf(ref)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := state
	copied.Fields = copyFields(state.Fields)
	return &copied, nil
}

func (s *InMemoryStore) Insert(_ context.Context, state models.EntityState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := keyOf(state.Ref)
	if _, exists := s.entities[key]; exists {
		return sentinel.ErrConflict
	}
	state.Fields = copyFields(state.Fields)
	s.entities[key] = state
	return nil
}

func (s *InMemoryStore) Update(_ context.Context, ref domain.EntityRef, expectedVersion int64, fields map[string]any, state lifecycle.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := keyOf(ref)
	current, ok := s.entities[key]
	if !ok {
		return sentinel.ErrNotFound
	}
	if current.Version != expectedVersion {
		return sentinel.ErrVersionConflict
	}

	merged := copyFields(current.Fields)
	for field, value := range fields {
		merged[field] = value
	}
	current.Fields = merged
	current.Version++
	current.Lifecycle = state
	s.entities[key] = current
	return nil
}

func copyFields(fields map[string]any) map[string]any {
	copied := make(map[string]any, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	return copied
}

// Snapshot captures the store state for the in-memory transaction runner.
func (s *InMemoryStore) Snapshot() map[memoryKey]models.EntityState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := make(map[memoryKey]models.EntityState, len(s.entities))
	for k, v := range s.entities {
		v.Fields = copyFields(v.Fields)
		snapshot[k] = v
	}
	return snapshot
}

// Restore rolls the store back to a previously captured snapshot.
func (s *InMemoryStore) Restore(snapshot map[memoryKey]models.EntityState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities = snapshot
}
