package executor

import (
	"context"
	"sync"

	auditmem "fiat/internal/audit/store/memory"
	"fiat/internal/mutation/store/entity"
	"fiat/internal/mutation/store/idempotency"
	outboxmem "fiat/internal/outbox/store/memory"
)

// MemoryTxRunner gives the in-memory stores transaction semantics: it
// snapshots every store before fn and restores them all when fn fails, so a
// partial commit can never be observed. Serializes commits with a single
// lock, which is fine for tests and the no-database development mode.
type MemoryTxRunner struct {
	mu sync.Mutex

	Entities    *entity.InMemoryStore
	Audit       *auditmem.InMemoryStore
	Outbox      *outboxmem.InMemoryStore
	Idempotency *idempotency.InMemoryStore
}

func NewMemoryTxRunner(entities *entity.InMemoryStore, auditStore *auditmem.InMemoryStore, outboxStore *outboxmem.InMemoryStore, idemStore *idempotency.InMemoryStore) *MemoryTxRunner {
	return &MemoryTxRunner{
		Entities:    entities,
		Audit:       auditStore,
		Outbox:      outboxStore,
		Idempotency: idemStore,
	}
}

func (r *MemoryTxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entitySnap := r.Entities.Snapshot()
	auditSnap := r.Audit.Snapshot()
	outboxSnap := r.Outbox.Snapshot()
	idemSnap := r.Idempotency.Snapshot()

	if err := fn(ctx); err != nil {
		r.Entities.Restore(entitySnap)
		r.Audit.Restore(auditSnap)
		r.Outbox.Restore(outboxSnap)
		r.Idempotency.Restore(idemSnap)
		return err
	}
	return nil
}
