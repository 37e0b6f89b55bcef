// Package idempotency stores committed receipts keyed by the caller-supplied
// idempotency key, so retried submissions replay the original outcome instead
// of re-executing the mutation.
package idempotency

import (
	"context"

	"fiat/internal/mutation/models"
	domain "fiat/pkg/domain"
)

// Key scopes an idempotency record. Replay matches require the same org,
// action and caller key; a reused key under a different action is a distinct
// record, not a replay.
type Key struct {
	OrgID  domain.OrgID
	Action string
	Key    string
}

// Store persists successful receipts for replay. Only OK receipts are stored:
// rejected and error outcomes must stay retryable.
type Store interface {
	// Get returns the stored receipt, or sentinel.ErrNotFound when the key
	// has never committed.
	Get(ctx context.Context, key Key) (*models.OK, error)

	// Put records the receipt for a committed mutation. It participates in
	// the commit transaction when one is bound to ctx.
	Put(ctx context.Context, key Key, receipt models.OK) error
}
