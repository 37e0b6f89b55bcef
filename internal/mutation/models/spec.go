// Package models holds the data shapes flowing through the mutation kernel:
// the decoded spec coming in, the plan in the middle, and the receipt going
// out.
package models

import (
	"fiat/internal/capability"
	"fiat/internal/lifecycle"
	domain "fiat/pkg/domain"
)

// MutationSpec is the decoded, transport-independent intent to change an
// entity. The auth layer resolves the actor separately; the spec carries only
// what the caller asserted.
type MutationSpec struct {
	Action capability.Key
	Entity domain.EntityRef
	Input  map[string]any

	// ExpectedVersion is the caller's optimistic concurrency witness.
	// Required for update, delete, and restore.
	ExpectedVersion *int64

	BatchID *domain.BatchID
	Reason  string

	// IdempotencyKey makes create actions safely retryable. Meaningless for
	// other verbs and ignored there.
	IdempotencyKey string
}

// EntityState is the read-only snapshot of the target entity the caller
// supplies to the plan builder. Nil for creates.
type EntityState struct {
	Ref       domain.EntityRef
	Version   int64
	Lifecycle lifecycle.State
	Fields    map[string]any
}
