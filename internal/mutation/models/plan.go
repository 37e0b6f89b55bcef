package models

import (
	"fiat/internal/capability"
	"fiat/internal/fieldpolicy"
	"fiat/internal/outbox"
	"fiat/internal/policy"
	domain "fiat/pkg/domain"
)

// FieldChange records one field's transition for the audit diff.
type FieldChange struct {
	From any `json:"from"`
	To   any `json:"to"`
}

// Failure records why a plan cannot commit. Kind mirrors the receipt union:
// client faults become rejected receipts, infrastructure faults become error
// receipts.
type Failure struct {
	Status    Status
	Code      ErrorCode
	Message   string
	Details   map[string]any
	Retryable bool
	Reason    RetryReason
}

// MutationPlan is the intermediate product of the plan builder. It is never
// persisted; the commit executor consumes it exactly once.
type MutationPlan struct {
	MutationID domain.MutationID
	Spec       MutationSpec
	Actor      policy.Actor
	Descriptor capability.Descriptor

	// Current is the entity snapshot the plan was built against; nil for creates.
	Current *EntityState

	// Write-set analysis.
	Sanitized map[string]any
	Stripped  []string
	Rejected  []fieldpolicy.FieldRejection
	Diff      map[string]FieldChange

	Decision          policy.Decision
	InvariantsChecked []string
	Intents           []outbox.Intent
	IdempotencyKey    string

	// Replay short-circuits the commit: the prior receipt for this
	// idempotency key is returned verbatim and nothing is reprocessed.
	Replay *OK

	// Failure is set when any planning step short-circuited.
	Failure *Failure
}

// Rejected reports whether the plan failed before any write.
func (p *MutationPlan) IsRejected() bool { return p.Failure != nil }

// IsReplay reports whether the plan resolves to a prior receipt.
func (p *MutationPlan) IsReplay() bool { return p.Replay != nil }
