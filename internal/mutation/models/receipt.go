package models

import (
	"github.com/google/uuid"

	domain "fiat/pkg/domain"
)

// Status discriminates the receipt union.
type Status string

const (
	StatusOK       Status = "ok"
	StatusRejected Status = "rejected"
	StatusError    Status = "error"
)

// ErrorCode is the closed set of caller-visible failure codes.
type ErrorCode string

const (
	CodeMissingOrgID      ErrorCode = "MISSING_ORG_ID"
	CodeValidationFailed  ErrorCode = "VALIDATION_FAILED"
	CodePolicyDenied      ErrorCode = "POLICY_DENIED"
	CodeLifecycleDenied   ErrorCode = "LIFECYCLE_DENIED"
	CodeRateLimited       ErrorCode = "RATE_LIMITED"
	CodeConflictVersion   ErrorCode = "CONFLICT_VERSION"
	CodeIdempotencyReplay ErrorCode = "IDEMPOTENCY_REPLAY"
	CodeNotFound          ErrorCode = "NOT_FOUND"
	CodeInternalError     ErrorCode = "INTERNAL_ERROR"
)

// RetryReason is the machine-readable cause on retryable error receipts.
type RetryReason string

const (
	RetryRateLimited RetryReason = "rate_limited"
	RetryDBTimeout   RetryReason = "db_timeout"
	RetryTransient   RetryReason = "transient_error"
)

// Receipt is the closed sum of mutation outcomes. Exactly one variant per
// status; the unexported marker seals the set so no caller can introduce a
// variant mixing fields from incompatible outcomes. A receipt is created
// exactly once per mutation attempt and never mutated afterwards.
type Receipt interface {
	Status() Status
	Mutation() domain.MutationID
	isReceipt()
}

// OK records a committed mutation. VersionBefore is nil only for creates.
type OK struct {
	MutationID    domain.MutationID `json:"mutationId"`
	EntityID      domain.EntityID   `json:"entityId"`
	VersionBefore *int64            `json:"versionBefore"`
	VersionAfter  int64             `json:"versionAfter"`
	AuditLogID    *uuid.UUID        `json:"auditLogId"`
}

func (r OK) Status() Status              { return StatusOK }
func (r OK) Mutation() domain.MutationID { return r.MutationID }
func (OK) isReceipt()                    {}

// Rejected records a client fault. Non-retryable; carries no version pair.
type Rejected struct {
	MutationID domain.MutationID `json:"mutationId"`
	Code       ErrorCode         `json:"errorCode"`
	Message    string            `json:"message"`
	Details    map[string]any    `json:"details,omitempty"`
}

func (r Rejected) Status() Status              { return StatusRejected }
func (r Rejected) Mutation() domain.MutationID { return r.MutationID }
func (Rejected) isReceipt()                    {}

// ErrorID is the stable correlation id "{errorCode}:{mutationId}".
func (r Rejected) ErrorID() string {
	return string(r.Code) + ":" + r.MutationID.String()
}

// Error records a server or infrastructure fault.
type Error struct {
	MutationID   domain.MutationID `json:"mutationId"`
	Code         ErrorCode         `json:"errorCode"`
	Message      string            `json:"message"`
	Retryable    bool              `json:"retryable"`
	RetryAfterMS *int64            `json:"retryAfterMs,omitempty"`
	Reason       RetryReason       `json:"retryableReason,omitempty"`
}

func (r Error) Status() Status              { return StatusError }
func (r Error) Mutation() domain.MutationID { return r.MutationID }
func (Error) isReceipt()                    {}

// ErrorID is the stable correlation id "{errorCode}:{mutationId}".
func (r Error) ErrorID() string {
	return string(r.Code) + ":" + r.MutationID.String()
}
