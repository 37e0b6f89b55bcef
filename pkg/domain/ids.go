// Package domain holds the typed identifiers shared across the kernel.
//
// Every ID is a distinct uuid-backed type so the compiler rejects cross-type
// assignment (an ActorID can never stand in for an EntityID). Construct IDs
// from external input via the Parse* functions; direct casting bypasses
// validation and is reserved for trusted internal call sites.
package domain

import (
	"github.com/google/uuid"

	dErrors "fiat/pkg/domain-errors"
)

// OrgID identifies the tenant organization a mutation is scoped to.
type OrgID uuid.UUID

// ActorID identifies the user or service account performing a mutation.
type ActorID uuid.UUID

// EntityID identifies a business entity row in the opaque persistence target.
type EntityID uuid.UUID

// MutationID identifies one mutation attempt. Minted once per attempt and
// threaded through plan, receipt, and audit entry for correlation.
type MutationID uuid.UUID

// BatchID groups mutations submitted together by a caller.
type BatchID uuid.UUID

// parseUUID enforces the shared ID invariant: valid, non-empty, non-nil.
func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid id format")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be the nil uuid")
	}
	return u, nil
}

// ParseOrgID constructs an OrgID from external input.
func ParseOrgID(s string) (OrgID, error) {
	u, err := parseUUID(s)
	return OrgID(u), err
}

// ParseActorID constructs an ActorID from external input.
func ParseActorID(s string) (ActorID, error) {
	u, err := parseUUID(s)
	return ActorID(u), err
}

// ParseEntityID constructs an EntityID from external input.
func ParseEntityID(s string) (EntityID, error) {
	u, err := parseUUID(s)
	return EntityID(u), err
}

// ParseMutationID constructs a MutationID from external input.
func ParseMutationID(s string) (MutationID, error) {
	u, err := parseUUID(s)
	return MutationID(u), err
}

// ParseBatchID constructs a BatchID from external input.
func ParseBatchID(s string) (BatchID, error) {
	u, err := parseUUID(s)
	return BatchID(u), err
}

// NewMutationID mints a fresh mutation attempt identifier.
func NewMutationID() MutationID { return MutationID(uuid.New()) }

// NewEntityID mints a fresh entity identifier for create operations.
func NewEntityID() EntityID { return EntityID(uuid.New()) }

func (i OrgID) IsNil() bool      { return uuid.UUID(i) == uuid.Nil }
func (i ActorID) IsNil() bool    { return uuid.UUID(i) == uuid.Nil }
func (i EntityID) IsNil() bool   { return uuid.UUID(i) == uuid.Nil }
func (i MutationID) IsNil() bool { return uuid.UUID(i) == uuid.Nil }
func (i BatchID) IsNil() bool    { return uuid.UUID(i) == uuid.Nil }

func (i OrgID) String() string      { return uuid.UUID(i).String() }
func (i ActorID) String() string    { return uuid.UUID(i).String() }
func (i EntityID) String() string   { return uuid.UUID(i).String() }
func (i MutationID) String() string { return uuid.UUID(i).String() }
func (i BatchID) String() string    { return uuid.UUID(i).String() }
