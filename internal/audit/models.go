// Package audit is the append-only ledger of mutation attempts.
//
// Entries are immutable once written; no update or delete path exists in any
// store implementation. The version witnesses enforce monotonicity: whenever
// versionBefore is non-nil, versionAfter must be strictly greater, and a nil
// versionBefore is permitted only for creates.
package audit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"fiat/internal/capability"
	domain "fiat/pkg/domain"
	dErrors "fiat/pkg/domain-errors"
)

// Entry is one ledger record. Identity fields correlate the entry with the
// request and receipt; payload fields capture before/after/diff as JSON.
type Entry struct {
	ID         uuid.UUID
	OrgID      domain.OrgID
	ActorID    domain.ActorID
	RequestID  string
	MutationID domain.MutationID
	BatchID    *domain.BatchID

	Action     capability.Key
	ActionKind capability.Kind
	Family     capability.Family
	EntityType domain.EntityType
	EntityID   domain.EntityID

	VersionBefore *int64
	VersionAfter  int64

	Channel   string
	ClientIP  string
	UserAgent string

	Before json.RawMessage
	After  json.RawMessage
	Diff   json.RawMessage

	CreatedAt time.Time
}

// NewEntry validates an entry and stamps defaults. The version invariant is
// checked here so no store can persist a breach: versionAfter must exceed a
// non-nil versionBefore, and versionBefore may be nil only when the entry
// records a create.
func NewEntry(entry Entry) (Entry, error) {
	if entry.MutationID.IsNil() {
		return Entry{}, dErrors.New(dErrors.CodeInvariantViolation, "audit entry requires a mutation id")
	}
	if entry.EntityType == "" {
		return Entry{}, dErrors.New(dErrors.CodeInvariantViolation, "audit entry requires an entity type")
	}
	if entry.EntityID.IsNil() {
		return Entry{}, dErrors.New(dErrors.CodeInvariantViolation, "audit entry requires an entity id")
	}

	if entry.VersionBefore == nil {
		if entry.Parsed().Verb != "create" {
			return Entry{}, dErrors.New(dErrors.CodeInvariantViolation, "nil versionBefore is permitted only for creates")
		}
	} else if entry.VersionAfter <= *entry.VersionBefore {
		return Entry{}, dErrors.Newf(dErrors.CodeInvariantViolation,
			"versionAfter %d must exceed versionBefore %d", entry.VersionAfter, *entry.VersionBefore)
	}

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	return entry, nil
}

// Parsed decomposes the entry's action key. Entries are only built from
// catalog-validated keys, so parse failures collapse to a zero value.
func (e Entry) Parsed() capability.ParsedKey {
	parsed, err := capability.ParseKey(e.Action)
	if err != nil {
		return capability.ParsedKey{}
	}
	return parsed
}
