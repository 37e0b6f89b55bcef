package audit

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "fiat/pkg/domain"
	dErrors "fiat/pkg/domain-errors"
)

func validEntry() Entry {
	before := int64(3)
	return Entry{
		OrgID:         domain.OrgID(uuid.New()),
		ActorID:       domain.ActorID(uuid.New()),
		MutationID:    domain.NewMutationID(),
		Action:        "contacts.update",
		EntityType:    "contacts",
		EntityID:      domain.NewEntityID(),
		VersionBefore: &before,
		VersionAfter:  4,
	}
}

// TestNewEntry_VersionMonotonicity encodes the ledger invariant: versionAfter
// strictly exceeds a non-nil versionBefore, and nil versionBefore is
// permitted only for creates.
func TestNewEntry_VersionMonotonicity(t *testing.T) {
	t.Run("update with increasing versions is accepted", func(t *testing.T) {
		entry, err := NewEntry(validEntry())
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, entry.ID, "id is stamped")
		assert.False(t, entry.CreatedAt.IsZero(), "timestamp is stamped")
	})

	t.Run("equal versions are rejected", func(t *testing.T) {
		entry := validEntry()
		entry.VersionAfter = *entry.VersionBefore
		_, err := NewEntry(entry)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("decreasing versions are rejected", func(t *testing.T) {
		entry := validEntry()
		entry.VersionAfter = *entry.VersionBefore - 1
		_, err := NewEntry(entry)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("nil versionBefore on a create is accepted", func(t *testing.T) {
		entry := validEntry()
		entry.Action = "contacts.create"
		entry.VersionBefore = nil
		entry.VersionAfter = 1
		_, err := NewEntry(entry)
		require.NoError(t, err)
	})

	t.Run("nil versionBefore on an update is rejected", func(t *testing.T) {
		entry := validEntry()
		entry.VersionBefore = nil
		_, err := NewEntry(entry)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func TestNewEntry_RequiredIdentity(t *testing.T) {
	t.Run("missing mutation id", func(t *testing.T) {
		entry := validEntry()
		entry.MutationID = domain.MutationID{}
		_, err := NewEntry(entry)
		require.Error(t, err)
	})

	t.Run("missing entity id", func(t *testing.T) {
		entry := validEntry()
		entry.EntityID = domain.EntityID{}
		_, err := NewEntry(entry)
		require.Error(t, err)
	})

	t.Run("missing entity type", func(t *testing.T) {
		entry := validEntry()
		entry.EntityType = ""
		_, err := NewEntry(entry)
		require.Error(t, err)
	})
}
