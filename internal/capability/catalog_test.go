package capability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "fiat/pkg/domain-errors"
)

// TestDefaultCatalog_Totality encodes the catalog totality property: every
// shipped key validates and carries a non-empty derived tier and scope.
func TestDefaultCatalog_Totality(t *testing.T) {
	catalog, err := Default()
	require.NoError(t, err)
	require.Equal(t, len(builtinEntries), catalog.Len())

	for _, key := range catalog.Keys() {
		desc, err := catalog.Validate(key)
		require.NoError(t, err, "key %q", key)
		assert.True(t, desc.Tier.IsValid(), "key %q has no derived tier", key)
		assert.True(t, desc.Scope.IsValid(), "key %q has no derived scope", key)
		assert.NotEmpty(t, desc.Kind, "key %q has no kind", key)
	}
}

// TestLoad_TierDerivation verifies the derivation tables from the design:
// mutation tiers come from the verb family, non-mutation tiers from the kind.
func TestLoad_TierDerivation(t *testing.T) {
	tests := []struct {
		key      Key
		wantTier Tier
	}{
		{"contacts.update", TierEditor},  // field_mutation
		{"contacts.create", TierEditor},  // lifecycle
		{"contacts.delete", TierEditor},  // lifecycle
		{"invoices.submit", TierManager}, // state_transition
		{"invoices.cancel", TierManager}, // state_transition
		{"invoices.transfer", TierAdmin}, // ownership
		{"orders.assign", TierAdmin},     // ownership
		{"contacts.get", TierViewer},     // read kind
		{"search.contacts.query", TierViewer},
		{"admin.roles.grant", TierAdmin},
		{"system.jobs.migrate", TierSystem},
		{"auth.sessions.impersonate", TierSystem},
		{"storage.files.upload", TierEditor},
	}

	catalog, err := Default()
	require.NoError(t, err)
	for _, tt := range tests {
		t.Run(string(tt.key), func(t *testing.T) {
			desc, err := catalog.Validate(tt.key)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTier, desc.Tier)
		})
	}
}

func TestLoad_Failures(t *testing.T) {
	t.Run("unknown verb fails the load", func(t *testing.T) {
		_, err := Load([]Entry{{Key: "contacts.explode"}})
		require.Error(t, err)
	})

	t.Run("unknown namespace fails the load", func(t *testing.T) {
		_, err := Load([]Entry{{Key: "warehouse.contacts.update"}})
		require.Error(t, err)
	})

	t.Run("malformed key fails the load", func(t *testing.T) {
		_, err := Load([]Entry{{Key: "contacts"}})
		require.Error(t, err)
	})

	t.Run("duplicate key fails the load", func(t *testing.T) {
		_, err := Load([]Entry{{Key: "contacts.update"}, {Key: "contacts.update"}})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("invalid scope fails the load", func(t *testing.T) {
		_, err := Load([]Entry{{Key: "contacts.update", Scope: Scope("planet")}})
		require.Error(t, err)
	})
}

func TestValidate_UnknownKey(t *testing.T) {
	catalog, err := Default()
	require.NoError(t, err)

	_, err = catalog.Validate("contacts.purge")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestLoad_Defaults(t *testing.T) {
	catalog, err := Load([]Entry{{Key: "contacts.update"}})
	require.NoError(t, err)

	desc, err := catalog.Validate("contacts.update")
	require.NoError(t, err)
	assert.Equal(t, ScopeOrg, desc.Scope, "scope defaults to org")
	assert.Equal(t, StatusActive, desc.Status, "status defaults to active")
}
