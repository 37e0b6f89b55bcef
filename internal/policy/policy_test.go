package policy

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fiat/internal/capability"
	domain "fiat/pkg/domain"
)

func descriptorFor(t *testing.T, key capability.Key) capability.Descriptor {
	t.Helper()
	catalog, err := capability.Default()
	require.NoError(t, err)
	desc, err := catalog.Validate(key)
	require.NoError(t, err)
	return desc
}

func TestDecide(t *testing.T) {
	orgID := domain.OrgID(uuid.New())
	otherOrg := domain.OrgID(uuid.New())
	ref := domain.EntityRef{OrgID: orgID, Type: "contacts", ID: domain.NewEntityID()}

	editor := Actor{ID: domain.ActorID(uuid.New()), OrgID: orgID, Roles: []Role{RoleEditor}}
	viewer := Actor{ID: domain.ActorID(uuid.New()), OrgID: orgID, Roles: []Role{RoleViewer}}
	admin := Actor{ID: domain.ActorID(uuid.New()), OrgID: orgID, Roles: []Role{RoleAdmin}, Scopes: []capability.Scope{capability.ScopeGlobal}}

	t.Run("editor may update contacts", func(t *testing.T) {
		decision := NewDecider().Decide(editor, descriptorFor(t, "contacts.update"), ref)
		assert.True(t, decision.Allowed)
		assert.Equal(t, []capability.Key{"contacts.update"}, decision.Capabilities)
		assert.Equal(t, []capability.Scope{capability.ScopeOrg}, decision.Scopes)
		assert.Empty(t, decision.ReasonCodes)
	})

	t.Run("viewer may not update contacts", func(t *testing.T) {
		decision := NewDecider().Decide(viewer, descriptorFor(t, "contacts.update"), ref)
		assert.False(t, decision.Allowed)
		assert.Contains(t, decision.ReasonCodes, ReasonTierInsufficient)
		assert.Empty(t, decision.Capabilities, "denial is total")
	})

	t.Run("editor may not submit invoices", func(t *testing.T) {
		decision := NewDecider().Decide(editor, descriptorFor(t, "invoices.submit"), ref)
		assert.False(t, decision.Allowed)
		assert.Contains(t, decision.ReasonCodes, ReasonTierInsufficient)
	})

	t.Run("cross-org access denied even for admin", func(t *testing.T) {
		foreignRef := domain.EntityRef{OrgID: otherOrg, Type: "contacts", ID: domain.NewEntityID()}
		decision := NewDecider().Decide(admin, descriptorFor(t, "contacts.update"), foreignRef)
		assert.False(t, decision.Allowed)
		assert.Contains(t, decision.ReasonCodes, ReasonOrgMismatch)
	})

	t.Run("global scope requires a global grant", func(t *testing.T) {
		systemActor := Actor{ID: domain.ActorID(uuid.New()), OrgID: orgID, Roles: []Role{RoleSystem}}
		decision := NewDecider().Decide(systemActor, descriptorFor(t, "system.jobs.migrate"), ref)
		assert.False(t, decision.Allowed)
		assert.Contains(t, decision.ReasonCodes, ReasonScopeMismatch)

		systemActor.Scopes = []capability.Scope{capability.ScopeGlobal}
		decision = NewDecider().Decide(systemActor, descriptorFor(t, "system.jobs.migrate"), ref)
		assert.True(t, decision.Allowed)
	})

	t.Run("planned capability is inactive", func(t *testing.T) {
		decision := NewDecider().Decide(admin, descriptorFor(t, "workflow.runs.view"), ref)
		assert.False(t, decision.Allowed)
		assert.Contains(t, decision.ReasonCodes, ReasonCapabilityInactive)
	})

	t.Run("actor without roles is denied", func(t *testing.T) {
		nobody := Actor{ID: domain.ActorID(uuid.New()), OrgID: orgID}
		decision := NewDecider().Decide(nobody, descriptorFor(t, "contacts.get"), ref)
		assert.False(t, decision.Allowed)
		require.NotEmpty(t, decision.ReasonCodes, "denial must surface at least one reason")
	})

	t.Run("multiple reasons accumulate", func(t *testing.T) {
		foreignRef := domain.EntityRef{OrgID: otherOrg, Type: "contacts", ID: domain.NewEntityID()}
		decision := NewDecider().Decide(viewer, descriptorFor(t, "invoices.transfer"), foreignRef)
		assert.False(t, decision.Allowed)
		assert.Contains(t, decision.ReasonCodes, ReasonTierInsufficient)
		assert.Contains(t, decision.ReasonCodes, ReasonOrgMismatch)
	})
}

func TestActorTier(t *testing.T) {
	t.Run("highest role wins", func(t *testing.T) {
		actor := Actor{Roles: []Role{RoleViewer, RoleManager, RoleEditor}}
		assert.Equal(t, capability.TierManager, actor.Tier())
	})

	t.Run("unknown roles are ignored", func(t *testing.T) {
		actor := Actor{Roles: []Role{Role("superuser"), RoleEditor}}
		assert.Equal(t, capability.TierEditor, actor.Tier())
	})

	t.Run("no roles yields empty tier", func(t *testing.T) {
		assert.Equal(t, capability.Tier(""), Actor{}.Tier())
	})
}
