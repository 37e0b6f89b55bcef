package capability

import (
	dErrors "fiat/pkg/domain-errors"
)

// Tier is the RBAC tier required to exercise a capability.
// Tiers are totally ordered: viewer < editor < manager < admin < system.
type Tier string

const (
	TierViewer  Tier = "viewer"
	TierEditor  Tier = "editor"
	TierManager Tier = "manager"
	TierAdmin   Tier = "admin"
	TierSystem  Tier = "system"
)

var tierRank = map[Tier]int{
	TierViewer:  1,
	TierEditor:  2,
	TierManager: 3,
	TierAdmin:   4,
	TierSystem:  5,
}

// Covers reports whether an actor holding tier t may exercise a capability
// requiring tier required.
func (t Tier) Covers(required Tier) bool {
	return tierRank[t] >= tierRank[required]
}

// IsValid checks if the tier is one of the supported enum values.
func (t Tier) IsValid() bool {
	_, ok := tierRank[t]
	return ok
}

// Scope bounds where a capability applies.
type Scope string

const (
	ScopeOrg     Scope = "org"
	ScopeCompany Scope = "company"
	ScopeSite    Scope = "site"
	ScopeGlobal  Scope = "global"
)

// IsValid checks if the scope is one of the supported enum values.
func (s Scope) IsValid() bool {
	switch s {
	case ScopeOrg, ScopeCompany, ScopeSite, ScopeGlobal:
		return true
	}
	return false
}

// Status is the lifecycle status of a catalog entry.
type Status string

const (
	StatusPlanned    Status = "planned"
	StatusActive     Status = "active"
	StatusDeprecated Status = "deprecated"
)

// IsValid checks if the status is one of the supported enum values.
func (s Status) IsValid() bool {
	switch s {
	case StatusPlanned, StatusActive, StatusDeprecated:
		return true
	}
	return false
}

// RiskTag marks capabilities that need extra scrutiny in review and audit.
type RiskTag string

const (
	RiskFinancial    RiskTag = "financial"
	RiskPII          RiskTag = "pii"
	RiskAudit        RiskTag = "audit"
	RiskIrreversible RiskTag = "irreversible"
)

// EffectKind names the outbox intent kind a committed mutation produces.
type EffectKind string

const (
	EffectWorkflow    EffectKind = "workflow"
	EffectSearch      EffectKind = "search"
	EffectWebhook     EffectKind = "webhook"
	EffectIntegration EffectKind = "integration"
)

// Effect declares one side effect a committed mutation of this action emits.
// The plan builder turns the declaration into outbox intents deterministically,
// preserving declaration order.
type Effect struct {
	Kind  EffectKind
	Event string
}

// Entry is the raw catalog input before derivation. Tier is never hand-set;
// Scope defaults to org when omitted.
type Entry struct {
	Key      Key
	Intent   string
	Scope    Scope
	Status   Status
	Risk     []RiskTag
	Produces []Effect
}

// Descriptor is the immutable, fully-derived record served by the catalog.
type Descriptor struct {
	Key      Key
	Parsed   ParsedKey
	Kind     Kind
	Family   Family // set only for mutation-kind descriptors
	Intent   string
	Scope    Scope
	Status   Status
	Risk     []RiskTag
	Produces []Effect
	Tier     Tier // derived, never hand-set
}

// kindTiers derives the tier for non-mutation kinds.
var kindTiers = map[Kind]Tier{
	KindRead:    TierViewer,
	KindSearch:  TierViewer,
	KindAdmin:   TierAdmin,
	KindSystem:  TierSystem,
	KindAuth:    TierSystem,
	KindStorage: TierEditor,
}

// familyTiers derives the tier for mutation-kind descriptors from the verb family.
var familyTiers = map[Family]Tier{
	FamilyFieldMutation:   TierEditor,
	FamilyLifecycle:       TierEditor,
	FamilyStateTransition: TierManager,
	FamilyOwnership:       TierAdmin,
	FamilySystem:          TierSystem,
}

// deriveTier is the single pure derivation used at catalog load. It is total
// over valid (kind, family) pairs and deterministic; derivation never runs at
// request time.
func deriveTier(kind Kind, family Family) (Tier, error) {
	if kind == KindMutation {
		tier, ok := familyTiers[family]
		if !ok {
			return "", dErrors.Newf(dErrors.CodeInvariantViolation, "no tier for mutation family %q", family)
		}
		return tier, nil
	}
	tier, ok := kindTiers[kind]
	if !ok {
		return "", dErrors.Newf(dErrors.CodeInvariantViolation, "no tier for kind %q", kind)
	}
	return tier, nil
}
