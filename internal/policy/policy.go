// Package policy is the decision point for mutation authorization.
//
// Decide is pure: it consults the actor's already-resolved authority (roles,
// org, scope grants) against the descriptor's derived tier and scope. It
// performs no I/O; resolving the actor from credentials is the transport
// layer's job. Denial is total and always carries at least one reason code.
package policy

import (
	"fiat/internal/capability"
	domain "fiat/pkg/domain"
)

// Role is a named grant resolved for the actor by the auth layer.
type Role string

const (
	RoleViewer  Role = "viewer"
	RoleEditor  Role = "editor"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
	RoleSystem  Role = "system"
)

// roleTiers maps each role onto the capability tier it confers.
var roleTiers = map[Role]capability.Tier{
	RoleViewer:  capability.TierViewer,
	RoleEditor:  capability.TierEditor,
	RoleManager: capability.TierManager,
	RoleAdmin:   capability.TierAdmin,
	RoleSystem:  capability.TierSystem,
}

// Actor is the resolved authority of the caller. The kernel never sees
// credentials, only this projection.
type Actor struct {
	ID     domain.ActorID
	OrgID  domain.OrgID
	Roles  []Role
	Scopes []capability.Scope
}

// Tier returns the highest tier conferred by the actor's roles.
func (a Actor) Tier() capability.Tier {
	best := capability.Tier("")
	for _, role := range a.Roles {
		tier, ok := roleTiers[role]
		if !ok {
			continue
		}
		if best == "" || tier.Covers(best) {
			best = tier
		}
	}
	return best
}

// HasScope reports whether the actor holds the given scope grant. Every
// actor implicitly holds org scope within their own org.
func (a Actor) HasScope(scope capability.Scope) bool {
	if scope == capability.ScopeOrg {
		return true
	}
	for _, s := range a.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Reason codes surfaced on denial.
const (
	ReasonTierInsufficient   = "TIER_INSUFFICIENT"
	ReasonScopeMismatch      = "SCOPE_MISMATCH"
	ReasonOrgMismatch        = "ORG_MISMATCH"
	ReasonCapabilityInactive = "CAPABILITY_INACTIVE"
)

// Decision is the outcome of a policy check. When Allowed is false,
// ReasonCodes carries at least one entry; there is no partial allow.
type Decision struct {
	Allowed      bool
	Capabilities []capability.Key
	Scopes       []capability.Scope
	ReasonCodes  []string
}

// Decider evaluates actors against capability descriptors.
type Decider struct{}

// NewDecider constructs a Decider.
func NewDecider() *Decider { return &Decider{} }

// Decide returns the allow/deny decision for the actor exercising the
// described capability against the referenced entity.
func (d *Decider) Decide(actor Actor, desc capability.Descriptor, ref domain.EntityRef) Decision {
	var reasons []string

	// Planned capabilities are catalogued intent, not served behavior.
	// Deprecated ones keep working until removed from the catalog.
	if desc.Status == capability.StatusPlanned {
		reasons = append(reasons, ReasonCapabilityInactive)
	}

	actorTier := actor.Tier()
	if actorTier == "" || !actorTier.Covers(desc.Tier) {
		reasons = append(reasons, ReasonTierInsufficient)
	}

	if !actor.HasScope(desc.Scope) {
		reasons = append(reasons, ReasonScopeMismatch)
	}

	// Org-scoped capabilities only apply inside the actor's own org.
	if desc.Scope != capability.ScopeGlobal && actor.OrgID != ref.OrgID {
		reasons = append(reasons, ReasonOrgMismatch)
	}

	if len(reasons) > 0 {
		return Decision{Allowed: false, ReasonCodes: reasons}
	}
	return Decision{
		Allowed:      true,
		Capabilities: []capability.Key{desc.Key},
		Scopes:       []capability.Scope{desc.Scope},
	}
}
