package capability

import (
	"fmt"
	"sort"

	dErrors "fiat/pkg/domain-errors"
)

// Kind classifies what a capability does at the coarsest level.
type Kind string

const (
	KindMutation Kind = "mutation"
	KindRead     Kind = "read"
	KindSearch   Kind = "search"
	KindAdmin    Kind = "admin"
	KindSystem   Kind = "system"
	KindAuth     Kind = "auth"
	KindStorage  Kind = "storage"
)

// Family classifies mutation verbs for tier derivation.
type Family string

const (
	FamilyFieldMutation   Family = "field_mutation"
	FamilyLifecycle       Family = "lifecycle"
	FamilyStateTransition Family = "state_transition"
	FamilyOwnership       Family = "ownership"
	FamilySystem          Family = "system"
)

// kindVerbs declares which verbs belong to each kind. The verb->kind lookup
// table is built from this declaration and validated for collisions; a verb
// claimed by two kinds is a startup failure, never a runtime surprise.
var kindVerbs = map[Kind][]string{
	KindMutation: {"create", "update", "delete", "restore", "submit", "cancel", "assign", "transfer", "purge"},
	KindRead:     {"get", "list", "view", "export"},
	KindSearch:   {"query", "suggest", "reindex"},
	KindAdmin:    {"configure", "grant", "revoke"},
	KindSystem:   {"migrate", "seed", "healthcheck"},
	KindAuth:     {"login", "logout", "impersonate"},
	KindStorage:  {"upload", "download", "attach"},
}

// mutationFamilies maps each mutation verb to its family. Total over the
// KindMutation verb list; checked at table build time.
var mutationFamilies = map[string]Family{
	"create":   FamilyLifecycle,
	"update":   FamilyFieldMutation,
	"delete":   FamilyLifecycle,
	"restore":  FamilyLifecycle,
	"submit":   FamilyStateTransition,
	"cancel":   FamilyStateTransition,
	"assign":   FamilyOwnership,
	"transfer": FamilyOwnership,
	"purge":    FamilySystem,
}

var verbKinds = mustBuildVerbKinds()

// buildVerbKinds flattens kindVerbs into a verb->kind map, rejecting any verb
// that appears under two kinds and any mutation verb without a family.
func buildVerbKinds() (map[string]Kind, error) {
	// Deterministic iteration so a collision always names the same pair.
	kinds := make([]Kind, 0, len(kindVerbs))
	for kind := range kindVerbs {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	table := make(map[string]Kind)
	for _, kind := range kinds {
		for _, verb := range kindVerbs[kind] {
			if existing, ok := table[verb]; ok {
				return nil, fmt.Errorf("verb %q claimed by both %q and %q", verb, existing, kind)
			}
			table[verb] = kind
		}
	}
	for _, verb := range kindVerbs[KindMutation] {
		if _, ok := mutationFamilies[verb]; !ok {
			return nil, fmt.Errorf("mutation verb %q has no family", verb)
		}
	}
	return table, nil
}

func mustBuildVerbKinds() map[string]Kind {
	table, err := buildVerbKinds()
	if err != nil {
		panic("capability: invalid verb table: " + err.Error())
	}
	return table
}

// InferKind resolves the capability kind for a verb. O(1), errors on unknown verbs.
func InferKind(verb string) (Kind, error) {
	kind, ok := verbKinds[verb]
	if !ok {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown verb %q", verb)
	}
	return kind, nil
}

// FamilyOf resolves the mutation family for a verb. Errors on verbs that are
// not mutation-kind.
func FamilyOf(verb string) (Family, error) {
	family, ok := mutationFamilies[verb]
	if !ok {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "verb %q is not a mutation verb", verb)
	}
	return family, nil
}

// IsMutationVerb reports whether the verb performs a state change.
func IsMutationVerb(verb string) bool {
	return verbKinds[verb] == KindMutation
}
