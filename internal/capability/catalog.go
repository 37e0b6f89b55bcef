package capability

import (
	"sync"

	dErrors "fiat/pkg/domain-errors"
)

// Catalog is the validated, read-only table of capability descriptors.
// Built once by Load; no mutation path exists after construction.
type Catalog struct {
	byKey map[Key]Descriptor
}

// Load parses, validates, and derives every entry. Any unparseable or unknown
// key, verb, domain, or namespace fails the whole load: an under-specified
// catalog must never serve authorization decisions.
func Load(entries []Entry) (*Catalog, error) {
	byKey := make(map[Key]Descriptor, len(entries))
	for _, entry := range entries {
		desc, err := derive(entry)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeOf(err), "catalog entry "+string(entry.Key))
		}
		if _, exists := byKey[desc.Key]; exists {
			return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "duplicate catalog key %q", desc.Key)
		}
		byKey[desc.Key] = desc
	}
	return &Catalog{byKey: byKey}, nil
}

// derive back-fills the descriptor's kind, family, tier, and defaults.
func derive(entry Entry) (Descriptor, error) {
	parsed, err := ParseKey(entry.Key)
	if err != nil {
		return Descriptor{}, err
	}
	if parsed.Namespace != "" && !IsNamespace(parsed.Namespace) {
		return Descriptor{}, dErrors.Newf(dErrors.CodeInvalidInput, "unknown namespace %q", parsed.Namespace)
	}
	kind, err := InferKind(parsed.Verb)
	if err != nil {
		return Descriptor{}, err
	}

	var family Family
	if kind == KindMutation {
		family, err = FamilyOf(parsed.Verb)
		if err != nil {
			return Descriptor{}, err
		}
	}
	tier, err := deriveTier(kind, family)
	if err != nil {
		return Descriptor{}, err
	}

	scope := entry.Scope
	if scope == "" {
		scope = ScopeOrg
	}
	if !scope.IsValid() {
		return Descriptor{}, dErrors.Newf(dErrors.CodeInvalidInput, "invalid scope %q", entry.Scope)
	}
	status := entry.Status
	if status == "" {
		status = StatusActive
	}
	if !status.IsValid() {
		return Descriptor{}, dErrors.Newf(dErrors.CodeInvalidInput, "invalid status %q", entry.Status)
	}

	return Descriptor{
		Key:      entry.Key,
		Parsed:   parsed,
		Kind:     kind,
		Family:   family,
		Intent:   entry.Intent,
		Scope:    scope,
		Status:   status,
		Risk:     entry.Risk,
		Produces: entry.Produces,
		Tier:     tier,
	}, nil
}

// Validate parses the key and verifies catalog membership, returning the
// fully-derived descriptor.
func (c *Catalog) Validate(key Key) (Descriptor, error) {
	if _, err := ParseKey(key); err != nil {
		return Descriptor{}, err
	}
	desc, ok := c.byKey[key]
	if !ok {
		return Descriptor{}, dErrors.Newf(dErrors.CodeNotFound, "unknown action %q", key)
	}
	return desc, nil
}

// Keys returns every catalog key. Used by totality checks and admin listings.
func (c *Catalog) Keys() []Key {
	keys := make([]Key, 0, len(c.byKey))
	for k := range c.byKey {
		keys = append(keys, k)
	}
	return keys
}

// Len returns the number of catalog entries.
func (c *Catalog) Len() int { return len(c.byKey) }

var loadDefault = sync.OnceValues(func() (*Catalog, error) {
	return Load(builtinEntries)
})

// Default returns the process-wide catalog built from the built-in entry
// list. The catalog is lazily initialized exactly once; a load failure is a
// startup failure and must abort the process (main checks the error before
// serving).
func Default() (*Catalog, error) {
	return loadDefault()
}
