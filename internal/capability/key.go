// Package capability is the static catalog of every authorizable action.
//
// An action key has two or three dot-separated segments: {domain}.{verb},
// {namespace}.{verb}, or {namespace}.{domain}.{verb}. Parsing is unambiguous:
// a two-part key is namespace-shaped iff its first segment belongs to the
// fixed namespace set, else it is domain-shaped. Every verb maps to exactly
// one capability kind via a total, collision-checked table, and every catalog
// entry has its RBAC tier derived once at load time. A broken catalog must
// never serve requests, so any load failure is fatal at process start.
package capability

import (
	"regexp"
	"strings"

	dErrors "fiat/pkg/domain-errors"
)

// Key identifies a governed action, e.g. "contacts.update" or
// "search.contacts.query".
type Key string

// String returns the string representation of the key.
func (k Key) String() string { return string(k) }

// ParsedKey is the structural decomposition of an action key. Namespace is
// empty for domain-shaped keys; Domain is empty for two-part namespace keys.
type ParsedKey struct {
	Namespace string
	Domain    string
	Verb      string
}

// namespaces is the fixed set that disambiguates two-part keys.
var namespaces = map[string]bool{
	"admin":       true,
	"system":      true,
	"auth":        true,
	"search":      true,
	"storage":     true,
	"workflow":    true,
	"integration": true,
}

var segmentPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// ParseKey performs format-only decomposition of an action key. It does not
// verify verb, domain, or namespace membership; use Catalog.Validate for that.
func ParseKey(raw Key) (ParsedKey, error) {
	s := string(raw)
	if s == "" {
		return ParsedKey{}, dErrors.New(dErrors.CodeInvalidInput, "action key cannot be empty")
	}
	segments := strings.Split(s, ".")
	if len(segments) != 2 && len(segments) != 3 {
		return ParsedKey{}, dErrors.Newf(dErrors.CodeInvalidInput, "action key %q must have 2 or 3 segments", s)
	}
	for _, seg := range segments {
		if !segmentPattern.MatchString(seg) {
			return ParsedKey{}, dErrors.Newf(dErrors.CodeInvalidInput, "action key segment %q must be lowercase snake_case", seg)
		}
	}

	if len(segments) == 3 {
		return ParsedKey{Namespace: segments[0], Domain: segments[1], Verb: segments[2]}, nil
	}
	// Two-part keys: namespace-shaped iff the first segment is a known
	// namespace, domain-shaped otherwise. This rule makes parsing total and
	// unambiguous without catalog access.
	if namespaces[segments[0]] {
		return ParsedKey{Namespace: segments[0], Verb: segments[1]}, nil
	}
	return ParsedKey{Domain: segments[0], Verb: segments[1]}, nil
}

// IsNamespace reports whether s is a member of the fixed namespace set.
func IsNamespace(s string) bool { return namespaces[s] }
