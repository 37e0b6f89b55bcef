package capability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "fiat/pkg/domain-errors"
)

// TestParseKey_Shapes validates the parsing invariant: a 2-part key is
// namespace-shaped iff its first segment is a member of the fixed namespace
// set, else it is domain-shaped.
func TestParseKey_Shapes(t *testing.T) {
	tests := []struct {
		name    string
		key     Key
		want    ParsedKey
		wantErr bool
	}{
		{"domain verb", "contacts.update", ParsedKey{Domain: "contacts", Verb: "update"}, false},
		{"namespace verb", "search.reindex", ParsedKey{Namespace: "search", Verb: "reindex"}, false},
		{"namespace domain verb", "search.contacts.query", ParsedKey{Namespace: "search", Domain: "contacts", Verb: "query"}, false},
		{"domain that is not a namespace", "orders.submit", ParsedKey{Domain: "orders", Verb: "submit"}, false},
		{"snake case segments", "sales_orders.update", ParsedKey{Domain: "sales_orders", Verb: "update"}, false},

		{"empty", "", ParsedKey{}, true},
		{"one segment", "contacts", ParsedKey{}, true},
		{"four segments", "a.b.c.d", ParsedKey{}, true},
		{"empty segment", "contacts..update", ParsedKey{}, true},
		{"uppercase segment", "Contacts.update", ParsedKey{}, true},
		{"leading digit", "1contacts.update", ParsedKey{}, true},
		{"whitespace", "contacts. update", ParsedKey{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := ParseKey(tt.key)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, parsed)
		})
	}
}

// TestVerbKindTable_TotalAndCollisionFree encodes the invariant that every
// verb maps to exactly one capability kind.
func TestVerbKindTable_TotalAndCollisionFree(t *testing.T) {
	table, err := buildVerbKinds()
	require.NoError(t, err)

	total := 0
	for _, verbs := range kindVerbs {
		total += len(verbs)
	}
	assert.Equal(t, total, len(table), "every declared verb must appear exactly once")

	for verb, kind := range table {
		inferred, err := InferKind(verb)
		require.NoError(t, err)
		assert.Equal(t, kind, inferred)
	}
}

func TestInferKind_UnknownVerb(t *testing.T) {
	_, err := InferKind("explode")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

// TestFamilyOf_TotalOverMutationVerbs verifies every mutation verb has a
// family, so tier derivation can never fail for a valid mutation key.
func TestFamilyOf_TotalOverMutationVerbs(t *testing.T) {
	for _, verb := range kindVerbs[KindMutation] {
		family, err := FamilyOf(verb)
		require.NoError(t, err, "mutation verb %q", verb)
		assert.NotEmpty(t, family)
	}

	_, err := FamilyOf("get")
	require.Error(t, err)
}

// FuzzParseKey tests that parsing never panics on arbitrary input and always
// returns either a parsed key with a verb or an error.
func FuzzParseKey(f *testing.F) {
	f.Add("contacts.update")
	f.Add("search.contacts.query")
	f.Add("")
	f.Add("a.b.c.d")
	f.Add("'; DROP TABLE capabilities;--")
	f.Add(string([]byte{0x00, 0x2e, 0x01}))

	f.Fuzz(func(t *testing.T, input string) {
		parsed, err := ParseKey(Key(input))
		if err == nil && parsed.Verb == "" {
			t.Errorf("ParseKey(%q) returned no error and no verb", input)
		}
	})
}
