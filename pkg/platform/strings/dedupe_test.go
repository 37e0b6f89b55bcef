package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{"nil slice", nil, nil},
		{"empty slice", []string{}, []string{}},
		{"trims whitespace", []string{"  admin  ", "manager "}, []string{"admin", "manager"}},
		{"drops empties", []string{"admin", "", "  ", "viewer"}, []string{"admin", "viewer"}},
		{"dedupes preserving order", []string{"admin", "viewer", "admin", "viewer"}, []string{"admin", "viewer"}},
		{"case is significant", []string{"Admin", "admin"}, []string{"Admin", "admin"}},
		{"combined", []string{" admin ", "viewer", "admin", ""}, []string{"admin", "viewer"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DedupeAndTrim(tt.input))
		})
	}
}
