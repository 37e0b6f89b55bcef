package domain

import (
	"regexp"

	dErrors "fiat/pkg/domain-errors"
)

// EntityType names the business entity family a mutation targets. The kernel
// treats the underlying table as opaque; the type only has to be well-formed
// and known to the field-policy layer.
type EntityType string

var entityTypePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// ParseEntityType constructs an EntityType from external input.
func ParseEntityType(s string) (EntityType, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "entity type cannot be empty")
	}
	if !entityTypePattern.MatchString(s) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "entity type must be lowercase snake_case")
	}
	return EntityType(s), nil
}

// String returns the string representation of the entity type.
func (t EntityType) String() string { return string(t) }

// EntityRef addresses a business entity by type and id within an org.
// A nil ID signals a create: the entity does not exist yet and the kernel
// mints its identifier.
type EntityRef struct {
	OrgID OrgID
	Type  EntityType
	ID    EntityID
}

// IsCreate reports whether the reference targets a not-yet-existing entity.
func (r EntityRef) IsCreate() bool { return r.ID.IsNil() }
