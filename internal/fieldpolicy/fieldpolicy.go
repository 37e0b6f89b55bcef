// Package fieldpolicy partitions mutation input fields into allowed,
// silently-stripped, and rejected sets per entity type.
//
// Server-owned fields (ids, versions, timestamps, lifecycle state) are
// stripped without error so generic clients can round-trip entity payloads.
// Unknown fields and explicitly forbidden fields reject the whole plan.
package fieldpolicy

import (
	"sort"

	domain "fiat/pkg/domain"
	dErrors "fiat/pkg/domain-errors"
)

// serverOwned fields are computed by the kernel or the storage layer and are
// stripped from every entity type's input.
var serverOwned = map[string]bool{
	"id":              true,
	"org_id":          true,
	"version":         true,
	"lifecycle_state": true,
	"created_at":      true,
	"updated_at":      true,
	"created_by":      true,
	"updated_by":      true,
}

// Rules declares the field policy for one entity type.
type Rules struct {
	// Writable fields pass through sanitation untouched.
	Writable map[string]bool
	// Forbidden fields reject the plan with the given reason.
	Forbidden map[string]string
}

var rulesByEntity = map[domain.EntityType]Rules{
	"contacts": {
		Writable: setOf("name", "email", "phone", "company", "notes", "tags"),
	},
	"invoices": {
		Writable: setOf("customer_id", "amount_cents", "currency", "due_date", "memo", "line_items"),
		Forbidden: map[string]string{
			"total_cents": "computed from line items",
			"paid_at":     "set by the payment processor",
		},
	},
	"orders": {
		Writable: setOf("customer_id", "items", "shipping_address", "notes", "owner_id"),
		Forbidden: map[string]string{
			"fulfilled_at": "set by the fulfilment integration",
		},
	},
}

func setOf(fields ...string) map[string]bool {
	m := make(map[string]bool, len(fields))
	for _, f := range fields {
		m[f] = true
	}
	return m
}

// FieldRejection explains why one input field aborted the plan.
type FieldRejection struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// Result is the partition of one input payload.
type Result struct {
	Allowed  map[string]any
	Stripped []string
	Rejected []FieldRejection
}

// KnownEntity reports whether the entity type has a field policy.
func KnownEntity(entityType domain.EntityType) bool {
	_, ok := rulesByEntity[entityType]
	return ok
}

// Sanitize partitions input for the entity type. The input map is never
// mutated; output field order is deterministic.
func Sanitize(entityType domain.EntityType, input map[string]any) (Result, error) {
	rules, ok := rulesByEntity[entityType]
	if !ok {
		return Result{}, dErrors.Newf(dErrors.CodeValidation, "no field policy for entity type %q", entityType)
	}

	fields := make([]string, 0, len(input))
	for field := range input {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	result := Result{Allowed: make(map[string]any)}
	for _, field := range fields {
		switch {
		case serverOwned[field]:
			result.Stripped = append(result.Stripped, field)
		case rules.Writable[field]:
			result.Allowed[field] = input[field]
		default:
			reason, forbidden := rules.Forbidden[field]
			if !forbidden {
				reason = "unknown field"
			}
			result.Rejected = append(result.Rejected, FieldRejection{Field: field, Reason: reason})
		}
	}
	return result, nil
}
