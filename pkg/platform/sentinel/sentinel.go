package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so the planner and executor can translate them into receipt
// outcomes without knowing which backend produced them.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity or record does not exist in the store
// - ErrConflict: uniqueness or state conflict on write
// - ErrVersionConflict: compare-and-swap on the entity version lost
// - ErrTimeout: statement or transaction deadline exceeded in the store
// - ErrUnavailable: backend temporarily unreachable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors.
var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrVersionConflict = errors.New("version conflict")
	ErrTimeout         = errors.New("timeout")
	ErrUnavailable     = errors.New("unavailable")
)
