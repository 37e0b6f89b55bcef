// Package lifecycle is the per-entity state machine restricting which verbs
// apply in each lifecycle state.
//
// The machine is draft -> submitted -> cancelled, with draft -> cancelled
// also legal and cancelled terminal. The guard is a pure function of
// (current state, requested verb) driven by a transition table; it knows
// nothing about business fields.
package lifecycle

import (
	"fiat/internal/capability"
	dErrors "fiat/pkg/domain-errors"
)

// State is the lifecycle state of an entity.
type State string

const (
	StateDraft     State = "draft"
	StateSubmitted State = "submitted"
	StateCancelled State = "cancelled"
)

// ParseState constructs a State from stored input.
func ParseState(s string) (State, error) {
	state := State(s)
	if !state.IsValid() {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown lifecycle state %q", s)
	}
	return state, nil
}

// IsValid checks if the state is one of the supported enum values.
func (s State) IsValid() bool {
	switch s {
	case StateDraft, StateSubmitted, StateCancelled:
		return true
	}
	return false
}

// String returns the string representation of the state.
func (s State) String() string { return string(s) }

// Reason codes surfaced on denial.
const (
	ReasonSubmittedImmutable = "SUBMITTED_IMMUTABLE"
	ReasonAlreadySubmitted   = "ALREADY_SUBMITTED"
	ReasonCancelledReadOnly  = "CANCELLED_READ_ONLY"
)

// Denial explains why a verb is illegal in the current state.
type Denial struct {
	Reason string
	State  State
	Verb   string
}

// transitions maps each (state, verb) pair to an optional denial reason.
// Absent mutating verbs are allowed in draft; the table lists only denials.
var transitions = map[State]map[string]string{
	StateDraft: {
		// Everything mutable; restore is meaningless but harmless here.
	},
	StateSubmitted: {
		"update":   ReasonSubmittedImmutable,
		"delete":   ReasonSubmittedImmutable,
		"restore":  ReasonSubmittedImmutable,
		"assign":   ReasonSubmittedImmutable,
		"transfer": ReasonSubmittedImmutable,
		"purge":    ReasonSubmittedImmutable,
		"submit":   ReasonAlreadySubmitted,
		// cancel remains legal: submitted -> cancelled.
	},
	// cancelled is terminal: every mutating verb is denied below.
}

// Check returns nil when the verb is legal in the given state, or a Denial
// carrying the reason code. Non-mutating verbs always pass; creates never
// reach the guard because no current state exists.
func Check(state State, verb string) *Denial {
	if !capability.IsMutationVerb(verb) {
		return nil
	}
	if state == StateCancelled {
		return &Denial{Reason: ReasonCancelledReadOnly, State: state, Verb: verb}
	}
	if reason, ok := transitions[state][verb]; ok {
		return &Denial{Reason: reason, State: state, Verb: verb}
	}
	return nil
}

// Next returns the lifecycle state an entity ends up in after the verb
// commits. Most verbs leave the state untouched.
func Next(state State, verb string) State {
	switch verb {
	case "submit":
		return StateSubmitted
	case "cancel":
		return StateCancelled
	default:
		return state
	}
}
