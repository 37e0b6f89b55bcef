// Package planner builds a commit-ready plan from a decoded mutation spec.
//
// Build runs the fixed pipeline: shape validation, idempotent replay lookup,
// version check, policy decision, lifecycle guard, field sanitation, then
// diff and intent assembly. The first failing step short-circuits into the
// plan's Failure; the executor never sees a partially-validated write set.
// Aside from the replay lookup, Build performs no I/O. It is not a pure
// function of its inputs either: each call mints a fresh mutation id, and a
// create additionally mints the entity id, so two plans for the same spec
// differ in their ids even when every derived field matches.
package planner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"fiat/internal/capability"
	"fiat/internal/fieldpolicy"
	"fiat/internal/lifecycle"
	"fiat/internal/mutation/models"
	"fiat/internal/mutation/store/idempotency"
	"fiat/internal/outbox"
	"fiat/internal/policy"
	domain "fiat/pkg/domain"
	"fiat/pkg/platform/sentinel"
)

var tracer = otel.Tracer("fiat.mutation.planner")

// invariants stamped on every successful plan, in check order.
var checkedInvariants = []string{
	"action_in_catalog",
	"policy_allowed",
	"lifecycle_legal",
	"fields_sanitized",
	"version_witnessed",
}

// Planner turns specs into plans. It owns no stores except the replay lookup.
type Planner struct {
	catalog *capability.Catalog
	decider *policy.Decider
	replays idempotency.Store
}

func New(catalog *capability.Catalog, decider *policy.Decider, replays idempotency.Store) *Planner {
	return &Planner{catalog: catalog, decider: decider, replays: replays}
}

// Build constructs the plan for one mutation attempt. current is the entity
// snapshot read by the caller, nil for creates. Build never writes; a plan
// with a nil Failure and nil Replay is the executor's license to commit.
func (p *Planner) Build(ctx context.Context, spec models.MutationSpec, actor policy.Actor, current *models.EntityState) (*models.MutationPlan, error) {
	ctx, span := tracer.Start(ctx, "planner.Build")
	defer span.End()
	span.SetAttributes(
		attribute.String("mutation.action", spec.Action.String()),
		attribute.String("mutation.entity_type", spec.Entity.Type.String()),
	)

	plan := &models.MutationPlan{
		MutationID:     domain.NewMutationID(),
		Spec:           spec,
		Actor:          actor,
		Current:        current,
		IdempotencyKey: spec.IdempotencyKey,
	}

	desc, failure := p.validateShape(spec, current)
	if failure != nil {
		plan.Failure = failure
		return plan, nil
	}
	plan.Descriptor = desc
	verb := desc.Parsed.Verb

	// The kernel mints the identifier for creates so the intents and the
	// audit entry can reference it before the row exists.
	if verb == "create" {
		spec.Entity.ID = domain.NewEntityID()
		plan.Spec = spec
	}

	if verb == "create" && spec.IdempotencyKey != "" {
		prior, err := p.lookupReplay(ctx, spec)
		if err != nil {
			return nil, err
		}
		if prior != nil {
			plan.Replay = prior
			return plan, nil
		}
	}

	if failure := checkVersion(spec, current, verb); failure != nil {
		plan.Failure = failure
		return plan, nil
	}

	decision := p.decider.Decide(actor, desc, spec.Entity)
	plan.Decision = decision
	if !decision.Allowed {
		plan.Failure = &models.Failure{
			Status:  models.StatusRejected,
			Code:    models.CodePolicyDenied,
			Message: "actor is not permitted to perform " + desc.Key.String(),
			Details: map[string]any{"reasonCodes": decision.ReasonCodes},
		}
		return plan, nil
	}

	if current != nil {
		if denial := lifecycle.Check(current.Lifecycle, verb); denial != nil {
			plan.Failure = &models.Failure{
				Status:  models.StatusRejected,
				Code:    models.CodeLifecycleDenied,
				Message: fmt.Sprintf("%s is not allowed while %s", verb, denial.State),
				Details: map[string]any{"reasonCode": denial.Reason, "lifecycleState": denial.State.String()},
			}
			return plan, nil
		}
	}

	sanitized, err := fieldpolicy.Sanitize(spec.Entity.Type, spec.Input)
	if err != nil {
		plan.Failure = &models.Failure{
			Status:  models.StatusRejected,
			Code:    models.CodeValidationFailed,
			Message: err.Error(),
		}
		return plan, nil
	}
	plan.Sanitized = sanitized.Allowed
	plan.Stripped = sanitized.Stripped
	plan.Rejected = sanitized.Rejected
	if len(sanitized.Rejected) > 0 {
		fields := make([]string, 0, len(sanitized.Rejected))
		details := make(map[string]any, len(sanitized.Rejected))
		for _, rejection := range sanitized.Rejected {
			fields = append(fields, rejection.Field)
			details[rejection.Field] = rejection.Reason
		}
		plan.Failure = &models.Failure{
			Status:  models.StatusRejected,
			Code:    models.CodeValidationFailed,
			Message: "input rejected: " + strings.Join(fields, ", "),
			Details: details,
		}
		return plan, nil
	}

	plan.Diff = buildDiff(current, sanitized.Allowed)
	plan.Intents = buildIntents(desc, spec, plan.Diff, sanitized.Allowed, current)
	plan.InvariantsChecked = checkedInvariants
	return plan, nil
}

// validateShape checks the structural preconditions no later step can assume:
// catalog membership, entity/action agreement, id and version presence.
func (p *Planner) validateShape(spec models.MutationSpec, current *models.EntityState) (capability.Descriptor, *models.Failure) {
	reject := func(msg string, details map[string]any) (capability.Descriptor, *models.Failure) {
		return capability.Descriptor{}, &models.Failure{
			Status:  models.StatusRejected,
			Code:    models.CodeValidationFailed,
			Message: msg,
			Details: details,
		}
	}

	desc, err := p.catalog.Validate(spec.Action)
	if err != nil {
		return reject("unknown or malformed action "+spec.Action.String(), nil)
	}
	if desc.Kind != capability.KindMutation {
		return reject("action "+desc.Key.String()+" does not mutate entities", nil)
	}
	if spec.Entity.OrgID.IsNil() {
		return capability.Descriptor{}, &models.Failure{
			Status:  models.StatusRejected,
			Code:    models.CodeMissingOrgID,
			Message: "mutation requires an organization id",
		}
	}
	if !fieldpolicy.KnownEntity(spec.Entity.Type) {
		return reject(fmt.Sprintf("unknown entity type %q", spec.Entity.Type), nil)
	}
	// Domain-shaped mutation keys must target their own entity family.
	if desc.Parsed.Domain != "" && desc.Parsed.Domain != spec.Entity.Type.String() {
		return reject(fmt.Sprintf("action %s cannot target entity type %q", desc.Key, spec.Entity.Type), nil)
	}

	verb := desc.Parsed.Verb
	if verb == "create" {
		if !spec.Entity.IsCreate() {
			return reject("create must not carry an entity id", nil)
		}
		if spec.ExpectedVersion != nil {
			return reject("create must not carry an expected version", nil)
		}
		if len(spec.Input) == 0 {
			return reject("create requires a non-empty input payload", nil)
		}
		return desc, nil
	}

	if spec.Entity.IsCreate() {
		return reject(verb+" requires an entity id", nil)
	}
	if current == nil {
		return capability.Descriptor{}, &models.Failure{
			Status:  models.StatusRejected,
			Code:    models.CodeNotFound,
			Message: fmt.Sprintf("entity %s/%s not found", spec.Entity.Type, spec.Entity.ID),
		}
	}
	if needsVersionWitness(verb) && spec.ExpectedVersion == nil {
		return reject(verb+" requires expectedVersion", nil)
	}
	if verb == "update" && len(spec.Input) == 0 {
		return reject("update requires a non-empty input payload", nil)
	}
	return desc, nil
}

// needsVersionWitness lists the verbs whose write depends on the exact state
// the caller last saw.
func needsVersionWitness(verb string) bool {
	switch verb {
	case "update", "delete", "restore", "submit", "cancel", "assign", "transfer":
		return true
	}
	return false
}

func (p *Planner) lookupReplay(ctx context.Context, spec models.MutationSpec) (*models.OK, error) {
	key := idempotency.Key{OrgID: spec.Entity.OrgID, Action: spec.Action.String(), Key: spec.IdempotencyKey}
	prior, err := p.replays.Get(ctx, key)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("replay lookup: %w", err)
	}
	return prior, nil
}

func checkVersion(spec models.MutationSpec, current *models.EntityState, verb string) *models.Failure {
	if verb == "create" || spec.ExpectedVersion == nil || current == nil {
		return nil
	}
	if current.Version == *spec.ExpectedVersion {
		return nil
	}
	return &models.Failure{
		Status:  models.StatusRejected,
		Code:    models.CodeConflictVersion,
		Message: fmt.Sprintf("expected version %d, entity is at %d", *spec.ExpectedVersion, current.Version),
		Details: map[string]any{
			"expectedVersion": *spec.ExpectedVersion,
			"actualVersion":   current.Version,
		},
	}
}

// buildDiff records each written field's before and after value. For creates
// every field transitions from nil.
func buildDiff(current *models.EntityState, sanitized map[string]any) map[string]models.FieldChange {
	diff := make(map[string]models.FieldChange, len(sanitized))
	for field, to := range sanitized {
		var from any
		if current != nil {
			from = current.Fields[field]
		}
		diff[field] = models.FieldChange{From: from, To: to}
	}
	return diff
}

// buildIntents expands the descriptor's declared effects into outbox intents.
// Declaration order is preserved so a capability's side effects fire in a
// stable, reviewable order.
func buildIntents(desc capability.Descriptor, spec models.MutationSpec, diff map[string]models.FieldChange, sanitized map[string]any, current *models.EntityState) []outbox.Intent {
	if len(desc.Produces) == 0 {
		return nil
	}

	// Search documents carry the post-commit field bag.
	document := make(map[string]any)
	if current != nil {
		for k, v := range current.Fields {
			document[k] = v
		}
	}
	for k, v := range sanitized {
		document[k] = v
	}

	payload := make(map[string]any, len(diff))
	fields := make([]string, 0, len(diff))
	for field := range diff {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		payload[field] = map[string]any{"from": diff[field].From, "to": diff[field].To}
	}

	verb := desc.Parsed.Verb
	intents := make([]outbox.Intent, 0, len(desc.Produces))
	for _, effect := range desc.Produces {
		switch effect.Kind {
		case capability.EffectWorkflow:
			intents = append(intents, outbox.WorkflowIntent{
				EntityType: spec.Entity.Type,
				EntityID:   spec.Entity.ID,
				Trigger:    effect.Event,
				Input:      document,
			})
		case capability.EffectSearch:
			op := "index"
			if verb == "delete" || verb == "purge" {
				op = "delete"
			}
			intents = append(intents, outbox.SearchIntent{
				EntityType: spec.Entity.Type,
				EntityID:   spec.Entity.ID,
				Op:         op,
				Document:   document,
			})
		case capability.EffectWebhook:
			intents = append(intents, outbox.WebhookIntent{
				EntityType: spec.Entity.Type,
				EntityID:   spec.Entity.ID,
				Event:      effect.Event,
				Payload:    payload,
			})
		case capability.EffectIntegration:
			intents = append(intents, outbox.IntegrationIntent{
				EntityType: spec.Entity.Type,
				EntityID:   spec.Entity.ID,
				Event:      effect.Event,
				Payload:    payload,
			})
		}
	}
	return intents
}
