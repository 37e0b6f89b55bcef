// Package executor commits mutation plans atomically. The entity write, the
// audit entry, the outbox intents, and the idempotency record land in one
// transaction or not at all; failures are classified into the receipt union
// so callers never parse error strings.
package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"fiat/internal/audit"
	"fiat/internal/lifecycle"
	"fiat/internal/mutation/models"
	"fiat/internal/mutation/store/entity"
	"fiat/internal/mutation/store/idempotency"
	"fiat/internal/outbox"
	"fiat/internal/platform/metrics"
	"fiat/pkg/platform/sentinel"
	"fiat/pkg/requestcontext"
)

// PostgreSQL error classes the commit path retries or rejects on.
const (
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
	pqQueryCanceled        = "57014"
)

// TxRunner executes fn inside one transaction. Implementations bind the
// transaction to the context so every store call inside fn joins it.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Stores groups the four write targets of a commit.
type Stores struct {
	Entities    entity.Store
	Audit       audit.Store
	Outbox      outbox.Store
	Idempotency idempotency.Store
}

// Executor turns plans into receipts.
type Executor struct {
	tx      TxRunner
	stores  Stores
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures the executor.
type Option func(*Executor)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) { e.logger = logger }
}

// WithMetrics enables metrics collection.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

func New(tx TxRunner, stores Stores, opts ...Option) *Executor {
	e := &Executor{tx: tx, stores: stores, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Commit consumes a plan exactly once and returns the receipt. An error is
// returned only for programmer faults (malformed plans); every runtime
// outcome, including infrastructure failure, is a receipt.
func (e *Executor) Commit(ctx context.Context, plan *models.MutationPlan) (models.Receipt, error) {
	if plan.IsReplay() {
		if e.metrics != nil {
			e.metrics.IdempotentReplays.Inc()
		}
		e.logger.InfoContext(ctx, "idempotent replay",
			slog.String("mutation_id", plan.Replay.MutationID.String()),
			slog.String("action", plan.Spec.Action.String()))
		return *plan.Replay, nil
	}
	if plan.IsRejected() {
		return e.failureReceipt(ctx, plan), nil
	}

	verb := plan.Descriptor.Parsed.Verb
	isCreate := verb == "create"

	var versionBefore *int64
	versionAfter := int64(1)
	nextState := lifecycle.StateDraft
	if !isCreate {
		if plan.Current == nil {
			return nil, fmt.Errorf("plan for %s carries no current entity state", plan.Spec.Action)
		}
		v := plan.Current.Version
		versionBefore = &v
		versionAfter = v + 1
		nextState = lifecycle.Next(plan.Current.Lifecycle, verb)
	}

	entry, err := e.buildAuditEntry(ctx, plan, versionBefore, versionAfter)
	if err != nil {
		return nil, fmt.Errorf("build audit entry: %w", err)
	}

	now := requestcontext.Now(ctx)
	rows := make([]outbox.Row, 0, len(plan.Intents))
	for _, intent := range plan.Intents {
		row, err := outbox.Encode(plan.MutationID, intent, now)
		if err != nil {
			return nil, fmt.Errorf("encode intent: %w", err)
		}
		rows = append(rows, row)
	}

	receipt := models.OK{
		MutationID:    plan.MutationID,
		EntityID:      plan.Spec.Entity.ID,
		VersionBefore: versionBefore,
		VersionAfter:  versionAfter,
		AuditLogID:    &entry.ID,
	}

	start := time.Now()
	err = e.tx.RunInTx(ctx, func(ctx context.Context) error {
		if isCreate {
			state := models.EntityState{
				Ref:       plan.Spec.Entity,
				Version:   versionAfter,
				Lifecycle: nextState,
				Fields:    plan.Sanitized,
			}
			if err := e.stores.Entities.Insert(ctx, state); err != nil {
				return err
			}
		} else {
			if err := e.stores.Entities.Update(ctx, plan.Spec.Entity, *versionBefore, plan.Sanitized, nextState); err != nil {
				return err
			}
		}
		if err := e.stores.Audit.Append(ctx, entry); err != nil {
			return err
		}
		if len(rows) > 0 {
			if err := e.stores.Outbox.Enqueue(ctx, rows); err != nil {
				return err
			}
		}
		if isCreate && plan.IdempotencyKey != "" {
			key := idempotency.Key{
				OrgID:  plan.Spec.Entity.OrgID,
				Action: plan.Spec.Action.String(),
				Key:    plan.IdempotencyKey,
			}
			if err := e.stores.Idempotency.Put(ctx, key, receipt); err != nil {
				return err
			}
		}
		return nil
	})
	if e.metrics != nil {
		e.metrics.CommitDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return e.classify(ctx, plan, err), nil
	}

	if e.metrics != nil {
		e.metrics.MutationsCommitted.Inc()
	}
	e.logger.InfoContext(ctx, "mutation committed",
		slog.String("mutation_id", plan.MutationID.String()),
		slog.String("action", plan.Spec.Action.String()),
		slog.String("entity_id", plan.Spec.Entity.ID.String()),
		slog.Int64("version_after", versionAfter))
	return receipt, nil
}

func (e *Executor) buildAuditEntry(ctx context.Context, plan *models.MutationPlan, versionBefore *int64, versionAfter int64) (audit.Entry, error) {
	var before json.RawMessage
	var merged map[string]any
	if plan.Current != nil {
		raw, err := json.Marshal(plan.Current.Fields)
		if err != nil {
			return audit.Entry{}, err
		}
		before = raw
		merged = make(map[string]any, len(plan.Current.Fields)+len(plan.Sanitized))
		for k, v := range plan.Current.Fields {
			merged[k] = v
		}
	} else {
		merged = make(map[string]any, len(plan.Sanitized))
	}
	for k, v := range plan.Sanitized {
		merged[k] = v
	}
	after, err := json.Marshal(merged)
	if err != nil {
		return audit.Entry{}, err
	}
	diff, err := json.Marshal(plan.Diff)
	if err != nil {
		return audit.Entry{}, err
	}

	return audit.NewEntry(audit.Entry{
		OrgID:      plan.Spec.Entity.OrgID,
		ActorID:    plan.Actor.ID,
		RequestID:  requestcontext.RequestID(ctx),
		MutationID: plan.MutationID,
		BatchID:    plan.Spec.BatchID,

		Action:     plan.Descriptor.Key,
		ActionKind: plan.Descriptor.Kind,
		Family:     plan.Descriptor.Family,
		EntityType: plan.Spec.Entity.Type,
		EntityID:   plan.Spec.Entity.ID,

		VersionBefore: versionBefore,
		VersionAfter:  versionAfter,

		Channel:   requestcontext.Channel(ctx),
		ClientIP:  requestcontext.ClientIP(ctx),
		UserAgent: requestcontext.UserAgent(ctx),

		Before: before,
		After:  after,
		Diff:   diff,

		CreatedAt: requestcontext.Now(ctx),
	})
}

// failureReceipt converts a planner short-circuit into the matching receipt
// variant and records it.
func (e *Executor) failureReceipt(ctx context.Context, plan *models.MutationPlan) models.Receipt {
	failure := plan.Failure
	if failure.Status == models.StatusError {
		if e.metrics != nil {
			e.metrics.MutationErrors.WithLabelValues(string(failure.Reason)).Inc()
		}
		return models.Error{
			MutationID: plan.MutationID,
			Code:       failure.Code,
			Message:    failure.Message,
			Retryable:  failure.Retryable,
			Reason:     failure.Reason,
		}
	}
	if e.metrics != nil {
		e.metrics.MutationsRejected.WithLabelValues(string(failure.Code)).Inc()
		if failure.Code == models.CodeConflictVersion {
			e.metrics.VersionConflicts.Inc()
		}
	}
	e.logger.InfoContext(ctx, "mutation rejected",
		slog.String("mutation_id", plan.MutationID.String()),
		slog.String("action", plan.Spec.Action.String()),
		slog.String("code", string(failure.Code)))
	return models.Rejected{
		MutationID: plan.MutationID,
		Code:       failure.Code,
		Message:    failure.Message,
		Details:    failure.Details,
	}
}

// lostDuplicateRace resolves a write conflict on a keyed create. Two
// submissions carrying the same idempotency key can both pass the planner's
// replay lookup before either commits; the loser's transaction aborts on the
// key insert, and the winner's stored receipt is the canonical outcome for
// the key. Returns nil when the conflict came from something else.
func (e *Executor) lostDuplicateRace(ctx context.Context, plan *models.MutationPlan) *models.OK {
	if plan.Descriptor.Parsed.Verb != "create" || plan.IdempotencyKey == "" {
		return nil
	}
	key := idempotency.Key{
		OrgID:  plan.Spec.Entity.OrgID,
		Action: plan.Spec.Action.String(),
		Key:    plan.IdempotencyKey,
	}
	prior, err := e.stores.Idempotency.Get(ctx, key)
	if err != nil {
		return nil
	}
	if e.metrics != nil {
		e.metrics.IdempotentReplays.Inc()
	}
	e.logger.InfoContext(ctx, "idempotent replay after lost create race",
		slog.String("mutation_id", plan.MutationID.String()),
		slog.String("action", plan.Spec.Action.String()),
		slog.String("entity_id", prior.EntityID.String()))
	return prior
}

// classify maps a commit transaction error onto the receipt union. Client
// races become rejections; infrastructure faults become retryable errors.
func (e *Executor) classify(ctx context.Context, plan *models.MutationPlan, err error) models.Receipt {
	switch {
	case errors.Is(err, sentinel.ErrVersionConflict):
		if e.metrics != nil {
			e.metrics.VersionConflicts.Inc()
			e.metrics.MutationsRejected.WithLabelValues(string(models.CodeConflictVersion)).Inc()
		}
		expected := int64(0)
		if plan.Current != nil {
			expected = plan.Current.Version
		}
		return models.Rejected{
			MutationID: plan.MutationID,
			Code:       models.CodeConflictVersion,
			Message:    "entity version changed during commit",
			Details:    map[string]any{"expectedVersion": expected},
		}
	case errors.Is(err, sentinel.ErrConflict):
		if prior := e.lostDuplicateRace(ctx, plan); prior != nil {
			return *prior
		}
		if e.metrics != nil {
			e.metrics.MutationsRejected.WithLabelValues(string(models.CodeValidationFailed)).Inc()
		}
		return models.Rejected{
			MutationID: plan.MutationID,
			Code:       models.CodeValidationFailed,
			Message:    "entity already exists",
		}
	case errors.Is(err, sentinel.ErrNotFound):
		if e.metrics != nil {
			e.metrics.MutationsRejected.WithLabelValues(string(models.CodeNotFound)).Inc()
		}
		return models.Rejected{
			MutationID: plan.MutationID,
			Code:       models.CodeNotFound,
			Message:    "entity disappeared during commit",
		}
	}

	reason := models.RetryTransient
	retryable := false
	var pgErr *pgconn.PgError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		reason, retryable = models.RetryDBTimeout, true
	case errors.As(err, &pgErr):
		switch pgErr.Code {
		case pqQueryCanceled:
			reason, retryable = models.RetryDBTimeout, true
		case pqSerializationFailure, pqDeadlockDetected:
			reason, retryable = models.RetryTransient, true
		}
	}

	if e.metrics != nil {
		e.metrics.MutationErrors.WithLabelValues(string(reason)).Inc()
	}
	e.logger.ErrorContext(ctx, "mutation commit failed",
		slog.String("mutation_id", plan.MutationID.String()),
		slog.String("action", plan.Spec.Action.String()),
		slog.Bool("retryable", retryable),
		slog.String("error", err.Error()))

	receipt := models.Error{
		MutationID: plan.MutationID,
		Code:       models.CodeInternalError,
		Message:    "mutation could not be committed",
		Retryable:  retryable,
	}
	if retryable {
		receipt.Reason = reason
	}
	return receipt
}
