// Package service is the kernel's front door: one Submit call takes a decoded
// mutation spec and a resolved actor and returns exactly one receipt.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"fiat/internal/audit"
	"fiat/internal/mutation/executor"
	"fiat/internal/mutation/models"
	"fiat/internal/mutation/planner"
	"fiat/internal/mutation/store/entity"
	"fiat/internal/policy"
	domain "fiat/pkg/domain"
	"fiat/pkg/platform/sentinel"
)

// Service orchestrates plan then commit for each mutation attempt.
type Service struct {
	planner  *planner.Planner
	executor *executor.Executor
	entities entity.Store
	ledger   audit.Store
	logger   *slog.Logger
}

// Option configures the service.
type Option func(*Service)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func New(p *planner.Planner, e *executor.Executor, entities entity.Store, ledger audit.Store, opts ...Option) *Service {
	s := &Service{
		planner:  p,
		executor: e,
		entities: entities,
		ledger:   ledger,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit runs one mutation attempt end to end. Every outcome is a receipt;
// the error return covers only faults reading the current entity snapshot.
func (s *Service) Submit(ctx context.Context, spec models.MutationSpec, actor policy.Actor) (models.Receipt, error) {
	var current *models.EntityState
	if !spec.Entity.IsCreate() {
		snapshot, err := s.entities.Get(ctx, spec.Entity)
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			// The planner rejects with NOT_FOUND; reads must not error here
			// or a deleted entity would surface as an internal fault.
		case err != nil:
			return nil, fmt.Errorf("read entity snapshot: %w", err)
		default:
			current = snapshot
		}
	}

	plan, err := s.planner.Build(ctx, spec, actor, current)
	if err != nil {
		return nil, fmt.Errorf("build plan: %w", err)
	}
	return s.executor.Commit(ctx, plan)
}

// AuditTrail lists the ledger entries for one entity in append order.
func (s *Service) AuditTrail(ctx context.Context, entityType domain.EntityType, entityID domain.EntityID) ([]audit.Entry, error) {
	entries, err := s.ledger.ListByEntity(ctx, entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("list audit trail: %w", err)
	}
	return entries, nil
}
