package planner_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"fiat/internal/capability"
	"fiat/internal/lifecycle"
	"fiat/internal/mutation/models"
	"fiat/internal/mutation/planner"
	"fiat/internal/mutation/store/idempotency"
	"fiat/internal/outbox"
	"fiat/internal/policy"
	domain "fiat/pkg/domain"
)

type PlannerSuite struct {
	suite.Suite
	planner *planner.Planner
	replays *idempotency.InMemoryStore
	org     domain.OrgID
	actor   policy.Actor
}

func TestPlannerSuite(t *testing.T) {
	suite.Run(t, new(PlannerSuite))
}

func (s *PlannerSuite) SetupTest() {
	catalog, err := capability.Default()
	s.Require().NoError(err)

	s.replays = idempotency.NewInMemoryStore()
	s.planner = planner.New(catalog, policy.NewDecider(), s.replays)
	s.org = domain.OrgID(uuid.New())
	s.actor = policy.Actor{
		ID:    domain.ActorID(uuid.New()),
		OrgID: s.org,
		Roles: []policy.Role{policy.RoleEditor},
	}
}

func (s *PlannerSuite) contact(version int64, state lifecycle.State) *models.EntityState {
	return &models.EntityState{
		Ref: domain.EntityRef{
			OrgID: s.org,
			Type:  "contacts",
			ID:    domain.NewEntityID(),
		},
		Version:   version,
		Lifecycle: state,
		Fields:    map[string]any{"name": "Ada", "email": "ada@example.com"},
	}
}

func (s *PlannerSuite) TestCreateBuildsCommitReadyPlan() {
	spec := models.MutationSpec{
		Action: "contacts.create",
		Entity: domain.EntityRef{OrgID: s.org, Type: "contacts"},
		Input:  map[string]any{"name": "Ada", "email": "ada@example.com"},
	}

	plan, err := s.planner.Build(context.Background(), spec, s.actor, nil)
	s.Require().NoError(err)
	s.Require().Nil(plan.Failure)
	s.Require().Nil(plan.Replay)

	s.False(plan.MutationID.IsNil())
	s.False(plan.Spec.Entity.ID.IsNil(), "create must mint the entity id")
	s.Equal(map[string]any{"name": "Ada", "email": "ada@example.com"}, plan.Sanitized)
	s.Equal(models.FieldChange{From: nil, To: "Ada"}, plan.Diff["name"])
	s.NotEmpty(plan.InvariantsChecked)

	// contacts.create declares search then webhook, in that order.
	s.Require().Len(plan.Intents, 2)
	s.Equal(outbox.KindSearch, plan.Intents[0].Kind())
	s.Equal(outbox.KindWebhook, plan.Intents[1].Kind())
}

func (s *PlannerSuite) TestUpdateDiffsAgainstCurrent() {
	current := s.contact(3, lifecycle.StateDraft)
	version := int64(3)
	spec := models.MutationSpec{
		Action:          "contacts.update",
		Entity:          current.Ref,
		Input:           map[string]any{"email": "ada@new.example.com"},
		ExpectedVersion: &version,
	}

	plan, err := s.planner.Build(context.Background(), spec, s.actor, current)
	s.Require().NoError(err)
	s.Require().Nil(plan.Failure)

	s.Equal(models.FieldChange{From: "ada@example.com", To: "ada@new.example.com"}, plan.Diff["email"])
	s.NotContains(plan.Diff, "name", "untouched fields stay out of the diff")
}

func (s *PlannerSuite) TestShapeValidation() {
	current := s.contact(1, lifecycle.StateDraft)
	version := int64(1)

	tests := []struct {
		name     string
		spec     models.MutationSpec
		current  *models.EntityState
		wantCode models.ErrorCode
	}{
		{
			name: "unknown action",
			spec: models.MutationSpec{
				Action: "contacts.frobnicate",
				Entity: domain.EntityRef{OrgID: s.org, Type: "contacts"},
				Input:  map[string]any{"name": "x"},
			},
			wantCode: models.CodeValidationFailed,
		},
		{
			name: "read action is not a mutation",
			spec: models.MutationSpec{
				Action: "contacts.get",
				Entity: current.Ref,
			},
			current:  current,
			wantCode: models.CodeValidationFailed,
		},
		{
			name: "missing org id",
			spec: models.MutationSpec{
				Action: "contacts.create",
				Entity: domain.EntityRef{Type: "contacts"},
				Input:  map[string]any{"name": "x"},
			},
			wantCode: models.CodeMissingOrgID,
		},
		{
			name: "action targeting the wrong entity type",
			spec: models.MutationSpec{
				Action:          "invoices.update",
				Entity:          current.Ref,
				Input:           map[string]any{"memo": "x"},
				ExpectedVersion: &version,
			},
			current:  current,
			wantCode: models.CodeValidationFailed,
		},
		{
			name: "create with an entity id",
			spec: models.MutationSpec{
				Action: "contacts.create",
				Entity: current.Ref,
				Input:  map[string]any{"name": "x"},
			},
			wantCode: models.CodeValidationFailed,
		},
		{
			name: "update without expected version",
			spec: models.MutationSpec{
				Action: "contacts.update",
				Entity: current.Ref,
				Input:  map[string]any{"name": "x"},
			},
			current:  current,
			wantCode: models.CodeValidationFailed,
		},
		{
			name: "update of a missing entity",
			spec: models.MutationSpec{
				Action:          "contacts.update",
				Entity:          domain.EntityRef{OrgID: s.org, Type: "contacts", ID: domain.NewEntityID()},
				Input:           map[string]any{"name": "x"},
				ExpectedVersion: &version,
			},
			wantCode: models.CodeNotFound,
		},
	}

	for _, tc := range tests {
		s.Run(tc.name, func() {
			plan, err := s.planner.Build(context.Background(), tc.spec, s.actor, tc.current)
			s.Require().NoError(err)
			s.Require().NotNil(plan.Failure)
			s.Equal(models.StatusRejected, plan.Failure.Status)
			s.Equal(tc.wantCode, plan.Failure.Code)
		})
	}
}

func (s *PlannerSuite) TestStaleVersionShortCircuits() {
	current := s.contact(5, lifecycle.StateDraft)
	stale := int64(3)
	spec := models.MutationSpec{
		Action:          "contacts.update",
		Entity:          current.Ref,
		Input:           map[string]any{"name": "Grace"},
		ExpectedVersion: &stale,
	}

	plan, err := s.planner.Build(context.Background(), spec, s.actor, current)
	s.Require().NoError(err)
	s.Require().NotNil(plan.Failure)
	s.Equal(models.CodeConflictVersion, plan.Failure.Code)
	s.Equal(int64(5), plan.Failure.Details["actualVersion"])

	// Justification: conflict detection must run before policy so the caller
	// learns about the lost race even when a slower check would also fail.
	s.Nil(plan.Sanitized)
}

func (s *PlannerSuite) TestPolicyDenial() {
	current := s.contact(1, lifecycle.StateDraft)
	version := int64(1)
	viewer := policy.Actor{
		ID:    domain.ActorID(uuid.New()),
		OrgID: s.org,
		Roles: []policy.Role{policy.RoleViewer},
	}
	spec := models.MutationSpec{
		Action:          "contacts.update",
		Entity:          current.Ref,
		Input:           map[string]any{"name": "Grace"},
		ExpectedVersion: &version,
	}

	plan, err := s.planner.Build(context.Background(), spec, viewer, current)
	s.Require().NoError(err)
	s.Require().NotNil(plan.Failure)
	s.Equal(models.CodePolicyDenied, plan.Failure.Code)
	s.Contains(plan.Failure.Details["reasonCodes"], policy.ReasonTierInsufficient)
}

func (s *PlannerSuite) TestLifecycleDenial() {
	current := s.contact(2, lifecycle.StateSubmitted)
	current.Ref.Type = "invoices"
	version := int64(2)
	spec := models.MutationSpec{
		Action:          "invoices.update",
		Entity:          current.Ref,
		Input:           map[string]any{"memo": "late edit"},
		ExpectedVersion: &version,
	}

	plan, err := s.planner.Build(context.Background(), spec, s.actor, current)
	s.Require().NoError(err)
	s.Require().NotNil(plan.Failure)
	s.Equal(models.CodeLifecycleDenied, plan.Failure.Code)
	s.Equal(lifecycle.ReasonSubmittedImmutable, plan.Failure.Details["reasonCode"])
}

func (s *PlannerSuite) TestFieldSanitation() {
	s.Run("server-owned fields are stripped silently", func() {
		spec := models.MutationSpec{
			Action: "contacts.create",
			Entity: domain.EntityRef{OrgID: s.org, Type: "contacts"},
			Input:  map[string]any{"name": "Ada", "version": 99, "created_at": "2020-01-01"},
		}

		plan, err := s.planner.Build(context.Background(), spec, s.actor, nil)
		s.Require().NoError(err)
		s.Require().Nil(plan.Failure)
		s.Equal([]string{"created_at", "version"}, plan.Stripped)
		s.Equal(map[string]any{"name": "Ada"}, plan.Sanitized)
	})

	s.Run("forbidden field rejects the plan", func() {
		spec := models.MutationSpec{
			Action: "invoices.create",
			Entity: domain.EntityRef{OrgID: s.org, Type: "invoices"},
			Input:  map[string]any{"memo": "x", "total_cents": 500},
		}

		plan, err := s.planner.Build(context.Background(), spec, s.actor, nil)
		s.Require().NoError(err)
		s.Require().NotNil(plan.Failure)
		s.Equal(models.CodeValidationFailed, plan.Failure.Code)
		s.Contains(plan.Failure.Details, "total_cents")
	})
}

func (s *PlannerSuite) TestIdempotentReplay() {
	prior := models.OK{
		MutationID:   domain.NewMutationID(),
		EntityID:     domain.NewEntityID(),
		VersionAfter: 1,
	}
	key := idempotency.Key{OrgID: s.org, Action: "contacts.create", Key: "req-42"}
	s.Require().NoError(s.replays.Put(context.Background(), key, prior))

	spec := models.MutationSpec{
		Action:         "contacts.create",
		Entity:         domain.EntityRef{OrgID: s.org, Type: "contacts"},
		Input:          map[string]any{"name": "Ada"},
		IdempotencyKey: "req-42",
	}

	plan, err := s.planner.Build(context.Background(), spec, s.actor, nil)
	s.Require().NoError(err)
	s.Require().NotNil(plan.Replay)
	s.Equal(prior, *plan.Replay)
	s.Nil(plan.Failure)
	s.Empty(plan.Intents, "replayed plans must not enqueue new side effects")
}
