package httptransport_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	auditmem "fiat/internal/audit/store/memory"
	"fiat/internal/authtoken"
	"fiat/internal/capability"
	"fiat/internal/mutation/executor"
	"fiat/internal/mutation/planner"
	"fiat/internal/mutation/service"
	"fiat/internal/mutation/store/entity"
	"fiat/internal/mutation/store/idempotency"
	outboxmem "fiat/internal/outbox/store/memory"
	"fiat/internal/policy"
	"fiat/internal/ratelimit"
	httptransport "fiat/internal/transport/http"
	"fiat/internal/transport/http/shared"
	domain "fiat/pkg/domain"
)

type HandlersSuite struct {
	suite.Suite
	server *httptest.Server
	tokens *authtoken.Service
	org    domain.OrgID
	actor  domain.ActorID
}

func TestHandlersSuite(t *testing.T) {
	suite.Run(t, new(HandlersSuite))
}

func (s *HandlersSuite) SetupTest() {
	catalog, err := capability.Default()
	s.Require().NoError(err)

	entities := entity.NewInMemoryStore()
	ledger := auditmem.NewInMemoryStore()
	intents := outboxmem.NewInMemoryStore()
	replays := idempotency.NewInMemoryStore()

	tx := executor.NewMemoryTxRunner(entities, ledger, intents, replays)
	exec := executor.New(tx, executor.Stores{
		Entities:    entities,
		Audit:       ledger,
		Outbox:      intents,
		Idempotency: replays,
	})
	kernel := service.New(
		planner.New(catalog, policy.NewDecider(), replays),
		exec,
		entities,
		ledger,
	)

	s.tokens = authtoken.NewService("test-signing-key", "fiat", "fiat-api")
	logger := slog.New(slog.DiscardHandler)
	router := httptransport.NewRouter(httptransport.RouterConfig{
		Kernel:    kernel,
		Validator: s.tokens,
		Limiter:   ratelimit.NewInMemoryLimiter(5, time.Minute),
		Logger:    logger,
	})
	s.server = httptest.NewServer(router)

	s.org = domain.OrgID(uuid.New())
	s.actor = domain.ActorID(uuid.New())
}

func (s *HandlersSuite) TearDownTest() {
	s.server.Close()
}

func (s *HandlersSuite) token(roles ...policy.Role) string {
	token, err := s.tokens.GenerateToken(s.actor, s.org, roles, nil, time.Hour)
	s.Require().NoError(err)
	return token
}

func (s *HandlersSuite) post(token string, body map[string]any) (*http.Response, shared.ApiResponse) {
	raw, err := json.Marshal(body)
	s.Require().NoError(err)

	req, err := http.NewRequest(http.MethodPost, s.server.URL+"/v1/mutations", bytes.NewReader(raw))
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.server.Client().Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	var envelope shared.ApiResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&envelope))
	return resp, envelope
}

func (s *HandlersSuite) createContact(token string) string {
	resp, envelope := s.post(token, map[string]any{
		"action":     "contacts.create",
		"entityType": "contacts",
		"input":      map[string]any{"name": "Ada", "email": "ada@example.com"},
	})
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	s.Require().True(envelope.OK)

	receipt := envelope.Meta.Receipt.(map[string]any)
	return receipt["entityId"].(string)
}

func (s *HandlersSuite) TestSubmitRequiresAuth() {
	resp, envelope := s.post("", map[string]any{
		"action":     "contacts.create",
		"entityType": "contacts",
		"input":      map[string]any{"name": "Ada"},
	})
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
	s.False(envelope.OK)
	s.Equal("UNAUTHORIZED", envelope.Error.Code)
}

func (s *HandlersSuite) TestCreateReturnsReceipt() {
	token := s.token(policy.RoleEditor)
	resp, envelope := s.post(token, map[string]any{
		"action":     "contacts.create",
		"entityType": "contacts",
		"input":      map[string]any{"name": "Ada"},
	})

	s.Equal(http.StatusCreated, resp.StatusCode)
	s.Require().True(envelope.OK)
	s.NotEmpty(envelope.Meta.RequestID)
	s.Nil(envelope.Data)

	receipt := envelope.Meta.Receipt.(map[string]any)
	s.Equal("ok", receipt["status"])
	s.Equal(float64(1), receipt["versionAfter"])
	s.Nil(receipt["versionBefore"])
	s.NotEmpty(receipt["mutationId"])
	s.NotEmpty(receipt["entityId"])
}

func (s *HandlersSuite) TestStaleVersionConflicts() {
	token := s.token(policy.RoleEditor)
	entityID := s.createContact(token)

	resp, envelope := s.post(token, map[string]any{
		"action":          "contacts.update",
		"entityType":      "contacts",
		"entityId":        entityID,
		"input":           map[string]any{"name": "Grace"},
		"expectedVersion": 42,
	})

	s.Equal(http.StatusConflict, resp.StatusCode)
	s.Require().False(envelope.OK)
	s.Equal("CONFLICT_VERSION", envelope.Error.Code)
	s.Equal(float64(1), envelope.Error.Details["actualVersion"])
	s.Contains(envelope.Error.Details["errorId"], "CONFLICT_VERSION:")

	// Failures carry the receipt under meta too, same as successes.
	receipt := envelope.Meta.Receipt.(map[string]any)
	s.Equal("rejected", receipt["status"])
	s.Equal("CONFLICT_VERSION", receipt["errorCode"])
	s.NotEmpty(receipt["mutationId"])
}

func (s *HandlersSuite) TestViewerCannotMutate() {
	token := s.token(policy.RoleViewer)
	resp, envelope := s.post(token, map[string]any{
		"action":     "contacts.create",
		"entityType": "contacts",
		"input":      map[string]any{"name": "Ada"},
	})

	s.Equal(http.StatusForbidden, resp.StatusCode)
	s.Equal("POLICY_DENIED", envelope.Error.Code)
}

func (s *HandlersSuite) TestValidationErrors() {
	token := s.token(policy.RoleEditor)

	tests := []struct {
		name string
		body map[string]any
	}{
		{
			name: "missing action",
			body: map[string]any{"entityType": "contacts", "input": map[string]any{"name": "x"}},
		},
		{
			name: "missing entity type",
			body: map[string]any{"action": "contacts.create", "input": map[string]any{"name": "x"}},
		},
	}
	for _, tc := range tests {
		s.Run(tc.name, func() {
			resp, envelope := s.post(token, tc.body)
			s.Equal(http.StatusBadRequest, resp.StatusCode)
			s.False(envelope.OK)
		})
	}
}

func (s *HandlersSuite) TestRateLimitKicksIn() {
	token := s.token(policy.RoleEditor)

	// Limit is 5 per minute; the sixth submission must be refused.
	for i := 0; i < 5; i++ {
		resp, _ := s.post(token, map[string]any{
			"action":     "contacts.create",
			"entityType": "contacts",
			"input":      map[string]any{"name": fmt.Sprintf("c%d", i)},
		})
		s.Require().Equal(http.StatusCreated, resp.StatusCode)
	}

	resp, envelope := s.post(token, map[string]any{
		"action":     "contacts.create",
		"entityType": "contacts",
		"input":      map[string]any{"name": "overflow"},
	})
	s.Equal(http.StatusTooManyRequests, resp.StatusCode)
	s.Equal("RATE_LIMITED", envelope.Error.Code)
	s.Contains(envelope.Error.Details, "retryAfterMs")
	s.NotEmpty(resp.Header.Get("Retry-After"))
}

func (s *HandlersSuite) TestAuditTrailEndpoint() {
	token := s.token(policy.RoleEditor)
	entityID := s.createContact(token)

	version := 1
	resp, _ := s.post(token, map[string]any{
		"action":          "contacts.update",
		"entityType":      "contacts",
		"entityId":        entityID,
		"input":           map[string]any{"name": "Grace"},
		"expectedVersion": version,
	})
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, s.server.URL+"/v1/entities/contacts/"+entityID+"/audit", nil)
	s.Require().NoError(err)
	req.Header.Set("Authorization", "Bearer "+token)

	trailResp, err := s.server.Client().Do(req)
	s.Require().NoError(err)
	defer trailResp.Body.Close()
	s.Require().Equal(http.StatusOK, trailResp.StatusCode)

	var envelope shared.ApiResponse
	s.Require().NoError(json.NewDecoder(trailResp.Body).Decode(&envelope))
	data := envelope.Data.(map[string]any)
	entries := data["entries"].([]any)
	s.Require().Len(entries, 2)

	first := entries[0].(map[string]any)
	second := entries[1].(map[string]any)
	s.Equal("contacts.create", first["action"])
	s.Equal("contacts.update", second["action"])
	s.Equal(float64(2), second["versionAfter"])
}

func (s *HandlersSuite) TestHealthz() {
	resp, err := s.server.Client().Get(s.server.URL + "/healthz")
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)
}
