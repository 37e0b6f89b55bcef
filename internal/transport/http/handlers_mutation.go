// Package httptransport is the HTTP surface of the mutation kernel: one
// submission endpoint returning receipts and one read endpoint over the
// audit ledger.
package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"fiat/internal/audit"
	"fiat/internal/capability"
	"fiat/internal/mutation/models"
	"fiat/internal/policy"
	"fiat/internal/transport/http/shared"
	domain "fiat/pkg/domain"
	"fiat/pkg/requestcontext"
)

// Kernel is the mutation service surface the handlers depend on.
type Kernel interface {
	Submit(ctx context.Context, spec models.MutationSpec, actor policy.Actor) (models.Receipt, error)
	AuditTrail(ctx context.Context, entityType domain.EntityType, entityID domain.EntityID) ([]audit.Entry, error)
}

// MutationRequest is the wire form of a submission.
type MutationRequest struct {
	Action          string         `json:"action" validate:"required"`
	EntityType      string         `json:"entityType" validate:"required"`
	EntityID        string         `json:"entityId,omitempty"`
	Input           map[string]any `json:"input,omitempty"`
	ExpectedVersion *int64         `json:"expectedVersion,omitempty"`
	BatchID         string         `json:"batchId,omitempty"`
	Reason          string         `json:"reason,omitempty"`
	IdempotencyKey  string         `json:"idempotencyKey,omitempty" validate:"omitempty,max=200"`
}

// Handler handles the mutation endpoints.
type Handler struct {
	kernel   Kernel
	logger   *slog.Logger
	validate *validator.Validate
}

func NewHandler(kernel Kernel, logger *slog.Logger) *Handler {
	return &Handler{
		kernel:   kernel,
		logger:   logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// handleSubmit decodes one mutation request, runs it through the kernel, and
// renders the receipt. Transport rejects only what it alone can judge (syntax,
// auth); everything semantic is the kernel's call.
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := GetActor(ctx)
	if !ok {
		shared.WriteFailure(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "no authenticated actor", nil)
		return
	}

	var req MutationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "undecodable mutation request",
			slog.String("request_id", requestcontext.RequestID(ctx)),
			slog.String("error", err.Error()))
		shared.WriteFailure(w, r, http.StatusBadRequest, "VALIDATION_FAILED", "invalid request body", nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		shared.WriteFailure(w, r, http.StatusBadRequest, "VALIDATION_FAILED", err.Error(), nil)
		return
	}

	spec, err := h.buildSpec(req, actor)
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}

	receipt, err := h.kernel.Submit(ctx, spec, actor)
	if err != nil {
		h.logger.ErrorContext(ctx, "mutation submission failed",
			slog.String("request_id", requestcontext.RequestID(ctx)),
			slog.String("error", err.Error()))
		shared.WriteFailure(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "mutation could not be processed", nil)
		return
	}
	writeReceipt(w, r, receipt)
}

// buildSpec maps the wire request onto the kernel's spec. The entity org is
// always the actor's org; callers cannot address another tenant.
func (h *Handler) buildSpec(req MutationRequest, actor policy.Actor) (models.MutationSpec, error) {
	entityType, err := domain.ParseEntityType(req.EntityType)
	if err != nil {
		return models.MutationSpec{}, err
	}
	ref := domain.EntityRef{OrgID: actor.OrgID, Type: entityType}
	if req.EntityID != "" {
		id, err := domain.ParseEntityID(req.EntityID)
		if err != nil {
			return models.MutationSpec{}, err
		}
		ref.ID = id
	}

	spec := models.MutationSpec{
		Action:          capability.Key(req.Action),
		Entity:          ref,
		Input:           req.Input,
		ExpectedVersion: req.ExpectedVersion,
		Reason:          req.Reason,
		IdempotencyKey:  req.IdempotencyKey,
	}
	if req.BatchID != "" {
		batchID, err := domain.ParseBatchID(req.BatchID)
		if err != nil {
			return models.MutationSpec{}, err
		}
		spec.BatchID = &batchID
	}
	return spec, nil
}

// handleAuditTrail lists the ledger for one entity, scoped to the actor's org.
func (h *Handler) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := GetActor(ctx)
	if !ok {
		shared.WriteFailure(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "no authenticated actor", nil)
		return
	}

	entityType, err := domain.ParseEntityType(chi.URLParam(r, "type"))
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	entityID, err := domain.ParseEntityID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}

	entries, err := h.kernel.AuditTrail(ctx, entityType, entityID)
	if err != nil {
		h.logger.ErrorContext(ctx, "audit trail read failed",
			slog.String("request_id", requestcontext.RequestID(ctx)),
			slog.String("error", err.Error()))
		shared.WriteFailure(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "audit trail could not be read", nil)
		return
	}

	out := make([]auditEntryResponse, 0, len(entries))
	for _, entry := range entries {
		if entry.OrgID != actor.OrgID {
			continue
		}
		out = append(out, toAuditEntryResponse(entry))
	}
	shared.WriteJSON(w, r, http.StatusOK, map[string]any{"entries": out})
}

// writeReceipt renders one receipt variant onto the wire with its HTTP
// status. Every outcome carries the full receipt under meta.receipt; failures
// additionally populate the error block so generic clients need not inspect
// the receipt at all.
func writeReceipt(w http.ResponseWriter, r *http.Request, receipt models.Receipt) {
	meta := shared.Meta{Receipt: wireReceipt(receipt)}
	switch rec := receipt.(type) {
	case models.OK:
		status := http.StatusOK
		if rec.VersionBefore == nil {
			status = http.StatusCreated
		}
		shared.WriteEnvelope(w, r, status, shared.ApiResponse{OK: true, Meta: meta})
	case models.Rejected:
		shared.WriteEnvelope(w, r, rejectedStatus(rec.Code), shared.ApiResponse{
			Error: &shared.ApiError{
				Code:    string(rec.Code),
				Message: rec.Message,
				Details: withReceiptDetails(rec.Details, rec),
			},
			Meta: meta,
		})
	case models.Error:
		status := http.StatusInternalServerError
		details := map[string]any{
			"mutationId": rec.MutationID.String(),
			"errorId":    rec.ErrorID(),
			"retryable":  rec.Retryable,
		}
		if rec.Retryable {
			status = http.StatusServiceUnavailable
			details["retryableReason"] = rec.Reason
			if rec.RetryAfterMS != nil {
				details["retryAfterMs"] = *rec.RetryAfterMS
				w.Header().Set("Retry-After", strconv.FormatInt(*rec.RetryAfterMS/1000+1, 10))
			}
		}
		shared.WriteEnvelope(w, r, status, shared.ApiResponse{
			Error: &shared.ApiError{Code: string(rec.Code), Message: rec.Message, Details: details},
			Meta:  meta,
		})
	}
}

// wireReceipt flattens a receipt variant into its JSON form with the status
// discriminator and correlation id added.
func wireReceipt(receipt models.Receipt) any {
	switch rec := receipt.(type) {
	case models.OK:
		return struct {
			Status models.Status `json:"status"`
			models.OK
		}{models.StatusOK, rec}
	case models.Rejected:
		return struct {
			Status  models.Status `json:"status"`
			ErrorID string        `json:"errorId"`
			models.Rejected
		}{models.StatusRejected, rec.ErrorID(), rec}
	case models.Error:
		return struct {
			Status  models.Status `json:"status"`
			ErrorID string        `json:"errorId"`
			models.Error
		}{models.StatusError, rec.ErrorID(), rec}
	default:
		return nil
	}
}

func withReceiptDetails(details map[string]any, rec models.Rejected) map[string]any {
	out := make(map[string]any, len(details)+2)
	for k, v := range details {
		out[k] = v
	}
	out["mutationId"] = rec.MutationID.String()
	out["errorId"] = rec.ErrorID()
	return out
}

func rejectedStatus(code models.ErrorCode) int {
	switch code {
	case models.CodeMissingOrgID, models.CodeValidationFailed:
		return http.StatusBadRequest
	case models.CodePolicyDenied:
		return http.StatusForbidden
	case models.CodeLifecycleDenied, models.CodeConflictVersion:
		return http.StatusConflict
	case models.CodeNotFound:
		return http.StatusNotFound
	case models.CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusBadRequest
	}
}

type auditEntryResponse struct {
	ID            string          `json:"id"`
	MutationID    string          `json:"mutationId"`
	BatchID       string          `json:"batchId,omitempty"`
	RequestID     string          `json:"requestId,omitempty"`
	ActorID       string          `json:"actorId"`
	Action        string          `json:"action"`
	EntityType    string          `json:"entityType"`
	EntityID      string          `json:"entityId"`
	VersionBefore *int64          `json:"versionBefore"`
	VersionAfter  int64           `json:"versionAfter"`
	Channel       string          `json:"channel,omitempty"`
	Diff          json.RawMessage `json:"diff,omitempty"`
	CreatedAt     string          `json:"createdAt"`
}

func toAuditEntryResponse(entry audit.Entry) auditEntryResponse {
	out := auditEntryResponse{
		ID:            entry.ID.String(),
		MutationID:    entry.MutationID.String(),
		RequestID:     entry.RequestID,
		ActorID:       entry.ActorID.String(),
		Action:        entry.Action.String(),
		EntityType:    entry.EntityType.String(),
		EntityID:      entry.EntityID.String(),
		VersionBefore: entry.VersionBefore,
		VersionAfter:  entry.VersionAfter,
		Channel:       entry.Channel,
		Diff:          entry.Diff,
		CreatedAt:     entry.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
	if entry.BatchID != nil {
		out.BatchID = entry.BatchID.String()
	}
	return out
}
