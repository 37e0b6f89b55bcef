// Package shared holds the response envelope and error translation used by
// every HTTP handler.
package shared

import (
	"encoding/json"
	"net/http"

	dErrors "fiat/pkg/domain-errors"
	"fiat/pkg/requestcontext"
)

// ApiResponse is the uniform envelope on every endpoint.
type ApiResponse struct {
	OK    bool      `json:"ok"`
	Data  any       `json:"data,omitempty"`
	Error *ApiError `json:"error,omitempty"`
	Meta  Meta      `json:"meta"`
}

// ApiError carries a machine-readable code and human-readable message.
type ApiError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Meta carries request correlation data. Receipt is set on mutation
// responses only; it holds the rendered receipt variant regardless of
// outcome.
type Meta struct {
	RequestID  string `json:"requestId,omitempty"`
	Receipt    any    `json:"receipt,omitempty"`
	TotalCount *int   `json:"totalCount,omitempty"`
}

// WriteEnvelope writes a fully formed envelope, stamping the request id when
// the caller left it empty.
func WriteEnvelope(w http.ResponseWriter, r *http.Request, status int, resp ApiResponse) {
	if resp.Meta.RequestID == "" {
		resp.Meta.RequestID = requestcontext.RequestID(r.Context())
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// WriteJSON writes a success envelope.
func WriteJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	WriteEnvelope(w, r, status, ApiResponse{OK: true, Data: data})
}

// WriteFailure writes a failure envelope with an explicit status and code.
func WriteFailure(w http.ResponseWriter, r *http.Request, status int, code, message string, details map[string]any) {
	WriteEnvelope(w, r, status, ApiResponse{
		Error: &ApiError{Code: code, Message: message, Details: details},
	})
}

// WriteError translates a domain error into the failure envelope.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	code := dErrors.CodeOf(err)
	WriteFailure(w, r, statusOf(code), string(code), err.Error(), nil)
}

func statusOf(code dErrors.Code) int {
	switch code {
	case dErrors.CodeInvalidInput, dErrors.CodeValidation, dErrors.CodeBadRequest:
		return http.StatusBadRequest
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeRateLimited:
		return http.StatusTooManyRequests
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	case dErrors.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
