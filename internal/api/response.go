package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/example/token-transfer/internal/failure"
	"github.com/example/token-transfer/internal/security"
)

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	cid := security.CorrelationIDFromContext(r.Context())
	if cid != "" {
		w.Header().Set(security.CorrelationIDHeader, cid)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps a workflow error kind to an HTTP status.
func statusFor(kind string) int {
	switch kind {
	case failure.KindInvalidInput:
		return http.StatusBadRequest
	case failure.KindAuth:
		return http.StatusUnauthorized
	case failure.KindNoHoldings:
		return http.StatusConflict
	case failure.KindRegistrySubmission, failure.KindProtocol, failure.KindResponseDecode:
		return http.StatusBadGateway
	case failure.KindTransport:
		return http.StatusServiceUnavailable
	case failure.KindCanceled:
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func writeWorkflowError(w http.ResponseWriter, r *http.Request, err error) {
	kind := failure.KindOf(err)
	status := statusFor(kind)

	detail := err.Error()
	var submitErr *failure.RegistrySubmissionError
	if errors.As(err, &submitErr) {
		// Surface the registry's own status and body to the caller.
		writeJSON(w, r, status, registryErrorResponse{
			ErrorResponse: security.ErrorResponse{
				Error:         kind,
				Detail:        detail,
				CorrelationID: security.CorrelationIDFromContext(r.Context()),
			},
			RegistryStatus: submitErr.StatusCode,
			RegistryBody:   submitErr.Body,
		})
		return
	}
	if status == http.StatusInternalServerError {
		detail = ""
	}
	security.WriteJSONErrorDetail(w, r, status, kind, detail)
}

type registryErrorResponse struct {
	security.ErrorResponse
	RegistryStatus int    `json:"registry_status"`
	RegistryBody   string `json:"registry_body"`
}
