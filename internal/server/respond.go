package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nao1215/backlinkscan/internal/pipeline"
)

// errorResponse is the body of every failed API call.
type errorResponse struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Error codes that do not come from the scan pipeline.
const (
	codeUnauthorized = "unauthorized"
	codeRateLimited  = "rate_limited"
	codeNotFound     = "not_found"

	codeMethodNotAllowed = "method_not_allowed"
)

// statusFor maps a pipeline error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, pipeline.ErrPlanRequired):
		return http.StatusPaymentRequired
	case errors.Is(err, pipeline.ErrQuotaExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, pipeline.ErrUpstreamBlocked):
		return http.StatusUnprocessableEntity
	case errors.Is(err, pipeline.ErrUpstreamTransient):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

// statusClientClosedRequest is logged when the client went away mid-scan.
const statusClientClosedRequest = 499

// writeJSON writes v with status.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("failed to write response", "error", err)
	}
}

// writeError maps err to a status and a user-facing message.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "request failed",
			"path", r.URL.Path,
			"error", err,
		)
	}
	s.writeJSON(w, status, errorResponse{
		Error:   pipeline.Outcome(err),
		Message: pipeline.UserMessage(err),
	})
}

// writeFailure writes an error that has no pipeline sentinel.
func (s *Server) writeFailure(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, errorResponse{Error: code, Message: message})
}
