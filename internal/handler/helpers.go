package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/boddenberg/pato-rico-bfa/internal/domain"
	"github.com/boddenberg/pato-rico-bfa/internal/view"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ============================================================
// Shared helper functions
// ============================================================

type errorResponse struct {
	Error        string             `json:"error"`
	Fields       map[string]string  `json:"fields,omitempty"`
	Notification *view.Notification `json:"notification,omitempty"`
	Redirect     string             `json:"redirect,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// seeOther answers a state change with the canonical URL of the new state.
func seeOther(w http.ResponseWriter, location string) {
	w.Header().Set("Location", location)
	w.WriteHeader(http.StatusSeeOther)
}

// parseRangeBound reads a dashboard range bound: a calendar date or an
// RFC 3339 timestamp. Empty means unbounded.
func parseRangeBound(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, true
	}
	if d, err := time.ParseInLocation(domain.DateLayout, raw, time.Local); err == nil {
		return d, true
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts, true
	}
	return time.Time{}, false
}

// handleServiceError maps domain errors to HTTP responses. Rejected
// credentials end the session through the interceptor.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error, ic *Interceptor, logger *zap.Logger) {
	respondError(w, r, err, ic, logger, "")
}

// handleWriteError is handleServiceError for user-initiated writes: the
// response always carries an error notification.
func handleWriteError(w http.ResponseWriter, r *http.Request, err error, ic *Interceptor, logger *zap.Logger, message string) {
	respondError(w, r, err, ic, logger, message)
}

func respondError(w http.ResponseWriter, r *http.Request, err error, ic *Interceptor, logger *zap.Logger, message string) {
	if domain.IsUnauthorized(err) {
		ic.Expire(w, r, err)
		return
	}
	if sc := trace.SpanContextFromContext(r.Context()); sc.HasTraceID() {
		logger = logger.With(zap.String("trace_id", sc.TraceID().String()))
	}

	var notFound *domain.ErrNotFound
	var circuitOpen *domain.ErrCircuitOpen
	var validation *domain.ErrValidation
	var failed *domain.ErrRequestFailed
	var external *domain.ErrExternalService

	status := http.StatusInternalServerError
	body := errorResponse{Error: "internal server error"}

	switch {
	case errors.As(err, &validation):
		logger.Debug("validation error", zap.String("error", err.Error()))
		status = http.StatusUnprocessableEntity
		body = errorResponse{Error: err.Error(), Fields: validation.Fields}
	case errors.As(err, &notFound):
		logger.Debug("not found", zap.String("error", err.Error()))
		status = http.StatusNotFound
		body.Error = err.Error()
	case errors.As(err, &failed):
		logger.Warn("finance api request failed",
			zap.String("path", failed.Path),
			zap.Int("status", failed.Status),
		)
		status = failed.Status
		if status >= http.StatusInternalServerError || status < http.StatusBadRequest {
			status = http.StatusBadGateway
		}
		body.Error = err.Error()
	case errors.As(err, &circuitOpen):
		logger.Error("circuit breaker open", zap.Error(err))
		status = http.StatusServiceUnavailable
		body.Error = err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		logger.Error("request timeout", zap.Error(err))
		status = http.StatusGatewayTimeout
		body.Error = err.Error()
	case errors.As(err, &external):
		logger.Error("finance api unavailable", zap.Error(err))
		status = http.StatusBadGateway
		body.Error = err.Error()
	default:
		logger.Error("unhandled error", zap.Error(err))
	}

	if message != "" {
		note := view.Failure(message)
		body.Notification = &note
	}
	writeJSON(w, status, body)
}
