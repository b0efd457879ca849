package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hugh/brokerdesk/internal/api/dto"
	"github.com/hugh/brokerdesk/internal/api/middleware"
	"github.com/hugh/brokerdesk/internal/apperr"
	"github.com/hugh/brokerdesk/internal/tenancy"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: msg, Code: "bad_request"})
}

// statusOf maps a domain error to its HTTP status and a stable error code.
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest, "validation_failed"
	case errors.Is(err, apperr.ErrUnauthorized):
		return http.StatusForbidden, "unauthorized"
	case errors.Is(err, apperr.ErrSubscriptionMissing):
		return http.StatusForbidden, "subscription_missing"
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperr.ErrLimitExceeded):
		return http.StatusConflict, "limit_exceeded"
	case errors.Is(err, apperr.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, apperr.ErrNoActiveAgreement):
		return http.StatusUnprocessableEntity, "no_active_agreement"
	case errors.Is(err, apperr.ErrInvalidTransition):
		return http.StatusUnprocessableEntity, "invalid_transition"
	}
	return http.StatusInternalServerError, "internal"
}

func writeError(w http.ResponseWriter, logger *slog.Logger, r *http.Request, err error) {
	status, code := statusOf(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, status, dto.ErrorResponse{Error: "internal error", Code: code})
		return
	}
	writeJSON(w, status, dto.ErrorResponse{
		Error:   apperr.Message(err),
		Code:    code,
		Details: apperr.Fields(err),
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeBadRequest(w, "Invalid request body")
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeBadRequest(w, "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func queryID(w http.ResponseWriter, r *http.Request, name string) (*uuid.UUID, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		writeBadRequest(w, "Invalid "+name)
		return nil, false
	}
	return &id, true
}

func queryBool(r *http.Request, name string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return v
}

// actor returns the principal set by the auth middleware. Handlers are only
// mounted behind it, so a missing principal is a wiring bug.
func actor(r *http.Request) tenancy.Principal {
	p, _ := middleware.GetPrincipal(r.Context())
	return p
}
