package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hugh/brokerdesk/internal/api/dto"
	"github.com/hugh/brokerdesk/internal/apperr"
	"github.com/hugh/brokerdesk/internal/quota"
	"github.com/hugh/brokerdesk/internal/testutil"
	"github.com/hugh/brokerdesk/pkg/util"
	"github.com/stretchr/testify/assert"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", apperr.Validation("bad"), http.StatusBadRequest, "validation_failed"},
		{"unauthorized", apperr.Unauthorized("no"), http.StatusForbidden, "unauthorized"},
		{"subscription missing", apperr.SubscriptionMissing("none"), http.StatusForbidden, "subscription_missing"},
		{"not found", apperr.NotFound("gone"), http.StatusNotFound, "not_found"},
		{"limit", &quota.LimitExceededError{Resource: quota.Staff, Max: 2, Current: 2}, http.StatusConflict, "limit_exceeded"},
		{"conflict", apperr.Conflict("dup"), http.StatusConflict, "conflict"},
		{"agreement", apperr.NoActiveAgreement("none"), http.StatusUnprocessableEntity, "no_active_agreement"},
		{"transition", apperr.InvalidTransition("done"), http.StatusUnprocessableEntity, "invalid_transition"},
		{"wrapped", fmt.Errorf("creating client: %w", apperr.NotFound("gone")), http.StatusNotFound, "not_found"},
		{"plain", errors.New("disk on fire"), http.StatusInternalServerError, "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code := statusOf(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestWriteError_HidesInternalDetail(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/v1/companies", nil)

	writeError(rr, util.DiscardLogger(), req, errors.New("pq: connection refused"))

	testutil.AssertStatus(t, rr, http.StatusInternalServerError)
	var resp dto.ErrorResponse
	testutil.ParseJSONResponse(t, rr, &resp)
	assert.Equal(t, "internal error", resp.Error)
	assert.NotContains(t, rr.Body.String(), "pq:")
}

func TestWriteError_ValidationDetails(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/v1/users", nil)

	writeError(rr, util.DiscardLogger(), req, apperr.ValidationFields(map[string]string{"email": "is invalid"}))

	testutil.AssertStatus(t, rr, http.StatusBadRequest)
	var resp dto.ErrorResponse
	testutil.ParseJSONResponse(t, rr, &resp)
	assert.Equal(t, "is invalid", resp.Details["email"])
}
