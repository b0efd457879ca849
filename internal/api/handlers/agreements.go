package handlers

import (
	"log/slog"
	"net/http"

	"github.com/hugh/brokerdesk/internal/agreement"
	"github.com/hugh/brokerdesk/internal/api/dto"
	"github.com/hugh/brokerdesk/internal/database/models"
)

type AgreementHandler struct {
	agreements *agreement.Service
	logger     *slog.Logger
}

func NewAgreementHandler(agreements *agreement.Service, logger *slog.Logger) *AgreementHandler {
	return &AgreementHandler{agreements: agreements, logger: logger}
}

// Create handles POST /api/v1/agreements
func (h *AgreementHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateAgreementRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Code: "validation_failed", Details: errs})
		return
	}

	a, err := h.agreements.Create(r.Context(), actor(r), req.Input())
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// List handles GET /api/v1/agreements
func (h *AgreementHandler) List(w http.ResponseWriter, r *http.Request) {
	brokerID, ok := queryID(w, r, "broker_id")
	if !ok {
		return
	}
	clientID, ok := queryID(w, r, "client_id")
	if !ok {
		return
	}

	list, err := h.agreements.List(r.Context(), actor(r), agreement.ListFilter{
		BrokerID: brokerID,
		ClientID: clientID,
		Status:   models.AgreementStatus(r.URL.Query().Get("status")),
	})
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	if list == nil {
		list = []models.AgencyAgreement{}
	}
	writeJSON(w, http.StatusOK, list)
}

// Get handles GET /api/v1/agreements/{id}
func (h *AgreementHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	a, err := h.agreements.Get(r.Context(), actor(r), id)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// Suspend handles POST /api/v1/agreements/{id}/suspend
func (h *AgreementHandler) Suspend(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req dto.ReasonRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	a, err := h.agreements.Suspend(r.Context(), actor(r), id, req.Reason)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// Reactivate handles POST /api/v1/agreements/{id}/reactivate
func (h *AgreementHandler) Reactivate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	a, err := h.agreements.Reactivate(r.Context(), actor(r), id)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// Terminate handles POST /api/v1/agreements/{id}/terminate. The body is
// optional.
func (h *AgreementHandler) Terminate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req dto.ReasonRequest
	if r.ContentLength > 0 && !decodeJSON(w, r, &req) {
		return
	}
	a, err := h.agreements.Terminate(r.Context(), actor(r), id, req.Reason)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}
