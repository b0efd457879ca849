package handlers

import (
	"log/slog"
	"net/http"

	"github.com/hugh/brokerdesk/internal/api/dto"
	"github.com/hugh/brokerdesk/internal/company"
	"github.com/hugh/brokerdesk/internal/database/models"
	"github.com/hugh/brokerdesk/internal/tenancy"
)

type CompanyHandler struct {
	companies *company.Service
	logger    *slog.Logger
}

func NewCompanyHandler(companies *company.Service, logger *slog.Logger) *CompanyHandler {
	return &CompanyHandler{companies: companies, logger: logger}
}

// Create handles POST /api/v1/companies. The type field selects broker or
// client creation.
func (h *CompanyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateCompanyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var (
		c   *models.Company
		err error
	)
	switch tenancy.CompanyKind(req.Type) {
	case tenancy.KindBroker:
		c, err = h.companies.CreateBroker(r.Context(), actor(r), req.Input())
	case tenancy.KindClient:
		c, err = h.companies.CreateClient(r.Context(), actor(r), req.Input())
	default:
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Validation failed",
			Code:    "validation_failed",
			Details: map[string]string{"type": "must be CUSTOMS_BROKER or CLIENT"},
		})
		return
	}
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// List handles GET /api/v1/companies
func (h *CompanyHandler) List(w http.ResponseWriter, r *http.Request) {
	parentID, ok := queryID(w, r, "parent_broker_id")
	if !ok {
		return
	}
	companies, err := h.companies.List(r.Context(), actor(r), company.ListFilter{
		Type:            tenancy.CompanyKind(r.URL.Query().Get("type")),
		ParentID:        parentID,
		IncludeInactive: queryBool(r, "include_inactive"),
	})
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	if companies == nil {
		companies = []models.Company{}
	}
	writeJSON(w, http.StatusOK, companies)
}

// Get handles GET /api/v1/companies/{id}
func (h *CompanyHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	c, err := h.companies.Get(r.Context(), actor(r), id)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Update handles PUT /api/v1/companies/{id}
func (h *CompanyHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req dto.UpdateCompanyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := h.companies.Update(r.Context(), actor(r), id, req.Input())
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Delete handles DELETE /api/v1/companies/{id} (deactivation)
func (h *CompanyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.companies.Deactivate(r.Context(), actor(r), id); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TaxID handles GET /api/v1/companies/{id}/tax-id
func (h *CompanyHandler) TaxID(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	taxID, err := h.companies.RevealTaxID(r.Context(), actor(r), id)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.TaxIDResponse{TaxID: taxID})
}
