package handlers

import (
	"log/slog"
	"net/http"

	"github.com/hugh/brokerdesk/internal/api/dto"
	"github.com/hugh/brokerdesk/internal/customs"
	"github.com/hugh/brokerdesk/internal/database/models"
)

type TransactionHandler struct {
	transactions *customs.Service
	logger       *slog.Logger
}

func NewTransactionHandler(transactions *customs.Service, logger *slog.Logger) *TransactionHandler {
	return &TransactionHandler{transactions: transactions, logger: logger}
}

// Create handles POST /api/v1/transactions
func (h *TransactionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateTransactionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	txn, err := h.transactions.Create(r.Context(), actor(r), req.Input())
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, txn)
}

// List handles GET /api/v1/transactions
func (h *TransactionHandler) List(w http.ResponseWriter, r *http.Request) {
	pagination := dto.PaginationFromQuery(r.URL.Query())

	clientID, ok := queryID(w, r, "client_id")
	if !ok {
		return
	}

	txns, total, err := h.transactions.List(r.Context(), actor(r), customs.ListFilter{
		ClientID: clientID,
		Status:   models.TransactionStatus(r.URL.Query().Get("status")),
		Limit:    pagination.PerPage,
		Offset:   pagination.Offset(),
	})
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	if txns == nil {
		txns = []models.CustomsTransaction{}
	}

	writeJSON(w, http.StatusOK, pagination.Wrap(txns, total))
}

// Get handles GET /api/v1/transactions/{id}
func (h *TransactionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	txn, err := h.transactions.Get(r.Context(), actor(r), id)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, txn)
}

// Update handles PUT /api/v1/transactions/{id}
func (h *TransactionHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req dto.UpdateTransactionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	txn, err := h.transactions.Update(r.Context(), actor(r), id, req.Input())
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, txn)
}

// ChangeStatus handles PUT /api/v1/transactions/{id}/status
func (h *TransactionHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req dto.ChangeStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	txn, err := h.transactions.ChangeStatus(r.Context(), actor(r), id, models.TransactionStatus(req.Status), req.Reason)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, txn)
}

// Complete handles POST /api/v1/transactions/{id}/complete
func (h *TransactionHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	txn, err := h.transactions.Complete(r.Context(), actor(r), id)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, txn)
}

// Cancel handles POST /api/v1/transactions/{id}/cancel
func (h *TransactionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req dto.ReasonRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	txn, err := h.transactions.Cancel(r.Context(), actor(r), id, req.Reason)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, txn)
}

// Delete handles DELETE /api/v1/transactions/{id}
func (h *TransactionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.transactions.Delete(r.Context(), actor(r), id); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
