package handlers

import (
	"log/slog"
	"net/http"

	"github.com/hugh/brokerdesk/internal/api/dto"
	"github.com/hugh/brokerdesk/internal/tenancy"
	"github.com/hugh/brokerdesk/internal/user"
)

type UserHandler struct {
	users  *user.Service
	logger *slog.Logger
}

func NewUserHandler(users *user.Service, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

// Create handles POST /api/v1/users
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	u, err := h.users.Create(r.Context(), actor(r), req.Input())
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.NewUserDTO(u))
}

// List handles GET /api/v1/users
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	companyID, ok := queryID(w, r, "company_id")
	if !ok {
		return
	}
	users, err := h.users.List(r.Context(), actor(r), user.ListFilter{
		CompanyID:       companyID,
		Role:            tenancy.Role(r.URL.Query().Get("role")),
		IncludeInactive: queryBool(r, "include_inactive"),
	})
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	out := make([]dto.UserDTO, 0, len(users))
	for i := range users {
		out = append(out, dto.NewUserDTO(&users[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// Get handles GET /api/v1/users/{id}
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	u, err := h.users.Get(r.Context(), actor(r), id)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewUserDTO(u))
}

// Update handles PUT /api/v1/users/{id}
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req dto.EditUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	u, err := h.users.Edit(r.Context(), actor(r), id, req.Input())
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewUserDTO(u))
}

// Delete handles DELETE /api/v1/users/{id} (deactivation)
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.users.Deactivate(r.Context(), actor(r), id); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
