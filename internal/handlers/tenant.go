package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/threatengine/onboarding/internal/repo"
)

// TenantHandler handles tenant CRUD.
type TenantHandler struct {
	Repo *repo.TenantRepo
	Log  *slog.Logger
}

// CreateTenant creates a tenant. Body: {"name": "..."}.
func (h *TenantHandler) CreateTenant(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		JSONError(w, "invalid json", http.StatusBadRequest)
		return
	}
	if input.Name == "" {
		JSONValidationError(w, "validation failed", map[string]string{"name": "required"}, http.StatusBadRequest)
		return
	}

	existing, err := h.Repo.GetByName(r.Context(), input.Name)
	if err != nil {
		h.Log.Error("lookup tenant", "error", err)
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	if existing != nil {
		JSONError(w, "tenant name already in use", http.StatusConflict)
		return
	}

	tenant, err := h.Repo.Create(r.Context(), input.Name, input.Description)
	if err != nil {
		h.Log.Error("create tenant", "error", err)
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, tenant)
}

// ListTenants returns all tenants.
func (h *TenantHandler) ListTenants(w http.ResponseWriter, r *http.Request) {
	list, err := h.Repo.List(r.Context())
	if err != nil {
		h.Log.Error("list tenants", "error", err)
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tenants": list})
}

// GetTenant returns one tenant by id.
func (h *TenantHandler) GetTenant(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	tenant, err := h.Repo.GetByID(r.Context(), id)
	if err != nil {
		h.Log.Error("get tenant", "error", err)
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	if tenant == nil {
		JSONError(w, "tenant not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, tenant)
}
