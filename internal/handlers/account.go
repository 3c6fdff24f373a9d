package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/threatengine/onboarding/internal/models"
	"github.com/threatengine/onboarding/internal/repo"
	"github.com/threatengine/onboarding/internal/secrets"
)

// AccountHandler handles account listing and offboarding.
type AccountHandler struct {
	Accounts  *repo.AccountRepo
	Providers *repo.ProviderRepo
	Schedules *repo.ScheduleRepo
	Vault     secrets.Gateway
	Log       *slog.Logger
}

type accountView struct {
	AccountID        string  `json:"account_id"`
	AccountName      string  `json:"account_name"`
	AccountNumber    string  `json:"account_number,omitempty"`
	ProviderType     string  `json:"provider_type"`
	Status           string  `json:"status"`
	OnboardingStatus string  `json:"onboarding_status"`
	CreatedAt        string  `json:"created_at"`
	UpdatedAt        string  `json:"updated_at,omitempty"`
	LastValidatedAt  *string `json:"last_validated_at,omitempty"`
}

func (h *AccountHandler) view(r *http.Request, a models.Account) accountView {
	v := accountView{
		AccountID:        a.ID,
		AccountName:      a.AccountName,
		AccountNumber:    a.AccountNumber,
		Status:           a.Status,
		OnboardingStatus: a.OnboardingStatus,
		CreatedAt:        a.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		UpdatedAt:        a.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
	if a.LastValidatedAt != nil {
		s := a.LastValidatedAt.UTC().Format("2006-01-02T15:04:05Z")
		v.LastValidatedAt = &s
	}
	if p, err := h.Providers.GetByID(r.Context(), a.ProviderID); err == nil && p != nil {
		v.ProviderType = p.ProviderType
	}
	return v
}

// ListAccounts returns a tenant's accounts. Query: tenant_id (required),
// provider_type, status.
func (h *AccountHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenant_id")
	if tenantID == "" {
		JSONError(w, "tenant_id is required", http.StatusBadRequest)
		return
	}
	status := r.URL.Query().Get("status")
	providerType := strings.ToLower(r.URL.Query().Get("provider_type"))

	accounts, err := h.Accounts.ListByTenant(r.Context(), tenantID, status)
	if err != nil {
		h.Log.Error("list accounts", "error", err)
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}

	views := make([]accountView, 0, len(accounts))
	for _, a := range accounts {
		v := h.view(r, a)
		if providerType != "" && v.ProviderType != providerType {
			continue
		}
		views = append(views, v)
	}
	writeJSON(w, http.StatusOK, map[string]any{"accounts": views})
}

// GetAccount returns one account with its provider type.
func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "account_id")
	account, err := h.Accounts.GetByID(r.Context(), id)
	if err != nil {
		h.Log.Error("get account", "error", err)
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	if account == nil {
		JSONError(w, "account not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, h.view(r, *account))
}

// DeleteAccount offboards an account: stored credentials go first (so a
// half-finished delete never leaves orphaned secrets), then the account row,
// then its schedules are disabled best-effort.
func (h *AccountHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "account_id")
	account, err := h.Accounts.GetByID(r.Context(), id)
	if err != nil {
		h.Log.Error("get account", "error", err)
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	if account == nil {
		JSONError(w, "account not found", http.StatusNotFound)
		return
	}

	if _, err := h.Vault.Delete(r.Context(), id); err != nil {
		h.Log.Error("delete credentials", "account_id", id, "error", err)
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}

	if err := h.Accounts.Delete(r.Context(), id); err != nil {
		h.Log.Error("delete account", "account_id", id, "error", err)
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}

	if err := h.Schedules.DisableByAccount(r.Context(), id); err != nil {
		// the scheduler's account gate stops orphaned schedules anyway
		h.Log.Warn("disable schedules for deleted account", "account_id", id, "error", err)
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted", "account_id": id})
}
