package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/threatengine/onboarding/internal/models"
	"github.com/threatengine/onboarding/internal/repo"
	"github.com/threatengine/onboarding/internal/secrets"
	"github.com/threatengine/onboarding/internal/validator"
)

// CredentialHandler manages stored credentials for onboarded accounts. It is
// the only writer of the account status field outside onboarding.
type CredentialHandler struct {
	Accounts  *repo.AccountRepo
	Providers *repo.ProviderRepo
	Vault     secrets.Gateway
	Log       *slog.Logger
}

// loadAccountWithProvider resolves the account and its provider link, writing
// the error response itself when either is missing.
func (h *CredentialHandler) loadAccountWithProvider(w http.ResponseWriter, r *http.Request) (*models.Account, *models.Provider) {
	accountID := chi.URLParam(r, "account_id")
	account, err := h.Accounts.GetByID(r.Context(), accountID)
	if err != nil {
		h.Log.Error("lookup account", "error", err)
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return nil, nil
	}
	if account == nil {
		JSONError(w, "account not found", http.StatusNotFound)
		return nil, nil
	}
	provider, err := h.Providers.GetByID(r.Context(), account.ProviderID)
	if err != nil {
		h.Log.Error("lookup provider", "error", err)
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return nil, nil
	}
	if provider == nil {
		JSONError(w, "provider not found for account", http.StatusNotFound)
		return nil, nil
	}
	return account, provider
}

// Store validates and stores credentials for an account. Body:
// {"credential_type": "...", "credentials": {...}}.
func (h *CredentialHandler) Store(w http.ResponseWriter, r *http.Request) {
	account, provider := h.loadAccountWithProvider(w, r)
	if account == nil {
		return
	}

	var input struct {
		CredentialType string            `json:"credential_type"`
		Credentials    map[string]string `json:"credentials"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		JSONError(w, "invalid json", http.StatusBadRequest)
		return
	}
	if input.CredentialType == "" || len(input.Credentials) == 0 {
		JSONError(w, "missing credential_type or credentials", http.StatusBadRequest)
		return
	}

	v := validator.For(provider.ProviderType)
	if v == nil {
		JSONError(w, "provider "+provider.ProviderType+" not supported", http.StatusNotFound)
		return
	}
	result := v.Validate(input.CredentialType, input.Credentials)
	if !result.Success {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  result.Message,
			"errors": result.Errors,
		})
		return
	}

	if err := h.Vault.Store(r.Context(), account.ID, input.CredentialType, input.Credentials, nil); err != nil {
		h.Log.Error("store credentials", "account_id", account.ID, "error", err)
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}

	updates := map[string]any{"last_validated_at": time.Now().UTC()}
	if result.AccountNumber != "" {
		updates["account_number"] = result.AccountNumber
	}
	if err := h.Accounts.Update(r.Context(), account.ID, updates); err != nil {
		h.Log.Error("update account after credential store", "account_id", account.ID, "error", err)
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "stored", "account_id": account.ID})
}

// Revalidate re-runs validation against the stored credentials and moves the
// account between active and error accordingly.
func (h *CredentialHandler) Revalidate(w http.ResponseWriter, r *http.Request) {
	account, provider := h.loadAccountWithProvider(w, r)
	if account == nil {
		return
	}

	creds, err := h.Vault.Retrieve(r.Context(), account.ID)
	if err != nil {
		if errors.Is(err, secrets.ErrNotFound) || errors.Is(err, secrets.ErrExpired) {
			JSONError(w, err.Error(), http.StatusNotFound)
			return
		}
		h.Log.Error("retrieve credentials", "account_id", account.ID, "error", err)
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}

	v := validator.For(provider.ProviderType)
	if v == nil {
		JSONError(w, "provider "+provider.ProviderType+" not supported", http.StatusNotFound)
		return
	}
	result := v.Validate(creds.Type, creds.Fields)

	updates := map[string]any{"status": models.AccountError}
	if result.Success {
		updates = map[string]any{
			"status":            models.AccountActive,
			"last_validated_at": time.Now().UTC(),
		}
	}
	if err := h.Accounts.Update(r.Context(), account.ID, updates); err != nil {
		h.Log.Error("update account after revalidation", "account_id", account.ID, "error", err)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": result.Success,
		"message": result.Message,
		"errors":  result.Errors,
	})
}

// Delete removes stored credentials and moves the account back to pending.
func (h *CredentialHandler) Delete(w http.ResponseWriter, r *http.Request) {
	account, _ := h.loadAccountWithProvider(w, r)
	if account == nil {
		return
	}

	deleted, err := h.Vault.Delete(r.Context(), account.ID)
	if err != nil {
		h.Log.Error("delete credentials", "account_id", account.ID, "error", err)
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	if !deleted {
		JSONError(w, "no credentials found to delete", http.StatusNotFound)
		return
	}

	if err := h.Accounts.Update(r.Context(), account.ID, map[string]any{"status": models.AccountPending}); err != nil {
		h.Log.Error("reset account status", "account_id", account.ID, "error", err)
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted", "account_id": account.ID})
}
