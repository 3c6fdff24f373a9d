package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/threatengine/onboarding/internal/models"
	"github.com/threatengine/onboarding/internal/repo"
	"github.com/threatengine/onboarding/internal/secrets"
	"github.com/threatengine/onboarding/internal/validator"
)

// OnboardingHandler walks a cloud account through onboarding: init creates the
// pending account, validate checks the credentials and activates it.
type OnboardingHandler struct {
	Tenants   *repo.TenantRepo
	Providers *repo.ProviderRepo
	Accounts  *repo.AccountRepo
	Vault     secrets.Gateway
	Log       *slog.Logger
}

// authMethod describes one way to onboard a provider's account.
type authMethod struct {
	Method      string   `json:"method"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Requires    []string `json:"requires"`
}

var authMethods = map[string][]authMethod{
	models.ProviderAWS: {
		{Method: "iam_role", Name: "IAM Role (Recommended)",
			Description: "Secure cross-account role assumption",
			Requires:    []string{"role_arn", "external_id", "account_number"}},
		{Method: "access_key", Name: "Access Key",
			Description: "IAM user access key and secret",
			Requires:    []string{"access_key_id", "secret_access_key"}},
	},
	models.ProviderAzure: {
		{Method: "service_principal", Name: "Service Principal",
			Description: "Azure AD service principal with client secret",
			Requires:    []string{"client_id", "client_secret", "tenant_id", "subscription_id"}},
	},
	models.ProviderGCP: {
		{Method: "service_account", Name: "Service Account JSON",
			Description: "Service account key file (JSON)",
			Requires:    []string{"service_account_json"}},
	},
	models.ProviderAliCloud: {
		{Method: "access_key", Name: "Access Key",
			Description: "AliCloud AccessKey ID and Secret",
			Requires:    []string{"access_key_id", "access_key_secret"}},
	},
	models.ProviderOCI: {
		{Method: "user_principal", Name: "User Principal",
			Description: "OCI user OCID with API key",
			Requires:    []string{"user_ocid", "tenancy_ocid", "fingerprint", "private_key", "region"}},
	},
	models.ProviderIBM: {
		{Method: "api_key", Name: "API Key",
			Description: "IBM Cloud API key",
			Requires:    []string{"api_key"}},
	},
}

// credentialTypeFor maps provider + auth method to the stored credential type.
var credentialTypeFor = map[string]map[string]string{
	models.ProviderAWS:      {"iam_role": "aws_iam_role", "access_key": "aws_access_key"},
	models.ProviderAzure:    {"service_principal": "azure_service_principal"},
	models.ProviderGCP:      {"service_account": "gcp_service_account"},
	models.ProviderAliCloud: {"access_key": "alicloud_access_key"},
	models.ProviderOCI:      {"user_principal": "oci_user_principal"},
	models.ProviderIBM:      {"api_key": "ibm_api_key"},
}

// Methods returns the available auth methods for a provider.
func (h *OnboardingHandler) Methods(w http.ResponseWriter, r *http.Request) {
	provider := strings.ToLower(chi.URLParam(r, "provider"))
	methods, ok := authMethods[provider]
	if !ok {
		JSONError(w, "provider "+provider+" not supported", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"provider": provider, "methods": methods})
}

// Init starts onboarding: it ensures the tenant's provider link exists and
// creates a pending account. Body: {"tenant_id": "...", "account_name": "...", "auth_method": "..."}.
func (h *OnboardingHandler) Init(w http.ResponseWriter, r *http.Request) {
	provider := strings.ToLower(chi.URLParam(r, "provider"))
	if !models.KnownProvider(provider) {
		JSONError(w, "provider "+provider+" not supported", http.StatusNotFound)
		return
	}

	var input struct {
		TenantID    string `json:"tenant_id"`
		AccountName string `json:"account_name"`
		AuthMethod  string `json:"auth_method"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		JSONError(w, "invalid json", http.StatusBadRequest)
		return
	}
	fields := make(map[string]string)
	if input.TenantID == "" {
		fields["tenant_id"] = "required"
	}
	if input.AccountName == "" {
		fields["account_name"] = "required"
	}
	if len(fields) > 0 {
		JSONValidationError(w, "validation failed", fields, http.StatusBadRequest)
		return
	}
	if input.AuthMethod == "" {
		input.AuthMethod = authMethods[provider][0].Method
	}
	if _, ok := credentialTypeFor[provider][input.AuthMethod]; !ok {
		JSONError(w, "invalid auth method "+input.AuthMethod+" for provider "+provider, http.StatusBadRequest)
		return
	}

	tenant, err := h.Tenants.GetByID(r.Context(), input.TenantID)
	if err != nil {
		h.Log.Error("lookup tenant", "error", err)
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	if tenant == nil {
		JSONError(w, "tenant not found", http.StatusNotFound)
		return
	}

	providerObj, err := h.Providers.GetByTenantAndType(r.Context(), input.TenantID, provider)
	if err != nil {
		h.Log.Error("lookup provider", "error", err)
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	if providerObj == nil {
		providerObj, err = h.Providers.Create(r.Context(), input.TenantID, provider)
		if err != nil {
			h.Log.Error("create provider", "error", err)
			JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
			return
		}
	}

	account, err := h.Accounts.Create(r.Context(), providerObj.ID, input.TenantID, input.AccountName)
	if err != nil {
		h.Log.Error("create account", "error", err)
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}

	onboardingID := uuid.NewString()
	if err := h.Accounts.Update(r.Context(), account.ID, map[string]any{"onboarding_id": onboardingID}); err != nil {
		h.Log.Error("stamp onboarding id", "account_id", account.ID, "error", err)
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}

	out := map[string]any{
		"onboarding_id": onboardingID,
		"account_id":    account.ID,
		"provider":      provider,
		"auth_method":   input.AuthMethod,
		"account_name":  input.AccountName,
	}
	// IAM role onboarding needs an external id for the trust policy
	if provider == models.ProviderAWS && input.AuthMethod == "iam_role" {
		out["external_id"] = generateExternalID()
	}
	writeJSON(w, http.StatusOK, out)
}

// Validate checks submitted credentials and activates the account. Body:
// {"account_id": "...", "auth_method": "...", "credentials": {...}}.
func (h *OnboardingHandler) Validate(w http.ResponseWriter, r *http.Request) {
	provider := strings.ToLower(chi.URLParam(r, "provider"))

	var input struct {
		AccountID   string            `json:"account_id"`
		AuthMethod  string            `json:"auth_method"`
		Credentials map[string]string `json:"credentials"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		JSONError(w, "invalid json", http.StatusBadRequest)
		return
	}
	if input.AccountID == "" || input.AuthMethod == "" || len(input.Credentials) == 0 {
		JSONError(w, "missing required fields: account_id, auth_method, credentials", http.StatusBadRequest)
		return
	}

	credentialType, ok := credentialTypeFor[provider][input.AuthMethod]
	if !ok {
		JSONError(w, "invalid auth method "+input.AuthMethod+" for provider "+provider, http.StatusBadRequest)
		return
	}

	account, err := h.Accounts.GetByID(r.Context(), input.AccountID)
	if err != nil {
		h.Log.Error("lookup account", "error", err)
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	if account == nil {
		JSONError(w, "account not found", http.StatusNotFound)
		return
	}

	v := validator.For(provider)
	if v == nil {
		JSONError(w, "provider "+provider+" not supported", http.StatusNotFound)
		return
	}
	result := v.Validate(credentialType, input.Credentials)
	if !result.Success {
		if err := h.Accounts.Update(r.Context(), account.ID, map[string]any{
			"status":            models.AccountError,
			"onboarding_status": models.OnboardingFailed,
		}); err != nil {
			h.Log.Error("mark account failed", "account_id", account.ID, "error", err)
		}
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  result.Message,
			"errors": result.Errors,
		})
		return
	}

	if err := h.Vault.Store(r.Context(), account.ID, credentialType, input.Credentials, nil); err != nil {
		h.Log.Error("store credentials", "account_id", account.ID, "error", err)
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}

	if err := h.Accounts.Update(r.Context(), account.ID, map[string]any{
		"status":            models.AccountActive,
		"onboarding_status": models.OnboardingCompleted,
		"account_number":    result.AccountNumber,
		"last_validated_at": time.Now().UTC(),
	}); err != nil {
		h.Log.Error("activate account", "account_id", account.ID, "error", err)
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"message":        "Account successfully onboarded and validated",
		"account_id":     account.ID,
		"account_number": result.AccountNumber,
	})
}

// generateExternalID returns a random hex token for AWS role trust policies.
func generateExternalID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}
