package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/threatengine/onboarding/internal/repo"
	"github.com/threatengine/onboarding/internal/secrets"
)

// fakeVault implements secrets.Gateway in memory and records call order.
type fakeVault struct {
	stored      map[string]*secrets.Credentials
	retrieveErr error
	calls       []string
}

func newFakeVault() *fakeVault {
	return &fakeVault{stored: make(map[string]*secrets.Credentials)}
}

func (v *fakeVault) Store(ctx context.Context, accountID, credentialType string, fields map[string]string, expiresAt *time.Time) error {
	v.calls = append(v.calls, "store")
	v.stored[accountID] = &secrets.Credentials{Type: credentialType, Fields: fields}
	return nil
}

func (v *fakeVault) Retrieve(ctx context.Context, accountID string) (*secrets.Credentials, error) {
	v.calls = append(v.calls, "retrieve")
	if v.retrieveErr != nil {
		return nil, v.retrieveErr
	}
	creds, ok := v.stored[accountID]
	if !ok {
		return nil, secrets.ErrNotFound
	}
	return creds, nil
}

func (v *fakeVault) Delete(ctx context.Context, accountID string) (bool, error) {
	v.calls = append(v.calls, "delete")
	_, ok := v.stored[accountID]
	delete(v.stored, accountID)
	return ok, nil
}

var accountTestCols = []string{
	"account_id", "provider_id", "tenant_id", "account_name", "account_number",
	"status", "onboarding_status", "onboarding_id", "last_validated_at", "created_at", "updated_at",
}

var providerTestCols = []string{"provider_id", "tenant_id", "provider_type", "status", "created_at", "updated_at"}

func expectAccountWithProvider(mock sqlmock.Sqlmock, accountID, providerType string) {
	now := time.Now()
	mock.ExpectQuery(`SELECT account_id, provider_id`).
		WithArgs(accountID).
		WillReturnRows(sqlmock.NewRows(accountTestCols).
			AddRow(accountID, "prov-1", "ten-1", "prod", "123456789012",
				"active", "completed", nil, nil, now, now))
	mock.ExpectQuery(`SELECT provider_id, tenant_id, provider_type`).
		WithArgs("prov-1").
		WillReturnRows(sqlmock.NewRows(providerTestCols).
			AddRow("prov-1", "ten-1", providerType, "active", now, now))
}

func credentialHandlerFor(t *testing.T, vault secrets.Gateway) (*CredentialHandler, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	h := &CredentialHandler{
		Accounts:  repo.NewAccountRepo(db),
		Providers: repo.NewProviderRepo(db),
		Vault:     vault,
		Log:       testLogger(),
	}
	return h, mock, func() { db.Close() }
}

func TestCredentialHandler_Store(t *testing.T) {
	vault := newFakeVault()
	h, mock, closeDB := credentialHandlerFor(t, vault)
	defer closeDB()

	expectAccountWithProvider(mock, "acct-1", "azure")
	mock.ExpectExec(`UPDATE accounts SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	body, _ := json.Marshal(map[string]any{
		"credential_type": "azure_service_principal",
		"credentials": map[string]string{
			"client_id":       "cid",
			"client_secret":   "secret",
			"tenant_id":       "tid",
			"subscription_id": "sub-1",
		},
	})
	req := requestWithChiURLParams("POST", "/api/v1/accounts/acct-1/credentials", body,
		map[string]string{"account_id": "acct-1"})
	rr := httptest.NewRecorder()
	h.Store(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Store status: got %d, want 200 (body %s)", rr.Code, rr.Body.String())
	}
	creds := vault.stored["acct-1"]
	if creds == nil || creds.Type != "azure_service_principal" {
		t.Errorf("credentials not stored: %+v", creds)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestCredentialHandler_Store_InvalidCredentials(t *testing.T) {
	vault := newFakeVault()
	h, mock, closeDB := credentialHandlerFor(t, vault)
	defer closeDB()

	expectAccountWithProvider(mock, "acct-1", "azure")

	body, _ := json.Marshal(map[string]any{
		"credential_type": "azure_service_principal",
		"credentials":     map[string]string{"client_id": "cid"},
	})
	req := requestWithChiURLParams("POST", "/api/v1/accounts/acct-1/credentials", body,
		map[string]string{"account_id": "acct-1"})
	rr := httptest.NewRecorder()
	h.Store(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Store status: got %d, want 400", rr.Code)
	}
	if len(vault.stored) != 0 {
		t.Errorf("rejected credentials must not be stored")
	}
}

func TestCredentialHandler_Delete(t *testing.T) {
	vault := newFakeVault()
	vault.stored["acct-1"] = &secrets.Credentials{Type: "azure_service_principal"}
	h, mock, closeDB := credentialHandlerFor(t, vault)
	defer closeDB()

	expectAccountWithProvider(mock, "acct-1", "azure")
	mock.ExpectExec(`UPDATE accounts SET`).
		WithArgs("acct-1", "pending").
		WillReturnResult(sqlmock.NewResult(0, 1))

	req := requestWithChiURLParams("DELETE", "/api/v1/accounts/acct-1/credentials", nil,
		map[string]string{"account_id": "acct-1"})
	rr := httptest.NewRecorder()
	h.Delete(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Delete status: got %d, want 200", rr.Code)
	}
	if len(vault.stored) != 0 {
		t.Errorf("credentials should be gone")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestCredentialHandler_Delete_NoneStored(t *testing.T) {
	vault := newFakeVault()
	h, mock, closeDB := credentialHandlerFor(t, vault)
	defer closeDB()

	expectAccountWithProvider(mock, "acct-1", "azure")

	req := requestWithChiURLParams("DELETE", "/api/v1/accounts/acct-1/credentials", nil,
		map[string]string{"account_id": "acct-1"})
	rr := httptest.NewRecorder()
	h.Delete(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("Delete status: got %d, want 404", rr.Code)
	}
}

func TestCredentialHandler_Revalidate_NoCredentials(t *testing.T) {
	vault := newFakeVault()
	h, mock, closeDB := credentialHandlerFor(t, vault)
	defer closeDB()

	expectAccountWithProvider(mock, "acct-1", "azure")

	req := requestWithChiURLParams("POST", "/api/v1/accounts/acct-1/credentials/validate", nil,
		map[string]string{"account_id": "acct-1"})
	rr := httptest.NewRecorder()
	h.Revalidate(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("Revalidate status: got %d, want 404", rr.Code)
	}
}

func TestCredentialHandler_Revalidate_MovesAccountToError(t *testing.T) {
	vault := newFakeVault()
	// stored credentials that no longer pass validation
	vault.stored["acct-1"] = &secrets.Credentials{
		Type:   "azure_service_principal",
		Fields: map[string]string{"client_id": "cid"},
	}
	h, mock, closeDB := credentialHandlerFor(t, vault)
	defer closeDB()

	expectAccountWithProvider(mock, "acct-1", "azure")
	mock.ExpectExec(`UPDATE accounts SET`).
		WithArgs("acct-1", "error").
		WillReturnResult(sqlmock.NewResult(0, 1))

	req := requestWithChiURLParams("POST", "/api/v1/accounts/acct-1/credentials/validate", nil,
		map[string]string{"account_id": "acct-1"})
	rr := httptest.NewRecorder()
	h.Revalidate(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Revalidate status: got %d, want 200", rr.Code)
	}
	var out struct {
		Success bool `json:"success"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.Success {
		t.Errorf("expected validation failure")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}
