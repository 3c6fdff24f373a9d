package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/threatengine/onboarding/internal/repo"
	"github.com/threatengine/onboarding/internal/secrets"
)

func accountHandlerFor(t *testing.T, vault secrets.Gateway) (*AccountHandler, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	h := &AccountHandler{
		Accounts:  repo.NewAccountRepo(db),
		Providers: repo.NewProviderRepo(db),
		Schedules: repo.NewScheduleRepo(db),
		Vault:     vault,
		Log:       testLogger(),
	}
	return h, mock, func() { db.Close() }
}

func TestAccountHandler_ListAccounts_RequiresTenant(t *testing.T) {
	h, _, closeDB := accountHandlerFor(t, newFakeVault())
	defer closeDB()

	req := httptest.NewRequest("GET", "/api/v1/onboarding/accounts", nil)
	rr := httptest.NewRecorder()
	h.ListAccounts(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("ListAccounts status: got %d, want 400", rr.Code)
	}
}

func TestAccountHandler_ListAccounts_FiltersByProviderType(t *testing.T) {
	h, mock, closeDB := accountHandlerFor(t, newFakeVault())
	defer closeDB()

	now := time.Now()
	mock.ExpectQuery(`SELECT account_id, provider_id`).
		WithArgs("ten-1").
		WillReturnRows(sqlmock.NewRows(accountTestCols).
			AddRow("acct-1", "prov-1", "ten-1", "prod-aws", "123456789012",
				"active", "completed", nil, nil, now, now).
			AddRow("acct-2", "prov-2", "ten-1", "prod-gcp", "my-project",
				"active", "completed", nil, nil, now, now))
	mock.ExpectQuery(`SELECT provider_id, tenant_id, provider_type`).
		WithArgs("prov-1").
		WillReturnRows(sqlmock.NewRows(providerTestCols).
			AddRow("prov-1", "ten-1", "aws", "active", now, now))
	mock.ExpectQuery(`SELECT provider_id, tenant_id, provider_type`).
		WithArgs("prov-2").
		WillReturnRows(sqlmock.NewRows(providerTestCols).
			AddRow("prov-2", "ten-1", "gcp", "active", now, now))

	req := httptest.NewRequest("GET", "/api/v1/onboarding/accounts?tenant_id=ten-1&provider_type=gcp", nil)
	rr := httptest.NewRecorder()
	h.ListAccounts(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("ListAccounts status: got %d, want 200", rr.Code)
	}
	var out struct {
		Accounts []struct {
			AccountID    string `json:"account_id"`
			ProviderType string `json:"provider_type"`
		} `json:"accounts"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(out.Accounts) != 1 || out.Accounts[0].AccountID != "acct-2" {
		t.Errorf("unexpected accounts: %+v", out.Accounts)
	}
}

func TestAccountHandler_GetAccount_NotFound(t *testing.T) {
	h, mock, closeDB := accountHandlerFor(t, newFakeVault())
	defer closeDB()

	mock.ExpectQuery(`SELECT account_id, provider_id`).
		WithArgs("acct-missing").
		WillReturnRows(sqlmock.NewRows(accountTestCols))

	req := requestWithChiURLParams("GET", "/api/v1/onboarding/accounts/acct-missing", nil,
		map[string]string{"account_id": "acct-missing"})
	rr := httptest.NewRecorder()
	h.GetAccount(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("GetAccount status: got %d, want 404", rr.Code)
	}
}

func TestAccountHandler_DeleteAccount(t *testing.T) {
	vault := newFakeVault()
	vault.stored["acct-1"] = &secrets.Credentials{Type: "aws_iam_role"}
	h, mock, closeDB := accountHandlerFor(t, vault)
	defer closeDB()

	now := time.Now()
	mock.ExpectQuery(`SELECT account_id, provider_id`).
		WithArgs("acct-1").
		WillReturnRows(sqlmock.NewRows(accountTestCols).
			AddRow("acct-1", "prov-1", "ten-1", "prod", "123456789012",
				"active", "completed", nil, nil, now, now))
	mock.ExpectExec(`DELETE FROM accounts WHERE account_id`).
		WithArgs("acct-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE schedules SET enabled = false`).
		WithArgs("acct-1").
		WillReturnResult(sqlmock.NewResult(0, 2))

	req := requestWithChiURLParams("DELETE", "/api/v1/onboarding/accounts/acct-1", nil,
		map[string]string{"account_id": "acct-1"})
	rr := httptest.NewRecorder()
	h.DeleteAccount(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("DeleteAccount status: got %d, want 200 (body %s)", rr.Code, rr.Body.String())
	}
	if len(vault.stored) != 0 {
		t.Errorf("credentials must be removed before the account row")
	}
	if len(vault.calls) == 0 || vault.calls[0] != "delete" {
		t.Errorf("vault delete should happen first, calls: %v", vault.calls)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestAccountHandler_DeleteAccount_NotFound(t *testing.T) {
	h, mock, closeDB := accountHandlerFor(t, newFakeVault())
	defer closeDB()

	mock.ExpectQuery(`SELECT account_id, provider_id`).
		WithArgs("acct-missing").
		WillReturnRows(sqlmock.NewRows(accountTestCols))

	req := requestWithChiURLParams("DELETE", "/api/v1/onboarding/accounts/acct-missing", nil,
		map[string]string{"account_id": "acct-missing"})
	rr := httptest.NewRecorder()
	h.DeleteAccount(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("DeleteAccount status: got %d, want 404", rr.Code)
	}
}
