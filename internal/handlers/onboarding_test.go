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

func onboardingHandlerFor(t *testing.T, vault secrets.Gateway) (*OnboardingHandler, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	h := &OnboardingHandler{
		Tenants:   repo.NewTenantRepo(db),
		Providers: repo.NewProviderRepo(db),
		Accounts:  repo.NewAccountRepo(db),
		Vault:     vault,
		Log:       testLogger(),
	}
	return h, mock, func() { db.Close() }
}

func TestOnboardingHandler_Methods(t *testing.T) {
	h, _, closeDB := onboardingHandlerFor(t, newFakeVault())
	defer closeDB()

	req := requestWithChiURLParams("GET", "/api/v1/onboarding/aws/methods", nil,
		map[string]string{"provider": "aws"})
	rr := httptest.NewRecorder()
	h.Methods(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Methods status: got %d, want 200", rr.Code)
	}
	var out struct {
		Provider string `json:"provider"`
		Methods  []struct {
			Method   string   `json:"method"`
			Requires []string `json:"requires"`
		} `json:"methods"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.Provider != "aws" || len(out.Methods) != 2 {
		t.Errorf("unexpected methods: %+v", out)
	}
	if out.Methods[0].Method != "iam_role" {
		t.Errorf("iam_role should be the first (recommended) method, got %q", out.Methods[0].Method)
	}
}

func TestOnboardingHandler_Methods_UnknownProvider(t *testing.T) {
	h, _, closeDB := onboardingHandlerFor(t, newFakeVault())
	defer closeDB()

	req := requestWithChiURLParams("GET", "/api/v1/onboarding/digitalocean/methods", nil,
		map[string]string{"provider": "digitalocean"})
	rr := httptest.NewRecorder()
	h.Methods(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("Methods status: got %d, want 404", rr.Code)
	}
}

func TestOnboardingHandler_Init(t *testing.T) {
	h, mock, closeDB := onboardingHandlerFor(t, newFakeVault())
	defer closeDB()

	now := time.Now()
	mock.ExpectQuery(`SELECT tenant_id, tenant_name`).
		WithArgs("ten-1").
		WillReturnRows(sqlmock.NewRows(tenantTestCols).
			AddRow("ten-1", "acme", "", "active", now, now))
	// no provider link yet: one gets created
	mock.ExpectQuery(`SELECT provider_id, tenant_id, provider_type`).
		WithArgs("ten-1", "aws").
		WillReturnRows(sqlmock.NewRows(providerTestCols))
	mock.ExpectQuery(`INSERT INTO providers`).
		WithArgs(sqlmock.AnyArg(), "ten-1", "aws").
		WillReturnRows(sqlmock.NewRows(providerTestCols).
			AddRow("prov-1", "ten-1", "aws", "active", now, now))
	mock.ExpectQuery(`INSERT INTO accounts`).
		WithArgs(sqlmock.AnyArg(), "prov-1", "ten-1", "prod").
		WillReturnRows(sqlmock.NewRows(accountTestCols).
			AddRow("acct-1", "prov-1", "ten-1", "prod", nil,
				"pending", "pending", nil, nil, now, now))
	mock.ExpectExec(`UPDATE accounts SET`).
		WithArgs("acct-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	body, _ := json.Marshal(map[string]string{
		"tenant_id":    "ten-1",
		"account_name": "prod",
		"auth_method":  "iam_role",
	})
	req := requestWithChiURLParams("POST", "/api/v1/onboarding/aws/init", body,
		map[string]string{"provider": "aws"})
	rr := httptest.NewRecorder()
	h.Init(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Init status: got %d, want 200 (body %s)", rr.Code, rr.Body.String())
	}
	var out struct {
		OnboardingID string `json:"onboarding_id"`
		AccountID    string `json:"account_id"`
		ExternalID   string `json:"external_id"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.AccountID != "acct-1" || out.OnboardingID == "" {
		t.Errorf("unexpected response: %+v", out)
	}
	if out.ExternalID == "" {
		t.Errorf("iam_role onboarding must issue an external_id")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestOnboardingHandler_Init_TenantNotFound(t *testing.T) {
	h, mock, closeDB := onboardingHandlerFor(t, newFakeVault())
	defer closeDB()

	mock.ExpectQuery(`SELECT tenant_id, tenant_name`).
		WithArgs("ten-missing").
		WillReturnRows(sqlmock.NewRows(tenantTestCols))

	body, _ := json.Marshal(map[string]string{"tenant_id": "ten-missing", "account_name": "prod"})
	req := requestWithChiURLParams("POST", "/api/v1/onboarding/aws/init", body,
		map[string]string{"provider": "aws"})
	rr := httptest.NewRecorder()
	h.Init(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("Init status: got %d, want 404", rr.Code)
	}
}

func TestOnboardingHandler_Init_InvalidAuthMethod(t *testing.T) {
	h, _, closeDB := onboardingHandlerFor(t, newFakeVault())
	defer closeDB()

	body, _ := json.Marshal(map[string]string{
		"tenant_id":    "ten-1",
		"account_name": "prod",
		"auth_method":  "iam_role",
	})
	req := requestWithChiURLParams("POST", "/api/v1/onboarding/gcp/init", body,
		map[string]string{"provider": "gcp"})
	rr := httptest.NewRecorder()
	h.Init(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Init status: got %d, want 400", rr.Code)
	}
}

func TestOnboardingHandler_Validate_ActivatesAccount(t *testing.T) {
	vault := newFakeVault()
	h, mock, closeDB := onboardingHandlerFor(t, vault)
	defer closeDB()

	now := time.Now()
	mock.ExpectQuery(`SELECT account_id, provider_id`).
		WithArgs("acct-1").
		WillReturnRows(sqlmock.NewRows(accountTestCols).
			AddRow("acct-1", "prov-1", "ten-1", "prod", nil,
				"pending", "pending", "onb-1", nil, now, now))
	mock.ExpectExec(`UPDATE accounts SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	body, _ := json.Marshal(map[string]any{
		"account_id":  "acct-1",
		"auth_method": "iam_role",
		"credentials": map[string]string{
			"role_arn":       "arn:aws:iam::123456789012:role/compliance",
			"external_id":    "ext-1",
			"account_number": "123456789012",
		},
	})
	req := requestWithChiURLParams("POST", "/api/v1/onboarding/aws/validate", body,
		map[string]string{"provider": "aws"})
	rr := httptest.NewRecorder()
	h.Validate(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Validate status: got %d, want 200 (body %s)", rr.Code, rr.Body.String())
	}
	var out struct {
		Success       bool   `json:"success"`
		AccountNumber string `json:"account_number"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !out.Success || out.AccountNumber != "123456789012" {
		t.Errorf("unexpected response: %+v", out)
	}
	if creds := vault.stored["acct-1"]; creds == nil || creds.Type != "aws_iam_role" {
		t.Errorf("credentials not stored: %+v", creds)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestOnboardingHandler_Validate_RejectsBadCredentials(t *testing.T) {
	vault := newFakeVault()
	h, mock, closeDB := onboardingHandlerFor(t, vault)
	defer closeDB()

	now := time.Now()
	mock.ExpectQuery(`SELECT account_id, provider_id`).
		WithArgs("acct-1").
		WillReturnRows(sqlmock.NewRows(accountTestCols).
			AddRow("acct-1", "prov-1", "ten-1", "prod", nil,
				"pending", "pending", "onb-1", nil, now, now))
	// the account is marked error/failed
	mock.ExpectExec(`UPDATE accounts SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	body, _ := json.Marshal(map[string]any{
		"account_id":  "acct-1",
		"auth_method": "iam_role",
		"credentials": map[string]string{
			"role_arn":       "arn:aws:iam::999999999999:role/compliance",
			"external_id":    "ext-1",
			"account_number": "123456789012",
		},
	})
	req := requestWithChiURLParams("POST", "/api/v1/onboarding/aws/validate", body,
		map[string]string{"provider": "aws"})
	rr := httptest.NewRecorder()
	h.Validate(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("Validate status: got %d, want 400", rr.Code)
	}
	if len(vault.stored) != 0 {
		t.Errorf("rejected credentials must not be stored")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}
