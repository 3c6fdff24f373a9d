package repo

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func accountRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"account_id", "provider_id", "tenant_id", "account_name", "account_number",
		"status", "onboarding_status", "onboarding_id", "last_validated_at",
		"created_at", "updated_at",
	})
}

func TestAccountRepo_Create_StartsPending(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery(`INSERT INTO accounts`).
		WithArgs(sqlmock.AnyArg(), "prov-1", "ten-1", "prod-aws").
		WillReturnRows(accountRows().
			AddRow("acct-1", "prov-1", "ten-1", "prod-aws", nil,
				"pending", "pending", nil, nil, now, now))

	r := NewAccountRepo(db)
	a, err := r.Create(context.Background(), "prov-1", "ten-1", "prod-aws")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if a.Status != "pending" || a.OnboardingStatus != "pending" {
		t.Errorf("new account must start pending/pending, got %s/%s", a.Status, a.OnboardingStatus)
	}
	if a.AccountNumber != "" || a.LastValidatedAt != nil {
		t.Errorf("new account should have no validation data: %+v", a)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestAccountRepo_Update_RejectsUnknownColumn(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	r := NewAccountRepo(db)
	if err := r.Update(context.Background(), "acct-1", map[string]any{"account_id": "evil"}); err == nil {
		t.Error("expected error for disallowed column")
	}
}

func TestAccountRepo_Update_Status(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`UPDATE accounts SET`).
		WithArgs("acct-1", "active").
		WillReturnResult(sqlmock.NewResult(0, 1))

	r := NewAccountRepo(db)
	if err := r.Update(context.Background(), "acct-1", map[string]any{"status": "active"}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestAccountRepo_GetByID_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`FROM accounts WHERE account_id = \$1`).
		WithArgs("missing").
		WillReturnRows(accountRows())

	r := NewAccountRepo(db)
	a, err := r.GetByID(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if a != nil {
		t.Errorf("expected nil, got %+v", a)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}
