package secrets

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/threatengine/onboarding/internal/repo"
)

var testKey = base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{0x42}, 32))

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCipher_RoundTrip(t *testing.T) {
	c, err := NewCipher(testKey)
	if err != nil {
		t.Fatalf("NewCipher: %v", err)
	}
	blob, err := c.Seal([]byte(`{"role_arn":"arn:aws:iam::123456789012:role/scan"}`))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	out, err := c.Open(blob)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if string(out) != `{"role_arn":"arn:aws:iam::123456789012:role/scan"}` {
		t.Errorf("round trip mismatch: %s", out)
	}
}

func TestCipher_OpenRejectsTampering(t *testing.T) {
	c, err := NewCipher(testKey)
	if err != nil {
		t.Fatalf("NewCipher: %v", err)
	}
	blob, err := c.Seal([]byte("secret"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	blob[len(blob)-1] ^= 0xff
	if _, err := c.Open(blob); err == nil {
		t.Error("expected error for tampered blob")
	}
	if _, err := c.Open([]byte("short")); err == nil {
		t.Error("expected error for truncated blob")
	}
}

func TestNewCipher_BadKey(t *testing.T) {
	if _, err := NewCipher("not-base64!!"); err == nil {
		t.Error("expected error for invalid base64")
	}
	short := base64.StdEncoding.EncodeToString([]byte("too-short"))
	if _, err := NewCipher(short); err == nil {
		t.Error("expected error for short key")
	}
}

func newTestVault(t *testing.T) (*Vault, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	c, err := NewCipher(testKey)
	if err != nil {
		t.Fatalf("NewCipher: %v", err)
	}
	v := NewVault(repo.NewCredentialRepo(db), c, testLogger())
	return v, mock, func() { db.Close() }
}

func credentialCols() []string {
	return []string{"credential_id", "account_id", "credential_type", "encrypted_data",
		"expires_at", "last_used_at", "created_at"}
}

func TestVault_RetrieveRoundTrip(t *testing.T) {
	v, mock, done := newTestVault(t)
	defer done()

	fields := map[string]string{"subscription_id": "sub-1", "client_secret": "hunter2"}
	mock.ExpectExec(`INSERT INTO account_credentials`).
		WithArgs(sqlmock.AnyArg(), "acct-1", "service_principal", sqlmock.AnyArg(), nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := v.Store(context.Background(), "acct-1", "service_principal", fields, nil); err != nil {
		t.Fatalf("Store: %v", err)
	}

	// seal again with the same cipher to simulate what Store persisted
	plaintext := `{"type":"service_principal","fields":{"client_secret":"hunter2","subscription_id":"sub-1"}}`
	stored, err := v.cipher.Seal([]byte(plaintext))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	mock.ExpectQuery(`FROM account_credentials WHERE account_id = \$1`).
		WithArgs("acct-1").
		WillReturnRows(sqlmock.NewRows(credentialCols()).
			AddRow("cred-1", "acct-1", "service_principal", stored, nil, nil, time.Now()))
	mock.ExpectExec(`UPDATE account_credentials SET last_used_at`).
		WithArgs("acct-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	creds, err := v.Retrieve(context.Background(), "acct-1")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if creds.Type != "service_principal" || creds.Fields["subscription_id"] != "sub-1" {
		t.Errorf("unexpected credentials: %+v", creds)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestVault_RetrieveNotFound(t *testing.T) {
	v, mock, done := newTestVault(t)
	defer done()

	mock.ExpectQuery(`FROM account_credentials WHERE account_id = \$1`).
		WithArgs("acct-1").
		WillReturnRows(sqlmock.NewRows(credentialCols()))

	_, err := v.Retrieve(context.Background(), "acct-1")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestVault_RetrieveExpired(t *testing.T) {
	v, mock, done := newTestVault(t)
	defer done()

	blob, err := v.cipher.Seal([]byte(`{"type":"api_key","fields":{}}`))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	expired := time.Now().Add(-time.Hour)
	mock.ExpectQuery(`FROM account_credentials WHERE account_id = \$1`).
		WithArgs("acct-1").
		WillReturnRows(sqlmock.NewRows(credentialCols()).
			AddRow("cred-1", "acct-1", "api_key", blob, expired, nil, time.Now()))

	_, err = v.Retrieve(context.Background(), "acct-1")
	if !errors.Is(err, ErrExpired) {
		t.Errorf("expected ErrExpired, got %v", err)
	}
}
