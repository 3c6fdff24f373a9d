package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// CredentialRecord is one encrypted credential blob for an account. The
// plaintext never touches this layer; encryption lives in internal/secrets.
type CredentialRecord struct {
	CredentialID   string
	AccountID      string
	CredentialType string
	EncryptedData  []byte
	ExpiresAt      *time.Time
	LastUsedAt     *time.Time
	CreatedAt      time.Time
}

// CredentialRepo persists encrypted account credentials.
type CredentialRepo struct {
	DB *sql.DB
}

// NewCredentialRepo returns a new CredentialRepo.
func NewCredentialRepo(db *sql.DB) *CredentialRepo {
	return &CredentialRepo{DB: db}
}

// Put upserts the credential blob for an account (one blob per account; a new
// upload replaces the old one).
func (r *CredentialRepo) Put(ctx context.Context, accountID, credentialType string, encrypted []byte, expiresAt *time.Time) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO account_credentials (credential_id, account_id, credential_type, encrypted_data, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (account_id) DO UPDATE
		SET credential_type = EXCLUDED.credential_type,
			encrypted_data = EXCLUDED.encrypted_data,
			expires_at = EXCLUDED.expires_at,
			updated_at = now()`,
		uuid.NewString(), accountID, credentialType, encrypted, expiresAt)
	return err
}

// Get returns the credential record for an account, or nil if none is stored.
func (r *CredentialRepo) Get(ctx context.Context, accountID string) (*CredentialRecord, error) {
	rec := &CredentialRecord{}
	var expiresAt, lastUsedAt sql.NullTime
	err := r.DB.QueryRowContext(ctx, `
		SELECT credential_id, account_id, credential_type, encrypted_data, expires_at, last_used_at, created_at
		FROM account_credentials WHERE account_id = $1`, accountID).
		Scan(&rec.CredentialID, &rec.AccountID, &rec.CredentialType, &rec.EncryptedData,
			&expiresAt, &lastUsedAt, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if expiresAt.Valid {
		rec.ExpiresAt = &expiresAt.Time
	}
	if lastUsedAt.Valid {
		rec.LastUsedAt = &lastUsedAt.Time
	}
	return rec, nil
}

// TouchLastUsed stamps last_used_at. Best-effort from callers.
func (r *CredentialRepo) TouchLastUsed(ctx context.Context, accountID string) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE account_credentials SET last_used_at = now() WHERE account_id = $1`, accountID)
	return err
}

// Delete removes the credential blob for an account. Returns whether a row
// was deleted.
func (r *CredentialRepo) Delete(ctx context.Context, accountID string) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		`DELETE FROM account_credentials WHERE account_id = $1`, accountID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
