// Package secrets stores and retrieves cloud credentials. Plaintext credential
// fields only exist in memory; at rest they are an AES-GCM blob in the
// credential store, keyed by account id.
package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/threatengine/onboarding/internal/repo"
)

var (
	// ErrNotFound means no credentials are stored for the account.
	ErrNotFound = errors.New("credentials not found")
	// ErrExpired means stored credentials have passed their expiry.
	ErrExpired = errors.New("credentials expired")
)

// Credentials is one decrypted credential set.
type Credentials struct {
	Type   string            `json:"type"`
	Fields map[string]string `json:"fields"`
}

// Gateway is what scan execution needs from credential storage.
type Gateway interface {
	Store(ctx context.Context, accountID, credentialType string, fields map[string]string, expiresAt *time.Time) error
	Retrieve(ctx context.Context, accountID string) (*Credentials, error)
	Delete(ctx context.Context, accountID string) (bool, error)
}

// Vault is the database-backed Gateway.
type Vault struct {
	repo   *repo.CredentialRepo
	cipher *Cipher
	log    *slog.Logger
}

// NewVault returns a Vault over the given credential repo.
func NewVault(r *repo.CredentialRepo, c *Cipher, log *slog.Logger) *Vault {
	return &Vault{repo: r, cipher: c, log: log}
}

// Store encrypts the credential fields and upserts them for the account.
func (v *Vault) Store(ctx context.Context, accountID, credentialType string, fields map[string]string, expiresAt *time.Time) error {
	plaintext, err := json.Marshal(Credentials{Type: credentialType, Fields: fields})
	if err != nil {
		return err
	}
	blob, err := v.cipher.Seal(plaintext)
	if err != nil {
		return fmt.Errorf("seal credentials: %w", err)
	}
	return v.repo.Put(ctx, accountID, credentialType, blob, expiresAt)
}

// Retrieve decrypts the account's credentials. Returns ErrNotFound when none
// are stored and ErrExpired when they are past expiry. Successful retrieval
// stamps last_used_at best-effort.
func (v *Vault) Retrieve(ctx context.Context, accountID string) (*Credentials, error) {
	rec, err := v.repo.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrNotFound
	}
	if rec.ExpiresAt != nil && rec.ExpiresAt.Before(time.Now()) {
		return nil, ErrExpired
	}

	plaintext, err := v.cipher.Open(rec.EncryptedData)
	if err != nil {
		return nil, fmt.Errorf("open credentials: %w", err)
	}
	var creds Credentials
	if err := json.Unmarshal(plaintext, &creds); err != nil {
		return nil, fmt.Errorf("decode credentials: %w", err)
	}

	if err := v.repo.TouchLastUsed(ctx, accountID); err != nil {
		v.log.Warn("touch last_used_at failed", "account_id", accountID, "error", err)
	}
	return &creds, nil
}

// Delete removes the account's stored credentials.
func (v *Vault) Delete(ctx context.Context, accountID string) (bool, error) {
	return v.repo.Delete(ctx, accountID)
}
