package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/threatengine/onboarding/internal/models"
)

// AccountRepo persists cloud accounts.
type AccountRepo struct {
	DB *sql.DB
}

// NewAccountRepo returns a new AccountRepo.
func NewAccountRepo(db *sql.DB) *AccountRepo {
	return &AccountRepo{DB: db}
}

const accountCols = `account_id, provider_id, tenant_id, account_name, account_number,
		status, onboarding_status, onboarding_id, last_validated_at, created_at, updated_at`

func scanAccountRow(scan func(dest ...any) error) (*models.Account, error) {
	a := &models.Account{}
	var number, onboardingID sql.NullString
	var validatedAt sql.NullTime
	err := scan(&a.ID, &a.ProviderID, &a.TenantID, &a.AccountName, &number,
		&a.Status, &a.OnboardingStatus, &onboardingID, &validatedAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.AccountNumber = number.String
	a.OnboardingID = onboardingID.String
	if validatedAt.Valid {
		a.LastValidatedAt = &validatedAt.Time
	}
	return a, nil
}

// Create inserts a new account in the pending state.
func (r *AccountRepo) Create(ctx context.Context, providerID, tenantID, accountName string) (*models.Account, error) {
	query := `
		INSERT INTO accounts (account_id, provider_id, tenant_id, account_name, status, onboarding_status)
		VALUES ($1, $2, $3, $4, 'pending', 'pending')
		RETURNING ` + accountCols
	row := r.DB.QueryRowContext(ctx, query, uuid.NewString(), providerID, tenantID, accountName)
	return scanAccountRow(row.Scan)
}

// GetByID returns one account, or nil if not found.
func (r *AccountRepo) GetByID(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT ` + accountCols + ` FROM accounts WHERE account_id = $1`
	a, err := scanAccountRow(r.DB.QueryRowContext(ctx, query, id).Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return a, err
}

// allowed column names for Update; anything else is a programming error.
var accountUpdateCols = map[string]bool{
	"account_name":      true,
	"account_number":    true,
	"status":            true,
	"onboarding_status": true,
	"onboarding_id":     true,
	"last_validated_at": true,
}

// Update applies a field map as one single-row UPDATE (the store offers no
// multi-item transactions; every write stays a single-item operation).
func (r *AccountRepo) Update(ctx context.Context, id string, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	set := []string{"updated_at = now()"}
	args := []any{id}
	for col, v := range updates {
		if !accountUpdateCols[col] {
			return fmt.Errorf("account update: column %q not allowed", col)
		}
		args = append(args, v)
		set = append(set, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	query := `UPDATE accounts SET ` + strings.Join(set, ", ") + ` WHERE account_id = $1`
	_, err := r.DB.ExecContext(ctx, query, args...)
	return err
}

// ListByTenant returns a tenant's accounts, optionally filtered by status.
func (r *AccountRepo) ListByTenant(ctx context.Context, tenantID, status string) ([]models.Account, error) {
	query := `SELECT ` + accountCols + ` FROM accounts WHERE tenant_id = $1`
	args := []any{tenantID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Account
	for rows.Next() {
		a, err := scanAccountRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		list = append(list, *a)
	}
	return list, rows.Err()
}

// ListByProvider returns all accounts under one provider link.
func (r *AccountRepo) ListByProvider(ctx context.Context, providerID string) ([]models.Account, error) {
	query := `SELECT ` + accountCols + ` FROM accounts WHERE provider_id = $1 ORDER BY created_at DESC`
	rows, err := r.DB.QueryContext(ctx, query, providerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Account
	for rows.Next() {
		a, err := scanAccountRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		list = append(list, *a)
	}
	return list, rows.Err()
}

// Delete removes an account row. Credentials and schedules are cleaned up by
// the caller beforehand (no cascading transaction exists).
func (r *AccountRepo) Delete(ctx context.Context, id string) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM accounts WHERE account_id = $1`, id)
	return err
}
