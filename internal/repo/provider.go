package repo

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/threatengine/onboarding/internal/models"
)

// ProviderRepo persists tenant/provider links.
type ProviderRepo struct {
	DB *sql.DB
}

// NewProviderRepo returns a new ProviderRepo.
func NewProviderRepo(db *sql.DB) *ProviderRepo {
	return &ProviderRepo{DB: db}
}

const providerCols = "provider_id, tenant_id, provider_type, status, created_at, updated_at"

func scanProvider(row *sql.Row) (*models.Provider, error) {
	p := &models.Provider{}
	err := row.Scan(&p.ID, &p.TenantID, &p.ProviderType, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Create inserts a new provider link with a generated id and status=active.
func (r *ProviderRepo) Create(ctx context.Context, tenantID, providerType string) (*models.Provider, error) {
	query := `
		INSERT INTO providers (provider_id, tenant_id, provider_type, status)
		VALUES ($1, $2, $3, 'active')
		RETURNING ` + providerCols
	return scanProvider(r.DB.QueryRowContext(ctx, query, uuid.NewString(), tenantID, providerType))
}

// GetByID returns one provider, or nil if not found.
func (r *ProviderRepo) GetByID(ctx context.Context, id string) (*models.Provider, error) {
	query := `SELECT ` + providerCols + ` FROM providers WHERE provider_id = $1`
	return scanProvider(r.DB.QueryRowContext(ctx, query, id))
}

// GetByTenantAndType returns the provider for a tenant+type pair, or nil if not found.
func (r *ProviderRepo) GetByTenantAndType(ctx context.Context, tenantID, providerType string) (*models.Provider, error) {
	query := `SELECT ` + providerCols + ` FROM providers WHERE tenant_id = $1 AND provider_type = $2`
	return scanProvider(r.DB.QueryRowContext(ctx, query, tenantID, providerType))
}
