package repo

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/threatengine/onboarding/internal/models"
)

// TenantRepo persists tenants.
type TenantRepo struct {
	DB *sql.DB
}

// NewTenantRepo returns a new TenantRepo.
func NewTenantRepo(db *sql.DB) *TenantRepo {
	return &TenantRepo{DB: db}
}

const tenantCols = "tenant_id, tenant_name, description, status, created_at, updated_at"

func scanTenant(row *sql.Row) (*models.Tenant, error) {
	t := &models.Tenant{}
	err := row.Scan(&t.ID, &t.Name, &t.Description, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Create inserts a new tenant with a generated id and status=active.
func (r *TenantRepo) Create(ctx context.Context, name, description string) (*models.Tenant, error) {
	query := `
		INSERT INTO tenants (tenant_id, tenant_name, description, status)
		VALUES ($1, $2, $3, 'active')
		RETURNING ` + tenantCols
	return scanTenant(r.DB.QueryRowContext(ctx, query, uuid.NewString(), name, description))
}

// GetByID returns one tenant, or nil if not found.
func (r *TenantRepo) GetByID(ctx context.Context, id string) (*models.Tenant, error) {
	query := `SELECT ` + tenantCols + ` FROM tenants WHERE tenant_id = $1`
	return scanTenant(r.DB.QueryRowContext(ctx, query, id))
}

// GetByName returns the tenant with the given name, or nil if not found.
func (r *TenantRepo) GetByName(ctx context.Context, name string) (*models.Tenant, error) {
	query := `SELECT ` + tenantCols + ` FROM tenants WHERE tenant_name = $1`
	return scanTenant(r.DB.QueryRowContext(ctx, query, name))
}

// List returns all tenants, most recently created first.
func (r *TenantRepo) List(ctx context.Context) ([]models.Tenant, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+tenantCols+` FROM tenants ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Tenant
	for rows.Next() {
		var t models.Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.Status, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}
