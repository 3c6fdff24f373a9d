package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/threatengine/onboarding/internal/models"
)

// ScanResultRepo persists scan result metadata keyed by the engine's scan id.
type ScanResultRepo struct {
	DB *sql.DB
}

// NewScanResultRepo returns a new ScanResultRepo.
func NewScanResultRepo(db *sql.DB) *ScanResultRepo {
	return &ScanResultRepo{DB: db}
}

const scanResultCols = `scan_id, account_id, provider_type, scan_type, started_at, completed_at,
		status, total_checks, passed_checks, failed_checks, error_checks, created_at`

func scanResultRow(scan func(dest ...any) error) (*models.ScanResult, error) {
	s := &models.ScanResult{}
	var scanType sql.NullString
	var completedAt sql.NullTime
	var total, passed, failed, errs sql.NullInt64
	err := scan(&s.ScanID, &s.AccountID, &s.ProviderType, &scanType, &s.StartedAt, &completedAt,
		&s.Status, &total, &passed, &failed, &errs, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	s.ScanType = scanType.String
	if completedAt.Valid {
		s.CompletedAt = &completedAt.Time
	}
	for _, p := range []struct {
		v   sql.NullInt64
		dst **int
	}{{total, &s.TotalChecks}, {passed, &s.PassedChecks}, {failed, &s.FailedChecks}, {errs, &s.ErrorChecks}} {
		if p.v.Valid {
			n := int(p.v.Int64)
			*p.dst = &n
		}
	}
	return s, nil
}

// Create inserts a new running scan result record.
func (r *ScanResultRepo) Create(ctx context.Context, scanID, accountID, providerType, scanType string, startedAt time.Time) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO scan_results (scan_id, account_id, provider_type, scan_type, started_at, status)
		VALUES ($1, $2, $3, $4, $5, 'running')`,
		scanID, accountID, providerType, scanType, startedAt)
	return err
}

// UpdateStatus applies the terminal status and check counts for a scan.
func (r *ScanResultRepo) UpdateStatus(ctx context.Context, scanID, status string, total, passed, failed int) error {
	_, err := r.DB.ExecContext(ctx, `
		UPDATE scan_results
		SET status = $1, completed_at = now(), total_checks = $2, passed_checks = $3, failed_checks = $4
		WHERE scan_id = $5`,
		status, total, passed, failed, scanID)
	return err
}

// ListByAccount returns an account's scan results, most recent first.
func (r *ScanResultRepo) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]models.ScanResult, error) {
	query := `SELECT ` + scanResultCols + ` FROM scan_results
		WHERE account_id = $1 ORDER BY started_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.DB.QueryContext(ctx, query, accountID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.ScanResult
	for rows.Next() {
		s, err := scanResultRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		list = append(list, *s)
	}
	return list, rows.Err()
}
