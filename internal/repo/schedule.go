package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/threatengine/onboarding/internal/models"
)

// ScheduleRepo persists scan schedules. Every write is a single-row statement:
// the scheduling core never assumes multi-item atomicity from the store.
type ScheduleRepo struct {
	DB *sql.DB
}

// NewScheduleRepo returns a new ScheduleRepo.
func NewScheduleRepo(db *sql.DB) *ScheduleRepo {
	return &ScheduleRepo{DB: db}
}

const scheduleCols = `schedule_id, tenant_id, account_id, name, description,
		schedule_type, cron_expression, interval_seconds, timezone,
		provider_type, regions, services, exclude_services,
		status, enabled, last_run_at, next_run_at,
		run_count, success_count, failure_count,
		notify_on_success, notify_on_failure, created_at, updated_at`

func scanScheduleRow(scan func(dest ...any) error) (*models.Schedule, error) {
	s := &models.Schedule{}
	var description, cronExpr sql.NullString
	var lastRun, nextRun sql.NullTime
	err := scan(&s.ID, &s.TenantID, &s.AccountID, &s.Name, &description,
		&s.Kind, &cronExpr, &s.IntervalSeconds, &s.Timezone,
		&s.ProviderType, pq.Array(&s.Regions), pq.Array(&s.Services), pq.Array(&s.ExcludeServices),
		&s.Status, &s.Enabled, &lastRun, &nextRun,
		&s.RunCount, &s.SuccessCount, &s.FailureCount,
		&s.NotifyOnSuccess, &s.NotifyOnFailure, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	s.Description = description.String
	s.CronExpression = cronExpr.String
	if lastRun.Valid {
		s.LastRunAt = &lastRun.Time
	}
	if nextRun.Valid {
		s.NextRunAt = &nextRun.Time
	}
	return s, nil
}

// CreateParams carries the caller-supplied fields for a new schedule.
type CreateParams struct {
	TenantID        string
	AccountID       string
	Name            string
	Description     string
	Kind            string
	CronExpression  string
	IntervalSeconds int
	Timezone        string
	ProviderType    string
	Regions         []string
	Services        []string
	ExcludeServices []string
	NextRunAt       *time.Time
	NotifyOnSuccess bool
	NotifyOnFailure bool
}

// Create inserts a new enabled, active schedule with zeroed counters.
func (r *ScheduleRepo) Create(ctx context.Context, p CreateParams) (*models.Schedule, error) {
	query := `
		INSERT INTO schedules (schedule_id, tenant_id, account_id, name, description,
			schedule_type, cron_expression, interval_seconds, timezone,
			provider_type, regions, services, exclude_services,
			status, enabled, next_run_at, notify_on_success, notify_on_failure)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, 'active', true, $14, $15, $16)
		RETURNING ` + scheduleCols
	row := r.DB.QueryRowContext(ctx, query,
		uuid.NewString(), p.TenantID, p.AccountID, p.Name, p.Description,
		p.Kind, p.CronExpression, p.IntervalSeconds, p.Timezone,
		p.ProviderType, pq.Array(p.Regions), pq.Array(p.Services), pq.Array(p.ExcludeServices),
		p.NextRunAt, p.NotifyOnSuccess, p.NotifyOnFailure)
	return scanScheduleRow(row.Scan)
}

// GetByID returns one schedule, or nil if not found.
func (r *ScheduleRepo) GetByID(ctx context.Context, id string) (*models.Schedule, error) {
	query := `SELECT ` + scheduleCols + ` FROM schedules WHERE schedule_id = $1`
	s, err := scanScheduleRow(r.DB.QueryRowContext(ctx, query, id).Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return s, err
}

// Due returns schedules with enabled=true and next_run_at at or before now.
// Disabled schedules are never returned regardless of next_run_at, and a null
// next_run_at means the schedule cannot run again.
func (r *ScheduleRepo) Due(ctx context.Context, now time.Time) ([]models.Schedule, error) {
	query := `SELECT ` + scheduleCols + ` FROM schedules
		WHERE enabled = true AND next_run_at IS NOT NULL AND next_run_at <= $1
		ORDER BY next_run_at`
	rows, err := r.DB.QueryContext(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Schedule
	for rows.Next() {
		s, err := scanScheduleRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		list = append(list, *s)
	}
	return list, rows.Err()
}

// ListByTenant returns a tenant's schedules, newest first.
func (r *ScheduleRepo) ListByTenant(ctx context.Context, tenantID string) ([]models.Schedule, error) {
	return r.list(ctx, `tenant_id`, tenantID)
}

// ListByAccount returns an account's schedules, newest first.
func (r *ScheduleRepo) ListByAccount(ctx context.Context, accountID string) ([]models.Schedule, error) {
	return r.list(ctx, `account_id`, accountID)
}

func (r *ScheduleRepo) list(ctx context.Context, col, val string) ([]models.Schedule, error) {
	query := `SELECT ` + scheduleCols + ` FROM schedules WHERE ` + col + ` = $1 ORDER BY created_at DESC`
	rows, err := r.DB.QueryContext(ctx, query, val)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Schedule
	for rows.Next() {
		s, err := scanScheduleRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		list = append(list, *s)
	}
	return list, rows.Err()
}

// allowed column names for Update; anything else is a programming error.
var scheduleUpdateCols = map[string]bool{
	"name":              true,
	"description":       true,
	"schedule_type":     true,
	"cron_expression":   true,
	"interval_seconds":  true,
	"timezone":          true,
	"regions":           true,
	"services":          true,
	"exclude_services":  true,
	"status":            true,
	"enabled":           true,
	"next_run_at":       true,
	"notify_on_success": true,
	"notify_on_failure": true,
}

// Update applies a field map as one single-row UPDATE.
func (r *ScheduleRepo) Update(ctx context.Context, id string, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	set := []string{"updated_at = now()"}
	args := []any{id}
	for col, v := range updates {
		if !scheduleUpdateCols[col] {
			return fmt.Errorf("schedule update: column %q not allowed", col)
		}
		args = append(args, v)
		set = append(set, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	query := `UPDATE schedules SET ` + strings.Join(set, ", ") + ` WHERE schedule_id = $1`
	_, err := r.DB.ExecContext(ctx, query, args...)
	return err
}

// SetEnabled flips the enabled flag.
func (r *ScheduleRepo) SetEnabled(ctx context.Context, id string, enabled bool) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE schedules SET enabled = $1, updated_at = now() WHERE schedule_id = $2`,
		enabled, id)
	return err
}

// RecordRun applies the post-execution bookkeeping as one atomic single-row
// UPDATE: last_run_at, run_count+1, success XOR failure count, and the
// recomputed next_run_at (nil clears it, ending one_time schedules).
func (r *ScheduleRepo) RecordRun(ctx context.Context, id string, startedAt time.Time, success bool, nextRunAt *time.Time) error {
	counter := "failure_count"
	if success {
		counter = "success_count"
	}
	query := `UPDATE schedules SET
			last_run_at = $1,
			run_count = run_count + 1,
			` + counter + ` = ` + counter + ` + 1,
			next_run_at = $2,
			updated_at = now()
		WHERE schedule_id = $3`
	_, err := r.DB.ExecContext(ctx, query, startedAt, nextRunAt, id)
	return err
}

// DisableByAccount disables all schedules of an account (best-effort cleanup
// when the account is deleted; orphans would otherwise keep coming due).
func (r *ScheduleRepo) DisableByAccount(ctx context.Context, accountID string) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE schedules SET enabled = false, updated_at = now() WHERE account_id = $1`,
		accountID)
	return err
}

// Delete removes a schedule by id.
func (r *ScheduleRepo) Delete(ctx context.Context, id string) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM schedules WHERE schedule_id = $1`, id)
	return err
}
