package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/threatengine/onboarding/internal/models"
)

// ExecutionRepo persists execution history. An execution gets exactly two
// writes: Create (running) and one terminal update. Terminal updates are
// guarded by status='running' so a duplicate terminal write is a no-op.
type ExecutionRepo struct {
	DB *sql.DB
}

// NewExecutionRepo returns a new ExecutionRepo.
func NewExecutionRepo(db *sql.DB) *ExecutionRepo {
	return &ExecutionRepo{DB: db}
}

const executionCols = `execution_id, schedule_id, account_id, started_at, completed_at,
		status, scan_id, total_checks, passed_checks, failed_checks, error_message, triggered_by`

func scanExecutionRow(scan func(dest ...any) error) (*models.Execution, error) {
	e := &models.Execution{}
	var completedAt sql.NullTime
	var scanID, errMsg sql.NullString
	var total, passed, failed sql.NullInt64
	err := scan(&e.ID, &e.ScheduleID, &e.AccountID, &e.StartedAt, &completedAt,
		&e.Status, &scanID, &total, &passed, &failed, &errMsg, &e.TriggeredBy)
	if err != nil {
		return nil, err
	}
	if completedAt.Valid {
		e.CompletedAt = &completedAt.Time
	}
	e.ScanID = scanID.String
	e.ErrorMessage = errMsg.String
	if total.Valid {
		n := int(total.Int64)
		e.TotalChecks = &n
	}
	if passed.Valid {
		n := int(passed.Int64)
		e.PassedChecks = &n
	}
	if failed.Valid {
		n := int(failed.Int64)
		e.FailedChecks = &n
	}
	return e, nil
}

// Create inserts a new running execution and returns it.
func (r *ExecutionRepo) Create(ctx context.Context, scheduleID, accountID, triggeredBy string, startedAt time.Time) (*models.Execution, error) {
	query := `
		INSERT INTO schedule_executions (execution_id, schedule_id, account_id, started_at, status, triggered_by)
		VALUES ($1, $2, $3, $4, 'running', $5)
		RETURNING ` + executionCols
	row := r.DB.QueryRowContext(ctx, query, uuid.NewString(), scheduleID, accountID, startedAt, triggeredBy)
	return scanExecutionRow(row.Scan)
}

// Complete marks a running execution completed with the engine's result.
// A second terminal write matches no row and is silently ignored.
func (r *ExecutionRepo) Complete(ctx context.Context, id, scanID string, total, passed, failed int) error {
	_, err := r.DB.ExecContext(ctx, `
		UPDATE schedule_executions
		SET status = 'completed', completed_at = now(),
			scan_id = $1, total_checks = $2, passed_checks = $3, failed_checks = $4
		WHERE execution_id = $5 AND status = 'running'`,
		scanID, total, passed, failed, id)
	return err
}

// Fail marks a running execution failed with a human-readable message.
func (r *ExecutionRepo) Fail(ctx context.Context, id, errorMessage string) error {
	_, err := r.DB.ExecContext(ctx, `
		UPDATE schedule_executions
		SET status = 'failed', completed_at = now(), error_message = $1
		WHERE execution_id = $2 AND status = 'running'`,
		errorMessage, id)
	return err
}

// GetByID returns one execution, or nil if not found.
func (r *ExecutionRepo) GetByID(ctx context.Context, id string) (*models.Execution, error) {
	query := `SELECT ` + executionCols + ` FROM schedule_executions WHERE execution_id = $1`
	e, err := scanExecutionRow(r.DB.QueryRowContext(ctx, query, id).Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return e, err
}

// ListBySchedule returns a schedule's executions, most recent first.
func (r *ExecutionRepo) ListBySchedule(ctx context.Context, scheduleID string, limit, offset int) ([]models.Execution, error) {
	query := `SELECT ` + executionCols + ` FROM schedule_executions
		WHERE schedule_id = $1 ORDER BY started_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.DB.QueryContext(ctx, query, scheduleID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Execution
	for rows.Next() {
		e, err := scanExecutionRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		list = append(list, *e)
	}
	return list, rows.Err()
}

// CountBySchedule returns the total number of executions for a schedule.
func (r *ExecutionRepo) CountBySchedule(ctx context.Context, scheduleID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM schedule_executions WHERE schedule_id = $1`, scheduleID).Scan(&n)
	return n, err
}
