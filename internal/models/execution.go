package models

import "time"

// Execution status values. Transitions are running -> completed or
// running -> failed only; terminal states never change.
const (
	ExecutionRunning   = "running"
	ExecutionCompleted = "completed"
	ExecutionFailed    = "failed"
)

// Execution is one concrete run of a schedule. CompletedAt is nil while the
// run is in flight. On success ScanID and the check counts are set; on failure
// only ErrorMessage is.
type Execution struct {
	ID         string `json:"execution_id"`
	ScheduleID string `json:"schedule_id"`
	AccountID  string `json:"account_id"`

	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Status      string     `json:"status"`

	ScanID       string `json:"scan_id,omitempty"`
	TotalChecks  *int   `json:"total_checks,omitempty"`
	PassedChecks *int   `json:"passed_checks,omitempty"`
	FailedChecks *int   `json:"failed_checks,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`

	TriggeredBy string `json:"triggered_by"`
}
