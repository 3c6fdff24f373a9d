package models

import "time"

// Schedule kinds.
const (
	KindCron     = "cron"
	KindInterval = "interval"
	KindOneTime  = "one_time"
)

// Schedule status values.
const (
	ScheduleActive = "active"
	SchedulePaused = "paused"
)

// Trigger sources recorded on executions.
const (
	TriggeredByScheduler = "scheduler"
	TriggeredByManual    = "manual"
	TriggeredByAPI       = "api"
)

// Schedule is a recurring intent to scan one account. NextRunAt is nil exactly
// when the schedule cannot run again (one_time after its run, or disabled).
type Schedule struct {
	ID          string `json:"schedule_id"`
	TenantID    string `json:"tenant_id"`
	AccountID   string `json:"account_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	Kind            string `json:"schedule_type"`
	CronExpression  string `json:"cron_expression,omitempty"`
	IntervalSeconds int    `json:"interval_seconds,omitempty"`
	Timezone        string `json:"timezone"`

	ProviderType    string   `json:"provider_type"`
	Regions         []string `json:"regions"`
	Services        []string `json:"services"`
	ExcludeServices []string `json:"exclude_services"`

	Status  string `json:"status"`
	Enabled bool   `json:"enabled"`

	LastRunAt    *time.Time `json:"last_run_at,omitempty"`
	NextRunAt    *time.Time `json:"next_run_at,omitempty"`
	RunCount     int        `json:"run_count"`
	SuccessCount int        `json:"success_count"`
	FailureCount int        `json:"failure_count"`

	NotifyOnSuccess bool `json:"notify_on_success"`
	NotifyOnFailure bool `json:"notify_on_failure"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// KnownKind reports whether k is a supported schedule kind.
func KnownKind(k string) bool {
	switch k {
	case KindCron, KindInterval, KindOneTime:
		return true
	}
	return false
}
