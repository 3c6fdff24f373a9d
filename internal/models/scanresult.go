package models

import "time"

// ScanResult is the metadata record for one engine scan, keyed by the engine's
// scan id.
type ScanResult struct {
	ScanID       string     `json:"scan_id"`
	AccountID    string     `json:"account_id"`
	ProviderType string     `json:"provider_type"`
	ScanType     string     `json:"scan_type,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	Status       string     `json:"status"`
	TotalChecks  *int       `json:"total_checks,omitempty"`
	PassedChecks *int       `json:"passed_checks,omitempty"`
	FailedChecks *int       `json:"failed_checks,omitempty"`
	ErrorChecks  *int       `json:"error_checks,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}
