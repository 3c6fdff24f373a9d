package models

import "time"

// Tenant is one organization on the platform. All accounts, schedules, and
// executions hang off a tenant.
type Tenant struct {
	ID          string    `json:"tenant_id"`
	Name        string    `json:"tenant_name"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
