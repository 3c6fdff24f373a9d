package models

import "time"

// Account status values. A scan may only be dispatched against an active
// account; the credential-validation flow is the sole writer of these
// transitions (pending->active, active->error, error->active, pending->error).
const (
	AccountPending = "pending"
	AccountActive  = "active"
	AccountError   = "error"
)

// Onboarding status values.
const (
	OnboardingPending   = "pending"
	OnboardingCompleted = "completed"
	OnboardingFailed    = "failed"
)

// Account is one cloud account (or subscription/project) under onboarding.
// AccountNumber is the provider-assigned identifier, set after the first
// successful credential validation.
type Account struct {
	ID               string     `json:"account_id"`
	ProviderID       string     `json:"provider_id"`
	TenantID         string     `json:"tenant_id"`
	AccountName      string     `json:"account_name"`
	AccountNumber    string     `json:"account_number,omitempty"`
	Status           string     `json:"status"`
	OnboardingStatus string     `json:"onboarding_status"`
	OnboardingID     string     `json:"onboarding_id,omitempty"`
	LastValidatedAt  *time.Time `json:"last_validated_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}
