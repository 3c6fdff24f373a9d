package models

import "time"

// Supported cloud provider types.
const (
	ProviderAWS      = "aws"
	ProviderAzure    = "azure"
	ProviderGCP      = "gcp"
	ProviderAliCloud = "alicloud"
	ProviderOCI      = "oci"
	ProviderIBM      = "ibm"
)

// Provider links a tenant to one cloud provider type (at most one row per
// tenant+type pair).
type Provider struct {
	ID           string    `json:"provider_id"`
	TenantID     string    `json:"tenant_id"`
	ProviderType string    `json:"provider_type"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// KnownProvider reports whether t is one of the supported provider types.
func KnownProvider(t string) bool {
	switch t {
	case ProviderAWS, ProviderAzure, ProviderGCP, ProviderAliCloud, ProviderOCI, ProviderIBM:
		return true
	}
	return false
}
