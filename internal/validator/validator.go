// Package validator performs structural validation of cloud credentials at
// onboarding time: required fields, formats, and extraction of the account
// identifier. Live permission checks happen on the engine side at scan time.
package validator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/threatengine/onboarding/internal/models"
)

// Result is the outcome of validating one credential set.
type Result struct {
	Success       bool     `json:"success"`
	Message       string   `json:"message"`
	AccountNumber string   `json:"account_number,omitempty"`
	Errors        []string `json:"errors,omitempty"`
}

// Validator checks one provider's credential shapes.
type Validator interface {
	// Validate inspects the fields of a credential set. The credential type
	// (e.g. "aws_iam_role") selects the expected shape.
	Validate(credentialType string, fields map[string]string) Result
}

var registry = map[string]Validator{
	models.ProviderAWS:      awsValidator{},
	models.ProviderAzure:    azureValidator{},
	models.ProviderGCP:      gcpValidator{},
	models.ProviderAliCloud: aliCloudValidator{},
	models.ProviderOCI:      ociValidator{},
	models.ProviderIBM:      ibmValidator{},
}

// For returns the validator for a provider type, or nil if unsupported.
func For(providerType string) Validator {
	return registry[providerType]
}

// CredentialTypes lists the accepted credential types per provider.
func CredentialTypes(providerType string) []string {
	types, ok := credentialTypes[providerType]
	if !ok {
		return nil
	}
	out := make([]string, len(types))
	copy(out, types)
	return out
}

var credentialTypes = map[string][]string{
	models.ProviderAWS:      {"aws_access_key", "aws_iam_role"},
	models.ProviderAzure:    {"azure_service_principal"},
	models.ProviderGCP:      {"gcp_service_account"},
	models.ProviderAliCloud: {"alicloud_access_key"},
	models.ProviderOCI:      {"oci_user_principal"},
	models.ProviderIBM:      {"ibm_api_key"},
}

func failure(message string, errs ...string) Result {
	return Result{Success: false, Message: message, Errors: errs}
}

func success(message, accountNumber string) Result {
	return Result{Success: true, Message: message, AccountNumber: accountNumber}
}

func unsupportedType(provider, credentialType string) Result {
	return failure(
		fmt.Sprintf("Unsupported %s credential type: %s", provider, credentialType),
		"Supported types: "+strings.Join(credentialTypes[provider], ", "))
}

// requireFields reports the missing field names, sorted for stable messages.
func requireFields(fields map[string]string, names ...string) []string {
	var missing []string
	for _, n := range names {
		if fields[n] == "" {
			missing = append(missing, n)
		}
	}
	sort.Strings(missing)
	return missing
}
