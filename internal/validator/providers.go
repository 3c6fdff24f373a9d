package validator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/threatengine/onboarding/internal/models"
)

type awsValidator struct{}

func (awsValidator) Validate(credentialType string, fields map[string]string) Result {
	switch credentialType {
	case "aws_access_key":
		if missing := requireFields(fields, "access_key_id", "secret_access_key"); len(missing) > 0 {
			return failure("Missing required fields", strings.Join(missing, ", ")+" are required")
		}
		if !strings.HasPrefix(fields["access_key_id"], "AKIA") && !strings.HasPrefix(fields["access_key_id"], "ASIA") {
			return failure("Invalid access key format", "access_key_id must start with AKIA or ASIA")
		}
		// the account number is only discoverable by calling the cloud API;
		// the engine reports it on the first scan
		return success("Access key accepted", "")

	case "aws_iam_role":
		if missing := requireFields(fields, "role_arn", "external_id", "account_number"); len(missing) > 0 {
			return failure("Missing required fields", strings.Join(missing, ", ")+" are required")
		}
		roleARN := fields["role_arn"]
		if !strings.HasPrefix(roleARN, "arn:aws:iam::") || !strings.Contains(roleARN, ":role/") {
			return failure("Invalid Role ARN format",
				"Role ARN must be in format: arn:aws:iam::ACCOUNT_ID:role/ROLE_NAME")
		}
		parts := strings.Split(roleARN, ":")
		if len(parts) < 6 {
			return failure("Invalid Role ARN format", "Role ARN has too few segments")
		}
		if arnAccount := parts[4]; arnAccount != fields["account_number"] {
			return failure("Account ID mismatch",
				fmt.Sprintf("Account ID in Role ARN (%s) doesn't match provided Account ID (%s)",
					arnAccount, fields["account_number"]))
		}
		return success("IAM role accepted", fields["account_number"])

	default:
		return unsupportedType(models.ProviderAWS, credentialType)
	}
}

type azureValidator struct{}

func (azureValidator) Validate(credentialType string, fields map[string]string) Result {
	if credentialType != "azure_service_principal" {
		return unsupportedType(models.ProviderAzure, credentialType)
	}
	if missing := requireFields(fields, "client_id", "client_secret", "tenant_id", "subscription_id"); len(missing) > 0 {
		return failure("Missing required fields", strings.Join(missing, ", ")+" are required")
	}
	return success("Service principal accepted", fields["subscription_id"])
}

type gcpValidator struct{}

func (gcpValidator) Validate(credentialType string, fields map[string]string) Result {
	if credentialType != "gcp_service_account" {
		return unsupportedType(models.ProviderGCP, credentialType)
	}
	raw := fields["service_account_json"]
	if raw == "" {
		return failure("Missing required field", "service_account_json is required")
	}
	var key struct {
		Type        string `json:"type"`
		ProjectID   string `json:"project_id"`
		PrivateKey  string `json:"private_key"`
		ClientEmail string `json:"client_email"`
	}
	if err := json.Unmarshal([]byte(raw), &key); err != nil {
		return failure("Invalid JSON format", "JSON parsing error: "+err.Error())
	}
	if key.ProjectID == "" {
		return failure("Missing project_id in service account JSON",
			"Service account JSON must contain project_id")
	}
	if key.Type != "service_account" || key.PrivateKey == "" || key.ClientEmail == "" {
		return failure("Incomplete service account key",
			"type, private_key and client_email are required in the key file")
	}
	return success("Service account accepted", key.ProjectID)
}

type aliCloudValidator struct{}

func (aliCloudValidator) Validate(credentialType string, fields map[string]string) Result {
	if credentialType != "alicloud_access_key" {
		return unsupportedType(models.ProviderAliCloud, credentialType)
	}
	if missing := requireFields(fields, "access_key_id", "access_key_secret"); len(missing) > 0 {
		return failure("Missing required fields", strings.Join(missing, ", ")+" are required")
	}
	return success("Access key accepted", "")
}

type ociValidator struct{}

func (ociValidator) Validate(credentialType string, fields map[string]string) Result {
	if credentialType != "oci_user_principal" {
		return unsupportedType(models.ProviderOCI, credentialType)
	}
	if missing := requireFields(fields, "user_ocid", "tenancy_ocid", "fingerprint", "private_key", "region"); len(missing) > 0 {
		return failure("Missing required fields", strings.Join(missing, ", ")+" are required")
	}
	if !strings.HasPrefix(fields["tenancy_ocid"], "ocid1.tenancy.") {
		return failure("Invalid tenancy OCID", "tenancy_ocid must start with ocid1.tenancy.")
	}
	if !strings.HasPrefix(fields["user_ocid"], "ocid1.user.") {
		return failure("Invalid user OCID", "user_ocid must start with ocid1.user.")
	}
	return success("User principal accepted", fields["tenancy_ocid"])
}

type ibmValidator struct{}

func (ibmValidator) Validate(credentialType string, fields map[string]string) Result {
	if credentialType != "ibm_api_key" {
		return unsupportedType(models.ProviderIBM, credentialType)
	}
	if fields["api_key"] == "" {
		return failure("Missing required field", "api_key is required")
	}
	return success("API key accepted", fields["account_id"])
}
