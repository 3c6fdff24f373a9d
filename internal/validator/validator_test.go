package validator

import (
	"strings"
	"testing"
)

func TestFor_UnknownProvider(t *testing.T) {
	if v := For("digitalocean"); v != nil {
		t.Errorf("expected nil validator, got %T", v)
	}
}

func TestAWS_IAMRole(t *testing.T) {
	v := For("aws")

	res := v.Validate("aws_iam_role", map[string]string{
		"role_arn":       "arn:aws:iam::123456789012:role/compliance-scan",
		"external_id":    "ext-1",
		"account_number": "123456789012",
	})
	if !res.Success || res.AccountNumber != "123456789012" {
		t.Errorf("expected success with account number, got %+v", res)
	}

	res = v.Validate("aws_iam_role", map[string]string{
		"role_arn":       "arn:aws:iam::999999999999:role/compliance-scan",
		"external_id":    "ext-1",
		"account_number": "123456789012",
	})
	if res.Success || res.Message != "Account ID mismatch" {
		t.Errorf("expected account mismatch failure, got %+v", res)
	}

	res = v.Validate("aws_iam_role", map[string]string{
		"role_arn":       "not-an-arn",
		"external_id":    "ext-1",
		"account_number": "123456789012",
	})
	if res.Success || res.Message != "Invalid Role ARN format" {
		t.Errorf("expected ARN format failure, got %+v", res)
	}
}

func TestAWS_AccessKey(t *testing.T) {
	v := For("aws")

	res := v.Validate("aws_access_key", map[string]string{
		"access_key_id":     "AKIAEXAMPLE1234",
		"secret_access_key": "secret",
	})
	if !res.Success {
		t.Errorf("expected success, got %+v", res)
	}
	if res.AccountNumber != "" {
		t.Errorf("access key cannot resolve an account number offline, got %q", res.AccountNumber)
	}

	res = v.Validate("aws_access_key", map[string]string{"access_key_id": "AKIAEXAMPLE1234"})
	if res.Success || !strings.Contains(res.Errors[0], "secret_access_key") {
		t.Errorf("expected missing-field failure, got %+v", res)
	}
}

func TestAWS_UnsupportedCredentialType(t *testing.T) {
	res := For("aws").Validate("aws_magic", nil)
	if res.Success {
		t.Fatalf("expected failure, got %+v", res)
	}
	if !strings.Contains(res.Errors[0], "aws_iam_role") {
		t.Errorf("error should list supported types, got %+v", res)
	}
}

func TestAzure_ServicePrincipal(t *testing.T) {
	v := For("azure")
	res := v.Validate("azure_service_principal", map[string]string{
		"client_id":       "cid",
		"client_secret":   "secret",
		"tenant_id":       "tid",
		"subscription_id": "sub-1",
	})
	if !res.Success || res.AccountNumber != "sub-1" {
		t.Errorf("expected success with subscription id, got %+v", res)
	}

	res = v.Validate("azure_service_principal", map[string]string{"client_id": "cid"})
	if res.Success {
		t.Errorf("expected missing-field failure, got %+v", res)
	}
	for _, want := range []string{"client_secret", "subscription_id", "tenant_id"} {
		if !strings.Contains(res.Errors[0], want) {
			t.Errorf("missing fields should include %s: %+v", want, res)
		}
	}
}

func TestGCP_ServiceAccount(t *testing.T) {
	v := For("gcp")
	key := `{"type":"service_account","project_id":"my-project","private_key":"k","client_email":"sa@my-project.iam.gserviceaccount.com"}`

	res := v.Validate("gcp_service_account", map[string]string{"service_account_json": key})
	if !res.Success || res.AccountNumber != "my-project" {
		t.Errorf("expected success with project id, got %+v", res)
	}

	res = v.Validate("gcp_service_account", map[string]string{"service_account_json": "{not json"})
	if res.Success || res.Message != "Invalid JSON format" {
		t.Errorf("expected JSON failure, got %+v", res)
	}

	res = v.Validate("gcp_service_account", map[string]string{"service_account_json": `{"type":"service_account"}`})
	if res.Success {
		t.Errorf("expected missing project_id failure, got %+v", res)
	}
}

func TestOCI_UserPrincipal(t *testing.T) {
	v := For("oci")
	res := v.Validate("oci_user_principal", map[string]string{
		"user_ocid":    "ocid1.user.oc1..aaaa",
		"tenancy_ocid": "ocid1.tenancy.oc1..bbbb",
		"fingerprint":  "aa:bb",
		"private_key":  "key",
		"region":       "us-ashburn-1",
	})
	if !res.Success || res.AccountNumber != "ocid1.tenancy.oc1..bbbb" {
		t.Errorf("expected success with tenancy ocid, got %+v", res)
	}

	res = v.Validate("oci_user_principal", map[string]string{
		"user_ocid":    "ocid1.user.oc1..aaaa",
		"tenancy_ocid": "wrong",
		"fingerprint":  "aa:bb",
		"private_key":  "key",
		"region":       "us-ashburn-1",
	})
	if res.Success {
		t.Errorf("expected tenancy OCID failure, got %+v", res)
	}
}

func TestIBM_APIKey(t *testing.T) {
	v := For("ibm")
	if res := v.Validate("ibm_api_key", map[string]string{"api_key": "k", "account_id": "acc"}); !res.Success || res.AccountNumber != "acc" {
		t.Errorf("expected success, got %+v", res)
	}
	if res := v.Validate("ibm_api_key", nil); res.Success {
		t.Errorf("expected missing api_key failure, got %+v", res)
	}
}

func TestCredentialTypes(t *testing.T) {
	types := CredentialTypes("aws")
	if len(types) != 2 || types[0] != "aws_access_key" {
		t.Errorf("unexpected aws credential types: %v", types)
	}
	if got := CredentialTypes("digitalocean"); got != nil {
		t.Errorf("expected nil for unknown provider, got %v", got)
	}
}
