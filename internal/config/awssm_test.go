package config

import (
	"testing"
)

func TestResolveValue_AWSSM_Integration(t *testing.T) {
	// Without valid AWS credentials, this should fail gracefully
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
	_, err := ResolveValue("${AWS_SM:nonexistent-secret}")
	if err == nil {
		t.Error("expected error when AWS credentials are not configured")
	}
}

func TestSecretJSONKey(t *testing.T) {
	raw := `{"token":"dapi123","port":443}`

	val, err := secretJSONKey("databricks", "token", raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != "dapi123" {
		t.Errorf("expected dapi123, got %q", val)
	}

	if _, err := secretJSONKey("databricks", "missing", raw); err == nil {
		t.Error("expected error for missing key")
	}
	if _, err := secretJSONKey("databricks", "port", raw); err == nil {
		t.Error("expected error for non-string value")
	}
	if _, err := secretJSONKey("databricks", "token", "plain"); err == nil {
		t.Error("expected error for non-JSON secret")
	}
}
