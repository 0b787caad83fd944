package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPurpose: Validates that sensitive keys are correctly identified as secrets to prevent them from being logged in plaintext.
// Scope: Unit Test
// Expected: Returns true for keys containing 'password', 'token', 'secret', etc., and false for lease metadata keys.
// Test Case ID: AUD-01
func TestAudit_IsSecret(t *testing.T) {
	tests := []struct {
		key      string
		isSecret bool
	}{
		{"password", true},
		{"Password", true},
		{"token", true},
		{"access_token", true},
		{"api_key", true},
		{"password_hash", true},
		{"credential", true},
		{"tenant_id", false},
		{"property_id", false},
		{"unit_id", false},
		{"reason", false},
		{"leases_terminated", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := isSecret(tt.key); got != tt.isSecret {
				t.Errorf("isSecret(%q) = %v, want %v", tt.key, got, tt.isSecret)
			}
		})
	}
}

// TestPurpose: Validates that audit events are written as structured records with flattened metadata.
// Scope: Unit Test
// Expected: The record carries audit_type, owner_id and a metadata group with the lease fields.
// Test Case ID: AUD-02
func TestSlogLogger_Log(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	l.Log(context.Background(), Event{
		Type:     TypeLeaseCreated,
		OwnerID:  "owner-1",
		Resource: "lease-1",
		Metadata: map[string]any{"tenant_id": "tenant-1", "api_key": "abc"},
	})

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "AUDIT_EVENT", rec["msg"])
	assert.Equal(t, TypeLeaseCreated, rec["audit_type"])
	assert.Equal(t, "owner-1", rec["owner_id"])

	meta, ok := rec["metadata"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "tenant-1", meta["tenant_id"])
	assert.Equal(t, "[REDACTED]", meta["api_key"])
}
