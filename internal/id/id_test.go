package id

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPurpose: Validates that generated identifiers are UUIDv7 and time ordered.
// Scope: Unit Test
// Expected: Two consecutive IDs parse as version 7 and sort in creation order.
// Test Case ID: ID-01
func TestNewUUIDv7(t *testing.T) {
	a := NewUUIDv7()
	b := NewUUIDv7()

	ua, err := uuid.Parse(a)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), ua.Version())

	ub, err := uuid.Parse(b)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), ub.Version())

	assert.NotEqual(t, a, b)
	assert.LessOrEqual(t, a[:13], b[:13])
}
