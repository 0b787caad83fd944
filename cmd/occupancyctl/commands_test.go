package main

import (
	"fmt"
	"testing"
	"time"

	"github.com/rentwise/rentwise/internal/occupancy"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPurpose: Validates parsing of lease term flags.
// Scope: Unit Test
// Expected: Dates and amounts are parsed; malformed values are ValidationErrors naming the field.
// Test Case ID: CLI-01
func TestParseTerms(t *testing.T) {
	terms, err := parseTerms("2026-04-01", "2027-03-31", "1450.50", "", "month_to_month")
	require.NoError(t, err)
	require.NotNil(t, terms.StartDate)
	assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), *terms.StartDate)
	require.NotNil(t, terms.MonthlyRent)
	assert.True(t, decimal.RequireFromString("1450.50").Equal(*terms.MonthlyRent))
	assert.Nil(t, terms.SecurityDeposit)
	assert.Equal(t, occupancy.TenancyMonthToMonth, terms.TenancyType)

	_, err = parseTerms("04/01/2026", "", "", "", "")
	var verr *occupancy.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "start_date", verr.Field)

	_, err = parseTerms("", "", "lots", "", "")
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "monthly_rent", verr.Field)
}

// TestPurpose: Validates exit status mapping of engine errors.
// Scope: Unit Test
// Expected: Each error kind has a distinct status; unknown errors exit 1.
// Test Case ID: CLI-02
func TestExitCode(t *testing.T) {
	assert.Equal(t, 2, exitCode(&occupancy.ValidationError{Field: "unit_id"}))
	assert.Equal(t, 3, exitCode(&occupancy.NotFoundError{Resource: "tenant"}))
	assert.Equal(t, 4, exitCode(&occupancy.ConflictError{Reason: "occupied"}))
	assert.Equal(t, 5, exitCode(&occupancy.TransactionError{Op: "assign", Err: occupancy.ErrWriteConflict}))
	assert.Equal(t, 6, exitCode(fmt.Errorf("audit: %w", errDivergent)))
	assert.Equal(t, 1, exitCode(fmt.Errorf("boom")))
}

// TestPurpose: Validates the command tree.
// Scope: Unit Test
// Expected: Every maintenance and assignment command is registered.
// Test Case ID: CLI-03
func TestRootCommand(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"migrate", "import", "assign", "unassign", "force-unassign", "sync", "sync-all", "audit"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
}
