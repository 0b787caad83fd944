package occupancy

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func apartment() *Property {
	return &Property{
		ID:         "P2",
		Type:       TypeApartment,
		Status:     StatusAvailable,
		RentAmount: decimal.NewFromInt(1000),
		Units: []Unit{
			{ID: "u-1a", UnitNumber: "1A", RentAmount: decimal.NewFromInt(1200)},
			{ID: "u-1b", UnitNumber: "1B"},
		},
	}
}

// TestPurpose: Validates the order and outcome of assignment preconditions.
// Scope: Unit Test
// Expected: Each violated rule yields its typed error; a valid request resolves the unit.
// Test Case ID: VAL-01
func TestValidateAssignment(t *testing.T) {
	house := &Property{ID: "P1", Type: TypeHouse}
	occupiedHouse := &Property{ID: "P1", Type: TypeHouse, Occupancy: Occupancy{IsOccupied: true}}
	leased := &Tenant{ID: "T1", Leases: []Lease{{ID: "L1", PropertyID: "P1", Status: LeaseActive}}}
	fresh := &Tenant{ID: "T2"}

	tests := []struct {
		name     string
		tenant   *Tenant
		property *Property
		unit     string
		check    func(error) bool
	}{
		{"multi-unit without unit", fresh, apartment(), "", IsValidation},
		{"single-unit with unit", fresh, house, "1A", IsValidation},
		{"unknown unit", fresh, apartment(), "9Z", IsNotFound},
		{"duplicate lease", leased, house, "", IsConflict},
		{"flag without tenant counts as occupied", fresh, occupiedHouse, "", IsConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateAssignment(tt.tenant, tt.property, tt.unit)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error type: %v", err)
		})
	}

	u, err := ValidateAssignment(fresh, apartment(), "1B")
	require.NoError(t, err)
	assert.Equal(t, "u-1b", u.ID)
}

// TestPurpose: Validates lease construction defaults.
// Scope: Unit Test
// Expected: Start defaults to now, end to the default term, rent to unit then property rent.
// Test Case ID: VAL-02
func TestBuildLease_Defaults(t *testing.T) {
	now := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	p := apartment()

	l, err := buildLease("L1", now, LeaseTerms{}, p, &p.Units[0], LeaseDefaults{TermMonths: 6})
	require.NoError(t, err)
	assert.Equal(t, now, l.StartDate)
	assert.Equal(t, now.AddDate(0, 6, 0), l.EndDate)
	assert.True(t, decimal.NewFromInt(1200).Equal(l.MonthlyRent))
	assert.Equal(t, TenancyFixedTerm, l.TenancyType)
	assert.Equal(t, "u-1a", l.UnitID)
	assert.Equal(t, LeaseActive, l.Status)

	l, err = buildLease("L2", now, LeaseTerms{}, p, &p.Units[1], DefaultLeaseDefaults())
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(1000).Equal(l.MonthlyRent))

	_, err = buildLease("L3", now, LeaseTerms{}, &Property{ID: "P3", Type: TypeCondo}, nil, DefaultLeaseDefaults())
	assert.True(t, IsValidation(err))
}

// TestPurpose: Validates rejection of unusable lease terms.
// Scope: Unit Test
// Expected: Negative money, reversed dates and unknown tenancy types fail with ValidationError.
// Test Case ID: VAL-03
func TestValidateTerms(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, -1)
	neg := decimal.NewFromInt(-1)

	assert.NoError(t, ValidateTerms(LeaseTerms{}))
	assert.True(t, IsValidation(ValidateTerms(LeaseTerms{StartDate: &start, EndDate: &end})))
	assert.True(t, IsValidation(ValidateTerms(LeaseTerms{MonthlyRent: &neg})))
	assert.True(t, IsValidation(ValidateTerms(LeaseTerms{SecurityDeposit: &neg})))
	assert.True(t, IsValidation(ValidateTerms(LeaseTerms{TenancyType: "weekly"})))
}

// TestPurpose: Validates the invariant oracle over hand-built inconsistent states.
// Scope: Unit Test
// Expected: Each inconsistency is reported once with its kind.
// Test Case ID: VAL-04
func TestVerify_Kinds(t *testing.T) {
	tenants := []*Tenant{
		{ID: "T1", Leases: []Lease{
			{ID: "L1", PropertyID: "P1", Status: LeaseActive},
			{ID: "L2", PropertyID: "P1", Status: LeaseActive},
		}},
		{ID: "T2", Leases: []Lease{{ID: "L3", PropertyID: "P3", Status: LeaseActive}}},
	}
	properties := []*Property{
		{ID: "P1", Type: TypeHouse, Occupancy: Occupancy{TenantID: "T1", IsOccupied: false}},
		{ID: "P2", Type: TypeHouse, Occupancy: Occupancy{TenantID: "T2", IsOccupied: true}},
		{ID: "P3", Type: TypeHouse, Occupancy: Occupancy{IsOccupied: true}},
	}

	kinds := map[DivergenceKind]int{}
	for _, d := range Verify(tenants, properties) {
		kinds[d.Kind]++
	}
	assert.Equal(t, map[DivergenceKind]int{
		DivergenceDuplicateActiveLease:      1,
		DivergenceTenantWithoutOccupiedFlag: 1,
		DivergencePointerWithoutLease:       1,
		DivergenceLeaseWithoutPointer:       1,
		DivergenceOccupiedWithoutTenant:     1,
	}, kinds)
}

// TestPurpose: Validates multi-unit status derivation and maintenance preservation.
// Scope: Unit Test
// Expected: The building is occupied only when all units are; vacating keeps maintenance status.
// Test Case ID: VAL-05
func TestProperty_OccupyVacate(t *testing.T) {
	p := apartment()
	lease := &Lease{StartDate: time.Now(), EndDate: time.Now().AddDate(1, 0, 0)}

	require.True(t, p.occupy("u-1a", "T1", lease))
	assert.Equal(t, StatusAvailable, p.Status)
	require.True(t, p.occupy("u-1b", "T2", lease))
	assert.Equal(t, StatusOccupied, p.Status)
	assert.False(t, p.occupy("u-9z", "T3", lease))

	p.Units[0].Status = StatusMaintenance
	require.True(t, p.vacate("u-1a"))
	assert.Equal(t, StatusMaintenance, p.Units[0].Status)
	assert.Equal(t, StatusAvailable, p.Status)
}
