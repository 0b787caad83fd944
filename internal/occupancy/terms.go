package occupancy

import (
	"time"

	"github.com/shopspring/decimal"
)

// LeaseTerms are the caller-supplied lease fields. Nil fields fall back to
// defaults derived from the property and the service configuration.
type LeaseTerms struct {
	StartDate       *time.Time
	EndDate         *time.Time
	MonthlyRent     *decimal.Decimal
	SecurityDeposit *decimal.Decimal
	TenancyType     TenancyType
}

// LeaseDefaults configure how missing lease terms are filled in
type LeaseDefaults struct {
	TermMonths  int
	TenancyType TenancyType
}

// DefaultLeaseDefaults returns a one-year fixed-term lease
func DefaultLeaseDefaults() LeaseDefaults {
	return LeaseDefaults{TermMonths: 12, TenancyType: TenancyFixedTerm}
}

// ValidateTerms rejects terms that cannot produce a usable lease
func ValidateTerms(terms LeaseTerms) error {
	if terms.StartDate != nil && terms.EndDate != nil && !terms.EndDate.After(*terms.StartDate) {
		return &ValidationError{Field: "end_date", Reason: "must be after start_date"}
	}
	if terms.MonthlyRent != nil && terms.MonthlyRent.IsNegative() {
		return &ValidationError{Field: "monthly_rent", Reason: "must not be negative"}
	}
	if terms.SecurityDeposit != nil && terms.SecurityDeposit.IsNegative() {
		return &ValidationError{Field: "security_deposit", Reason: "must not be negative"}
	}
	if terms.TenancyType != "" && !terms.TenancyType.Valid() {
		return &ValidationError{Field: "tenancy_type", Reason: "unknown tenancy type " + string(terms.TenancyType)}
	}
	return nil
}

// buildLease constructs an active lease for the target, applying defaults
func buildLease(id string, now time.Time, terms LeaseTerms, property *Property, unit *Unit, defaults LeaseDefaults) (Lease, error) {
	start := now
	if terms.StartDate != nil {
		start = *terms.StartDate
	}
	months := defaults.TermMonths
	if months <= 0 {
		months = 12
	}
	end := start.AddDate(0, months, 0)
	if terms.EndDate != nil {
		end = *terms.EndDate
	}
	if !end.After(start) {
		return Lease{}, &ValidationError{Field: "end_date", Reason: "must be after start_date"}
	}

	rent := property.RentAmount
	if unit != nil && !unit.RentAmount.IsZero() {
		rent = unit.RentAmount
	}
	if terms.MonthlyRent != nil {
		rent = *terms.MonthlyRent
	}
	if rent.IsZero() && terms.MonthlyRent == nil {
		return Lease{}, &ValidationError{Field: "monthly_rent", Reason: "required when the property has no default rent"}
	}

	deposit := property.SecurityDeposit
	if terms.SecurityDeposit != nil {
		deposit = *terms.SecurityDeposit
	}

	tenancy := defaults.TenancyType
	if terms.TenancyType != "" {
		tenancy = terms.TenancyType
	}
	if tenancy == "" {
		tenancy = TenancyFixedTerm
	}

	return Lease{
		ID:              id,
		PropertyID:      property.ID,
		UnitID:          unitID(unit),
		Status:          LeaseActive,
		StartDate:       start,
		EndDate:         end,
		MonthlyRent:     rent,
		SecurityDeposit: deposit,
		TenancyType:     tenancy,
		CreatedAt:       now,
	}, nil
}
