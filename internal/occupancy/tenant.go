// Copyright 2026 The Rentwise Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package occupancy

import (
	"time"

	"github.com/shopspring/decimal"
)

// LeaseStatus is the lifecycle state of a lease
type LeaseStatus string

// Lease statuses. A terminated lease is immutable history.
const (
	LeaseActive     LeaseStatus = "active"
	LeaseTerminated LeaseStatus = "terminated"
)

// TenancyType describes how a lease renews
type TenancyType string

// Tenancy types
const (
	TenancyFixedTerm    TenancyType = "fixed_term"
	TenancyMonthToMonth TenancyType = "month_to_month"
)

// Valid reports whether t is a known tenancy type
func (t TenancyType) Valid() bool {
	return t == TenancyFixedTerm || t == TenancyMonthToMonth
}

// Lease is one occupancy period of a tenant for a (property, unit) pair
type Lease struct {
	ID                string          `json:"id"`
	PropertyID        string          `json:"property_id"`
	UnitID            string          `json:"unit_id,omitempty"`
	Status            LeaseStatus     `json:"status"`
	StartDate         time.Time       `json:"start_date"`
	EndDate           time.Time       `json:"end_date"`
	MonthlyRent       decimal.Decimal `json:"monthly_rent"`
	SecurityDeposit   decimal.Decimal `json:"security_deposit"`
	TenancyType       TenancyType     `json:"tenancy_type"`
	TerminationDate   *time.Time      `json:"termination_date,omitempty"`
	TerminationReason string          `json:"termination_reason,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

// IsActive reports whether the lease is still active
func (l *Lease) IsActive() bool {
	return l.Status == LeaseActive
}

// Covers reports whether the lease references the given property and unit.
// An empty unitID matches only leases without a unit.
func (l *Lease) Covers(propertyID, unitID string) bool {
	return l.PropertyID == propertyID && l.UnitID == unitID
}

// terminate moves an active lease to terminated
func (l *Lease) terminate(at time.Time, reason string) {
	l.Status = LeaseTerminated
	l.TerminationDate = &at
	l.TerminationReason = reason
}

// Tenant is a renter managed by an owner, carrying its lease history
type Tenant struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email"`
	Leases    []Lease   `json:"leases"`
	Version   int64     `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ActiveLease returns the active lease for the (property, unit) pair, if any
func (t *Tenant) ActiveLease(propertyID, unitID string) *Lease {
	for i := range t.Leases {
		if t.Leases[i].IsActive() && t.Leases[i].Covers(propertyID, unitID) {
			return &t.Leases[i]
		}
	}
	return nil
}

// ActiveLeases returns pointers to every active lease of the tenant
func (t *Tenant) ActiveLeases() []*Lease {
	var out []*Lease
	for i := range t.Leases {
		if t.Leases[i].IsActive() {
			out = append(out, &t.Leases[i])
		}
	}
	return out
}

// countActive counts active leases for the (property, unit) pair
func (t *Tenant) countActive(propertyID, unitID string) int {
	n := 0
	for i := range t.Leases {
		if t.Leases[i].IsActive() && t.Leases[i].Covers(propertyID, unitID) {
			n++
		}
	}
	return n
}

// Clone returns a deep copy of the tenant
func (t *Tenant) Clone() *Tenant {
	c := *t
	c.Leases = make([]Lease, len(t.Leases))
	for i, l := range t.Leases {
		if l.TerminationDate != nil {
			d := *l.TerminationDate
			l.TerminationDate = &d
		}
		c.Leases[i] = l
	}
	return &c
}
