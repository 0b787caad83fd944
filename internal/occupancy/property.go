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

// PropertyType is the kind of a property
type PropertyType string

// Property types
const (
	TypeHouse      PropertyType = "house"
	TypeCondo      PropertyType = "condo"
	TypeTownhouse  PropertyType = "townhouse"
	TypeApartment  PropertyType = "apartment"
	TypeCommercial PropertyType = "commercial"
)

// IsMultiUnit reports whether tenants are assigned to units rather than the whole property
func (t PropertyType) IsMultiUnit() bool {
	return t == TypeApartment || t == TypeCommercial
}

// Status is the availability of a property or unit
type Status string

// Status constants
const (
	StatusAvailable   Status = "available"
	StatusOccupied    Status = "occupied"
	StatusMaintenance Status = "maintenance"
)

// Occupancy is the occupancy pointer of a single-unit property
type Occupancy struct {
	TenantID    string          `json:"tenant_id,omitempty"`
	IsOccupied  bool            `json:"is_occupied"`
	LeaseStart  *time.Time      `json:"lease_start,omitempty"`
	LeaseEnd    *time.Time      `json:"lease_end,omitempty"`
	MonthlyRent decimal.Decimal `json:"monthly_rent"`
}

// Unit is an independently occupiable part of a multi-unit property
type Unit struct {
	ID         string          `json:"id"`
	UnitNumber string          `json:"unit_number"`
	TenantID   string          `json:"tenant_id,omitempty"`
	IsOccupied bool            `json:"is_occupied"`
	Status     Status          `json:"status"`
	RentAmount decimal.Decimal `json:"rent_amount"`
	LeaseStart *time.Time      `json:"lease_start,omitempty"`
	LeaseEnd   *time.Time      `json:"lease_end,omitempty"`
}

// Property is a rentable asset owned by a managing user
type Property struct {
	ID              string          `json:"id"`
	OwnerID         string          `json:"owner_id"`
	Name            string          `json:"name"`
	Type            PropertyType    `json:"type"`
	Status          Status          `json:"status"`
	RentAmount      decimal.Decimal `json:"rent_amount"`
	SecurityDeposit decimal.Decimal `json:"security_deposit"`
	Occupancy       Occupancy       `json:"occupancy"`
	Units           []Unit          `json:"units,omitempty"`
	Version         int64           `json:"-"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// FindUnit returns the unit matching ref by internal ID or by unit number
func (p *Property) FindUnit(ref string) *Unit {
	if ref == "" {
		return nil
	}
	for i := range p.Units {
		if p.Units[i].ID == ref {
			return &p.Units[i]
		}
	}
	for i := range p.Units {
		if p.Units[i].UnitNumber == ref {
			return &p.Units[i]
		}
	}
	return nil
}

// Pointer returns the tenant reference and occupied flag of the property
// (unitID empty) or of the unit with the given ID. ok is false when the
// unit does not exist.
func (p *Property) Pointer(unitID string) (tenantID string, occupied bool, ok bool) {
	if unitID == "" {
		return p.Occupancy.TenantID, p.Occupancy.IsOccupied, true
	}
	u := p.FindUnit(unitID)
	if u == nil {
		return "", false, false
	}
	return u.TenantID, u.IsOccupied, true
}

// ReferencesTenant reports whether the property or any of its units points at tenantID
func (p *Property) ReferencesTenant(tenantID string) bool {
	if p.Occupancy.TenantID == tenantID {
		return true
	}
	for i := range p.Units {
		if p.Units[i].TenantID == tenantID {
			return true
		}
	}
	return false
}

// occupy points the property or unit at the lease's tenant
func (p *Property) occupy(unitID, tenantID string, lease *Lease) bool {
	start, end := lease.StartDate, lease.EndDate
	if unitID == "" {
		p.Occupancy = Occupancy{
			TenantID:    tenantID,
			IsOccupied:  true,
			LeaseStart:  &start,
			LeaseEnd:    &end,
			MonthlyRent: lease.MonthlyRent,
		}
		p.Status = StatusOccupied
		return true
	}
	u := p.FindUnit(unitID)
	if u == nil {
		return false
	}
	u.TenantID = tenantID
	u.IsOccupied = true
	u.Status = StatusOccupied
	u.LeaseStart = &start
	u.LeaseEnd = &end
	p.refreshStatus()
	return true
}

// vacate clears the occupancy pointer of the property or unit
func (p *Property) vacate(unitID string) bool {
	if unitID == "" {
		p.Occupancy = Occupancy{}
		if p.Status != StatusMaintenance {
			p.Status = StatusAvailable
		}
		return true
	}
	u := p.FindUnit(unitID)
	if u == nil {
		return false
	}
	u.TenantID = ""
	u.IsOccupied = false
	u.LeaseStart = nil
	u.LeaseEnd = nil
	if u.Status != StatusMaintenance {
		u.Status = StatusAvailable
	}
	p.refreshStatus()
	return true
}

// refreshStatus derives a multi-unit property's status from its units
func (p *Property) refreshStatus() {
	if !p.Type.IsMultiUnit() || p.Status == StatusMaintenance {
		return
	}
	if len(p.Units) == 0 {
		p.Status = StatusAvailable
		return
	}
	for i := range p.Units {
		if !p.Units[i].IsOccupied {
			p.Status = StatusAvailable
			return
		}
	}
	p.Status = StatusOccupied
}

// Clone returns a deep copy of the property
func (p *Property) Clone() *Property {
	c := *p
	c.Occupancy.LeaseStart = cloneTime(p.Occupancy.LeaseStart)
	c.Occupancy.LeaseEnd = cloneTime(p.Occupancy.LeaseEnd)
	if p.Units != nil {
		c.Units = make([]Unit, len(p.Units))
		for i, u := range p.Units {
			u.LeaseStart = cloneTime(u.LeaseStart)
			u.LeaseEnd = cloneTime(u.LeaseEnd)
			c.Units[i] = u
		}
	}
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
