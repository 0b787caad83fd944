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

import "fmt"

// Precondition checks. All of them are pure: they read snapshots and never
// write. Coordinators run them once before opening a transaction and again on
// the transaction-scoped snapshots.

// CheckUnitRule enforces that multi-unit properties get a unit reference and
// single-unit properties do not.
func CheckUnitRule(property *Property, unitRef string) error {
	if property.Type.IsMultiUnit() && unitRef == "" {
		return &ValidationError{
			Field:  "unit_id",
			Reason: fmt.Sprintf("required for %s properties", property.Type),
		}
	}
	if !property.Type.IsMultiUnit() && unitRef != "" {
		return &ValidationError{
			Field:  "unit_id",
			Reason: fmt.Sprintf("not allowed for %s properties", property.Type),
		}
	}
	return nil
}

// ResolveUnit returns the unit referenced by unitRef, matched by ID or unit
// number. An empty reference resolves to nil without error.
func ResolveUnit(property *Property, unitRef string) (*Unit, error) {
	if unitRef == "" {
		return nil, nil
	}
	u := property.FindUnit(unitRef)
	if u == nil {
		return nil, &NotFoundError{Resource: "unit", ID: unitRef}
	}
	return u, nil
}

// CheckNoDuplicate rejects a second active lease for the same pair
func CheckNoDuplicate(tenant *Tenant, propertyID, unitID string) error {
	if tenant.ActiveLease(propertyID, unitID) != nil {
		return &ConflictError{Reason: "tenant already has an active lease for this property"}
	}
	return nil
}

// CheckAvailable rejects a target that already carries a tenant reference or
// an occupied flag.
func CheckAvailable(property *Property, unit *Unit) error {
	if unit != nil {
		if unit.TenantID != "" || unit.IsOccupied {
			return &ConflictError{Reason: fmt.Sprintf("unit %s is already occupied", unit.UnitNumber)}
		}
		return nil
	}
	if property.Occupancy.TenantID != "" || property.Occupancy.IsOccupied {
		return &ConflictError{Reason: "property is already occupied"}
	}
	return nil
}

// ValidateAssignment runs every assignment precondition in order and returns
// the resolved unit (nil for single-unit properties).
func ValidateAssignment(tenant *Tenant, property *Property, unitRef string) (*Unit, error) {
	if err := CheckUnitRule(property, unitRef); err != nil {
		return nil, err
	}
	unit, err := ResolveUnit(property, unitRef)
	if err != nil {
		return nil, err
	}
	if err := CheckNoDuplicate(tenant, property.ID, unitID(unit)); err != nil {
		return nil, err
	}
	if err := CheckAvailable(property, unit); err != nil {
		return nil, err
	}
	return unit, nil
}

// ValidateUnassignment locates the active lease to terminate
func ValidateUnassignment(tenant *Tenant, property *Property, unitRef string) (*Lease, *Unit, error) {
	unit, err := ResolveUnit(property, unitRef)
	if err != nil {
		return nil, nil, err
	}
	lease := tenant.ActiveLease(property.ID, unitID(unit))
	if lease == nil {
		return nil, nil, &NotFoundError{Resource: "active lease", ID: leaseKey(property.ID, unitID(unit))}
	}
	return lease, unit, nil
}

func unitID(u *Unit) string {
	if u == nil {
		return ""
	}
	return u.ID
}

func leaseKey(propertyID, unitID string) string {
	if unitID == "" {
		return propertyID
	}
	return propertyID + "/" + unitID
}
