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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/rentwise/rentwise/internal/observability/logger"
)

// DivergenceKind classifies a disagreement between leases and pointers
type DivergenceKind string

// Divergence kinds
const (
	DivergenceLeaseWithoutPointer       DivergenceKind = "lease_without_pointer"
	DivergencePointerWithoutLease       DivergenceKind = "pointer_without_lease"
	DivergenceDuplicateActiveLease      DivergenceKind = "duplicate_active_lease"
	DivergenceOccupiedWithoutTenant     DivergenceKind = "occupied_without_tenant"
	DivergenceTenantWithoutOccupiedFlag DivergenceKind = "tenant_without_occupied_flag"
)

// Divergence is one violation of the lease/pointer invariant
type Divergence struct {
	Kind       DivergenceKind `json:"kind"`
	TenantID   string         `json:"tenant_id,omitempty"`
	PropertyID string         `json:"property_id"`
	UnitID     string         `json:"unit_id,omitempty"`
	Detail     string         `json:"detail"`
}

// Auditor re-reads both aggregates after a commit and reports divergences.
// It only logs; it never repairs.
type Auditor struct {
	reader Reader
	logger *slog.Logger
	inst   *instruments
}

// NewAuditor creates an auditor over the given reader
func NewAuditor(reader Reader, l *slog.Logger, inst *instruments) *Auditor {
	if l == nil {
		l = slog.Default()
	}
	if inst == nil {
		inst = newInstruments(nil)
	}
	return &Auditor{reader: reader, logger: l.With(logger.Component("auditor")), inst: inst}
}

// Check evaluates the invariant for one (tenant, property, unit) triple
func (a *Auditor) Check(ctx context.Context, ownerID, tenantID, propertyID, unitID string) ([]Divergence, error) {
	tenant, err := a.reader.FindTenant(ctx, ownerID, tenantID)
	if errors.Is(err, ErrTenantNotFound) {
		tenant = &Tenant{ID: tenantID, OwnerID: ownerID}
	} else if err != nil {
		return nil, fmt.Errorf("failed to read tenant: %w", err)
	}

	property, err := a.reader.FindProperty(ctx, ownerID, propertyID)
	if errors.Is(err, ErrPropertyNotFound) {
		var out []Divergence
		if tenant.countActive(propertyID, unitID) > 0 {
			out = append(out, Divergence{
				Kind:       DivergenceLeaseWithoutPointer,
				TenantID:   tenantID,
				PropertyID: propertyID,
				UnitID:     unitID,
				Detail:     "property does not exist",
			})
		}
		a.report(ctx, ownerID, out)
		return out, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read property: %w", err)
	}

	out := append(checkPair(tenant, property, unitID), checkSlot(property, unitID)...)
	a.report(ctx, ownerID, out)
	return out, nil
}

// CheckOwner evaluates the invariant across all of an owner's data
func (a *Auditor) CheckOwner(ctx context.Context, ownerID string) ([]Divergence, error) {
	tenants, err := a.reader.ListTenants(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	properties, err := a.reader.ListProperties(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list properties: %w", err)
	}
	out := Verify(tenants, properties)
	a.report(ctx, ownerID, out)
	return out, nil
}

func (a *Auditor) report(ctx context.Context, ownerID string, divergences []Divergence) {
	for _, d := range divergences {
		a.inst.recordDivergence(ctx, d.Kind)
		a.logger.ErrorContext(ctx, "assignment divergence detected",
			logger.OwnerID(ownerID),
			logger.String("kind", string(d.Kind)),
			logger.TenantID(d.TenantID),
			logger.PropertyID(d.PropertyID),
			logger.UnitID(d.UnitID),
			logger.String("detail", d.Detail),
		)
	}
}

// checkPair evaluates the invariant between one tenant and one pointer slot
func checkPair(tenant *Tenant, property *Property, unitID string) []Divergence {
	var out []Divergence
	add := func(kind DivergenceKind, detail string) {
		out = append(out, Divergence{
			Kind:       kind,
			TenantID:   tenant.ID,
			PropertyID: property.ID,
			UnitID:     unitID,
			Detail:     detail,
		})
	}

	active := tenant.countActive(property.ID, unitID)
	ref, occupied, ok := property.Pointer(unitID)
	if !ok {
		if active > 0 {
			add(DivergenceLeaseWithoutPointer, "unit does not exist")
		}
		return out
	}

	if active > 1 {
		add(DivergenceDuplicateActiveLease, fmt.Sprintf("%d active leases", active))
	}
	if active > 0 && ref != tenant.ID {
		if ref == "" {
			add(DivergenceLeaseWithoutPointer, "pointer is empty")
		} else {
			add(DivergenceLeaseWithoutPointer, "pointer references tenant "+ref)
		}
	}
	if active == 0 && ref == tenant.ID {
		add(DivergencePointerWithoutLease, "no active lease")
	}
	if ref == tenant.ID && !occupied {
		add(DivergenceTenantWithoutOccupiedFlag, "occupied flag is false")
	}
	return out
}

// checkSlot reports a pointer slot flagged occupied without any tenant
func checkSlot(property *Property, unitID string) []Divergence {
	ref, occupied, ok := property.Pointer(unitID)
	if !ok || ref != "" || !occupied {
		return nil
	}
	return []Divergence{{
		Kind:       DivergenceOccupiedWithoutTenant,
		PropertyID: property.ID,
		UnitID:     unitID,
		Detail:     "occupied flag set without tenant reference",
	}}
}

type pairKey struct {
	tenantID   string
	propertyID string
	unitID     string
}

// Verify evaluates the full invariant over an owner's tenants and
// properties: every active lease has a matching occupied pointer and every
// pointer has exactly one matching active lease.
func Verify(tenants []*Tenant, properties []*Property) []Divergence {
	byTenant := make(map[string]*Tenant, len(tenants))
	for _, t := range tenants {
		byTenant[t.ID] = t
	}
	byProperty := make(map[string]*Property, len(properties))
	for _, p := range properties {
		byProperty[p.ID] = p
	}

	checked := make(map[pairKey]bool)
	var out []Divergence

	for _, t := range tenants {
		for _, lease := range t.ActiveLeases() {
			key := pairKey{t.ID, lease.PropertyID, lease.UnitID}
			if checked[key] {
				continue
			}
			checked[key] = true
			p, ok := byProperty[lease.PropertyID]
			if !ok {
				out = append(out, Divergence{
					Kind:       DivergenceLeaseWithoutPointer,
					TenantID:   t.ID,
					PropertyID: lease.PropertyID,
					UnitID:     lease.UnitID,
					Detail:     "property does not exist",
				})
				continue
			}
			out = append(out, checkPair(t, p, lease.UnitID)...)
		}
	}

	for _, p := range properties {
		slots := []string{""}
		for i := range p.Units {
			slots = append(slots, p.Units[i].ID)
		}
		for _, uid := range slots {
			ref, _, _ := p.Pointer(uid)
			if ref == "" {
				out = append(out, checkSlot(p, uid)...)
				continue
			}
			key := pairKey{ref, p.ID, uid}
			if checked[key] {
				continue
			}
			checked[key] = true
			t, ok := byTenant[ref]
			if !ok {
				out = append(out, Divergence{
					Kind:       DivergencePointerWithoutLease,
					TenantID:   ref,
					PropertyID: p.ID,
					UnitID:     uid,
					Detail:     "tenant does not exist",
				})
				continue
			}
			out = append(out, checkPair(t, p, uid)...)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].PropertyID != out[j].PropertyID {
			return out[i].PropertyID < out[j].PropertyID
		}
		return out[i].UnitID < out[j].UnitID
	})
	return out
}
