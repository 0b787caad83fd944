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
	"fmt"

	"github.com/rentwise/rentwise/internal/audit"
	"github.com/rentwise/rentwise/internal/observability/logger"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultUnassignReason is recorded when the caller gives no reason
const DefaultUnassignReason = "unassigned"

// AssignRequest carries an authorization-checked assignment
type AssignRequest struct {
	OwnerID    string
	TenantID   string
	PropertyID string
	UnitID     string // unit ID or unit number; required for multi-unit properties
	Terms      LeaseTerms
}

// AssignmentResult is the committed state after an assignment
type AssignmentResult struct {
	Tenant   *Tenant
	Property *Property
	Lease    Lease
}

// UnassignRequest carries an authorization-checked unassignment
type UnassignRequest struct {
	OwnerID    string
	TenantID   string
	PropertyID string
	UnitID     string
	Reason     string
}

// UnassignmentResult is the committed state after an unassignment
type UnassignmentResult struct {
	Tenant   *Tenant
	Property *Property
	Lease    Lease
}

// Assign creates an active lease for the tenant and points the property (or
// unit) at the tenant, atomically.
func (s *Service) Assign(ctx context.Context, req AssignRequest) (res *AssignmentResult, err error) {
	ctx, span := s.tracer.Start(ctx, "occupancy.Assign", trace.WithAttributes(
		attribute.String("owner.id", req.OwnerID),
		attribute.String("tenant.id", req.TenantID),
		attribute.String("property.id", req.PropertyID),
		attribute.String("unit.id", req.UnitID),
	))
	defer func() { s.finish(ctx, span, "assign", err) }()

	if err := requireIDs("owner_id", req.OwnerID, "tenant_id", req.TenantID, "property_id", req.PropertyID); err != nil {
		return nil, err
	}
	if err := ValidateTerms(req.Terms); err != nil {
		return nil, err
	}

	// Fast fail on committed state before opening a transaction
	if err := s.precheckAssign(ctx, req); err != nil {
		return nil, preflight("assign", err)
	}

	var result AssignmentResult
	err = s.inTx(ctx, "assign", func(ctx context.Context, sess Session) error {
		tenant, err := loadTenant(ctx, sess, req.OwnerID, req.TenantID)
		if err != nil {
			return err
		}
		property, err := loadProperty(ctx, sess, req.OwnerID, req.PropertyID)
		if err != nil {
			return err
		}

		unit, err := ValidateAssignment(tenant, property, req.UnitID)
		if err != nil {
			return err
		}

		now := s.now()
		lease, err := buildLease(s.newID(), now, req.Terms, property, unit, s.defaults)
		if err != nil {
			return err
		}

		tenant.Leases = append(tenant.Leases, lease)
		tenant.UpdatedAt = now
		if err := sess.SaveTenant(ctx, tenant); err != nil {
			return fmt.Errorf("failed to save tenant: %w", err)
		}

		if !property.occupy(lease.UnitID, tenant.ID, &lease) {
			return &NotFoundError{Resource: "unit", ID: req.UnitID}
		}
		property.UpdatedAt = now
		if err := sess.SaveProperty(ctx, property); err != nil {
			return fmt.Errorf("failed to save property: %w", err)
		}

		result = AssignmentResult{Tenant: tenant, Property: property, Lease: lease}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "tenant assigned",
		logger.OwnerID(req.OwnerID),
		logger.TenantID(req.TenantID),
		logger.PropertyID(req.PropertyID),
		logger.UnitID(result.Lease.UnitID),
		logger.LeaseID(result.Lease.ID),
	)
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeLeaseCreated,
		OwnerID:  req.OwnerID,
		Resource: result.Lease.ID,
		Metadata: map[string]any{
			"tenant_id":   req.TenantID,
			"property_id": req.PropertyID,
			"unit_id":     result.Lease.UnitID,
			"end_date":    result.Lease.EndDate,
		},
	})
	s.afterCommit(ctx, req.OwnerID, EventTenantAssigned, &auditTarget{
		ownerID:    req.OwnerID,
		tenantID:   req.TenantID,
		propertyID: req.PropertyID,
		unitID:     result.Lease.UnitID,
	})

	return &result, nil
}

func (s *Service) precheckAssign(ctx context.Context, req AssignRequest) error {
	tenant, err := loadTenant(ctx, s.store, req.OwnerID, req.TenantID)
	if err != nil {
		return err
	}
	property, err := loadProperty(ctx, s.store, req.OwnerID, req.PropertyID)
	if err != nil {
		return err
	}
	_, err = ValidateAssignment(tenant, property, req.UnitID)
	return err
}

// Unassign terminates the tenant's active lease for the property (or unit)
// and returns the pointer to the available state, atomically.
func (s *Service) Unassign(ctx context.Context, req UnassignRequest) (res *UnassignmentResult, err error) {
	ctx, span := s.tracer.Start(ctx, "occupancy.Unassign", trace.WithAttributes(
		attribute.String("owner.id", req.OwnerID),
		attribute.String("tenant.id", req.TenantID),
		attribute.String("property.id", req.PropertyID),
		attribute.String("unit.id", req.UnitID),
	))
	defer func() { s.finish(ctx, span, "unassign", err) }()

	if err := requireIDs("owner_id", req.OwnerID, "tenant_id", req.TenantID, "property_id", req.PropertyID); err != nil {
		return nil, err
	}
	reason := req.Reason
	if reason == "" {
		reason = DefaultUnassignReason
	}

	if err := s.precheckUnassign(ctx, req); err != nil {
		return nil, preflight("unassign", err)
	}

	var result UnassignmentResult
	err = s.inTx(ctx, "unassign", func(ctx context.Context, sess Session) error {
		tenant, err := loadTenant(ctx, sess, req.OwnerID, req.TenantID)
		if err != nil {
			return err
		}
		property, err := loadProperty(ctx, sess, req.OwnerID, req.PropertyID)
		if err != nil {
			return err
		}

		lease, unit, err := ValidateUnassignment(tenant, property, req.UnitID)
		if err != nil {
			return err
		}

		now := s.now()
		lease.terminate(now, reason)
		tenant.UpdatedAt = now
		if err := sess.SaveTenant(ctx, tenant); err != nil {
			return fmt.Errorf("failed to save tenant: %w", err)
		}

		uid := unitID(unit)
		ref, occupied, _ := property.Pointer(uid)
		switch {
		case ref == tenant.ID, ref == "" && occupied:
			property.vacate(uid)
			property.UpdatedAt = now
			if err := sess.SaveProperty(ctx, property); err != nil {
				return fmt.Errorf("failed to save property: %w", err)
			}
		case ref != "":
			// Another tenant holds the pointer; leave it for the sync job.
			s.logger.WarnContext(ctx, "occupancy pointer held by another tenant, leaving it in place",
				logger.OwnerID(req.OwnerID),
				logger.TenantID(tenant.ID),
				logger.PropertyID(property.ID),
				logger.UnitID(uid),
				logger.String("pointer_tenant_id", ref),
			)
		}

		result = UnassignmentResult{Tenant: tenant, Property: property, Lease: *lease}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "tenant unassigned",
		logger.OwnerID(req.OwnerID),
		logger.TenantID(req.TenantID),
		logger.PropertyID(req.PropertyID),
		logger.UnitID(result.Lease.UnitID),
		logger.LeaseID(result.Lease.ID),
	)
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeLeaseTerminated,
		OwnerID:  req.OwnerID,
		Resource: result.Lease.ID,
		Metadata: map[string]any{
			"tenant_id":   req.TenantID,
			"property_id": req.PropertyID,
			"unit_id":     result.Lease.UnitID,
			"reason":      reason,
		},
	})
	s.afterCommit(ctx, req.OwnerID, EventTenantUnassigned, &auditTarget{
		ownerID:    req.OwnerID,
		tenantID:   req.TenantID,
		propertyID: req.PropertyID,
		unitID:     result.Lease.UnitID,
	})

	return &result, nil
}

func (s *Service) precheckUnassign(ctx context.Context, req UnassignRequest) error {
	tenant, err := loadTenant(ctx, s.store, req.OwnerID, req.TenantID)
	if err != nil {
		return err
	}
	property, err := loadProperty(ctx, s.store, req.OwnerID, req.PropertyID)
	if err != nil {
		return err
	}
	_, _, err = ValidateUnassignment(tenant, property, req.UnitID)
	return err
}
