package occupancy

import (
	"context"
	"errors"
	"fmt"

	"github.com/rentwise/rentwise/internal/audit"
	"github.com/rentwise/rentwise/internal/observability/logger"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ForceUnassignReason is recorded on leases terminated by ForceUnassign
const ForceUnassignReason = "force_unassigned"

// RepairSummary reports what a maintenance job changed
type RepairSummary struct {
	PropertiesUpdated int `json:"properties_updated"`
	LeasesTerminated  int `json:"leases_terminated"`
	SyncedCount       int `json:"synced_count"`
	Skipped           int `json:"skipped"`
}

// ForceUnassign clears every property-side pointer to the tenant and
// terminates every active lease the tenant still holds, in one transaction.
// Unlike Unassign it does not require the two sides to agree: pointers are
// cleared even without a matching lease, and a missing tenant does not stop
// the property cleanup.
func (s *Service) ForceUnassign(ctx context.Context, ownerID, tenantID string) (summary *RepairSummary, err error) {
	ctx, span := s.tracer.Start(ctx, "occupancy.ForceUnassign", trace.WithAttributes(
		attribute.String("owner.id", ownerID),
		attribute.String("tenant.id", tenantID),
	))
	defer func() { s.finish(ctx, span, "force_unassign", err) }()

	if err := requireIDs("owner_id", ownerID, "tenant_id", tenantID); err != nil {
		return nil, err
	}

	unlock := s.owners.lock(ownerID)
	defer unlock()

	var result RepairSummary
	err = s.inTx(ctx, "force_unassign", func(ctx context.Context, sess Session) error {
		result = RepairSummary{}
		now := s.now()

		// tenant before properties, the same lock order as Assign and Unassign
		tenant, err := sess.FindTenant(ctx, ownerID, tenantID)
		switch {
		case errors.Is(err, ErrTenantNotFound):
			tenant = nil
			s.logger.WarnContext(ctx, "tenant missing during force unassign, cleaning property side only",
				logger.OwnerID(ownerID), logger.TenantID(tenantID))
		case err != nil:
			return fmt.Errorf("failed to load tenant: %w", err)
		}

		properties, err := sess.ListPropertiesByTenant(ctx, ownerID, tenantID)
		if err != nil {
			return fmt.Errorf("failed to list properties: %w", err)
		}
		for _, p := range properties {
			changed := false
			if p.Occupancy.TenantID == tenantID {
				p.vacate("")
				changed = true
			}
			for i := range p.Units {
				if p.Units[i].TenantID == tenantID {
					p.vacate(p.Units[i].ID)
					changed = true
				}
			}
			if !changed {
				continue
			}
			p.UpdatedAt = now
			if err := sess.SaveProperty(ctx, p); err != nil {
				return fmt.Errorf("failed to save property %s: %w", p.ID, err)
			}
			result.PropertiesUpdated++
		}

		if tenant == nil {
			return nil
		}
		for _, lease := range tenant.ActiveLeases() {
			lease.terminate(now, ForceUnassignReason)
			result.LeasesTerminated++
		}
		if result.LeasesTerminated == 0 {
			return nil
		}
		tenant.UpdatedAt = now
		if err := sess.SaveTenant(ctx, tenant); err != nil {
			return fmt.Errorf("failed to save tenant: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.inst.recordRepairs(ctx, "force_unassign", result.PropertiesUpdated+result.LeasesTerminated)
	s.logger.InfoContext(ctx, "tenant force unassigned",
		logger.OwnerID(ownerID),
		logger.TenantID(tenantID),
		logger.Int("properties_updated", result.PropertiesUpdated),
		logger.Int("leases_terminated", result.LeasesTerminated),
	)
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeTenantForceUnassigned,
		OwnerID:  ownerID,
		Resource: tenantID,
		Metadata: map[string]any{
			"properties_updated": result.PropertiesUpdated,
			"leases_terminated":  result.LeasesTerminated,
		},
	})
	s.afterCommit(ctx, ownerID, EventTenantForceUnassigned, nil)

	return &result, nil
}
