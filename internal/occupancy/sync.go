package occupancy

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rentwise/rentwise/internal/audit"
	"github.com/rentwise/rentwise/internal/observability/logger"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// SyncAssignments treats every active lease of the owner's tenants as ground
// truth and rewrites any property or unit pointer that disagrees with it. A
// slot claimed by more than one tenant is skipped and left to the auditor. All
// repairs for the owner commit in a single transaction.
func (s *Service) SyncAssignments(ctx context.Context, ownerID string) (summary *RepairSummary, err error) {
	ctx, span := s.tracer.Start(ctx, "occupancy.SyncAssignments", trace.WithAttributes(
		attribute.String("owner.id", ownerID),
	))
	defer func() { s.finish(ctx, span, "sync", err) }()

	if err := requireIDs("owner_id", ownerID); err != nil {
		return nil, err
	}

	unlock := s.owners.lock(ownerID)
	defer unlock()

	var result RepairSummary
	err = s.inTx(ctx, "sync", func(ctx context.Context, sess Session) error {
		result = RepairSummary{}
		now := s.now()

		tenants, err := sess.ListTenants(ctx, ownerID)
		if err != nil {
			return fmt.Errorf("failed to list tenants: %w", err)
		}

		properties := make(map[string]*Property)
		missing := make(map[string]bool)
		claims := make(map[pairKey][]syncClaim)
		var slots []pairKey

		for _, t := range tenants {
			for _, lease := range t.ActiveLeases() {
				p, ok := properties[lease.PropertyID]
				if !ok && !missing[lease.PropertyID] {
					p, err = sess.FindProperty(ctx, ownerID, lease.PropertyID)
					switch {
					case errors.Is(err, ErrPropertyNotFound):
						missing[lease.PropertyID] = true
						p = nil
					case err != nil:
						return fmt.Errorf("failed to load property %s: %w", lease.PropertyID, err)
					default:
						properties[p.ID] = p
					}
				}
				if p == nil {
					result.Skipped++
					s.logger.WarnContext(ctx, "active lease references a missing property",
						logger.OwnerID(ownerID), logger.TenantID(t.ID), logger.LeaseID(lease.ID), logger.PropertyID(lease.PropertyID))
					continue
				}
				if _, _, ok := p.Pointer(lease.UnitID); !ok {
					result.Skipped++
					s.logger.WarnContext(ctx, "active lease references a missing unit",
						logger.OwnerID(ownerID), logger.TenantID(t.ID), logger.LeaseID(lease.ID),
						logger.PropertyID(p.ID), logger.UnitID(lease.UnitID))
					continue
				}

				slot := pairKey{propertyID: p.ID, unitID: lease.UnitID}
				existing := claims[slot]
				if len(existing) == 0 {
					slots = append(slots, slot)
				}
				if !hasClaimant(existing, t.ID) {
					claims[slot] = append(existing, syncClaim{tenantID: t.ID, lease: lease})
				}
			}
		}

		dirty := make(map[string]bool)
		for _, slot := range slots {
			p := properties[slot.propertyID]
			ref, occupied, _ := p.Pointer(slot.unitID)
			claimants := claims[slot]

			if len(claimants) > 1 {
				ids := make([]string, len(claimants))
				for i, c := range claimants {
					ids[i] = c.tenantID
				}
				sort.Strings(ids)
				result.Skipped++
				s.logger.WarnContext(ctx, "several tenants hold an active lease on one slot, leaving pointer as is",
					logger.OwnerID(ownerID), logger.PropertyID(p.ID), logger.UnitID(slot.unitID),
					logger.String("pointer_tenant_id", ref), logger.String("tenant_ids", strings.Join(ids, ",")))
				continue
			}

			c := claimants[0]
			if ref == c.tenantID && occupied {
				continue
			}
			if ref != "" && ref != c.tenantID {
				s.logger.WarnContext(ctx, "overwriting occupancy pointer held by another tenant",
					logger.OwnerID(ownerID), logger.TenantID(c.tenantID), logger.PropertyID(p.ID),
					logger.UnitID(slot.unitID), logger.String("pointer_tenant_id", ref))
			}

			p.occupy(slot.unitID, c.tenantID, c.lease)
			p.UpdatedAt = now
			dirty[p.ID] = true
			result.SyncedCount++
		}

		ids := make([]string, 0, len(dirty))
		for id := range dirty {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			if err := sess.SaveProperty(ctx, properties[id]); err != nil {
				return fmt.Errorf("failed to save property %s: %w", id, err)
			}
		}
		result.PropertiesUpdated = len(ids)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.inst.recordRepairs(ctx, "sync", result.SyncedCount)
	s.logger.InfoContext(ctx, "assignments synced",
		logger.OwnerID(ownerID),
		logger.Int("synced_count", result.SyncedCount),
		logger.Int("skipped", result.Skipped),
	)
	if result.SyncedCount > 0 {
		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeAssignmentsSynced,
			OwnerID:  ownerID,
			Resource: ownerID,
			Metadata: map[string]any{
				"synced_count":       result.SyncedCount,
				"properties_updated": result.PropertiesUpdated,
			},
		})
		s.afterCommit(ctx, ownerID, EventAssignmentsSynced, nil)
	}

	return &result, nil
}

// syncClaim is one tenant's active lease on a pointer slot
type syncClaim struct {
	tenantID string
	lease    *Lease
}

func hasClaimant(claims []syncClaim, tenantID string) bool {
	for _, c := range claims {
		if c.tenantID == tenantID {
			return true
		}
	}
	return false
}

// OwnerSyncResult is the outcome of SyncAssignments for one owner
type OwnerSyncResult struct {
	OwnerID string         `json:"owner_id"`
	Summary *RepairSummary `json:"summary,omitempty"`
	Err     error          `json:"-"`
}

// SyncAll runs SyncAssignments for every owner, at most concurrency owners at
// a time. A failing owner does not stop the others.
func (s *Service) SyncAll(ctx context.Context, concurrency int) ([]OwnerSyncResult, error) {
	owners, err := s.store.ListOwners(ctx)
	if err != nil {
		return nil, &TransactionError{Op: "sync_all", Err: fmt.Errorf("failed to list owners: %w", err)}
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	var (
		mu      sync.Mutex
		results = make([]OwnerSyncResult, 0, len(owners))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, ownerID := range owners {
		g.Go(func() error {
			summary, err := s.SyncAssignments(gctx, ownerID)
			if err != nil {
				s.logger.ErrorContext(gctx, "owner sync failed", logger.OwnerID(ownerID), logger.Error(err))
			}
			mu.Lock()
			results = append(results, OwnerSyncResult{OwnerID: ownerID, Summary: summary, Err: err})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}

	sort.Slice(results, func(i, j int) bool { return results[i].OwnerID < results[j].OwnerID })
	return results, nil
}
