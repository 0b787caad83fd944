package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rentwise/rentwise/internal/occupancy"
)

const forUpdate = ` FOR UPDATE`

// session implements occupancy.Session over a pgx transaction
type session struct {
	tx pgx.Tx
}

func (s *session) FindTenant(ctx context.Context, ownerID, tenantID string) (*occupancy.Tenant, error) {
	return findTenant(ctx, s.tx, ownerID, tenantID, forUpdate)
}

func (s *session) FindProperty(ctx context.Context, ownerID, propertyID string) (*occupancy.Property, error) {
	return findProperty(ctx, s.tx, ownerID, propertyID, forUpdate)
}

func (s *session) ListTenants(ctx context.Context, ownerID string) ([]*occupancy.Tenant, error) {
	return queryTenants(ctx, s.tx, selectTenants+` WHERE owner_id = $1 ORDER BY id`+forUpdate, ownerID)
}

func (s *session) ListProperties(ctx context.Context, ownerID string) ([]*occupancy.Property, error) {
	return queryProperties(ctx, s.tx, selectProperties+` WHERE owner_id = $1 ORDER BY id`+forUpdate, ownerID)
}

func (s *session) ListPropertiesByTenant(ctx context.Context, ownerID, tenantID string) ([]*occupancy.Property, error) {
	return queryProperties(ctx, s.tx, selectProperties+` WHERE owner_id = $1`+byTenantClause+` ORDER BY id`+forUpdate, ownerID, tenantID)
}

// SaveTenant writes the tenant if its version is unchanged since it was read
func (s *session) SaveTenant(ctx context.Context, t *occupancy.Tenant) error {
	doc, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to encode tenant: %w", err)
	}
	tag, err := s.tx.Exec(ctx, `
		UPDATE tenants
		SET doc = $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND owner_id = $4 AND version = $5
	`, doc, t.UpdatedAt, t.ID, t.OwnerID, t.Version)
	if err != nil {
		return fmt.Errorf("failed to update tenant: %w", mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("tenant %s: %w", t.ID, occupancy.ErrWriteConflict)
	}
	t.Version++
	return nil
}

// SaveProperty writes the property if its version is unchanged since it was read
func (s *session) SaveProperty(ctx context.Context, p *occupancy.Property) error {
	doc, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode property: %w", err)
	}
	tag, err := s.tx.Exec(ctx, `
		UPDATE properties
		SET doc = $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND owner_id = $4 AND version = $5
	`, doc, p.UpdatedAt, p.ID, p.OwnerID, p.Version)
	if err != nil {
		return fmt.Errorf("failed to update property: %w", mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("property %s: %w", p.ID, occupancy.ErrWriteConflict)
	}
	p.Version++
	return nil
}

func (s *session) Commit(ctx context.Context) error {
	if err := s.tx.Commit(ctx); err != nil {
		return mapError(err)
	}
	return nil
}

// Rollback aborts the transaction. Rolling back a finished transaction is a no-op.
func (s *session) Rollback(ctx context.Context) error {
	err := s.tx.Rollback(ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return err
	}
	return nil
}
