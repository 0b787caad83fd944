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

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rentwise/rentwise/internal/occupancy"
)

// querier is satisfied by both the pool and a transaction
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	selectTenants    = `SELECT version, doc FROM tenants`
	selectProperties = `SELECT version, doc FROM properties`

	// Matches the single-unit pointer or any unit pointing at the tenant
	byTenantClause = ` AND (doc->'occupancy'->>'tenant_id' = $2
		OR doc->'units' @> jsonb_build_array(jsonb_build_object('tenant_id', $2::text)))`
)

// Store implements occupancy.Store on PostgreSQL
type Store struct {
	db *DB
}

var _ occupancy.Store = (*Store)(nil)

// NewStore creates a new store
func NewStore(db *DB) *Store {
	return &Store{db: db}
}

// FindTenant retrieves a tenant by ID within the owner's scope
func (s *Store) FindTenant(ctx context.Context, ownerID, tenantID string) (*occupancy.Tenant, error) {
	return findTenant(ctx, s.db.pool, ownerID, tenantID, "")
}

// FindProperty retrieves a property by ID within the owner's scope
func (s *Store) FindProperty(ctx context.Context, ownerID, propertyID string) (*occupancy.Property, error) {
	return findProperty(ctx, s.db.pool, ownerID, propertyID, "")
}

// ListTenants lists the owner's tenants
func (s *Store) ListTenants(ctx context.Context, ownerID string) ([]*occupancy.Tenant, error) {
	return queryTenants(ctx, s.db.pool, selectTenants+` WHERE owner_id = $1 ORDER BY id`, ownerID)
}

// ListProperties lists the owner's properties
func (s *Store) ListProperties(ctx context.Context, ownerID string) ([]*occupancy.Property, error) {
	return queryProperties(ctx, s.db.pool, selectProperties+` WHERE owner_id = $1 ORDER BY id`, ownerID)
}

// ListPropertiesByTenant lists the owner's properties that reference the tenant
func (s *Store) ListPropertiesByTenant(ctx context.Context, ownerID, tenantID string) ([]*occupancy.Property, error) {
	return queryProperties(ctx, s.db.pool, selectProperties+` WHERE owner_id = $1`+byTenantClause+` ORDER BY id`, ownerID, tenantID)
}

// ListOwners lists every owner with at least one tenant or property
func (s *Store) ListOwners(ctx context.Context) ([]string, error) {
	rows, err := s.db.pool.Query(ctx, `
		SELECT owner_id FROM tenants
		UNION
		SELECT owner_id FROM properties
		ORDER BY 1
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list owners: %w", err)
	}
	owners, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan owners: %w", err)
	}
	return owners, nil
}

// Begin starts a read-committed transaction. Reads through the session lock
// the rows they return until commit or rollback.
func (s *Store) Begin(ctx context.Context) (occupancy.Session, error) {
	tx, err := s.db.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &session{tx: tx}, nil
}

// PutTenant inserts or replaces a tenant document outside the engine, for
// imports and fixtures
func (s *Store) PutTenant(ctx context.Context, t *occupancy.Tenant) error {
	doc, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to encode tenant: %w", err)
	}
	now := time.Now()
	err = s.db.pool.QueryRow(ctx, `
		INSERT INTO tenants (id, owner_id, version, doc, created_at, updated_at)
		VALUES ($1, $2, 1, $3, $4, $4)
		ON CONFLICT (id) DO UPDATE
		SET owner_id = EXCLUDED.owner_id, doc = EXCLUDED.doc,
			version = tenants.version + 1, updated_at = EXCLUDED.updated_at
		RETURNING version
	`, t.ID, t.OwnerID, doc, now).Scan(&t.Version)
	if err != nil {
		return fmt.Errorf("failed to upsert tenant: %w", err)
	}
	return nil
}

// PutProperty inserts or replaces a property document outside the engine
func (s *Store) PutProperty(ctx context.Context, p *occupancy.Property) error {
	doc, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode property: %w", err)
	}
	now := time.Now()
	err = s.db.pool.QueryRow(ctx, `
		INSERT INTO properties (id, owner_id, version, doc, created_at, updated_at)
		VALUES ($1, $2, 1, $3, $4, $4)
		ON CONFLICT (id) DO UPDATE
		SET owner_id = EXCLUDED.owner_id, doc = EXCLUDED.doc,
			version = properties.version + 1, updated_at = EXCLUDED.updated_at
		RETURNING version
	`, p.ID, p.OwnerID, doc, now).Scan(&p.Version)
	if err != nil {
		return fmt.Errorf("failed to upsert property: %w", err)
	}
	return nil
}

func findTenant(ctx context.Context, q querier, ownerID, tenantID, lock string) (*occupancy.Tenant, error) {
	var (
		version int64
		doc     []byte
	)
	err := q.QueryRow(ctx, selectTenants+` WHERE id = $1 AND owner_id = $2`+lock, tenantID, ownerID).Scan(&version, &doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, occupancy.ErrTenantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant: %w", mapError(err))
	}
	return decodeTenant(version, doc)
}

func findProperty(ctx context.Context, q querier, ownerID, propertyID, lock string) (*occupancy.Property, error) {
	var (
		version int64
		doc     []byte
	)
	err := q.QueryRow(ctx, selectProperties+` WHERE id = $1 AND owner_id = $2`+lock, propertyID, ownerID).Scan(&version, &doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, occupancy.ErrPropertyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get property: %w", mapError(err))
	}
	return decodeProperty(version, doc)
}

func queryTenants(ctx context.Context, q querier, sql string, args ...any) ([]*occupancy.Tenant, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tenants: %w", mapError(err))
	}
	defer rows.Close()

	var out []*occupancy.Tenant
	for rows.Next() {
		var (
			version int64
			doc     []byte
		)
		if err := rows.Scan(&version, &doc); err != nil {
			return nil, fmt.Errorf("failed to scan tenant: %w", err)
		}
		t, err := decodeTenant(version, doc)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tenants: %w", mapError(err))
	}
	return out, nil
}

func queryProperties(ctx context.Context, q querier, sql string, args ...any) ([]*occupancy.Property, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query properties: %w", mapError(err))
	}
	defer rows.Close()

	var out []*occupancy.Property
	for rows.Next() {
		var (
			version int64
			doc     []byte
		)
		if err := rows.Scan(&version, &doc); err != nil {
			return nil, fmt.Errorf("failed to scan property: %w", err)
		}
		p, err := decodeProperty(version, doc)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate properties: %w", mapError(err))
	}
	return out, nil
}

func decodeTenant(version int64, doc []byte) (*occupancy.Tenant, error) {
	var t occupancy.Tenant
	if err := json.Unmarshal(doc, &t); err != nil {
		return nil, fmt.Errorf("failed to decode tenant: %w", err)
	}
	t.Version = version
	return &t, nil
}

func decodeProperty(version int64, doc []byte) (*occupancy.Property, error) {
	var p occupancy.Property
	if err := json.Unmarshal(doc, &p); err != nil {
		return nil, fmt.Errorf("failed to decode property: %w", err)
	}
	p.Version = version
	return &p, nil
}

// PostgreSQL error codes that mean a concurrent writer won
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
)

// mapError turns concurrency failures into occupancy.ErrWriteConflict
func mapError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
			return fmt.Errorf("%w: %s", occupancy.ErrWriteConflict, pgErr.Message)
		}
	}
	return err
}
