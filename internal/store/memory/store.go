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

// Package memory provides an in-memory transactional occupancy store. Reads
// return clones; sessions stage writes and apply them at commit after an
// optimistic version check.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rentwise/rentwise/internal/occupancy"
)

// ErrSessionClosed is returned when a session is used after commit or rollback
var ErrSessionClosed = errors.New("session is closed")

// Hooks inject failures into sessions
type Hooks struct {
	// OnSave runs before a write is staged; kind is "tenant" or "property"
	OnSave func(kind, id string) error
	// OnCommit runs before staged writes are applied
	OnCommit func() error
}

// Store is an in-memory implementation of occupancy.Store
type Store struct {
	mu         sync.RWMutex
	tenants    map[string]*occupancy.Tenant
	properties map[string]*occupancy.Property
	hooks      Hooks
}

var _ occupancy.Store = (*Store)(nil)

// New creates an empty store
func New() *Store {
	return &Store{
		tenants:    make(map[string]*occupancy.Tenant),
		properties: make(map[string]*occupancy.Property),
	}
}

// SetHooks replaces the failure hooks
func (s *Store) SetHooks(h Hooks) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = h
}

// PutTenant seeds or overwrites a tenant outside any session
func (s *Store) PutTenant(t *occupancy.Tenant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := t.Clone()
	if cur, ok := s.tenants[t.ID]; ok {
		c.Version = cur.Version + 1
	} else {
		c.Version = 1
	}
	s.tenants[t.ID] = c
}

// PutProperty seeds or overwrites a property outside any session
func (s *Store) PutProperty(p *occupancy.Property) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := p.Clone()
	if cur, ok := s.properties[p.ID]; ok {
		c.Version = cur.Version + 1
	} else {
		c.Version = 1
	}
	s.properties[p.ID] = c
}

// FindTenant returns a copy of the tenant
func (s *Store) FindTenant(_ context.Context, ownerID, tenantID string) (*occupancy.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tenants[tenantID]
	if !ok || t.OwnerID != ownerID {
		return nil, occupancy.ErrTenantNotFound
	}
	return t.Clone(), nil
}

// FindProperty returns a copy of the property
func (s *Store) FindProperty(_ context.Context, ownerID, propertyID string) (*occupancy.Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.properties[propertyID]
	if !ok || p.OwnerID != ownerID {
		return nil, occupancy.ErrPropertyNotFound
	}
	return p.Clone(), nil
}

// ListTenants returns the owner's tenants ordered by ID
func (s *Store) ListTenants(_ context.Context, ownerID string) ([]*occupancy.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filterTenants(s.tenants, nil, ownerID), nil
}

// ListProperties returns the owner's properties ordered by ID
func (s *Store) ListProperties(_ context.Context, ownerID string) ([]*occupancy.Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filterProperties(s.properties, nil, ownerID, ""), nil
}

// ListPropertiesByTenant returns the owner's properties whose occupancy or
// units reference the tenant
func (s *Store) ListPropertiesByTenant(_ context.Context, ownerID, tenantID string) ([]*occupancy.Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filterProperties(s.properties, nil, ownerID, tenantID), nil
}

// ListOwners returns every owner that has a tenant or a property
func (s *Store) ListOwners(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]bool)
	for _, t := range s.tenants {
		seen[t.OwnerID] = true
	}
	for _, p := range s.properties {
		seen[p.OwnerID] = true
	}
	owners := make([]string, 0, len(seen))
	for o := range seen {
		owners = append(owners, o)
	}
	sort.Strings(owners)
	return owners, nil
}

// Begin starts a session
func (s *Store) Begin(ctx context.Context) (occupancy.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	hooks := s.hooks
	s.mu.RUnlock()
	return &session{
		store:      s,
		hooks:      hooks,
		tenants:    make(map[string]*occupancy.Tenant),
		properties: make(map[string]*occupancy.Property),
	}, nil
}

// check fails operations on a closed session or a finished context
func (sess *session) check(ctx context.Context) error {
	if sess.closed {
		return ErrSessionClosed
	}
	return ctx.Err()
}

type session struct {
	store      *Store
	hooks      Hooks
	tenants    map[string]*occupancy.Tenant
	properties map[string]*occupancy.Property
	closed     bool
}

func (sess *session) FindTenant(ctx context.Context, ownerID, tenantID string) (*occupancy.Tenant, error) {
	if err := sess.check(ctx); err != nil {
		return nil, err
	}
	if t, ok := sess.tenants[tenantID]; ok {
		if t.OwnerID != ownerID {
			return nil, occupancy.ErrTenantNotFound
		}
		return t.Clone(), nil
	}
	return sess.store.FindTenant(ctx, ownerID, tenantID)
}

func (sess *session) FindProperty(ctx context.Context, ownerID, propertyID string) (*occupancy.Property, error) {
	if err := sess.check(ctx); err != nil {
		return nil, err
	}
	if p, ok := sess.properties[propertyID]; ok {
		if p.OwnerID != ownerID {
			return nil, occupancy.ErrPropertyNotFound
		}
		return p.Clone(), nil
	}
	return sess.store.FindProperty(ctx, ownerID, propertyID)
}

func (sess *session) ListTenants(ctx context.Context, ownerID string) ([]*occupancy.Tenant, error) {
	if err := sess.check(ctx); err != nil {
		return nil, err
	}
	sess.store.mu.RLock()
	defer sess.store.mu.RUnlock()
	return filterTenants(sess.store.tenants, sess.tenants, ownerID), nil
}

func (sess *session) ListProperties(ctx context.Context, ownerID string) ([]*occupancy.Property, error) {
	if err := sess.check(ctx); err != nil {
		return nil, err
	}
	sess.store.mu.RLock()
	defer sess.store.mu.RUnlock()
	return filterProperties(sess.store.properties, sess.properties, ownerID, ""), nil
}

func (sess *session) ListPropertiesByTenant(ctx context.Context, ownerID, tenantID string) ([]*occupancy.Property, error) {
	if err := sess.check(ctx); err != nil {
		return nil, err
	}
	sess.store.mu.RLock()
	defer sess.store.mu.RUnlock()
	return filterProperties(sess.store.properties, sess.properties, ownerID, tenantID), nil
}

func (sess *session) SaveTenant(ctx context.Context, t *occupancy.Tenant) error {
	if err := sess.check(ctx); err != nil {
		return err
	}
	if sess.hooks.OnSave != nil {
		if err := sess.hooks.OnSave("tenant", t.ID); err != nil {
			return err
		}
	}
	// a write that outlives its context is not applied
	if err := ctx.Err(); err != nil {
		return err
	}
	sess.tenants[t.ID] = t.Clone()
	return nil
}

func (sess *session) SaveProperty(ctx context.Context, p *occupancy.Property) error {
	if err := sess.check(ctx); err != nil {
		return err
	}
	if sess.hooks.OnSave != nil {
		if err := sess.hooks.OnSave("property", p.ID); err != nil {
			return err
		}
	}
	// a write that outlives its context is not applied
	if err := ctx.Err(); err != nil {
		return err
	}
	sess.properties[p.ID] = p.Clone()
	return nil
}

// Commit applies staged writes if none of the documents changed since they
// were read
func (sess *session) Commit(ctx context.Context) error {
	if err := sess.check(ctx); err != nil {
		return err
	}
	sess.closed = true
	if sess.hooks.OnCommit != nil {
		if err := sess.hooks.OnCommit(); err != nil {
			return err
		}
	}

	s := sess.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, t := range sess.tenants {
		var current int64
		cur, exists := s.tenants[id]
		if exists {
			current = cur.Version
		}
		if err := checkVersion(exists, current, t.Version); err != nil {
			return fmt.Errorf("tenant %s: %w", id, err)
		}
	}
	for id, p := range sess.properties {
		var current int64
		cur, exists := s.properties[id]
		if exists {
			current = cur.Version
		}
		if err := checkVersion(exists, current, p.Version); err != nil {
			return fmt.Errorf("property %s: %w", id, err)
		}
	}

	for id, t := range sess.tenants {
		t.Version++
		s.tenants[id] = t
	}
	for id, p := range sess.properties {
		p.Version++
		s.properties[id] = p
	}
	return nil
}

// Rollback discards staged writes. Rolling back a closed session is a no-op.
func (sess *session) Rollback(_ context.Context) error {
	sess.closed = true
	sess.tenants = nil
	sess.properties = nil
	return nil
}

func checkVersion(exists bool, current, read int64) error {
	if !exists && read == 0 {
		return nil
	}
	if current != read {
		return occupancy.ErrWriteConflict
	}
	return nil
}

func filterTenants(committed, staged map[string]*occupancy.Tenant, ownerID string) []*occupancy.Tenant {
	out := make([]*occupancy.Tenant, 0)
	for id, t := range committed {
		if st, ok := staged[id]; ok {
			t = st
		}
		if t.OwnerID == ownerID {
			out = append(out, t.Clone())
		}
	}
	for id, t := range staged {
		if _, ok := committed[id]; ok {
			continue
		}
		if t.OwnerID == ownerID {
			out = append(out, t.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func filterProperties(committed, staged map[string]*occupancy.Property, ownerID, tenantID string) []*occupancy.Property {
	match := func(p *occupancy.Property) bool {
		return p.OwnerID == ownerID && (tenantID == "" || p.ReferencesTenant(tenantID))
	}
	out := make([]*occupancy.Property, 0)
	for id, p := range committed {
		if sp, ok := staged[id]; ok {
			p = sp
		}
		if match(p) {
			out = append(out, p.Clone())
		}
	}
	for id, p := range staged {
		if _, ok := committed[id]; ok {
			continue
		}
		if match(p) {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
