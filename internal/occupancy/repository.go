package occupancy

import (
	"context"
	"errors"
)

var (
	ErrTenantNotFound   = errors.New("tenant not found")
	ErrPropertyNotFound = errors.New("property not found")
	ErrWriteConflict    = errors.New("write conflict")
)

// Reader defines owner-scoped lookups over both aggregates. Documents owned
// by a different owner are reported as not found.
type Reader interface {
	FindTenant(ctx context.Context, ownerID, tenantID string) (*Tenant, error)
	FindProperty(ctx context.Context, ownerID, propertyID string) (*Property, error)
	ListTenants(ctx context.Context, ownerID string) ([]*Tenant, error)
	ListProperties(ctx context.Context, ownerID string) ([]*Property, error)
	ListPropertiesByTenant(ctx context.Context, ownerID, tenantID string) ([]*Property, error)
}

// Session is a transaction over both aggregates. Reads through a session
// observe its own pending writes and lock the documents they return.
type Session interface {
	Reader
	SaveTenant(ctx context.Context, tenant *Tenant) error
	SaveProperty(ctx context.Context, property *Property) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Store defines the interface for tenant and property storage
type Store interface {
	Reader
	Begin(ctx context.Context) (Session, error)
	ListOwners(ctx context.Context) ([]string, error)
}
