package occupancy

import "context"

// EventKind identifies what changed for an owner's assignments
type EventKind string

// Event kinds
const (
	EventTenantAssigned        EventKind = "tenant_assigned"
	EventTenantUnassigned      EventKind = "tenant_unassigned"
	EventTenantForceUnassigned EventKind = "tenant_force_unassigned"
	EventAssignmentsSynced     EventKind = "assignments_synced"
)

// Emitter is notified after a successful commit so caches and analytics can
// be invalidated. Delivery is best effort.
type Emitter interface {
	Notify(ctx context.Context, ownerID string, kind EventKind) error
}

// Dispatcher runs work detached from the request path. Dispatch reports
// whether the work was accepted.
type Dispatcher interface {
	Dispatch(name string, fn func(ctx context.Context) error) bool
}
