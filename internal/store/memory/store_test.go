package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/rentwise/rentwise/internal/occupancy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(s *Store) {
	s.PutTenant(&occupancy.Tenant{ID: "t1", OwnerID: "o1", FirstName: "Ada"})
	s.PutTenant(&occupancy.Tenant{ID: "t2", OwnerID: "o2", FirstName: "Bo"})
	s.PutProperty(&occupancy.Property{ID: "p1", OwnerID: "o1", Type: occupancy.TypeHouse, Status: occupancy.StatusAvailable})
}

// TestPurpose: Validates owner scoping on reads.
// Scope: Unit Test
// Expected: Documents of another owner are reported as not found and excluded from lists.
// Test Case ID: MEM-01
func TestStore_OwnerScoping(t *testing.T) {
	ctx := context.Background()
	s := New()
	seed(s)

	_, err := s.FindTenant(ctx, "o1", "t2")
	assert.ErrorIs(t, err, occupancy.ErrTenantNotFound)
	_, err = s.FindProperty(ctx, "o2", "p1")
	assert.ErrorIs(t, err, occupancy.ErrPropertyNotFound)

	tenants, err := s.ListTenants(ctx, "o1")
	require.NoError(t, err)
	require.Len(t, tenants, 1)
	assert.Equal(t, "t1", tenants[0].ID)

	owners, err := s.ListOwners(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"o1", "o2"}, owners)
}

// TestPurpose: Validates that reads return copies.
// Scope: Unit Test
// Expected: Mutating a returned tenant does not change the stored tenant.
// Test Case ID: MEM-02
func TestStore_CloneOnRead(t *testing.T) {
	ctx := context.Background()
	s := New()
	seed(s)

	got, err := s.FindTenant(ctx, "o1", "t1")
	require.NoError(t, err)
	got.FirstName = "changed"
	got.Leases = append(got.Leases, occupancy.Lease{ID: "l1"})

	again, err := s.FindTenant(ctx, "o1", "t1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", again.FirstName)
	assert.Empty(t, again.Leases)
}

// TestPurpose: Validates session isolation and commit.
// Scope: Unit Test
// Expected: Staged writes are visible in the session only until commit, then visible to the store.
// Test Case ID: MEM-03
func TestSession_StagedWrites(t *testing.T) {
	ctx := context.Background()
	s := New()
	seed(s)

	sess, err := s.Begin(ctx)
	require.NoError(t, err)

	p, err := sess.FindProperty(ctx, "o1", "p1")
	require.NoError(t, err)
	p.Occupancy = occupancy.Occupancy{TenantID: "t1", IsOccupied: true}
	require.NoError(t, sess.SaveProperty(ctx, p))

	inSession, err := sess.ListPropertiesByTenant(ctx, "o1", "t1")
	require.NoError(t, err)
	assert.Len(t, inSession, 1)

	committed, err := s.ListPropertiesByTenant(ctx, "o1", "t1")
	require.NoError(t, err)
	assert.Empty(t, committed)

	require.NoError(t, sess.Commit(ctx))

	committed, err = s.ListPropertiesByTenant(ctx, "o1", "t1")
	require.NoError(t, err)
	require.Len(t, committed, 1)
	assert.Equal(t, int64(2), committed[0].Version)
}

// TestPurpose: Validates optimistic concurrency between sessions.
// Scope: Unit Test
// Expected: The second session writing the same document fails with ErrWriteConflict and applies nothing.
// Test Case ID: MEM-04
func TestSession_WriteConflict(t *testing.T) {
	ctx := context.Background()
	s := New()
	seed(s)

	a, _ := s.Begin(ctx)
	b, _ := s.Begin(ctx)

	pa, _ := a.FindProperty(ctx, "o1", "p1")
	pb, _ := b.FindProperty(ctx, "o1", "p1")
	tb, _ := b.FindTenant(ctx, "o1", "t1")

	pa.Name = "from a"
	require.NoError(t, a.SaveProperty(ctx, pa))
	require.NoError(t, a.Commit(ctx))

	pb.Name = "from b"
	tb.FirstName = "from b"
	require.NoError(t, b.SaveProperty(ctx, pb))
	require.NoError(t, b.SaveTenant(ctx, tb))
	err := b.Commit(ctx)
	assert.ErrorIs(t, err, occupancy.ErrWriteConflict)

	p, _ := s.FindProperty(ctx, "o1", "p1")
	assert.Equal(t, "from a", p.Name)
	tn, _ := s.FindTenant(ctx, "o1", "t1")
	assert.Equal(t, "Ada", tn.FirstName)
}

// TestPurpose: Validates failure hooks and rollback.
// Scope: Unit Test
// Expected: A failing save hook surfaces its error and rollback discards earlier staged writes.
// Test Case ID: MEM-05
func TestSession_HooksAndRollback(t *testing.T) {
	ctx := context.Background()
	s := New()
	seed(s)
	boom := errors.New("disk full")
	s.SetHooks(Hooks{OnSave: func(kind, _ string) error {
		if kind == "property" {
			return boom
		}
		return nil
	}})

	sess, _ := s.Begin(ctx)
	tn, _ := sess.FindTenant(ctx, "o1", "t1")
	tn.FirstName = "staged"
	require.NoError(t, sess.SaveTenant(ctx, tn))
	p, _ := sess.FindProperty(ctx, "o1", "p1")
	assert.ErrorIs(t, sess.SaveProperty(ctx, p), boom)
	require.NoError(t, sess.Rollback(ctx))

	got, _ := s.FindTenant(ctx, "o1", "t1")
	assert.Equal(t, "Ada", got.FirstName)
	assert.ErrorIs(t, sess.Commit(ctx), ErrSessionClosed)
}

// TestPurpose: Validates that session operations honour context cancellation.
// Scope: Unit Test
// Expected: Begin, reads, saves and commit fail with the context error and nothing is applied.
// Test Case ID: MEM-06
func TestSession_ContextDone(t *testing.T) {
	s := New()
	seed(s)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Begin(cancelled)
	assert.ErrorIs(t, err, context.Canceled)

	ctx, cancel := context.WithCancel(context.Background())
	sess, err := s.Begin(ctx)
	require.NoError(t, err)
	tn, err := sess.FindTenant(ctx, "o1", "t1")
	require.NoError(t, err)
	tn.FirstName = "late"
	require.NoError(t, sess.SaveTenant(ctx, tn))

	cancel()
	_, err = sess.FindProperty(ctx, "o1", "p1")
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, sess.SaveTenant(ctx, tn), context.Canceled)
	assert.ErrorIs(t, sess.Commit(ctx), context.Canceled)
	require.NoError(t, sess.Rollback(context.Background()))

	got, err := s.FindTenant(context.Background(), "o1", "t1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.FirstName)
}
