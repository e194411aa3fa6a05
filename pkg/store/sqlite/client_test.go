package sqlite_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/memscribe/memscribe/pkg/core"
	"github.com/memscribe/memscribe/pkg/store"
	"github.com/memscribe/memscribe/pkg/store/sqlite"
)

func newTestClient(t *testing.T) *sqlite.Client {
	t.Helper()
	c, err := sqlite.NewClient(&sqlite.Config{DBPath: ":memory:", NodeID: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCreateAndGetMemoryRoundTrips(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	m := &core.Memory{Title: "t", Content: "c", Type: core.MemoryTypeFact}
	id, err := c.CreateMemory(ctx, "u1", m)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := c.GetMemory(ctx, id, "u1")
	require.NoError(t, err)
	require.Equal(t, "t", got.Title)
}

func TestGetMemoryUnknownIDIsNotFound(t *testing.T) {
	c := newTestClient(t)
	_, err := c.GetMemory(context.Background(), "nope", "u1")
	require.ErrorIs(t, err, core.ErrNotFound)
}

// TestUpdateMemoryCrossTenantIsNotOwner is the store-level half of S4:
// a record that exists but belongs to a different tenant must fail
// with ErrNotOwner, not the generic ErrNotFound a nonexistent id would
// produce.
func TestUpdateMemoryCrossTenantIsNotOwner(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	id, err := c.CreateMemory(ctx, "ownerA", &core.Memory{Title: "t", Content: "c"})
	require.NoError(t, err)

	newTitle := "stolen"
	_, err = c.UpdateMemory(ctx, id, "ownerB", &store.MemoryPatch{Title: &newTitle})
	require.ErrorIs(t, err, core.ErrNotOwner)
}

func TestDeleteMemoryCrossTenantIsNotOwner(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	id, err := c.CreateMemory(ctx, "ownerA", &core.Memory{Title: "t", Content: "c"})
	require.NoError(t, err)

	err = c.DeleteMemory(ctx, id, "ownerB")
	require.ErrorIs(t, err, core.ErrNotOwner)

	// the record is untouched under its real owner
	_, err = c.GetMemory(ctx, id, "ownerA")
	require.NoError(t, err)
}

func TestUpdateEntityCrossTenantIsNotOwner(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	id, err := c.CreateEntity(ctx, "ownerA", &core.Entity{EntityType: core.EntityTypePerson, Name: "Ada"})
	require.NoError(t, err)

	newName := "stolen"
	_, err = c.UpdateEntity(ctx, id, "ownerB", &store.EntityPatch{Name: &newName})
	require.ErrorIs(t, err, core.ErrNotOwner)
}
