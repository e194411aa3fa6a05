package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/memscribe/memscribe/pkg/core"
	"github.com/memscribe/memscribe/pkg/memory"
	"github.com/memscribe/memscribe/pkg/store/sqlite"
)

func newTestService(t *testing.T) *memory.Service {
	t.Helper()
	c, err := sqlite.NewClient(&sqlite.Config{DBPath: ":memory:", NodeID: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	ids, err := core.NewIDGenerator(1)
	require.NoError(t, err)

	return memory.NewService(c, nil, nil, nil, ids)
}

// TestTenantIsolationSearchGetUpdate is S4: a second tenant may never
// see, read, or mutate another tenant's record. get/update on a
// foreign id must distinguish NotFound from Unauthorized, and the
// original record must be left untouched.
func TestTenantIsolationSearchGetUpdate(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	addEnv := svc.AddMemory(ctx, "userA", memory.AddMemoryRequest{
		Title:   "A-secret",
		Content: "this belongs to user A",
	})
	require.Equal(t, memory.StatusOK, addEnv.Status)
	added, ok := addEnv.Data.(*core.Memory)
	require.True(t, ok)

	// get_memory(A's id) as user B must come back NotFound — the store
	// layer never discloses whether a foreign id exists, only
	// update/delete distinguish NotOwner from NotFound (S4).
	getEnv := svc.GetMemory(ctx, "userB", added.ID)
	require.Equal(t, memory.StatusError, getEnv.Status)
	require.Equal(t, string(core.KindNotFound), getEnv.Error)

	// update_memory(A's id, ...) as user B must also be Unauthorized,
	// and must not touch A's record.
	newTitle := "hijacked"
	updateEnv := svc.UpdateMemory(ctx, "userB", added.ID, memory.UpdateMemoryRequest{Title: &newTitle})
	require.Equal(t, memory.StatusError, updateEnv.Status)
	require.Equal(t, string(core.KindUnauthorized), updateEnv.Error)

	reGet := svc.GetMemory(ctx, "userA", added.ID)
	require.Equal(t, memory.StatusOK, reGet.Status)
	reGot, ok := reGet.Data.(*core.Memory)
	require.True(t, ok)
	require.Equal(t, "A-secret", reGot.Title, "user B's update attempt must not have mutated A's record")

	// delete_memory(A's id) as user B must likewise be Unauthorized.
	deleteEnv := svc.DeleteMemory(ctx, "userB", added.ID)
	require.Equal(t, memory.StatusError, deleteEnv.Status)
	require.Equal(t, string(core.KindUnauthorized), deleteEnv.Error)

	stillThere := svc.GetMemory(ctx, "userA", added.ID)
	require.Equal(t, memory.StatusOK, stillThere.Status)
}

// TestGetMemoryUnknownIDIsNotFound distinguishes the NotFound case from
// TestTenantIsolationSearchGetUpdate's Unauthorized case: a truly
// nonexistent id, under the owning tenant, is NotFound.
func TestGetMemoryUnknownIDIsNotFound(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	env := svc.GetMemory(ctx, "userA", "does-not-exist")
	require.Equal(t, memory.StatusError, env.Status)
	require.Equal(t, string(core.KindNotFound), env.Error)
}

func TestUpdateMemoryUnknownIDIsNotFound(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	newTitle := "whatever"
	env := svc.UpdateMemory(ctx, "userA", "does-not-exist", memory.UpdateMemoryRequest{Title: &newTitle})
	require.Equal(t, memory.StatusError, env.Status)
	require.Equal(t, string(core.KindNotFound), env.Error)
}

func TestAddMemoryRequiresUserID(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	env := svc.AddMemory(ctx, "", memory.AddMemoryRequest{Title: "x", Content: "y"})
	require.Equal(t, memory.StatusError, env.Status)
	require.Equal(t, string(core.KindUnauthenticated), env.Error)
}
