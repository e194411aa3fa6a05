package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/memscribe/memscribe/pkg/core"
	"github.com/memscribe/memscribe/pkg/memory"
)

// TestEntityTenantIsolationUpdateDelete is the entity-facade analogue
// of TestTenantIsolationSearchGetUpdate (S4): a foreign id is NotFound
// on get, Unauthorized on update/delete.
func TestEntityTenantIsolationUpdateDelete(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	createEnv := svc.CreateEntity(ctx, "userA", memory.CreateEntityRequest{
		EntityType: core.EntityTypePerson,
		Name:       "Ada Lovelace",
	})
	require.Equal(t, memory.StatusOK, createEnv.Status)
	created, ok := createEnv.Data.(*core.Entity)
	require.True(t, ok)

	getEnv := svc.GetEntity(ctx, "userB", created.ID)
	require.Equal(t, memory.StatusError, getEnv.Status)
	require.Equal(t, string(core.KindNotFound), getEnv.Error)

	newName := "hijacked"
	updateEnv := svc.UpdateEntity(ctx, "userB", created.ID, memory.UpdateEntityRequest{Name: &newName})
	require.Equal(t, memory.StatusError, updateEnv.Status)
	require.Equal(t, string(core.KindUnauthorized), updateEnv.Error)

	deleteEnv := svc.DeleteEntity(ctx, "userB", created.ID)
	require.Equal(t, memory.StatusError, deleteEnv.Status)
	require.Equal(t, string(core.KindUnauthorized), deleteEnv.Error)

	stillThere := svc.GetEntity(ctx, "userA", created.ID)
	require.Equal(t, memory.StatusOK, stillThere.Status)
	reGot, ok := stillThere.Data.(*core.Entity)
	require.True(t, ok)
	require.Equal(t, "Ada Lovelace", reGot.Name, "user B's update attempt must not have mutated A's record")
}

func TestGetEntityUnknownIDIsNotFound(t *testing.T) {
	svc := newTestService(t)
	env := svc.GetEntity(context.Background(), "userA", "does-not-exist")
	require.Equal(t, memory.StatusError, env.Status)
	require.Equal(t, string(core.KindNotFound), env.Error)
}

func TestCreateEntityRequiresUserID(t *testing.T) {
	svc := newTestService(t)
	env := svc.CreateEntity(context.Background(), "", memory.CreateEntityRequest{Name: "x"})
	require.Equal(t, memory.StatusError, env.Status)
	require.Equal(t, string(core.KindUnauthenticated), env.Error)
}
