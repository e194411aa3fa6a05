package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/memscribe/memscribe/pkg/core"
	"github.com/memscribe/memscribe/pkg/session"
)

func TestMemStorePutGetRoundTrips(t *testing.T) {
	m := session.NewMemStore()
	ctx := context.Background()

	s := &core.Session{TokenHash: "h1", UserID: "u1", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, m.Put(ctx, s))

	got, err := m.Get(ctx, "h1")
	require.NoError(t, err)
	require.Equal(t, "u1", got.UserID)
}

func TestMemStoreGetUnknownIsNotFound(t *testing.T) {
	m := session.NewMemStore()
	_, err := m.Get(context.Background(), "missing")
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestMemStoreSweepEvictsExpiredOnly(t *testing.T) {
	m := session.NewMemStore()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, m.Put(ctx, &core.Session{TokenHash: "expired", ExpiresAt: now.Add(-time.Minute)}))
	require.NoError(t, m.Put(ctx, &core.Session{TokenHash: "alive", ExpiresAt: now.Add(time.Hour)}))

	evicted, err := m.Sweep(ctx, now)
	require.NoError(t, err)
	require.Equal(t, 1, evicted)

	_, err = m.Get(ctx, "expired")
	require.ErrorIs(t, err, core.ErrNotFound)

	_, err = m.Get(ctx, "alive")
	require.NoError(t, err)
}

func TestMemStoreDeleteRemovesSession(t *testing.T) {
	m := session.NewMemStore()
	ctx := context.Background()

	require.NoError(t, m.Put(ctx, &core.Session{TokenHash: "h1", ExpiresAt: time.Now().Add(time.Hour)}))
	require.NoError(t, m.Delete(ctx, "h1"))

	_, err := m.Get(ctx, "h1")
	require.ErrorIs(t, err, core.ErrNotFound)
}
