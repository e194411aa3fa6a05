package postgres_test

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/require"

	"github.com/memscribe/memscribe/pkg/core"
	storepkg "github.com/memscribe/memscribe/pkg/store"
	"github.com/memscribe/memscribe/pkg/store/postgres"
)

func setupPostgresTest(t *testing.T) *postgres.Client {
	t.Helper()
	envPath := filepath.Join("..", "..", "..", ".env")
	_ = godotenv.Load(envPath)

	host := os.Getenv("POSTGRES_HOST")
	if host == "" {
		host = "127.0.0.1"
	}

	portStr := os.Getenv("POSTGRES_PORT")
	if portStr == "" {
		portStr = "5432"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Skipf("skipping postgres test: invalid POSTGRES_PORT: %s", portStr)
	}

	user := os.Getenv("POSTGRES_USER")
	if user == "" {
		user = "postgres"
	}

	password := os.Getenv("POSTGRES_PASSWORD")
	if password == "" {
		t.Skip("skipping postgres test: POSTGRES_PASSWORD not set")
	}

	dbName := os.Getenv("POSTGRES_DATABASE")
	if dbName == "" {
		dbName = "memscribe_test"
	}

	c, err := postgres.NewClient(&postgres.Config{
		Host:     host,
		Port:     port,
		User:     user,
		Password: password,
		DBName:   dbName,
		SSLMode:  "disable",
		NodeID:   1,
	})
	if err != nil {
		t.Skipf("skipping postgres test: failed to connect: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestPostgresCreateAndGetMemoryRoundTrips(t *testing.T) {
	c := setupPostgresTest(t)
	ctx := context.Background()

	id, err := c.CreateMemory(ctx, "u1", &core.Memory{Title: "t", Content: "c", Type: core.MemoryTypeFact})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := c.GetMemory(ctx, id, "u1")
	require.NoError(t, err)
	require.Equal(t, "t", got.Title)

	require.NoError(t, c.DeleteMemory(ctx, id, "u1"))
}

func TestPostgresUpdateMemoryCrossTenantIsNotOwner(t *testing.T) {
	c := setupPostgresTest(t)
	ctx := context.Background()

	id, err := c.CreateMemory(ctx, "ownerA", &core.Memory{Title: "t", Content: "c"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.DeleteMemory(ctx, id, "ownerA") })

	newTitle := "stolen"
	_, err = c.UpdateMemory(ctx, id, "ownerB", &storepkg.MemoryPatch{Title: &newTitle})
	require.ErrorIs(t, err, core.ErrNotOwner)
}
