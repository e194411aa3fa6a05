package mysql_test

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
	"github.com/memscribe/memscribe/pkg/store/mysql"
)

func setupMySQLTest(t *testing.T) *mysql.Client {
	t.Helper()
	envPath := filepath.Join("..", "..", "..", ".env")
	_ = godotenv.Load(envPath)

	host := os.Getenv("MYSQL_HOST")
	if host == "" {
		host = "127.0.0.1"
	}

	portStr := os.Getenv("MYSQL_PORT")
	if portStr == "" {
		portStr = "3306"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Skipf("skipping mysql test: invalid MYSQL_PORT: %s", portStr)
	}

	user := os.Getenv("MYSQL_USER")
	if user == "" {
		user = "root"
	}

	password := os.Getenv("MYSQL_PASSWORD")
	if password == "" {
		t.Skip("skipping mysql test: MYSQL_PASSWORD not set")
	}

	dbName := os.Getenv("MYSQL_DATABASE")
	if dbName == "" {
		dbName = "memscribe_test"
	}

	c, err := mysql.NewClient(&mysql.Config{
		Host:     host,
		Port:     port,
		User:     user,
		Password: password,
		DBName:   dbName,
		NodeID:   1,
	})
	if err != nil {
		t.Skipf("skipping mysql test: failed to connect: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestMySQLCreateAndGetMemoryRoundTrips(t *testing.T) {
	c := setupMySQLTest(t)
	ctx := context.Background()

	id, err := c.CreateMemory(ctx, "u1", &core.Memory{Title: "t", Content: "c", Type: core.MemoryTypeFact})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := c.GetMemory(ctx, id, "u1")
	require.NoError(t, err)
	require.Equal(t, "t", got.Title)

	require.NoError(t, c.DeleteMemory(ctx, id, "u1"))
}

func TestMySQLUpdateMemoryCrossTenantIsNotOwner(t *testing.T) {
	c := setupMySQLTest(t)
	ctx := context.Background()

	id, err := c.CreateMemory(ctx, "ownerA", &core.Memory{Title: "t", Content: "c"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.DeleteMemory(ctx, id, "ownerA") })

	newTitle := "stolen"
	_, err = c.UpdateMemory(ctx, id, "ownerB", &storepkg.MemoryPatch{Title: &newTitle})
	require.ErrorIs(t, err, core.ErrNotOwner)
}
