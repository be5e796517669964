//go:build integration

package roster

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestContainer(t *testing.T) *PostgresStore {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil || container == nil {
		t.Skipf("Docker not available, skipping integration test: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	url := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())
	store, err := OpenPostgres(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	applied, err := store.Migrate(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, applied)
	return store
}

func TestPostgresStore(t *testing.T) {
	store := setupTestContainer(t)
	ctx := context.Background()

	_, err := store.Load(ctx)
	require.ErrorIs(t, err, ErrNoRoster)

	first := &Roster{Model: "buffalo_l", Entries: []Entry{
		{Name: "alice", Embedding: []float32{1, 0, 0}, Source: "a.jpg"},
		{Name: "bob", Embedding: []float32{0, 1, 0}, Source: "b.jpg"},
	}}
	require.NoError(t, store.Save(ctx, first))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.Entries, got.Entries)
	assert.Equal(t, "buffalo_l", got.Model)

	// Save replaces rather than appends.
	second := &Roster{Model: "buffalo_l", Entries: []Entry{{Name: "carol", Embedding: []float32{0, 0, 1}}}}
	require.NoError(t, store.Save(ctx, second))
	got, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"carol"}, got.UniqueNames())

	// Migrations are idempotent.
	applied, err := store.Migrate(ctx)
	require.NoError(t, err)
	assert.Empty(t, applied)
}
