//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

/*
Test Helpers for PostgreSQL with Testcontainers

- Starts a PostgreSQL container
- Creates the test database
- Returns a connected store with the schema applied
*/

const (
	defaultDatabase = "testdb"
	defaultUser     = "testuser"
	defaultPassword = "testpass"
)

// SetupPostgresStore starts a container and returns a migrated store
func SetupPostgresStore(t *testing.T, ctx context.Context) (*Store, func()) {
	t.Helper()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase(defaultDatabase),
		postgres.WithUsername(defaultUser),
		postgres.WithPassword(defaultPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	store, err := NewStore(connStr)
	require.NoError(t, err)
	require.NoError(t, store.Migrate(ctx))

	cleanup := func() {
		_ = store.Close(ctx)
		_ = pgContainer.Terminate(ctx)
	}

	return store, cleanup
}

// TruncateSubscriptions removes every row between subtests
func TruncateSubscriptions(t *testing.T, ctx context.Context, store *Store) {
	t.Helper()

	_, err := store.DB.ExecContext(ctx, "TRUNCATE TABLE webhook_subscriptions")
	require.NoError(t, err)
}
