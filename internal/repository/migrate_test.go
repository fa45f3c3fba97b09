package repository

import (
	"context"
	"io"
	"os"
	"testing"

	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drone_chat/internal/repository/migrations"
	"drone_chat/pkg/logger"
)

func TestMigrationsAreEmbedded(t *testing.T) {
	source, err := iofs.New(migrations.FS, ".")
	require.NoError(t, err)
	defer source.Close()

	first, err := source.First()
	require.NoError(t, err)
	assert.Equal(t, uint(1), first)

	up, _, err := source.ReadUp(first)
	require.NoError(t, err)
	body, err := io.ReadAll(up)
	require.NoError(t, err)
	assert.Contains(t, string(body), "chat_messages")

	down, _, err := source.ReadDown(first)
	require.NoError(t, err)
	_ = down.Close()
}

// TestMigrate runs against a real database when TEST_DATABASE_DSN is set.
func TestMigrate(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN not set")
	}
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()

	require.NoError(t, Migrate(ctx, pool, logger.NewNop()))
	// second run is a no-op and the pool stays usable
	require.NoError(t, Migrate(ctx, pool, logger.NewNop()))
	require.NoError(t, pool.Ping(ctx))
}
