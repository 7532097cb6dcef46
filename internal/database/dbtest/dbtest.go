//go:build integration

// Package dbtest starts a migrated PostgreSQL container for integration tests.
package dbtest

import (
	"context"
	"net"
	"path/filepath"
	"runtime"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/helixir/pubmed-retrieval-service/internal/config"
	"github.com/helixir/pubmed-retrieval-service/internal/database"
)

const (
	dbName     = "pubmed_retrieval_test"
	dbUser     = "pubretrieve"
	dbPassword = "testpassword"
)

// MigrationsPath returns the absolute path of the repository's migrations directory.
func MigrationsPath(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return filepath.Join(filepath.Dir(file), "..", "..", "..", "migrations")
}

// Start runs a PostgreSQL container, applies every migration and returns a
// connected pool. The container is terminated when the test ends.
func Start(t *testing.T) *database.DB {
	t.Helper()
	ctx := context.Background()

	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPassword),
		postgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(ctr) })

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	port, err := ctr.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)
	portNum, err := strconv.Atoi(port.Port())
	require.NoError(t, err)

	cfg := &config.DatabaseConfig{
		Enabled:           true,
		Host:              host,
		Port:              portNum,
		User:              dbUser,
		Password:          dbPassword,
		Name:              dbName,
		SSLMode:           config.SSLModeDisable,
		MaxConns:          5,
		MinConns:          1,
		MaxConnLifetime:   time.Hour,
		MaxConnIdleTime:   30 * time.Minute,
		HealthCheckPeriod: 30 * time.Second,
		ConnectTimeout:    10 * time.Second,
	}

	db, err := database.New(ctx, cfg, zerolog.Nop())
	require.NoError(t, err, "connect to %s", net.JoinHostPort(host, port.Port()))
	t.Cleanup(db.Close)

	migrator, err := database.NewMigrator(db, MigrationsPath(t), zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, migrator.Up())
	require.NoError(t, migrator.Close())

	return db
}
