//go:build integration

package database_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/pubmed-retrieval-service/internal/database"
	"github.com/helixir/pubmed-retrieval-service/internal/database/dbtest"
)

func TestDB_Integration(t *testing.T) {
	db := dbtest.Start(t)
	ctx := context.Background()

	t.Run("health", func(t *testing.T) {
		h := db.Health(ctx)
		assert.True(t, h.Healthy(), h.Error)
		assert.Equal(t, int32(5), h.MaxConns)
	})

	t.Run("schema applied", func(t *testing.T) {
		for _, table := range []string{"pubmed_records", "retrieval_runs", "retrieval_outcomes"} {
			var exists bool
			err := db.QueryRow(ctx, "SELECT to_regclass($1) IS NOT NULL", table).Scan(&exists)
			require.NoError(t, err)
			assert.True(t, exists, table)
		}
	})

	t.Run("migrator version and steps", func(t *testing.T) {
		m, err := database.NewMigrator(db, dbtest.MigrationsPath(t), zerolog.Nop())
		require.NoError(t, err)
		defer m.Close()

		v, dirty, err := m.Version()
		require.NoError(t, err)
		assert.Equal(t, uint(2), v)
		assert.False(t, dirty)

		require.NoError(t, m.Run("steps", "-1"))
		v, _, err = m.Version()
		require.NoError(t, err)
		assert.Equal(t, uint(1), v)

		require.NoError(t, m.Run("up"))
		require.NoError(t, m.Run("up"), "no pending migrations is not an error")
	})
}
