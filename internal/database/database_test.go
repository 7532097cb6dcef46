package database

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/pubmed-retrieval-service/internal/config"
)

func TestHealthStatus_JSON(t *testing.T) {
	t.Run("error omitted when healthy", func(t *testing.T) {
		data, err := json.Marshal(HealthStatus{Status: "healthy", TotalConns: 2, MaxConns: 10})
		require.NoError(t, err)
		assert.NotContains(t, string(data), "error")
		assert.Contains(t, string(data), `"max_conns":10`)
	})

	t.Run("healthy flag", func(t *testing.T) {
		assert.True(t, HealthStatus{Status: "healthy"}.Healthy())
		assert.False(t, HealthStatus{Status: "unhealthy", Error: "refused"}.Healthy())
	})
}

func TestNew_UnreachableHost(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping network test in short mode")
	}

	// 192.0.2.1 is TEST-NET-1 (RFC 5737), guaranteed unroutable.
	cfg := &config.DatabaseConfig{
		Host:           "192.0.2.1",
		Port:           5432,
		Name:           "testdb",
		User:           "user",
		Password:       "pass",
		SSLMode:        config.SSLModeDisable,
		MaxConns:       2,
		MinConns:       0,
		ConnectTimeout: time.Second,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	db, err := New(ctx, cfg, zerolog.Nop())
	require.Error(t, err)
	assert.Nil(t, db)
}

func TestDB_CloseNilPool(t *testing.T) {
	assert.NotPanics(t, func() { (&DB{}).Close() })
}

func TestNewMigrator_Validation(t *testing.T) {
	logger := zerolog.Nop()

	t.Run("nil database", func(t *testing.T) {
		m, err := NewMigrator(nil, "/some/path", logger)
		require.Error(t, err)
		assert.Nil(t, m)
		assert.Contains(t, err.Error(), "database is required")
	})

	t.Run("nil pool", func(t *testing.T) {
		m, err := NewMigrator(&DB{}, "/some/path", logger)
		require.Error(t, err)
		assert.Nil(t, m)
		assert.Contains(t, err.Error(), "database pool not initialized")
	})
}

func TestMigrator_RunArguments(t *testing.T) {
	m := &Migrator{logger: zerolog.Nop()}

	tests := []struct {
		name    string
		command string
		args    []string
		wantErr string
	}{
		{name: "unknown command", command: "sideways", wantErr: `unknown migration command "sideways"`},
		{name: "steps without count", command: "steps", wantErr: "requires exactly one numeric argument"},
		{name: "force with two args", command: "force", args: []string{"1", "2"}, wantErr: "requires exactly one numeric argument"},
		{name: "steps not numeric", command: "steps", args: []string{"two"}, wantErr: `invalid argument "two"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := m.Run(tt.command, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
