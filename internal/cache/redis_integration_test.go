//go:build integration

package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestRedisCache_RoundTrip(t *testing.T) {
	ctx := context.Background()

	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(ctr) })

	addr, err := ctr.Endpoint(ctx, "")
	require.NoError(t, err)

	c, err := NewRedisCache(ctx, RedisConfig{Addr: addr, Prefix: "test:", TTL: time.Minute})
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Get(ctx, "efetch:1")
	assert.True(t, errors.Is(err, ErrMiss))

	require.NoError(t, c.Set(ctx, "efetch:1", []byte("<PubmedArticleSet/>")))
	got, err := c.Get(ctx, "efetch:1")
	require.NoError(t, err)
	assert.Equal(t, "<PubmedArticleSet/>", string(got))

	assert.NoError(t, c.Ping(ctx))
}
