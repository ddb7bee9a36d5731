//go:build integration

package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kerm1977/rifas/internal/logger"
	lockredis "github.com/kerm1977/rifas/internal/selections/redis"
)

// TestRedisIntegration checks claim holds against a real Redis container
func TestRedisIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping Redis integration test in short mode")
	}

	ctx := context.Background()
	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}
	defer redisContainer.Terminate(ctx)

	host, err := redisContainer.Host(ctx)
	require.NoError(t, err)
	port, err := redisContainer.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: host + ":" + port.Port()})
	defer client.Close()

	locks := lockredis.NewRedis(client, 2*time.Second, logger.Discard())

	locked, busy, err := locks.LockNumbers(ctx, 1, []string{"01", "02"}, "owner-a")
	require.NoError(t, err)
	assert.Equal(t, []string{"01", "02"}, locked)
	assert.Empty(t, busy)

	locked, busy, err = locks.LockNumbers(ctx, 1, []string{"02", "03"}, "owner-b")
	require.NoError(t, err)
	assert.Equal(t, []string{"03"}, locked)
	assert.Equal(t, []string{"02"}, busy)

	require.NoError(t, locks.UnlockNumbers(ctx, 1, []string{"01", "02"}, "owner-a"))
	held, err := client.Exists(ctx, "raffle_lock:1:02").Result()
	require.NoError(t, err)
	assert.Zero(t, held)
}
