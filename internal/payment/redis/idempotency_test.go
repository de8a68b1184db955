package redis_test

import (
	"context"
	"testing"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	paymentredis "ms-booking/internal/payment/redis"
)

// TestGuardIntegration exercises the duplicate suppressor against a real
// Redis container.
func TestGuardIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping Redis integration test in short mode")
	}

	ctx := context.Background()
	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:latest",
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

	client := goredis.NewClient(&goredis.Options{Addr: host + ":" + port.Port()})
	guard := paymentredis.NewGuard(client)

	key := "bk_1:5000:nonce-a"

	// First caller wins.
	acquired, err := guard.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)

	// A repeat within the TTL is told to back off.
	acquired, err = guard.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, acquired)

	// A different nonce is a fresh checkout attempt.
	acquired, err = guard.Acquire(ctx, "bk_1:5000:nonce-b", time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)

	// Expiry releases the key.
	acquired, err = guard.Acquire(ctx, "bk_2:100:x", 100*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, acquired)

	time.Sleep(200 * time.Millisecond)

	acquired, err = guard.Acquire(ctx, "bk_2:100:x", time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)
}
