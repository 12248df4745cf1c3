//go:build integration

package redis_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/marcelsud/webhook-sender/webhook/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	testcontainersredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

/* Test Helpers for Redis Integration Tests
 * Following the pattern from: https://eltonminetto.dev/post/2024-02-15-using-test-helpers/
 */

// RedisContainer holds the Redis testcontainer and connection details
type RedisContainer struct {
	Container *testcontainersredis.RedisContainer
	Addr      string
}

// SetupRedisContainer creates and starts a Redis testcontainer
func SetupRedisContainer(t *testing.T, ctx context.Context) (*RedisContainer, func()) {
	t.Helper()

	redisContainer, err := testcontainersredis.Run(ctx,
		"redis:7-alpine",
		testcontainersredis.WithLogLevel(testcontainersredis.LogLevelVerbose),
	)
	require.NoError(t, err, "failed to start Redis container")

	addr, err := redisContainer.ConnectionString(ctx)
	require.NoError(t, err, "failed to get Redis connection string")
	addr = strings.TrimPrefix(addr, "redis://")

	rc := &RedisContainer{
		Container: redisContainer,
		Addr:      addr,
	}

	cleanup := func() {
		if err := redisContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Redis container: %v", err)
		}
	}

	return rc, cleanup
}

// CreateTestClient connects a client to the test container
func CreateTestClient(t *testing.T, addr string) *goredis.Client {
	t.Helper()

	client, err := redis.NewClient(addr, "", 0)
	require.NoError(t, err, "failed to connect to Redis")
	t.Cleanup(func() { client.Close() })

	return client
}

// CreateTestQueue creates a queue on a unique stream
func CreateTestQueue(t *testing.T, client *goredis.Client, consumer string) *redis.Queue {
	t.Helper()

	stream := fmt.Sprintf("webhook:queue:test-%d", time.Now().UnixNano())
	q, err := redis.NewQueue(context.Background(), client, stream, "senders", consumer)
	require.NoError(t, err, "failed to create queue")

	return q
}

// KeyExists checks if a Redis key exists
func KeyExists(t *testing.T, client *goredis.Client, key string) bool {
	t.Helper()

	exists, err := client.Exists(context.Background(), key).Result()
	require.NoError(t, err)

	return exists > 0
}
