//go:build integration

package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/dyluth/pisim/internal/instance"
	"github.com/dyluth/pisim/pkg/fabric"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// RedisEnvironment is a real Redis server plus a unique instance namespace.
type RedisEnvironment struct {
	T            *testing.T
	RedisURL     string
	InstanceName string
	Client       *fabric.Client
}

// SetupRedis starts a Redis container for the duration of the test.
// The container and client are released by t.Cleanup.
func SetupRedis(t *testing.T) *RedisEnvironment {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "Failed to start Redis container")
	t.Cleanup(func() {
		if err := redisC.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate Redis container: %v", err)
		}
	})

	host, err := redisC.Host(ctx)
	require.NoError(t, err, "Failed to get container host")

	port, err := redisC.MappedPort(ctx, "6379")
	require.NoError(t, err, "Failed to get container port")

	redisURL := fmt.Sprintf("redis://%s:%s", host, port.Port())
	instanceName := instance.RunName("test", uuid.NewString())

	opts, err := instance.RedisOptions(redisURL)
	require.NoError(t, err)

	client, err := fabric.NewClient(opts, instanceName)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	require.NoError(t, client.Ping(ctx), "Redis container not reachable")

	return &RedisEnvironment{
		T:            t,
		RedisURL:     redisURL,
		InstanceName: instanceName,
		Client:       client,
	}
}
