package instance

import (
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPort is the port used when no Redis URL is configured.
const DefaultRedisPort = 6379

// GetRedisHost returns the appropriate Redis hostname for the current environment.
// In Docker-in-Docker scenarios, it returns "host.docker.internal" to access
// the host's published ports. Otherwise, it returns "localhost".
func GetRedisHost() string {
	// Check if we're running in Docker
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return "host.docker.internal"
	}
	return "localhost"
}

// GetRedisURL constructs the full Redis URL for a given port.
func GetRedisURL(port int) string {
	return fmt.Sprintf("redis://%s:%d", GetRedisHost(), port)
}

// DefaultRedisURL returns the Redis URL used when none is configured.
func DefaultRedisURL() string {
	return GetRedisURL(DefaultRedisPort)
}

// RedisOptions parses a redis:// or rediss:// URL into client options.
func RedisOptions(url string) (*redis.Options, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL '%s': %w", url, err)
	}
	return opts, nil
}
