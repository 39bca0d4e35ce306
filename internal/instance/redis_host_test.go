package instance

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetRedisURL(t *testing.T) {
	url := GetRedisURL(6380)
	assert.True(t, strings.HasPrefix(url, "redis://"))
	assert.True(t, strings.HasSuffix(url, ":6380"))
	assert.Contains(t, url, GetRedisHost())
}

func TestDefaultRedisURL(t *testing.T) {
	assert.Equal(t, GetRedisURL(DefaultRedisPort), DefaultRedisURL())
}

func TestRedisOptions(t *testing.T) {
	t.Run("parses address and database", func(t *testing.T) {
		opts, err := RedisOptions("redis://redis.local:6390/3")
		require.NoError(t, err)
		assert.Equal(t, "redis.local:6390", opts.Addr)
		assert.Equal(t, 3, opts.DB)
	})

	t.Run("rejects other schemes", func(t *testing.T) {
		_, err := RedisOptions("http://localhost:6379")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid Redis URL")
	})
}
