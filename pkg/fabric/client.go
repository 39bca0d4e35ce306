package fabric

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultPollInterval bounds a single blocking pop so that cancellation
	// and peer timeouts are observed.
	DefaultPollInterval = time.Second

	// MinBlockTime is the shortest blocking pop Redis supports.
	MinBlockTime = time.Second

	// DefaultReplyTTL is how long an unread service reply survives.
	DefaultReplyTTL = time.Minute
)

var (
	// ErrPeerUnreachable is returned by blocking receives and calls when a
	// peer timeout is configured and no message arrived in time.
	ErrPeerUnreachable = errors.New("fabric: peer unreachable")

	// ErrSubscriptionClosed is returned by Subscription.Next after Close.
	ErrSubscriptionClosed = errors.New("fabric: subscription closed")

	// ErrEmptyMessage is returned when pushing a message without frames.
	ErrEmptyMessage = errors.New("fabric: message has no frames")

	// ErrPrefixTooLong is returned when a prefix filter exceeds MaxTopicLength.
	ErrPrefixTooLong = errors.New("fabric: prefix longer than topic length")

	// ErrMalformedEnvelope is returned when a queued message or reply cannot be decoded.
	ErrMalformedEnvelope = errors.New("fabric: malformed envelope")

	// ErrRemote wraps an error reported by a service handler.
	ErrRemote = errors.New("fabric: remote error")
)

// Client provides instance-scoped fabric operations on top of Redis.
// All keys and channels are automatically namespaced with the instance name.
// The client is thread-safe and can be used concurrently from multiple goroutines.
type Client struct {
	rdb          *redis.Client
	instanceName string

	peerTimeout  time.Duration
	pollInterval time.Duration
	replyTTL     time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithPeerTimeout makes blocking receives and calls fail with
// ErrPeerUnreachable after d without a message. Zero blocks forever.
// Queue and service waits observe it with MinBlockTime resolution.
func WithPeerTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.peerTimeout = d
	}
}

// WithPollInterval sets the granularity of blocking pops. Values below
// MinBlockTime are raised to it.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.pollInterval = max(d, MinBlockTime)
		}
	}
}

// WithReplyTTL sets how long an unread service reply is kept.
func WithReplyTTL(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.replyTTL = d
		}
	}
}

// NewClient creates a new fabric client for the specified instance.
//
// Parameters:
//   - redisOpts: Redis connection options (address, password, DB, etc.)
//   - instanceName: pipeline instance identifier (must not be empty)
//
// Returns an error if instanceName is empty.
func NewClient(redisOpts *redis.Options, instanceName string, opts ...Option) (*Client, error) {
	if instanceName == "" {
		return nil, fmt.Errorf("instance name cannot be empty")
	}

	c := &Client{
		rdb:          redis.NewClient(redisOpts),
		instanceName: instanceName,
		pollInterval: DefaultPollInterval,
		replyTTL:     DefaultReplyTTL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// InstanceName returns the namespace this client operates in.
func (c *Client) InstanceName() string {
	return c.instanceName
}

// Close closes the Redis connection. Implements io.Closer.
// After calling Close(), the client should not be used.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity. Useful for health checks.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Broadcast returns the handle of a named broadcast endpoint.
func (c *Client) Broadcast(name string) *Broadcast {
	return &Broadcast{client: c, name: name}
}

// Queue returns the handle of a named work queue.
func (c *Client) Queue(name string) *Queue {
	return &Queue{client: c, name: name}
}

// Service returns the handle of a named request/reply service.
func (c *Client) Service(name string) *Service {
	return &Service{client: c, name: name}
}

// popBlocking pops the head of key, waiting until a value arrives, the
// context ends, or the peer timeout elapses.
func (c *Client) popBlocking(ctx context.Context, key string) (string, error) {
	start := time.Now()
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		wait := c.pollInterval
		if c.peerTimeout > 0 {
			remaining := c.peerTimeout - time.Since(start)
			if remaining <= 0 {
				return "", fmt.Errorf("%w: nothing received on %s after %v", ErrPeerUnreachable, key, c.peerTimeout)
			}
			if remaining < wait {
				wait = max(remaining, MinBlockTime)
			}
		}

		result, err := c.rdb.BLPop(ctx, wait, key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			return "", fmt.Errorf("failed to pop from %s: %w", key, err)
		}

		// BLPOP replies with [key, value]
		if len(result) != 2 {
			return "", fmt.Errorf("%w: unexpected BLPOP reply of %d elements", ErrMalformedEnvelope, len(result))
		}
		return result[1], nil
	}
}

// IsTimeout returns true if the error reports an unreachable peer.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrPeerUnreachable)
}
