package fabric

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// subscriptionBuffer is the number of messages held between Redis and the
// consumer before the reader goroutine applies back-pressure.
const subscriptionBuffer = 1024

// Broadcast is a named one-to-many endpoint with prefix filtering.
type Broadcast struct {
	client *Client
	name   string
}

// Publish sends msg to every subscriber whose prefixes match it.
// Delivery is at-most-once: subscribers that are not connected miss the message.
func (b *Broadcast) Publish(ctx context.Context, msg string) error {
	channel := BroadcastChannel(b.client.instanceName, b.name, msg)
	if err := b.client.rdb.Publish(ctx, channel, msg).Err(); err != nil {
		return fmt.Errorf("failed to publish on %s: %w", b.name, err)
	}
	return nil
}

// Subscribe starts receiving messages that begin with any of prefixes.
// With no prefixes every message on the endpoint is received.
//
// Subscribe returns once Redis has confirmed every pattern, so a message
// published after Subscribe returns is guaranteed to be delivered.
// Caller must call Close() when done. Context cancellation also stops the subscription.
func (b *Broadcast) Subscribe(ctx context.Context, prefixes ...string) (*Subscription, error) {
	for _, p := range prefixes {
		if len(p) > MaxTopicLength {
			return nil, fmt.Errorf("%w: %q", ErrPrefixTooLong, p)
		}
	}

	normalized := normalizePrefixes(prefixes)
	patterns := make([]string, len(normalized))
	for i, p := range normalized {
		patterns[i] = BroadcastPattern(b.client.instanceName, b.name, p)
	}

	pubsub := b.client.rdb.PSubscribe(ctx, patterns...)

	// Wait for one confirmation per pattern
	for range patterns {
		if _, err := pubsub.Receive(ctx); err != nil {
			pubsub.Close()
			return nil, fmt.Errorf("failed to subscribe to %s: %w", b.name, err)
		}
	}

	messages := make(chan string, subscriptionBuffer)
	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(messages)
		defer pubsub.Close()

		ch := pubsub.Channel(redis.WithChannelSize(subscriptionBuffer))
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case messages <- msg.Payload:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription{
		messages:    messages,
		prefixes:    normalized,
		cancel:      cancelFunc,
		peerTimeout: b.client.peerTimeout,
	}, nil
}

// Subscription represents an active prefix-filtered broadcast subscription.
// Caller must call Close() when done to clean up resources.
type Subscription struct {
	messages    <-chan string
	prefixes    []string
	cancel      func()
	once        sync.Once
	peerTimeout time.Duration
}

// Messages returns the channel of received messages, in publication order.
// The channel is closed when the subscription is closed or the context is cancelled.
func (s *Subscription) Messages() <-chan string {
	return s.messages
}

// Prefixes returns the effective prefix filters after normalization.
func (s *Subscription) Prefixes() []string {
	return s.prefixes
}

// Next blocks until the next message arrives. It fails with
// ErrPeerUnreachable when a peer timeout is configured and elapses first.
func (s *Subscription) Next(ctx context.Context) (string, error) {
	var timeout <-chan time.Time
	if s.peerTimeout > 0 {
		timer := time.NewTimer(s.peerTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-timeout:
		return "", fmt.Errorf("%w: no broadcast received after %v", ErrPeerUnreachable, s.peerTimeout)
	case msg, ok := <-s.messages:
		if !ok {
			return "", ErrSubscriptionClosed
		}
		return msg, nil
	}
}

// Close stops the subscription and cleans up resources. Implements io.Closer.
// Safe to call multiple times - subsequent calls are no-ops.
func (s *Subscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}
