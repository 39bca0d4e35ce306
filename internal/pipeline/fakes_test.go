package pipeline

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/dyluth/pisim/pkg/fabric"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// memQueue is an in-process Pusher/Puller
type memQueue struct {
	ch chan []string
}

func newMemQueue(size int) *memQueue {
	return &memQueue{ch: make(chan []string, size)}
}

func (q *memQueue) Push(ctx context.Context, frames ...string) error {
	select {
	case q.ch <- frames:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *memQueue) Pull(ctx context.Context) ([]string, error) {
	select {
	case frames := <-q.ch:
		return frames, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// recorder is a Publisher keeping every message
type recorder struct {
	mu   sync.Mutex
	msgs []string
}

func (r *recorder) Publish(_ context.Context, msg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return nil
}

func (r *recorder) messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.msgs...)
}

// fixedOracle is a Caller replying with a constant sum
type fixedOracle string

func (o fixedOracle) Call(_ context.Context, _ string) (string, error) {
	return string(o), nil
}

// unfiltered ignores the prefixes it is asked for, to exercise routing checks
type unfiltered struct {
	b *fabric.Broadcast
}

func (u unfiltered) Subscribe(ctx context.Context, _ ...string) (*fabric.Subscription, error) {
	return u.b.Subscribe(ctx)
}

// setupFabric returns a fabric client on a fresh miniredis
func setupFabric(t *testing.T) (*fabric.Client, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)

	client, err := fabric.NewClient(&redis.Options{Addr: mr.Addr()}, "test-instance")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client, mr
}

// newPeerClient opens another connection to the same server
func newPeerClient(t *testing.T, mr *miniredis.Miniredis) *fabric.Client {
	client, err := fabric.NewClient(&redis.Options{Addr: mr.Addr()}, "test-instance")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

// runRole starts r in the background and stops it at cleanup
func runRole(t *testing.T, r Role) <-chan error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- r.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return done
}
