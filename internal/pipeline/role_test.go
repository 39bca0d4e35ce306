package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/dyluth/pisim/pkg/fabric"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// silentPuller times out a number of times before delivering its message
type silentPuller struct {
	mu       sync.Mutex
	timeouts int
	frames   []string
}

func (p *silentPuller) Pull(ctx context.Context) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.timeouts > 0 {
		p.timeouts--
		return nil, fmt.Errorf("%w: nothing yet", fabric.ErrPeerUnreachable)
	}
	if p.frames == nil {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	frames := p.frames
	p.frames = nil
	return frames, nil
}

// syncBuffer is a log destination safe for concurrent roles
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func captureLog(t *testing.T) *syncBuffer {
	t.Helper()
	buf := &syncBuffer{}
	log.SetOutput(buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })
	return buf
}

func TestPullWaiting(t *testing.T) {
	t.Run("waits through peer timeouts", func(t *testing.T) {
		frames, err := pullWaiting(context.Background(), &silentPuller{timeouts: 3, frames: []string{"7"}})
		require.NoError(t, err)
		assert.Equal(t, []string{"7"}, frames)
	})

	t.Run("stops on cancel", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := pullWaiting(ctx, &silentPuller{timeouts: 1})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestSamplerWaitsThroughPeerTimeouts(t *testing.T) {
	pub := &recorder{}
	sampler := NewSampler(&silentPuller{timeouts: 2, frames: []string{"3"}}, pub, Settings{Bits: 4, Seed: 9})

	require.NoError(t, sampler.Run(context.Background()))
	assert.Len(t, pub.messages(), 3)
}

func TestAggregatorWaitsThroughPeerTimeouts(t *testing.T) {
	estimates := newMemQueue(1)
	runRole(t, NewAggregator(&silentPuller{timeouts: 2, frames: []string{"Y"}}, estimates, Settings{}))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	frames, err := estimates.Pull(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "4"}, frames)
}

func TestClassifierWaitsThroughPeerTimeouts(t *testing.T) {
	_, mr := setupFabric(t)
	client, err := fabric.NewClient(&redis.Options{Addr: mr.Addr()}, "test-instance", fabric.WithPeerTimeout(50*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	decisions := newMemQueue(4)
	quick := NewQuickClassifier(client.Broadcast("samples"), decisions, Settings{Bits: 2})
	done := runRole(t, quick)
	waitReady(t, quick.Ready())

	// Several peer timeouts elapse before the first sample
	time.Sleep(200 * time.Millisecond)
	select {
	case err := <-done:
		t.Fatalf("classifier stopped while idle: %v", err)
	default:
	}

	require.NoError(t, newPeerClient(t, mr).Broadcast("samples").Publish(context.Background(), "0001"))
	assert.Equal(t, Accept, pullDecision(t, decisions))
}

func TestQuickClassifierLogsReceivedSamples(t *testing.T) {
	logs := captureLog(t)
	client, _ := setupFabric(t)

	decisions := newMemQueue(4)
	quick := NewQuickClassifier(client.Broadcast("samples"), decisions, Settings{Bits: 2})
	runRole(t, quick)
	waitReady(t, quick.Ready())

	require.NoError(t, client.Broadcast("samples").Publish(context.Background(), "0010"))
	assert.Equal(t, Accept, pullDecision(t, decisions))

	assert.Contains(t, logs.String(), "[Quick] Subscribed to topics [00]")
	assert.Contains(t, logs.String(), "[Quick] Receiving: 0010")
}
