package pipeline

import (
	"context"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/hashicorp/go-metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregatorEmitsAfterEveryDecision(t *testing.T) {
	decisions := newMemQueue(8)
	estimates := newMemQueue(8)
	sink := metrics.NewInmemSink(time.Second, time.Minute)

	runRole(t, NewAggregator(decisions, estimates, Settings{Instance: "agg", Sink: sink}))

	ctx := context.Background()
	for _, d := range []Decision{Accept, Reject, Accept, Accept} {
		require.NoError(t, decisions.Push(ctx, string(d)))
	}

	expected := []struct {
		count string
		value float64
	}{
		{"1", 4},
		{"2", 2},
		{"3", 8.0 / 3.0},
		{"4", 3},
	}

	for _, e := range expected {
		pullCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		frames, err := estimates.Pull(pullCtx)
		cancel()
		require.NoError(t, err)
		require.Len(t, frames, 2)
		assert.Equal(t, e.count, frames[0])

		value, err := strconv.ParseFloat(frames[1], 64)
		require.NoError(t, err)
		assert.Equal(t, e.value, value)
	}

	var accepted float64
	for _, interval := range sink.Data() {
		interval.RLock()
		for key, counter := range interval.Counters {
			if strings.HasPrefix(key, strings.Join(MetricAggregatorDecisions, ".")) && strings.Contains(key, "decision=Y") {
				accepted += counter.Sum
			}
		}
		interval.RUnlock()
	}
	assert.Equal(t, 3.0, accepted)
}

func TestAggregatorRejectsUnknownDecision(t *testing.T) {
	decisions := newMemQueue(1)
	agg := NewAggregator(decisions, newMemQueue(1), Settings{})

	require.NoError(t, decisions.Push(context.Background(), "maybe"))

	err := agg.Run(context.Background())
	assert.ErrorIs(t, err, ErrProtocolViolation)
	assert.Zero(t, agg.Estimate().Count)
}

func TestAggregatorRejectsMultiFrameDecision(t *testing.T) {
	decisions := newMemQueue(1)
	agg := NewAggregator(decisions, newMemQueue(1), Settings{})

	require.NoError(t, decisions.Push(context.Background(), "Y", "Y"))

	err := agg.Run(context.Background())
	assert.ErrorIs(t, err, ErrProtocolViolation)
}

func TestAggregatorMergesProducersOverFabric(t *testing.T) {
	client, mr := setupFabric(t)
	ctx := context.Background()

	agg := NewAggregator(client.Queue("decisions"), client.Queue("estimates"), Settings{})
	runRole(t, agg)

	// Two producers on separate connections feed the same queue
	other := newPeerClient(t, mr)
	for i := 0; i < 5; i++ {
		require.NoError(t, client.Queue("decisions").Push(ctx, "Y"))
		require.NoError(t, other.Queue("decisions").Push(ctx, "N"))
	}

	for i := 1; i <= 10; i++ {
		pullCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		frames, err := client.Queue("estimates").Pull(pullCtx)
		cancel()
		require.NoError(t, err)

		report, err := ParseEstimate(frames)
		require.NoError(t, err)
		assert.Equal(t, uint64(i), report.Index, "count grows by one per decision")
	}
}
