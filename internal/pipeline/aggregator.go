package pipeline

import (
	"context"
	"fmt"
	"log"
)

// Aggregator merges decisions from both classifiers, in arrival order, into
// a running estimate and forwards it after every decision.
type Aggregator struct {
	decisions Puller
	estimates Pusher
	settings  Settings
	state     RunningEstimate
}

// NewAggregator creates an aggregator reading decisions and pushing estimates.
func NewAggregator(decisions Puller, estimates Pusher, settings Settings) *Aggregator {
	return &Aggregator{
		decisions: decisions,
		estimates: estimates,
		settings:  settings.withDefaults(),
	}
}

func (a *Aggregator) Kind() Kind { return KindAggregator }
func (a *Aggregator) role()      {}

// Estimate returns the current running estimate.
func (a *Aggregator) Estimate() RunningEstimate {
	return a.state
}

// Run aggregates decisions until ctx is cancelled.
func (a *Aggregator) Run(ctx context.Context) error {
	log.Printf("[Aggregator] Waiting for decisions")

	for {
		frames, err := pullWaiting(ctx, a.decisions)
		if err != nil {
			if shuttingDown(ctx, err) {
				return nil
			}
			return fmt.Errorf("failed to receive decision: %w", err)
		}

		if len(frames) != 1 {
			return fmt.Errorf("%w: decision has %d frames", ErrProtocolViolation, len(frames))
		}
		decision, err := ParseDecision(frames[0])
		if err != nil {
			return err
		}

		a.state.Observe(decision)
		a.settings.Sink.IncrCounterWithLabels(MetricAggregatorDecisions, 1,
			a.settings.labels(LabelDecision.M(string(decision))))
		a.settings.Sink.SetGaugeWithLabels(MetricAggregatorEstimate, float32(a.state.Value()), a.settings.labels())

		out := a.state.Frames()
		log.Printf("[Aggregator] %s -> count=%s estimate=%s", decision, out[0], out[1])
		if err := a.estimates.Push(ctx, out...); err != nil {
			if shuttingDown(ctx, err) {
				return nil
			}
			return fmt.Errorf("failed to push estimate: %w", err)
		}
	}
}
