package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/big"
	"time"

	"github.com/dyluth/pisim/pkg/fabric"
	"github.com/dyluth/pisim/pkg/sample"
)

// QuickClassifier accepts every sample in the quick topics without any
// computation: both coordinates are below half the radius.
type QuickClassifier struct {
	samples   Subscriber
	decisions Pusher
	settings  Settings
	ready     chan struct{}
}

// NewQuickClassifier creates a classifier subscribed to sample.QuickTopics.
func NewQuickClassifier(samples Subscriber, decisions Pusher, settings Settings) *QuickClassifier {
	return &QuickClassifier{
		samples:   samples,
		decisions: decisions,
		settings:  settings.withDefaults(),
		ready:     make(chan struct{}),
	}
}

func (c *QuickClassifier) Kind() Kind { return KindQuickClassifier }
func (c *QuickClassifier) role()      {}

// Ready is closed once the subscription is active.
func (c *QuickClassifier) Ready() <-chan struct{} { return c.ready }

// Run classifies samples until ctx is cancelled.
func (c *QuickClassifier) Run(ctx context.Context) error {
	sub, err := c.samples.Subscribe(ctx, sample.QuickTopics...)
	if err != nil {
		return fmt.Errorf("failed to subscribe to samples: %w", err)
	}
	defer sub.Close()
	close(c.ready)

	log.Printf("[Quick] Subscribed to topics %v", sub.Prefixes())

	return consume(ctx, sub, func(bits sample.Bits) error {
		log.Printf("[Quick] Receiving: %s", bits)
		if !sample.IsQuick(bits.Topic()) {
			return fmt.Errorf("%w: quick classifier received topic %q", ErrRoutingViolation, bits.Topic())
		}
		if _, _, err := bits.Decode(c.settings.Bits); err != nil {
			return err
		}
		return emit(ctx, c.decisions, Accept, KindQuickClassifier, c.settings)
	})
}

// DistanceClassifier decides samples outside the quick topics by asking the
// oracle for the squared distance from the origin.
type DistanceClassifier struct {
	samples   Subscriber
	oracle    Caller
	decisions Pusher
	settings  Settings
	ready     chan struct{}
}

// NewDistanceClassifier creates a classifier subscribed to sample.DistanceTopics.
func NewDistanceClassifier(samples Subscriber, oracle Caller, decisions Pusher, settings Settings) *DistanceClassifier {
	return &DistanceClassifier{
		samples:   samples,
		oracle:    oracle,
		decisions: decisions,
		settings:  settings.withDefaults(),
		ready:     make(chan struct{}),
	}
}

func (c *DistanceClassifier) Kind() Kind { return KindDistanceClassifier }
func (c *DistanceClassifier) role()      {}

// Ready is closed once the subscription is active.
func (c *DistanceClassifier) Ready() <-chan struct{} { return c.ready }

// Run classifies samples until ctx is cancelled.
func (c *DistanceClassifier) Run(ctx context.Context) error {
	sub, err := c.samples.Subscribe(ctx, sample.DistanceTopics...)
	if err != nil {
		return fmt.Errorf("failed to subscribe to samples: %w", err)
	}
	defer sub.Close()
	close(c.ready)

	log.Printf("[Distance] Subscribed to topics %v", sub.Prefixes())

	return consume(ctx, sub, func(bits sample.Bits) error {
		log.Printf("[Distance] Receiving: %s", bits)
		if sample.IsQuick(bits.Topic()) {
			return fmt.Errorf("%w: distance classifier received topic %q", ErrRoutingViolation, bits.Topic())
		}

		decision, err := c.classify(ctx, bits)
		if err != nil {
			return err
		}
		return emit(ctx, c.decisions, decision, KindDistanceClassifier, c.settings)
	})
}

func (c *DistanceClassifier) classify(ctx context.Context, bits sample.Bits) (Decision, error) {
	n, m, err := bits.Decode(c.settings.Bits)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal([]uint64{n, m})
	if err != nil {
		return "", fmt.Errorf("failed to encode oracle request: %w", err)
	}

	start := time.Now()
	reply, err := c.oracle.Call(ctx, string(body))
	if err != nil {
		return "", fmt.Errorf("oracle call failed: %w", err)
	}
	c.settings.Sink.AddSampleWithLabels(MetricClassifierOracleTime, sinceMillis(start), c.settings.labels())

	var sum big.Int
	if err := json.Unmarshal([]byte(reply), &sum); err != nil {
		return "", fmt.Errorf("%w: oracle replied %q", ErrProtocolViolation, reply)
	}

	log.Printf("[Distance] %s -> (%d, %d) sum=%s", bits, n, m, sum.String())
	return decide(sample.Inside(&sum, c.settings.Bits)), nil
}

// consume feeds every message of sub to handle until ctx ends or handle fails.
func consume(ctx context.Context, sub *fabric.Subscription, handle func(sample.Bits) error) error {
	for {
		msg, err := sub.Next(ctx)
		if fabric.IsTimeout(err) {
			// A classifier may see no samples of its topics for a while
			continue
		}
		if err != nil {
			if shuttingDown(ctx, err) {
				return nil
			}
			return err
		}

		if err := handle(sample.Bits(msg)); err != nil {
			if shuttingDown(ctx, err) {
				return nil
			}
			return err
		}
	}
}

func emit(ctx context.Context, decisions Pusher, d Decision, kind Kind, settings Settings) error {
	if err := decisions.Push(ctx, string(d)); err != nil {
		return fmt.Errorf("failed to push decision: %w", err)
	}
	settings.Sink.IncrCounterWithLabels(MetricClassifierDecisions, 1,
		settings.labels(LabelClassifier.M(kind.String()), LabelDecision.M(string(d))))
	return nil
}
