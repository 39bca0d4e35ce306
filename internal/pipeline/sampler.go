package pipeline

import (
	"context"
	"fmt"
	"log"
	"math/rand/v2"
	"time"

	"github.com/dyluth/pisim/pkg/sample"
)

// Sampler waits for a sample count on its control queue and then broadcasts
// that many random samples.
type Sampler struct {
	control  Puller
	samples  Publisher
	settings Settings
	rng      *rand.Rand
}

// NewSampler creates a sampler reading its count from control and publishing
// on samples.
func NewSampler(control Puller, samples Publisher, settings Settings) *Sampler {
	settings = settings.withDefaults()

	seed1, seed2 := settings.Seed, settings.Seed
	if settings.Seed == 0 {
		seed1, seed2 = uint64(time.Now().UnixNano()), rand.Uint64()
	}

	return &Sampler{
		control:  control,
		samples:  samples,
		settings: settings,
		rng:      rand.New(rand.NewPCG(seed1, seed2)),
	}
}

func (s *Sampler) Kind() Kind { return KindSampler }
func (s *Sampler) role()      {}

// Run blocks until a sample count arrives, publishes exactly that many
// samples and returns.
func (s *Sampler) Run(ctx context.Context) error {
	log.Printf("[Sampler] Waiting for sample count (B=%d)", s.settings.Bits)

	frames, err := pullWaiting(ctx, s.control)
	if err != nil {
		if shuttingDown(ctx, err) {
			return nil
		}
		return fmt.Errorf("failed to receive sample count: %w", err)
	}

	n, err := ParseSampleCount(frames[0])
	if err != nil {
		return fmt.Errorf("%w: %w", ErrProtocolViolation, err)
	}

	logEvent(KindSampler, s.settings.Instance, "sampling_started", map[string]interface{}{
		"count":         n,
		"precision":     s.settings.Bits,
		"emit_interval": s.settings.EmitInterval.String(),
	})

	for i := 0; i < n; i++ {
		if i > 0 && s.settings.EmitInterval > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(s.settings.EmitInterval):
			}
		}

		bits, err := sample.Generate(s.rng, s.settings.Bits)
		if err != nil {
			return err
		}

		if err := s.samples.Publish(ctx, string(bits)); err != nil {
			if shuttingDown(ctx, err) {
				return nil
			}
			return fmt.Errorf("failed to publish sample %d: %w", i+1, err)
		}

		log.Printf("[Sampler] Publishing: %s", bits)
		s.settings.Sink.IncrCounterWithLabels(MetricSamplerPublished, 1, s.settings.labels())
	}

	log.Printf("[Sampler] Published %d samples", n)
	return nil
}
