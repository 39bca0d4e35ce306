package pipeline

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/dyluth/pisim/pkg/fabric"
)

// Endpoints names the five logical channels of the pipeline.
type Endpoints struct {
	Control   string `yaml:"control"`
	Samples   string `yaml:"samples"`
	Oracle    string `yaml:"oracle"`
	Decisions string `yaml:"decisions"`
	Estimates string `yaml:"estimates"`
}

// DefaultEndpoints returns the conventional endpoint names.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Control:   "control",
		Samples:   "samples",
		Oracle:    "oracle",
		Decisions: "decisions",
		Estimates: "estimates",
	}
}

// Builder constructs roles wired to a fabric client. Each role receives only
// the endpoints it uses.
type Builder struct {
	client    *fabric.Client
	endpoints Endpoints
	settings  Settings
}

// NewBuilder creates a builder for roles on client.
func NewBuilder(client *fabric.Client, endpoints Endpoints, settings Settings) *Builder {
	return &Builder{client: client, endpoints: endpoints, settings: settings}
}

func (b *Builder) Sampler() *Sampler {
	return NewSampler(b.client.Queue(b.endpoints.Control), b.client.Broadcast(b.endpoints.Samples), b.settings)
}

func (b *Builder) QuickClassifier() *QuickClassifier {
	return NewQuickClassifier(b.client.Broadcast(b.endpoints.Samples), b.client.Queue(b.endpoints.Decisions), b.settings)
}

func (b *Builder) DistanceClassifier() *DistanceClassifier {
	return NewDistanceClassifier(
		b.client.Broadcast(b.endpoints.Samples),
		b.client.Service(b.endpoints.Oracle),
		b.client.Queue(b.endpoints.Decisions),
		b.settings,
	)
}

func (b *Builder) DistanceOracle() *DistanceOracle {
	return NewDistanceOracle(b.client.Service(b.endpoints.Oracle), b.settings)
}

func (b *Builder) Aggregator() *Aggregator {
	return NewAggregator(b.client.Queue(b.endpoints.Decisions), b.client.Queue(b.endpoints.Estimates), b.settings)
}

func (b *Builder) Driver(count int, reporter Reporter) *Driver {
	return NewDriver(b.client.Queue(b.endpoints.Control), b.client.Queue(b.endpoints.Estimates), count, reporter, b.settings)
}

// Topology runs all six roles in one process. The long-running roles are
// started first; the driver starts once both classifiers are subscribed and
// the run ends when the driver has consumed its estimates.
type Topology struct {
	sampler    *Sampler
	quick      *QuickClassifier
	distance   *DistanceClassifier
	oracle     *DistanceOracle
	aggregator *Aggregator
	driver     *Driver
}

// NewTopology wires the six roles from b.
func NewTopology(b *Builder, count int, reporter Reporter) *Topology {
	return &Topology{
		sampler:    b.Sampler(),
		quick:      b.QuickClassifier(),
		distance:   b.DistanceClassifier(),
		oracle:     b.DistanceOracle(),
		aggregator: b.Aggregator(),
		driver:     b.Driver(count, reporter),
	}
}

// Roles returns every role of the topology.
func (t *Topology) Roles() []Role {
	return []Role{t.sampler, t.quick, t.distance, t.oracle, t.aggregator, t.driver}
}

// Run executes the pipeline until the driver is done. The first role
// failure stops every other role and is returned.
func (t *Topology) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	background := []Role{t.oracle, t.aggregator, t.quick, t.distance, t.sampler}
	errs := make(chan error, len(background))

	var wg sync.WaitGroup
	for _, r := range background {
		wg.Add(1)
		go func(r Role) {
			defer wg.Done()
			if err := r.Run(ctx); err != nil {
				errs <- fmt.Errorf("%s: %w", r.Kind(), err)
				cancel()
			}
		}(r)
	}

	var driverErr error
	for _, ready := range []<-chan struct{}{t.quick.Ready(), t.distance.Ready()} {
		select {
		case <-ready:
		case <-ctx.Done():
			driverErr = ctx.Err()
		}
		if driverErr != nil {
			break
		}
	}

	if driverErr == nil {
		log.Printf("[Topology] Classifiers subscribed, starting driver")
		driverErr = t.driver.Run(ctx)
	}

	cancel()
	wg.Wait()
	close(errs)

	if err, ok := <-errs; ok {
		return err
	}
	if driverErr != nil {
		return fmt.Errorf("%s: %w", t.driver.Kind(), driverErr)
	}
	return nil
}
