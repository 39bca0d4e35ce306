// Package pipeline implements the six roles of the π estimation pipeline.
//
// Each role is constructed with exactly the endpoint handles it talks to and
// owns its own state. Roles never share memory; they coordinate only through
// the fabric endpoints they are given.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/dyluth/pisim/pkg/fabric"
	"github.com/dyluth/pisim/pkg/sample"
	"github.com/hashicorp/go-metrics"
)

var (
	// ErrRoutingViolation is returned when a classifier receives a sample
	// whose topic it does not own.
	ErrRoutingViolation = errors.New("pipeline: sample routed to wrong classifier")

	// ErrProtocolViolation is returned when a peer sends a message that does
	// not follow the channel's payload format.
	ErrProtocolViolation = errors.New("pipeline: protocol violation")
)

// Kind identifies one of the six roles.
type Kind int

const (
	KindSampler Kind = iota
	KindQuickClassifier
	KindDistanceClassifier
	KindDistanceOracle
	KindAggregator
	KindDriver
)

func (k Kind) String() string {
	switch k {
	case KindSampler:
		return "sampler"
	case KindQuickClassifier:
		return "quick"
	case KindDistanceClassifier:
		return "distance"
	case KindDistanceOracle:
		return "oracle"
	case KindAggregator:
		return "aggregator"
	case KindDriver:
		return "driver"
	default:
		return "unknown"
	}
}

// Role is one pipeline stage. The set of roles is closed: only the types in
// this package implement it.
type Role interface {
	Kind() Kind
	// Run blocks until the role finishes or ctx is cancelled.
	Run(ctx context.Context) error

	role()
}

// Endpoint interfaces. The fabric types satisfy them; tests may substitute
// their own.
type (
	Puller interface {
		Pull(ctx context.Context) ([]string, error)
	}

	Pusher interface {
		Push(ctx context.Context, frames ...string) error
	}

	Publisher interface {
		Publish(ctx context.Context, msg string) error
	}

	Subscriber interface {
		Subscribe(ctx context.Context, prefixes ...string) (*fabric.Subscription, error)
	}

	Caller interface {
		Call(ctx context.Context, body string) (string, error)
	}

	Server interface {
		Serve(ctx context.Context, handler fabric.Handler) error
	}
)

// Settings holds the parameters shared by every role.
type Settings struct {
	// Instance is used to label logs and metrics.
	Instance string

	// Bits is the coordinate precision B. Zero means sample.DefaultBits.
	Bits int

	// EmitInterval is the delay between two samples.
	EmitInterval time.Duration

	// Seed fixes the random source. Zero seeds from the clock.
	Seed uint64

	// Sink receives metrics. Nil discards them.
	Sink metrics.MetricSink
}

func (s Settings) withDefaults() Settings {
	if s.Bits == 0 {
		s.Bits = sample.DefaultBits
	}
	if s.Sink == nil {
		s.Sink = &metrics.BlackholeSink{}
	}
	return s
}

// shuttingDown reports whether err is the consequence of ctx ending, which is
// how long-running roles are stopped.
func shuttingDown(ctx context.Context, err error) bool {
	return ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, fabric.ErrSubscriptionClosed))
}

// pullWaiting pulls the next message, waiting through peer timeouts. Roles
// that serve until cancelled stay up while their peers are idle; only the
// driver gives up on a silent peer.
func pullWaiting(ctx context.Context, p Puller) ([]string, error) {
	for {
		frames, err := p.Pull(ctx)
		if fabric.IsTimeout(err) {
			continue
		}
		return frames, err
	}
}
