package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/big"
)

// DistanceOracle is a stateless service returning the sum of squares of the
// integers it is sent.
type DistanceOracle struct {
	server   Server
	settings Settings
}

// NewDistanceOracle creates an oracle answering on server.
func NewDistanceOracle(server Server, settings Settings) *DistanceOracle {
	return &DistanceOracle{
		server:   server,
		settings: settings.withDefaults(),
	}
}

func (o *DistanceOracle) Kind() Kind { return KindDistanceOracle }
func (o *DistanceOracle) role()      {}

// Run serves requests until ctx is cancelled.
func (o *DistanceOracle) Run(ctx context.Context) error {
	log.Printf("[Oracle] Serving sum of squares")

	err := o.server.Serve(ctx, o.Handle)
	if err != nil && shuttingDown(ctx, err) {
		return nil
	}
	return err
}

// Handle answers one request: a JSON array of integers in, a JSON integer out.
func (o *DistanceOracle) Handle(_ context.Context, body string) (string, error) {
	var values []*big.Int
	if err := json.Unmarshal([]byte(body), &values); err != nil {
		o.settings.Sink.IncrCounterWithLabels(MetricOracleErrors, 1, o.settings.labels(LabelError.M("bad_request")))
		return "", fmt.Errorf("%w: request %q is not an integer array", ErrProtocolViolation, body)
	}
	for _, v := range values {
		if v == nil {
			o.settings.Sink.IncrCounterWithLabels(MetricOracleErrors, 1, o.settings.labels(LabelError.M("bad_request")))
			return "", fmt.Errorf("%w: request %q contains null", ErrProtocolViolation, body)
		}
	}

	sum := SumOfSquares(values)
	o.settings.Sink.IncrCounterWithLabels(MetricOracleRequests, 1, o.settings.labels())
	log.Printf("[Oracle] %s -> %s", body, sum)

	reply, err := json.Marshal(sum)
	if err != nil {
		return "", fmt.Errorf("failed to encode sum: %w", err)
	}
	return string(reply), nil
}

// SumOfSquares returns the exact sum of v² over values.
func SumOfSquares(values []*big.Int) *big.Int {
	sum := new(big.Int)
	sq := new(big.Int)
	for _, v := range values {
		sum.Add(sum, sq.Mul(v, v))
	}
	return sum
}
