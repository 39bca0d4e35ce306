package pipeline

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"strings"
)

// ErrInvalidSampleCount is returned for a sample count that is not a
// positive decimal integer.
var ErrInvalidSampleCount = errors.New("sample count must be a positive integer")

// SampleCountPrompt is shown to the operator before reading N.
const SampleCountPrompt = "Enter numbers of data points : "

// Decision is the classifier verdict for one sample.
type Decision string

const (
	Accept Decision = "Y"
	Reject Decision = "N"
)

// ParseDecision validates a decision token.
func ParseDecision(token string) (Decision, error) {
	switch Decision(token) {
	case Accept, Reject:
		return Decision(token), nil
	default:
		return "", fmt.Errorf("%w: unknown decision %q", ErrProtocolViolation, token)
	}
}

func decide(inside bool) Decision {
	if inside {
		return Accept
	}
	return Reject
}

// RunningEstimate accumulates decisions. Accepted is kept as four times the
// number of accepted samples so Accepted/Count is the estimate of π.
type RunningEstimate struct {
	Count    uint64
	Accepted uint64
}

// Observe folds one decision into the estimate.
func (e *RunningEstimate) Observe(d Decision) {
	e.Count++
	if d == Accept {
		e.Accepted += 4
	}
}

// Value returns the current estimate, or 0 before the first decision.
func (e RunningEstimate) Value() float64 {
	if e.Count == 0 {
		return 0
	}
	return float64(e.Accepted) / float64(e.Count)
}

// Rat returns the exact estimate.
func (e RunningEstimate) Rat() *big.Rat {
	if e.Count == 0 {
		return new(big.Rat)
	}
	return new(big.Rat).SetFrac(
		new(big.Int).SetUint64(e.Accepted),
		new(big.Int).SetUint64(e.Count),
	)
}

// Frames encodes the estimate as the two frames sent to the driver.
func (e RunningEstimate) Frames() []string {
	return []string{
		strconv.FormatUint(e.Count, 10),
		strconv.FormatFloat(e.Value(), 'f', -1, 64),
	}
}

// Report is one estimate as received by the driver.
type Report struct {
	Index uint64
	Value float64
	// Raw is the estimate exactly as transmitted.
	Raw string
}

// ParseEstimate decodes the frames of one estimate message.
func ParseEstimate(frames []string) (Report, error) {
	if len(frames) != 2 {
		return Report{}, fmt.Errorf("%w: estimate has %d frames, want 2", ErrProtocolViolation, len(frames))
	}

	index, err := strconv.ParseUint(frames[0], 10, 64)
	if err != nil {
		return Report{}, fmt.Errorf("%w: bad count %q", ErrProtocolViolation, frames[0])
	}
	value, err := strconv.ParseFloat(frames[1], 64)
	if err != nil {
		return Report{}, fmt.Errorf("%w: bad estimate %q", ErrProtocolViolation, frames[1])
	}
	return Report{Index: index, Value: value, Raw: frames[1]}, nil
}

// ParseSampleCount parses the operator's sample count.
func ParseSampleCount(s string) (int, error) {
	s = strings.TrimSpace(s)
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: got %q", ErrInvalidSampleCount, s)
	}
	return n, nil
}

// ReadSampleCount prompts on w and reads one line from r.
func ReadSampleCount(r io.Reader, w io.Writer) (int, error) {
	fmt.Fprint(w, SampleCountPrompt)

	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return 0, fmt.Errorf("failed to read sample count: %w", err)
	}
	return ParseSampleCount(line)
}
