package pipeline

import (
	"bytes"
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDecision(t *testing.T) {
	d, err := ParseDecision("Y")
	require.NoError(t, err)
	assert.Equal(t, Accept, d)

	d, err = ParseDecision("N")
	require.NoError(t, err)
	assert.Equal(t, Reject, d)

	for _, bad := range []string{"", "y", "YES", "0"} {
		_, err := ParseDecision(bad)
		assert.ErrorIs(t, err, ErrProtocolViolation, "token %q", bad)
	}
}

func TestRunningEstimateIsExact(t *testing.T) {
	decisions := []Decision{Accept, Reject, Accept, Accept, Reject, Reject, Accept}

	var est RunningEstimate
	accepted := int64(0)
	for k, d := range decisions {
		est.Observe(d)
		if d == Accept {
			accepted++
		}

		expected := big.NewRat(4*accepted, int64(k+1))
		assert.Equal(t, 0, expected.Cmp(est.Rat()), "after %d decisions", k+1)
		assert.Equal(t, uint64(k+1), est.Count)
	}
}

func TestRunningEstimateEmpty(t *testing.T) {
	var est RunningEstimate
	assert.Zero(t, est.Value())
	assert.Equal(t, 0, est.Rat().Sign())
}

func TestEstimateFrames(t *testing.T) {
	est := RunningEstimate{Count: 3, Accepted: 8}
	frames := est.Frames()
	assert.Equal(t, []string{"3", "2.6666666666666665"}, frames)

	report, err := ParseEstimate(frames)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), report.Index)
	assert.Equal(t, 8.0/3.0, report.Value)
	assert.Equal(t, "2.6666666666666665", report.Raw)

	assert.Equal(t, []string{"1", "4"}, RunningEstimate{Count: 1, Accepted: 4}.Frames())
}

func TestParseEstimateRejectsMalformed(t *testing.T) {
	tests := []struct {
		name   string
		frames []string
	}{
		{"one frame", []string{"1"}},
		{"three frames", []string{"1", "4", "x"}},
		{"bad count", []string{"one", "4"}},
		{"bad value", []string{"1", "pi"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseEstimate(tt.frames)
			assert.ErrorIs(t, err, ErrProtocolViolation)
		})
	}
}

func TestParseSampleCount(t *testing.T) {
	tests := []struct {
		input    string
		expected int
		wantErr  bool
	}{
		{"5", 5, false},
		{" 12\n", 12, false},
		{"0", 0, true},
		{"-3", 0, true},
		{"five", 0, true},
		{"", 0, true},
		{"2.5", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			n, err := ParseSampleCount(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidSampleCount)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, n)
		})
	}
}

func TestReadSampleCount(t *testing.T) {
	t.Run("prompts and parses", func(t *testing.T) {
		var out bytes.Buffer
		n, err := ReadSampleCount(strings.NewReader("7\n"), &out)
		require.NoError(t, err)
		assert.Equal(t, 7, n)
		assert.Equal(t, SampleCountPrompt, out.String())
	})

	t.Run("accepts missing newline", func(t *testing.T) {
		n, err := ReadSampleCount(strings.NewReader("3"), &bytes.Buffer{})
		require.NoError(t, err)
		assert.Equal(t, 3, n)
	})

	t.Run("fails on empty input", func(t *testing.T) {
		_, err := ReadSampleCount(strings.NewReader(""), &bytes.Buffer{})
		assert.Error(t, err)
	})

	t.Run("fails on garbage", func(t *testing.T) {
		_, err := ReadSampleCount(strings.NewReader("abc\n"), &bytes.Buffer{})
		assert.ErrorIs(t, err, ErrInvalidSampleCount)
	})
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "sampler", KindSampler.String())
	assert.Equal(t, "quick", KindQuickClassifier.String())
	assert.Equal(t, "distance", KindDistanceClassifier.String())
	assert.Equal(t, "oracle", KindDistanceOracle.String())
	assert.Equal(t, "aggregator", KindAggregator.String())
	assert.Equal(t, "driver", KindDriver.String())
	assert.Equal(t, "unknown", Kind(99).String())
}
