package commands

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/dyluth/pisim/internal/pipeline"
	"github.com/dyluth/pisim/pkg/fabric"
	"github.com/dyluth/pisim/pkg/sample"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countCommand(in string) (*cobra.Command, *bytes.Buffer, *int) {
	var n int
	cmd := &cobra.Command{Use: "count"}
	cmd.Flags().IntVarP(&n, "count", "n", 0, "")
	out := new(bytes.Buffer)
	cmd.SetIn(strings.NewReader(in))
	cmd.SetOut(out)
	return cmd, out, &n
}

func TestResolveSampleCount(t *testing.T) {
	t.Run("from flag", func(t *testing.T) {
		cmd, out, n := countCommand("")
		require.NoError(t, cmd.Flags().Parse([]string{"--count", "42"}))

		got, err := resolveSampleCount(cmd, *n)
		require.NoError(t, err)
		assert.Equal(t, 42, got)
		assert.Empty(t, out.String(), "no prompt when the flag is given")
	})

	t.Run("non-positive flag", func(t *testing.T) {
		cmd, _, n := countCommand("")
		require.NoError(t, cmd.Flags().Parse([]string{"--count", "0"}))

		_, err := resolveSampleCount(cmd, *n)
		require.Error(t, err)
		assert.Equal(t, "invalid sample count", err.Error())
	})

	t.Run("prompted", func(t *testing.T) {
		cmd, out, n := countCommand("12\n")

		got, err := resolveSampleCount(cmd, *n)
		require.NoError(t, err)
		assert.Equal(t, 12, got)
		assert.Equal(t, pipeline.SampleCountPrompt, out.String())
	})

	t.Run("prompted garbage", func(t *testing.T) {
		cmd, _, n := countCommand("lots\n")

		_, err := resolveSampleCount(cmd, *n)
		require.Error(t, err)
		assert.Equal(t, "invalid sample count", err.Error())
	})
}

func TestRunRole(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		assert.NoError(t, runRole(context.Background(), "oracle", func(context.Context) error { return nil }))
	})

	t.Run("interrupted", func(t *testing.T) {
		err := runRole(context.Background(), "oracle", func(context.Context) error {
			return fmt.Errorf("serving: %w", context.Canceled)
		})
		assert.NoError(t, err)
	})

	t.Run("failures are classified", func(t *testing.T) {
		tests := []struct {
			cause error
			title string
		}{
			{fabric.ErrPeerUnreachable, "peer unreachable"},
			{pipeline.ErrRoutingViolation, "protocol violation"},
			{pipeline.ErrProtocolViolation, "protocol violation"},
			{sample.ErrEncodingMismatch, "protocol violation"},
			{errors.New("boom"), "sampler failed"},
		}
		for _, tt := range tests {
			err := runRole(context.Background(), "sampler", func(context.Context) error {
				return fmt.Errorf("wrapped: %w", tt.cause)
			})
			require.Error(t, err)
			assert.Equal(t, tt.title, err.Error())
		}
	})
}

func TestDriverRejectsInvalidCount(t *testing.T) {
	_, err := execute(t, "", "driver", "--count", "-3")
	require.Error(t, err)
	assert.Equal(t, "invalid sample count", err.Error())
}

func TestRoleFailsWithoutRedis(t *testing.T) {
	_, err := execute(t, "", "oracle", "--redis-url", "redis://127.0.0.1:1")
	require.Error(t, err)
	assert.Equal(t, "cannot reach Redis", err.Error())
}

func TestRoleRejectsBadInstanceName(t *testing.T) {
	mr := miniredis.RunT(t)
	_, err := execute(t, "", "oracle", "--redis-url", "redis://"+mr.Addr(), "--instance", "Not Valid!")
	require.Error(t, err)
	assert.Equal(t, "invalid configuration", err.Error())
}

func TestLocalRun(t *testing.T) {
	noColor := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = noColor })

	mr := miniredis.RunT(t)
	output, banner, err := executeCapture(t, "", "local", "--redis-url", "redis://"+mr.Addr(), "--count", "3")
	require.NoError(t, err)
	assert.Contains(t, banner, "→ Running all six roles as instance 'default-")
	assert.Contains(t, banner, "✓ Pipeline finished after 3 samples")

	lines := strings.Split(strings.TrimSpace(output), "\n")
	require.Len(t, lines, 3)
	for i, line := range lines {
		assert.True(t, strings.HasPrefix(line, fmt.Sprintf("Iteration : %d Pi value : ", i+1)), line)
	}
}

func TestLocalRunPromptsForCount(t *testing.T) {
	noColor := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = noColor })

	mr := miniredis.RunT(t)
	output, err := execute(t, "2\n", "local", "--redis-url", "redis://"+mr.Addr())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(output, pipeline.SampleCountPrompt))
	assert.Contains(t, output, "Iteration : 2 Pi value : ")
}

func TestLocalRunTwiceInOneProcess(t *testing.T) {
	noColor := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = noColor })

	mr := miniredis.RunT(t)
	for run := 1; run <= 2; run++ {
		output, err := execute(t, "", "local", "--redis-url", "redis://"+mr.Addr(), "--count", "1")
		require.NoError(t, err, "run %d", run)
		assert.Contains(t, output, "Iteration : 1 Pi value : ", "run %d", run)
	}
}
