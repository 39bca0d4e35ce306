package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dyluth/pisim/internal/pipeline"
	"github.com/dyluth/pisim/internal/printer"
	"github.com/spf13/cobra"
)

var sampleCount int

var samplerCmd = &cobra.Command{
	Use:   "sampler",
	Short: "Broadcast random samples once a sample count arrives",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveRole(cmd, pipeline.KindSampler, func(b *pipeline.Builder) pipeline.Role {
			return b.Sampler()
		})
	},
}

var quickCmd = &cobra.Command{
	Use:   "quick",
	Short: "Accept every sample in the quick topic",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveRole(cmd, pipeline.KindQuickClassifier, func(b *pipeline.Builder) pipeline.Role {
			return b.QuickClassifier()
		})
	},
}

var distanceCmd = &cobra.Command{
	Use:   "distance",
	Short: "Classify the remaining samples using the oracle",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveRole(cmd, pipeline.KindDistanceClassifier, func(b *pipeline.Builder) pipeline.Role {
			return b.DistanceClassifier()
		})
	},
}

var oracleCmd = &cobra.Command{
	Use:   "oracle",
	Short: "Serve sum-of-squares requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveRole(cmd, pipeline.KindDistanceOracle, func(b *pipeline.Builder) pipeline.Role {
			return b.DistanceOracle()
		})
	},
}

var aggregatorCmd = &cobra.Command{
	Use:   "aggregator",
	Short: "Merge decisions into a running estimate",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveRole(cmd, pipeline.KindAggregator, func(b *pipeline.Builder) pipeline.Role {
			return b.Aggregator()
		})
	},
}

var driverCmd = &cobra.Command{
	Use:   "driver",
	Short: "Request N samples and print each running estimate",
	Long: `Request N samples and print each running estimate.

When --count is not given the driver prompts for it on standard input.

Examples:
  pisim driver --count 1000
  echo 50 | pisim driver`,
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := resolveSampleCount(cmd, sampleCount)
		if err != nil {
			return err
		}
		reporter := printer.EstimateReporter(cmd.OutOrStdout())
		return serveRole(cmd, pipeline.KindDriver, func(b *pipeline.Builder) pipeline.Role {
			return b.Driver(n, reporter)
		})
	},
}

func init() {
	driverCmd.Flags().IntVarP(&sampleCount, "count", "n", 0, "Number of samples (prompted for when omitted)")

	rootCmd.AddCommand(samplerCmd, quickCmd, distanceCmd, oracleCmd, aggregatorCmd, driverCmd)
}

// serveRole connects, builds one role and runs it until it returns or the
// process receives SIGINT/SIGTERM.
func serveRole(cmd *cobra.Command, kind pipeline.Kind, build func(*pipeline.Builder) pipeline.Role) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	s, err := openSession(ctx, cmd, kind, false)
	if err != nil {
		return err
	}
	defer s.Close()

	role := build(s.builder())
	return runRole(ctx, role.Kind().String(), role.Run)
}

// resolveSampleCount returns the --count value, or prompts the operator for it.
func resolveSampleCount(cmd *cobra.Command, flagValue int) (int, error) {
	if cmd.Flags().Changed("count") {
		if flagValue <= 0 {
			return 0, invalidCount(fmt.Errorf("%w: got %d", pipeline.ErrInvalidSampleCount, flagValue))
		}
		return flagValue, nil
	}

	n, err := pipeline.ReadSampleCount(cmd.InOrStdin(), cmd.OutOrStdout())
	if err != nil {
		return 0, invalidCount(err)
	}
	return n, nil
}

func invalidCount(err error) error {
	return printer.Error(
		"invalid sample count",
		err.Error(),
		[]string{"Enter a positive integer, e.g. 1000"},
	)
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
