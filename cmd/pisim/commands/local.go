package commands

import (
	"github.com/dyluth/pisim/internal/pipeline"
	"github.com/dyluth/pisim/internal/printer"
	"github.com/spf13/cobra"
)

var localCmd = &cobra.Command{
	Use:   "local",
	Short: "Run all six roles in one process",
	Long: `Run all six roles in one process against a single Redis server.

Each role keeps its own fabric handles and communicates only through Redis,
exactly as separate processes would. The run uses a fresh namespace under the
instance name, so it never sees messages left by an earlier run.

Examples:
  pisim local --count 100
  pisim local --redis-url redis://localhost:6380`,
	RunE: runLocal,
}

var localCount int

func init() {
	localCmd.Flags().IntVarP(&localCount, "count", "n", 0, "Number of samples (prompted for when omitted)")
	rootCmd.AddCommand(localCmd)
}

func runLocal(cmd *cobra.Command, args []string) error {
	n, err := resolveSampleCount(cmd, localCount)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	s, err := openSession(ctx, cmd, pipeline.KindDriver, true)
	if err != nil {
		return err
	}
	defer s.Close()

	printer.Step(cmd.ErrOrStderr(), "Running all six roles as instance '%s'", s.client.InstanceName())

	topology := pipeline.NewTopology(s.builder(), n, printer.EstimateReporter(cmd.OutOrStdout()))
	if err := runRole(ctx, "local", topology.Run); err != nil {
		return err
	}
	if ctx.Err() == nil {
		printer.Success(cmd.ErrOrStderr(), "Pipeline finished after %d samples", n)
	}
	return nil
}
