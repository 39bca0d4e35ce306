package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	version string
	commit  string
	date    string
)

// Global flags shared by every role
var (
	configPath string
	redisURL   string
	instanceID string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pisim",
	Short: "pisim - Monte-Carlo π estimation over a message fabric",
	Long: `pisim estimates π by Monte-Carlo sampling, split across six roles that
communicate only through Redis-backed messaging:

  sampler     broadcasts random coordinate samples
  quick       accepts samples that trivially fall inside the circle
  distance    classifies the remaining samples with the oracle
  oracle      answers sum-of-squares requests
  aggregator  merges decisions into a running estimate
  driver      requests N samples and prints the estimates

Run each role in its own process, or all of them at once with 'pisim local'.`,
	Version: version,
	// Prevent silent success when unknown flags are passed to root command
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	// Enable strict flag parsing - unknown flags will cause an error
	FParseErrWhitelist: cobra.FParseErrWhitelist{},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	// Silence Cobra's default error and usage printing
	// We print formatted colored errors directly in the printer package
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to pisim.yml (default: ./pisim.yml if present)")
	rootCmd.PersistentFlags().StringVar(&redisURL, "redis-url", "", "Redis URL (overrides config and PISIM_REDIS_URL)")
	rootCmd.PersistentFlags().StringVarP(&instanceID, "instance", "i", "", "Instance name (overrides config and PISIM_INSTANCE)")
}
