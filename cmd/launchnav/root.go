package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"launchnav/internal/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	logLevel string
}

// logger is built by the root command before any subcommand runs.
var logger = zap.NewNop()

var rootCmd = &cobra.Command{
	Use:   "launchnav",
	Short: "Inspect, normalize and report on launch journey files",
	Long: "launchnav works on launch journey JSON files offline: summary metrics,\n" +
		"flow diagram layout, paginated reports and legacy file migration.",
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		built, err := logging.New(rootFlags.logLevel, "console")
		if err != nil {
			return fmt.Errorf("build logger: %w", err)
		}
		logger = built
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootFlags.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	rootCmd.AddCommand(metricsCmd)
	rootCmd.AddCommand(layoutCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(normalizeCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
