package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hawkeye-monitor/hawkeye-deploy/internal/config"
	"github.com/hawkeye-monitor/hawkeye-deploy/internal/logger"
	"github.com/hawkeye-monitor/hawkeye-deploy/internal/service/setup"
	"github.com/hawkeye-monitor/hawkeye-deploy/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// logLevel is the minimum level the logger reports.
	logLevel string
	// skipInstall skips dependency installation into the virtual environment.
	skipInstall bool

	// rootCmd represents the base command for bootstrapping a deployment host.
	rootCmd = &cobra.Command{
		Use:   "hawkeye-setup",
		Short: "Prepare a host for running the monitoring application.",
		Long: `Bootstraps a deployment host for the monitoring application.

Checks the Python interpreter against the minimum supported version, creates
the virtual environment when missing, installs dependencies, creates working
directories with the expected permissions, and materializes the environment
file from its template. The command is idempotent and safe to re-run.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if level, ok := logger.ParseLogLevel(logLevel); ok {
				logger.SetLevel(level)
			}

			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &setup.Options{
				ConfigPath:  configPath,
				SkipInstall: skipInstall,
			}

			return setup.Run(ctx, options)
		},
	}
)

// Execute runs the hawkeye-setup CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to configuration file (default "+config.DefaultConfigFilename+")")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.Flags().BoolVar(&skipInstall, "skip-install", false, "skip installing dependencies into the virtual environment")
}
