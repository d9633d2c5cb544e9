package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hawkeye-monitor/hawkeye-deploy/internal/config"
	"github.com/hawkeye-monitor/hawkeye-deploy/internal/logger"
	"github.com/hawkeye-monitor/hawkeye-deploy/internal/service/launcher"
	"github.com/hawkeye-monitor/hawkeye-deploy/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// logLevel is the minimum level the logger reports.
	logLevel string
	// programPath overrides the program descriptor from configuration.
	programPath string
	// statusAddr overrides the status API listen address.
	statusAddr string

	// rootCmd represents the base command for supervising the application.
	rootCmd = &cobra.Command{
		Use:   "hawkeye-launcher",
		Short: "Run and supervise the monitoring application.",
		Long: `Supervises the monitoring application on a deployment host.

Launches the program described by the descriptor file with its environment
file applied, restarts it after crashes within a bounded budget, and captures
both output streams into timestamped log files. Refuses to start when another
launcher already runs and waits for an in-flight sync to finish first.

When a status address is configured, a small HTTP API exposes health checks,
the supervisor state, and an operator-requested restart endpoint.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if level, ok := logger.ParseLogLevel(logLevel); ok {
				logger.SetLevel(level)
			}

			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &launcher.Options{
				ConfigPath:  configPath,
				ProgramPath: programPath,
				StatusAddr:  statusAddr,
			}

			return launcher.Run(ctx, options)
		},
	}

	// statusCmd queries a running launcher over its status API.
	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Print the running launcher's supervisor status.",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &launcher.Options{
				ConfigPath:  configPath,
				ProgramPath: programPath,
				StatusAddr:  statusAddr,
			}

			return launcher.ShowStatus(ctx, options)
		},
	}
)

// Execute runs the hawkeye-launcher CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", "", "path to configuration file (default "+config.DefaultConfigFilename+")")
	rootCmd.PersistentFlags().
		StringVarP(&programPath, "program", "p", "", "path to program descriptor (default "+config.DefaultProgramFilename+")")
	rootCmd.PersistentFlags().StringVar(&statusAddr, "status-addr", "", "address of the status API")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(statusCmd)
}
