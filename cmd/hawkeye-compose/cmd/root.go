package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hawkeye-monitor/hawkeye-deploy/internal/config"
	"github.com/hawkeye-monitor/hawkeye-deploy/internal/logger"
	"github.com/hawkeye-monitor/hawkeye-deploy/internal/service/compose"
	"github.com/hawkeye-monitor/hawkeye-deploy/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// logLevel is the minimum level the logger reports.
	logLevel string
	// assumeYes skips the environment confirmation gate.
	assumeYes bool
	// follow streams logs until interrupted.
	follow bool
	// tail is the number of log lines to show per service.
	tail int

	// rootCmd represents the base command for driving the containerized deployment.
	rootCmd = &cobra.Command{
		Use:   "hawkeye-compose",
		Short: "Manage the containerized deployment of the monitoring application.",
		Long: `Drives the docker compose lifecycle of the monitoring application.

Wraps docker compose with the project's compose file and project name, checks
that the docker CLI and its compose plugin are available, and gates operations
that start the application behind an environment file audit so the container
never launches with missing or placeholder credentials.`,
	}
)

// runOperation executes one compose lifecycle action with shared flag wiring.
func runOperation(operation compose.Operation) error {
	if level, ok := logger.ParseLogLevel(logLevel); ok {
		logger.SetLevel(level)
	}

	// Setup graceful shutdown handling.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	options := &compose.Options{
		ConfigPath: configPath,
		Operation:  operation,
		AssumeYes:  assumeYes,
		Follow:     follow,
		Tail:       tail,
	}

	return compose.Run(ctx, options)
}

// operationCommand builds a subcommand for a single lifecycle action.
func operationCommand(operation compose.Operation, short string) *cobra.Command {
	return &cobra.Command{
		Use:   string(operation),
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runOperation(operation)
		},
	}
}

// Execute runs the hawkeye-compose CLI and exits with non-zero status on error.
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
	rootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "assume yes at the environment confirmation gate")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	logsCmd := operationCommand(compose.OperationLogs, "Show application logs")
	logsCmd.Flags().BoolVarP(&follow, "follow", "f", false, "follow log output")
	logsCmd.Flags().IntVarP(&tail, "tail", "n", compose.DefaultLogsTail, "number of log lines to show per service")

	rootCmd.AddCommand(
		operationCommand(compose.OperationBuild, "Build the application image"),
		operationCommand(compose.OperationUp, "Start the application in the background"),
		operationCommand(compose.OperationDown, "Stop the application and remove its containers"),
		operationCommand(compose.OperationPs, "Show container status"),
		logsCmd,
		operationCommand(compose.OperationRestart, "Restart the application"),
	)
}
