package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hawkeye-monitor/hawkeye-deploy/internal/config"
	"github.com/hawkeye-monitor/hawkeye-deploy/internal/logger"
	syncsvc "github.com/hawkeye-monitor/hawkeye-deploy/internal/service/sync"
	"github.com/hawkeye-monitor/hawkeye-deploy/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// logLevel is the minimum level the logger reports.
	logLevel string
	// skipLaunch leaves the launcher stopped after applying a release.
	skipLaunch bool

	// rootCmd represents the base command for applying published releases.
	rootCmd = &cobra.Command{
		Use:   "hawkeye-sync",
		Short: "Download and apply releases from the release folder",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if level, ok := logger.ParseLogLevel(logLevel); ok {
				logger.SetLevel(level)
			}

			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &syncsvc.Options{
				ConfigPath: configPath,
				SkipLaunch: skipLaunch,
			}

			return syncsvc.Run(ctx, options)
		},
	}
)

// Execute runs the hawkeye-sync CLI and exits with non-zero status on error.
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
	rootCmd.Flags().BoolVar(&skipLaunch, "skip-launch", false, "do not start the launcher after applying the release")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
}
