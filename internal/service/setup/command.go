package setup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hawkeye-monitor/hawkeye-deploy/internal/config"
	"github.com/hawkeye-monitor/hawkeye-deploy/internal/envfile"
	"github.com/hawkeye-monitor/hawkeye-deploy/internal/logger"
	"github.com/hawkeye-monitor/hawkeye-deploy/internal/service/common"
)

var (
	errInterpreterTooOld = errors.New("interpreter version below required minimum")
	errNoVersionOutput   = errors.New("interpreter produced no version output")
)

// Options are inputs accepted by the setup entry point.
type Options struct {
	// ConfigPath is the optional path to the deployment manifest.
	ConfigPath string
	// SkipInstall skips the dependency installation step.
	SkipInstall bool
	// Runner overrides external command execution; nil selects the real one.
	Runner common.Runner
}

// bootstrapper holds the state for a single setup execution.
// It is intentionally unexported; call Run(ctx, Options) from callers.
type bootstrapper struct {
	cfg    *config.Config
	runner common.Runner
}

// Run executes the host bootstrap and is the public entry point for the CLI.
// Steps run sequentially and fail fast: interpreter gate, isolated
// environment, dependencies, working directories, env file.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "hawkeye-setup")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load deployment manifest: %w", err)
	}

	actor, err := common.DetectActor()
	if err != nil {
		return fmt.Errorf("detect actor: %w", err)
	}

	logger.InfoKV(ctx, "Bootstrapping host", "app", cfg.AppName, "actor", actor.String())

	runner := opts.Runner
	if runner == nil {
		runner = &common.ExecRunner{}
	}

	b := &bootstrapper{cfg: cfg, runner: runner}

	if err = b.checkInterpreter(ctx); err != nil {
		return err
	}

	if err = b.ensureVenv(ctx); err != nil {
		return err
	}

	if !opts.SkipInstall {
		if err = b.installDependencies(ctx); err != nil {
			return err
		}
	}

	if err = b.createDirectories(ctx); err != nil {
		return err
	}

	if err = b.ensureEnvFile(ctx); err != nil {
		return err
	}

	logger.Info(ctx, "Host bootstrap completed")

	return nil
}

// checkInterpreter verifies the configured interpreter exists and meets the
// minimum version. Nothing else runs when this gate fails.
func (b *bootstrapper) checkInterpreter(ctx context.Context) error {
	if _, err := b.runner.LookPath(b.cfg.Python); err != nil {
		return fmt.Errorf("interpreter not installed: %w", err)
	}

	output, err := b.runner.Output(ctx, b.cfg.Python, "--version")
	if err != nil {
		return fmt.Errorf("query interpreter version: %w", err)
	}

	got, err := parseInterpreterVersion(output)
	if err != nil {
		return err
	}

	minimum, err := parseVersion(b.cfg.PythonMinVersion)
	if err != nil {
		return fmt.Errorf("parse configured minimum: %w", err)
	}

	if !versionAtLeast(got, minimum) {
		return fmt.Errorf("%w: have %s, need %s or newer",
			errInterpreterTooOld, formatVersion(got), b.cfg.PythonMinVersion)
	}

	logger.InfoKV(ctx, "Interpreter version accepted",
		"interpreter", b.cfg.Python, "version", formatVersion(got))

	return nil
}

// ensureVenv creates the isolated environment only when its directory is absent.
func (b *bootstrapper) ensureVenv(ctx context.Context) error {
	if _, err := os.Stat(b.cfg.VenvDir); err == nil {
		logger.InfoKV(ctx, "Virtual environment already exists", "dir", b.cfg.VenvDir)
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat venv dir: %w", err)
	}

	logger.InfoKV(ctx, "Creating virtual environment", "dir", b.cfg.VenvDir)

	if err := b.runner.Run(ctx, b.cfg.Python, "-m", "venv", b.cfg.VenvDir); err != nil {
		return fmt.Errorf("create virtual environment: %w", err)
	}

	return nil
}

// installDependencies installs the declared dependency manifest into the venv.
func (b *bootstrapper) installDependencies(ctx context.Context) error {
	if _, err := os.Stat(b.cfg.RequirementsFile); err != nil {
		return fmt.Errorf("dependency manifest %s: %w", b.cfg.RequirementsFile, err)
	}

	pip := venvTool(b.cfg.VenvDir, "pip")

	logger.InfoKV(ctx, "Installing dependencies", "manifest", b.cfg.RequirementsFile)

	if err := b.runner.Run(ctx, pip, "install", "-r", b.cfg.RequirementsFile); err != nil {
		return fmt.Errorf("install dependencies: %w", err)
	}

	return nil
}

// createDirectories makes the working directories and enforces their modes
// whether or not they already existed.
func (b *bootstrapper) createDirectories(ctx context.Context) error {
	for _, dir := range b.cfg.Directories {
		if err := os.MkdirAll(dir.Path, dir.Mode); err != nil {
			return fmt.Errorf("create directory %s: %w", dir.Path, err)
		}

		// MkdirAll leaves an existing directory's mode alone and masks the
		// requested mode with the umask for a fresh one.
		if err := os.Chmod(dir.Path, dir.Mode); err != nil {
			return fmt.Errorf("set mode on %s: %w", dir.Path, err)
		}

		logger.InfoKV(ctx, "Directory ready", "path", dir.Path, "mode", dir.Mode.String())
	}

	return nil
}

// ensureEnvFile copies the template when needed and warns about unfilled
// values. Findings are non-fatal in this variant.
func (b *bootstrapper) ensureEnvFile(ctx context.Context) error {
	created, err := envfile.Ensure(b.cfg.EnvFile, b.cfg.EnvTemplate)
	if err != nil {
		return err
	}

	if created {
		logger.InfoKV(ctx, "Created env file from template",
			"file", b.cfg.EnvFile, "template", b.cfg.EnvTemplate)
	} else {
		logger.InfoKV(ctx, "Env file already exists", "file", b.cfg.EnvFile)
	}

	audit, err := envfile.AuditFile(b.cfg.EnvFile, b.cfg.RequiredEnvKeys, b.cfg.PlaceholderToken)
	if err != nil {
		return err
	}

	if !audit.Clean() {
		logger.WarnKV(ctx, "Env file is not ready for production", "findings", audit.Summary())
	}

	return nil
}

// venvTool returns the path of a tool inside the virtual environment,
// accounting for the Windows layout.
func venvTool(venvDir, name string) string {
	if isWindows() {
		return filepath.Join(venvDir, "Scripts", name+".exe")
	}

	return filepath.Join(venvDir, "bin", name)
}
