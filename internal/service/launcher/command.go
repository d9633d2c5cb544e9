package launcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/go-ps"

	"github.com/hawkeye-monitor/hawkeye-deploy/internal/config"
	"github.com/hawkeye-monitor/hawkeye-deploy/internal/logger"
	syncsvc "github.com/hawkeye-monitor/hawkeye-deploy/internal/service/sync"
)

// syncWaitInterval is how often the launcher re-checks a running sync.
const syncWaitInterval = 2 * time.Second

var (
	errAlreadyRunning  = errors.New("another launcher instance is already running")
	errNoEnvFile       = errors.New("environment file is missing")
	errNoStatusAddress = errors.New("status address is not configured")
)

// Options are inputs accepted by the launcher entry point.
type Options struct {
	// ConfigPath is the optional path to settings YAML file.
	ConfigPath string
	// ProgramPath overrides the program descriptor named by the configuration.
	ProgramPath string
	// StatusAddr overrides the status API listen address from the descriptor.
	StatusAddr string
}

// Run supervises the configured program until the context is canceled.
// It refuses to start when another launcher already runs and waits for any
// in-flight sync to finish before launching.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "hawkeye-launcher")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	program, err := LoadProgram(opts.ProgramPath, cfg)
	if err != nil {
		return err
	}

	if opts.StatusAddr != "" {
		program.StatusAddress = opts.StatusAddr
	}

	if program.EnvFile != "" {
		if _, err = os.Stat(program.EnvFile); err != nil {
			return fmt.Errorf("%w: %s", errNoEnvFile, program.EnvFile)
		}
	}

	if err = claimPIDFile(ctx, program.PidFile); err != nil {
		return err
	}

	defer func() {
		_ = os.Remove(program.PidFile)
	}()

	if err = waitForSync(ctx); err != nil {
		return err
	}

	supervisor := NewSupervisor(program)

	serveErr := make(chan error, 1)

	if program.StatusAddress != "" {
		server := NewStatusServer(supervisor)

		go func() {
			serveErr <- server.Serve(ctx, program.StatusAddress)
		}()
	}

	if err = supervisor.Supervise(ctx); err != nil {
		return err
	}

	select {
	case err = <-serveErr:
		return err
	default:
		return nil
	}
}

// ShowStatus queries a running launcher over its status API and prints the
// result as indented JSON on stdout. The descriptor's status address is used
// unless the options override it.
func ShowStatus(ctx context.Context, opts *Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	program, err := LoadProgram(opts.ProgramPath, cfg)
	if err != nil {
		return err
	}

	addr := program.StatusAddress
	if opts.StatusAddr != "" {
		addr = opts.StatusAddr
	}

	if addr == "" {
		return errNoStatusAddress
	}

	requestCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	status, err := FetchStatus(requestCtx, addr)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")

	return encoder.Encode(status)
}

// claimPIDFile records this process as the running launcher. A PID file left
// behind by a dead launcher is removed; a live one makes the start fail.
func claimPIDFile(ctx context.Context, path string) error {
	contents, err := os.ReadFile(filepath.Clean(path))

	switch {
	case err == nil:
		pid, parseErr := strconv.Atoi(strings.TrimSpace(string(contents)))
		if parseErr == nil && launcherProcessAlive(pid) {
			return fmt.Errorf("%w: pid %d", errAlreadyRunning, pid)
		}

		logger.InfoKV(ctx, "Removing stale PID file", "path", path, "pid", pid)

		if err = os.Remove(path); err != nil {
			return fmt.Errorf("remove stale pid file: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return fmt.Errorf("read pid file: %w", err)
	}

	pid := strconv.Itoa(os.Getpid())
	if err = os.WriteFile(path, []byte(pid+"\n"), 0o644); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}

	return nil
}

// launcherProcessAlive reports whether the given PID belongs to a running
// launcher process. Another executable reusing the PID does not count.
func launcherProcessAlive(pid int) bool {
	if pid <= 0 || pid == os.Getpid() {
		return false
	}

	process, err := ps.FindProcess(pid)
	if err != nil || process == nil {
		return false
	}

	return process.Executable() == syncsvc.LauncherExecutable()
}

// waitForSync blocks while a sync is applying a release on this host.
func waitForSync(ctx context.Context) error {
	for syncsvc.IsSyncRunningNow(ctx) {
		logger.Info(ctx, "A sync is in progress, waiting before launch")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(syncWaitInterval):
		}
	}

	return nil
}
