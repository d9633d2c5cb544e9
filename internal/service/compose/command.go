package compose

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/hawkeye-monitor/hawkeye-deploy/internal/config"
	"github.com/hawkeye-monitor/hawkeye-deploy/internal/envfile"
	"github.com/hawkeye-monitor/hawkeye-deploy/internal/logger"
	"github.com/hawkeye-monitor/hawkeye-deploy/internal/service/common"
)

// Operation is a lifecycle action on the containerized deployment.
type Operation string

// Supported lifecycle operations, mapped 1:1 onto `docker compose` verbs
// (Restart is down followed by up).
const (
	OperationBuild   Operation = "build"
	OperationUp      Operation = "up"
	OperationDown    Operation = "down"
	OperationPs      Operation = "ps"
	OperationLogs    Operation = "logs"
	OperationRestart Operation = "restart"
)

// DefaultLogsTail bounds the log lines shown without an explicit override.
const DefaultLogsTail = 100

var (
	// ErrDeclined is returned when the operator answers no at the confirmation gate.
	ErrDeclined = errors.New("operation declined by the operator")

	errDockerMissing      = errors.New("docker is not installed")
	errComposeUnavailable = errors.New("docker compose plugin is unavailable")
	errUnknownOperation   = errors.New("unknown operation")
)

// Options are inputs accepted by the compose entry point.
type Options struct {
	// ConfigPath is the optional path to the deployment manifest.
	ConfigPath string
	// Operation selects the lifecycle action.
	Operation Operation
	// AssumeYes skips the confirmation gate, for unattended runs.
	AssumeYes bool
	// Follow streams logs instead of printing a bounded tail.
	Follow bool
	// Tail is the number of log lines to show; 0 selects the default.
	Tail int
	// Runner overrides external command execution; nil selects the real one.
	Runner common.Runner
	// Input is the confirmation prompt source; nil selects stdin.
	Input io.Reader
	// Output is the confirmation prompt sink; nil selects stdout.
	Output io.Writer
}

// deployment holds the state for a single compose invocation.
type deployment struct {
	cfg    *config.Config
	runner common.Runner
	in     io.Reader
	out    io.Writer
}

// Run executes one lifecycle operation and is the public entry point for the CLI.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "hawkeye-compose")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load deployment manifest: %w", err)
	}

	d := &deployment{
		cfg:    cfg,
		runner: opts.Runner,
		in:     opts.Input,
		out:    opts.Output,
	}

	if d.runner == nil {
		d.runner = &common.ExecRunner{}
	}

	if d.in == nil {
		d.in = os.Stdin
	}

	if d.out == nil {
		d.out = os.Stdout
	}

	if err = d.preflight(ctx); err != nil {
		return err
	}

	if startsApplication(opts.Operation) {
		if err = d.gateOnEnvFile(ctx, opts.AssumeYes); err != nil {
			return err
		}
	}

	return d.execute(ctx, opts)
}

// startsApplication reports whether the operation builds or (re)starts the
// application and therefore must pass the env-file gate first.
func startsApplication(op Operation) bool {
	switch op {
	case OperationBuild, OperationUp, OperationRestart:
		return true
	case OperationDown, OperationPs, OperationLogs:
		return false
	default:
		return false
	}
}

// preflight verifies the container engine and its compose plugin are usable.
func (d *deployment) preflight(ctx context.Context) error {
	if _, err := d.runner.LookPath("docker"); err != nil {
		return fmt.Errorf("%w: %w", errDockerMissing, err)
	}

	if _, err := d.runner.Output(ctx, "docker", "compose", "version"); err != nil {
		return fmt.Errorf("%w: %w", errComposeUnavailable, err)
	}

	return nil
}

// gateOnEnvFile ensures the env file exists and, when the audit finds
// unfilled values, asks the operator whether to continue anyway.
func (d *deployment) gateOnEnvFile(ctx context.Context, assumeYes bool) error {
	created, err := envfile.Ensure(d.cfg.EnvFile, d.cfg.EnvTemplate)
	if err != nil {
		return err
	}

	if created {
		logger.InfoKV(ctx, "Created env file from template",
			"file", d.cfg.EnvFile, "template", d.cfg.EnvTemplate)
	}

	audit, err := envfile.AuditFile(d.cfg.EnvFile, d.cfg.RequiredEnvKeys, d.cfg.PlaceholderToken)
	if err != nil {
		return err
	}

	if audit.Clean() {
		return nil
	}

	logger.WarnKV(ctx, "Env file is not ready for production", "findings", audit.Summary())

	if assumeYes {
		return nil
	}

	proceed, err := common.Confirm(d.in, d.out, "Continue anyway?")
	if err != nil {
		return err
	}

	if !proceed {
		return ErrDeclined
	}

	return nil
}

// execute dispatches the operation to docker compose.
func (d *deployment) execute(ctx context.Context, opts *Options) error {
	switch opts.Operation {
	case OperationBuild:
		return d.compose(ctx, "build")
	case OperationUp:
		return d.compose(ctx, "up", "-d")
	case OperationDown:
		return d.compose(ctx, "down")
	case OperationPs:
		return d.compose(ctx, "ps")
	case OperationLogs:
		return d.logs(ctx, opts)
	case OperationRestart:
		if err := d.compose(ctx, "down"); err != nil {
			return err
		}

		return d.compose(ctx, "up", "-d")
	default:
		return fmt.Errorf("%q: %w", opts.Operation, errUnknownOperation)
	}
}

// logs prints a bounded tail of the deployment logs, optionally following.
func (d *deployment) logs(ctx context.Context, opts *Options) error {
	tail := opts.Tail
	if tail <= 0 {
		tail = DefaultLogsTail
	}

	args := []string{"logs", "--tail", strconv.Itoa(tail)}
	if opts.Follow {
		args = append(args, "--follow")
	}

	return d.compose(ctx, args...)
}

// compose invokes docker compose with the configured file and project.
func (d *deployment) compose(ctx context.Context, args ...string) error {
	full := append([]string{
		"compose",
		"--file", d.cfg.ComposeFile,
		"--project-name", d.cfg.ComposeProject,
	}, args...)

	logger.InfoKV(ctx, "Running docker compose",
		"project", d.cfg.ComposeProject, "operation", args[0])

	if err := d.runner.Run(ctx, "docker", full...); err != nil {
		return fmt.Errorf("docker compose %s: %w", args[0], err)
	}

	return nil
}
