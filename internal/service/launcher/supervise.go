package launcher

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/hawkeye-monitor/hawkeye-deploy/internal/envfile"
	"github.com/hawkeye-monitor/hawkeye-deploy/internal/logger"
)

// State describes what the supervisor is currently doing.
type State string

// Supervisor states as exposed through the status API.
const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateBackoff   State = "backoff"
	StateStopped   State = "stopped"
	StateExhausted State = "exhausted"
)

var (
	// ErrNotRunning is returned when a restart is requested while no child is alive.
	ErrNotRunning = errors.New("program is not running")

	errRestartsExhausted = errors.New("restart limit exhausted")
)

// Supervisor keeps one program running according to its restart policy.
type Supervisor struct {
	program *Program

	stdout io.WriteCloser
	stderr io.WriteCloser

	// copiers tracks the goroutines draining the child's output streams.
	copiers sync.WaitGroup

	mu               sync.Mutex
	cmd              *exec.Cmd
	state            State
	restartRequested bool
	failures         int
	totalRestarts    int
	startedAt        time.Time
	lastExit         string
}

// NewSupervisor creates a supervisor for the validated program descriptor.
func NewSupervisor(p *Program) *Supervisor {
	return &Supervisor{
		program: p,
		state:   StateIdle,
	}
}

// Supervise launches the program and keeps it alive until the context is
// canceled, the restart budget is exhausted, or the program finishes cleanly
// with autorestart off. It blocks for the whole lifetime of the program.
func (s *Supervisor) Supervise(ctx context.Context) error {
	if err := s.openLogs(); err != nil {
		return err
	}

	defer s.closeLogs()

	for {
		exitErr, uptime, startFailed := s.runOnce(ctx)

		if ctx.Err() != nil {
			s.setState(StateStopped)
			logger.InfoKV(ctx, "Supervisor stopped", "program", s.program.Name)

			return nil
		}

		s.mu.Lock()
		requested := s.restartRequested
		s.restartRequested = false
		s.lastExit = exitDescription(exitErr)
		s.mu.Unlock()

		if exitErr == nil && !s.program.Autorestart {
			s.setState(StateStopped)
			logger.InfoKV(ctx, "Program finished", "program", s.program.Name)

			return nil
		}

		if !s.program.Autorestart {
			s.setState(StateStopped)
			return fmt.Errorf("program exited: %w", exitErr)
		}

		switch {
		case requested:
			// Operator-requested restarts never count against the budget.
			s.resetFailures()
		case !startFailed && uptime >= s.program.StableUptime:
			s.resetFailures()
		default:
			failures := s.addFailure()
			if failures > s.program.MaxRestarts {
				s.setState(StateExhausted)
				return fmt.Errorf("%w: %d consecutive failures", errRestartsExhausted, failures-1)
			}
		}

		s.setState(StateBackoff)
		logger.InfoKV(ctx, "Relaunching program",
			"program", s.program.Name,
			"delay", s.program.RestartDelay.String(),
			"exit", exitDescription(exitErr))

		select {
		case <-ctx.Done():
			s.setState(StateStopped)
			return nil
		case <-time.After(s.program.RestartDelay):
		}
	}
}

// runOnce starts the child and waits for it to exit or for the context to be
// canceled. It reports the exit error, how long the child ran, and whether
// the failure happened before the program even started.
func (s *Supervisor) runOnce(ctx context.Context) (exitErr error, uptime time.Duration, startFailed bool) {
	cmd, err := s.startChild(ctx)
	if err != nil {
		logger.ErrorKV(ctx, "Program failed to start", "program", s.program.Name, "error", err)
		return err, 0, true
	}

	started := time.Now()
	done := make(chan error, 1)

	go func() {
		done <- cmd.Wait()
	}()

	select {
	case <-ctx.Done():
		killTimer := s.terminate(ctx, cmd)
		exitErr = <-done

		if killTimer != nil {
			killTimer.Stop()
		}
	case exitErr = <-done:
	}

	// Drain the output copiers so log lines are not lost between runs.
	s.copiers.Wait()

	s.mu.Lock()
	s.cmd = nil
	s.mu.Unlock()

	return exitErr, time.Since(started), false
}

// startChild launches one instance of the program with the env file loaded
// into its environment and both output streams captured into the log files.
func (s *Supervisor) startChild(ctx context.Context) (*exec.Cmd, error) {
	p := s.program

	//nolint:gosec // The command comes from the operator's own descriptor.
	cmd := exec.Command(p.Command[0], p.Command[1:]...)
	cmd.Dir = p.Directory

	env := os.Environ()

	if p.EnvFile != "" {
		values, err := envfile.Load(p.EnvFile)
		if err != nil {
			return nil, err
		}

		for key, value := range values {
			env = append(env, key+"="+value)
		}
	}

	cmd.Env = env

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("capture stdout: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("capture stderr: %w", err)
	}

	if err = cmd.Start(); err != nil {
		return nil, fmt.Errorf("start program: %w", err)
	}

	s.copiers.Add(2)

	go func() {
		defer s.copiers.Done()
		copyLines(stdout, s.stdout)
	}()

	go func() {
		defer s.copiers.Done()
		copyLines(stderr, s.stderr)
	}()

	s.mu.Lock()
	s.cmd = cmd
	s.state = StateRunning
	s.startedAt = time.Now()
	s.mu.Unlock()

	logger.InfoKV(ctx, "Program started",
		"program", p.Name, "pid", cmd.Process.Pid, "command", p.Command[0])

	return cmd, nil
}

// terminate asks the child to stop and arms a kill for when the grace period
// runs out. The caller waits for the exit and stops the returned timer.
func (s *Supervisor) terminate(ctx context.Context, cmd *exec.Cmd) *time.Timer {
	if cmd.Process == nil {
		return nil
	}

	logger.InfoKV(ctx, "Stopping program", "program", s.program.Name, "pid", cmd.Process.Pid)

	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		logger.WarnKV(ctx, "Failed to signal program", "error", err)
	}

	return time.AfterFunc(s.program.StopGracePeriod, func() {
		logger.WarnKV(ctx, "Grace period elapsed, killing program", "program", s.program.Name)
		_ = cmd.Process.Kill()
	})
}

// RequestRestart asks the running child to stop; the supervise loop brings it
// back without charging the restart budget.
func (s *Supervisor) RequestRestart() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cmd == nil || s.cmd.Process == nil {
		return ErrNotRunning
	}

	s.restartRequested = true

	return s.cmd.Process.Signal(syscall.SIGTERM)
}

// Status is a point-in-time snapshot of the supervisor for the status API.
type Status struct {
	// Program is the supervised program name.
	Program string `json:"program"`
	// State is the current supervisor state.
	State State `json:"state"`
	// PID of the running child, 0 when none.
	PID int `json:"pid"`
	// ConsecutiveFailures counted against the restart budget.
	ConsecutiveFailures int `json:"consecutive_failures"`
	// TotalRestarts over the supervisor lifetime, operator-requested included.
	TotalRestarts int `json:"total_restarts"`
	// StartedAt is when the current child started; zero when none runs.
	StartedAt time.Time `json:"started_at"`
	// LastExit describes the most recent child exit.
	LastExit string `json:"last_exit,omitempty"`
}

// Status returns a snapshot of the supervisor.
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		Program:             s.program.Name,
		State:               s.state,
		ConsecutiveFailures: s.failures,
		TotalRestarts:       s.totalRestarts,
		LastExit:            s.lastExit,
	}

	if s.cmd != nil && s.cmd.Process != nil {
		st.PID = s.cmd.Process.Pid
		st.StartedAt = s.startedAt
	}

	return st
}

func (s *Supervisor) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Supervisor) resetFailures() {
	s.mu.Lock()
	s.failures = 0
	s.totalRestarts++
	s.mu.Unlock()
}

func (s *Supervisor) addFailure() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failures++
	s.totalRestarts++

	return s.failures
}

// openLogs opens both log destinations for appending, creating parent
// directories as needed.
func (s *Supervisor) openLogs() error {
	stdout, err := openLogFile(s.program.StdoutLogFile)
	if err != nil {
		return err
	}

	stderr, err := openLogFile(s.program.StderrLogFile)
	if err != nil {
		_ = stdout.Close()
		return err
	}

	s.stdout, s.stderr = stdout, stderr

	return nil
}

func (s *Supervisor) closeLogs() {
	if s.stdout != nil {
		_ = s.stdout.Close()
	}

	if s.stderr != nil {
		_ = s.stderr.Close()
	}
}

func openLogFile(path string) (io.WriteCloser, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
	}

	file, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	return file, nil
}

// copyLines gathers a child stream in whole lines and writes each with a
// timestamp prefix.
func copyLines(r io.Reader, w io.Writer) {
	reader := bufio.NewReader(r)

	for {
		line, err := reader.ReadString('\n')
		if len(line) != 0 {
			stamp := time.Now().Format(time.RFC3339)
			_, _ = fmt.Fprintf(w, "%s %s", stamp, line)

			if line[len(line)-1] != '\n' {
				_, _ = io.WriteString(w, "\n")
			}
		}

		if err != nil {
			return
		}
	}
}

// exitDescription renders an exit error for logs and status output.
func exitDescription(err error) string {
	if err == nil {
		return "completed successfully"
	}

	return err.Error()
}
