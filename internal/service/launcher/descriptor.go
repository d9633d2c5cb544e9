package launcher

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hawkeye-monitor/hawkeye-deploy/internal/config"
)

// Program is the declarative descriptor telling the supervisor how to launch
// and restart the application.
type Program struct {
	// Name identifies the supervised program in logs and status output.
	Name string `yaml:"name"`
	// Command is the program argv; the first element is the executable.
	Command []string `yaml:"command"`
	// Directory is the working directory for the child process.
	Directory string `yaml:"directory"`
	// EnvFile, when set, is loaded into the child environment at each start.
	EnvFile string `yaml:"env_file"`
	// Autorestart relaunches the program after it exits.
	Autorestart bool `yaml:"autorestart"`
	// MaxRestarts bounds consecutive unsuccessful restarts before giving up.
	MaxRestarts int `yaml:"max_restarts"`
	// RestartDelay is the fixed pause before each relaunch.
	RestartDelay time.Duration `yaml:"restart_delay"`
	// StableUptime is the run duration after which the failure counter resets.
	StableUptime time.Duration `yaml:"stable_uptime"`
	// StopGracePeriod is how long a SIGTERM'd child may take before it is killed.
	StopGracePeriod time.Duration `yaml:"stop_grace_period"`
	// StdoutLogFile receives timestamped child stdout lines.
	StdoutLogFile string `yaml:"stdout_logfile"`
	// StderrLogFile receives timestamped child stderr lines.
	StderrLogFile string `yaml:"stderr_logfile"`
	// StatusAddress, when set, serves the local status HTTP API.
	StatusAddress string `yaml:"status_addr"`
	// PidFile guards against running two supervisors for the same program.
	PidFile string `yaml:"pid_file"`
}

const (
	// DefaultMaxRestarts bounds consecutive failures before the supervisor gives up.
	DefaultMaxRestarts = 10

	// DefaultRestartDelay is the fixed pause between exit and relaunch.
	DefaultRestartDelay = 5 * time.Second

	// DefaultStableUptime resets the failure counter after this much run time.
	DefaultStableUptime = time.Minute

	// DefaultStopGracePeriod is granted between SIGTERM and SIGKILL.
	DefaultStopGracePeriod = 10 * time.Second
)

var (
	errProgramIsNotSet = errors.New("program descriptor is not set")
	errCommandRequired = errors.New("program command must be provided")
)

// DefaultProgram returns the descriptor used when no file is present,
// launching the application with the venv interpreter from the manifest.
func DefaultProgram(cfg *config.Config) *Program {
	interpreter := filepath.Join(cfg.VenvDir, "bin", "python")

	p := &Program{
		Name:        cfg.AppName,
		Command:     []string{interpreter, "main.py"},
		EnvFile:     cfg.EnvFile,
		Autorestart: true,
	}
	applyProgramDefaults(p)

	return p
}

// LoadProgram reads the program descriptor from the provided path. An empty
// path selects the manifest's descriptor file; if that file does not exist,
// the built-in default derived from the manifest is returned.
func LoadProgram(path string, cfg *config.Config) (*Program, error) {
	explicit := path != ""
	if !explicit {
		path = cfg.ProgramFile
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return DefaultProgram(cfg), nil
		}

		return nil, fmt.Errorf("read program descriptor: %w", err)
	}

	var p Program
	if err := yaml.Unmarshal(contents, &p); err != nil {
		return nil, fmt.Errorf("unmarshal program descriptor: %w", err)
	}

	if err := ValidateProgram(&p); err != nil {
		return nil, err
	}

	return &p, nil
}

// SaveProgram writes the descriptor to the provided path.
func SaveProgram(path string, p *Program) error {
	if p == nil {
		return errProgramIsNotSet
	}

	if err := ValidateProgram(p); err != nil {
		return err
	}

	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal program descriptor: %w", err)
	}

	if err := os.WriteFile(filepath.Clean(path), data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write program descriptor: %w", err)
	}

	return nil
}

// ValidateProgram checks required fields and fills in policy defaults.
func ValidateProgram(p *Program) error {
	if p == nil {
		return errProgramIsNotSet
	}

	if len(p.Command) == 0 || p.Command[0] == "" {
		return errCommandRequired
	}

	applyProgramDefaults(p)

	return nil
}

func applyProgramDefaults(p *Program) {
	if p.Name == "" {
		p.Name = config.DefaultAppName
	}

	if p.MaxRestarts <= 0 {
		p.MaxRestarts = DefaultMaxRestarts
	}

	if p.RestartDelay <= 0 {
		p.RestartDelay = DefaultRestartDelay
	}

	if p.StableUptime <= 0 {
		p.StableUptime = DefaultStableUptime
	}

	if p.StopGracePeriod <= 0 {
		p.StopGracePeriod = DefaultStopGracePeriod
	}

	if p.StdoutLogFile == "" {
		p.StdoutLogFile = filepath.Join("logs", p.Name+".out.log")
	}

	if p.StderrLogFile == "" {
		p.StderrLogFile = filepath.Join("logs", p.Name+".err.log")
	}

	if p.PidFile == "" {
		p.PidFile = p.Name + "-launcher.pid"
	}
}
