package integration

import (
	"context"
	"os"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hawkeye-monitor/hawkeye-deploy/internal/config"
	"github.com/hawkeye-monitor/hawkeye-deploy/internal/service/launcher"
)

// TestLauncher_Run_SupervisesToCompletion runs a short-lived program through
// the full launcher entry point and verifies its output lands in the logs.
func TestLauncher_Run_SupervisesToCompletion(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("test drives unix shell commands")
	}

	chdir(t, t.TempDir())

	require.NoError(t, os.WriteFile(config.DefaultEnvFilename,
		[]byte("TELEGRAM_BOT_TOKEN=test-token\nPROBE_WORD=heartbeat\n"), 0o600))

	program := &launcher.Program{
		Name:    "probe",
		Command: []string{"/bin/sh", "-c", "echo $PROBE_WORD"},
		EnvFile: config.DefaultEnvFilename,
	}
	require.NoError(t, launcher.SaveProgram(config.DefaultProgramFilename, program))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := launcher.Run(ctx, &launcher.Options{})
	require.NoError(t, err)

	contents, err := os.ReadFile(program.StdoutLogFile)
	require.NoError(t, err)
	require.Contains(t, string(contents), "heartbeat")

	// The PID file is released on exit.
	_, err = os.Stat(program.PidFile)
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestLauncher_Run_RefusesSecondInstance verifies the PID file guard.
func TestLauncher_Run_RefusesSecondInstance(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("test drives unix shell commands")
	}

	chdir(t, t.TempDir())

	require.NoError(t, os.WriteFile(config.DefaultEnvFilename, []byte("TELEGRAM_BOT_TOKEN=x\n"), 0o600))

	program := &launcher.Program{
		Name:    "probe",
		Command: []string{"/bin/true"},
		EnvFile: config.DefaultEnvFilename,
	}
	require.NoError(t, launcher.SaveProgram(config.DefaultProgramFilename, program))

	// A stale PID file from a dead process does not block a fresh start.
	require.NoError(t, os.WriteFile(program.PidFile, []byte("999999999\n"), 0o644))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	require.NoError(t, launcher.Run(ctx, &launcher.Options{}))
}
