package compose

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeRunner records commands instead of executing them.
type fakeRunner struct {
	calls     []string
	noDocker  bool
	noCompose bool
}

func (r *fakeRunner) Run(_ context.Context, name string, args ...string) error {
	r.calls = append(r.calls, strings.Join(append([]string{name}, args...), " "))
	return nil
}

func (r *fakeRunner) Output(_ context.Context, name string, args ...string) (string, error) {
	line := strings.Join(append([]string{name}, args...), " ")
	if r.noCompose && line == "docker compose version" {
		return "", fmt.Errorf("unknown command: compose")
	}

	r.calls = append(r.calls, line)

	return "Docker Compose version v2.27.0", nil
}

func (r *fakeRunner) LookPath(name string) (string, error) {
	if r.noDocker {
		return "", fmt.Errorf("%s: executable file not found in $PATH", name)
	}

	return "/usr/bin/" + name, nil
}

func writeCleanEnv(t *testing.T) {
	t.Helper()
	require.NoError(t, os.WriteFile(".env",
		[]byte("TELEGRAM_BOT_TOKEN=123456:real-token\n"), 0o600))
}

// TestRun_Up verifies the full happy path: preflight, env gate, up -d.
func TestRun_Up(t *testing.T) {
	chdir(t, t.TempDir())
	writeCleanEnv(t)

	runner := &fakeRunner{}
	err := Run(context.Background(), &Options{Operation: OperationUp, Runner: runner})
	require.NoError(t, err)
	require.Contains(t, runner.calls,
		"docker compose --file docker-compose.yml --project-name hawkeye up -d")
}

// TestRun_Preflight aborts when docker or its compose plugin is missing.
func TestRun_Preflight(t *testing.T) {
	chdir(t, t.TempDir())
	writeCleanEnv(t)

	err := Run(context.Background(), &Options{Operation: OperationPs, Runner: &fakeRunner{noDocker: true}})
	require.ErrorIs(t, err, errDockerMissing)

	err = Run(context.Background(), &Options{Operation: OperationPs, Runner: &fakeRunner{noCompose: true}})
	require.ErrorIs(t, err, errComposeUnavailable)
}

// TestRun_DeclinedPrompt stops before any build/start when the operator
// declines the placeholder warning.
func TestRun_DeclinedPrompt(t *testing.T) {
	chdir(t, t.TempDir())
	require.NoError(t, os.WriteFile(".env",
		[]byte("TELEGRAM_BOT_TOKEN=your_telegram_bot_token_here\n"), 0o600))

	runner := &fakeRunner{}
	err := Run(context.Background(), &Options{
		Operation: OperationBuild,
		Runner:    runner,
		Input:     strings.NewReader("n\n"),
		Output:    &strings.Builder{},
	})
	require.ErrorIs(t, err, ErrDeclined)

	for _, call := range runner.calls {
		require.NotContains(t, call, "build")
	}
}

// TestRun_AssumeYes skips the prompt while still warning.
func TestRun_AssumeYes(t *testing.T) {
	chdir(t, t.TempDir())
	require.NoError(t, os.WriteFile(".env",
		[]byte("TELEGRAM_BOT_TOKEN=your_telegram_bot_token_here\n"), 0o600))

	runner := &fakeRunner{}
	err := Run(context.Background(), &Options{
		Operation: OperationBuild,
		AssumeYes: true,
		Runner:    runner,
	})
	require.NoError(t, err)
	require.Contains(t, runner.calls,
		"docker compose --file docker-compose.yml --project-name hawkeye build")
}

// TestRun_StatusOperationsSkipGate ensures ps/down/logs run without an env file.
func TestRun_StatusOperationsSkipGate(t *testing.T) {
	chdir(t, t.TempDir())

	runner := &fakeRunner{}
	require.NoError(t, Run(context.Background(), &Options{Operation: OperationPs, Runner: runner}))
	require.NoError(t, Run(context.Background(), &Options{Operation: OperationDown, Runner: runner}))
}

// TestRun_LogsAndRestart checks argument construction for the compound operations.
func TestRun_LogsAndRestart(t *testing.T) {
	chdir(t, t.TempDir())
	writeCleanEnv(t)

	runner := &fakeRunner{}
	err := Run(context.Background(), &Options{
		Operation: OperationLogs,
		Follow:    true,
		Tail:      25,
		Runner:    runner,
	})
	require.NoError(t, err)
	require.Contains(t, runner.calls,
		"docker compose --file docker-compose.yml --project-name hawkeye logs --tail 25 --follow")

	runner = &fakeRunner{}
	err = Run(context.Background(), &Options{Operation: OperationRestart, Runner: runner})
	require.NoError(t, err)
	require.Contains(t, runner.calls,
		"docker compose --file docker-compose.yml --project-name hawkeye down")
	require.Contains(t, runner.calls,
		"docker compose --file docker-compose.yml --project-name hawkeye up -d")
}
