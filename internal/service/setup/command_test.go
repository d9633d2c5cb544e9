package setup

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeRunner records commands instead of executing them. Outputs are keyed by
// the full command line; onRun lets a test mimic filesystem side effects.
type fakeRunner struct {
	calls   []string
	outputs map[string]string
	missing map[string]bool
	onRun   func(name string, args ...string) error
}

func (r *fakeRunner) Run(_ context.Context, name string, args ...string) error {
	r.calls = append(r.calls, commandLine(name, args...))
	if r.onRun != nil {
		return r.onRun(name, args...)
	}

	return nil
}

func (r *fakeRunner) Output(_ context.Context, name string, args ...string) (string, error) {
	line := commandLine(name, args...)
	r.calls = append(r.calls, line)

	out, ok := r.outputs[line]
	if !ok {
		return "", fmt.Errorf("unexpected command: %s", line)
	}

	return out, nil
}

func (r *fakeRunner) LookPath(name string) (string, error) {
	if r.missing[name] {
		return "", fmt.Errorf("%s: executable file not found in $PATH", name)
	}

	return "/usr/bin/" + name, nil
}

func commandLine(name string, args ...string) string {
	return strings.Join(append([]string{name}, args...), " ")
}

func countCalls(calls []string, prefix string) int {
	n := 0
	for _, c := range calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}

	return n
}

// TestRun_InterpreterGate verifies setup aborts before touching the
// filesystem when the interpreter is too old or missing.
func TestRun_InterpreterGate(t *testing.T) {
	chdir(t, t.TempDir())

	runner := &fakeRunner{
		outputs: map[string]string{
			"python3 --version": "Python 3.8.10",
		},
	}

	err := Run(context.Background(), &Options{Runner: runner})
	require.ErrorIs(t, err, errInterpreterTooOld)

	// No later step ran.
	_, statErr := os.Stat("logs")
	require.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(".env")
	require.True(t, os.IsNotExist(statErr))

	// Missing interpreter fails the same gate.
	runner = &fakeRunner{missing: map[string]bool{"python3": true}}
	err = Run(context.Background(), &Options{Runner: runner})
	require.Error(t, err)
	require.Empty(t, runner.calls)
}

// TestRun_BootstrapsAndIsIdempotent runs setup twice and checks the second
// run changes nothing: no duplicate venv creation, no env overwrite, stable
// directory permissions.
func TestRun_BootstrapsAndIsIdempotent(t *testing.T) {
	chdir(t, t.TempDir())

	require.NoError(t, os.WriteFile("requirements.txt", []byte("loguru\n"), 0o644))
	require.NoError(t, os.WriteFile(".env.example",
		[]byte("TELEGRAM_BOT_TOKEN=your_telegram_bot_token_here\n"), 0o644))

	runner := &fakeRunner{
		outputs: map[string]string{
			"python3 --version": "Python 3.11.4",
		},
		onRun: func(name string, args ...string) error {
			// Mimic `python3 -m venv <dir>`.
			if len(args) == 3 && args[0] == "-m" && args[1] == "venv" {
				return os.MkdirAll(args[2], 0o755)
			}

			return nil
		},
	}

	require.NoError(t, Run(context.Background(), &Options{Runner: runner}))

	// Working directories exist with the configured mode.
	for _, dir := range []string{"logs", "data"} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		require.True(t, info.IsDir())
		require.Equal(t, os.FileMode(0o755), info.Mode().Perm())
	}

	// Env file copied verbatim from the template.
	envBody, err := os.ReadFile(".env")
	require.NoError(t, err)
	require.Equal(t, "TELEGRAM_BOT_TOKEN=your_telegram_bot_token_here\n", string(envBody))

	// Operator fills in the token between runs.
	require.NoError(t, os.WriteFile(".env", []byte("TELEGRAM_BOT_TOKEN=123:real\n"), 0o600))

	require.NoError(t, Run(context.Background(), &Options{Runner: runner}))

	// Venv created exactly once, env file untouched by the second run.
	require.Equal(t, 1, countCalls(runner.calls, "python3 -m venv"))
	envBody, err = os.ReadFile(".env")
	require.NoError(t, err)
	require.Equal(t, "TELEGRAM_BOT_TOKEN=123:real\n", string(envBody))
}

// TestRun_SkipInstall ensures --skip-install leaves pip untouched.
func TestRun_SkipInstall(t *testing.T) {
	chdir(t, t.TempDir())

	require.NoError(t, os.WriteFile(".env.example", []byte("LOG_LEVEL=INFO\n"), 0o644))

	runner := &fakeRunner{
		outputs: map[string]string{
			"python3 --version": "Python 3.12.1",
		},
		onRun: func(_ string, args ...string) error {
			if len(args) == 3 && args[0] == "-m" && args[1] == "venv" {
				return os.MkdirAll(args[2], 0o755)
			}

			return nil
		},
	}

	require.NoError(t, Run(context.Background(), &Options{Runner: runner, SkipInstall: true}))
	require.Zero(t, countCalls(runner.calls, venvTool("venv", "pip")))
}
