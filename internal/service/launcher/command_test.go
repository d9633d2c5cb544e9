package launcher

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestClaimPIDFile covers fresh, stale, and repeated claims.
func TestClaimPIDFile(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "probe.pid")

	// Fresh claim writes our PID.
	require.NoError(t, claimPIDFile(ctx, path))

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, strconv.Itoa(os.Getpid()), strings.TrimSpace(string(contents)))

	// A stale PID file from a dead launcher is replaced.
	require.NoError(t, os.WriteFile(path, []byte("999999999\n"), 0o644))
	require.NoError(t, claimPIDFile(ctx, path))

	contents, err = os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, strconv.Itoa(os.Getpid()), strings.TrimSpace(string(contents)))

	// Garbage contents are treated as stale.
	require.NoError(t, os.WriteFile(path, []byte("not a pid\n"), 0o644))
	require.NoError(t, claimPIDFile(ctx, path))
}

// TestRunDefaultDescriptorFallback verifies a fresh checkout without a
// descriptor file reaches the built-in program instead of failing on the read.
// The missing env file named by that program stops the run right after.
func TestRunDefaultDescriptorFallback(t *testing.T) {
	chdir(t, t.TempDir())

	err := Run(context.Background(), &Options{})
	require.ErrorIs(t, err, errNoEnvFile)
}

// TestLauncherProcessAlive rejects our own PID and unknown ones.
func TestLauncherProcessAlive(t *testing.T) {
	t.Parallel()

	require.False(t, launcherProcessAlive(0))
	require.False(t, launcherProcessAlive(os.Getpid()))
	require.False(t, launcherProcessAlive(999999999))
}
