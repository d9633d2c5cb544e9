package cmd

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestPathFlagDefaults ensures the config flag stays empty so the manifest
// loader falls back to built-in defaults in a fresh checkout.
func TestPathFlagDefaults(t *testing.T) {
	t.Parallel()

	require.Empty(t, rootCmd.PersistentFlags().Lookup("config").DefValue)
}
