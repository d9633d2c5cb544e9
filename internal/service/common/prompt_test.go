//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestConfirm covers consent, refusal, and closed-input handling.
func TestConfirm(t *testing.T) {
	t.Parallel()

	cases := map[string]bool{
		"y\n":     true,
		"Y\n":     true,
		"yes\n":   true,
		" YES \n": true,
		"n\n":     false,
		"no\n":    false,
		"\n":      false,
		"sure\n":  false,
	}

	for input, want := range cases {
		var out strings.Builder

		got, err := Confirm(strings.NewReader(input), &out, "Continue anyway?")
		require.NoError(t, err)
		require.Equal(t, want, got, "input %q", input)
		require.Contains(t, out.String(), "[y/N]")
	}

	// Closed input before any answer.
	_, err := Confirm(strings.NewReader(""), &strings.Builder{}, "Continue anyway?")
	require.ErrorIs(t, err, ErrPromptClosed)
}
