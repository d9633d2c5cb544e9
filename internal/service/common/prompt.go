//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrPromptClosed is returned when the input stream ends before an answer is read.
var ErrPromptClosed = errors.New("input closed before an answer was given")

// Confirm asks a yes/no question on out and reads the answer from in.
// Only "y" and "yes" (case-insensitive) count as consent; anything else,
// including an empty line, declines.
func Confirm(in io.Reader, out io.Writer, question string) (bool, error) {
	if _, err := fmt.Fprintf(out, "%s [y/N]: ", question); err != nil {
		return false, fmt.Errorf("write prompt: %w", err)
	}

	reader := bufio.NewReader(in)

	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return false, ErrPromptClosed
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
