package setup

import (
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"strings"
)

// errInvalidVersion is returned when a version string cannot be parsed.
var errInvalidVersion = errors.New("invalid version string")

// parseInterpreterVersion extracts the numeric version from interpreter
// output such as "Python 3.11.4". Some interpreters print the banner on
// stderr with an empty stdout; that counts as no output.
func parseInterpreterVersion(output string) ([]int, error) {
	output = strings.TrimSpace(output)
	if output == "" {
		return nil, errNoVersionOutput
	}

	fields := strings.Fields(output)
	raw := fields[len(fields)-1]

	version, err := parseVersion(raw)
	if err != nil {
		return nil, fmt.Errorf("interpreter output %q: %w", output, err)
	}

	return version, nil
}

// parseVersion parses a dotted numeric version like "3.9" or "3.11.4".
func parseVersion(raw string) ([]int, error) {
	parts := strings.Split(strings.TrimSpace(raw), ".")
	if len(parts) == 0 || parts[0] == "" {
		return nil, fmt.Errorf("%q: %w", raw, errInvalidVersion)
	}

	version := make([]int, 0, len(parts))

	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", raw, errInvalidVersion)
		}

		version = append(version, n)
	}

	return version, nil
}

// versionAtLeast reports whether got >= minimum, comparing component-wise.
// Missing components count as zero, so "3.9" >= "3.9.0".
func versionAtLeast(got, minimum []int) bool {
	length := len(got)
	if len(minimum) > length {
		length = len(minimum)
	}

	for i := 0; i < length; i++ {
		g, m := 0, 0
		if i < len(got) {
			g = got[i]
		}

		if i < len(minimum) {
			m = minimum[i]
		}

		if g != m {
			return g > m
		}
	}

	return true
}

// formatVersion renders a parsed version back to dotted form.
func formatVersion(version []int) string {
	parts := make([]string, 0, len(version))
	for _, n := range version {
		parts = append(parts, strconv.Itoa(n))
	}

	return strings.Join(parts, ".")
}

// isWindows reports whether the tool runs on Windows.
func isWindows() bool {
	return strings.Contains(strings.ToLower(runtime.GOOS), "windows")
}
