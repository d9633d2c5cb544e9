package envfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"

	"github.com/hawkeye-monitor/hawkeye-deploy/internal/config"
)

// ErrNoTemplate is returned when both the active env file and its template are missing.
var ErrNoTemplate = errors.New("env file is missing and no template is available")

// Ensure makes sure the active env file exists. A missing file is created by
// copying the template byte-for-byte; an existing file is left untouched.
// It reports whether the file was created by this call.
func Ensure(path, template string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("stat env file: %w", err)
	}

	contents, err := os.ReadFile(filepath.Clean(template))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, fmt.Errorf("%s: %w", path, ErrNoTemplate)
		}

		return false, fmt.Errorf("read env template: %w", err)
	}

	// The file holds secrets once the operator fills it in.
	if err := os.WriteFile(filepath.Clean(path), contents, config.DefaultFilePermissions); err != nil {
		return false, fmt.Errorf("write env file: %w", err)
	}

	return true, nil
}

// Audit is the result of checking an env file against the deployment contract.
type Audit struct {
	// MissingKeys are required keys that are absent or empty.
	MissingKeys []string
	// PlaceholderKeys are keys whose value still contains the template placeholder.
	PlaceholderKeys []string
}

// Clean reports whether the audit found nothing to complain about.
func (a *Audit) Clean() bool {
	return len(a.MissingKeys) == 0 && len(a.PlaceholderKeys) == 0
}

// Summary renders the findings as a short human-readable string.
func (a *Audit) Summary() string {
	var parts []string

	if len(a.MissingKeys) > 0 {
		parts = append(parts, "missing or empty: "+strings.Join(a.MissingKeys, ", "))
	}

	if len(a.PlaceholderKeys) > 0 {
		parts = append(parts, "placeholder values: "+strings.Join(a.PlaceholderKeys, ", "))
	}

	return strings.Join(parts, "; ")
}

// AuditFile parses the env file and reports required keys that are absent or
// empty plus keys whose value still carries the placeholder token. Findings
// are informational; callers decide whether to warn or to block.
func AuditFile(path string, requiredKeys []string, placeholder string) (*Audit, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("parse env file: %w", err)
	}

	audit := &Audit{}

	for _, key := range requiredKeys {
		if strings.TrimSpace(values[key]) == "" {
			audit.MissingKeys = append(audit.MissingKeys, key)
		}
	}

	if placeholder != "" {
		lowered := strings.ToLower(placeholder)
		for key, value := range values {
			if strings.Contains(strings.ToLower(value), lowered) {
				audit.PlaceholderKeys = append(audit.PlaceholderKeys, key)
			}
		}
	}

	sort.Strings(audit.MissingKeys)
	sort.Strings(audit.PlaceholderKeys)

	return audit, nil
}

// Load parses the env file into a key-value map for injection into a child
// process environment.
func Load(path string) (map[string]string, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("parse env file: %w", err)
	}

	return values, nil
}
