package sync

import (
	"context"
	"crypto"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/mitchellh/go-ps"

	"github.com/hawkeye-monitor/hawkeye-deploy/internal/config"
	"github.com/hawkeye-monitor/hawkeye-deploy/internal/logger"
	"github.com/hawkeye-monitor/hawkeye-deploy/internal/version"

	// Ensure SHA512 available for checksum calculation.
	_ "crypto/sha512"
)

var errHashUnavailable = errors.New("hash function unavailable")

const (
	// ManifestFilename stores the release description published for hosts.
	ManifestFilename = "hawkeye-release.yaml"

	// MarkerFilename marks that a sync is running right now to avoid parallel execution.
	MarkerFilename = "hawkeye-sync-marker.bin"

	// DefaultFileMode is used when producing artifacts for distribution.
	DefaultFileMode os.FileMode = 0o755

	// DefaultChecksumFunction is used to calculate release file hashes.
	DefaultChecksumFunction crypto.Hash = crypto.SHA512

	// Base executable names; platform helpers append extension when needed.
	baseSetupExecutable    = "hawkeye-setup"
	baseComposeExecutable  = "hawkeye-compose"
	baseLauncherExecutable = "hawkeye-launcher"
	baseSyncExecutable     = "hawkeye-sync"

	// markerLifetime is the period after which a stale sync marker is ignored.
	markerLifetime = 30 * time.Second

	// defaultMapCapacity is the default initial capacity for maps and slices.
	defaultMapCapacity = 16

	// versionCommandTimeout is the timeout for executing version commands.
	versionCommandTimeout = 10 * time.Second
)

// BundleFiles returns the artifacts every deployment host receives.
func BundleFiles() []string {
	return []string{
		LauncherExecutable(),
		composeExecutable(),
		syncExecutable(),
		setupExecutable(),
		config.DefaultConfigFilename,
		config.DefaultComposeFile,
		config.DefaultEnvTemplate,
		config.DefaultRequirementsFile,
		config.DefaultProgramFilename,
	}
}

// Manifest contains metadata about a published release.
type Manifest struct {
	// VersionNumber is the semantic version of this release.
	VersionNumber string `yaml:"version"`
	// Files maps filenames to their base64-encoded checksums.
	Files map[string]string `yaml:"files"`
	// Launch is the executable to start once the release is applied.
	Launch string `yaml:"launch"`
}

// NewManifest produces a Manifest initialized with defaults.
func NewManifest() *Manifest {
	return &Manifest{
		VersionNumber: version.Short(),
		Files:         make(map[string]string, defaultMapCapacity),
		Launch:        LauncherExecutable(),
	}
}

// GetFileChecksum returns checksum bytes for a file using DefaultChecksumFunction.
func GetFileChecksum(path string) ([]byte, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	if !DefaultChecksumFunction.Available() {
		return nil, fmt.Errorf("checksum calculation not possible: %w", errHashUnavailable)
	}

	hasher := DefaultChecksumFunction.New()
	if _, err = hasher.Write(contents); err != nil {
		return nil, fmt.Errorf("calculate checksum: %w", err)
	}

	hash := hasher.Sum(nil)

	return hash, nil
}

// IsSyncRunningNow checks presence of a marker file and attempts recovery if it looks stale.
func IsSyncRunningNow(ctx context.Context) bool {
	logger.Info(ctx, "Checking for the presence of a sync marker")

	fileInfo, err := os.Stat(MarkerFilename)
	if err == nil {
		if time.Since(fileInfo.ModTime()) <= markerLifetime {
			return true
		}

		logger.Info(ctx, "The sync marker is too old, attempting cleanup")

		if err = terminateProcessByName(syncExecutable()); err != nil {
			return true
		}

		if err = os.Remove(MarkerFilename); err != nil {
			return true
		}

		return false
	}

	if errors.Is(err, os.ErrNotExist) {
		logger.Info(ctx, "Sync marker not found, continuing")
		return false
	}

	logger.Infof(ctx, "Unable to read sync marker: %v", err)

	return false
}

// terminateProcessByName tries to kill processes with the provided executable name.
func terminateProcessByName(processName string) error {
	processList, err := ps.Processes()
	if err != nil {
		return err
	}

	thisProcessID := os.Getpid()

	for _, process := range processList {
		if process.Pid() == thisProcessID {
			continue
		}

		if process.Executable() != processName {
			continue
		}

		var runningProcess *os.Process

		runningProcess, err = os.FindProcess(process.Pid())
		if err != nil {
			return err
		}

		if err = runningProcess.Kill(); err != nil {
			return err
		}
	}

	return nil
}

// getExecutableExtension returns ".exe" on Windows and "" elsewhere.
func getExecutableExtension() string {
	if strings.Contains(strings.ToLower(runtime.GOOS), "windows") {
		return ".exe"
	}

	return ""
}

// LauncherExecutable returns the supervisor binary name for this platform.
func LauncherExecutable() string {
	return baseLauncherExecutable + getExecutableExtension()
}

func setupExecutable() string {
	return baseSetupExecutable + getExecutableExtension()
}

func composeExecutable() string {
	return baseComposeExecutable + getExecutableExtension()
}

func syncExecutable() string {
	return baseSyncExecutable + getExecutableExtension()
}

// sliceToSet converts a slice to a set for quick lookups.
func sliceToSet[T comparable](elements []T) map[T]struct{} {
	result := make(map[T]struct{}, len(elements))
	for _, value := range elements {
		result[value] = struct{}{}
	}

	return result
}
