package sync

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	goupdate "github.com/doitdistributed/go-update"
	"github.com/mitchellh/go-ps"
	"gopkg.in/yaml.v3"

	"github.com/hawkeye-monitor/hawkeye-deploy/internal/config"
	"github.com/hawkeye-monitor/hawkeye-deploy/internal/logger"
)

var (
	errSyncAlreadyRunning   = errors.New("a sync is already running")
	errNoReleaseFolder      = errors.New("release folder is not configured")
	errEmptyManifest        = errors.New("release manifest is empty")
	errNoChecksum           = errors.New("checksum missing for file")
	errBadHTTPStatus        = errors.New("unexpected http status")
	errNoLaunchTarget       = errors.New("manifest names no executable to launch")
	errUnsupportedOS        = errors.New("os not supported")
	errInvalidVersionOutput = errors.New("invalid version output format")
)

// Options are inputs accepted by the sync entry point.
type Options struct {
	// ConfigPath is the optional path to settings YAML file.
	ConfigPath string
	// SkipLaunch leaves the launcher stopped after applying the release.
	SkipLaunch bool
}

// runner holds the mutable state and helpers for a single sync execution.
// It is intentionally unexported—call Run(ctx, Options) from callers.
type runner struct {
	manifest           *Manifest         // Remote manifest describing the release.
	cfg                *config.Config    // Connection configuration loaded from YAML.
	opts               *Options          // Caller-provided options.
	httpClient         *http.Client      // Release folder client, bounded by the manifest timeout.
	localVersion       string            // Detected local version.
	filesOutdated      bool              // Whether host files differ from published checksums.
	temporaryDirectory string            // Where new files are downloaded before apply.
	downloadedFiles    map[string]string // Logical name -> local temp path.
}

// Run executes the sync lifecycle and is the public entry point for the CLI.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "hawkeye-sync")

	s, err := newRunner(ctx, opts)
	if err != nil {
		return err
	}

	defer s.cleanup(ctx)

	if err = s.Run(ctx); err != nil {
		logger.ErrorKV(ctx, "Sync run failed", "error", err)
		return err
	}

	logger.Info(ctx, "Sync completed")

	return nil
}

// newRunner prepares the run and writes a marker to avoid concurrent runs.
func newRunner(ctx context.Context, opts *Options) (*runner, error) {
	s := &runner{
		opts:            opts,
		downloadedFiles: make(map[string]string, defaultMapCapacity),
	}

	if IsSyncRunningNow(ctx) {
		return s, errSyncAlreadyRunning
	}

	syncMarker, err := os.Create(MarkerFilename)
	if err != nil {
		return s, err
	}

	if err = syncMarker.Close(); err != nil {
		return s, err
	}

	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return s, err
	}

	if settings.ReleaseFolder == "" {
		return s, errNoReleaseFolder
	}

	s.cfg = settings
	s.httpClient = &http.Client{Timeout: settings.Timeout}

	return s, nil
}

// Run executes the sync workflow for this runner instance:
// 1) Fetch the remote manifest.
// 2) Detect the local version.
// 3) Compare versions and checksums.
// 4) Stop local processes, download and apply files if needed.
// 5) Start the launcher again.
func (s *runner) Run(ctx context.Context) error {
	logger.Info(ctx, "Downloading the release manifest")

	if err := s.fetchManifest(ctx); err != nil {
		return fmt.Errorf("download release manifest: %w", err)
	}

	logger.Info(ctx, "Detecting local version from installed executable")

	if err := s.detectAndSetLocalVersion(ctx); err != nil {
		return fmt.Errorf("detect local version: %w", err)
	}

	versionOutdated, err := s.determineSyncNeeded(ctx)
	if err != nil {
		return err
	}

	if err = s.applyIfNeeded(ctx, versionOutdated); err != nil {
		return err
	}

	if s.opts.SkipLaunch {
		logger.Info(ctx, "Skipping launcher start as requested")
		return nil
	}

	logger.Info(ctx, "Starting the launcher")

	if err = s.startLaunchTarget(ctx); err != nil {
		return fmt.Errorf("start launcher: %w", err)
	}

	return nil
}

// detectAndSetLocalVersion detects the local version and stores it for later use.
func (s *runner) detectAndSetLocalVersion(ctx context.Context) error {
	localVersion, err := s.detectLocalVersion(ctx)
	if err != nil {
		return err
	}

	s.localVersion = localVersion

	return nil
}

// determineSyncNeeded checks whether versions or file checksums disagree with the manifest.
func (s *runner) determineSyncNeeded(ctx context.Context) (bool, error) {
	remoteVersion := s.manifest.VersionNumber
	versionOutdated := s.compareVersions(ctx, s.localVersion, remoteVersion)

	logger.Info(ctx, "Verifying checksums of local files against the manifest")

	if err := s.validateChecksums(); err != nil {
		return false, fmt.Errorf("validate checksums: %w", err)
	}

	return versionOutdated, nil
}

// applyIfNeeded downloads and applies the release when versions or files disagree.
func (s *runner) applyIfNeeded(ctx context.Context, versionOutdated bool) error {
	if !versionOutdated && !s.filesOutdated {
		logger.Info(ctx, "No sync required - version and files are current")
		return nil
	}

	if versionOutdated {
		logger.InfoKV(ctx, "Sync required", "reason", "version_mismatch")
	}

	if s.filesOutdated {
		logger.InfoKV(ctx, "Sync required", "reason", "checksum_mismatch")
	}

	logger.Info(ctx, "Terminating running deployment processes")

	if err := s.terminateDeploymentProcesses(); err != nil {
		return fmt.Errorf("terminate deployment processes: %w", err)
	}

	logger.Info(ctx, "Downloading release files to a temporary folder")

	if err := s.downloadFiles(ctx); err != nil {
		return fmt.Errorf("download release files: %w", err)
	}

	logger.Info(ctx, "Applying release files on the host")

	if err := s.applyFiles(ctx); err != nil {
		return fmt.Errorf("apply release files: %w", err)
	}

	return nil
}

// detectLocalVersion runs the installed launcher to get the current version.
func (s *runner) detectLocalVersion(ctx context.Context) (string, error) {
	executable := LauncherExecutable()

	cmdCtx, cancel := context.WithTimeout(ctx, versionCommandTimeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, executable, "version")

	output, err := cmd.Output()
	if err != nil {
		logger.Warnf(ctx, "Could not get local version from %s: %v", executable, err)
		return "", nil // Not an error - might be first install.
	}

	return parseVersionFromOutput(string(output))
}

// parseVersionFromOutput extracts semantic version from executable version output.
func parseVersionFromOutput(output string) (string, error) {
	// Parse "version: 1.0.0, commit: abc123, built at: ..." → "1.0.0".
	output = strings.TrimSpace(output)
	if strings.HasPrefix(output, "version: ") {
		parts := strings.Split(output, ",")
		if len(parts) > 0 {
			version := strings.TrimSpace(strings.TrimPrefix(parts[0], "version: "))
			if version != "" {
				return version, nil
			}
		}
	}

	return "", errInvalidVersionOutput
}

// compareVersions compares local vs remote versions and logs the decision.
func (s *runner) compareVersions(ctx context.Context, localVersion, remoteVersion string) bool {
	if localVersion == "" {
		logger.Info(ctx, "No local version detected, sync needed")
		return true
	}

	if localVersion != remoteVersion {
		logger.InfoKV(ctx, "Version mismatch detected",
			"local", localVersion, "remote", remoteVersion)

		return true
	}

	logger.InfoKV(ctx, "Versions match, checking file integrity",
		"version", localVersion)

	// Still check checksums for integrity.
	return false
}

// terminateDeploymentProcesses kills known binaries before applying a release.
func (s *runner) terminateDeploymentProcesses() error {
	executableFiles := sliceToSet(BundleFiles())

	processList, err := ps.Processes()
	if err != nil {
		return err
	}

	thisProcessID := os.Getpid()

	for _, process := range processList {
		processID := process.Pid()
		if processID == thisProcessID {
			continue
		}

		processName := process.Executable()
		if _, found := executableFiles[processName]; !found {
			continue
		}

		var runningProcess *os.Process

		runningProcess, err = os.FindProcess(processID)
		if err != nil {
			return err
		}

		if err = runningProcess.Kill(); err != nil {
			return err
		}
	}

	return nil
}

// fetchManifest downloads and parses the remote release manifest.
func (s *runner) fetchManifest(ctx context.Context) error {
	response, err := s.getFileBodyFromReleaseFolder(ctx, ManifestFilename)
	if response != nil {
		defer func() {
			_ = response.Body.Close()
		}()
	}

	if err != nil {
		return err
	}

	data, err := io.ReadAll(response.Body)
	if err != nil {
		return err
	}

	var manifest Manifest
	if err = yaml.Unmarshal(data, &manifest); err != nil {
		return err
	}

	s.manifest = &manifest

	return nil
}

// getFileBodyFromReleaseFolder fetches a file from the release folder URL.
func (s *runner) getFileBodyFromReleaseFolder(ctx context.Context, fileName string) (*http.Response, error) {
	releaseURL, err := url.Parse(s.cfg.ReleaseFolder)
	if err != nil {
		return nil, err
	}

	// Use path.Join to normalize duplicate slashes when composing the URL path.
	releaseURL.Path = path.Join(releaseURL.Path, fileName)
	finalURL := releaseURL.String()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, finalURL, http.NoBody)
	if err != nil {
		return nil, err
	}

	response, err := s.httpClient.Do(req)
	if err != nil {
		return response, err
	}

	if response.StatusCode != http.StatusOK {
		return response, fmt.Errorf("%s, %s: %w", finalURL, response.Status, errBadHTTPStatus)
	}

	return response, err
}

// validateChecksums compares local and published checksums to decide whether a
// sync is required. It returns early on the first mismatch to avoid
// unnecessary I/O when a sync is already known to be needed.
func (s *runner) validateChecksums() error {
	if s.manifest == nil || len(s.manifest.Files) == 0 {
		return errEmptyManifest
	}

	for _, fileName := range s.manifestFileNames() {
		outdated, err := s.validateFileChecksum(fileName)
		if err != nil {
			return err
		}

		if outdated {
			s.filesOutdated = true
			return nil
		}
	}

	return nil
}

// manifestFileNames returns the published file names in stable order.
func (s *runner) manifestFileNames() []string {
	names := make([]string, 0, len(s.manifest.Files))
	for name := range s.manifest.Files {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// validateFileChecksum checks a single file against the manifest.
// Returns true when the local copy is missing or differs.
func (s *runner) validateFileChecksum(fileName string) (bool, error) {
	publishedChecksum, err := s.getPublishedChecksum(fileName)
	if err != nil {
		return false, err
	}

	localChecksum, err := s.getLocalChecksum(fileName)
	if err != nil {
		return false, err
	}

	return !bytes.Equal(publishedChecksum, localChecksum), nil
}

// getPublishedChecksum retrieves and decodes the manifest checksum for a file.
func (s *runner) getPublishedChecksum(fileName string) ([]byte, error) {
	publishedBase64, hasChecksum := s.manifest.Files[fileName]
	if !hasChecksum {
		return nil, fmt.Errorf("checksum for %s: %w", fileName, errNoChecksum)
	}

	publishedChecksum, err := base64.StdEncoding.DecodeString(publishedBase64)
	if err != nil {
		return nil, err
	}

	return publishedChecksum, nil
}

// getLocalChecksum retrieves the local checksum for a file.
// Returns nil checksum if the file doesn't exist.
func (s *runner) getLocalChecksum(fileName string) ([]byte, error) {
	if _, err := os.Stat(fileName); err != nil {
		if os.IsNotExist(err) {
			// File doesn't exist, needs sync.
			return nil, nil
		}

		return nil, err
	}

	return GetFileChecksum(fileName)
}

// downloadFiles downloads published files into a temporary directory.
func (s *runner) downloadFiles(ctx context.Context) error {
	temporaryDirectory, err := os.MkdirTemp("", "hawkeye-sync-")
	if err != nil {
		return err
	}

	s.temporaryDirectory = temporaryDirectory

	for _, fileName := range s.manifestFileNames() {
		var response *http.Response

		response, err = s.getFileBodyFromReleaseFolder(ctx, fileName)
		if err != nil {
			if response != nil {
				_ = response.Body.Close()
			}

			return err
		}

		outputFileName := filepath.Clean(filepath.Join(temporaryDirectory, fileName))

		var outputFile *os.File

		outputFile, err = os.Create(outputFileName)
		if err != nil {
			_ = response.Body.Close()

			return err
		}

		_, err = io.Copy(outputFile, response.Body)

		_ = response.Body.Close()
		_ = outputFile.Close()

		if err != nil {
			return err
		}

		s.downloadedFiles[fileName] = outputFileName
		logger.InfoKV(ctx, "Downloaded file", "path", outputFileName)
	}

	return nil
}

// applyFiles installs downloaded files using go-update with checksum validation.
func (s *runner) applyFiles(ctx context.Context) error {
	for fileName, downloadedFileName := range s.downloadedFiles {
		logger.InfoKV(ctx, "Applying file", "file", fileName)

		data, err := os.ReadFile(filepath.Clean(downloadedFileName))
		if err != nil {
			return err
		}

		publishedBase64, ok := s.manifest.Files[fileName]
		if !ok {
			return fmt.Errorf("checksum for %s: %w", downloadedFileName, errNoChecksum)
		}

		var publishedChecksum []byte

		publishedChecksum, err = base64.StdEncoding.DecodeString(publishedBase64)
		if err != nil {
			return err
		}

		if _, err = os.Stat(fileName); err != nil && os.IsNotExist(err) {
			if _, err = os.Create(fileName); err != nil {
				return err
			}
		}

		options := goupdate.Options{
			TargetPath: fileName,
			TargetMode: DefaultFileMode,
			Checksum:   publishedChecksum,
			Hash:       DefaultChecksumFunction,
		}

		if err = goupdate.Apply(bytes.NewReader(data), options); err != nil {
			return err
		}

		oldFileName := fileName + ".old"
		if _, err = os.Stat(oldFileName); err == nil {
			_ = os.Remove(oldFileName)
		}
	}

	return nil
}

// startLaunchTarget launches the executable named by the manifest.
func (s *runner) startLaunchTarget(ctx context.Context) error {
	if s.manifest == nil {
		return errEmptyManifest
	}

	executable := s.manifest.Launch
	if executable == "" {
		return errNoLaunchTarget
	}

	logger.InfoKV(ctx, "Starting executable", "executable", executable)

	osLC := strings.ToLower(runtime.GOOS)
	switch {
	case strings.Contains(osLC, "linux") || strings.Contains(osLC, "darwin"):
		return exec.CommandContext(ctx, executable).Start()
	case strings.Contains(osLC, "windows"):
		return exec.CommandContext(ctx, "cmd.exe", "/C", "start", executable).Start()
	default:
		return fmt.Errorf("%s OS is not supported: %w", runtime.GOOS, errUnsupportedOS)
	}
}

// cleanup removes temporary artifacts and the running marker.
func (s *runner) cleanup(ctx context.Context) {
	if _, err := os.Stat(MarkerFilename); err == nil {
		_ = os.Remove(MarkerFilename)
	}

	if s.temporaryDirectory != "" {
		if _, err := os.Stat(s.temporaryDirectory); err == nil {
			_ = os.RemoveAll(s.temporaryDirectory)
		}
	}

	logger.Info(ctx, "Sync has stopped")
}
