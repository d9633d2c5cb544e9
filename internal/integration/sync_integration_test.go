package integration

import (
	"context"
	"crypto/sha512"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/hawkeye-monitor/hawkeye-deploy/internal/config"
	syncsvc "github.com/hawkeye-monitor/hawkeye-deploy/internal/service/sync"
)

// TestSync_Run_FetchesAndApplies serves a manifest and file over HTTP and
// verifies sync downloads and applies before failing to start the launcher.
func TestSync_Run_FetchesAndApplies(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	// Prepare test file content and checksum for download.
	fileName := "dummy.bin"
	fileBody := []byte("dummy-contents")
	checksum := sha512.Sum512(fileBody)
	checksumB64 := base64.StdEncoding.EncodeToString(checksum[:])

	// Publish a manifest naming an executable that cannot exist.
	manifest := &syncsvc.Manifest{
		VersionNumber: "test-version",
		Files:         map[string]string{fileName: checksumB64},
		Launch:        "nonexistent-binary",
	}

	manifestBytes, err := yaml.Marshal(manifest)
	require.NoError(t, err)

	// Setup HTTP server to serve manifest and files.
	mux := http.NewServeMux()
	mux.HandleFunc(
		"/"+syncsvc.ManifestFilename,
		func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write(manifestBytes)
		},
	)

	mux.HandleFunc("/"+fileName, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(fileBody)
	})

	ts := httptest.NewServer(mux)
	defer ts.Close()

	// Create configuration file pointing to test HTTP server.
	cfgPath := filepath.Join(dir, config.DefaultConfigFilename)
	cfg := config.Default()
	cfg.ReleaseFolder = ts.URL

	require.NoError(t, config.Save(cfgPath, cfg))

	// Run sync - expect error due to the missing launch executable.
	err = syncsvc.Run(context.Background(), &syncsvc.Options{ConfigPath: cfgPath})
	require.Error(t, err)

	// Verify the file was downloaded and applied before the start failure.
	contents, err := os.ReadFile(fileName)
	require.NoError(t, err)
	require.Equal(t, fileBody, contents)

	// The concurrency marker was cleaned up.
	_, err = os.Stat(syncsvc.MarkerFilename)
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestSync_Run_NoopWhenCurrent verifies a host matching the manifest is left alone.
func TestSync_Run_NoopWhenCurrent(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("test drives unix shell stubs")
	}

	dir := t.TempDir()
	chdir(t, dir)

	// Stub launcher reporting the published version.
	stubDir := filepath.Join(dir, "stub-bin")
	require.NoError(t, os.MkdirAll(stubDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(stubDir, "hawkeye-launcher"),
		[]byte("#!/bin/sh\necho 'version: test-version, commit: none, built at: never'\n"), 0o755))
	t.Setenv("PATH", stubDir+string(os.PathListSeparator)+os.Getenv("PATH"))

	fileName := "dummy.bin"
	fileBody := []byte("settled-contents")
	require.NoError(t, os.WriteFile(fileName, fileBody, 0o600))

	checksum := sha512.Sum512(fileBody)
	manifest := &syncsvc.Manifest{
		VersionNumber: "test-version",
		Files:         map[string]string{fileName: base64.StdEncoding.EncodeToString(checksum[:])},
		Launch:        "nonexistent-binary",
	}

	manifestBytes, err := yaml.Marshal(manifest)
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.HandleFunc(
		"/"+syncsvc.ManifestFilename,
		func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write(manifestBytes)
		},
	)

	ts := httptest.NewServer(mux)
	defer ts.Close()

	cfgPath := filepath.Join(dir, config.DefaultConfigFilename)
	cfg := config.Default()
	cfg.ReleaseFolder = ts.URL

	require.NoError(t, config.Save(cfgPath, cfg))

	// Versions and checksums agree; nothing is downloaded or applied.
	err = syncsvc.Run(context.Background(), &syncsvc.Options{
		ConfigPath: cfgPath,
		SkipLaunch: true,
	})
	require.NoError(t, err)

	contents, err := os.ReadFile(fileName)
	require.NoError(t, err)
	require.Equal(t, fileBody, contents)
}
