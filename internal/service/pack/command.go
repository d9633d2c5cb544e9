package pack

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hawkeye-monitor/hawkeye-deploy/internal/config"
	"github.com/hawkeye-monitor/hawkeye-deploy/internal/logger"
	"github.com/hawkeye-monitor/hawkeye-deploy/internal/service/common"
	syncsvc "github.com/hawkeye-monitor/hawkeye-deploy/internal/service/sync"
)

// Options contains inputs for the pack entry point.
type Options struct {
	// ConfigPath is an optional path to persist deployment settings (defaults to hawkeye-deploy.yaml).
	ConfigPath string
	// ReleaseFolder is the URL where release artifacts will be uploaded.
	ReleaseFolder string
}

// packer prepares release metadata (manifest) for distribution.
// It is unexported—callers should use Run, which encapsulates setup and validation.
type packer struct {
	// cfg holds the deployment configuration including the release folder.
	cfg *config.Config
	// cfgFilename is the path where configuration is saved.
	cfgFilename string
	// manifest describes the release files and their checksums.
	manifest *syncsvc.Manifest
}

var (
	// errSyncRunning indicates that packaging was attempted while a sync is in progress.
	errSyncRunning = errors.New("a sync is running now")

	// errReleaseFolderRequired indicates that no upload destination was provided.
	errReleaseFolderRequired = errors.New("release folder must be provided")
)

// Run executes the packaging workflow.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "hawkeye-pack")

	if opts.ReleaseFolder == "" {
		return errReleaseFolderRequired
	}

	cfg := config.Default()
	cfg.ReleaseFolder = opts.ReleaseFolder

	if err := config.Validate(cfg); err != nil {
		return err
	}

	p, err := newPacker(ctx, opts.ConfigPath, cfg)
	if err != nil {
		return fmt.Errorf("initialize packer: %w", err)
	}

	if err = p.Run(ctx); err != nil {
		return fmt.Errorf("pack failed: %w", err)
	}

	logger.Info(ctx, "Pack completed successfully")

	return nil
}

// newPacker creates a packer with the provided settings and configuration path.
func newPacker(ctx context.Context, configFilename string, settings *config.Config) (*packer, error) {
	if syncsvc.IsSyncRunningNow(ctx) {
		return nil, errSyncRunning
	}

	if err := config.Save(configFilename, settings); err != nil {
		return nil, fmt.Errorf("save settings: %w", err)
	}

	actor, err := common.DetectActor()
	if err != nil {
		return nil, err
	}

	logger.InfoKV(ctx, "Packaging release", "actor", actor.String())

	return &packer{
		cfg:         settings,
		cfgFilename: configFilename,
		manifest:    syncsvc.NewManifest(),
	}, nil
}

// Run populates and writes the release manifest to disk.
func (p *packer) Run(ctx context.Context) error {
	logger.Info(ctx, "Preparing release manifest")

	if err := p.fillManifest(); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Saving release manifest", "path", syncsvc.ManifestFilename)

	if err := p.saveManifest(); err != nil {
		return err
	}

	p.printNextSteps(ctx)

	return nil
}

// fillManifest records a checksum for every bundle file.
func (p *packer) fillManifest() error {
	for _, fileName := range syncsvc.BundleFiles() {
		if _, err := os.Stat(fileName); errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s: %w", fileName, os.ErrNotExist)
		} else if err != nil {
			return fmt.Errorf("stat %s: %w", fileName, err)
		}

		checksum, err := syncsvc.GetFileChecksum(fileName)
		if err != nil {
			return err
		}

		p.manifest.Files[fileName] = base64.StdEncoding.EncodeToString(checksum)
	}

	return nil
}

// saveManifest writes the manifest to the standard ManifestFilename.
func (p *packer) saveManifest() error {
	contents, err := yaml.Marshal(p.manifest)
	if err != nil {
		return err
	}

	return os.WriteFile(syncsvc.ManifestFilename, contents, syncsvc.DefaultFileMode)
}

// printNextSteps logs human-readable guidance for next actions with the created files.
func (p *packer) printNextSteps(ctx context.Context) {
	files := make([]string, 0, len(p.manifest.Files)+1)
	for fileName := range p.manifest.Files {
		files = append(files, fileName)
	}

	files = append(files, syncsvc.ManifestFilename)
	sort.Strings(files)

	var builder strings.Builder

	builder.WriteString("You should upload the following files to the folder ")
	builder.WriteString(p.cfg.ReleaseFolder)
	builder.WriteString(":\n")

	for i, name := range files {
		if i == 0 {
			builder.WriteString(name)
		} else {
			builder.WriteString(",\n")
			builder.WriteString(name)
		}
	}

	builder.WriteString("\n\nOn each deployment host, schedule the following command at system startup: ")
	builder.WriteString("hawkeye-sync")

	logger.Info(ctx, builder.String())
}
