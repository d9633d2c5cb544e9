package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DirectorySpec names a working directory the application expects,
// together with the permissions it must carry.
type DirectorySpec struct {
	// Path is the directory location, relative to the deployment root.
	Path string `yaml:"path"`
	// Mode is the permission set enforced on the directory.
	Mode os.FileMode `yaml:"mode"`
}

// Config holds deployment parameters shared by the hawkeye binaries.
type Config struct {
	// AppName is the name of the deployed application.
	AppName string `yaml:"app_name"`
	// Python is the interpreter executable used for the non-container deployment.
	Python string `yaml:"python"`
	// PythonMinVersion is the minimum interpreter version accepted by setup.
	PythonMinVersion string `yaml:"python_min_version"`
	// VenvDir is the directory holding the isolated interpreter environment.
	VenvDir string `yaml:"venv_dir"`
	// RequirementsFile is the dependency manifest installed into the venv.
	RequirementsFile string `yaml:"requirements_file"`
	// EnvFile is the active environment file read by the application at startup.
	EnvFile string `yaml:"env_file"`
	// EnvTemplate is the template copied to EnvFile when the latter is missing.
	EnvTemplate string `yaml:"env_template"`
	// PlaceholderToken marks template values the operator has not replaced yet.
	PlaceholderToken string `yaml:"placeholder_token"`
	// RequiredEnvKeys must be present and non-empty in EnvFile.
	RequiredEnvKeys []string `yaml:"required_env_keys"`
	// Directories are created by setup and must exist before the application starts.
	Directories []DirectorySpec `yaml:"directories"`
	// ComposeFile is the compose definition for the containerized deployment.
	ComposeFile string `yaml:"compose_file"`
	// ComposeProject is the compose project name.
	ComposeProject string `yaml:"compose_project"`
	// ReleaseFolder is the URL where release artifacts are hosted.
	ReleaseFolder string `yaml:"release_folder"`
	// ProgramFile is the path to the supervisor program descriptor.
	ProgramFile string `yaml:"program_file"`
	// Timeout bounds individual network operations.
	Timeout time.Duration `yaml:"timeout"`
}

const (
	// DefaultConfigFilename is the default filename for the deployment manifest.
	DefaultConfigFilename = "hawkeye-deploy.yaml"

	// DefaultAppName is the application the suite deploys.
	DefaultAppName = "hawkeye"

	// DefaultPython is the interpreter executable looked up in PATH.
	DefaultPython = "python3"

	// DefaultPythonMinVersion is the minimal interpreter accepted by setup.
	DefaultPythonMinVersion = "3.9"

	// DefaultVenvDir is the directory of the isolated environment.
	DefaultVenvDir = "venv"

	// DefaultRequirementsFile is the dependency manifest filename.
	DefaultRequirementsFile = "requirements.txt"

	// DefaultEnvFilename is the active environment file.
	DefaultEnvFilename = ".env"

	// DefaultEnvTemplate is the template shipped with the repository.
	DefaultEnvTemplate = ".env.example"

	// DefaultPlaceholderToken is the template value for the bot token.
	DefaultPlaceholderToken = "your_telegram_bot_token_here"

	// DefaultComposeFile is the compose definition filename.
	DefaultComposeFile = "docker-compose.yml"

	// DefaultProgramFilename is the supervisor program descriptor.
	DefaultProgramFilename = "hawkeye-program.yaml"

	// DefaultTimeout is the default duration for network operations.
	DefaultTimeout = 30 * time.Second

	// DefaultDirectoryMode is applied to working directories without an explicit mode.
	DefaultDirectoryMode os.FileMode = 0o755

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
)

// DefaultRequiredEnvKeys returns the env keys the application cannot start without.
func DefaultRequiredEnvKeys() []string {
	return []string{"TELEGRAM_BOT_TOKEN"}
}

// DefaultDirectories returns the working directories of a fresh checkout.
func DefaultDirectories() []DirectorySpec {
	return []DirectorySpec{
		{Path: "logs", Mode: DefaultDirectoryMode},
		{Path: "data", Mode: DefaultDirectoryMode},
	}
}

// Default returns the built-in deployment manifest used when no file is present,
// matching the layout of a fresh application checkout.
func Default() *Config {
	return &Config{
		AppName:          DefaultAppName,
		Python:           DefaultPython,
		PythonMinVersion: DefaultPythonMinVersion,
		VenvDir:          DefaultVenvDir,
		RequirementsFile: DefaultRequirementsFile,
		EnvFile:          DefaultEnvFilename,
		EnvTemplate:      DefaultEnvTemplate,
		PlaceholderToken: DefaultPlaceholderToken,
		RequiredEnvKeys:  DefaultRequiredEnvKeys(),
		Directories:      DefaultDirectories(),
		ComposeFile:      DefaultComposeFile,
		ComposeProject:   DefaultAppName,
		ProgramFile:      DefaultProgramFilename,
		Timeout:          DefaultTimeout,
	}
}

// Load reads the deployment manifest from the provided path and validates it.
// An empty path selects the default filename; if that default file does not
// exist, the built-in defaults are returned so the tools work in a fresh
// checkout. An explicitly named file must exist.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}

		return nil, fmt.Errorf("read deployment manifest: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal deployment manifest: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the deployment manifest to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal deployment manifest: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write deployment manifest: %w", err)
	}

	return nil
}

// Validate checks the manifest for required fields and fills in defaults
// for everything left unset. A manifest that omits directories or
// required_env_keys gets the built-in ones; an explicitly empty list opts out.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.AppName == "" {
		cfg.AppName = DefaultAppName
	}

	if cfg.Python == "" {
		cfg.Python = DefaultPython
	}

	if cfg.PythonMinVersion == "" {
		cfg.PythonMinVersion = DefaultPythonMinVersion
	}

	if cfg.VenvDir == "" {
		cfg.VenvDir = DefaultVenvDir
	}

	if cfg.RequirementsFile == "" {
		cfg.RequirementsFile = DefaultRequirementsFile
	}

	if cfg.EnvFile == "" {
		cfg.EnvFile = DefaultEnvFilename
	}

	if cfg.EnvTemplate == "" {
		cfg.EnvTemplate = DefaultEnvTemplate
	}

	if cfg.PlaceholderToken == "" {
		cfg.PlaceholderToken = DefaultPlaceholderToken
	}

	if cfg.ComposeFile == "" {
		cfg.ComposeFile = DefaultComposeFile
	}

	if cfg.ComposeProject == "" {
		cfg.ComposeProject = cfg.AppName
	}

	if cfg.ProgramFile == "" {
		cfg.ProgramFile = DefaultProgramFilename
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	if cfg.RequiredEnvKeys == nil {
		cfg.RequiredEnvKeys = DefaultRequiredEnvKeys()
	}

	if cfg.Directories == nil {
		cfg.Directories = DefaultDirectories()
	}

	for i := range cfg.Directories {
		if cfg.Directories[i].Path == "" {
			return fmt.Errorf("directory %d: %w", i, errDirectoryPathRequired)
		}

		if cfg.Directories[i].Mode == 0 {
			cfg.Directories[i].Mode = DefaultDirectoryMode
		}
	}

	if cfg.ReleaseFolder == "" {
		return nil
	}

	if _, err := url.ParseRequestURI(cfg.ReleaseFolder); err != nil {
		return fmt.Errorf("invalid release folder URI: %w", err)
	}

	return nil
}

// errDirectoryPathRequired is returned when a directory entry has no path.
var errDirectoryPathRequired = errors.New("directory path must be provided")
