package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Cyclone1070/coursevfs/internal/sandbox"
	"gopkg.in/yaml.v3"
)

const (
	// ConfigDir is the directory name under ~/.config
	ConfigDir = "coursevfs"
	// ConfigFile is the config file name
	ConfigFile = "config.yaml"
	// DataDir holds the sandbox roots under the home directory
	DataDir = ".coursevfs"
)

// FileSystem abstracts file operations for testability
type FileSystem interface {
	UserHomeDir() (string, error)
	ReadFile(path string) ([]byte, error)
}

// ConfigFileReader implements FileSystem using the real OS for config loading
type ConfigFileReader struct{}

func (ConfigFileReader) UserHomeDir() (string, error) {
	return os.UserHomeDir()
}

func (ConfigFileReader) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// Loader handles configuration loading with injected dependencies
type Loader struct {
	fs FileSystem
}

// NewLoader creates a production Loader using the real filesystem
func NewLoader() *Loader {
	return &Loader{fs: ConfigFileReader{}}
}

// NewLoaderWithFS creates a Loader with a custom filesystem (for testing)
func NewLoaderWithFS(fs FileSystem) *Loader {
	return &Loader{fs: fs}
}

// Load reads configuration from ~/.config/coursevfs/config.yaml and merges it with
// defaults. Returns default config if the file doesn't exist.
// Returns error only for parse errors, permission issues, or validation failures.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	homeDir, err := l.fs.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolving home directory: %w", err)
	}

	configPath := filepath.Join(homeDir, ".config", ConfigDir, ConfigFile)

	data, err := l.fs.ReadFile(configPath)
	switch {
	case err == nil:
		// Present keys overwrite defaults (even if zero), missing keys keep them.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if cfg.Sandbox.BaseDir == "" {
		cfg.Sandbox.BaseDir = filepath.Join(homeDir, DataDir, "sandbox")
	}
	if cfg.Sandbox.TestBaseDir == "" {
		cfg.Sandbox.TestBaseDir = filepath.Join(homeDir, DataDir, "sandbox-test")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Load is a convenience function using the default loader
func Load() (*Config, error) {
	return NewLoader().Load()
}

// SandboxContext returns the sandbox context selected by Sandbox.Mode.
// Production and test runs get distinct roots.
func (c *Config) SandboxContext() sandbox.Context {
	if c.Sandbox.Mode == ModeTest {
		return sandbox.Context{BaseDir: c.Sandbox.TestBaseDir, Mode: sandbox.ModeTest}
	}
	return sandbox.Context{BaseDir: c.Sandbox.BaseDir, Mode: sandbox.ModeNormal}
}
