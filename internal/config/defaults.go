package config

// Config holds all application configuration values.
// Defaults are set in DefaultConfig() and can be overridden via the YAML dotfile.
// NOTE: Values in the config file override defaults, including explicit zero values.
// Missing keys are left at their default values.
type Config struct {
	Sandbox SandboxConfig `yaml:"sandbox"`
	Tree    TreeConfig    `yaml:"tree"`
	Git     GitConfig     `yaml:"git"`
	Log     LogConfig     `yaml:"log"`
}

type SandboxConfig struct {
	BaseDir     string `yaml:"base_dir"`      // Default: ~/.coursevfs/sandbox
	TestBaseDir string `yaml:"test_base_dir"` // Default: ~/.coursevfs/sandbox-test
	Mode        string `yaml:"mode"`          // Default: "normal"
}

type TreeConfig struct {
	// Extensions whose content is read as text when content is requested without raw mode
	TextExtensions []string `yaml:"text_extensions"` // Default: .md .yaml .json
}

type GitConfig struct {
	RemoteName    string `yaml:"remote_name"`    // Default: "origin"
	DefaultBranch string `yaml:"default_branch"` // Default: "main"
}

type LogConfig struct {
	Level string `yaml:"level"` // Default: "info"
}

const (
	ModeNormal = "normal"
	ModeTest   = "test"
)

// DefaultConfig returns the default configuration.
// Sandbox directories are left empty and filled in from the home directory by the Loader.
func DefaultConfig() *Config {
	return &Config{
		Sandbox: SandboxConfig{
			Mode: ModeNormal,
		},
		Tree: TreeConfig{
			TextExtensions: []string{".md", ".yaml", ".json"},
		},
		Git: GitConfig{
			RemoteName:    "origin",
			DefaultBranch: "main",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
