package config

import (
	"fmt"
	"log/slog"
	"strings"
)

// Validate checks config values for correctness.
// Returns an error if any values are invalid.
func (c *Config) Validate() error {
	var errs []string

	if c.Sandbox.Mode != ModeNormal && c.Sandbox.Mode != ModeTest {
		errs = append(errs, fmt.Sprintf("sandbox.mode must be %q or %q", ModeNormal, ModeTest))
	}
	if c.Sandbox.BaseDir != "" && c.Sandbox.BaseDir == c.Sandbox.TestBaseDir {
		errs = append(errs, "sandbox.base_dir and sandbox.test_base_dir must differ")
	}

	for _, ext := range c.Tree.TextExtensions {
		if !strings.HasPrefix(ext, ".") || len(ext) < 2 {
			errs = append(errs, fmt.Sprintf("tree.text_extensions entry %q must start with a dot", ext))
		}
	}

	if c.Git.RemoteName == "" || strings.ContainsAny(c.Git.RemoteName, " /\t") {
		errs = append(errs, "git.remote_name must be a non-empty name without spaces or slashes")
	}
	if c.Git.DefaultBranch == "" || strings.ContainsAny(c.Git.DefaultBranch, " \t~^:?*[\\") {
		errs = append(errs, "git.default_branch must be a valid branch name")
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		errs = append(errs, "log.level must be one of debug, info, warn, error")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %v", errs)
	}

	return nil
}

// LogLevel returns the parsed log level, falling back to info.
func (c *Config) LogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}
