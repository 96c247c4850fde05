package gitops

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	gitconfig "github.com/go-git/go-git/v5/config"
	formatcfg "github.com/go-git/go-git/v5/plumbing/format/config"
)

type configKey struct {
	section    string
	subsection string
	name       string
}

// parseConfigKey splits "section.name" or "section.subsection.name". Subsections
// may contain dots.
func parseConfigKey(key string) (configKey, error) {
	first := strings.Index(key, ".")
	last := strings.LastIndex(key, ".")
	if first <= 0 || last == len(key)-1 {
		return configKey{}, fmt.Errorf("%w: %q", ErrInvalidConfigKey, key)
	}
	k := configKey{section: key[:first], name: key[last+1:]}
	if first != last {
		k.subsection = key[first+1 : last]
	}
	return k, nil
}

func (k configKey) options(raw *formatcfg.Config) formatcfg.Options {
	if !raw.HasSection(k.section) {
		return nil
	}
	sec := raw.Section(k.section)
	if k.subsection == "" {
		return sec.Options
	}
	if !sec.HasSubsection(k.subsection) {
		return nil
	}
	return sec.Subsection(k.subsection).Options
}

// GetConfig reads a config value. The last value wins for multi-valued keys.
func (s *Service) GetConfig(ctx context.Context, repoPath, key string) (string, bool, error) {
	k, err := parseConfigKey(key)
	if err != nil {
		return "", false, err
	}
	h, err := s.open(ctx, repoPath)
	if err != nil {
		return "", false, err
	}
	cfg, err := h.repo.Config()
	if err != nil {
		return "", false, err
	}
	var (
		value string
		found bool
	)
	for _, opt := range k.options(cfg.Raw) {
		if opt.IsKey(k.name) {
			value, found = opt.Value, true
		}
	}
	return value, found, nil
}

// SetConfig writes a config value to the repository's local config.
func (s *Service) SetConfig(ctx context.Context, repoPath, key, value string) error {
	k, err := parseConfigKey(key)
	if err != nil {
		return err
	}
	h, err := s.open(ctx, repoPath)
	if err != nil {
		return err
	}
	cfg, err := h.repo.Config()
	if err != nil {
		return err
	}
	sec := cfg.Raw.Section(k.section)
	if k.subsection == "" {
		sec.SetOption(k.name, value)
	} else {
		sec.Subsection(k.subsection).SetOption(k.name, value)
	}

	// Re-parse so typed fields agree with the raw edit before the storer marshals them.
	var buf bytes.Buffer
	if err := formatcfg.NewEncoder(&buf).Encode(cfg.Raw); err != nil {
		return err
	}
	fresh := gitconfig.NewConfig()
	if err := fresh.Unmarshal(buf.Bytes()); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	if err := h.repo.Storer.SetConfig(fresh); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}
