// Package config loads .pyguard.yml project files holding scan settings and
// per-rule overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/altantutar/pyguard/internal/rules"
	"github.com/altantutar/pyguard/internal/types"
)

// FileNames are the recognized config file names, in lookup order.
var FileNames = []string{".pyguard.yml", ".pyguard.yaml"}

const maxConfigSize = 1 << 20

// RuleOverride allows per-rule severity or disable.
type RuleOverride struct {
	Severity string `yaml:"severity,omitempty"`
	Disabled bool   `yaml:"disabled,omitempty"`
}

// Config represents the .pyguard.yml configuration file. Pointer fields
// distinguish "unset" from an explicit false or zero.
type Config struct {
	Ignore        []string                `yaml:"ignore,omitempty"`
	Severity      string                  `yaml:"severity,omitempty"`
	FailOn        string                  `yaml:"fail_on,omitempty"`
	Format        string                  `yaml:"format,omitempty"`
	Rules         string                  `yaml:"rules,omitempty"`
	RuleOverrides map[string]RuleOverride `yaml:"rule_overrides,omitempty"`
	Markdown      *bool                   `yaml:"markdown,omitempty"`
	Tolerant      *bool                   `yaml:"tolerant,omitempty"`
	Strict        *bool                   `yaml:"strict,omitempty"`
	Workers       int                     `yaml:"workers,omitempty"`
	LowConfidence string                  `yaml:"low_confidence,omitempty"`
	Baseline      string                  `yaml:"baseline,omitempty"`
	History       string                  `yaml:"history,omitempty"`

	// Dir is the directory the file was found in. Relative paths in the
	// file are resolved against it.
	Dir string `yaml:"-"`
}

// Load reads the .pyguard.yml or .pyguard.yaml config file from the given
// path. If path is a file, its parent directory is used. If no config file
// is found, it returns a zero Config (not an error).
func Load(dir string) (Config, error) {
	if info, err := os.Stat(dir); err == nil && !info.IsDir() {
		dir = filepath.Dir(dir)
	}
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return Config{}, fmt.Errorf("reading %s: %w", path, err)
		}
		if info.Size() > maxConfigSize {
			return Config{}, fmt.Errorf("config file too large: %s (%d bytes, max 1 MB)", path, info.Size())
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading %s: %w", path, err)
		}
		var cfg Config
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing %s: %w", path, err)
		}
		if err := cfg.Validate(); err != nil {
			return Config{}, fmt.Errorf("%s: %w", path, err)
		}
		cfg.Dir = dir
		return cfg, nil
	}
	return Config{}, nil
}

// Validate checks enumerated values so mistakes surface at load time rather
// than mid-scan.
func (c Config) Validate() error {
	for field, v := range map[string]string{"severity": c.Severity, "fail_on": c.FailOn} {
		if v == "" {
			continue
		}
		if _, err := types.ParseSeverity(v); err != nil {
			return fmt.Errorf("%s: %w", field, err)
		}
	}
	if c.LowConfidence != "" {
		if _, err := rules.ParseConfidencePolicy(c.LowConfidence); err != nil {
			return fmt.Errorf("low_confidence: %w", err)
		}
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers: must not be negative, got %d", c.Workers)
	}
	return nil
}

// Overrides converts the file's rule overrides to the catalog form.
func (c Config) Overrides() map[string]rules.RuleOverride {
	if len(c.RuleOverrides) == 0 {
		return nil
	}
	out := make(map[string]rules.RuleOverride, len(c.RuleOverrides))
	for id, o := range c.RuleOverrides {
		out[id] = rules.RuleOverride{Severity: o.Severity, Disabled: o.Disabled}
	}
	return out
}

// Resolve makes a path from the file relative to the file's directory.
func (c Config) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || c.Dir == "" {
		return p
	}
	return filepath.Join(c.Dir, p)
}

// Bool returns *b, or def when the key was not set.
func Bool(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}

// Template is written by `pyguard init`.
const Template = `# pyguard configuration
# severity: minimum severity to report (critical, high, medium, low, info)
severity: low
# fail_on: exit 1 when a finding at or above this severity is reported
# fail_on: high
# format: terminal, json, sarif, markdown or cyclonedx
format: terminal
# ignore: glob patterns excluded from the scan ("**" spans directories)
ignore:
  - "build/**"
  - "**/migrations/**"
# markdown: also scan python code blocks in .md files
markdown: false
# low_confidence: downgrade, keep or drop matches resolved without an import
low_confidence: downgrade
# history: record every run in a SQLite database
# history: .pyguard/history.db
# rule_overrides:
#   SEC011:
#     disabled: true
#   SEC007:
#     severity: high
`
