package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/altantutar/pyguard/internal/config"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	data := []byte(`
ignore:
  - "*.log"
  - vendor/
severity: high
fail_on: critical
format: sarif
rules: custom-rules/
markdown: true
tolerant: false
workers: 4
low_confidence: drop
baseline: .pyguard-baseline.json
rule_overrides:
  SEC007:
    severity: medium
  SEC011:
    disabled: true
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".pyguard.yml"), data, 0o644))

	cfg, err := config.Load(dir)
	require.NoError(t, err)
	require.Equal(t, []string{"*.log", "vendor/"}, cfg.Ignore)
	require.Equal(t, "high", cfg.Severity)
	require.Equal(t, "critical", cfg.FailOn)
	require.Equal(t, "sarif", cfg.Format)
	require.Equal(t, "custom-rules/", cfg.Rules)
	require.True(t, config.Bool(cfg.Markdown, false))
	require.NotNil(t, cfg.Tolerant)
	require.False(t, config.Bool(cfg.Tolerant, true))
	require.Nil(t, cfg.Strict)
	require.Equal(t, 4, cfg.Workers)
	require.Equal(t, "drop", cfg.LowConfidence)
	require.Equal(t, dir, cfg.Dir)
	require.Equal(t, filepath.Join(dir, ".pyguard-baseline.json"), cfg.Resolve(cfg.Baseline))

	ovr := cfg.Overrides()
	require.Len(t, ovr, 2)
	require.Equal(t, "medium", ovr["SEC007"].Severity)
	require.True(t, ovr["SEC011"].Disabled)
}

func TestLoadConfigYAMLExtension(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".pyguard.yaml"), []byte("severity: medium\n"), 0o644))

	cfg, err := config.Load(dir)
	require.NoError(t, err)
	require.Equal(t, "medium", cfg.Severity)
}

func TestLoadConfigFromFilePath(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".pyguard.yml"), []byte("severity: info\n"), 0o644))
	file := filepath.Join(dir, "app.py")
	require.NoError(t, os.WriteFile(file, []byte("x = 1\n"), 0o644))

	cfg, err := config.Load(file)
	require.NoError(t, err)
	require.Equal(t, "info", cfg.Severity)
}

func TestLoadConfigMissing(t *testing.T) {
	cfg, err := config.Load(t.TempDir())
	require.NoError(t, err)
	require.Equal(t, config.Config{}, cfg)
	require.Nil(t, cfg.Overrides())
}

func TestLoadConfigInvalid(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".pyguard.yml"), []byte("{{invalid yaml"), 0o644))

	_, err := config.Load(dir)
	require.Error(t, err)
	require.Contains(t, err.Error(), "parsing")
}

func TestLoadConfigBadValues(t *testing.T) {
	cases := map[string]string{
		"severity":       "severity: extreme\n",
		"fail_on":        "fail_on: sometimes\n",
		"low_confidence": "low_confidence: maybe\n",
		"workers":        "workers: -1\n",
	}
	for field, body := range cases {
		t.Run(field, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, ".pyguard.yml"), []byte(body), 0o644))
			_, err := config.Load(dir)
			require.Error(t, err)
			require.Contains(t, err.Error(), field)
		})
	}
}

func TestLoadConfigPrecedence(t *testing.T) {
	// .pyguard.yml takes priority over .pyguard.yaml
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".pyguard.yml"), []byte("severity: high\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".pyguard.yaml"), []byte("severity: low\n"), 0o644))

	cfg, err := config.Load(dir)
	require.NoError(t, err)
	require.Equal(t, "high", cfg.Severity)
}

func TestTemplateParses(t *testing.T) {
	var cfg config.Config
	require.NoError(t, yaml.Unmarshal([]byte(config.Template), &cfg))
	require.NoError(t, cfg.Validate())
	require.Equal(t, "low", cfg.Severity)
	require.Equal(t, "terminal", cfg.Format)
}
