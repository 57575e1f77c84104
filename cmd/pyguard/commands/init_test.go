package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/altantutar/pyguard/internal/config"
)

func TestInitCreatesFiles(t *testing.T) {
	resetFlags(t)
	dir := t.TempDir()

	out, _, err := execute(t, "init", dir)
	require.NoError(t, err)

	for _, name := range []string{
		".pyguard.yml",
		".pyguardignore",
		filepath.Join(".github", "workflows", "pyguard.yml"),
	} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err, "expected %s to exist", name)
		require.NotEmpty(t, data)
		require.Contains(t, out, "create "+filepath.Join(dir, name))
	}

	cfg, err := config.Load(dir)
	require.NoError(t, err)
	require.Equal(t, "low", cfg.Severity)
}

func TestInitSkipsExisting(t *testing.T) {
	resetFlags(t)
	dir := t.TempDir()
	existing := filepath.Join(dir, ".pyguard.yml")
	require.NoError(t, os.WriteFile(existing, []byte("severity: high\n"), 0o644))

	out, _, err := execute(t, "init", dir)
	require.NoError(t, err)
	require.Contains(t, out, "skip "+existing)

	data, err := os.ReadFile(existing)
	require.NoError(t, err)
	require.Equal(t, "severity: high\n", string(data))

	_, err = os.Stat(filepath.Join(dir, ".pyguardignore"))
	require.NoError(t, err)
}

func TestInitCIOnly(t *testing.T) {
	resetFlags(t)
	dir := t.TempDir()

	_, _, err := execute(t, "init", dir, "--ci")
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, ".github", "workflows", "pyguard.yml"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, ".pyguard.yml"))
	require.True(t, os.IsNotExist(err))
}

func TestInitHook(t *testing.T) {
	resetFlags(t)
	dir := t.TempDir()

	_, _, err := execute(t, "init", dir, "--hook")
	require.Error(t, err)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0o755))
	resetFlags(t)
	_, _, err = execute(t, "init", dir, "--hook")
	require.NoError(t, err)
	info, err := os.Stat(filepath.Join(dir, ".git", "hooks", "pre-commit"))
	require.NoError(t, err)
	require.NotZero(t, info.Mode()&0o100)
}
