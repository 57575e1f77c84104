package scanner_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/altantutar/pyguard/internal/scanner"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func relPaths(targets []*scanner.Target) map[string]scanner.Language {
	paths := make(map[string]scanner.Language)
	for _, target := range targets {
		paths[target.RelPath] = target.Lang
	}
	return paths
}

func TestTargetLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.py")
	writeFile(t, path, "import os\nos.system(cmd)")

	target := &scanner.Target{Path: path, RelPath: "app.py"}
	require.NoError(t, target.Load())
	require.Equal(t, "utf-8", target.Unit.Encoding)
	require.Len(t, target.Unit.Lines, 2)
	require.Equal(t, "os.system(cmd)", target.Unit.Snippet(2))
}

func TestTargetDiscovery(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "app.py"), "x = 1\n")
	writeFile(t, filepath.Join(dir, "pkg", "util.py"), "x = 1\n")
	writeFile(t, filepath.Join(dir, "README.md"), "# hi\n")
	writeFile(t, filepath.Join(dir, "image.png"), "binary")
	writeFile(t, filepath.Join(dir, "manage"), "#!/usr/bin/env python3\nprint(1)\n")
	writeFile(t, filepath.Join(dir, ".venv", "lib", "site.py"), "x = 1\n")
	writeFile(t, filepath.Join(dir, "__pycache__", "app.py"), "x = 1\n")

	td := &scanner.TargetDiscovery{}
	targets, err := td.Discover(dir)
	require.NoError(t, err)

	paths := relPaths(targets)
	require.Equal(t, scanner.LangPython, paths["app.py"])
	require.Equal(t, scanner.LangPython, paths["pkg/util.py"])
	require.Equal(t, scanner.LangPython, paths["manage"])
	require.NotContains(t, paths, "README.md")
	require.NotContains(t, paths, "image.png")
	require.NotContains(t, paths, ".venv/lib/site.py")
	require.NotContains(t, paths, "__pycache__/app.py")

	// Lexical walk order.
	require.Equal(t, "app.py", targets[0].RelPath)
}

func TestTargetDiscoveryMarkdown(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "docs", "guide.md"), "```python\neval(x)\n```\n")

	td := &scanner.TargetDiscovery{Markdown: true}
	targets, err := td.Discover(dir)
	require.NoError(t, err)
	require.Equal(t, scanner.LangMarkdown, relPaths(targets)["docs/guide.md"])
}

func TestPyguardIgnore(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "keep.py"), "x = 1\n")
	writeFile(t, filepath.Join(dir, "test_skip.py"), "x = 1\n")
	writeFile(t, filepath.Join(dir, "vendor", "lib.py"), "x = 1\n")
	writeFile(t, filepath.Join(dir, "tests", "deep", "test_a.py"), "x = 1\n")
	writeFile(t, filepath.Join(dir, scanner.IgnoreFile), "# comment\ntest_*.py\nvendor/**\n")

	td := &scanner.TargetDiscovery{}
	targets, err := td.Discover(dir)
	require.NoError(t, err)

	paths := relPaths(targets)
	require.Contains(t, paths, "keep.py")
	require.NotContains(t, paths, "test_skip.py")
	require.NotContains(t, paths, "vendor/lib.py")
	require.NotContains(t, paths, "tests/deep/test_a.py")
}

func TestIgnorePatternsFromConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "app.py"), "x = 1\n")
	writeFile(t, filepath.Join(dir, "migrations", "0001_init.py"), "x = 1\n")

	td := &scanner.TargetDiscovery{IgnorePatterns: []string{"**/migrations/*.py"}}
	targets, err := td.Discover(dir)
	require.NoError(t, err)
	require.Len(t, targets, 1)
	require.Equal(t, "app.py", targets[0].RelPath)
}

func TestClassify(t *testing.T) {
	require.Equal(t, scanner.LangPython, scanner.Classify("a.py", false))
	require.Equal(t, scanner.Language(""), scanner.Classify("a.md", false))
	require.Equal(t, scanner.LangMarkdown, scanner.Classify("a.md", true))
	require.Equal(t, scanner.Language(""), scanner.Classify("a.txt", true))
}
