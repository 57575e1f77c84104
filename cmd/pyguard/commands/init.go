package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/altantutar/pyguard/internal/config"
	"github.com/altantutar/pyguard/internal/scanner"
)

var (
	flagHook   bool
	flagCIOnly bool
)

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Initialize pyguard configuration files",
	Long:  `Scaffolds .pyguard.yml, .pyguardignore, and a GitHub Actions workflow for pyguard scanning.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runInit,
}

func init() {
	initCmd.Flags().BoolVar(&flagHook, "hook", false, "Create a git pre-commit hook that runs pyguard")
	initCmd.Flags().BoolVar(&flagCIOnly, "ci", false, "Only generate GitHub Actions workflow (skip config files)")
	rootCmd.AddCommand(initCmd)
}

type scaffoldFile struct {
	path    string
	content string
	mode    os.FileMode
}

func runInit(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	w := cmd.OutOrStdout()

	if flagHook {
		gitDir := filepath.Join(dir, ".git")
		if _, err := os.Stat(gitDir); os.IsNotExist(err) {
			return fmt.Errorf("no .git directory found in %s (is this a git repository?)", dir)
		}
		return writeScaffold(w, scaffoldFile{filepath.Join(gitDir, "hooks", "pre-commit"), preCommitTemplate, 0o755})
	}

	workflow := scaffoldFile{filepath.Join(dir, ".github", "workflows", "pyguard.yml"), workflowTemplate, 0o644}
	if flagCIOnly {
		return writeScaffold(w, workflow)
	}

	files := []scaffoldFile{
		{filepath.Join(dir, config.FileNames[0]), config.Template, 0o644},
		{filepath.Join(dir, scanner.IgnoreFile), ignoreTemplate, 0o644},
		workflow,
	}
	for _, f := range files {
		if err := writeScaffold(w, f); err != nil {
			return err
		}
	}
	return nil
}

// writeScaffold creates f unless it already exists.
func writeScaffold(w io.Writer, f scaffoldFile) error {
	if _, err := os.Stat(f.path); err == nil {
		fmt.Fprintf(w, "  skip %s (already exists)\n", f.path)
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", f.path, err)
	}
	if err := os.WriteFile(f.path, []byte(f.content), f.mode); err != nil {
		return fmt.Errorf("writing %s: %w", f.path, err)
	}
	fmt.Fprintf(w, "  create %s\n", f.path)
	return nil
}

const ignoreTemplate = `# pyguard ignore patterns
# Files matching these patterns are skipped. "**" spans directories.

# Virtual environments and caches are always skipped; add project ones here.
env/**
.eggs/**

# Build artifacts
build/**
dist/**

# Generated code
**/*_pb2.py
**/migrations/**
`

const preCommitTemplate = `#!/bin/sh
# pyguard pre-commit hook
echo "Running pyguard security scan..."
pyguard scan . --changed --fail-on high --no-color
exit $?
`

const workflowTemplate = `name: pyguard

on:
  push:
    branches: [main]
  pull_request:
    branches: [main]

permissions:
  security-events: write
  contents: read

jobs:
  pyguard:
    runs-on: ubuntu-latest
    steps:
      - uses: actions/checkout@v4

      - uses: actions/setup-go@v5
        with:
          go-version: stable

      - name: Install pyguard
        run: go install github.com/altantutar/pyguard/cmd/pyguard@latest

      - name: Run pyguard
        id: scan
        continue-on-error: true
        run: pyguard scan . --format sarif --output results.sarif --fail-on high

      - name: Job summary
        if: always()
        run: pyguard scan . --format markdown --quiet >> "$GITHUB_STEP_SUMMARY" || true

      - name: Upload SARIF results
        if: always()
        uses: github/codeql-action/upload-sarif@v3
        with:
          sarif_file: results.sarif

      - name: Fail on findings
        if: steps.scan.outcome == 'failure'
        run: exit 1
`
