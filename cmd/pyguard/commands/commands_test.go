package commands

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/altantutar/pyguard/internal/history"
	"github.com/altantutar/pyguard/internal/update"
)

// resetFlags restores every flag global and clears the Changed markers
// cobra keeps between Execute calls.
func resetFlags(t *testing.T) {
	t.Helper()
	flagSeverity, flagFormat, flagOutput = "low", "terminal", ""
	flagWorkers, flagRules, flagNoColor = 0, "", true
	flagDisableRules, flagDebug, flagQuiet = nil, false, true
	flagFailOn, flagCI, flagVerbose, flagChanged = "", false, false, false
	flagMarkdown, flagTolerant, flagStrict = false, false, false
	flagBaseline, flagUpdateBaseline, flagLowConfidence = "", false, "downgrade"
	flagCategory, flagHook, flagCIOnly = "", false, false
	flagCheckUpdate, flagHistory = false, ""
	flagHistoryDB, flagHistoryLimit, flagIntroduced = history.DefaultPath, 20, false
	unset := func(f *pflag.Flag) { f.Changed = false }
	var walk func(c *cobra.Command)
	walk = func(c *cobra.Command) {
		c.PersistentFlags().VisitAll(unset)
		c.Flags().VisitAll(unset)
		for _, sub := range c.Commands() {
			walk(sub)
		}
	}
	walk(rootCmd)
}

// execute runs the CLI with args and returns stdout, stderr and the error.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)
	defer rootCmd.SetOut(nil)
	defer rootCmd.SetErr(nil)
	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

type report struct {
	RunID        string `json:"run_id"`
	MinSeverity  string `json:"min_severity"`
	FilesScanned int    `json:"files_scanned"`
	Suppressed   int    `json:"suppressed"`
	Summary      map[string]int
	Findings     []struct {
		RuleID   string `json:"rule_id"`
		Severity string `json:"severity"`
		File     string `json:"file"`
		Line     int    `json:"line"`
	} `json:"findings"`
	Diagnostics []struct {
		File string `json:"file"`
		Kind string `json:"kind"`
	} `json:"diagnostics"`
}

func decodeReport(t *testing.T, data string) report {
	t.Helper()
	var r report
	require.NoError(t, json.Unmarshal([]byte(data), &r))
	return r
}

func TestScanJSON(t *testing.T) {
	resetFlags(t)
	dir := t.TempDir()
	writeFile(t, dir, "app.py", "result = eval(\"2 * 3\")\n")

	out, stderr, err := execute(t, "scan", dir, "--format", "json")
	require.NoError(t, err)
	require.Empty(t, stderr)

	r := decodeReport(t, out)
	require.NotEmpty(t, r.RunID)
	require.Equal(t, "low", r.MinSeverity)
	require.Equal(t, 1, r.FilesScanned)
	require.Len(t, r.Findings, 1)
	require.Equal(t, "SEC001", r.Findings[0].RuleID)
	require.Equal(t, "critical", r.Findings[0].Severity)
	require.Equal(t, 1, r.Findings[0].Line)
	require.Equal(t, 1, r.Summary["critical"])
}

func TestScanSummaryOnStderr(t *testing.T) {
	resetFlags(t)
	dir := t.TempDir()
	writeFile(t, dir, "app.py", "exec(code)\n")

	_, stderr, err := execute(t, "scan", dir, "--format", "json", "--quiet=false")
	require.NoError(t, err)
	require.Contains(t, stderr, "pyguard: 1 findings (1 critical) in 1 files, 0 diagnostics")
}

func TestScanCleanDocument(t *testing.T) {
	resetFlags(t)
	dir := t.TempDir()
	writeFile(t, dir, "ok.py", "import json\nprint(json.dumps([]))\n")

	out, _, err := execute(t, "scan", dir, "--format", "json")
	require.NoError(t, err)
	require.Contains(t, out, `"findings": []`)
	r := decodeReport(t, out)
	for sev, n := range r.Summary {
		require.Zero(t, n, sev)
	}
}

func TestScanSyntaxErrorDiagnostic(t *testing.T) {
	resetFlags(t)
	dir := t.TempDir()
	writeFile(t, dir, "good.py", "import os\nos.system(cmd)\n")
	writeFile(t, dir, "bad.py", "if True\n    pass\n")

	out, _, err := execute(t, "scan", dir, "--format", "json")
	require.NoError(t, err)
	r := decodeReport(t, out)
	require.Len(t, r.Findings, 1)
	require.Len(t, r.Diagnostics, 1)
	require.Equal(t, "bad.py", r.Diagnostics[0].File)
	require.Equal(t, "syntax", r.Diagnostics[0].Kind)

	resetFlags(t)
	_, _, err = execute(t, "scan", dir, "--format", "json", "--strict")
	require.ErrorIs(t, err, ErrStrict)
	require.Equal(t, 1, ExitCode(err))
}

func TestScanFailOn(t *testing.T) {
	resetFlags(t)
	dir := t.TempDir()
	writeFile(t, dir, "app.py", "import tempfile\np = tempfile.mktemp()\n")

	_, _, err := execute(t, "scan", dir, "--fail-on", "medium")
	require.NoError(t, err)

	resetFlags(t)
	out, _, err := execute(t, "scan", dir, "--fail-on", "low")
	require.ErrorIs(t, err, ErrFailOn)
	require.Equal(t, 1, ExitCode(err))
	require.Contains(t, out, "SEC010", "report is still written")

	resetFlags(t)
	_, _, err = execute(t, "scan", dir, "--fail-on", "whenever")
	require.Error(t, err)
	require.Equal(t, 2, ExitCode(err))
}

func TestScanMissingTargetWritesNothing(t *testing.T) {
	resetFlags(t)
	outFile := filepath.Join(t.TempDir(), "report.json")

	out, _, err := execute(t, "scan", filepath.Join(t.TempDir(), "missing"), "--format", "json", "-o", outFile)
	require.Error(t, err)
	require.Equal(t, 2, ExitCode(err))
	require.Empty(t, out)
	_, statErr := os.Stat(outFile)
	require.True(t, os.IsNotExist(statErr))
}

func TestScanOutputFile(t *testing.T) {
	resetFlags(t)
	dir := t.TempDir()
	writeFile(t, dir, "app.py", "import yaml\nyaml.unsafe_load(s)\n")
	outFile := filepath.Join(t.TempDir(), "report.sarif")

	out, _, err := execute(t, "scan", dir, "--format", "sarif", "-o", outFile)
	require.NoError(t, err)
	require.Empty(t, out)

	data, err := os.ReadFile(outFile)
	require.NoError(t, err)
	require.Contains(t, string(data), `"ruleId": "SEC006"`)
	require.Contains(t, string(data), "external/cwe/CWE-502")
}

func TestScanConfigFile(t *testing.T) {
	resetFlags(t)
	dir := t.TempDir()
	writeFile(t, dir, ".pyguard.yml", `severity: info
format: json
ignore:
  - "vendor/**"
rule_overrides:
  SEC001:
    disabled: true
`)
	writeFile(t, dir, "app.py", "eval(x)\nmod = __import__(name)\n")
	writeFile(t, dir, "vendor/lib.py", "mod = __import__(name)\n")

	out, _, err := execute(t, "scan", dir)
	require.NoError(t, err)
	r := decodeReport(t, out)
	require.Equal(t, "info", r.MinSeverity)
	require.Equal(t, 1, r.FilesScanned)
	require.Len(t, r.Findings, 1)
	require.Equal(t, "SEC011", r.Findings[0].RuleID)

	// Explicit flags win over the file.
	resetFlags(t)
	out, _, err = execute(t, "scan", dir, "--severity", "high")
	require.NoError(t, err)
	r = decodeReport(t, out)
	require.Equal(t, "high", r.MinSeverity)
	require.Empty(t, r.Findings)
}

func TestScanBaseline(t *testing.T) {
	resetFlags(t)
	dir := t.TempDir()
	writeFile(t, dir, "app.py", "import pickle\nobj = pickle.loads(blob)\n")
	baselinePath := filepath.Join(t.TempDir(), "baseline.json")

	_, _, err := execute(t, "scan", dir, "--baseline", baselinePath, "--update-baseline")
	require.NoError(t, err)
	_, err = os.Stat(baselinePath)
	require.NoError(t, err)

	resetFlags(t)
	out, _, err := execute(t, "scan", dir, "--format", "json", "--baseline", baselinePath, "--fail-on", "low")
	require.NoError(t, err)
	r := decodeReport(t, out)
	require.Empty(t, r.Findings)
	require.Equal(t, 1, r.Suppressed)

	resetFlags(t)
	_, _, err = execute(t, "scan", dir, "--update-baseline")
	require.Error(t, err)
}

func TestScanMarkdownFlag(t *testing.T) {
	resetFlags(t)
	dir := t.TempDir()
	writeFile(t, dir, "README.md", "```python\nimport requests\nrequests.get(u, verify=False)\n```\n")

	out, _, err := execute(t, "scan", dir, "--format", "json", "--markdown")
	require.NoError(t, err)
	r := decodeReport(t, out)
	require.Len(t, r.Findings, 1)
	require.Equal(t, "SEC009", r.Findings[0].RuleID)
	require.Equal(t, "low", r.Findings[0].Severity)
	require.Equal(t, 3, r.Findings[0].Line)
}

func TestScanTerminal(t *testing.T) {
	resetFlags(t)
	dir := t.TempDir()
	writeFile(t, dir, "app.py", "import subprocess\nsubprocess.call(cmd, shell=True)\n")

	out, _, err := execute(t, "scan", dir)
	require.NoError(t, err)
	require.Contains(t, out, "PYGUARD SCAN RESULTS")
	require.Contains(t, out, "SEC004")
	require.NotContains(t, out, "\033[")
}

func TestScanUnknownFormat(t *testing.T) {
	resetFlags(t)
	_, _, err := execute(t, "scan", t.TempDir(), "--format", "xml")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown format")
	require.Equal(t, 2, ExitCode(err))
}

func TestExitCode(t *testing.T) {
	require.Equal(t, 0, ExitCode(nil))
	require.Equal(t, 1, ExitCode(ErrFailOn))
	require.Equal(t, 2, ExitCode(os.ErrNotExist))
}

func TestVersion(t *testing.T) {
	resetFlags(t)
	out, _, err := execute(t, "version")
	require.NoError(t, err)
	require.Contains(t, out, "pyguard dev")

	resetFlags(t)
	out, stderr, err := execute(t, "version", "--check")
	require.NoError(t, err)
	require.Contains(t, out, "pyguard dev")
	require.Contains(t, stderr, "update check skipped")
}

func TestVersionCheckNewer(t *testing.T) {
	resetFlags(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"tag_name": "v9.9.9"}`))
	}))
	defer srv.Close()

	origVersion, origChecker := Version, newChecker
	defer func() { Version, newChecker = origVersion, origChecker }()
	Version = "v0.1.0"
	newChecker = func() *update.Checker {
		return &update.Checker{BaseURL: srv.URL, Repo: update.Repo, Client: srv.Client()}
	}

	out, _, err := execute(t, "version", "--check")
	require.NoError(t, err)
	require.Contains(t, out, "A newer release is available: v9.9.9")
	require.Contains(t, out, "@v9.9.9")
}
