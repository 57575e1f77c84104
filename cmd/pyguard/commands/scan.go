package commands

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/altantutar/pyguard"
	"github.com/altantutar/pyguard/internal/config"
	"github.com/altantutar/pyguard/internal/logging"
	"github.com/altantutar/pyguard/internal/meta"
	"github.com/altantutar/pyguard/internal/output"
)

var (
	flagFailOn         string
	flagCI             bool
	flagVerbose        bool
	flagChanged        bool
	flagMarkdown       bool
	flagTolerant       bool
	flagStrict         bool
	flagBaseline       string
	flagUpdateBaseline bool
	flagLowConfidence  string
	flagHistory        string
)

var scanCmd = &cobra.Command{
	Use:   "scan <path>",
	Short: "Scan a Python file or directory for security issues",
	Args:  cobra.ExactArgs(1),
	RunE:  runScan,
}

func init() {
	scanCmd.Flags().StringVar(&flagFailOn, "fail-on", "", "Exit with code 1 if findings at or above this severity (critical, high, medium, low, info)")
	scanCmd.Flags().BoolVar(&flagCI, "ci", false, "CI mode: equivalent to --fail-on high --no-color")
	scanCmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "Show messages for every finding and diagnostic details")
	scanCmd.Flags().BoolVar(&flagChanged, "changed", false, "Only scan git-changed files (staged, unstaged, untracked)")
	scanCmd.Flags().BoolVar(&flagMarkdown, "markdown", false, "Also scan python code blocks in Markdown files")
	scanCmd.Flags().BoolVar(&flagTolerant, "tolerant", false, "Skip unparseable subtrees instead of whole files")
	scanCmd.Flags().BoolVar(&flagStrict, "strict", false, "Exit with code 1 if any file could not be analyzed")
	scanCmd.Flags().StringVar(&flagBaseline, "baseline", "", "Suppress findings recorded in this baseline file")
	scanCmd.Flags().BoolVar(&flagUpdateBaseline, "update-baseline", false, "Write current findings to the --baseline file")
	scanCmd.Flags().StringVar(&flagLowConfidence, "low-confidence", "downgrade", "Low-confidence matches: downgrade, keep or drop")
	scanCmd.Flags().StringVar(&flagHistory, "history", "", "Record this run in a SQLite history database")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	targetPath := args[0]

	if _, err := os.Stat(targetPath); err != nil {
		return fmt.Errorf("target %s: %w", targetPath, err)
	}
	cfg, err := config.Load(targetPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	applyConfig(cmd, cfg)
	applyCIDefaults()

	minSev, err := pyguard.ParseSeverity(flagSeverity)
	if err != nil {
		return fmt.Errorf("invalid --severity: %w", err)
	}
	var failOn *pyguard.Severity
	if flagFailOn != "" {
		sev, err := pyguard.ParseSeverity(flagFailOn)
		if err != nil {
			return fmt.Errorf("invalid --fail-on: %w", err)
		}
		failOn = &sev
	}
	if flagUpdateBaseline && flagBaseline == "" {
		return fmt.Errorf("--update-baseline requires --baseline")
	}
	output.ToolVersion = Version
	formatter, err := output.ForName(flagFormat, flagNoColor, flagVerbose)
	if err != nil {
		return err
	}

	logger, err := logging.New(flagDebug, flagQuiet)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	opts := []pyguard.Option{
		pyguard.WithMinSeverity(minSev),
		pyguard.WithWorkers(flagWorkers),
		pyguard.WithIgnorePatterns(cfg.Ignore),
		pyguard.WithRuleOverrides(ruleOverrides(cfg)),
		pyguard.WithDisabledRules(flagDisableRules...),
		pyguard.WithMarkdown(flagMarkdown),
		pyguard.WithTolerant(flagTolerant),
		pyguard.WithLowConfidence(flagLowConfidence),
		pyguard.WithChangedOnly(flagChanged),
		pyguard.WithLogger(logger),
	}
	if flagRules != "" {
		opts = append(opts, pyguard.WithCustomRules(flagRules))
	}
	if flagBaseline != "" && !flagUpdateBaseline {
		opts = append(opts, pyguard.WithBaseline(flagBaseline))
	}

	stderr := cmd.ErrOrStderr()
	if f, ok := stderr.(*os.File); ok && !flagQuiet && output.IsTerminal(f) {
		spinner := output.NewSpinner(f)
		spinner.Start("Scanning")
		defer spinner.Stop()
		opts = append(opts, pyguard.WithProgress(spinner.Progress))
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	result, scanErr := pyguard.Scan(ctx, targetPath, opts...)
	if result == nil {
		return fmt.Errorf("scan failed: %w", scanErr)
	}
	result.Target = targetPath
	logger.Debug("scan finished",
		zap.String("run_id", result.RunID),
		zap.Int("files", result.FilesScanned),
		zap.Int("findings", len(result.Findings)),
		zap.Int("diagnostics", len(result.Diagnostics)),
		zap.Duration("duration", result.Duration))

	if flagUpdateBaseline && scanErr == nil {
		if err := pyguard.WriteBaseline(flagBaseline, result.Findings); err != nil {
			return fmt.Errorf("writing baseline: %w", err)
		}
	}

	if flagHistory != "" {
		// History is auxiliary; a failure must not hide the report.
		if err := recordHistory(cmd.Context(), flagHistory, result); err != nil {
			logger.Warn("history not recorded", zap.String("path", flagHistory), zap.Error(err))
		}
	}

	var buf bytes.Buffer
	if err := formatter.Format(&buf, result); err != nil {
		return fmt.Errorf("rendering report: %w", err)
	}
	if err := writeOutput(cmd.OutOrStdout(), buf.Bytes()); err != nil {
		return err
	}
	if strings.ToLower(flagFormat) != "terminal" && flagFormat != "" && !flagQuiet {
		printSummary(stderr, result)
	}

	if scanErr != nil {
		return fmt.Errorf("scan interrupted: %w", scanErr)
	}
	return checkThresholds(result, failOn)
}

// applyConfig fills every flag the user did not set from the config file.
func applyConfig(cmd *cobra.Command, cfg config.Config) {
	flags := cmd.Flags()
	setString := func(name string, dst *string, v string) {
		if !flags.Changed(name) && v != "" {
			*dst = v
		}
	}
	setBool := func(name string, dst *bool, v *bool) {
		if !flags.Changed(name) && v != nil {
			*dst = *v
		}
	}
	setString("severity", &flagSeverity, cfg.Severity)
	setString("format", &flagFormat, cfg.Format)
	setString("fail-on", &flagFailOn, cfg.FailOn)
	setString("rules", &flagRules, cfg.Resolve(cfg.Rules))
	setString("low-confidence", &flagLowConfidence, cfg.LowConfidence)
	setString("baseline", &flagBaseline, cfg.Resolve(cfg.Baseline))
	setString("history", &flagHistory, cfg.Resolve(cfg.History))
	setBool("markdown", &flagMarkdown, cfg.Markdown)
	setBool("tolerant", &flagTolerant, cfg.Tolerant)
	setBool("strict", &flagStrict, cfg.Strict)
	if !flags.Changed("workers") && cfg.Workers > 0 {
		flagWorkers = cfg.Workers
	}
}

func applyCIDefaults() {
	if flagCI {
		if flagFailOn == "" {
			flagFailOn = "high"
		}
		flagNoColor = true
	}
	if os.Getenv("NO_COLOR") != "" {
		flagNoColor = true
	}
}

func ruleOverrides(cfg config.Config) map[string]pyguard.RuleOverride {
	if len(cfg.RuleOverrides) == 0 {
		return nil
	}
	out := make(map[string]pyguard.RuleOverride, len(cfg.RuleOverrides))
	for id, o := range cfg.RuleOverrides {
		out[id] = pyguard.RuleOverride{Severity: o.Severity, Disabled: o.Disabled}
	}
	return out
}

// writeOutput writes the rendered report in one call so a failure never
// leaves a truncated document behind.
func writeOutput(stdout io.Writer, data []byte) error {
	if flagOutput == "" {
		if _, err := stdout.Write(data); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
		return nil
	}
	if err := os.WriteFile(flagOutput, data, 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}

func printSummary(w io.Writer, result *pyguard.ScanResult) {
	sum := meta.Summarize(result.Findings)
	var parts []string
	for _, sev := range pyguard.Severities {
		if c := sum.BySeverity[sev]; c > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", c, sev.Label()))
		}
	}
	detail := ""
	if len(parts) > 0 {
		detail = " (" + strings.Join(parts, ", ") + ")"
	}
	fmt.Fprintf(w, "pyguard: %d findings%s in %d files, %d diagnostics",
		sum.Total, detail, result.FilesScanned, len(result.Diagnostics))
	if result.Suppressed > 0 {
		fmt.Fprintf(w, ", %d suppressed by baseline", result.Suppressed)
	}
	if result.Partial {
		fmt.Fprint(w, " [partial]")
	}
	fmt.Fprintln(w)
}

func checkThresholds(result *pyguard.ScanResult, failOn *pyguard.Severity) error {
	if failOn != nil {
		n := 0
		for _, f := range result.Findings {
			if f.Severity >= *failOn {
				n++
			}
		}
		if n > 0 {
			return fmt.Errorf("%w: %d at %s or above", ErrFailOn, n, failOn.Label())
		}
	}
	if flagStrict && len(result.Diagnostics) > 0 {
		return fmt.Errorf("%w: %d diagnostics", ErrStrict, len(result.Diagnostics))
	}
	return nil
}
