package pyguard

import "go.uber.org/zap"

// ProgressFunc is called after each file completes. It may be called from
// several goroutines.
type ProgressFunc func(done, total int, relPath string)

// scanConfig holds the resolved configuration for a scan.
type scanConfig struct {
	customRulesDir string
	disabledRules  []string
	ruleOverrides  map[string]RuleOverride
	minSeverity    Severity
	workers        int
	ignorePatterns []string
	markdown       bool
	tolerant       bool
	lowConfidence  string
	baselinePath   string
	changedOnly    bool
	progress       ProgressFunc
	logger         *zap.Logger
	category       string // only for ListRules
}

// Option configures a scan operation.
type Option func(*scanConfig)

// WithCustomRules loads additional rules from a directory.
func WithCustomRules(dir string) Option {
	return func(c *scanConfig) {
		c.customRulesDir = dir
	}
}

// WithDisabledRules excludes specific rule IDs from scanning.
func WithDisabledRules(ids ...string) Option {
	return func(c *scanConfig) {
		c.disabledRules = append(c.disabledRules, ids...)
	}
}

// WithRuleOverrides applies severity overrides or disables rules.
func WithRuleOverrides(overrides map[string]RuleOverride) Option {
	return func(c *scanConfig) {
		c.ruleOverrides = overrides
	}
}

// WithMinSeverity sets the minimum severity threshold for reported findings
// (default: low).
func WithMinSeverity(sev Severity) Option {
	return func(c *scanConfig) {
		c.minSeverity = sev
	}
}

// WithWorkers sets the number of concurrent workers (default: NumCPU).
func WithWorkers(n int) Option {
	return func(c *scanConfig) {
		c.workers = n
	}
}

// WithIgnorePatterns sets file patterns to ignore during directory scanning.
func WithIgnorePatterns(patterns []string) Option {
	return func(c *scanConfig) {
		c.ignorePatterns = patterns
	}
}

// WithMarkdown also scans Python code blocks in Markdown files.
func WithMarkdown(enabled bool) Option {
	return func(c *scanConfig) {
		c.markdown = enabled
	}
}

// WithTolerant skips unparseable subtrees instead of whole files.
func WithTolerant(enabled bool) Option {
	return func(c *scanConfig) {
		c.tolerant = enabled
	}
}

// WithLowConfidence sets the policy for matches whose callee could not be
// tied to an import: "downgrade" (default), "keep" or "drop".
func WithLowConfidence(policy string) Option {
	return func(c *scanConfig) {
		c.lowConfidence = policy
	}
}

// WithBaseline suppresses findings recorded in the baseline file at path.
// A missing file suppresses nothing.
func WithBaseline(path string) Option {
	return func(c *scanConfig) {
		c.baselinePath = path
	}
}

// WithChangedOnly limits a directory scan to files git reports as changed.
func WithChangedOnly(enabled bool) Option {
	return func(c *scanConfig) {
		c.changedOnly = enabled
	}
}

// WithProgress installs a per-file progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(c *scanConfig) {
		c.progress = fn
	}
}

// WithLogger sets the logger for file diagnostics and rule faults.
func WithLogger(l *zap.Logger) Option {
	return func(c *scanConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithCategory filters rules by category (only applies to ListRules).
func WithCategory(cat string) Option {
	return func(c *scanConfig) {
		c.category = cat
	}
}
