// Package pyguard provides a public API for static security analysis of
// Python source code.
//
// This is the library entry point. For the CLI tool, see cmd/pyguard/.
package pyguard

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/altantutar/pyguard/internal/baseline"
	"github.com/altantutar/pyguard/internal/engine/astmatch"
	"github.com/altantutar/pyguard/internal/engine/mdblock"
	"github.com/altantutar/pyguard/internal/rules"
	"github.com/altantutar/pyguard/internal/scanner"
	"github.com/altantutar/pyguard/internal/types"
)

// Re-export core types from internal/types so consumers don't need to
// import internal packages.
type (
	Severity       = types.Severity
	Finding        = types.Finding
	Diagnostic     = types.Diagnostic
	DiagnosticKind = types.DiagnosticKind
	Confidence     = types.Confidence
	ScanResult     = types.ScanResult
)

const (
	SeverityInfo     = types.SeverityInfo
	SeverityLow      = types.SeverityLow
	SeverityMedium   = types.SeverityMedium
	SeverityHigh     = types.SeverityHigh
	SeverityCritical = types.SeverityCritical
)

// ParseSeverity accepts a severity label in any casing.
var ParseSeverity = types.ParseSeverity

// Severities lists every level, most severe first.
var Severities = types.Severities

// RuleOverride allows changing the severity of a rule or disabling it.
type RuleOverride struct {
	Severity string
	Disabled bool
}

// RuleInfo provides summary metadata about a detection rule.
type RuleInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Severity string `json:"severity"`
	Category string `json:"category"`
	CWE      string `json:"cwe,omitempty"`
}

// RuleDetail provides full information about a rule, including its matcher
// and examples.
type RuleDetail struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Severity       string   `json:"severity"`
	Category       string   `json:"category"`
	CWE            string   `json:"cwe,omitempty"`
	Description    string   `json:"description"`
	Message        string   `json:"message"`
	Matcher        string   `json:"matcher"`
	Targets        []string `json:"targets"`
	TruePositives  []string `json:"true_positives"`
	FalsePositives []string `json:"false_positives"`
}

// Scan analyzes a file or directory on disk. If ctx is cancelled mid-scan,
// the partial result is returned together with the context error.
func Scan(ctx context.Context, path string, opts ...Option) (*ScanResult, error) {
	cfg := applyOpts(opts)
	s, err := buildScanner(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.changedOnly {
		return s.ScanChanged(ctx, path)
	}
	return s.Scan(ctx, path)
}

// ScanSource analyzes source held in memory. filename decides the language
// (a .md name scans Python code blocks) and is used as the finding path.
func ScanSource(ctx context.Context, src []byte, filename string, opts ...Option) (*ScanResult, error) {
	if filename == "" {
		filename = "<stdin>.py"
	}
	cfg := applyOpts(opts)
	s, err := buildScanner(cfg)
	if err != nil {
		return nil, err
	}

	lang := scanner.Classify(filename, true)
	if lang == "" {
		lang = scanner.LangPython
	}
	if src == nil {
		src = []byte{}
	}
	return s.ScanTargets(ctx, []*scanner.Target{{RelPath: filename, Lang: lang, Content: src}})
}

// ListRules returns all available detection rules in id order.
// Use WithCategory to filter by category.
func ListRules(opts ...Option) ([]RuleInfo, error) {
	cfg := applyOpts(opts)
	compiled, err := loadAndCompile(cfg)
	if err != nil {
		return nil, err
	}

	infos := []RuleInfo{}
	for _, r := range compiled.Rules() {
		if cfg.category != "" && !strings.Contains(strings.ToLower(r.Category), strings.ToLower(cfg.category)) {
			continue
		}
		infos = append(infos, RuleInfo{
			ID:       r.ID,
			Name:     r.Name,
			Severity: r.Severity.String(),
			Category: r.Category,
			CWE:      r.CWE,
		})
	}
	return infos, nil
}

// ExplainRule returns detailed information about a specific rule.
func ExplainRule(id string, opts ...Option) (*RuleDetail, error) {
	id = strings.ToUpper(strings.TrimSpace(id))
	cfg := applyOpts(opts)
	compiled, err := loadAndCompile(cfg)
	if err != nil {
		return nil, err
	}

	found, ok := compiled.Get(id)
	if !ok {
		return nil, fmt.Errorf("rule %q not found", id)
	}

	targets := append([]string{}, found.Params.Callees...)
	targets = append(targets, found.Params.Unconditional...)
	targets = append(targets, found.Params.AlgorithmCallees...)
	if found.Params.NamePattern != "" {
		targets = append(targets, "names matching "+found.Params.NamePattern)
	}
	if len(found.Params.Verbs) > 0 {
		targets = append(targets, "SQL verbs "+strings.Join(found.Params.Verbs, ", "))
	}

	return &RuleDetail{
		ID:             found.ID,
		Name:           found.Name,
		Severity:       found.Severity.String(),
		Category:       found.Category,
		CWE:            found.CWE,
		Description:    found.Description,
		Message:        found.Message,
		Matcher:        string(found.Kind),
		Targets:        targets,
		TruePositives:  found.Examples.TruePositive,
		FalsePositives: found.Examples.FalsePositive,
	}, nil
}

// --- internal helpers ---

func applyOpts(opts []Option) *scanConfig {
	cfg := &scanConfig{
		minSeverity: SeverityLow,
		logger:      zap.NewNop(),
	}
	for _, o := range opts {
		o(cfg)
	}
	return cfg
}

// loadAndCompile loads built-in (and optionally custom) rules, compiles them,
// and applies overrides/filters. Used by all public functions.
func loadAndCompile(cfg *scanConfig) (*rules.Catalog, error) {
	compiled, err := rules.Load(rules.LoadOptions{
		CustomDir: cfg.customRulesDir,
		Skipped: func(err error) {
			cfg.logger.Warn("skipping custom rule", zap.Error(err))
		},
	})
	if err != nil {
		return nil, err
	}

	if len(cfg.ruleOverrides) > 0 {
		overrides := make(map[string]rules.RuleOverride, len(cfg.ruleOverrides))
		for id, ovr := range cfg.ruleOverrides {
			overrides[strings.ToUpper(id)] = rules.RuleOverride{Severity: ovr.Severity, Disabled: ovr.Disabled}
		}
		var overrideErrs []error
		compiled, overrideErrs = rules.ApplyOverrides(compiled, overrides)
		for _, e := range overrideErrs {
			cfg.logger.Warn("ignoring rule override", zap.Error(e))
		}
	}

	if len(cfg.disabledRules) > 0 {
		disabled := make(map[string]bool, len(cfg.disabledRules))
		for _, id := range cfg.disabledRules {
			disabled[strings.ToUpper(strings.TrimSpace(id))] = true
		}
		compiled = rules.FilterByIDs(compiled, disabled)
	}

	return rules.NewCatalog(compiled)
}

// buildScanner creates a fully wired Scanner with the Python and Markdown
// analyzers.
func buildScanner(cfg *scanConfig) (*scanner.Scanner, error) {
	catalog, err := loadAndCompile(cfg)
	if err != nil {
		return nil, err
	}
	policy, err := rules.ParseConfidencePolicy(cfg.lowConfidence)
	if err != nil {
		return nil, err
	}

	s := scanner.New(cfg.workers)
	s.SetMinSeverity(cfg.minSeverity)
	s.SetIgnorePatterns(cfg.ignorePatterns)
	s.SetMarkdown(cfg.markdown)
	s.SetRulesLoaded(catalog.Len())
	s.SetLogger(cfg.logger)
	if cfg.progress != nil {
		s.SetProgress(scanner.ProgressFunc(cfg.progress))
	}
	if cfg.baselinePath != "" {
		store := baseline.New(cfg.baselinePath)
		if err := store.Load(); err != nil {
			return nil, err
		}
		s.SetBaseline(store)
	}

	engine := astmatch.New(catalog,
		astmatch.WithConfidencePolicy(policy),
		astmatch.WithTolerant(cfg.tolerant),
		astmatch.WithLogger(cfg.logger),
	)
	s.RegisterAnalyzer(engine)
	s.RegisterAnalyzer(mdblock.New(engine, cfg.tolerant))
	return s, nil
}

// WriteBaseline records findings as the accepted baseline at path,
// replacing any previous content.
func WriteBaseline(path string, findings []Finding) error {
	store := baseline.New(path)
	store.Record(findings)
	return store.Save()
}
