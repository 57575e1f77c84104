package scanner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/altantutar/pyguard/internal/baseline"
	"github.com/altantutar/pyguard/internal/meta"
	"github.com/altantutar/pyguard/internal/source"
	"github.com/altantutar/pyguard/internal/types"
)

// ProgressFunc is called after each file completes. It may be called from
// several goroutines.
type ProgressFunc func(done, total int, relPath string)

// Scanner orchestrates the scanning process.
type Scanner struct {
	analyzers      []Analyzer
	workers        int
	minSeverity    Severity
	ignorePatterns []string
	markdown       bool
	rulesLoaded    int
	baseline       *baseline.Store
	progress       ProgressFunc
	logger         *zap.Logger
}

// New creates a new Scanner with the given number of workers.
// If workers <= 0, it defaults to runtime.NumCPU().
func New(workers int) *Scanner {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Scanner{
		workers:     workers,
		minSeverity: SeverityLow,
		logger:      zap.NewNop(),
	}
}

// RegisterAnalyzer adds an analyzer to the scanner pipeline.
func (s *Scanner) RegisterAnalyzer(a Analyzer) {
	s.analyzers = append(s.analyzers, a)
}

// SetMinSeverity sets the minimum severity for reported findings.
func (s *Scanner) SetMinSeverity(sev Severity) {
	s.minSeverity = sev
}

// SetIgnorePatterns sets additional file ignore patterns from config.
func (s *Scanner) SetIgnorePatterns(patterns []string) {
	s.ignorePatterns = patterns
}

// SetMarkdown enables discovery of Markdown files.
func (s *Scanner) SetMarkdown(enabled bool) {
	s.markdown = enabled
}

// SetRulesLoaded records the catalog size for the result.
func (s *Scanner) SetRulesLoaded(n int) {
	s.rulesLoaded = n
}

// SetBaseline suppresses findings already recorded in store.
func (s *Scanner) SetBaseline(store *baseline.Store) {
	s.baseline = store
}

// SetProgress installs a per-file progress callback.
func (s *Scanner) SetProgress(fn ProgressFunc) {
	s.progress = fn
}

// SetLogger sets the logger; nil restores the no-op logger.
func (s *Scanner) SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	s.logger = l
}

// Scan performs a full scan of the given path. The path can be a directory
// (walked recursively) or a single file. An unreadable root is an error and
// nothing is scanned.
func (s *Scanner) Scan(ctx context.Context, root string) (*ScanResult, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("target %s: %w", root, err)
	}
	if !info.IsDir() {
		f, err := os.Open(root)
		if err != nil {
			return nil, fmt.Errorf("target %s: %w", root, err)
		}
		f.Close()
		lang := Classify(root, s.markdown)
		if lang == "" {
			lang = LangPython
		}
		targets := []*Target{{
			Path:    root,
			RelPath: filepath.Base(root),
			Lang:    lang,
		}}
		return s.scan(ctx, root, targets, nil)
	}

	if _, err := os.ReadDir(root); err != nil {
		return nil, fmt.Errorf("target %s: %w", root, err)
	}
	discovery := &TargetDiscovery{IgnorePatterns: s.ignorePatterns, Markdown: s.markdown}
	targets, err := discovery.Discover(root)
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	return s.scan(ctx, root, targets, discovery.Diagnostics)
}

// ScanChanged scans only the files git reports as modified, staged or
// untracked under root. Ignore patterns still apply.
func (s *Scanner) ScanChanged(ctx context.Context, root string) (*ScanResult, error) {
	if _, err := os.ReadDir(root); err != nil {
		return nil, fmt.Errorf("target %s: %w", root, err)
	}
	changed, err := ChangedTargets(root, s.markdown)
	if err != nil {
		return nil, fmt.Errorf("listing changed files in %s: %w", root, err)
	}
	discovery := &TargetDiscovery{IgnorePatterns: s.ignorePatterns}
	discovery.loadIgnoreFile(root)
	targets := changed[:0]
	for _, t := range changed {
		if !discovery.isIgnored(t.RelPath) {
			targets = append(targets, t)
		}
	}
	return s.scan(ctx, root, targets, nil)
}

// ScanTargets runs the scanner pipeline on a pre-built list of targets.
func (s *Scanner) ScanTargets(ctx context.Context, targets []*Target) (*ScanResult, error) {
	return s.scan(ctx, "", targets, nil)
}

// fileResult is one worker slot; slots are indexed by target position so
// workers never share state.
type fileResult struct {
	report Report
	done   bool
}

func (s *Scanner) scan(ctx context.Context, root string, targets []*Target, diags []Diagnostic) (*ScanResult, error) {
	start := time.Now()
	results := make([]fileResult, len(targets))
	var completed atomic.Int64

	g := new(errgroup.Group)
	g.SetLimit(s.workers)
	for i, target := range targets {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			report, ok := s.scanTarget(ctx, target)
			if !ok {
				return nil
			}
			results[i] = fileResult{report: report, done: true}
			n := completed.Add(1)
			if s.progress != nil {
				s.progress(int(n), len(targets), target.RelPath)
			}
			return nil
		})
	}
	_ = g.Wait()

	var findings []Finding
	scanned := 0
	for _, r := range results {
		if !r.done {
			continue
		}
		scanned++
		findings = append(findings, r.report.Findings...)
		diags = append(diags, r.report.Diagnostics...)
	}

	findings = meta.FilterMinSeverity(findings, s.minSeverity)
	suppressed := 0
	if s.baseline != nil {
		findings, suppressed = s.baseline.Filter(findings)
	}
	meta.SortFindings(findings)
	meta.SortDiagnostics(diags)
	if findings == nil {
		findings = []Finding{}
	}

	result := &ScanResult{
		RunID:        uuid.NewString(),
		GeneratedAt:  start.UTC(),
		Target:       root,
		MinSeverity:  s.minSeverity,
		Findings:     findings,
		Diagnostics:  diags,
		FilesScanned: scanned,
		RulesLoaded:  s.rulesLoaded,
		Suppressed:   suppressed,
		Duration:     time.Since(start),
	}
	if err := ctx.Err(); err != nil {
		result.Partial = true
		s.logger.Warn("scan interrupted",
			zap.Int("files_completed", scanned),
			zap.Int("files_total", len(targets)),
			zap.Error(err))
		return result, err
	}
	return result, nil
}

// scanTarget runs every supporting analyzer on one file. It reports false
// when the analysis was interrupted and the file must not count as scanned.
func (s *Scanner) scanTarget(ctx context.Context, target *Target) (Report, bool) {
	var report Report
	if err := target.Load(); err != nil {
		var pe *source.ParseError
		if errors.As(err, &pe) {
			d := pe.Diagnostic()
			s.logDiagnostic(d)
			report.Diagnostics = append(report.Diagnostics, d)
			return report, true
		}
		d := types.Diagnostic{FilePath: target.RelPath, Kind: types.DiagRead, Message: err.Error()}
		s.logDiagnostic(d)
		report.Diagnostics = append(report.Diagnostics, d)
		return report, true
	}
	if target.Path != "" {
		// The decoded text is only needed while this file is analyzed.
		defer func() { target.Unit = nil }()
	}

	for _, a := range s.analyzers {
		if !a.Supports(target) {
			continue
		}
		r, err := a.Analyze(ctx, target)
		if err != nil {
			return Report{}, false
		}
		for _, d := range r.Diagnostics {
			if d.Kind != types.DiagRule {
				s.logDiagnostic(d)
			}
		}
		report.Findings = append(report.Findings, r.Findings...)
		report.Diagnostics = append(report.Diagnostics, r.Diagnostics...)
	}
	return report, true
}

func (s *Scanner) logDiagnostic(d Diagnostic) {
	s.logger.Warn("file diagnostic",
		zap.String("file", d.FilePath),
		zap.String("kind", string(d.Kind)),
		zap.Int("line", d.Line),
		zap.String("message", d.Message))
}
