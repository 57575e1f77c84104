// Package astmatch is the analyzer that walks lowered Python syntax trees
// and evaluates the rule catalog against every node.
package astmatch

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/altantutar/pyguard/internal/pyast"
	"github.com/altantutar/pyguard/internal/rules"
	"github.com/altantutar/pyguard/internal/scanner"
	"github.com/altantutar/pyguard/internal/source"
	"github.com/altantutar/pyguard/internal/types"
)

// Engine implements scanner.Analyzer for Python files.
type Engine struct {
	catalog  *rules.Catalog
	policy   rules.ConfidencePolicy
	tolerant bool
	logger   *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfidencePolicy sets how low-confidence matches are reported.
func WithConfidencePolicy(p rules.ConfidencePolicy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithTolerant skips erroneous subtrees instead of rejecting the file.
func WithTolerant(tolerant bool) Option {
	return func(e *Engine) { e.tolerant = tolerant }
}

// WithLogger sets the logger used for rule faults.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an engine over a compiled catalog.
func New(catalog *rules.Catalog, opts ...Option) *Engine {
	e := &Engine{
		catalog: catalog,
		policy:  rules.PolicyDowngrade,
		logger:  zap.NewNop(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *Engine) Name() string { return "ast" }

// Supports accepts Python targets.
func (e *Engine) Supports(t *scanner.Target) bool {
	return t.Lang == scanner.LangPython || t.Lang == ""
}

// Analyze parses the target and reports findings and diagnostics. A file
// that does not parse yields a single syntax diagnostic.
func (e *Engine) Analyze(ctx context.Context, t *scanner.Target) (scanner.Report, error) {
	if err := ctx.Err(); err != nil {
		return scanner.Report{}, err
	}
	tree, err := t.Unit.Parse(ctx, e.tolerant)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return scanner.Report{}, ctxErr
		}
		return scanner.Report{Diagnostics: []types.Diagnostic{parseDiagnostic(t.RelPath, err)}}, nil
	}
	return e.Inspect(t.Unit, tree, Location{}), nil
}

// Source analyzes Python source held in memory.
func (e *Engine) Source(ctx context.Context, relPath string, src []byte) (scanner.Report, error) {
	unit, err := source.FromBytes(relPath, src)
	if err != nil {
		return scanner.Report{Diagnostics: []types.Diagnostic{parseDiagnostic(relPath, err)}}, nil
	}
	return e.Analyze(ctx, &scanner.Target{RelPath: relPath, Lang: scanner.LangPython, Unit: unit})
}

func parseDiagnostic(relPath string, err error) types.Diagnostic {
	var pe *source.ParseError
	if errors.As(err, &pe) {
		return pe.Diagnostic()
	}
	return types.Diagnostic{FilePath: relPath, Kind: types.DiagSyntax, Message: err.Error()}
}

// Location places a tree inside its file. Code embedded in another document
// (a Markdown fence) starts at an offset.
type Location struct {
	LineOffset  int
	ColOffset   int
	InCodeBlock bool
}

// Inspect runs the catalog over an already parsed tree. Positions are
// shifted by loc; snippets always come from unit.
func (e *Engine) Inspect(unit *source.Unit, tree *pyast.Tree, loc Location) scanner.Report {
	v := &visitor{
		engine: e,
		unit:   unit,
		loc:    loc,
		mc:     rules.MatchContext{Scope: pyast.NewScope(tree.Root)},
	}
	for _, f := range tree.Faults {
		v.report.Diagnostics = append(v.report.Diagnostics, types.Diagnostic{
			FilePath: unit.RelPath,
			Kind:     types.DiagSubtree,
			Message:  "skipped subtree: " + f.Reason,
			Line:     f.Pos.Line + loc.LineOffset,
			Column:   f.Pos.Col + loc.ColOffset,
		})
	}
	v.visit(tree.Root)
	return v.report
}
