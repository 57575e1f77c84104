package mdblock

import (
	"context"
	"errors"

	"github.com/altantutar/pyguard/internal/engine/astmatch"
	"github.com/altantutar/pyguard/internal/pyast"
	"github.com/altantutar/pyguard/internal/scanner"
	"github.com/altantutar/pyguard/internal/types"
)

// Analyzer scans Python code blocks in Markdown targets. Findings are marked
// InCodeBlock and downgraded one severity step, since example code is not
// necessarily shipped code.
type Analyzer struct {
	engine   *astmatch.Engine
	tolerant bool
}

// New wraps the Python engine for Markdown use.
func New(engine *astmatch.Engine, tolerant bool) *Analyzer {
	return &Analyzer{engine: engine, tolerant: tolerant}
}

func (a *Analyzer) Name() string { return "markdown" }

// Supports accepts Markdown targets.
func (a *Analyzer) Supports(t *scanner.Target) bool {
	return t.Lang == scanner.LangMarkdown
}

// Analyze runs every Python block of the document. A block that does not
// parse yields a syntax diagnostic at its document position; the remaining
// blocks are still scanned.
func (a *Analyzer) Analyze(ctx context.Context, t *scanner.Target) (scanner.Report, error) {
	var report scanner.Report
	for _, b := range ExtractPython(t.Unit.Text) {
		if err := ctx.Err(); err != nil {
			return scanner.Report{}, err
		}
		loc := astmatch.Location{LineOffset: b.Line - 1, ColOffset: b.Indent, InCodeBlock: true}
		tree, err := pyast.Parse(ctx, b.Code, a.tolerant)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return scanner.Report{}, ctxErr
			}
			d := types.Diagnostic{FilePath: t.RelPath, Kind: types.DiagSyntax, Message: err.Error(), Line: b.Line}
			var se *pyast.SyntaxError
			if errors.As(err, &se) {
				d.Message = "syntax error in code block: " + se.Reason
				d.Line = se.Line + loc.LineOffset
				d.Column = se.Col + loc.ColOffset
			}
			report.Diagnostics = append(report.Diagnostics, d)
			continue
		}
		r := a.engine.Inspect(t.Unit, tree, loc)
		report.Findings = append(report.Findings, r.Findings...)
		report.Diagnostics = append(report.Diagnostics, r.Diagnostics...)
	}
	return report, nil
}
