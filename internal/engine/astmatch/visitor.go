package astmatch

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/altantutar/pyguard/internal/pyast"
	"github.com/altantutar/pyguard/internal/rules"
	"github.com/altantutar/pyguard/internal/scanner"
	"github.com/altantutar/pyguard/internal/source"
	"github.com/altantutar/pyguard/internal/types"
)

type visitor struct {
	engine *Engine
	unit   *source.Unit
	loc    Location
	mc     rules.MatchContext
	report scanner.Report
}

// visit walks the tree in pre-order. Children are visited in source order
// with the current node pushed on the ancestor stack.
func (v *visitor) visit(n pyast.Node) {
	for _, r := range v.engine.catalog.ForKind(n.Kind()) {
		v.evaluate(r, n)
	}
	children := n.Children()
	if len(children) == 0 {
		return
	}
	v.mc.Ancestors = append(v.mc.Ancestors, n)
	for _, c := range children {
		v.visit(c)
	}
	v.mc.Ancestors = v.mc.Ancestors[:len(v.mc.Ancestors)-1]
}

// evaluate runs one predicate. A panic is contained to this (rule, node)
// pair and recorded as a diagnostic.
func (v *visitor) evaluate(r *rules.Rule, n pyast.Node) {
	defer func() {
		if rec := recover(); rec != nil {
			line, col := v.position(n)
			v.engine.logger.Warn("rule evaluation failed",
				zap.String("rule_id", r.ID),
				zap.String("file", v.unit.RelPath),
				zap.Int("line", line),
				zap.Int("col", col),
				zap.Any("panic", rec))
			v.report.Diagnostics = append(v.report.Diagnostics, types.Diagnostic{
				FilePath: v.unit.RelPath,
				Kind:     types.DiagRule,
				Message:  fmt.Sprintf("rule %s failed: %v", r.ID, rec),
				RuleID:   r.ID,
				Line:     line,
				Column:   col,
			})
		}
	}()
	m, ok := r.Predicate(n, &v.mc)
	if !ok {
		return
	}
	v.collect(r, n, m)
}

func (v *visitor) position(n pyast.Node) (int, int) {
	p := n.Pos()
	return p.Line + v.loc.LineOffset, p.Col + v.loc.ColOffset
}

// collect builds the finding. Confidence and code-block downgrades are
// applied here, once, so the severity never changes afterwards.
func (v *visitor) collect(r *rules.Rule, n pyast.Node, m rules.Match) {
	confidence := m.Confidence
	if confidence == "" {
		confidence = types.ConfidenceHigh
	}
	sev := r.Severity
	if confidence == types.ConfidenceLow {
		switch v.engine.policy {
		case rules.PolicyDrop:
			return
		case rules.PolicyKeep:
		default:
			sev = types.DowngradeSeverity(sev)
		}
	}
	if v.loc.InCodeBlock {
		sev = types.DowngradeSeverity(sev)
	}

	line, col := v.position(n)
	v.report.Findings = append(v.report.Findings, types.Finding{
		RuleID:      r.ID,
		RuleName:    r.Name,
		Severity:    sev,
		Category:    r.Category,
		Message:     r.Render(m),
		FilePath:    v.unit.RelPath,
		Line:        line,
		Column:      col,
		Snippet:     v.unit.Snippet(line),
		CWE:         types.CWE(r.CWE),
		Confidence:  confidence,
		InCodeBlock: v.loc.InCodeBlock,
	})
}
