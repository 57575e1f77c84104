// Package meta post-processes findings: severity filtering, deterministic
// ordering and summary counts.
package meta

import (
	"cmp"
	"slices"

	"github.com/altantutar/pyguard/internal/types"
)

// FilterMinSeverity keeps findings at or above threshold. The input slice is not
// modified.
func FilterMinSeverity(findings []types.Finding, threshold types.Severity) []types.Finding {
	var out []types.Finding
	for _, f := range findings {
		if f.Severity >= threshold {
			out = append(out, f)
		}
	}
	return out
}

// SortFindings orders findings by file, line, column, then rule id.
func SortFindings(findings []types.Finding) {
	slices.SortStableFunc(findings, func(a, b types.Finding) int {
		return cmp.Or(
			cmp.Compare(a.FilePath, b.FilePath),
			cmp.Compare(a.Line, b.Line),
			cmp.Compare(a.Column, b.Column),
			cmp.Compare(a.RuleID, b.RuleID),
		)
	})
}

// SortDiagnostics orders diagnostics by file, line, column, then kind.
func SortDiagnostics(diags []types.Diagnostic) {
	slices.SortStableFunc(diags, func(a, b types.Diagnostic) int {
		return cmp.Or(
			cmp.Compare(a.FilePath, b.FilePath),
			cmp.Compare(a.Line, b.Line),
			cmp.Compare(a.Column, b.Column),
			cmp.Compare(a.Kind, b.Kind),
			cmp.Compare(a.RuleID, b.RuleID),
		)
	})
}
