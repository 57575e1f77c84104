package meta_test

import (
	"testing"

	"github.com/altantutar/pyguard/internal/meta"
	"github.com/altantutar/pyguard/internal/types"
	"github.com/stretchr/testify/require"
)

func sample() []types.Finding {
	return []types.Finding{
		{RuleID: "SEC005", FilePath: "b.py", Line: 3, Column: 4, Severity: types.SeverityHigh},
		{RuleID: "SEC001", FilePath: "a.py", Line: 10, Severity: types.SeverityCritical},
		{RuleID: "SEC011", FilePath: "a.py", Line: 2, Severity: types.SeverityInfo},
		{RuleID: "SEC007", FilePath: "a.py", Line: 2, Severity: types.SeverityMedium},
		{RuleID: "SEC010", FilePath: "b.py", Line: 3, Column: 0, Severity: types.SeverityLow},
	}
}

func TestSortFindings(t *testing.T) {
	findings := sample()
	meta.SortFindings(findings)

	var got []string
	for _, f := range findings {
		got = append(got, f.RuleID)
	}
	require.Equal(t, []string{"SEC007", "SEC011", "SEC001", "SEC010", "SEC005"}, got)
}

func TestFilterMinSeverityMonotonic(t *testing.T) {
	findings := sample()
	prev := -1
	// Walking from most to least severe, each threshold keeps a superset.
	for _, sev := range types.Severities {
		kept := meta.FilterMinSeverity(findings, sev)
		require.GreaterOrEqual(t, len(kept), prev)
		for _, f := range kept {
			require.GreaterOrEqual(t, f.Severity, sev)
		}
		prev = len(kept)
	}
	require.Len(t, meta.FilterMinSeverity(findings, types.SeverityInfo), len(findings))
	require.Len(t, meta.FilterMinSeverity(findings, types.SeverityLow), len(findings)-1)
}

func TestSummarize(t *testing.T) {
	s := meta.Summarize(sample())
	require.Equal(t, 5, s.Total)
	require.Len(t, s.BySeverity, 5)
	require.Equal(t, 1, s.BySeverity[types.SeverityCritical])
	require.Equal(t, 3, s.ByFile["a.py"])
	require.Equal(t, []string{"SEC001", "SEC005", "SEC007", "SEC010", "SEC011"}, s.RuleIDs())

	top := s.TopFiles(1)
	require.Equal(t, []meta.FileCount{{Path: "a.py", Count: 3}}, top)

	high, ok := s.Highest()
	require.True(t, ok)
	require.Equal(t, types.SeverityCritical, high)
}

func TestSummarizeEmpty(t *testing.T) {
	s := meta.Summarize(nil)
	require.Equal(t, 0, s.Total)
	for _, sev := range types.Severities {
		count, ok := s.BySeverity[sev]
		require.True(t, ok)
		require.Zero(t, count)
	}
	_, ok := s.Highest()
	require.False(t, ok)
}

func TestSortDiagnostics(t *testing.T) {
	diags := []types.Diagnostic{
		{FilePath: "b.py", Kind: types.DiagSyntax, Line: 1},
		{FilePath: "a.py", Kind: types.DiagRule, Line: 5, RuleID: "SEC002"},
		{FilePath: "a.py", Kind: types.DiagRule, Line: 5, RuleID: "SEC001"},
	}
	meta.SortDiagnostics(diags)
	require.Equal(t, "SEC001", diags[0].RuleID)
	require.Equal(t, "SEC002", diags[1].RuleID)
	require.Equal(t, "b.py", diags[2].FilePath)
}
