package meta

import (
	"sort"

	"github.com/altantutar/pyguard/internal/types"
)

// Summary aggregates finding counts.
type Summary struct {
	Total      int
	BySeverity map[types.Severity]int
	ByRule     map[string]int
	ByFile     map[string]int
}

// Summarize counts findings. BySeverity always has an entry for every level.
func Summarize(findings []types.Finding) Summary {
	s := Summary{
		Total:      len(findings),
		BySeverity: make(map[types.Severity]int, len(types.Severities)),
		ByRule:     make(map[string]int),
		ByFile:     make(map[string]int),
	}
	for _, sev := range types.Severities {
		s.BySeverity[sev] = 0
	}
	for _, f := range findings {
		s.BySeverity[f.Severity]++
		s.ByRule[f.RuleID]++
		s.ByFile[f.FilePath]++
	}
	return s
}

// Highest returns the most severe level present, and false when empty.
func (s Summary) Highest() (types.Severity, bool) {
	for _, sev := range types.Severities {
		if s.BySeverity[sev] > 0 {
			return sev, true
		}
	}
	return types.SeverityInfo, false
}

// FileCount is a file with its finding count.
type FileCount struct {
	Path  string
	Count int
}

// TopFiles returns up to n files with the most findings, ties broken by path.
func (s Summary) TopFiles(n int) []FileCount {
	out := make([]FileCount, 0, len(s.ByFile))
	for p, c := range s.ByFile {
		out = append(out, FileCount{Path: p, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Path < out[j].Path
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// RuleIDs returns the rule ids with findings, sorted.
func (s Summary) RuleIDs() []string {
	ids := make([]string, 0, len(s.ByRule))
	for id := range s.ByRule {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
