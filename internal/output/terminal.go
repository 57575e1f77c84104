package output

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/altantutar/pyguard/internal/meta"
	"github.com/altantutar/pyguard/internal/scanner"
	"github.com/altantutar/pyguard/internal/types"
)

// ANSI color codes
const (
	reset     = "\033[0m"
	bold      = "\033[1m"
	dim       = "\033[2m"
	underline = "\033[4m"
	red       = "\033[31m"
	yellow    = "\033[33m"
	blue      = "\033[34m"
	cyan      = "\033[36m"
)

const (
	barWidth     = 40
	lineWidth    = 72
	ruleIDWidth  = 8
	nameWidth    = 34
	previewWidth = 64
)

// TerminalFormatter outputs findings in a triage-optimized format.
type TerminalFormatter struct {
	NoColor bool
	Verbose bool
}

func (f *TerminalFormatter) color(code, text string) string {
	if f.NoColor {
		return text
	}
	return code + text + reset
}

func (f *TerminalFormatter) Format(w io.Writer, result *scanner.ScanResult) error {
	if !f.NoColor && os.Getenv("NO_COLOR") != "" {
		f.NoColor = true
	}

	f.printHeader(w, result)

	sum := meta.Summarize(result.Findings)
	if sum.Total == 0 {
		fmt.Fprintf(w, "\n  %s No security issues found.\n", f.color(cyan, "✔"))
	} else {
		f.printDashboard(w, sum)
		for _, sev := range scanner.Severities {
			if filtered := filterBySeverity(result.Findings, sev); len(filtered) > 0 {
				f.printSeveritySection(w, sev, filtered)
			}
		}
		f.printRuleCounts(w, sum)
		f.printTopFiles(w, sum)
	}
	f.printDiagnostics(w, result.Diagnostics)

	f.printFooter(w, result)
	return nil
}

func (f *TerminalFormatter) separator() string {
	return strings.Repeat("─", lineWidth)
}

func (f *TerminalFormatter) sectionHeader(title string) string {
	prefix := "── " + title + " "
	remaining := max(lineWidth-utf8.RuneCountInString(prefix), 0)
	return prefix + strings.Repeat("─", remaining)
}

func (f *TerminalFormatter) printHeader(w io.Writer, result *scanner.ScanResult) {
	sep := f.separator()
	fmt.Fprintf(w, "\n%s\n", f.color(dim, sep))
	fmt.Fprintf(w, "  %s\n", f.color(bold, "PYGUARD SCAN RESULTS"))

	parts := []string{}
	if result.Target != "" {
		parts = append(parts, fmt.Sprintf("Target: %s", result.Target))
	}
	parts = append(parts, fmt.Sprintf("%d files", result.FilesScanned))
	parts = append(parts, fmt.Sprintf("%d rules", result.RulesLoaded))
	if result.Duration > 0 {
		parts = append(parts, fmt.Sprintf("%.2fs", result.Duration.Seconds()))
	}
	fmt.Fprintf(w, "  %s\n", strings.Join(parts, "  ·  "))
	if result.Partial {
		fmt.Fprintf(w, "  %s\n", f.color(yellow, "Scan interrupted: results are partial"))
	}
	fmt.Fprintf(w, "%s\n", f.color(dim, sep))
}

func (f *TerminalFormatter) printDashboard(w io.Writer, sum meta.Summary) {
	peak := 0
	for _, c := range sum.BySeverity {
		peak = max(peak, c)
	}
	if peak == 0 {
		return
	}

	fmt.Fprintln(w)
	for _, sev := range scanner.Severities {
		c := sum.BySeverity[sev]
		if c == 0 {
			continue
		}
		label := fmt.Sprintf("  %-10s", sev.String())
		bar := f.renderBar(c, peak, barWidth, sev)
		fmt.Fprintf(w, "%s %s %4d\n", f.color(bold, label), bar, c)
	}
	fmt.Fprintf(w, "\n  %s\n", f.color(bold, fmt.Sprintf("%d findings", sum.Total)))
}

func (f *TerminalFormatter) printSeveritySection(w io.Writer, sev scanner.Severity, findings []scanner.Finding) {
	header := f.sectionHeader(fmt.Sprintf("%s (%d)", sev.String(), len(findings)))
	fmt.Fprintf(w, "\n%s\n", f.color(bold, header))

	for _, group := range groupByFile(findings) {
		fmt.Fprintf(w, "\n  %s\n", f.color(bold+underline, group.filePath))
		for _, finding := range group.findings {
			if sev >= scanner.SeverityHigh || f.Verbose {
				f.printFindingExpanded(w, finding)
			} else {
				f.printFindingCompact(w, finding)
			}
		}
	}
}

func (f *TerminalFormatter) findingLine(finding scanner.Finding) string {
	icon := f.severityIcon(finding.Severity)
	ruleID := fmt.Sprintf("%-*s", ruleIDWidth, finding.RuleID)
	name := fmt.Sprintf("%-*s", nameWidth, truncate(finding.RuleName, nameWidth))
	loc := fmt.Sprintf("%d:%d", finding.Line, finding.Column)
	if finding.InCodeBlock {
		loc += " " + f.color(dim, "[code]")
	}
	if finding.Confidence == types.ConfidenceLow {
		loc += " " + f.color(dim, "[low confidence]")
	}
	return fmt.Sprintf("%s %s %s %s", icon, f.color(bold, ruleID), name, f.color(cyan, loc))
}

func (f *TerminalFormatter) printFindingExpanded(w io.Writer, finding scanner.Finding) {
	fmt.Fprintf(w, "\n    %s\n", f.findingLine(finding))
	if snippet := strings.TrimSpace(finding.Snippet); snippet != "" {
		fmt.Fprintf(w, "      %s %s\n", f.color(dim, "│"), f.color(dim, truncate(snippet, previewWidth)))
	}
	if finding.Message != "" {
		fmt.Fprintf(w, "      %s %s\n", f.color(dim, "│"), f.color(yellow, finding.Message))
	}
}

func (f *TerminalFormatter) printFindingCompact(w io.Writer, finding scanner.Finding) {
	fmt.Fprintf(w, "    %s\n", f.findingLine(finding))
}

func (f *TerminalFormatter) printRuleCounts(w io.Writer, sum meta.Summary) {
	fmt.Fprintf(w, "\n%s\n\n", f.color(bold, f.sectionHeader("BY RULE")))
	for _, id := range sum.RuleIDs() {
		fmt.Fprintf(w, "  %4d  %s\n", sum.ByRule[id], id)
	}
}

func (f *TerminalFormatter) printTopFiles(w io.Writer, sum meta.Summary) {
	top := sum.TopFiles(5)
	if len(top) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s\n\n", f.color(bold, f.sectionHeader("TOP AFFECTED FILES")))
	for _, fc := range top {
		fmt.Fprintf(w, "  %4d  %s\n", fc.Count, fc.Path)
	}
}

func (f *TerminalFormatter) printDiagnostics(w io.Writer, diags []scanner.Diagnostic) {
	if len(diags) == 0 {
		return
	}
	header := f.sectionHeader(fmt.Sprintf("DIAGNOSTICS (%d)", len(diags)))
	fmt.Fprintf(w, "\n%s\n\n", f.color(bold, header))
	for _, d := range diags {
		loc := d.FilePath
		if d.Line > 0 {
			loc = fmt.Sprintf("%s:%d", d.FilePath, d.Line)
		}
		fmt.Fprintf(w, "  %s %-8s %s\n", f.color(yellow, "!"), d.Kind, f.color(dim, loc))
		if f.Verbose {
			fmt.Fprintf(w, "      %s %s\n", f.color(dim, "│"), truncate(d.Message, previewWidth))
		}
	}
}

func (f *TerminalFormatter) printFooter(w io.Writer, result *scanner.ScanResult) {
	sep := f.separator()
	fmt.Fprintf(w, "\n%s\n", f.color(dim, sep))

	parts := []string{
		fmt.Sprintf("%d files scanned", result.FilesScanned),
		fmt.Sprintf("%d findings", len(result.Findings)),
		fmt.Sprintf("%d diagnostics", len(result.Diagnostics)),
	}
	if result.Suppressed > 0 {
		parts = append(parts, fmt.Sprintf("%d suppressed", result.Suppressed))
	}
	fmt.Fprintf(w, "  %s\n", strings.Join(parts, " · "))
	fmt.Fprintf(w, "%s\n", f.color(dim, sep))
}

func (f *TerminalFormatter) severityIcon(sev scanner.Severity) string {
	switch sev {
	case scanner.SeverityCritical:
		return f.color(red+bold, "✖")
	case scanner.SeverityHigh:
		return f.color(red, "▲")
	case scanner.SeverityMedium:
		return f.color(yellow, "■")
	case scanner.SeverityLow:
		return f.color(blue, "●")
	case scanner.SeverityInfo:
		return f.color(cyan, "○")
	default:
		return "?"
	}
}

func (f *TerminalFormatter) severityColor(sev scanner.Severity) string {
	switch sev {
	case scanner.SeverityCritical:
		return red + bold
	case scanner.SeverityHigh:
		return red
	case scanner.SeverityMedium:
		return yellow
	case scanner.SeverityLow:
		return blue
	default:
		return cyan
	}
}

func (f *TerminalFormatter) renderBar(count, peak, width int, sev scanner.Severity) string {
	filled := count * width / peak
	if filled == 0 && count > 0 {
		filled = 1
	}
	// Always keep at least 1 empty block so bar boundary is visible
	if filled >= width {
		filled = width - 1
	}
	filledStr := strings.Repeat("█", filled)
	emptyStr := strings.Repeat("░", width-filled)
	return f.color(f.severityColor(sev), filledStr) + f.color(dim, emptyStr)
}

func filterBySeverity(findings []scanner.Finding, sev scanner.Severity) []scanner.Finding {
	var result []scanner.Finding
	for _, f := range findings {
		if f.Severity == sev {
			result = append(result, f)
		}
	}
	return result
}

func truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\t", " ")
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	r := []rune(s)
	return string(r[:maxLen-3]) + "..."
}

type fileGroup struct {
	filePath string
	findings []scanner.Finding
}

// groupByFile keeps the first-seen file order of the (already sorted) input.
func groupByFile(findings []scanner.Finding) []fileGroup {
	order := make(map[string]int)
	grouped := make(map[string][]scanner.Finding)
	for _, f := range findings {
		if _, ok := order[f.FilePath]; !ok {
			order[f.FilePath] = len(order)
		}
		grouped[f.FilePath] = append(grouped[f.FilePath], f)
	}
	result := make([]fileGroup, 0, len(grouped))
	for path, findings := range grouped {
		result = append(result, fileGroup{filePath: path, findings: findings})
	}
	sort.Slice(result, func(i, j int) bool {
		return order[result[i].filePath] < order[result[j].filePath]
	})
	return result
}
