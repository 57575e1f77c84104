package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/altantutar/pyguard/internal/meta"
	"github.com/altantutar/pyguard/internal/scanner"
)

// MarkdownFormatter outputs findings as GitHub-flavored markdown,
// designed for GitHub Actions Job Summaries and PR comments.
type MarkdownFormatter struct{}

func (f *MarkdownFormatter) Format(w io.Writer, result *scanner.ScanResult) error {
	sum := meta.Summarize(result.Findings)
	if sum.Total == 0 {
		f.printClean(w, result)
	} else {
		f.printSummary(w, result, sum)
		f.printFindings(w, result.Findings)
		f.printTopFiles(w, sum)
	}
	f.printDiagnostics(w, result.Diagnostics)
	f.printFooter(w, result)
	return nil
}

func (f *MarkdownFormatter) printClean(w io.Writer, result *scanner.ScanResult) {
	fmt.Fprintf(w, "### :white_check_mark: pyguard: no issues found\n\n")
	fmt.Fprintf(w, "> %d files scanned · %d rules · %.2fs\n\n",
		result.FilesScanned, result.RulesLoaded, result.Duration.Seconds())
}

func (f *MarkdownFormatter) printSummary(w io.Writer, result *scanner.ScanResult, sum meta.Summary) {
	fmt.Fprintf(w, "### :rotating_light: pyguard: %d findings\n\n", sum.Total)

	fmt.Fprintf(w, "> **Target:** `%s` · %d files · %d rules · %.2fs\n\n",
		result.Target, result.FilesScanned, result.RulesLoaded, result.Duration.Seconds())
	if result.Partial {
		fmt.Fprintf(w, "> :warning: The scan was interrupted; results are partial.\n\n")
	}

	var badges []string
	for _, sev := range scanner.Severities {
		c := sum.BySeverity[sev]
		if c == 0 {
			continue
		}
		badges = append(badges, fmt.Sprintf("%s **%d %s**", severityEmoji(sev), c, sev.String()))
	}
	fmt.Fprintf(w, "%s\n\n", strings.Join(badges, " · "))
}

func (f *MarkdownFormatter) printFindings(w io.Writer, findings []scanner.Finding) {
	for _, sev := range scanner.Severities {
		filtered := filterBySeverity(findings, sev)
		if len(filtered) == 0 {
			continue
		}

		fmt.Fprintf(w, "<details%s>\n", openByDefault(sev))
		fmt.Fprintf(w, "<summary>%s <strong>%s (%d)</strong></summary>\n\n", severityEmoji(sev), sev.String(), len(filtered))

		fmt.Fprintf(w, "| Rule | Finding | Location |\n")
		fmt.Fprintf(w, "|------|---------|----------|\n")

		for _, group := range groupByFile(filtered) {
			for _, finding := range group.findings {
				desc := escapeMarkdown(finding.Message)
				if snippet := truncateMarkdown(strings.TrimSpace(finding.Snippet), 60); snippet != "" {
					desc += fmt.Sprintf("<br><code>%s</code>", escapeMarkdown(snippet))
				}
				if finding.CWE != nil {
					desc += fmt.Sprintf("<br>%s", *finding.CWE)
				}
				fmt.Fprintf(w, "| `%s` | %s | `%s:%d` |\n",
					finding.RuleID, desc, finding.FilePath, finding.Line)
			}
		}

		fmt.Fprintf(w, "\n</details>\n\n")
	}
}

func (f *MarkdownFormatter) printTopFiles(w io.Writer, sum meta.Summary) {
	top := sum.TopFiles(5)
	if len(top) < 2 {
		return
	}
	fmt.Fprintf(w, "**Top affected files:**\n\n")
	fmt.Fprintf(w, "| File | Findings |\n")
	fmt.Fprintf(w, "|------|----------|\n")
	for _, fc := range top {
		fmt.Fprintf(w, "| `%s` | %d |\n", fc.Path, fc.Count)
	}
	fmt.Fprintf(w, "\n")
}

func (f *MarkdownFormatter) printDiagnostics(w io.Writer, diags []scanner.Diagnostic) {
	if len(diags) == 0 {
		return
	}
	fmt.Fprintf(w, "<details>\n<summary>:warning: %d files could not be fully analyzed</summary>\n\n", len(diags))
	fmt.Fprintf(w, "| File | Kind | Detail |\n")
	fmt.Fprintf(w, "|------|------|--------|\n")
	for _, d := range diags {
		loc := d.FilePath
		if d.Line > 0 {
			loc = fmt.Sprintf("%s:%d", d.FilePath, d.Line)
		}
		fmt.Fprintf(w, "| `%s` | %s | %s |\n", loc, d.Kind, escapeMarkdown(truncateMarkdown(d.Message, 80)))
	}
	fmt.Fprintf(w, "\n</details>\n\n")
}

func (f *MarkdownFormatter) printFooter(w io.Writer, result *scanner.ScanResult) {
	fmt.Fprintf(w, "---\n")
	fmt.Fprintf(w, "*Scanned by pyguard %s · run `%s`*\n", ToolVersion, result.RunID)
}

func severityEmoji(sev scanner.Severity) string {
	switch sev {
	case scanner.SeverityCritical:
		return ":red_circle:"
	case scanner.SeverityHigh:
		return ":orange_circle:"
	case scanner.SeverityMedium:
		return ":yellow_circle:"
	case scanner.SeverityLow:
		return ":blue_circle:"
	case scanner.SeverityInfo:
		return ":white_circle:"
	default:
		return ":black_circle:"
	}
}

func openByDefault(sev scanner.Severity) string {
	if sev == scanner.SeverityCritical || sev == scanner.SeverityHigh {
		return " open"
	}
	return ""
}

func truncateMarkdown(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\t", " ")
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func escapeMarkdown(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}
