package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/altantutar/pyguard"
)

var explainCmd = &cobra.Command{
	Use:   "explain <RULE_ID>",
	Short: "Show detailed information about a detection rule",
	Args:  cobra.ExactArgs(1),
	RunE:  runExplain,
}

func init() {
	rootCmd.AddCommand(explainCmd)
}

func runExplain(cmd *cobra.Command, args []string) error {
	var opts []pyguard.Option
	if flagRules != "" {
		opts = append(opts, pyguard.WithCustomRules(flagRules))
	}
	found, err := pyguard.ExplainRule(args[0], opts...)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()

	if strings.ToLower(flagFormat) == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(found)
	}

	color := func(code, text string) string {
		if flagNoColor {
			return text
		}
		return code + text + "\033[0m"
	}

	bold := "\033[1m"
	dim := "\033[2m"
	yellow := "\033[33m"
	cyan := "\033[36m"
	red := "\033[31m"
	green := "\033[32m"

	sevColor := cyan
	switch found.Severity {
	case "CRITICAL":
		sevColor = red + bold
	case "HIGH":
		sevColor = red
	case "MEDIUM":
		sevColor = yellow
	}

	fmt.Fprintf(w, "\n%s %s\n", color(dim, "Rule:"), color(bold, found.ID))
	fmt.Fprintf(w, "%s %s\n", color(dim, "Name:"), found.Name)
	fmt.Fprintf(w, "%s %s\n", color(dim, "Severity:"), color(sevColor, found.Severity))
	fmt.Fprintf(w, "%s %s\n", color(dim, "Category:"), found.Category)
	if found.CWE != "" {
		fmt.Fprintf(w, "%s %s\n", color(dim, "CWE:"), found.CWE)
	}
	fmt.Fprintf(w, "%s %s\n", color(dim, "Matcher:"), found.Matcher)

	if found.Description != "" {
		fmt.Fprintf(w, "\n%s\n%s\n", color(bold, "Description:"), found.Description)
	}

	if len(found.Targets) > 0 {
		fmt.Fprintf(w, "\n%s\n", color(bold, "Matches:"))
		for _, t := range found.Targets {
			fmt.Fprintf(w, "  - %s\n", color(dim, t))
		}
	}

	if len(found.TruePositives) > 0 {
		fmt.Fprintf(w, "\n%s\n", color(bold, "True Positives:"))
		for _, ex := range found.TruePositives {
			printExample(w, color(red, "✖"), ex)
		}
	}

	if len(found.FalsePositives) > 0 {
		fmt.Fprintf(w, "\n%s\n", color(bold, "False Positives:"))
		for _, ex := range found.FalsePositives {
			printExample(w, color(green, "✔"), ex)
		}
	}

	fmt.Fprintln(w)
	return nil
}

// printExample indents multi-line snippets under their marker.
func printExample(w io.Writer, marker, ex string) {
	lines := strings.Split(strings.TrimRight(ex, "\n"), "\n")
	fmt.Fprintf(w, "  %s %s\n", marker, lines[0])
	for _, l := range lines[1:] {
		fmt.Fprintf(w, "    %s\n", l)
	}
}
