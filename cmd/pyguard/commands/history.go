package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/altantutar/pyguard"
	"github.com/altantutar/pyguard/internal/history"
)

var (
	flagHistoryDB    string
	flagHistoryLimit int
	flagIntroduced   bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List scans recorded with --history",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <RUN_ID>",
	Short: "Print the findings of a recorded scan",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

func init() {
	historyCmd.PersistentFlags().StringVar(&flagHistoryDB, "db", history.DefaultPath, "History database path")
	historyCmd.Flags().IntVar(&flagHistoryLimit, "limit", 20, "Number of runs to list")
	historyShowCmd.Flags().BoolVar(&flagIntroduced, "introduced", false, "Only findings absent from the previous run")
	historyCmd.AddCommand(historyShowCmd)
	rootCmd.AddCommand(historyCmd)
}

// recordHistory appends a finished scan to the database at path.
func recordHistory(ctx context.Context, path string, result *pyguard.ScanResult) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	db, err := history.Open(ctx, path)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.Record(ctx, result)
}

// openHistory opens an existing database; it never creates one.
func openHistory(ctx context.Context) (*history.DB, error) {
	if _, err := os.Stat(flagHistoryDB); err != nil {
		return nil, fmt.Errorf("history %s: %w", flagHistoryDB, err)
	}
	return history.Open(ctx, flagHistoryDB)
}

func runHistory(cmd *cobra.Command, args []string) error {
	db, err := openHistory(cmd.Context())
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := db.Runs(cmd.Context(), flagHistoryLimit)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if strings.ToLower(flagFormat) == "json" {
		if runs == nil {
			runs = []history.Run{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "RUN\tSTARTED\tTARGET\tFILES\tFINDINGS\tCRIT\tHIGH\n")
	for _, r := range runs {
		target := r.Target
		if r.Partial {
			target += " (partial)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
			r.ID, r.StartedAt.Local().Format("2006-01-02 15:04"), target,
			r.FilesScanned, r.Findings, r.BySeverity["critical"], r.BySeverity["high"])
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\n%d runs\n", len(runs))
	return nil
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	db, err := openHistory(cmd.Context())
	if err != nil {
		return err
	}
	defer db.Close()

	load := db.Findings
	if flagIntroduced {
		load = db.Introduced
	}
	findings, err := load(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if strings.ToLower(flagFormat) == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(findings)
	}
	for _, f := range findings {
		fmt.Fprintf(w, "%-8s %-8s %s:%d:%d  %s\n", f.Severity, f.RuleID, f.FilePath, f.Line, f.Column, f.Message)
	}
	fmt.Fprintf(w, "\n%d findings\n", len(findings))
	return nil
}
