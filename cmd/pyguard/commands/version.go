package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/altantutar/pyguard/internal/update"
)

// Version and Commit are set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
)

var flagCheckUpdate bool

// newChecker is swapped in tests.
var newChecker = update.NewChecker

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run:   runVersion,
}

func init() {
	versionCmd.Flags().BoolVar(&flagCheckUpdate, "check", false, "Check GitHub for a newer release")
	rootCmd.AddCommand(versionCmd)
}

func runVersion(cmd *cobra.Command, args []string) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "pyguard %s (commit: %s)\n", Version, Commit)
	if !flagCheckUpdate {
		return
	}

	// A failed check is never fatal.
	r, err := newChecker().Latest(cmd.Context(), Version)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "update check skipped: %v\n", err)
		return
	}
	if r.NeedsUpdate() {
		fmt.Fprintf(w, "A newer release is available: %s\n  %s\n", r.Latest, r.Install)
		return
	}
	fmt.Fprintln(w, "pyguard is up to date")
}
