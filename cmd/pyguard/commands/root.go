package commands

import (
	"errors"

	"github.com/spf13/cobra"
)

var (
	flagSeverity     string
	flagFormat       string
	flagOutput       string
	flagWorkers      int
	flagRules        string
	flagNoColor      bool
	flagDisableRules []string
	flagDebug        bool
	flagQuiet        bool
)

// ErrFailOn is returned when findings reach the --fail-on threshold.
var ErrFailOn = errors.New("findings at or above the fail-on threshold")

// ErrStrict is returned in --strict mode when some files produced
// diagnostics.
var ErrStrict = errors.New("some files could not be analyzed")

var rootCmd = &cobra.Command{
	Use:   "pyguard",
	Short: "Static security scanner for Python code",
	Long: `pyguard parses Python source and reports dangerous call patterns: dynamic
code execution, unsafe deserialization, shell injection, raw SQL
construction, hardcoded secrets, weak credential hashing and disabled TLS
verification.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagSeverity, "severity", "low", "Minimum severity to report (critical, high, medium, low, info)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "terminal", "Output format (terminal, json, sarif, markdown, cyclonedx)")
	rootCmd.PersistentFlags().StringVarP(&flagOutput, "output", "o", "", "Output file path (default: stdout)")
	rootCmd.PersistentFlags().IntVar(&flagWorkers, "workers", 0, "Number of worker goroutines (default: NumCPU)")
	rootCmd.PersistentFlags().StringVar(&flagRules, "rules", "", "Additional rules directory")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().StringSliceVar(&flagDisableRules, "disable-rule", nil, "Rule IDs to disable (comma-separated, repeatable)")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&flagQuiet, "quiet", false, "Only print errors to stderr")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// ExitCode maps a command error to the process exit status: 1 for a
// reached threshold, 2 for everything else.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrFailOn), errors.Is(err, ErrStrict):
		return 1
	default:
		return 2
	}
}
