package collectifor

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/collectifor/collectifor/internal/report"
)

var (
	flagConfig   string
	flagLogLevel string
	flagLogJSON  bool
	flagJSON     bool
	flagSARIF    bool
	flagNoColor  bool
	flagWorkers  int

	version = "0.1.0"
)

// rootCmd is the base Cobra command for the collectifor CLI.
var rootCmd = &cobra.Command{
	Use:           "collectifor",
	Short:         "Run detection engines over forensic collections",
	Long:          "collectifor runs YARA signatures, indicator lists, log patterns and file analyzers over a collected host image and reports one merged set of findings.",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// exitError carries a process exit code through cobra. It is used when the
// command itself succeeded but the result should fail the process.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

// Execute runs the collectifor CLI. It should be called by the main package.
func Execute() {
	os.Exit(run(rootCmd))
}

func run(cmd *cobra.Command) int {
	err := cmd.Execute()
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	fmt.Fprintln(cmd.ErrOrStderr(), "error:", err)
	return 2
}

func init() {
	report.Version = version
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: .collectifor.yml in the root, then the global config)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug|info|warn|error")
	rootCmd.PersistentFlags().BoolVar(&flagLogJSON, "log-json", false, "emit logs as JSON")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "emit JSON")
	rootCmd.PersistentFlags().BoolVar(&flagSARIF, "sarif", false, "emit SARIF 2.1.0")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "disable colorized output")
	rootCmd.PersistentFlags().IntVar(&flagWorkers, "workers", 0, "worker count per engine (0 = GOMAXPROCS)")
}
