package collectifor

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/collectifor/collectifor/internal/logging"
	"github.com/collectifor/collectifor/internal/report"
	"github.com/collectifor/collectifor/pkg/core"
)

// DefaultBaseline is the file written by baseline update.
const DefaultBaseline = "collectifor.baseline.json"

var (
	baselineFlags  targetFlags
	baselineOutput string
)

func init() {
	cmd := &cobra.Command{
		Use:   "baseline",
		Short: "Manage baselines",
	}

	update := &cobra.Command{
		Use:   "update",
		Short: "Update baseline from current scan",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := resolve(baselineFlags)
			if err != nil {
				return err
			}
			log, err := logging.New(s.LogLevel, flagLogJSON)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			res, err := core.ScanWithStats(cmd.Context(), core.Config{
				Root:    s.Root,
				Include: s.Include,
				Exclude: s.Exclude,
				Workers: s.Workers,
				Engines: s.Engines,
				Logger:  log,
			})
			if err != nil {
				return err
			}
			if res.Failed() {
				for name, e := range res.EngineErrors {
					fmt.Fprintf(cmd.ErrOrStderr(), "engine %s failed: %v\n", name, e)
				}
				return &exitError{code: 1, msg: "baseline not written: engine errors"}
			}
			if err := report.SaveBaseline(baselineOutput, res.Findings); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Baseline updated: %d finding(s) in %s\n", len(res.Findings), baselineOutput)
			return nil
		},
	}
	addTargetFlags(update, &baselineFlags)
	update.Flags().StringVarP(&baselineOutput, "output", "o", DefaultBaseline, "baseline file to write")

	rootCmd.AddCommand(cmd)
	cmd.AddCommand(update)
}
