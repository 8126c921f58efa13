package collectifor

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/collectifor/collectifor/internal/engine"
	"github.com/collectifor/collectifor/internal/logging"
	"github.com/collectifor/collectifor/internal/report"
	"github.com/collectifor/collectifor/internal/store"
	"github.com/collectifor/collectifor/internal/types"
	"github.com/collectifor/collectifor/pkg/core"
)

var (
	scanFlags          targetFlags
	flagBaseline       string
	flagFailOnFindings bool
	flagText           bool
)

// addTargetFlags registers the collection and engine flags on cmd.
func addTargetFlags(cmd *cobra.Command, tf *targetFlags) {
	cmd.Flags().StringVarP(&tf.root, "root", "r", ".", "collection root to scan")
	cmd.Flags().StringVar(&tf.signatureRules, "signature-rules", "", "directory of YARA rule files")
	cmd.Flags().StringVar(&tf.literalRules, "literal-rules", "", "directory of indicator lists (*.txt)")
	cmd.Flags().StringVar(&tf.structuredRules, "structured-rules", "", "directory of structured log rules (*.yml)")
	cmd.Flags().StringSliceVar(&tf.include, "include", nil, "only report paths containing this substring (repeatable)")
	cmd.Flags().StringSliceVar(&tf.exclude, "exclude", nil, "skip paths containing this substring (repeatable)")
	cmd.Flags().StringVar(&tf.enable, "enable", "", "only run these engines (comma-separated)")
	cmd.Flags().StringVar(&tf.disable, "disable", "", "do not run these engines (comma-separated)")
}

func addStoreFlags(cmd *cobra.Command, tf *targetFlags) {
	cmd.Flags().StringVar(&tf.storeBackend, "store", "", "persist findings: jsonl|forensicstore|postgres")
	cmd.Flags().StringVar(&tf.storePath, "store-path", "", "output file for jsonl and forensicstore")
	cmd.Flags().StringVar(&tf.storeDSN, "store-dsn", "", "PostgreSQL connection string")
}

func init() {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan a collection with every enabled engine",
		RunE:  runScan,
	}
	rootCmd.AddCommand(cmd)

	addTargetFlags(cmd, &scanFlags)
	addStoreFlags(cmd, &scanFlags)
	cmd.Flags().StringVar(&flagBaseline, "baseline", "", "suppress findings recorded in this baseline file")
	cmd.Flags().BoolVar(&flagFailOnFindings, "fail-on-findings", false, "exit 1 when any finding is reported")
	cmd.Flags().BoolVar(&flagText, "text", false, "output in plain text columnar format")
}

func runScan(cmd *cobra.Command, _ []string) error {
	s, err := resolve(scanFlags)
	if err != nil {
		return err
	}
	log, err := logging.New(s.LogLevel, flagLogJSON)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx := cmd.Context()
	s.Store.Logger = log
	sink, err := store.Open(ctx, s.Store)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	if sink != nil {
		defer func() {
			if cerr := sink.Close(); cerr != nil {
				log.Warn("close store", zap.Error(cerr))
			}
		}()
	}

	cfg := core.Config{
		Root:    s.Root,
		Include: s.Include,
		Exclude: s.Exclude,
		Workers: s.Workers,
		Engines: s.Engines,
		Logger:  log,
	}
	if sink != nil {
		cfg.Sink = sink
	}

	stderr := cmd.ErrOrStderr()
	machine := flagJSON || flagSARIF
	if !machine {
		_, _ = fmt.Fprintf(stderr, "Scanning %s with engines: %s\n", s.Root, strings.Join(s.active(), ", "))
	}

	res, err := core.ScanWithStats(ctx, cfg)
	if err != nil {
		return fmt.Errorf("scan error: %w", err)
	}

	findings := res.Findings
	if flagBaseline != "" {
		base, err := report.LoadBaseline(flagBaseline)
		if err != nil && !os.IsNotExist(err) {
			return err
		}
		findings = report.FilterNewFindings(findings, base)
	}

	out := cmd.OutOrStdout()
	if err := writeFindings(out, findings, res, s.NoColor || !isTerminal(out)); err != nil {
		return err
	}

	if res.Failed() {
		return &exitError{code: 1, msg: fmt.Sprintf("%d engine(s) failed", len(res.EngineErrors))}
	}
	if flagFailOnFindings && len(findings) > 0 {
		return &exitError{code: 1, msg: fmt.Sprintf("%d finding(s)", len(findings))}
	}
	return nil
}

func writeFindings(w io.Writer, findings []types.Finding, res engine.Result, noColor bool) error {
	per := make(map[string]int, len(res.PerEngine))
	for name, st := range res.PerEngine {
		per[name] = st.Findings
	}
	switch {
	case flagSARIF:
		if err := report.WriteSARIFWithStats(w, findings, per); err != nil {
			return fmt.Errorf("sarif error: %w", err)
		}
	case flagJSON:
		return core.MarshalFindings(w, findings)
	case flagText:
		report.PrintText(w, findings, report.PrintOptions{NoColor: noColor, Duration: res.Duration, PerEngine: per, Errors: res.EngineErrors})
	default:
		return report.PrintTable(w, findings, report.PrintOptions{NoColor: noColor, Duration: res.Duration, PerEngine: per, Errors: res.EngineErrors})
	}
	return nil
}
