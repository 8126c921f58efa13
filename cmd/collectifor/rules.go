package collectifor

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/collectifor/collectifor/internal/report"
	"github.com/collectifor/collectifor/internal/rulegen"
	"github.com/collectifor/collectifor/internal/scanner/literal"
	"github.com/collectifor/collectifor/internal/scanner/signature"
	"github.com/collectifor/collectifor/internal/scanner/structured"
	"github.com/collectifor/collectifor/pkg/core"
)

var (
	rulesFlags   targetFlags
	threatfoxIn  string
	threatfoxOut string
)

func init() {
	rulesCmd := &cobra.Command{Use: "rules", Short: "Rule helpers"}
	rootCmd.AddCommand(rulesCmd)

	validate := &cobra.Command{
		Use:   "validate",
		Short: "Load every engine's rules and report what was found",
		RunE:  runRulesValidate,
	}
	addTargetFlags(validate, &rulesFlags)
	rulesCmd.AddCommand(validate)

	test := &cobra.Command{
		Use:   "test <rule-file> [sample]",
		Short: "Run structured rules against a sample file or stdin",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runRulesTest,
	}
	rulesCmd.AddCommand(test)

	tf := &cobra.Command{
		Use:   "threatfox",
		Short: "Generate YARA rules from a ThreatFox CSV export",
		RunE:  runThreatfox,
	}
	tf.Flags().StringVar(&threatfoxIn, "in", "", "ThreatFox CSV export (- for stdin)")
	tf.Flags().StringVar(&threatfoxOut, "out", "", "output .yar file, or a directory for one file per family")
	_ = tf.MarkFlagRequired("in")
	_ = tf.MarkFlagRequired("out")
	rulesCmd.AddCommand(tf)
}

func runRulesValidate(cmd *cobra.Command, _ []string) error {
	s, err := resolve(rulesFlags)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	var failures []string
	fail := func(engine string, err error) {
		fmt.Fprintf(out, "%s: error: %v\n", engine, err)
		failures = append(failures, engine)
	}

	if dir := s.Engines.Signature.RulesDir; dir == "" {
		fmt.Fprintln(out, "signature: no rules directory")
	} else if rs, err := signature.Load(dir); err != nil {
		if errors.Is(err, signature.ErrUnsupported) {
			if files, derr := signature.DiscoverRules(dir); derr == nil {
				fmt.Fprintf(out, "signature: %d rule file(s) found but not compiled\n", len(files))
			}
		}
		fail("signature", err)
	} else {
		fmt.Fprintf(out, "signature: %d rule file(s), externals: %s\n", len(rs.Files), listOrNone(rs.Needed.Names()))
		rs.Close()
	}

	if dir := s.Engines.Literal.RulesDir; dir == "" {
		fmt.Fprintln(out, "literal: no rules directory")
	} else if lists, err := literal.LoadLists(dir); err != nil {
		fail("literal", err)
	} else {
		fmt.Fprintf(out, "literal: %d list(s)\n", len(lists))
		if bin, err := literal.NewBinaryManager(s.Engines.Literal.Binary).Find(); err != nil {
			fail("literal", err)
		} else {
			fmt.Fprintf(out, "literal: matcher %s\n", bin)
		}
	}

	st := structured.New(structured.Options{RulesDir: s.Engines.Structured.RulesDir, BuiltinAuth: s.Engines.Structured.BuiltinAuth})
	if rules, err := st.Rules(); err != nil {
		fail("structured", err)
	} else {
		bySource := map[string]int{}
		for _, r := range rules {
			bySource[r.SourceFile]++
		}
		fmt.Fprintf(out, "structured: %d rule(s) from %d source(s)\n", len(rules), len(bySource))
		for _, src := range sortedSources(bySource) {
			fmt.Fprintf(out, "  %s: %d\n", src, bySource[src])
		}
	}

	if len(failures) > 0 {
		return &exitError{code: 1, msg: "rule validation failed: " + strings.Join(failures, ", ")}
	}
	return nil
}

func runRulesTest(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	rules, err := structured.ParseRules(data, args[0])
	if err != nil {
		return err
	}

	var in io.Reader = cmd.InOrStdin()
	name := "<stdin>"
	if len(args) == 2 && args[1] != "-" {
		f, err := os.Open(args[1])
		if err != nil {
			return err
		}
		defer f.Close()
		in, name = f, args[1]
	}
	findings, err := structured.MatchReader(in, name, rules)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if flagJSON {
		return core.MarshalFindings(out, findings)
	}
	report.PrintText(out, findings, report.PrintOptions{NoColor: flagNoColor || !isTerminal(out)})
	return nil
}

func runThreatfox(cmd *cobra.Command, _ []string) error {
	var in io.Reader = cmd.InOrStdin()
	if threatfoxIn != "-" {
		f, err := os.Open(threatfoxIn)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	paths, err := rulegen.Generate(in, rulegen.Options{Out: threatfoxOut})
	if err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Fprintf(cmd.OutOrStdout(), "[+] Wrote %s\n", p)
	}
	if len(paths) == 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), "no supported IOCs found")
	}
	return nil
}

func listOrNone(names []string) string {
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ", ")
}

func sortedSources(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
