package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/collectifor/collectifor/internal/types"
)

type PrintOptions struct {
	NoColor bool
	// Duration and PerEngine feed the summary footer when set.
	Duration  time.Duration
	PerEngine map[string]int
	// Errors lists engines that failed, by name.
	Errors map[string]error
}

// Sort orders findings by type, artifact, rule and message. The input slice
// is sorted in place.
func Sort(findings []types.Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		if a.Artifact != b.Artifact {
			return a.Artifact < b.Artifact
		}
		if a.Rule != b.Rule {
			return a.Rule < b.Rule
		}
		return a.Message < b.Message
	})
}

// PrintTable renders findings as a bordered table followed by a summary.
func PrintTable(w io.Writer, findings []types.Finding, opts PrintOptions) error {
	Sort(findings)
	if len(findings) == 0 {
		fmt.Fprintln(w, "No findings ✅")
	} else {
		table := tablewriter.NewWriter(w)
		table.Header("TYPE", "RULE", "ARTIFACT", "MESSAGE")
		for _, f := range findings {
			kind := f.Type
			if !opts.NoColor {
				kind = colorType(f.Type)
			}
			if err := table.Append([]string{kind, ruleID(f), f.Artifact, oneLine(f.Message)}); err != nil {
				return err
			}
		}
		if err := table.Render(); err != nil {
			return err
		}
	}
	printSummary(w, findings, opts)
	return nil
}

// PrintText writes one finding per line without borders.
func PrintText(w io.Writer, findings []types.Finding, opts PrintOptions) {
	Sort(findings)
	if len(findings) == 0 {
		fmt.Fprintln(w, "No findings ✅")
	} else {
		maxType, maxRule := 8, 4
		for _, f := range findings {
			maxType = max(maxType, len(f.Type))
			maxRule = max(maxRule, len(ruleID(f)))
		}
		fmt.Fprintf(w, "Findings: %d\n", len(findings))
		for _, f := range findings {
			kind := fmt.Sprintf("%-*s", maxType, f.Type)
			if !opts.NoColor {
				kind = colorPad(f.Type, maxType)
			}
			fmt.Fprintf(w, "%s %-*s %s  %s\n", kind, maxRule, ruleID(f), f.Artifact, oneLine(f.Message))
		}
	}
	printSummary(w, findings, opts)
}

func printSummary(w io.Writer, findings []types.Finding, opts PrintOptions) {
	if opts.Duration <= 0 && len(opts.PerEngine) == 0 && len(opts.Errors) == 0 {
		return
	}
	counts := map[string]int{}
	for _, f := range findings {
		counts[f.Type]++
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Findings: %d%s\n", len(findings), breakdown(counts))
	if len(opts.PerEngine) > 0 {
		fmt.Fprintf(w, "Engines run: %s\n", strings.Join(sortedKeys(opts.PerEngine), ", "))
	}
	for _, name := range sortedKeys(opts.Errors) {
		fmt.Fprintf(w, "Engine %s failed: %v\n", name, opts.Errors[name])
	}
	if opts.Duration > 0 {
		fmt.Fprintf(w, "Scan duration: %.2fs\n", opts.Duration.Seconds())
	}
}

func breakdown(counts map[string]int) string {
	if len(counts) == 0 {
		return ""
	}
	parts := make([]string, 0, len(counts))
	for _, k := range sortedKeys(counts) {
		parts = append(parts, fmt.Sprintf("%s: %d", k, counts[k]))
	}
	return " (" + strings.Join(parts, ", ") + ")"
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func typeColor(kind string) string {
	switch kind {
	case types.TypeSignature:
		return "31" // red
	case types.TypeLiteral, types.TypePermissions:
		return "33" // yellow
	case types.TypeAnomaly, types.TypePersistence:
		return "35"
	default:
		return "36" // cyan
	}
}

func colorType(kind string) string {
	return "\x1b[" + typeColor(kind) + "m" + kind + "\x1b[0m"
}

func colorPad(kind string, width int) string {
	pad := ""
	if n := width - len(kind); n > 0 {
		pad = strings.Repeat(" ", n)
	}
	return colorType(kind) + pad
}
