package collectifor

import (
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// The pick helpers resolve a setting by precedence: the CLI value when set,
// then each layer in order (environment, local file, global file).

func pickString(cli string, layers ...*string) string {
	if cli != "" {
		return cli
	}
	for _, l := range layers {
		if l != nil && *l != "" {
			return *l
		}
	}
	return ""
}

func pickInt(cli int, layers ...*int) int {
	if cli != 0 {
		return cli
	}
	for _, l := range layers {
		if l != nil && *l != 0 {
			return *l
		}
	}
	return 0
}

func pickFloat(cli float64, layers ...*float64) float64 {
	if cli != 0 {
		return cli
	}
	for _, l := range layers {
		if l != nil && *l != 0 {
			return *l
		}
	}
	return 0
}

func pickBool(cli bool, layers ...*bool) bool {
	if cli {
		return true
	}
	return pickBoolDefault(false, layers...)
}

// pickBoolDefault returns the first layer that is set, or def.
func pickBoolDefault(def bool, layers ...*bool) bool {
	for _, l := range layers {
		if l != nil {
			return *l
		}
	}
	return def
}

func pickStrings(cli []string, layers ...[]string) []string {
	if len(cli) > 0 {
		return cli
	}
	for _, l := range layers {
		if len(l) > 0 {
			return l
		}
	}
	return nil
}

// isTerminal reports whether w is a terminal file.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func strPtr(s string) *string { return &s }
func optStrPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
func intPtr(v int) *int {
	if v == 0 {
		return nil
	}
	return &v
}
func boolPtr(v bool) *bool { return &v }
