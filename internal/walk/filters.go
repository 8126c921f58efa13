package walk

import "strings"

// Filter holds include/exclude substrings matched against absolute paths.
type Filter struct {
	Include []string
	Exclude []string
}

// Allowed reports whether absPath passes the filter. Any exclude substring
// rejects the path; when includes are set at least one of them must occur.
func (f Filter) Allowed(absPath string) bool {
	if f.excluded(absPath) {
		return false
	}
	if len(f.Include) == 0 {
		return true
	}
	for _, s := range f.Include {
		if s != "" && strings.Contains(absPath, s) {
			return true
		}
	}
	return false
}

func (f Filter) excluded(absPath string) bool {
	for _, s := range f.Exclude {
		if s != "" && strings.Contains(absPath, s) {
			return true
		}
	}
	return false
}

// SplitList parses a comma-separated list, dropping empty entries.
func SplitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
