package scanner

import (
	"path/filepath"
	"strings"
)

// HostPath maps a file inside a collection root back to the path it had on
// the acquired host.
// Example: HostPath("/cases/c1", "/cases/c1/var/log/auth.log") -> "/var/log/auth.log"
func HostPath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.ToSlash(path)
	}
	return "/" + filepath.ToSlash(rel)
}

// WithinRoot reports whether path is root itself or one of its descendants.
func WithinRoot(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

// NameSet parses a comma-separated engine list into a set.
func NameSet(s string) map[string]bool {
	out := map[string]bool{}
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(strings.ToLower(p))
		if p != "" {
			out[p] = true
		}
	}
	return out
}
