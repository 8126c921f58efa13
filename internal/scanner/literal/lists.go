package literal

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	doublestar "github.com/bmatcuk/doublestar/v4"
)

// LoadLists returns every indicator list (*.txt) under dir, sorted. The lists
// are opaque to collectifor and handed to the matcher as pattern files. A
// directory without lists yields nil; a missing directory is an error.
func LoadLists(dir string) ([]string, error) {
	st, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("literal rules directory: %w", err)
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("literal rules directory %s is not a directory", dir)
	}
	rels, err := doublestar.Glob(os.DirFS(dir), "**/*.txt")
	if err != nil {
		return nil, fmt.Errorf("list indicator files: %w", err)
	}
	sort.Strings(rels)
	out := make([]string, 0, len(rels))
	for _, rel := range rels {
		out = append(out, filepath.Join(dir, filepath.FromSlash(rel)))
	}
	return out, nil
}
