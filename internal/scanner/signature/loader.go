package signature

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	doublestar "github.com/bmatcuk/doublestar/v4"
)

// ErrUnsupported is returned when the binary was built without YARA support.
var ErrUnsupported = errors.New("signature engine unavailable: rebuild with -tags yara")

// RuleFile is one signature rule source.
type RuleFile struct {
	Path      string
	Namespace string
	Externals AttributeSet
}

// RuleSet is the compiled form of every rule file in a directory. It is
// read-only after Load and safe for concurrent use by scan workers.
type RuleSet struct {
	Files  []RuleFile
	Needed AttributeSet

	sources map[string]string
	m       matcher
}

// matcher evaluates compiled rules against one file with the given external
// variable bindings.
type matcher interface {
	Match(path string, vars map[string]any) ([]match, error)
	Destroy()
}

// DiscoverRules lists the rule files under dir together with the externals
// each one references. Nothing is compiled.
func DiscoverRules(dir string) ([]RuleFile, error) {
	st, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("signature rules directory: %w", err)
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("signature rules directory %s is not a directory", dir)
	}
	rels, err := doublestar.Glob(os.DirFS(dir), "**/*.{yar,yara}")
	if err != nil {
		return nil, fmt.Errorf("list signature rules: %w", err)
	}
	sort.Strings(rels)
	files := make([]RuleFile, 0, len(rels))
	for _, rel := range rels {
		p := filepath.Join(dir, filepath.FromSlash(rel))
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read rule file %s: %w", p, err)
		}
		files = append(files, RuleFile{
			Path:      p,
			Namespace: strings.TrimSuffix(rel, path.Ext(rel)),
			Externals: DetectExternals(string(b)),
		})
	}
	return files, nil
}

// Load discovers and compiles every rule file under dir into one rule set.
// Each needed external is declared with an empty placeholder so rules compile;
// real values are bound per scanned file. A compile error in any file fails
// the whole load.
func Load(dir string) (*RuleSet, error) {
	files, err := DiscoverRules(dir)
	if err != nil {
		return nil, err
	}
	rs := &RuleSet{Files: files, sources: make(map[string]string, len(files))}
	for _, f := range files {
		rs.Needed |= f.Externals
		rs.sources[f.Namespace] = f.Path
	}
	if len(files) == 0 {
		return rs, nil
	}
	m, err := compileRules(files, rs.Needed)
	if err != nil {
		return nil, fmt.Errorf("compile signature rules: %w", err)
	}
	rs.m = m
	return rs, nil
}

// Empty reports whether the set holds no rules.
func (rs *RuleSet) Empty() bool { return rs == nil || rs.m == nil }

// SourceFile returns the rule file a namespace was compiled from.
func (rs *RuleSet) SourceFile(namespace string) string { return rs.sources[namespace] }

// Close releases the compiled rules.
func (rs *RuleSet) Close() {
	if rs != nil && rs.m != nil {
		rs.m.Destroy()
		rs.m = nil
	}
}

func (rs *RuleSet) match(path string, vars map[string]any) ([]match, error) {
	if rs.Empty() {
		return nil, nil
	}
	return rs.m.Match(path, vars)
}
