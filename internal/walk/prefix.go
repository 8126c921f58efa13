package walk

import (
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	doublestar "github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"
)

// Match pairs a resolved file with the rule prefix that selected it.
type Match struct {
	Path   string
	Prefix string
}

// IsGlob reports whether a prefix uses glob syntax.
func IsGlob(prefix string) bool {
	return strings.ContainsAny(prefix, "*?[")
}

// ResolvePrefixes resolves each prefix against root. Glob prefixes are
// expanded as globs relative to root. Plain prefixes match any entry whose
// root-relative path starts with the prefix, which covers rotated variants
// (auth.log.1, auth.log.2.gz) as well as files under a matching directory.
// A prefix that cannot be resolved (an unreadable directory, a parent that
// is a regular file, a malformed glob) is logged at warn and skipped so the
// remaining prefixes still resolve. Results are sorted by prefix and then path.
func ResolvePrefixes(root string, prefixes []string, log *zap.Logger) ([]Match, error) {
	if log == nil {
		log = zap.NewNop()
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	uniq := map[string]bool{}
	var ordered []string
	for _, p := range prefixes {
		if p == "" || uniq[p] {
			continue
		}
		uniq[p] = true
		ordered = append(ordered, p)
	}
	sort.Strings(ordered)

	var out []Match
	for _, prefix := range ordered {
		var paths []string
		if IsGlob(prefix) {
			paths, err = resolveGlob(abs, prefix)
		} else {
			paths, err = resolveRotated(abs, prefix)
		}
		if err != nil {
			log.Warn("skipping unresolvable prefix", zap.String("prefix", prefix), zap.Error(err))
			continue
		}
		sort.Strings(paths)
		for _, p := range paths {
			out = append(out, Match{Path: p, Prefix: prefix})
		}
	}
	return out, nil
}

func trimPrefix(prefix string) string {
	return strings.TrimLeft(filepath.ToSlash(prefix), "/")
}

func resolveGlob(root, prefix string) ([]string, error) {
	rels, err := doublestar.Glob(os.DirFS(root), trimPrefix(prefix))
	if err != nil {
		return nil, err
	}
	var out []string
	for _, rel := range rels {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if st, err := os.Lstat(p); err == nil && st.Mode().IsRegular() {
			out = append(out, p)
		}
	}
	return out, nil
}

func resolveRotated(root, prefix string) ([]string, error) {
	want := trimPrefix(prefix)
	if want == "" {
		return nil, nil
	}
	dirRel, base := path.Split(strings.TrimSuffix(want, "/"))
	entries, err := os.ReadDir(filepath.Join(root, filepath.FromSlash(dirRel)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	seen := map[string]bool{}
	var out []string
	add := func(p string) {
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return
		}
		if !strings.HasPrefix(filepath.ToSlash(rel), want) || seen[p] {
			return
		}
		seen[p] = true
		out = append(out, p)
	}
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), base) {
			continue
		}
		p := filepath.Join(root, filepath.FromSlash(dirRel), e.Name())
		switch {
		case e.Type().IsRegular():
			add(p)
		case e.IsDir():
			_ = filepath.WalkDir(p, func(sub string, d fs.DirEntry, err error) error {
				if err != nil {
					return nil
				}
				if d.Type().IsRegular() {
					add(sub)
				}
				return nil
			})
		}
	}
	return out, nil
}
