// Package structured implements the structured-pattern engine: line-oriented
// regex or grok rules applied to files selected by path prefix, with
// templated messages and captured metadata.
package structured

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/collectifor/collectifor/internal/logging"
	"github.com/collectifor/collectifor/internal/pool"
	"github.com/collectifor/collectifor/internal/scanner"
	"github.com/collectifor/collectifor/internal/types"
	"github.com/collectifor/collectifor/internal/walk"
)

// Options configures the structured engine.
type Options struct {
	RulesDir string
	// BuiltinAuth prepends the embedded auth-log rules.
	BuiltinAuth bool
	Logger      *zap.Logger
}

// Scanner implements scanner.Scanner for structured rules.
type Scanner struct {
	rulesDir    string
	builtinAuth bool
	log         *zap.Logger
}

var _ scanner.Scanner = (*Scanner)(nil)

// New creates a structured scanner.
func New(opts Options) *Scanner {
	return &Scanner{
		rulesDir:    opts.RulesDir,
		builtinAuth: opts.BuiltinAuth,
		log:         logging.OrNop(opts.Logger).With(zap.String("engine", scanner.EngineStructured)),
	}
}

// Name implements scanner.Scanner.
func (s *Scanner) Name() string { return scanner.EngineStructured }

// Rules loads the effective rule list: built-ins first, then the rules
// directory.
func (s *Scanner) Rules() ([]*Rule, error) {
	var rules []*Rule
	if s.builtinAuth {
		rs, err := BuiltinAuthRules()
		if err != nil {
			return nil, err
		}
		rules = append(rules, rs...)
	}
	if s.rulesDir != "" {
		rs, err := LoadRules(s.rulesDir)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rs...)
	}
	if s.rulesDir == "" && !s.builtinAuth {
		return nil, errors.New("structured engine has no rules directory and built-in rules are disabled")
	}
	return rules, nil
}

// Index maps each filename prefix to the rules that declare it, in load
// order.
type Index map[string][]*Rule

// BuildIndex groups rules by prefix.
func BuildIndex(rules []*Rule) Index {
	idx := Index{}
	for _, r := range rules {
		seen := map[string]bool{}
		for _, p := range r.Filenames {
			if p == "" || seen[p] {
				continue
			}
			seen[p] = true
			idx[p] = append(idx[p], r)
		}
	}
	return idx
}

// Prefixes returns the distinct prefixes of the index.
func (idx Index) Prefixes() []string {
	out := make([]string, 0, len(idx))
	for p := range idx {
		out = append(out, p)
	}
	return out
}

// fileUnit is one file together with every rule whose prefixes selected it.
type fileUnit struct {
	Path  string
	Rules []*Rule
}

// groupByFile merges matches that resolve to the same file under different
// prefixes. Each file keeps the union of its rules in load order, so a line
// is never reported twice for one rule. Units are sorted by path.
func groupByFile(matches []walk.Match, idx Index, rules []*Rule) []fileUnit {
	order := make(map[*Rule]int, len(rules))
	for i, r := range rules {
		order[r] = i
	}
	byPath := map[string]map[*Rule]bool{}
	var paths []string
	for _, m := range matches {
		set, ok := byPath[m.Path]
		if !ok {
			set = map[*Rule]bool{}
			byPath[m.Path] = set
			paths = append(paths, m.Path)
		}
		for _, r := range idx[m.Prefix] {
			set[r] = true
		}
	}
	sort.Strings(paths)
	out := make([]fileUnit, 0, len(paths))
	for _, p := range paths {
		rs := make([]*Rule, 0, len(byPath[p]))
		for r := range byPath[p] {
			rs = append(rs, r)
		}
		sort.Slice(rs, func(i, j int) bool { return order[rs[i]] < order[rs[j]] })
		out = append(out, fileUnit{Path: p, Rules: rs})
	}
	return out
}

// Scan implements scanner.Scanner. Each resolved file is one unit, however
// many prefixes selected it.
func (s *Scanner) Scan(ctx context.Context, target scanner.Target) ([]types.Finding, error) {
	rules, err := s.Rules()
	if err != nil {
		return nil, err
	}
	root, err := filepath.Abs(target.Root)
	if err != nil {
		return nil, err
	}
	idx := BuildIndex(rules)
	matches, err := walk.ResolvePrefixes(root, idx.Prefixes(), s.log)
	if err != nil {
		return nil, fmt.Errorf("resolve structured prefixes: %w", err)
	}
	units := groupByFile(matches, idx, rules)
	s.log.Info("structured rules loaded",
		zap.Int("rules", len(rules)),
		zap.Int("prefixes", len(idx)),
		zap.Int("files", len(units)))

	filter := walk.Filter{Include: target.Include, Exclude: target.Exclude}
	src := func(emit func(pool.Unit[fileUnit]) error) error {
		for _, u := range units {
			if !filter.Allowed(u.Path) {
				continue
			}
			if err := emit(pool.Unit[fileUnit]{ID: u.Path, Value: u}); err != nil {
				return err
			}
		}
		return nil
	}
	findings, stats, err := pool.Run(ctx, pool.Options{Workers: target.Workers, Engine: s.Name(), Logger: s.log}, src,
		func(_ context.Context, u fileUnit) ([]types.Finding, error) {
			return scanFile(root, u.Path, u.Rules)
		})
	s.log.Info("structured scan finished",
		zap.Int("units", stats.Units),
		zap.Int("failed", stats.Failed),
		zap.Int("findings", len(findings)))
	return findings, err
}

func openLog(path string) (io.ReadCloser, error) {
	f, err := os.Open(path) // #nosec G304
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}
	zr, err := gzip.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("gzip %s: %w", path, err)
	}
	return &gzipFile{Reader: zr, f: f}, nil
}

type gzipFile struct {
	*gzip.Reader
	f *os.File
}

func (g *gzipFile) Close() error {
	err := g.Reader.Close()
	if cerr := g.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// scanFile applies rules line by line. Only the first matching rule of a line
// produces a finding.
func scanFile(root, path string, rules []*Rule) ([]types.Finding, error) {
	if len(rules) == 0 {
		return nil, nil
	}
	rc, err := openLog(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return matchLines(rc, path, scanner.HostPath(root, path), rules)
}

// MatchReader applies rules to every line of r regardless of their file
// names, reporting findings against artifact.
func MatchReader(r io.Reader, artifact string, rules []*Rule) ([]types.Finding, error) {
	return matchLines(r, artifact, artifact, rules)
}

func matchLines(rd io.Reader, path, hostPath string, rules []*Rule) ([]types.Finding, error) {
	var out []types.Finding
	r := bufio.NewReaderSize(rd, 64*1024)
	for {
		raw, rerr := r.ReadString('\n')
		if rerr != nil && rerr != io.EOF {
			return out, fmt.Errorf("read %s: %w", path, rerr)
		}
		line := strings.TrimSpace(strings.ToValidUTF8(raw, ""))
		if line != "" {
			for _, rule := range rules {
				caps, ok := rule.Match(line)
				if !ok {
					continue
				}
				out = append(out, newFinding(rule, path, hostPath, line, caps))
				break
			}
		}
		if rerr == io.EOF {
			return out, nil
		}
	}
}

func newFinding(r *Rule, path, hostPath, line string, caps map[string]string) types.Finding {
	f := types.NewFinding(types.TypeStructured)
	f.Artifact = path
	f.Indicator = r.Indicator
	f.Rule = r.Name
	f.SourceFile = r.SourceFile
	f.Message = Render(r.MessageTemplate, caps)
	f.Meta["line"] = line
	f.Meta["host_path"] = hostPath
	for _, name := range r.MetaFields {
		f.Meta[name] = caps[name]
	}
	return f
}
