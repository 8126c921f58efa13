// Package signature implements the YARA signature engine. Rules from a
// directory are compiled into one rule set; the external attributes the rules
// reference are detected at load time and only those are computed for each
// scanned file.
package signature

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/collectifor/collectifor/internal/logging"
	"github.com/collectifor/collectifor/internal/pool"
	"github.com/collectifor/collectifor/internal/scanner"
	"github.com/collectifor/collectifor/internal/types"
	"github.com/collectifor/collectifor/internal/walk"
)

// Options configures the signature engine.
type Options struct {
	RulesDir string
	Logger   *zap.Logger
	// Computer overrides attribute computation; nil uses NewComputer.
	Computer *Computer
}

// Scanner implements scanner.Scanner for YARA rules.
type Scanner struct {
	rulesDir string
	log      *zap.Logger
	computer *Computer
}

var _ scanner.Scanner = (*Scanner)(nil)

// New creates a signature scanner.
func New(opts Options) *Scanner {
	c := opts.Computer
	if c == nil {
		c = NewComputer()
	}
	return &Scanner{
		rulesDir: opts.RulesDir,
		log:      logging.OrNop(opts.Logger).With(zap.String("engine", scanner.EngineSignature)),
		computer: c,
	}
}

// Name implements scanner.Scanner.
func (s *Scanner) Name() string { return scanner.EngineSignature }

// Scan implements scanner.Scanner. Files are enumerated lazily and evaluated
// by a bounded pool against the shared rule set.
func (s *Scanner) Scan(ctx context.Context, target scanner.Target) ([]types.Finding, error) {
	rs, err := Load(s.rulesDir)
	if err != nil {
		return nil, err
	}
	defer rs.Close()
	if rs.Empty() {
		s.log.Info("no signature rules found", zap.String("dir", s.rulesDir))
		return nil, nil
	}
	s.log.Info("signature rules compiled",
		zap.Int("files", len(rs.Files)),
		zap.Strings("externals", rs.Needed.Names()))

	filter := walk.Filter{Include: target.Include, Exclude: target.Exclude}
	src := func(emit func(pool.Unit[string]) error) error {
		return walk.Walk(ctx, target.Root, filter, s.log, func(p string) error {
			return emit(pool.Unit[string]{ID: p, Value: p})
		})
	}
	findings, st, err := pool.Run(ctx, pool.Options{Workers: target.Workers, Engine: s.Name(), Logger: s.log}, src,
		func(_ context.Context, path string) ([]types.Finding, error) {
			vars, err := s.computer.Compute(path, rs.Needed)
			if err != nil {
				return nil, err
			}
			ms, err := rs.match(path, vars)
			if err != nil {
				return nil, err
			}
			return rs.toFindings(path, ms), nil
		})
	s.log.Info("signature scan finished",
		zap.Int("files", st.Units),
		zap.Int("failed", st.Failed),
		zap.Int("findings", len(findings)))
	if err != nil {
		return findings, fmt.Errorf("enumerate %s: %w", target.Root, err)
	}
	return findings, nil
}
