// Package entropy flags files whose byte-level Shannon entropy suggests
// encrypted or packed content.
package entropy

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"

	"go.uber.org/zap"

	"github.com/collectifor/collectifor/internal/logging"
	"github.com/collectifor/collectifor/internal/pool"
	"github.com/collectifor/collectifor/internal/scanner"
	"github.com/collectifor/collectifor/internal/types"
	"github.com/collectifor/collectifor/internal/walk"
)

const (
	// DefaultThreshold is the entropy, in bits per byte, at which a file is
	// flagged.
	DefaultThreshold = 6.5
	// DefaultMaxSize skips files larger than 1GB.
	DefaultMaxSize int64 = 1 << 30
	// RuleName is the rule recorded on every finding.
	RuleName = "file_with_high_entropy"
)

// Options configures the entropy analyzer. Zero values select the defaults.
type Options struct {
	Threshold float64
	MaxSize   int64
	Logger    *zap.Logger
}

// Scanner implements scanner.Scanner.
type Scanner struct {
	threshold float64
	maxSize   int64
	log       *zap.Logger
}

var _ scanner.Scanner = (*Scanner)(nil)

// New creates an entropy scanner.
func New(opts Options) *Scanner {
	s := &Scanner{
		threshold: opts.Threshold,
		maxSize:   opts.MaxSize,
		log:       logging.OrNop(opts.Logger).With(zap.String("engine", scanner.EngineEntropy)),
	}
	if s.threshold <= 0 {
		s.threshold = DefaultThreshold
	}
	if s.maxSize <= 0 {
		s.maxSize = DefaultMaxSize
	}
	return s
}

// Name implements scanner.Scanner.
func (s *Scanner) Name() string { return scanner.EngineEntropy }

// Scan implements scanner.Scanner.
func (s *Scanner) Scan(ctx context.Context, target scanner.Target) ([]types.Finding, error) {
	filter := walk.Filter{Include: target.Include, Exclude: target.Exclude}
	src := func(emit func(pool.Unit[string]) error) error {
		return walk.Walk(ctx, target.Root, filter, s.log, func(p string) error {
			return emit(pool.Unit[string]{ID: p, Value: p})
		})
	}
	findings, st, err := pool.Run(ctx, pool.Options{Workers: target.Workers, Engine: s.Name(), Logger: s.log}, src,
		func(_ context.Context, path string) ([]types.Finding, error) {
			return s.scanFile(path)
		})
	s.log.Info("entropy scan finished",
		zap.Int("files", st.Units),
		zap.Int("failed", st.Failed),
		zap.Int("findings", len(findings)))
	if err != nil {
		return findings, fmt.Errorf("enumerate %s: %w", target.Root, err)
	}
	return findings, nil
}

func (s *Scanner) scanFile(path string) ([]types.Finding, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if st.Size() > s.maxSize {
		s.log.Debug("skipping large file", zap.String("path", path), zap.Int64("size", st.Size()))
		return nil, nil
	}
	f, err := os.Open(path) // #nosec G304
	if err != nil {
		return nil, err
	}
	defer f.Close()
	h, err := Shannon(f)
	if err != nil {
		return nil, fmt.Errorf("entropy %s: %w", path, err)
	}
	if h < s.threshold {
		return nil, nil
	}
	fd := types.NewFinding(types.TypeAnomaly)
	fd.Artifact = path
	fd.Rule = RuleName
	fd.Indicator = fmt.Sprintf("%.4f", h)
	fd.Message = "High entropy file: " + path
	fd.Meta["entropy"] = h
	fd.Meta["size"] = st.Size()
	return []types.Finding{fd}, nil
}

// Shannon streams r and returns its entropy in bits per byte. Empty input
// has entropy 0.
func Shannon(r io.Reader) (float64, error) {
	var counts [256]uint64
	var total uint64
	buf := make([]byte, 1<<20)
	for {
		n, err := r.Read(buf)
		for _, b := range buf[:n] {
			counts[b]++
		}
		total += uint64(n)
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, err
		}
	}
	if total == 0 {
		return 0, nil
	}
	var h float64
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / float64(total)
		h -= p * math.Log2(p)
	}
	return h, nil
}
