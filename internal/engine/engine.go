package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/collectifor/collectifor/internal/logging"
	"github.com/collectifor/collectifor/internal/scanner"
	"github.com/collectifor/collectifor/internal/scanner/factory"
	"github.com/collectifor/collectifor/internal/types"
)

// ErrRootNotDir is returned when the collection root is missing or is not a
// directory.
var ErrRootNotDir = errors.New("collection root is not a directory")

// Sink persists a finding batch.
type Sink interface {
	StoreFindings(ctx context.Context, findings []types.Finding) error
}

// Config controls a run: the target, the engines and where findings go.
type Config struct {
	Root    string
	Include []string
	Exclude []string
	Workers int

	Engines factory.Config

	// Scanners, when set, replaces the engines built from Engines.
	Scanners []scanner.Scanner

	Sink   Sink
	Logger *zap.Logger
}

// EngineStats summarizes one engine's contribution.
type EngineStats struct {
	Findings int
	Duration time.Duration
}

// Result is the outcome of a run.
type Result struct {
	Findings     []types.Finding
	PerEngine    map[string]EngineStats
	EngineErrors map[string]error
	Duration     time.Duration
}

// Failed reports whether any engine aborted.
func (r Result) Failed() bool { return len(r.EngineErrors) > 0 }

// Scan runs all enabled engines and returns their findings.
func Scan(ctx context.Context, cfg Config) ([]types.Finding, error) {
	res, err := ScanWithStats(ctx, cfg)
	return res.Findings, err
}

// ScanWithStats runs a scan and returns findings along with per-engine
// timing, counts and errors. An engine error aborts only that engine. The
// returned error is non-nil only when the root is invalid or the sink fails.
func ScanWithStats(ctx context.Context, cfg Config) (Result, error) {
	start := time.Now()
	result := Result{
		Findings:     []types.Finding{},
		PerEngine:    map[string]EngineStats{},
		EngineErrors: map[string]error{},
	}
	log := logging.OrNop(cfg.Logger)

	root, err := validateRoot(cfg.Root)
	if err != nil {
		return result, err
	}

	scanners := cfg.Scanners
	if scanners == nil {
		ec := cfg.Engines
		if ec.Logger == nil {
			ec.Logger = log
		}
		scanners = factory.New(ec)
	}
	target := scanner.Target{Root: root, Include: cfg.Include, Exclude: cfg.Exclude, Workers: cfg.Workers}

	for _, s := range scanners {
		name := s.Name()
		if ctx.Err() != nil {
			result.EngineErrors[name] = ctx.Err()
			continue
		}
		t0 := time.Now()
		fs, err := s.Scan(ctx, target)
		st := EngineStats{Duration: time.Since(t0)}
		if err != nil {
			log.Error("engine failed", zap.String("engine", name), zap.Error(err))
			result.EngineErrors[name] = err
			result.PerEngine[name] = st
			continue
		}
		st.Findings = len(fs)
		result.PerEngine[name] = st
		result.Findings = append(result.Findings, types.NormalizeAll(fs)...)
		log.Info("engine finished",
			zap.String("engine", name),
			zap.Int("findings", st.Findings),
			zap.Duration("duration", st.Duration))
	}

	if cfg.Sink != nil {
		if err := cfg.Sink.StoreFindings(ctx, result.Findings); err != nil {
			result.Duration = time.Since(start)
			return result, fmt.Errorf("store findings: %w", err)
		}
	}
	result.Duration = time.Since(start)
	return result, nil
}

func validateRoot(root string) (string, error) {
	if root == "" {
		return "", fmt.Errorf("%w: empty path", ErrRootNotDir)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRootNotDir, err)
	}
	st, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRootNotDir, err)
	}
	if !st.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrRootNotDir, abs)
	}
	return abs, nil
}
