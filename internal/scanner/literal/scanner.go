// Package literal matches fixed-string indicator lists against the collection
// by delegating to an external grep-compatible matcher.
package literal

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/collectifor/collectifor/internal/logging"
	"github.com/collectifor/collectifor/internal/pool"
	"github.com/collectifor/collectifor/internal/scanner"
	"github.com/collectifor/collectifor/internal/types"
	"github.com/collectifor/collectifor/internal/walk"
)

// Options configures the literal engine.
type Options struct {
	RulesDir string
	// Binary is an explicit matcher path; empty means $PATH lookup.
	Binary string
	Logger *zap.Logger
}

// Scanner implements scanner.Scanner using grep -F.
type Scanner struct {
	rulesDir   string
	binaryPath string
	log        *zap.Logger
}

var _ scanner.Scanner = (*Scanner)(nil)

// NewScanner creates a literal scanner. It fails when the matcher binary
// cannot be found.
func NewScanner(opts Options) (*Scanner, error) {
	bin, err := NewBinaryManager(opts.Binary).Find()
	if err != nil {
		return nil, err
	}
	return &Scanner{
		rulesDir:   opts.RulesDir,
		binaryPath: bin,
		log:        logging.OrNop(opts.Logger).With(zap.String("engine", scanner.EngineLiteral)),
	}, nil
}

// Name implements scanner.Scanner.
func (s *Scanner) Name() string { return scanner.EngineLiteral }

// Scan implements scanner.Scanner. Each indicator list is one unit.
func (s *Scanner) Scan(ctx context.Context, target scanner.Target) ([]types.Finding, error) {
	lists, err := LoadLists(s.rulesDir)
	if err != nil {
		return nil, err
	}
	if len(lists) == 0 {
		s.log.Info("no indicator lists found, nothing to match", zap.String("rules_dir", s.rulesDir))
		return nil, nil
	}
	st, err := os.Stat(target.Root)
	if err != nil {
		return nil, fmt.Errorf("literal target: %w", err)
	}
	recursive := st.IsDir()
	filter := walk.Filter{Include: target.Include, Exclude: target.Exclude}

	src := func(emit func(pool.Unit[string]) error) error {
		for _, l := range lists {
			if err := emit(pool.Unit[string]{ID: l, Value: l}); err != nil {
				return err
			}
		}
		return nil
	}
	findings, stats, err := pool.Run(ctx, pool.Options{Workers: target.Workers, Engine: s.Name(), Logger: s.log}, src,
		func(ctx context.Context, list string) ([]types.Finding, error) {
			out, err := s.run(ctx, list, target.Root, recursive)
			if err != nil {
				return nil, err
			}
			fs := parseOutput(out, list, target.Root, recursive)
			kept := fs[:0]
			for _, f := range fs {
				if filter.Allowed(f.Artifact) {
					kept = append(kept, f)
				}
			}
			return kept, nil
		})
	s.log.Info("literal scan finished",
		zap.Int("lists", stats.Units),
		zap.Int("failed", stats.Failed),
		zap.Int("findings", len(findings)))
	return findings, err
}

// run invokes the matcher for one list. Recursive output is NUL-delimited
// (-Z) so paths containing ':' split correctly. Exit status 1 means no
// match. Any other non-zero status is logged and whatever was printed is
// still used, since grep reports matches it found before hitting an
// unreadable file.
func (s *Scanner) run(ctx context.Context, list, target string, recursive bool) ([]byte, error) {
	args := []string{"-F", "-o", "-f", list}
	if recursive {
		args = append(args, "-r", "-Z")
	}
	args = append(args, target)

	cmd := exec.CommandContext(ctx, s.binaryPath, args...) // #nosec G204
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return stdout.Bytes(), nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if exitErr.ExitCode() == 1 {
			return nil, nil
		}
		s.log.Warn("literal matcher exited with error",
			zap.String("list", list),
			zap.Int("exit_code", exitErr.ExitCode()),
			zap.String("stderr", strings.TrimSpace(stderr.String())))
		return stdout.Bytes(), nil
	}
	return nil, fmt.Errorf("run %s: %w", s.binaryPath, err)
}

func parseOutput(out []byte, list, target string, recursive bool) []types.Finding {
	var fs []types.Finding
	sc := bufio.NewScanner(bytes.NewReader(out))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		path, m := target, line
		if recursive {
			i := strings.IndexByte(line, 0)
			if i < 0 {
				continue
			}
			path, m = line[:i], line[i+1:]
		}
		fs = append(fs, newFinding(path, m, list))
	}
	return fs
}

func newFinding(path, m, list string) types.Finding {
	f := types.NewFinding(types.TypeLiteral)
	f.Artifact = path
	f.Indicator = m
	f.SourceFile = list
	f.Message = fmt.Sprintf(`Pattern "%s" matched in file %s`, m, path)
	f.Meta["list"] = filepath.Base(list)
	return f
}
