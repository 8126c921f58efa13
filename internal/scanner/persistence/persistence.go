// Package persistence looks for common Linux persistence mechanisms in a
// collection: systemd units, cron jobs, shell profiles and SSH access.
package persistence

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/collectifor/collectifor/internal/logging"
	"github.com/collectifor/collectifor/internal/pool"
	"github.com/collectifor/collectifor/internal/scanner"
	"github.com/collectifor/collectifor/internal/types"
	"github.com/collectifor/collectifor/internal/walk"
)

// Host locations inspected, relative to the collection root.
var (
	ServiceDirs  = []string{"etc/systemd/system", "usr/lib/systemd/system", "lib/systemd/system"}
	CronPaths    = []string{"etc/crontab", "etc/cron.d", "var/spool/cron"}
	ProfilePaths = []string{"etc/profile", "etc/bash.bashrc", "etc/profile.d", "root/.bashrc", "root/.profile"}
)

type kind int

const (
	kindService kind = iota
	kindCron
	kindSystemCron
	kindProfile
	kindSSH
)

type candidate struct {
	path string
	kind kind
}

// Options configures the persistence analyzer.
type Options struct {
	Fs     afero.Fs
	Logger *zap.Logger
}

// Scanner implements scanner.Scanner.
type Scanner struct {
	fs  afero.Fs
	log *zap.Logger
}

var _ scanner.Scanner = (*Scanner)(nil)

// New creates a persistence scanner. A nil Fs reads the OS filesystem.
func New(opts Options) *Scanner {
	fsys := opts.Fs
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &Scanner{
		fs:  fsys,
		log: logging.OrNop(opts.Logger).With(zap.String("engine", scanner.EnginePersistence)),
	}
}

// Name implements scanner.Scanner.
func (s *Scanner) Name() string { return scanner.EnginePersistence }

// Scan implements scanner.Scanner. Each inspected file is one unit; absent
// locations are skipped.
func (s *Scanner) Scan(ctx context.Context, target scanner.Target) ([]types.Finding, error) {
	filter := walk.Filter{Include: target.Include, Exclude: target.Exclude}
	cands := s.candidates(target.Root)
	src := func(emit func(pool.Unit[candidate]) error) error {
		for _, c := range cands {
			if !filter.Allowed(c.path) {
				continue
			}
			if err := emit(pool.Unit[candidate]{ID: c.path, Value: c}); err != nil {
				return err
			}
		}
		return nil
	}
	findings, st, err := pool.Run(ctx, pool.Options{Workers: target.Workers, Engine: s.Name(), Logger: s.log}, src,
		func(_ context.Context, c candidate) ([]types.Finding, error) {
			return s.inspect(target.Root, c)
		})
	s.log.Info("persistence scan finished",
		zap.Int("files", st.Units),
		zap.Int("failed", st.Failed),
		zap.Int("findings", len(findings)))
	return findings, err
}

func (s *Scanner) candidates(root string) []candidate {
	seen := map[string]bool{}
	var out []candidate
	add := func(p string, k kind) {
		if !seen[p] {
			seen[p] = true
			out = append(out, candidate{path: p, kind: k})
		}
	}
	for _, d := range ServiceDirs {
		for _, p := range s.files(filepath.Join(root, d)) {
			if strings.HasSuffix(p, ".service") {
				add(p, kindService)
			}
		}
	}
	for _, c := range CronPaths {
		k := kindCron
		if strings.HasPrefix(c, "etc/") {
			k = kindSystemCron
		}
		for _, p := range s.files(filepath.Join(root, c)) {
			add(p, k)
		}
	}
	profiles := append([]string(nil), ProfilePaths...)
	sshDirs := []string{"root/.ssh"}
	for _, home := range s.subdirs(filepath.Join(root, "home")) {
		profiles = append(profiles, path.Join("home", home, ".bashrc"), path.Join("home", home, ".profile"))
		sshDirs = append(sshDirs, path.Join("home", home, ".ssh"))
	}
	for _, rel := range profiles {
		for _, p := range s.files(filepath.Join(root, filepath.FromSlash(rel))) {
			add(p, kindProfile)
		}
	}
	for _, rel := range sshDirs {
		entries, err := afero.ReadDir(s.fs, filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.Mode().IsRegular() {
				add(filepath.Join(root, filepath.FromSlash(rel), e.Name()), kindSSH)
			}
		}
	}
	return out
}

// files returns p itself when it is a regular file, or every regular file
// beneath it when it is a directory, sorted.
func (s *Scanner) files(p string) []string {
	st, err := s.fs.Stat(p)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) && !errors.Is(err, os.ErrNotExist) {
			s.log.Debug("skipping unreadable location", zap.String("path", p), zap.Error(err))
		}
		return nil
	}
	if st.Mode().IsRegular() {
		return []string{p}
	}
	if !st.IsDir() {
		return nil
	}
	var out []string
	_ = afero.Walk(s.fs, p, func(sub string, info os.FileInfo, err error) error {
		if err != nil {
			s.log.Debug("skipping unreadable entry", zap.String("path", sub), zap.Error(err))
			return nil
		}
		if info.Mode().IsRegular() {
			out = append(out, sub)
		}
		return nil
	})
	sort.Strings(out)
	return out
}

func (s *Scanner) subdirs(p string) []string {
	entries, err := afero.ReadDir(s.fs, p)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, e.Name())
		}
	}
	return out
}

func (s *Scanner) inspect(root string, c candidate) ([]types.Finding, error) {
	if c.kind == kindSSH && filepath.Base(c.path) == "authorized_keys" {
		return []types.Finding{newFinding(root, c.path, Hit{RuleAuthorizedKeys, "Authorized key persistence", SeverityMedium,
			"SSH authorized_keys allows persistent access."}, nil)}, nil
	}
	if c.kind == kindSSH && !strings.HasSuffix(c.path, "config") {
		return nil, nil
	}
	data, err := afero.ReadFile(s.fs, c.path)
	if err != nil {
		return nil, err
	}
	var out []types.Finding
	switch c.kind {
	case kindService:
		name := strings.TrimSuffix(filepath.Base(c.path), ".service")
		for _, cmd := range ExecStarts(string(data)) {
			for _, h := range CheckExecStart(name, cmd) {
				out = append(out, newFinding(root, c.path, h, map[string]any{"execstart": cmd, "service_name": name}))
			}
		}
	case kindCron, kindSystemCron:
		eachLine(data, func(line string) {
			e, ok := ParseCronLine(line, c.kind == kindSystemCron)
			if !ok {
				return
			}
			for _, h := range CheckCron(e) {
				meta := map[string]any{"command": e.Command, "schedule": strings.Join(e.Schedule, " ")}
				if e.User != "" {
					meta["user"] = e.User
				}
				out = append(out, newFinding(root, c.path, h, meta))
			}
		})
	case kindProfile:
		eachLine(data, func(line string) {
			for _, h := range CheckProfileLine(line) {
				out = append(out, newFinding(root, c.path, h, map[string]any{"line": strings.TrimSpace(line)}))
			}
		})
	case kindSSH:
		for _, h := range CheckSSHConfig(string(data)) {
			out = append(out, newFinding(root, c.path, h, nil))
		}
	}
	return out, nil
}

func eachLine(data []byte, fn func(string)) {
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		fn(sc.Text())
	}
}

func newFinding(root, p string, h Hit, meta map[string]any) types.Finding {
	f := types.NewFinding(types.TypePersistence)
	f.Artifact = p
	f.Rule = h.Rule
	f.Indicator = h.Indicator
	f.Message = h.Description
	for k, v := range meta {
		f.Meta[k] = v
	}
	f.Meta["severity"] = h.Severity
	f.Meta["host_path"] = scanner.HostPath(root, p)
	return f
}
