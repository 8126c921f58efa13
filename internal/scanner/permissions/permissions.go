// Package permissions flags risky entries in a collected file permission
// listing (file_permissions.txt).
package permissions

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/collectifor/collectifor/internal/logging"
	"github.com/collectifor/collectifor/internal/scanner"
	"github.com/collectifor/collectifor/internal/types"
)

// DefaultListing is the listing file name relative to the collection root.
const DefaultListing = "file_permissions.txt"

// Options configures the permissions analyzer.
type Options struct {
	// File is the listing path; relative paths resolve against the root.
	File   string
	Fs     afero.Fs
	Logger *zap.Logger
}

// Scanner implements scanner.Scanner over a permission listing.
type Scanner struct {
	file string
	fs   afero.Fs
	log  *zap.Logger
}

var _ scanner.Scanner = (*Scanner)(nil)

// New creates a permissions scanner. A nil Fs reads the OS filesystem.
func New(opts Options) *Scanner {
	fsys := opts.Fs
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	file := opts.File
	if file == "" {
		file = DefaultListing
	}
	return &Scanner{
		file: file,
		fs:   fsys,
		log:  logging.OrNop(opts.Logger).With(zap.String("engine", scanner.EnginePermissions)),
	}
}

// Name implements scanner.Scanner.
func (s *Scanner) Name() string { return scanner.EnginePermissions }

// Scan implements scanner.Scanner. A missing listing yields no findings.
func (s *Scanner) Scan(ctx context.Context, target scanner.Target) ([]types.Finding, error) {
	path := s.file
	if !filepath.IsAbs(path) {
		path = filepath.Join(target.Root, path)
	}
	f, err := s.fs.Open(path)
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, os.ErrNotExist) {
		s.log.Info("no permission listing", zap.String("file", path))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open permission listing: %w", err)
	}
	defer f.Close()

	var out []types.Finding
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		e, ok := ParseLine(sc.Text())
		if !ok {
			continue
		}
		if fd, ok := e.Finding(target.Root); ok {
			out = append(out, fd)
		}
	}
	if err := sc.Err(); err != nil {
		return out, fmt.Errorf("read permission listing: %w", err)
	}
	s.log.Info("permission listing analyzed", zap.String("file", path), zap.Int("findings", len(out)))
	return out, nil
}

// Entry is one parsed listing line:
// path mode perms owner:group size timestamp
type Entry struct {
	Path      string
	Mode      string
	Perms     string
	Owner     string
	Group     string
	Size      string
	Timestamp string
}

// ParseLine parses a listing line. Short lines and symlinks are rejected.
func ParseLine(line string) (Entry, bool) {
	parts := strings.Fields(line)
	if len(parts) < 6 {
		return Entry{}, false
	}
	e := Entry{Path: parts[0], Mode: parts[1], Perms: parts[2], Size: parts[4], Timestamp: parts[5]}
	if strings.HasPrefix(e.Perms, "l") {
		return Entry{}, false
	}
	e.Owner, e.Group, _ = strings.Cut(parts[3], ":")
	return e, true
}

// Reasons lists why the entry is risky, in a fixed order.
func (e Entry) Reasons() []string {
	var reasons []string
	if mode, err := strconv.ParseUint(e.Mode, 8, 32); err == nil {
		if mode&0o4000 != 0 {
			reasons = append(reasons, "SUID")
		}
		if mode&0o2000 != 0 {
			reasons = append(reasons, "SGID")
		}
		if mode&0o002 != 0 {
			reasons = append(reasons, "World-writable")
		}
		if e.Owner != "root" && mode&0o020 != 0 {
			reasons = append(reasons, "Group writable")
		}
		if e.Owner != "root" && mode&0o002 != 0 {
			reasons = append(reasons, "Other writable")
		}
	}
	if strings.Contains(e.Perms, "s") {
		reasons = append(reasons, "SUID/SGID (string)")
	}
	return reasons
}

// Finding converts a risky entry to a finding. Listing paths are host
// paths; the artifact is the same path under the collection root and the
// listed path is kept as meta.host_path.
func (e Entry) Finding(root string) (types.Finding, bool) {
	reasons := e.Reasons()
	if len(reasons) == 0 {
		return types.Finding{}, false
	}
	f := types.NewFinding(types.TypePermissions)
	f.Artifact = filepath.Join(root, filepath.FromSlash(e.Path))
	f.Indicator = reasons[0]
	f.Message = strings.Join(reasons, ", ")
	f.Meta["mode"] = e.Mode
	f.Meta["perms"] = e.Perms
	f.Meta["owner"] = e.Owner
	f.Meta["group"] = e.Group
	f.Meta["size"] = e.Size
	f.Meta["timestamp"] = e.Timestamp
	f.Meta["host_path"] = e.Path
	return f, true
}
