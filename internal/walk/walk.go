package walk

import (
	"context"
	"io/fs"
	"path/filepath"

	"go.uber.org/zap"
)

// Walk traverses root and invokes handle for each regular file that passes
// the filter. Symlinks and other non-regular entries are never yielded.
// Unreadable directories are logged and skipped. A non-nil error from handle
// or a cancelled context stops the walk and is returned.
func Walk(ctx context.Context, root string, f Filter, log *zap.Logger, handle func(path string) error) error {
	if log == nil {
		log = zap.NewNop()
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	return filepath.WalkDir(abs, func(p string, d fs.DirEntry, err error) error {
		if ctx != nil {
			if cerr := ctx.Err(); cerr != nil {
				return cerr
			}
		}
		if err != nil {
			if p == abs {
				return err
			}
			log.Debug("skipping unreadable entry", zap.String("path", p), zap.Error(err))
			return nil
		}
		if d.IsDir() {
			// every descendant would carry the same excluded substring
			if p != abs && f.excluded(p) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if !f.Allowed(p) {
			return nil
		}
		return handle(p)
	})
}

// Collect returns every path Walk would yield. Intended for small trees and
// tests; engines should stream through Walk instead.
func Collect(ctx context.Context, root string, f Filter) ([]string, error) {
	var out []string
	err := Walk(ctx, root, f, nil, func(p string) error {
		out = append(out, p)
		return nil
	})
	return out, err
}
