// Package store persists finding batches. Backends are a JSON Lines file, a
// forensicstore database and PostgreSQL.
package store

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/collectifor/collectifor/internal/types"
)

// Backend names.
const (
	BackendJSONL         = "jsonl"
	BackendForensicstore = "forensicstore"
	BackendPostgres      = "postgres"
)

// Sink receives the merged finding batch of a run.
type Sink interface {
	StoreFindings(ctx context.Context, findings []types.Finding) error
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Backend string
	// Path is the output file for jsonl and forensicstore.
	Path string
	// DSN is the connection string for postgres.
	DSN    string
	Logger *zap.Logger
}

// Open creates the sink for opts.Backend. An empty backend returns a nil
// sink and no error.
func Open(ctx context.Context, opts Options) (Sink, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case "", "none":
		return nil, nil
	case BackendJSONL:
		if opts.Path == "" {
			return nil, errors.New("jsonl store requires a path")
		}
		return NewJSONL(opts.Path), nil
	case BackendForensicstore:
		if opts.Path == "" {
			return nil, errors.New("forensicstore requires a path")
		}
		return OpenForensicstore(opts.Path)
	case BackendPostgres:
		if opts.DSN == "" {
			return nil, errors.New("postgres store requires a DSN")
		}
		return OpenPostgres(ctx, opts.DSN, opts.Logger)
	default:
		return nil, errors.Errorf("unknown store backend %q", opts.Backend)
	}
}
