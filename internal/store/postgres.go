package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/collectifor/collectifor/internal/logging"
	"github.com/collectifor/collectifor/internal/types"
)

// FindingsTable is the table findings are copied into.
const FindingsTable = "findings"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS findings (
	id          TEXT PRIMARY KEY,
	run_id      TEXT NOT NULL,
	fingerprint TEXT NOT NULL,
	type        TEXT NOT NULL,
	artifact    TEXT NOT NULL,
	indicator   TEXT NOT NULL,
	rule        TEXT NOT NULL,
	source_file TEXT NOT NULL,
	message     TEXT NOT NULL,
	tags        TEXT[] NOT NULL,
	namespace   TEXT NOT NULL,
	meta        JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS findings_run_id_idx ON findings (run_id);
CREATE INDEX IF NOT EXISTS findings_fingerprint_idx ON findings (fingerprint);
`

var findingColumns = []string{
	"id", "run_id", "fingerprint", "type", "artifact", "indicator",
	"rule", "source_file", "message", "tags", "namespace", "meta",
}

// copier is the part of pgxpool.Pool the sink writes through.
type copier interface {
	CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error)
}

// Postgres bulk-copies findings into PostgreSQL.
type Postgres struct {
	pool  *pgxpool.Pool
	db    copier
	runID string
	log   *zap.Logger
}

// OpenPostgres connects, verifies the connection and ensures the schema.
func OpenPostgres(ctx context.Context, dsn string, log *zap.Logger) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errors.Wrap(err, "parse postgres dsn")
	}
	cfg.MaxConns = 4
	cfg.MinConns = 1
	cfg.MaxConnLifetime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "connect postgres")
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "ping postgres")
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &Postgres{pool: pool, db: pool, runID: uuid.New().String(), log: logging.OrNop(log)}, nil
}

// Migrate creates the findings table and indexes if they do not exist.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return errors.Wrap(err, "migrate findings schema")
	}
	return nil
}

// RunID identifies the rows written by this sink.
func (p *Postgres) RunID() string { return p.runID }

// StoreFindings implements Sink.
func (p *Postgres) StoreFindings(ctx context.Context, findings []types.Finding) error {
	if len(findings) == 0 {
		return nil
	}
	rows, err := findingRows(findings, p.runID)
	if err != nil {
		return err
	}
	n, err := p.db.CopyFrom(ctx, pgx.Identifier{FindingsTable}, findingColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return errors.Wrap(err, "copy findings")
	}
	p.log.Info("findings stored", zap.String("backend", BackendPostgres), zap.String("run_id", p.runID), zap.Int64("rows", n))
	return nil
}

func findingRows(findings []types.Finding, runID string) ([][]any, error) {
	rows := make([][]any, 0, len(findings))
	for _, f := range findings {
		f = f.Normalize()
		meta, err := json.Marshal(f.Meta)
		if err != nil {
			return nil, errors.Wrapf(err, "marshal meta for %s", f.Artifact)
		}
		rows = append(rows, []any{
			uuid.New().String(),
			runID,
			f.Fingerprint(),
			f.Type,
			f.Artifact,
			f.Indicator,
			f.Rule,
			f.SourceFile,
			f.Message,
			f.Tags,
			f.Namespace,
			string(meta),
		})
	}
	return rows, nil
}

// Close implements Sink.
func (p *Postgres) Close() error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}
