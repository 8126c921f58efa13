package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCopier struct {
	table   pgx.Identifier
	columns []string
	rows    [][]any
	err     error
}

func (f *fakeCopier) CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error) {
	f.table = table
	f.columns = columns
	for src.Next() {
		vals, err := src.Values()
		if err != nil {
			return 0, err
		}
		f.rows = append(f.rows, vals)
	}
	return int64(len(f.rows)), f.err
}

func TestPostgres_CopiesRows(t *testing.T) {
	fc := &fakeCopier{}
	p := &Postgres{db: fc, runID: "run-7", log: zap.NewNop()}
	require.NoError(t, p.StoreFindings(context.Background(), sampleFindings()))

	assert.Equal(t, pgx.Identifier{FindingsTable}, fc.table)
	assert.Equal(t, findingColumns, fc.columns)
	require.Len(t, fc.rows, 2)

	row := fc.rows[0]
	require.Len(t, row, len(findingColumns))
	assert.Equal(t, "run-7", row[1])
	assert.Equal(t, "signature", row[3])
	assert.Equal(t, []string{"webshell"}, row[9])
	var meta map[string]any
	require.NoError(t, json.Unmarshal([]byte(row[11].(string)), &meta))
	assert.Contains(t, meta, "string_instances")

	assert.Equal(t, []string{}, fc.rows[1][9])
	assert.Equal(t, "{}", fc.rows[1][11])
	assert.NotEqual(t, fc.rows[0][0], fc.rows[1][0])
}

func TestPostgres_EmptyBatchSkipsCopy(t *testing.T) {
	fc := &fakeCopier{}
	p := &Postgres{db: fc, log: zap.NewNop()}
	require.NoError(t, p.StoreFindings(context.Background(), nil))
	assert.Nil(t, fc.table)
}

func TestPostgres_CopyError(t *testing.T) {
	fc := &fakeCopier{err: errors.New("relation does not exist")}
	p := &Postgres{db: fc, log: zap.NewNop()}
	err := p.StoreFindings(context.Background(), sampleFindings())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "copy findings")
}

func TestPostgres_Integration(t *testing.T) {
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set, skipping postgres integration test")
	}
	ctx := context.Background()
	p, err := OpenPostgres(ctx, dsn, zap.NewNop())
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, p.StoreFindings(ctx, sampleFindings()))
	var n int
	require.NoError(t, p.pool.QueryRow(ctx, "SELECT count(*) FROM findings WHERE run_id = $1", p.RunID()).Scan(&n))
	assert.Equal(t, 2, n)
}
