package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/forensicanalysis/forensicstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collectifor/collectifor/internal/types"
)

func sampleFindings() []types.Finding {
	a := types.NewFinding(types.TypeSignature)
	a.Artifact = "/case/tmp/x.php"
	a.Rule = "php_eval"
	a.Indicator = "php_eval"
	a.Tags = []string{"webshell"}
	a.Meta["string_instances"] = map[string][]string{"$e": {`0x6:"eval("`}}

	b := types.Finding{Type: types.TypeLiteral, Artifact: "/case/etc/hosts", Indicator: "evil.example"}
	return []types.Finding{a, b}
}

func TestOpen_Dispatch(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, Options{})
	require.NoError(t, err)
	assert.Nil(t, s)

	for _, opts := range []Options{
		{Backend: "jsonl"},
		{Backend: "forensicstore"},
		{Backend: "postgres"},
		{Backend: "mongodb", Path: "x"},
	} {
		_, err := Open(ctx, opts)
		assert.Error(t, err, opts.Backend)
	}

	s, err = Open(ctx, Options{Backend: "JSONL", Path: filepath.Join(t.TempDir(), "f.jsonl")})
	require.NoError(t, err)
	assert.IsType(t, &JSONL{}, s)
}

func TestJSONL_AppendAndRead(t *testing.T) {
	p := filepath.Join(t.TempDir(), "findings.jsonl")
	s := NewJSONL(p)
	require.NoError(t, s.StoreFindings(context.Background(), sampleFindings()))
	require.NoError(t, s.StoreFindings(context.Background(), sampleFindings()[:1]))
	require.NoError(t, s.Close())

	st, err := os.Stat(p)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), st.Mode().Perm())

	recs, err := ReadJSONL(p)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	for _, r := range recs {
		assert.Equal(t, s.RunID(), r.RunID)
		assert.Equal(t, r.Finding.Fingerprint(), r.Fingerprint)
	}
	assert.Equal(t, "php_eval", recs[0].Finding.Rule)
	// nil collections are written as empty ones
	assert.NotNil(t, recs[1].Finding.Tags)
	assert.NotNil(t, recs[1].Finding.Meta)
}

func TestReadJSONL_Missing(t *testing.T) {
	_, err := ReadJSONL(filepath.Join(t.TempDir(), "none.jsonl"))
	assert.Error(t, err)
}

func TestFindingElement(t *testing.T) {
	b, err := findingElement(sampleFindings()[0], "run-1")
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Equal(t, ElementType, m["type"])
	assert.Equal(t, types.TypeSignature, m["finding_type"])
	assert.Equal(t, "run-1", m["run_id"])
	_, clash := m[ElementType]
	assert.False(t, clash)
}

func TestForensicstore_CreateAndReopen(t *testing.T) {
	p := filepath.Join(t.TempDir(), "case.forensicstore")
	s, err := OpenForensicstore(p)
	require.NoError(t, err)
	require.NoError(t, s.StoreFindings(context.Background(), sampleFindings()))
	require.NoError(t, s.Close())

	s, err = OpenForensicstore(p)
	require.NoError(t, err)
	require.NoError(t, s.StoreFindings(context.Background(), sampleFindings()[1:]))
	require.NoError(t, s.Close())

	fs, err := forensicstore.Open(p)
	require.NoError(t, err)
	defer fs.Close()
	els, err := fs.Query("SELECT json FROM elements")
	require.NoError(t, err)
	require.Len(t, els, 3)

	var m map[string]any
	require.NoError(t, json.Unmarshal(els[0], &m))
	assert.Equal(t, ElementType, m["type"])
	assert.Contains(t, m["id"], "finding--")
}
