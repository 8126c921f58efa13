package core

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScan_Smoke(t *testing.T) {
	findings, err := Scan(context.Background(), Config{Root: t.TempDir()})
	require.NoError(t, err)
	assert.Empty(t, findings)
	assert.Equal(t, []string{"signature", "literal", "structured", "permissions", "persistence", "entropy"}, Engines())
}

func TestScanWithStats_BuiltinAuth(t *testing.T) {
	root := t.TempDir()
	logDir := filepath.Join(root, "var", "log")
	require.NoError(t, os.MkdirAll(logDir, 0o755))
	line := "May  1 10:00:00 host sshd[42]: Failed password for invalid user admin from 198.51.100.4 port 2222 ssh2\n"
	require.NoError(t, os.WriteFile(filepath.Join(logDir, "auth.log"), []byte(line), 0o644))

	cfg := Config{Root: root}
	cfg.Engines.Structured.Enabled = true
	cfg.Engines.Structured.BuiltinAuth = true

	res, err := ScanWithStats(context.Background(), cfg)
	require.NoError(t, err)
	assert.False(t, res.Failed())
	require.NotEmpty(t, res.Findings)
	assert.Equal(t, TypeStructured, res.Findings[0].Type)
	assert.Equal(t, len(res.Findings), res.PerEngine["structured"].Findings)
}

func TestFindingsJSON_RoundTrip(t *testing.T) {
	in := []Finding{{Type: TypeLiteral, Artifact: "/etc/hosts", Indicator: "evil.example", Tags: []string{}, Meta: map[string]any{"list": "iocs.txt"}}}
	var buf bytes.Buffer
	require.NoError(t, MarshalFindings(&buf, in))

	out, err := UnmarshalFindings(&buf)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestUnmarshalFindings_NullCollections(t *testing.T) {
	out, err := UnmarshalFindings(strings.NewReader(`[{"type":"signature","tags":null}]`))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.NotNil(t, out[0].Tags)
	assert.NotNil(t, out[0].Meta)
}
