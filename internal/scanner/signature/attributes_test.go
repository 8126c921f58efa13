package signature

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, data, 0o644))
	return p
}

func TestCompute_DefaultAttributes(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "sample.txt", []byte("hello world\n"))

	all := AttributeSet(0)
	for a := Attribute(0); a < numAttributes; a++ {
		all = all.With(a)
	}
	vars, err := NewComputer().Compute(p, all)
	require.NoError(t, err)

	assert.Equal(t, "sample.txt", vars["filename"])
	assert.Equal(t, p, vars["filepath"])
	assert.Equal(t, ".txt", vars["extension"])
	assert.Len(t, vars["md5"], 32)
	assert.Equal(t, "6f5902ac237024bdd0c176cb93063dc4", vars["md5"])

	ft, _ := vars["filetype"].(string)
	parts := strings.SplitN(ft, ";", 2)
	require.Len(t, parts, 2)
	assert.Equal(t, "68656c6c6f20776f726c640a", parts[0])
	assert.True(t, strings.HasPrefix(parts[1], "text/plain"), ft)
}

func TestExtension(t *testing.T) {
	assert.Equal(t, ".gz", extension("/var/log/auth.log.2.gz"))
	assert.Equal(t, "", extension("/home/u/.bashrc"))
	assert.Equal(t, "", extension("/usr/bin/ls"))
}

func TestCompute_MissingFileFails(t *testing.T) {
	_, err := NewComputer().Compute(filepath.Join(t.TempDir(), "gone"), AttributeSet(0).With(AttrMD5))
	assert.Error(t, err)
}

func TestCompute_NoExternalsComputesNothing(t *testing.T) {
	c := NewComputer()
	calls := 0
	for a := Attribute(0); a < numAttributes; a++ {
		c.Set(a, func(string) (string, error) { calls++; return "x", nil })
	}
	vars, err := c.Compute("/does/not/matter", 0)
	require.NoError(t, err)
	assert.Empty(t, vars)
	assert.Zero(t, calls)
}
