package walk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func matchRels(t *testing.T, root string, ms []Match) []string {
	t.Helper()
	var paths []string
	for _, m := range ms {
		paths = append(paths, m.Path)
	}
	return rels(t, root, paths)
}

func TestResolvePrefixes_RotatedVariants(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, dir, "var/log/auth.log", "a")
	mustWrite(t, dir, "var/log/auth.log.1", "b")
	mustWrite(t, dir, "var/log/auth.log.2023-01-01.gz", "c")
	mustWrite(t, dir, "var/log/auth.log.bak.txt", "d")
	mustWrite(t, dir, "var/log/xauth.log", "e")
	mustWrite(t, dir, "var/log/old/auth.log", "f")
	mustWrite(t, dir, "var/auth.log", "g")

	ms, err := ResolvePrefixes(dir, []string{"/var/log/auth.log"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"var/log/auth.log",
		"var/log/auth.log.1",
		"var/log/auth.log.2023-01-01.gz",
		"var/log/auth.log.bak.txt",
	}, matchRels(t, dir, ms))
	for _, m := range ms {
		assert.Equal(t, "/var/log/auth.log", m.Prefix)
	}
}

func TestResolvePrefixes_Glob(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, dir, "var/log/nginx/access.log", "a")
	mustWrite(t, dir, "var/log/nginx/error.log", "b")
	mustWrite(t, dir, "var/log/nginx/access.log.1", "c")

	ms, err := ResolvePrefixes(dir, []string{"/var/log/nginx/*.log"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"var/log/nginx/access.log", "var/log/nginx/error.log"}, matchRels(t, dir, ms))

	ms, err = ResolvePrefixes(dir, []string{"/var/log/**/access*"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"var/log/nginx/access.log", "var/log/nginx/access.log.1"}, matchRels(t, dir, ms))
}

func TestResolvePrefixes_DirectoryPrefix(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, dir, "var/log/apache2/access.log", "a")
	mustWrite(t, dir, "var/log/apache2/sub/error.log", "b")
	mustWrite(t, dir, "var/log/apache2-old/access.log", "c")

	ms, err := ResolvePrefixes(dir, []string{"/var/log/apache2/"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"var/log/apache2/access.log", "var/log/apache2/sub/error.log"}, matchRels(t, dir, ms))
}

func TestResolvePrefixes_DedupesAndSkipsMissing(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, dir, "var/log/secure", "a")
	ms, err := ResolvePrefixes(dir, []string{"/var/log/secure", "/var/log/secure", "/nonexistent/file", ""}, nil)
	require.NoError(t, err)
	require.Len(t, ms, 1)
	assert.Equal(t, "/var/log/secure", ms[0].Prefix)
}

func TestResolvePrefixes_SkipsUnresolvablePrefix(t *testing.T) {
	dir := t.TempDir()
	// opt/app is a regular file, so reading opt/app/ as a directory fails
	mustWrite(t, dir, "opt/app", "not a directory")
	mustWrite(t, dir, "var/log/auth.log", "a")

	core, logs := observer.New(zapcore.WarnLevel)
	ms, err := ResolvePrefixes(dir, []string{"/opt/app/logs/app.log", "/var/log/auth.log"}, zap.New(core))
	require.NoError(t, err)
	assert.Equal(t, []string{"var/log/auth.log"}, matchRels(t, dir, ms))

	entries := logs.FilterMessage("skipping unresolvable prefix").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "/opt/app/logs/app.log", entries[0].ContextMap()["prefix"])
}
