package walk

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustWrite(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return p
}

func rels(t *testing.T, root string, paths []string) []string {
	t.Helper()
	var out []string
	for _, p := range paths {
		r, err := filepath.Rel(root, p)
		require.NoError(t, err)
		out = append(out, filepath.ToSlash(r))
	}
	sort.Strings(out)
	return out
}

func TestWalk_IncludeExcludeSubstrings(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, dir, "etc/passwd", "root:x:0:0")
	mustWrite(t, dir, "home/alice/.bashrc", "alias ll='ls -l'")
	mustWrite(t, dir, "proc/1/status", "Name: init")

	got, err := Collect(context.Background(), dir, Filter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"etc/passwd", "home/alice/.bashrc", "proc/1/status"}, rels(t, dir, got))

	got, err = Collect(context.Background(), dir, Filter{Exclude: []string{"/proc/"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"etc/passwd", "home/alice/.bashrc"}, rels(t, dir, got))

	got, err = Collect(context.Background(), dir, Filter{Include: []string{"alice", "passwd"}, Exclude: []string{".bashrc"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"etc/passwd"}, rels(t, dir, got))
}

func TestWalk_SkipsSymlinks(t *testing.T) {
	dir := t.TempDir()
	target := mustWrite(t, dir, "real.txt", "x")
	if err := os.Symlink(target, filepath.Join(dir, "link.txt")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	got, err := Collect(context.Background(), dir, Filter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"real.txt"}, rels(t, dir, got))
}

func TestWalk_YieldsAbsolutePathsUnderRoot(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, dir, "a/b/c.log", "x")
	got, err := Collect(context.Background(), dir, Filter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, filepath.IsAbs(got[0]))
	rel, err := filepath.Rel(dir, got[0])
	require.NoError(t, err)
	assert.NotContains(t, rel, "..")
}

func TestWalk_MissingRoot(t *testing.T) {
	_, err := Collect(context.Background(), filepath.Join(t.TempDir(), "nope"), Filter{})
	assert.Error(t, err)
}

func TestWalk_CancelledContext(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, dir, "a.txt", "x")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Collect(ctx, dir, Filter{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, SplitList(""))
	assert.Equal(t, []string{"a", "b"}, SplitList(" a, ,b "))
}
