package scanner

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHostPath(t *testing.T) {
	root := filepath.FromSlash("/cases/c1")
	assert.Equal(t, "/var/log/auth.log", HostPath(root, filepath.Join(root, "var", "log", "auth.log")))
	assert.Equal(t, "/elsewhere/x", HostPath(root, filepath.FromSlash("/elsewhere/x")))
}

func TestWithinRoot(t *testing.T) {
	root := filepath.FromSlash("/cases/c1")
	tests := []struct {
		path string
		want bool
	}{
		{"/cases/c1", true},
		{"/cases/c1/etc/passwd", true},
		{"/cases/c10/etc/passwd", false},
		{"/cases/other", false},
		{"/", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, WithinRoot(root, filepath.FromSlash(tt.path)), tt.path)
	}
}

func TestNameSet(t *testing.T) {
	assert.Equal(t, map[string]bool{"signature": true, "literal": true}, NameSet(" Signature, literal,,"))
	assert.Empty(t, NameSet(""))
}
