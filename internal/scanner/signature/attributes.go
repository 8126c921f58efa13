package signature

import (
	"crypto/md5" // #nosec G501
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const (
	headerBytes = 16
	sniffBytes  = 3072
	hashChunk   = 1 << 20
)

// AttributeFunc computes one attribute for the file at path.
type AttributeFunc func(path string) (string, error)

// Computer evaluates external attributes. Only attributes present in the
// requested set are ever computed.
type Computer struct {
	funcs [numAttributes]AttributeFunc
}

// NewComputer returns a Computer with the default attribute functions.
func NewComputer() *Computer {
	c := &Computer{}
	c.funcs[AttrFilename] = func(p string) (string, error) { return filepath.Base(p), nil }
	c.funcs[AttrFilepath] = func(p string) (string, error) { return p, nil }
	c.funcs[AttrExtension] = func(p string) (string, error) { return extension(p), nil }
	c.funcs[AttrFiletype] = fileType
	c.funcs[AttrMD5] = md5File
	c.funcs[AttrOwner] = ownerOf
	return c
}

// Set replaces the function for one attribute.
func (c *Computer) Set(a Attribute, fn AttributeFunc) {
	if a < numAttributes {
		c.funcs[a] = fn
	}
}

// Compute returns external variable bindings for path, keyed by attribute
// name. An empty set computes nothing.
func (c *Computer) Compute(path string, need AttributeSet) (map[string]any, error) {
	vars := make(map[string]any, len(need.Attributes()))
	for _, a := range need.Attributes() {
		fn := c.funcs[a]
		if fn == nil {
			vars[a.String()] = ""
			continue
		}
		v, err := fn(path)
		if err != nil {
			return nil, fmt.Errorf("compute %s: %w", a, err)
		}
		vars[a.String()] = v
	}
	return vars, nil
}

// extension returns the suffix including the dot. Leading dots of the base
// name do not start an extension, so ".bashrc" has none.
func extension(p string) string {
	base := strings.TrimLeft(filepath.Base(p), ".")
	return filepath.Ext(base)
}

// fileType returns the hex of the first 16 bytes followed by the sniffed
// MIME type, e.g. "7f454c46...;application/x-executable".
func fileType(p string) (string, error) {
	f, err := os.Open(p)
	if err != nil {
		return "", err
	}
	defer f.Close()
	buf := make([]byte, sniffBytes)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", err
	}
	buf = buf[:n]
	head := buf
	if len(head) > headerBytes {
		head = head[:headerBytes]
	}
	return hex.EncodeToString(head) + ";" + mimetype.Detect(buf).String(), nil
}

func md5File(p string) (string, error) {
	f, err := os.Open(p)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := md5.New() // #nosec G401
	if _, err := io.CopyBuffer(h, f, make([]byte, hashChunk)); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
