package literal

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
)

// DefaultBinary is the matcher looked up on $PATH when none is configured.
const DefaultBinary = "grep"

// ErrBinaryNotFound is returned when no fixed-string matcher can be located.
var ErrBinaryNotFound = errors.New("literal matcher binary not found")

// BinaryManager locates the external fixed-string matcher.
type BinaryManager struct {
	customPath string
}

// NewBinaryManager creates a binary manager. customPath is an optional
// explicit path to the matcher.
func NewBinaryManager(customPath string) *BinaryManager {
	return &BinaryManager{customPath: customPath}
}

// Find locates the matcher binary using the following search order:
// 1. Custom path (if provided)
// 2. $PATH lookup of DefaultBinary
func (bm *BinaryManager) Find() (string, error) {
	if bm.customPath != "" {
		st, err := os.Stat(bm.customPath)
		if err != nil {
			return "", fmt.Errorf("%w: custom path %s: %v", ErrBinaryNotFound, bm.customPath, err)
		}
		if st.IsDir() {
			return "", fmt.Errorf("%w: custom path %s is a directory", ErrBinaryNotFound, bm.customPath)
		}
		return bm.customPath, nil
	}
	p, err := exec.LookPath(DefaultBinary)
	if err != nil {
		return "", fmt.Errorf("%w: %s not in PATH", ErrBinaryNotFound, DefaultBinary)
	}
	return p, nil
}
