//go:build unix

package signature

import (
	"os"
	"os/user"
	"strconv"
	"syscall"
)

// ownerOf returns the user name owning path, or the numeric uid when the
// account is unknown on the analysis host.
func ownerOf(path string) (string, error) {
	st, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	sys, ok := st.Sys().(*syscall.Stat_t)
	if !ok {
		return "", nil
	}
	uid := strconv.FormatUint(uint64(sys.Uid), 10)
	if u, err := user.LookupId(uid); err == nil {
		return u.Username, nil
	}
	return uid, nil
}
