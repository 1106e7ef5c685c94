package safefileio

import (
	"errors"
	"os"
	"syscall"
)

// isNoFollowError reports whether err comes from opening a symlink with
// O_NOFOLLOW. Linux returns ELOOP, FreeBSD EMLINK.
func isNoFollowError(err error) bool {
	var e *os.PathError
	if !errors.As(err, &e) {
		return false
	}
	return errors.Is(e.Err, syscall.ELOOP) || errors.Is(e.Err, syscall.EMLINK)
}
