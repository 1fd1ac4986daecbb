//go:build unix

package cache

import (
	"os"

	"golang.org/x/sys/unix"
)

// lockShared takes an advisory shared lock on f
func lockShared(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_SH)
}

func unlock(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_UN)
}
