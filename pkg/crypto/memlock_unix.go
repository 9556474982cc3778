//go:build linux || darwin || freebsd || netbsd || openbsd

package crypto

import "golang.org/x/sys/unix"

// lockMemory keeps key pages out of swap. Failure (e.g. RLIMIT_MEMLOCK) is not fatal.
func lockMemory(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	return unix.Mlock(b)
}

func unlockMemory(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	return unix.Munlock(b)
}
