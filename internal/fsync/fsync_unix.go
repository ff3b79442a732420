//go:build linux || freebsd

package fsync

import (
	"os"

	"golang.org/x/sys/unix"
)

// syncFile performs file descriptor sync.
//
// On Linux/FreeBSD, fdatasync() provides sufficient guarantees.
// The full parameter is ignored on Linux/FreeBSD.
func syncFile(f *os.File, _ bool) error {
	return unix.Fdatasync(int(f.Fd()))
}

// syncDir makes a rename in dir durable.
func syncDir(dir string) error {
	fd, err := unix.Open(dir, unix.O_RDONLY|unix.O_DIRECTORY|unix.O_CLOEXEC, 0)
	if err != nil {
		return err
	}
	defer unix.Close(fd)
	return unix.Fsync(fd)
}
