//go:build darwin

package fsync

import (
	"os"

	"golang.org/x/sys/unix"
)

// syncFile performs file descriptor sync.
//
// On macOS, if full is true, use F_FULLFSYNC for maximum durability.
// F_FULLFSYNC ensures data is written to the physical disk, not just the drive cache.
// Otherwise, use regular fsync.
func syncFile(f *os.File, full bool) error {
	if full {
		_, err := unix.FcntlInt(f.Fd(), unix.F_FULLFSYNC, 0)
		return err
	}
	// macOS doesn't have fdatasync, use fsync
	return unix.Fsync(int(f.Fd()))
}

// syncDir makes a rename in dir durable.
func syncDir(dir string) error {
	fd, err := unix.Open(dir, unix.O_RDONLY, 0)
	if err != nil {
		return err
	}
	defer unix.Close(fd)
	return unix.Fsync(fd)
}
