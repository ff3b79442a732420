//go:build windows

package fsync

import (
	"os"

	"golang.org/x/sys/windows"
)

// syncFile performs file sync using FlushFileBuffers.
//
// On Windows, FlushFileBuffers ensures all file data and metadata is written to disk.
// The full parameter is ignored on Windows.
func syncFile(f *os.File, _ bool) error {
	return windows.FlushFileBuffers(windows.Handle(f.Fd()))
}

// syncDir is a no-op: NTFS journals the rename itself and directory handles
// cannot be flushed without backup privileges.
func syncDir(string) error { return nil }
