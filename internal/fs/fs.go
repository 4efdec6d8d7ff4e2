// Package fs provides the small filesystem surface brokerctl needs to read
// back and write its diagnostics snapshot without two instances racing on
// the same snapshot path.
//
// The main types are:
//   - [FS]: filesystem operations brokerctl actually calls
//   - [File]: interface for open files (satisfied by [os.File])
//   - [Real]: production implementation using [os] package
//   - [Locker]: flock(2)-based single-instance guard for the snapshot path
package fs

import (
	"io"
	"os"
)

// File represents an open file descriptor, the subset [Locker] needs from
// its lock file: a file descriptor for flock(2) and Stat for inode
// verification.
type File interface {
	io.Closer

	// Fd returns the file descriptor. See [os.File.Fd].
	// Used for [syscall.Flock].
	Fd() uintptr

	// Stat returns the [os.FileInfo] for this file. See [os.File.Stat].
	Stat() (os.FileInfo, error)
}

// FS defines the filesystem operations brokerctl's snapshot reader/writer
// need. [Real] is the production implementation, wrapping the [os] package.
type FS interface {
	// ReadFile reads an entire file into memory, used to read back a
	// previously written snapshot. See [os.ReadFile].
	ReadFile(path string) ([]byte, error)

	// WriteFileAtomic writes data to path atomically: temp file + rename,
	// so a crash mid-write never leaves a half-written snapshot behind.
	WriteFileAtomic(path string, data []byte, perm os.FileMode) error

	// OpenFile opens the snapshot lock file for flock(2). See [os.OpenFile].
	OpenFile(path string, flag int, perm os.FileMode) (File, error)

	// MkdirAll creates the lock file's parent directory if needed. See
	// [os.MkdirAll].
	MkdirAll(path string, perm os.FileMode) error

	// Stat returns file info, used by [Locker] to verify the lock file it
	// flocked is still the one at path. See [os.Stat].
	Stat(path string) (os.FileInfo, error)
}

// Compile-time interface checks.
var _ File = (*os.File)(nil)
