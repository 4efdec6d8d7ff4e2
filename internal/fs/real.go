package fs

import (
	"bytes"
	"os"

	"github.com/natefinch/atomic"
)

// Real implements [FS] against the real filesystem. Every method is a
// passthrough to the [os] package, except [Real.WriteFileAtomic], which
// uses a temp-file-plus-rename write so a snapshot write can't be observed
// half-finished.
type Real struct{}

// NewReal returns a new [Real] filesystem.
func NewReal() *Real {
	return &Real{}
}

// ReadFile is a passthrough wrapper for [os.ReadFile], used to read back a
// previously written snapshot.
func (r *Real) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// WriteFileAtomic writes the diagnostics snapshot via temp file + rename.
func (r *Real) WriteFileAtomic(path string, data []byte, _ os.FileMode) error {
	return atomic.WriteFile(path, bytes.NewReader(data))
}

// OpenFile is a passthrough wrapper for [os.OpenFile], used by [Locker] to
// open the snapshot lock file.
func (r *Real) OpenFile(path string, flag int, perm os.FileMode) (File, error) {
	return os.OpenFile(path, flag, perm)
}

// MkdirAll is a passthrough wrapper for [os.MkdirAll], used by [Locker] to
// create the lock file's parent directory on first use.
func (r *Real) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

// Stat is a passthrough wrapper for [os.Stat], used by [Locker] to verify
// the file it flocked is still the one at the lock path.
func (r *Real) Stat(path string) (os.FileInfo, error) {
	return os.Stat(path)
}

// Compile-time interface check.
var _ FS = (*Real)(nil)
