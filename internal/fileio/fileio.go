// Package fileio provides the positional byte-I/O abstraction consumed by
// the queuefile engine.
//
// The main types are:
//   - [File]: the narrow capability set the engine needs from an open file
//   - [Real]: production implementation backed by [os.File]
//   - [Fault]: a decorator that can force deterministic write/sync failures,
//     used by tests to verify the engine's pre-commit abort semantics
package fileio

import "os"

// File is positional byte I/O on one open file.
//
// Unlike [os.File], reads and writes never move an implicit cursor: callers
// always pass an explicit offset. This lets the engine issue the split
// reads/writes a wrapped ring element requires without racing itself over a
// shared seek position.
//
// Implementations need not be safe for concurrent use; the queuefile engine
// serializes all access with its own mutex.
type File interface {
	// ReadAt reads len(p) bytes starting at off. See [os.File.ReadAt].
	ReadAt(p []byte, off int64) (int, error)

	// WriteAt writes len(p) bytes starting at off. See [os.File.WriteAt].
	WriteAt(p []byte, off int64) (int, error)

	// Sync forces data and metadata to stable storage. See [os.File.Sync].
	Sync() error

	// Truncate changes the file size. Also used to grow the file; bytes
	// beyond the previous length read back as zero. See [os.File.Truncate].
	Truncate(size int64) error

	// Len reports the current file length.
	Len() (int64, error)

	// Close releases the underlying handle. See [os.File.Close].
	Close() error
}

// Real implements [File] using the real filesystem.
//
// All methods are pure passthroughs to the [os] package with identical
// behavior and error semantics, except [Real.Len] which wraps [os.File.Stat].
type Real struct {
	f *os.File
}

// OpenReal opens path for read-write, creating it (mode 0644, before umask)
// if it does not already exist.
func OpenReal(path string) (*Real, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644) //nolint:gosec // path is caller-controlled by design
	if err != nil {
		return nil, err
	}

	return &Real{f: f}, nil
}

// NewReal wraps an already-open [os.File].
func NewReal(f *os.File) *Real {
	return &Real{f: f}
}

func (r *Real) ReadAt(p []byte, off int64) (int, error) {
	return r.f.ReadAt(p, off)
}

func (r *Real) WriteAt(p []byte, off int64) (int, error) {
	return r.f.WriteAt(p, off)
}

func (r *Real) Sync() error {
	return r.f.Sync()
}

func (r *Real) Truncate(size int64) error {
	return r.f.Truncate(size)
}

func (r *Real) Len() (int64, error) {
	info, err := r.f.Stat()
	if err != nil {
		return 0, err
	}

	return info.Size(), nil
}

func (r *Real) Close() error {
	return r.f.Close()
}

// Compile-time interface check.
var _ File = (*Real)(nil)
