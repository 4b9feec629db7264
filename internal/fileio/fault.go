package fileio

import (
	"errors"
	"sync"
)

// InjectedError marks an error as intentionally injected by [Fault].
//
// It wraps the underlying error so errors.Is/As continue to work against
// whatever sentinel the caller forced (typically [ErrInjected]).
type InjectedError struct {
	Err error
}

func (e *InjectedError) Error() string { return e.Err.Error() }

func (e *InjectedError) Unwrap() error { return e.Err }

// ErrInjected is the default underlying error used by [Fault] when the
// caller didn't configure a more specific one.
var ErrInjected = errors.New("fileio: injected failure")

// IsInjected reports whether err (or any wrapped error) was injected by a
// [Fault] decorator.
func IsInjected(err error) bool {
	var injected *InjectedError

	return errors.As(err, &injected)
}

// Fault decorates a [File] with deterministic, instance-scoped fault
// injection. It exists so tests (and the CLI's debug commands) can verify
// the engine's pre-commit abort semantics without any package-level or
// process-wide mutable state — each [Fault] instance owns its own toggles,
// independent of any other queue file open in the same process.
//
// A toggle stays armed until explicitly cleared; it is not a one-shot.
type Fault struct {
	mu sync.Mutex

	file File

	failWrites bool
	failSync   bool
}

// Wrap returns a [Fault] decorator around file. Until armed, it passes every
// call straight through.
func Wrap(file File) *Fault {
	return &Fault{file: file}
}

// SetFailWrites arms or disarms forced WriteAt and Truncate failures.
func (f *Fault) SetFailWrites(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.failWrites = fail
}

// SetFailSync arms or disarms forced Sync failures.
func (f *Fault) SetFailSync(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.failSync = fail
}

// SetFailAll is a convenience for arming WriteAt, Truncate and Sync failures
// at once, matching the test hook described by the engine's spec ("forces all
// subsequent write and sync calls to return error until cleared").
func (f *Fault) SetFailAll(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.failWrites = fail
	f.failSync = fail
}

func (f *Fault) ReadAt(p []byte, off int64) (int, error) {
	return f.file.ReadAt(p, off)
}

func (f *Fault) WriteAt(p []byte, off int64) (int, error) {
	f.mu.Lock()
	fail := f.failWrites
	f.mu.Unlock()

	if fail {
		return 0, &InjectedError{Err: ErrInjected}
	}

	return f.file.WriteAt(p, off)
}

func (f *Fault) Sync() error {
	f.mu.Lock()
	fail := f.failSync
	f.mu.Unlock()

	if fail {
		return &InjectedError{Err: ErrInjected}
	}

	return f.file.Sync()
}

func (f *Fault) Truncate(size int64) error {
	f.mu.Lock()
	fail := f.failWrites
	f.mu.Unlock()

	if fail {
		return &InjectedError{Err: ErrInjected}
	}

	return f.file.Truncate(size)
}

func (f *Fault) Len() (int64, error) {
	return f.file.Len()
}

func (f *Fault) Close() error {
	return f.file.Close()
}

// Compile-time interface check.
var _ File = (*Fault)(nil)
