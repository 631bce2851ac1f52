// Package lock keeps two runs of the job from overlapping, across
// processes, with an advisory file lock.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

var ErrLocked = errors.New("lock is held by another run")

type File struct {
	fl *flock.Flock
}

func New(path string) *File {
	return &File{fl: flock.New(path)}
}

// TryLock takes the lock without blocking. It returns ErrLocked when
// another holder has it.
func (f *File) TryLock() error {
	if err := os.MkdirAll(filepath.Dir(f.fl.Path()), 0o755); err != nil {
		return fmt.Errorf("lock dir: %w", err)
	}
	ok, err := f.fl.TryLock()
	if err != nil {
		return fmt.Errorf("lock %s: %w", f.fl.Path(), err)
	}
	if !ok {
		return ErrLocked
	}
	return nil
}

func (f *File) Unlock() error {
	return f.fl.Unlock()
}

func (f *File) Path() string { return f.fl.Path() }
