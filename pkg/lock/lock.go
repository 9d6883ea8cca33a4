// Package lock holds exclusive advisory locks for the duration of a run so
// two runs never work on the same store or download directory at once.
package lock

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	perrors "github.com/mrmachine/transmission-process-torrents/pkg/errors"
	"github.com/mrmachine/transmission-process-torrents/pkg/logging"
)

// Lock is an exclusive flock(2) on a file or directory.
type Lock struct {
	path string
	file *os.File
}

// Acquire takes an exclusive lock on path without blocking. Directories can
// be locked directly. A path already locked, by this process or another,
// yields an ErrLocked error.
func Acquire(path string) (*Lock, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, perrors.Wrapf(err, perrors.ErrFileAccess, "cannot open %s for locking", path)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, perrors.Newf(perrors.ErrLocked, "%s is in use by another run", path).
				WithDetail("path", path)
		}
		return nil, perrors.Wrapf(err, perrors.ErrLocked, "cannot lock %s", path).
			WithDetail("path", path)
	}

	return &Lock{path: path, file: f}, nil
}

// Path returns the locked path.
func (l *Lock) Path() string {
	return l.path
}

// Release drops the lock. Releasing twice is a no-op.
func (l *Lock) Release() error {
	if l.file == nil {
		return nil
	}
	unlockErr := unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	closeErr := l.file.Close()
	l.file = nil
	if unlockErr != nil {
		return perrors.Wrapf(unlockErr, perrors.ErrFileAccess, "cannot unlock %s", l.path)
	}
	if closeErr != nil {
		return perrors.Wrapf(closeErr, perrors.ErrFileAccess, "cannot close %s", l.path)
	}
	return nil
}

// Set is a group of locks taken together and released together.
type Set struct {
	locks  []*Lock
	logger zerolog.Logger
}

// AcquireAll locks every path in order. Paths are compared after cleaning
// and each is locked once. If any lock fails, the ones already held are
// released and the error is returned.
func AcquireAll(paths []string) (*Set, error) {
	s := &Set{logger: logging.GetLogger("lock")}
	seen := make(map[string]bool, len(paths))

	for _, path := range paths {
		path = filepath.Clean(path)
		if seen[path] {
			continue
		}
		seen[path] = true

		l, err := Acquire(path)
		if err != nil {
			_ = s.Release()
			return nil, err
		}
		s.logger.Debug().Str("path", path).Msg("Lock acquired")
		s.locks = append(s.locks, l)
	}
	return s, nil
}

// Paths returns the locked paths in acquisition order.
func (s *Set) Paths() []string {
	paths := make([]string, 0, len(s.locks))
	for _, l := range s.locks {
		paths = append(paths, l.Path())
	}
	return paths
}

// Release drops every lock in reverse order and returns the first error.
func (s *Set) Release() error {
	var first error
	for i := len(s.locks) - 1; i >= 0; i-- {
		if err := s.locks[i].Release(); err != nil && first == nil {
			first = err
		}
		s.logger.Trace().Str("path", s.locks[i].Path()).Msg("Lock released")
	}
	s.locks = nil
	return first
}
