package store

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrLocked is returned when another process already holds the store lock.
var ErrLocked = errors.New("store is locked by another process")

// Lock takes an exclusive advisory lock on the store so two writers never
// work on the same tree. Call the returned function to release it.
func (s *Store) Lock() (func() error, error) {
	if err := s.EnsureDir(s.root); err != nil {
		return nil, err
	}
	lock := flock.New(filepath.Join(s.root, lockFile))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock store %s: %w", s.root, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrLocked, s.root)
	}
	return lock.Unlock, nil
}
