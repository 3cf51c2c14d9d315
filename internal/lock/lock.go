package lock

import (
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"
)

// FileName is the lock file kept in the engine data dir.
const FileName = "engine.lock"

// Acquire takes an exclusive non-blocking lock on <dataDir>/engine.lock.
// Two engines sharing one data dir would interleave snapshots and fight
// over the SQLite file, so the second instance must fail fast instead
// of waiting.
func Acquire(dataDir string) (*flock.Flock, error) {
	fl := flock.New(filepath.Join(dataDir, FileName))
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", fl.Path(), err)
	}
	if !ok {
		return nil, fmt.Errorf("another engine instance is already running (lock held: %s)", fl.Path())
	}
	return fl, nil
}
