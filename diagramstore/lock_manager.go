package diagramstore

import "sync"

// lockManager centralizes the store's locking strategy so every operation
// takes the right lock type in one place. Reads share an RLock; writes are
// exclusive. The store assumes a single logical writer, but the mutex makes
// incidental concurrent use safe rather than corrupting.
type lockManager struct {
	mu sync.RWMutex
}

// read runs fn under a shared read lock.
func (lm *lockManager) read(fn func() error) error {
	lm.mu.RLock()
	defer lm.mu.RUnlock()
	return fn()
}

// write runs fn under the exclusive write lock. The lock is released via
// defer, so it is freed even if fn panics.
func (lm *lockManager) write(fn func() error) error {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return fn()
}
