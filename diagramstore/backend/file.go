package backend

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/gofrs/flock"
)

const (
	lockTimeout       = 3 * time.Second
	lockRetryInterval = 100 * time.Millisecond
)

// File implements Backend over a directory with one file per key. Key names
// are path-escaped into filenames so arbitrary keys stay filesystem-safe.
// A flock-guarded lock file serializes access across processes; writes go
// through a temp file and rename so readers never observe partial values.
type File struct {
	dir      string
	quota    int64 // 0 means unlimited
	fileLock *flock.Flock
	mu       sync.RWMutex
}

// NewFile creates a file backend rooted at dir, creating it if needed.
// A quota of 0 means unlimited; otherwise writes that would push total
// stored bytes past the quota fail with a *CapacityError.
func NewFile(dir string, quota int64) (*File, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create backend directory: %w", err)
	}
	return &File{
		dir:      dir,
		quota:    quota,
		fileLock: flock.New(filepath.Join(dir, ".lock")),
	}, nil
}

// Get retrieves the value stored under key.
func (f *File) Get(key string) (string, bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	unlock, err := f.acquireFileLock()
	if err != nil {
		return "", false, err
	}
	defer unlock()

	data, err := os.ReadFile(f.keyPath(key))
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read key %q: %w", key, err)
	}
	return string(data), true, nil
}

// Set stores value under key, enforcing the configured quota.
func (f *File) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	unlock, err := f.acquireFileLock()
	if err != nil {
		return err
	}
	defer unlock()

	if f.quota > 0 {
		used, err := f.usedLocked()
		if err != nil {
			return err
		}
		if old, err := os.Stat(f.keyPath(key)); err == nil {
			used -= int64(len(key)) + old.Size()
		}
		if used+int64(len(key)+len(value)) > f.quota {
			return &CapacityError{Key: key, Attempted: int64(len(value)), Quota: f.quota}
		}
	}

	// Write atomically: temp file first, then rename into place.
	path := f.keyPath(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(value), 0644); err != nil {
		_ = os.Remove(tmp)
		if errors.Is(err, syscall.ENOSPC) {
			return &CapacityError{Key: key, Attempted: int64(len(value)), Quota: f.quota}
		}
		return fmt.Errorf("failed to write key %q: %w", key, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to rename key %q into place: %w", key, err)
	}
	return nil
}

// Remove deletes key. Removing an absent key is a no-op.
func (f *File) Remove(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	unlock, err := f.acquireFileLock()
	if err != nil {
		return err
	}
	defer unlock()

	if err := os.Remove(f.keyPath(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove key %q: %w", key, err)
	}
	return nil
}

// Keys returns every key currently present.
func (f *File) Keys() ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	unlock, err := f.acquireFileLock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	entries, err := f.entriesLocked()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(entries))
	for key := range entries {
		keys = append(keys, key)
	}
	return keys, nil
}

// Quota implements QuotaReporter.
func (f *File) Quota() int64 {
	return f.quota
}

// Close removes the lock file.
func (f *File) Close() error {
	return os.Remove(filepath.Join(f.dir, ".lock"))
}

func (f *File) keyPath(key string) string {
	return filepath.Join(f.dir, url.PathEscape(key)+".val")
}

// entriesLocked maps keys to value sizes. Caller must hold the locks.
func (f *File) entriesLocked() (map[string]int64, error) {
	dirEntries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list backend directory: %w", err)
	}

	entries := make(map[string]int64, len(dirEntries))
	for _, entry := range dirEntries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".val" {
			continue
		}
		key, err := url.PathUnescape(name[:len(name)-len(".val")])
		if err != nil {
			// Not one of ours; skip it.
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		entries[key] = info.Size()
	}
	return entries, nil
}

func (f *File) usedLocked() (int64, error) {
	entries, err := f.entriesLocked()
	if err != nil {
		return 0, err
	}
	var used int64
	for key, size := range entries {
		used += int64(len(key)) + size
	}
	return used, nil
}

func (f *File) acquireFileLock() (func(), error) {
	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()

	locked, err := f.fileLock.TryLockContext(ctx, lockRetryInterval)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("could not acquire file lock")
	}
	return func() { _ = f.fileLock.Unlock() }, nil
}
