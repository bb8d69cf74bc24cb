package testutil

import (
	"sync"

	"github.com/flowkit/diagramstore/diagramstore/backend"
)

// FlakyBackend wraps another backend and injects failures per operation,
// for exercising the non-capacity I/O error paths.
type FlakyBackend struct {
	Inner backend.Backend

	mu        sync.Mutex
	getErr    error
	setErr    error
	removeErr error
	keysErr   error
	setCalls  int
	failSets  int // Number of upcoming Set calls that fail with setErr
}

// NewFlaky wraps inner with no failures armed.
func NewFlaky(inner backend.Backend) *FlakyBackend {
	return &FlakyBackend{Inner: inner}
}

// FailGets makes every Get return err.
func (f *FlakyBackend) FailGets(err error) { f.mu.Lock(); f.getErr = err; f.mu.Unlock() }

// FailRemoves makes every Remove return err.
func (f *FlakyBackend) FailRemoves(err error) { f.mu.Lock(); f.removeErr = err; f.mu.Unlock() }

// FailKeys makes every Keys return err.
func (f *FlakyBackend) FailKeys(err error) { f.mu.Lock(); f.keysErr = err; f.mu.Unlock() }

// FailNextSets makes the next n Set calls return err, then heals.
func (f *FlakyBackend) FailNextSets(n int, err error) {
	f.mu.Lock()
	f.setErr = err
	f.failSets = n
	f.mu.Unlock()
}

// SetCalls reports how many Set calls reached this backend.
func (f *FlakyBackend) SetCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.setCalls
}

// Get implements backend.Backend.
func (f *FlakyBackend) Get(key string) (string, bool, error) {
	f.mu.Lock()
	err := f.getErr
	f.mu.Unlock()
	if err != nil {
		return "", false, err
	}
	return f.Inner.Get(key)
}

// Set implements backend.Backend.
func (f *FlakyBackend) Set(key, value string) error {
	f.mu.Lock()
	f.setCalls++
	var err error
	if f.failSets > 0 {
		f.failSets--
		err = f.setErr
	}
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.Inner.Set(key, value)
}

// Remove implements backend.Backend.
func (f *FlakyBackend) Remove(key string) error {
	f.mu.Lock()
	err := f.removeErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.Inner.Remove(key)
}

// Keys implements backend.Backend.
func (f *FlakyBackend) Keys() ([]string, error) {
	f.mu.Lock()
	err := f.keysErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.Inner.Keys()
}
