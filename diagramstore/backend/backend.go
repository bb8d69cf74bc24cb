// Package backend defines the minimal synchronous key/value primitive the
// diagram store persists into, and provides in-memory and file-based
// implementations.
//
// The one contract that matters beyond plain get/set/remove is failure
// classification: Set must report capacity exhaustion distinctly from any
// other I/O failure, because only capacity failures trigger the store's
// cleanup-and-retry path. Every failure is returned, never panicked, so
// control flow stays explicit for callers.
package backend

import (
	"errors"
	"fmt"
)

// ErrCapacity is the sentinel all capacity-exhaustion failures match via
// errors.Is. Concrete backends return a *CapacityError wrapping it.
var ErrCapacity = errors.New("storage capacity exceeded")

// CapacityError reports a write rejected because the backend quota is full.
type CapacityError struct {
	Key       string // Key the rejected write targeted
	Attempted int64  // Size of the rejected value in bytes
	Quota     int64  // Backend quota in bytes, 0 when unknown
}

// Error implements the error interface.
func (e *CapacityError) Error() string {
	if e.Quota > 0 {
		return fmt.Sprintf("capacity exceeded writing %q: %d bytes over a %d byte quota", e.Key, e.Attempted, e.Quota)
	}
	return fmt.Sprintf("capacity exceeded writing %q: %d bytes", e.Key, e.Attempted)
}

// Is makes errors.Is(err, ErrCapacity) succeed for capacity errors.
func (e *CapacityError) Is(target error) bool {
	return target == ErrCapacity
}

// IsCapacity reports whether err is a capacity-exhaustion failure.
func IsCapacity(err error) bool {
	return errors.Is(err, ErrCapacity)
}

// Backend is the storage primitive the diagram store runs on. Operations
// are synchronous and run to completion before returning; implementations
// must be safe for concurrent use.
type Backend interface {
	// Get retrieves the value stored under key. The second return is false
	// when the key does not exist; absence is a normal state, not an error.
	Get(key string) (string, bool, error)

	// Set stores value under key, overwriting any existing value. A write
	// rejected for lack of space returns a *CapacityError; any other
	// failure is a generic I/O error.
	Set(key, value string) error

	// Remove deletes key. Removing an absent key is a no-op.
	Remove(key string) error

	// Keys returns every key currently present. Order is not guaranteed.
	Keys() ([]string, error)
}

// QuotaReporter is implemented by backends that know their capacity.
// Backends without a fixed quota simply do not implement it.
type QuotaReporter interface {
	// Quota returns the backend capacity in bytes, 0 when unlimited.
	Quota() int64
}

// Quota returns b's quota when it reports one, 0 otherwise.
func Quota(b Backend) int64 {
	if qr, ok := b.(QuotaReporter); ok {
		return qr.Quota()
	}
	return 0
}
