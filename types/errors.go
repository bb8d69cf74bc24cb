package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for errors.Is matching across the subsystem.
var (
	// ErrStorageFull is reported when a write still fails after quota
	// cleanup has run and the one retry has been spent.
	ErrStorageFull = errors.New("storage full")

	// ErrNotFound is reported when a document ID does not exist.
	ErrNotFound = errors.New("diagram not found")
)

// ValidationError reports a malformed document on encode or decode.
type ValidationError struct {
	DocumentID string
	Reason     string
	Err        error
}

func (e *ValidationError) Error() string {
	if e.DocumentID != "" {
		return fmt.Sprintf("invalid diagram %q: %s", e.DocumentID, e.Reason)
	}
	return fmt.Sprintf("invalid diagram: %s", e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// SaveError reports a failed write. When the failure was capacity
// exhaustion that cleanup could not recover, it wraps ErrStorageFull.
type SaveError struct {
	Key string
	Err error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("failed to save %q: %v", e.Key, e.Err)
}

func (e *SaveError) Unwrap() error { return e.Err }

// LoadError reports a failed read of the backing store.
type LoadError struct {
	Key string
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load %q: %v", e.Key, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// IntegrityError reports corruption detected during a check that could
// not be repaired by dropping invalid entries.
type IntegrityError struct {
	Issues []string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity check failed with %d issue(s)", len(e.Issues))
}

// RestoreError reports a malformed backup snapshot. Restore never touches
// existing storage when returning one.
type RestoreError struct {
	Reason string
}

func (e *RestoreError) Error() string {
	return fmt.Sprintf("cannot restore backup: %s", e.Reason)
}
