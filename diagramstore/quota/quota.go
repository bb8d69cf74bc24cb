// Package quota implements the cleanup-and-retry policy that runs when a
// write is rejected for lack of space.
//
// The policy is deliberately one-shot: remove keys matching a fixed,
// ordered list of low-priority patterns (least valuable first), retry the
// original write exactly once, and stop. Automatically deleting anything
// beyond that list would mean destroying user data without a human
// decision, which this subsystem never does.
package quota

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/flowkit/diagramstore/diagramstore/backend"
	"github.com/flowkit/diagramstore/types"
)

// Event is emitted after every recovery attempt, successful or not, so a
// UI collaborator can surface what happened.
type Event struct {
	Message           string
	FreedBytes        int64
	RecoveryAttempted bool
}

// Observer receives quota events. Registered at construction time so the
// subsystem carries no dependency on any host event bus.
type Observer func(Event)

// Pattern matches backend keys for cleanup, either by prefix or exactly.
type Pattern struct {
	Prefix string // Matches every key with this prefix when set
	Exact  string // Matches one key exactly when Prefix is empty
}

func (p Pattern) matches(key string) bool {
	if p.Prefix != "" {
		return strings.HasPrefix(key, p.Prefix)
	}
	return key == p.Exact
}

// DefaultPatterns is the cleanup order: scratch data first, then caches,
// then previews, and the last-opened snapshot only as a final resort.
func DefaultPatterns() []Pattern {
	return []Pattern{
		{Prefix: types.TempPrefix},
		{Prefix: types.CachePrefix},
		{Prefix: types.PreviewPrefix},
		{Exact: types.LastOpenedDataKey},
		{Exact: types.LastOpenedIDKey},
	}
}

// Manager runs the cleanup policy against one backend.
type Manager struct {
	backend  backend.Backend
	patterns []Pattern
	observer Observer
	logger   *slog.Logger
}

// New creates a quota manager. A nil observer is allowed; a nil patterns
// slice selects DefaultPatterns.
func New(b backend.Backend, patterns []Pattern, observer Observer, logger *slog.Logger) *Manager {
	if patterns == nil {
		patterns = DefaultPatterns()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{backend: b, patterns: patterns, observer: observer, logger: logger}
}

// Recover handles a capacity-rejected Set: free low-priority keys, then
// retry the original write exactly once. It returns the bytes freed and
// whether the retry succeeded; when it did not, the error wraps
// types.ErrStorageFull. Cleanup is idempotent, so rerunning after an
// ambiguous failure cannot corrupt state further.
func (m *Manager) Recover(key, value string) (freed int64, err error) {
	freed, cleanErr := m.cleanup()
	if cleanErr != nil {
		m.logger.Warn("quota cleanup incomplete", "error", cleanErr, "freed_bytes", freed)
	}

	retryErr := m.backend.Set(key, value)

	recovered := retryErr == nil
	m.emit(recovered, freed)
	if recovered {
		m.logger.Info("write recovered after quota cleanup", "key", key, "freed_bytes", freed)
		return freed, nil
	}

	m.logger.Error("write still failing after quota cleanup", "key", key, "freed_bytes", freed, "error", retryErr)
	return freed, fmt.Errorf("retry after freeing %d bytes: %w", freed, types.ErrStorageFull)
}

// cleanup removes every key matching the pattern list, in priority order,
// and accumulates the bytes freed.
func (m *Manager) cleanup() (int64, error) {
	keys, err := m.backend.Keys()
	if err != nil {
		return 0, fmt.Errorf("failed to enumerate keys: %w", err)
	}

	var freed int64
	for _, pattern := range m.patterns {
		for _, key := range keys {
			if !pattern.matches(key) {
				continue
			}
			value, ok, err := m.backend.Get(key)
			if err == nil && ok {
				freed += int64(len(key) + len(value))
			}
			if err := m.backend.Remove(key); err != nil {
				return freed, fmt.Errorf("failed to remove %q: %w", key, err)
			}
		}
	}
	return freed, nil
}

func (m *Manager) emit(recovered bool, freed int64) {
	if m.observer == nil {
		return
	}
	message := "storage quota exceeded; freed low-priority data and retried"
	if !recovered {
		message = "storage quota exceeded; cleanup could not free enough space"
	}
	m.observer(Event{Message: message, FreedBytes: freed, RecoveryAttempted: true})
}
