package backend

import "sync"

// Memory implements Backend with an in-process map. It is the default
// backend for tests and doubles as a quota simulator: when constructed
// with a byte limit, writes that would push total usage past the limit
// fail with a *CapacityError, exactly like a full browser-style store.
type Memory struct {
	mu    sync.RWMutex
	data  map[string]string
	quota int64 // 0 means unlimited
}

// NewMemory creates an unlimited in-memory backend.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

// NewMemoryWithQuota creates an in-memory backend that rejects writes once
// total stored bytes (keys plus values) would exceed quota.
func NewMemoryWithQuota(quota int64) *Memory {
	return &Memory{data: make(map[string]string), quota: quota}
}

// Get retrieves the value stored under key.
func (m *Memory) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.data[key]
	return value, ok, nil
}

// Set stores value under key, enforcing the configured quota.
func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.quota > 0 {
		used := m.usedLocked()
		// An overwrite frees the old value first.
		if old, ok := m.data[key]; ok {
			used -= int64(len(key) + len(old))
		}
		if used+int64(len(key)+len(value)) > m.quota {
			return &CapacityError{Key: key, Attempted: int64(len(value)), Quota: m.quota}
		}
	}

	m.data[key] = value
	return nil
}

// Remove deletes key. Removing an absent key is a no-op.
func (m *Memory) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, key)
	return nil
}

// Keys returns every key currently present.
func (m *Memory) Keys() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.data))
	for key := range m.data {
		keys = append(keys, key)
	}
	return keys, nil
}

// Quota implements QuotaReporter.
func (m *Memory) Quota() int64 {
	return m.quota
}

// usedLocked sums stored bytes. Caller must hold the lock.
func (m *Memory) usedLocked() int64 {
	var used int64
	for key, value := range m.data {
		used += int64(len(key) + len(value))
	}
	return used
}
