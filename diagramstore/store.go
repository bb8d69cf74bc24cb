// Package diagramstore persists diagram documents in a size-constrained
// key/value backend and keeps them readable through the failure modes that
// environment produces: writes rejected for lack of space, corrupted
// blobs, and structurally invalid entries.
//
// The store composes four collaborators: a codec that serializes the
// collection, an integrity checker that filters invalid entries, a quota
// manager that frees low-priority keys and retries a rejected write once,
// and a backup service for snapshot export/restore plus last-resort orphan
// recovery. Callers own the backend and inject it, which makes the whole
// store testable against an in-memory fake.
package diagramstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/flowkit/diagramstore/diagramstore/backend"
	"github.com/flowkit/diagramstore/diagramstore/backup"
	"github.com/flowkit/diagramstore/diagramstore/codec"
	"github.com/flowkit/diagramstore/diagramstore/integrity"
	"github.com/flowkit/diagramstore/diagramstore/quota"
	"github.com/flowkit/diagramstore/types"
)

// Store is the public surface external collaborators persist through.
// Every operation returns an explicit, typed error; none panics across
// this boundary.
type Store interface {
	// Save persists doc, replacing any existing document with the same ID
	// in place. An empty ID gets a generated one. The stored document,
	// including assigned ID and timestamps, is returned.
	Save(doc types.Document) (types.Document, error)

	// Load returns the full collection. Corruption and invalid entries are
	// recovered from, never surfaced as panics: a corrupt blob is cleared
	// and reconstruction from orphaned keys attempted, and invalid entries
	// are dropped with the cleaned collection rewritten.
	Load() ([]types.Document, error)

	// Get returns one document by ID, or types.ErrNotFound.
	Get(id string) (types.Document, error)

	// Delete removes one document by ID, or returns types.ErrNotFound.
	Delete(id string) error

	// SetLastOpened records the most recently active document and a
	// snapshot of its payload.
	SetLastOpened(id string, data json.RawMessage) error

	// LastOpened returns the recorded pointer, or nil when none is set.
	LastOpened() (*types.LastOpened, error)

	// ClearLastOpened removes the pointer.
	ClearLastOpened() error

	// Info recomputes storage usage from the backend.
	Info() (types.StorageInfo, error)

	// CheckIntegrity scans the persisted collection, rewrites the cleaned
	// collection when violations are found, and clears a malformed
	// last-opened pointer.
	CheckIntegrity() (integrity.Report, error)

	// CreateBackup builds a snapshot of the whole store.
	CreateBackup() (types.BackupSnapshot, error)

	// RestoreBackup validates a snapshot and rewrites the store from it,
	// returning the number of documents restored. An invalid snapshot is
	// rejected without touching existing data.
	RestoreBackup(snapshot types.BackupSnapshot) (int, error)

	// Close releases backend resources when the backend holds any.
	Close() error
}

// documentStore is the concrete store implementation.
type documentStore struct {
	backend backend.Backend
	quota   *quota.Manager
	backup  *backup.Service
	logger  *slog.Logger
	locks   lockManager
}

// New creates a store over the given backend. A nil backend is the one
// fatal condition: the subsystem cannot function without storage.
func New(b backend.Backend, opts ...Option) (Store, error) {
	if b == nil {
		return nil, errors.New("diagramstore: no storage backend available")
	}

	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	return &documentStore{
		backend: b,
		quota:   quota.New(b, options.cleanupPatterns, options.observer, options.logger),
		backup:  backup.NewService(b, options.logger),
		logger:  options.logger,
	}, nil
}

func (s *documentStore) Save(doc types.Document) (types.Document, error) {
	if doc.Name == "" {
		return types.Document{}, &types.ValidationError{DocumentID: doc.ID, Reason: "missing name"}
	}

	// Callers replace documents wholesale, so a nil required array is a
	// fresh empty one, not a schema violation.
	doc.Payload = normalizePayload(doc.Payload)

	now := time.Now()
	if doc.ID == "" {
		doc.ID = uuid.New().String()
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	var stored types.Document
	err := s.locks.write(func() error {
		documents, _, err := s.loadCollection()
		if err != nil {
			return err
		}

		replaced := false
		for i := range documents {
			if documents[i].ID == doc.ID {
				if doc.CreatedAt.IsZero() {
					doc.CreatedAt = documents[i].CreatedAt
				}
				documents[i] = doc
				replaced = true
				break
			}
		}
		if !replaced {
			if doc.CreatedAt.IsZero() {
				doc.CreatedAt = now
			}
			documents = append(documents, doc)
		}

		if err := s.writeCollection(documents); err != nil {
			return err
		}
		stored = doc.Clone()
		stored.Payload.Icons = []json.RawMessage{}
		return nil
	})
	if err != nil {
		return types.Document{}, err
	}
	return stored, nil
}

func (s *documentStore) Load() ([]types.Document, error) {
	var documents []types.Document
	err := s.locks.write(func() error {
		loaded, dropped, err := s.loadCollection()
		if err != nil {
			return err
		}

		report := integrity.Check(loaded)
		if report.AutoFixed {
			s.logger.Warn("dropping invalid diagrams on load",
				"dropped", len(loaded)-len(report.Repaired),
				"issues", report.Issues)
		}
		if report.AutoFixed || dropped > 0 {
			// Entries were lost in decode or in the check; the cleaned
			// collection becomes the persisted truth.
			if err := s.writeCollection(report.Repaired); err != nil {
				return err
			}
		}
		documents = report.Repaired
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cloneAll(documents), nil
}

func (s *documentStore) Get(id string) (types.Document, error) {
	var found types.Document
	// Write lock: loading may clear a corrupt blob and persist recovery.
	err := s.locks.write(func() error {
		documents, _, err := s.loadCollection()
		if err != nil {
			return err
		}
		for _, doc := range documents {
			if doc.ID == id {
				found = doc.Clone()
				return nil
			}
		}
		return fmt.Errorf("%w: %s", types.ErrNotFound, id)
	})
	if err != nil {
		return types.Document{}, err
	}
	return found, nil
}

func (s *documentStore) Delete(id string) error {
	return s.locks.write(func() error {
		documents, _, err := s.loadCollection()
		if err != nil {
			return err
		}
		for i, doc := range documents {
			if doc.ID == id {
				documents = append(documents[:i], documents[i+1:]...)
				return s.writeCollection(documents)
			}
		}
		return fmt.Errorf("%w: %s", types.ErrNotFound, id)
	})
}

func (s *documentStore) SetLastOpened(id string, data json.RawMessage) error {
	if id == "" {
		return &types.ValidationError{Reason: "last-opened pointer needs an id"}
	}
	return s.locks.write(func() error {
		if err := s.set(types.LastOpenedIDKey, id); err != nil {
			return err
		}
		return s.set(types.LastOpenedDataKey, string(data))
	})
}

func (s *documentStore) LastOpened() (*types.LastOpened, error) {
	var pointer *types.LastOpened
	err := s.locks.read(func() error {
		id, ok, err := s.backend.Get(types.LastOpenedIDKey)
		if err != nil {
			return &types.LoadError{Key: types.LastOpenedIDKey, Err: err}
		}
		if !ok || id == "" {
			return nil
		}
		data, _, err := s.backend.Get(types.LastOpenedDataKey)
		if err != nil {
			return &types.LoadError{Key: types.LastOpenedDataKey, Err: err}
		}
		pointer = &types.LastOpened{ID: id, Data: json.RawMessage(data)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pointer, nil
}

func (s *documentStore) ClearLastOpened() error {
	return s.locks.write(func() error {
		if err := s.backend.Remove(types.LastOpenedIDKey); err != nil {
			return fmt.Errorf("failed to clear last-opened id: %w", err)
		}
		if err := s.backend.Remove(types.LastOpenedDataKey); err != nil {
			return fmt.Errorf("failed to clear last-opened data: %w", err)
		}
		return nil
	})
}

func (s *documentStore) Info() (types.StorageInfo, error) {
	var info types.StorageInfo
	err := s.locks.read(func() error {
		keys, err := s.backend.Keys()
		if err != nil {
			return fmt.Errorf("failed to enumerate keys: %w", err)
		}
		for _, key := range keys {
			value, ok, err := s.backend.Get(key)
			if err != nil || !ok {
				continue
			}
			size := int64(len(key) + len(value))
			info.UsedBytes += size
			if key == types.DiagramsKey || strings.HasPrefix(key, types.LegacyDocumentPrefix) {
				info.DocumentBytes += size
			}
		}
		info.OtherBytes = info.UsedBytes - info.DocumentBytes
		info.QuotaBytes = backend.Quota(s.backend)
		return nil
	})
	if err != nil {
		return types.StorageInfo{}, err
	}
	return info, nil
}

func (s *documentStore) CheckIntegrity() (integrity.Report, error) {
	var report integrity.Report
	err := s.locks.write(func() error {
		documents, dropped, err := s.loadCollection()
		if err != nil {
			return err
		}
		report = integrity.Check(documents)
		if report.AutoFixed || dropped > 0 {
			if err := s.writeCollection(report.Repaired); err != nil {
				return err
			}
		}

		// The last-opened pointer is checked separately; malformed
		// pointers are cleared, not repaired.
		id, ok, err := s.backend.Get(types.LastOpenedIDKey)
		if err != nil {
			return &types.LoadError{Key: types.LastOpenedIDKey, Err: err}
		}
		if ok {
			data, _, err := s.backend.Get(types.LastOpenedDataKey)
			if err != nil {
				return &types.LoadError{Key: types.LastOpenedDataKey, Err: err}
			}
			issues, clear := integrity.CheckLastOpened(types.LastOpened{ID: id, Data: json.RawMessage(data)})
			if clear {
				report.IsValid = false
				report.Issues = append(report.Issues, issues...)
				if err := s.backend.Remove(types.LastOpenedIDKey); err != nil {
					return fmt.Errorf("failed to clear last-opened id: %w", err)
				}
				if err := s.backend.Remove(types.LastOpenedDataKey); err != nil {
					return fmt.Errorf("failed to clear last-opened data: %w", err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return integrity.Report{}, err
	}
	return report, nil
}

func (s *documentStore) CreateBackup() (types.BackupSnapshot, error) {
	documents, err := s.Load()
	if err != nil {
		return types.BackupSnapshot{}, err
	}
	lastOpened, err := s.LastOpened()
	if err != nil {
		return types.BackupSnapshot{}, err
	}
	info, err := s.Info()
	if err != nil {
		return types.BackupSnapshot{}, err
	}
	return backup.Create(documents, lastOpened, info), nil
}

func (s *documentStore) RestoreBackup(snapshot types.BackupSnapshot) (int, error) {
	var restored int
	err := s.locks.write(func() error {
		count, err := s.backup.Restore(snapshot)
		if err != nil {
			return err
		}
		restored = count
		return nil
	})
	if err != nil {
		return 0, err
	}
	return restored, nil
}

func (s *documentStore) Close() error {
	if closer, ok := s.backend.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

// loadCollection reads and decodes the collection key. A corrupt blob is
// cleared and orphan recovery attempted; whatever that salvages is
// persisted and returned. Caller must hold the write lock, since the
// corruption path mutates the backend.
func (s *documentStore) loadCollection() ([]types.Document, int, error) {
	raw, present, err := s.backend.Get(types.DiagramsKey)
	if err != nil {
		return nil, 0, &types.LoadError{Key: types.DiagramsKey, Err: err}
	}

	result := codec.Decode(raw, present)
	if result.Corrupt {
		s.logger.Error("diagram collection is unreadable, attempting recovery", "key", types.DiagramsKey)
		if err := s.backend.Remove(types.DiagramsKey); err != nil {
			return nil, 0, fmt.Errorf("failed to clear corrupt collection: %w", err)
		}
		recovered := s.backup.RecoverStorage()
		if recovered.RecoveredCount > 0 {
			if err := s.writeCollection(recovered.Documents); err != nil {
				return nil, 0, err
			}
		}
		return recovered.Documents, 0, nil
	}

	if result.Dropped > 0 {
		s.logger.Warn("ignored invalid entries in diagram collection", "dropped", result.Dropped)
	}
	return result.Documents, result.Dropped, nil
}

// writeCollection encodes and persists the collection, running quota
// recovery when the backend rejects the write for lack of space. Caller
// must hold the write lock.
func (s *documentStore) writeCollection(documents []types.Document) error {
	encoded, dropped, err := codec.Encode(documents)
	if err != nil {
		return err
	}
	if dropped > 0 {
		s.logger.Warn("excluded invalid diagrams from write", "dropped", dropped)
	}
	return s.set(types.DiagramsKey, encoded)
}

// set writes one key with the capacity-recovery state machine: a capacity
// rejection triggers one cleanup pass and exactly one retry; every other
// failure is reported immediately with no retry.
func (s *documentStore) set(key, value string) error {
	err := s.backend.Set(key, value)
	if err == nil {
		return nil
	}
	if !backend.IsCapacity(err) {
		return &types.SaveError{Key: key, Err: err}
	}

	s.logger.Warn("write rejected for capacity, running quota cleanup", "key", key, "size", len(value))
	if _, err := s.quota.Recover(key, value); err != nil {
		return &types.SaveError{Key: key, Err: err}
	}
	return nil
}

func normalizePayload(p types.Payload) types.Payload {
	if p.Items == nil {
		p.Items = []json.RawMessage{}
	}
	if p.Views == nil {
		p.Views = []json.RawMessage{}
	}
	if p.Colors == nil {
		p.Colors = []json.RawMessage{}
	}
	return p
}

func cloneAll(documents []types.Document) []types.Document {
	out := make([]types.Document, len(documents))
	for i, doc := range documents {
		out[i] = doc.Clone()
	}
	return out
}
