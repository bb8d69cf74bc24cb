// Package types defines the core data model shared by every diagramstore
// package: the persisted Document, its Payload shape, the last-opened
// pointer, storage usage snapshots and the backup snapshot format.
package types

import (
	"encoding/json"
	"time"
)

// Document is one persisted diagram record.
type Document struct {
	ID        string    `json:"id"`        // Stable unique identifier
	Name      string    `json:"name"`      // User-facing diagram name
	Payload   Payload   `json:"data"`      // Diagram content, opaque to the store
	CreatedAt time.Time `json:"createdAt"` // Creation timestamp
	UpdatedAt time.Time `json:"updatedAt"` // Last update timestamp
}

// Clone returns a deep copy of the document. The store hands out clones so
// callers cannot mutate persisted state through shared slices.
func (d Document) Clone() Document {
	out := d
	out.Payload = d.Payload.Clone()
	return out
}

// LastOpened points at the most recently active document so callers can
// restore it without scanning the whole collection. Data is a snapshot of
// the document payload at the time it was recorded.
type LastOpened struct {
	ID   string          `json:"id"`
	Data json.RawMessage `json:"data"`
}

// StorageInfo is a derived, recomputed-on-demand view of backend usage.
// It is never persisted.
type StorageInfo struct {
	UsedBytes     int64 `json:"used"`      // Total bytes across all keys
	DocumentBytes int64 `json:"diagrams"`  // Bytes held by diagram data
	OtherBytes    int64 `json:"otherData"` // Everything else (temp, cache, pointers)
	QuotaBytes    int64 `json:"quota"`     // Backend quota, 0 when unknown
}
