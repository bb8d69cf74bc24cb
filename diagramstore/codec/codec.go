// Package codec serializes the document collection to and from the single
// string blob the backend stores under the collection key.
//
// Decode never returns an error for bad data: an absent blob is the normal
// "no data yet" state and yields an empty collection, and an unparseable
// blob yields an empty collection with the Corrupt flag set so the caller
// can decide whether to wipe the key and attempt recovery. Individual
// entries that fail schema validation are dropped whole and counted.
package codec

import (
	"encoding/json"

	"github.com/flowkit/diagramstore/internal/validation"
	"github.com/flowkit/diagramstore/types"
)

// DecodeResult carries a decoded collection plus what was lost on the way.
type DecodeResult struct {
	Documents []types.Document
	Dropped   int  // Entries discarded for failing schema validation
	Corrupt   bool // True when the blob itself was unparseable
}

// Encode validates and serializes a collection. Invalid documents are
// excluded and counted; each surviving payload has its icons array emptied
// to bound size. The returned dropped count is for caller logging.
func Encode(documents []types.Document) (string, int, error) {
	valid := make([]types.Document, 0, len(documents))
	dropped := 0
	for _, doc := range documents {
		if !validation.Valid(doc) {
			dropped++
			continue
		}
		stripped := doc
		stripped.Payload = doc.Payload.StripIcons()
		valid = append(valid, stripped)
	}

	data, err := json.Marshal(valid)
	if err != nil {
		return "", dropped, &types.ValidationError{Reason: "failed to serialize collection", Err: err}
	}
	return string(data), dropped, nil
}

// Decode parses a raw blob back into a collection. present is false when
// the collection key was absent, which decodes to an empty collection.
func Decode(raw string, present bool) DecodeResult {
	if !present || raw == "" {
		return DecodeResult{Documents: []types.Document{}}
	}

	var entries []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return DecodeResult{Documents: []types.Document{}, Corrupt: true}
	}

	result := DecodeResult{Documents: make([]types.Document, 0, len(entries))}
	for _, entry := range entries {
		var doc types.Document
		if err := json.Unmarshal(entry, &doc); err != nil {
			result.Dropped++
			continue
		}
		if !validation.Valid(doc) {
			result.Dropped++
			continue
		}
		result.Documents = append(result.Documents, doc)
	}
	return result
}
