package backup

import (
	"encoding/json"
	"strings"

	"github.com/flowkit/diagramstore/internal/validation"
	"github.com/flowkit/diagramstore/types"
)

// RecoverResult is what the orphan-key scan managed to salvage.
type RecoverResult struct {
	RecoveredCount int
	Documents      []types.Document
}

// RecoverStorage is the last-resort path used when the collection key is
// unreadable but the backend still holds per-document keys left behind by
// older schema versions or partial writes. It reconstructs a collection
// from whatever parses and validates, first entry winning on duplicate
// IDs. The result is explicitly allowed to be partial; this exists to
// reduce total data loss, not to guarantee fidelity.
func (s *Service) RecoverStorage() RecoverResult {
	keys, err := s.backend.Keys()
	if err != nil {
		s.logger.Warn("orphan recovery could not enumerate keys", "error", err)
		return RecoverResult{Documents: []types.Document{}}
	}

	result := RecoverResult{Documents: []types.Document{}}
	seen := make(map[string]bool)
	for _, key := range keys {
		if !strings.HasPrefix(key, types.LegacyDocumentPrefix) {
			continue
		}
		value, ok, err := s.backend.Get(key)
		if err != nil || !ok {
			continue
		}
		var doc types.Document
		if err := json.Unmarshal([]byte(value), &doc); err != nil {
			continue
		}
		if !validation.Valid(doc) || seen[doc.ID] {
			continue
		}
		seen[doc.ID] = true
		result.Documents = append(result.Documents, doc)
		result.RecoveredCount++
	}

	if result.RecoveredCount > 0 {
		s.logger.Info("reconstructed diagrams from orphaned keys", "recovered", result.RecoveredCount)
	}
	return result
}
