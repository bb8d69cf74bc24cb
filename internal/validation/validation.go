// Package validation holds the document schema checks shared by the codec
// and the integrity checker, so both enforce exactly the same rules.
package validation

import (
	"encoding/json"
	"fmt"

	"github.com/flowkit/diagramstore/types"
)

// Issue describes one schema violation on one document, in human-readable
// form keyed by the document's name or ID.
type Issue struct {
	DocumentID string
	Message    string
}

// String renders the issue the way the integrity report exposes it.
func (i Issue) String() string {
	return i.Message
}

// CheckDocument validates a single document against the storage schema:
// non-empty id and name, and payload whose required array fields (items,
// views, colors) are arrays. It returns every violation found, not just
// the first; an empty result means the document is valid.
//
// Any violation invalidates the whole document. Partially trusting an
// entry risks persisting a payload that looks intact but has silently
// lost user content.
func CheckDocument(doc types.Document) []Issue {
	label := doc.Name
	if label == "" {
		label = doc.ID
	}
	if label == "" {
		label = "(unnamed)"
	}

	var issues []Issue
	add := func(format string, args ...interface{}) {
		issues = append(issues, Issue{
			DocumentID: doc.ID,
			Message:    fmt.Sprintf("diagram %q: ", label) + fmt.Sprintf(format, args...),
		})
	}

	if doc.ID == "" {
		add("missing id")
	}
	if doc.Name == "" {
		add("missing name")
	}
	if doc.Payload.Items == nil {
		add("payload field %q is not an array", "items")
	}
	if doc.Payload.Views == nil {
		add("payload field %q is not an array", "views")
	}
	if doc.Payload.Colors == nil {
		add("payload field %q is not an array", "colors")
	}
	return issues
}

// Valid reports whether doc passes CheckDocument with no issues.
func Valid(doc types.Document) bool {
	return len(CheckDocument(doc)) == 0
}

// CheckLastOpened validates the last-opened pointer. A pointer with an
// empty id or a missing or malformed payload snapshot is recommended for
// clearing rather than repaired, since it is only a convenience record.
func CheckLastOpened(lp types.LastOpened) []Issue {
	var issues []Issue
	if lp.ID == "" {
		issues = append(issues, Issue{Message: "last-opened pointer: missing id"})
	}
	switch {
	case len(lp.Data) == 0:
		issues = append(issues, Issue{DocumentID: lp.ID, Message: "last-opened pointer: missing payload snapshot"})
	case !json.Valid(lp.Data):
		issues = append(issues, Issue{DocumentID: lp.ID, Message: "last-opened pointer: malformed payload snapshot"})
	}
	return issues
}
