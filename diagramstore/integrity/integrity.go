// Package integrity scans a decoded collection for structural violations.
// The checker only evaluates and recommends; persisting a repaired
// collection is the store's responsibility, which keeps this package free
// of side effects and trivially testable.
package integrity

import (
	"github.com/flowkit/diagramstore/internal/validation"
	"github.com/flowkit/diagramstore/types"
)

// Report is the outcome of a collection check.
type Report struct {
	IsValid   bool             // True when every document passed
	Issues    []string         // Human-readable violations, keyed by document name/id
	AutoFixed bool             // True when Repaired differs from the input
	Repaired  []types.Document // The valid subset, in original order
}

// Check validates every document in the collection. When any document
// fails, Repaired holds only the valid subset and AutoFixed is true; the
// caller is expected to persist Repaired back through the codec.
func Check(documents []types.Document) Report {
	report := Report{
		IsValid:  true,
		Repaired: make([]types.Document, 0, len(documents)),
	}

	seen := make(map[string]bool, len(documents))
	for _, doc := range documents {
		issues := validation.CheckDocument(doc)
		if len(issues) > 0 {
			report.IsValid = false
			report.AutoFixed = true
			for _, issue := range issues {
				report.Issues = append(report.Issues, issue.String())
			}
			continue
		}
		if seen[doc.ID] {
			// Duplicate IDs violate collection uniqueness; keep the first.
			report.IsValid = false
			report.AutoFixed = true
			report.Issues = append(report.Issues, "diagram "+quoteLabel(doc)+": duplicate id")
			continue
		}
		seen[doc.ID] = true
		report.Repaired = append(report.Repaired, doc)
	}
	return report
}

// CheckLastOpened validates the last-opened pointer separately from the
// collection. When it is malformed the recommendation is to clear it, not
// repair it.
func CheckLastOpened(lp types.LastOpened) (issues []string, clear bool) {
	for _, issue := range validation.CheckLastOpened(lp) {
		issues = append(issues, issue.String())
	}
	return issues, len(issues) > 0
}

func quoteLabel(doc types.Document) string {
	if doc.Name != "" {
		return "\"" + doc.Name + "\""
	}
	return "\"" + doc.ID + "\""
}
