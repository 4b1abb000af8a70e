// Package lifecycle enforces the fiscal document state machine and
// owns persistence of documents, events, and sequence counters.
package lifecycle

import (
	"github.com/rezonia/nfe-engine/internal/model"
)

// Legal transitions. DRAFT moves to PROCESSING once assembly and
// identifier generation succeed and a submission begins; PROCESSING
// terminates in ISSUED or ERROR; only ISSUED can become CANCELLED.
var validTransitions = map[model.DocumentStatus][]model.DocumentStatus{
	model.StatusDraft:      {model.StatusProcessing},
	model.StatusProcessing: {model.StatusIssued, model.StatusError},
	model.StatusIssued:     {model.StatusCancelled},
}

// CanTransition reports whether from -> to is a legal transition
func CanTransition(from, to model.DocumentStatus) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition moves the document to the new status, enforcing both the
// transition table and the ISSUED completeness invariant: a document
// is never marked ISSUED without an access key, protocol number, and
// signed payload.
func Transition(doc *model.FiscalDocument, to model.DocumentStatus) error {
	if !CanTransition(doc.Status, to) {
		return model.NewValidationError("status", doc.Status,
			"illegal transition to "+string(to))
	}
	if to == model.StatusIssued && !doc.CanIssue() {
		return model.NewValidationError("status", doc.Status,
			"document lacks access key, protocol, or signed payload")
	}
	doc.Status = to
	return nil
}

// MarkError records a terminal failure on the document. A document
// already terminal keeps its state; the error text is recorded either
// way for operator visibility.
func MarkError(doc *model.FiscalDocument, err error) {
	doc.LastError = err.Error()
	if CanTransition(doc.Status, model.StatusError) {
		doc.Status = model.StatusError
	}
}
