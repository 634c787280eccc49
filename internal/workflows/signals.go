package workflows

import (
	"github.com/orbital-labs/researchflow/internal/workflows/control"
)

// Signal and query names for the human interaction surface.
const (
	// SignalAnswers delivers clarification answers to a suspended gate.
	SignalAnswers = "clarification_answers_v1"
	// QueryPendingClarification returns the questions a suspended gate is
	// waiting on; empty when the gate is not suspended.
	QueryPendingClarification = "pending_clarification_v1"
	// QueryStatus returns the StatusReport.
	QueryStatus = "get_status_v1"

	// Re-exported so callers signal cancellation without importing control.
	SignalCancel     = control.SignalCancel
	QueryCancelState = control.QueryCancelState
)

// AnswersRequest carries clarification answers, positionally aligned with
// the pending question list.
type AnswersRequest struct {
	Answers     []string `json:"answers"`
	SubmittedBy string   `json:"submitted_by,omitempty"`
}

// CancelRequest re-exported for API callers.
type CancelRequest = control.CancelRequest
