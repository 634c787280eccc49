package workflows

import (
	"github.com/orbital-labs/researchflow/internal/activities"
)

// Pipeline states. The current value is exposed through the status query and
// recorded in workflow history through normal activity sequencing.
const (
	StateStart           = "START"
	StateTriaging        = "TRIAGING"
	StateClarifying      = "CLARIFYING"
	StateAwaitingAnswers = "AWAITING_ANSWERS"
	StateEnriching       = "ENRICHING"
	StateEnrichingDirect = "ENRICHING_DIRECT"
	StatePlanning        = "PLANNING"
	StateSearching       = "SEARCHING"
	StateWriting         = "WRITING"
	StateRendering       = "RENDERING"
	StateDone            = "DONE"
	StateFailed          = "FAILED"
	StateCancelled       = "CANCELLED"
)

// ResearchRequest is the immutable workflow input.
type ResearchRequest struct {
	Query string `json:"query"`
	// PriorAnswers optionally carries clarification answers collected in an
	// earlier interaction; triage sees them and the gate may be skipped.
	PriorAnswers []activities.QA `json:"prior_answers,omitempty"`
}

// ResearchResult is the workflow output: the report plus the best-effort
// PDF and illustration outcomes and the persisted markdown location.
type ResearchResult struct {
	Report       activities.ReportData   `json:"report"`
	PDF          activities.PdfOutcome   `json:"pdf"`
	Image        activities.ImageOutcome `json:"image"`
	MarkdownPath string                  `json:"markdown_path,omitempty"`
}

// StatusReport answers the status query while the workflow runs and after it
// finishes (while history is retained).
type StatusReport struct {
	State            string                  `json:"state"`
	Query            string                  `json:"query"`
	Rationale        string                  `json:"rationale,omitempty"`
	PendingQuestions []string                `json:"pending_questions,omitempty"`
	AnswersReceived  int                     `json:"answers_received"`
	LastRejection    string                  `json:"last_rejection,omitempty"`
	PlanSize         int                     `json:"plan_size,omitempty"`
	SearchesDone     int                     `json:"searches_done,omitempty"`
	SearchesFailed   int                     `json:"searches_failed,omitempty"`
	ShortSummary     string                  `json:"short_summary,omitempty"`
	PDF              activities.PdfOutcome   `json:"pdf,omitempty"`
	Image            activities.ImageOutcome `json:"image,omitempty"`
}
