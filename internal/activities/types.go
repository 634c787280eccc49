package activities

import "time"

// TriageInput is the input for the triage stage.
type TriageInput struct {
	Query string `json:"query"`
	// PriorAnswers carries clarification answers supplied with the original
	// request, so triage does not re-ask what the user already answered.
	PriorAnswers []QA `json:"prior_answers,omitempty"`
}

// QA is one question/answer pair.
type QA struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// TriageDecision is the triage stage outcome.
type TriageDecision struct {
	NeedsClarification bool   `json:"needs_clarification"`
	Rationale          string `json:"rationale"`
}

// ClarifyInput is the input for the clarification-question stage.
type ClarifyInput struct {
	Query        string `json:"query"`
	MaxQuestions int    `json:"max_questions"`
}

// ClarificationSet is the ordered question list produced by the clarifier.
type ClarificationSet struct {
	Questions []string `json:"questions"`
}

// EnrichInput is the input for the instruction-enrichment stage.
type EnrichInput struct {
	Query   string `json:"query"`
	Answers []QA   `json:"answers"`
}

// EnrichedInstruction replaces the raw query as input to planning.
type EnrichedInstruction struct {
	Instruction string `json:"instruction"`
	// Fallback is set when the adapter call failed and the instruction was
	// produced by the deterministic fold-in instead.
	Fallback bool `json:"fallback"`
}

// PlanInput is the input for the planning stage.
type PlanInput struct {
	Instruction  string `json:"instruction"`
	MaxPlanItems int    `json:"max_plan_items"`
}

// SearchPlanItem is a single planned web search.
type SearchPlanItem struct {
	Query  string `json:"query"`
	Reason string `json:"reason"`
}

// SearchPlan is the ordered set of planned searches.
type SearchPlan struct {
	Searches []SearchPlanItem `json:"searches"`
}

// SearchInput is the input for one search item execution.
type SearchInput struct {
	Item  SearchPlanItem `json:"item"`
	Index int            `json:"index"`
}

// SearchResult is the outcome of one search item. Failed items carry
// Succeeded=false and a diagnostic summary; they never fail the fan-out.
type SearchResult struct {
	Summary     string `json:"summary"`
	SourceQuery string `json:"source_query"`
	Succeeded   bool   `json:"succeeded"`
}

// WriteInput is the input for the report-writing stage.
type WriteInput struct {
	Instruction string   `json:"instruction"`
	Summaries   []string `json:"summaries"`
}

// ReportData is the writer stage output.
type ReportData struct {
	ShortSummary      string   `json:"short_summary"`
	MarkdownReport    string   `json:"markdown_report"`
	FollowUpQuestions []string `json:"follow_up_questions"`
}

// RenderInput is the input for PDF rendering. ImagePath optionally names a
// previously generated illustration for the renderer to embed.
type RenderInput struct {
	WorkflowID string `json:"workflow_id"`
	Title      string `json:"title"`
	Markdown   string `json:"markdown"`
	ImagePath  string `json:"image_path,omitempty"`
}

// PdfOutcome records the best-effort render result. Rendering failure is
// always degraded, never fatal.
type PdfOutcome struct {
	Success         bool   `json:"success"`
	FilePath        string `json:"file_path,omitempty"`
	FormattingNotes string `json:"formatting_notes,omitempty"`
	ErrorMessage    string `json:"error_message,omitempty"`
}

// IllustrationInput is the input for the best-effort illustration stage.
type IllustrationInput struct {
	WorkflowID string `json:"workflow_id"`
	// Instruction is the enriched research instruction the illustration
	// should depict.
	Instruction string `json:"instruction"`
}

// ImageOutcome records the best-effort illustration result. Like PDF
// rendering, failure is always degraded, never fatal.
type ImageOutcome struct {
	Success      bool   `json:"success"`
	FilePath     string `json:"file_path,omitempty"`
	Description  string `json:"description,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// SaveReportInput is the input for report persistence.
type SaveReportInput struct {
	WorkflowID string     `json:"workflow_id"`
	Query      string     `json:"query"`
	Report     ReportData `json:"report"`
	PDFPath    string     `json:"pdf_path,omitempty"`
	Status     string     `json:"status"`
}

// SaveReportResult returns the persisted artifact location.
type SaveReportResult struct {
	MarkdownPath string `json:"markdown_path"`
}

// RecordGateInput mirrors the pending clarification set for polling UIs.
type RecordGateInput struct {
	WorkflowID string    `json:"workflow_id"`
	Query      string    `json:"query"`
	Questions  []string  `json:"questions"`
	AskedAt    time.Time `json:"asked_at"`
}

// WorkflowConfig carries the orchestration knobs a workflow needs. Fetched
// through an activity at workflow start so config reads never happen inside
// workflow code.
type WorkflowConfig struct {
	StageMaxAttempts      int           `json:"stage_max_attempts"`
	SearchMaxConcurrency  int           `json:"search_max_concurrency"`
	SearchMaxAttempts     int           `json:"search_max_attempts"`
	SearchTimeout         time.Duration `json:"search_timeout"`
	MinSuccessfulSearches int           `json:"min_successful_searches"`
	MaxClarifications     int           `json:"max_clarifications"`
	MaxPlanItems          int           `json:"max_plan_items"`
	RenderPDF             bool          `json:"render_pdf"`
	GenerateImage         bool          `json:"generate_image"`
}
