package constants

// Activity names used for workflow registration and execution.
// Using constants eliminates magic strings and ensures consistency.
const (
	// Configuration
	GetWorkflowConfigActivity = "GetWorkflowConfig"

	// Pipeline stages
	TriageActivity                 = "Triage"
	GenerateClarificationsActivity = "GenerateClarifications"
	EnrichInstructionActivity      = "EnrichInstruction"
	PlanSearchesActivity           = "PlanSearches"
	ExecuteSearchActivity          = "ExecuteSearch"
	WriteReportActivity            = "WriteReport"
	RenderPDFActivity              = "RenderPDF"
	GenerateIllustrationActivity   = "GenerateIllustration"

	// Persistence, gate mirroring, and terminal bookkeeping
	SaveReportActivity                 = "SaveReport"
	RecordPendingClarificationActivity = "RecordPendingClarification"
	ClearPendingClarificationActivity  = "ClearPendingClarification"
	RecordResearchOutcomeActivity      = "RecordResearchOutcome"
)
