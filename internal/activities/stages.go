// Package activities implements the pipeline stage activities. Each stage
// wraps one agent invocation plus schema validation of its structured
// output; malformed output surfaces as an InvalidOutput application error so
// the per-stage retry policy can re-invoke a bounded number of times.
package activities

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.uber.org/zap"

	"github.com/orbital-labs/researchflow/internal/agents"
	"github.com/orbital-labs/researchflow/internal/config"
	"github.com/orbital-labs/researchflow/internal/gatestore"
	"github.com/orbital-labs/researchflow/internal/metrics"
	"github.com/orbital-labs/researchflow/internal/reports"
)

// maxSummaryLen bounds a single search summary carried into the writer.
const maxSummaryLen = 2000

// Activities bundles the stage implementations with their dependencies.
// Registered on the worker as struct methods.
type Activities struct {
	invoker   *Invoker
	gates     *gatestore.Store
	archive   *reports.Store
	renderer  *Renderer
	outputDir string
	orch      config.OrchestrationConfig
	logger    *zap.Logger
}

// NewActivities wires the stage activities. gates, archive, and renderer may
// be nil in tests that do not exercise them.
func NewActivities(
	invoker *Invoker,
	gates *gatestore.Store,
	archive *reports.Store,
	renderer *Renderer,
	outputDir string,
	orch config.OrchestrationConfig,
	logger *zap.Logger,
) *Activities {
	return &Activities{
		invoker:   invoker,
		gates:     gates,
		archive:   archive,
		renderer:  renderer,
		outputDir: outputDir,
		orch:      orch,
		logger:    logger,
	}
}

// GetWorkflowConfig hands orchestration knobs to the workflow. Reading them
// through an activity keeps the values in workflow history, so replays see
// the same knobs the original run saw.
func (a *Activities) GetWorkflowConfig(ctx context.Context) (WorkflowConfig, error) {
	return WorkflowConfig{
		StageMaxAttempts:      a.orch.StageMaxAttempts,
		SearchMaxConcurrency:  a.orch.SearchMaxConcurrency,
		SearchMaxAttempts:     a.orch.SearchMaxAttempts,
		SearchTimeout:         a.orch.SearchTimeout,
		MinSuccessfulSearches: a.orch.MinSuccessfulSearches,
		MaxClarifications:     a.orch.MaxClarifications,
		MaxPlanItems:          a.orch.MaxPlanItems,
		RenderPDF:             a.orch.RenderPDF,
		GenerateImage:         a.orch.GenerateImage,
	}, nil
}

// Triage decides whether the query needs clarifying questions.
func (a *Activities) Triage(ctx context.Context, in TriageInput) (TriageDecision, error) {
	logger := activity.GetLogger(ctx)

	input := map[string]any{"query": in.Query}
	if len(in.PriorAnswers) > 0 {
		input["prior_answers"] = in.PriorAnswers
	}

	raw, _, err := a.invoker.Invoke(ctx, agents.Triage, input)
	if err != nil {
		return TriageDecision{}, invocationError(err)
	}

	var d TriageDecision
	if err := json.Unmarshal(raw, &d); err != nil {
		return TriageDecision{}, schemaError(agents.SchemaTriage, err)
	}
	logger.Info("Triage decided",
		"needs_clarification", d.NeedsClarification,
		"rationale", d.Rationale,
	)
	return d, nil
}

// GenerateClarifications produces the bounded clarification question list.
func (a *Activities) GenerateClarifications(ctx context.Context, in ClarifyInput) (ClarificationSet, error) {
	maxQ := in.MaxQuestions
	if maxQ <= 0 {
		maxQ = a.orch.MaxClarifications
	}

	raw, _, err := a.invoker.Invoke(ctx, agents.Clarifier, map[string]any{
		"query":         in.Query,
		"max_questions": maxQ,
	})
	if err != nil {
		return ClarificationSet{}, invocationError(err)
	}

	var cs ClarificationSet
	if err := json.Unmarshal(raw, &cs); err != nil {
		return ClarificationSet{}, schemaError(agents.SchemaClarifications, err)
	}
	if len(cs.Questions) == 0 {
		return ClarificationSet{}, schemaError(agents.SchemaClarifications, fmt.Errorf("no questions returned"))
	}
	if len(cs.Questions) > maxQ {
		cs.Questions = cs.Questions[:maxQ]
	}
	return cs, nil
}

// EnrichInstruction rewrites the query with clarification answers folded in.
// An adapter failure degrades to the deterministic fold-in rather than
// failing the run; enrichment quality is not worth losing a workflow over.
func (a *Activities) EnrichInstruction(ctx context.Context, in EnrichInput) (EnrichedInstruction, error) {
	logger := activity.GetLogger(ctx)

	raw, _, err := a.invoker.Invoke(ctx, agents.Enricher, map[string]any{
		"query":   in.Query,
		"answers": in.Answers,
	})
	if err != nil {
		logger.Warn("Enrichment agent failed, using deterministic fold-in", "error", err)
		return EnrichedInstruction{Instruction: foldAnswers(in.Query, in.Answers), Fallback: true}, nil
	}

	instruction := decodeInstruction(raw)
	if strings.TrimSpace(instruction) == "" {
		logger.Warn("Enrichment agent returned empty instruction, using deterministic fold-in")
		return EnrichedInstruction{Instruction: foldAnswers(in.Query, in.Answers), Fallback: true}, nil
	}
	return EnrichedInstruction{Instruction: instruction}, nil
}

// decodeInstruction accepts either {"instruction": "..."} or a bare JSON
// string; the enricher has no strict schema.
func decodeInstruction(raw json.RawMessage) string {
	var wrapped struct {
		Instruction string `json:"instruction"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Instruction != "" {
		return wrapped.Instruction
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

// foldAnswers combines the original query with clarification answers.
func foldAnswers(query string, answers []QA) string {
	if len(answers) == 0 {
		return query
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Original query: %s\n\nAdditional context from clarifications:\n", query)
	for _, qa := range answers {
		answer := qa.Answer
		if strings.TrimSpace(answer) == "" {
			answer = "No specific preference"
		}
		fmt.Fprintf(&b, "- %s: %s\n", qa.Question, answer)
	}
	return b.String()
}

// PlanSearches produces the ordered search plan for the enriched instruction.
func (a *Activities) PlanSearches(ctx context.Context, in PlanInput) (SearchPlan, error) {
	maxItems := in.MaxPlanItems
	if maxItems <= 0 {
		maxItems = a.orch.MaxPlanItems
	}

	raw, _, err := a.invoker.Invoke(ctx, agents.Planner, map[string]any{
		"query": fmt.Sprintf("Query: %s", in.Instruction),
	})
	if err != nil {
		return SearchPlan{}, invocationError(err)
	}

	var plan SearchPlan
	if err := json.Unmarshal(raw, &plan); err != nil {
		return SearchPlan{}, schemaError(agents.SchemaSearchPlan, err)
	}
	if len(plan.Searches) == 0 {
		return SearchPlan{}, schemaError(agents.SchemaSearchPlan, fmt.Errorf("empty search plan"))
	}
	for i, item := range plan.Searches {
		if strings.TrimSpace(item.Query) == "" {
			return SearchPlan{}, schemaError(agents.SchemaSearchPlan, fmt.Errorf("item %d has empty query", i))
		}
	}
	if len(plan.Searches) > maxItems {
		plan.Searches = plan.Searches[:maxItems]
	}
	return plan, nil
}

// ExecuteSearch runs one planned search. Errors propagate to the fan-out,
// which records them as failed slots; this activity never synthesizes a
// failure result itself.
func (a *Activities) ExecuteSearch(ctx context.Context, in SearchInput) (SearchResult, error) {
	raw, _, err := a.invoker.Invoke(ctx, agents.Searcher, map[string]any{
		"query": fmt.Sprintf("Search term: %s\nReason for searching: %s", in.Item.Query, in.Item.Reason),
	})
	if err != nil {
		metrics.SearchesExecuted.WithLabelValues("failed").Inc()
		return SearchResult{}, invocationError(err)
	}

	summary := decodeSummary(raw)
	if strings.TrimSpace(summary) == "" {
		metrics.SearchesExecuted.WithLabelValues("failed").Inc()
		return SearchResult{}, schemaError("search_summary", fmt.Errorf("empty summary"))
	}
	summary = truncateOnRuneBoundary(summary, maxSummaryLen)
	metrics.SearchesExecuted.WithLabelValues("succeeded").Inc()
	return SearchResult{
		Summary:     summary,
		SourceQuery: in.Item.Query,
		Succeeded:   true,
	}, nil
}

// truncateOnRuneBoundary cuts s to at most max bytes without splitting a
// multi-byte rune.
func truncateOnRuneBoundary(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func decodeSummary(raw json.RawMessage) string {
	var wrapped struct {
		Summary string `json:"summary"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Summary != "" {
		return wrapped.Summary
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

// WriteReport synthesizes the final report from the successful summaries.
func (a *Activities) WriteReport(ctx context.Context, in WriteInput) (ReportData, error) {
	raw, _, err := a.invoker.Invoke(ctx, agents.Writer, map[string]any{
		"query":     in.Instruction,
		"summaries": in.Summaries,
	})
	if err != nil {
		return ReportData{}, invocationError(err)
	}

	var rd ReportData
	if err := json.Unmarshal(raw, &rd); err != nil {
		return ReportData{}, schemaError(agents.SchemaReport, err)
	}
	if strings.TrimSpace(rd.MarkdownReport) == "" {
		return ReportData{}, schemaError(agents.SchemaReport, fmt.Errorf("empty markdown report"))
	}
	if strings.TrimSpace(rd.ShortSummary) == "" {
		return ReportData{}, schemaError(agents.SchemaReport, fmt.Errorf("empty short summary"))
	}
	return rd, nil
}

// SaveReport writes the markdown artifact and archives the run.
func (a *Activities) SaveReport(ctx context.Context, in SaveReportInput) (SaveReportResult, error) {
	if err := os.MkdirAll(a.outputDir, 0o755); err != nil {
		return SaveReportResult{}, fmt.Errorf("create output dir: %w", err)
	}

	name := fmt.Sprintf("research_report_%s.md", time.Now().UTC().Format("20060102_150405"))
	path := filepath.Join(a.outputDir, name)
	if err := os.WriteFile(path, []byte(in.Report.MarkdownReport), 0o644); err != nil {
		return SaveReportResult{}, fmt.Errorf("write markdown report: %w", err)
	}

	if a.archive != nil {
		row := reports.Report{
			WorkflowID:   in.WorkflowID,
			Query:        in.Query,
			ShortSummary: in.Report.ShortSummary,
			MarkdownPath: path,
			Status:       in.Status,
			CreatedAt:    time.Now().UTC(),
		}
		if in.PDFPath != "" {
			row.PDFPath = sql.NullString{String: in.PDFPath, Valid: true}
		}
		if err := a.archive.Save(ctx, row); err != nil {
			// The markdown artifact exists; archive failure is logged, not fatal.
			a.logger.Warn("report archive write failed",
				zap.String("workflow_id", in.WorkflowID),
				zap.Error(err),
			)
		}
	}
	return SaveReportResult{MarkdownPath: path}, nil
}

// RecordResearchOutcome counts one finished run by terminal state. The
// workflow invokes it on every exit path, including failure and
// cancellation.
func (a *Activities) RecordResearchOutcome(ctx context.Context, state string) error {
	metrics.ResearchCompleted.WithLabelValues(strings.ToLower(state)).Inc()
	return nil
}

// RecordPendingClarification mirrors the gate state for polling UIs.
// Best-effort: the workflow query remains authoritative.
func (a *Activities) RecordPendingClarification(ctx context.Context, in RecordGateInput) error {
	metrics.GatesAwaiting.Inc()
	if a.gates == nil {
		return nil
	}
	err := a.gates.Put(ctx, gatestore.PendingClarification{
		WorkflowID: in.WorkflowID,
		Query:      in.Query,
		Questions:  in.Questions,
		AskedAt:    in.AskedAt,
	})
	if err != nil {
		a.logger.Warn("pending clarification mirror write failed",
			zap.String("workflow_id", in.WorkflowID),
			zap.Error(err),
		)
	}
	return nil
}

// ClearPendingClarification removes the mirror once the gate fires.
func (a *Activities) ClearPendingClarification(ctx context.Context, workflowID string) error {
	metrics.GatesAwaiting.Dec()
	if a.gates == nil {
		return nil
	}
	if err := a.gates.Clear(ctx, workflowID); err != nil {
		a.logger.Warn("pending clarification mirror clear failed",
			zap.String("workflow_id", workflowID),
			zap.Error(err),
		)
	}
	return nil
}

// invocationError converts an invoker error into a typed application error
// so retry policies can distinguish transient failures from bad output.
func invocationError(err error) error {
	if t := ErrType(err); t != "" {
		return temporal.NewApplicationError(err.Error(), t)
	}
	return err
}

// schemaError flags structured output that failed validation against the
// stage schema. Retryable: the next attempt re-invokes the agent.
func schemaError(schema string, err error) error {
	return temporal.NewApplicationError(
		fmt.Sprintf("output failed %s validation: %v", schema, err),
		ErrTypeInvalidOutput,
	)
}
