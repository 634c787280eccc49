// Package workflows contains the durable research pipeline. The workflow is
// a deterministic state machine over Temporal history: every external effect
// (agent call, renderer call, persistence) happens in an activity whose
// result is recorded and replayed, so a process restart while suspended at
// the clarification gate reconstructs the exact pre-restart state and keeps
// waiting.
package workflows

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/orbital-labs/researchflow/internal/activities"
	"github.com/orbital-labs/researchflow/internal/constants"
	"github.com/orbital-labs/researchflow/internal/workflows/control"
)

// InteractiveResearchWorkflow runs one research request end to end:
// triage, optional clarification with indefinite human-in-the-loop
// suspension, enrichment, planning, parallel search, writing, and optional
// PDF rendering.
func InteractiveResearchWorkflow(ctx workflow.Context, input ResearchRequest) (ResearchResult, error) {
	logger := workflow.GetLogger(ctx)
	info := workflow.GetInfo(ctx)
	workflowID := info.WorkflowExecution.ID

	if input.Query == "" {
		return ResearchResult{}, temporal.NewNonRetryableApplicationError(
			"research request has empty query", "InvalidInput", nil)
	}

	logger.Info("Starting research workflow",
		"workflow_id", workflowID,
		"query", input.Query,
	)

	cancelHandler := &control.Handler{Logger: logger}
	cancelHandler.Setup(ctx)

	state := &StatusReport{State: StateStart, Query: input.Query}
	// Every exit path has a terminal state by the time the deferred call
	// runs, so done, failed, and cancelled runs are all counted.
	defer func() {
		outcomeCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
			StartToCloseTimeout: 10 * time.Second,
			RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
		})
		_ = workflow.ExecuteActivity(outcomeCtx, constants.RecordResearchOutcomeActivity, state.State).Get(ctx, nil)
	}()

	var gate *clarificationGate
	_ = workflow.SetQueryHandler(ctx, QueryStatus, func() (StatusReport, error) {
		s := *state
		if gate != nil && !gate.answered {
			s.PendingQuestions = gate.questions
			s.LastRejection = gate.lastRejection
		}
		if gate != nil && gate.answered {
			s.AnswersReceived = len(gate.answers)
		}
		return s, nil
	})
	// Registered unconditionally so direct-path runs answer "none" instead
	// of failing the query.
	_ = workflow.SetQueryHandler(ctx, QueryPendingClarification, func() ([]string, error) {
		if gate == nil || gate.answered {
			return nil, nil
		}
		return gate.questions, nil
	})

	// Orchestration knobs come through an activity so they are part of
	// history and identical on replay.
	cfgCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Second,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 3},
	})
	var cfg activities.WorkflowConfig
	if err := workflow.ExecuteActivity(cfgCtx, constants.GetWorkflowConfigActivity).Get(ctx, &cfg); err != nil {
		state.State = StateFailed
		return ResearchResult{}, fmt.Errorf("load workflow config: %w", err)
	}

	stageCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    int32(cfg.StageMaxAttempts),
		},
	})
	// Short-running bookkeeping activities (gate mirror, persistence).
	sideCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 3},
	})

	// Triaging: mandatory, no degraded path.
	state.State = StateTriaging
	var decision activities.TriageDecision
	err := workflow.ExecuteActivity(stageCtx, constants.TriageActivity, activities.TriageInput{
		Query:        input.Query,
		PriorAnswers: input.PriorAnswers,
	}).Get(ctx, &decision)
	if err != nil {
		state.State = StateFailed
		return ResearchResult{}, fmt.Errorf("triage stage failed: %w", err)
	}
	state.Rationale = decision.Rationale
	if err := cancelHandler.Check(ctx, "post_triage"); err != nil {
		state.State = StateCancelled
		return ResearchResult{}, err
	}

	instruction := input.Query
	enrichedVia := StateEnrichingDirect

	if decision.NeedsClarification {
		state.State = StateClarifying
		var questions activities.ClarificationSet
		clErr := workflow.ExecuteActivity(stageCtx, constants.GenerateClarificationsActivity, activities.ClarifyInput{
			Query:        input.Query,
			MaxQuestions: cfg.MaxClarifications,
		}).Get(ctx, &questions)
		if clErr != nil {
			// Clarification is an enhancement; when the clarifier itself is
			// down we proceed directly rather than failing the run.
			logger.Warn("Clarification stage failed, proceeding directly", "error", clErr)
		} else {
			gate = newClarificationGate(ctx, questions.Questions)
			state.State = StateAwaitingAnswers

			_ = workflow.ExecuteActivity(sideCtx, constants.RecordPendingClarificationActivity, activities.RecordGateInput{
				WorkflowID: workflowID,
				Query:      input.Query,
				Questions:  questions.Questions,
				AskedAt:    workflow.Now(ctx),
			}).Get(ctx, nil)

			answers, gateErr := gate.wait(ctx, cancelHandler)

			_ = workflow.ExecuteActivity(sideCtx, constants.ClearPendingClarificationActivity, workflowID).Get(ctx, nil)

			if gateErr != nil {
				state.State = StateCancelled
				return ResearchResult{}, gateErr
			}

			state.State = StateEnriching
			enrichedVia = StateEnriching
			qa := make([]activities.QA, len(questions.Questions))
			for i, q := range questions.Questions {
				qa[i] = activities.QA{Question: q, Answer: answers[i]}
			}
			var enriched activities.EnrichedInstruction
			if err := workflow.ExecuteActivity(stageCtx, constants.EnrichInstructionActivity, activities.EnrichInput{
				Query:   input.Query,
				Answers: qa,
			}).Get(ctx, &enriched); err != nil {
				state.State = StateFailed
				return ResearchResult{}, fmt.Errorf("enrichment stage failed: %w", err)
			}
			instruction = enriched.Instruction
		}
	}

	if enrichedVia == StateEnrichingDirect {
		state.State = StateEnrichingDirect
		if len(input.PriorAnswers) > 0 {
			var enriched activities.EnrichedInstruction
			if err := workflow.ExecuteActivity(stageCtx, constants.EnrichInstructionActivity, activities.EnrichInput{
				Query:   input.Query,
				Answers: input.PriorAnswers,
			}).Get(ctx, &enriched); err == nil {
				instruction = enriched.Instruction
			}
		}
	}
	if err := cancelHandler.Check(ctx, "post_enrich"); err != nil {
		state.State = StateCancelled
		return ResearchResult{}, err
	}

	// Illustration runs in parallel with planning, searching, and writing.
	// Best-effort: a failed illustration degrades, never fails the run.
	var illoFut workflow.Future
	if cfg.GenerateImage {
		illoCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
			StartToCloseTimeout: 3 * time.Minute,
			RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
		})
		illoFut = workflow.ExecuteActivity(illoCtx, constants.GenerateIllustrationActivity, activities.IllustrationInput{
			WorkflowID:  workflowID,
			Instruction: instruction,
		})
	}

	// Planning: mandatory.
	state.State = StatePlanning
	var plan activities.SearchPlan
	if err := workflow.ExecuteActivity(stageCtx, constants.PlanSearchesActivity, activities.PlanInput{
		Instruction:  instruction,
		MaxPlanItems: cfg.MaxPlanItems,
	}).Get(ctx, &plan); err != nil {
		state.State = StateFailed
		return ResearchResult{}, fmt.Errorf("planning stage failed: %w", err)
	}
	state.PlanSize = len(plan.Searches)
	if err := cancelHandler.Check(ctx, "post_plan"); err != nil {
		state.State = StateCancelled
		return ResearchResult{}, err
	}

	// Searching: fan-out/fan-in barrier, tolerant of partial failure.
	state.State = StateSearching
	results, err := executeSearches(ctx, plan, cfg, cancelHandler)
	if err != nil {
		if temporal.IsCanceledError(err) {
			state.State = StateCancelled
		} else {
			state.State = StateFailed
		}
		return ResearchResult{}, err
	}
	summaries := make([]string, 0, len(results))
	failed := 0
	for _, r := range results {
		if r.Succeeded {
			summaries = append(summaries, r.Summary)
		} else {
			failed++
		}
	}
	state.SearchesDone = len(results)
	state.SearchesFailed = failed

	// Writing: mandatory.
	state.State = StateWriting
	var report activities.ReportData
	if err := workflow.ExecuteActivity(stageCtx, constants.WriteReportActivity, activities.WriteInput{
		Instruction: instruction,
		Summaries:   summaries,
	}).Get(ctx, &report); err != nil {
		state.State = StateFailed
		return ResearchResult{}, fmt.Errorf("writing stage failed: %w", err)
	}
	state.ShortSummary = report.ShortSummary
	if err := cancelHandler.Check(ctx, "post_write"); err != nil {
		state.State = StateCancelled
		return ResearchResult{}, err
	}

	// Join the illustration before rendering so the PDF can embed it.
	var image activities.ImageOutcome
	if illoFut != nil {
		if err := illoFut.Get(ctx, &image); err != nil {
			image = activities.ImageOutcome{Success: false, ErrorMessage: err.Error()}
		}
	} else {
		image = activities.ImageOutcome{Success: false, ErrorMessage: "illustration disabled"}
	}
	state.Image = image

	// Rendering: optional, failure degrades and never fails the run.
	var pdf activities.PdfOutcome
	if cfg.RenderPDF {
		state.State = StateRendering
		renderCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
			StartToCloseTimeout: 45 * time.Second,
			RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
		})
		if err := workflow.ExecuteActivity(renderCtx, constants.RenderPDFActivity, activities.RenderInput{
			WorkflowID: workflowID,
			Title:      report.ShortSummary,
			Markdown:   report.MarkdownReport,
			ImagePath:  image.FilePath,
		}).Get(ctx, &pdf); err != nil {
			pdf = activities.PdfOutcome{Success: false, ErrorMessage: err.Error()}
		}
	} else {
		pdf = activities.PdfOutcome{Success: false, FormattingNotes: "pdf rendering disabled"}
	}
	state.PDF = pdf

	// Persist the markdown artifact and archive the run. The report is
	// already in the workflow result; persistence failure only costs the
	// file copy.
	var saved activities.SaveReportResult
	if err := workflow.ExecuteActivity(sideCtx, constants.SaveReportActivity, activities.SaveReportInput{
		WorkflowID: workflowID,
		Query:      input.Query,
		Report:     report,
		PDFPath:    pdf.FilePath,
		Status:     StateDone,
	}).Get(ctx, &saved); err != nil {
		logger.Warn("Report persistence failed", "error", err)
	}

	state.State = StateDone
	logger.Info("Research workflow completed",
		"workflow_id", workflowID,
		"plan_size", len(plan.Searches),
		"searches_failed", failed,
		"pdf_success", pdf.Success,
		"image_success", image.Success,
	)
	return ResearchResult{
		Report:       report,
		PDF:          pdf,
		Image:        image,
		MarkdownPath: saved.MarkdownPath,
	}, nil
}
