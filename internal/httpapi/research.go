// Package httpapi exposes the human interaction surface over HTTP: starting
// research runs, reading pending clarification questions, submitting
// answers, querying status, and cancelling. Signals and queries are
// forwarded to Temporal; the gate mirror in Redis serves clarification
// polls without a Temporal query per poll.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/converter"
	"go.uber.org/zap"

	"github.com/orbital-labs/researchflow/internal/activities"
	"github.com/orbital-labs/researchflow/internal/gatestore"
	"github.com/orbital-labs/researchflow/internal/metrics"
	"github.com/orbital-labs/researchflow/internal/reports"
	"github.com/orbital-labs/researchflow/internal/workflows"
)

// WorkflowClient is the slice of the Temporal client the API needs.
// Narrowed so handlers are testable with a fake.
type WorkflowClient interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error)
	SignalWorkflow(ctx context.Context, workflowID, runID, signalName string, arg interface{}) error
	QueryWorkflow(ctx context.Context, workflowID, runID, queryType string, args ...interface{}) (converter.EncodedValue, error)
}

// ResearchHandler serves the research API.
type ResearchHandler struct {
	temporal  WorkflowClient
	gates     *gatestore.Store
	archive   *reports.Store
	taskQueue string
	logger    *zap.Logger
}

// NewResearchHandler creates the handler. gates and archive may be nil;
// the corresponding fast paths are skipped.
func NewResearchHandler(t WorkflowClient, gates *gatestore.Store, archive *reports.Store, taskQueue string, logger *zap.Logger) *ResearchHandler {
	return &ResearchHandler{temporal: t, gates: gates, archive: archive, taskQueue: taskQueue, logger: logger}
}

// RegisterRoutes registers the research routes on the provided mux.
func (h *ResearchHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/research", h.handleStart)
	mux.HandleFunc("/research/clarification", h.handleClarification)
	mux.HandleFunc("/research/answers", h.handleAnswers)
	mux.HandleFunc("/research/status", h.handleStatus)
	mux.HandleFunc("/research/cancel", h.handleCancel)
	mux.HandleFunc("/research/reports", h.handleReports)
}

type startRequest struct {
	Query        string          `json:"query"`
	PriorAnswers []activities.QA `json:"prior_answers,omitempty"`
}

type startResponse struct {
	WorkflowID string `json:"workflow_id"`
	RunID      string `json:"run_id"`
}

func (h *ResearchHandler) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req startRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	workflowID := fmt.Sprintf("research-%s", uuid.New().String())
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	run, err := h.temporal.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:                    workflowID,
		TaskQueue:             h.taskQueue,
		WorkflowIDReusePolicy: enumspb.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
	}, workflows.InteractiveResearchWorkflow, workflows.ResearchRequest{
		Query:        req.Query,
		PriorAnswers: req.PriorAnswers,
	})
	if err != nil {
		h.logger.Error("failed to start research workflow", zap.Error(err))
		writeError(w, http.StatusBadGateway, "failed to start workflow")
		return
	}
	metrics.ResearchStarted.Inc()

	writeJSON(w, http.StatusAccepted, startResponse{WorkflowID: run.GetID(), RunID: run.GetRunID()})
}

type clarificationResponse struct {
	WorkflowID string   `json:"workflow_id"`
	Questions  []string `json:"questions"`
	Pending    bool     `json:"pending"`
}

func (h *ResearchHandler) handleClarification(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	workflowID := r.URL.Query().Get("workflow_id")
	if workflowID == "" {
		writeError(w, http.StatusBadRequest, "workflow_id is required")
		return
	}

	questions, err := h.pendingQuestions(r.Context(), workflowID)
	if err != nil {
		h.logger.Warn("clarification lookup failed", zap.String("workflow_id", workflowID), zap.Error(err))
		writeError(w, http.StatusBadGateway, "clarification lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, clarificationResponse{
		WorkflowID: workflowID,
		Questions:  questions,
		Pending:    len(questions) > 0,
	})
}

// pendingQuestions prefers the Redis mirror and falls back to the
// authoritative workflow query.
func (h *ResearchHandler) pendingQuestions(ctx context.Context, workflowID string) ([]string, error) {
	if h.gates != nil {
		if p, err := h.gates.Get(ctx, workflowID); err == nil {
			return p.Questions, nil
		} else if !errors.Is(err, gatestore.ErrNotFound) {
			h.logger.Warn("gate mirror read failed", zap.Error(err))
		}
	}

	val, err := h.temporal.QueryWorkflow(ctx, workflowID, "", workflows.QueryPendingClarification)
	if err != nil {
		return nil, fmt.Errorf("query workflow: %w", err)
	}
	var questions []string
	if err := val.Get(&questions); err != nil {
		return nil, fmt.Errorf("decode pending clarification: %w", err)
	}
	return questions, nil
}

type answersRequest struct {
	WorkflowID  string   `json:"workflow_id"`
	Answers     []string `json:"answers"`
	SubmittedBy string   `json:"submitted_by,omitempty"`
}

func (h *ResearchHandler) handleAnswers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req answersRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.WorkflowID == "" {
		writeError(w, http.StatusBadRequest, "workflow_id is required")
		return
	}
	if len(req.Answers) == 0 {
		writeError(w, http.StatusBadRequest, "answers are required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	// Validate the count against the pending set before signalling; the
	// workflow-side gate re-validates, this just gives the caller a useful
	// rejection instead of silence.
	questions, err := h.pendingQuestions(ctx, req.WorkflowID)
	if err != nil {
		writeError(w, http.StatusBadGateway, "clarification lookup failed")
		return
	}
	if len(questions) == 0 {
		metrics.AnswerSubmissions.WithLabelValues("rejected").Inc()
		writeError(w, http.StatusConflict, "workflow is not awaiting clarification answers")
		return
	}
	if len(req.Answers) != len(questions) {
		metrics.AnswerSubmissions.WithLabelValues("rejected").Inc()
		writeError(w, http.StatusUnprocessableEntity,
			fmt.Sprintf("expected %d answers, got %d", len(questions), len(req.Answers)))
		return
	}

	if err := h.temporal.SignalWorkflow(ctx, req.WorkflowID, "", workflows.SignalAnswers, workflows.AnswersRequest{
		Answers:     req.Answers,
		SubmittedBy: req.SubmittedBy,
	}); err != nil {
		h.logger.Error("failed to signal answers",
			zap.String("workflow_id", req.WorkflowID),
			zap.Error(err),
		)
		writeError(w, http.StatusBadGateway, "failed to signal workflow")
		return
	}
	metrics.AnswerSubmissions.WithLabelValues("accepted").Inc()

	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "sent",
		"workflow_id": req.WorkflowID,
		"answers":     len(req.Answers),
	})
}

func (h *ResearchHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	workflowID := r.URL.Query().Get("workflow_id")
	if workflowID == "" {
		writeError(w, http.StatusBadRequest, "workflow_id is required")
		return
	}

	val, err := h.temporal.QueryWorkflow(r.Context(), workflowID, "", workflows.QueryStatus)
	if err != nil {
		h.logger.Warn("status query failed", zap.String("workflow_id", workflowID), zap.Error(err))
		writeError(w, http.StatusBadGateway, "status query failed")
		return
	}
	var status workflows.StatusReport
	if err := val.Get(&status); err != nil {
		writeError(w, http.StatusBadGateway, "failed to decode status")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

type cancelRequest struct {
	WorkflowID  string `json:"workflow_id"`
	Reason      string `json:"reason,omitempty"`
	RequestedBy string `json:"requested_by,omitempty"`
}

func (h *ResearchHandler) handleCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req cancelRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.WorkflowID == "" {
		writeError(w, http.StatusBadRequest, "workflow_id is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	if err := h.temporal.SignalWorkflow(ctx, req.WorkflowID, "", workflows.SignalCancel, workflows.CancelRequest{
		Reason:      req.Reason,
		RequestedBy: req.RequestedBy,
	}); err != nil {
		h.logger.Error("failed to signal cancel",
			zap.String("workflow_id", req.WorkflowID),
			zap.Error(err),
		)
		writeError(w, http.StatusBadGateway, "failed to signal workflow")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "cancelling",
		"workflow_id": req.WorkflowID,
	})
}

func (h *ResearchHandler) handleReports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.archive == nil {
		writeJSON(w, http.StatusOK, []reports.Report{})
		return
	}
	rs, err := h.archive.List(r.Context(), 50)
	if err != nil {
		h.logger.Error("report listing failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "report listing failed")
		return
	}
	writeJSON(w, http.StatusOK, rs)
}

func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// StartServer starts the research API server on the given port.
func StartServer(port int, h *ResearchHandler, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		logger.Info("Starting research API server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Research API server failed", zap.Error(err))
		}
	}()
	return srv
}
