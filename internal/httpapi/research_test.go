package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/converter"
	"go.uber.org/zap"

	"github.com/orbital-labs/researchflow/internal/gatestore"
	"github.com/orbital-labs/researchflow/internal/workflows"
)

type fakeRun struct{ id, runID string }

func (f fakeRun) GetID() string    { return f.id }
func (f fakeRun) GetRunID() string { return f.runID }
func (f fakeRun) Get(ctx context.Context, valuePtr interface{}) error {
	return nil
}
func (f fakeRun) GetWithOptions(ctx context.Context, valuePtr interface{}, options client.WorkflowRunGetOptions) error {
	return nil
}

type fakeValue struct{ v interface{} }

func (f fakeValue) HasValue() bool { return f.v != nil }
func (f fakeValue) Get(valuePtr interface{}) error {
	b, err := json.Marshal(f.v)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, valuePtr)
}

type signalCall struct {
	workflowID string
	name       string
	arg        interface{}
}

// fakeClient implements WorkflowClient for handler tests.
type fakeClient struct {
	startedOptions client.StartWorkflowOptions
	startedArgs    []interface{}
	startErr       error

	signals   []signalCall
	signalErr error

	queryResults map[string]interface{}
	queryErr     error
}

func (f *fakeClient) ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.startedOptions = options
	f.startedArgs = args
	return fakeRun{id: options.ID, runID: "run-1"}, nil
}

func (f *fakeClient) SignalWorkflow(ctx context.Context, workflowID, runID, signalName string, arg interface{}) error {
	if f.signalErr != nil {
		return f.signalErr
	}
	f.signals = append(f.signals, signalCall{workflowID: workflowID, name: signalName, arg: arg})
	return nil
}

func (f *fakeClient) QueryWorkflow(ctx context.Context, workflowID, runID, queryType string, args ...interface{}) (converter.EncodedValue, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return fakeValue{v: f.queryResults[queryType]}, nil
}

func newTestHandler(t *testing.T, fc *fakeClient, gates *gatestore.Store) http.Handler {
	t.Helper()
	h := NewResearchHandler(fc, gates, nil, "researchflow", zap.NewNop())
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return mux
}

func doJSON(t *testing.T, h http.Handler, method, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestStartResearch(t *testing.T) {
	fc := &fakeClient{}
	h := newTestHandler(t, fc, nil)

	rec := doJSON(t, h, http.MethodPost, "/research", `{"query":"history of unix"}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var resp struct {
		WorkflowID string `json:"workflow_id"`
		RunID      string `json:"run_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, strings.HasPrefix(resp.WorkflowID, "research-"))
	assert.Equal(t, "run-1", resp.RunID)

	assert.Equal(t, "researchflow", fc.startedOptions.TaskQueue)
	require.Len(t, fc.startedArgs, 1)
	req, ok := fc.startedArgs[0].(workflows.ResearchRequest)
	require.True(t, ok)
	assert.Equal(t, "history of unix", req.Query)
}

func TestStartResearchRejectsEmptyQuery(t *testing.T) {
	h := newTestHandler(t, &fakeClient{}, nil)
	rec := doJSON(t, h, http.MethodPost, "/research", `{"query":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClarificationReadsMirrorFirst(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	gates := gatestore.New(rdb, time.Hour)
	require.NoError(t, gates.Put(context.Background(), gatestore.PendingClarification{
		WorkflowID: "research-1",
		Questions:  []string{"q1", "q2"},
	}))

	// A query error proves the mirror short-circuits the Temporal path.
	fc := &fakeClient{queryErr: fmt.Errorf("temporal down")}
	h := newTestHandler(t, fc, gates)

	rec := doJSON(t, h, http.MethodGet, "/research/clarification?workflow_id=research-1", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp clarificationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Pending)
	assert.Equal(t, []string{"q1", "q2"}, resp.Questions)
}

func TestClarificationFallsBackToWorkflowQuery(t *testing.T) {
	fc := &fakeClient{queryResults: map[string]interface{}{
		workflows.QueryPendingClarification: []string{"only question"},
	}}
	h := newTestHandler(t, fc, nil)

	rec := doJSON(t, h, http.MethodGet, "/research/clarification?workflow_id=research-2", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp clarificationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Pending)
	assert.Equal(t, []string{"only question"}, resp.Questions)
}

func TestSubmitAnswersSignalsWorkflow(t *testing.T) {
	fc := &fakeClient{queryResults: map[string]interface{}{
		workflows.QueryPendingClarification: []string{"q1", "q2"},
	}}
	h := newTestHandler(t, fc, nil)

	rec := doJSON(t, h, http.MethodPost, "/research/answers",
		`{"workflow_id":"research-1","answers":["a1","a2"],"submitted_by":"alice"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.Len(t, fc.signals, 1)
	assert.Equal(t, "research-1", fc.signals[0].workflowID)
	assert.Equal(t, workflows.SignalAnswers, fc.signals[0].name)
	sent, ok := fc.signals[0].arg.(workflows.AnswersRequest)
	require.True(t, ok)
	assert.Equal(t, []string{"a1", "a2"}, sent.Answers)
	assert.Equal(t, "alice", sent.SubmittedBy)
}

func TestSubmitAnswersRejectsCountMismatch(t *testing.T) {
	fc := &fakeClient{queryResults: map[string]interface{}{
		workflows.QueryPendingClarification: []string{"q1", "q2", "q3"},
	}}
	h := newTestHandler(t, fc, nil)

	rec := doJSON(t, h, http.MethodPost, "/research/answers",
		`{"workflow_id":"research-1","answers":["a1"]}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "expected 3 answers, got 1")
	assert.Empty(t, fc.signals, "mismatched submission must not be signalled")
}

func TestSubmitAnswersWithoutPendingGate(t *testing.T) {
	fc := &fakeClient{queryResults: map[string]interface{}{
		workflows.QueryPendingClarification: []string{},
	}}
	h := newTestHandler(t, fc, nil)

	rec := doJSON(t, h, http.MethodPost, "/research/answers",
		`{"workflow_id":"research-1","answers":["a1"]}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Empty(t, fc.signals)
}

func TestStatusQuery(t *testing.T) {
	fc := &fakeClient{queryResults: map[string]interface{}{
		workflows.QueryStatus: workflows.StatusReport{
			State:            workflows.StateAwaitingAnswers,
			Query:            "topic",
			PendingQuestions: []string{"q1"},
		},
	}}
	h := newTestHandler(t, fc, nil)

	rec := doJSON(t, h, http.MethodGet, "/research/status?workflow_id=research-1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var status workflows.StatusReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, workflows.StateAwaitingAnswers, status.State)
	assert.Equal(t, []string{"q1"}, status.PendingQuestions)
}

func TestCancelSignalsWorkflow(t *testing.T) {
	fc := &fakeClient{}
	h := newTestHandler(t, fc, nil)

	rec := doJSON(t, h, http.MethodPost, "/research/cancel",
		`{"workflow_id":"research-1","reason":"no longer needed"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, fc.signals, 1)
	assert.Equal(t, workflows.SignalCancel, fc.signals[0].name)
	sent, ok := fc.signals[0].arg.(workflows.CancelRequest)
	require.True(t, ok)
	assert.Equal(t, "no longer needed", sent.Reason)
}

func TestMethodNotAllowed(t *testing.T) {
	h := newTestHandler(t, &fakeClient{}, nil)
	rec := doJSON(t, h, http.MethodGet, "/research", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
