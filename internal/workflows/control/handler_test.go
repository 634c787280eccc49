package control

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"
	"go.temporal.io/sdk/workflow"
)

func TestCheckPassesWithoutCancellation(t *testing.T) {
	suite := &testsuite.WorkflowTestSuite{}
	env := suite.NewTestWorkflowEnvironment()

	wf := func(ctx workflow.Context) (string, error) {
		h := &Handler{Logger: workflow.GetLogger(ctx)}
		h.Setup(ctx)

		if err := h.Check(ctx, "checkpoint_1"); err != nil {
			return "", err
		}
		_ = workflow.Sleep(ctx, 50*time.Millisecond)
		if err := h.Check(ctx, "checkpoint_2"); err != nil {
			return "", err
		}
		return "completed", nil
	}

	env.RegisterWorkflow(wf)
	env.ExecuteWorkflow(wf)

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result string
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, "completed", result)
}

func TestCancelSignalObservedAtCheckpoint(t *testing.T) {
	suite := &testsuite.WorkflowTestSuite{}
	env := suite.NewTestWorkflowEnvironment()

	wf := func(ctx workflow.Context) (string, error) {
		h := &Handler{Logger: workflow.GetLogger(ctx)}
		h.Setup(ctx)

		_ = workflow.Sleep(ctx, 100*time.Millisecond)
		if err := h.Check(ctx, "mid_pipeline"); err != nil {
			return "cancelled", err
		}
		return "completed", nil
	}

	env.RegisterWorkflow(wf)
	env.RegisterDelayedCallback(func() {
		env.SignalWorkflow(SignalCancel, CancelRequest{Reason: "operator request", RequestedBy: "ops"})
	}, 50*time.Millisecond)

	env.ExecuteWorkflow(wf)

	require.True(t, env.IsWorkflowCompleted())
	err := env.GetWorkflowError()
	require.Error(t, err)
	var canceled *temporal.CanceledError
	assert.True(t, errors.As(err, &canceled), "expected CanceledError, got %T", err)
}

func TestCancelStateQueryReflectsSignal(t *testing.T) {
	suite := &testsuite.WorkflowTestSuite{}
	env := suite.NewTestWorkflowEnvironment()

	wf := func(ctx workflow.Context) (bool, error) {
		h := &Handler{Logger: workflow.GetLogger(ctx)}
		h.Setup(ctx)
		_ = workflow.Await(ctx, h.IsCancelled)
		return h.IsCancelled(), nil
	}

	env.RegisterWorkflow(wf)
	env.RegisterDelayedCallback(func() {
		env.SignalWorkflow(SignalCancel, CancelRequest{Reason: "done with this", RequestedBy: "alice"})
	}, 30*time.Millisecond)
	env.RegisterDelayedCallback(func() {
		v, err := env.QueryWorkflow(QueryCancelState)
		require.NoError(t, err)
		var state CancelState
		require.NoError(t, v.Get(&state))
		assert.True(t, state.IsCancelled)
		assert.Equal(t, "done with this", state.Reason)
		assert.Equal(t, "alice", state.RequestedBy)
	}, 60*time.Millisecond)

	env.ExecuteWorkflow(wf)

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var cancelled bool
	require.NoError(t, env.GetWorkflowResult(&cancelled))
	assert.True(t, cancelled)
}

func TestDuplicateCancelSignalsIgnored(t *testing.T) {
	suite := &testsuite.WorkflowTestSuite{}
	env := suite.NewTestWorkflowEnvironment()

	wf := func(ctx workflow.Context) (string, error) {
		h := &Handler{Logger: workflow.GetLogger(ctx)}
		h.Setup(ctx)
		_ = workflow.Await(ctx, h.IsCancelled)
		// Let the second signal drain before reading state.
		_ = workflow.Sleep(ctx, 100*time.Millisecond)
		return h.State.RequestedBy, nil
	}

	env.RegisterWorkflow(wf)
	env.RegisterDelayedCallback(func() {
		env.SignalWorkflow(SignalCancel, CancelRequest{Reason: "first", RequestedBy: "alice"})
	}, 20*time.Millisecond)
	env.RegisterDelayedCallback(func() {
		env.SignalWorkflow(SignalCancel, CancelRequest{Reason: "second", RequestedBy: "bob"})
	}, 40*time.Millisecond)

	env.ExecuteWorkflow(wf)

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var requestedBy string
	require.NoError(t, env.GetWorkflowResult(&requestedBy))
	assert.Equal(t, "alice", requestedBy, "first cancel wins, later signals are ignored")
}
