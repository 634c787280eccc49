// Package control implements cooperative cancellation for research
// workflows. A cancel signal flips durable state; the workflow observes it
// at stage boundaries and inside the clarification gate and terminates with
// Temporal's canceled error, so the instance lands in CANCELLED rather than
// FAILED.
package control

import (
	"fmt"

	"go.temporal.io/sdk/log"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// Handler manages the cancel signal for one workflow instance.
type Handler struct {
	State  *CancelState
	Logger log.Logger
}

// Setup registers the query handler and starts draining the cancel channel.
// Call once, before the first stage executes.
func (h *Handler) Setup(ctx workflow.Context) {
	h.State = &CancelState{}

	_ = workflow.SetQueryHandler(ctx, QueryCancelState, func() (CancelState, error) {
		return *h.State, nil
	})

	cancelCh := workflow.GetSignalChannel(ctx, SignalCancel)
	workflow.Go(ctx, func(gCtx workflow.Context) {
		for {
			var req CancelRequest
			cancelCh.Receive(gCtx, &req)
			if h.State.IsCancelled {
				h.Logger.Debug("Already cancelled, ignoring signal")
				continue
			}
			h.State.IsCancelled = true
			h.State.Reason = req.Reason
			h.State.RequestedBy = req.RequestedBy
			h.State.CancelledAt = workflow.Now(gCtx)
			h.Logger.Info("Cancellation requested",
				"reason", req.Reason,
				"requested_by", req.RequestedBy,
			)
		}
	})
}

// Check returns a canceled error when cancellation has been signalled.
// Call at every stage boundary.
func (h *Handler) Check(ctx workflow.Context, checkpoint string) error {
	if h.State == nil {
		return nil
	}
	// Yield once so a signal delivered in this task is processed before the
	// state check.
	_ = workflow.Sleep(ctx, 0)

	if h.State.IsCancelled {
		h.Logger.Info("Workflow cancelled at checkpoint", "checkpoint", checkpoint)
		return temporal.NewCanceledError(fmt.Sprintf("workflow cancelled at %s: %s", checkpoint, h.State.Reason))
	}
	return nil
}

// IsCancelled reports whether cancellation has been signalled.
func (h *Handler) IsCancelled() bool {
	return h.State != nil && h.State.IsCancelled
}
