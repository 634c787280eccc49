package workflows

import (
	"fmt"

	"go.temporal.io/sdk/workflow"

	"github.com/orbital-labs/researchflow/internal/workflows/control"
)

// clarificationGate is the single suspension point of the pipeline. It
// exposes the pending questions through a query handler, accepts exactly one
// answer submission whose length matches the question count, and rejects
// everything else while staying suspended. There is no timeout: the
// workflow waits until answers arrive or the instance is cancelled.
type clarificationGate struct {
	questions []string

	answers       []string
	answered      bool
	submittedBy   string
	rejections    int
	lastRejection string
}

// newClarificationGate starts draining the answers signal channel. The
// pending-clarification query handler lives in the workflow so it answers
// even when no gate was ever created. Signals delivered before the gate
// existed are queued by the SDK and validated on first receive.
func newClarificationGate(ctx workflow.Context, questions []string) *clarificationGate {
	g := &clarificationGate{questions: questions}
	logger := workflow.GetLogger(ctx)

	ch := workflow.GetSignalChannel(ctx, SignalAnswers)
	workflow.Go(ctx, func(gCtx workflow.Context) {
		for {
			var req AnswersRequest
			ch.Receive(gCtx, &req)

			switch {
			case g.answered:
				g.rejections++
				g.lastRejection = "answers already accepted"
				logger.Warn("Rejected redundant answer submission",
					"submitted_by", req.SubmittedBy,
				)
			case len(req.Answers) != len(g.questions):
				g.rejections++
				g.lastRejection = fmt.Sprintf("expected %d answers, got %d", len(g.questions), len(req.Answers))
				logger.Warn("Rejected answer submission with mismatched count",
					"expected", len(g.questions),
					"got", len(req.Answers),
				)
			default:
				g.answers = req.Answers
				g.submittedBy = req.SubmittedBy
				g.answered = true
				logger.Info("Clarification answers accepted",
					"count", len(req.Answers),
					"submitted_by", req.SubmittedBy,
				)
			}
		}
	})

	return g
}

// wait suspends until answers are accepted or the instance is cancelled.
func (g *clarificationGate) wait(ctx workflow.Context, cancel *control.Handler) ([]string, error) {
	err := workflow.Await(ctx, func() bool {
		return g.answered || cancel.IsCancelled()
	})
	if err != nil {
		return nil, err
	}
	if cancel.IsCancelled() {
		return nil, cancel.Check(ctx, "awaiting_answers")
	}
	return g.answers, nil
}
