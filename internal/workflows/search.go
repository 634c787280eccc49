package workflows

import (
	"fmt"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/orbital-labs/researchflow/internal/activities"
	"github.com/orbital-labs/researchflow/internal/constants"
	"github.com/orbital-labs/researchflow/internal/workflows/control"
)

// executeSearches fans out one activity per plan item and joins on full
// completion. Results come back in plan order regardless of completion
// order. A failed item is recorded as Succeeded=false and never blocks or
// cancels its siblings; the fan-in fails only when fewer than
// cfg.MinSuccessfulSearches items succeeded. Cancellation propagates to
// in-flight items through a cancellable child context.
func executeSearches(
	ctx workflow.Context,
	plan activities.SearchPlan,
	cfg activities.WorkflowConfig,
	cancel *control.Handler,
) ([]activities.SearchResult, error) {
	logger := workflow.GetLogger(ctx)
	n := len(plan.Searches)
	logger.Info("Starting search fan-out",
		"items", n,
		"max_concurrency", cfg.SearchMaxConcurrency,
	)

	searchCtx, cancelSearches := workflow.WithCancel(ctx)
	searchCtx = workflow.WithActivityOptions(searchCtx, workflow.ActivityOptions{
		StartToCloseTimeout: cfg.SearchTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: int32(cfg.SearchMaxAttempts),
		},
	})

	// Abort still-running items once cancellation is observed.
	workflow.Go(ctx, func(gCtx workflow.Context) {
		_ = workflow.Await(gCtx, cancel.IsCancelled)
		cancelSearches()
	})

	results := make([]activities.SearchResult, n)
	settled := 0
	sem := workflow.NewSemaphore(ctx, int64(cfg.SearchMaxConcurrency))

	for i, item := range plan.Searches {
		i := i
		item := item
		workflow.Go(searchCtx, func(gCtx workflow.Context) {
			defer func() { settled++ }()

			if err := sem.Acquire(gCtx, 1); err != nil {
				results[i] = failedResult(item, err)
				return
			}
			defer sem.Release(1)

			var res activities.SearchResult
			err := workflow.ExecuteActivity(gCtx, constants.ExecuteSearchActivity, activities.SearchInput{
				Item:  item,
				Index: i,
			}).Get(gCtx, &res)
			if err != nil {
				logger.Warn("Search item failed",
					"index", i,
					"query", item.Query,
					"error", err,
				)
				results[i] = failedResult(item, err)
				return
			}
			results[i] = res
		})
	}

	// Join barrier: every item settles (success or recorded failure) before
	// the pipeline advances.
	if err := workflow.Await(ctx, func() bool {
		return settled == n || cancel.IsCancelled()
	}); err != nil {
		return nil, err
	}
	if err := cancel.Check(ctx, "search_fan_in"); err != nil {
		return nil, err
	}

	succeeded := 0
	for _, r := range results {
		if r.Succeeded {
			succeeded++
		}
	}
	logger.Info("Search fan-out settled",
		"items", n,
		"succeeded", succeeded,
	)
	if succeeded < cfg.MinSuccessfulSearches {
		return results, fmt.Errorf("only %d of %d searches succeeded, need at least %d",
			succeeded, n, cfg.MinSuccessfulSearches)
	}
	return results, nil
}

func failedResult(item activities.SearchPlanItem, err error) activities.SearchResult {
	return activities.SearchResult{
		Summary:     fmt.Sprintf("search failed: %v", err),
		SourceQuery: item.Query,
		Succeeded:   false,
	}
}
