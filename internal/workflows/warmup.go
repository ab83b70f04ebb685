package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// WarmWalkPathsInput is the input for the warm-up workflow. An empty
// Categories list warms every category in the catalog.
type WarmWalkPathsInput struct {
	Categories []string
}

// WarmWalkPathsResult lists the categories whose shaped path is cached and
// those that still fell back after all retries.
type WarmWalkPathsResult struct {
	Warmed []string
	Failed []string
}

// WarmWalkPathsWorkflow plans the shaped walk of each category so that
// later requests are served from the shape cache. A category that cannot
// be shaped is reported, not fatal.
func WarmWalkPathsWorkflow(ctx workflow.Context, input WarmWalkPathsInput) (*WarmWalkPathsResult, error) {
	logger := workflow.GetLogger(ctx)

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)

	categories := input.Categories
	if len(categories) == 0 {
		if err := workflow.ExecuteActivity(ctx, "ListCategories").Get(ctx, &categories); err != nil {
			return nil, err
		}
	}
	logger.Info("Starting walk path warm-up", "categories", len(categories))

	result := &WarmWalkPathsResult{}
	for _, cat := range categories {
		if err := workflow.ExecuteActivity(ctx, "WarmCategory", cat).Get(ctx, nil); err != nil {
			logger.Warn("category not warmed", "category", cat, "error", err)
			result.Failed = append(result.Failed, cat)
			continue
		}
		result.Warmed = append(result.Warmed, cat)
	}

	logger.Info("Walk path warm-up finished", "warmed", len(result.Warmed), "failed", len(result.Failed))
	return result, nil
}
