package workflows

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samirrijal/walkguide/internal/core/domain"
)

// WalkPlanner is the part of the walk service the warm-up needs.
type WalkPlanner interface {
	Categories(ctx context.Context) ([]string, error)
	PlanGuidedWalk(ctx context.Context, category string, shape bool) (*domain.WalkRoute, error)
}

// WarmActivities holds the activity implementations for the warm-up workflow.
type WarmActivities struct {
	Walks WalkPlanner
}

// ListCategories returns every catalog category.
func (a *WarmActivities) ListCategories(ctx context.Context) ([]string, error) {
	cats, err := a.Walks.Categories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return cats, nil
}

// WarmCategory plans the shaped walk for category so the path lands in the
// shape cache. A fallback to the straight path is returned as an error so
// the activity is retried.
func (a *WarmActivities) WarmCategory(ctx context.Context, category string) error {
	route, err := a.Walks.PlanGuidedWalk(ctx, category, true)
	if err != nil {
		return fmt.Errorf("plan %s: %w", category, err)
	}
	if route.ShapeFailure != "" {
		return fmt.Errorf("category %s: path shaping fell back (%s)", category, route.ShapeFailure)
	}
	slog.InfoContext(ctx, "walk path warmed",
		"category", category,
		"stops", len(route.Stops),
		"path_source", string(route.PathSource),
	)
	return nil
}
