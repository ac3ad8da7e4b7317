package evalplan

import (
	"context"
	"errors"

	"github.com/tesina/backend/core"
)

var (
	ErrNotFound     = errors.New("evaluation plan not found")
	ErrNoActivePlan = errors.New("career period has no active evaluation plan")
)

type (
	Repository interface {
		// GetActivePlan returns the period's single active plan, ErrNoActivePlan
		// when there is none.
		GetActivePlan(ctx context.Context, careerPeriodID string, exec ...core.DBExecutor) (Plan, error)
		GetPlan(ctx context.Context, id string, exec ...core.DBExecutor) (Plan, error)
		// QueryItems returns the plan's items ordered by position.
		QueryItems(ctx context.Context, planID string, exec ...core.DBExecutor) ([]Item, error)
		// GetRubric returns the full rubric structure, components → criteria →
		// levels, each slice ordered by position.
		GetRubric(ctx context.Context, id string, exec ...core.DBExecutor) (Rubric, error)
		// QueryComponentGraders returns the component overrides for the given items.
		QueryComponentGraders(ctx context.Context, itemIDs []string, exec ...core.DBExecutor) ([]ComponentGrader, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) ActivePlan(ctx context.Context, careerPeriodID string) (Plan, error) {
	return svc.repo.GetActivePlan(ctx, careerPeriodID)
}

func (svc *Service) Items(ctx context.Context, planID string) ([]Item, error) {
	return svc.repo.QueryItems(ctx, planID)
}

func (svc *Service) Rubric(ctx context.Context, id string) (Rubric, error) {
	return svc.repo.GetRubric(ctx, id)
}
