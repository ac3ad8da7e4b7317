package inmemdb

import (
	"context"
	"sort"

	"github.com/tesina/backend/core"
	"github.com/tesina/backend/core/evalplan"
)

type planRepository struct {
	db *DB
}

var _ evalplan.Repository = (*planRepository)(nil) // interface compliance check

func NewPlanRepository(db *DB) *planRepository {
	return &planRepository{db: db}
}

// AddPlan seeds a plan; test fixture helper.
func (repo *planRepository) AddPlan(p evalplan.Plan) evalplan.Plan {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	repo.db.plans[p.ID] = &p
	return p
}

// AddItem seeds a plan item; test fixture helper.
func (repo *planRepository) AddItem(it evalplan.Item) evalplan.Item {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	repo.db.items[it.ID] = &it
	return it
}

// AddRubric seeds a full rubric structure; test fixture helper.
func (repo *planRepository) AddRubric(r evalplan.Rubric) evalplan.Rubric {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	repo.db.rubrics[r.ID] = &r
	return r
}

// AddComponentGrader seeds a component override; test fixture helper.
func (repo *planRepository) AddComponentGrader(cg evalplan.ComponentGrader) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	repo.db.overrides = append(repo.db.overrides, cg)
}

func (repo *planRepository) GetActivePlan(ctx context.Context, careerPeriodID string, exec ...core.DBExecutor) (evalplan.Plan, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	// latest active row wins
	var active *evalplan.Plan
	for _, p := range repo.db.plans {
		if p.CareerPeriodID != careerPeriodID || !p.IsActive {
			continue
		}
		if active == nil || p.CreatedAt.After(active.CreatedAt) {
			active = p
		}
	}
	if active == nil {
		return evalplan.Plan{}, evalplan.ErrNoActivePlan
	}
	return *active, nil
}

func (repo *planRepository) GetPlan(ctx context.Context, id string, exec ...core.DBExecutor) (evalplan.Plan, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if p, ok := repo.db.plans[id]; ok {
		return *p, nil
	}
	return evalplan.Plan{}, evalplan.ErrNotFound
}

func (repo *planRepository) QueryItems(ctx context.Context, planID string, exec ...core.DBExecutor) ([]evalplan.Item, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var items []evalplan.Item
	for _, it := range repo.db.items {
		if it.PlanID == planID {
			items = append(items, *it)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Position != items[j].Position {
			return items[i].Position < items[j].Position
		}
		return items[i].ID < items[j].ID
	})
	return items, nil
}

func (repo *planRepository) GetRubric(ctx context.Context, id string, exec ...core.DBExecutor) (evalplan.Rubric, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if r, ok := repo.db.rubrics[id]; ok {
		return *r, nil
	}
	return evalplan.Rubric{}, evalplan.ErrNotFound
}

func (repo *planRepository) QueryComponentGraders(ctx context.Context, itemIDs []string, exec ...core.DBExecutor) ([]evalplan.ComponentGrader, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	wanted := make(map[string]struct{}, len(itemIDs))
	for _, id := range itemIDs {
		wanted[id] = struct{}{}
	}
	var overrides []evalplan.ComponentGrader
	for _, cg := range repo.db.overrides {
		if _, ok := wanted[cg.ItemID]; ok {
			overrides = append(overrides, cg)
		}
	}
	return overrides, nil
}
