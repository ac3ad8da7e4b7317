package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/tesina/backend/core"
	"github.com/tesina/backend/core/evalplan"
)

type planRepository struct {
	exec core.DBExecutor
}

var _ evalplan.Repository = (*planRepository)(nil) // interface compliance check

func NewPlanRepository(exec core.DBExecutor) *planRepository {
	return &planRepository{exec: exec}
}

func (repo planRepository) scanPlan(row rowScanner) (evalplan.Plan, error) {
	var p evalplan.Plan
	err := row.Scan(&p.ID, &p.CareerPeriodID, &p.Name, &p.IsActive, &p.CreatedAt)
	return p, err
}

func (repo planRepository) GetActivePlan(ctx context.Context, careerPeriodID string, exec ...core.DBExecutor) (evalplan.Plan, error) {
	// latest active row wins
	q := `
SELECT id, career_period_id, name, is_active, created_at
FROM eval_plan
WHERE career_period_id = $1 AND is_active
ORDER BY created_at DESC
LIMIT 1`
	p, err := repo.scanPlan(getExec(repo.exec, exec).QueryRowContext(ctx, q, careerPeriodID))
	if err != nil {
		if err == sql.ErrNoRows {
			return evalplan.Plan{}, evalplan.ErrNoActivePlan
		}
		return evalplan.Plan{}, errors.Wrap(err, "finding active plan")
	}
	return p, nil
}

func (repo planRepository) GetPlan(ctx context.Context, id string, exec ...core.DBExecutor) (evalplan.Plan, error) {
	q := `SELECT id, career_period_id, name, is_active, created_at FROM eval_plan WHERE id = $1`
	p, err := repo.scanPlan(getExec(repo.exec, exec).QueryRowContext(ctx, q, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return evalplan.Plan{}, evalplan.ErrNotFound
		}
		return evalplan.Plan{}, errors.Wrap(err, "finding plan")
	}
	return p, nil
}

func (repo planRepository) QueryItems(ctx context.Context, planID string, exec ...core.DBExecutor) ([]evalplan.Item, error) {
	q := `
SELECT id, plan_id, name, kind, weight, graded_by, rubric_id, position
FROM plan_item
WHERE plan_id = $1
ORDER BY position, id`
	rows, err := getExec(repo.exec, exec).QueryContext(ctx, q, planID)
	if err != nil {
		return nil, errors.Wrap(err, "querying plan items")
	}
	defer func() { _ = rows.Close() }()

	var items []evalplan.Item
	for rows.Next() {
		var (
			it       evalplan.Item
			rubricID null.String
		)
		if err = rows.Scan(&it.ID, &it.PlanID, &it.Name, &it.Kind, &it.Weight, &it.GradedBy, &rubricID, &it.Position); err != nil {
			return nil, errors.Wrap(err, "scanning plan item")
		}
		it.RubricID = rubricID.String
		items = append(items, it)
	}
	return items, errors.Wrap(rows.Err(), "querying plan items")
}

// GetRubric loads the full structure in four queries, never per-row lookups.
func (repo planRepository) GetRubric(ctx context.Context, id string, exec ...core.DBExecutor) (evalplan.Rubric, error) {
	exe := getExec(repo.exec, exec)

	var rub evalplan.Rubric
	err := exe.QueryRowContext(ctx, `SELECT id, name FROM rubric WHERE id = $1`, id).Scan(&rub.ID, &rub.Name)
	if err != nil {
		if err == sql.ErrNoRows {
			return evalplan.Rubric{}, evalplan.ErrNotFound
		}
		return evalplan.Rubric{}, errors.Wrap(err, "finding rubric")
	}

	compRows, err := exe.QueryContext(ctx,
		`SELECT id, rubric_id, name, weight, position FROM rubric_component WHERE rubric_id = $1 ORDER BY position, id`, id)
	if err != nil {
		return evalplan.Rubric{}, errors.Wrap(err, "querying rubric components")
	}
	defer func() { _ = compRows.Close() }()

	compIdx := make(map[string]int)
	for compRows.Next() {
		var c evalplan.Component
		if err = compRows.Scan(&c.ID, &c.RubricID, &c.Name, &c.Weight, &c.Position); err != nil {
			return evalplan.Rubric{}, errors.Wrap(err, "scanning rubric component")
		}
		compIdx[c.ID] = len(rub.Components)
		rub.Components = append(rub.Components, c)
	}
	if err = compRows.Err(); err != nil {
		return evalplan.Rubric{}, errors.Wrap(err, "querying rubric components")
	}

	critRows, err := exe.QueryContext(ctx, `
SELECT cr.id, cr.component_id, cr.name, cr.position
FROM rubric_criterion cr
JOIN rubric_component c ON c.id = cr.component_id
WHERE c.rubric_id = $1
ORDER BY cr.position, cr.id`, id)
	if err != nil {
		return evalplan.Rubric{}, errors.Wrap(err, "querying rubric criteria")
	}
	defer func() { _ = critRows.Close() }()

	critIdx := make(map[string][2]int) // criterion id -> (component idx, criterion idx)
	for critRows.Next() {
		var cr evalplan.Criterion
		if err = critRows.Scan(&cr.ID, &cr.ComponentID, &cr.Name, &cr.Position); err != nil {
			return evalplan.Rubric{}, errors.Wrap(err, "scanning rubric criterion")
		}
		ci, ok := compIdx[cr.ComponentID]
		if !ok {
			continue
		}
		critIdx[cr.ID] = [2]int{ci, len(rub.Components[ci].Criteria)}
		rub.Components[ci].Criteria = append(rub.Components[ci].Criteria, cr)
	}
	if err = critRows.Err(); err != nil {
		return evalplan.Rubric{}, errors.Wrap(err, "querying rubric criteria")
	}

	lvlRows, err := exe.QueryContext(ctx, `
SELECT l.id, l.criterion_id, l.name, l.score, l.position
FROM rubric_level l
JOIN rubric_criterion cr ON cr.id = l.criterion_id
JOIN rubric_component c ON c.id = cr.component_id
WHERE c.rubric_id = $1
ORDER BY l.position, l.id`, id)
	if err != nil {
		return evalplan.Rubric{}, errors.Wrap(err, "querying rubric levels")
	}
	defer func() { _ = lvlRows.Close() }()

	for lvlRows.Next() {
		var l evalplan.Level
		if err = lvlRows.Scan(&l.ID, &l.CriterionID, &l.Name, &l.Score, &l.Position); err != nil {
			return evalplan.Rubric{}, errors.Wrap(err, "scanning rubric level")
		}
		idx, ok := critIdx[l.CriterionID]
		if !ok {
			continue
		}
		crit := &rub.Components[idx[0]].Criteria[idx[1]]
		crit.Levels = append(crit.Levels, l)
	}
	return rub, errors.Wrap(lvlRows.Err(), "querying rubric levels")
}

func (repo planRepository) QueryComponentGraders(ctx context.Context, itemIDs []string, exec ...core.DBExecutor) ([]evalplan.ComponentGrader, error) {
	if len(itemIDs) == 0 {
		return nil, nil
	}
	q, args, err := expandIn(`SELECT item_id, component_id, graded_by FROM item_component_grader WHERE item_id IN (?)`, itemIDs)
	if err != nil {
		return nil, err
	}
	rows, err := getExec(repo.exec, exec).QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying component graders")
	}
	defer func() { _ = rows.Close() }()

	var overrides []evalplan.ComponentGrader
	for rows.Next() {
		var cg evalplan.ComponentGrader
		if err = rows.Scan(&cg.ItemID, &cg.ComponentID, &cg.GradedBy); err != nil {
			return nil, errors.Wrap(err, "scanning component grader")
		}
		overrides = append(overrides, cg)
	}
	return overrides, errors.Wrap(rows.Err(), "querying component graders")
}
