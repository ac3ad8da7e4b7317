package grading

import (
	"context"
	"errors"
	"fmt"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/tesina/backend/core"
	"github.com/tesina/backend/core/career"
	"github.com/tesina/backend/core/evalplan"
	"github.com/tesina/backend/core/panel"
)

var (
	// ErrAccessDenied is returned when the grader holds no seat on the
	// assignment's panel.
	ErrAccessDenied = errors.New("grader is not a member of this panel")

	ErrMalformedPayload = errors.New("malformed grade submission payload")

	ErrCriterionNotAuthorized = errors.New("criterion not authorized for this grader")
)

// UnauthorizedCriterionError carries the offending cell so the caller can
// point at the exact field. Its cause is ErrCriterionNotAuthorized.
type UnauthorizedCriterionError struct {
	Key Key
}

func (e *UnauthorizedCriterionError) Error() string {
	return fmt.Sprintf("criterion %s not authorized for this grader", e.Key)
}

func (e *UnauthorizedCriterionError) Cause() error { return ErrCriterionNotAuthorized }

type (
	Repository interface {
		// QueryEntries returns one grader's saved entries for an assignment.
		QueryEntries(ctx context.Context, assignmentID, graderID string, exec ...core.DBExecutor) ([]Entry, error)
		// QueryAssignmentEntries returns every grader's entries, used by the
		// certificate read path over locked assignments.
		QueryAssignmentEntries(ctx context.Context, assignmentID string, exec ...core.DBExecutor) ([]Entry, error)
		// UpsertEntries writes the batch, replacing rows that share the entry's
		// (assignment, item, component, criterion, grader) key. Rows absent from
		// the batch are left untouched: omission means "not yet graded", never
		// "clear this cell".
		UpsertEntries(ctx context.Context, entries []Entry, exec ...core.DBExecutor) error
	}

	Service struct {
		db      core.DB
		repo    Repository
		panels  panel.Repository
		plans   evalplan.Repository
		careers career.Repository
		log     core.Logger
	}
)

func NewService(
	db core.DB,
	repo Repository,
	panels panel.Repository,
	plans evalplan.Repository,
	careers career.Repository,
	log core.Logger,
) *Service {
	return &Service{
		db:      db,
		repo:    repo,
		panels:  panels,
		plans:   plans,
		careers: careers,
		log:     log,
	}
}

type (
	// ItemView is one plan item as a specific grader sees it: the rubric
	// structure when there is one, the component grader overrides, and the
	// grader's previously saved entries.
	ItemView struct {
		Item             evalplan.Item              `json:"item"`
		Rubric           *evalplan.Rubric           `json:"rubric,omitempty"`
		ComponentGraders []evalplan.ComponentGrader `json:"component_graders,omitempty"`
		Entries          []Entry                    `json:"entries"`
	}

	// Structure is the materialized grading view for one grader on one
	// assignment, returned as a single document.
	Structure struct {
		Assignment  panel.Assignment  `json:"assignment"`
		Period      career.Period     `json:"period"`
		Designation panel.Designation `json:"designation"`
		Plan        evalplan.Plan     `json:"plan"`
		Items       []ItemView        `json:"items"`
	}
)

// resolveContext loads the assignment and the grader's seat on its panel.
func (svc *Service) resolveContext(ctx context.Context, assignmentID, graderID string) (panel.Assignment, panel.Designation, error) {
	a, err := svc.panels.GetAssignment(ctx, assignmentID)
	if err != nil {
		return panel.Assignment{}, "", err
	}
	d, err := svc.panels.GetDesignation(ctx, a.PanelID, graderID)
	if err != nil {
		if err == panel.ErrNotMember {
			return panel.Assignment{}, "", ErrAccessDenied
		}
		return panel.Assignment{}, "", err
	}
	return a, d, nil
}

// resolvePlan resolves the assignment's career-period (never trusting a
// caller-supplied value) and the period's active plan.
func (svc *Service) resolvePlan(ctx context.Context, a panel.Assignment) (career.Period, evalplan.Plan, error) {
	p, err := svc.panels.GetPanel(ctx, a.PanelID)
	if err != nil {
		return career.Period{}, evalplan.Plan{}, err
	}
	period, err := svc.careers.GetPeriod(ctx, p.CareerPeriodID)
	if err != nil {
		return career.Period{}, evalplan.Plan{}, err
	}
	plan, err := svc.plans.GetActivePlan(ctx, period.ID)
	if err != nil {
		return career.Period{}, evalplan.Plan{}, err
	}
	return period, plan, nil
}

// planStructure loads items, overrides and rubrics for a plan.
func (svc *Service) planStructure(ctx context.Context, planID string) ([]evalplan.Item, []evalplan.ComponentGrader, map[string]evalplan.Rubric, error) {
	items, err := svc.plans.QueryItems(ctx, planID)
	if err != nil {
		return nil, nil, nil, err
	}

	itemIDs := make([]string, 0, len(items))
	for _, it := range items {
		itemIDs = append(itemIDs, it.ID)
	}
	overrides, err := svc.plans.QueryComponentGraders(ctx, itemIDs)
	if err != nil {
		return nil, nil, nil, err
	}

	rubrics := make(map[string]evalplan.Rubric)
	for _, it := range items {
		if it.Kind != evalplan.KindRubric || it.RubricID == "" {
			continue
		}
		if _, ok := rubrics[it.RubricID]; ok {
			continue
		}
		rub, err := svc.plans.GetRubric(ctx, it.RubricID)
		if err != nil {
			return nil, nil, nil, err
		}
		rubrics[it.RubricID] = rub
	}
	return items, overrides, rubrics, nil
}

// relevantToPanel filters plan items down to what a panel seat must see:
// non-rubric items graded by the panel, and rubric items with at least one
// panel-graded component.
func relevantToPanel(items []evalplan.Item, overrides []evalplan.ComponentGrader, rubrics map[string]evalplan.Rubric) []evalplan.Item {
	override := make(map[Key]evalplan.GradedBy, len(overrides))
	for _, o := range overrides {
		override[Key{ItemID: o.ItemID, ComponentID: o.ComponentID}] = o.GradedBy
	}

	var out []evalplan.Item
	for _, item := range items {
		if item.Kind != evalplan.KindRubric {
			if item.GradedBy == evalplan.ByPanel {
				out = append(out, item)
			}
			continue
		}
		rub, ok := rubrics[item.RubricID]
		if !ok {
			continue
		}
		for _, comp := range rub.Components {
			gradedBy, ok := override[Key{ItemID: item.ID, ComponentID: comp.ID}]
			if !ok {
				gradedBy = item.GradedBy
			}
			if gradedBy == evalplan.ByPanel {
				out = append(out, item)
				break
			}
		}
	}
	return out
}

// BuildStructure materializes the grading view for one grader on one
// assignment: the career-period, the grader's seat, the active plan, and each
// relevant item's rubric structure with previously saved entries.
func (svc *Service) BuildStructure(ctx context.Context, assignmentID, graderID string) (Structure, error) {
	a, d, err := svc.resolveContext(ctx, assignmentID, graderID)
	if err != nil {
		return Structure{}, err
	}
	period, plan, err := svc.resolvePlan(ctx, a)
	if err != nil {
		return Structure{}, err
	}
	items, overrides, rubrics, err := svc.planStructure(ctx, plan.ID)
	if err != nil {
		return Structure{}, err
	}

	entries, err := svc.repo.QueryEntries(ctx, assignmentID, graderID)
	if err != nil {
		return Structure{}, err
	}
	entriesByItem := make(map[string][]Entry)
	for _, e := range entries {
		entriesByItem[e.ItemID] = append(entriesByItem[e.ItemID], e)
	}
	overridesByItem := make(map[string][]evalplan.ComponentGrader)
	for _, o := range overrides {
		overridesByItem[o.ItemID] = append(overridesByItem[o.ItemID], o)
	}

	st := Structure{
		Assignment:  a,
		Period:      period,
		Designation: d,
		Plan:        plan,
	}
	for _, item := range relevantToPanel(items, overrides, rubrics) {
		view := ItemView{
			Item:             item,
			ComponentGraders: overridesByItem[item.ID],
			Entries:          entriesByItem[item.ID],
		}
		if item.Kind == evalplan.KindRubric {
			if rub, ok := rubrics[item.RubricID]; ok {
				view.Rubric = &rub
			}
		}
		st.Items = append(st.Items, view)
	}
	return st, nil
}

// Submit validates the nested payload against the allowed map and the lock
// state, then upserts all candidates as one atomic unit. Validation is pure
// read-then-decide: a failure at any step has written nothing.
func (svc *Service) Submit(ctx context.Context, assignmentID, graderID string, sub Submission) (Structure, error) {
	a, d, err := svc.resolveContext(ctx, assignmentID, graderID)
	if err != nil {
		return Structure{}, err
	}
	if a.Locked {
		return Structure{}, panel.ErrAssignmentLocked
	}
	_, plan, err := svc.resolvePlan(ctx, a)
	if err != nil {
		return Structure{}, err
	}
	items, overrides, rubrics, err := svc.planStructure(ctx, plan.ID)
	if err != nil {
		return Structure{}, err
	}
	allowed := DeriveAllowedMap(items, rubrics, overrides, d)

	if err = sub.Validate(); err != nil {
		return Structure{}, err
	}
	candidates := sub.flatten(assignmentID, graderID, time.Now().UTC())

	// fail-fast, all-or-nothing: the first unauthorized cell rejects the
	// whole submission
	for _, cand := range candidates {
		if !allowed.Allows(cand.Key()) {
			return Structure{}, &UnauthorizedCriterionError{Key: cand.Key()}
		}
	}

	tx, err := svc.db.BeginTx(ctx, nil)
	if err != nil {
		return Structure{}, pkgerrors.Wrap(err, "beginning grade transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if err = svc.repo.UpsertEntries(ctx, candidates, tx); err != nil {
		return Structure{}, pkgerrors.Wrap(err, "upserting grade entries")
	}
	if err = tx.Commit(); err != nil {
		return Structure{}, pkgerrors.Wrap(err, "committing grade transaction")
	}

	// refreshed view, so the caller renders confirmed state without a second
	// round trip
	return svc.BuildStructure(ctx, assignmentID, graderID)
}

// AssignmentEntries exposes the finalized grades of a locked assignment for
// downstream consumers (certificate generation).
func (svc *Service) AssignmentEntries(ctx context.Context, assignmentID string) ([]Entry, error) {
	a, err := svc.panels.GetAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if !a.Locked {
		return nil, panel.ErrAssignmentOpen
	}
	return svc.repo.QueryAssignmentEntries(ctx, assignmentID)
}
