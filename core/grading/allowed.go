package grading

import (
	"github.com/tesina/backend/core/evalplan"
	"github.com/tesina/backend/core/panel"
)

// AllowedMap is the set of cells a tribunal seat holder may write. It is
// recomputed on every request, never persisted, so it always reflects the
// current plan configuration.
type AllowedMap map[Key]struct{}

func (m AllowedMap) Allows(k Key) bool {
	_, ok := m[k]
	return ok
}

// DeriveAllowedMap computes the allowed cells for a panel seat from the plan's
// items, the rubric structures (keyed by rubric id) and the per-(item,
// component) grader overrides.
//
// All three seats are treated as equally authorized over PANEL-graded cells;
// any finer per-seat narrowing belongs here and nowhere else, so callers stay
// untouched if that ever tightens. ADMIN_SCOPE and GENERAL_GRADERS cells are
// written through a different, non-panel path and never enter this map.
func DeriveAllowedMap(
	items []evalplan.Item,
	rubrics map[string]evalplan.Rubric,
	overrides []evalplan.ComponentGrader,
	d panel.Designation,
) AllowedMap {
	m := make(AllowedMap)
	if !d.Valid() {
		return m
	}

	override := make(map[Key]evalplan.GradedBy, len(overrides))
	for _, o := range overrides {
		override[Key{ItemID: o.ItemID, ComponentID: o.ComponentID}] = o.GradedBy
	}

	for _, item := range items {
		if item.Kind != evalplan.KindRubric {
			if item.GradedBy == evalplan.ByPanel {
				m[Key{ItemID: item.ID, ComponentID: SyntheticID, CriterionID: SyntheticID}] = struct{}{}
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
			if gradedBy != evalplan.ByPanel {
				continue
			}
			for _, crit := range comp.Criteria {
				m[Key{ItemID: item.ID, ComponentID: comp.ID, CriterionID: crit.ID}] = struct{}{}
			}
		}
	}
	return m
}
