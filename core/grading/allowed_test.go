package grading

import (
	"testing"

	"github.com/tesina/backend/core/evalplan"
	"github.com/tesina/backend/core/panel"
)

func TestDeriveAllowedMap(t *testing.T) {
	rubric := evalplan.Rubric{
		ID:   "rub1",
		Name: "Defense",
		Components: []evalplan.Component{
			{
				ID:       "comp1",
				RubricID: "rub1",
				Name:     "Content",
				Criteria: []evalplan.Criterion{
					{ID: "critA", ComponentID: "comp1"},
					{ID: "critB", ComponentID: "comp1"},
				},
			},
			{
				ID:       "comp2",
				RubricID: "rub1",
				Name:     "Form",
				Criteria: []evalplan.Criterion{
					{ID: "critC", ComponentID: "comp2"},
				},
			},
		},
	}
	rubrics := map[string]evalplan.Rubric{"rub1": rubric}

	items := []evalplan.Item{
		{ID: "direct1", Kind: evalplan.KindDirectScore, GradedBy: evalplan.ByPanel},
		{ID: "direct2", Kind: evalplan.KindQuiz, GradedBy: evalplan.ByGeneralGraders},
		{ID: "rubItem", Kind: evalplan.KindRubric, GradedBy: evalplan.ByPanel, RubricID: "rub1"},
		{ID: "orphan", Kind: evalplan.KindRubric, GradedBy: evalplan.ByPanel, RubricID: "missing"},
	}
	overrides := []evalplan.ComponentGrader{
		{ItemID: "rubItem", ComponentID: "comp2", GradedBy: evalplan.ByGeneralGraders},
	}

	tests := []struct {
		name        string
		items       []evalplan.Item
		overrides   []evalplan.ComponentGrader
		designation panel.Designation
		want        []Key
		wantAbsent  []Key
	}{
		{
			name:        "invalid designation gets nothing",
			items:       items,
			overrides:   overrides,
			designation: "CHAIRMAN",
		},
		{
			name:        "non-rubric panel item gets the synthetic cell",
			items:       items,
			overrides:   overrides,
			designation: panel.President,
			want:        []Key{{ItemID: "direct1", ComponentID: SyntheticID, CriterionID: SyntheticID}},
			wantAbsent:  []Key{{ItemID: "direct2", ComponentID: SyntheticID, CriterionID: SyntheticID}},
		},
		{
			name:        "override excludes a component from the panel",
			items:       items,
			overrides:   overrides,
			designation: panel.Member1,
			want: []Key{
				{ItemID: "rubItem", ComponentID: "comp1", CriterionID: "critA"},
				{ItemID: "rubItem", ComponentID: "comp1", CriterionID: "critB"},
			},
			wantAbsent: []Key{
				{ItemID: "rubItem", ComponentID: "comp2", CriterionID: "critC"},
			},
		},
		{
			name: "override pulls a component into the panel",
			items: []evalplan.Item{
				{ID: "rubItem", Kind: evalplan.KindRubric, GradedBy: evalplan.ByGeneralGraders, RubricID: "rub1"},
			},
			overrides: []evalplan.ComponentGrader{
				{ItemID: "rubItem", ComponentID: "comp2", GradedBy: evalplan.ByPanel},
			},
			designation: panel.Member2,
			want: []Key{
				{ItemID: "rubItem", ComponentID: "comp2", CriterionID: "critC"},
			},
			wantAbsent: []Key{
				{ItemID: "rubItem", ComponentID: "comp1", CriterionID: "critA"},
			},
		},
		{
			name:        "missing rubric is skipped",
			items:       items,
			overrides:   overrides,
			designation: panel.President,
			wantAbsent: []Key{
				{ItemID: "orphan", ComponentID: SyntheticID, CriterionID: SyntheticID},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := DeriveAllowedMap(tt.items, rubrics, tt.overrides, tt.designation)
			if tt.designation == "CHAIRMAN" && len(m) != 0 {
				t.Errorf("DeriveAllowedMap() = %v, want empty", m)
			}
			for _, k := range tt.want {
				if !m.Allows(k) {
					t.Errorf("DeriveAllowedMap() missing %s", k)
				}
			}
			for _, k := range tt.wantAbsent {
				if m.Allows(k) {
					t.Errorf("DeriveAllowedMap() unexpectedly allows %s", k)
				}
			}
		})
	}
}

func TestDeriveAllowedMap_seatInsensitive(t *testing.T) {
	items := []evalplan.Item{
		{ID: "direct1", Kind: evalplan.KindDirectScore, GradedBy: evalplan.ByPanel},
	}

	var prev AllowedMap
	for _, d := range panel.Designations {
		m := DeriveAllowedMap(items, nil, nil, d)
		if prev != nil && len(m) != len(prev) {
			t.Errorf("DeriveAllowedMap(%s) differs across seats", d)
		}
		prev = m
	}
}
