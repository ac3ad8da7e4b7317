package evalplan

import "time"

// ItemKind classifies how a plan item gets its score.
type ItemKind string

const (
	KindDirectScore ItemKind = "DIRECT_SCORE"
	KindQuiz        ItemKind = "QUIZ"
	KindRubric      ItemKind = "RUBRIC"
)

// GradedBy names the grader pool responsible for an item (or, for rubric
// items, for a single rubric component — the component override wins).
type GradedBy string

const (
	ByAdminScope     GradedBy = "ADMIN_SCOPE"
	ByPanel          GradedBy = "PANEL"
	ByGeneralGraders GradedBy = "GENERAL_GRADERS"
)

// Plan is an evaluation plan; exactly one is active per career-period.
type Plan struct {
	ID             string    `json:"id"`
	CareerPeriodID string    `json:"career_period_id"`
	Name           string    `json:"name"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"` // UTC
}

// Item is one graded unit of a plan. Weight is its share (%) of the final
// score. RubricID is set for RUBRIC-kind items only; for those, GradedBy is
// overridden per component via ComponentGrader rows.
type Item struct {
	ID       string   `json:"id"`
	PlanID   string   `json:"plan_id"`
	Name     string   `json:"name"`
	Kind     ItemKind `json:"kind"`
	Weight   float64  `json:"weight"`
	GradedBy GradedBy `json:"graded_by"`
	RubricID string   `json:"rubric_id,omitempty"`
	Position int      `json:"position"`
}

// Rubric structure is shared across periods; grading always resolves to
// (item, component, criterion, level).
type Rubric struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Components []Component `json:"components"`
}

type Component struct {
	ID       string      `json:"id"`
	RubricID string      `json:"rubric_id"`
	Name     string      `json:"name"`
	Weight   float64     `json:"weight"` // share (%) inside the rubric
	Position int         `json:"position"`
	Criteria []Criterion `json:"criteria"`
}

type Criterion struct {
	ID          string  `json:"id"`
	ComponentID string  `json:"component_id"`
	Name        string  `json:"name"`
	Position    int     `json:"position"`
	Levels      []Level `json:"levels"`
}

type Level struct {
	ID          string  `json:"id"`
	CriterionID string  `json:"criterion_id"`
	Name        string  `json:"name"`
	Score       float64 `json:"score"`
	Position    int     `json:"position"`
}

// ComponentGrader overrides the grader pool for one component of one
// RUBRIC-kind item.
type ComponentGrader struct {
	ItemID      string   `json:"item_id"`
	ComponentID string   `json:"component_id"`
	GradedBy    GradedBy `json:"graded_by"`
}
