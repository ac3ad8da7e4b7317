package grading

import (
	"fmt"
	"time"

	"github.com/tesina/backend/core"
)

// SyntheticID is the component/criterion placeholder for non-rubric items:
// their single score cell still resolves to an (item, component, criterion)
// key, with both sub-levels pinned to "0".
const SyntheticID = "0"

// Key identifies one grading cell.
type Key struct {
	ItemID      string
	ComponentID string
	CriterionID string
}

func (k Key) String() string {
	return k.ItemID + ":" + k.ComponentID + ":" + k.CriterionID
}

// Entry is the atomic grading fact: one grader's level pick for one cell of
// one assignment. Re-submission overwrites in place.
type Entry struct {
	ID           string    `json:"id"`
	AssignmentID string    `json:"assignment_id"`
	ItemID       string    `json:"item_id"`
	ComponentID  string    `json:"component_id"`
	CriterionID  string    `json:"criterion_id"`
	LevelID      string    `json:"level_id"`
	GraderID     string    `json:"grader_id"`
	Note         string    `json:"note,omitempty"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
}

func (e Entry) Key() Key {
	return Key{ItemID: e.ItemID, ComponentID: e.ComponentID, CriterionID: e.CriterionID}
}

type (
	// Submission is the nested grade payload: item → component → criterion
	// picks. Non-rubric items submit a single component "0" holding a single
	// criterion "0".
	Submission struct {
		Items []SubmissionItem `json:"items"`
	}

	SubmissionItem struct {
		ItemID     string                `json:"item_id"`
		Components []SubmissionComponent `json:"components"`
	}

	SubmissionComponent struct {
		ComponentID string                `json:"component_id"`
		Criteria    []SubmissionCriterion `json:"criteria"`
	}

	SubmissionCriterion struct {
		CriterionID string `json:"criterion_id"`
		LevelID     string `json:"level_id"`
		Note        string `json:"note"`
	}
)

// Validate walks the nesting manually so the error names the exact level that
// is missing or empty, rather than a generic "bad payload".
func (s *Submission) Validate() error {
	if len(s.Items) == 0 {
		return malformed("items", "at least one item is required")
	}
	for i, it := range s.Items {
		if core.CleanString(it.ItemID) == "" {
			return malformed(fmt.Sprintf("items[%d].item_id", i), "item id is required")
		}
		if len(it.Components) == 0 {
			return malformed(fmt.Sprintf("items[%d].components", i), "at least one component is required")
		}
		for j, comp := range it.Components {
			if core.CleanString(comp.ComponentID) == "" {
				return malformed(fmt.Sprintf("items[%d].components[%d].component_id", i, j), "component id is required")
			}
			if len(comp.Criteria) == 0 {
				return malformed(fmt.Sprintf("items[%d].components[%d].criteria", i, j), "at least one criterion is required")
			}
			for k, crit := range comp.Criteria {
				if core.CleanString(crit.CriterionID) == "" {
					return malformed(fmt.Sprintf("items[%d].components[%d].criteria[%d].criterion_id", i, j, k), "criterion id is required")
				}
				if core.CleanString(crit.LevelID) == "" {
					return malformed(fmt.Sprintf("items[%d].components[%d].criteria[%d].level_id", i, j, k), "level id is required")
				}
			}
		}
	}
	return nil
}

func malformed(field, text string) error {
	return core.NewValidationError(ErrMalformedPayload, core.FieldError{Field: field, Error: text})
}

// flatten expands the nested payload into Entry candidates.
func (s *Submission) flatten(assignmentID, graderID string, now time.Time) []Entry {
	var entries []Entry
	for _, it := range s.Items {
		for _, comp := range it.Components {
			for _, crit := range comp.Criteria {
				entries = append(entries, Entry{
					AssignmentID: assignmentID,
					ItemID:       core.CleanString(it.ItemID),
					ComponentID:  core.CleanString(comp.ComponentID),
					CriterionID:  core.CleanString(crit.CriterionID),
					LevelID:      core.CleanString(crit.LevelID),
					GraderID:     graderID,
					Note:         core.CleanString(crit.Note),
					CreatedAt:    now,
					UpdatedAt:    now,
				})
			}
		}
	}
	return entries
}
