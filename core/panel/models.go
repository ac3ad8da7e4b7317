package panel

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/tesina/backend/core"
)

// Designation is one of the three fixed tribunal seats.
type Designation string

const (
	President Designation = "PRESIDENT"
	Member1   Designation = "MEMBER_1"
	Member2   Designation = "MEMBER_2"
)

var Designations = []Designation{President, Member1, Member2}

func (d Designation) Valid() bool {
	return d == President || d == Member1 || d == Member2
}

// Panel is a tribunal: three examiners evaluating cases within one
// career-period. CaseNumber is unique and gapless-ascending per period.
type Panel struct {
	ID             string    `json:"id"`
	CareerPeriodID string    `json:"career_period_id"`
	CaseNumber     int       `json:"case_number"`
	Notes          string    `json:"notes,omitempty"`
	CreatedAt      time.Time `json:"created_at"` // UTC
	UpdatedAt      time.Time `json:"updated_at"` // UTC
}

// Member is one seat of a panel, bound to a career staff assignment rather
// than the bare user: membership is tied to the career link.
type Member struct {
	PanelID           string      `json:"panel_id"`
	Designation       Designation `json:"designation"`
	StaffAssignmentID int64       `json:"staff_assignment_id"`
	UserID            string      `json:"user_id,omitempty"` // denormalized on reads
}

// Assignment ties a panel to one student case. Once locked, grade writes are
// rejected; the lock transitions forward only, save for the admin reopen path.
type Assignment struct {
	ID             string    `json:"id"`
	PanelID        string    `json:"panel_id"`
	StudentID      string    `json:"student_id"`
	ScheduledAt    time.Time `json:"scheduled_at"`
	CaseDocumentID string    `json:"case_document_id,omitempty"`
	Locked         bool      `json:"locked"`
	CreatedAt      time.Time `json:"created_at"` // UTC
	UpdatedAt      time.Time `json:"updated_at"` // UTC
}

// Roster assigns a staff assignment id to each of the three seats.
type Roster struct {
	President int64 `json:"president" validate:"required"`
	Member1   int64 `json:"member_1" validate:"required"`
	Member2   int64 `json:"member_2" validate:"required"`
}

// Members expands the roster into the three Member rows for a panel.
func (r Roster) Members(panelID string) []Member {
	return []Member{
		{PanelID: panelID, Designation: President, StaffAssignmentID: r.President},
		{PanelID: panelID, Designation: Member1, StaffAssignmentID: r.Member1},
		{PanelID: panelID, Designation: Member2, StaffAssignmentID: r.Member2},
	}
}

func (r Roster) assignmentIDs() []int64 {
	return []int64{r.President, r.Member1, r.Member2}
}

// NewPanel is the create payload. CaseNumber 0 means "allocate the next one".
type NewPanel struct {
	CareerPeriodID string `json:"career_period_id" validate:"required"`
	CaseNumber     int    `json:"case_number" validate:"omitempty,min=1"`
	Notes          string `json:"notes"`
	Roster         Roster `json:"roster"`
}

func (np *NewPanel) Validate() error {
	np.CareerPeriodID = core.CleanString(np.CareerPeriodID)
	return core.Validate.Struct(np)
}

// UpdatePanel is the edit payload. A nil Roster keeps the current one, a zero
// CaseNumber keeps the existing number and a nil Notes keeps the current notes
// (an empty string clears them).
type UpdatePanel struct {
	CaseNumber int     `json:"case_number" validate:"omitempty,min=1"`
	Notes      *string `json:"notes"`
	Roster     *Roster `json:"roster"`
}

func (up *UpdatePanel) Validate() error {
	return core.Validate.Struct(up)
}

// NewAssignment is the payload scheduling a student case before a panel.
type NewAssignment struct {
	PanelID        string    `json:"panel_id" validate:"required"`
	StudentID      string    `json:"student_id" validate:"required"`
	ScheduledAt    time.Time `json:"scheduled_at" validate:"required"`
	CaseDocumentID string    `json:"case_document_id"`
}

func (na *NewAssignment) Validate() error {
	na.PanelID = core.CleanString(na.PanelID)
	na.StudentID = core.CleanString(na.StudentID)
	return core.Validate.Struct(na)
}

var distinctSeatsTag = "distinctseats"

func init() {
	core.Validate.RegisterStructValidation(rosterStructValidation, Roster{})
	core.RegisterCustomTranslation(distinctSeatsTag, "the three seats must reference distinct staff assignments")
}

// rosterStructValidation rejects the same staff assignment holding two seats.
func rosterStructValidation(sl validator.StructLevel) {
	r := sl.Current().Interface().(Roster)
	if r.President == r.Member1 || r.President == r.Member2 || r.Member1 == r.Member2 {
		sl.ReportError(r.President, "roster", "Roster", distinctSeatsTag, "")
	}
}
