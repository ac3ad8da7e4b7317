package career

import "time"

// AssignmentKind classifies a staff member's link to a career.
type AssignmentKind string

const (
	KindDirector AssignmentKind = "DIRECTOR"
	KindSupport  AssignmentKind = "SUPPORT"
	KindTeacher  AssignmentKind = "TEACHER"
)

// AdminCapable reports whether the assignment kind grants career administration.
func (k AssignmentKind) AdminCapable() bool {
	return k == KindDirector || k == KindSupport
}

type Career struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

// Period is a (career, term) pair. By convention exactly one period per career
// is active at a time; the convention is enforced at read time (latest active
// row wins) and by a partial unique index in storage.
type Period struct {
	ID        string    `json:"id"`
	CareerID  string    `json:"career_id"`
	Term      string    `json:"term"` // eg. "2025-1"
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

// StaffAssignment links a staff member to a career (carrera-docente).
// IDs are sequential so "oldest" tie-breaks resolve as "lowest id".
type StaffAssignment struct {
	ID        int64          `json:"id"`
	CareerID  string         `json:"career_id"`
	UserID    string         `json:"user_id"`
	Kind      AssignmentKind `json:"kind"`
	IsActive  bool           `json:"is_active"`
	CreatedAt time.Time      `json:"created_at"` // UTC
}
