package certificate

import "time"

// State is the certificate (acta) lifecycle.
type State string

const (
	StateDraft     State = "DRAFT"
	StateGenerated State = "GENERATED"
	StateSigned    State = "SIGNED"
)

// ItemScore is one plan item's aggregated result on a certificate.
type ItemScore struct {
	ItemID   string  `json:"item_id"`
	Name     string  `json:"name"`
	Weight   float64 `json:"weight"`   // item share (%) of the final score
	Score    float64 `json:"score"`    // 0-100 within the item
	Weighted float64 `json:"weighted"` // Score * Weight / 100
}

// Certificate holds the computed weighted scores for one locked assignment.
type Certificate struct {
	ID           string      `json:"id"`
	AssignmentID string      `json:"assignment_id"`
	State        State       `json:"state"`
	FinalScore   float64     `json:"final_score"`
	Items        []ItemScore `json:"items"`
	GeneratedAt  time.Time   `json:"generated_at,omitempty"` // UTC
	SignedAt     time.Time   `json:"signed_at,omitempty"`    // UTC
	CreatedAt    time.Time   `json:"created_at"`             // UTC
	UpdatedAt    time.Time   `json:"updated_at"`             // UTC
}
