package auth

import (
	"context"
	"errors"

	"github.com/tesina/backend/core"
	"github.com/tesina/backend/core/career"
	"github.com/tesina/backend/core/user"
)

var (
	// ErrRoleSelectionRequired is returned when no role was requested and the
	// principal holds more than one (or none): the caller must pick explicitly,
	// we never default silently.
	ErrRoleSelectionRequired = errors.New("active role selection required")

	ErrRoleNotGranted = errors.New("requested role is not granted")

	// ErrNoAdminScope is a hard precondition failure: admin-role access without
	// a career scope must never be issued.
	ErrNoAdminScope = errors.New("no active career administration scope")
)

// Scope is the data scope attached to an admin-capable active role: the career
// the principal administers, through which staff assignment.
type Scope struct {
	StaffAssignmentID int64                 `json:"staff_assignment_id"`
	CareerID          string                `json:"career_id"`
	Kind              career.AssignmentKind `json:"kind"`
}

// Access is what a resolved session may do: the principal, every role granted
// to it, the one currently active, and the admin scope if that role needs one.
// The API layer signs it into the capability token.
type Access struct {
	User       user.User `json:"-"`
	UserID     string    `json:"user_id"`
	Roles      []string  `json:"roles"`
	ActiveRole string    `json:"active_role"`
	Scope      *Scope    `json:"scope,omitempty"`
}

type Service struct {
	careers career.Repository
}

func NewService(careers career.Repository) *Service {
	return &Service{careers: careers}
}

// Resolve computes the principal's Access for the requested active role.
// Scope is always re-derived from storage; nothing is trusted from a prior
// token. Pass an empty requestedRole to auto-select a sole granted role.
func (svc *Service) Resolve(ctx context.Context, usr user.User, requestedRole string) (Access, error) {
	active := core.CleanString(requestedRole, true /* lower */)

	if active == "" {
		if len(usr.Roles) != 1 {
			return Access{}, ErrRoleSelectionRequired
		}
		active = usr.Roles[0]
	} else if !usr.HasRole(active) {
		return Access{}, ErrRoleNotGranted
	}

	acc := Access{
		User:       usr,
		UserID:     usr.ID,
		Roles:      usr.Roles,
		ActiveRole: active,
	}

	if active == user.RoleAdmin {
		sa, err := svc.careers.GetAdminAssignment(ctx, usr.ID)
		if err != nil {
			if err == career.ErrNoAdminAssignment {
				return Access{}, ErrNoAdminScope
			}
			return Access{}, err
		}
		acc.Scope = &Scope{
			StaffAssignmentID: sa.ID,
			CareerID:          sa.CareerID,
			Kind:              sa.Kind,
		}
	}
	return acc, nil
}

// IsAdmin reports whether the access carries an admin-scoped active role.
func (acc Access) IsAdmin() bool {
	return acc.ActiveRole == user.RoleAdmin && acc.Scope != nil
}
