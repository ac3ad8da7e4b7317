package user

import (
	"context"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/tesina/backend/core"
)

// Roles. A staff member may hold several; exactly one is active per session.
const (
	// RoleAdmin is the admin-capable role: it requires an active DIRECTOR or
	// SUPPORT career assignment to resolve a data scope.
	RoleAdmin = "admin"

	// RoleExaminer grades as a tribunal seat holder.
	RoleExaminer = "examiner"

	// RoleGrader grades items assigned to the general graders pool,
	// outside any tribunal seat.
	RoleGrader = "grader"
)

var (
	AllRoles = []string{RoleAdmin, RoleExaminer, RoleGrader}

	Roles = []Role{
		{Name: "Administrator", Value: RoleAdmin},
		{Name: "Examiner", Value: RoleExaminer},
		{Name: "General Grader", Value: RoleGrader},
	}
)

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// User is a staff member (docente).
type User struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Username           string    `json:"username"`
	Email              string    `json:"email"`
	IsActive           *bool     `json:"is_active"`
	MustChangePassword bool      `json:"must_change_password"`
	Roles              []string  `json:"roles"`
	PasswordHash       []byte    `json:"-"`
	CreatedAt          time.Time `json:"created_at"` // UTC
	UpdatedAt          time.Time `json:"updated_at"` // UTC
	LastLogin          time.Time `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) SetActive(active bool) {
	u.IsActive = &active
}

func (u *User) Active() bool {
	return u.IsActive != nil && *u.IsActive
}

func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func (u *User) IsAdmin() bool    { return u.HasRole(RoleAdmin) }
func (u *User) IsExaminer() bool { return u.HasRole(RoleExaminer) }
func (u *User) IsGrader() bool   { return u.HasRole(RoleGrader) }

// NewUser contains information needed to create a new User.
type NewUser struct {
	Name            string   `json:"name" validate:"required"`
	Username        string   `json:"username" validate:"omitempty,min=6,alphanum_"`
	Email           string   `json:"email" validate:"omitempty,email"`
	Password        string   `json:"password" validate:"required"`
	PasswordConfirm string   `json:"password_confirm" validate:"required,eqfield=Password"`
	Roles           []string `json:"roles" validate:"omitempty,allroles"`
}

func (nu *NewUser) Validate(ctx context.Context, svc *Service) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Username = core.CleanString(nu.Username, true /* lower */)
	nu.Email = core.CleanString(nu.Email, true /* lower */)

	if err := core.Validate.Struct(nu); err != nil {
		return err
	}
	return svc.checkUniqueness(ctx, nu.Username, nu.Email)
}

// UpdateUser defines what information may be provided to modify an existing User.
type UpdateUser struct {
	Name            string   `json:"name"`
	Username        string   `json:"username" validate:"omitempty,min=6,alphanum_"`
	Email           string   `json:"email" validate:"omitempty,email"`
	IsActive        *bool    `json:"is_active"`
	Roles           []string `json:"roles" validate:"omitempty,allroles"`
	Password        string   `json:"password" validate:"omitempty"`
	PasswordConfirm string   `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
}

func (uu *UpdateUser) Validate(ctx context.Context, origUsr User, svc *Service) error {
	if name := core.CleanString(uu.Name); name != "" {
		uu.Name = name
	} else {
		uu.Name = origUsr.Name
	}

	if uname := core.CleanString(uu.Username, true); uname != "" {
		uu.Username = uname
	} else {
		uu.Username = origUsr.Username
	}

	if email := core.CleanString(uu.Email, true); email != "" {
		uu.Email = email
	} else {
		uu.Email = origUsr.Email
	}

	if err := core.Validate.Struct(uu); err != nil {
		return err
	}
	return svc.checkUniqueness(ctx, uu.Username, uu.Email, origUsr)
}

// GetFilter looks a User up by exactly one of its unique attributes.
type GetFilter struct {
	ID              string
	Username        string
	Email           string
	UsernameOrEmail []string // [username, email]; either may be empty
}
