package auth_test

import (
	"context"
	"testing"

	"github.com/tesina/backend/core/auth"
	"github.com/tesina/backend/core/career"
	"github.com/tesina/backend/core/user"
	"github.com/tesina/backend/storage/database/inmem"
	"github.com/tesina/backend/tests"
)

func TestService_Resolve(t *testing.T) {
	db := inmemdb.NewDB()
	usrRepo := inmemdb.NewUserRepository(db)
	svc := auth.NewService(inmemdb.NewCareerRepository(db))
	ctx := context.Background()

	multi := testutil.CreateUser(t, usrRepo, "Multi", "multirole", "multi@test.cd", "pwd", []string{user.RoleAdmin, user.RoleExaminer}, true)
	solo := testutil.CreateUser(t, usrRepo, "Solo", "solograder", "solo@test.cd", "pwd", []string{user.RoleGrader}, true)
	noAdminScope := testutil.CreateUser(t, usrRepo, "Bare", "bareadmin", "bare@test.cd", "pwd", []string{user.RoleAdmin}, true)

	informatics := testutil.CreateCareer(t, db, "Informatics", "INF")
	law := testutil.CreateCareer(t, db, "Law", "LAW")

	// seeded in this order so the serial ids are ascending: an inactive
	// DIRECTOR link first, then the active SUPPORT link that must win the
	// lowest-active-id tie-break, then a younger active DIRECTOR link
	testutil.CreateStaffAssignment(t, db, informatics.ID, multi.ID, career.KindDirector, false)
	wantScope := testutil.CreateStaffAssignment(t, db, informatics.ID, multi.ID, career.KindSupport, true)
	testutil.CreateStaffAssignment(t, db, law.ID, multi.ID, career.KindDirector, true)

	// admin-capable kinds only qualify
	testutil.CreateStaffAssignment(t, db, law.ID, noAdminScope.ID, career.KindTeacher, true)

	tests := []struct {
		name      string
		usr       user.User
		role      string
		wantErr   error
		wantRole  string
		wantScope *auth.Scope
	}{
		{name: "no role, multiple granted", usr: multi, wantErr: auth.ErrRoleSelectionRequired},
		{name: "no role, sole granted auto-selects", usr: solo, wantRole: user.RoleGrader},
		{name: "role not granted", usr: solo, role: user.RoleAdmin, wantErr: auth.ErrRoleNotGranted},
		{name: "non-admin role carries no scope", usr: multi, role: user.RoleExaminer, wantRole: user.RoleExaminer},
		{
			name:     "admin role derives the oldest active scope",
			usr:      multi,
			role:     user.RoleAdmin,
			wantRole: user.RoleAdmin,
			wantScope: &auth.Scope{
				StaffAssignmentID: wantScope.ID,
				CareerID:          informatics.ID,
				Kind:              career.KindSupport,
			},
		},
		{
			name:     "requested role is cleaned",
			usr:      multi,
			role:     "  Examiner ",
			wantRole: user.RoleExaminer,
		},
		{name: "admin role without admin assignment", usr: noAdminScope, role: user.RoleAdmin, wantErr: auth.ErrNoAdminScope},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc, err := svc.Resolve(ctx, tt.usr, tt.role)
			if err != tt.wantErr {
				t.Fatalf("Resolve() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			if acc.ActiveRole != tt.wantRole {
				t.Errorf("Resolve() ActiveRole = %s, want %s", acc.ActiveRole, tt.wantRole)
			}
			if acc.UserID != tt.usr.ID {
				t.Errorf("Resolve() UserID = %s, want %s", acc.UserID, tt.usr.ID)
			}
			if tt.wantScope == nil {
				if acc.Scope != nil {
					t.Errorf("Resolve() Scope = %+v, want nil", acc.Scope)
				}
			} else if acc.Scope == nil || *acc.Scope != *tt.wantScope {
				t.Errorf("Resolve() Scope = %+v, want %+v", acc.Scope, tt.wantScope)
			}
		})
	}
}

func TestAccess_IsAdmin(t *testing.T) {
	tests := []struct {
		name string
		acc  auth.Access
		want bool
	}{
		{name: "admin with scope", acc: auth.Access{ActiveRole: user.RoleAdmin, Scope: &auth.Scope{StaffAssignmentID: 1}}, want: true},
		{name: "admin without scope", acc: auth.Access{ActiveRole: user.RoleAdmin}},
		{name: "examiner with scope", acc: auth.Access{ActiveRole: user.RoleExaminer, Scope: &auth.Scope{StaffAssignmentID: 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.acc.IsAdmin(); got != tt.want {
				t.Errorf("IsAdmin() = %v, want %v", got, tt.want)
			}
		})
	}
}
