package panel_test

import (
	"context"
	"sync"
	"testing"

	"github.com/pkg/errors"

	"github.com/tesina/backend/core"
	"github.com/tesina/backend/core/career"
	"github.com/tesina/backend/core/certificate"
	"github.com/tesina/backend/core/panel"
	"github.com/tesina/backend/core/user"
	"github.com/tesina/backend/storage/database/inmem"
	"github.com/tesina/backend/tests"
)

type fixture struct {
	db       *inmemdb.DB
	svc      *panel.Service
	certRepo certificate.Repository

	period career.Period
	roster panel.Roster
}

func setup(t *testing.T) fixture {
	db := inmemdb.NewDB()
	usrRepo := inmemdb.NewUserRepository(db)
	panelRepo := inmemdb.NewPanelRepository(db)
	planRepo := inmemdb.NewPlanRepository(db)
	careerRepo := inmemdb.NewCareerRepository(db)
	gradeRepo := inmemdb.NewGradeRepository(db)
	certRepo := inmemdb.NewCertificateRepository(db)

	certSvc := certificate.NewService(certRepo, panelRepo, planRepo, gradeRepo)
	svc := panel.NewService(db, panelRepo, careerRepo, usrRepo, certSvc, nil, core.NopLogger{})

	c := testutil.CreateCareer(t, db, "Informatics", "INF")
	period := testutil.CreatePeriod(t, db, c.ID, "2026-1", true)

	var saIDs [4]int64
	unames := [4]string{"president1", "memberone1", "membertwo2", "substitute"}
	for i, uname := range unames {
		usr := testutil.CreateUser(t, usrRepo, uname, uname, uname+"@test.cd", "pwd", []string{user.RoleExaminer}, true)
		saIDs[i] = testutil.CreateStaffAssignment(t, db, c.ID, usr.ID, career.KindTeacher, true).ID
	}

	return fixture{
		db:       db,
		svc:      svc,
		certRepo: certRepo,
		period:   period,
		roster:   panel.Roster{President: saIDs[0], Member1: saIDs[1], Member2: saIDs[2]},
	}
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("auto-allocated numbers are sequential", func(t *testing.T) {
		f := setup(t)
		for want := 1; want <= 2; want++ {
			p, err := f.svc.Create(ctx, panel.NewPanel{CareerPeriodID: f.period.ID, Roster: f.roster})
			if err != nil {
				t.Fatalf("Create() failed: %v", err)
			}
			if p.CaseNumber != want {
				t.Errorf("CaseNumber = %d, want %d", p.CaseNumber, want)
			}
		}
	})

	t.Run("concurrent creates allocate distinct numbers", func(t *testing.T) {
		f := setup(t)

		var wg sync.WaitGroup
		numbers := make(chan int, 2)
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				p, err := f.svc.Create(ctx, panel.NewPanel{CareerPeriodID: f.period.ID, Roster: f.roster})
				if err != nil {
					t.Errorf("Create() failed: %v", err)
					return
				}
				numbers <- p.CaseNumber
			}()
		}
		wg.Wait()
		close(numbers)

		seen := make(map[int]bool)
		for n := range numbers {
			if seen[n] {
				t.Errorf("case number %d allocated twice", n)
			}
			seen[n] = true
		}
	})

	t.Run("supplied number conflict", func(t *testing.T) {
		f := setup(t)
		if _, err := f.svc.Create(ctx, panel.NewPanel{CareerPeriodID: f.period.ID, CaseNumber: 7, Roster: f.roster}); err != nil {
			t.Fatalf("Create() failed: %v", err)
		}
		_, err := f.svc.Create(ctx, panel.NewPanel{CareerPeriodID: f.period.ID, CaseNumber: 7, Roster: f.roster})
		if err != panel.ErrCaseNumberConflict {
			t.Errorf("Create() error = %v, wantErr %v", err, panel.ErrCaseNumberConflict)
		}
	})

	t.Run("unknown period", func(t *testing.T) {
		f := setup(t)
		_, err := f.svc.Create(ctx, panel.NewPanel{CareerPeriodID: "nope", Roster: f.roster})
		if err != career.ErrPeriodNotFound {
			t.Errorf("Create() error = %v, wantErr %v", err, career.ErrPeriodNotFound)
		}
	})

	t.Run("duplicate seats are rejected", func(t *testing.T) {
		f := setup(t)
		dup := panel.Roster{President: f.roster.President, Member1: f.roster.President, Member2: f.roster.Member2}
		_, err := f.svc.Create(ctx, panel.NewPanel{CareerPeriodID: f.period.ID, Roster: dup})
		if err == nil {
			t.Fatal("Create() expected a validation error")
		}
	})

	t.Run("unknown staff assignment is rejected", func(t *testing.T) {
		f := setup(t)
		bad := panel.Roster{President: f.roster.President, Member1: f.roster.Member1, Member2: 999}
		_, err := f.svc.Create(ctx, panel.NewPanel{CareerPeriodID: f.period.ID, Roster: bad})
		if _, ok := errors.Cause(err).(*core.ValidationError); !ok {
			t.Errorf("Create() error = %v, want *core.ValidationError", err)
		}
	})
}

func TestService_Update(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	p, err := f.svc.Create(ctx, panel.NewPanel{CareerPeriodID: f.period.ID, Roster: f.roster})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	notes := "rescheduled"

	t.Run("not found", func(t *testing.T) {
		if _, err := f.svc.Update(ctx, "nope", panel.UpdatePanel{Notes: &notes}); err != panel.ErrNotFound {
			t.Errorf("Update() error = %v, wantErr %v", err, panel.ErrNotFound)
		}
	})

	t.Run("zero case number keeps the current one", func(t *testing.T) {
		got, err := f.svc.Update(ctx, p.ID, panel.UpdatePanel{Notes: &notes})
		if err != nil {
			t.Fatalf("Update() failed: %v", err)
		}
		if got.CaseNumber != p.CaseNumber {
			t.Errorf("CaseNumber = %d, want %d", got.CaseNumber, p.CaseNumber)
		}
		if got.Notes != notes {
			t.Errorf("Notes = %q, want %q", got.Notes, notes)
		}
	})

	t.Run("nil notes keep the current ones, empty notes clear them", func(t *testing.T) {
		got, err := f.svc.Update(ctx, p.ID, panel.UpdatePanel{})
		if err != nil {
			t.Fatalf("Update() failed: %v", err)
		}
		if got.Notes != notes {
			t.Errorf("Notes = %q, want %q", got.Notes, notes)
		}

		empty := ""
		if got, err = f.svc.Update(ctx, p.ID, panel.UpdatePanel{Notes: &empty}); err != nil {
			t.Fatalf("Update() failed: %v", err)
		}
		if got.Notes != "" {
			t.Errorf("Notes = %q, want cleared", got.Notes)
		}
	})

	t.Run("roster replacement is a replace-set", func(t *testing.T) {
		// swap the president for the substitute (the 4th seeded assignment)
		newRoster := panel.Roster{President: 4, Member1: f.roster.Member1, Member2: f.roster.Member2}
		if _, err := f.svc.Update(ctx, p.ID, panel.UpdatePanel{Roster: &newRoster}); err != nil {
			t.Fatalf("Update() failed: %v", err)
		}
		members, err := f.svc.Members(ctx, p.ID)
		if err != nil {
			t.Fatalf("Members() failed: %v", err)
		}
		if len(members) != 3 {
			t.Fatalf("len(members) = %d, want 3", len(members))
		}
		for _, m := range members {
			if m.Designation == panel.President && m.StaffAssignmentID != 4 {
				t.Errorf("president seat = %d, want 4", m.StaffAssignmentID)
			}
		}
	})
}

func TestService_assignmentLifecycle(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	p, err := f.svc.Create(ctx, panel.NewPanel{CareerPeriodID: f.period.ID, Roster: f.roster})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	a := testutil.CreateAssignment(t, f.db, p.ID, "student-1", false)

	t.Run("query the panel's assignments", func(t *testing.T) {
		if _, err := f.svc.QueryAssignments(ctx, "nope"); err != panel.ErrNotFound {
			t.Errorf("QueryAssignments() error = %v, wantErr %v", err, panel.ErrNotFound)
		}
		assignments, err := f.svc.QueryAssignments(ctx, p.ID)
		if err != nil {
			t.Fatalf("QueryAssignments() failed: %v", err)
		}
		if len(assignments) != 1 || assignments[0].ID != a.ID {
			t.Errorf("assignments = %+v, want the one scheduled case", assignments)
		}
	})

	t.Run("reopen an open assignment", func(t *testing.T) {
		if _, err := f.svc.ReopenAssignment(ctx, a.ID); err != panel.ErrAssignmentOpen {
			t.Errorf("ReopenAssignment() error = %v, wantErr %v", err, panel.ErrAssignmentOpen)
		}
	})

	t.Run("lock then lock again", func(t *testing.T) {
		got, err := f.svc.LockAssignment(ctx, a.ID)
		if err != nil {
			t.Fatalf("LockAssignment() failed: %v", err)
		}
		if !got.Locked {
			t.Error("assignment not locked")
		}
		if _, err := f.svc.LockAssignment(ctx, a.ID); err != panel.ErrAssignmentLocked {
			t.Errorf("LockAssignment() error = %v, wantErr %v", err, panel.ErrAssignmentLocked)
		}
	})

	t.Run("reopen invalidates a generated certificate", func(t *testing.T) {
		cert, err := f.certRepo.SaveCertificate(ctx, certificate.Certificate{
			ID:           "cert-1",
			AssignmentID: a.ID,
			State:        certificate.StateGenerated,
		})
		if err != nil {
			t.Fatalf("SaveCertificate() failed: %v", err)
		}

		got, err := f.svc.ReopenAssignment(ctx, a.ID)
		if err != nil {
			t.Fatalf("ReopenAssignment() failed: %v", err)
		}
		if got.Locked {
			t.Error("assignment still locked")
		}
		if cert, err = f.certRepo.GetByAssignment(ctx, a.ID); err != nil {
			t.Fatalf("GetByAssignment() failed: %v", err)
		}
		if cert.State != certificate.StateDraft {
			t.Errorf("certificate state = %s, want %s", cert.State, certificate.StateDraft)
		}
	})

	t.Run("a signed certificate blocks reopening", func(t *testing.T) {
		if _, err := f.svc.LockAssignment(ctx, a.ID); err != nil {
			t.Fatalf("LockAssignment() failed: %v", err)
		}
		if _, err := f.certRepo.SaveCertificate(ctx, certificate.Certificate{
			ID:           "cert-1",
			AssignmentID: a.ID,
			State:        certificate.StateSigned,
		}); err != nil {
			t.Fatalf("SaveCertificate() failed: %v", err)
		}
		if _, err := f.svc.ReopenAssignment(ctx, a.ID); err != panel.ErrCertificateSigned {
			t.Errorf("ReopenAssignment() error = %v, wantErr %v", err, panel.ErrCertificateSigned)
		}
	})
}
