package certificate_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/tesina/backend/core/career"
	"github.com/tesina/backend/core/certificate"
	"github.com/tesina/backend/core/evalplan"
	"github.com/tesina/backend/core/grading"
	"github.com/tesina/backend/core/panel"
	"github.com/tesina/backend/core/user"
	"github.com/tesina/backend/storage/database/inmem"
	"github.com/tesina/backend/tests"
)

type fixture struct {
	svc       *certificate.Service
	gradeRepo grading.Repository

	rubric  evalplan.Rubric
	rubItem evalplan.Item
	open    panel.Assignment
	locked  panel.Assignment
	graders [2]user.User
}

func setup(t *testing.T) fixture {
	db := inmemdb.NewDB()
	usrRepo := inmemdb.NewUserRepository(db)
	panelRepo := inmemdb.NewPanelRepository(db)
	planRepo := inmemdb.NewPlanRepository(db)
	gradeRepo := inmemdb.NewGradeRepository(db)
	certRepo := inmemdb.NewCertificateRepository(db)
	svc := certificate.NewService(certRepo, panelRepo, planRepo, gradeRepo)

	c := testutil.CreateCareer(t, db, "Informatics", "INF")
	period := testutil.CreatePeriod(t, db, c.ID, "2026-1", true)
	plan := testutil.CreatePlan(t, db, period.ID, "Defense 2026-1", true)

	rubric := testutil.CreateRubric(t, db, "Thesis defense")
	rubItem := testutil.CreateItem(t, db, plan.ID, "Defense", evalplan.KindRubric, 60, evalplan.ByPanel, rubric.ID, 1)
	testutil.CreateItem(t, db, plan.ID, "Report", evalplan.KindDirectScore, 40, evalplan.ByGeneralGraders, "", 2)

	var graders [2]user.User
	var saIDs [3]int64
	unames := [3]string{"president1", "memberone1", "membertwo2"}
	for i, uname := range unames {
		usr := testutil.CreateUser(t, usrRepo, uname, uname, uname+"@test.cd", "pwd", []string{user.RoleExaminer}, true)
		saIDs[i] = testutil.CreateStaffAssignment(t, db, c.ID, usr.ID, career.KindTeacher, true).ID
		if i < 2 {
			graders[i] = usr
		}
	}

	p := testutil.CreatePanel(t, db, period.ID, 1, panel.Roster{President: saIDs[0], Member1: saIDs[1], Member2: saIDs[2]})
	open := testutil.CreateAssignment(t, db, p.ID, "student-1", false)
	locked := testutil.CreateAssignment(t, db, p.ID, "student-2", true)

	return fixture{
		svc:       svc,
		gradeRepo: gradeRepo,
		rubric:    rubric,
		rubItem:   rubItem,
		open:      open,
		locked:    locked,
		graders:   graders,
	}
}

func (f fixture) entry(assignmentID, criterionID, levelID, graderID string) grading.Entry {
	now := time.Now().UTC()
	return grading.Entry{
		AssignmentID: assignmentID,
		ItemID:       f.rubItem.ID,
		ComponentID:  f.rubric.Components[0].ID,
		CriterionID:  criterionID,
		LevelID:      levelID,
		GraderID:     graderID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestService_Generate(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	t.Run("open assignment", func(t *testing.T) {
		if _, err := f.svc.Generate(ctx, f.open.ID); err != panel.ErrAssignmentOpen {
			t.Errorf("Generate() error = %v, wantErr %v", err, panel.ErrAssignmentOpen)
		}
	})

	t.Run("weighted aggregation", func(t *testing.T) {
		content, defense := f.rubric.Components[0], f.rubric.Components[1]
		depth, accuracy := content.Criteria[0], content.Criteria[1]
		clarity := defense.Criteria[0]

		// depth: Excellent (10) and Regular (5) average to 7.5;
		// accuracy: a single Excellent; clarity: a single Regular
		entries := []grading.Entry{
			f.entry(f.locked.ID, depth.ID, depth.Levels[1].ID, f.graders[0].ID),
			f.entry(f.locked.ID, depth.ID, depth.Levels[0].ID, f.graders[1].ID),
			f.entry(f.locked.ID, accuracy.ID, accuracy.Levels[1].ID, f.graders[0].ID),
		}
		clarityEntry := f.entry(f.locked.ID, clarity.ID, clarity.Levels[0].ID, f.graders[0].ID)
		clarityEntry.ComponentID = defense.ID
		entries = append(entries, clarityEntry)

		if err := f.gradeRepo.UpsertEntries(ctx, entries); err != nil {
			t.Fatalf("UpsertEntries() failed: %v", err)
		}

		cert, err := f.svc.Generate(ctx, f.locked.ID)
		if err != nil {
			t.Fatalf("Generate() failed: %v", err)
		}
		if cert.State != certificate.StateGenerated {
			t.Errorf("State = %s, want %s", cert.State, certificate.StateGenerated)
		}
		if len(cert.Items) != 2 {
			t.Fatalf("len(Items) = %d, want 2", len(cert.Items))
		}

		// content: (7.5 + 10) / 2 criteria = 8.75, weighted 60% -> 5.25
		// defense: 5, weighted 40% -> 2; item score 7.25
		rubScore := cert.Items[0]
		if math.Abs(rubScore.Score-7.25) > 1e-9 {
			t.Errorf("rubric item Score = %v, want 7.25", rubScore.Score)
		}
		if math.Abs(rubScore.Weighted-4.35) > 1e-9 {
			t.Errorf("rubric item Weighted = %v, want 4.35", rubScore.Weighted)
		}

		// the direct-score item is carried at zero; its result comes from
		// elsewhere
		if cert.Items[1].Score != 0 || cert.Items[1].Weighted != 0 {
			t.Errorf("direct item = %+v, want zero scores", cert.Items[1])
		}
		if math.Abs(cert.FinalScore-4.35) > 1e-9 {
			t.Errorf("FinalScore = %v, want 4.35", cert.FinalScore)
		}
	})

	t.Run("regenerate recomputes in place", func(t *testing.T) {
		before, err := f.svc.GetByAssignment(ctx, f.locked.ID)
		if err != nil {
			t.Fatalf("GetByAssignment() failed: %v", err)
		}
		after, err := f.svc.Generate(ctx, f.locked.ID)
		if err != nil {
			t.Fatalf("Generate() failed: %v", err)
		}
		if after.ID != before.ID {
			t.Errorf("regeneration changed the certificate id")
		}
	})
}

func TestService_signingLifecycle(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	t.Run("sign before generation", func(t *testing.T) {
		if _, err := f.svc.Sign(ctx, f.locked.ID); err != certificate.ErrNotFound {
			t.Errorf("Sign() error = %v, wantErr %v", err, certificate.ErrNotFound)
		}
	})

	if _, err := f.svc.Generate(ctx, f.locked.ID); err != nil {
		t.Fatalf("Generate() failed: %v", err)
	}

	t.Run("invalidate demotes to draft", func(t *testing.T) {
		if err := f.svc.InvalidateCertificate(ctx, f.locked.ID); err != nil {
			t.Fatalf("InvalidateCertificate() failed: %v", err)
		}
		got, err := f.svc.GetByAssignment(ctx, f.locked.ID)
		if err != nil {
			t.Fatalf("GetByAssignment() failed: %v", err)
		}
		if got.State != certificate.StateDraft {
			t.Errorf("State = %s, want %s", got.State, certificate.StateDraft)
		}
		if _, err := f.svc.Sign(ctx, f.locked.ID); err != certificate.ErrNotGenerated {
			t.Errorf("Sign() error = %v, wantErr %v", err, certificate.ErrNotGenerated)
		}
	})

	t.Run("sign finalizes", func(t *testing.T) {
		if _, err := f.svc.Generate(ctx, f.locked.ID); err != nil {
			t.Fatalf("Generate() failed: %v", err)
		}
		signed, err := f.svc.Sign(ctx, f.locked.ID)
		if err != nil {
			t.Fatalf("Sign() failed: %v", err)
		}
		if signed.State != certificate.StateSigned {
			t.Errorf("State = %s, want %s", signed.State, certificate.StateSigned)
		}
		if signed.SignedAt.IsZero() {
			t.Error("SignedAt not set")
		}

		ok, err := f.svc.HasSignedCertificate(ctx, f.locked.ID)
		if err != nil || !ok {
			t.Errorf("HasSignedCertificate() = %v, %v; want true", ok, err)
		}
		if _, err := f.svc.Sign(ctx, f.locked.ID); err != certificate.ErrAlreadySigned {
			t.Errorf("Sign() error = %v, wantErr %v", err, certificate.ErrAlreadySigned)
		}
		if _, err := f.svc.Generate(ctx, f.locked.ID); err != certificate.ErrAlreadySigned {
			t.Errorf("Generate() error = %v, wantErr %v", err, certificate.ErrAlreadySigned)
		}
		if err := f.svc.InvalidateCertificate(ctx, f.locked.ID); err != certificate.ErrAlreadySigned {
			t.Errorf("InvalidateCertificate() error = %v, wantErr %v", err, certificate.ErrAlreadySigned)
		}
	})

	t.Run("no certificate reports unsigned", func(t *testing.T) {
		ok, err := f.svc.HasSignedCertificate(ctx, f.open.ID)
		if err != nil || ok {
			t.Errorf("HasSignedCertificate() = %v, %v; want false", ok, err)
		}
	})
}
