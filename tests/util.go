package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tesina/backend/core/career"
	"github.com/tesina/backend/core/evalplan"
	"github.com/tesina/backend/core/panel"
	"github.com/tesina/backend/core/user"
	"github.com/tesina/backend/storage/database/inmem"
)

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	usr.SetActive(isActive)
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateCareer(t *testing.T, db *inmemdb.DB, name, code string) career.Career {
	t.Helper()
	return inmemdb.NewCareerRepository(db).AddCareer(career.Career{
		ID:        uuid.New().String(),
		Name:      name,
		Code:      code,
		CreatedAt: time.Now().UTC(),
	})
}

func CreatePeriod(t *testing.T, db *inmemdb.DB, careerID, term string, active bool) career.Period {
	t.Helper()
	return inmemdb.NewCareerRepository(db).AddPeriod(career.Period{
		ID:        uuid.New().String(),
		CareerID:  careerID,
		Term:      term,
		IsActive:  active,
		CreatedAt: time.Now().UTC(),
	})
}

func CreateStaffAssignment(t *testing.T, db *inmemdb.DB, careerID, userID string, kind career.AssignmentKind, active bool) career.StaffAssignment {
	t.Helper()
	return inmemdb.NewCareerRepository(db).AddStaffAssignment(career.StaffAssignment{
		CareerID:  careerID,
		UserID:    userID,
		Kind:      kind,
		IsActive:  active,
		CreatedAt: time.Now().UTC(),
	})
}

func CreatePlan(t *testing.T, db *inmemdb.DB, careerPeriodID, name string, active bool) evalplan.Plan {
	t.Helper()
	return inmemdb.NewPlanRepository(db).AddPlan(evalplan.Plan{
		ID:             uuid.New().String(),
		CareerPeriodID: careerPeriodID,
		Name:           name,
		IsActive:       active,
		CreatedAt:      time.Now().UTC(),
	})
}

func CreateItem(
	t *testing.T,
	db *inmemdb.DB,
	planID, name string,
	kind evalplan.ItemKind,
	weight float64,
	gradedBy evalplan.GradedBy,
	rubricID string,
	position int,
) evalplan.Item {
	t.Helper()
	return inmemdb.NewPlanRepository(db).AddItem(evalplan.Item{
		ID:       uuid.New().String(),
		PlanID:   planID,
		Name:     name,
		Kind:     kind,
		Weight:   weight,
		GradedBy: gradedBy,
		RubricID: rubricID,
		Position: position,
	})
}

// CreateRubric seeds a two-component rubric. The first component carries two
// criteria at weight 60, the second a single criterion at weight 40; every
// criterion has levels scoring 5 and 10.
func CreateRubric(t *testing.T, db *inmemdb.DB, name string) evalplan.Rubric {
	t.Helper()
	rubricID := uuid.New().String()

	newCriterion := func(componentID, name string, pos int) evalplan.Criterion {
		critID := uuid.New().String()
		return evalplan.Criterion{
			ID:          critID,
			ComponentID: componentID,
			Name:        name,
			Position:    pos,
			Levels: []evalplan.Level{
				{ID: uuid.New().String(), CriterionID: critID, Name: "Regular", Score: 5, Position: 1},
				{ID: uuid.New().String(), CriterionID: critID, Name: "Excellent", Score: 10, Position: 2},
			},
		}
	}

	comp1ID := uuid.New().String()
	comp2ID := uuid.New().String()
	rubric := evalplan.Rubric{
		ID:   rubricID,
		Name: name,
		Components: []evalplan.Component{
			{
				ID:       comp1ID,
				RubricID: rubricID,
				Name:     "Content",
				Weight:   60,
				Position: 1,
				Criteria: []evalplan.Criterion{
					newCriterion(comp1ID, "Depth", 1),
					newCriterion(comp1ID, "Accuracy", 2),
				},
			},
			{
				ID:       comp2ID,
				RubricID: rubricID,
				Name:     "Defense",
				Weight:   40,
				Position: 1,
				Criteria: []evalplan.Criterion{
					newCriterion(comp2ID, "Clarity", 1),
				},
			},
		},
	}
	return inmemdb.NewPlanRepository(db).AddRubric(rubric)
}

func AddComponentGrader(t *testing.T, db *inmemdb.DB, itemID, componentID string, gradedBy evalplan.GradedBy) {
	t.Helper()
	inmemdb.NewPlanRepository(db).AddComponentGrader(evalplan.ComponentGrader{
		ItemID:      itemID,
		ComponentID: componentID,
		GradedBy:    gradedBy,
	})
}

// CreatePanel seeds a panel and its three-member roster.
func CreatePanel(t *testing.T, db *inmemdb.DB, careerPeriodID string, caseNumber int, roster panel.Roster) panel.Panel {
	t.Helper()
	ctx := context.Background()
	repo := inmemdb.NewPanelRepository(db)

	now := time.Now().UTC()
	p, err := repo.CreatePanel(ctx, panel.Panel{
		ID:             uuid.New().String(),
		CareerPeriodID: careerPeriodID,
		CaseNumber:     caseNumber,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		t.Fatalf("CreatePanel() failed: %v", err)
	}
	if err := repo.ReplaceMembers(ctx, p.ID, roster.Members(p.ID)); err != nil {
		t.Fatalf("CreatePanel() failed: %v", err)
	}
	return p
}

func CreateAssignment(t *testing.T, db *inmemdb.DB, panelID, studentID string, locked bool) panel.Assignment {
	t.Helper()
	now := time.Now().UTC()
	a, err := inmemdb.NewPanelRepository(db).CreateAssignment(context.Background(), panel.Assignment{
		ID:          uuid.New().String(),
		PanelID:     panelID,
		StudentID:   studentID,
		ScheduledAt: now.Add(24 * time.Hour),
		Locked:      locked,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		t.Fatalf("CreateAssignment() failed: %v", err)
	}
	return a
}
