package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/tesina/backend/core"
	"github.com/tesina/backend/core/career"
	"github.com/tesina/backend/core/panel"
)

type panelRepository struct {
	db *DB
}

var _ panel.Repository = (*panelRepository)(nil) // interface compliance check

func NewPanelRepository(db *DB) *panelRepository {
	return &panelRepository{db: db}
}

// NextCaseNumber relies on the DB transaction lock for serialization: the
// caller holds it from BeginTx until commit, exactly like the row lock the
// psql implementation takes on the career period.
func (repo *panelRepository) NextCaseNumber(ctx context.Context, careerPeriodID string, exec ...core.DBExecutor) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if _, ok := repo.db.periods[careerPeriodID]; !ok {
		return 0, career.ErrPeriodNotFound
	}
	max := 0
	for _, p := range repo.db.panels {
		if p.CareerPeriodID == careerPeriodID && p.CaseNumber > max {
			max = p.CaseNumber
		}
	}
	return max + 1, nil
}

func (repo *panelRepository) CreatePanel(ctx context.Context, p panel.Panel, exec ...core.DBExecutor) (panel.Panel, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, other := range repo.db.panels {
		if other.CareerPeriodID == p.CareerPeriodID && other.CaseNumber == p.CaseNumber {
			return panel.Panel{}, panel.ErrCaseNumberConflict
		}
	}
	repo.db.panels[p.ID] = &p
	return p, nil
}

func (repo *panelRepository) UpdatePanel(ctx context.Context, p panel.Panel, exec ...core.DBExecutor) (panel.Panel, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.panels[p.ID]; !ok {
		return panel.Panel{}, panel.ErrNotFound
	}
	for _, other := range repo.db.panels {
		if other.ID != p.ID && other.CareerPeriodID == p.CareerPeriodID && other.CaseNumber == p.CaseNumber {
			return panel.Panel{}, panel.ErrCaseNumberConflict
		}
	}
	repo.db.panels[p.ID] = &p
	return p, nil
}

func (repo *panelRepository) GetPanel(ctx context.Context, id string, exec ...core.DBExecutor) (panel.Panel, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if p, ok := repo.db.panels[id]; ok {
		return *p, nil
	}
	return panel.Panel{}, panel.ErrNotFound
}

func (repo *panelRepository) QueryPanels(ctx context.Context, careerPeriodID string, exec ...core.DBExecutor) ([]panel.Panel, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var panels []panel.Panel
	for _, p := range repo.db.panels {
		if p.CareerPeriodID == careerPeriodID {
			panels = append(panels, *p)
		}
	}
	sort.Slice(panels, func(i, j int) bool { return panels[i].CaseNumber < panels[j].CaseNumber })
	return panels, nil
}

func (repo *panelRepository) ReplaceMembers(ctx context.Context, panelID string, members []panel.Member, exec ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	replacement := make([]panel.Member, len(members))
	copy(replacement, members)
	repo.db.members[panelID] = replacement
	return nil
}

func (repo *panelRepository) QueryMembers(ctx context.Context, panelID string, exec ...core.DBExecutor) ([]panel.Member, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	members := make([]panel.Member, 0, len(repo.db.members[panelID]))
	for _, m := range repo.db.members[panelID] {
		if sa, ok := repo.db.staff[m.StaffAssignmentID]; ok {
			m.UserID = sa.UserID
		}
		members = append(members, m)
	}
	sort.Slice(members, func(i, j int) bool { return members[i].Designation < members[j].Designation })
	return members, nil
}

func (repo *panelRepository) GetDesignation(ctx context.Context, panelID, userID string, exec ...core.DBExecutor) (panel.Designation, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, m := range repo.db.members[panelID] {
		sa, ok := repo.db.staff[m.StaffAssignmentID]
		if ok && sa.UserID == userID {
			return m.Designation, nil
		}
	}
	return "", panel.ErrNotMember
}

func (repo *panelRepository) CreateAssignment(ctx context.Context, a panel.Assignment, exec ...core.DBExecutor) (panel.Assignment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.assignments[a.ID] = &a
	return a, nil
}

func (repo *panelRepository) GetAssignment(ctx context.Context, id string, exec ...core.DBExecutor) (panel.Assignment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if a, ok := repo.db.assignments[id]; ok {
		return *a, nil
	}
	return panel.Assignment{}, panel.ErrAssignmentNotFound
}

func (repo *panelRepository) QueryAssignments(ctx context.Context, panelID string, exec ...core.DBExecutor) ([]panel.Assignment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var assignments []panel.Assignment
	for _, a := range repo.db.assignments {
		if a.PanelID == panelID {
			assignments = append(assignments, *a)
		}
	}
	sort.Slice(assignments, func(i, j int) bool { return assignments[i].ScheduledAt.Before(assignments[j].ScheduledAt) })
	return assignments, nil
}

func (repo *panelRepository) SetAssignmentLocked(ctx context.Context, id string, locked bool, exec ...core.DBExecutor) (panel.Assignment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	a, ok := repo.db.assignments[id]
	if !ok {
		return panel.Assignment{}, panel.ErrAssignmentNotFound
	}
	a.Locked = locked
	a.UpdatedAt = time.Now().UTC()
	return *a, nil
}
