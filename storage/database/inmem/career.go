package inmemdb

import (
	"context"
	"sort"

	"github.com/tesina/backend/core"
	"github.com/tesina/backend/core/career"
)

type careerRepository struct {
	db *DB
}

var _ career.Repository = (*careerRepository)(nil) // interface compliance check

func NewCareerRepository(db *DB) *careerRepository {
	return &careerRepository{db: db}
}

// AddCareer seeds a career; test fixture helper.
func (repo *careerRepository) AddCareer(c career.Career) career.Career {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	repo.db.careers[c.ID] = &c
	return c
}

// AddPeriod seeds a career period; test fixture helper.
func (repo *careerRepository) AddPeriod(p career.Period) career.Period {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	repo.db.periods[p.ID] = &p
	return p
}

// AddStaffAssignment seeds a staff assignment, allocating its serial id;
// test fixture helper.
func (repo *careerRepository) AddStaffAssignment(sa career.StaffAssignment) career.StaffAssignment {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	repo.db.staffSeq++
	sa.ID = repo.db.staffSeq
	repo.db.staff[sa.ID] = &sa
	return sa
}

func (repo *careerRepository) GetCareer(ctx context.Context, id string, exec ...core.DBExecutor) (career.Career, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if c, ok := repo.db.careers[id]; ok {
		return *c, nil
	}
	return career.Career{}, career.ErrNotFound
}

func (repo *careerRepository) QueryCareers(ctx context.Context, exec ...core.DBExecutor) ([]career.Career, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	careers := make([]career.Career, 0, len(repo.db.careers))
	for _, c := range repo.db.careers {
		careers = append(careers, *c)
	}
	sort.Slice(careers, func(i, j int) bool { return careers[i].Name < careers[j].Name })
	return careers, nil
}

func (repo *careerRepository) GetPeriod(ctx context.Context, id string, exec ...core.DBExecutor) (career.Period, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if p, ok := repo.db.periods[id]; ok {
		return *p, nil
	}
	return career.Period{}, career.ErrPeriodNotFound
}

func (repo *careerRepository) GetActivePeriod(ctx context.Context, careerID string, exec ...core.DBExecutor) (career.Period, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	// latest active row wins
	var active *career.Period
	for _, p := range repo.db.periods {
		if p.CareerID != careerID || !p.IsActive {
			continue
		}
		if active == nil || p.CreatedAt.After(active.CreatedAt) {
			active = p
		}
	}
	if active == nil {
		return career.Period{}, career.ErrNoActivePeriod
	}
	return *active, nil
}

func (repo *careerRepository) QueryPeriods(ctx context.Context, careerID string, exec ...core.DBExecutor) ([]career.Period, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var periods []career.Period
	for _, p := range repo.db.periods {
		if p.CareerID == careerID {
			periods = append(periods, *p)
		}
	}
	sort.Slice(periods, func(i, j int) bool { return periods[i].CreatedAt.After(periods[j].CreatedAt) })
	return periods, nil
}

func (repo *careerRepository) GetStaffAssignment(ctx context.Context, id int64, exec ...core.DBExecutor) (career.StaffAssignment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if sa, ok := repo.db.staff[id]; ok {
		return *sa, nil
	}
	return career.StaffAssignment{}, career.ErrNotFound
}

func (repo *careerRepository) QueryStaffAssignments(ctx context.Context, ids []int64, exec ...core.DBExecutor) ([]career.StaffAssignment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var sas []career.StaffAssignment
	for _, id := range ids {
		if sa, ok := repo.db.staff[id]; ok {
			sas = append(sas, *sa)
		}
	}
	sort.Slice(sas, func(i, j int) bool { return sas[i].ID < sas[j].ID })
	return sas, nil
}

func (repo *careerRepository) GetAdminAssignment(ctx context.Context, userID string, exec ...core.DBExecutor) (career.StaffAssignment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	// oldest active admin-capable assignment wins
	var admin *career.StaffAssignment
	for _, sa := range repo.db.staff {
		if sa.UserID != userID || !sa.IsActive || !sa.Kind.AdminCapable() {
			continue
		}
		if admin == nil || sa.ID < admin.ID {
			admin = sa
		}
	}
	if admin == nil {
		return career.StaffAssignment{}, career.ErrNoAdminAssignment
	}
	return *admin, nil
}
