package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/tesina/backend/core"
	"github.com/tesina/backend/core/career"
)

type careerRepository struct {
	exec core.DBExecutor
}

var _ career.Repository = (*careerRepository)(nil) // interface compliance check

func NewCareerRepository(exec core.DBExecutor) *careerRepository {
	return &careerRepository{exec: exec}
}

func (repo careerRepository) GetCareer(ctx context.Context, id string, exec ...core.DBExecutor) (career.Career, error) {
	q := `SELECT id, name, code, created_at FROM career WHERE id = $1`
	var c career.Career
	err := getExec(repo.exec, exec).QueryRowContext(ctx, q, id).Scan(&c.ID, &c.Name, &c.Code, &c.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return career.Career{}, career.ErrNotFound
		}
		return career.Career{}, errors.Wrap(err, "finding career")
	}
	return c, nil
}

func (repo careerRepository) QueryCareers(ctx context.Context, exec ...core.DBExecutor) ([]career.Career, error) {
	q := `SELECT id, name, code, created_at FROM career ORDER BY name`
	rows, err := getExec(repo.exec, exec).QueryContext(ctx, q)
	if err != nil {
		return nil, errors.Wrap(err, "querying careers")
	}
	defer func() { _ = rows.Close() }()

	var careers []career.Career
	for rows.Next() {
		var c career.Career
		if err = rows.Scan(&c.ID, &c.Name, &c.Code, &c.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scanning career")
		}
		careers = append(careers, c)
	}
	return careers, errors.Wrap(rows.Err(), "querying careers")
}

func (repo careerRepository) scanPeriod(row rowScanner) (career.Period, error) {
	var p career.Period
	err := row.Scan(&p.ID, &p.CareerID, &p.Term, &p.IsActive, &p.CreatedAt)
	return p, err
}

func (repo careerRepository) GetPeriod(ctx context.Context, id string, exec ...core.DBExecutor) (career.Period, error) {
	q := `SELECT id, career_id, term, is_active, created_at FROM career_period WHERE id = $1`
	p, err := repo.scanPeriod(getExec(repo.exec, exec).QueryRowContext(ctx, q, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return career.Period{}, career.ErrPeriodNotFound
		}
		return career.Period{}, errors.Wrap(err, "finding career period")
	}
	return p, nil
}

func (repo careerRepository) GetActivePeriod(ctx context.Context, careerID string, exec ...core.DBExecutor) (career.Period, error) {
	// latest active row wins
	q := `
SELECT id, career_id, term, is_active, created_at
FROM career_period
WHERE career_id = $1 AND is_active
ORDER BY created_at DESC
LIMIT 1`
	p, err := repo.scanPeriod(getExec(repo.exec, exec).QueryRowContext(ctx, q, careerID))
	if err != nil {
		if err == sql.ErrNoRows {
			return career.Period{}, career.ErrNoActivePeriod
		}
		return career.Period{}, errors.Wrap(err, "finding active career period")
	}
	return p, nil
}

func (repo careerRepository) QueryPeriods(ctx context.Context, careerID string, exec ...core.DBExecutor) ([]career.Period, error) {
	q := `SELECT id, career_id, term, is_active, created_at FROM career_period WHERE career_id = $1 ORDER BY created_at DESC`
	rows, err := getExec(repo.exec, exec).QueryContext(ctx, q, careerID)
	if err != nil {
		return nil, errors.Wrap(err, "querying career periods")
	}
	defer func() { _ = rows.Close() }()

	var periods []career.Period
	for rows.Next() {
		p, err := repo.scanPeriod(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scanning career period")
		}
		periods = append(periods, p)
	}
	return periods, errors.Wrap(rows.Err(), "querying career periods")
}

func (repo careerRepository) scanStaffAssignment(row rowScanner) (career.StaffAssignment, error) {
	var sa career.StaffAssignment
	err := row.Scan(&sa.ID, &sa.CareerID, &sa.UserID, &sa.Kind, &sa.IsActive, &sa.CreatedAt)
	return sa, err
}

func (repo careerRepository) GetStaffAssignment(ctx context.Context, id int64, exec ...core.DBExecutor) (career.StaffAssignment, error) {
	q := `SELECT id, career_id, user_id, kind, is_active, created_at FROM staff_assignment WHERE id = $1`
	sa, err := repo.scanStaffAssignment(getExec(repo.exec, exec).QueryRowContext(ctx, q, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return career.StaffAssignment{}, career.ErrNotFound
		}
		return career.StaffAssignment{}, errors.Wrap(err, "finding staff assignment")
	}
	return sa, nil
}

func (repo careerRepository) QueryStaffAssignments(ctx context.Context, ids []int64, exec ...core.DBExecutor) ([]career.StaffAssignment, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q, args, err := expandIn(`SELECT id, career_id, user_id, kind, is_active, created_at FROM staff_assignment WHERE id IN (?) ORDER BY id`, ids)
	if err != nil {
		return nil, err
	}
	rows, err := getExec(repo.exec, exec).QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying staff assignments")
	}
	defer func() { _ = rows.Close() }()

	var sas []career.StaffAssignment
	for rows.Next() {
		sa, err := repo.scanStaffAssignment(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scanning staff assignment")
		}
		sas = append(sas, sa)
	}
	return sas, errors.Wrap(rows.Err(), "querying staff assignments")
}

func (repo careerRepository) GetAdminAssignment(ctx context.Context, userID string, exec ...core.DBExecutor) (career.StaffAssignment, error) {
	// oldest active admin-capable assignment wins
	q := `
SELECT id, career_id, user_id, kind, is_active, created_at
FROM staff_assignment
WHERE user_id = $1 AND is_active AND kind IN ($2, $3)
ORDER BY id
LIMIT 1`
	sa, err := repo.scanStaffAssignment(getExec(repo.exec, exec).QueryRowContext(ctx, q, userID, career.KindDirector, career.KindSupport))
	if err != nil {
		if err == sql.ErrNoRows {
			return career.StaffAssignment{}, career.ErrNoAdminAssignment
		}
		return career.StaffAssignment{}, errors.Wrap(err, "finding admin assignment")
	}
	return sa, nil
}
