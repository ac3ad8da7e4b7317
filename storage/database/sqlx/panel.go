package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/tesina/backend/core"
	"github.com/tesina/backend/core/career"
	"github.com/tesina/backend/core/panel"
)

type panelRepository struct {
	exec core.DBExecutor
}

var _ panel.Repository = (*panelRepository)(nil) // interface compliance check

func NewPanelRepository(exec core.DBExecutor) *panelRepository {
	return &panelRepository{exec: exec}
}

// NextCaseNumber locks the career-period row, then reads the current maximum.
// FOR UPDATE cannot sit on an aggregate, so the lock and the read are two
// statements; both must run on the caller's transaction.
func (repo panelRepository) NextCaseNumber(ctx context.Context, careerPeriodID string, exec ...core.DBExecutor) (int, error) {
	exe := getExec(repo.exec, exec)

	var id string
	err := exe.QueryRowContext(ctx, `SELECT id FROM career_period WHERE id = $1 FOR UPDATE`, careerPeriodID).Scan(&id)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, career.ErrPeriodNotFound
		}
		return 0, errors.Wrap(err, "locking career period")
	}

	var next int
	q := `SELECT COALESCE(MAX(case_number), 0) + 1 FROM panel WHERE career_period_id = $1`
	if err = exe.QueryRowContext(ctx, q, careerPeriodID).Scan(&next); err != nil {
		return 0, errors.Wrap(err, "reading max case number")
	}
	return next, nil
}

func (repo panelRepository) CreatePanel(ctx context.Context, p panel.Panel, exec ...core.DBExecutor) (panel.Panel, error) {
	q := `
INSERT INTO panel (id, career_period_id, case_number, notes, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := getExec(repo.exec, exec).ExecContext(ctx, q,
		p.ID, p.CareerPeriodID, p.CaseNumber, p.Notes, p.CreatedAt.UTC(), p.UpdatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return panel.Panel{}, panel.ErrCaseNumberConflict
		}
		return panel.Panel{}, errors.Wrap(err, "inserting panel")
	}
	return p, nil
}

func (repo panelRepository) UpdatePanel(ctx context.Context, p panel.Panel, exec ...core.DBExecutor) (panel.Panel, error) {
	q := `UPDATE panel SET case_number = $2, notes = $3, updated_at = $4 WHERE id = $1`
	res, err := getExec(repo.exec, exec).ExecContext(ctx, q, p.ID, p.CaseNumber, p.Notes, p.UpdatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return panel.Panel{}, panel.ErrCaseNumberConflict
		}
		return panel.Panel{}, errors.Wrap(err, "updating panel")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return panel.Panel{}, panel.ErrNotFound
	}
	return p, nil
}

func (repo panelRepository) scanPanel(row rowScanner) (panel.Panel, error) {
	var p panel.Panel
	err := row.Scan(&p.ID, &p.CareerPeriodID, &p.CaseNumber, &p.Notes, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (repo panelRepository) GetPanel(ctx context.Context, id string, exec ...core.DBExecutor) (panel.Panel, error) {
	q := `SELECT id, career_period_id, case_number, notes, created_at, updated_at FROM panel WHERE id = $1`
	p, err := repo.scanPanel(getExec(repo.exec, exec).QueryRowContext(ctx, q, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return panel.Panel{}, panel.ErrNotFound
		}
		return panel.Panel{}, errors.Wrap(err, "finding panel")
	}
	return p, nil
}

func (repo panelRepository) QueryPanels(ctx context.Context, careerPeriodID string, exec ...core.DBExecutor) ([]panel.Panel, error) {
	q := `
SELECT id, career_period_id, case_number, notes, created_at, updated_at
FROM panel
WHERE career_period_id = $1
ORDER BY case_number`
	rows, err := getExec(repo.exec, exec).QueryContext(ctx, q, careerPeriodID)
	if err != nil {
		return nil, errors.Wrap(err, "querying panels")
	}
	defer func() { _ = rows.Close() }()

	var panels []panel.Panel
	for rows.Next() {
		p, err := repo.scanPanel(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scanning panel")
		}
		panels = append(panels, p)
	}
	return panels, errors.Wrap(rows.Err(), "querying panels")
}

func (repo panelRepository) ReplaceMembers(ctx context.Context, panelID string, members []panel.Member, exec ...core.DBExecutor) error {
	exe := getExec(repo.exec, exec)

	if _, err := exe.ExecContext(ctx, `DELETE FROM panel_member WHERE panel_id = $1`, panelID); err != nil {
		return errors.Wrap(err, "clearing panel members")
	}
	q := `INSERT INTO panel_member (panel_id, designation, staff_assignment_id) VALUES ($1, $2, $3)`
	for _, m := range members {
		if _, err := exe.ExecContext(ctx, q, panelID, m.Designation, m.StaffAssignmentID); err != nil {
			return errors.Wrap(err, "inserting panel member")
		}
	}
	return nil
}

func (repo panelRepository) QueryMembers(ctx context.Context, panelID string, exec ...core.DBExecutor) ([]panel.Member, error) {
	q := `
SELECT m.panel_id, m.designation, m.staff_assignment_id, sa.user_id
FROM panel_member m
JOIN staff_assignment sa ON sa.id = m.staff_assignment_id
WHERE m.panel_id = $1
ORDER BY m.designation`
	rows, err := getExec(repo.exec, exec).QueryContext(ctx, q, panelID)
	if err != nil {
		return nil, errors.Wrap(err, "querying panel members")
	}
	defer func() { _ = rows.Close() }()

	var members []panel.Member
	for rows.Next() {
		var m panel.Member
		if err = rows.Scan(&m.PanelID, &m.Designation, &m.StaffAssignmentID, &m.UserID); err != nil {
			return nil, errors.Wrap(err, "scanning panel member")
		}
		members = append(members, m)
	}
	return members, errors.Wrap(rows.Err(), "querying panel members")
}

func (repo panelRepository) GetDesignation(ctx context.Context, panelID, userID string, exec ...core.DBExecutor) (panel.Designation, error) {
	q := `
SELECT m.designation
FROM panel_member m
JOIN staff_assignment sa ON sa.id = m.staff_assignment_id
WHERE m.panel_id = $1 AND sa.user_id = $2
ORDER BY m.designation
LIMIT 1`
	var d panel.Designation
	err := getExec(repo.exec, exec).QueryRowContext(ctx, q, panelID, userID).Scan(&d)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", panel.ErrNotMember
		}
		return "", errors.Wrap(err, "resolving panel designation")
	}
	return d, nil
}

func (repo panelRepository) CreateAssignment(ctx context.Context, a panel.Assignment, exec ...core.DBExecutor) (panel.Assignment, error) {
	q := `
INSERT INTO panel_assignment (id, panel_id, student_id, scheduled_at, case_document_id, locked, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := getExec(repo.exec, exec).ExecContext(ctx, q,
		a.ID, a.PanelID, a.StudentID, a.ScheduledAt.UTC(), a.CaseDocumentID, a.Locked, a.CreatedAt.UTC(), a.UpdatedAt.UTC())
	if err != nil {
		return panel.Assignment{}, errors.Wrap(err, "inserting panel assignment")
	}
	return a, nil
}

func (repo panelRepository) scanAssignment(row rowScanner) (panel.Assignment, error) {
	var a panel.Assignment
	err := row.Scan(&a.ID, &a.PanelID, &a.StudentID, &a.ScheduledAt, &a.CaseDocumentID, &a.Locked, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (repo panelRepository) GetAssignment(ctx context.Context, id string, exec ...core.DBExecutor) (panel.Assignment, error) {
	q := `
SELECT id, panel_id, student_id, scheduled_at, case_document_id, locked, created_at, updated_at
FROM panel_assignment
WHERE id = $1`
	a, err := repo.scanAssignment(getExec(repo.exec, exec).QueryRowContext(ctx, q, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return panel.Assignment{}, panel.ErrAssignmentNotFound
		}
		return panel.Assignment{}, errors.Wrap(err, "finding panel assignment")
	}
	return a, nil
}

func (repo panelRepository) QueryAssignments(ctx context.Context, panelID string, exec ...core.DBExecutor) ([]panel.Assignment, error) {
	q := `
SELECT id, panel_id, student_id, scheduled_at, case_document_id, locked, created_at, updated_at
FROM panel_assignment
WHERE panel_id = $1
ORDER BY scheduled_at`
	rows, err := getExec(repo.exec, exec).QueryContext(ctx, q, panelID)
	if err != nil {
		return nil, errors.Wrap(err, "querying panel assignments")
	}
	defer func() { _ = rows.Close() }()

	var assignments []panel.Assignment
	for rows.Next() {
		a, err := repo.scanAssignment(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scanning panel assignment")
		}
		assignments = append(assignments, a)
	}
	return assignments, errors.Wrap(rows.Err(), "querying panel assignments")
}

func (repo panelRepository) SetAssignmentLocked(ctx context.Context, id string, locked bool, exec ...core.DBExecutor) (panel.Assignment, error) {
	q := `UPDATE panel_assignment SET locked = $2, updated_at = NOW() WHERE id = $1`
	res, err := getExec(repo.exec, exec).ExecContext(ctx, q, id, locked)
	if err != nil {
		return panel.Assignment{}, errors.Wrap(err, "updating assignment lock")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return panel.Assignment{}, panel.ErrAssignmentNotFound
	}
	return repo.GetAssignment(ctx, id, exec...)
}
