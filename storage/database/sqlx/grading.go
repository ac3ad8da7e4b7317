package sqlxrepos

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/tesina/backend/core"
	"github.com/tesina/backend/core/grading"
)

type gradeRepository struct {
	exec core.DBExecutor
}

var _ grading.Repository = (*gradeRepository)(nil) // interface compliance check

func NewGradeRepository(exec core.DBExecutor) *gradeRepository {
	return &gradeRepository{exec: exec}
}

const entryCols = `id, assignment_id, item_id, component_id, criterion_id, level_id, grader_id, note, created_at, updated_at`

func (repo gradeRepository) queryEntries(ctx context.Context, exe core.DBExecutor, q string, args ...interface{}) ([]grading.Entry, error) {
	rows, err := exe.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying grade entries")
	}
	defer func() { _ = rows.Close() }()

	var entries []grading.Entry
	for rows.Next() {
		var e grading.Entry
		err = rows.Scan(&e.ID, &e.AssignmentID, &e.ItemID, &e.ComponentID, &e.CriterionID,
			&e.LevelID, &e.GraderID, &e.Note, &e.CreatedAt, &e.UpdatedAt)
		if err != nil {
			return nil, errors.Wrap(err, "scanning grade entry")
		}
		entries = append(entries, e)
	}
	return entries, errors.Wrap(rows.Err(), "querying grade entries")
}

func (repo gradeRepository) QueryEntries(ctx context.Context, assignmentID, graderID string, exec ...core.DBExecutor) ([]grading.Entry, error) {
	q := `SELECT ` + entryCols + ` FROM grade_entry WHERE assignment_id = $1 AND grader_id = $2 ORDER BY item_id, component_id, criterion_id`
	return repo.queryEntries(ctx, getExec(repo.exec, exec), q, assignmentID, graderID)
}

func (repo gradeRepository) QueryAssignmentEntries(ctx context.Context, assignmentID string, exec ...core.DBExecutor) ([]grading.Entry, error) {
	q := `SELECT ` + entryCols + ` FROM grade_entry WHERE assignment_id = $1 ORDER BY item_id, component_id, criterion_id, grader_id`
	return repo.queryEntries(ctx, getExec(repo.exec, exec), q, assignmentID)
}

// UpsertEntries merges the batch into the existing rows. A row sharing the
// (assignment, item, component, criterion, grader) key is overwritten in
// place; rows absent from the batch stay untouched.
func (repo gradeRepository) UpsertEntries(ctx context.Context, entries []grading.Entry, exec ...core.DBExecutor) error {
	exe := getExec(repo.exec, exec)

	q := `
INSERT INTO grade_entry (` + entryCols + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (assignment_id, item_id, component_id, criterion_id, grader_id)
DO UPDATE SET level_id = EXCLUDED.level_id, note = EXCLUDED.note, updated_at = EXCLUDED.updated_at`
	for _, e := range entries {
		if e.ID == "" {
			e.ID = uuid.New().String()
		}
		_, err := exe.ExecContext(ctx, q,
			e.ID, e.AssignmentID, e.ItemID, e.ComponentID, e.CriterionID,
			e.LevelID, e.GraderID, e.Note, e.CreatedAt.UTC(), e.UpdatedAt.UTC())
		if err != nil {
			return errors.Wrap(err, "upserting grade entry")
		}
	}
	return nil
}
