package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/tesina/backend/core"
	"github.com/tesina/backend/core/grading"
)

type gradeRepository struct {
	db *DB
}

var _ grading.Repository = (*gradeRepository)(nil) // interface compliance check

func NewGradeRepository(db *DB) *gradeRepository {
	return &gradeRepository{db: db}
}

func entryKey(e grading.Entry) string {
	return e.AssignmentID + ":" + e.Key().String() + ":" + e.GraderID
}

func sortEntries(entries []grading.Entry) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.ItemID != b.ItemID {
			return a.ItemID < b.ItemID
		}
		if a.ComponentID != b.ComponentID {
			return a.ComponentID < b.ComponentID
		}
		if a.CriterionID != b.CriterionID {
			return a.CriterionID < b.CriterionID
		}
		return a.GraderID < b.GraderID
	})
}

func (repo *gradeRepository) QueryEntries(ctx context.Context, assignmentID, graderID string, exec ...core.DBExecutor) ([]grading.Entry, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var entries []grading.Entry
	for _, e := range repo.db.entries {
		if e.AssignmentID == assignmentID && e.GraderID == graderID {
			entries = append(entries, *e)
		}
	}
	sortEntries(entries)
	return entries, nil
}

func (repo *gradeRepository) QueryAssignmentEntries(ctx context.Context, assignmentID string, exec ...core.DBExecutor) ([]grading.Entry, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var entries []grading.Entry
	for _, e := range repo.db.entries {
		if e.AssignmentID == assignmentID {
			entries = append(entries, *e)
		}
	}
	sortEntries(entries)
	return entries, nil
}

func (repo *gradeRepository) UpsertEntries(ctx context.Context, entries []grading.Entry, exec ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, e := range entries {
		k := entryKey(e)
		if existing, ok := repo.db.entries[k]; ok {
			existing.LevelID = e.LevelID
			existing.Note = e.Note
			existing.UpdatedAt = e.UpdatedAt
			continue
		}
		if e.ID == "" {
			e.ID = uuid.New().String()
		}
		saved := e
		repo.db.entries[k] = &saved
	}
	return nil
}
