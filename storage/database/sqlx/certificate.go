package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/tesina/backend/core"
	"github.com/tesina/backend/core/certificate"
)

type certificateRepository struct {
	exec core.DBExecutor
}

var _ certificate.Repository = (*certificateRepository)(nil) // interface compliance check

func NewCertificateRepository(exec core.DBExecutor) *certificateRepository {
	return &certificateRepository{exec: exec}
}

func (repo certificateRepository) GetByAssignment(ctx context.Context, assignmentID string, exec ...core.DBExecutor) (certificate.Certificate, error) {
	q := `
SELECT id, assignment_id, state, final_score, items, generated_at, signed_at, created_at, updated_at
FROM certificate
WHERE assignment_id = $1`

	var (
		c           certificate.Certificate
		items       []byte
		generatedAt null.Time
		signedAt    null.Time
	)
	err := getExec(repo.exec, exec).QueryRowContext(ctx, q, assignmentID).Scan(
		&c.ID, &c.AssignmentID, &c.State, &c.FinalScore, &items, &generatedAt, &signedAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return certificate.Certificate{}, certificate.ErrNotFound
		}
		return certificate.Certificate{}, errors.Wrap(err, "finding certificate")
	}
	if err = json.Unmarshal(items, &c.Items); err != nil {
		return certificate.Certificate{}, errors.Wrap(err, "decoding certificate items")
	}
	c.GeneratedAt = generatedAt.Time
	c.SignedAt = signedAt.Time
	return c, nil
}

func (repo certificateRepository) SaveCertificate(ctx context.Context, c certificate.Certificate, exec ...core.DBExecutor) (certificate.Certificate, error) {
	items, err := json.Marshal(c.Items)
	if err != nil {
		return certificate.Certificate{}, errors.Wrap(err, "encoding certificate items")
	}
	if items == nil || string(items) == "null" {
		items = []byte("[]")
	}

	q := `
INSERT INTO certificate (id, assignment_id, state, final_score, items, generated_at, signed_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (assignment_id)
DO UPDATE SET state = EXCLUDED.state, final_score = EXCLUDED.final_score, items = EXCLUDED.items,
              generated_at = EXCLUDED.generated_at, signed_at = EXCLUDED.signed_at, updated_at = EXCLUDED.updated_at`
	_, err = getExec(repo.exec, exec).ExecContext(ctx, q,
		c.ID, c.AssignmentID, c.State, c.FinalScore, items,
		null.NewTime(c.GeneratedAt.UTC(), !c.GeneratedAt.IsZero()),
		null.NewTime(c.SignedAt.UTC(), !c.SignedAt.IsZero()),
		c.CreatedAt.UTC(), c.UpdatedAt.UTC())
	if err != nil {
		return certificate.Certificate{}, errors.Wrap(err, "saving certificate")
	}
	return c, nil
}
