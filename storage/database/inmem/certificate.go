package inmemdb

import (
	"context"

	"github.com/tesina/backend/core"
	"github.com/tesina/backend/core/certificate"
)

type certificateRepository struct {
	db *DB
}

var _ certificate.Repository = (*certificateRepository)(nil) // interface compliance check

func NewCertificateRepository(db *DB) *certificateRepository {
	return &certificateRepository{db: db}
}

func (repo *certificateRepository) GetByAssignment(ctx context.Context, assignmentID string, exec ...core.DBExecutor) (certificate.Certificate, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if c, ok := repo.db.certs[assignmentID]; ok {
		return *c, nil
	}
	return certificate.Certificate{}, certificate.ErrNotFound
}

func (repo *certificateRepository) SaveCertificate(ctx context.Context, c certificate.Certificate, exec ...core.DBExecutor) (certificate.Certificate, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.certs[c.AssignmentID] = &c
	return c, nil
}
