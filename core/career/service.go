package career

import (
	"context"
	"errors"

	"github.com/tesina/backend/core"
)

var (
	ErrNotFound          = errors.New("career not found")
	ErrPeriodNotFound    = errors.New("career period not found")
	ErrNoActivePeriod    = errors.New("career has no active period")
	ErrNoAdminAssignment = errors.New("no active admin-capable career assignment")
)

type (
	Repository interface {
		GetCareer(ctx context.Context, id string, exec ...core.DBExecutor) (Career, error)
		QueryCareers(ctx context.Context, exec ...core.DBExecutor) ([]Career, error)
		GetPeriod(ctx context.Context, id string, exec ...core.DBExecutor) (Period, error)
		// GetActivePeriod returns the career's single active period. Should more
		// than one row be flagged active, the latest one wins.
		GetActivePeriod(ctx context.Context, careerID string, exec ...core.DBExecutor) (Period, error)
		QueryPeriods(ctx context.Context, careerID string, exec ...core.DBExecutor) ([]Period, error)
		GetStaffAssignment(ctx context.Context, id int64, exec ...core.DBExecutor) (StaffAssignment, error)
		QueryStaffAssignments(ctx context.Context, ids []int64, exec ...core.DBExecutor) ([]StaffAssignment, error)
		// GetAdminAssignment returns the user's active DIRECTOR or SUPPORT
		// assignment; the oldest (lowest id) wins when several are active.
		GetAdminAssignment(ctx context.Context, userID string, exec ...core.DBExecutor) (StaffAssignment, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Get(ctx context.Context, id string) (Career, error) {
	return svc.repo.GetCareer(ctx, id)
}

func (svc *Service) QueryAll(ctx context.Context) ([]Career, error) {
	return svc.repo.QueryCareers(ctx)
}

func (svc *Service) GetPeriod(ctx context.Context, id string) (Period, error) {
	return svc.repo.GetPeriod(ctx, id)
}

func (svc *Service) ActivePeriod(ctx context.Context, careerID string) (Period, error) {
	return svc.repo.GetActivePeriod(ctx, careerID)
}

func (svc *Service) QueryPeriods(ctx context.Context, careerID string) ([]Period, error) {
	return svc.repo.QueryPeriods(ctx, careerID)
}

// AdminAssignment resolves the admin-capable assignment used for data scoping.
func (svc *Service) AdminAssignment(ctx context.Context, userID string) (StaffAssignment, error) {
	return svc.repo.GetAdminAssignment(ctx, userID)
}
