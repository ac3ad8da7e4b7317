package certificate

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/tesina/backend/core"
	"github.com/tesina/backend/core/evalplan"
	"github.com/tesina/backend/core/grading"
	"github.com/tesina/backend/core/panel"
)

var (
	ErrNotFound      = errors.New("certificate not found")
	ErrAlreadySigned = errors.New("certificate is already signed")
	ErrNotGenerated  = errors.New("certificate has not been generated")
)

type (
	Repository interface {
		GetByAssignment(ctx context.Context, assignmentID string, exec ...core.DBExecutor) (Certificate, error)
		// SaveCertificate upserts by assignment id.
		SaveCertificate(ctx context.Context, c Certificate, exec ...core.DBExecutor) (Certificate, error)
	}

	Service struct {
		repo   Repository
		panels panel.Repository
		plans  evalplan.Repository
		grades grading.Repository
	}
)

func NewService(repo Repository, panels panel.Repository, plans evalplan.Repository, grades grading.Repository) *Service {
	return &Service{repo: repo, panels: panels, plans: plans, grades: grades}
}

var _ panel.CertificateChecker = (*Service)(nil)

func (svc *Service) GetByAssignment(ctx context.Context, assignmentID string) (Certificate, error) {
	return svc.repo.GetByAssignment(ctx, assignmentID)
}

// Generate computes the weighted scores over a locked assignment's entries and
// persists the certificate in GENERATED state. A signed certificate is final
// and is never regenerated.
func (svc *Service) Generate(ctx context.Context, assignmentID string) (Certificate, error) {
	a, err := svc.panels.GetAssignment(ctx, assignmentID)
	if err != nil {
		return Certificate{}, err
	}
	if !a.Locked {
		return Certificate{}, panel.ErrAssignmentOpen
	}

	cert, err := svc.repo.GetByAssignment(ctx, assignmentID)
	if err != nil && err != ErrNotFound {
		return Certificate{}, err
	}
	if err == ErrNotFound {
		cert = Certificate{
			ID:           uuid.New().String(),
			AssignmentID: assignmentID,
			CreatedAt:    time.Now().UTC(),
		}
	} else if cert.State == StateSigned {
		return Certificate{}, ErrAlreadySigned
	}

	items, final, err := svc.compute(ctx, a)
	if err != nil {
		return Certificate{}, err
	}

	now := time.Now().UTC()
	cert.State = StateGenerated
	cert.Items = items
	cert.FinalScore = final
	cert.GeneratedAt = now
	cert.UpdatedAt = now
	return svc.repo.SaveCertificate(ctx, cert)
}

// Sign finalizes a generated certificate.
func (svc *Service) Sign(ctx context.Context, assignmentID string) (Certificate, error) {
	cert, err := svc.repo.GetByAssignment(ctx, assignmentID)
	if err != nil {
		return Certificate{}, err
	}
	switch cert.State {
	case StateSigned:
		return Certificate{}, ErrAlreadySigned
	case StateDraft:
		return Certificate{}, ErrNotGenerated
	}
	now := time.Now().UTC()
	cert.State = StateSigned
	cert.SignedAt = now
	cert.UpdatedAt = now
	return svc.repo.SaveCertificate(ctx, cert)
}

// HasSignedCertificate implements panel.CertificateChecker.
func (svc *Service) HasSignedCertificate(ctx context.Context, assignmentID string) (bool, error) {
	cert, err := svc.repo.GetByAssignment(ctx, assignmentID)
	if err != nil {
		if err == ErrNotFound {
			return false, nil
		}
		return false, err
	}
	return cert.State == StateSigned, nil
}

// InvalidateCertificate implements panel.CertificateChecker: reopening an
// assignment demotes a generated certificate back to draft.
func (svc *Service) InvalidateCertificate(ctx context.Context, assignmentID string) error {
	cert, err := svc.repo.GetByAssignment(ctx, assignmentID)
	if err != nil {
		if err == ErrNotFound {
			return nil
		}
		return err
	}
	if cert.State == StateSigned {
		return ErrAlreadySigned
	}
	cert.State = StateDraft
	cert.GeneratedAt = time.Time{}
	cert.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.SaveCertificate(ctx, cert)
	return err
}

// compute aggregates rubric-item scores: per criterion the level scores are
// averaged across graders, criteria average into their component, components
// weigh into the item, items weigh into the final score. Non-rubric items are
// carried with a zero score; their results come from collaborator systems.
func (svc *Service) compute(ctx context.Context, a panel.Assignment) ([]ItemScore, float64, error) {
	p, err := svc.panels.GetPanel(ctx, a.PanelID)
	if err != nil {
		return nil, 0, err
	}
	plan, err := svc.plans.GetActivePlan(ctx, p.CareerPeriodID)
	if err != nil {
		return nil, 0, err
	}
	items, err := svc.plans.QueryItems(ctx, plan.ID)
	if err != nil {
		return nil, 0, err
	}
	entries, err := svc.grades.QueryAssignmentEntries(ctx, a.ID)
	if err != nil {
		return nil, 0, err
	}

	// level picks per criterion, across graders
	type cellKey struct{ itemID, criterionID string }
	picks := make(map[cellKey][]string)
	for _, e := range entries {
		k := cellKey{itemID: e.ItemID, criterionID: e.CriterionID}
		picks[k] = append(picks[k], e.LevelID)
	}

	var (
		scores []ItemScore
		final  float64
	)
	for _, item := range items {
		is := ItemScore{ItemID: item.ID, Name: item.Name, Weight: item.Weight}

		if item.Kind == evalplan.KindRubric && item.RubricID != "" {
			rub, err := svc.plans.GetRubric(ctx, item.RubricID)
			if err != nil {
				return nil, 0, err
			}
			levelScore := make(map[string]float64)
			for _, comp := range rub.Components {
				for _, crit := range comp.Criteria {
					for _, lvl := range crit.Levels {
						levelScore[lvl.ID] = lvl.Score
					}
				}
			}

			var itemScore float64
			for _, comp := range rub.Components {
				var compSum float64
				var graded int
				for _, crit := range comp.Criteria {
					lvls := picks[cellKey{itemID: item.ID, criterionID: crit.ID}]
					if len(lvls) == 0 {
						continue
					}
					var critSum float64
					for _, lvlID := range lvls {
						critSum += levelScore[lvlID]
					}
					compSum += critSum / float64(len(lvls))
					graded++
				}
				if graded > 0 {
					itemScore += (compSum / float64(graded)) * comp.Weight / 100
				}
			}
			is.Score = itemScore
		}

		is.Weighted = is.Score * is.Weight / 100
		final += is.Weighted
		scores = append(scores, is)
	}
	return scores, final, nil
}
