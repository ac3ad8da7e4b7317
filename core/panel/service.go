package panel

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"

	"github.com/tesina/backend/core"
	"github.com/tesina/backend/core/career"
	"github.com/tesina/backend/core/user"
)

var (
	ErrNotFound           = errors.New("panel not found")
	ErrAssignmentNotFound = errors.New("panel assignment not found")
	ErrNotMember          = errors.New("grader is not a member of this panel")

	// ErrCaseNumberConflict surfaces the unique constraint on
	// (career_period, case_number); caller-supplied numbers are not pre-checked.
	ErrCaseNumberConflict = errors.New("case number already taken for this career period")

	// ErrTransactionFailed wraps storage-level transient failures (lock timeout,
	// deadlock). The transaction is guaranteed rolled back; retrying is safe only
	// when the case number was auto-allocated.
	ErrTransactionFailed = errors.New("panel transaction failed")

	ErrAssignmentLocked = errors.New("panel assignment is locked")
	ErrAssignmentOpen   = errors.New("panel assignment is not locked")

	// ErrCertificateSigned blocks reopening once a signed certificate exists.
	ErrCertificateSigned = errors.New("assignment has a signed certificate")
)

type (
	Repository interface {
		// NextCaseNumber computes max(case_number)+1 for the career-period under
		// an exclusive lock on the period row. Callers MUST run it inside the
		// same transaction (exec) as the subsequent panel insert: the lock held
		// across read-then-insert is what keeps concurrent creates from
		// allocating duplicates.
		NextCaseNumber(ctx context.Context, careerPeriodID string, exec ...core.DBExecutor) (int, error)
		CreatePanel(ctx context.Context, p Panel, exec ...core.DBExecutor) (Panel, error)
		UpdatePanel(ctx context.Context, p Panel, exec ...core.DBExecutor) (Panel, error)
		GetPanel(ctx context.Context, id string, exec ...core.DBExecutor) (Panel, error)
		QueryPanels(ctx context.Context, careerPeriodID string, exec ...core.DBExecutor) ([]Panel, error)
		// ReplaceMembers deletes the panel's current roster and inserts the new
		// one; a replace-set, never a diff.
		ReplaceMembers(ctx context.Context, panelID string, members []Member, exec ...core.DBExecutor) error
		QueryMembers(ctx context.Context, panelID string, exec ...core.DBExecutor) ([]Member, error)
		// GetDesignation resolves the seat a user holds on a panel, through the
		// member's staff assignment. ErrNotMember when they hold none.
		GetDesignation(ctx context.Context, panelID, userID string, exec ...core.DBExecutor) (Designation, error)
		CreateAssignment(ctx context.Context, a Assignment, exec ...core.DBExecutor) (Assignment, error)
		GetAssignment(ctx context.Context, id string, exec ...core.DBExecutor) (Assignment, error)
		QueryAssignments(ctx context.Context, panelID string, exec ...core.DBExecutor) ([]Assignment, error)
		SetAssignmentLocked(ctx context.Context, id string, locked bool, exec ...core.DBExecutor) (Assignment, error)
	}

	// CertificateChecker breaks the import cycle with the certificate package:
	// reopening consults downstream certificate state through it.
	CertificateChecker interface {
		HasSignedCertificate(ctx context.Context, assignmentID string) (bool, error)
		InvalidateCertificate(ctx context.Context, assignmentID string) error
	}

	Service struct {
		db      core.DB
		repo    Repository
		careers career.Repository
		users   user.Repository
		certs   CertificateChecker
		mailSvc core.EmailService
		log     core.Logger
	}
)

func NewService(
	db core.DB,
	repo Repository,
	careers career.Repository,
	users user.Repository,
	certs CertificateChecker,
	mailSvc core.EmailService,
	log core.Logger,
) *Service {
	return &Service{
		db:      db,
		repo:    repo,
		careers: careers,
		users:   users,
		certs:   certs,
		mailSvc: mailSvc,
		log:     log,
	}
}

func (svc *Service) Get(ctx context.Context, id string) (Panel, error) {
	return svc.repo.GetPanel(ctx, id)
}

func (svc *Service) QueryByPeriod(ctx context.Context, careerPeriodID string) ([]Panel, error) {
	return svc.repo.QueryPanels(ctx, careerPeriodID)
}

func (svc *Service) Members(ctx context.Context, panelID string) ([]Member, error) {
	return svc.repo.QueryMembers(ctx, panelID)
}

func (svc *Service) GetAssignment(ctx context.Context, id string) (Assignment, error) {
	return svc.repo.GetAssignment(ctx, id)
}

// QueryAssignments lists the student cases before a panel. Unknown panel ids
// surface ErrNotFound rather than an empty list.
func (svc *Service) QueryAssignments(ctx context.Context, panelID string) ([]Assignment, error) {
	if _, err := svc.repo.GetPanel(ctx, panelID); err != nil {
		return nil, err
	}
	return svc.repo.QueryAssignments(ctx, panelID)
}

// checkRoster verifies every referenced staff assignment exists and is active.
func (svc *Service) checkRoster(ctx context.Context, r Roster, exec ...core.DBExecutor) error {
	sas, err := svc.careers.QueryStaffAssignments(ctx, r.assignmentIDs(), exec...)
	if err != nil {
		return err
	}
	byID := make(map[int64]career.StaffAssignment, len(sas))
	for _, sa := range sas {
		byID[sa.ID] = sa
	}
	for _, id := range r.assignmentIDs() {
		sa, ok := byID[id]
		if !ok || !sa.IsActive {
			return core.NewValidationError(nil, core.FieldError{
				Field: "roster",
				Error: fmt.Sprintf("staff assignment %d does not exist or is inactive", id),
			})
		}
	}
	return nil
}

// Create allocates the case number and writes the panel plus its full roster
// as one transaction. A failure anywhere rolls everything back, including the
// allocated number: no gaps survive a failed create.
func (svc *Service) Create(ctx context.Context, np NewPanel) (Panel, error) {
	if err := np.Validate(); err != nil {
		return Panel{}, err
	}
	if _, err := svc.careers.GetPeriod(ctx, np.CareerPeriodID); err != nil {
		return Panel{}, err
	}
	if err := svc.checkRoster(ctx, np.Roster); err != nil {
		return Panel{}, err
	}

	tx, err := svc.db.BeginTx(ctx, nil)
	if err != nil {
		return Panel{}, pkgerrors.Wrap(err, "beginning panel transaction")
	}
	defer func() { _ = tx.Rollback() }()

	num := np.CaseNumber
	if num == 0 {
		// locking read; holds until commit
		if num, err = svc.repo.NextCaseNumber(ctx, np.CareerPeriodID, tx); err != nil {
			return Panel{}, svc.trapTxErr(err, "allocating case number")
		}
	}

	now := time.Now().UTC()
	p := Panel{
		ID:             uuid.New().String(),
		CareerPeriodID: np.CareerPeriodID,
		CaseNumber:     num,
		Notes:          np.Notes,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if p, err = svc.repo.CreatePanel(ctx, p, tx); err != nil {
		return Panel{}, svc.trapTxErr(err, "creating panel")
	}
	if err = svc.repo.ReplaceMembers(ctx, p.ID, np.Roster.Members(p.ID), tx); err != nil {
		return Panel{}, svc.trapTxErr(err, "replacing panel roster")
	}

	if err = tx.Commit(); err != nil {
		return Panel{}, svc.trapTxErr(err, "committing panel transaction")
	}

	svc.notifyRoster(ctx, p, np.Roster, "You have been designated to tribunal case %d.")
	return p, nil
}

// Update edits the panel; the case number defaults to the existing value and
// the roster is only replaced when one was supplied.
func (svc *Service) Update(ctx context.Context, id string, up UpdatePanel) (Panel, error) {
	if err := up.Validate(); err != nil {
		return Panel{}, err
	}
	p, err := svc.repo.GetPanel(ctx, id)
	if err != nil {
		return Panel{}, err
	}
	if up.Roster != nil {
		if err = svc.checkRoster(ctx, *up.Roster); err != nil {
			return Panel{}, err
		}
	}

	tx, err := svc.db.BeginTx(ctx, nil)
	if err != nil {
		return Panel{}, pkgerrors.Wrap(err, "beginning panel transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if up.CaseNumber != 0 {
		p.CaseNumber = up.CaseNumber
	}
	if up.Notes != nil {
		p.Notes = *up.Notes
	}
	p.UpdatedAt = time.Now().UTC()

	if p, err = svc.repo.UpdatePanel(ctx, p, tx); err != nil {
		return Panel{}, svc.trapTxErr(err, "updating panel")
	}
	if up.Roster != nil {
		if err = svc.repo.ReplaceMembers(ctx, p.ID, up.Roster.Members(p.ID), tx); err != nil {
			return Panel{}, svc.trapTxErr(err, "replacing panel roster")
		}
	}

	if err = tx.Commit(); err != nil {
		return Panel{}, svc.trapTxErr(err, "committing panel transaction")
	}

	if up.Roster != nil {
		svc.notifyRoster(ctx, p, *up.Roster, "The roster of tribunal case %d has been updated.")
	}
	return p, nil
}

// ScheduleAssignment puts a student case before a panel.
func (svc *Service) ScheduleAssignment(ctx context.Context, na NewAssignment) (Assignment, error) {
	if err := na.Validate(); err != nil {
		return Assignment{}, err
	}
	if _, err := svc.repo.GetPanel(ctx, na.PanelID); err != nil {
		return Assignment{}, err
	}
	now := time.Now().UTC()
	a := Assignment{
		ID:             uuid.New().String(),
		PanelID:        na.PanelID,
		StudentID:      na.StudentID,
		ScheduledAt:    na.ScheduledAt.UTC(),
		CaseDocumentID: na.CaseDocumentID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return svc.repo.CreateAssignment(ctx, a)
}

// LockAssignment transitions the assignment forward to read-only.
func (svc *Service) LockAssignment(ctx context.Context, id string) (Assignment, error) {
	a, err := svc.repo.GetAssignment(ctx, id)
	if err != nil {
		return Assignment{}, err
	}
	if a.Locked {
		return Assignment{}, ErrAssignmentLocked
	}
	return svc.repo.SetAssignmentLocked(ctx, id, true)
}

// ReopenAssignment is the administrative backward transition. It refuses when
// a signed certificate exists and invalidates a merely generated one.
func (svc *Service) ReopenAssignment(ctx context.Context, id string) (Assignment, error) {
	a, err := svc.repo.GetAssignment(ctx, id)
	if err != nil {
		return Assignment{}, err
	}
	if !a.Locked {
		return Assignment{}, ErrAssignmentOpen
	}
	if svc.certs != nil {
		signed, err := svc.certs.HasSignedCertificate(ctx, id)
		if err != nil {
			return Assignment{}, err
		}
		if signed {
			return Assignment{}, ErrCertificateSigned
		}
		if err = svc.certs.InvalidateCertificate(ctx, id); err != nil {
			return Assignment{}, err
		}
	}
	return svc.repo.SetAssignmentLocked(ctx, id, false)
}

// trapTxErr maps storage failures to the domain taxonomy. Conflicts pass
// through as-is; anything else becomes ErrTransactionFailed.
func (svc *Service) trapTxErr(err error, msg string) error {
	if err == ErrCaseNumberConflict {
		return err
	}
	svc.log.Error(msg, err)
	return pkgerrors.Wrap(ErrTransactionFailed, msg)
}

// notifyRoster emails the three designated examiners. Failures only log;
// notification is best effort and never fails the transaction.
func (svc *Service) notifyRoster(ctx context.Context, p Panel, r Roster, format string) {
	if svc.mailSvc == nil {
		return
	}
	sas, err := svc.careers.QueryStaffAssignments(ctx, r.assignmentIDs())
	if err != nil {
		svc.log.Warn("loading roster staff assignments for notification", err)
		return
	}
	var to []mail.Address
	for _, sa := range sas {
		usr, err := svc.users.GetUser(ctx, user.GetFilter{ID: sa.UserID})
		if err != nil {
			svc.log.Warn("loading roster member for notification", err)
			continue
		}
		if usr.Email != "" {
			to = append(to, mail.Address{Name: usr.Name, Address: usr.Email})
		}
	}
	if len(to) == 0 {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:          to,
		Subject:     fmt.Sprintf("Tribunal case %d", p.CaseNumber),
		TextContent: fmt.Sprintf(format, p.CaseNumber),
	})
}
