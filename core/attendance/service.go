package attendance

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/sajili/core/ledger"
	"github.com/trezcool/sajili/core/school"
)

type Service struct {
	repo       Repository
	schoolRepo school.Repository
	ledgerSvc  *ledger.Service
	validate   Validator
}

func NewService(repo Repository, schoolRepo school.Repository, ledgerSvc *ledger.Service, validate Validator) *Service {
	return &Service{
		repo:       repo,
		schoolRepo: schoolRepo,
		ledgerSvc:  ledgerSvc,
		validate:   validate,
	}
}

// Create persists a new attendance record, then records its fingerprint
// on the ledger. The returned AppendResult reports the ledger side only;
// a failed or skipped append never fails the save.
func (svc *Service) Create(ctx context.Context, na NewAttendance, actor ledger.Actor) (Attendance, ledger.AppendResult, error) {
	if err := na.Validate(svc.validate); err != nil {
		return Attendance{}, ledger.AppendResult{}, err
	}
	date, err := time.Parse("2006-01-02", na.Date)
	if err != nil {
		return Attendance{}, ledger.AppendResult{}, errors.Wrap(err, "parsing attendance date")
	}

	now := time.Now().UTC()
	att := Attendance{
		StudentID:      na.StudentID,
		ClassSubjectID: na.ClassSubjectID,
		Date:           date,
		Status:         na.Status,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	att, err = svc.repo.CreateAttendance(ctx, att)
	if err != nil {
		return Attendance{}, ledger.AppendResult{}, errors.Wrap(err, "creating attendance")
	}

	res := svc.appendToLedger(ctx, &att, ledger.KindAttendanceCreation, actor)
	return att, res, nil
}

// Update applies changes to an existing record, then records the new
// fingerprint on the ledger.
func (svc *Service) Update(ctx context.Context, id int, ua UpdateAttendance, actor ledger.Actor) (Attendance, ledger.AppendResult, error) {
	if err := ua.Validate(svc.validate); err != nil {
		return Attendance{}, ledger.AppendResult{}, err
	}

	att, err := svc.repo.GetAttendanceByID(ctx, id)
	if err != nil {
		return Attendance{}, ledger.AppendResult{}, err
	}
	if ua.Date != "" {
		date, err := time.Parse("2006-01-02", ua.Date)
		if err != nil {
			return Attendance{}, ledger.AppendResult{}, errors.Wrap(err, "parsing attendance date")
		}
		att.Date = date
	}
	if ua.Status != "" {
		att.Status = ua.Status
	}
	att.UpdatedAt = time.Now().UTC()

	att, err = svc.repo.UpdateAttendance(ctx, att)
	if err != nil {
		return Attendance{}, ledger.AppendResult{}, errors.Wrap(err, "updating attendance")
	}

	res := svc.appendToLedger(ctx, &att, ledger.KindAttendanceUpdate, actor)
	return att, res, nil
}

func (svc *Service) Get(ctx context.Context, id int) (Attendance, error) {
	att, err := svc.repo.GetAttendanceByID(ctx, id)
	if err != nil {
		return Attendance{}, err
	}
	svc.loadRelations(ctx, &att)
	return att, nil
}

// Verify recomputes the record's fingerprint and compares it against the
// claimed one in constant time.
func (svc *Service) Verify(ctx context.Context, id int, claimedHash string) (bool, error) {
	att, err := svc.Get(ctx, id)
	if err != nil {
		return false, err
	}
	current, err := att.Fingerprint()
	if err != nil {
		return false, err
	}
	return ledger.MatchHash(current, claimedHash), nil
}

func (svc *Service) appendToLedger(ctx context.Context, att *Attendance, kind ledger.Kind, actor ledger.Actor) ledger.AppendResult {
	svc.loadRelations(ctx, att)
	hash, err := att.Fingerprint()
	if err != nil {
		return ledger.AppendResult{Outcome: ledger.Failed, Err: err}
	}
	return svc.ledgerSvc.Append(ctx, ledger.AppendRequest{
		Hash:        hash,
		Kind:        kind,
		Actor:       actor,
		TeacherUser: svc.teacherUserFunc(*att),
	})
}

// loadRelations caches the snapshot collaborators on the record; a missing
// relation is left nil and hashes as null.
func (svc *Service) loadRelations(ctx context.Context, att *Attendance) {
	if att.Student == nil {
		if student, err := svc.schoolRepo.GetStudentByID(ctx, att.StudentID); err == nil {
			att.Student = &student
		}
	}
	if att.ClassSubject == nil {
		if cs, err := svc.schoolRepo.GetClassSubjectByID(ctx, att.ClassSubjectID); err == nil {
			att.ClassSubject = &cs
		}
	}
}

// teacherUserFunc resolves the user linked to the teacher of the record's
// class subject; (0, nil) when either link is missing.
func (svc *Service) teacherUserFunc(att Attendance) ledger.TeacherUserFunc {
	return func(ctx context.Context) (int, error) {
		if att.ClassSubject == nil || !att.ClassSubject.TeacherID.Valid {
			return 0, nil
		}
		teacher, err := svc.schoolRepo.GetTeacherByID(ctx, att.ClassSubject.TeacherID.Int)
		switch errors.Cause(err) {
		case nil:
		case school.ErrNotFound:
			return 0, nil
		default:
			return 0, err
		}
		if !teacher.UserID.Valid {
			return 0, nil
		}
		return teacher.UserID.Int, nil
	}
}
