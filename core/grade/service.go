package grade

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

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

// Create persists a new grade record, then records its fingerprint on the
// ledger. The returned AppendResult reports the ledger side only; a
// failed or skipped append never fails the save.
func (svc *Service) Create(ctx context.Context, ng NewGrade, actor ledger.Actor) (Grade, ledger.AppendResult, error) {
	if err := ng.Validate(svc.validate); err != nil {
		return Grade{}, ledger.AppendResult{}, err
	}

	now := time.Now().UTC()
	grd := Grade{
		StudentID:      ng.StudentID,
		ClassSubjectID: ng.ClassSubjectID,
		AcademicYearID: ng.AcademicYearID,
		SemesterID:     ng.SemesterID,
		PrelimGrade:    null.Float64FromPtr(ng.PrelimGrade),
		MidtermGrade:   null.Float64FromPtr(ng.MidtermGrade),
		FinalGrade:     null.Float64FromPtr(ng.FinalGrade),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	grd.UpdateFinalRating()

	grd, err := svc.repo.CreateGrade(ctx, grd)
	if err != nil {
		return Grade{}, ledger.AppendResult{}, errors.Wrap(err, "creating grade")
	}

	res := svc.appendToLedger(ctx, &grd, ledger.KindGradeCreation, actor)
	return grd, res, nil
}

// Update applies new grade components, recomputes the final rating and
// records the new fingerprint on the ledger.
func (svc *Service) Update(ctx context.Context, id int, ug UpdateGrade, actor ledger.Actor) (Grade, ledger.AppendResult, error) {
	if err := ug.Validate(svc.validate); err != nil {
		return Grade{}, ledger.AppendResult{}, err
	}

	grd, err := svc.repo.GetGradeByID(ctx, id)
	if err != nil {
		return Grade{}, ledger.AppendResult{}, err
	}
	if ug.PrelimGrade != nil {
		grd.PrelimGrade = null.Float64FromPtr(ug.PrelimGrade)
	}
	if ug.MidtermGrade != nil {
		grd.MidtermGrade = null.Float64FromPtr(ug.MidtermGrade)
	}
	if ug.FinalGrade != nil {
		grd.FinalGrade = null.Float64FromPtr(ug.FinalGrade)
	}
	grd.UpdateFinalRating()
	grd.UpdatedAt = time.Now().UTC()

	grd, err = svc.repo.UpdateGrade(ctx, grd)
	if err != nil {
		return Grade{}, ledger.AppendResult{}, errors.Wrap(err, "updating grade")
	}

	res := svc.appendToLedger(ctx, &grd, ledger.KindGradeUpdate, actor)
	return grd, res, nil
}

func (svc *Service) Get(ctx context.Context, id int) (Grade, error) {
	grd, err := svc.repo.GetGradeByID(ctx, id)
	if err != nil {
		return Grade{}, err
	}
	svc.loadRelations(ctx, &grd)
	return grd, nil
}

// Verify recomputes the record's fingerprint and compares it against the
// claimed one in constant time.
func (svc *Service) Verify(ctx context.Context, id int, claimedHash string) (bool, error) {
	grd, err := svc.Get(ctx, id)
	if err != nil {
		return false, err
	}
	current, err := grd.Fingerprint()
	if err != nil {
		return false, err
	}
	return ledger.MatchHash(current, claimedHash), nil
}

func (svc *Service) appendToLedger(ctx context.Context, grd *Grade, kind ledger.Kind, actor ledger.Actor) ledger.AppendResult {
	svc.loadRelations(ctx, grd)
	hash, err := grd.Fingerprint()
	if err != nil {
		return ledger.AppendResult{Outcome: ledger.Failed, Err: err}
	}
	return svc.ledgerSvc.Append(ctx, ledger.AppendRequest{
		Hash:        hash,
		Kind:        kind,
		Actor:       actor,
		TeacherUser: svc.teacherUserFunc(*grd),
	})
}

// loadRelations caches the snapshot collaborators on the record; a missing
// relation is left nil and hashes as null.
func (svc *Service) loadRelations(ctx context.Context, grd *Grade) {
	if grd.Student == nil {
		if student, err := svc.schoolRepo.GetStudentByID(ctx, grd.StudentID); err == nil {
			grd.Student = &student
		}
	}
	if grd.ClassSubject == nil {
		if cs, err := svc.schoolRepo.GetClassSubjectByID(ctx, grd.ClassSubjectID); err == nil {
			grd.ClassSubject = &cs
		}
	}
	if grd.AcademicYear == nil {
		if year, err := svc.schoolRepo.GetAcademicYearByID(ctx, grd.AcademicYearID); err == nil {
			grd.AcademicYear = &year
		}
	}
	if grd.Semester == nil {
		if sem, err := svc.schoolRepo.GetSemesterByID(ctx, grd.SemesterID); err == nil {
			grd.Semester = &sem
		}
	}
}

// teacherUserFunc resolves the user linked to the teacher of the record's
// class subject; (0, nil) when either link is missing.
func (svc *Service) teacherUserFunc(grd Grade) ledger.TeacherUserFunc {
	return func(ctx context.Context) (int, error) {
		if grd.ClassSubject == nil || !grd.ClassSubject.TeacherID.Valid {
			return 0, nil
		}
		teacher, err := svc.schoolRepo.GetTeacherByID(ctx, grd.ClassSubject.TeacherID.Int)
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
