package attendance_test

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/sajili/core"
	"github.com/trezcool/sajili/core/attendance"
	"github.com/trezcool/sajili/core/ledger"
	"github.com/trezcool/sajili/core/school"
	"github.com/trezcool/sajili/core/user"
	dummydb "github.com/trezcool/sajili/storage/database/dummy"
)

type testLogger struct{}

func (testLogger) Debug(string, ...interface{}) {}
func (testLogger) Info(string, ...interface{})  {}
func (testLogger) Warn(string, ...interface{})  {}
func (testLogger) Error(string, ...interface{}) {}
func (testLogger) Fatal(string, ...interface{}) {}

type noopMail struct{}

func (noopMail) SendMessages(...*core.EmailMessage) {}

// failingLedgerRepo rejects every transaction write.
type failingLedgerRepo struct {
	ledger.Repository
}

func (failingLedgerRepo) CreateTransaction(context.Context, ledger.Transaction) (ledger.Transaction, error) {
	return ledger.Transaction{}, errors.New("storage offline")
}

type env struct {
	svc        *attendance.Service
	ledgerRepo ledger.Repository
	usrRepo    user.Repository
	teacher    school.Teacher
	subject    school.ClassSubject
	student    school.Student
}

// setup builds a service over seeded in-memory storage. An optional
// wrapper decorates the ledger repository seen by the service.
func setup(t *testing.T, wrapLedger ...func(ledger.Repository) ledger.Repository) *env {
	t.Helper()
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("setup() failed: %v", err)
	}

	usrRepo := dummydb.NewUserRepository(db)
	schoolRepo := dummydb.NewSchoolRepository(db)
	ledgerRepo := dummydb.NewLedgerRepository(db)

	teacherUsr, err := usrRepo.CreateUser(context.Background(), user.User{
		Name: "Mr Banza", Username: "banza", Email: "banza@test.cd",
		IsActive: true, Roles: user.TeacherRoles,
		CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("setup() failed: %v", err)
	}

	teacher := schoolRepo.AddTeacher(school.Teacher{ID: 1, UserID: null.IntFrom(teacherUsr.ID), FirstName: "Jo", LastName: "Banza"})
	subject := schoolRepo.AddClassSubject(school.ClassSubject{
		ID: 1, ClassName: "BSMT-1A", SubjectCode: "NAV-101", SubjectName: "Basic Navigation",
		TeacherID: null.IntFrom(teacher.ID),
	})
	student := schoolRepo.AddStudent(school.Student{ID: 1, StudentNumber: "2026-0001", FirstName: "Jane", LastName: "Moyo"})

	validate := validator.New()
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	core.InitValidators(validate, translator)

	var lrepo ledger.Repository = ledgerRepo
	if len(wrapLedger) > 0 {
		lrepo = wrapLedger[0](lrepo)
	}
	ledgerSvc := ledger.NewService(lrepo, user.NewService(usrRepo), testLogger{}, noopMail{}, "", true)
	svc := attendance.NewService(dummydb.NewAttendanceRepository(db), schoolRepo, ledgerSvc, validate)

	return &env{
		svc:        svc,
		ledgerRepo: ledgerRepo,
		usrRepo:    usrRepo,
		teacher:    teacher,
		subject:    subject,
		student:    student,
	}
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()
	te := setup(t)

	att, res, err := te.svc.Create(ctx, attendance.NewAttendance{
		StudentID:      te.student.ID,
		ClassSubjectID: te.subject.ID,
		Date:           "2026-02-10",
		Status:         attendance.StatusPresent,
	}, ledger.Actor{})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	if att.ID == 0 {
		t.Error("attendance not persisted")
	}
	if res.Outcome != ledger.Appended {
		t.Fatalf("append outcome = %v; want Appended", res.Outcome)
	}
	if res.Transaction.Kind != ledger.KindAttendanceCreation {
		t.Errorf("transaction kind = %s; want attendance_creation", res.Transaction.Kind)
	}
	// with no acting user the transaction falls to the teacher's user
	if res.Transaction.InitiatedBy != te.teacher.UserID.Int {
		t.Errorf("InitiatedBy = %d; want teacher user %d", res.Transaction.InitiatedBy, te.teacher.UserID.Int)
	}

	hash, err := att.Fingerprint()
	if err != nil {
		t.Fatalf("Fingerprint() failed: %v", err)
	}
	if res.Transaction.Hash != hash {
		t.Errorf("transaction hash = %s; want %s", res.Transaction.Hash, hash)
	}

	ok, err := te.svc.Verify(ctx, att.ID, hash)
	if err != nil {
		t.Fatalf("Verify() failed: %v", err)
	}
	if !ok {
		t.Error("Verify() = false for an untouched record")
	}
}

func TestService_Create_invalidInput(t *testing.T) {
	ctx := context.Background()
	te := setup(t)

	tests := []struct {
		name string
		na   attendance.NewAttendance
	}{
		{name: "missing student", na: attendance.NewAttendance{ClassSubjectID: 1, Date: "2026-02-10", Status: "Present"}},
		{name: "bad date", na: attendance.NewAttendance{StudentID: 1, ClassSubjectID: 1, Date: "10/02/2026", Status: "Present"}},
		{name: "unknown status", na: attendance.NewAttendance{StudentID: 1, ClassSubjectID: 1, Date: "2026-02-10", Status: "here"}},
		{name: "lowercase status", na: attendance.NewAttendance{StudentID: 1, ClassSubjectID: 1, Date: "2026-02-10", Status: "present"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := te.svc.Create(ctx, tt.na, ledger.Actor{}); err == nil {
				t.Error("Create() accepted invalid input")
			}
		})
	}
}

func TestService_Update_invalidatesOldHash(t *testing.T) {
	ctx := context.Background()
	te := setup(t)

	att, _, err := te.svc.Create(ctx, attendance.NewAttendance{
		StudentID:      te.student.ID,
		ClassSubjectID: te.subject.ID,
		Date:           "2026-02-10",
		Status:         attendance.StatusPresent,
	}, ledger.Actor{UserID: 9})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	oldHash, err := att.Fingerprint()
	if err != nil {
		t.Fatalf("Fingerprint() failed: %v", err)
	}

	updated, res, err := te.svc.Update(ctx, att.ID, attendance.UpdateAttendance{Status: attendance.StatusLate}, ledger.Actor{UserID: 9})
	if err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	if res.Outcome != ledger.Appended || res.Transaction.Kind != ledger.KindAttendanceUpdate {
		t.Errorf("append = %v/%s; want Appended/attendance_update", res.Outcome, res.Transaction.Kind)
	}
	if res.Transaction.InitiatedBy != 9 {
		t.Errorf("InitiatedBy = %d; want acting user 9", res.Transaction.InitiatedBy)
	}

	newHash, err := updated.Fingerprint()
	if err != nil {
		t.Fatalf("Fingerprint() failed: %v", err)
	}
	if newHash == oldHash {
		t.Fatal("update did not change the fingerprint")
	}

	if ok, _ := te.svc.Verify(ctx, att.ID, oldHash); ok {
		t.Error("Verify() accepted a stale hash")
	}
	if ok, _ := te.svc.Verify(ctx, att.ID, newHash); !ok {
		t.Error("Verify() rejected the current hash")
	}
}

func TestService_Create_ledgerOutageDoesNotFailSave(t *testing.T) {
	ctx := context.Background()
	te := setup(t, func(repo ledger.Repository) ledger.Repository {
		return failingLedgerRepo{repo}
	})

	att, res, err := te.svc.Create(ctx, attendance.NewAttendance{
		StudentID:      te.student.ID,
		ClassSubjectID: te.subject.ID,
		Date:           "2026-02-10",
		Status:         attendance.StatusPresent,
	}, ledger.Actor{UserID: 9})
	if err != nil {
		t.Fatalf("Create() failed despite the save succeeding: %v", err)
	}
	if att.ID == 0 {
		t.Fatal("attendance not persisted")
	}

	// the ledger side reports the outage without failing the caller
	if res.Outcome != ledger.Failed {
		t.Errorf("append outcome = %v; want Failed", res.Outcome)
	}
	if res.Err == nil {
		t.Error("AppendResult carries no informational error")
	}

	// the record is fully usable and no transaction exists for it
	got, err := te.svc.Get(ctx, att.ID)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.Status != attendance.StatusPresent {
		t.Errorf("Status = %q; want Present", got.Status)
	}
	if _, err := te.ledgerRepo.GetTransactionByID(ctx, 1); errors.Cause(err) != ledger.ErrNotFound {
		t.Errorf("a transaction was persisted during the outage: %v", err)
	}
}

func TestService_Verify_unknownRecord(t *testing.T) {
	te := setup(t)
	if _, err := te.svc.Verify(context.Background(), 404, "whatever"); errors.Cause(err) != attendance.ErrNotFound {
		t.Errorf("Verify() err = %v; want ErrNotFound", err)
	}
}
