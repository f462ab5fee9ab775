package attendance

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/sajili/core"
	"github.com/trezcool/sajili/core/ledger"
	"github.com/trezcool/sajili/core/school"
)

var ErrNotFound = errors.New("attendance record not found")

// Statuses
const (
	StatusPresent = "Present"
	StatusAbsent  = "Absent"
	StatusLate    = "Late"
	StatusExcused = "Excused"
)

type Attendance struct {
	ID             int       `json:"id" db:"id"`
	StudentID      int       `json:"student_id" db:"student_id"`
	ClassSubjectID int       `json:"class_subject_id" db:"class_subject_id"`
	Date           time.Time `json:"attendance_date" db:"attendance_date"`
	Status         string    `json:"status" db:"status"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"` // UTC
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"` // UTC

	// relations (loaded on demand)
	Student      *school.Student      `json:"student,omitempty" db:"-"`
	ClassSubject *school.ClassSubject `json:"class_subject,omitempty" db:"-"`
}

// Snapshot flattens the record and its related names into the canonical
// hashing input. Relations must be loaded beforehand; a missing relation
// serializes its fields as null.
func (a Attendance) Snapshot() ledger.Snapshot {
	var studentName, subjectCode, subjectName string
	if a.Student != nil {
		studentName = a.Student.FullName()
	}
	if a.ClassSubject != nil {
		subjectCode = a.ClassSubject.SubjectCode
		subjectName = a.ClassSubject.SubjectName
	}

	s := make(ledger.Snapshot, 11)
	s.SetInt("attendance_id", a.ID)
	s.SetInt("student_id", a.StudentID)
	s.SetString("student_name", studentName)
	s.SetInt("class_subject_id", a.ClassSubjectID)
	s.SetString("subject_code", subjectCode)
	s.SetString("subject_name", subjectName)
	s.SetDate("attendance_date", a.Date)
	s.SetString("status", a.Status)
	s.SetTime("created_at", a.CreatedAt)
	s.SetTime("updated_at", a.UpdatedAt)
	// capture time is pinned to the last write so the digest is reproducible
	s.Set("timestamp", a.UpdatedAt.UTC().Unix())
	return s
}

func (a Attendance) Fingerprint() (string, error) {
	return a.Snapshot().Fingerprint()
}

// NewAttendance contains information needed to record a new Attendance.
type NewAttendance struct {
	StudentID      int    `json:"student_id" validate:"required"`
	ClassSubjectID int    `json:"class_subject_id" validate:"required"`
	Date           string `json:"attendance_date" validate:"required,datetime=2006-01-02"`
	Status         string `json:"status" validate:"required,oneof=Present Absent Late Excused"`
}

func (na *NewAttendance) Validate(validate Validator) error {
	na.Status = core.CleanString(na.Status)
	na.Date = core.CleanString(na.Date)
	return validate.Struct(na)
}

// UpdateAttendance contains updatable Attendance fields; empty fields are
// left untouched.
type UpdateAttendance struct {
	Date   string `json:"attendance_date" validate:"omitempty,datetime=2006-01-02"`
	Status string `json:"status" validate:"omitempty,oneof=Present Absent Late Excused"`
}

func (ua *UpdateAttendance) Validate(validate Validator) error {
	ua.Status = core.CleanString(ua.Status)
	ua.Date = core.CleanString(ua.Date)
	return validate.Struct(ua)
}

// Validator is the subset of validator.Validate this package needs.
type Validator interface {
	Struct(s interface{}) error
}

type Repository interface {
	CreateAttendance(ctx context.Context, att Attendance) (Attendance, error)
	GetAttendanceByID(ctx context.Context, id int) (Attendance, error)
	UpdateAttendance(ctx context.Context, att Attendance) (Attendance, error)
}
