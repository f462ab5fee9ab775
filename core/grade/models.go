package grade

import (
	"context"
	"math"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/sajili/core/ledger"
	"github.com/trezcool/sajili/core/school"
)

var ErrNotFound = errors.New("grade record not found")

// Remarks
const (
	RemarksPassed = "Passed"
	RemarksFailed = "Failed"
)

const passingRating = 75

type Grade struct {
	ID             int          `json:"id" db:"id"`
	StudentID      int          `json:"student_id" db:"student_id"`
	ClassSubjectID int          `json:"class_subject_id" db:"class_subject_id"`
	AcademicYearID int          `json:"academic_year_id" db:"academic_year_id"`
	SemesterID     int          `json:"semester_id" db:"semester_id"`
	PrelimGrade    null.Float64 `json:"prelim_grade" db:"prelim_grade"`
	MidtermGrade   null.Float64 `json:"midterm_grade" db:"midterm_grade"`
	FinalGrade     null.Float64 `json:"final_grade" db:"final_grade"`
	FinalRating    null.Float64 `json:"final_rating" db:"final_rating"`
	Remarks        string       `json:"remarks" db:"remarks"`
	CreatedAt      time.Time    `json:"created_at" db:"created_at"` // UTC
	UpdatedAt      time.Time    `json:"updated_at" db:"updated_at"` // UTC

	// relations (loaded on demand)
	Student      *school.Student      `json:"student,omitempty" db:"-"`
	ClassSubject *school.ClassSubject `json:"class_subject,omitempty" db:"-"`
	AcademicYear *school.AcademicYear `json:"academic_year,omitempty" db:"-"`
	Semester     *school.Semester     `json:"semester,omitempty" db:"-"`
}

func (g Grade) IsComplete() bool {
	return g.PrelimGrade.Valid && g.MidtermGrade.Valid && g.FinalGrade.Valid
}

// UpdateFinalRating recomputes the weighted final rating and remarks once
// all three components are in: prelim 30%, midterm 30%, final 40%,
// passing at 75.
func (g *Grade) UpdateFinalRating() {
	if !g.IsComplete() {
		return
	}
	rating := g.PrelimGrade.Float64*.3 + g.MidtermGrade.Float64*.3 + g.FinalGrade.Float64*.4
	rating = math.Round(rating*100) / 100
	g.FinalRating = null.Float64From(rating)
	if rating >= passingRating {
		g.Remarks = RemarksPassed
	} else {
		g.Remarks = RemarksFailed
	}
}

func (g Grade) LetterGrade() string {
	if !g.FinalRating.Valid {
		return ""
	}
	switch rating := g.FinalRating.Float64; {
	case rating >= 95:
		return "A+"
	case rating >= 90:
		return "A"
	case rating >= 85:
		return "B+"
	case rating >= 80:
		return "B"
	case rating >= 75:
		return "C+"
	case rating >= 70:
		return "C"
	case rating >= 65:
		return "D"
	default:
		return "F"
	}
}

// Snapshot flattens the record and its related names into the canonical
// hashing input. Relations must be loaded beforehand; a missing relation
// serializes its fields as null.
func (g Grade) Snapshot() ledger.Snapshot {
	var studentName, subjectCode, subjectName, yearName, semesterName string
	if g.Student != nil {
		studentName = g.Student.FullName()
	}
	if g.ClassSubject != nil {
		subjectCode = g.ClassSubject.SubjectCode
		subjectName = g.ClassSubject.SubjectName
	}
	if g.AcademicYear != nil {
		yearName = g.AcademicYear.YearName
	}
	if g.Semester != nil {
		semesterName = g.Semester.SemesterName
	}

	s := make(ledger.Snapshot, 18)
	s.SetInt("grade_id", g.ID)
	s.SetInt("student_id", g.StudentID)
	s.SetString("student_name", studentName)
	s.SetInt("class_subject_id", g.ClassSubjectID)
	s.SetString("subject_code", subjectCode)
	s.SetString("subject_name", subjectName)
	s.SetInt("academic_year_id", g.AcademicYearID)
	s.SetString("academic_year", yearName)
	s.SetInt("semester_id", g.SemesterID)
	s.SetString("semester", semesterName)
	s.SetDecimal("prelim_grade", g.PrelimGrade)
	s.SetDecimal("midterm_grade", g.MidtermGrade)
	s.SetDecimal("final_grade", g.FinalGrade)
	s.SetDecimal("final_rating", g.FinalRating)
	s.SetString("remarks", g.Remarks)
	s.SetTime("created_at", g.CreatedAt)
	s.SetTime("updated_at", g.UpdatedAt)
	// capture time is pinned to the last write so the digest is reproducible
	s.Set("timestamp", g.UpdatedAt.UTC().Unix())
	return s
}

func (g Grade) Fingerprint() (string, error) {
	return g.Snapshot().Fingerprint()
}

// NewGrade contains information needed to open a new Grade record.
type NewGrade struct {
	StudentID      int      `json:"student_id" validate:"required"`
	ClassSubjectID int      `json:"class_subject_id" validate:"required"`
	AcademicYearID int      `json:"academic_year_id" validate:"required"`
	SemesterID     int      `json:"semester_id" validate:"required"`
	PrelimGrade    *float64 `json:"prelim_grade" validate:"omitempty,gte=0,lte=100"`
	MidtermGrade   *float64 `json:"midterm_grade" validate:"omitempty,gte=0,lte=100"`
	FinalGrade     *float64 `json:"final_grade" validate:"omitempty,gte=0,lte=100"`
}

func (ng *NewGrade) Validate(validate Validator) error { return validate.Struct(ng) }

// UpdateGrade contains updatable grade components; nil fields are left
// untouched.
type UpdateGrade struct {
	PrelimGrade  *float64 `json:"prelim_grade" validate:"omitempty,gte=0,lte=100"`
	MidtermGrade *float64 `json:"midterm_grade" validate:"omitempty,gte=0,lte=100"`
	FinalGrade   *float64 `json:"final_grade" validate:"omitempty,gte=0,lte=100"`
}

func (ug *UpdateGrade) Validate(validate Validator) error { return validate.Struct(ug) }

// Validator is the subset of validator.Validate this package needs.
type Validator interface {
	Struct(s interface{}) error
}

type Repository interface {
	CreateGrade(ctx context.Context, grd Grade) (Grade, error)
	GetGradeByID(ctx context.Context, id int) (Grade, error)
	UpdateGrade(ctx context.Context, grd Grade) (Grade, error)
}
