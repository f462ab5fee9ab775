package school

import (
	"context"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
)

// The school package holds the read-only collaborators of the integrity
// ledger: the related entities whose fields are flattened into canonical
// snapshots. They are owned by the records subsystems and outlive the ledger.

var ErrNotFound = errors.New("school record not found")

type (
	Student struct {
		ID            int    `json:"id" db:"id"`
		StudentNumber string `json:"student_id" db:"student_number"`
		FirstName     string `json:"first_name" db:"first_name"`
		LastName      string `json:"last_name" db:"last_name"`
	}

	// ClassSubject is a subject taught to a class by a teacher; attendance
	// and grade entries hang off it.
	ClassSubject struct {
		ID          int      `json:"id" db:"id"`
		ClassName   string   `json:"class_name" db:"class_name"`
		SubjectCode string   `json:"subject_code" db:"subject_code"`
		SubjectName string   `json:"subject_name" db:"subject_name"`
		TeacherID   null.Int `json:"teacher_id" db:"teacher_id"`
	}

	Teacher struct {
		ID        int      `json:"id" db:"id"`
		UserID    null.Int `json:"user_id" db:"user_id"`
		FirstName string   `json:"first_name" db:"first_name"`
		LastName  string   `json:"last_name" db:"last_name"`
	}

	AcademicYear struct {
		ID       int    `json:"id" db:"id"`
		YearName string `json:"year_name" db:"year_name"`
	}

	Semester struct {
		ID           int    `json:"id" db:"id"`
		SemesterName string `json:"semester_name" db:"semester_name"`
	}

	Repository interface {
		GetStudentByID(ctx context.Context, id int) (Student, error)
		GetClassSubjectByID(ctx context.Context, id int) (ClassSubject, error)
		GetTeacherByID(ctx context.Context, id int) (Teacher, error)
		GetAcademicYearByID(ctx context.Context, id int) (AcademicYear, error)
		GetSemesterByID(ctx context.Context, id int) (Semester, error)
	}
)

func (s Student) FullName() string {
	return s.FirstName + " " + s.LastName
}

func (t Teacher) FullName() string {
	return t.FirstName + " " + t.LastName
}
