package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/sajili/core/school"
)

type schoolRepository struct {
	db *sqlx.DB
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(db *sqlx.DB) *schoolRepository {
	return &schoolRepository{db: db}
}

// trapNoRowsErr maps psql "no rows" err to school.ErrNotFound
func (repo schoolRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return school.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo schoolRepository) GetStudentByID(ctx context.Context, id int) (school.Student, error) {
	var student school.Student
	q := `SELECT id, student_number, first_name, last_name FROM students WHERE id = $1`
	if err := repo.db.GetContext(ctx, &student, q, id); err != nil {
		return school.Student{}, repo.trapNoRowsErr(err, "finding student")
	}
	return student, nil
}

func (repo schoolRepository) GetClassSubjectByID(ctx context.Context, id int) (school.ClassSubject, error) {
	var cs school.ClassSubject
	q := `SELECT id, class_name, subject_code, subject_name, teacher_id FROM class_subjects WHERE id = $1`
	if err := repo.db.GetContext(ctx, &cs, q, id); err != nil {
		return school.ClassSubject{}, repo.trapNoRowsErr(err, "finding class subject")
	}
	return cs, nil
}

func (repo schoolRepository) GetTeacherByID(ctx context.Context, id int) (school.Teacher, error) {
	var teacher school.Teacher
	q := `SELECT id, user_id, first_name, last_name FROM teachers WHERE id = $1`
	if err := repo.db.GetContext(ctx, &teacher, q, id); err != nil {
		return school.Teacher{}, repo.trapNoRowsErr(err, "finding teacher")
	}
	return teacher, nil
}

func (repo schoolRepository) GetAcademicYearByID(ctx context.Context, id int) (school.AcademicYear, error) {
	var year school.AcademicYear
	q := `SELECT id, year_name FROM academic_years WHERE id = $1`
	if err := repo.db.GetContext(ctx, &year, q, id); err != nil {
		return school.AcademicYear{}, repo.trapNoRowsErr(err, "finding academic year")
	}
	return year, nil
}

func (repo schoolRepository) GetSemesterByID(ctx context.Context, id int) (school.Semester, error) {
	var semester school.Semester
	q := `SELECT id, semester_name FROM semesters WHERE id = $1`
	if err := repo.db.GetContext(ctx, &semester, q, id); err != nil {
		return school.Semester{}, repo.trapNoRowsErr(err, "finding semester")
	}
	return semester, nil
}
