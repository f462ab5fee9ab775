package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/sajili/core/grade"
)

type gradeRepository struct {
	db *sqlx.DB
}

var _ grade.Repository = (*gradeRepository)(nil) // interface compliance check

func NewGradeRepository(db *sqlx.DB) *gradeRepository {
	return &gradeRepository{db: db}
}

// trapNoRowsErr maps psql "no rows" err to grade.ErrNotFound
func (repo gradeRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return grade.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo gradeRepository) CreateGrade(ctx context.Context, grd grade.Grade) (grade.Grade, error) {
	q := `
		INSERT INTO grades
			(student_id, class_subject_id, academic_year_id, semester_id,
			 prelim_grade, midterm_grade, final_grade, final_rating, remarks, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`
	err := repo.db.QueryRowContext(
		ctx, q,
		grd.StudentID, grd.ClassSubjectID, grd.AcademicYearID, grd.SemesterID,
		grd.PrelimGrade, grd.MidtermGrade, grd.FinalGrade, grd.FinalRating, grd.Remarks,
		grd.CreatedAt, grd.UpdatedAt,
	).Scan(&grd.ID)
	if err != nil {
		return grade.Grade{}, errors.Wrap(err, "inserting grade")
	}
	return grd, nil
}

func (repo gradeRepository) GetGradeByID(ctx context.Context, id int) (grade.Grade, error) {
	var grd grade.Grade
	q := `SELECT id, student_id, class_subject_id, academic_year_id, semester_id,
			prelim_grade, midterm_grade, final_grade, final_rating, remarks, created_at, updated_at
		FROM grades WHERE id = $1`
	if err := repo.db.GetContext(ctx, &grd, q, id); err != nil {
		return grade.Grade{}, repo.trapNoRowsErr(err, "finding grade")
	}
	return grd, nil
}

func (repo gradeRepository) UpdateGrade(ctx context.Context, grd grade.Grade) (grade.Grade, error) {
	q := `
		UPDATE grades
		SET prelim_grade = $2, midterm_grade = $3, final_grade = $4,
		    final_rating = $5, remarks = $6, updated_at = $7
		WHERE id = $1`
	res, err := repo.db.ExecContext(
		ctx, q,
		grd.ID, grd.PrelimGrade, grd.MidtermGrade, grd.FinalGrade,
		grd.FinalRating, grd.Remarks, grd.UpdatedAt,
	)
	if err != nil {
		return grade.Grade{}, errors.Wrap(err, "updating grade")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return grade.Grade{}, grade.ErrNotFound
	}
	return grd, nil
}
