package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/sajili/core/attendance"
)

type attendanceRepository struct {
	db *sqlx.DB
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *sqlx.DB) *attendanceRepository {
	return &attendanceRepository{db: db}
}

// trapNoRowsErr maps psql "no rows" err to attendance.ErrNotFound
func (repo attendanceRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return attendance.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo attendanceRepository) CreateAttendance(ctx context.Context, att attendance.Attendance) (attendance.Attendance, error) {
	q := `
		INSERT INTO attendance (student_id, class_subject_id, attendance_date, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`
	err := repo.db.QueryRowContext(
		ctx, q,
		att.StudentID, att.ClassSubjectID, att.Date, att.Status, att.CreatedAt, att.UpdatedAt,
	).Scan(&att.ID)
	if err != nil {
		return attendance.Attendance{}, errors.Wrap(err, "inserting attendance")
	}
	return att, nil
}

func (repo attendanceRepository) GetAttendanceByID(ctx context.Context, id int) (attendance.Attendance, error) {
	var att attendance.Attendance
	q := `SELECT id, student_id, class_subject_id, attendance_date, status, created_at, updated_at
		FROM attendance WHERE id = $1`
	if err := repo.db.GetContext(ctx, &att, q, id); err != nil {
		return attendance.Attendance{}, repo.trapNoRowsErr(err, "finding attendance")
	}
	return att, nil
}

func (repo attendanceRepository) UpdateAttendance(ctx context.Context, att attendance.Attendance) (attendance.Attendance, error) {
	q := `
		UPDATE attendance
		SET student_id = $2, class_subject_id = $3, attendance_date = $4, status = $5, updated_at = $6
		WHERE id = $1`
	res, err := repo.db.ExecContext(
		ctx, q,
		att.ID, att.StudentID, att.ClassSubjectID, att.Date, att.Status, att.UpdatedAt,
	)
	if err != nil {
		return attendance.Attendance{}, errors.Wrap(err, "updating attendance")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return attendance.Attendance{}, attendance.ErrNotFound
	}
	return att, nil
}
