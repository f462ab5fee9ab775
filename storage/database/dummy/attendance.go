package dummydb

import (
	"context"

	"github.com/trezcool/sajili/core/attendance"
)

type attendanceRepository struct {
	db *attendanceTable
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *DB) *attendanceRepository {
	return &attendanceRepository{db: db.attendance}
}

func (repo *attendanceRepository) CreateAttendance(_ context.Context, att attendance.Attendance) (attendance.Attendance, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.seq++
	att.ID = repo.db.seq
	stored := att
	stored.Student, stored.ClassSubject = nil, nil
	repo.db.table[att.ID] = &stored
	return att, nil
}

func (repo *attendanceRepository) GetAttendanceByID(_ context.Context, id int) (attendance.Attendance, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if att, ok := repo.db.table[id]; ok {
		return *att, nil
	}
	return attendance.Attendance{}, attendance.ErrNotFound
}

func (repo *attendanceRepository) UpdateAttendance(_ context.Context, att attendance.Attendance) (attendance.Attendance, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[att.ID]; !ok {
		return attendance.Attendance{}, attendance.ErrNotFound
	}
	stored := att
	stored.Student, stored.ClassSubject = nil, nil
	repo.db.table[att.ID] = &stored
	return att, nil
}
