package dummydb

import (
	"context"

	"github.com/trezcool/sajili/core/grade"
)

type gradeRepository struct {
	db *gradeTable
}

var _ grade.Repository = (*gradeRepository)(nil) // interface compliance check

func NewGradeRepository(db *DB) *gradeRepository {
	return &gradeRepository{db: db.grade}
}

func (repo *gradeRepository) CreateGrade(_ context.Context, grd grade.Grade) (grade.Grade, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.seq++
	grd.ID = repo.db.seq
	stored := grd
	stored.Student, stored.ClassSubject, stored.AcademicYear, stored.Semester = nil, nil, nil, nil
	repo.db.table[grd.ID] = &stored
	return grd, nil
}

func (repo *gradeRepository) GetGradeByID(_ context.Context, id int) (grade.Grade, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if grd, ok := repo.db.table[id]; ok {
		return *grd, nil
	}
	return grade.Grade{}, grade.ErrNotFound
}

func (repo *gradeRepository) UpdateGrade(_ context.Context, grd grade.Grade) (grade.Grade, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[grd.ID]; !ok {
		return grade.Grade{}, grade.ErrNotFound
	}
	stored := grd
	stored.Student, stored.ClassSubject, stored.AcademicYear, stored.Semester = nil, nil, nil, nil
	repo.db.table[grd.ID] = &stored
	return grd, nil
}
