package dummydb

import (
	"context"

	"github.com/trezcool/sajili/core/school"
)

type schoolRepository struct {
	db *schoolTable
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(db *DB) *schoolRepository {
	return &schoolRepository{db: db.school}
}

// Seed helpers for tests

func (repo *schoolRepository) AddStudent(student school.Student) school.Student {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.students[student.ID] = &student
	return student
}

func (repo *schoolRepository) AddTeacher(teacher school.Teacher) school.Teacher {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.teachers[teacher.ID] = &teacher
	return teacher
}

func (repo *schoolRepository) AddClassSubject(cs school.ClassSubject) school.ClassSubject {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.classSubjects[cs.ID] = &cs
	return cs
}

func (repo *schoolRepository) AddAcademicYear(year school.AcademicYear) school.AcademicYear {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.years[year.ID] = &year
	return year
}

func (repo *schoolRepository) AddSemester(semester school.Semester) school.Semester {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.semesters[semester.ID] = &semester
	return semester
}

func (repo *schoolRepository) GetStudentByID(_ context.Context, id int) (school.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if student, ok := repo.db.students[id]; ok {
		return *student, nil
	}
	return school.Student{}, school.ErrNotFound
}

func (repo *schoolRepository) GetClassSubjectByID(_ context.Context, id int) (school.ClassSubject, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if cs, ok := repo.db.classSubjects[id]; ok {
		return *cs, nil
	}
	return school.ClassSubject{}, school.ErrNotFound
}

func (repo *schoolRepository) GetTeacherByID(_ context.Context, id int) (school.Teacher, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if teacher, ok := repo.db.teachers[id]; ok {
		return *teacher, nil
	}
	return school.Teacher{}, school.ErrNotFound
}

func (repo *schoolRepository) GetAcademicYearByID(_ context.Context, id int) (school.AcademicYear, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if year, ok := repo.db.years[id]; ok {
		return *year, nil
	}
	return school.AcademicYear{}, school.ErrNotFound
}

func (repo *schoolRepository) GetSemesterByID(_ context.Context, id int) (school.Semester, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if semester, ok := repo.db.semesters[id]; ok {
		return *semester, nil
	}
	return school.Semester{}, school.ErrNotFound
}
