package dummydb

import (
	"sync"

	"github.com/trezcool/sajili/core/attendance"
	"github.com/trezcool/sajili/core/certificate"
	"github.com/trezcool/sajili/core/grade"
	"github.com/trezcool/sajili/core/ledger"
	"github.com/trezcool/sajili/core/school"
	"github.com/trezcool/sajili/core/user"
)

type (
	DB struct {
		user        *userTable
		school      *schoolTable
		transaction *transactionTable
		attendance  *attendanceTable
		grade       *gradeTable
		certificate *certificateTable
	}

	userTable struct {
		sync.RWMutex
		seq   int
		table map[int]*user.User
	}

	schoolTable struct {
		sync.RWMutex
		students      map[int]*school.Student
		teachers      map[int]*school.Teacher
		classSubjects map[int]*school.ClassSubject
		years         map[int]*school.AcademicYear
		semesters     map[int]*school.Semester
	}

	transactionTable struct {
		sync.RWMutex
		seq   int
		table map[int]*ledger.Transaction
	}

	attendanceTable struct {
		sync.RWMutex
		seq   int
		table map[int]*attendance.Attendance
	}

	gradeTable struct {
		sync.RWMutex
		seq   int
		table map[int]*grade.Grade
	}

	certificateTable struct {
		sync.RWMutex
		seq    int
		table  map[int]*certificate.Certificate
		verSeq int
		vers   map[int]*certificate.Verification
	}
)

func Open() (*DB, error) {
	db := &DB{
		user: &userTable{table: make(map[int]*user.User)},
		school: &schoolTable{
			students:      make(map[int]*school.Student),
			teachers:      make(map[int]*school.Teacher),
			classSubjects: make(map[int]*school.ClassSubject),
			years:         make(map[int]*school.AcademicYear),
			semesters:     make(map[int]*school.Semester),
		},
		transaction: &transactionTable{table: make(map[int]*ledger.Transaction)},
		attendance:  &attendanceTable{table: make(map[int]*attendance.Attendance)},
		grade:       &gradeTable{table: make(map[int]*grade.Grade)},
		certificate: &certificateTable{
			table: make(map[int]*certificate.Certificate),
			vers:  make(map[int]*certificate.Verification),
		},
	}
	return db, nil
}
