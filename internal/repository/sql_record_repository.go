package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-records/internal/models"
)

var recordSchema = []string{
	`CREATE TABLE IF NOT EXISTS students (
        id TEXT PRIMARY KEY,
        first_name TEXT NOT NULL,
        last_name TEXT NOT NULL,
        email TEXT NOT NULL,
        phone TEXT NOT NULL DEFAULT '',
        address TEXT NOT NULL DEFAULT '',
        date_of_birth TIMESTAMP NULL,
        enrollment_date TIMESTAMP NOT NULL,
        status TEXT NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS courses (
        code TEXT PRIMARY KEY,
        name TEXT NOT NULL,
        description TEXT NOT NULL DEFAULT '',
        credits INTEGER NOT NULL,
        department TEXT NOT NULL,
        instructor TEXT NOT NULL,
        status TEXT NOT NULL,
        prerequisites TEXT NOT NULL DEFAULT ''
    )`,
	`CREATE TABLE IF NOT EXISTS enrollments (
        id TEXT PRIMARY KEY,
        student_id TEXT NOT NULL,
        course_code TEXT NOT NULL,
        semester_year INTEGER NOT NULL,
        semester_season TEXT NOT NULL,
        enrolled_at TIMESTAMP NOT NULL,
        grade TEXT NOT NULL DEFAULT '',
        status TEXT NOT NULL,
        notes TEXT NOT NULL DEFAULT ''
    )`,
}

type studentRow struct {
	ID             string     `db:"id"`
	FirstName      string     `db:"first_name"`
	LastName       string     `db:"last_name"`
	Email          string     `db:"email"`
	Phone          string     `db:"phone"`
	Address        string     `db:"address"`
	DateOfBirth    *time.Time `db:"date_of_birth"`
	EnrollmentDate time.Time  `db:"enrollment_date"`
	Status         string     `db:"status"`
}

type courseRow struct {
	Code          string `db:"code"`
	Name          string `db:"name"`
	Description   string `db:"description"`
	Credits       int    `db:"credits"`
	Department    string `db:"department"`
	Instructor    string `db:"instructor"`
	Status        string `db:"status"`
	Prerequisites string `db:"prerequisites"`
}

type enrollmentRow struct {
	ID             string    `db:"id"`
	StudentID      string    `db:"student_id"`
	CourseCode     string    `db:"course_code"`
	SemesterYear   int       `db:"semester_year"`
	SemesterSeason string    `db:"semester_season"`
	EnrolledAt     time.Time `db:"enrolled_at"`
	Grade          string    `db:"grade"`
	Status         string    `db:"status"`
	Notes          string    `db:"notes"`
}

// SQLRecordRepository stores the record snapshot in relational tables.
type SQLRecordRepository struct {
	db *sqlx.DB
}

// NewSQLRecordRepository constructs a SQLRecordRepository.
func NewSQLRecordRepository(db *sqlx.DB) *SQLRecordRepository {
	return &SQLRecordRepository{db: db}
}

// Migrate creates the record tables when missing.
func (r *SQLRecordRepository) Migrate(ctx context.Context) error {
	for _, stmt := range recordSchema {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate record schema: %w", err)
		}
	}
	return nil
}

// LoadStudents returns every stored student ordered by identifier.
func (r *SQLRecordRepository) LoadStudents(ctx context.Context) ([]models.Student, error) {
	var rows []studentRow
	query := `SELECT id, first_name, last_name, email, phone, address, date_of_birth, enrollment_date, status FROM students ORDER BY id`
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("load students: %w", err)
	}
	students := make([]models.Student, 0, len(rows))
	for _, row := range rows {
		status, err := models.ParseStudentStatus(row.Status)
		if err != nil {
			return nil, fmt.Errorf("load student %s: %w", row.ID, err)
		}
		student := models.Student{
			ID:             row.ID,
			FirstName:      row.FirstName,
			LastName:       row.LastName,
			Email:          row.Email,
			Phone:          row.Phone,
			Address:        row.Address,
			EnrollmentDate: row.EnrollmentDate.UTC(),
			Status:         status,
		}
		if row.DateOfBirth != nil {
			student.DateOfBirth = row.DateOfBirth.UTC()
		}
		students = append(students, student)
	}
	return students, nil
}

// LoadCourses returns every stored course ordered by code.
func (r *SQLRecordRepository) LoadCourses(ctx context.Context) ([]models.Course, error) {
	var rows []courseRow
	query := `SELECT code, name, description, credits, department, instructor, status, prerequisites FROM courses ORDER BY code`
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("load courses: %w", err)
	}
	courses := make([]models.Course, 0, len(rows))
	for _, row := range rows {
		status, err := models.ParseCourseStatus(row.Status)
		if err != nil {
			return nil, fmt.Errorf("load course %s: %w", row.Code, err)
		}
		var prereqs []string
		if row.Prerequisites != "" {
			prereqs = models.NormalizePrerequisites(strings.Split(row.Prerequisites, prerequisiteDivider))
		}
		courses = append(courses, models.Course{
			Code:          row.Code,
			Name:          row.Name,
			Description:   row.Description,
			Credits:       row.Credits,
			Department:    row.Department,
			Instructor:    row.Instructor,
			Status:        status,
			Prerequisites: prereqs,
		})
	}
	return courses, nil
}

// LoadEnrollments returns every stored enrollment record ordered by identifier.
func (r *SQLRecordRepository) LoadEnrollments(ctx context.Context) ([]models.EnrollmentRecord, error) {
	var rows []enrollmentRow
	query := `SELECT id, student_id, course_code, semester_year, semester_season, enrolled_at, grade, status, notes FROM enrollments ORDER BY id`
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("load enrollments: %w", err)
	}
	records := make([]models.EnrollmentRecord, 0, len(rows))
	for _, row := range rows {
		record, err := row.record()
		if err != nil {
			return nil, fmt.Errorf("load enrollment %s: %w", row.ID, err)
		}
		records = append(records, record)
	}
	return records, nil
}

// Save replaces the stored rows with the snapshot inside one transaction.
func (r *SQLRecordRepository) Save(ctx context.Context, snapshot models.Snapshot) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, table := range []string{"enrollments", "courses", "students"} {
		if _, err = tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	insertStudent := r.db.Rebind(`INSERT INTO students (id, first_name, last_name, email, phone, address, date_of_birth, enrollment_date, status)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	for _, s := range snapshot.Students {
		var dob *time.Time
		if !s.DateOfBirth.IsZero() {
			d := s.DateOfBirth
			dob = &d
		}
		if _, err = tx.ExecContext(ctx, insertStudent, s.ID, s.FirstName, s.LastName, s.Email, s.Phone, s.Address, dob, s.EnrollmentDate, string(s.Status)); err != nil {
			return fmt.Errorf("insert student %s: %w", s.ID, err)
		}
	}

	insertCourse := r.db.Rebind(`INSERT INTO courses (code, name, description, credits, department, instructor, status, prerequisites)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	for _, c := range snapshot.Courses {
		if _, err = tx.ExecContext(ctx, insertCourse, c.Code, c.Name, c.Description, c.Credits, c.Department, c.Instructor, string(c.Status), strings.Join(c.Prerequisites, prerequisiteDivider)); err != nil {
			return fmt.Errorf("insert course %s: %w", c.Code, err)
		}
	}

	insertEnrollment := r.db.Rebind(`INSERT INTO enrollments (id, student_id, course_code, semester_year, semester_season, enrolled_at, grade, status, notes)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	for _, e := range snapshot.EnrollmentRecords() {
		if _, err = tx.ExecContext(ctx, insertEnrollment, e.ID, e.StudentID, e.CourseCode, e.Semester.Year, e.Semester.Season.String(), e.EnrolledAt, e.Grade.String(), string(e.Status), e.Notes); err != nil {
			return fmt.Errorf("insert enrollment %s: %w", e.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

func (row enrollmentRow) record() (models.EnrollmentRecord, error) {
	season, err := models.ParseSeason(row.SemesterSeason)
	if err != nil {
		return models.EnrollmentRecord{}, err
	}
	grade := models.GradeNone
	if row.Grade != "" {
		if grade, err = models.ParseGrade(row.Grade); err != nil {
			return models.EnrollmentRecord{}, err
		}
	}
	status, err := models.ParseEnrollmentStatus(row.Status)
	if err != nil {
		return models.EnrollmentRecord{}, err
	}
	return models.EnrollmentRecord{
		ID:         row.ID,
		StudentID:  row.StudentID,
		CourseCode: row.CourseCode,
		Semester:   models.NewSemester(row.SemesterYear, season),
		EnrolledAt: row.EnrolledAt.UTC(),
		Grade:      grade,
		Status:     status,
		Notes:      row.Notes,
	}, nil
}
