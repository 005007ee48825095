package repository

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/campus-records/internal/models"
)

// File names and layout of the CSV record files.
const (
	StudentsFile    = "students.csv"
	CoursesFile     = "courses.csv"
	EnrollmentsFile = "enrollments.csv"

	csvDateLayout       = "2006-01-02"
	prerequisiteDivider = ";"
)

var (
	studentHeader    = []string{"StudentID", "FirstName", "LastName", "Email", "PhoneNumber", "Address", "DateOfBirth", "EnrollmentDate", "Status"}
	courseHeader     = []string{"CourseCode", "CourseName", "Description", "Credits", "Department", "Instructor", "Status", "Prerequisites"}
	enrollmentHeader = []string{"EnrollmentID", "StudentID", "CourseCode", "Semester", "EnrollmentDate", "Grade", "Status", "Notes"}
)

// CSVRecordRepository reads and writes the record files of a directory.
type CSVRecordRepository struct {
	dir string
}

// NewCSVRecordRepository constructs a repository rooted at dir.
func NewCSVRecordRepository(dir string) *CSVRecordRepository {
	return &CSVRecordRepository{dir: dir}
}

// Dir returns the directory holding the record files.
func (r *CSVRecordRepository) Dir() string {
	return r.dir
}

// LoadStudents parses students.csv. A missing file yields no students.
func (r *CSVRecordRepository) LoadStudents(ctx context.Context) ([]models.Student, error) {
	rows, err := r.readRows(ctx, StudentsFile, len(studentHeader))
	if err != nil {
		return nil, err
	}
	students := make([]models.Student, 0, len(rows))
	for i, fields := range rows {
		student, err := studentFromFields(fields)
		if err != nil {
			return nil, fmt.Errorf("parse %s line %d: %w", StudentsFile, i+2, err)
		}
		students = append(students, student)
	}
	return students, nil
}

// LoadCourses parses courses.csv. A missing file yields no courses.
func (r *CSVRecordRepository) LoadCourses(ctx context.Context) ([]models.Course, error) {
	rows, err := r.readRows(ctx, CoursesFile, len(courseHeader)-1)
	if err != nil {
		return nil, err
	}
	courses := make([]models.Course, 0, len(rows))
	for i, fields := range rows {
		course, err := courseFromFields(fields)
		if err != nil {
			return nil, fmt.Errorf("parse %s line %d: %w", CoursesFile, i+2, err)
		}
		courses = append(courses, course)
	}
	return courses, nil
}

// LoadEnrollments parses enrollments.csv. A missing file yields no records.
func (r *CSVRecordRepository) LoadEnrollments(ctx context.Context) ([]models.EnrollmentRecord, error) {
	rows, err := r.readRows(ctx, EnrollmentsFile, len(enrollmentHeader)-1)
	if err != nil {
		return nil, err
	}
	records := make([]models.EnrollmentRecord, 0, len(rows))
	for i, fields := range rows {
		record, err := enrollmentFromFields(fields)
		if err != nil {
			return nil, fmt.Errorf("parse %s line %d: %w", EnrollmentsFile, i+2, err)
		}
		records = append(records, record)
	}
	return records, nil
}

// Save rewrites the three record files from the snapshot.
func (r *CSVRecordRepository) Save(ctx context.Context, snapshot models.Snapshot) error {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	studentRows := make([][]string, 0, len(snapshot.Students))
	for _, s := range snapshot.Students {
		studentRows = append(studentRows, []string{
			s.ID, s.FirstName, s.LastName, s.Email, s.Phone, s.Address,
			formatDate(s.DateOfBirth), formatDate(s.EnrollmentDate), string(s.Status),
		})
	}
	if err := r.writeRows(ctx, StudentsFile, studentHeader, studentRows); err != nil {
		return err
	}

	courseRows := make([][]string, 0, len(snapshot.Courses))
	for _, c := range snapshot.Courses {
		courseRows = append(courseRows, []string{
			c.Code, c.Name, c.Description, strconv.Itoa(c.Credits), c.Department, c.Instructor,
			string(c.Status), strings.Join(c.Prerequisites, prerequisiteDivider),
		})
	}
	if err := r.writeRows(ctx, CoursesFile, courseHeader, courseRows); err != nil {
		return err
	}

	enrollmentRows := make([][]string, 0, len(snapshot.Enrollments))
	for _, e := range snapshot.EnrollmentRecords() {
		enrollmentRows = append(enrollmentRows, []string{
			e.ID, e.StudentID, e.CourseCode, e.Semester.String(), formatDate(e.EnrolledAt),
			e.Grade.String(), string(e.Status), e.Notes,
		})
	}
	return r.writeRows(ctx, EnrollmentsFile, enrollmentHeader, enrollmentRows)
}

func (r *CSVRecordRepository) readRows(ctx context.Context, name string, minFields int) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(r.dir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	var rows [][]string
	for line := 1; ; line++ {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		if line == 1 || isBlank(fields) {
			continue
		}
		if len(fields) < minFields {
			return nil, fmt.Errorf("parse %s line %d: expected %d fields, got %d", name, line, minFields, len(fields))
		}
		rows = append(rows, fields)
	}
	return rows, nil
}

func (r *CSVRecordRepository) writeRows(ctx context.Context, name string, header []string, rows [][]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target := filepath.Join(r.dir, name)
	tmp, err := os.CreateTemp(r.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", name, err)
	}
	defer os.Remove(tmp.Name())

	writer := csv.NewWriter(tmp)
	if err := writer.Write(header); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s header: %w", name, err)
	}
	if err := writer.WriteAll(rows); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}

func studentFromFields(fields []string) (models.Student, error) {
	dob, err := parseDate(fields[6])
	if err != nil {
		return models.Student{}, fmt.Errorf("date of birth: %w", err)
	}
	enrolled, err := parseDate(fields[7])
	if err != nil {
		return models.Student{}, fmt.Errorf("enrollment date: %w", err)
	}
	status, err := models.ParseStudentStatus(fields[8])
	if err != nil {
		return models.Student{}, err
	}
	return models.Student{
		ID:             strings.TrimSpace(fields[0]),
		FirstName:      fields[1],
		LastName:       fields[2],
		Email:          fields[3],
		Phone:          fields[4],
		Address:        fields[5],
		DateOfBirth:    dob,
		EnrollmentDate: enrolled,
		Status:         status,
	}, nil
}

func courseFromFields(fields []string) (models.Course, error) {
	credits, err := strconv.Atoi(strings.TrimSpace(fields[3]))
	if err != nil {
		return models.Course{}, fmt.Errorf("credits: %w", err)
	}
	status, err := models.ParseCourseStatus(fields[6])
	if err != nil {
		return models.Course{}, err
	}
	var prereqs []string
	if len(fields) > 7 && strings.TrimSpace(fields[7]) != "" {
		for _, code := range strings.Split(fields[7], prerequisiteDivider) {
			prereqs = append(prereqs, strings.TrimSpace(code))
		}
		prereqs = models.NormalizePrerequisites(prereqs)
	}
	return models.Course{
		Code:          strings.TrimSpace(fields[0]),
		Name:          fields[1],
		Description:   fields[2],
		Credits:       credits,
		Department:    fields[4],
		Instructor:    fields[5],
		Status:        status,
		Prerequisites: prereqs,
	}, nil
}

func enrollmentFromFields(fields []string) (models.EnrollmentRecord, error) {
	semester, err := models.ParseSemester(fields[3])
	if err != nil {
		return models.EnrollmentRecord{}, err
	}
	enrolled, err := parseDate(fields[4])
	if err != nil {
		return models.EnrollmentRecord{}, fmt.Errorf("enrollment date: %w", err)
	}
	grade := models.GradeNone
	if strings.TrimSpace(fields[5]) != "" {
		if grade, err = models.ParseGrade(fields[5]); err != nil {
			return models.EnrollmentRecord{}, err
		}
	}
	status, err := models.ParseEnrollmentStatus(fields[6])
	if err != nil {
		return models.EnrollmentRecord{}, err
	}
	record := models.EnrollmentRecord{
		ID:         strings.TrimSpace(fields[0]),
		StudentID:  strings.TrimSpace(fields[1]),
		CourseCode: strings.TrimSpace(fields[2]),
		Semester:   semester,
		EnrolledAt: enrolled,
		Grade:      grade,
		Status:     status,
	}
	if len(fields) > 7 {
		record.Notes = fields[7]
	}
	return record, nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(csvDateLayout)
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(csvDateLayout, raw)
}

func isBlank(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
