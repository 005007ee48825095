package models

import (
	"fmt"
	"time"
)

// Enrollment captures a student's registration to a course within a semester.
//
// Student and Course are snapshots taken when the enrollment was last
// resolved against the stores.
type Enrollment struct {
	ID         string           `json:"id"`
	Student    Student          `json:"student"`
	Course     Course           `json:"course"`
	Semester   Semester         `json:"semester"`
	EnrolledAt time.Time        `json:"enrolled_at"`
	Grade      Grade            `json:"grade,omitempty"`
	Notes      string           `json:"notes,omitempty"`
	Status     EnrollmentStatus `json:"status"`
}

// EnrollmentID builds the deterministic identifier of an enrollment, e.g.
// ST1001_CS101_SPRING_2024.
func EnrollmentID(studentID, courseCode string, semester Semester) string {
	return fmt.Sprintf("%s_%s_%s_%d", studentID, courseCode, semester.Season, semester.Year)
}

// IsActive reports whether the enrollment is in progress.
func (e Enrollment) IsActive() bool {
	return e.Status.IsActive()
}

// IsCompleted reports whether the enrollment finished with a final grade.
func (e Enrollment) IsCompleted() bool {
	return e.Status == EnrollmentStatusCompleted
}

// IsGraded reports whether a grade has been recorded.
func (e Enrollment) IsGraded() bool {
	return e.Grade != GradeNone
}

// Credits returns the credit value of the enrolled course.
func (e Enrollment) Credits() int {
	return e.Course.Credits
}

// QualityPoints returns grade points multiplied by course credits.
func (e Enrollment) QualityPoints() float64 {
	if !e.IsGraded() {
		return 0
	}
	return e.Grade.Points() * float64(e.Course.Credits)
}

// CountsTowardGPA reports whether the enrollment participates in GPA math.
func (e Enrollment) CountsTowardGPA() bool {
	return e.Grade.CountsTowardGPA()
}

// Record flattens the enrollment into its persistence form.
func (e Enrollment) Record() EnrollmentRecord {
	return EnrollmentRecord{
		ID:         e.ID,
		StudentID:  e.Student.ID,
		CourseCode: e.Course.Code,
		Semester:   e.Semester,
		EnrolledAt: e.EnrolledAt,
		Grade:      e.Grade,
		Status:     e.Status,
		Notes:      e.Notes,
	}
}

// Clone returns a deep copy of the enrollment.
func (e Enrollment) Clone() Enrollment {
	out := e
	out.Student = e.Student.Clone()
	out.Course = e.Course.Clone()
	return out
}

// EnrollmentRecord is the flat, identifier-only form used by persistence.
type EnrollmentRecord struct {
	ID         string           `db:"id" json:"id"`
	StudentID  string           `db:"student_id" json:"student_id"`
	CourseCode string           `db:"course_code" json:"course_code"`
	Semester   Semester         `db:"-" json:"semester"`
	EnrolledAt time.Time        `db:"enrolled_at" json:"enrolled_at"`
	Grade      Grade            `db:"grade" json:"grade"`
	Status     EnrollmentStatus `db:"status" json:"status"`
	Notes      string           `db:"notes" json:"notes"`
}

// EnrollmentStatistics aggregates figures over the enrollment store.
type EnrollmentStatistics struct {
	Total              int            `json:"total"`
	Active             int            `json:"active"`
	Completed          int            `json:"completed"`
	Withdrawn          int            `json:"withdrawn"`
	BySemester         map[string]int `json:"by_semester"`
	ByCourse           map[string]int `json:"by_course"`
	AverageGradePoints float64        `json:"average_grade_points"`
}

// EnrollmentFilter narrows enrollment listings. Zero fields match everything.
type EnrollmentFilter struct {
	StudentID  string
	CourseCode string
	Semester   *Semester
	Status     EnrollmentStatus
}

// Matches reports whether e satisfies every set field of the filter.
func (f EnrollmentFilter) Matches(e Enrollment) bool {
	if f.StudentID != "" && e.Student.ID != f.StudentID {
		return false
	}
	if f.CourseCode != "" && e.Course.Code != f.CourseCode {
		return false
	}
	if f.Semester != nil && e.Semester != *f.Semester {
		return false
	}
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	return true
}
