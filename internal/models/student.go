package models

import (
	"sort"
	"strings"
	"time"
)

// Student represents a learner registered in the institution.
//
// Students are values: services replace the stored record instead of
// mutating it. EnrollmentIDs is the back-reference index kept current by the
// enrollment engine.
type Student struct {
	ID             string             `db:"id" json:"id"`
	FirstName      string             `db:"first_name" json:"first_name"`
	LastName       string             `db:"last_name" json:"last_name"`
	Email          string             `db:"email" json:"email"`
	Phone          string             `db:"phone" json:"phone"`
	Address        string             `db:"address" json:"address"`
	DateOfBirth    time.Time          `db:"date_of_birth" json:"date_of_birth"`
	EnrollmentDate time.Time          `db:"enrollment_date" json:"enrollment_date"`
	Status         StudentStatus      `db:"status" json:"status"`
	EnrollmentIDs  []string           `db:"-" json:"enrollment_ids,omitempty"`
	GPAHistory     map[string]float64 `db:"-" json:"gpa_history,omitempty"`
}

// FullName joins first and last name.
func (s Student) FullName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

// HasEnrollment reports whether id is in the student's enrollment index.
func (s Student) HasEnrollment(id string) bool {
	for _, existing := range s.EnrollmentIDs {
		if existing == id {
			return true
		}
	}
	return false
}

// WithEnrollment returns a copy whose enrollment index contains id.
func (s Student) WithEnrollment(id string) Student {
	out := s.Clone()
	if !out.HasEnrollment(id) {
		out.EnrollmentIDs = append(out.EnrollmentIDs, id)
		sort.Strings(out.EnrollmentIDs)
	}
	return out
}

// WithSemesterGPA returns a copy with the GPA history entry for semester set.
func (s Student) WithSemesterGPA(semester Semester, gpa float64) Student {
	out := s.Clone()
	if out.GPAHistory == nil {
		out.GPAHistory = make(map[string]float64)
	}
	out.GPAHistory[semester.String()] = gpa
	return out
}

// Clone returns a deep copy of the student.
func (s Student) Clone() Student {
	out := s
	if s.EnrollmentIDs != nil {
		out.EnrollmentIDs = append([]string(nil), s.EnrollmentIDs...)
	}
	if s.GPAHistory != nil {
		out.GPAHistory = make(map[string]float64, len(s.GPAHistory))
		for k, v := range s.GPAHistory {
			out.GPAHistory[k] = v
		}
	}
	return out
}

// StudentStatistics aggregates figures over the student store.
type StudentStatistics struct {
	Total              int                   `json:"total"`
	Active             int                   `json:"active"`
	Graduated          int                   `json:"graduated"`
	ByStatus           map[StudentStatus]int `json:"by_status"`
	AverageGPA         float64               `json:"average_gpa"`
	TotalCreditsEarned int                   `json:"total_credits_earned"`
}

// StudentGPA pairs a student with a computed GPA.
type StudentGPA struct {
	Student Student `json:"student"`
	GPA     float64 `json:"gpa"`
}
