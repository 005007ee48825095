package models

import "time"

// Statistics bundles the store-wide figures shown by the stats report.
type Statistics struct {
	Students    StudentStatistics    `json:"students"`
	Courses     CourseStatistics     `json:"courses"`
	Enrollments EnrollmentStatistics `json:"enrollments"`
	GeneratedAt time.Time            `json:"generated_at"`
}

// TranscriptLine is one course row on a transcript.
type TranscriptLine struct {
	CourseCode    string           `json:"course_code"`
	CourseName    string           `json:"course_name"`
	Credits       int              `json:"credits"`
	Grade         Grade            `json:"grade,omitempty"`
	Status        EnrollmentStatus `json:"status"`
	QualityPoints float64          `json:"quality_points"`
}

// TranscriptTerm groups the lines of one semester.
type TranscriptTerm struct {
	Semester      Semester         `json:"semester"`
	Lines         []TranscriptLine `json:"lines"`
	GPA           float64          `json:"gpa"`
	CreditsEarned int              `json:"credits_earned"`
}

// Transcript is the academic history of a student.
type Transcript struct {
	Student            Student          `json:"student"`
	Terms              []TranscriptTerm `json:"terms"`
	CumulativeGPA      float64          `json:"cumulative_gpa"`
	TotalCreditsEarned int              `json:"total_credits_earned"`
	GeneratedAt        time.Time        `json:"generated_at"`
}

// CourseRoster lists the enrollments of one course.
type CourseRoster struct {
	Course      Course       `json:"course"`
	Semester    *Semester    `json:"semester,omitempty"`
	Enrollments []Enrollment `json:"enrollments"`
	Active      int          `json:"active"`
	Completed   int          `json:"completed"`
	AverageGPA  float64      `json:"average_gpa"`
}

// Snapshot is a consistent copy of every collection in the record store.
type Snapshot struct {
	Students    []Student    `json:"students"`
	Courses     []Course     `json:"courses"`
	Enrollments []Enrollment `json:"enrollments"`
}

// EnrollmentRecords flattens the snapshot enrollments for persistence.
func (s Snapshot) EnrollmentRecords() []EnrollmentRecord {
	records := make([]EnrollmentRecord, 0, len(s.Enrollments))
	for _, e := range s.Enrollments {
		records = append(records, e.Record())
	}
	return records
}

// CourseGroup is a labelled list of courses, e.g. one department.
type CourseGroup struct {
	Key     string   `json:"key"`
	Courses []Course `json:"courses"`
}
