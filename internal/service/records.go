package service

import (
	"context"
	"sort"
	"time"

	"github.com/noah-isme/campus-records/internal/models"
	"github.com/noah-isme/campus-records/internal/repository"
	"github.com/noah-isme/campus-records/pkg/config"
	appErrors "github.com/noah-isme/campus-records/pkg/errors"
)

// recordStore is the transactional store the engine services share.
type recordStore interface {
	Update(ctx context.Context, fn func(tx *repository.Tx) error) error
	View(ctx context.Context, fn func(tx *repository.Tx) error) error
	Version() uint64
}

type nopRecorder struct{}

func (nopRecorder) RecordOperation(string, error, time.Duration) {}

// track reports the outcome of an operation started at start.
func track(recorder OperationRecorder, operation string, start time.Time, err error) {
	recorder.RecordOperation(operation, err, time.Since(start))
}

// computeGPA is Σ(points × credits) / Σ(credits) over graded enrollments
// whose grade counts toward GPA. No countable enrollment yields 0.0.
func computeGPA(enrollments []models.Enrollment) float64 {
	var points float64
	var credits int
	for _, e := range enrollments {
		if !e.IsGraded() || !e.CountsTowardGPA() {
			continue
		}
		points += e.QualityPoints()
		credits += e.Credits()
	}
	if credits == 0 {
		return 0.0
	}
	return points / float64(credits)
}

// creditsEarned sums the credits of enrollments with a passing grade.
func creditsEarned(enrollments []models.Enrollment) int {
	total := 0
	for _, e := range enrollments {
		if e.Grade.IsPassing() {
			total += e.Credits()
		}
	}
	return total
}

// passedCourseCodes lists the distinct codes of courses passed.
func passedCourseCodes(enrollments []models.Enrollment) []string {
	seen := make(map[string]struct{})
	codes := make([]string, 0)
	for _, e := range enrollments {
		if !e.Grade.IsPassing() {
			continue
		}
		if _, ok := seen[e.Course.Code]; ok {
			continue
		}
		seen[e.Course.Code] = struct{}{}
		codes = append(codes, e.Course.Code)
	}
	sort.Strings(codes)
	return codes
}

func inSemester(enrollments []models.Enrollment, semester models.Semester) []models.Enrollment {
	out := make([]models.Enrollment, 0)
	for _, e := range enrollments {
		if e.Semester == semester {
			out = append(out, e)
		}
	}
	return out
}

func studentEnrollments(tx *repository.Tx, studentID string) []models.Enrollment {
	return tx.EnrollmentsWhere(models.EnrollmentFilter{StudentID: studentID})
}

// currentSemester picks the semester used for "current" GPA figures.
func currentSemester(policy Policy, now time.Time, enrollments []models.Enrollment) models.Semester {
	if policy.GPASemester == config.GPASemesterLatest && len(enrollments) > 0 {
		latest := enrollments[0].Semester
		for _, e := range enrollments[1:] {
			if latest.Before(e.Semester) {
				latest = e.Semester
			}
		}
		return latest
	}
	return models.SemesterForDate(now)
}

func currentGPA(tx *repository.Tx, policy Policy, now time.Time, studentID string) float64 {
	enrollments := studentEnrollments(tx, studentID)
	return computeGPA(inSemester(enrollments, currentSemester(policy, now, enrollments)))
}

// semesterGPAHistory computes the GPA of every semester holding a graded
// enrollment.
func semesterGPAHistory(enrollments []models.Enrollment) map[string]float64 {
	bySemester := make(map[models.Semester][]models.Enrollment)
	for _, e := range enrollments {
		if e.IsGraded() {
			bySemester[e.Semester] = append(bySemester[e.Semester], e)
		}
	}
	if len(bySemester) == 0 {
		return nil
	}
	history := make(map[string]float64, len(bySemester))
	for semester := range bySemester {
		history[semester.String()] = computeGPA(inSemester(enrollments, semester))
	}
	return history
}

// refreshSemesterGPA recomputes the GPA history entry of student for
// semester from the enrollments visible in tx.
func refreshSemesterGPA(tx *repository.Tx, student models.Student, semester models.Semester) models.Student {
	enrollments := inSemester(studentEnrollments(tx, student.ID), semester)
	for _, e := range enrollments {
		if e.IsGraded() {
			return student.WithSemesterGPA(semester, computeGPA(enrollments))
		}
	}
	if _, ok := student.GPAHistory[semester.String()]; !ok {
		return student
	}
	out := student.Clone()
	delete(out.GPAHistory, semester.String())
	return out
}

// linkRecords turns flat enrollment records into enrollments holding the
// current student and course values, and rebuilds every student's
// enrollment index and GPA history from them.
func linkRecords(students []models.Student, courses []models.Course, records []models.EnrollmentRecord) (models.Snapshot, error) {
	studentIdx := make(map[string]int, len(students))
	for i, s := range students {
		if _, dup := studentIdx[s.ID]; dup {
			return models.Snapshot{}, appErrors.Clonef(appErrors.ErrValidation, "duplicate student %s", s.ID)
		}
		studentIdx[s.ID] = i
	}
	courseByCode := make(map[string]models.Course, len(courses))
	for _, c := range courses {
		if _, dup := courseByCode[c.Code]; dup {
			return models.Snapshot{}, appErrors.Clonef(appErrors.ErrValidation, "duplicate course %s", c.Code)
		}
		courseByCode[c.Code] = c
	}

	enrollments := make([]models.Enrollment, 0, len(records))
	byStudent := make(map[string][]models.Enrollment)
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		idx, ok := studentIdx[r.StudentID]
		if !ok {
			return models.Snapshot{}, appErrors.Clonef(appErrors.ErrValidation, "enrollment %s references unknown student %s", r.ID, r.StudentID)
		}
		course, ok := courseByCode[r.CourseCode]
		if !ok {
			return models.Snapshot{}, appErrors.Clonef(appErrors.ErrValidation, "enrollment %s references unknown course %s", r.ID, r.CourseCode)
		}
		if want := models.EnrollmentID(r.StudentID, r.CourseCode, r.Semester); r.ID != want {
			return models.Snapshot{}, appErrors.Clonef(appErrors.ErrValidation, "enrollment %s should be identified as %s", r.ID, want)
		}
		if _, dup := seen[r.ID]; dup {
			return models.Snapshot{}, appErrors.Clonef(appErrors.ErrValidation, "duplicate enrollment %s", r.ID)
		}
		seen[r.ID] = struct{}{}
		e := models.Enrollment{
			ID:         r.ID,
			Student:    students[idx],
			Course:     course,
			Semester:   r.Semester,
			EnrolledAt: r.EnrolledAt,
			Grade:      r.Grade,
			Notes:      r.Notes,
			Status:     r.Status,
		}
		enrollments = append(enrollments, e)
		byStudent[r.StudentID] = append(byStudent[r.StudentID], e)
	}

	linked := make([]models.Student, len(students))
	for i, s := range students {
		s = s.Clone()
		own := byStudent[s.ID]
		s.EnrollmentIDs = nil
		for _, e := range own {
			s = s.WithEnrollment(e.ID)
		}
		s.GPAHistory = semesterGPAHistory(own)
		linked[i] = s
	}
	for i := range enrollments {
		enrollments[i].Student = linked[studentIdx[enrollments[i].Student.ID]]
	}

	return models.Snapshot{Students: linked, Courses: courses, Enrollments: enrollments}, nil
}

func sortStudents(students []models.Student) {
	sort.SliceStable(students, func(i, j int) bool {
		a, b := students[i], students[j]
		if la, lb := fold(a.LastName), fold(b.LastName); la != lb {
			return la < lb
		}
		if fa, fb := fold(a.FirstName), fold(b.FirstName); fa != fb {
			return fa < fb
		}
		return a.ID < b.ID
	})
}

func sortCourses(courses []models.Course) {
	sort.SliceStable(courses, func(i, j int) bool {
		return courses[i].Code < courses[j].Code
	})
}

// sortEnrollments orders by semester, then student last name, then course code.
func sortEnrollments(enrollments []models.Enrollment) {
	sort.SliceStable(enrollments, func(i, j int) bool {
		a, b := enrollments[i], enrollments[j]
		if c := a.Semester.Compare(b.Semester); c != 0 {
			return c < 0
		}
		if la, lb := fold(a.Student.LastName), fold(b.Student.LastName); la != lb {
			return la < lb
		}
		return a.Course.Code < b.Course.Code
	})
}
