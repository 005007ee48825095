package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/campus-records/internal/models"
	"github.com/noah-isme/campus-records/internal/repository"
	appErrors "github.com/noah-isme/campus-records/pkg/errors"
)

// EnrollRequest holds payload for registering a student to a course.
type EnrollRequest struct {
	StudentID  string          `json:"student_id" validate:"required"`
	CourseCode string          `json:"course_code" validate:"required"`
	Semester   models.Semester `json:"semester"`
}

// EnrollmentService runs the enrollment state machine and GPA computation.
type EnrollmentService struct {
	store     recordStore
	policy    Policy
	validator *validator.Validate
	recorder  OperationRecorder
	now       func() time.Time
}

// NewEnrollmentService constructs the enrollment service.
func NewEnrollmentService(store recordStore, policy Policy, validate *validator.Validate, recorder OperationRecorder) *EnrollmentService {
	validate = registerRecordTags(validate)
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &EnrollmentService{store: store, policy: policy, validator: validate, recorder: recorder, now: time.Now}
}

// Enroll registers a student to a course for a semester. Every rule is
// checked and the enrollment written inside one store transaction, so a
// rejected request leaves the store untouched.
//
// Enrollment IDs are derived from student, course and semester. Only an
// ACTIVE enrollment counts as a duplicate; enrolling again over a closed one
// replaces it, grade included.
func (s *EnrollmentService) Enroll(ctx context.Context, req EnrollRequest) (enrollment *models.Enrollment, err error) {
	defer func(start time.Time) { track(s.recorder, "enrollment.enroll", start, err) }(time.Now())
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, "invalid enrollment payload")
	}
	if !req.Semester.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "semester is required")
	}
	studentID := strings.TrimSpace(req.StudentID)
	courseCode := strings.TrimSpace(req.CourseCode)

	var created models.Enrollment
	err = s.store.Update(ctx, func(tx *repository.Tx) error {
		course, ok := tx.Course(courseCode)
		if !ok {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		student, ok := tx.Student(studentID)
		if !ok {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		if !student.Status.CanEnroll() {
			return appErrors.Clonef(appErrors.ErrInvalidEnrollment, "student %s is %s and cannot enroll", student.ID, student.Status.DisplayName())
		}
		if !course.AcceptsEnrollment() {
			return appErrors.Clonef(appErrors.ErrInvalidEnrollment, "course %s is %s and does not accept enrollments", course.Code, course.Status.DisplayName())
		}

		history := studentEnrollments(tx, student.ID)
		activeCredits := 0
		for _, e := range history {
			if e.Semester != req.Semester || !e.IsActive() {
				continue
			}
			if e.Course.Code == course.Code {
				return appErrors.Clonef(appErrors.ErrDuplicateEnrollment, "student %s already enrolled in %s for %s", student.ID, course.Code, req.Semester)
			}
			activeCredits += e.Credits()
		}
		if activeCredits+course.Credits > s.policy.MaxCreditsPerSemester {
			return appErrors.Clonef(appErrors.ErrCreditLimitExceeded, "enrolling in %s would bring %s to %d credits, limit is %d",
				course.Code, req.Semester, activeCredits+course.Credits, s.policy.MaxCreditsPerSemester)
		}
		if !course.MeetsPrerequisites(passedCourseCodes(history)) {
			return appErrors.Clonef(appErrors.ErrPrerequisitesNotMet, "%s requires %s", course.Code, strings.Join(course.Prerequisites, ", "))
		}

		id := models.EnrollmentID(student.ID, course.Code, req.Semester)
		student = student.WithEnrollment(id)
		created = models.Enrollment{
			ID:         id,
			Student:    student,
			Course:     course,
			Semester:   req.Semester,
			EnrolledAt: s.now(),
			Status:     models.EnrollmentStatusActive,
		}
		if err := tx.PutEnrollment(created); err != nil {
			return err
		}
		student = refreshSemesterGPA(tx, student, req.Semester)
		created.Student = student
		if err := tx.PutEnrollment(created); err != nil {
			return err
		}
		return tx.PutStudent(student)
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// RecordGrade assigns the final grade of an active enrollment. Grade I
// leaves the enrollment INCOMPLETE, any other grade COMPLETED.
func (s *EnrollmentService) RecordGrade(ctx context.Context, id string, grade models.Grade, notes string) (enrollment *models.Enrollment, err error) {
	defer func(start time.Time) { track(s.recorder, "enrollment.grade", start, err) }(time.Now())
	return s.close(ctx, id, func(e *models.Enrollment) error {
		if !grade.Valid() || grade == models.GradeNone {
			return appErrors.Clonef(appErrors.ErrValidation, "invalid grade %q", grade)
		}
		e.Grade = grade
		e.Status = models.EnrollmentStatusCompleted
		if grade == models.GradeIncomplete {
			e.Status = models.EnrollmentStatusIncomplete
		}
		e.Notes = notes
		return nil
	})
}

// Withdraw records a student-initiated withdrawal with grade W.
func (s *EnrollmentService) Withdraw(ctx context.Context, id, reason string) (enrollment *models.Enrollment, err error) {
	defer func(start time.Time) { track(s.recorder, "enrollment.withdraw", start, err) }(time.Now())
	return s.close(ctx, id, func(e *models.Enrollment) error {
		e.Grade = models.GradeWithdrawal
		e.Status = models.EnrollmentStatusWithdrawn
		e.Notes = reason
		return nil
	})
}

// Drop removes a student from a course administratively. No grade is kept.
func (s *EnrollmentService) Drop(ctx context.Context, id, reason string) (enrollment *models.Enrollment, err error) {
	defer func(start time.Time) { track(s.recorder, "enrollment.drop", start, err) }(time.Now())
	return s.close(ctx, id, func(e *models.Enrollment) error {
		e.Grade = models.GradeNone
		e.Status = models.EnrollmentStatusDropped
		e.Notes = reason
		return nil
	})
}

// close moves an active enrollment to a terminal state through apply and
// refreshes the student's GPA history for the semester.
func (s *EnrollmentService) close(ctx context.Context, id string, apply func(e *models.Enrollment) error) (*models.Enrollment, error) {
	var updated models.Enrollment
	err := s.store.Update(ctx, func(tx *repository.Tx) error {
		e, ok := tx.Enrollment(id)
		if !ok {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		if !e.Status.IsActive() {
			return appErrors.Clonef(appErrors.ErrInvalidEnrollment, "enrollment %s is %s", id, e.Status.DisplayName())
		}
		if err := apply(&e); err != nil {
			return err
		}

		student, ok := tx.Student(e.Student.ID)
		if !ok {
			return appErrors.Clonef(appErrors.ErrNotFound, "student %s not found", e.Student.ID)
		}
		if err := tx.PutEnrollment(e); err != nil {
			return err
		}
		student = refreshSemesterGPA(tx, student.WithEnrollment(e.ID), e.Semester)
		if err := tx.PutStudent(student); err != nil {
			return err
		}
		e.Student = student
		updated = e
		return tx.PutEnrollment(e)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// Get returns an enrollment by identifier.
func (s *EnrollmentService) Get(ctx context.Context, id string) (enrollment *models.Enrollment, err error) {
	defer func(start time.Time) { track(s.recorder, "enrollment.get", start, err) }(time.Now())
	err = s.store.View(ctx, func(tx *repository.Tx) error {
		found, ok := tx.Enrollment(id)
		if !ok {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		enrollment = &found
		return nil
	})
	return enrollment, err
}

// List returns enrollments matching filter ordered by semester, student last
// name and course code.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, error) {
	enrollments, err := s.query(ctx, "enrollment.list", filter)
	if err != nil {
		return nil, err
	}
	sortEnrollments(enrollments)
	return enrollments, nil
}

// ListByStudent returns a student's enrollments ordered by semester and course code.
func (s *EnrollmentService) ListByStudent(ctx context.Context, studentID string) ([]models.Enrollment, error) {
	enrollments, err := s.query(ctx, "enrollment.by_student", models.EnrollmentFilter{StudentID: studentID})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(enrollments, func(i, j int) bool {
		a, b := enrollments[i], enrollments[j]
		if c := a.Semester.Compare(b.Semester); c != 0 {
			return c < 0
		}
		return a.Course.Code < b.Course.Code
	})
	return enrollments, nil
}

// ListByCourse returns a course's enrollments ordered by semester and student last name.
func (s *EnrollmentService) ListByCourse(ctx context.Context, courseCode string) ([]models.Enrollment, error) {
	enrollments, err := s.query(ctx, "enrollment.by_course", models.EnrollmentFilter{CourseCode: courseCode})
	if err != nil {
		return nil, err
	}
	sortRoster(enrollments)
	return enrollments, nil
}

// ListBySemester returns a semester's enrollments ordered by student last name.
func (s *EnrollmentService) ListBySemester(ctx context.Context, semester models.Semester) ([]models.Enrollment, error) {
	enrollments, err := s.query(ctx, "enrollment.by_semester", models.EnrollmentFilter{Semester: &semester})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(enrollments, func(i, j int) bool {
		return fold(enrollments[i].Student.LastName) < fold(enrollments[j].Student.LastName)
	})
	return enrollments, nil
}

// ListActive returns enrollments still in progress.
func (s *EnrollmentService) ListActive(ctx context.Context) ([]models.Enrollment, error) {
	return s.List(ctx, models.EnrollmentFilter{Status: models.EnrollmentStatusActive})
}

// ListCompleted returns enrollments closed with a final grade.
func (s *EnrollmentService) ListCompleted(ctx context.Context) ([]models.Enrollment, error) {
	return s.List(ctx, models.EnrollmentFilter{Status: models.EnrollmentStatusCompleted})
}

func (s *EnrollmentService) query(ctx context.Context, operation string, filter models.EnrollmentFilter) (enrollments []models.Enrollment, err error) {
	defer func(start time.Time) { track(s.recorder, operation, start, err) }(time.Now())
	err = s.store.View(ctx, func(tx *repository.Tx) error {
		enrollments = tx.EnrollmentsWhere(filter)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return enrollments, nil
}

// SemesterCredits sums the credits of a student's active enrollments in semester.
func (s *EnrollmentService) SemesterCredits(ctx context.Context, studentID string, semester models.Semester) (credits int, err error) {
	defer func(start time.Time) { track(s.recorder, "enrollment.semester_credits", start, err) }(time.Now())
	err = s.withStudent(ctx, studentID, func(tx *repository.Tx, enrollments []models.Enrollment) {
		for _, e := range inSemester(enrollments, semester) {
			if e.IsActive() {
				credits += e.Credits()
			}
		}
	})
	return credits, err
}

// SemesterGPA computes a student's GPA for one semester.
func (s *EnrollmentService) SemesterGPA(ctx context.Context, studentID string, semester models.Semester) (gpa float64, err error) {
	defer func(start time.Time) { track(s.recorder, "enrollment.semester_gpa", start, err) }(time.Now())
	err = s.withStudent(ctx, studentID, func(tx *repository.Tx, enrollments []models.Enrollment) {
		gpa = computeGPA(inSemester(enrollments, semester))
	})
	return gpa, err
}

// CurrentGPA computes a student's GPA for the current semester.
func (s *EnrollmentService) CurrentGPA(ctx context.Context, studentID string) (gpa float64, err error) {
	defer func(start time.Time) { track(s.recorder, "enrollment.current_gpa", start, err) }(time.Now())
	now := s.now()
	err = s.withStudent(ctx, studentID, func(tx *repository.Tx, enrollments []models.Enrollment) {
		gpa = computeGPA(inSemester(enrollments, currentSemester(s.policy, now, enrollments)))
	})
	return gpa, err
}

// CumulativeGPA computes a student's GPA across every semester.
func (s *EnrollmentService) CumulativeGPA(ctx context.Context, studentID string) (gpa float64, err error) {
	defer func(start time.Time) { track(s.recorder, "enrollment.cumulative_gpa", start, err) }(time.Now())
	err = s.withStudent(ctx, studentID, func(tx *repository.Tx, enrollments []models.Enrollment) {
		gpa = computeGPA(enrollments)
	})
	return gpa, err
}

func (s *EnrollmentService) withStudent(ctx context.Context, studentID string, fn func(tx *repository.Tx, enrollments []models.Enrollment)) error {
	return s.store.View(ctx, func(tx *repository.Tx) error {
		if _, ok := tx.Student(studentID); !ok {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		fn(tx, studentEnrollments(tx, studentID))
		return nil
	})
}

// RefreshReferences re-resolves every enrollment's student and course
// against the stores and rebuilds each student's enrollment index and GPA
// history. A dangling reference aborts without changes.
func (s *EnrollmentService) RefreshReferences(ctx context.Context) (err error) {
	defer func(start time.Time) { track(s.recorder, "enrollment.refresh", start, err) }(time.Now())
	return s.store.Update(ctx, func(tx *repository.Tx) error {
		enrollments := tx.Enrollments()
		records := make([]models.EnrollmentRecord, 0, len(enrollments))
		for _, e := range enrollments {
			records = append(records, e.Record())
		}
		linked, err := linkRecords(tx.Students(), tx.Courses(), records)
		if err != nil {
			return err
		}
		for _, st := range linked.Students {
			if err := tx.PutStudent(st); err != nil {
				return err
			}
		}
		for _, e := range linked.Enrollments {
			if err := tx.PutEnrollment(e); err != nil {
				return err
			}
		}
		return nil
	})
}

// Statistics aggregates enrollment figures.
func (s *EnrollmentService) Statistics(ctx context.Context) (stats models.EnrollmentStatistics, err error) {
	defer func(start time.Time) { track(s.recorder, "enrollment.statistics", start, err) }(time.Now())
	err = s.store.View(ctx, func(tx *repository.Tx) error {
		stats = enrollmentStatistics(tx.Enrollments())
		return nil
	})
	return stats, err
}

func enrollmentStatistics(enrollments []models.Enrollment) models.EnrollmentStatistics {
	stats := models.EnrollmentStatistics{
		BySemester: make(map[string]int),
		ByCourse:   make(map[string]int),
	}
	var points float64
	graded := 0
	for _, e := range enrollments {
		stats.Total++
		switch e.Status {
		case models.EnrollmentStatusActive:
			stats.Active++
		case models.EnrollmentStatusCompleted:
			stats.Completed++
		case models.EnrollmentStatusWithdrawn:
			stats.Withdrawn++
		}
		stats.BySemester[e.Semester.String()]++
		stats.ByCourse[e.Course.Code]++
		if e.IsGraded() && e.CountsTowardGPA() {
			points += e.Grade.Points()
			graded++
		}
	}
	if graded > 0 {
		stats.AverageGradePoints = points / float64(graded)
	}
	return stats
}

// sortRoster orders by semester, then student last name.
func sortRoster(enrollments []models.Enrollment) {
	sort.SliceStable(enrollments, func(i, j int) bool {
		a, b := enrollments[i], enrollments[j]
		if c := a.Semester.Compare(b.Semester); c != 0 {
			return c < 0
		}
		return fold(a.Student.LastName) < fold(b.Student.LastName)
	})
}
