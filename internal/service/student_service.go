package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/campus-records/internal/models"
	"github.com/noah-isme/campus-records/internal/repository"
	appErrors "github.com/noah-isme/campus-records/pkg/errors"
)

// CreateStudentRequest holds payload for registering students.
type CreateStudentRequest struct {
	ID             string    `json:"id" validate:"required,record_id"`
	FirstName      string    `json:"first_name" validate:"required"`
	LastName       string    `json:"last_name" validate:"required"`
	Email          string    `json:"email" validate:"required,email"`
	Phone          string    `json:"phone"`
	Address        string    `json:"address"`
	DateOfBirth    time.Time `json:"date_of_birth"`
	EnrollmentDate time.Time `json:"enrollment_date"`
}

// UpdateStudentRequest holds payload for updating students. Nil pointers
// keep the stored value.
type UpdateStudentRequest struct {
	FirstName      string                `json:"first_name" validate:"required"`
	LastName       string                `json:"last_name" validate:"required"`
	Email          string                `json:"email" validate:"required,email"`
	Phone          string                `json:"phone"`
	Address        string                `json:"address"`
	DateOfBirth    *time.Time            `json:"date_of_birth,omitempty"`
	EnrollmentDate *time.Time            `json:"enrollment_date,omitempty"`
	Status         *models.StudentStatus `json:"status,omitempty"`
}

// StudentService handles student use-cases.
type StudentService struct {
	store     recordStore
	policy    Policy
	validator *validator.Validate
	recorder  OperationRecorder
	now       func() time.Time
}

// NewStudentService constructs the student service.
func NewStudentService(store recordStore, policy Policy, validate *validator.Validate, recorder OperationRecorder) *StudentService {
	validate = registerRecordTags(validate)
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &StudentService{store: store, policy: policy, validator: validate, recorder: recorder, now: time.Now}
}

// Create registers a new, active student.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (student *models.Student, err error) {
	defer func(start time.Time) { track(s.recorder, "student.create", start, err) }(time.Now())
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, "invalid student payload")
	}
	now := s.now()
	enrolled := req.EnrollmentDate
	if enrolled.IsZero() {
		enrolled = now
	}
	if enrolled.After(now) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "enrollment date cannot be in the future")
	}

	created := models.Student{
		ID:             strings.TrimSpace(req.ID),
		FirstName:      strings.TrimSpace(req.FirstName),
		LastName:       strings.TrimSpace(req.LastName),
		Email:          strings.TrimSpace(req.Email),
		Phone:          strings.TrimSpace(req.Phone),
		Address:        strings.TrimSpace(req.Address),
		DateOfBirth:    req.DateOfBirth,
		EnrollmentDate: enrolled,
		Status:         models.StudentStatusActive,
	}
	err = s.store.Update(ctx, func(tx *repository.Tx) error {
		if _, exists := tx.Student(created.ID); exists {
			return appErrors.Wrap(appErrors.Clonef(appErrors.ErrDuplicateKey, "student %s already exists", created.ID), appErrors.ErrValidation.Code, "student id already used")
		}
		return tx.PutStudent(created)
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// Update replaces the editable fields of a student.
func (s *StudentService) Update(ctx context.Context, id string, req UpdateStudentRequest) (student *models.Student, err error) {
	defer func(start time.Time) { track(s.recorder, "student.update", start, err) }(time.Now())
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, "invalid student payload")
	}
	if req.Status != nil && !req.Status.Valid() {
		return nil, appErrors.Clonef(appErrors.ErrValidation, "invalid student status %q", *req.Status)
	}
	if req.EnrollmentDate != nil && req.EnrollmentDate.After(s.now()) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "enrollment date cannot be in the future")
	}

	var updated models.Student
	err = s.store.Update(ctx, func(tx *repository.Tx) error {
		existing, ok := tx.Student(id)
		if !ok {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		updated = existing.Clone()
		updated.FirstName = strings.TrimSpace(req.FirstName)
		updated.LastName = strings.TrimSpace(req.LastName)
		updated.Email = strings.TrimSpace(req.Email)
		updated.Phone = strings.TrimSpace(req.Phone)
		updated.Address = strings.TrimSpace(req.Address)
		if req.DateOfBirth != nil {
			updated.DateOfBirth = *req.DateOfBirth
		}
		if req.EnrollmentDate != nil {
			updated.EnrollmentDate = *req.EnrollmentDate
		}
		if req.Status != nil {
			updated.Status = *req.Status
		}
		return tx.PutStudent(updated)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// SetStatus moves a student to the given status.
func (s *StudentService) SetStatus(ctx context.Context, id string, status models.StudentStatus) (student *models.Student, err error) {
	defer func(start time.Time) { track(s.recorder, "student.status", start, err) }(time.Now())
	if !status.Valid() {
		return nil, appErrors.Clonef(appErrors.ErrValidation, "invalid student status %q", status)
	}
	return s.transition(ctx, id, status)
}

// Deactivate marks a student inactive. Deactivating an inactive student is
// not an error.
func (s *StudentService) Deactivate(ctx context.Context, id string) (student *models.Student, err error) {
	defer func(start time.Time) { track(s.recorder, "student.deactivate", start, err) }(time.Now())
	return s.transition(ctx, id, models.StudentStatusInactive)
}

func (s *StudentService) transition(ctx context.Context, id string, status models.StudentStatus) (*models.Student, error) {
	var updated models.Student
	err := s.store.Update(ctx, func(tx *repository.Tx) error {
		existing, ok := tx.Student(id)
		if !ok {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		existing.Status = status
		updated = existing
		return tx.PutStudent(existing)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// Get returns a student by identifier.
func (s *StudentService) Get(ctx context.Context, id string) (student *models.Student, err error) {
	defer func(start time.Time) { track(s.recorder, "student.get", start, err) }(time.Now())
	err = s.store.View(ctx, func(tx *repository.Tx) error {
		found, ok := tx.Student(id)
		if !ok {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		student = &found
		return nil
	})
	return student, err
}

// List returns every student ordered by last name, first name and ID.
func (s *StudentService) List(ctx context.Context) ([]models.Student, error) {
	return s.query(ctx, "student.list", func(models.Student) bool { return true })
}

// SearchByName matches term against first, last and full name, ignoring case.
func (s *StudentService) SearchByName(ctx context.Context, term string) ([]models.Student, error) {
	return s.query(ctx, "student.search", func(st models.Student) bool {
		return containsFold(st.FirstName, term) || containsFold(st.LastName, term) || containsFold(st.FullName(), term)
	})
}

// ListByStatus returns students in the given status.
func (s *StudentService) ListByStatus(ctx context.Context, status models.StudentStatus) ([]models.Student, error) {
	if !status.Valid() {
		return nil, appErrors.Clonef(appErrors.ErrValidation, "invalid student status %q", status)
	}
	return s.query(ctx, "student.by_status", func(st models.Student) bool { return st.Status == status })
}

// ListByGPARange returns students whose current GPA lies in [min, max].
func (s *StudentService) ListByGPARange(ctx context.Context, min, max float64) (students []models.Student, err error) {
	defer func(start time.Time) { track(s.recorder, "student.by_gpa", start, err) }(time.Now())
	if min > max || min < s.policy.MinGPA || max > s.policy.MaxGPA {
		return nil, appErrors.Clonef(appErrors.ErrValidation, "gpa range must lie within %.1f and %.1f", s.policy.MinGPA, s.policy.MaxGPA)
	}
	now := s.now()
	err = s.store.View(ctx, func(tx *repository.Tx) error {
		students = make([]models.Student, 0)
		for _, st := range tx.Students() {
			gpa := currentGPA(tx, s.policy, now, st.ID)
			if gpa >= min && gpa <= max {
				students = append(students, st)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortStudents(students)
	return students, nil
}

func (s *StudentService) query(ctx context.Context, operation string, match func(models.Student) bool) (students []models.Student, err error) {
	defer func(start time.Time) { track(s.recorder, operation, start, err) }(time.Now())
	err = s.store.View(ctx, func(tx *repository.Tx) error {
		students = make([]models.Student, 0)
		for _, st := range tx.Students() {
			if match(st) {
				students = append(students, st)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortStudents(students)
	return students, nil
}

// Statistics aggregates counts, average current GPA and credits earned.
func (s *StudentService) Statistics(ctx context.Context) (stats models.StudentStatistics, err error) {
	defer func(start time.Time) { track(s.recorder, "student.statistics", start, err) }(time.Now())
	now := s.now()
	err = s.store.View(ctx, func(tx *repository.Tx) error {
		stats = studentStatistics(tx, s.policy, now)
		return nil
	})
	return stats, err
}

func studentStatistics(tx *repository.Tx, policy Policy, now time.Time) models.StudentStatistics {
	stats := models.StudentStatistics{ByStatus: make(map[models.StudentStatus]int)}
	var gpaSum float64
	for _, st := range tx.Students() {
		stats.Total++
		stats.ByStatus[st.Status]++
		switch st.Status {
		case models.StudentStatusActive:
			stats.Active++
		case models.StudentStatusGraduated:
			stats.Graduated++
		}
		enrollments := studentEnrollments(tx, st.ID)
		gpaSum += computeGPA(inSemester(enrollments, currentSemester(policy, now, enrollments)))
		stats.TotalCreditsEarned += creditsEarned(enrollments)
	}
	if stats.Total > 0 {
		stats.AverageGPA = gpaSum / float64(stats.Total)
	}
	return stats
}
