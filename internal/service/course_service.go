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

// CreateCourseRequest holds payload for creating courses.
type CreateCourseRequest struct {
	Code          string            `json:"code" validate:"required,record_id"`
	Name          string            `json:"name" validate:"required"`
	Description   string            `json:"description"`
	Credits       int               `json:"credits"`
	Department    string            `json:"department" validate:"required"`
	Instructor    string            `json:"instructor" validate:"required"`
	Prerequisites []string          `json:"prerequisites" validate:"dive,required,record_id"`
	Schedule      map[string]string `json:"schedule"`
}

// UpdateCourseRequest holds payload for updating courses. A nil Status or
// Prerequisites keeps the stored value.
type UpdateCourseRequest struct {
	Name          string               `json:"name" validate:"required"`
	Description   string               `json:"description"`
	Credits       int                  `json:"credits"`
	Department    string               `json:"department" validate:"required"`
	Instructor    string               `json:"instructor" validate:"required"`
	Prerequisites *[]string            `json:"prerequisites,omitempty"`
	Status        *models.CourseStatus `json:"status,omitempty"`
}

// CourseService handles course catalogue use-cases.
type CourseService struct {
	store     recordStore
	policy    Policy
	validator *validator.Validate
	recorder  OperationRecorder
}

// NewCourseService constructs the course service.
func NewCourseService(store recordStore, policy Policy, validate *validator.Validate, recorder OperationRecorder) *CourseService {
	validate = registerRecordTags(validate)
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &CourseService{store: store, policy: policy, validator: validate, recorder: recorder}
}

// Create adds a new, active course to the catalogue.
func (s *CourseService) Create(ctx context.Context, req CreateCourseRequest) (course *models.Course, err error) {
	defer func(start time.Time) { track(s.recorder, "course.create", start, err) }(time.Now())
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, "invalid course payload")
	}
	code := strings.TrimSpace(req.Code)
	prereqs, err := s.checkCourseFields(code, req.Credits, req.Prerequisites)
	if err != nil {
		return nil, err
	}
	created := models.Course{
		Code:          code,
		Name:          strings.TrimSpace(req.Name),
		Description:   strings.TrimSpace(req.Description),
		Credits:       req.Credits,
		Department:    strings.TrimSpace(req.Department),
		Instructor:    strings.TrimSpace(req.Instructor),
		Status:        models.CourseStatusActive,
		Prerequisites: prereqs,
		Schedule:      req.Schedule,
	}
	err = s.store.Update(ctx, func(tx *repository.Tx) error {
		if _, exists := tx.Course(code); exists {
			return appErrors.Clonef(appErrors.ErrDuplicateKey, "course %s already exists", code)
		}
		return tx.PutCourse(created)
	})
	if err != nil {
		return nil, err
	}
	created = created.Clone()
	return &created, nil
}

// Update replaces the editable fields of a course.
func (s *CourseService) Update(ctx context.Context, code string, req UpdateCourseRequest) (course *models.Course, err error) {
	defer func(start time.Time) { track(s.recorder, "course.update", start, err) }(time.Now())
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, "invalid course payload")
	}
	if req.Status != nil && !req.Status.Valid() {
		return nil, appErrors.Clonef(appErrors.ErrValidation, "invalid course status %q", *req.Status)
	}

	var updated models.Course
	err = s.store.Update(ctx, func(tx *repository.Tx) error {
		existing, ok := tx.Course(code)
		if !ok {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		requested := existing.Prerequisites
		if req.Prerequisites != nil {
			requested = *req.Prerequisites
		}
		prereqs, err := s.checkCourseFields(code, req.Credits, requested)
		if err != nil {
			return err
		}
		updated = existing
		updated.Name = strings.TrimSpace(req.Name)
		updated.Description = strings.TrimSpace(req.Description)
		updated.Credits = req.Credits
		updated.Department = strings.TrimSpace(req.Department)
		updated.Instructor = strings.TrimSpace(req.Instructor)
		updated.Prerequisites = prereqs
		if req.Status != nil {
			updated.Status = *req.Status
		}
		return tx.PutCourse(updated)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *CourseService) checkCourseFields(code string, credits int, prerequisites []string) ([]string, error) {
	if credits < s.policy.MinCourseCredits || credits > s.policy.MaxCourseCredits {
		return nil, appErrors.Clonef(appErrors.ErrValidation, "credits must be between %d and %d", s.policy.MinCourseCredits, s.policy.MaxCourseCredits)
	}
	trimmed := make([]string, 0, len(prerequisites))
	for _, p := range prerequisites {
		trimmed = append(trimmed, strings.TrimSpace(p))
	}
	prereqs := models.NormalizePrerequisites(trimmed)
	for _, p := range prereqs {
		if p == code {
			return nil, appErrors.Clonef(appErrors.ErrValidation, "course %s cannot require itself", code)
		}
	}
	if len(prereqs) == 0 {
		return nil, nil
	}
	return prereqs, nil
}

// Get returns a course by code.
func (s *CourseService) Get(ctx context.Context, code string) (course *models.Course, err error) {
	defer func(start time.Time) { track(s.recorder, "course.get", start, err) }(time.Now())
	err = s.store.View(ctx, func(tx *repository.Tx) error {
		found, ok := tx.Course(code)
		if !ok {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		course = &found
		return nil
	})
	return course, err
}

// Deactivate marks a course inactive. Deactivating twice is not an error.
func (s *CourseService) Deactivate(ctx context.Context, code string) (*models.Course, error) {
	return s.setStatus(ctx, "course.deactivate", code, models.CourseStatusInactive)
}

// SetStatus moves a course to the given status.
func (s *CourseService) SetStatus(ctx context.Context, code string, status models.CourseStatus) (*models.Course, error) {
	return s.setStatus(ctx, "course.status", code, status)
}

func (s *CourseService) setStatus(ctx context.Context, operation, code string, status models.CourseStatus) (course *models.Course, err error) {
	defer func(start time.Time) { track(s.recorder, operation, start, err) }(time.Now())
	if !status.Valid() {
		return nil, appErrors.Clonef(appErrors.ErrValidation, "invalid course status %q", status)
	}
	var updated models.Course
	err = s.store.Update(ctx, func(tx *repository.Tx) error {
		existing, ok := tx.Course(code)
		if !ok {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		existing.Status = status
		updated = existing
		return tx.PutCourse(existing)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// List returns every course ordered by code.
func (s *CourseService) List(ctx context.Context) ([]models.Course, error) {
	return s.query(ctx, "course.list", func(models.Course) bool { return true })
}

// SearchByName matches term against name and description, ignoring case.
func (s *CourseService) SearchByName(ctx context.Context, term string) ([]models.Course, error) {
	return s.query(ctx, "course.search", func(c models.Course) bool {
		return containsFold(c.Name, term) || containsFold(c.Description, term)
	})
}

// ListByDepartment returns the courses of a department, ignoring case.
func (s *CourseService) ListByDepartment(ctx context.Context, department string) ([]models.Course, error) {
	return s.query(ctx, "course.by_department", func(c models.Course) bool { return equalFold(c.Department, department) })
}

// ListByInstructor returns the courses taught by an instructor, ignoring case.
func (s *CourseService) ListByInstructor(ctx context.Context, instructor string) ([]models.Course, error) {
	return s.query(ctx, "course.by_instructor", func(c models.Course) bool { return equalFold(c.Instructor, instructor) })
}

// ListByCreditRange returns courses worth between min and max credits.
func (s *CourseService) ListByCreditRange(ctx context.Context, min, max int) ([]models.Course, error) {
	if min > max {
		return nil, appErrors.Clone(appErrors.ErrValidation, "minimum credits exceed maximum")
	}
	return s.query(ctx, "course.by_credits", func(c models.Course) bool { return c.Credits >= min && c.Credits <= max })
}

// ListByLevel returns courses of the given academic level.
func (s *CourseService) ListByLevel(ctx context.Context, level models.CourseLevel) ([]models.Course, error) {
	if !level.Valid() {
		return nil, appErrors.Clonef(appErrors.ErrValidation, "invalid course level %q", level)
	}
	return s.query(ctx, "course.by_level", func(c models.Course) bool { return c.Level() == level })
}

// ListAvailable returns courses open for enrollment.
func (s *CourseService) ListAvailable(ctx context.Context) ([]models.Course, error) {
	return s.query(ctx, "course.available", models.Course.AcceptsEnrollment)
}

func (s *CourseService) query(ctx context.Context, operation string, match func(models.Course) bool) (courses []models.Course, err error) {
	defer func(start time.Time) { track(s.recorder, operation, start, err) }(time.Now())
	err = s.store.View(ctx, func(tx *repository.Tx) error {
		courses = make([]models.Course, 0)
		for _, c := range tx.Courses() {
			if match(c) {
				courses = append(courses, c)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortCourses(courses)
	return courses, nil
}

// Prerequisites resolves the prerequisite courses of code.
func (s *CourseService) Prerequisites(ctx context.Context, code string) (courses []models.Course, err error) {
	defer func(start time.Time) { track(s.recorder, "course.prerequisites", start, err) }(time.Now())
	err = s.store.View(ctx, func(tx *repository.Tx) error {
		course, ok := tx.Course(code)
		if !ok {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		courses = make([]models.Course, 0, len(course.Prerequisites))
		for _, p := range course.Prerequisites {
			prereq, ok := tx.Course(p)
			if !ok {
				return appErrors.Clonef(appErrors.ErrNotFound, "prerequisite %s of %s not found", p, code)
			}
			courses = append(courses, prereq)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return courses, nil
}

// MeetsPrerequisites reports whether completed covers the prerequisites of code.
func (s *CourseService) MeetsPrerequisites(ctx context.Context, code string, completed []string) (ok bool, err error) {
	course, err := s.Get(ctx, code)
	if err != nil {
		return false, err
	}
	return course.MeetsPrerequisites(completed), nil
}

// Statistics aggregates catalogue figures.
func (s *CourseService) Statistics(ctx context.Context) (stats models.CourseStatistics, err error) {
	defer func(start time.Time) { track(s.recorder, "course.statistics", start, err) }(time.Now())
	err = s.store.View(ctx, func(tx *repository.Tx) error {
		stats = courseStatistics(tx.Courses())
		return nil
	})
	return stats, err
}

func courseStatistics(courses []models.Course) models.CourseStatistics {
	stats := models.CourseStatistics{
		ByDepartment: make(map[string]int),
		ByLevel:      make(map[models.CourseLevel]int),
	}
	credits := 0
	for _, c := range courses {
		stats.Total++
		if c.Status == models.CourseStatusActive {
			stats.Active++
		}
		stats.ByDepartment[c.Department]++
		stats.ByLevel[c.Level()]++
		credits += c.Credits
	}
	if stats.Total > 0 {
		stats.AverageCredits = float64(credits) / float64(stats.Total)
	}
	return stats
}
