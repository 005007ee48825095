package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-records/internal/models"
	"github.com/noah-isme/campus-records/internal/repository"
	"github.com/noah-isme/campus-records/pkg/config"
	appErrors "github.com/noah-isme/campus-records/pkg/errors"
)

var (
	testNow    = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	fall2023   = models.NewSemester(2023, models.SeasonFall)
	spring2024 = models.NewSemester(2024, models.SeasonSpring)
)

type recordedOperation struct {
	name string
	err  error
}

type fakeRecorder struct {
	mu  sync.Mutex
	ops []recordedOperation
}

func (f *fakeRecorder) RecordOperation(operation string, err error, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, recordedOperation{name: operation, err: err})
}

func (f *fakeRecorder) last() recordedOperation {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.ops) == 0 {
		return recordedOperation{}
	}
	return f.ops[len(f.ops)-1]
}

type testEngine struct {
	store       *repository.Store
	recorder    *fakeRecorder
	students    *StudentService
	courses     *CourseService
	enrollments *EnrollmentService
	reports     *ReportService
}

func newTestEngine(t *testing.T) *testEngine {
	t.Helper()
	return newTestEngineWithPolicy(t, DefaultPolicy(), nil)
}

func newTestEngineWithPolicy(t *testing.T, policy Policy, cache *CacheService) *testEngine {
	t.Helper()
	store := repository.NewStore()
	recorder := &fakeRecorder{}
	validate := NewValidator()
	clock := func() time.Time { return testNow }

	e := &testEngine{
		store:       store,
		recorder:    recorder,
		students:    NewStudentService(store, policy, validate, recorder),
		courses:     NewCourseService(store, policy, validate, recorder),
		enrollments: NewEnrollmentService(store, policy, validate, recorder),
		reports:     NewReportService(store, policy, cache, recorder),
	}
	e.students.now = clock
	e.enrollments.now = clock
	e.reports.now = clock
	return e
}

func (e *testEngine) addStudent(t *testing.T, id, first, last string) *models.Student {
	t.Helper()
	student, err := e.students.Create(context.Background(), CreateStudentRequest{
		ID:             id,
		FirstName:      first,
		LastName:       last,
		Email:          id + "@campus.edu",
		EnrollmentDate: time.Date(2023, 9, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return student
}

func (e *testEngine) addCourse(t *testing.T, code string, credits int, prereqs ...string) *models.Course {
	t.Helper()
	course, err := e.courses.Create(context.Background(), CreateCourseRequest{
		Code:          code,
		Name:          code + " course",
		Credits:       credits,
		Department:    "Computer Science",
		Instructor:    "Dr. Smith",
		Prerequisites: prereqs,
	})
	require.NoError(t, err)
	return course
}

func (e *testEngine) enroll(t *testing.T, studentID, code string, semester models.Semester) *models.Enrollment {
	t.Helper()
	enrollment, err := e.enrollments.Enroll(context.Background(), EnrollRequest{StudentID: studentID, CourseCode: code, Semester: semester})
	require.NoError(t, err)
	return enrollment
}

func (e *testEngine) grade(t *testing.T, id string, grade models.Grade) *models.Enrollment {
	t.Helper()
	enrollment, err := e.enrollments.RecordGrade(context.Background(), id, grade, "")
	require.NoError(t, err)
	return enrollment
}

func graded(code string, credits int, semester models.Semester, grade models.Grade) models.Enrollment {
	return models.Enrollment{
		ID:       models.EnrollmentID("ST1", code, semester),
		Student:  models.Student{ID: "ST1"},
		Course:   models.Course{Code: code, Credits: credits},
		Semester: semester,
		Grade:    grade,
		Status:   models.EnrollmentStatusCompleted,
	}
}

func TestComputeGPA(t *testing.T) {
	enrollments := []models.Enrollment{
		graded("CS101", 3, spring2024, models.GradeA),
		graded("MATH101", 4, spring2024, models.GradeBPlus),
		graded("ART100", 2, spring2024, models.GradePass),
		graded("HIST100", 3, spring2024, models.GradeWithdrawal),
		{Course: models.Course{Code: "BIO101", Credits: 4}, Semester: spring2024, Status: models.EnrollmentStatusActive},
	}

	assert.InDelta(t, (4.0*3+3.3*4)/7, computeGPA(enrollments), 1e-9)
	assert.Equal(t, 0.0, computeGPA(nil))
	assert.Equal(t, 0.0, computeGPA(enrollments[2:]))
}

func TestCreditsEarnedAndPassedCodes(t *testing.T) {
	enrollments := []models.Enrollment{
		graded("CS101", 3, fall2023, models.GradeC),
		graded("CS102", 3, fall2023, models.GradeF),
		graded("ART100", 2, spring2024, models.GradePass),
		graded("CS101", 3, spring2024, models.GradeB),
	}

	assert.Equal(t, 8, creditsEarned(enrollments))
	assert.Equal(t, []string{"ART100", "CS101"}, passedCourseCodes(enrollments))
}

func TestCurrentSemesterModes(t *testing.T) {
	enrollments := []models.Enrollment{graded("CS101", 3, fall2023, models.GradeA)}

	calendar := DefaultPolicy()
	assert.Equal(t, spring2024, currentSemester(calendar, testNow, enrollments))

	latest := DefaultPolicy()
	latest.GPASemester = config.GPASemesterLatest
	assert.Equal(t, fall2023, currentSemester(latest, testNow, enrollments))
	assert.Equal(t, spring2024, currentSemester(latest, testNow, nil))
}

func TestLinkRecordsRebuildsIndexAndHistory(t *testing.T) {
	students := []models.Student{
		{ID: "ST1", FirstName: "Ada", LastName: "Lovelace", EnrollmentIDs: []string{"stale"}},
		{ID: "ST2", FirstName: "Alan", LastName: "Turing"},
	}
	courses := []models.Course{{Code: "CS101", Credits: 3}, {Code: "MATH101", Credits: 4}}
	records := []models.EnrollmentRecord{
		{ID: models.EnrollmentID("ST1", "CS101", fall2023), StudentID: "ST1", CourseCode: "CS101", Semester: fall2023, Grade: models.GradeA, Status: models.EnrollmentStatusCompleted},
		{ID: models.EnrollmentID("ST1", "MATH101", spring2024), StudentID: "ST1", CourseCode: "MATH101", Semester: spring2024, Status: models.EnrollmentStatusActive},
	}

	snapshot, err := linkRecords(students, courses, records)
	require.NoError(t, err)
	require.Len(t, snapshot.Enrollments, 2)
	assert.Equal(t, []string{"ST1_CS101_FALL_2023", "ST1_MATH101_SPRING_2024"}, snapshot.Students[0].EnrollmentIDs)
	assert.Equal(t, map[string]float64{"FALL 2023": 4.0}, snapshot.Students[0].GPAHistory)
	assert.Nil(t, snapshot.Students[1].EnrollmentIDs)
	assert.Equal(t, 4, snapshot.Enrollments[1].Course.Credits)
	assert.Equal(t, snapshot.Students[0].EnrollmentIDs, snapshot.Enrollments[0].Student.EnrollmentIDs)
}

func TestLinkRecordsRejectsBrokenData(t *testing.T) {
	students := []models.Student{{ID: "ST1"}}
	courses := []models.Course{{Code: "CS101", Credits: 3}}

	cases := map[string]models.EnrollmentRecord{
		"unknown student": {ID: models.EnrollmentID("ST9", "CS101", fall2023), StudentID: "ST9", CourseCode: "CS101", Semester: fall2023},
		"unknown course":  {ID: models.EnrollmentID("ST1", "CS999", fall2023), StudentID: "ST1", CourseCode: "CS999", Semester: fall2023},
		"mismatched id":   {ID: "E-1", StudentID: "ST1", CourseCode: "CS101", Semester: fall2023},
	}
	for name, record := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := linkRecords(students, courses, []models.EnrollmentRecord{record})
			require.Error(t, err)
			assert.True(t, errors.Is(err, appErrors.ErrValidation))
		})
	}
}
