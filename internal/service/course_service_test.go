package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-records/internal/models"
	appErrors "github.com/noah-isme/campus-records/pkg/errors"
)

func TestCourseServiceCreateCreditBounds(t *testing.T) {
	e := newTestEngine(t)

	for credits := -1; credits <= 8; credits++ {
		_, err := e.courses.Create(context.Background(), CreateCourseRequest{
			Code:       fmt.Sprintf("CS1%02d", credits+1),
			Name:       "Course",
			Credits:    credits,
			Department: "Computer Science",
			Instructor: "Dr. Smith",
		})
		if credits >= 1 && credits <= 6 {
			assert.NoError(t, err, "credits %d", credits)
			continue
		}
		require.Error(t, err, "credits %d", credits)
		assert.True(t, errors.Is(err, appErrors.ErrValidation), "credits %d", credits)
	}
}

func TestCourseServiceCreateRules(t *testing.T) {
	e := newTestEngine(t)
	course := e.addCourse(t, "CS201", 4, "MATH101", "CS101", "CS101")
	assert.Equal(t, []string{"CS101", "MATH101"}, course.Prerequisites)
	assert.Equal(t, models.CourseStatusActive, course.Status)

	_, err := e.courses.Create(context.Background(), CreateCourseRequest{Code: "CS201", Name: "Again", Credits: 3, Department: "CS", Instructor: "X"})
	assert.True(t, errors.Is(err, appErrors.ErrDuplicateKey))

	_, err = e.courses.Create(context.Background(), CreateCourseRequest{Code: "CS301", Name: "Loop", Credits: 3, Department: "CS", Instructor: "X", Prerequisites: []string{"CS301"}})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = e.courses.Create(context.Background(), CreateCourseRequest{Code: "CS302", Credits: 3, Department: "CS", Instructor: "X"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestCourseServiceUpdate(t *testing.T) {
	e := newTestEngine(t)
	e.addCourse(t, "CS201", 4, "CS101")
	_, err := e.courses.SetStatus(context.Background(), "CS201", models.CourseStatusFull)
	require.NoError(t, err)

	updated, err := e.courses.Update(context.Background(), "CS201", UpdateCourseRequest{
		Name:       "Data Structures",
		Credits:    3,
		Department: "Computer Science",
		Instructor: "Dr. Jones",
	})
	require.NoError(t, err)
	assert.Equal(t, models.CourseStatusFull, updated.Status)
	assert.Equal(t, []string{"CS101"}, updated.Prerequisites)
	assert.Equal(t, 3, updated.Credits)

	none := []string{}
	updated, err = e.courses.Update(context.Background(), "CS201", UpdateCourseRequest{
		Name:          "Data Structures",
		Credits:       3,
		Department:    "Computer Science",
		Instructor:    "Dr. Jones",
		Prerequisites: &none,
	})
	require.NoError(t, err)
	assert.Nil(t, updated.Prerequisites)

	_, err = e.courses.Update(context.Background(), "CS201", UpdateCourseRequest{Name: "X", Credits: 9, Department: "CS", Instructor: "X"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = e.courses.Update(context.Background(), "NOPE1", UpdateCourseRequest{Name: "X", Credits: 3, Department: "CS", Instructor: "X"})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestCourseServiceDeactivateIsIdempotent(t *testing.T) {
	e := newTestEngine(t)
	e.addCourse(t, "CS101", 3)
	for i := 0; i < 2; i++ {
		course, err := e.courses.Deactivate(context.Background(), "CS101")
		require.NoError(t, err)
		assert.Equal(t, models.CourseStatusInactive, course.Status)
	}
	available, err := e.courses.ListAvailable(context.Background())
	require.NoError(t, err)
	assert.Empty(t, available)
}

func TestCourseServiceQueries(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	for _, req := range []CreateCourseRequest{
		{Code: "MATH201", Name: "Linear Algebra", Credits: 4, Department: "Mathematics", Instructor: "Dr. Noether"},
		{Code: "CS101", Name: "Introduction to Programming", Description: "First steps with ALGORITHMS", Credits: 3, Department: "Computer Science", Instructor: "Dr. Smith"},
		{Code: "CS550", Name: "Distributed Systems", Credits: 5, Department: "Computer Science", Instructor: "dr. smith"},
	} {
		_, err := e.courses.Create(ctx, req)
		require.NoError(t, err)
	}

	all, err := e.courses.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"CS101", "CS550", "MATH201"}, courseCodes(all))

	found, err := e.courses.SearchByName(ctx, "algorithms")
	require.NoError(t, err)
	assert.Equal(t, []string{"CS101"}, courseCodes(found))

	found, err = e.courses.SearchByName(ctx, "SYSTEMS")
	require.NoError(t, err)
	assert.Equal(t, []string{"CS550"}, courseCodes(found))

	byDept, err := e.courses.ListByDepartment(ctx, "computer science")
	require.NoError(t, err)
	assert.Equal(t, []string{"CS101", "CS550"}, courseCodes(byDept))

	byInstructor, err := e.courses.ListByInstructor(ctx, "DR. SMITH")
	require.NoError(t, err)
	assert.Equal(t, []string{"CS101", "CS550"}, courseCodes(byInstructor))

	byCredits, err := e.courses.ListByCreditRange(ctx, 4, 6)
	require.NoError(t, err)
	assert.Equal(t, []string{"CS550", "MATH201"}, courseCodes(byCredits))

	graduate, err := e.courses.ListByLevel(ctx, models.CourseLevelGraduate)
	require.NoError(t, err)
	assert.Equal(t, []string{"CS550"}, courseCodes(graduate))

	_, err = e.courses.ListByCreditRange(ctx, 5, 1)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestCourseServicePrerequisites(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	e.addCourse(t, "CS101", 3)
	e.addCourse(t, "MATH101", 4)
	e.addCourse(t, "CS201", 4, "CS101", "MATH101")
	e.addCourse(t, "CS301", 4, "CS999")

	prereqs, err := e.courses.Prerequisites(ctx, "CS201")
	require.NoError(t, err)
	assert.Equal(t, []string{"CS101", "MATH101"}, courseCodes(prereqs))

	_, err = e.courses.Prerequisites(ctx, "CS301")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	ok, err := e.courses.MeetsPrerequisites(ctx, "CS201", []string{"CS101"})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = e.courses.MeetsPrerequisites(ctx, "CS201", []string{"MATH101", "CS101", "ART100"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.courses.MeetsPrerequisites(ctx, "CS101", nil)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCourseServiceStatistics(t *testing.T) {
	e := newTestEngine(t)
	e.addCourse(t, "CS101", 3)
	e.addCourse(t, "CS550", 5)
	_, err := e.courses.Deactivate(context.Background(), "CS550")
	require.NoError(t, err)

	stats, err := e.courses.Statistics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Active)
	assert.Equal(t, 2, stats.ByDepartment["Computer Science"])
	assert.Equal(t, 1, stats.ByLevel[models.CourseLevelGraduate])
	assert.InDelta(t, 4.0, stats.AverageCredits, 1e-9)
}

func courseCodes(courses []models.Course) []string {
	codes := make([]string, 0, len(courses))
	for _, c := range courses {
		codes = append(codes, c.Code)
	}
	return codes
}
