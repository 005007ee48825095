package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-records/internal/models"
	appErrors "github.com/noah-isme/campus-records/pkg/errors"
)

// seedTranscript gives ST1 two graded terms and one open enrollment.
func seedTranscript(t *testing.T, e *testEngine) {
	t.Helper()
	e.addStudent(t, "ST1", "Ada", "Lovelace")
	e.addCourse(t, "CS101", 3)
	e.addCourse(t, "MATH101", 4)
	e.addCourse(t, "CS201", 4, "CS101")
	e.addCourse(t, "ART100", 2)
	e.grade(t, e.enroll(t, "ST1", "MATH101", fall2023).ID, models.GradeB)
	e.grade(t, e.enroll(t, "ST1", "CS101", fall2023).ID, models.GradeA)
	e.grade(t, e.enroll(t, "ST1", "ART100", spring2024).ID, models.GradePass)
	e.enroll(t, "ST1", "CS201", spring2024)
}

func TestReportServiceTranscript(t *testing.T) {
	e := newTestEngine(t)
	seedTranscript(t, e)

	transcript, err := e.reports.Transcript(context.Background(), "ST1")
	require.NoError(t, err)
	require.Len(t, transcript.Terms, 2)

	fall := transcript.Terms[0]
	assert.Equal(t, fall2023, fall.Semester)
	assert.Equal(t, "CS101", fall.Lines[0].CourseCode)
	assert.Equal(t, "MATH101", fall.Lines[1].CourseCode)
	assert.InDelta(t, (4.0*3+3.0*4)/7, fall.GPA, 1e-9)
	assert.Equal(t, 7, fall.CreditsEarned)
	assert.InDelta(t, 12.0, fall.Lines[0].QualityPoints, 1e-9)

	spring := transcript.Terms[1]
	assert.Equal(t, 0.0, spring.GPA)
	assert.Equal(t, 2, spring.CreditsEarned)
	assert.Equal(t, models.EnrollmentStatusActive, spring.Lines[1].Status)

	assert.InDelta(t, fall.GPA, transcript.CumulativeGPA, 1e-9)
	assert.Equal(t, 9, transcript.TotalCreditsEarned)
	assert.Equal(t, testNow, transcript.GeneratedAt)

	_, err = e.reports.Transcript(context.Background(), "ST9")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestRenderTranscript(t *testing.T) {
	e := newTestEngine(t)
	seedTranscript(t, e)
	transcript, err := e.reports.Transcript(context.Background(), "ST1")
	require.NoError(t, err)

	text := RenderTranscript(transcript)
	assert.True(t, strings.HasPrefix(text, strings.Repeat("=", 60)+"\nOFFICIAL TRANSCRIPT\n"))
	assert.Contains(t, text, "Student: Ada Lovelace\n")
	assert.Contains(t, text, "Enrollment Date: 2023-09-01\n")
	assert.Contains(t, text, "Fall 2023\n"+strings.Repeat("-", 40)+"\n")
	assert.Contains(t, text, "Semester GPA: 3.43  Credits earned: 7\n")
	assert.Contains(t, text, "Overall GPA: 3.43\n")
	assert.Contains(t, text, "Total Credits Earned: 9\n")
	assert.Less(t, strings.Index(text, "Fall 2023"), strings.Index(text, "Spring 2024"))

	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, "CS201") {
			fields := strings.Fields(line)
			assert.Equal(t, "-", fields[len(fields)-2])
		}
	}
}

func TestReportServiceTranscriptCache(t *testing.T) {
	cacheRepo := &stubCacheRepo{}
	cache := NewCacheService(cacheRepo, nil, time.Minute, zap.NewNop(), true)
	e := newTestEngineWithPolicy(t, DefaultPolicy(), cache)
	seedTranscript(t, e)
	ctx := context.Background()

	first, err := e.reports.Transcript(ctx, "ST1")
	require.NoError(t, err)
	key := VersionedKey(transcriptCacheKind, e.reports.epoch, e.store.Version(), "ST1")
	require.Contains(t, cacheRepo.store, key)

	cached, err := e.reports.Transcript(ctx, "ST1")
	require.NoError(t, err)
	assert.Equal(t, first.TotalCreditsEarned, cached.TotalCreditsEarned)
	assert.Equal(t, first.Terms[0].Semester, cached.Terms[0].Semester)

	// A write bumps the store version so the next read recomputes.
	e.grade(t, models.EnrollmentID("ST1", "CS201", spring2024), models.GradeA)
	fresh, err := e.reports.Transcript(ctx, "ST1")
	require.NoError(t, err)
	assert.Equal(t, 13, fresh.TotalCreditsEarned)
	assert.Len(t, cacheRepo.store, 2)
}

func TestReportServiceStatisticsCache(t *testing.T) {
	cacheRepo := &stubCacheRepo{}
	metrics := NewMetricsService(nil)
	cache := NewCacheService(cacheRepo, metrics, time.Minute, zap.NewNop(), true)
	e := newTestEngineWithPolicy(t, DefaultPolicy(), cache)
	seedTranscript(t, e)
	ctx := context.Background()

	stats, err := e.reports.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Students.Total)
	assert.Equal(t, 4, stats.Courses.Total)
	assert.Equal(t, 4, stats.Enrollments.Total)

	again, err := e.reports.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, stats.Enrollments.Total, again.Enrollments.Total)
	assert.Equal(t, uint64(1), metrics.Snapshot().CacheHits)
}

func TestReportServiceStatisticsWithoutCache(t *testing.T) {
	e := newTestEngine(t)
	stats, err := e.reports.Statistics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Students.Total)
	assert.Equal(t, 0.0, stats.Enrollments.AverageGradePoints)
}

func TestReportServiceTopStudentsByGPA(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	e.addStudent(t, "ST1", "Ada", "Lovelace")
	e.addStudent(t, "ST2", "Alan", "Turing")
	e.addStudent(t, "ST3", "Anita", "Borg")
	e.addCourse(t, "CS101", 3)
	e.grade(t, e.enroll(t, "ST1", "CS101", spring2024).ID, models.GradeB)
	e.grade(t, e.enroll(t, "ST2", "CS101", spring2024).ID, models.GradeA)

	top, err := e.reports.TopStudentsByGPA(ctx, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "ST2", top[0].Student.ID)
	assert.Equal(t, "ST1", top[1].Student.ID)
	assert.InDelta(t, 3.0, top[1].GPA, 1e-9)

	all, err := e.reports.TopStudentsByGPA(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, "ST3", all[2].Student.ID)
}

func TestReportServiceCourseRoster(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	e.addStudent(t, "ST1", "Ada", "Lovelace")
	e.addStudent(t, "ST2", "Alan", "Turing")
	e.addCourse(t, "CS101", 3)
	e.grade(t, e.enroll(t, "ST2", "CS101", fall2023).ID, models.GradeC)
	e.enroll(t, "ST1", "CS101", spring2024)

	roster, err := e.reports.CourseRoster(ctx, "CS101", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"ST2_CS101_FALL_2023", "ST1_CS101_SPRING_2024"}, enrollmentIDs(roster.Enrollments))
	assert.Equal(t, 1, roster.Active)
	assert.Equal(t, 1, roster.Completed)
	assert.InDelta(t, 2.0, roster.AverageGPA, 1e-9)

	spring := spring2024
	roster, err = e.reports.CourseRoster(ctx, "CS101", &spring)
	require.NoError(t, err)
	assert.Len(t, roster.Enrollments, 1)

	_, err = e.reports.CourseRoster(ctx, "CS999", nil)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestReportServiceCourseGroups(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	for _, req := range []CreateCourseRequest{
		{Code: "MATH101", Name: "Calculus", Credits: 4, Department: "Mathematics", Instructor: "Dr. Noether"},
		{Code: "CS550", Name: "Distributed Systems", Credits: 3, Department: "Computer Science", Instructor: "Dr. Lamport"},
		{Code: "CS101", Name: "Programming", Credits: 3, Department: "Computer Science", Instructor: "Dr. Smith"},
	} {
		_, err := e.courses.Create(ctx, req)
		require.NoError(t, err)
	}

	byDept, err := e.reports.CoursesByDepartment(ctx)
	require.NoError(t, err)
	require.Len(t, byDept, 2)
	assert.Equal(t, "Computer Science", byDept[0].Key)
	assert.Equal(t, []string{"CS101", "CS550"}, courseCodes(byDept[0].Courses))

	byLevel, err := e.reports.CoursesByLevel(ctx)
	require.NoError(t, err)
	require.Len(t, byLevel, 2)
	assert.Equal(t, string(models.CourseLevelGraduate), byLevel[0].Key)
	assert.Equal(t, []string{"CS101", "MATH101"}, courseCodes(byLevel[1].Courses))
}

func TestReportServiceEligibleCourses(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	e.addStudent(t, "ST1", "Ada", "Lovelace")
	e.addCourse(t, "CS101", 3)
	e.addCourse(t, "MATH101", 4)
	e.addCourse(t, "CS201", 4, "CS101")
	e.addCourse(t, "CS301", 4, "CS201", "MATH101")
	e.addCourse(t, "OLD100", 2)
	_, err := e.courses.Deactivate(ctx, "OLD100")
	require.NoError(t, err)

	open, err := e.reports.EligibleCourses(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"CS101", "MATH101"}, courseCodes(open))

	open, err = e.reports.EligibleCourses(ctx, []string{"CS101"})
	require.NoError(t, err)
	assert.Equal(t, []string{"CS101", "CS201", "MATH101"}, courseCodes(open))

	e.grade(t, e.enroll(t, "ST1", "CS101", fall2023).ID, models.GradeB)
	next, err := e.reports.EligibleCoursesForStudent(ctx, "ST1")
	require.NoError(t, err)
	assert.Equal(t, []string{"CS201", "MATH101"}, courseCodes(next))

	_, err = e.reports.EligibleCoursesForStudent(ctx, "ST9")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestReportServicePurgeCache(t *testing.T) {
	cacheRepo := &stubCacheRepo{}
	cache := NewCacheService(cacheRepo, nil, time.Minute, zap.NewNop(), true)
	e := newTestEngineWithPolicy(t, DefaultPolicy(), cache)
	seedTranscript(t, e)
	ctx := context.Background()

	_, err := e.reports.Statistics(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, cacheRepo.store)

	require.NoError(t, e.reports.PurgeCache(ctx))
	assert.Empty(t, cacheRepo.store)
	assert.ElementsMatch(t, []string{"stats:*", "transcript:*"}, cacheRepo.patterns)

	uncached := newTestEngine(t)
	assert.NoError(t, uncached.reports.PurgeCache(ctx))
}

func TestReportServiceCacheIsolatedAcrossRestarts(t *testing.T) {
	// Two engines built the same way reach the same store version, as a
	// restarted process does after its startup load.
	shared := &stubCacheRepo{}
	ctx := context.Background()
	build := func(grade models.Grade) *testEngine {
		cache := NewCacheService(shared, nil, time.Minute, zap.NewNop(), true)
		e := newTestEngineWithPolicy(t, DefaultPolicy(), cache)
		e.addStudent(t, "ST1", "Ada", "Lovelace")
		e.addCourse(t, "CS101", 3)
		e.grade(t, e.enroll(t, "ST1", "CS101", fall2023).ID, grade)
		return e
	}

	before := build(models.GradeA)
	first, err := before.reports.Transcript(ctx, "ST1")
	require.NoError(t, err)
	assert.InDelta(t, 4.0, first.CumulativeGPA, 1e-9)

	after := build(models.GradeF)
	require.Equal(t, before.store.Version(), after.store.Version())
	second, err := after.reports.Transcript(ctx, "ST1")
	require.NoError(t, err)
	assert.InDelta(t, 0.0, second.CumulativeGPA, 1e-9)
	assert.Zero(t, second.TotalCreditsEarned)
}

func TestReportServiceStatisticsKeyedBySemester(t *testing.T) {
	cacheRepo := &stubCacheRepo{}
	metrics := NewMetricsService(nil)
	cache := NewCacheService(cacheRepo, metrics, time.Minute, zap.NewNop(), true)
	e := newTestEngineWithPolicy(t, DefaultPolicy(), cache)
	seedTranscript(t, e)
	ctx := context.Background()

	_, err := e.reports.Statistics(ctx)
	require.NoError(t, err)

	e.reports.now = func() time.Time { return time.Date(2024, 9, 2, 9, 0, 0, 0, time.UTC) }
	_, err = e.reports.Statistics(ctx)
	require.NoError(t, err)
	assert.Zero(t, metrics.Snapshot().CacheHits)
	assert.Len(t, cacheRepo.store, 2)
}
