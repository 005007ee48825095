package service

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/campus-records/internal/models"
	"github.com/noah-isme/campus-records/internal/repository"
	appErrors "github.com/noah-isme/campus-records/pkg/errors"
)

const (
	statisticsCacheKind = "stats"
	transcriptCacheKind = "transcript"
)

// ReportService assembles read-only reports over the record store.
type ReportService struct {
	store    recordStore
	policy   Policy
	cache    *CacheService
	recorder OperationRecorder
	now      func() time.Time
	epoch    string
}

// NewReportService constructs the report service. cache may be nil.
func NewReportService(store recordStore, policy Policy, cache *CacheService, recorder OperationRecorder) *ReportService {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &ReportService{store: store, policy: policy, cache: cache, recorder: recorder, now: time.Now, epoch: uuid.NewString()}
}

// Statistics returns student, course and enrollment figures.
func (s *ReportService) Statistics(ctx context.Context) (stats *models.Statistics, err error) {
	defer func(start time.Time) { track(s.recorder, "report.statistics", start, err) }(time.Now())
	// Average GPA depends on the current semester, so it is part of the key.
	now := s.now()
	semester := models.SemesterForDate(now).String()
	var cached models.Statistics
	if hit, _ := s.cache.Get(ctx, VersionedKey(statisticsCacheKind, s.epoch, s.store.Version(), semester), &cached); hit {
		return &cached, nil
	}

	var version uint64
	err = s.store.View(ctx, func(tx *repository.Tx) error {
		version = tx.Version()
		stats = &models.Statistics{
			Students:    studentStatistics(tx, s.policy, now),
			Courses:     courseStatistics(tx.Courses()),
			Enrollments: enrollmentStatistics(tx.Enrollments()),
			GeneratedAt: now.UTC(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	_ = s.cache.Set(ctx, VersionedKey(statisticsCacheKind, s.epoch, version, semester), stats, 0)
	return stats, nil
}

// PurgeCache drops every cached report, including entries left by earlier
// processes.
func (s *ReportService) PurgeCache(ctx context.Context) error {
	for _, kind := range []string{statisticsCacheKind, transcriptCacheKind} {
		if err := s.cache.Invalidate(ctx, kind+":*"); err != nil {
			return err
		}
	}
	return nil
}

// CoursesByDepartment groups the catalogue by department name.
func (s *ReportService) CoursesByDepartment(ctx context.Context) ([]models.CourseGroup, error) {
	return s.groupCourses(ctx, "report.by_department", func(c models.Course) string { return c.Department })
}

// CoursesByLevel groups the catalogue by academic level.
func (s *ReportService) CoursesByLevel(ctx context.Context) ([]models.CourseGroup, error) {
	return s.groupCourses(ctx, "report.by_level", func(c models.Course) string { return string(c.Level()) })
}

func (s *ReportService) groupCourses(ctx context.Context, operation string, keyOf func(models.Course) string) (groups []models.CourseGroup, err error) {
	defer func(start time.Time) { track(s.recorder, operation, start, err) }(time.Now())
	var courses []models.Course
	err = s.store.View(ctx, func(tx *repository.Tx) error {
		courses = tx.Courses()
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortCourses(courses)
	index := make(map[string]int)
	groups = make([]models.CourseGroup, 0)
	for _, c := range courses {
		key := keyOf(c)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, models.CourseGroup{Key: key})
		}
		groups[i].Courses = append(groups[i].Courses, c)
	}
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].Key < groups[j].Key })
	return groups, nil
}

// EligibleCourses lists active courses whose prerequisites completed covers.
func (s *ReportService) EligibleCourses(ctx context.Context, completed []string) (courses []models.Course, err error) {
	defer func(start time.Time) { track(s.recorder, "report.eligible", start, err) }(time.Now())
	err = s.store.View(ctx, func(tx *repository.Tx) error {
		courses = eligibleCourses(tx.Courses(), completed, nil)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return courses, nil
}

// EligibleCoursesForStudent lists active courses the student may take next,
// leaving out the ones already passed.
func (s *ReportService) EligibleCoursesForStudent(ctx context.Context, studentID string) (courses []models.Course, err error) {
	defer func(start time.Time) { track(s.recorder, "report.eligible_student", start, err) }(time.Now())
	err = s.store.View(ctx, func(tx *repository.Tx) error {
		if _, ok := tx.Student(studentID); !ok {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		passed := passedCourseCodes(studentEnrollments(tx, studentID))
		exclude := make(map[string]struct{}, len(passed))
		for _, code := range passed {
			exclude[code] = struct{}{}
		}
		courses = eligibleCourses(tx.Courses(), passed, exclude)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return courses, nil
}

func eligibleCourses(all []models.Course, completed []string, exclude map[string]struct{}) []models.Course {
	out := make([]models.Course, 0)
	for _, c := range all {
		if _, skip := exclude[c.Code]; skip {
			continue
		}
		if c.AcceptsEnrollment() && c.MeetsPrerequisites(completed) {
			out = append(out, c)
		}
	}
	sortCourses(out)
	return out
}

// TopStudentsByGPA ranks students by current GPA, highest first. Ties keep
// store order. n <= 0 returns every student.
func (s *ReportService) TopStudentsByGPA(ctx context.Context, n int) (ranked []models.StudentGPA, err error) {
	defer func(start time.Time) { track(s.recorder, "report.top_gpa", start, err) }(time.Now())
	now := s.now()
	err = s.store.View(ctx, func(tx *repository.Tx) error {
		students := tx.Students()
		ranked = make([]models.StudentGPA, 0, len(students))
		for _, st := range students {
			ranked = append(ranked, models.StudentGPA{Student: st, GPA: currentGPA(tx, s.policy, now, st.ID)})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].GPA > ranked[j].GPA })
	if n > 0 && n < len(ranked) {
		ranked = ranked[:n]
	}
	return ranked, nil
}

// CourseRoster reports the enrollments of a course, optionally for one semester.
func (s *ReportService) CourseRoster(ctx context.Context, code string, semester *models.Semester) (roster *models.CourseRoster, err error) {
	defer func(start time.Time) { track(s.recorder, "report.roster", start, err) }(time.Now())
	err = s.store.View(ctx, func(tx *repository.Tx) error {
		course, ok := tx.Course(code)
		if !ok {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		enrollments := tx.EnrollmentsWhere(models.EnrollmentFilter{CourseCode: code, Semester: semester})
		sortRoster(enrollments)
		roster = &models.CourseRoster{Course: course, Semester: semester, Enrollments: enrollments}
		for _, e := range enrollments {
			switch e.Status {
			case models.EnrollmentStatusActive:
				roster.Active++
			case models.EnrollmentStatusCompleted:
				roster.Completed++
			}
		}
		roster.AverageGPA = computeGPA(enrollments)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return roster, nil
}

// Transcript assembles a student's academic history grouped by semester.
func (s *ReportService) Transcript(ctx context.Context, studentID string) (transcript *models.Transcript, err error) {
	defer func(start time.Time) { track(s.recorder, "report.transcript", start, err) }(time.Now())
	var cached models.Transcript
	if hit, _ := s.cache.Get(ctx, VersionedKey(transcriptCacheKind, s.epoch, s.store.Version(), studentID), &cached); hit {
		return &cached, nil
	}

	var version uint64
	now := s.now()
	err = s.store.View(ctx, func(tx *repository.Tx) error {
		version = tx.Version()
		student, ok := tx.Student(studentID)
		if !ok {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		transcript = buildTranscript(student, studentEnrollments(tx, studentID), now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	_ = s.cache.Set(ctx, VersionedKey(transcriptCacheKind, s.epoch, version, studentID), transcript, 0)
	return transcript, nil
}

func buildTranscript(student models.Student, enrollments []models.Enrollment, now time.Time) *models.Transcript {
	bySemester := make(map[models.Semester][]models.Enrollment)
	semesters := make([]models.Semester, 0)
	for _, e := range enrollments {
		if _, ok := bySemester[e.Semester]; !ok {
			semesters = append(semesters, e.Semester)
		}
		bySemester[e.Semester] = append(bySemester[e.Semester], e)
	}
	sort.Slice(semesters, func(i, j int) bool { return semesters[i].Before(semesters[j]) })

	transcript := &models.Transcript{
		Student:            student,
		Terms:              make([]models.TranscriptTerm, 0, len(semesters)),
		CumulativeGPA:      computeGPA(enrollments),
		TotalCreditsEarned: creditsEarned(enrollments),
		GeneratedAt:        now.UTC(),
	}
	for _, semester := range semesters {
		termEnrollments := bySemester[semester]
		sort.SliceStable(termEnrollments, func(i, j int) bool {
			return termEnrollments[i].Course.Code < termEnrollments[j].Course.Code
		})
		term := models.TranscriptTerm{
			Semester:      semester,
			Lines:         make([]models.TranscriptLine, 0, len(termEnrollments)),
			GPA:           computeGPA(termEnrollments),
			CreditsEarned: creditsEarned(termEnrollments),
		}
		for _, e := range termEnrollments {
			term.Lines = append(term.Lines, models.TranscriptLine{
				CourseCode:    e.Course.Code,
				CourseName:    e.Course.Name,
				Credits:       e.Credits(),
				Grade:         e.Grade,
				Status:        e.Status,
				QualityPoints: e.QualityPoints(),
			})
		}
		transcript.Terms = append(transcript.Terms, term)
	}
	return transcript
}

// RenderTranscript lays a transcript out as plain text.
func RenderTranscript(t *models.Transcript) string {
	var buf bytes.Buffer
	rule := strings.Repeat("=", 60)
	fmt.Fprintln(&buf, rule)
	fmt.Fprintln(&buf, "OFFICIAL TRANSCRIPT")
	fmt.Fprintln(&buf, rule)
	fmt.Fprintf(&buf, "Student: %s\n", t.Student.FullName())
	fmt.Fprintf(&buf, "ID: %s\n", t.Student.ID)
	fmt.Fprintf(&buf, "Enrollment Date: %s\n", t.Student.EnrollmentDate.Format("2006-01-02"))
	fmt.Fprintln(&buf, rule)

	for _, term := range t.Terms {
		fmt.Fprintf(&buf, "\n%s %d\n", term.Semester.Season.DisplayName(), term.Semester.Year)
		fmt.Fprintln(&buf, strings.Repeat("-", 40))
		w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CODE\tCOURSE\tCREDITS\tGRADE\tSTATUS")
		for _, line := range term.Lines {
			grade := line.Grade.String()
			if grade == "" {
				grade = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", line.CourseCode, line.CourseName, line.Credits, grade, line.Status.DisplayName())
		}
		_ = w.Flush()
		fmt.Fprintf(&buf, "Semester GPA: %.2f  Credits earned: %d\n", term.GPA, term.CreditsEarned)
	}

	fmt.Fprintln(&buf)
	fmt.Fprintln(&buf, rule)
	fmt.Fprintf(&buf, "Overall GPA: %.2f\n", t.CumulativeGPA)
	fmt.Fprintf(&buf, "Total Credits Earned: %d\n", t.TotalCreditsEarned)
	fmt.Fprintln(&buf, rule)
	return buf.String()
}
