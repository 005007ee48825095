package cli

import (
	"context"
	"sort"
	"strings"

	"github.com/noah-isme/campus-records/internal/models"
	"github.com/noah-isme/campus-records/internal/service"
	appErrors "github.com/noah-isme/campus-records/pkg/errors"
	"github.com/noah-isme/campus-records/pkg/export"
)

const reportUsage = "report <stats|top [n]|roster <code> [--semester s]|departments|levels|eligible <student-id>|gpa-range <min> <max>>"

func (s *Shell) report(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return appErrors.Clone(appErrors.ErrValidation, "usage: "+reportUsage)
	}
	rest := args[1:]
	switch strings.ToLower(args[0]) {
	case "stats":
		stats, err := s.svc.Reports.Statistics(ctx)
		if err != nil {
			return err
		}
		s.showStatistics(stats)
		return nil
	case "top":
		n := 10
		if len(rest) > 0 {
			var err error
			if n, err = parseInt("n", rest[0]); err != nil {
				return err
			}
		}
		ranked, err := s.svc.Reports.TopStudentsByGPA(ctx, n)
		if err != nil {
			return err
		}
		s.out.show(ranked, func() {
			rows := make([][]string, 0, len(ranked))
			for i, r := range ranked {
				rows = append(rows, []string{formatInt(i + 1), r.Student.ID, r.Student.FullName(), formatGPA(r.GPA)})
			}
			s.out.table([]string{"RANK", "ID", "NAME", "GPA"}, rows)
		})
		return nil
	case "roster":
		return s.roster(ctx, rest)
	case "departments":
		groups, err := s.svc.Reports.CoursesByDepartment(ctx)
		if err != nil {
			return err
		}
		s.showGroups(groups)
		return nil
	case "levels":
		groups, err := s.svc.Reports.CoursesByLevel(ctx)
		if err != nil {
			return err
		}
		s.showGroups(groups)
		return nil
	case "eligible":
		if err := requireArgs(rest, 1, "report eligible <student-id>"); err != nil {
			return err
		}
		courses, err := s.svc.Reports.EligibleCoursesForStudent(ctx, rest[0])
		if err != nil {
			return err
		}
		s.showCourses(courses)
		return nil
	case "gpa-range":
		if err := requireArgs(rest, 2, "report gpa-range <min> <max>"); err != nil {
			return err
		}
		students, err := s.studentsByGPA(ctx, rest[0], rest[1])
		if err != nil {
			return err
		}
		s.showStudents(students)
		return nil
	default:
		return appErrors.Clonef(appErrors.ErrValidation, "unknown report %q, usage: %s", args[0], reportUsage)
	}
}

func (s *Shell) roster(ctx context.Context, args []string) error {
	fs := newFlagSet("report roster")
	rawSemester := fs.String("semester", "", "semester, e.g. \"SPRING 2024\"")
	positional, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if err := requireArgs(positional, 1, "report roster <course-code> [--semester \"SPRING 2024\"]"); err != nil {
		return err
	}
	var semester *models.Semester
	if *rawSemester != "" {
		sem, err := parseSemester(*rawSemester)
		if err != nil {
			return err
		}
		semester = &sem
	}
	roster, err := s.svc.Reports.CourseRoster(ctx, positional[0], semester)
	if err != nil {
		return err
	}
	s.out.show(roster, func() {
		title := roster.Course.Code + " " + roster.Course.Name
		if roster.Semester != nil {
			title += ", " + roster.Semester.String()
		}
		s.out.line("%s", title)
		s.out.fields([][2]string{
			{"Active", formatInt(roster.Active)},
			{"Completed", formatInt(roster.Completed)},
			{"Average GPA", formatGPA(roster.AverageGPA)},
		})
		s.out.table(enrollmentHeaders, enrollmentRows(roster.Enrollments))
	})
	return nil
}

func (s *Shell) showStatistics(stats *models.Statistics) {
	s.out.show(stats, func() {
		s.out.line("Students")
		s.out.fields([][2]string{
			{"  Total", formatInt(stats.Students.Total)},
			{"  Active", formatInt(stats.Students.Active)},
			{"  Graduated", formatInt(stats.Students.Graduated)},
			{"  Average GPA", formatGPA(stats.Students.AverageGPA)},
			{"  Credits earned", formatInt(stats.Students.TotalCreditsEarned)},
		})
		s.out.line("Courses")
		s.out.fields([][2]string{
			{"  Total", formatInt(stats.Courses.Total)},
			{"  Active", formatInt(stats.Courses.Active)},
			{"  Average credits", formatGPA(stats.Courses.AverageCredits)},
		})
		s.out.line("Enrollments")
		s.out.fields([][2]string{
			{"  Total", formatInt(stats.Enrollments.Total)},
			{"  Active", formatInt(stats.Enrollments.Active)},
			{"  Completed", formatInt(stats.Enrollments.Completed)},
			{"  Withdrawn", formatInt(stats.Enrollments.Withdrawn)},
			{"  Average grade points", formatGPA(stats.Enrollments.AverageGradePoints)},
		})
		s.out.table([]string{"SEMESTER", "ENROLLMENTS"}, countRows(stats.Enrollments.BySemester))
	})
}

func countRows(counts map[string]int) [][]string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []string{k, formatInt(counts[k])})
	}
	return rows
}

func (s *Shell) showGroups(groups []models.CourseGroup) {
	s.out.show(groups, func() {
		rows := make([][]string, 0, len(groups))
		for _, g := range groups {
			codes := make([]string, 0, len(g.Courses))
			for _, c := range g.Courses {
				codes = append(codes, c.Code)
			}
			rows = append(rows, []string{g.Key, formatInt(len(g.Courses)), strings.Join(codes, ", ")})
		}
		s.out.table([]string{"GROUP", "COURSES", "CODES"}, rows)
	})
}

func (s *Shell) transcript(ctx context.Context, args []string) error {
	fs := newFlagSet("transcript")
	exportFormat := fs.String("export", "", "write the transcript to a txt or pdf file")
	positional, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if err := requireArgs(positional, 1, "transcript <student-id> [--export txt|pdf]"); err != nil {
		return err
	}
	if *exportFormat != "" {
		if s.svc.Exports == nil {
			return notConfigured("export storage")
		}
		format, err := export.ParseFormat(*exportFormat)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrValidation.Code, "invalid export format")
		}
		result, err := s.svc.Exports.ExportTranscript(ctx, positional[0], format)
		if err != nil {
			return err
		}
		s.showExport(result)
		return nil
	}
	transcript, err := s.svc.Reports.Transcript(ctx, positional[0])
	if err != nil {
		return err
	}
	s.out.show(transcript, func() { s.out.text(service.RenderTranscript(transcript)) })
	return nil
}

func (s *Shell) showExport(result *service.ExportResult) {
	s.out.show(result, func() {
		s.out.line("Wrote %d row(s) to %s", result.Rows, result.Path)
	})
}

func notConfigured(feature string) error {
	return appErrors.Clonef(appErrors.ErrValidation, "%s is not configured", feature)
}
