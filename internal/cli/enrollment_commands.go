package cli

import (
	"context"

	"github.com/noah-isme/campus-records/internal/models"
	"github.com/noah-isme/campus-records/internal/service"
	appErrors "github.com/noah-isme/campus-records/pkg/errors"
)

func (s *Shell) enroll(ctx context.Context, args []string) error {
	if err := requireArgs(args, 3, "enroll <student-id> <course-code> <season> <year>"); err != nil {
		return err
	}
	semester, err := parseSemester(args[2:]...)
	if err != nil {
		return err
	}
	enrollment, err := s.svc.Enrollments.Enroll(ctx, service.EnrollRequest{
		StudentID:  args[0],
		CourseCode: args[1],
		Semester:   semester,
	})
	if err != nil {
		return err
	}
	s.showEnrollment(enrollment)
	return nil
}

func (s *Shell) grade(ctx context.Context, args []string) error {
	fs := newFlagSet("grade")
	notes := fs.String("notes", "", "free text notes")
	positional, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if err := requireArgs(positional, 2, "grade <enrollment-id> <grade> [--notes text]"); err != nil {
		return err
	}
	grade, err := models.ParseGrade(positional[1])
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, "invalid grade")
	}
	enrollment, err := s.svc.Enrollments.RecordGrade(ctx, positional[0], grade, *notes)
	if err != nil {
		return err
	}
	s.showEnrollment(enrollment)
	return nil
}

func (s *Shell) withdraw(ctx context.Context, args []string) error {
	return s.closeEnrollment(ctx, "withdraw", args, s.svc.Enrollments.Withdraw)
}

func (s *Shell) drop(ctx context.Context, args []string) error {
	return s.closeEnrollment(ctx, "drop", args, s.svc.Enrollments.Drop)
}

func (s *Shell) closeEnrollment(ctx context.Context, name string, args []string, apply func(context.Context, string, string) (*models.Enrollment, error)) error {
	fs := newFlagSet(name)
	reason := fs.String("reason", "", "reason recorded in the notes")
	positional, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if err := requireArgs(positional, 1, name+" <enrollment-id> [--reason text]"); err != nil {
		return err
	}
	enrollment, err := apply(ctx, positional[0], *reason)
	if err != nil {
		return err
	}
	s.showEnrollment(enrollment)
	return nil
}

func (s *Shell) enrollments(ctx context.Context, args []string) error {
	fs := newFlagSet("enrollments")
	student := fs.String("student", "", "student id")
	course := fs.String("course", "", "course code")
	semester := fs.String("semester", "", "semester, e.g. \"SPRING 2024\"")
	status := fs.String("status", "", "enrollment status")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}
	filter := models.EnrollmentFilter{StudentID: *student, CourseCode: *course}
	if *semester != "" {
		sem, err := parseSemester(*semester)
		if err != nil {
			return err
		}
		filter.Semester = &sem
	}
	if *status != "" {
		st, err := models.ParseEnrollmentStatus(*status)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrValidation.Code, "invalid enrollment status")
		}
		filter.Status = st
	}
	enrollments, err := s.svc.Enrollments.List(ctx, filter)
	if err != nil {
		return err
	}
	s.out.show(enrollments, func() { s.out.table(enrollmentHeaders, enrollmentRows(enrollments)) })
	return nil
}

// gpaSummary is the JSON shape of the gpa command.
type gpaSummary struct {
	StudentID       string   `json:"student_id"`
	Current         float64  `json:"current_gpa"`
	Cumulative      float64  `json:"cumulative_gpa"`
	Semester        string   `json:"semester,omitempty"`
	SemesterGPA     *float64 `json:"semester_gpa,omitempty"`
	SemesterCredits *int     `json:"semester_credits,omitempty"`
}

func (s *Shell) gpa(ctx context.Context, args []string) error {
	fs := newFlagSet("gpa")
	rawSemester := fs.String("semester", "", "semester, e.g. \"SPRING 2024\"")
	positional, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if err := requireArgs(positional, 1, "gpa <student-id> [--semester \"SPRING 2024\"]"); err != nil {
		return err
	}
	id := positional[0]
	summary := gpaSummary{StudentID: id}
	if summary.Current, err = s.svc.Enrollments.CurrentGPA(ctx, id); err != nil {
		return err
	}
	if summary.Cumulative, err = s.svc.Enrollments.CumulativeGPA(ctx, id); err != nil {
		return err
	}
	if *rawSemester != "" {
		semester, err := parseSemester(*rawSemester)
		if err != nil {
			return err
		}
		gpa, err := s.svc.Enrollments.SemesterGPA(ctx, id, semester)
		if err != nil {
			return err
		}
		credits, err := s.svc.Enrollments.SemesterCredits(ctx, id, semester)
		if err != nil {
			return err
		}
		summary.Semester = semester.String()
		summary.SemesterGPA = &gpa
		summary.SemesterCredits = &credits
	}

	s.out.show(summary, func() {
		pairs := [][2]string{
			{"Student", id},
			{"Current GPA", formatGPA(summary.Current)},
			{"Cumulative GPA", formatGPA(summary.Cumulative)},
		}
		if summary.SemesterGPA != nil {
			pairs = append(pairs,
				[2]string{summary.Semester + " GPA", formatGPA(*summary.SemesterGPA)},
				[2]string{summary.Semester + " credits", formatInt(*summary.SemesterCredits)},
			)
		}
		s.out.fields(pairs)
	})
	return nil
}

func (s *Shell) refresh(ctx context.Context, _ []string) error {
	if err := s.svc.Enrollments.RefreshReferences(ctx); err != nil {
		return err
	}
	s.out.show(map[string]string{"status": "refreshed"}, func() {
		s.out.line("Enrollment references refreshed.")
	})
	return nil
}

func (s *Shell) showEnrollment(e *models.Enrollment) {
	s.out.show(e, func() {
		s.out.fields([][2]string{
			{"Enrollment", e.ID},
			{"Student", e.Student.FullName() + " (" + e.Student.ID + ")"},
			{"Course", e.Course.Code + " " + e.Course.Name},
			{"Semester", e.Semester.String()},
			{"Credits", formatInt(e.Credits())},
			{"Grade", orDash(e.Grade.String())},
			{"Status", e.Status.DisplayName()},
			{"Enrolled", formatDate(e.EnrolledAt)},
			{"Notes", orDash(e.Notes)},
		})
	})
}
