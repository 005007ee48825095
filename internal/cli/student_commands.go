package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/noah-isme/campus-records/internal/models"
	"github.com/noah-isme/campus-records/internal/service"
	appErrors "github.com/noah-isme/campus-records/pkg/errors"
)

const studentUsage = "student <add|update|show|list|search|status|deactivate> ..."

func (s *Shell) student(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return appErrors.Clone(appErrors.ErrValidation, "usage: "+studentUsage)
	}
	rest := args[1:]
	switch strings.ToLower(args[0]) {
	case "add":
		return s.studentAdd(ctx, rest)
	case "update":
		return s.studentUpdate(ctx, rest)
	case "show":
		return s.studentShow(ctx, rest)
	case "list":
		return s.studentList(ctx, rest)
	case "search":
		if err := requireArgs(rest, 1, "student search <text>"); err != nil {
			return err
		}
		students, err := s.svc.Students.SearchByName(ctx, strings.Join(rest, " "))
		if err != nil {
			return err
		}
		s.showStudents(students)
		return nil
	case "status":
		if err := requireArgs(rest, 2, "student status <id> <ACTIVE|INACTIVE|GRADUATED|SUSPENDED|DROPPED|ON_LEAVE>"); err != nil {
			return err
		}
		status, err := models.ParseStudentStatus(rest[1])
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrValidation.Code, "invalid student status")
		}
		student, err := s.svc.Students.SetStatus(ctx, rest[0], status)
		if err != nil {
			return err
		}
		s.showStudent(student)
		return nil
	case "deactivate":
		if err := requireArgs(rest, 1, "student deactivate <id>"); err != nil {
			return err
		}
		student, err := s.svc.Students.Deactivate(ctx, rest[0])
		if err != nil {
			return err
		}
		s.showStudent(student)
		return nil
	default:
		return appErrors.Clonef(appErrors.ErrValidation, "unknown student command %q, usage: %s", args[0], studentUsage)
	}
}

func (s *Shell) studentAdd(ctx context.Context, args []string) error {
	fs := newFlagSet("student add")
	email := fs.String("email", "", "email address")
	phone := fs.String("phone", "", "phone number")
	address := fs.String("address", "", "postal address")
	dob := fs.String("dob", "", "date of birth (2006-01-02)")
	enrolled := fs.String("enrolled", "", "enrollment date (2006-01-02), defaults to today")
	positional, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if err := requireArgs(positional, 3, "student add <id> <first-name> <last-name> --email addr [--phone p] [--address a] [--dob date] [--enrolled date]"); err != nil {
		return err
	}
	req := service.CreateStudentRequest{
		ID:        positional[0],
		FirstName: positional[1],
		LastName:  strings.Join(positional[2:], " "),
		Email:     *email,
		Phone:     *phone,
		Address:   *address,
	}
	if req.DateOfBirth, err = parseDate("dob", *dob); err != nil {
		return err
	}
	if req.EnrollmentDate, err = parseDate("enrolled", *enrolled); err != nil {
		return err
	}
	student, err := s.svc.Students.Create(ctx, req)
	if err != nil {
		return err
	}
	s.showStudent(student)
	return nil
}

func (s *Shell) studentUpdate(ctx context.Context, args []string) error {
	fs := newFlagSet("student update")
	first := fs.String("first", "", "first name")
	last := fs.String("last", "", "last name")
	email := fs.String("email", "", "email address")
	phone := fs.String("phone", "", "phone number")
	address := fs.String("address", "", "postal address")
	dob := fs.String("dob", "", "date of birth (2006-01-02)")
	enrolled := fs.String("enrolled", "", "enrollment date (2006-01-02)")
	status := fs.String("status", "", "student status")
	positional, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if err := requireArgs(positional, 1, "student update <id> [--first n] [--last n] [--email e] [--phone p] [--address a] [--dob date] [--enrolled date] [--status s]"); err != nil {
		return err
	}
	current, err := s.svc.Students.Get(ctx, positional[0])
	if err != nil {
		return err
	}
	set := visited(fs)
	req := service.UpdateStudentRequest{
		FirstName: pick(set["first"], *first, current.FirstName),
		LastName:  pick(set["last"], *last, current.LastName),
		Email:     pick(set["email"], *email, current.Email),
		Phone:     pick(set["phone"], *phone, current.Phone),
		Address:   pick(set["address"], *address, current.Address),
	}
	if set["dob"] {
		d, err := parseDate("dob", *dob)
		if err != nil {
			return err
		}
		req.DateOfBirth = &d
	}
	if set["enrolled"] {
		d, err := parseDate("enrolled", *enrolled)
		if err != nil {
			return err
		}
		req.EnrollmentDate = &d
	}
	if set["status"] {
		st, err := models.ParseStudentStatus(*status)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrValidation.Code, "invalid student status")
		}
		req.Status = &st
	}
	student, err := s.svc.Students.Update(ctx, current.ID, req)
	if err != nil {
		return err
	}
	s.showStudent(student)
	return nil
}

func (s *Shell) studentShow(ctx context.Context, args []string) error {
	if err := requireArgs(args, 1, "student show <id>"); err != nil {
		return err
	}
	student, err := s.svc.Students.Get(ctx, args[0])
	if err != nil {
		return err
	}
	current, err := s.svc.Enrollments.CurrentGPA(ctx, student.ID)
	if err != nil {
		return err
	}
	cumulative, err := s.svc.Enrollments.CumulativeGPA(ctx, student.ID)
	if err != nil {
		return err
	}
	enrollments, err := s.svc.Enrollments.ListByStudent(ctx, student.ID)
	if err != nil {
		return err
	}

	data := map[string]interface{}{
		"student":        student,
		"current_gpa":    current,
		"cumulative_gpa": cumulative,
		"enrollments":    enrollments,
	}
	s.out.show(data, func() {
		s.out.fields(studentFields(student))
		s.out.fields([][2]string{
			{"Current GPA", formatGPA(current)},
			{"Cumulative GPA", formatGPA(cumulative)},
		})
		if len(student.GPAHistory) > 0 {
			history := make([]string, 0, len(student.GPAHistory))
			for _, term := range historyTerms(student.GPAHistory) {
				history = append(history, fmt.Sprintf("%s=%s", term, formatGPA(student.GPAHistory[term])))
			}
			s.out.line("GPA history: %s", strings.Join(history, ", "))
		}
		s.out.line("")
		s.out.table(enrollmentHeaders, enrollmentRows(enrollments))
	})
	return nil
}

func (s *Shell) studentList(ctx context.Context, args []string) error {
	fs := newFlagSet("student list")
	status := fs.String("status", "", "only students with this status")
	minGPA := fs.String("min-gpa", "", "lower GPA bound")
	maxGPA := fs.String("max-gpa", "", "upper GPA bound")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}

	var (
		students []models.Student
		err      error
	)
	switch {
	case *status != "":
		st, perr := models.ParseStudentStatus(*status)
		if perr != nil {
			return appErrors.Wrap(perr, appErrors.ErrValidation.Code, "invalid student status")
		}
		students, err = s.svc.Students.ListByStatus(ctx, st)
	case *minGPA != "" || *maxGPA != "":
		students, err = s.studentsByGPA(ctx, *minGPA, *maxGPA)
	default:
		students, err = s.svc.Students.List(ctx)
	}
	if err != nil {
		return err
	}
	s.showStudents(students)
	return nil
}

func (s *Shell) studentsByGPA(ctx context.Context, rawMin, rawMax string) ([]models.Student, error) {
	lo, hi := 0.0, 4.0
	var err error
	if rawMin != "" {
		if lo, err = parseFloat("min-gpa", rawMin); err != nil {
			return nil, err
		}
	}
	if rawMax != "" {
		if hi, err = parseFloat("max-gpa", rawMax); err != nil {
			return nil, err
		}
	}
	return s.svc.Students.ListByGPARange(ctx, lo, hi)
}

func (s *Shell) showStudent(student *models.Student) {
	s.out.show(student, func() { s.out.fields(studentFields(student)) })
}

func (s *Shell) showStudents(students []models.Student) {
	s.out.show(students, func() {
		rows := make([][]string, 0, len(students))
		for _, st := range students {
			rows = append(rows, []string{st.ID, st.FullName(), st.Email, st.Status.DisplayName(), strconv.Itoa(len(st.EnrollmentIDs))})
		}
		s.out.table([]string{"ID", "NAME", "EMAIL", "STATUS", "COURSES"}, rows)
	})
}

func studentFields(st *models.Student) [][2]string {
	return [][2]string{
		{"ID", st.ID},
		{"Name", st.FullName()},
		{"Email", st.Email},
		{"Phone", orDash(st.Phone)},
		{"Address", orDash(st.Address)},
		{"Date of birth", orDash(formatDate(st.DateOfBirth))},
		{"Enrolled", formatDate(st.EnrollmentDate)},
		{"Status", st.Status.DisplayName()},
		{"Enrollments", strconv.Itoa(len(st.EnrollmentIDs))},
	}
}

func pick(set bool, value, fallback string) string {
	if set {
		return value
	}
	return fallback
}
