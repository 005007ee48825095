package cli

import (
	"context"
	"strconv"
	"strings"

	"github.com/noah-isme/campus-records/internal/models"
	"github.com/noah-isme/campus-records/internal/service"
	appErrors "github.com/noah-isme/campus-records/pkg/errors"
)

const courseUsage = "course <add|update|show|list|search|status|deactivate|prereqs> ..."

func (s *Shell) course(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return appErrors.Clone(appErrors.ErrValidation, "usage: "+courseUsage)
	}
	rest := args[1:]
	switch strings.ToLower(args[0]) {
	case "add":
		return s.courseAdd(ctx, rest)
	case "update":
		return s.courseUpdate(ctx, rest)
	case "show":
		if err := requireArgs(rest, 1, "course show <code>"); err != nil {
			return err
		}
		course, err := s.svc.Courses.Get(ctx, rest[0])
		if err != nil {
			return err
		}
		s.showCourse(course)
		return nil
	case "list":
		return s.courseList(ctx, rest)
	case "search":
		if err := requireArgs(rest, 1, "course search <text>"); err != nil {
			return err
		}
		courses, err := s.svc.Courses.SearchByName(ctx, strings.Join(rest, " "))
		if err != nil {
			return err
		}
		s.showCourses(courses)
		return nil
	case "status":
		if err := requireArgs(rest, 2, "course status <code> <ACTIVE|INACTIVE|CANCELLED|FULL|ARCHIVED>"); err != nil {
			return err
		}
		status, err := models.ParseCourseStatus(rest[1])
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrValidation.Code, "invalid course status")
		}
		course, err := s.svc.Courses.SetStatus(ctx, rest[0], status)
		if err != nil {
			return err
		}
		s.showCourse(course)
		return nil
	case "deactivate":
		if err := requireArgs(rest, 1, "course deactivate <code>"); err != nil {
			return err
		}
		course, err := s.svc.Courses.Deactivate(ctx, rest[0])
		if err != nil {
			return err
		}
		s.showCourse(course)
		return nil
	case "prereqs":
		if err := requireArgs(rest, 1, "course prereqs <code>"); err != nil {
			return err
		}
		courses, err := s.svc.Courses.Prerequisites(ctx, rest[0])
		if err != nil {
			return err
		}
		s.showCourses(courses)
		return nil
	default:
		return appErrors.Clonef(appErrors.ErrValidation, "unknown course command %q, usage: %s", args[0], courseUsage)
	}
}

func (s *Shell) courseAdd(ctx context.Context, args []string) error {
	fs := newFlagSet("course add")
	credits := fs.Int("credits", 0, "credit value")
	department := fs.String("dept", "", "department")
	instructor := fs.String("instructor", "", "instructor")
	description := fs.String("desc", "", "description")
	prereqs := fs.String("prereqs", "", "comma separated prerequisite codes")
	schedule := fs.String("schedule", "", "DAY=HH:MM-HH:MM entries separated by ;")
	positional, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if err := requireArgs(positional, 2, "course add <code> <name> --credits n --dept d --instructor i [--desc text] [--prereqs A,B] [--schedule s]"); err != nil {
		return err
	}
	slots, err := parseSchedule(*schedule)
	if err != nil {
		return err
	}
	course, err := s.svc.Courses.Create(ctx, service.CreateCourseRequest{
		Code:          positional[0],
		Name:          strings.Join(positional[1:], " "),
		Description:   *description,
		Credits:       *credits,
		Department:    *department,
		Instructor:    *instructor,
		Prerequisites: splitList(*prereqs),
		Schedule:      slots,
	})
	if err != nil {
		return err
	}
	s.showCourse(course)
	return nil
}

func (s *Shell) courseUpdate(ctx context.Context, args []string) error {
	fs := newFlagSet("course update")
	name := fs.String("name", "", "course name")
	credits := fs.Int("credits", 0, "credit value")
	department := fs.String("dept", "", "department")
	instructor := fs.String("instructor", "", "instructor")
	description := fs.String("desc", "", "description")
	prereqs := fs.String("prereqs", "", "comma separated prerequisite codes, empty to clear")
	status := fs.String("status", "", "course status")
	positional, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if err := requireArgs(positional, 1, "course update <code> [--name n] [--credits n] [--dept d] [--instructor i] [--desc text] [--prereqs A,B] [--status s]"); err != nil {
		return err
	}
	current, err := s.svc.Courses.Get(ctx, positional[0])
	if err != nil {
		return err
	}
	set := visited(fs)
	req := service.UpdateCourseRequest{
		Name:        pick(set["name"], *name, current.Name),
		Description: pick(set["desc"], *description, current.Description),
		Department:  pick(set["dept"], *department, current.Department),
		Instructor:  pick(set["instructor"], *instructor, current.Instructor),
		Credits:     current.Credits,
	}
	if set["credits"] {
		req.Credits = *credits
	}
	if set["prereqs"] {
		codes := splitList(*prereqs)
		req.Prerequisites = &codes
	}
	if set["status"] {
		st, err := models.ParseCourseStatus(*status)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrValidation.Code, "invalid course status")
		}
		req.Status = &st
	}
	course, err := s.svc.Courses.Update(ctx, current.Code, req)
	if err != nil {
		return err
	}
	s.showCourse(course)
	return nil
}

func (s *Shell) courseList(ctx context.Context, args []string) error {
	fs := newFlagSet("course list")
	department := fs.String("dept", "", "only this department")
	instructor := fs.String("instructor", "", "only this instructor")
	level := fs.String("level", "", "only this level")
	minCredits := fs.String("min-credits", "", "lower credit bound")
	maxCredits := fs.String("max-credits", "", "upper credit bound")
	available := fs.Bool("available", false, "only courses open for enrollment")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}

	var (
		courses []models.Course
		err     error
	)
	switch {
	case *department != "":
		courses, err = s.svc.Courses.ListByDepartment(ctx, *department)
	case *instructor != "":
		courses, err = s.svc.Courses.ListByInstructor(ctx, *instructor)
	case *level != "":
		lvl, perr := models.ParseCourseLevel(*level)
		if perr != nil {
			return appErrors.Wrap(perr, appErrors.ErrValidation.Code, "invalid course level")
		}
		courses, err = s.svc.Courses.ListByLevel(ctx, lvl)
	case *minCredits != "" || *maxCredits != "":
		lo, hi := 0, 99
		if *minCredits != "" {
			if lo, err = parseInt("min-credits", *minCredits); err != nil {
				return err
			}
		}
		if *maxCredits != "" {
			if hi, err = parseInt("max-credits", *maxCredits); err != nil {
				return err
			}
		}
		courses, err = s.svc.Courses.ListByCreditRange(ctx, lo, hi)
	case *available:
		courses, err = s.svc.Courses.ListAvailable(ctx)
	default:
		courses, err = s.svc.Courses.List(ctx)
	}
	if err != nil {
		return err
	}
	s.showCourses(courses)
	return nil
}

func (s *Shell) showCourse(course *models.Course) {
	s.out.show(course, func() {
		s.out.fields([][2]string{
			{"Code", course.Code},
			{"Name", course.Name},
			{"Description", orDash(course.Description)},
			{"Credits", strconv.Itoa(course.Credits)},
			{"Department", course.Department},
			{"Instructor", course.Instructor},
			{"Level", course.Level().DisplayName()},
			{"Status", course.Status.DisplayName()},
			{"Prerequisites", orDash(strings.Join(course.Prerequisites, ", "))},
		})
	})
}

func (s *Shell) showCourses(courses []models.Course) {
	s.out.show(courses, func() { s.out.table(courseHeaders, courseRows(courses)) })
}
