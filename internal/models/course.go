package models

import (
	"regexp"
	"sort"
)

var (
	undergraduateNumber = regexp.MustCompile(`[1-4]\d{2}`)
	graduateNumber      = regexp.MustCompile(`[5-9]\d{2}`)
)

// Course represents a course offered by a department.
type Course struct {
	Code          string            `db:"code" json:"code"`
	Name          string            `db:"name" json:"name"`
	Description   string            `db:"description" json:"description"`
	Credits       int               `db:"credits" json:"credits"`
	Department    string            `db:"department" json:"department"`
	Instructor    string            `db:"instructor" json:"instructor"`
	Status        CourseStatus      `db:"status" json:"status"`
	Prerequisites []string          `db:"-" json:"prerequisites,omitempty"`
	Schedule      map[string]string `db:"-" json:"schedule,omitempty"`
}

// Level derives the academic level from the number embedded in the code.
func (c Course) Level() CourseLevel {
	switch {
	case undergraduateNumber.MatchString(c.Code):
		return CourseLevelUndergraduate
	case graduateNumber.MatchString(c.Code):
		return CourseLevelGraduate
	default:
		return CourseLevelUndergraduate
	}
}

// AcceptsEnrollment reports whether the course is open for enrollment.
func (c Course) AcceptsEnrollment() bool {
	return c.Status.AcceptsEnrollment()
}

// MeetsPrerequisites reports whether completed covers every prerequisite.
func (c Course) MeetsPrerequisites(completed []string) bool {
	if len(c.Prerequisites) == 0 {
		return true
	}
	have := make(map[string]struct{}, len(completed))
	for _, code := range completed {
		have[code] = struct{}{}
	}
	for _, code := range c.Prerequisites {
		if _, ok := have[code]; !ok {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the course.
func (c Course) Clone() Course {
	out := c
	if c.Prerequisites != nil {
		out.Prerequisites = append([]string(nil), c.Prerequisites...)
	}
	if c.Schedule != nil {
		out.Schedule = make(map[string]string, len(c.Schedule))
		for k, v := range c.Schedule {
			out.Schedule[k] = v
		}
	}
	return out
}

// NormalizePrerequisites returns the distinct non-empty codes, sorted.
func NormalizePrerequisites(codes []string) []string {
	seen := make(map[string]struct{}, len(codes))
	out := make([]string, 0, len(codes))
	for _, code := range codes {
		if code == "" {
			continue
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// CourseStatistics aggregates figures over the course store.
type CourseStatistics struct {
	Total          int                 `json:"total"`
	Active         int                 `json:"active"`
	ByDepartment   map[string]int      `json:"by_department"`
	ByLevel        map[CourseLevel]int `json:"by_level"`
	AverageCredits float64             `json:"average_credits"`
}
