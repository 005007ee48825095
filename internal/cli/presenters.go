package cli

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/campus-records/internal/models"
)

var (
	courseHeaders     = []string{"CODE", "NAME", "CREDITS", "DEPARTMENT", "INSTRUCTOR", "STATUS"}
	enrollmentHeaders = []string{"ENROLLMENT", "STUDENT", "COURSE", "SEMESTER", "GRADE", "STATUS"}
)

func formatGPA(gpa float64) string {
	return strconv.FormatFloat(gpa, 'f', 2, 64)
}

func formatInt(n int) string {
	return strconv.Itoa(n)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

func orDash(v string) string {
	if strings.TrimSpace(v) == "" {
		return "-"
	}
	return v
}

func courseRows(courses []models.Course) [][]string {
	rows := make([][]string, 0, len(courses))
	for _, c := range courses {
		rows = append(rows, []string{c.Code, c.Name, strconv.Itoa(c.Credits), c.Department, c.Instructor, c.Status.DisplayName()})
	}
	return rows
}

func enrollmentRows(enrollments []models.Enrollment) [][]string {
	rows := make([][]string, 0, len(enrollments))
	for _, e := range enrollments {
		rows = append(rows, []string{
			e.ID,
			fmt.Sprintf("%s (%s)", e.Student.FullName(), e.Student.ID),
			e.Course.Code,
			e.Semester.String(),
			orDash(e.Grade.String()),
			e.Status.DisplayName(),
		})
	}
	return rows
}

// historyTerms orders GPA history labels chronologically. Labels that do
// not parse sort last.
func historyTerms(history map[string]float64) []string {
	terms := make([]string, 0, len(history))
	for term := range history {
		terms = append(terms, term)
	}
	sort.Slice(terms, func(i, j int) bool {
		a, errA := models.ParseSemester(terms[i])
		b, errB := models.ParseSemester(terms[j])
		switch {
		case errA != nil && errB != nil:
			return terms[i] < terms[j]
		case errA != nil:
			return false
		case errB != nil:
			return true
		}
		return a.Before(b)
	})
	return terms
}
