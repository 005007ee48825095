package models

import (
	"fmt"
	"strings"
)

// Grade is a letter grade. The zero value means the enrollment is not graded.
type Grade string

// Supported grades.
const (
	GradeNone       Grade = ""
	GradeAPlus      Grade = "A+"
	GradeA          Grade = "A"
	GradeAMinus     Grade = "A-"
	GradeBPlus      Grade = "B+"
	GradeB          Grade = "B"
	GradeBMinus     Grade = "B-"
	GradeCPlus      Grade = "C+"
	GradeC          Grade = "C"
	GradeCMinus     Grade = "C-"
	GradeDPlus      Grade = "D+"
	GradeD          Grade = "D"
	GradeF          Grade = "F"
	GradeIncomplete Grade = "I"
	GradeWithdrawal Grade = "W"
	GradePass       Grade = "P"
	GradeNoPass     Grade = "NP"
)

var gradePoints = map[Grade]float64{
	GradeAPlus:      4.0,
	GradeA:          4.0,
	GradeAMinus:     3.7,
	GradeBPlus:      3.3,
	GradeB:          3.0,
	GradeBMinus:     2.7,
	GradeCPlus:      2.3,
	GradeC:          2.0,
	GradeCMinus:     1.7,
	GradeDPlus:      1.3,
	GradeD:          1.0,
	GradeF:          0.0,
	GradeIncomplete: 0.0,
	GradeWithdrawal: 0.0,
	GradePass:       3.0,
	GradeNoPass:     0.0,
}

// Valid reports whether g is a known grade. GradeNone is not valid.
func (g Grade) Valid() bool {
	_, ok := gradePoints[g]
	return ok
}

// Points returns the quality point value of the grade.
func (g Grade) Points() float64 {
	return gradePoints[g]
}

// IsPassing reports whether the grade earns credit.
func (g Grade) IsPassing() bool {
	switch g {
	case GradeNone, GradeF, GradeNoPass, GradeIncomplete, GradeWithdrawal:
		return false
	}
	return g.Valid()
}

// CountsTowardGPA reports whether the grade participates in GPA averages.
func (g Grade) CountsTowardGPA() bool {
	switch g {
	case GradeNone, GradeIncomplete, GradeWithdrawal, GradePass, GradeNoPass:
		return false
	}
	return g.Valid()
}

// String returns the letter form.
func (g Grade) String() string {
	return string(g)
}

// ParseGrade converts a letter grade such as "b+" into a Grade.
func ParseGrade(letter string) (Grade, error) {
	g := Grade(strings.ToUpper(strings.TrimSpace(letter)))
	if !g.Valid() {
		return GradeNone, fmt.Errorf("invalid grade %q", letter)
	}
	return g, nil
}
