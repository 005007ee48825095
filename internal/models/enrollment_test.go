package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnrollmentID(t *testing.T) {
	id := EnrollmentID("ST1001", "CS101", NewSemester(2024, SeasonSpring))
	assert.Equal(t, "ST1001_CS101_SPRING_2024", id)
	assert.Equal(t, "ST2_MATH200_FALL_2023", EnrollmentID("ST2", "MATH200", NewSemester(2023, SeasonFall)))
}

func TestEnrollmentQualityPoints(t *testing.T) {
	e := Enrollment{Course: Course{Credits: 3}}
	assert.Zero(t, e.QualityPoints())
	assert.False(t, e.IsGraded())

	e.Grade = GradeBPlus
	assert.InDelta(t, 9.9, e.QualityPoints(), 1e-9)
	assert.True(t, e.CountsTowardGPA())

	e.Grade = GradePass
	assert.False(t, e.CountsTowardGPA())
}

func TestEnrollmentStatusTransitions(t *testing.T) {
	assert.True(t, EnrollmentStatusActive.IsActive())
	assert.False(t, EnrollmentStatusActive.IsTerminal())
	for _, s := range []EnrollmentStatus{
		EnrollmentStatusCompleted, EnrollmentStatusWithdrawn,
		EnrollmentStatusDropped, EnrollmentStatusIncomplete,
	} {
		assert.True(t, s.IsTerminal(), s)
		assert.False(t, s.IsActive(), s)
	}
	assert.False(t, EnrollmentStatus("LOST").IsTerminal())
}

func TestStudentStatusCanEnroll(t *testing.T) {
	assert.True(t, StudentStatusActive.CanEnroll())
	assert.True(t, StudentStatusOnLeave.CanEnroll())
	assert.False(t, StudentStatusSuspended.CanEnroll())
	assert.False(t, StudentStatusGraduated.CanEnroll())

	s, err := ParseStudentStatus("on leave")
	assert.NoError(t, err)
	assert.Equal(t, StudentStatusOnLeave, s)
}
