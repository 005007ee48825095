package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCourseLevel(t *testing.T) {
	tests := []struct {
		code string
		want CourseLevel
	}{
		{"CS101", CourseLevelUndergraduate},
		{"MATH450", CourseLevelUndergraduate},
		{"CS501", CourseLevelGraduate},
		{"EE999", CourseLevelGraduate},
		{"MGMT", CourseLevelUndergraduate},
		{"CS1500", CourseLevelUndergraduate},
		{"CS050", CourseLevelUndergraduate},
	}
	for _, tc := range tests {
		t.Run(tc.code, func(t *testing.T) {
			assert.Equal(t, tc.want, Course{Code: tc.code}.Level())
		})
	}
}

func TestCourseMeetsPrerequisites(t *testing.T) {
	course := Course{Code: "CS301", Prerequisites: []string{"CS101", "CS201"}}
	assert.True(t, Course{Code: "CS101"}.MeetsPrerequisites(nil))
	assert.False(t, course.MeetsPrerequisites([]string{"CS101"}))
	assert.True(t, course.MeetsPrerequisites([]string{"CS201", "MATH100", "CS101"}))
}

func TestCourseAcceptsEnrollment(t *testing.T) {
	assert.True(t, Course{Status: CourseStatusActive}.AcceptsEnrollment())
	assert.False(t, Course{Status: CourseStatusInactive}.AcceptsEnrollment())
}
