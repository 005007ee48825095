package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGradeTable(t *testing.T) {
	tests := []struct {
		grade     Grade
		points    float64
		passing   bool
		countsGPA bool
	}{
		{GradeAPlus, 4.0, true, true},
		{GradeA, 4.0, true, true},
		{GradeAMinus, 3.7, true, true},
		{GradeBPlus, 3.3, true, true},
		{GradeB, 3.0, true, true},
		{GradeBMinus, 2.7, true, true},
		{GradeCPlus, 2.3, true, true},
		{GradeC, 2.0, true, true},
		{GradeCMinus, 1.7, true, true},
		{GradeDPlus, 1.3, true, true},
		{GradeD, 1.0, true, true},
		{GradeF, 0.0, false, true},
		{GradeIncomplete, 0.0, false, false},
		{GradeWithdrawal, 0.0, false, false},
		{GradePass, 3.0, true, false},
		{GradeNoPass, 0.0, false, false},
	}
	for _, tc := range tests {
		t.Run(tc.grade.String(), func(t *testing.T) {
			assert.True(t, tc.grade.Valid())
			assert.InDelta(t, tc.points, tc.grade.Points(), 1e-9)
			assert.Equal(t, tc.passing, tc.grade.IsPassing())
			assert.Equal(t, tc.countsGPA, tc.grade.CountsTowardGPA())
		})
	}
}

func TestUngradedIsNeitherPassingNorCounted(t *testing.T) {
	assert.False(t, GradeNone.Valid())
	assert.False(t, GradeNone.IsPassing())
	assert.False(t, GradeNone.CountsTowardGPA())
	assert.False(t, Grade("E").IsPassing())
}

func TestParseGrade(t *testing.T) {
	g, err := ParseGrade(" b+ ")
	require.NoError(t, err)
	assert.Equal(t, GradeBPlus, g)

	g, err = ParseGrade("np")
	require.NoError(t, err)
	assert.Equal(t, GradeNoPass, g)

	for _, raw := range []string{"", "E", "A++"} {
		_, err := ParseGrade(raw)
		assert.Error(t, err, raw)
	}
}
