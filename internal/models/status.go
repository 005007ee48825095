package models

import (
	"fmt"
	"strings"
)

// StudentStatus represents the standing of a student with the institution.
type StudentStatus string

// Possible student statuses.
const (
	StudentStatusActive    StudentStatus = "ACTIVE"
	StudentStatusInactive  StudentStatus = "INACTIVE"
	StudentStatusGraduated StudentStatus = "GRADUATED"
	StudentStatusSuspended StudentStatus = "SUSPENDED"
	StudentStatusDropped   StudentStatus = "DROPPED"
	StudentStatusOnLeave   StudentStatus = "ON_LEAVE"
)

// StudentStatuses lists every student status in declaration order.
var StudentStatuses = []StudentStatus{
	StudentStatusActive, StudentStatusInactive, StudentStatusGraduated,
	StudentStatusSuspended, StudentStatusDropped, StudentStatusOnLeave,
}

// Valid reports whether s is a declared status.
func (s StudentStatus) Valid() bool {
	for _, known := range StudentStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// CanEnroll reports whether students in this status may take new courses.
func (s StudentStatus) CanEnroll() bool {
	return s == StudentStatusActive || s == StudentStatusOnLeave
}

// DisplayName returns a human readable label.
func (s StudentStatus) DisplayName() string {
	return displayName(string(s))
}

// ParseStudentStatus accepts either the constant form or the display form.
func ParseStudentStatus(raw string) (StudentStatus, error) {
	s := StudentStatus(normalizeEnum(raw))
	if !s.Valid() {
		return "", fmt.Errorf("invalid student status %q", raw)
	}
	return s, nil
}

// CourseStatus represents whether a course is offered.
type CourseStatus string

// Possible course statuses.
const (
	CourseStatusActive    CourseStatus = "ACTIVE"
	CourseStatusInactive  CourseStatus = "INACTIVE"
	CourseStatusCancelled CourseStatus = "CANCELLED"
	CourseStatusFull      CourseStatus = "FULL"
	CourseStatusArchived  CourseStatus = "ARCHIVED"
)

// CourseStatuses lists every course status in declaration order.
var CourseStatuses = []CourseStatus{
	CourseStatusActive, CourseStatusInactive, CourseStatusCancelled,
	CourseStatusFull, CourseStatusArchived,
}

// Valid reports whether s is a declared status.
func (s CourseStatus) Valid() bool {
	for _, known := range CourseStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// AcceptsEnrollment reports whether new enrollments are allowed.
func (s CourseStatus) AcceptsEnrollment() bool {
	return s == CourseStatusActive
}

// DisplayName returns a human readable label.
func (s CourseStatus) DisplayName() string {
	return displayName(string(s))
}

// ParseCourseStatus accepts either the constant form or the display form.
func ParseCourseStatus(raw string) (CourseStatus, error) {
	s := CourseStatus(normalizeEnum(raw))
	if !s.Valid() {
		return "", fmt.Errorf("invalid course status %q", raw)
	}
	return s, nil
}

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses. Every status except ACTIVE is terminal.
const (
	EnrollmentStatusActive     EnrollmentStatus = "ACTIVE"
	EnrollmentStatusCompleted  EnrollmentStatus = "COMPLETED"
	EnrollmentStatusWithdrawn  EnrollmentStatus = "WITHDRAWN"
	EnrollmentStatusDropped    EnrollmentStatus = "DROPPED"
	EnrollmentStatusIncomplete EnrollmentStatus = "INCOMPLETE"
)

// EnrollmentStatuses lists every enrollment status in declaration order.
var EnrollmentStatuses = []EnrollmentStatus{
	EnrollmentStatusActive, EnrollmentStatusCompleted, EnrollmentStatusWithdrawn,
	EnrollmentStatusDropped, EnrollmentStatusIncomplete,
}

// Valid reports whether s is a declared status.
func (s EnrollmentStatus) Valid() bool {
	for _, known := range EnrollmentStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// IsActive reports whether the enrollment is still in progress.
func (s EnrollmentStatus) IsActive() bool {
	return s == EnrollmentStatusActive
}

// IsTerminal reports whether no further transition is permitted.
func (s EnrollmentStatus) IsTerminal() bool {
	return s.Valid() && s != EnrollmentStatusActive
}

// DisplayName returns a human readable label.
func (s EnrollmentStatus) DisplayName() string {
	return displayName(string(s))
}

// ParseEnrollmentStatus accepts either the constant form or the display form.
func ParseEnrollmentStatus(raw string) (EnrollmentStatus, error) {
	s := EnrollmentStatus(normalizeEnum(raw))
	if !s.Valid() {
		return "", fmt.Errorf("invalid enrollment status %q", raw)
	}
	return s, nil
}

// CourseLevel is derived from the number embedded in a course code.
type CourseLevel string

// Course levels.
const (
	CourseLevelUndergraduate       CourseLevel = "UNDERGRADUATE"
	CourseLevelGraduate            CourseLevel = "GRADUATE"
	CourseLevelDoctoral            CourseLevel = "DOCTORAL"
	CourseLevelContinuingEducation CourseLevel = "CONTINUING_EDUCATION"
)

// CourseLevels lists every level in declaration order.
var CourseLevels = []CourseLevel{
	CourseLevelUndergraduate, CourseLevelGraduate, CourseLevelDoctoral, CourseLevelContinuingEducation,
}

// Valid reports whether l is a declared level.
func (l CourseLevel) Valid() bool {
	for _, known := range CourseLevels {
		if l == known {
			return true
		}
	}
	return false
}

// DisplayName returns a human readable label.
func (l CourseLevel) DisplayName() string {
	return displayName(string(l))
}

// ParseCourseLevel accepts either the constant form or the display form.
func ParseCourseLevel(raw string) (CourseLevel, error) {
	l := CourseLevel(normalizeEnum(raw))
	if !l.Valid() {
		return "", fmt.Errorf("invalid course level %q", raw)
	}
	return l, nil
}

// normalizeEnum turns "On Leave" or "on-leave" into "ON_LEAVE".
func normalizeEnum(raw string) string {
	value := strings.ToUpper(strings.TrimSpace(raw))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(value)
}

// displayName turns "ON_LEAVE" into "On Leave".
func displayName(value string) string {
	words := strings.Split(strings.ToLower(value), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
