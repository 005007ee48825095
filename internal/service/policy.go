package service

import (
	"github.com/noah-isme/campus-records/pkg/config"
)

// Policy holds the institutional rules the engine enforces.
type Policy struct {
	MaxCreditsPerSemester int
	MinGPA                float64
	MaxGPA                float64
	MinCourseCredits      int
	MaxCourseCredits      int
	// GPASemester selects how the "current" semester of a student is chosen:
	// config.GPASemesterCalendar uses the wall clock, config.GPASemesterLatest
	// the most recent semester the student has enrollments in.
	GPASemester string
}

// DefaultPolicy returns the standard institutional rules.
func DefaultPolicy() Policy {
	return Policy{
		MaxCreditsPerSemester: 21,
		MinGPA:                0.0,
		MaxGPA:                4.0,
		MinCourseCredits:      1,
		MaxCourseCredits:      6,
		GPASemester:           config.GPASemesterCalendar,
	}
}

// PolicyFromConfig overlays configured values on the defaults.
func PolicyFromConfig(cfg config.PolicyConfig) Policy {
	p := DefaultPolicy()
	if cfg.MaxCreditsPerSemester > 0 {
		p.MaxCreditsPerSemester = cfg.MaxCreditsPerSemester
	}
	if cfg.MaxGPA > cfg.MinGPA {
		p.MinGPA = cfg.MinGPA
		p.MaxGPA = cfg.MaxGPA
	}
	if cfg.MinCourseCredits > 0 && cfg.MaxCourseCredits >= cfg.MinCourseCredits {
		p.MinCourseCredits = cfg.MinCourseCredits
		p.MaxCourseCredits = cfg.MaxCourseCredits
	}
	if cfg.GPASemesterMode == config.GPASemesterLatest {
		p.GPASemester = config.GPASemesterLatest
	}
	return p
}
