package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Season is the part of the academic year a semester falls in.
type Season int

// Seasons in chronological order within a year.
const (
	SeasonSpring Season = iota
	SeasonSummer
	SeasonFall
)

var seasonNames = [...]string{"SPRING", "SUMMER", "FALL"}

// String returns the upper-case season name used in identifiers.
func (s Season) String() string {
	if !s.Valid() {
		return fmt.Sprintf("Season(%d)", int(s))
	}
	return seasonNames[s]
}

// Valid reports whether s is a declared season.
func (s Season) Valid() bool {
	return s >= SeasonSpring && s <= SeasonFall
}

// DisplayName returns a title-cased season name.
func (s Season) DisplayName() string {
	name := s.String()
	if !s.Valid() {
		return name
	}
	return name[:1] + strings.ToLower(name[1:])
}

// ParseSeason converts a season name, ignoring case and surrounding spaces.
func ParseSeason(raw string) (Season, error) {
	value := strings.ToUpper(strings.TrimSpace(raw))
	for i, name := range seasonNames {
		if name == value {
			return Season(i), nil
		}
	}
	return 0, fmt.Errorf("invalid season %q", raw)
}

// Semester is a (year, season) pair ordered chronologically.
type Semester struct {
	Year   int    `json:"year"`
	Season Season `json:"season"`
}

// NewSemester builds a semester value.
func NewSemester(year int, season Season) Semester {
	return Semester{Year: year, Season: season}
}

// SemesterForDate returns the semester containing t: January-May is Spring,
// June-August Summer and September-December Fall.
func SemesterForDate(t time.Time) Semester {
	switch month := t.Month(); {
	case month <= time.May:
		return Semester{Year: t.Year(), Season: SeasonSpring}
	case month <= time.August:
		return Semester{Year: t.Year(), Season: SeasonSummer}
	default:
		return Semester{Year: t.Year(), Season: SeasonFall}
	}
}

// ParseSemester parses labels such as "SPRING 2024" or "fall 2023".
func ParseSemester(raw string) (Semester, error) {
	parts := strings.Fields(raw)
	if len(parts) != 2 {
		return Semester{}, fmt.Errorf("invalid semester %q", raw)
	}
	season, err := ParseSeason(parts[0])
	if err != nil {
		return Semester{}, err
	}
	year, err := strconv.Atoi(parts[1])
	if err != nil || year <= 0 {
		return Semester{}, fmt.Errorf("invalid semester year %q", parts[1])
	}
	return Semester{Year: year, Season: season}, nil
}

// Valid reports whether the semester has a positive year and a known season.
func (s Semester) Valid() bool {
	return s.Year > 0 && s.Season.Valid()
}

// IsZero reports whether s is the zero semester.
func (s Semester) IsZero() bool {
	return s == Semester{}
}

// Compare returns -1, 0 or 1 ordering by year then season.
func (s Semester) Compare(other Semester) int {
	switch {
	case s.Year < other.Year:
		return -1
	case s.Year > other.Year:
		return 1
	case s.Season < other.Season:
		return -1
	case s.Season > other.Season:
		return 1
	default:
		return 0
	}
}

// Before reports whether s comes strictly before other.
func (s Semester) Before(other Semester) bool {
	return s.Compare(other) < 0
}

// Next returns the following semester.
func (s Semester) Next() Semester {
	if s.Season == SeasonFall {
		return Semester{Year: s.Year + 1, Season: SeasonSpring}
	}
	return Semester{Year: s.Year, Season: s.Season + 1}
}

// Previous returns the preceding semester.
func (s Semester) Previous() Semester {
	if s.Season == SeasonSpring {
		return Semester{Year: s.Year - 1, Season: SeasonFall}
	}
	return Semester{Year: s.Year, Season: s.Season - 1}
}

// String renders the semester label, e.g. "SPRING 2024".
func (s Semester) String() string {
	return fmt.Sprintf("%s %d", s.Season, s.Year)
}

// MarshalText implements encoding.TextMarshaler.
func (s Semester) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Semester) UnmarshalText(text []byte) error {
	parsed, err := ParseSemester(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
