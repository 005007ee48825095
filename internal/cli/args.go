package cli

import (
	"flag"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/campus-records/internal/models"
	appErrors "github.com/noah-isme/campus-records/pkg/errors"
)

const dateLayout = "2006-01-02"

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

// parseArgs parses flags appearing anywhere in args and returns the
// positional arguments in order.
func parseArgs(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, "invalid "+fs.Name()+" arguments")
		}
		rest := fs.Args()
		if len(rest) == 0 {
			return positional, nil
		}
		positional = append(positional, rest[0])
		args = rest[1:]
	}
}

func requireArgs(positional []string, n int, usage string) error {
	if len(positional) < n {
		return appErrors.Clone(appErrors.ErrValidation, "usage: "+usage)
	}
	return nil
}

func parseDate(label, raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, appErrors.Clonef(appErrors.ErrValidation, "%s must look like 2006-01-02", label)
	}
	return t, nil
}

// parseSemester accepts "SPRING 2024" as one or two arguments.
func parseSemester(parts ...string) (models.Semester, error) {
	semester, err := models.ParseSemester(strings.Join(parts, " "))
	if err != nil {
		return models.Semester{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, "invalid semester")
	}
	return semester, nil
}

func parseInt(label, raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, appErrors.Clonef(appErrors.ErrValidation, "%s must be a whole number", label)
	}
	return n, nil
}

func parseFloat(label, raw string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, appErrors.Clonef(appErrors.ErrValidation, "%s must be a number", label)
	}
	return f, nil
}

// splitList splits a comma separated list, dropping blanks.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseSchedule reads "MON=09:00-10:30;WED=09:00-10:30".
func parseSchedule(raw string) (map[string]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	schedule := make(map[string]string)
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		day, slot, ok := strings.Cut(entry, "=")
		if !ok || strings.TrimSpace(day) == "" {
			return nil, appErrors.Clonef(appErrors.ErrValidation, "schedule entry %q must look like DAY=HH:MM-HH:MM", entry)
		}
		schedule[strings.ToUpper(strings.TrimSpace(day))] = strings.TrimSpace(slot)
	}
	return schedule, nil
}

// visited reports which flags were set on the command line.
func visited(fs *flag.FlagSet) map[string]bool {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}
