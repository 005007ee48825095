// Package cli implements the interactive shell and one-shot command mode of
// the records engine.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-records/internal/service"
	appErrors "github.com/noah-isme/campus-records/pkg/errors"
	"github.com/noah-isme/campus-records/pkg/logger"
)

// Services bundles the collaborators the shell dispatches to. Persistence,
// Backups, Exports and Metrics may be nil; their commands then report that
// the feature is not configured.
type Services struct {
	Students    *service.StudentService
	Courses     *service.CourseService
	Enrollments *service.EnrollmentService
	Reports     *service.ReportService
	Persistence *service.PersistenceService
	Backups     *service.BackupService
	Exports     *service.ExportService
	Metrics     *service.MetricsService
}

// Options tunes shell behaviour.
type Options struct {
	// JSON prints results and errors as JSON envelopes instead of tables.
	JSON bool
	// Autosave schedules a save after every successful mutating command.
	Autosave bool
	Prompt   string
}

type handlerFunc func(ctx context.Context, args []string) error

type command struct {
	usage   string
	summary string
	mutates func(args []string) bool
	run     handlerFunc
}

func always([]string) bool { return true }

// subcommands reports a mutation when the first argument is one of names.
func subcommands(names ...string) func([]string) bool {
	return func(args []string) bool {
		if len(args) == 0 {
			return false
		}
		for _, name := range names {
			if strings.EqualFold(args[0], name) {
				return true
			}
		}
		return false
	}
}

// Shell parses command lines and renders their results.
type Shell struct {
	svc      Services
	opts     Options
	out      *output
	logger   *zap.Logger
	commands map[string]command
}

// errQuit ends the interactive loop.
var errQuit = appErrors.New("QUIT", "quit")

// NewShell wires a shell writing results to out.
func NewShell(svc Services, opts Options, out io.Writer, logger *zap.Logger) *Shell {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Prompt == "" {
		opts.Prompt = "ccrm> "
	}
	s := &Shell{svc: svc, opts: opts, out: newOutput(out, opts.JSON), logger: logger}
	s.commands = s.registry()
	return s
}

// Run reads commands from in until EOF or quit. Command failures are printed
// and do not stop the loop.
func (s *Shell) Run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	s.out.banner()
	for {
		s.out.prompt(s.opts.Prompt)
		if !scanner.Scan() {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil
		}
		args, err := tokenize(scanner.Text())
		if err != nil {
			s.out.failure(appErrors.Wrap(err, appErrors.ErrValidation.Code, "cannot parse command line"))
			continue
		}
		if len(args) == 0 {
			continue
		}
		if err := s.Execute(ctx, args); err != nil {
			if err == errQuit {
				return nil
			}
		}
	}
	if ctx.Err() != nil {
		return nil
	}
	return scanner.Err()
}

// Execute runs a single command. Failures are rendered and returned so one
// shot callers can derive an exit status.
func (s *Shell) Execute(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return s.help(ctx, nil)
	}
	name := strings.ToLower(args[0])
	cmd, ok := s.commands[name]
	if !ok {
		err := appErrors.Clonef(appErrors.ErrValidation, "unknown command %q, try help", args[0])
		s.out.failure(err)
		return err
	}
	err := cmd.run(ctx, args[1:])
	if err == errQuit {
		return err
	}
	if err != nil {
		s.logger.Debug("command failed", append([]zap.Field{zap.String("command", name)}, logger.ErrorFields(err)...)...)
		s.out.failure(err)
		return err
	}
	if cmd.mutates != nil && cmd.mutates(args[1:]) && s.opts.Autosave && s.svc.Persistence != nil {
		if saveErr := s.svc.Persistence.ScheduleSave(ctx); saveErr != nil {
			s.logger.Warn("autosave failed", logger.ErrorFields(saveErr)...)
		}
	}
	return nil
}

func (s *Shell) registry() map[string]command {
	return map[string]command{
		"student":     {usage: studentUsage, summary: "manage students", mutates: subcommands("add", "update", "status", "deactivate"), run: s.student},
		"course":      {usage: courseUsage, summary: "manage the course catalogue", mutates: subcommands("add", "update", "status", "deactivate"), run: s.course},
		"enroll":      {usage: "enroll <student-id> <course-code> <season> <year>", summary: "enroll a student in a course", mutates: always, run: s.enroll},
		"grade":       {usage: "grade <enrollment-id> <grade> [--notes text]", summary: "record a final grade", mutates: always, run: s.grade},
		"withdraw":    {usage: "withdraw <enrollment-id> [--reason text]", summary: "withdraw from a course (grade W)", mutates: always, run: s.withdraw},
		"drop":        {usage: "drop <enrollment-id> [--reason text]", summary: "drop a course without a grade", mutates: always, run: s.drop},
		"enrollments": {usage: "enrollments [--student id] [--course code] [--semester \"SPRING 2024\"] [--status s]", summary: "list enrollments", run: s.enrollments},
		"gpa":         {usage: "gpa <student-id> [--semester \"SPRING 2024\"]", summary: "show current, semester and cumulative GPA", run: s.gpa},
		"transcript":  {usage: "transcript <student-id> [--export txt|pdf]", summary: "print or export a transcript", run: s.transcript},
		"report":      {usage: "report <stats|top|roster|departments|levels|eligible|gpa-range> ...", summary: "run a report", run: s.report},
		"export":      {usage: "export <students|courses|enrollments> <csv|pdf>", summary: "export a collection to a file", run: s.export},
		"save":        {usage: "save", summary: "write all records to the data store", run: s.save},
		"load":        {usage: "load", summary: "replace the records with the data store content", run: s.load},
		"refresh":     {usage: "refresh", summary: "re-resolve enrollment references", mutates: always, run: s.refresh},
		"backup":      {usage: "backup", summary: "create a signed backup and prune old ones", run: s.backup},
		"backups":     {usage: "backups", summary: "list backups, newest first", run: s.backups},
		"restore":     {usage: "restore <backup-name>", summary: "restore a verified backup", mutates: always, run: s.restore},
		"metrics":     {usage: "metrics", summary: "show operation counters", run: s.metrics},
		"help":        {usage: "help [command]", summary: "show this help", run: s.help},
		"quit":        {usage: "quit", summary: "leave the shell", run: quit},
		"exit":        {usage: "exit", summary: "leave the shell", run: quit},
	}
}

func quit(context.Context, []string) error {
	return errQuit
}

func (s *Shell) help(_ context.Context, args []string) error {
	if len(args) > 0 {
		cmd, ok := s.commands[strings.ToLower(args[0])]
		if !ok {
			return appErrors.Clonef(appErrors.ErrValidation, "unknown command %q", args[0])
		}
		s.out.show(map[string]string{"usage": cmd.usage, "summary": cmd.summary}, func() {
			s.out.line("usage: %s", cmd.usage)
			s.out.line("  %s", cmd.summary)
		})
		return nil
	}
	names := make([]string, 0, len(s.commands))
	for name := range s.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	rows := make([][]string, 0, len(names))
	usages := make(map[string]string, len(names))
	for _, name := range names {
		rows = append(rows, []string{name, s.commands[name].summary})
		usages[name] = s.commands[name].usage
	}
	s.out.show(usages, func() { s.out.table([]string{"COMMAND", "DESCRIPTION"}, rows) })
	return nil
}

// tokenize splits a command line on whitespace, honouring single and double
// quotes and backslash escapes.
func tokenize(line string) ([]string, error) {
	var (
		tokens  []string
		current strings.Builder
		quote   rune
		escaped bool
		inToken bool
	)
	for _, r := range line {
		switch {
		case escaped:
			current.WriteRune(r)
			escaped = false
		case r == '\\' && quote != '\'':
			escaped = true
			inToken = true
		case quote != 0:
			if r == quote {
				quote = 0
				continue
			}
			current.WriteRune(r)
		case r == '"' || r == '\'':
			quote = r
			inToken = true
		case unicode.IsSpace(r):
			if inToken {
				tokens = append(tokens, current.String())
				current.Reset()
				inToken = false
			}
		default:
			current.WriteRune(r)
			inToken = true
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated %c quote", quote)
	}
	if escaped {
		return nil, fmt.Errorf("dangling escape")
	}
	if inToken {
		tokens = append(tokens, current.String())
	}
	return tokens, nil
}
