package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-records/internal/models"
	appErrors "github.com/noah-isme/campus-records/pkg/errors"
	"github.com/noah-isme/campus-records/pkg/export"
)

// ExportKind names an exportable record collection.
type ExportKind string

// Exportable collections.
const (
	ExportStudents    ExportKind = "students"
	ExportCourses     ExportKind = "courses"
	ExportEnrollments ExportKind = "enrollments"
)

// ParseExportKind accepts a collection name in any case.
func ParseExportKind(raw string) (ExportKind, error) {
	switch k := ExportKind(strings.ToLower(strings.TrimSpace(raw))); k {
	case ExportStudents, ExportCourses, ExportEnrollments:
		return k, nil
	default:
		return "", appErrors.Clonef(appErrors.ErrValidation, "unknown export %q", raw)
	}
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type transcriptSource interface {
	Transcript(ctx context.Context, studentID string) (*models.Transcript, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset) ([]byte, error)
	RenderDocument(doc export.Document) ([]byte, error)
}

// ExportResult captures a written export file.
type ExportResult struct {
	Path   string        `json:"path"`
	Format export.Format `json:"format"`
	Rows   int           `json:"rows"`
}

// ExportService renders record listings and transcripts into files.
type ExportService struct {
	store       snapshotStore
	transcripts transcriptSource
	storage     fileStorage
	csv         csvRenderer
	pdf         pdfRenderer
	metrics     *MetricsService
	logger      *zap.Logger
	now         func() time.Time
}

// NewExportService constructs an ExportService. Nil renderers default to the
// export package implementations.
func NewExportService(store snapshotStore, transcripts transcriptSource, storage fileStorage, metrics *MetricsService, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		store:       store,
		transcripts: transcripts,
		storage:     storage,
		csv:         csv,
		pdf:         pdf,
		metrics:     metrics,
		logger:      logger,
		now:         time.Now,
	}
}

// Export writes one record collection in the requested format.
func (s *ExportService) Export(ctx context.Context, kind ExportKind, format export.Format) (*ExportResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	snapshot := s.store.Snapshot()

	var dataset export.Dataset
	switch kind {
	case ExportStudents:
		dataset = studentDataset(snapshot.Students)
	case ExportCourses:
		dataset = courseDataset(snapshot.Courses)
	case ExportEnrollments:
		dataset = enrollmentDataset(snapshot.Enrollments)
	default:
		return nil, appErrors.Clonef(appErrors.ErrValidation, "unknown export %q", kind)
	}

	var payload []byte
	var err error
	switch format {
	case export.FormatCSV:
		payload, err = s.csv.Render(dataset)
	case export.FormatPDF:
		payload, err = s.pdf.Render(dataset)
	default:
		return nil, appErrors.Clonef(appErrors.ErrValidation, "%s cannot be exported as %s", kind, format)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, "failed to render export")
	}
	result, err := s.write(string(kind), format, payload)
	if err != nil {
		return nil, err
	}
	result.Rows = len(dataset.Rows)
	s.metrics.ObservePersistence("export", time.Since(start))
	s.logger.Info("export written", zap.String("kind", string(kind)), zap.String("path", result.Path), zap.Int("rows", result.Rows))
	return result, nil
}

// ExportTranscript writes a student's transcript as PDF or plain text.
func (s *ExportService) ExportTranscript(ctx context.Context, studentID string, format export.Format) (*ExportResult, error) {
	start := time.Now()
	transcript, err := s.transcripts.Transcript(ctx, studentID)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch format {
	case export.FormatText:
		payload = []byte(RenderTranscript(transcript))
	case export.FormatPDF:
		payload, err = s.pdf.RenderDocument(transcriptDocument(transcript))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, "failed to render transcript")
		}
	default:
		return nil, appErrors.Clonef(appErrors.ErrValidation, "transcripts cannot be exported as %s", format)
	}
	result, err := s.write("transcript_"+sanitizeFilename(studentID), format, payload)
	if err != nil {
		return nil, err
	}
	result.Rows = len(transcript.Terms)
	s.metrics.ObservePersistence("export", time.Since(start))
	s.logger.Info("transcript exported", zap.String("student_id", studentID), zap.String("path", result.Path))
	return result, nil
}

// Cleanup removes export files older than ttl.
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) write(base string, format export.Format, payload []byte) (*ExportResult, error) {
	filename := fmt.Sprintf("%s_%s%s", base, s.now().UTC().Format("20060102_150405"), format.Extension())
	path, err := s.storage.Save(filename, payload)
	if err != nil {
		s.logger.Error("export write failed", zap.String("file", filename), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, "failed to store export")
	}
	return &ExportResult{Path: path, Format: format}, nil
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func studentDataset(students []models.Student) export.Dataset {
	sortStudents(students)
	rows := make([]map[string]string, 0, len(students))
	for _, st := range students {
		rows = append(rows, map[string]string{
			"ID":       st.ID,
			"Name":     st.FullName(),
			"Email":    st.Email,
			"Phone":    st.Phone,
			"Enrolled": formatDate(st.EnrollmentDate),
			"Status":   st.Status.DisplayName(),
			"Courses":  strconv.Itoa(len(st.EnrollmentIDs)),
		})
	}
	return export.Dataset{
		Title:   "Students",
		Headers: []string{"ID", "Name", "Email", "Phone", "Enrolled", "Status", "Courses"},
		Rows:    rows,
		Footer:  []string{fmt.Sprintf("Total students: %d", len(rows))},
	}
}

func courseDataset(courses []models.Course) export.Dataset {
	sortCourses(courses)
	rows := make([]map[string]string, 0, len(courses))
	for _, c := range courses {
		rows = append(rows, map[string]string{
			"Code":          c.Code,
			"Name":          c.Name,
			"Credits":       strconv.Itoa(c.Credits),
			"Department":    c.Department,
			"Instructor":    c.Instructor,
			"Status":        c.Status.DisplayName(),
			"Prerequisites": strings.Join(c.Prerequisites, ";"),
		})
	}
	return export.Dataset{
		Title:   "Courses",
		Headers: []string{"Code", "Name", "Credits", "Department", "Instructor", "Status", "Prerequisites"},
		Rows:    rows,
		Footer:  []string{fmt.Sprintf("Total courses: %d", len(rows))},
	}
}

func enrollmentDataset(enrollments []models.Enrollment) export.Dataset {
	sortEnrollments(enrollments)
	rows := make([]map[string]string, 0, len(enrollments))
	for _, e := range enrollments {
		rows = append(rows, map[string]string{
			"Enrollment": e.ID,
			"Student":    e.Student.FullName(),
			"Course":     e.Course.Code,
			"Semester":   e.Semester.String(),
			"Grade":      e.Grade.String(),
			"Status":     e.Status.DisplayName(),
		})
	}
	return export.Dataset{
		Title:   "Enrollments",
		Headers: []string{"Enrollment", "Student", "Course", "Semester", "Grade", "Status"},
		Rows:    rows,
		Footer:  []string{fmt.Sprintf("Total enrollments: %d", len(rows))},
	}
}

func transcriptDocument(t *models.Transcript) export.Document {
	doc := export.Document{
		Title: "Official Transcript",
		Subtitle: []string{
			fmt.Sprintf("%s (%s)", t.Student.FullName(), t.Student.ID),
			"Enrollment Date: " + formatDate(t.Student.EnrollmentDate),
		},
		Summary: []string{
			fmt.Sprintf("Overall GPA: %.2f", t.CumulativeGPA),
			fmt.Sprintf("Total Credits Earned: %d", t.TotalCreditsEarned),
		},
	}
	headers := []string{"Code", "Course", "Credits", "Grade", "Status"}
	for _, term := range t.Terms {
		rows := make([]map[string]string, 0, len(term.Lines))
		for _, line := range term.Lines {
			rows = append(rows, map[string]string{
				"Code":    line.CourseCode,
				"Course":  line.CourseName,
				"Credits": strconv.Itoa(line.Credits),
				"Grade":   line.Grade.String(),
				"Status":  line.Status.DisplayName(),
			})
		}
		doc.Sections = append(doc.Sections, export.Section{
			Heading: fmt.Sprintf("%s %d", term.Semester.Season.DisplayName(), term.Semester.Year),
			Data: export.Dataset{
				Headers: headers,
				Rows:    rows,
				Footer:  []string{fmt.Sprintf("Semester GPA: %.2f", term.GPA)},
			},
		})
	}
	return doc
}
