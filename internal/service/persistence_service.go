package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-records/internal/models"
	appErrors "github.com/noah-isme/campus-records/pkg/errors"
	"github.com/noah-isme/campus-records/pkg/jobs"
)

// AutosaveJobType tags the queue jobs produced by ScheduleSave.
const AutosaveJobType = "autosave"

// RecordRepository loads and saves the complete record set.
type RecordRepository interface {
	LoadStudents(ctx context.Context) ([]models.Student, error)
	LoadCourses(ctx context.Context) ([]models.Course, error)
	LoadEnrollments(ctx context.Context) ([]models.EnrollmentRecord, error)
	Save(ctx context.Context, snapshot models.Snapshot) error
}

type snapshotStore interface {
	Snapshot() models.Snapshot
	Replace(snapshot models.Snapshot)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) (bool, error)
}

// PersistenceService moves the record store to and from a RecordRepository.
type PersistenceService struct {
	store   snapshotStore
	repo    RecordRepository
	queue   jobDispatcher
	metrics *MetricsService
	logger  *zap.Logger
}

// NewPersistenceService constructs the persistence service.
func NewPersistenceService(store snapshotStore, repo RecordRepository, metrics *MetricsService, logger *zap.Logger) *PersistenceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PersistenceService{store: store, repo: repo, metrics: metrics, logger: logger}
}

// UseQueue routes ScheduleSave through queue instead of saving inline.
func (s *PersistenceService) UseQueue(queue jobDispatcher) {
	s.queue = queue
}

// Load replaces the store content with the repository content. References
// are resolved and back-references rebuilt before the store is touched, so
// a broken data set leaves the store as it was.
func (s *PersistenceService) Load(ctx context.Context) (*models.Snapshot, error) {
	start := time.Now()
	snapshot, err := loadSnapshot(ctx, s.repo)
	if err != nil {
		s.logger.Error("load records failed", zap.Error(err))
		return nil, err
	}
	s.store.Replace(snapshot)
	s.metrics.ObservePersistence("load", time.Since(start))
	s.logger.Info("records loaded",
		zap.Int("students", len(snapshot.Students)),
		zap.Int("courses", len(snapshot.Courses)),
		zap.Int("enrollments", len(snapshot.Enrollments)),
		zap.Duration("duration", time.Since(start)),
	)
	return &snapshot, nil
}

func loadSnapshot(ctx context.Context, repo RecordRepository) (models.Snapshot, error) {
	students, err := repo.LoadStudents(ctx)
	if err != nil {
		return models.Snapshot{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, "failed to load students")
	}
	courses, err := repo.LoadCourses(ctx)
	if err != nil {
		return models.Snapshot{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, "failed to load courses")
	}
	records, err := repo.LoadEnrollments(ctx)
	if err != nil {
		return models.Snapshot{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, "failed to load enrollments")
	}
	return linkRecords(students, courses, records)
}

// Save writes a snapshot of the store to the repository.
func (s *PersistenceService) Save(ctx context.Context) error {
	start := time.Now()
	snapshot := s.store.Snapshot()
	if err := s.repo.Save(ctx, snapshot); err != nil {
		s.logger.Error("save records failed", zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, "failed to save records")
	}
	s.metrics.ObservePersistence("save", time.Since(start))
	s.logger.Debug("records saved",
		zap.Int("students", len(snapshot.Students)),
		zap.Int("courses", len(snapshot.Courses)),
		zap.Int("enrollments", len(snapshot.Enrollments)),
	)
	return nil
}

// ScheduleSave queues an autosave, or saves inline when no queue is attached.
func (s *PersistenceService) ScheduleSave(ctx context.Context) error {
	if s.queue == nil {
		return s.Save(ctx)
	}
	coalesced, err := s.queue.Enqueue(jobs.Job{Type: AutosaveJobType, Key: AutosaveJobType})
	if err != nil {
		s.logger.Warn("autosave enqueue failed", zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, "failed to schedule save")
	}
	if coalesced {
		s.logger.Debug("autosave already pending")
	}
	return nil
}

// Handle processes an autosave queue job.
func (s *PersistenceService) Handle(ctx context.Context, job jobs.Job) error {
	if job.Type != AutosaveJobType {
		s.logger.Warn("unexpected job type", zap.String("job_id", job.ID), zap.String("type", job.Type))
		return nil
	}
	return s.Save(ctx)
}
