package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-records/internal/models"
	"github.com/noah-isme/campus-records/internal/repository"
	appErrors "github.com/noah-isme/campus-records/pkg/errors"
	"github.com/noah-isme/campus-records/pkg/jobs"
)

type fakeRecordRepo struct {
	mu          sync.Mutex
	students    []models.Student
	courses     []models.Course
	enrollments []models.EnrollmentRecord
	loadErr     error
	saveErr     error
	saved       []models.Snapshot
}

func (f *fakeRecordRepo) LoadStudents(context.Context) ([]models.Student, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.students, nil
}

func (f *fakeRecordRepo) LoadCourses(context.Context) ([]models.Course, error) {
	return f.courses, nil
}

func (f *fakeRecordRepo) LoadEnrollments(context.Context) ([]models.EnrollmentRecord, error) {
	return f.enrollments, nil
}

func (f *fakeRecordRepo) Save(_ context.Context, snapshot models.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, snapshot)
	return nil
}

func (f *fakeRecordRepo) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

func sampleRepo() *fakeRecordRepo {
	return &fakeRecordRepo{
		students: []models.Student{{ID: "ST1", FirstName: "Ada", LastName: "Lovelace", Status: models.StudentStatusActive}},
		courses:  []models.Course{{Code: "CS101", Name: "Programming", Credits: 3, Status: models.CourseStatusActive}},
		enrollments: []models.EnrollmentRecord{{
			ID:         models.EnrollmentID("ST1", "CS101", fall2023),
			StudentID:  "ST1",
			CourseCode: "CS101",
			Semester:   fall2023,
			Grade:      models.GradeA,
			Status:     models.EnrollmentStatusCompleted,
		}},
	}
}

func TestPersistenceServiceLoad(t *testing.T) {
	store := repository.NewStore()
	svc := NewPersistenceService(store, sampleRepo(), NewMetricsService(store), zap.NewNop())

	snapshot, err := svc.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, snapshot.Enrollments, 1)

	students, courses, enrollments := store.Counts()
	assert.Equal(t, [3]int{1, 1, 1}, [3]int{students, courses, enrollments})

	loaded := store.Snapshot()
	assert.Equal(t, []string{"ST1_CS101_FALL_2023"}, loaded.Students[0].EnrollmentIDs)
	assert.Equal(t, 4.0, loaded.Students[0].GPAHistory["FALL 2023"])
}

func TestPersistenceServiceLoadLeavesStoreOnBrokenData(t *testing.T) {
	store := repository.NewStore()
	require.NoError(t, store.Update(context.Background(), func(tx *repository.Tx) error {
		return tx.PutStudent(models.Student{ID: "KEEP1", FirstName: "Kept", LastName: "Record"})
	}))
	version := store.Version()

	repo := sampleRepo()
	repo.enrollments[0].CourseCode = "CS999"
	repo.enrollments[0].ID = models.EnrollmentID("ST1", "CS999", fall2023)
	svc := NewPersistenceService(store, repo, nil, nil)

	_, err := svc.Load(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Equal(t, version, store.Version())
	assert.Equal(t, "KEEP1", store.Snapshot().Students[0].ID)

	repo = sampleRepo()
	repo.loadErr = errors.New("bad row")
	_, err = NewPersistenceService(store, repo, nil, nil).Load(context.Background())
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestPersistenceServiceSave(t *testing.T) {
	e := newTestEngine(t)
	e.addStudent(t, "ST1", "Ada", "Lovelace")
	repo := &fakeRecordRepo{}
	svc := NewPersistenceService(e.store, repo, nil, nil)

	require.NoError(t, svc.Save(context.Background()))
	require.Len(t, repo.saved, 1)
	assert.Len(t, repo.saved[0].Students, 1)

	repo.saveErr = errors.New("disk full")
	err := svc.Save(context.Background())
	assert.True(t, errors.Is(err, appErrors.ErrInternal))
}

func TestPersistenceServiceScheduleSaveThroughQueue(t *testing.T) {
	store := repository.NewStore()
	repo := &fakeRecordRepo{}
	svc := NewPersistenceService(store, repo, nil, nil)

	// Without a queue the save runs inline.
	require.NoError(t, svc.ScheduleSave(context.Background()))
	assert.Equal(t, 1, repo.saveCount())

	queue := jobs.NewQueue("autosave", svc.Handle, jobs.QueueConfig{Workers: 1, RetryDelay: time.Millisecond})
	queue.Start(context.Background())
	t.Cleanup(queue.Stop)
	svc.UseQueue(queue)

	require.NoError(t, svc.ScheduleSave(context.Background()))
	require.NoError(t, svc.ScheduleSave(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, queue.Flush(ctx))
	assert.Equal(t, 3, repo.saveCount())
}

func TestPersistenceServiceHandleIgnoresUnknownJobs(t *testing.T) {
	repo := &fakeRecordRepo{}
	svc := NewPersistenceService(repository.NewStore(), repo, nil, nil)

	require.NoError(t, svc.Handle(context.Background(), jobs.Job{ID: "1", Type: "report"}))
	assert.Equal(t, 0, repo.saveCount())
}
