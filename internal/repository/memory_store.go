package repository

import (
	"context"
	"errors"
	"sync"

	"github.com/noah-isme/campus-records/internal/models"
)

// ErrReadOnlyTransaction is returned when a write is attempted inside View.
var ErrReadOnlyTransaction = errors.New("write attempted in read-only transaction")

// collection keeps values keyed by identifier in insertion order.
type collection[T any] struct {
	order []string
	items map[string]T
}

func newCollection[T any]() *collection[T] {
	return &collection[T]{items: make(map[string]T)}
}

// staged overlays pending writes on top of a committed collection.
type staged[T any] struct {
	base   *collection[T]
	writes map[string]T
	added  []string
	clone  func(T) T
}

func newStaged[T any](base *collection[T], clone func(T) T) *staged[T] {
	return &staged[T]{base: base, writes: make(map[string]T), clone: clone}
}

func (s *staged[T]) get(id string) (T, bool) {
	if v, ok := s.writes[id]; ok {
		return s.clone(v), true
	}
	v, ok := s.base.items[id]
	if !ok {
		var zero T
		return zero, false
	}
	return s.clone(v), true
}

func (s *staged[T]) put(id string, v T) {
	if _, ok := s.writes[id]; !ok {
		if _, exists := s.base.items[id]; !exists {
			s.added = append(s.added, id)
		}
	}
	s.writes[id] = s.clone(v)
}

func (s *staged[T]) list() []T {
	out := make([]T, 0, len(s.base.order)+len(s.added))
	for _, id := range s.base.order {
		v, _ := s.get(id)
		out = append(out, v)
	}
	for _, id := range s.added {
		out = append(out, s.clone(s.writes[id]))
	}
	return out
}

func (s *staged[T]) count() int {
	return len(s.base.order) + len(s.added)
}

func (s *staged[T]) dirty() bool {
	return len(s.writes) > 0
}

func (s *staged[T]) commit() {
	for id, v := range s.writes {
		s.base.items[id] = v
	}
	s.base.order = append(s.base.order, s.added...)
}

// Store is the in-memory record store shared by the engine services. One
// RWMutex guards students, courses and enrollments together so compound
// operations observe and mutate a consistent state.
type Store struct {
	mu          sync.RWMutex
	students    *collection[models.Student]
	courses     *collection[models.Course]
	enrollments *collection[models.Enrollment]
	version     uint64
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{
		students:    newCollection[models.Student](),
		courses:     newCollection[models.Course](),
		enrollments: newCollection[models.Enrollment](),
	}
}

// Tx exposes the collections to a transaction callback.
type Tx struct {
	ctx         context.Context
	readOnly    bool
	version     uint64
	students    *staged[models.Student]
	courses     *staged[models.Course]
	enrollments *staged[models.Enrollment]
}

func (s *Store) newTx(ctx context.Context, readOnly bool) *Tx {
	return &Tx{
		ctx:         ctx,
		readOnly:    readOnly,
		version:     s.version,
		students:    newStaged(s.students, models.Student.Clone),
		courses:     newStaged(s.courses, models.Course.Clone),
		enrollments: newStaged(s.enrollments, models.Enrollment.Clone),
	}
}

// Update runs fn under the write lock. Writes made through the transaction
// become visible only if fn returns nil.
func (s *Store) Update(ctx context.Context, fn func(tx *Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := s.newTx(ctx, false)
	if err := fn(tx); err != nil {
		return err
	}
	if !tx.students.dirty() && !tx.courses.dirty() && !tx.enrollments.dirty() {
		return nil
	}
	tx.students.commit()
	tx.courses.commit()
	tx.enrollments.commit()
	s.version++
	return nil
}

// View runs fn under the read lock.
func (s *Store) View(ctx context.Context, fn func(tx *Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.newTx(ctx, true))
}

// Version increments on every committed write.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Counts returns the size of each collection.
func (s *Store) Counts() (students, courses, enrollments int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.students.order), len(s.courses.order), len(s.enrollments.order)
}

// Snapshot returns a deep copy of every collection in insertion order.
func (s *Store) Snapshot() models.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx := s.newTx(context.Background(), true)
	return models.Snapshot{
		Students:    tx.students.list(),
		Courses:     tx.courses.list(),
		Enrollments: tx.enrollments.list(),
	}
}

// Replace swaps the content of the store for the snapshot.
func (s *Store) Replace(snapshot models.Snapshot) {
	students := newCollection[models.Student]()
	for _, v := range snapshot.Students {
		if _, ok := students.items[v.ID]; !ok {
			students.order = append(students.order, v.ID)
		}
		students.items[v.ID] = v.Clone()
	}
	courses := newCollection[models.Course]()
	for _, v := range snapshot.Courses {
		if _, ok := courses.items[v.Code]; !ok {
			courses.order = append(courses.order, v.Code)
		}
		courses.items[v.Code] = v.Clone()
	}
	enrollments := newCollection[models.Enrollment]()
	for _, v := range snapshot.Enrollments {
		if _, ok := enrollments.items[v.ID]; !ok {
			enrollments.order = append(enrollments.order, v.ID)
		}
		enrollments.items[v.ID] = v.Clone()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.students = students
	s.courses = courses
	s.enrollments = enrollments
	s.version++
}

// Context returns the context the transaction was started with.
func (tx *Tx) Context() context.Context {
	return tx.ctx
}

// Version returns the store version the transaction started from.
func (tx *Tx) Version() uint64 {
	return tx.version
}

// Student returns the student with the given identifier.
func (tx *Tx) Student(id string) (models.Student, bool) {
	return tx.students.get(id)
}

// Students lists students in insertion order.
func (tx *Tx) Students() []models.Student {
	return tx.students.list()
}

// StudentCount returns the number of students.
func (tx *Tx) StudentCount() int {
	return tx.students.count()
}

// PutStudent inserts or replaces a student.
func (tx *Tx) PutStudent(student models.Student) error {
	if tx.readOnly {
		return ErrReadOnlyTransaction
	}
	tx.students.put(student.ID, student)
	return nil
}

// Course returns the course with the given code.
func (tx *Tx) Course(code string) (models.Course, bool) {
	return tx.courses.get(code)
}

// Courses lists courses in insertion order.
func (tx *Tx) Courses() []models.Course {
	return tx.courses.list()
}

// CourseCount returns the number of courses.
func (tx *Tx) CourseCount() int {
	return tx.courses.count()
}

// PutCourse inserts or replaces a course.
func (tx *Tx) PutCourse(course models.Course) error {
	if tx.readOnly {
		return ErrReadOnlyTransaction
	}
	tx.courses.put(course.Code, course)
	return nil
}

// Enrollment returns the enrollment with the given identifier.
func (tx *Tx) Enrollment(id string) (models.Enrollment, bool) {
	return tx.enrollments.get(id)
}

// Enrollments lists enrollments in insertion order.
func (tx *Tx) Enrollments() []models.Enrollment {
	return tx.enrollments.list()
}

// EnrollmentsWhere lists enrollments matching the filter in insertion order.
func (tx *Tx) EnrollmentsWhere(filter models.EnrollmentFilter) []models.Enrollment {
	all := tx.enrollments.list()
	out := all[:0]
	for _, e := range all {
		if filter.Matches(e) {
			out = append(out, e)
		}
	}
	return out
}

// EnrollmentCount returns the number of enrollments.
func (tx *Tx) EnrollmentCount() int {
	return tx.enrollments.count()
}

// PutEnrollment inserts or replaces an enrollment.
func (tx *Tx) PutEnrollment(enrollment models.Enrollment) error {
	if tx.readOnly {
		return ErrReadOnlyTransaction
	}
	tx.enrollments.put(enrollment.ID, enrollment)
	return nil
}
