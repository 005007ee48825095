package service

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	appErrors "github.com/noah-isme/campus-records/pkg/errors"
)

// OperationRecorder receives the outcome of every engine operation.
type OperationRecorder interface {
	RecordOperation(operation string, err error, duration time.Duration)
}

// StoreCounter reports the size of the record store.
type StoreCounter interface {
	Counts() (students, courses, enrollments int)
}

// MetricsSnapshot is a plain view of the collected metrics for display.
type MetricsSnapshot struct {
	Operations    map[string]uint64 `json:"operations"`
	Failures      map[string]uint64 `json:"failures"`
	CacheHits     uint64            `json:"cache_hits"`
	CacheMisses   uint64            `json:"cache_misses"`
	CacheHitRatio float64           `json:"cache_hit_ratio"`
	Students      int               `json:"students"`
	Courses       int               `json:"courses"`
	Enrollments   int               `json:"enrollments"`
}

// MetricsService encapsulates Prometheus instrumentation of the record engine.
type MetricsService struct {
	registry            *prometheus.Registry
	operationTotal      *prometheus.CounterVec
	operationDuration   *prometheus.HistogramVec
	persistenceDuration *prometheus.HistogramVec
	cacheLatency        prometheus.Observer
	cacheWrite          prometheus.Observer
	cacheHitRatio       prometheus.Gauge
	cacheHits           prometheus.Counter
	cacheMisses         prometheus.Counter
	store               StoreCounter

	cacheHitCount  uint64
	cacheMissCount uint64

	mu         sync.Mutex
	operations map[string]uint64
	failures   map[string]uint64
}

// NewMetricsService registers the engine collectors. store may be nil.
func NewMetricsService(store StoreCounter) *MetricsService {
	registry := prometheus.NewRegistry()

	operationTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ccrm_operations_total",
		Help: "Total engine operations by outcome code",
	}, []string{"operation", "outcome"})

	operationDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ccrm_operation_duration_seconds",
		Help:    "Duration of engine operations in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	persistenceDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ccrm_persistence_duration_seconds",
		Help:    "Duration of load, save, backup and export runs",
		Buckets: prometheus.DefBuckets,
	}, []string{"action"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ccrm_cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ccrm_cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ccrm_cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ccrm_cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ccrm_cache_misses_total",
		Help: "Total cache misses",
	})

	registry.MustRegister(operationTotal, operationDuration, persistenceDuration, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses)

	m := &MetricsService{
		registry:            registry,
		operationTotal:      operationTotal,
		operationDuration:   operationDuration,
		persistenceDuration: persistenceDuration,
		cacheLatency:        cacheLatency,
		cacheWrite:          cacheWrite,
		cacheHitRatio:       cacheHitRatio,
		cacheHits:           cacheHits,
		cacheMisses:         cacheMisses,
		store:               store,
		operations:          make(map[string]uint64),
		failures:            make(map[string]uint64),
	}

	if store != nil {
		for _, name := range []string{"students", "courses", "enrollments"} {
			name := name
			registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Name:        "ccrm_records",
				Help:        "Number of records held in the store",
				ConstLabels: prometheus.Labels{"collection": name},
			}, func() float64 {
				students, courses, enrollments := store.Counts()
				switch name {
				case "students":
					return float64(students)
				case "courses":
					return float64(courses)
				default:
					return float64(enrollments)
				}
			}))
		}
	}

	return m
}

// Registry exposes the underlying registry.
func (m *MetricsService) Registry() *prometheus.Registry {
	return m.registry
}

// RecordOperation counts an engine operation under its outcome code.
func (m *MetricsService) RecordOperation(operation string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "OK"
	if err != nil {
		outcome = appErrors.FromError(err).Code
	}
	m.operationTotal.WithLabelValues(operation, outcome).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())

	m.mu.Lock()
	m.operations[operation]++
	if err != nil {
		m.failures[operation]++
	}
	m.mu.Unlock()
}

// ObservePersistence records the duration of a collaborator run.
func (m *MetricsService) ObservePersistence(action string, duration time.Duration) {
	if m == nil {
		return
	}
	m.persistenceDuration.WithLabelValues(action).Observe(duration.Seconds())
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	if m.cacheLatency != nil {
		m.cacheLatency.Observe(duration.Seconds())
	}
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	total := hits + misses
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil || m.cacheWrite == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// Snapshot returns aggregated metrics suitable for display.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)

	snap := MetricsSnapshot{
		Operations:  make(map[string]uint64),
		Failures:    make(map[string]uint64),
		CacheHits:   hits,
		CacheMisses: misses,
	}
	if total := hits + misses; total > 0 {
		snap.CacheHitRatio = float64(hits) / float64(total)
	}

	m.mu.Lock()
	for k, v := range m.operations {
		snap.Operations[k] = v
	}
	for k, v := range m.failures {
		snap.Failures[k] = v
	}
	m.mu.Unlock()

	if m.store != nil {
		snap.Students, snap.Courses, snap.Enrollments = m.store.Counts()
	}
	return snap
}

// OperationNames lists recorded operation names in sorted order.
func (s MetricsSnapshot) OperationNames() []string {
	names := make([]string, 0, len(s.Operations))
	for name := range s.Operations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WriteTextfile dumps the registry in the Prometheus text format, for the
// node exporter textfile collector.
func (m *MetricsService) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("prepare metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
