package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/campus-records/pkg/errors"
)

type stubCacheRepo struct {
	store    map[string][]byte
	patterns []string
	err      error
}

func (s *stubCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	if s.err != nil {
		return s.err
	}
	if s.store == nil {
		return appErrors.ErrCacheMiss
	}
	payload, ok := s.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(payload, dest)
}

func (s *stubCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	if s.err != nil {
		return s.err
	}
	if s.store == nil {
		s.store = make(map[string][]byte)
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.store[key] = payload
	return nil
}

func (s *stubCacheRepo) DeleteByPattern(_ context.Context, pattern string) error {
	if s.err != nil {
		return s.err
	}
	s.patterns = append(s.patterns, pattern)
	s.store = nil
	return nil
}

func TestCacheServiceHitAndMiss(t *testing.T) {
	repo := &stubCacheRepo{}
	metrics := NewMetricsService(nil)
	cache := NewCacheService(repo, metrics, time.Minute, zap.NewNop(), true)
	ctx := context.Background()

	var out map[string]int
	hit, err := cache.Get(ctx, "k", &out)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, cache.Set(ctx, "k", map[string]int{"a": 1}, 0))
	hit, err = cache.Get(ctx, "k", &out)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, out["a"])

	snap := metrics.Snapshot()
	assert.Equal(t, uint64(1), snap.CacheHits)
	assert.Equal(t, uint64(1), snap.CacheMisses)
	assert.InDelta(t, 0.5, snap.CacheHitRatio, 1e-9)

	require.NoError(t, cache.Invalidate(ctx, "*"))
	hit, _ = cache.Get(ctx, "k", &out)
	assert.False(t, hit)
}

func TestCacheServiceDisabled(t *testing.T) {
	var nilCache *CacheService
	assert.False(t, nilCache.Enabled())
	hit, err := nilCache.Get(context.Background(), "k", &struct{}{})
	assert.NoError(t, err)
	assert.False(t, hit)
	assert.NoError(t, nilCache.Set(context.Background(), "k", 1, 0))

	off := NewCacheService(&stubCacheRepo{}, nil, 0, nil, false)
	assert.False(t, off.Enabled())
}

func TestCacheServiceSurfacesBackendErrors(t *testing.T) {
	repo := &stubCacheRepo{err: assert.AnError}
	cache := NewCacheService(repo, nil, time.Minute, nil, true)

	hit, err := cache.Get(context.Background(), "k", &struct{}{})
	assert.False(t, hit)
	assert.ErrorIs(t, err, assert.AnError)
	assert.ErrorIs(t, cache.Set(context.Background(), "k", 1, 0), assert.AnError)
}

func TestVersionedKey(t *testing.T) {
	assert.Equal(t, "stats:e1:v3", VersionedKey("stats", "e1", 3))
	assert.Equal(t, "transcript:e1:v7:ST1", VersionedKey("transcript", "e1", 7, "ST1"))
	assert.NotEqual(t, VersionedKey("stats", "e1", 1), VersionedKey("stats", "e2", 1))
}
