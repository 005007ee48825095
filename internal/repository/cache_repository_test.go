package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/campus-records/pkg/errors"
)

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, "ccrm", nil)
	ctx := context.Background()

	var dest map[string]int
	err := repo.Get(ctx, "stats", &dest)
	assert.True(t, errors.Is(err, appErrors.ErrCacheMiss))

	require.NoError(t, repo.Set(ctx, "stats", map[string]int{"total": 1}, time.Minute))
	require.NoError(t, repo.DeleteByPattern(ctx, "*"))
	require.NoError(t, repo.Close())
}

func TestCacheRepositoryKeyPrefix(t *testing.T) {
	assert.Equal(t, "ccrm:stats:v3", NewCacheRepository(nil, "ccrm", nil).namespaced("stats:v3"))
	assert.Equal(t, "stats:v3", NewCacheRepository(nil, "", nil).namespaced("stats:v3"))
}
