package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueProcessesJobs(t *testing.T) {
	var processed int32
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&processed, 1)
		assert.NotEmpty(t, job.ID)
		return nil
	}, QueueConfig{Workers: 2})
	q.Start(context.Background())
	defer q.Stop()

	for i := 0; i < 5; i++ {
		_, err := q.Enqueue(Job{Type: "save"})
		require.NoError(t, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, q.Flush(ctx))
	assert.Equal(t, int32(5), atomic.LoadInt32(&processed))
	assert.Zero(t, q.Pending())
}

func TestQueueRetriesFailedJobs(t *testing.T) {
	var attempts int32
	q := NewQueue("retry", func(ctx context.Context, job Job) error {
		if atomic.AddInt32(&attempts, 1) < 3 {
			return errors.New("transient")
		}
		return nil
	}, QueueConfig{MaxRetries: 3, RetryDelay: 5 * time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	_, err := q.Enqueue(Job{Type: "save"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, q.Flush(ctx))
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestQueueGivesUpAfterMaxRetries(t *testing.T) {
	var attempts int32
	q := NewQueue("fail", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&attempts, 1)
		return errors.New("permanent")
	}, QueueConfig{MaxRetries: 1, RetryDelay: time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	_, err := q.Enqueue(Job{Type: "save"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, q.Flush(ctx))
	assert.Equal(t, int32(2), atomic.LoadInt32(&attempts))
}

func TestQueueRejectsBeforeStart(t *testing.T) {
	q := NewQueue("idle", func(ctx context.Context, job Job) error { return nil }, QueueConfig{})
	_, err := q.Enqueue(Job{Type: "save"})
	require.Error(t, err)
	assert.Zero(t, q.Pending())
}

func TestQueueCoalescesWaitingKeys(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 4)
	var processed int32
	q := NewQueue("coalesce", func(ctx context.Context, job Job) error {
		started <- struct{}{}
		<-release
		atomic.AddInt32(&processed, 1)
		return nil
	}, QueueConfig{Workers: 1})
	q.Start(context.Background())
	defer q.Stop()

	_, err := q.Enqueue(Job{Type: "save", Key: "records"})
	require.NoError(t, err)
	<-started

	// The first job is running, so exactly one more may wait behind it.
	coalesced, err := q.Enqueue(Job{Type: "save", Key: "records"})
	require.NoError(t, err)
	assert.False(t, coalesced)
	for i := 0; i < 3; i++ {
		coalesced, err = q.Enqueue(Job{Type: "save", Key: "records"})
		require.NoError(t, err)
		assert.True(t, coalesced)
	}
	assert.Equal(t, 2, q.Pending())

	close(release)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, q.Flush(ctx))
	assert.Equal(t, int32(2), atomic.LoadInt32(&processed))
}

func TestQueueFlushHonoursContext(t *testing.T) {
	block := make(chan struct{})
	q := NewQueue("slow", func(ctx context.Context, job Job) error {
		select {
		case <-block:
		case <-ctx.Done():
		}
		return nil
	}, QueueConfig{})
	q.Start(context.Background())
	defer func() {
		close(block)
		q.Stop()
	}()

	_, err := q.Enqueue(Job{Type: "save"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.Error(t, q.Flush(ctx))
}
