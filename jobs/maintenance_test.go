package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

type fakeCleaner struct {
	retention time.Duration
	removed   int64
	err       error
}

func (c *fakeCleaner) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	c.retention = olderThan
	return c.removed, c.err
}

type fakeWarmer struct {
	calls    int
	deadline bool
	err      error
}

func (w *fakeWarmer) Warm(ctx context.Context) error {
	w.calls++
	_, w.deadline = ctx.Deadline()
	return w.err
}

func TestIdempotencyCleanupRetention(t *testing.T) {
	cleaner := &fakeCleaner{removed: 4}
	job := &IdempotencyCleanupJob{Store: cleaner, Retention: 24 * time.Hour}
	ctx := context.Background()

	require.NoError(t, job.Handle(ctx, asynq.NewTask(TaskIdempotencyCleanup, nil)))
	require.Equal(t, 24*time.Hour, cleaner.retention)

	task, err := NewIdempotencyCleanupTask(time.Hour)
	require.NoError(t, err)
	require.NoError(t, job.Handle(ctx, task))
	require.Equal(t, time.Hour, cleaner.retention)

	job.Retention = 0
	require.NoError(t, job.Handle(ctx, asynq.NewTask(TaskIdempotencyCleanup, nil)))
	require.Equal(t, DefaultIdempotencyRetention, cleaner.retention)
}

func TestIdempotencyCleanupErrors(t *testing.T) {
	boom := errors.New("db down")
	job := &IdempotencyCleanupJob{Store: &fakeCleaner{err: boom}}
	require.ErrorIs(t, job.Handle(context.Background(), asynq.NewTask(TaskIdempotencyCleanup, nil)), boom)
	require.ErrorIs(t, job.Handle(context.Background(), asynq.NewTask(TaskIdempotencyCleanup, []byte("nope"))), asynq.SkipRetry)

	var unconfigured *IdempotencyCleanupJob
	require.ErrorIs(t, unconfigured.Handle(context.Background(), asynq.NewTask(TaskIdempotencyCleanup, nil)), asynq.SkipRetry)
}

func TestReportsWarmup(t *testing.T) {
	warmer := &fakeWarmer{}
	job := &ReportsWarmupJob{Reports: warmer}

	require.NoError(t, job.Handle(context.Background(), NewReportsWarmupTask()))
	require.Equal(t, 1, warmer.calls)
	require.True(t, warmer.deadline)

	warmer.err = errors.New("redis down")
	require.ErrorContains(t, job.Handle(context.Background(), NewReportsWarmupTask()), "redis down")
}
