package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/stockline/stockline/internal/jobs"
)

// DefaultIdempotencyRetention applies when neither config nor payload set one.
const DefaultIdempotencyRetention = 72 * time.Hour

// IdempotencyCleaner removes expired idempotency keys.
type IdempotencyCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

// IdempotencyCleanupJob purges checkout idempotency keys past retention.
type IdempotencyCleanupJob struct {
	Store     IdempotencyCleaner
	Retention time.Duration
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// Handle processes maintenance:idempotency-cleanup tasks.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Store == nil {
		return fmt.Errorf("jobs: idempotency cleanup not configured: %w", asynq.SkipRetry)
	}
	retention := j.Retention
	if len(t.Payload()) > 0 {
		var payload IdempotencyCleanupPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("jobs: decode cleanup payload: %w", asynq.SkipRetry)
		}
		if payload.Retention > 0 {
			retention = payload.Retention
		}
	}
	if retention <= 0 {
		retention = DefaultIdempotencyRetention
	}

	tracker := j.Metrics.Track(TaskIdempotencyCleanup)
	defer func() { err = tracker.End(err) }()

	removed, err := j.Store.Cleanup(ctx, retention)
	if err != nil {
		return err
	}
	loggerFor(j.Logger, TaskIdempotencyCleanup).Info("idempotency keys purged",
		slog.Int64("removed", removed),
		slog.Duration("retention", retention))
	return nil
}

// Warmer precomputes cached projections.
type Warmer interface {
	Warm(ctx context.Context) error
}

// ReportsWarmupJob keeps the dashboard cache hot.
type ReportsWarmupJob struct {
	Reports Warmer
	Timeout time.Duration
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// Handle processes reports:warmup tasks.
func (j *ReportsWarmupJob) Handle(ctx context.Context, _ *asynq.Task) (err error) {
	if j == nil || j.Reports == nil {
		return fmt.Errorf("jobs: reports warmup not configured: %w", asynq.SkipRetry)
	}
	tracker := j.Metrics.Track(TaskReportsWarmup)
	defer func() { err = tracker.End(err) }()

	timeout := j.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	if err := j.Reports.Warm(ctx); err != nil {
		return err
	}
	loggerFor(j.Logger, TaskReportsWarmup).Info("reports warmed", slog.Duration("duration", time.Since(start)))
	return nil
}
