package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"github.com/stockline/stockline/internal/inventory"
	jobmetrics "github.com/stockline/stockline/internal/jobs"
)

// LowStockAlerter enqueues an alert for every sale that leaves a product below
// the threshold. It runs after commit as an inventory integration.
type LowStockAlerter struct {
	queue     Enqueuer
	threshold int
	metrics   *jobmetrics.Metrics
	logger    *slog.Logger
}

// NewLowStockAlerter constructs the alerter. metrics may be nil.
func NewLowStockAlerter(queue Enqueuer, threshold int, metrics *jobmetrics.Metrics, logger *slog.Logger) *LowStockAlerter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LowStockAlerter{queue: queue, threshold: threshold, metrics: metrics, logger: logger}
}

// HandleStockChanged implements inventory.IntegrationHandler.
func (a *LowStockAlerter) HandleStockChanged(ctx context.Context, evt inventory.StockChangedEvent) error {
	if a == nil || a.queue == nil || a.threshold <= 0 {
		return nil
	}
	var errs []error
	for _, mv := range evt.Movements {
		if mv.Delta >= 0 || mv.Remaining >= a.threshold {
			continue
		}
		task, err := NewLowStockAlertTask(LowStockAlertPayload{
			ProductID: mv.ProductID,
			Remaining: mv.Remaining,
			Threshold: a.threshold,
			Source:    evt.Source,
			Reference: evt.Reference,
			At:        evt.At,
		})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		opts := []asynq.Option{asynq.Queue(QueueDefault), asynq.MaxRetry(5)}
		if evt.Reference != "" {
			opts = append(opts, asynq.TaskID(fmt.Sprintf("low-stock:%s:%s", evt.Reference, mv.ProductID)))
		}
		_, err = a.queue.EnqueueContext(ctx, task, opts...)
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("jobs: enqueue low stock alert for %s: %w", mv.ProductID, err))
			continue
		}
		a.metrics.Enqueued(TaskLowStockAlert, 1)
		a.logger.Info("low stock alert queued",
			slog.String("product_id", mv.ProductID),
			slog.Int("remaining", mv.Remaining))
	}
	return errors.Join(errs...)
}

// ProductLookup resolves product details for the alert body.
type ProductLookup interface {
	Get(ctx context.Context, id string) (inventory.Product, error)
}

// LowStockAlertJob emails the configured recipients about a low stock product.
type LowStockAlertJob struct {
	Products   ProductLookup
	Mailer     Mailer
	Recipients []string
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
}

// Handle processes inventory:low-stock tasks.
func (j *LowStockAlertJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	var payload LowStockAlertPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.ProductID == "" {
		return fmt.Errorf("jobs: decode low stock payload: %w", asynq.SkipRetry)
	}
	tracker := j.Metrics.Track(TaskLowStockAlert)
	defer func() { err = tracker.End(err) }()

	logger := loggerFor(j.Logger, TaskLowStockAlert).With(slog.String("product_id", payload.ProductID))
	if len(j.Recipients) == 0 || j.Mailer == nil {
		logger.Warn("low stock alert dropped, no recipients configured")
		return nil
	}

	name := payload.ProductID
	if j.Products != nil {
		p, err := j.Products.Get(ctx, payload.ProductID)
		switch {
		case err == nil:
			name = p.Name
			// Restocked before the alert ran.
			if p.Stock >= payload.Threshold {
				logger.Info("low stock alert skipped, product restocked", slog.Int("stock", p.Stock))
				return nil
			}
			payload.Remaining = p.Stock
		case errors.Is(err, inventory.ErrProductNotFound):
			logger.Info("low stock alert skipped, product gone")
			return nil
		default:
			logger.Warn("load product for alert", slog.Any("error", err))
		}
	}

	msg := Message{
		To:      j.Recipients,
		Subject: fmt.Sprintf("Low stock: %s (%d left)", name, payload.Remaining),
		Body:    lowStockBody(name, payload),
	}
	if err := j.Mailer.Send(ctx, msg); err != nil {
		logger.Error("send low stock alert", slog.Any("error", err))
		return err
	}
	logger.Info("low stock alert sent", slog.Int("remaining", payload.Remaining))
	return nil
}

func lowStockBody(name string, p LowStockAlertPayload) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Product %s (%s) is below the low stock threshold.\n\n", name, p.ProductID)
	fmt.Fprintf(&b, "Remaining units: %d\n", p.Remaining)
	fmt.Fprintf(&b, "Threshold: %d\n", p.Threshold)
	if p.Reference != "" {
		fmt.Fprintf(&b, "Triggered by %s %s", p.Source, p.Reference)
		if !p.At.IsZero() {
			fmt.Fprintf(&b, " at %s", p.At.UTC().Format(time.RFC3339))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func loggerFor(logger *slog.Logger, job string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With(slog.String("job", job))
}
