package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueMaintenance carries cron driven housekeeping.
	QueueMaintenance = "maintenance"

	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskLowStockAlert notifies operators that a product is running out.
	TaskLowStockAlert = "inventory:low-stock"
	// TaskIdempotencyCleanup purges expired checkout idempotency keys.
	TaskIdempotencyCleanup = "maintenance:idempotency-cleanup"
	// TaskReportsWarmup precomputes report projections into the cache.
	TaskReportsWarmup = "reports:warmup"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// LowStockAlertPayload names the product whose stock fell below the threshold.
type LowStockAlertPayload struct {
	ProductID string    `json:"product_id"`
	Remaining int       `json:"remaining"`
	Threshold int       `json:"threshold"`
	Source    string    `json:"source"`
	Reference string    `json:"reference"`
	At        time.Time `json:"at"`
}

// IdempotencyCleanupPayload overrides the configured retention when positive.
type IdempotencyCleanupPayload struct {
	Retention time.Duration `json:"retention"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	return newTask(TaskTypeSendEmail, payload)
}

// NewLowStockAlertTask constructs the alert task for one product.
func NewLowStockAlertTask(payload LowStockAlertPayload) (*asynq.Task, error) {
	return newTask(TaskLowStockAlert, payload)
}

// NewIdempotencyCleanupTask constructs the cleanup task.
func NewIdempotencyCleanupTask(retention time.Duration) (*asynq.Task, error) {
	return newTask(TaskIdempotencyCleanup, IdempotencyCleanupPayload{Retention: retention})
}

// NewReportsWarmupTask constructs the warm-up task.
func NewReportsWarmupTask() *asynq.Task {
	return asynq.NewTask(TaskReportsWarmup, nil)
}

func newTask(typ string, payload any) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(typ, data), nil
}
