package outbox

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"ms-booking/internal/models"
	"ms-booking/internal/utils"
)

const DefaultMaxAttempts = 5

// Outbox is the durable queue of pending notifications. The ledger enqueues;
// the external delivery worker consumes through FetchPending/MarkSent/
// MarkFailed. Rows are never deleted.
type Outbox struct {
	Bun         *bun.DB
	MaxAttempts int
}

func New(bunDB *bun.DB, maxAttempts int) *Outbox {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Outbox{Bun: bunDB, MaxAttempts: maxAttempts}
}

// Enqueue inserts a pending task. Transition side effects go through the
// ledger transaction instead; this path serves enqueues that have no status
// change to ride along with.
func (o *Outbox) Enqueue(ctx context.Context, channel models.NotificationChannel, recipient, subject, body string, metadata map[string]string) (*models.NotificationTask, error) {
	task := &models.NotificationTask{
		ID:        utils.GenerateTaskID(),
		Channel:   channel,
		Recipient: recipient,
		Subject:   subject,
		Body:      body,
		Metadata:  metadata,
		Status:    models.TaskPending,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := o.Bun.NewInsert().Model(task).Exec(ctx); err != nil {
		return nil, err
	}
	return task, nil
}

// FetchPending returns up to limit pending tasks, oldest first.
func (o *Outbox) FetchPending(ctx context.Context, limit int) ([]models.NotificationTask, error) {
	var tasks []models.NotificationTask
	err := o.Bun.NewSelect().
		Model(&tasks).
		Where("status = ?", models.TaskPending).
		Order("created_at ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

// MarkSent records a successful delivery.
func (o *Outbox) MarkSent(ctx context.Context, taskID string) error {
	_, err := o.Bun.NewUpdate().
		Model((*models.NotificationTask)(nil)).
		Set("status = ?", models.TaskSent).
		Set("attempts = attempts + 1").
		Where("id = ?", taskID).
		Exec(ctx)
	return err
}

// MarkFailed records a failed delivery attempt. Tasks that exhaust the
// attempt cap move to the failed (dead-letter) state and are never retried.
func (o *Outbox) MarkFailed(ctx context.Context, taskID string, deliveryErr error) error {
	msg := ""
	if deliveryErr != nil {
		msg = deliveryErr.Error()
	}

	// Dead-letter once the incremented attempt counter reaches the cap;
	// otherwise the task stays pending for the worker's next poll.
	_, err := o.Bun.NewUpdate().
		Model((*models.NotificationTask)(nil)).
		Set("attempts = attempts + 1").
		Set("last_error = ?", msg).
		Set("status = CASE WHEN attempts + 1 >= ? THEN ? ELSE ? END", o.MaxAttempts, models.TaskFailed, models.TaskPending).
		Where("id = ?", taskID).
		Exec(ctx)
	return err
}
