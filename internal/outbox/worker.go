package outbox

import (
	"context"
	"fmt"
	"time"

	"ms-booking/internal/logger"
	"ms-booking/internal/models"
)

// Sender delivers one notification over its channel.
type Sender interface {
	Send(ctx context.Context, task models.NotificationTask) error
}

// Worker polls the outbox and hands pending tasks to the sender. Delivery
// outcomes go back through MarkSent/MarkFailed so the attempt cap is enforced
// in the store, not here.
type Worker struct {
	Outbox    *Outbox
	Sender    Sender
	Interval  time.Duration
	BatchSize int
	Logger    *logger.Logger
}

func NewWorker(outbox *Outbox, sender Sender, interval time.Duration, batchSize int, log *logger.Logger) *Worker {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	return &Worker{
		Outbox:    outbox,
		Sender:    sender,
		Interval:  interval,
		BatchSize: batchSize,
		Logger:    log,
	}
}

// Run polls until the context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	w.Logger.Info("OUTBOX", fmt.Sprintf("worker started, polling every %s", w.Interval))
	for {
		select {
		case <-ctx.Done():
			w.Logger.Info("OUTBOX", "worker stopped")
			return
		case <-ticker.C:
			if err := w.DrainOnce(ctx); err != nil {
				w.Logger.Error("OUTBOX", fmt.Sprintf("poll failed: %v", err))
			}
		}
	}
}

// DrainOnce processes a single batch of pending tasks.
func (w *Worker) DrainOnce(ctx context.Context) error {
	tasks, err := w.Outbox.FetchPending(ctx, w.BatchSize)
	if err != nil {
		return err
	}

	for _, task := range tasks {
		if err := w.Sender.Send(ctx, task); err != nil {
			w.Logger.LogOutbox("RETRY", task.ID, fmt.Sprintf("delivery failed: %v", err))
			if markErr := w.Outbox.MarkFailed(ctx, task.ID, err); markErr != nil {
				return markErr
			}
			continue
		}
		if err := w.Outbox.MarkSent(ctx, task.ID); err != nil {
			return err
		}
		w.Logger.LogOutbox("SENT", task.ID, fmt.Sprintf("%s to %s", task.Channel, task.Recipient))
	}
	return nil
}

// LogSender is the default sender: it records the delivery instead of calling
// a real provider. Swapped for an SMTP/SMS client in deployments that have one.
type LogSender struct {
	Logger *logger.Logger
}

func (s *LogSender) Send(_ context.Context, task models.NotificationTask) error {
	s.Logger.LogOutbox("DELIVER", task.ID, fmt.Sprintf("[%s] %s: %s", task.Channel, task.Recipient, task.Subject))
	return nil
}
