package outbox_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"

	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/outbox"
)

func setupTestOutbox(t *testing.T, maxAttempts int) (*outbox.Outbox, *bun.DB) {
	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	if _, err := bunDB.NewCreateTable().Model((*models.NotificationTask)(nil)).Exec(context.Background()); err != nil {
		t.Fatalf("Failed to create table: %v", err)
	}

	return outbox.New(bunDB, maxAttempts), bunDB
}

func getTask(t *testing.T, bunDB *bun.DB, id string) *models.NotificationTask {
	var task models.NotificationTask
	if err := bunDB.NewSelect().Model(&task).Where("id = ?", id).Scan(context.Background()); err != nil {
		t.Fatalf("Failed to load task: %v", err)
	}
	return &task
}

func TestEnqueueAndFetch(t *testing.T) {
	box, bunDB := setupTestOutbox(t, 5)
	defer bunDB.Close()
	ctx := context.Background()

	task, err := box.Enqueue(ctx, models.ChannelEmail, "user@example.com", "Subject", "Body", map[string]string{"booking_id": "bk_1"})
	assert.NoError(t, err)
	assert.Equal(t, models.TaskPending, task.Status)

	pending, err := box.FetchPending(ctx, 10)
	assert.NoError(t, err)
	assert.Len(t, pending, 1)
	assert.Equal(t, task.ID, pending[0].ID)
}

func TestMarkSent(t *testing.T) {
	box, bunDB := setupTestOutbox(t, 5)
	defer bunDB.Close()
	ctx := context.Background()

	task, err := box.Enqueue(ctx, models.ChannelSMS, "+910000000000", "Subject", "Body", nil)
	assert.NoError(t, err)

	assert.NoError(t, box.MarkSent(ctx, task.ID))

	got := getTask(t, bunDB, task.ID)
	assert.Equal(t, models.TaskSent, got.Status)
	assert.Equal(t, 1, got.Attempts)

	pending, err := box.FetchPending(ctx, 10)
	assert.NoError(t, err)
	assert.Empty(t, pending)
}

// Failures keep the task pending until the attempt cap is reached, then it
// dead-letters and never reappears in the pending set.
func TestMarkFailedDeadLetters(t *testing.T) {
	box, bunDB := setupTestOutbox(t, 3)
	defer bunDB.Close()
	ctx := context.Background()

	task, err := box.Enqueue(ctx, models.ChannelEmail, "user@example.com", "Subject", "Body", nil)
	assert.NoError(t, err)

	deliveryErr := errors.New("smtp timeout")

	assert.NoError(t, box.MarkFailed(ctx, task.ID, deliveryErr))
	got := getTask(t, bunDB, task.ID)
	assert.Equal(t, models.TaskPending, got.Status)
	assert.Equal(t, 1, got.Attempts)
	assert.Equal(t, "smtp timeout", got.LastError)

	assert.NoError(t, box.MarkFailed(ctx, task.ID, deliveryErr))
	got = getTask(t, bunDB, task.ID)
	assert.Equal(t, models.TaskPending, got.Status)
	assert.Equal(t, 2, got.Attempts)

	assert.NoError(t, box.MarkFailed(ctx, task.ID, deliveryErr))
	got = getTask(t, bunDB, task.ID)
	assert.Equal(t, models.TaskFailed, got.Status)
	assert.Equal(t, 3, got.Attempts)

	pending, err := box.FetchPending(ctx, 10)
	assert.NoError(t, err)
	assert.Empty(t, pending)
}

type flakySender struct {
	failures int
	sent     []string
}

func (s *flakySender) Send(_ context.Context, task models.NotificationTask) error {
	if s.failures > 0 {
		s.failures--
		return errors.New("provider unavailable")
	}
	s.sent = append(s.sent, task.ID)
	return nil
}

func TestWorkerDrainOnce(t *testing.T) {
	box, bunDB := setupTestOutbox(t, 5)
	defer bunDB.Close()
	ctx := context.Background()

	first, err := box.Enqueue(ctx, models.ChannelEmail, "a@example.com", "S", "B", nil)
	assert.NoError(t, err)
	second, err := box.Enqueue(ctx, models.ChannelEmail, "b@example.com", "S", "B", nil)
	assert.NoError(t, err)

	sender := &flakySender{failures: 1}
	worker := outbox.NewWorker(box, sender, 0, 0, logger.NewLogger())

	// First drain: the first task fails once, the second sends.
	assert.NoError(t, worker.DrainOnce(ctx))
	assert.Equal(t, []string{second.ID}, sender.sent)

	got := getTask(t, bunDB, first.ID)
	assert.Equal(t, models.TaskPending, got.Status)
	assert.Equal(t, 1, got.Attempts)

	// Second drain retries and delivers the failed task.
	assert.NoError(t, worker.DrainOnce(ctx))
	assert.Equal(t, []string{second.ID, first.ID}, sender.sent)
	assert.Equal(t, models.TaskSent, getTask(t, bunDB, first.ID).Status)
}
