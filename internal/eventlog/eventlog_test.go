package eventlog_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"

	"ms-booking/internal/errs"
	"ms-booking/internal/eventlog"
	"ms-booking/internal/models"
	"ms-booking/internal/utils"
)

func setupTestLog(t *testing.T) (*eventlog.Log, *bun.DB) {
	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	for _, model := range []interface{}{
		(*models.Booking)(nil),
		(*models.BookingEvent)(nil),
	} {
		if _, err := bunDB.NewCreateTable().Model(model).Exec(context.Background()); err != nil {
			t.Fatalf("Failed to create table: %v", err)
		}
	}

	return &eventlog.Log{Bun: bunDB}, bunDB
}

func insertBooking(t *testing.T, bunDB *bun.DB, id string) {
	booking := &models.Booking{
		ID:            id,
		UserID:        "usr_1",
		Kind:          models.KindService,
		Status:        models.StatusPending,
		Items:         json.RawMessage(`[]`),
		TotalAmount:   100,
		Address:       "addr",
		Checksum:      "x",
		SchemaVersion: models.BookingSchemaVersion,
		CreatedAt:     time.Now().UTC(),
	}
	if _, err := bunDB.NewInsert().Model(booking).Exec(context.Background()); err != nil {
		t.Fatalf("Failed to insert booking: %v", err)
	}
}

func newEvent(bookingID string, eventType models.EventType, at time.Time) *models.BookingEvent {
	return &models.BookingEvent{
		ID:        utils.GenerateEventID(),
		BookingID: bookingID,
		ActorID:   "usr_1",
		Type:      eventType,
		Status:    models.StatusPending,
		CreatedAt: at,
	}
}

func TestAppendBumpsEventCount(t *testing.T) {
	log, bunDB := setupTestLog(t)
	defer bunDB.Close()
	ctx := context.Background()

	insertBooking(t, bunDB, "bk_1")

	assert.NoError(t, log.Append(ctx, newEvent("bk_1", models.EventPaymentPending, time.Now().UTC())))
	assert.NoError(t, log.Append(ctx, newEvent("bk_1", models.EventPaymentFailed, time.Now().UTC())))

	var booking models.Booking
	assert.NoError(t, bunDB.NewSelect().Model(&booking).Where("id = ?", "bk_1").Scan(ctx))
	assert.Equal(t, int64(2), booking.EventCount)

	count, err := bunDB.NewSelect().Model((*models.BookingEvent)(nil)).Where("booking_id = ?", "bk_1").Count(ctx)
	assert.NoError(t, err)
	assert.Equal(t, int(booking.EventCount), count)
}

func TestAppendMissingBooking(t *testing.T) {
	log, bunDB := setupTestLog(t)
	defer bunDB.Close()

	err := log.Append(context.Background(), newEvent("bk_missing", models.EventPaymentPending, time.Now().UTC()))
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestListByBookingOrdered(t *testing.T) {
	log, bunDB := setupTestLog(t)
	defer bunDB.Close()
	ctx := context.Background()

	insertBooking(t, bunDB, "bk_1")

	base := time.Now().UTC()
	assert.NoError(t, log.Append(ctx, newEvent("bk_1", models.EventPaymentSuccess, base.Add(2*time.Second))))
	assert.NoError(t, log.Append(ctx, newEvent("bk_1", models.EventCreated, base)))
	assert.NoError(t, log.Append(ctx, newEvent("bk_1", models.EventPaymentPending, base.Add(time.Second))))

	events, err := log.ListByBooking(ctx, "bk_1")
	assert.NoError(t, err)
	assert.Len(t, events, 3)
	assert.Equal(t, models.EventCreated, events[0].Type)
	assert.Equal(t, models.EventPaymentPending, events[1].Type)
	assert.Equal(t, models.EventPaymentSuccess, events[2].Type)
}

func TestListByBookingsGroups(t *testing.T) {
	log, bunDB := setupTestLog(t)
	defer bunDB.Close()
	ctx := context.Background()

	insertBooking(t, bunDB, "bk_1")
	insertBooking(t, bunDB, "bk_2")

	now := time.Now().UTC()
	assert.NoError(t, log.Append(ctx, newEvent("bk_1", models.EventCreated, now)))
	assert.NoError(t, log.Append(ctx, newEvent("bk_2", models.EventCreated, now)))
	assert.NoError(t, log.Append(ctx, newEvent("bk_2", models.EventPaymentSuccess, now.Add(time.Second))))

	grouped, err := log.ListByBookings(ctx, []string{"bk_1", "bk_2"})
	assert.NoError(t, err)
	assert.Len(t, grouped["bk_1"], 1)
	assert.Len(t, grouped["bk_2"], 2)

	empty, err := log.ListByBookings(ctx, nil)
	assert.NoError(t, err)
	assert.Empty(t, empty)
}

func TestVisible(t *testing.T) {
	draftOnly := []models.BookingEvent{
		{Type: models.EventCreated},
		{Type: models.EventPaymentPending},
		{Type: models.EventPaymentFailed},
	}
	assert.False(t, eventlog.Visible(draftOnly))

	paid := append(draftOnly, models.BookingEvent{Type: models.EventPaymentSuccess})
	assert.True(t, eventlog.Visible(paid))

	assert.True(t, eventlog.Visible([]models.BookingEvent{{Type: models.EventCancelled}}))
	assert.False(t, eventlog.Visible(nil))
}
