package eventlog

import (
	"context"
	"database/sql"

	"github.com/uptrace/bun"

	"ms-booking/internal/errs"
	"ms-booking/internal/models"
)

// Log is the append-only journal of booking lifecycle events. No update or
// delete is exposed.
type Log struct {
	Bun *bun.DB
}

// Append inserts one event outside of a status transition (e.g. a failed
// payment attempt). The booking's event counter is bumped in the same
// transaction so that event_count always equals the number of journal rows.
func (l *Log) Append(ctx context.Context, event *models.BookingEvent) error {
	return l.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*models.Booking)(nil)).
			Set("event_count = event_count + 1").
			Where("id = ?", event.BookingID).
			Exec(ctx)
		if err != nil {
			return err
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return errs.NotFound("booking %s not found", event.BookingID)
		}
		_, err = tx.NewInsert().Model(event).Exec(ctx)
		return err
	})
}

// ListByBooking returns the full timeline for one booking, oldest first.
func (l *Log) ListByBooking(ctx context.Context, bookingID string) ([]models.BookingEvent, error) {
	var events []models.BookingEvent
	err := l.Bun.NewSelect().
		Model(&events).
		Where("booking_id = ?", bookingID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return events, nil
}

// ListByBookings returns events for a set of bookings grouped by booking ID,
// each group oldest first. Used by the owner-facing list view.
func (l *Log) ListByBookings(ctx context.Context, bookingIDs []string) (map[string][]models.BookingEvent, error) {
	grouped := make(map[string][]models.BookingEvent)
	if len(bookingIDs) == 0 {
		return grouped, nil
	}

	var events []models.BookingEvent
	err := l.Bun.NewSelect().
		Model(&events).
		Where("booking_id IN (?)", bun.In(bookingIDs)).
		Order("booking_id", "created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	for _, ev := range events {
		grouped[ev.BookingID] = append(grouped[ev.BookingID], ev)
	}
	return grouped, nil
}

// Visible reports whether a booking should appear in the owner-facing list.
// Bookings carrying only draft events are checkout artifacts that never
// completed and stay hidden.
func Visible(events []models.BookingEvent) bool {
	for _, ev := range events {
		if ev.Type.Final() {
			return true
		}
	}
	return false
}
