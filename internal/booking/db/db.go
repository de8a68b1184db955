package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/uptrace/bun"

	"ms-booking/internal/errs"
	"ms-booking/internal/models"
)

type DB struct {
	Bun *bun.DB
}

// TransitionRecord is one atomic ledger mutation: the compare-and-swap status
// update plus the audit event and outbox task that must commit with it.
type TransitionRecord struct {
	BookingID      string
	ExpectedStatus models.BookingStatus
	NewStatus      models.BookingStatus
	RefundAmount   int64
	Event          *models.BookingEvent
	Task           *models.NotificationTask
}

// CreateBooking inserts the booking together with its initial audit event.
// The event counter starts at 1 to match the appended "created" event.
func (d *DB) CreateBooking(ctx context.Context, booking *models.Booking, event *models.BookingEvent) error {
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		booking.EventCount = 1
		if _, err := tx.NewInsert().Model(booking).Exec(ctx); err != nil {
			return err
		}
		_, err := tx.NewInsert().Model(event).Exec(ctx)
		return err
	})
}

func (d *DB) GetBookingByID(ctx context.Context, id string) (*models.Booking, error) {
	var booking models.Booking
	err := d.Bun.NewSelect().
		Model(&booking).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errs.NotFound("booking %s not found", id)
		}
		return nil, err
	}
	return &booking, nil
}

func (d *DB) GetBookingsByOwner(ctx context.Context, ownerID string) ([]models.Booking, error) {
	var bookings []models.Booking
	err := d.Bun.NewSelect().
		Model(&bookings).
		Where("user_id = ?", ownerID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

// ApplyTransition performs the conditional status update guarded by the
// expected current status. The event append and outbox insert commit in the
// same transaction; losing the race to a concurrent writer yields ErrConflict
// with no partial effect.
func (d *DB) ApplyTransition(ctx context.Context, rec TransitionRecord) error {
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		q := tx.NewUpdate().
			Model((*models.Booking)(nil)).
			Set("status = ?", rec.NewStatus).
			Set("event_count = event_count + 1").
			Set("updated_at = ?", time.Now().UTC()).
			Where("id = ? AND status = ?", rec.BookingID, rec.ExpectedStatus)
		if rec.RefundAmount > 0 {
			q = q.Set("refund_amount = ?", rec.RefundAmount)
		}

		res, err := q.Exec(ctx)
		if err != nil {
			return err
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			exists, err := tx.NewSelect().
				Model((*models.Booking)(nil)).
				Where("id = ?", rec.BookingID).
				Exists(ctx)
			if err != nil {
				return err
			}
			if !exists {
				return errs.NotFound("booking %s not found", rec.BookingID)
			}
			return errs.Conflict("booking %s is no longer in status %q", rec.BookingID, rec.ExpectedStatus)
		}

		if _, err := tx.NewInsert().Model(rec.Event).Exec(ctx); err != nil {
			return err
		}
		if rec.Task != nil {
			if _, err := tx.NewInsert().Model(rec.Task).Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}
