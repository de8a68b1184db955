package models

import (
	"encoding/json"
	"time"

	"github.com/uptrace/bun"
)

type BookingStatus string

const (
	StatusPending         BookingStatus = "pending"
	StatusRescheduled     BookingStatus = "rescheduled"
	StatusCancelled       BookingStatus = "cancelled"
	StatusCompleted       BookingStatus = "completed"
	StatusReturnRequested BookingStatus = "return_requested"
	StatusReturnApproved  BookingStatus = "return_approved"
	StatusReturnRejected  BookingStatus = "return_rejected"
	StatusReturned        BookingStatus = "returned"
	StatusRefunded        BookingStatus = "refunded"
)

// Terminal statuses admit no further transitions except refund out of
// "returned", which is handled by the transition table itself.
var terminalStatuses = map[BookingStatus]bool{
	StatusCancelled:      true,
	StatusReturnRejected: true,
	StatusRefunded:       true,
}

func (s BookingStatus) Terminal() bool {
	return terminalStatuses[s]
}

func (s BookingStatus) Valid() bool {
	switch s {
	case StatusPending, StatusRescheduled, StatusCancelled, StatusCompleted,
		StatusReturnRequested, StatusReturnApproved, StatusReturnRejected,
		StatusReturned, StatusRefunded:
		return true
	}
	return false
}

type BookingKind string

const (
	KindService BookingKind = "service"
	KindProduct BookingKind = "product"
)

const BookingSchemaVersion = 2

type Booking struct {
	bun.BaseModel `bun:"table:bookings"`

	ID            string          `bun:"id,pk" json:"id"`
	UserID        string          `bun:"user_id,notnull" json:"user_id"`
	Kind          BookingKind     `bun:"kind,notnull" json:"kind"`
	Status        BookingStatus   `bun:"status,notnull" json:"status"`
	Items         json.RawMessage `bun:"items,type:jsonb" json:"items"`
	TotalAmount   int64           `bun:"total_amount,notnull" json:"total_amount"`
	Address       string          `bun:"address" json:"address"`
	Latitude      float64         `bun:"latitude,nullzero" json:"latitude,omitempty"`
	Longitude     float64         `bun:"longitude,nullzero" json:"longitude,omitempty"`
	ReceiverName  string          `bun:"receiver_name" json:"receiver_name"`
	ReceiverPhone string          `bun:"receiver_phone" json:"receiver_phone"`
	ReceiverEmail string          `bun:"receiver_email" json:"receiver_email"`
	ScheduledDate string          `bun:"scheduled_date" json:"scheduled_date,omitempty"`
	ScheduledSlot string          `bun:"scheduled_slot" json:"scheduled_slot,omitempty"`
	RefundAmount  int64           `bun:"refund_amount,nullzero" json:"refund_amount,omitempty"`
	EventCount    int64           `bun:"event_count,notnull,default:0" json:"event_count"`
	Checksum      string          `bun:"checksum,notnull" json:"checksum"`
	SchemaVersion int             `bun:"schema_version,notnull" json:"schema_version"`
	CreatedAt     time.Time       `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt     time.Time       `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
}
