package models

import (
	"time"

	"github.com/uptrace/bun"
)

// EventType is a closed enumeration of ledger events. New types must also be
// classified in eventVisibility below.
type EventType string

const (
	EventCreated        EventType = "created"
	EventPaymentPending EventType = "payment_pending"
	EventPaymentSuccess EventType = "payment_success"
	EventPaymentFailed  EventType = "payment_failed"
	EventCancelled      EventType = "cancelled"
	EventRescheduled    EventType = "rescheduled"
	EventReturnRequest  EventType = "return_requested"
	EventReturnApproved EventType = "return_approved"
	EventReturnRejected EventType = "return_rejected"
	EventReturned       EventType = "returned"
	EventRefunded       EventType = "refunded"
)

type EventClass int

const (
	EventDraft EventClass = iota
	EventFinal
)

// Draft events mark checkout artifacts. A booking with only draft events never
// completed payment and is hidden from the owner-facing list.
var eventVisibility = map[EventType]EventClass{
	EventCreated:        EventDraft,
	EventPaymentPending: EventDraft,
	EventPaymentFailed:  EventDraft,
	EventPaymentSuccess: EventFinal,
	EventCancelled:      EventFinal,
	EventRescheduled:    EventFinal,
	EventReturnRequest:  EventFinal,
	EventReturnApproved: EventFinal,
	EventReturnRejected: EventFinal,
	EventReturned:       EventFinal,
	EventRefunded:       EventFinal,
}

func (t EventType) Class() EventClass {
	if c, ok := eventVisibility[t]; ok {
		return c
	}
	return EventFinal
}

func (t EventType) Final() bool {
	return t.Class() == EventFinal
}

// BookingEvent is an append-only audit record. Rows are never updated or
// deleted; ordering key is CreatedAt.
type BookingEvent struct {
	bun.BaseModel `bun:"table:booking_events"`

	ID        string            `bun:"id,pk" json:"id"`
	BookingID string            `bun:"booking_id,notnull" json:"booking_id"`
	ActorID   string            `bun:"actor_id,notnull" json:"actor_id"`
	Type      EventType         `bun:"type,notnull" json:"type"`
	Status    BookingStatus     `bun:"status,notnull" json:"status"`
	Metadata  map[string]string `bun:"metadata,type:jsonb" json:"metadata,omitempty"`
	CreatedAt time.Time         `bun:"created_at,notnull" json:"created_at"`
}
