package models

import (
	"time"

	"github.com/uptrace/bun"
)

type TaskStatus string

const (
	TaskPending TaskStatus = "pending"
	TaskSent    TaskStatus = "sent"
	TaskFailed  TaskStatus = "failed"
)

type NotificationChannel string

const (
	ChannelEmail NotificationChannel = "email"
	ChannelSMS   NotificationChannel = "sms"
)

// NotificationTask is a durable outbox entry. The ledger only inserts rows;
// the delivery worker owns status and attempt mutations.
type NotificationTask struct {
	bun.BaseModel `bun:"table:notification_tasks"`

	ID        string              `bun:"id,pk" json:"id"`
	Channel   NotificationChannel `bun:"channel,notnull" json:"channel"`
	Recipient string              `bun:"recipient,notnull" json:"recipient"`
	Subject   string              `bun:"subject,notnull" json:"subject"`
	Body      string              `bun:"body,notnull" json:"body"`
	Metadata  map[string]string   `bun:"metadata,type:jsonb" json:"metadata,omitempty"`
	Status    TaskStatus          `bun:"status,notnull" json:"status"`
	Attempts  int                 `bun:"attempts,notnull,default:0" json:"attempts"`
	LastError string              `bun:"last_error,nullzero" json:"last_error,omitempty"`
	CreatedAt time.Time           `bun:"created_at,notnull" json:"created_at"`
}
