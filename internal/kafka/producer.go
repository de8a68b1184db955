package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"ms-booking/internal/models"
)

// Producer streams booking lifecycle events for downstream consumers
// (analytics, CRM). Publishing is best-effort: the ledger transaction has
// already committed by the time an event is written here.
type Producer struct {
	Writer *kafka.Writer
}

func NewProducer(brokers []string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
	}
	return &Producer{Writer: writer}
}

func (p *Producer) Publish(topic string, key string, value []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return p.Writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
	})
}

type LifecycleEvent struct {
	BookingID string               `json:"booking_id"`
	EventID   string               `json:"event_id"`
	Type      models.EventType     `json:"type"`
	Status    models.BookingStatus `json:"status"`
	ActorID   string               `json:"actor_id"`
	Timestamp time.Time            `json:"timestamp"`
}

// PublishTransition streams one accepted transition, keyed by booking ID so
// per-booking ordering is preserved within a partition.
func (p *Producer) PublishTransition(topic string, event *models.BookingEvent) error {
	msg := LifecycleEvent{
		BookingID: event.BookingID,
		EventID:   event.ID,
		Type:      event.Type,
		Status:    event.Status,
		ActorID:   event.ActorID,
		Timestamp: event.CreatedAt,
	}
	value, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return p.Publish(topic, event.BookingID, value)
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
