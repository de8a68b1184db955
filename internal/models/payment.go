package models

import (
	"encoding/json"
	"time"
)

type PaymentStatus string

const (
	PaymentCreated   PaymentStatus = "created"
	PaymentPending   PaymentStatus = "pending"
	PaymentSuccess   PaymentStatus = "success"
	PaymentFailed    PaymentStatus = "failed"
	PaymentAbandoned PaymentStatus = "abandoned"
	PaymentRefunded  PaymentStatus = "refunded"
)

// Open reports whether a payment attempt is still unresolved. A booking may
// have at most one open payment at a time.
func (s PaymentStatus) Open() bool {
	return s == PaymentCreated || s == PaymentPending
}

// Payment is one gateway payment attempt for a booking, keyed by the
// gateway-side order ID. The success transition is written exactly once.
type Payment struct {
	PaymentID      string          `json:"payment_id"`
	BookingID      string          `json:"booking_id"`
	Gateway        string          `json:"gateway"`
	GatewayOrderID string          `json:"gateway_order_id"`
	AmountMinor    int64           `json:"amount_minor"`
	Currency       string          `json:"currency"`
	Status         PaymentStatus   `json:"status"`
	RawMetadata    json.RawMessage `json:"raw_metadata,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at,omitempty"`
}

type CreateOrderRequest struct {
	BookingID   string `json:"booking_id"`
	AmountMinor int64  `json:"amount"`
	Nonce       string `json:"nonce,omitempty"`
}

type CreateOrderResponse struct {
	OrderID  string `json:"orderId"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// GatewayCallback is the normalized webhook payload delivered by the payment
// gateway, signed with HMAC-SHA256 over the raw body.
type GatewayCallback struct {
	Event string              `json:"event"`
	Data  GatewayCallbackData `json:"data"`
}

type GatewayCallbackData struct {
	GatewayOrderID string            `json:"gateway_order_id"`
	Status         string            `json:"status"`
	AmountMinor    int64             `json:"amount"`
	Currency       string            `json:"currency"`
	FailureReason  string            `json:"failure_reason,omitempty"`
	Notes          map[string]string `json:"notes,omitempty"`
}
