package storage

import (
	"context"
	"encoding/json"

	"ms-booking/internal/models"
)

type Store interface {
	// Payment operations
	SavePayment(ctx context.Context, payment *models.Payment) error
	GetPayment(ctx context.Context, id string) (*models.Payment, error)
	GetPaymentByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Payment, error)
	GetOpenPaymentByBooking(ctx context.Context, bookingID string) (*models.Payment, error)
	ListPayments(ctx context.Context, bookingID string, limit, offset int) ([]*models.Payment, error)

	// ResolvePayment moves a payment out of created/pending exactly once.
	// Returns false when the payment was already resolved, so duplicate
	// webhook deliveries become no-ops.
	ResolvePayment(ctx context.Context, gatewayOrderID string, status models.PaymentStatus, raw json.RawMessage) (bool, error)

	// Health and maintenance
	Close() error
	HealthCheck() error
}
