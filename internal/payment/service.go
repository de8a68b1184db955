package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ms-booking/internal/auth"
	"ms-booking/internal/errs"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/payment/services"
	"ms-booking/internal/payment/storage"
	"ms-booking/internal/utils"
)

// Ledger is the slice of the booking service the reconciler drives.
type Ledger interface {
	GetOwned(ctx context.Context, actor auth.Identity, bookingID string) (*models.Booking, error)
	CompletePayment(ctx context.Context, bookingID, gatewayOrderID string) error
	RecordPaymentEvent(ctx context.Context, bookingID string, eventType models.EventType, metadata map[string]string) error
}

type Gateway interface {
	CreateOrder(ctx context.Context, bookingID string, amountMinor int64, idempotencyKey string) (*services.GatewayOrder, error)
}

type IdempotencyGuard interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// dedupWindow bounds how long a repeated create-order call without a caller
// nonce is considered the same checkout attempt.
const dedupWindow = 10 * time.Minute

type Reconciler struct {
	Ledger        Ledger
	Gateway       Gateway
	Store         storage.Store
	Guard         IdempotencyGuard
	GatewayName   string
	WebhookSecret string
	Logger        *logger.Logger
}

func NewReconciler(ledger Ledger, gateway Gateway, store storage.Store, guard IdempotencyGuard, gatewayName, webhookSecret string, log *logger.Logger) *Reconciler {
	return &Reconciler{
		Ledger:        ledger,
		Gateway:       gateway,
		Store:         store,
		Guard:         guard,
		GatewayName:   gatewayName,
		WebhookSecret: webhookSecret,
		Logger:        log,
	}
}

// CreateOrder creates a gateway-side order for a booking and records the
// payment attempt. Repeated calls for the same booking within the dedup
// window return the already-open payment instead of creating a duplicate
// gateway order. The Payment row is inserted only after the gateway call
// succeeds, so a gateway failure leaves no orphaned attempt.
func (r *Reconciler) CreateOrder(ctx context.Context, actor auth.Identity, req models.CreateOrderRequest) (*models.CreateOrderResponse, error) {
	if req.BookingID == "" {
		return nil, errs.Validation("booking_id is required")
	}
	if req.AmountMinor <= 0 {
		return nil, errs.Validation("amount must be a positive integer in minor currency units")
	}

	booking, err := r.Ledger.GetOwned(ctx, actor, req.BookingID)
	if err != nil {
		return nil, err
	}

	if existing, err := r.Store.GetOpenPaymentByBooking(ctx, booking.ID); err == nil {
		r.Logger.LogPayment("REUSE", existing.PaymentID, fmt.Sprintf("open payment already exists for booking %s", booking.ID))
		return &models.CreateOrderResponse{
			OrderID:  existing.GatewayOrderID,
			Amount:   existing.AmountMinor,
			Currency: existing.Currency,
		}, nil
	} else if !errors.Is(err, errs.ErrNotFound) {
		return nil, err
	}

	idemKey := idempotencyKey(booking.ID, req.AmountMinor, req.Nonce)
	if r.Guard != nil {
		acquired, err := r.Guard.Acquire(ctx, idemKey, dedupWindow)
		if err != nil {
			// Redis being down must not block checkout; the gateway-side
			// idempotency key still dedupes.
			r.Logger.Warn("PAYMENT", fmt.Sprintf("idempotency guard unavailable: %v", err))
		} else if !acquired {
			if existing, err := r.Store.GetOpenPaymentByBooking(ctx, booking.ID); err == nil {
				return &models.CreateOrderResponse{
					OrderID:  existing.GatewayOrderID,
					Amount:   existing.AmountMinor,
					Currency: existing.Currency,
				}, nil
			}
			return nil, errs.Conflict("a payment order for booking %s is already being created", booking.ID)
		}
	}

	order, err := r.Gateway.CreateOrder(ctx, booking.ID, req.AmountMinor, idemKey)
	if err != nil {
		return nil, err
	}

	payment := &models.Payment{
		PaymentID:      utils.GeneratePaymentID(),
		BookingID:      booking.ID,
		Gateway:        r.GatewayName,
		GatewayOrderID: order.OrderID,
		AmountMinor:    order.AmountMinor,
		Currency:       order.Currency,
		Status:         models.PaymentCreated,
		CreatedAt:      time.Now().UTC(),
	}
	if err := r.Store.SavePayment(ctx, payment); err != nil {
		return nil, err
	}

	if err := r.Ledger.RecordPaymentEvent(ctx, booking.ID, models.EventPaymentPending, map[string]string{
		"gateway_order_id": order.OrderID,
	}); err != nil {
		r.Logger.Error("PAYMENT", fmt.Sprintf("failed to record payment_pending event for booking %s: %v", booking.ID, err))
	}

	r.Logger.LogPayment("CREATE", payment.PaymentID, fmt.Sprintf("gateway order %s for booking %s (%d %s)", order.OrderID, booking.ID, order.AmountMinor, order.Currency))
	return &models.CreateOrderResponse{
		OrderID:  order.OrderID,
		Amount:   order.AmountMinor,
		Currency: order.Currency,
	}, nil
}

// ListForBooking returns the booking's payment attempts, newest first. Owner
// or admin only.
func (r *Reconciler) ListForBooking(ctx context.Context, actor auth.Identity, bookingID string, limit, offset int) ([]*models.Payment, error) {
	if _, err := r.Ledger.GetOwned(ctx, actor, bookingID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	payments, err := r.Store.ListPayments(ctx, bookingID, limit, offset)
	if err != nil {
		return nil, err
	}
	if payments == nil {
		payments = []*models.Payment{}
	}
	return payments, nil
}

func idempotencyKey(bookingID string, amountMinor int64, nonce string) string {
	if nonce == "" {
		// Time-bucketed fallback for clients that don't send a nonce.
		nonce = fmt.Sprintf("t%d", time.Now().Unix()/int64(dedupWindow.Seconds()))
	}
	return fmt.Sprintf("%s:%d:%s", bookingID, amountMinor, nonce)
}

// VerifySignature checks the hex HMAC-SHA256 of the raw webhook body against
// the shared secret. Fails closed on any mismatch.
func (r *Reconciler) VerifySignature(rawBody []byte, signature string) bool {
	if signature == "" || r.WebhookSecret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(r.WebhookSecret))
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// HandleWebhook applies a gateway-reported outcome idempotently. The payment
// row is moved out of created/pending exactly once; a redelivered webhook for
// an already-resolved payment is a no-op success.
func (r *Reconciler) HandleWebhook(ctx context.Context, rawBody []byte, signature string) error {
	if !r.VerifySignature(rawBody, signature) {
		r.Logger.Warn("WEBHOOK", "rejected webhook with invalid signature")
		return errs.Validation("invalid webhook signature")
	}

	var callback models.GatewayCallback
	if err := json.Unmarshal(rawBody, &callback); err != nil {
		return errs.Validation("malformed webhook payload")
	}
	if callback.Data.GatewayOrderID == "" {
		return errs.Validation("webhook payload missing gateway_order_id")
	}

	payment, err := r.Store.GetPaymentByGatewayOrderID(ctx, callback.Data.GatewayOrderID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			// Unknown order: acknowledge so the gateway stops retrying.
			r.Logger.Warn("WEBHOOK", fmt.Sprintf("no payment for gateway order %s", callback.Data.GatewayOrderID))
			return nil
		}
		return err
	}

	success := callback.Data.Status == "success"
	newStatus := models.PaymentFailed
	if success {
		newStatus = models.PaymentSuccess
	}

	applied, err := r.Store.ResolvePayment(ctx, payment.GatewayOrderID, newStatus, json.RawMessage(rawBody))
	if err != nil {
		return err
	}
	if !applied {
		// Redelivery for an already-resolved payment. A crash may have
		// separated the payment resolution from the ledger transition, so a
		// successful payment re-attempts CompletePayment; it conflicts
		// harmlessly when the booking already advanced.
		current, err := r.Store.GetPaymentByGatewayOrderID(ctx, payment.GatewayOrderID)
		if err != nil {
			return err
		}
		if current.Status == models.PaymentSuccess {
			if err := r.Ledger.CompletePayment(ctx, current.BookingID, current.GatewayOrderID); err != nil && !errors.Is(err, errs.ErrConflict) {
				return err
			}
		}
		r.Logger.LogPayment("DUPLICATE", payment.PaymentID, fmt.Sprintf("gateway order %s already resolved", payment.GatewayOrderID))
		return nil
	}

	if success {
		if err := r.Ledger.CompletePayment(ctx, payment.BookingID, payment.GatewayOrderID); err != nil {
			if errors.Is(err, errs.ErrConflict) {
				r.Logger.Warn("WEBHOOK", fmt.Sprintf("booking %s already advanced past pending: %v", payment.BookingID, err))
				return nil
			}
			return err
		}
		return nil
	}

	metadata := map[string]string{"gateway_order_id": payment.GatewayOrderID}
	if callback.Data.FailureReason != "" {
		metadata["reason"] = callback.Data.FailureReason
	}
	if err := r.Ledger.RecordPaymentEvent(ctx, payment.BookingID, models.EventPaymentFailed, metadata); err != nil {
		return err
	}
	r.Logger.LogPayment("FAILED", payment.PaymentID, fmt.Sprintf("gateway order %s reported failure", payment.GatewayOrderID))
	return nil
}
