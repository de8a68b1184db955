package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"

	"ms-booking/internal/config"
	"ms-booking/internal/errs"
	"ms-booking/internal/logger"
)

var ErrGatewayClientInitFailed = errors.New("failed to initialize gateway client")

// GatewayOrder is the gateway-side order created for a checkout attempt.
type GatewayOrder struct {
	OrderID     string
	AmountMinor int64
	Currency    string
}

// StripeGateway creates gateway orders as Stripe payment intents. The
// idempotency key is forwarded to Stripe so a repeated create within the
// dedup window returns the same intent instead of charging twice.
type StripeGateway struct {
	client   *client.API
	currency string
	timeout  time.Duration
	log      *logger.Logger
}

func NewStripeGateway(cfg config.GatewayConfig, log *logger.Logger) (*StripeGateway, error) {
	if cfg.SecretKey == "" {
		log.Error("GATEWAY", "GATEWAY_SECRET_KEY environment variable not set")
		return nil, ErrGatewayClientInitFailed
	}

	sc := client.New(cfg.SecretKey, nil)
	if sc == nil {
		log.Error("GATEWAY", "Failed to initialize Stripe client")
		return nil, ErrGatewayClientInitFailed
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	log.Info("GATEWAY", fmt.Sprintf("Stripe client initialized (live=%t timeout=%s)", cfg.LiveMode, timeout))
	return &StripeGateway{
		client:   sc,
		currency: cfg.Currency,
		timeout:  timeout,
		log:      log,
	}, nil
}

// Timeout is the per-call deadline applied to gateway requests.
func (g *StripeGateway) Timeout() time.Duration {
	return g.timeout
}

func (g *StripeGateway) CreateOrder(ctx context.Context, bookingID string, amountMinor int64, idempotencyKey string) (*GatewayOrder, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(amountMinor),
		Currency:           stripe.String(g.currency),
		PaymentMethodTypes: []*string{stripe.String("card")},
		Metadata: map[string]string{
			"booking_id": bookingID,
		},
	}
	params.Context = ctx
	params.IdempotencyKey = stripe.String(idempotencyKey)

	pi, err := g.client.PaymentIntents.New(params)
	if err != nil {
		g.log.Error("GATEWAY", fmt.Sprintf("Failed to create payment intent for booking %s: %v", bookingID, err))
		return nil, errs.Gateway(err)
	}

	g.log.Info("GATEWAY", fmt.Sprintf("Created gateway order %s for booking %s (%d %s)", pi.ID, bookingID, pi.Amount, pi.Currency))
	return &GatewayOrder{
		OrderID:     pi.ID,
		AmountMinor: pi.Amount,
		Currency:    string(pi.Currency),
	}, nil
}
