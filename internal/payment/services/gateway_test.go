package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"ms-booking/internal/config"
	"ms-booking/internal/logger"
)

func TestNewStripeGatewayRequiresSecretKey(t *testing.T) {
	_, err := NewStripeGateway(config.GatewayConfig{}, logger.NewLogger())
	assert.ErrorIs(t, err, ErrGatewayClientInitFailed)
}

func TestNewStripeGatewayTimeout(t *testing.T) {
	cfg := config.GatewayConfig{SecretKey: "sk_test_xxx", Currency: "inr", Timeout: 3 * time.Second}
	gw, err := NewStripeGateway(cfg, logger.NewLogger())
	assert.NoError(t, err)
	assert.Equal(t, 3*time.Second, gw.Timeout())

	// A missing or nonsense timeout falls back to the 10s bound.
	cfg.Timeout = 0
	gw, err = NewStripeGateway(cfg, logger.NewLogger())
	assert.NoError(t, err)
	assert.Equal(t, 10*time.Second, gw.Timeout())
}
