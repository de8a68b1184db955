package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

func GenerateBookingID() string {
	return "bk_" + uuid.NewString()
}

func GenerateEventID() string {
	return "evt_" + uuid.NewString()
}

func GenerateTaskID() string {
	return "ntf_" + uuid.NewString()
}

func GeneratePaymentID() string {
	return "pay_" + uuid.NewString()
}

// GenerateChecksum derives the creation idempotency token for a booking from
// its identifying fields. Two identical create requests in the same second
// produce the same token.
func GenerateChecksum(ownerID string, items []byte, totalAmount int64, at time.Time) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%d|%d|", ownerID, totalAmount, at.Unix())
	h.Write(items)
	return hex.EncodeToString(h.Sum(nil))
}
