package booking

import (
	"encoding/base64"
	"fmt"
	"time"

	qrcode "github.com/skip2/go-qrcode"

	"ms-booking/internal/models"
	"ms-booking/internal/utils"
)

// buildNotification renders the user-facing outbox message for an accepted
// transition. The task is inserted in the same transaction as the status
// update; delivery is the external worker's problem.
func buildNotification(b *models.Booking, plan *TransitionPlan) *models.NotificationTask {
	task := &models.NotificationTask{
		ID:        utils.GenerateTaskID(),
		Channel:   models.ChannelEmail,
		Recipient: b.ReceiverEmail,
		Status:    models.TaskPending,
		Metadata: map[string]string{
			"booking_id": b.ID,
			"event":      string(plan.EventType),
		},
		CreatedAt: time.Now().UTC(),
	}
	if task.Recipient == "" {
		task.Channel = models.ChannelSMS
		task.Recipient = b.ReceiverPhone
	}

	switch plan.EventType {
	case models.EventCancelled:
		task.Subject = "Your booking has been cancelled"
		task.Body = fmt.Sprintf("Booking %s was cancelled. If you already paid, your refund will be initiated shortly.", b.ID)
	case models.EventRescheduled:
		task.Subject = "Your booking has been rescheduled"
		task.Body = fmt.Sprintf("Booking %s is now scheduled for %s (%s).", b.ID, plan.Metadata["new_date"], plan.Metadata["new_slot"])
	case models.EventReturnRequest:
		task.Subject = "Return request received"
		task.Body = fmt.Sprintf("We received your return request for booking %s and will review it shortly.", b.ID)
	case models.EventReturnApproved:
		task.Subject = "Return request approved"
		task.Body = fmt.Sprintf("Your return request for booking %s was approved. Our team will arrange pickup.", b.ID)
	case models.EventReturnRejected:
		task.Subject = "Return request declined"
		task.Body = fmt.Sprintf("Your return request for booking %s was declined: %s", b.ID, plan.Metadata["reason"])
	case models.EventReturned:
		task.Subject = "Return completed"
		task.Body = fmt.Sprintf("The items for booking %s have been returned. Your refund is being processed.", b.ID)
	case models.EventRefunded:
		task.Subject = "Refund issued"
		task.Body = fmt.Sprintf("A refund of %s minor units has been issued for booking %s.", plan.Metadata["refund_amount"], b.ID)
	case models.EventPaymentSuccess:
		task.Subject = "Payment confirmed"
		task.Body = fmt.Sprintf("Payment for booking %s was received. Show the attached check-in code to our team on arrival.", b.ID)
		if png, err := qrcode.Encode(b.ID, qrcode.Medium, 256); err == nil {
			task.Metadata["checkin_qr_png"] = base64.StdEncoding.EncodeToString(png)
		}
	default:
		task.Subject = "Your booking was updated"
		task.Body = fmt.Sprintf("Booking %s is now %s.", b.ID, plan.To)
	}

	return task
}
