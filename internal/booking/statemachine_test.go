package booking

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"ms-booking/internal/errs"
	"ms-booking/internal/models"
)

func bookingIn(status models.BookingStatus) *models.Booking {
	return &models.Booking{
		ID:     "bk_test",
		UserID: "usr_1",
		Status: status,
	}
}

func TestPlanTransition_Cancel(t *testing.T) {
	tests := []struct {
		name    string
		status  models.BookingStatus
		wantTo  models.BookingStatus
		noop    bool
		wantErr error
	}{
		{name: "pending", status: models.StatusPending, wantTo: models.StatusCancelled},
		{name: "rescheduled", status: models.StatusRescheduled, wantTo: models.StatusCancelled},
		{name: "completed", status: models.StatusCompleted, wantTo: models.StatusCancelled},
		{name: "already cancelled is noop", status: models.StatusCancelled, wantTo: models.StatusCancelled, noop: true},
		{name: "refunded is terminal", status: models.StatusRefunded, wantErr: errs.ErrConflict},
		{name: "return_rejected is terminal", status: models.StatusReturnRejected, wantErr: errs.ErrConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := PlanTransition(bookingIn(tt.status), ActionCancel, "usr_1", TransitionParams{Reason: "changed my mind"})
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr))
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.wantTo, plan.To)
			assert.Equal(t, tt.noop, plan.Noop)
			if !plan.Noop {
				assert.Equal(t, models.EventCancelled, plan.EventType)
				assert.Equal(t, "changed my mind", plan.Metadata["reason"])
			}
		})
	}
}

func TestPlanTransition_Reschedule(t *testing.T) {
	params := TransitionParams{NewDate: "2026-09-15", NewSlot: "14:00-16:00"}

	plan, err := PlanTransition(bookingIn(models.StatusPending), ActionReschedule, "usr_1", params)
	assert.NoError(t, err)
	assert.Equal(t, models.StatusRescheduled, plan.To)
	assert.Equal(t, "2026-09-15", plan.Metadata["new_date"])
	assert.Equal(t, "14:00-16:00", plan.Metadata["new_slot"])

	// Repeat reschedules stay legal.
	plan, err = PlanTransition(bookingIn(models.StatusRescheduled), ActionReschedule, "usr_1", params)
	assert.NoError(t, err)
	assert.Equal(t, models.StatusRescheduled, plan.To)

	_, err = PlanTransition(bookingIn(models.StatusCancelled), ActionReschedule, "usr_1", params)
	assert.True(t, errors.Is(err, errs.ErrConflict))

	_, err = PlanTransition(bookingIn(models.StatusCompleted), ActionReschedule, "usr_1", params)
	assert.True(t, errors.Is(err, errs.ErrConflict))

	_, err = PlanTransition(bookingIn(models.StatusPending), ActionReschedule, "usr_1", TransitionParams{NewDate: "2026-09-15"})
	assert.True(t, errors.Is(err, errs.ErrValidation))
}

func TestPlanTransition_ReturnFlow(t *testing.T) {
	// Request requires completed plus a reason.
	plan, err := PlanTransition(bookingIn(models.StatusCompleted), ActionReturnRequest, "usr_1", TransitionParams{Reason: "damaged"})
	assert.NoError(t, err)
	assert.Equal(t, models.StatusReturnRequested, plan.To)
	assert.False(t, plan.AdminOnly)

	_, err = PlanTransition(bookingIn(models.StatusCompleted), ActionReturnRequest, "usr_1", TransitionParams{})
	assert.True(t, errors.Is(err, errs.ErrValidation))

	_, err = PlanTransition(bookingIn(models.StatusPending), ActionReturnRequest, "usr_1", TransitionParams{Reason: "damaged"})
	assert.True(t, errors.Is(err, errs.ErrConflict))

	// A second request while one is pending conflicts.
	_, err = PlanTransition(bookingIn(models.StatusReturnRequested), ActionReturnRequest, "usr_1", TransitionParams{Reason: "damaged"})
	assert.True(t, errors.Is(err, errs.ErrConflict))

	// Approve and reject are admin-only and require a pending request.
	plan, err = PlanTransition(bookingIn(models.StatusReturnRequested), ActionReturnApprove, "adm_1", TransitionParams{Notes: "ok"})
	assert.NoError(t, err)
	assert.Equal(t, models.StatusReturnApproved, plan.To)
	assert.True(t, plan.AdminOnly)
	assert.Equal(t, "adm_1", plan.Metadata["admin_id"])

	_, err = PlanTransition(bookingIn(models.StatusCompleted), ActionReturnApprove, "adm_1", TransitionParams{})
	assert.True(t, errors.Is(err, errs.ErrConflict))

	plan, err = PlanTransition(bookingIn(models.StatusReturnRequested), ActionReturnReject, "adm_1", TransitionParams{Reason: "outside window"})
	assert.NoError(t, err)
	assert.Equal(t, models.StatusReturnRejected, plan.To)
	assert.True(t, plan.AdminOnly)

	_, err = PlanTransition(bookingIn(models.StatusReturnRequested), ActionReturnReject, "adm_1", TransitionParams{})
	assert.True(t, errors.Is(err, errs.ErrValidation))

	// Complete requires approval first.
	plan, err = PlanTransition(bookingIn(models.StatusReturnApproved), ActionReturnComplete, "adm_1", TransitionParams{})
	assert.NoError(t, err)
	assert.Equal(t, models.StatusReturned, plan.To)
	assert.True(t, plan.AdminOnly)

	_, err = PlanTransition(bookingIn(models.StatusReturnRequested), ActionReturnComplete, "adm_1", TransitionParams{})
	assert.True(t, errors.Is(err, errs.ErrConflict))
}

func TestPlanTransition_Refund(t *testing.T) {
	plan, err := PlanTransition(bookingIn(models.StatusReturned), ActionRefund, "adm_1", TransitionParams{RefundAmount: 2500})
	assert.NoError(t, err)
	assert.Equal(t, models.StatusRefunded, plan.To)
	assert.True(t, plan.AdminOnly)
	assert.Equal(t, int64(2500), plan.RefundAmount)
	assert.Equal(t, "2500", plan.Metadata["refund_amount"])

	_, err = PlanTransition(bookingIn(models.StatusReturned), ActionRefund, "adm_1", TransitionParams{})
	assert.True(t, errors.Is(err, errs.ErrValidation))

	_, err = PlanTransition(bookingIn(models.StatusCompleted), ActionRefund, "adm_1", TransitionParams{RefundAmount: 2500})
	assert.True(t, errors.Is(err, errs.ErrConflict))

	// A booking that already carries a refund cannot be refunded twice.
	b := bookingIn(models.StatusReturned)
	b.RefundAmount = 2500
	_, err = PlanTransition(b, ActionRefund, "adm_1", TransitionParams{RefundAmount: 2500})
	assert.True(t, errors.Is(err, errs.ErrConflict))
}

func TestPlanTransition_PaymentSuccess(t *testing.T) {
	plan, err := PlanTransition(bookingIn(models.StatusPending), ActionPaymentSuccess, GatewayActorID, TransitionParams{GatewayOrderID: "pi_123"})
	assert.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, plan.To)
	assert.Equal(t, models.EventPaymentSuccess, plan.EventType)
	assert.Equal(t, "pi_123", plan.Metadata["gateway_order_id"])

	_, err = PlanTransition(bookingIn(models.StatusCompleted), ActionPaymentSuccess, GatewayActorID, TransitionParams{GatewayOrderID: "pi_123"})
	assert.True(t, errors.Is(err, errs.ErrConflict))
}

func TestPlanTransition_UnknownAction(t *testing.T) {
	_, err := PlanTransition(bookingIn(models.StatusPending), Action("teleport"), "usr_1", TransitionParams{})
	assert.True(t, errors.Is(err, errs.ErrValidation))
}
