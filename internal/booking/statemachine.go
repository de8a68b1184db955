package booking

import (
	"strconv"

	"ms-booking/internal/errs"
	"ms-booking/internal/models"
)

// Action is a requested lifecycle transition.
type Action string

const (
	ActionCancel         Action = "cancel"
	ActionReschedule     Action = "reschedule"
	ActionReturnRequest  Action = "return-request"
	ActionReturnApprove  Action = "return-approve"
	ActionReturnReject   Action = "return-reject"
	ActionReturnComplete Action = "return-complete"
	ActionRefund         Action = "refund"

	// ActionPaymentSuccess is driven by the payment reconciler only; it is
	// not exposed over the HTTP surface.
	ActionPaymentSuccess Action = "payment-success"
)

// TransitionParams carries the action-specific inputs.
type TransitionParams struct {
	Reason         string
	Notes          string
	NewDate        string
	NewSlot        string
	RefundAmount   int64
	GatewayOrderID string
}

// TransitionPlan is the computed outcome of a legal transition: the expected
// current status the conditional write must be guarded on, the next status,
// and the audit event to append.
type TransitionPlan struct {
	Action       Action
	From         models.BookingStatus
	To           models.BookingStatus
	EventType    models.EventType
	Metadata     map[string]string
	RefundAmount int64
	AdminOnly    bool

	// Noop marks an idempotent repeat (cancel of an already-cancelled
	// booking): report success, append nothing.
	Noop bool
}

// PlanTransition validates the requested action against the booking's current
// status and computes the resulting plan. It performs no I/O; the caller is
// responsible for applying the plan under a compare-and-swap on From.
func PlanTransition(b *models.Booking, action Action, actorID string, p TransitionParams) (*TransitionPlan, error) {
	plan := &TransitionPlan{Action: action, From: b.Status, Metadata: map[string]string{}}

	switch action {
	case ActionCancel:
		if b.Status == models.StatusCancelled {
			plan.Noop = true
			plan.To = models.StatusCancelled
			return plan, nil
		}
		if b.Status.Terminal() {
			return nil, errs.Conflict("cannot cancel booking in status %q", b.Status)
		}
		plan.To = models.StatusCancelled
		plan.EventType = models.EventCancelled
		if p.Reason != "" {
			plan.Metadata["reason"] = p.Reason
		}

	case ActionReschedule:
		if b.Status == models.StatusCancelled || b.Status == models.StatusCompleted {
			return nil, errs.Conflict("cannot reschedule booking in status %q", b.Status)
		}
		if p.NewDate == "" || p.NewSlot == "" {
			return nil, errs.Validation("reschedule requires new_date and new_slot")
		}
		plan.To = models.StatusRescheduled
		plan.EventType = models.EventRescheduled
		plan.Metadata["new_date"] = p.NewDate
		plan.Metadata["new_slot"] = p.NewSlot

	case ActionReturnRequest:
		if b.Status != models.StatusCompleted {
			return nil, errs.Conflict("return can only be requested for a completed booking, current status %q", b.Status)
		}
		if p.Reason == "" {
			return nil, errs.Validation("return request requires a reason")
		}
		plan.To = models.StatusReturnRequested
		plan.EventType = models.EventReturnRequest
		plan.Metadata["reason"] = p.Reason

	case ActionReturnApprove:
		if b.Status != models.StatusReturnRequested {
			return nil, errs.Conflict("no pending return request to approve, current status %q", b.Status)
		}
		plan.To = models.StatusReturnApproved
		plan.EventType = models.EventReturnApproved
		plan.AdminOnly = true
		plan.Metadata["admin_id"] = actorID
		if p.Notes != "" {
			plan.Metadata["notes"] = p.Notes
		}

	case ActionReturnReject:
		if b.Status != models.StatusReturnRequested {
			return nil, errs.Conflict("no pending return request to reject, current status %q", b.Status)
		}
		if p.Reason == "" {
			return nil, errs.Validation("return rejection requires a reason")
		}
		plan.To = models.StatusReturnRejected
		plan.EventType = models.EventReturnRejected
		plan.AdminOnly = true
		plan.Metadata["admin_id"] = actorID
		plan.Metadata["reason"] = p.Reason

	case ActionReturnComplete:
		if b.Status != models.StatusReturnApproved {
			return nil, errs.Conflict("return must be approved before completion, current status %q", b.Status)
		}
		plan.To = models.StatusReturned
		plan.EventType = models.EventReturned
		plan.AdminOnly = true
		plan.Metadata["admin_id"] = actorID
		if p.Notes != "" {
			plan.Metadata["notes"] = p.Notes
		}

	case ActionRefund:
		if b.Status != models.StatusReturned {
			return nil, errs.Conflict("refund requires a returned booking, current status %q", b.Status)
		}
		if b.RefundAmount > 0 {
			return nil, errs.Conflict("booking %s already refunded", b.ID)
		}
		if p.RefundAmount <= 0 {
			return nil, errs.Validation("refund amount must be positive")
		}
		plan.To = models.StatusRefunded
		plan.EventType = models.EventRefunded
		plan.AdminOnly = true
		plan.RefundAmount = p.RefundAmount
		plan.Metadata["admin_id"] = actorID
		plan.Metadata["refund_amount"] = strconv.FormatInt(p.RefundAmount, 10)

	case ActionPaymentSuccess:
		if b.Status != models.StatusPending {
			return nil, errs.Conflict("payment can only complete a pending booking, current status %q", b.Status)
		}
		plan.To = models.StatusCompleted
		plan.EventType = models.EventPaymentSuccess
		if p.GatewayOrderID != "" {
			plan.Metadata["gateway_order_id"] = p.GatewayOrderID
		}

	default:
		return nil, errs.Validation("unknown action %q", action)
	}

	return plan, nil
}
