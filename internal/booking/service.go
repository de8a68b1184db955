package booking

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ms-booking/internal/auth"
	bookingdb "ms-booking/internal/booking/db"
	"ms-booking/internal/errs"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/utils"
)

type DBLayer interface {
	CreateBooking(ctx context.Context, booking *models.Booking, event *models.BookingEvent) error
	GetBookingByID(ctx context.Context, id string) (*models.Booking, error)
	GetBookingsByOwner(ctx context.Context, ownerID string) ([]models.Booking, error)
	ApplyTransition(ctx context.Context, rec bookingdb.TransitionRecord) error
}

type EventLog interface {
	Append(ctx context.Context, event *models.BookingEvent) error
	ListByBooking(ctx context.Context, bookingID string) ([]models.BookingEvent, error)
	ListByBookings(ctx context.Context, bookingIDs []string) (map[string][]models.BookingEvent, error)
}

type LifecyclePublisher interface {
	PublishTransition(topic string, event *models.BookingEvent) error
}

type Service struct {
	DB             DBLayer
	Events         EventLog
	Publisher      LifecyclePublisher
	LifecycleTopic string
	Logger         *logger.Logger
}

func NewService(db DBLayer, events EventLog, publisher LifecyclePublisher, lifecycleTopic string, log *logger.Logger) *Service {
	return &Service{
		DB:             db,
		Events:         events,
		Publisher:      publisher,
		LifecycleTopic: lifecycleTopic,
		Logger:         log,
	}
}

type CreateBookingRequest struct {
	OwnerID       string             `json:"owner_id"`
	Kind          models.BookingKind `json:"kind"`
	Items         json.RawMessage    `json:"items"`
	TotalAmount   int64              `json:"total_amount"`
	Address       string             `json:"address"`
	Latitude      float64            `json:"latitude,omitempty"`
	Longitude     float64            `json:"longitude,omitempty"`
	ReceiverName  string             `json:"receiver_name"`
	ReceiverPhone string             `json:"receiver_phone"`
	ReceiverEmail string             `json:"receiver_email,omitempty"`
	ScheduledDate string             `json:"scheduled_date,omitempty"`
	ScheduledSlot string             `json:"scheduled_slot,omitempty"`
}

// BookingDetail is the detail view: the ledger row plus its full timeline.
type BookingDetail struct {
	Booking   *models.Booking       `json:"booking"`
	Events    []models.BookingEvent `json:"events"`
	LastEvent *models.BookingEvent  `json:"last_event,omitempty"`
}

func (s *Service) Create(ctx context.Context, actor auth.Identity, req CreateBookingRequest) (*models.Booking, error) {
	if req.OwnerID == "" {
		return nil, errs.Validation("owner_id is required")
	}
	if actor.UserID != req.OwnerID && !actor.Admin() {
		return nil, errs.Unauthorized("cannot create a booking for another user")
	}
	if len(req.Items) == 0 || string(req.Items) == "[]" || string(req.Items) == "null" {
		return nil, errs.Validation("items must not be empty")
	}
	if req.TotalAmount <= 0 {
		return nil, errs.Validation("total_amount must be positive")
	}
	if req.Address == "" {
		return nil, errs.Validation("address is required")
	}
	if req.ReceiverPhone == "" && req.ReceiverEmail == "" {
		return nil, errs.Validation("receiver contact is required")
	}
	kind := req.Kind
	if kind == "" {
		kind = models.KindService
	}
	if kind != models.KindService && kind != models.KindProduct {
		return nil, errs.Validation("kind must be %q or %q", models.KindService, models.KindProduct)
	}

	now := time.Now().UTC()
	booking := &models.Booking{
		ID:            utils.GenerateBookingID(),
		UserID:        req.OwnerID,
		Kind:          kind,
		Status:        models.StatusPending,
		Items:         req.Items,
		TotalAmount:   req.TotalAmount,
		Address:       req.Address,
		Latitude:      req.Latitude,
		Longitude:     req.Longitude,
		ReceiverName:  req.ReceiverName,
		ReceiverPhone: req.ReceiverPhone,
		ReceiverEmail: req.ReceiverEmail,
		ScheduledDate: req.ScheduledDate,
		ScheduledSlot: req.ScheduledSlot,
		Checksum:      utils.GenerateChecksum(req.OwnerID, req.Items, req.TotalAmount, now),
		SchemaVersion: models.BookingSchemaVersion,
		CreatedAt:     now,
	}

	event := &models.BookingEvent{
		ID:        utils.GenerateEventID(),
		BookingID: booking.ID,
		ActorID:   actor.UserID,
		Type:      models.EventCreated,
		Status:    models.StatusPending,
		CreatedAt: now,
	}

	if err := s.DB.CreateBooking(ctx, booking, event); err != nil {
		s.Logger.Error("BOOKING", fmt.Sprintf("Create: insert failed: %v", err))
		return nil, err
	}

	s.Logger.LogBooking("CREATE", booking.ID, fmt.Sprintf("owner=%s total=%d", booking.UserID, booking.TotalAmount))
	return booking, nil
}

func (s *Service) Get(ctx context.Context, actor auth.Identity, bookingID string) (*BookingDetail, error) {
	booking, err := s.DB.GetBookingByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.UserID != actor.UserID && !actor.Admin() {
		return nil, errs.Unauthorized("booking %s does not belong to caller", bookingID)
	}

	events, err := s.Events.ListByBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	detail := &BookingDetail{Booking: booking, Events: events}
	if len(events) > 0 {
		detail.LastEvent = &events[len(events)-1]
	}
	return detail, nil
}

// ListByOwner returns the owner's bookings, hiding checkout artifacts that
// carry only draft events.
func (s *Service) ListByOwner(ctx context.Context, actor auth.Identity, ownerID string) ([]models.Booking, error) {
	if ownerID == "" {
		return nil, errs.Validation("owner query parameter is required")
	}
	if ownerID != actor.UserID && !actor.Admin() {
		return nil, errs.Unauthorized("cannot list bookings for another user")
	}

	bookings, err := s.DB.GetBookingsByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if len(bookings) == 0 {
		return []models.Booking{}, nil
	}

	ids := make([]string, len(bookings))
	for i, b := range bookings {
		ids[i] = b.ID
	}
	grouped, err := s.Events.ListByBookings(ctx, ids)
	if err != nil {
		return nil, err
	}

	visible := make([]models.Booking, 0, len(bookings))
	for _, b := range bookings {
		if hasFinalEvent(grouped[b.ID]) {
			visible = append(visible, b)
		}
	}
	return visible, nil
}

func hasFinalEvent(events []models.BookingEvent) bool {
	for _, ev := range events {
		if ev.Type.Final() {
			return true
		}
	}
	return false
}

// Transition runs the full lifecycle path for one action: authorization,
// state-machine validation, the conditional ledger write with its event and
// outbox task, and the best-effort lifecycle stream publish.
//
// Conflicts are returned to the caller rather than retried: replanning the
// action from the freshly observed status would silently mask the lost race.
func (s *Service) Transition(ctx context.Context, actor auth.Identity, bookingID string, action Action, params TransitionParams) error {
	booking, err := s.DB.GetBookingByID(ctx, bookingID)
	if err != nil {
		return err
	}

	plan, err := PlanTransition(booking, action, actor.UserID, params)
	if err != nil {
		return err
	}

	if err := s.authorize(actor, booking, plan); err != nil {
		return err
	}

	if plan.Noop {
		s.Logger.LogBooking(string(action), bookingID, "already in target status, no event appended")
		return nil
	}

	event := &models.BookingEvent{
		ID:        utils.GenerateEventID(),
		BookingID: booking.ID,
		ActorID:   actor.UserID,
		Type:      plan.EventType,
		Status:    plan.To,
		Metadata:  plan.Metadata,
		CreatedAt: time.Now().UTC(),
	}

	rec := bookingdb.TransitionRecord{
		BookingID:      booking.ID,
		ExpectedStatus: plan.From,
		NewStatus:      plan.To,
		RefundAmount:   plan.RefundAmount,
		Event:          event,
		Task:           buildNotification(booking, plan),
	}

	if err := s.DB.ApplyTransition(ctx, rec); err != nil {
		return err
	}

	s.Logger.LogBooking(string(action), booking.ID, fmt.Sprintf("%s -> %s", plan.From, plan.To))
	s.publishTransition(event)
	return nil
}

// authorize is the ownership/role guard for mutations: owner actions require
// the caller to own the booking, admin actions require the admin role. The
// admin actor is recorded in event metadata, not equality-checked against the
// booking.
func (s *Service) authorize(actor auth.Identity, booking *models.Booking, plan *TransitionPlan) error {
	if plan.AdminOnly {
		if !actor.Admin() {
			return errs.Unauthorized("action %q requires an admin", plan.Action)
		}
		return nil
	}
	if actor.UserID != booking.UserID && !actor.Admin() {
		return errs.Unauthorized("booking %s does not belong to caller", booking.ID)
	}
	return nil
}

// GetOwned fetches a booking and enforces ownership. Used by the payment
// reconciler before creating a gateway order.
func (s *Service) GetOwned(ctx context.Context, actor auth.Identity, bookingID string) (*models.Booking, error) {
	booking, err := s.DB.GetBookingByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.UserID != actor.UserID && !actor.Admin() {
		return nil, errs.Unauthorized("booking %s does not belong to caller", bookingID)
	}
	return booking, nil
}

// GatewayActorID is recorded on events driven by webhook reconciliation
// rather than a user or admin request.
const GatewayActorID = "payment-gateway"

// CompletePayment advances the booking through the payment-success
// transition, appending the payment_success event and enqueueing the
// confirmation notification atomically with the status update.
func (s *Service) CompletePayment(ctx context.Context, bookingID, gatewayOrderID string) error {
	booking, err := s.DB.GetBookingByID(ctx, bookingID)
	if err != nil {
		return err
	}

	plan, err := PlanTransition(booking, ActionPaymentSuccess, GatewayActorID, TransitionParams{GatewayOrderID: gatewayOrderID})
	if err != nil {
		return err
	}

	event := &models.BookingEvent{
		ID:        utils.GenerateEventID(),
		BookingID: booking.ID,
		ActorID:   GatewayActorID,
		Type:      plan.EventType,
		Status:    plan.To,
		Metadata:  plan.Metadata,
		CreatedAt: time.Now().UTC(),
	}

	rec := bookingdb.TransitionRecord{
		BookingID:      booking.ID,
		ExpectedStatus: plan.From,
		NewStatus:      plan.To,
		Event:          event,
		Task:           buildNotification(booking, plan),
	}

	if err := s.DB.ApplyTransition(ctx, rec); err != nil {
		return err
	}

	s.Logger.LogBooking("payment-success", booking.ID, fmt.Sprintf("%s -> %s (order %s)", plan.From, plan.To, gatewayOrderID))
	s.publishTransition(event)
	return nil
}

// RecordPaymentEvent appends an audit event that does not move the ledger
// status (payment_pending at checkout, payment_failed from the webhook).
func (s *Service) RecordPaymentEvent(ctx context.Context, bookingID string, eventType models.EventType, metadata map[string]string) error {
	booking, err := s.DB.GetBookingByID(ctx, bookingID)
	if err != nil {
		return err
	}

	event := &models.BookingEvent{
		ID:        utils.GenerateEventID(),
		BookingID: booking.ID,
		ActorID:   GatewayActorID,
		Type:      eventType,
		Status:    booking.Status,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	return s.Events.Append(ctx, event)
}

func (s *Service) publishTransition(event *models.BookingEvent) {
	if s.Publisher == nil {
		return
	}
	if err := s.Publisher.PublishTransition(s.LifecycleTopic, event); err != nil {
		s.Logger.Error("KAFKA", fmt.Sprintf("failed to publish %s for booking %s: %v", event.Type, event.BookingID, err))
	}
}
