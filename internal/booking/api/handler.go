package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-booking/internal/auth"
	"ms-booking/internal/booking"
	"ms-booking/internal/errs"
	"ms-booking/internal/logger"
	"ms-booking/internal/utils"
)

type Handler struct {
	Service *booking.Service
	Logger  *logger.Logger
}

func NewHandler(service *booking.Service, log *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: log}
}

// actionRequest is the shared body for lifecycle action endpoints. Each action
// reads only the fields it needs.
type actionRequest struct {
	Reason       string `json:"reason,omitempty"`
	Notes        string `json:"notes,omitempty"`
	NewDate      string `json:"new_date,omitempty"`
	NewSlot      string `json:"new_slot,omitempty"`
	RefundAmount int64  `json:"amount,omitempty"`
}

func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	actor := auth.CallerIdentity(r.Context())
	if actor.UserID == "" {
		utils.WriteError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req booking.CreateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateBooking: failed to decode request: %v", err))
		utils.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := h.Service.Create(r.Context(), actor, req)
	if err != nil {
		h.writeServiceError(w, "CreateBooking", err)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"booking": created,
	})
}

func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	actor := auth.CallerIdentity(r.Context())
	if actor.UserID == "" {
		utils.WriteError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	bookingID := chi.URLParam(r, "bookingId")
	h.Logger.Info("API", fmt.Sprintf("GetBooking: bookingId=%s actor=%s", bookingID, actor.UserID))

	detail, err := h.Service.Get(r.Context(), actor, bookingID)
	if err != nil {
		h.writeServiceError(w, "GetBooking", err)
		return
	}

	resp := map[string]any{
		"success": true,
		"booking": detail.Booking,
		"events":  detail.Events,
	}
	if detail.LastEvent != nil {
		resp["last_event"] = detail.LastEvent
	}
	utils.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) ListBookings(w http.ResponseWriter, r *http.Request) {
	actor := auth.CallerIdentity(r.Context())
	if actor.UserID == "" {
		utils.WriteError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	ownerID := r.URL.Query().Get("owner")
	bookings, err := h.Service.ListByOwner(r.Context(), actor, ownerID)
	if err != nil {
		h.writeServiceError(w, "ListBookings", err)
		return
	}

	utils.WriteSuccess(w, bookings)
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, booking.ActionCancel)
}

func (h *Handler) Reschedule(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, booking.ActionReschedule)
}

func (h *Handler) RequestReturn(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, booking.ActionReturnRequest)
}

func (h *Handler) ApproveReturn(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, booking.ActionReturnApprove)
}

func (h *Handler) RejectReturn(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, booking.ActionReturnReject)
}

func (h *Handler) CompleteReturn(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, booking.ActionReturnComplete)
}

func (h *Handler) Refund(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, booking.ActionRefund)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, action booking.Action) {
	actor := auth.CallerIdentity(r.Context())
	if actor.UserID == "" {
		utils.WriteError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	bookingID := chi.URLParam(r, "bookingId")
	h.Logger.Info("API", fmt.Sprintf("%s: bookingId=%s actor=%s", action, bookingID, actor.UserID))

	var req actionRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.Logger.Error("API", fmt.Sprintf("%s: failed to decode request: %v", action, err))
			utils.WriteError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	params := booking.TransitionParams{
		Reason:       req.Reason,
		Notes:        req.Notes,
		NewDate:      req.NewDate,
		NewSlot:      req.NewSlot,
		RefundAmount: req.RefundAmount,
	}

	if err := h.Service.Transition(r.Context(), actor, bookingID, action, params); err != nil {
		h.writeServiceError(w, string(action), err)
		return
	}

	utils.WriteSuccess(w, nil)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, op string, err error) {
	status := errs.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
	} else {
		h.Logger.Warn("API", fmt.Sprintf("%s: %v", op, err))
	}
	utils.WriteError(w, status, errs.PublicMessage(err))
}
