package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"ms-booking/internal/auth"
	"ms-booking/internal/errs"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/payment"
	"ms-booking/internal/utils"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw webhook body.
const SignatureHeader = "X-Gateway-Signature"

type Handler struct {
	Reconciler *payment.Reconciler
	Logger     *logger.Logger
}

func NewHandler(reconciler *payment.Reconciler, log *logger.Logger) *Handler {
	return &Handler{Reconciler: reconciler, Logger: log}
}

// CreateOrder handles POST /payments/order.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	actor := auth.CallerIdentity(r.Context())
	if actor.UserID == "" {
		utils.WriteError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req models.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateOrder: failed to decode request: %v", err))
		utils.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.Logger.Info("API", fmt.Sprintf("CreateOrder: booking=%s amount=%d actor=%s", req.BookingID, req.AmountMinor, actor.UserID))

	resp, err := h.Reconciler.CreateOrder(r.Context(), actor, req)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateOrder: %v", err))
		utils.WriteError(w, errs.HTTPStatus(err), errs.PublicMessage(err))
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"orderId":  resp.OrderID,
		"amount":   resp.Amount,
		"currency": resp.Currency,
	})
}

// ListPayments handles GET /bookings/{bookingId}/payments.
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	actor := auth.CallerIdentity(r.Context())
	if actor.UserID == "" {
		utils.WriteError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	bookingID := chi.URLParam(r, "bookingId")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	payments, err := h.Reconciler.ListForBooking(r.Context(), actor, bookingID, limit, offset)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListPayments: %v", err))
		utils.WriteError(w, errs.HTTPStatus(err), errs.PublicMessage(err))
		return
	}

	utils.WriteSuccess(w, payments)
}

// HandleWebhook handles POST /payments/webhook. Bad signatures and payloads
// get 400; internal failures get their mapped 5xx so the gateway redelivers
// and the reconciler can finish the ledger transition.
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	rawBody, err := io.ReadAll(r.Body)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("HandleWebhook: failed to read body: %v", err))
		utils.WriteError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	signature := r.Header.Get(SignatureHeader)
	if err := h.Reconciler.HandleWebhook(r.Context(), rawBody, signature); err != nil {
		status := errs.HTTPStatus(err)
		if status == http.StatusBadRequest {
			h.Logger.Warn("API", fmt.Sprintf("HandleWebhook: rejected: %v", err))
		} else {
			h.Logger.Error("API", fmt.Sprintf("HandleWebhook: %v", err))
		}
		utils.WriteError(w, status, errs.PublicMessage(err))
		return
	}

	utils.WriteSuccess(w, nil)
}
