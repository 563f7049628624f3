package handlers

import (
	"net/http"

	"festival-backend/internal/services"

	"github.com/pocketbase/pocketbase/core"
)

type PaymentHandler struct {
	paymentService *services.PaymentService
}

func NewPaymentHandler(paymentService *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

// VerifySession - Poll whether the caller's checkout session has been paid
func (h *PaymentHandler) VerifySession(e *core.RequestEvent) error {
	id, err := CurrentIdentity(e)
	if err != nil {
		return err
	}

	sessionID := e.Request.URL.Query().Get("session_id")
	res, err := h.paymentService.VerifySession(e.Request.Context(), id.UID, sessionID)
	if err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusOK, res)
}

// GetPayment - Get one of the caller's payments
func (h *PaymentHandler) GetPayment(e *core.RequestEvent) error {
	id, err := CurrentIdentity(e)
	if err != nil {
		return err
	}

	payment, err := h.paymentService.PaymentForUser(e.Request.Context(), id.UID, e.Request.PathValue("paymentId"))
	if err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusOK, payment)
}
