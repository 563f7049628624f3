package handlers

import (
	"errors"
	"io"
	"net/http"

	"festival-backend/internal/services"
	"festival-backend/internal/status"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

const (
	SignatureHeader = "Stripe-Signature"
	maxWebhookBytes = 1 << 16
)

type WebhookHandler struct {
	fulfillmentService *services.FulfillmentService
}

func NewWebhookHandler(fulfillmentService *services.FulfillmentService) *WebhookHandler {
	return &WebhookHandler{fulfillmentService: fulfillmentService}
}

// HandleStripe - Receive a signed payment processor event
func (h *WebhookHandler) HandleStripe(e *core.RequestEvent) error {
	payload, err := io.ReadAll(io.LimitReader(e.Request.Body, maxWebhookBytes))
	if err != nil {
		return apis.NewBadRequestError("Unreadable body", nil)
	}

	_, err = h.fulfillmentService.HandleEvent(e.Request.Context(), payload, e.Request.Header.Get(SignatureHeader))
	if err != nil {
		if errors.Is(err, status.ErrMissingSignature) ||
			errors.Is(err, status.ErrInvalidSignature) ||
			errors.Is(err, status.ErrInvalidPayload) {
			return apis.NewBadRequestError("Invalid webhook", nil)
		}
		return apis.NewInternalServerError("Webhook processing failed", nil)
	}

	return e.JSON(http.StatusOK, map[string]any{"received": true})
}
