package handlers

import (
	"net/http"

	"festival-backend/internal/services"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

type CheckoutHandler struct {
	checkoutService *services.CheckoutService
}

func NewCheckoutHandler(checkoutService *services.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{checkoutService: checkoutService}
}

type checkoutRequest struct {
	Items []services.CartLine `json:"items"`
}

// CreateCheckoutSession - Start a hosted checkout for the caller's cart
func (h *CheckoutHandler) CreateCheckoutSession(e *core.RequestEvent) error {
	id, err := CurrentIdentity(e)
	if err != nil {
		return err
	}

	var req checkoutRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	url, err := h.checkoutService.StartCheckout(e.Request.Context(), services.CheckoutRequest{
		UserID: id.UID,
		Email:  id.Email,
		Items:  req.Items,
	})
	if err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{"checkout_url": url})
}
