package handlers

import (
	"net/http"

	"festival-backend/internal/services"
	"festival-backend/models"

	"github.com/pocketbase/pocketbase/core"
)

type TicketHandler struct {
	ticketService *services.TicketService
}

func NewTicketHandler(ticketService *services.TicketService) *TicketHandler {
	return &TicketHandler{ticketService: ticketService}
}

// ListMyTickets - List the caller's tickets
func (h *TicketHandler) ListMyTickets(e *core.RequestEvent) error {
	id, err := CurrentIdentity(e)
	if err != nil {
		return err
	}

	tickets, err := h.ticketService.ListForUser(e.Request.Context(), id.UID)
	if err != nil {
		return apiError(err)
	}
	if tickets == nil {
		tickets = []models.Ticket{}
	}

	return e.JSON(http.StatusOK, map[string]any{"tickets": tickets})
}

// GetTicketQR - Render the QR image of an active ticket
func (h *TicketHandler) GetTicketQR(e *core.RequestEvent) error {
	id, err := CurrentIdentity(e)
	if err != nil {
		return err
	}

	png, err := h.ticketService.QRCode(e.Request.Context(), id.UID, e.Request.PathValue("code"))
	if err != nil {
		return apiError(err)
	}

	e.Response.Header().Set("Cache-Control", "private, no-store")
	return e.Blob(http.StatusOK, "image/png", png)
}

// RedeemTicket - Mark a ticket used (development only)
func (h *TicketHandler) RedeemTicket(e *core.RequestEvent) error {
	id, err := CurrentIdentity(e)
	if err != nil {
		return err
	}

	ticket, err := h.ticketService.Redeem(e.Request.Context(), id.UID, e.Request.PathValue("code"))
	if err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusOK, ticket)
}
