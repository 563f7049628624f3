package services

import (
	"context"
	"log/slog"

	"festival-backend/internal/status"
	"festival-backend/internal/store"
	"festival-backend/models"
	"festival-backend/utils"
)

type TicketService struct {
	store       *store.Store
	allowRedeem bool
	logger      *slog.Logger
}

func NewTicketService(s *store.Store, allowRedeem bool, logger *slog.Logger) *TicketService {
	return &TicketService{store: s, allowRedeem: allowRedeem, logger: logger}
}

func (s *TicketService) ListForUser(ctx context.Context, userID string) ([]models.Ticket, error) {
	return s.store.TicketsByUser(ctx, userID)
}

// owned loads a ticket only if userID owns it; other owners see not found.
func (s *TicketService) owned(ctx context.Context, userID, code string) (*models.Ticket, error) {
	t, err := s.store.TicketByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if t.UserID != userID {
		return nil, status.ErrTicketNotFound
	}
	return t, nil
}

// QRCode renders the scannable image for an active ticket.
func (s *TicketService) QRCode(ctx context.Context, userID, code string) ([]byte, error) {
	t, err := s.owned(ctx, userID, code)
	if err != nil {
		return nil, err
	}
	if t.Status != models.TicketActive {
		return nil, status.ErrTicketNotActive
	}
	return utils.EncodeQR(t.Code)
}

// Redeem marks an active ticket used. It is only enabled in development.
func (s *TicketService) Redeem(ctx context.Context, userID, code string) (*models.Ticket, error) {
	if !s.allowRedeem {
		return nil, status.ErrTicketNotFound
	}

	t, err := s.owned(ctx, userID, code)
	if err != nil {
		return nil, err
	}
	if t.Status != models.TicketActive {
		return nil, status.ErrTicketNotActive
	}

	if err := s.store.TransitionTicket(ctx, code, models.TicketActive, models.TicketUsed); err != nil {
		return nil, err
	}
	t.Status = models.TicketUsed

	s.logger.Info("Ticket redeemed", "ticket_code", code, "user_id", userID)
	return t, nil
}
