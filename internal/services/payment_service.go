package services

import (
	"context"
	"log/slog"

	"festival-backend/internal/services/gateway"
	"festival-backend/internal/status"
	"festival-backend/internal/store"
	"festival-backend/models"
)

const (
	MessageTicketsReady = "Payment received! Your tickets should be available now."
	MessageFinalizing   = "Payment received! Finalizing tickets..."
	MessageNotConfirmed = "Payment not confirmed yet. Please refresh in a moment."
)

type VerifyResult struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// PaymentService answers success-page polls. It never changes payment or
// ticket state; only fulfillment does.
type PaymentService struct {
	store   *store.Store
	gateway gateway.Processor
	logger  *slog.Logger
}

func NewPaymentService(s *store.Store, gw gateway.Processor, logger *slog.Logger) *PaymentService {
	return &PaymentService{store: s, gateway: gw, logger: logger}
}

func (s *PaymentService) VerifySession(ctx context.Context, userID, sessionID string) (*VerifyResult, error) {
	if sessionID == "" {
		return nil, status.ErrMissingSession
	}

	payment, err := s.store.PaymentBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if payment.UserID != userID {
		return nil, status.ErrPaymentNotFound
	}

	if payment.Status == models.PaymentPaid {
		return &VerifyResult{OK: true, Message: MessageTicketsReady}, nil
	}

	sess, err := s.gateway.RetrieveSession(ctx, sessionID)
	if err != nil {
		s.logger.Warn("Session lookup failed", "session_id", sessionID, "error", err)
		return &VerifyResult{OK: false, Message: MessageNotConfirmed}, nil
	}

	if sess.Paid() {
		return &VerifyResult{OK: true, Message: MessageFinalizing}, nil
	}
	return &VerifyResult{OK: false, Message: MessageNotConfirmed}, nil
}

// PaymentForUser loads a payment only if userID owns it.
func (s *PaymentService) PaymentForUser(ctx context.Context, userID, paymentID string) (*models.Payment, error) {
	payment, err := s.store.PaymentByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.UserID != userID {
		return nil, status.ErrPaymentNotFound
	}
	return payment, nil
}
