package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"festival-backend/internal/services/gateway"
	"festival-backend/internal/status"
	"festival-backend/internal/store"
	"festival-backend/models"
	"festival-backend/monitoring"
)

type CheckoutRequest struct {
	UserID string
	Email  string
	Items  []CartLine
}

type CheckoutService struct {
	store            *store.Store
	catalog          *CatalogService
	gateway          gateway.Processor
	frontendURL      string
	defaultEventName string
	logger           *slog.Logger
}

func NewCheckoutService(s *store.Store, catalog *CatalogService, gw gateway.Processor, frontendURL, defaultEventName string, logger *slog.Logger) *CheckoutService {
	return &CheckoutService{
		store:            s,
		catalog:          catalog,
		gateway:          gw,
		frontendURL:      strings.TrimRight(frontendURL, "/"),
		defaultEventName: defaultEventName,
		logger:           logger,
	}
}

func (s *CheckoutService) SuccessURL() string {
	return s.frontendURL + "/tickets/success?session_id={CHECKOUT_SESSION_ID}"
}

func (s *CheckoutService) CancelURL() string {
	return s.frontendURL + "/cart"
}

// StartCheckout turns a cart into a pending payment with a frozen snapshot
// and returns the hosted checkout URL. The payment row is written before the
// processor is called; a later failure leaves it pending without a session.
func (s *CheckoutService) StartCheckout(ctx context.Context, req CheckoutRequest) (string, error) {
	if err := ValidateCart(req.Items); err != nil {
		monitoring.TrackCheckout(monitoring.OutcomeRejected)
		return "", err
	}

	skus := make([]string, len(req.Items))
	for i, item := range req.Items {
		skus[i] = item.SKU
	}
	products, err := s.catalog.Resolve(ctx, skus)
	if err != nil {
		if errors.Is(err, status.ErrUnknownSKU) {
			monitoring.TrackCheckout(monitoring.OutcomeRejected)
		}
		return "", err
	}

	snapshot, currency, err := s.freeze(req.Items, products)
	if err != nil {
		monitoring.TrackCheckout(monitoring.OutcomeRejected)
		return "", err
	}

	if err := s.store.UpsertCustomer(ctx, req.UserID, req.Email); err != nil {
		return "", fmt.Errorf("record customer: %w", err)
	}

	payment := &models.Payment{
		UserID:   req.UserID,
		Currency: currency,
		Items:    snapshot,
	}
	if err := s.store.CreatePayment(ctx, payment); err != nil {
		return "", fmt.Errorf("create payment: %w", err)
	}

	sess, err := s.gateway.CreateSession(ctx, gateway.SessionRequest{
		LineItems:         lineItems(req.Items, products),
		SuccessURL:        s.SuccessURL(),
		CancelURL:         s.CancelURL(),
		ClientReferenceID: payment.ID,
		CustomerEmail:     req.Email,
		Metadata: map[string]string{
			gateway.MetadataPaymentID: payment.ID,
			gateway.MetadataUserID:    req.UserID,
		},
	})
	if err != nil {
		monitoring.TrackCheckout(monitoring.OutcomeGatewayError)
		s.logger.Error("Failed to create checkout session", "payment_id", payment.ID, "error", err)
		return "", err
	}

	if err := s.store.AttachSession(ctx, payment.ID, sess.ID); err != nil {
		s.logger.Error("Failed to attach checkout session", "payment_id", payment.ID, "session_id", sess.ID, "error", err)
		return "", err
	}

	monitoring.TrackCheckout(monitoring.OutcomeCreated)
	s.logger.Info("Checkout session created",
		"payment_id", payment.ID,
		"session_id", sess.ID,
		"user_id", req.UserID,
		"tickets", snapshot.TicketCount(),
		"total", models.FormatMinor(snapshot.TotalMinor()),
		"currency", currency,
	)

	return sess.URL, nil
}

// freeze prices every cart line at the current catalog price.
func (s *CheckoutService) freeze(items []CartLine, products map[string]models.Product) (models.Snapshot, string, error) {
	snapshot := make(models.Snapshot, 0, len(items))
	currency := ""

	for _, item := range items {
		p := products[item.SKU]

		c := strings.ToLower(p.Currency)
		if currency == "" {
			currency = c
		} else if c != currency {
			return nil, "", fmt.Errorf("%w: %s and %s", status.ErrMixedCurrency, currency, c)
		}

		eventName := p.EventName
		if eventName == "" {
			eventName = s.defaultEventName
		}

		snapshot = append(snapshot, models.SnapshotItem{
			SKU:              p.SKU,
			TicketType:       p.Name,
			EventName:        eventName,
			EventDate:        p.EventDate,
			UnitPrice:        p.UnitAmount,
			TotalAmountMinor: p.UnitAmount * int64(item.Quantity),
			Quantity:         item.Quantity,
		})
	}

	return snapshot, currency, nil
}

func lineItems(items []CartLine, products map[string]models.Product) []gateway.LineItem {
	out := make([]gateway.LineItem, 0, len(items))
	for _, item := range items {
		p := products[item.SKU]
		out = append(out, gateway.LineItem{
			PriceID:    p.ExternalPriceID,
			Name:       p.Name,
			Currency:   p.Currency,
			UnitAmount: p.UnitAmount,
			Quantity:   item.Quantity,
		})
	}
	return out
}
