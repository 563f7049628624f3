package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"festival-backend/internal/services/gateway"
	"festival-backend/internal/status"
	"festival-backend/internal/store"
	"festival-backend/models"
	"festival-backend/monitoring"
	"festival-backend/utils"

	"github.com/google/uuid"
	"github.com/pocketbase/pocketbase/tools/types"
)

const notifyTimeout = time.Minute

// FulfillmentResult reports what a webhook delivery did. Every result is
// acknowledged to the processor.
type FulfillmentResult struct {
	Outcome   string
	EventID   string
	PaymentID string
	Tickets   []models.Ticket
	Created   bool
}

type FulfillmentService struct {
	store    *store.Store
	verifier gateway.EventVerifier
	ledger   EventLedger
	notifier Notifier
	logger   *slog.Logger

	newCode func() (string, error)
	wg      sync.WaitGroup
}

func NewFulfillmentService(s *store.Store, verifier gateway.EventVerifier, ledger EventLedger, notifier Notifier, logger *slog.Logger) *FulfillmentService {
	return &FulfillmentService{
		store:    s,
		verifier: verifier,
		ledger:   ledger,
		notifier: notifier,
		logger:   logger,
		newCode:  utils.GenerateTicketCode,
	}
}

// HandleEvent authenticates a webhook delivery and, for completed checkouts,
// marks the payment paid and materializes its tickets exactly once. An error
// is returned only for deliveries that failed authentication or parsing.
func (s *FulfillmentService) HandleEvent(ctx context.Context, payload []byte, signature string) (*FulfillmentResult, error) {
	ev, err := s.verifier.VerifyEvent(payload, signature)
	if err != nil {
		monitoring.TrackWebhookEvent(monitoring.OutcomeInvalid)
		s.logger.Warn("Rejected webhook delivery", "error", err)
		return nil, err
	}

	result := &FulfillmentResult{EventID: ev.ID}

	if ev.Type != gateway.EventCheckoutCompleted || ev.Session == nil {
		result.Outcome = monitoring.OutcomeIgnored
		monitoring.TrackWebhookEvent(result.Outcome)
		return result, nil
	}

	if seen, err := s.ledger.Seen(ctx, ev.ID); err != nil {
		s.logger.Warn("Webhook ledger unavailable", "event_id", ev.ID, "error", err)
	} else if seen {
		result.Outcome = monitoring.OutcomeDuplicate
		monitoring.TrackWebhookEvent(result.Outcome)
		return result, nil
	}

	payment, err := s.resolvePayment(ctx, ev.Session)
	if errors.Is(err, status.ErrPaymentNotFound) {
		s.logger.Warn("Webhook references unknown payment",
			"event_id", ev.ID,
			"session_id", ev.Session.ID,
			"metadata_payment_id", ev.Session.Metadata[gateway.MetadataPaymentID],
		)
		result.Outcome = monitoring.OutcomeUnresolved
		monitoring.TrackWebhookEvent(result.Outcome)
		return result, nil
	}
	if err != nil {
		return nil, s.fail(ev.ID, fmt.Errorf("resolve payment: %w", err))
	}
	result.PaymentID = payment.ID

	tickets, created, refused, err := s.fulfill(ctx, payment.ID, ev.Session)
	if err != nil {
		return nil, s.fail(ev.ID, err)
	}

	if refused != "" {
		s.logger.Error("Completed checkout for a payment that is not payable",
			"event_id", ev.ID,
			"payment_id", payment.ID,
			"status", refused,
		)
		result.Outcome = monitoring.OutcomeAnomaly
		monitoring.TrackWebhookEvent(result.Outcome)
		s.markHandled(ctx, ev.ID)
		return result, nil
	}

	if want := payment.Items.TicketCount(); len(tickets) != want {
		s.logger.Error("Ticket count does not match snapshot",
			"payment_id", payment.ID,
			"tickets", len(tickets),
			"expected", want,
		)
	}

	result.Outcome = monitoring.OutcomeFulfilled
	result.Tickets = tickets
	result.Created = created
	monitoring.TrackWebhookEvent(result.Outcome)
	if created {
		monitoring.TrackTicketsIssued(len(tickets))
	}

	s.markHandled(ctx, ev.ID)
	s.logger.Info("Payment fulfilled",
		"event_id", ev.ID,
		"payment_id", payment.ID,
		"tickets", len(tickets),
		"created", created,
	)

	s.dispatch(payment.ID, payment.UserID, tickets)

	return result, nil
}

// Wait blocks until all in-flight notifications have finished.
func (s *FulfillmentService) Wait() {
	s.wg.Wait()
}

func (s *FulfillmentService) fail(eventID string, err error) error {
	monitoring.TrackWebhookEvent(monitoring.OutcomeFailed)
	s.logger.Error("Webhook fulfillment failed", "event_id", eventID, "error", err)
	return err
}

// resolvePayment tries the session id, then the payment id from metadata,
// then the client reference.
func (s *FulfillmentService) resolvePayment(ctx context.Context, sess *gateway.CompletedSession) (*models.Payment, error) {
	p, err := s.store.PaymentBySessionID(ctx, sess.ID)
	if !errors.Is(err, status.ErrPaymentNotFound) {
		return p, err
	}

	for _, id := range []string{sess.Metadata[gateway.MetadataPaymentID], sess.ClientReferenceID} {
		if id == "" {
			continue
		}
		p, err = s.store.PaymentByID(ctx, id)
		if !errors.Is(err, status.ErrPaymentNotFound) {
			return p, err
		}
	}

	return nil, status.ErrPaymentNotFound
}

// fulfill runs the paid transition and ticket materialization in one
// transaction. refused is set to the payment status when the payment can no
// longer be paid.
func (s *FulfillmentService) fulfill(ctx context.Context, paymentID string, sess *gateway.CompletedSession) (tickets []models.Ticket, created bool, refused models.PaymentStatus, err error) {
	err = s.store.RunInTransaction(ctx, func(tx *store.Store) error {
		p, err := tx.PaymentByID(ctx, paymentID)
		if err != nil {
			return err
		}

		switch p.Status {
		case models.PaymentPaid:
		case models.PaymentPending:
			ok, err := tx.MarkPaid(ctx, p.ID, sess.PaymentIntentID)
			if err != nil {
				return fmt.Errorf("mark paid: %w", err)
			}
			if !ok {
				return fmt.Errorf("payment %s changed status during fulfillment", p.ID)
			}
			p.PaymentIntentID = sess.PaymentIntentID
		default:
			refused = p.Status
			return nil
		}

		existing, err := tx.TicketsByPayment(ctx, p.ID)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			tickets = existing
			return nil
		}

		fresh, err := s.materialize(p, sess.ID)
		if err != nil {
			return err
		}
		if err := tx.InsertTickets(ctx, fresh); err != nil {
			return err
		}
		tickets, created = fresh, true
		return nil
	})

	if errors.Is(err, store.ErrTicketsExist) {
		s.logger.Info("Concurrent fulfillment won, reusing tickets", "payment_id", paymentID)
		tickets, err = s.store.TicketsByPayment(ctx, paymentID)
		return tickets, false, "", err
	}
	if err != nil {
		return nil, false, "", err
	}
	return tickets, created, refused, nil
}

// materialize expands the frozen snapshot into one active ticket per unit.
func (s *FulfillmentService) materialize(p *models.Payment, sessionID string) ([]models.Ticket, error) {
	if p.SessionID != "" {
		sessionID = p.SessionID
	}

	now := types.NowDateTime()
	tickets := make([]models.Ticket, 0, p.Items.TicketCount())
	seq := 0

	for _, item := range p.Items {
		perUnit := item.PerUnit()
		for i := 0; i < item.Quantity; i++ {
			code, err := s.newCode()
			if err != nil {
				return nil, fmt.Errorf("generate ticket code: %w", err)
			}
			seq++
			tickets = append(tickets, models.Ticket{
				ID:              uuid.NewString(),
				UserID:          p.UserID,
				PaymentID:       p.ID,
				Seq:             seq,
				EventName:       item.EventName,
				TicketType:      item.TicketType,
				EventDate:       item.EventDate,
				UnitPrice:       perUnit,
				AmountMinor:     perUnit,
				Currency:        p.Currency,
				Code:            code,
				Status:          models.TicketActive,
				SessionID:       sessionID,
				PaymentIntentID: p.PaymentIntentID,
				Created:         now,
			})
		}
	}

	return tickets, nil
}

func (s *FulfillmentService) markHandled(ctx context.Context, eventID string) {
	if err := s.ledger.Mark(ctx, eventID); err != nil {
		s.logger.Warn("Failed to record webhook event", "event_id", eventID, "error", err)
	}
}

// dispatch notifies the owner in the background. Failures are logged only.
func (s *FulfillmentService) dispatch(paymentID, userID string, tickets []models.Ticket) {
	if s.notifier == nil || len(tickets) == 0 {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()

		issued := TicketsIssued{PaymentID: paymentID, UserID: userID, Tickets: tickets}
		if c, err := s.store.CustomerByUID(ctx, userID); err == nil {
			issued.Email = c.Email
		} else if !errors.Is(err, store.ErrCustomerNotFound) {
			s.logger.Warn("Failed to load customer for notification", "user_id", userID, "error", err)
		}

		if err := s.notifier.NotifyTicketsIssued(ctx, issued); err != nil {
			s.logger.Error("Ticket notification failed", "payment_id", paymentID, "error", err)
		}
	}()
}
