package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"festival-backend/internal/status"
	"festival-backend/models"

	"github.com/pocketbase/dbx"
)

// ErrTicketsExist is returned by InsertTickets when another writer already
// materialized tickets for the same payment.
var ErrTicketsExist = errors.New("store: tickets already exist for payment")

func (s *Store) TicketsByPayment(ctx context.Context, paymentID string) ([]models.Ticket, error) {
	tickets := []models.Ticket{}
	err := s.db.
		Select("*").
		From("tickets").
		Where(dbx.HashExp{"payment_id": paymentID}).
		OrderBy("seq ASC").
		WithContext(ctx).
		All(&tickets)
	return tickets, err
}

func (s *Store) TicketsByUser(ctx context.Context, userID string) ([]models.Ticket, error) {
	tickets := []models.Ticket{}
	err := s.db.
		Select("*").
		From("tickets").
		Where(dbx.HashExp{"user_id": userID}).
		OrderBy("created DESC", "seq ASC").
		WithContext(ctx).
		All(&tickets)
	return tickets, err
}

func (s *Store) TicketByCode(ctx context.Context, code string) (*models.Ticket, error) {
	t := &models.Ticket{}
	err := s.db.
		Select("*").
		From("tickets").
		Where(dbx.HashExp{"code": code}).
		WithContext(ctx).
		One(t)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, status.ErrTicketNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// InsertTickets writes a payment's full ticket set. A (payment_id, seq)
// collision means a concurrent writer won and yields ErrTicketsExist.
func (s *Store) InsertTickets(ctx context.Context, tickets []models.Ticket) error {
	for _, t := range tickets {
		_, err := s.db.Insert("tickets", dbx.Params{
			"id":                t.ID,
			"user_id":           t.UserID,
			"payment_id":        t.PaymentID,
			"seq":               t.Seq,
			"event_name":        t.EventName,
			"ticket_type":       t.TicketType,
			"event_date":        t.EventDate.String(),
			"unit_price":        t.UnitPrice,
			"amount_minor":      t.AmountMinor,
			"currency":          t.Currency,
			"code":              t.Code,
			"status":            string(t.Status),
			"session_id":        t.SessionID,
			"payment_intent_id": t.PaymentIntentID,
			"created":           t.Created.String(),
		}).WithContext(ctx).Execute()
		if IsUniqueViolation(err) {
			return fmt.Errorf("%w: %v", ErrTicketsExist, err)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// TransitionTicket moves a ticket identified by code from one status to the
// next, refusing any move the lifecycle does not allow.
func (s *Store) TransitionTicket(ctx context.Context, code string, from, to models.TicketStatus) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: ticket %s -> %s", status.ErrInvalidTransition, from, to)
	}
	res, err := s.db.Update("tickets",
		dbx.Params{"status": string(to)},
		dbx.HashExp{"code": code, "status": string(from)},
	).WithContext(ctx).Execute()
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: ticket is no longer %s", status.ErrInvalidTransition, from)
	}
	return nil
}
