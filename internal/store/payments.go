package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"festival-backend/internal/status"
	"festival-backend/models"

	"github.com/google/uuid"
	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/tools/types"
)

// CreatePayment inserts p as a pending payment with its frozen snapshot.
func (s *Store) CreatePayment(ctx context.Context, p *models.Payment) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.Status = models.PaymentPending
	p.Created = types.NowDateTime()
	p.PaidAt = types.DateTime{}

	items, err := p.Items.Value()
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	_, err = s.db.Insert("payments", dbx.Params{
		"id":       p.ID,
		"user_id":  p.UserID,
		"currency": p.Currency,
		"status":   string(p.Status),
		"items":    items,
		"created":  p.Created.String(),
	}).WithContext(ctx).Execute()
	return err
}

func (s *Store) PaymentByID(ctx context.Context, id string) (*models.Payment, error) {
	return s.findPayment(ctx, dbx.HashExp{"id": id})
}

func (s *Store) PaymentBySessionID(ctx context.Context, sessionID string) (*models.Payment, error) {
	if sessionID == "" {
		return nil, status.ErrPaymentNotFound
	}
	return s.findPayment(ctx, dbx.HashExp{"session_id": sessionID})
}

func (s *Store) findPayment(ctx context.Context, where dbx.Expression) (*models.Payment, error) {
	p := &models.Payment{}
	err := s.db.
		Select("*").
		From("payments").
		Where(where).
		WithContext(ctx).
		One(p)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, status.ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// AttachSession stores the processor session id on a payment. The id is set
// at most once and must be globally unique.
func (s *Store) AttachSession(ctx context.Context, paymentID, sessionID string) error {
	res, err := s.db.Update("payments",
		dbx.Params{"session_id": sessionID},
		dbx.HashExp{"id": paymentID, "session_id": ""},
	).WithContext(ctx).Execute()
	if IsUniqueViolation(err) {
		return fmt.Errorf("%w: %s", status.ErrSessionConflict, sessionID)
	}
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: payment %s", status.ErrSessionConflict, paymentID)
	}
	return nil
}

// MarkPaid moves a pending payment to paid, recording the confirmation id and
// paid timestamp. It reports false when the payment was not pending.
func (s *Store) MarkPaid(ctx context.Context, paymentID, intentID string) (bool, error) {
	res, err := s.db.Update("payments",
		dbx.Params{
			"status":            string(models.PaymentPaid),
			"payment_intent_id": intentID,
			"paid_at":           types.NowDateTime().String(),
		},
		dbx.HashExp{"id": paymentID, "status": string(models.PaymentPending)},
	).WithContext(ctx).Execute()
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// TransitionPayment moves a payment to a terminal non-paid status.
func (s *Store) TransitionPayment(ctx context.Context, paymentID string, from, to models.PaymentStatus) error {
	if to == models.PaymentPaid {
		return fmt.Errorf("%w: use MarkPaid", status.ErrInvalidTransition)
	}
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: payment %s -> %s", status.ErrInvalidTransition, from, to)
	}
	res, err := s.db.Update("payments",
		dbx.Params{"status": string(to)},
		dbx.HashExp{"id": paymentID, "status": string(from)},
	).WithContext(ctx).Execute()
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: payment %s is no longer %s", status.ErrInvalidTransition, paymentID, from)
	}
	return nil
}

// CountPaymentsByStatus returns the number of payments per status.
func (s *Store) CountPaymentsByStatus(ctx context.Context) (map[models.PaymentStatus]int64, error) {
	rows := []struct {
		Status string `db:"status"`
		Total  int64  `db:"total"`
	}{}
	err := s.db.
		Select("status", "COUNT(*) AS total").
		From("payments").
		GroupBy("status").
		WithContext(ctx).
		All(&rows)
	if err != nil {
		return nil, err
	}

	counts := make(map[models.PaymentStatus]int64, len(rows))
	for _, r := range rows {
		counts[models.PaymentStatus(r.Status)] = r.Total
	}
	return counts, nil
}
