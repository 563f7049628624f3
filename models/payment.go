package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pocketbase/pocketbase/tools/types"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentPaid      PaymentStatus = "paid"
	PaymentFailed    PaymentStatus = "failed"
	PaymentCancelled PaymentStatus = "cancelled"
)

// CanTransitionTo reports whether a payment may move from s to next.
// Only pending payments move, and only forward.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	if s != PaymentPending {
		return false
	}
	switch next {
	case PaymentPaid, PaymentFailed, PaymentCancelled:
		return true
	}
	return false
}

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentPaid, PaymentFailed, PaymentCancelled:
		return true
	}
	return false
}

// SnapshotItem is one priced cart line frozen onto a payment at checkout.
type SnapshotItem struct {
	SKU              string         `json:"sku"`
	TicketType       string         `json:"ticket_type"`
	EventName        string         `json:"event_name"`
	EventDate        types.DateTime `json:"event_date"`
	UnitPrice        int64          `json:"unit_price"`
	TotalAmountMinor int64          `json:"total_amount_minor"`
	Quantity         int            `json:"quantity"`
}

// PerUnit is the amount one ticket of this line is worth.
func (i SnapshotItem) PerUnit() int64 {
	if i.Quantity <= 0 {
		return 0
	}
	return i.TotalAmountMinor / int64(i.Quantity)
}

// Snapshot is stored as a JSON blob on the payment row.
type Snapshot []SnapshotItem

// TicketCount is the number of tickets a paid payment must materialize.
func (s Snapshot) TicketCount() int {
	n := 0
	for _, item := range s {
		n += item.Quantity
	}
	return n
}

func (s Snapshot) TotalMinor() int64 {
	var total int64
	for _, item := range s {
		total += item.TotalAmountMinor
	}
	return total
}

func (s Snapshot) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (s *Snapshot) Scan(value any) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		*s = nil
		return nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return fmt.Errorf("snapshot: unsupported scan type %T", value)
	}
	if len(data) == 0 {
		*s = nil
		return nil
	}
	return json.Unmarshal(data, s)
}

type Payment struct {
	ID              string         `db:"id" json:"id"`
	UserID          string         `db:"user_id" json:"user_id"`
	Currency        string         `db:"currency" json:"currency"`
	Status          PaymentStatus  `db:"status" json:"status"`
	SessionID       string         `db:"session_id" json:"session_id,omitempty"`
	PaymentIntentID string         `db:"payment_intent_id" json:"payment_intent_id,omitempty"`
	Items           Snapshot       `db:"items" json:"items"`
	Created         types.DateTime `db:"created" json:"created"`
	PaidAt          types.DateTime `db:"paid_at" json:"paid_at"`
}

var errPaidAtMismatch = errors.New("payment: paid_at must be set if and only if status is paid")

// Validate checks the record-level invariants of a payment.
func (p *Payment) Validate() error {
	if !p.Status.Valid() {
		return fmt.Errorf("payment: unknown status %q", p.Status)
	}
	if (p.Status == PaymentPaid) == p.PaidAt.IsZero() {
		return errPaidAtMismatch
	}
	return nil
}
