package models

import (
	"github.com/pocketbase/pocketbase/tools/types"
)

type TicketStatus string

const (
	TicketPending   TicketStatus = "pending"
	TicketActive    TicketStatus = "active"
	TicketUsed      TicketStatus = "used"
	TicketCancelled TicketStatus = "cancelled"
)

// CanTransitionTo reports whether a ticket may move from s to next.
// pending -> active -> used; cancellation leaves from pending or active.
func (s TicketStatus) CanTransitionTo(next TicketStatus) bool {
	switch s {
	case TicketPending:
		return next == TicketActive || next == TicketCancelled
	case TicketActive:
		return next == TicketUsed || next == TicketCancelled
	}
	return false
}

func (s TicketStatus) Valid() bool {
	switch s {
	case TicketPending, TicketActive, TicketUsed, TicketCancelled:
		return true
	}
	return false
}

type Ticket struct {
	ID              string         `db:"id" json:"id"`
	UserID          string         `db:"user_id" json:"user_id"`
	PaymentID       string         `db:"payment_id" json:"payment_id"`
	Seq             int            `db:"seq" json:"-"`
	EventName       string         `db:"event_name" json:"event_name"`
	TicketType      string         `db:"ticket_type" json:"ticket_type"`
	EventDate       types.DateTime `db:"event_date" json:"event_date"`
	UnitPrice       int64          `db:"unit_price" json:"unit_price"`
	AmountMinor     int64          `db:"amount_minor" json:"amount_minor"`
	Currency        string         `db:"currency" json:"currency"`
	Code            string         `db:"code" json:"ticket_code"`
	Status          TicketStatus   `db:"status" json:"status"`
	SessionID       string         `db:"session_id" json:"-"`
	PaymentIntentID string         `db:"payment_intent_id" json:"-"`
	Created         types.DateTime `db:"created" json:"created"`
}
