package gateway

import "context"

const (
	EventCheckoutCompleted = "checkout.session.completed"
	PaymentStatusPaid      = "paid"

	MetadataPaymentID = "payment_id"
	MetadataUserID    = "uid"
)

// LineItem is one row of a hosted checkout. PriceID wins over the inline
// price fields when set.
type LineItem struct {
	PriceID    string
	Name       string
	Currency   string
	UnitAmount int64
	Quantity   int
}

type SessionRequest struct {
	LineItems         []LineItem
	SuccessURL        string
	CancelURL         string
	ClientReferenceID string
	CustomerEmail     string
	Metadata          map[string]string
}

type Session struct {
	ID            string
	URL           string
	PaymentStatus string
}

func (s *Session) Paid() bool {
	return s != nil && s.PaymentStatus == PaymentStatusPaid
}

// CompletedSession carries the fields fulfillment needs from a
// checkout session webhook object.
type CompletedSession struct {
	ID                string
	PaymentIntentID   string
	ClientReferenceID string
	Metadata          map[string]string
}

type Event struct {
	ID      string
	Type    string
	Session *CompletedSession
}

type Processor interface {
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
	RetrieveSession(ctx context.Context, sessionID string) (*Session, error)
}

type EventVerifier interface {
	VerifyEvent(payload []byte, signature string) (*Event, error)
}
