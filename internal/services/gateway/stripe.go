package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"festival-backend/internal/status"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

type Stripe struct {
	api           *client.API
	webhookSecret string
}

func NewStripe(secretKey, webhookSecret string) *Stripe {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &Stripe{api: api, webhookSecret: webhookSecret}
}

func (s *Stripe) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	params := sessionParams(req)
	params.Context = ctx

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, err
	}
	return &Session{ID: sess.ID, URL: sess.URL, PaymentStatus: string(sess.PaymentStatus)}, nil
}

func (s *Stripe) RetrieveSession(ctx context.Context, sessionID string) (*Session, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	sess, err := s.api.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		return nil, err
	}
	return &Session{ID: sess.ID, URL: sess.URL, PaymentStatus: string(sess.PaymentStatus)}, nil
}

// VerifyEvent authenticates a webhook delivery and decodes the checkout
// session object carried by checkout.session.* events.
func (s *Stripe) VerifyEvent(payload []byte, signature string) (*Event, error) {
	if s.webhookSecret == "" || strings.TrimSpace(signature) == "" {
		return nil, status.ErrMissingSignature
	}

	ev, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		if isSignatureError(err) {
			return nil, fmt.Errorf("%w: %v", status.ErrInvalidSignature, err)
		}
		return nil, fmt.Errorf("%w: %v", status.ErrInvalidPayload, err)
	}

	if ev.ID == "" || ev.Type == "" {
		return nil, fmt.Errorf("%w: event id or type missing", status.ErrInvalidPayload)
	}
	out := &Event{ID: ev.ID, Type: string(ev.Type)}

	if strings.HasPrefix(out.Type, "checkout.session.") {
		if ev.Data == nil || len(ev.Data.Raw) == 0 {
			return nil, fmt.Errorf("%w: event has no data object", status.ErrInvalidPayload)
		}
		sess, err := decodeSession(ev.Data.Raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", status.ErrInvalidPayload, err)
		}
		out.Session = sess
	}

	return out, nil
}

func isSignatureError(err error) bool {
	return errors.Is(err, webhook.ErrNotSigned) ||
		errors.Is(err, webhook.ErrInvalidHeader) ||
		errors.Is(err, webhook.ErrNoValidSignature) ||
		errors.Is(err, webhook.ErrTooOld)
}

type sessionObject struct {
	ID                string            `json:"id"`
	PaymentIntent     expandableID      `json:"payment_intent"`
	ClientReferenceID string            `json:"client_reference_id"`
	Metadata          map[string]string `json:"metadata"`
}

// expandableID accepts either a bare id string or an expanded object.
type expandableID string

func (e *expandableID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*e = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*e = expandableID(s)
		return nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*e = expandableID(obj.ID)
	return nil
}

func decodeSession(raw json.RawMessage) (*CompletedSession, error) {
	var obj sessionObject
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, err
	}
	if obj.ID == "" {
		return nil, errors.New("session object has no id")
	}
	return &CompletedSession{
		ID:                obj.ID,
		PaymentIntentID:   string(obj.PaymentIntent),
		ClientReferenceID: obj.ClientReferenceID,
		Metadata:          obj.Metadata,
	}, nil
}

func sessionParams(req SessionRequest) *stripe.CheckoutSessionParams {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
	}
	if req.ClientReferenceID != "" {
		params.ClientReferenceID = stripe.String(req.ClientReferenceID)
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}

	for _, item := range req.LineItems {
		li := &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(int64(item.Quantity)),
		}
		if item.PriceID != "" {
			li.Price = stripe.String(item.PriceID)
		} else {
			li.PriceData = &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(strings.ToLower(item.Currency)),
				UnitAmount: stripe.Int64(item.UnitAmount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(item.Name),
				},
			}
		}
		params.LineItems = append(params.LineItems, li)
	}

	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	return params
}
