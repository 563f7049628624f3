package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/mail"

	"festival-backend/models"
	"festival-backend/utils"

	"github.com/pocketbase/pocketbase/tools/mailer"
	pubnub "github.com/pubnub/go/v7"
)

// TicketsIssued describes one fulfilled payment for downstream notification.
type TicketsIssued struct {
	PaymentID string
	UserID    string
	Email     string
	Tickets   []models.Ticket
}

type Notifier interface {
	NotifyTicketsIssued(ctx context.Context, n TicketsIssued) error
}

// MultiNotifier fans out to every notifier and joins their errors.
type MultiNotifier []Notifier

func (m MultiNotifier) NotifyTicketsIssued(ctx context.Context, n TicketsIssued) error {
	var errs []error
	for _, notifier := range m {
		if err := notifier.NotifyTicketsIssued(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MailNotifier sends one email per ticket with the code rendered as a QR image.
type MailNotifier struct {
	mailer mailer.Mailer
	from   mail.Address
	logger *slog.Logger
}

func NewMailNotifier(m mailer.Mailer, from mail.Address, logger *slog.Logger) *MailNotifier {
	return &MailNotifier{mailer: m, from: from, logger: logger}
}

var ticketEmail = template.Must(template.New("ticket").Parse(`<p>Your ticket for <strong>{{.EventName}}</strong> is ready.</p>
<p>Type: {{.TicketType}}</p>
<p>Ticket code: <code>{{.Code}}</code></p>
<p><img src="cid:{{.Attachment}}" alt="QR code for {{.TicketType}}" width="256" height="256"></p>
<p>Show this code at the entrance.</p>`))

func (n *MailNotifier) NotifyTicketsIssued(_ context.Context, issued TicketsIssued) error {
	if issued.Email == "" {
		n.logger.Warn("No email address for ticket owner", "payment_id", issued.PaymentID, "user_id", issued.UserID)
		return nil
	}

	var errs []error
	for _, t := range issued.Tickets {
		if err := n.sendTicket(issued.Email, t); err != nil {
			n.logger.Error("Failed to send ticket email", "ticket_code", t.Code, "payment_id", issued.PaymentID, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (n *MailNotifier) sendTicket(address string, t models.Ticket) error {
	png, err := utils.EncodeQR(t.Code)
	if err != nil {
		return fmt.Errorf("encode qr: %w", err)
	}

	attachment := fmt.Sprintf("ticket-%s.png", t.Code)

	var body bytes.Buffer
	err = ticketEmail.Execute(&body, map[string]string{
		"EventName":  t.EventName,
		"TicketType": t.TicketType,
		"Code":       t.Code,
		"Attachment": attachment,
	})
	if err != nil {
		return err
	}

	return n.mailer.Send(&mailer.Message{
		From:    n.from,
		To:      []mail.Address{{Address: address}},
		Subject: fmt.Sprintf("Your ticket for %s", t.EventName),
		HTML:    body.String(),
		InlineAttachments: map[string]io.Reader{
			attachment: bytes.NewReader(png),
		},
	})
}

// Publisher is the slice of the realtime client the notifier uses.
type Publisher interface {
	Publish(channel string, message map[string]any) error
}

type PubNubPublisher struct {
	pn *pubnub.PubNub
}

func NewPubNubPublisher(pn *pubnub.PubNub) *PubNubPublisher {
	return &PubNubPublisher{pn: pn}
}

func (p *PubNubPublisher) Publish(channel string, message map[string]any) error {
	_, _, err := p.pn.Publish().
		Channel(channel).
		Message(message).
		Execute()
	return err
}

// RealtimeNotifier pushes a tickets_issued message to the owner's channel so
// an open success page can stop polling.
type RealtimeNotifier struct {
	publisher Publisher
}

func NewRealtimeNotifier(p Publisher) *RealtimeNotifier {
	return &RealtimeNotifier{publisher: p}
}

func UserChannel(userID string) string {
	return fmt.Sprintf("user-%s", userID)
}

func (n *RealtimeNotifier) NotifyTicketsIssued(_ context.Context, issued TicketsIssued) error {
	return n.publisher.Publish(UserChannel(issued.UserID), map[string]any{
		"type":       "tickets_issued",
		"payment_id": issued.PaymentID,
		"count":      len(issued.Tickets),
	})
}
