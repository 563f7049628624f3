package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"festival-backend/internal/services/gateway"
	"festival-backend/internal/store"
	"festival-backend/models"

	"github.com/pocketbase/dbx"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76/webhook"

	_ "modernc.org/sqlite"
)

const webhookSecret = "whsec_services_test"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	db, err := dbx.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	db.DB().SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, store.CreateSchema(db))
	return store.New(db)
}

func seedProduct(t *testing.T, s *store.Store, sku string, amount int64, mutate ...func(*models.Product)) *models.Product {
	t.Helper()
	p := &models.Product{SKU: sku, Name: sku, UnitAmount: amount, Currency: "eur", Active: true}
	for _, m := range mutate {
		m(p)
	}
	require.NoError(t, s.UpsertProduct(context.Background(), p))
	return p
}

func countPayments(t *testing.T, s *store.Store) int64 {
	t.Helper()
	counts, err := s.CountPaymentsByStatus(context.Background())
	require.NoError(t, err)
	var total int64
	for _, n := range counts {
		total += n
	}
	return total
}

// fakeProcessor hands out sequential session ids and records requests.
type fakeProcessor struct {
	mu        sync.Mutex
	requests  []gateway.SessionRequest
	next      int
	createErr error

	retrieveStatus string
	retrieveErr    error
	retrieved      int
}

func (f *fakeProcessor) CreateSession(_ context.Context, req gateway.SessionRequest) (*gateway.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.next++
	id := fmt.Sprintf("cs_test_%d", f.next)
	return &gateway.Session{ID: id, URL: "https://checkout.example.com/" + id}, nil
}

func (f *fakeProcessor) RetrieveSession(_ context.Context, id string) (*gateway.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retrieved++
	if f.retrieveErr != nil {
		return nil, f.retrieveErr
	}
	return &gateway.Session{ID: id, PaymentStatus: f.retrieveStatus}, nil
}

// memoryLedger is an in-process EventLedger.
type memoryLedger struct {
	mu     sync.Mutex
	events map[string]bool
	off    bool
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{events: map[string]bool{}}
}

func (l *memoryLedger) Seen(_ context.Context, id string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.off {
		return false, errors.New("ledger down")
	}
	return l.events[id], nil
}

func (l *memoryLedger) Mark(_ context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.off {
		return errors.New("ledger down")
	}
	l.events[id] = true
	return nil
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []TicketsIssued
	err   error
}

func (n *recordingNotifier) NotifyTicketsIssued(_ context.Context, issued TicketsIssued) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, issued)
	return n.err
}

func (n *recordingNotifier) Calls() []TicketsIssued {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]TicketsIssued(nil), n.calls...)
}

func completedPayload(eventID, sessionID, paymentID string) []byte {
	return []byte(fmt.Sprintf(`{
  "id": %q,
  "object": "event",
  "type": "checkout.session.completed",
  "data": {"object": {
    "id": %q,
    "object": "checkout.session",
    "payment_intent": "pi_%s",
    "client_reference_id": %q,
    "metadata": {"payment_id": %q}
  }}
}`, eventID, sessionID, sessionID, paymentID, paymentID))
}

func sign(payload []byte) string {
	return webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    webhookSecret,
		Timestamp: time.Now(),
	}).Header
}

// harness wires the services against one store.
type harness struct {
	store       *store.Store
	processor   *fakeProcessor
	ledger      *memoryLedger
	notifier    *recordingNotifier
	catalog     *CatalogService
	checkout    *CheckoutService
	fulfillment *FulfillmentService
	payments    *PaymentService
	tickets     *TicketService
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		store:     newTestStore(t),
		processor: &fakeProcessor{},
		ledger:    newMemoryLedger(),
		notifier:  &recordingNotifier{},
	}
	logger := discardLogger()

	h.catalog = NewCatalogService(h.store, logger)
	h.checkout = NewCheckoutService(h.store, h.catalog, h.processor, "https://festival.example.com/", "RFF Festival", logger)
	h.fulfillment = NewFulfillmentService(h.store, gateway.NewStripe("sk_test", webhookSecret), h.ledger, h.notifier, logger)
	h.payments = NewPaymentService(h.store, h.processor, logger)
	h.tickets = NewTicketService(h.store, true, logger)

	t.Cleanup(h.fulfillment.Wait)
	return h
}

// checkoutFor runs a checkout and returns the created payment.
func (h *harness) checkoutFor(t *testing.T, userID string, items ...CartLine) *models.Payment {
	t.Helper()
	ctx := context.Background()

	url, err := h.checkout.StartCheckout(ctx, CheckoutRequest{UserID: userID, Email: userID + "@example.com", Items: items})
	require.NoError(t, err)
	require.NotEmpty(t, url)

	h.processor.mu.Lock()
	sessionID := fmt.Sprintf("cs_test_%d", h.processor.next)
	h.processor.mu.Unlock()

	p, err := h.store.PaymentBySessionID(ctx, sessionID)
	require.NoError(t, err)
	return p
}

func (h *harness) deliver(t *testing.T, payload []byte) *FulfillmentResult {
	t.Helper()
	res, err := h.fulfillment.HandleEvent(context.Background(), payload, sign(payload))
	require.NoError(t, err)
	return res
}
