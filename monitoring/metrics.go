package monitoring

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"festival-backend/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeCreated      = "created"
	OutcomeRejected     = "rejected"
	OutcomeGatewayError = "gateway_error"

	OutcomeFulfilled  = "fulfilled"
	OutcomeDuplicate  = "duplicate"
	OutcomeIgnored    = "ignored"
	OutcomeUnresolved = "unresolved"
	OutcomeAnomaly    = "anomaly"
	OutcomeInvalid    = "invalid"
	OutcomeFailed     = "failed"
)

var (
	checkoutSessions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_sessions_total",
			Help: "Checkout attempts by outcome",
		},
		[]string{"outcome"},
	)

	webhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Payment processor webhook deliveries by outcome",
		},
		[]string{"outcome"},
	)

	ticketsIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tickets_issued_total",
			Help: "Tickets created by fulfillment",
		},
	)

	gatewayRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Calls to the payment processor",
		},
		[]string{"operation", "status"},
	)

	gatewayLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_request_duration_seconds",
			Help:    "Payment processor call latency",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"operation"},
	)

	paymentsByStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "payments_by_status",
			Help: "Current number of payments per status",
		},
		[]string{"status"},
	)

	goroutineCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_goroutines_total",
			Help: "Current number of active goroutines",
		},
	)
)

func TrackCheckout(outcome string) {
	checkoutSessions.WithLabelValues(outcome).Inc()
}

func TrackWebhookEvent(outcome string) {
	webhookEvents.WithLabelValues(outcome).Inc()
}

func TrackTicketsIssued(n int) {
	ticketsIssued.Add(float64(n))
}

func TrackGatewayCall(operation string, started time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	gatewayRequests.WithLabelValues(operation, result).Inc()
	gatewayLatency.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

type PaymentCounter interface {
	CountPaymentsByStatus(ctx context.Context) (map[models.PaymentStatus]int64, error)
}

// Monitor refreshes gauges that are derived from stored state.
type Monitor struct {
	payments PaymentCounter
	interval time.Duration
	logger   *slog.Logger
}

func NewMonitor(payments PaymentCounter, interval time.Duration, logger *slog.Logger) *Monitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Monitor{payments: payments, interval: interval, logger: logger}
}

// Run collects until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		m.Collect(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (m *Monitor) Collect(ctx context.Context) {
	m.collectPaymentMetrics(ctx)
	goroutineCount.Set(float64(runtime.NumGoroutine()))
}

func (m *Monitor) collectPaymentMetrics(ctx context.Context) {
	counts, err := m.payments.CountPaymentsByStatus(ctx)
	if err != nil {
		m.logger.Warn("Failed to collect payment metrics", "error", err)
		return
	}

	for _, s := range []models.PaymentStatus{models.PaymentPending, models.PaymentPaid, models.PaymentFailed, models.PaymentCancelled} {
		paymentsByStatus.WithLabelValues(string(s)).Set(float64(counts[s]))
	}
}
