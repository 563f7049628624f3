package gateway

import (
	"context"
	"fmt"
	"time"

	"festival-backend/internal/status"
	"festival-backend/monitoring"
	"festival-backend/utils"
)

// Guarded bounds every processor call with a timeout and a circuit breaker.
// Calls are never retried; failures surface as status.ErrGateway.
type Guarded struct {
	next    Processor
	breaker *utils.CircuitBreaker
	timeout time.Duration
}

func NewGuarded(next Processor, breaker *utils.CircuitBreaker, timeout time.Duration) *Guarded {
	return &Guarded{next: next, breaker: breaker, timeout: timeout}
}

func (g *Guarded) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	var sess *Session
	err := g.call(ctx, "create_session", func(ctx context.Context) error {
		var err error
		sess, err = g.next.CreateSession(ctx, req)
		return err
	})
	return sess, err
}

func (g *Guarded) RetrieveSession(ctx context.Context, sessionID string) (*Session, error) {
	var sess *Session
	err := g.call(ctx, "retrieve_session", func(ctx context.Context) error {
		var err error
		sess, err = g.next.RetrieveSession(ctx, sessionID)
		return err
	})
	return sess, err
}

func (g *Guarded) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	started := time.Now()
	err := g.breaker.Do(ctx, fn)
	monitoring.TrackGatewayCall(op, started, err)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", status.ErrGateway, op, err)
	}
	return nil
}
