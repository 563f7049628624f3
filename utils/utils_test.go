package utils

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Circuit Breaker Tests

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestBreaker(t *testing.T) (*CircuitBreaker, *fakeClock) {
	t.Helper()

	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	cb := NewCircuitBreaker("test", BreakerSettings{
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      10 * time.Second,
		MinRequests:  5,
		FailureRatio: 0.6,
	})
	cb.now = clock.Now
	cb.toNewGeneration(clock.Now())
	return cb, clock
}

var (
	succeed = func(context.Context) error { return nil }
	fail    = func(context.Context) error { return errors.New("failure") }
)

func TestCircuitBreaker_NewCircuitBreaker(t *testing.T) {
	cb := NewCircuitBreaker("stripe", DefaultBreakerSettings())

	assert.Equal(t, "stripe", cb.Name())
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, uint32(1), cb.settings.MaxRequests)
	assert.Equal(t, 0.6, cb.settings.FailureRatio)
}

func TestCircuitBreaker_DoReturnsCallbackError(t *testing.T) {
	cb, _ := newTestBreaker(t)
	expected := errors.New("boom")

	err := cb.Do(context.Background(), func(context.Context) error { return expected })

	assert.ErrorIs(t, err, expected)
	assert.Equal(t, uint32(1), cb.counts.Requests)
	assert.Equal(t, uint32(1), cb.counts.TotalFailures)
}

func TestCircuitBreaker_PassesContext(t *testing.T) {
	cb, _ := newTestBreaker(t)
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "v")

	err := cb.Do(ctx, func(got context.Context) error {
		assert.Equal(t, "v", got.Value(key{}))
		return nil
	})

	assert.NoError(t, err)
}

func TestCircuitBreaker_ClosedToOpen(t *testing.T) {
	cb, _ := newTestBreaker(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		assert.NoError(t, cb.Do(ctx, succeed))
	}
	for i := 0; i < 3; i++ {
		assert.Error(t, cb.Do(ctx, fail))
	}

	assert.Equal(t, StateOpen, cb.State())

	err := cb.Do(ctx, func(context.Context) error {
		t.Fatal("callback must not run while open")
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitBreaker_BelowMinRequestsStaysClosed(t *testing.T) {
	cb, _ := newTestBreaker(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		assert.Error(t, cb.Do(ctx, fail))
	}

	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_OpenToHalfOpenToClosed(t *testing.T) {
	cb, clock := newTestBreaker(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		cb.Do(ctx, fail)
	}
	require.Equal(t, StateOpen, cb.State())

	clock.Advance(11 * time.Second)
	assert.Equal(t, StateHalfOpen, cb.State())

	assert.NoError(t, cb.Do(ctx, succeed))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenToOpen(t *testing.T) {
	cb, clock := newTestBreaker(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		cb.Do(ctx, fail)
	}
	clock.Advance(11 * time.Second)

	assert.Error(t, cb.Do(ctx, fail))
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreaker_HalfOpenLimitsProbes(t *testing.T) {
	cb, clock := newTestBreaker(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		cb.Do(ctx, fail)
	}
	clock.Advance(11 * time.Second)

	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan error)
	go func() {
		done <- cb.Do(ctx, func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	assert.ErrorIs(t, cb.Do(ctx, succeed), ErrTooManyRequests)

	close(release)
	assert.NoError(t, <-done)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_IntervalResetsCounts(t *testing.T) {
	cb, clock := newTestBreaker(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		cb.Do(ctx, fail)
	}
	clock.Advance(2 * time.Minute)

	assert.Error(t, cb.Do(ctx, fail))
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, uint32(1), cb.counts.Requests)
}

func TestCircuitBreaker_ConcurrentAccess(t *testing.T) {
	cb := NewCircuitBreaker("test", DefaultBreakerSettings())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cb.Do(ctx, succeed)
		}()
	}
	wg.Wait()

	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, uint32(50), cb.counts.TotalSuccesses)
}

func TestCircuitBreaker_PanicRecovery(t *testing.T) {
	cb, _ := newTestBreaker(t)

	assert.Panics(t, func() {
		cb.Do(context.Background(), func(context.Context) error {
			panic("test panic")
		})
	})

	assert.Equal(t, uint32(1), cb.counts.TotalFailures)
}

func TestCircuitBreaker_StateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "unknown", State(99).String())
}

// Redis Client Tests

func TestRedisHealthCheck_Success(t *testing.T) {
	db, mock := redismock.NewClientMock()

	mock.ExpectPing().SetVal("PONG")

	err := RedisHealthCheck(context.Background(), db)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisHealthCheck_Failure(t *testing.T) {
	db, mock := redismock.NewClientMock()

	mock.ExpectPing().SetErr(errors.New("connection failed"))

	err := RedisHealthCheck(context.Background(), db)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "redis health check failed")
	assert.Contains(t, err.Error(), "connection failed")
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Code Tests

func TestGenerateTicketCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code, err := GenerateTicketCode()
		require.NoError(t, err)
		assert.Len(t, code, TicketCodeBytes*2)
		assert.Regexp(t, "^[0-9A-F]+$", code)
		assert.False(t, seen[code], "duplicate code %s", code)
		seen[code] = true
	}
}

func TestEncodeQR(t *testing.T) {
	t.Run("renders png", func(t *testing.T) {
		data, err := EncodeQR("ABCDEF0123456789")
		require.NoError(t, err)

		img, err := png.Decode(bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, QRSize, img.Bounds().Dx())
	})

	t.Run("rejects empty payload", func(t *testing.T) {
		_, err := EncodeQR("")
		assert.Error(t, err)
	})
}
