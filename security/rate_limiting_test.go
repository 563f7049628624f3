package security

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEvent(userAgent string) *core.RequestEvent {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payment/checkout-session", nil)
	req.Header.Set("User-Agent", userAgent)
	e := &core.RequestEvent{}
	e.Request = req
	e.Response = httptest.NewRecorder()
	return e
}

func byUser(*core.RequestEvent) string { return "u1" }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRateLimiter_Middleware(t *testing.T) {
	db, mock := redismock.NewClientMock()
	limiter := NewRateLimiter(db, 2, time.Minute, testLogger())
	handler := limiter.Middleware("checkout", byUser)

	mock.ExpectIncr("ratelimit:checkout:u1").SetVal(1)
	mock.ExpectExpire("ratelimit:checkout:u1", time.Minute).SetVal(true)
	mock.ExpectIncr("ratelimit:checkout:u1").SetVal(2)
	mock.ExpectIncr("ratelimit:checkout:u1").SetVal(3)

	assert.NoError(t, handler(newEvent("Mozilla/5.0")))
	assert.NoError(t, handler(newEvent("Mozilla/5.0")))

	err := handler(newEvent("Mozilla/5.0"))
	var apiErr *router.ApiError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusTooManyRequests, apiErr.Status)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRateLimiter_FailsOpen(t *testing.T) {
	db, mock := redismock.NewClientMock()
	limiter := NewRateLimiter(db, 1, time.Minute, testLogger())

	mock.ExpectIncr("ratelimit:checkout:u1").SetErr(errors.New("connection refused"))

	assert.NoError(t, limiter.Middleware("checkout", byUser)(newEvent("Mozilla/5.0")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRateLimiter_Disabled(t *testing.T) {
	db, mock := redismock.NewClientMock()
	limiter := NewRateLimiter(db, 0, time.Minute, testLogger())

	allowed, err := limiter.Allow(t.Context(), "checkout", "u1")
	assert.NoError(t, err)
	assert.True(t, allowed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAntiBotMiddleware(t *testing.T) {
	limiter := NewRateLimiter(nil, 1, time.Minute, testLogger())
	mw := limiter.AntiBotMiddleware()

	tests := []struct {
		ua      string
		blocked bool
	}{
		{"Mozilla/5.0 (Macintosh)", false},
		{"Googlebot/2.1", true},
		{"my-scraper", true},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.ua, func(t *testing.T) {
			err := mw(newEvent(tt.ua))
			if tt.blocked {
				var apiErr *router.ApiError
				require.True(t, errors.As(err, &apiErr))
				assert.Equal(t, http.StatusForbidden, apiErr.Status)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
