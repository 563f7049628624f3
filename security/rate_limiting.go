package security

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/redis/go-redis/v9"
)

// KeyFunc identifies the caller a request is counted against.
type KeyFunc func(e *core.RequestEvent) string

type RateLimiter struct {
	redis  redis.Cmdable
	limit  int
	window time.Duration
	logger *slog.Logger
}

func NewRateLimiter(redisClient redis.Cmdable, limit int, window time.Duration, logger *slog.Logger) *RateLimiter {
	return &RateLimiter{redis: redisClient, limit: limit, window: window, logger: logger}
}

// Allow counts one request for key in the current window. Redis errors are
// returned with allowed set so callers can fail open.
func (r *RateLimiter) Allow(ctx context.Context, scope, key string) (bool, error) {
	if r.limit <= 0 {
		return true, nil
	}

	redisKey := fmt.Sprintf("ratelimit:%s:%s", scope, key)
	count, err := r.redis.Incr(ctx, redisKey).Result()
	if err != nil {
		return true, err
	}
	if count == 1 {
		if err := r.redis.Expire(ctx, redisKey, r.window).Err(); err != nil {
			return true, err
		}
	}
	return count <= int64(r.limit), nil
}

// Middleware rejects callers that exceed the limit with 429.
func (r *RateLimiter) Middleware(scope string, keyFn KeyFunc) func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		key := keyFn(e)
		allowed, err := r.Allow(e.Request.Context(), scope, key)
		if err != nil {
			r.logger.Warn("Rate limiter unavailable, allowing request", "scope", scope, "error", err)
		}
		if !allowed {
			return apis.NewTooManyRequestsError("Rate limit exceeded. Please try again later.", nil)
		}
		return e.Next()
	}
}

// AntiBotMiddleware refuses obvious automated clients.
func (r *RateLimiter) AntiBotMiddleware() func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		if isSuspiciousUserAgent(e.Request.Header.Get("User-Agent")) {
			return apis.NewForbiddenError("Access denied", nil)
		}
		return e.Next()
	}
}

func isSuspiciousUserAgent(ua string) bool {
	suspicious := []string{"bot", "crawler", "spider", "scraper"}
	ua = strings.ToLower(ua)
	for _, pattern := range suspicious {
		if strings.Contains(ua, pattern) {
			return true
		}
	}
	return false
}
