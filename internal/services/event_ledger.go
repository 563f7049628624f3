package services

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// EventLedger remembers webhook event ids that were fully handled so that
// redeliveries can be acknowledged early. It is an optimization only; the
// database constraints decide correctness.
type EventLedger interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
}

type RedisEventLedger struct {
	redis redis.Cmdable
	ttl   time.Duration
}

func NewRedisEventLedger(client redis.Cmdable, ttl time.Duration) *RedisEventLedger {
	return &RedisEventLedger{redis: client, ttl: ttl}
}

func eventKey(eventID string) string {
	return fmt.Sprintf("webhook:event:%s", eventID)
}

func (l *RedisEventLedger) Seen(ctx context.Context, eventID string) (bool, error) {
	n, err := l.redis.Exists(ctx, eventKey(eventID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (l *RedisEventLedger) Mark(ctx context.Context, eventID string) error {
	return l.redis.Set(ctx, eventKey(eventID), "1", l.ttl).Err()
}
