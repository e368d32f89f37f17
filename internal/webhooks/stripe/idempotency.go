package stripewebhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zazmarga/online-cinema/pkg/redis"
)

const guardScope = "stripe-webhook"

// EventGuard claims a processor event id before any database work happens so
// redeliveries of an event that is in flight or done are short-circuited.
type EventGuard interface {
	Claim(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

// RedisEventGuard stores claims in Redis with a TTL.
type RedisEventGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
}

// NewRedisEventGuard builds a guard; the TTL bounds how long a claim outlives the event.
func NewRedisEventGuard(store redis.IdempotencyStore, ttl time.Duration) (*RedisEventGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &RedisEventGuard{store: store, ttl: ttl}, nil
}

// Claim reports true when this caller is the first to see eventID.
func (g *RedisEventGuard) Claim(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, errors.New("event id is required")
	}
	set, err := g.store.SetNX(ctx, g.store.IdempotencyKey(guardScope, eventID), "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("claim event %s: %w", eventID, err)
	}
	return set, nil
}

// Release drops a claim so the processor's retry of a failed event is handled again.
func (g *RedisEventGuard) Release(ctx context.Context, eventID string) error {
	if eventID == "" {
		return errors.New("event id is required")
	}
	return g.store.Del(ctx, g.store.IdempotencyKey(guardScope, eventID))
}
