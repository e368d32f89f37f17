package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zazmarga/online-cinema/pkg/config"
)

func TestFixedWindowAllow(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	allowed, count, err := client.FixedWindowAllow(ctx, "cart-add:user-1", 2, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !allowed || count != 1 {
		t.Fatalf("expected first request allowed with count 1, got allowed=%v count=%d", allowed, count)
	}
	if len(mock.expireCalls) != 1 || mock.expireCalls[0].ttl != time.Minute {
		t.Fatalf("expected a single expire with the window ttl, got %+v", mock.expireCalls)
	}

	allowed, count, err = client.FixedWindowAllow(ctx, "cart-add:user-1", 2, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !allowed || count != 2 {
		t.Fatalf("unexpected second call state allowed=%v count=%d", allowed, count)
	}
	if len(mock.expireCalls) != 1 {
		t.Fatalf("expire should not be set again")
	}

	allowed, _, err = client.FixedWindowAllow(ctx, "cart-add:user-1", 2, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if allowed {
		t.Fatalf("expected limit reached")
	}
}

func TestSetNXAndDel(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newMockCmdable()}
	key := client.IdempotencyKey("stripe-webhook", "evt_1")

	set, err := client.SetNX(ctx, key, "1", time.Hour)
	if err != nil || !set {
		t.Fatalf("expected first SetNX to win, set=%v err=%v", set, err)
	}
	set, err = client.SetNX(ctx, key, "1", time.Hour)
	if err != nil || set {
		t.Fatalf("expected second SetNX to lose, set=%v err=%v", set, err)
	}
	if err := client.Del(ctx, key); err != nil {
		t.Fatalf("del failed: %v", err)
	}
	if _, err := client.Get(ctx, key); !errors.Is(err, redis.Nil) {
		t.Fatalf("expected redis.Nil after delete, got %v", err)
	}
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	if got := client.IdempotencyKey("scope", "id"); got != "cinema:idempotency:scope:id" {
		t.Fatalf("unexpected idempotency key %s", got)
	}
	if got := client.RateLimitKey("scope"); got != "cinema:rate_limit:scope" {
		t.Fatalf("unexpected rate limit key %s", got)
	}
	if got := client.IdempotencyKey(" ", "id"); got != "cinema:idempotency:id" {
		t.Fatalf("blank parts should be skipped, got %s", got)
	}
}

func TestUninitializedClient(t *testing.T) {
	var client *Client
	if err := client.Ping(context.Background()); !errors.Is(err, errNotInitialized) {
		t.Fatalf("expected not initialized error, got %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close on nil client should be a no-op, got %v", err)
	}
}

func TestOptionsFromConfig(t *testing.T) {
	if _, err := optionsFromConfig(config.RedisConfig{}); err == nil {
		t.Fatal("expected error without url or address")
	}
	opts, err := optionsFromConfig(config.RedisConfig{URL: "redis://localhost:6379/2", PoolSize: 7})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.DB != 2 || opts.PoolSize != 7 {
		t.Fatalf("unexpected options db=%d pool=%d", opts.DB, opts.PoolSize)
	}
}

type mockCmdable struct {
	data        map[string]string
	incr        map[string]int64
	expireCalls []expireCall
}

type expireCall struct {
	key string
	ttl time.Duration
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{
		data: make(map[string]string),
		incr: make(map[string]int64),
	}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Get(ctx context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Incr(ctx context.Context, key string) *redis.IntCmd {
	m.incr[key]++
	return redis.NewIntResult(m.incr[key], nil)
}

func (m *mockCmdable) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	m.expireCalls = append(m.expireCalls, expireCall{key: key, ttl: expiration})
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}
