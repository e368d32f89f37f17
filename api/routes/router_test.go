package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/zazmarga/online-cinema/internal/cart"
	"github.com/zazmarga/online-cinema/internal/orders"
	stripewebhook "github.com/zazmarga/online-cinema/internal/webhooks/stripe"
	pkgAuth "github.com/zazmarga/online-cinema/pkg/auth"
	"github.com/zazmarga/online-cinema/pkg/config"
	"github.com/zazmarga/online-cinema/pkg/enums"
	"github.com/zazmarga/online-cinema/pkg/logger"
)

var testJWT = config.JWTConfig{Secret: "router-secret", Issuer: "cinema-test", ExpirationMinutes: 5}

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

type stubCart struct {
	cart.Service
}

func (stubCart) Add(_ context.Context, _ uuid.UUID, movieID uuid.UUID) (*cart.CartLine, error) {
	return &cart.CartLine{MovieID: movieID, Name: "Alien", Available: true}, nil
}

type stubOrders struct {
	orders.Service
	mu      sync.Mutex
	created int
}

func (s *stubOrders) CreateOrder(context.Context, uuid.UUID) (*orders.CreateOrderResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created++
	id := uuid.New()
	return &orders.CreateOrderResult{Message: orders.MessageOrderCreated, OrderID: &id}, nil
}

func (s *stubOrders) ListAllOrders(context.Context, orders.AdminListParams) (*orders.OrderList, error) {
	return &orders.OrderList{Items: []orders.OrderDTO{}}, nil
}

type stubWebhook struct{}

func (stubWebhook) HandleWebhook(context.Context, []byte, string) (stripewebhook.Outcome, error) {
	return stripewebhook.OutcomeIgnored, nil
}

type memoryStore struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	switch v := value.(type) {
	case string:
		m.data[key] = v
	case []byte:
		m.data[key] = string(v)
	}
	return true, nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string { return scope + ":" + id }

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

type countingLimiter struct {
	mu     sync.Mutex
	counts map[string]int64
}

func (c *countingLimiter) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[scope]++
	return c.counts[scope] <= limit, c.counts[scope], nil
}

type harness struct {
	handler http.Handler
	orders  *stubOrders
}

func newHarness(t *testing.T, withRedis bool) *harness {
	t.Helper()
	cfg := &config.Config{
		App:          config.AppConfig{Env: "test", CORSOrigins: []string{"http://localhost:3000"}},
		JWT:          testJWT,
		FeatureFlags: config.FeatureFlagsConfig{CartAddPerMinute: 2},
	}
	ordersSvc := &stubOrders{}
	deps := Deps{
		Config:        cfg,
		Logger:        logger.Nop(),
		DB:            stubPinger{},
		Cart:          stubCart{},
		Orders:        ordersSvc,
		StripeWebhook: stubWebhook{},
		Gatherer:      prometheus.NewRegistry(),
	}
	if withRedis {
		deps.Redis = stubPinger{}
		deps.IdempotencyStore = &memoryStore{data: map[string]string{}}
		deps.RateLimiter = &countingLimiter{counts: map[string]int64{}}
	}
	return &harness{handler: NewRouter(deps), orders: ordersSvc}
}

func bearer(t *testing.T, role enums.Role) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(testJWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: uuid.New(),
		Email:  "viewer@example.com",
		Role:   role,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return "Bearer " + token
}

func (h *harness) do(method, target, auth, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp := httptest.NewRecorder()
	h.handler.ServeHTTP(resp, req)
	return resp
}

func TestPublicRoutes(t *testing.T) {
	h := newHarness(t, false)

	cases := []struct {
		method string
		target string
		status int
	}{
		{http.MethodGet, "/health/live", http.StatusOK},
		{http.MethodGet, "/health/ready", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodGet, "/api/v1/payments/success", http.StatusOK},
		{http.MethodGet, "/api/v1/payments/cancel", http.StatusOK},
		{http.MethodPost, "/api/v1/webhooks/stripe", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.target, func(t *testing.T) {
			resp := h.do(tc.method, tc.target, "", "", nil)
			if resp.Code != tc.status {
				t.Fatalf("expected %d got %d: %s", tc.status, resp.Code, resp.Body.String())
			}
		})
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	h := newHarness(t, false)
	for _, target := range []string{"/api/v1/cart", "/api/v1/orders", "/api/v1/payments", "/api/v1/me/movies", "/api/v1/admin/orders"} {
		resp := h.do(http.MethodGet, target, "", "", nil)
		if resp.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401 got %d", target, resp.Code)
		}
	}
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	h := newHarness(t, false)

	resp := h.do(http.MethodGet, "/api/v1/admin/orders", bearer(t, enums.RoleUser), "", nil)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for user got %d", resp.Code)
	}

	resp = h.do(http.MethodGet, "/api/v1/admin/orders", bearer(t, enums.RoleAdmin), "", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestCreateOrderIsIdempotentWhenRedisConfigured(t *testing.T) {
	h := newHarness(t, true)
	auth := bearer(t, enums.RoleUser)

	resp := h.do(http.MethodPost, "/api/v1/orders", auth, "", nil)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without Idempotency-Key got %d", resp.Code)
	}

	headers := map[string]string{"Idempotency-Key": "order-attempt-1"}
	first := h.do(http.MethodPost, "/api/v1/orders", auth, "", headers)
	second := h.do(http.MethodPost, "/api/v1/orders", auth, "", headers)
	if first.Code != http.StatusCreated || second.Code != http.StatusCreated {
		t.Fatalf("expected 201 twice got %d and %d", first.Code, second.Code)
	}
	if first.Body.String() != second.Body.String() {
		t.Fatalf("replayed body differs: %s vs %s", first.Body.String(), second.Body.String())
	}
	if h.orders.created != 1 {
		t.Fatalf("expected one order created, got %d", h.orders.created)
	}
}

func TestCreateOrderWithoutRedisSkipsIdempotency(t *testing.T) {
	h := newHarness(t, false)
	resp := h.do(http.MethodPost, "/api/v1/orders", bearer(t, enums.RoleUser), "", nil)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", resp.Code)
	}
}

func TestCartAddIsRateLimited(t *testing.T) {
	h := newHarness(t, true)
	auth := bearer(t, enums.RoleUser)
	body := `{"movie_id":"` + uuid.NewString() + `"}`

	for i := 0; i < 2; i++ {
		resp := h.do(http.MethodPost, "/api/v1/cart/items", auth, body, nil)
		if resp.Code != http.StatusOK {
			t.Fatalf("attempt %d: expected 200 got %d: %s", i, resp.Code, resp.Body.String())
		}
	}
	resp := h.do(http.MethodPost, "/api/v1/cart/items", auth, body, nil)
	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", resp.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	h := newHarness(t, false)
	resp := h.do(http.MethodOptions, "/api/v1/orders", "", "", map[string]string{
		"Origin":                        "http://localhost:3000",
		"Access-Control-Request-Method": http.MethodPost,
	})
	if got := resp.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("expected allowed origin header, got %q", got)
	}
}
